package blockqueue

import (
	"sync"
	"testing"

	"github.com/xtaci/nap-streams/internal/block"
)

func TestSingleProducerConsumer(t *testing.T) {
	q := New(4)
	w := q.Writer()
	r := q.Reader()

	blk := block.Alloc(8)
	blk.Seq = 0
	if err := w.Put(blk); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	w.Close()

	got := r.Get()
	if got == nil || got.Seq != 0 {
		t.Fatalf("expected block with seq 0, got %+v", got)
	}

	if r.Get() != nil {
		t.Fatalf("expected clean EOF after sole writer closed")
	}
}

func TestEOFOnlyAfterLastWriterCloses(t *testing.T) {
	q := New(4)
	w1 := q.Writer()
	w2 := q.Writer()
	r := q.Reader()

	w1.Close() // one of two writers departs

	blk := block.Alloc(4)
	blk.Seq = 42
	if err := w2.Put(blk); err != nil {
		t.Fatalf("Put on remaining writer returned error: %v", err)
	}

	got := r.Get()
	if got == nil || got.Seq != 42 {
		t.Fatalf("consumer should still see blocks from the remaining writer, got %+v", got)
	}

	done := make(chan *block.Block, 1)
	go func() { done <- r.Get() }()

	select {
	case <-done:
		t.Fatalf("consumer observed EOF before the last writer closed")
	default:
	}

	w2.Close()
	if got := <-done; got != nil {
		t.Fatalf("expected clean EOF once every writer closed, got %+v", got)
	}
}

func TestPutFailsAfterReaderCloses(t *testing.T) {
	q := New(0)
	w := q.Writer()
	r := q.Reader()
	r.Close()

	err := w.Put(block.Alloc(1))
	if err != ErrClosed {
		t.Fatalf("expected ErrClosed after consumer closed, got %v", err)
	}
}

func TestConcurrentProducers(t *testing.T) {
	q := New(16)
	r := q.Reader()

	const producers = 5
	const perProducer = 20
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		w := q.Writer()
		wg.Add(1)
		go func(w *Writer, base int) {
			defer wg.Done()
			defer w.Close()
			for i := 0; i < perProducer; i++ {
				blk := block.Alloc(1)
				blk.Seq = uint32(base*perProducer + i)
				if err := w.Put(blk); err != nil {
					t.Errorf("Put returned error: %v", err)
					return
				}
			}
		}(w, p)
	}

	count := 0
	for blk := r.Get(); blk != nil; blk = r.Get() {
		count++
	}
	wg.Wait()

	if count != producers*perProducer {
		t.Fatalf("got %d blocks, want %d", count, producers*perProducer)
	}
}
