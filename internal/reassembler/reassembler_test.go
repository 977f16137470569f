package reassembler

import (
	"bytes"
	"testing"

	"github.com/xtaci/nap-streams/internal/block"
	"github.com/xtaci/nap-streams/internal/blockqueue"
	"github.com/xtaci/nap-streams/internal/eventbus"
	"github.com/xtaci/nap-streams/internal/telemetry"
)

func mkblock(seq uint32, payload string) *block.Block {
	b := block.Alloc(len(payload))
	b.Seq = seq
	copy(b.Data, payload)
	b.Len = len(payload)
	return b
}

func TestRunOutOfOrderReassembly(t *testing.T) {
	q := blockqueue.New(8)
	w := q.Writer()
	r := q.Reader()

	// arrive out of order: 2, 0, 1
	w.Put(mkblock(2, "C"))
	w.Put(mkblock(0, "A"))
	w.Put(mkblock(1, "B"))
	w.Close()

	var out bytes.Buffer
	bus := eventbus.New(1)
	Run("join", r, &out, bus, nil, true)

	if out.String() != "ABC" {
		t.Fatalf("expected ABC, got %q", out.String())
	}
	ev := bus.WaitNotify()
	if ev.Kind != eventbus.OK {
		t.Fatalf("expected OK, got %v", ev.Kind)
	}
}

func TestRunDiscardsDuplicates(t *testing.T) {
	q := blockqueue.New(8)
	w := q.Writer()
	r := q.Reader()

	w.Put(mkblock(0, "A"))
	w.Put(mkblock(0, "A-dup"))
	w.Put(mkblock(1, "B"))
	w.Put(mkblock(1, "B-dup"))
	w.Close()

	var out bytes.Buffer
	bus := eventbus.New(1)
	counters := &telemetry.Counters{}
	Run("join", r, &out, bus, counters, true)

	if out.String() != "AB" {
		t.Fatalf("expected AB, got %q", out.String())
	}
	// each duplicate arrives after its ssn was already emitted, so it is
	// counted as a straggler rather than as an in-cache duplicate.
	if counters.Stragglers != 2 {
		t.Fatalf("expected 2 already-emitted duplicates counted as stragglers, got %d", counters.Stragglers)
	}
}

func TestRunDiscardsStragglerAfterEmit(t *testing.T) {
	q := blockqueue.New(8)
	w := q.Writer()
	r := q.Reader()

	w.Put(mkblock(0, "A"))
	w.Put(mkblock(1, "B"))
	w.Put(mkblock(0, "A-straggler")) // arrives after next_ssn has passed it
	w.Close()

	var out bytes.Buffer
	bus := eventbus.New(1)
	counters := &telemetry.Counters{}
	Run("join", r, &out, bus, counters, true)

	if out.String() != "AB" {
		t.Fatalf("expected AB (straggler dropped), got %q", out.String())
	}
	if counters.Stragglers != 1 {
		t.Fatalf("expected 1 straggler counted, got %d", counters.Stragglers)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, bytes.ErrTooLarge
}

func TestRunPublishesEPIPOnWriteError(t *testing.T) {
	q := blockqueue.New(8)
	w := q.Writer()
	r := q.Reader()
	w.Put(mkblock(0, "A"))
	w.Close()

	bus := eventbus.New(1)
	Run("join", r, failingWriter{}, bus, nil, true)

	ev := bus.WaitNotify()
	if ev.Kind != eventbus.EPIP {
		t.Fatalf("expected EPIP, got %v", ev.Kind)
	}
}

func TestCacheInsertSortedOrder(t *testing.T) {
	c := &cache{}
	c.insert(mkblock(5, "e"))
	c.insert(mkblock(1, "a"))
	c.insert(mkblock(3, "c"))

	var got []uint32
	for n := c.head; n != nil; n = n.next {
		got = append(got, n.blk.Seq)
	}
	want := []uint32{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestCacheInsertRejectsDuplicateKey(t *testing.T) {
	c := &cache{}
	if !c.insert(mkblock(1, "first")) {
		t.Fatalf("expected first insert to succeed")
	}
	if c.insert(mkblock(1, "dup")) {
		t.Fatalf("expected duplicate insert to be rejected")
	}
}
