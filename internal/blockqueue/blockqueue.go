// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package blockqueue implements the bounded multi-producer/single-consumer
// handoff of owned Blocks between stream-reader tasks and the reassembler.
// It re-expresses the source's OS pipe (opened O_DIRECT for packet-mode
// framing of block pointers) as an in-process typed channel, per spec.md §9:
// this avoids platform-specific pipe flags and the need to pass raw pointers
// through a byte channel.
package blockqueue

import (
	"sync"

	"github.com/xtaci/nap-streams/internal/block"
)

// Queue is the shared channel between N producers and one consumer. The
// zero value is not usable; construct with New.
//
// Each task obtains its own Writer or Reader handle via the Queue, rather
// than sharing one pipe descriptor as the source does, so that per-task
// handle closure — not a single shared descriptor — drives shutdown
// (spec.md §9 item 5: the consumer must see EOF only once every producer
// has departed, not after the first one closes).
type Queue struct {
	ch chan *block.Block

	mu          sync.Mutex
	liveWriters int

	readerOnce sync.Once
	readerDone chan struct{} // closed when the consumer stops draining
}

// New creates a Queue with the given handoff buffer depth.
func New(depth int) *Queue {
	return &Queue{
		ch:         make(chan *block.Block, depth),
		readerDone: make(chan struct{}),
	}
}

// Writer is a producer-side handle.
type Writer struct {
	q      *Queue
	closed bool
}

// Writer issues a new producer handle for this queue. Call it once per
// stream-reader task before spawning it.
func (q *Queue) Writer() *Writer {
	q.mu.Lock()
	q.liveWriters++
	q.mu.Unlock()
	return &Writer{q: q}
}

// Reader is the single consumer-side handle.
type Reader struct {
	q *Queue
}

// Reader issues the consumer handle for this queue. Call it once.
func (q *Queue) Reader() *Reader {
	return &Reader{q: q}
}

// Put transfers ownership of blk to the queue. It returns nil on success
// and ErrClosed if the consumer side has stopped draining the queue.
func (w *Writer) Put(blk *block.Block) error {
	if w.closed {
		return ErrClosed
	}
	select {
	case w.q.ch <- blk:
		return nil
	case <-w.q.readerDone:
		return ErrClosed
	}
}

// Close departs this producer handle. Once every issued Writer has closed,
// the consumer observes clean EOF from Get.
func (w *Writer) Close() {
	if w.closed {
		return
	}
	w.closed = true

	w.q.mu.Lock()
	w.q.liveWriters--
	last := w.q.liveWriters == 0
	w.q.mu.Unlock()

	if last {
		close(w.q.ch)
	}
}

// Get receives ownership of the next Block, blocking until one is
// available. It returns nil on clean EOF once every producer has departed.
func (r *Reader) Get() *block.Block {
	blk, ok := <-r.q.ch
	if !ok {
		return nil
	}
	return blk
}

// Close marks the consumer side as gone. Producers blocked in or arriving
// at Put observe ErrClosed instead of hanging indefinitely.
func (r *Reader) Close() {
	r.q.readerOnce.Do(func() { close(r.q.readerDone) })
}

// ErrClosed is returned by Put once the consumer has stopped reading.
var ErrClosed = closedError{}

type closedError struct{}

func (closedError) Error() string { return "blockqueue: consumer closed" }
