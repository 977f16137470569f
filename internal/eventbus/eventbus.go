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

// Package eventbus carries task completion/failure notifications from the
// worker tasks (stream readers, the reassembler) to the supervisor. It is
// single-reader, multi-writer, and serializes internally via a buffered
// channel.
package eventbus

import "github.com/teris-io/shortid"

// Kind enumerates the event kinds a task can report.
type Kind int

const (
	// OK reports clean completion: the reassembler observed queue EOF after
	// every producer closed cleanly.
	OK Kind = iota
	// EPIP reports a broken block-queue handoff.
	EPIP
	// ESOCK reports an unexpected data-socket read failure.
	ESOCK
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "OK"
	case EPIP:
		return "EPIP"
	case ESOCK:
		return "ESOCK"
	default:
		return "UNKNOWN"
	}
}

// Event is one notification published on the Bus.
type Event struct {
	TaskID string
	Kind   Kind
}

// Bus is a process-wide notification channel. The zero value is not usable;
// construct with New.
type Bus struct {
	ch chan Event
}

// New creates a Bus with the given buffer depth. A small buffer lets tasks
// that race to report a terminal event avoid blocking on each other.
func New(buffer int) *Bus {
	return &Bus{ch: make(chan Event, buffer)}
}

// Notify publishes one event. It never blocks indefinitely on a healthy bus
// because the channel is buffered generously relative to the number of
// tasks that can ever publish (one per stream, plus the reassembler).
func (b *Bus) Notify(taskID string, kind Kind) {
	b.ch <- Event{TaskID: taskID, Kind: kind}
}

// WaitNotify blocks until the next event is available.
func (b *Bus) WaitNotify() Event {
	return <-b.ch
}

// NewTaskID mints a short, log-friendly task identifier, e.g. "stream-a1B2c".
func NewTaskID(role string) string {
	id, err := shortid.Generate()
	if err != nil {
		// shortid only fails on generator exhaustion/misconfiguration, which
		// cannot happen with the package-level default generator; fall back
		// to the role name alone rather than propagate an error from what is
		// purely a logging aid.
		return role
	}
	return role + "-" + id
}
