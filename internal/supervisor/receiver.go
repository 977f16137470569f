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

// Package supervisor owns the worker tasks on both ends of a transfer: it
// runs negotiation, spawns reader/reassembler (receive side) or striper
// (send side) tasks, watches the event bus, and decides success vs. abort.
package supervisor

import (
	"fmt"
	"io"
	"log"
	"net"

	"github.com/pkg/errors"
	"github.com/xtaci/nap-streams/internal/blockqueue"
	"github.com/xtaci/nap-streams/internal/codec"
	"github.com/xtaci/nap-streams/internal/eventbus"
	"github.com/xtaci/nap-streams/internal/negotiate"
	"github.com/xtaci/nap-streams/internal/ratelimit"
	"github.com/xtaci/nap-streams/internal/reassembler"
	"github.com/xtaci/nap-streams/internal/streamreader"
	"github.com/xtaci/nap-streams/internal/telemetry"
)

// ReceiveConfig configures one receive-side run.
type ReceiveConfig struct {
	// NegConn is the already-accepted negotiation connection.
	NegConn net.Conn
	// Output is where the reassembled byte stream is written, normally
	// the process's standard output.
	Output io.Writer
	// QueueDepth bounds the block queue (spec.md §4.3).
	QueueDepth int
	// RateLimit caps bytes/sec read back off each data connection, 0 to
	// disable (the conn handed to streamreader is wrapped by ratelimit.New,
	// which paces reads as well as writes).
	RateLimit int
	Counters  *telemetry.Counters
	Quiet     bool
}

// ErrTransferFailed wraps the terminal event kind that aborted a receive.
type ErrTransferFailed struct {
	Kind eventbus.Kind
}

func (e *ErrTransferFailed) Error() string {
	return fmt.Sprintf("supervisor: transfer aborted (%s)", e.Kind)
}

// RunReceiver executes the full receiver-side supervisor loop (spec.md
// §4.8): negotiate, accept one data connection per reserved port, spawn a
// stream reader per connection and a single reassembler, then block on the
// event bus until the transfer completes or a fatal event arrives.
func RunReceiver(cfg ReceiveConfig) error {
	bus := eventbus.New(4)

	bind := func(port uint16) (any, bool) {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return nil, false
		}
		return ln, true
	}

	result, listeners, err := negotiate.Accept(cfg.NegConn, bind)
	if err != nil {
		for _, l := range listeners {
			if ln, ok := l.(net.Listener); ok {
				ln.Close()
			}
		}
		return errors.Wrap(err, "supervisor: negotiation failed")
	}

	// One slot per task that can publish: each stream reader plus the
	// reassembler.
	bus = eventbus.New(len(listeners) + 1)

	c, err := codec.ByID(result.Codec)
	if err != nil {
		return errors.Wrap(err, "supervisor: unsupported codec")
	}

	q := blockqueue.New(cfg.QueueDepth)

	out := cfg.Output
	if cfg.Counters != nil {
		out = &countingWriter{w: out, c: cfg.Counters}
	}
	go reassembler.Run("join", q.Reader(), out, bus, cfg.Counters, cfg.Quiet)

	for i, l := range listeners {
		ln := l.(net.Listener)
		port := result.Ports[i]
		w := q.Writer()
		taskID := eventbus.NewTaskID(fmt.Sprintf("recv-%d", port))
		go func(ln net.Listener, taskID string, w *blockqueue.Writer) {
			defer ln.Close()
			conn, err := ln.Accept()
			if err != nil {
				if !cfg.Quiet {
					log.Printf("%s: accept failed: %v", taskID, err)
				}
				w.Close()
				bus.Notify(taskID, eventbus.ESOCK)
				return
			}
			defer conn.Close()
			paced := ratelimit.New(conn, cfg.RateLimit)
			var src io.Reader = paced
			if cfg.Counters != nil {
				src = &countingReader{r: paced, c: cfg.Counters}
			}
			streamreader.Run(taskID, src, int(result.Blen), c, w, bus, cfg.Counters, cfg.Quiet)
		}(ln, taskID, w)
	}

	for {
		ev := bus.WaitNotify()
		switch ev.Kind {
		case eventbus.OK:
			if !cfg.Quiet {
				log.Println("supervisor: transfer complete")
			}
			return nil
		case eventbus.EPIP, eventbus.ESOCK:
			if !cfg.Quiet {
				log.Printf("supervisor: aborting on %s from %s", ev.Kind, ev.TaskID)
			}
			return &ErrTransferFailed{Kind: ev.Kind}
		default:
			return &ErrTransferFailed{Kind: ev.Kind}
		}
	}
}

type countingReader struct {
	r io.Reader
	c *telemetry.Counters
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.c.AddBytesIn(int64(n))
	}
	return n, err
}

type countingWriter struct {
	w io.Writer
	c *telemetry.Counters
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.c.AddBytesOut(int64(n))
		cw.c.AddBlocksOut(1)
	}
	return n, err
}
