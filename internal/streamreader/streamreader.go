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

// Package streamreader implements the per-connection task that pulls framed
// blocks off one data socket and forwards them to the block queue,
// corresponding to in_stream() in the original source.
package streamreader

import (
	"encoding/binary"
	"io"
	"log"

	"github.com/xtaci/nap-streams/internal/block"
	"github.com/xtaci/nap-streams/internal/blockqueue"
	"github.com/xtaci/nap-streams/internal/codec"
	"github.com/xtaci/nap-streams/internal/eventbus"
	"github.com/xtaci/nap-streams/internal/framing"
	"github.com/xtaci/nap-streams/internal/telemetry"
)

const blockHeaderSize = 4 + 4 // ssn + len

// Run reads frames from conn until clean EOF or error, decoding each into a
// Block and handing it off on w. It always closes w on exit (spec.md §9
// item 5: only this task's own write handle, so the consumer observes EOF
// once every stream reader has departed, not after the first one).
//
// blen is the negotiated per-block payload capacity; c decodes the wire
// payload back to its original bytes (the CodecNone codec is a passthrough).
// counters may be nil, in which case no counters are updated.
func Run(taskID string, conn io.Reader, blen int, c codec.Codec, w *blockqueue.Writer, bus *eventbus.Bus, counters *telemetry.Counters, quiet bool) {
	defer w.Close()

	logf := func(format string, args ...any) {
		if !quiet {
			log.Printf(format, args...)
		}
	}
	countErr := func() {
		if counters != nil {
			counters.AddStreamErrs(1)
		}
	}

	fr := framing.NewReader(conn)
	maxFrame := blockHeaderSize + c.MaxCompressedSize(blen)

	raw := make([]byte, maxFrame)
	logf("stream %s: waiting for data", taskID)

	for {
		n, err := fr.GetFrame(raw, maxFrame)
		if err != nil {
			logf("stream %s: socket error: %v", taskID, err)
			countErr()
			bus.Notify(taskID, eventbus.ESOCK)
			return
		}
		if n == 0 {
			logf("stream %s: socket closed, closing queue handle", taskID)
			return
		}
		if n < blockHeaderSize {
			logf("stream %s: truncated block header", taskID)
			countErr()
			bus.Notify(taskID, eventbus.ESOCK)
			return
		}

		seq := binary.BigEndian.Uint32(raw[0:4])
		payloadLen := binary.BigEndian.Uint32(raw[4:8])
		wire := raw[blockHeaderSize:n]
		if int(payloadLen) != len(wire) {
			logf("stream %s: inconsistent block length (header %d, frame %d)", taskID, payloadLen, len(wire))
			countErr()
			bus.Notify(taskID, eventbus.ESOCK)
			return
		}

		blk := block.Alloc(blen)
		blk.Seq = seq
		decoded, err := c.Decode(wire)
		if err != nil {
			logf("stream %s: codec error: %v", taskID, err)
			countErr()
			bus.Notify(taskID, eventbus.ESOCK)
			return
		}
		copy(blk.Data, decoded)
		blk.Len = len(decoded)

		if err := w.Put(blk); err != nil {
			block.Free(blk)
			logf("stream %s: block queue closed: %v", taskID, err)
			bus.Notify(taskID, eventbus.EPIP)
			return
		}
		if counters != nil {
			counters.AddBlocksIn(1)
		}
	}
}
