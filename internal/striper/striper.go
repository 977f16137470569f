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

// Package striper implements the sender's symmetric half of the pipeline:
// it numbers blocks in issue order and round-robins them across the N
// connected data sockets. spec.md §1 specifies this side only at the
// contract level ("block-numbering and round-robin dispatch"); this package
// fills that contract out fully for SPEC_FULL.md.
package striper

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/xtaci/nap-streams/internal/codec"
	"github.com/xtaci/nap-streams/internal/framing"
)

const blockHeaderSize = 4 + 4 // ssn + len

// Run reads in until EOF, chopping it into blen-byte blocks, encoding each
// with c, and dispatching them round-robin across conns in issue order. It
// returns the first write or read error encountered, or nil on clean EOF.
func Run(in io.Reader, conns []io.Writer, blen int, c codec.Codec) error {
	if len(conns) == 0 {
		return errors.New("striper: no connections to stripe across")
	}

	writers := make([]*framing.Writer, len(conns))
	for i, conn := range conns {
		writers[i] = framing.NewWriter(conn)
	}

	buf := make([]byte, blen)
	var seq uint32
	for {
		n, readErr := io.ReadFull(in, buf)
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return errors.Wrap(readErr, "striper: read input")
		}
		if n == 0 {
			return nil
		}

		wire, err := c.Encode(buf[:n])
		if err != nil {
			return errors.Wrap(err, "striper: encode block")
		}

		body := make([]byte, blockHeaderSize+len(wire))
		binary.BigEndian.PutUint32(body[0:4], seq)
		binary.BigEndian.PutUint32(body[4:8], uint32(len(wire)))
		copy(body[blockHeaderSize:], wire)

		w := writers[int(seq)%len(writers)]
		if err := w.PutFrame(body); err != nil {
			return errors.Wrapf(err, "striper: dispatch block %d", seq)
		}
		seq++

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return nil
		}
	}
}
