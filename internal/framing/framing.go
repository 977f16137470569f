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

// Package framing implements the length-prefixed message transport used for
// both the negotiation side-channel and the data streams: every frame on the
// wire is a 4-byte big-endian length followed by that many payload bytes.
package framing

import (
	"bufio"
	"encoding/binary"
	"io"
)

const headerSize = 4

// Reader reads framed messages from an underlying byte stream. A bufio.Reader
// is required so a single framed message is delivered atomically even when
// the kernel hands back partial reads.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r with frame-boundary-preserving reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024)}
}

// GetFrame reads one frame into out, which must have capacity >= maxLen.
// It returns the number of payload bytes delivered, 0 on clean EOF at a
// frame boundary, and a non-nil error on truncated read, I/O error, or an
// oversize frame (length > maxLen).
func (r *Reader) GetFrame(out []byte, maxLen int) (int, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r.br, hdr[:]); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return -1, err
	}

	length := int(binary.BigEndian.Uint32(hdr[:]))
	if length > maxLen || length > cap(out) {
		return -1, ErrOversize
	}
	if length == 0 {
		return 0, nil
	}
	if _, err := io.ReadFull(r.br, out[:length]); err != nil {
		return -1, err
	}
	return length, nil
}

// Writer writes framed messages to an underlying byte stream.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for framed writes.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// PutFrame writes the length prefix followed by payload. It fails only if
// the underlying write fails.
func (w *Writer) PutFrame(payload []byte) error {
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.w.Write(payload)
	return err
}

// ErrOversize is returned by GetFrame when a frame's declared length exceeds
// the caller-supplied maximum or the destination buffer's capacity.
var ErrOversize = oversizeError{}

type oversizeError struct{}

func (oversizeError) Error() string { return "framing: frame exceeds maximum length" }
