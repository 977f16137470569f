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

// Package codec implements the optional per-block payload compressors
// negotiated between sender and receiver (negotiate.Codec). Unlike the
// stream-level snappy wrapping in std/comp.go, these operate block-by-block
// since each block is already framed and sequenced independently.
package codec

import (
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/xtaci/nap-streams/internal/negotiate"
)

// Codec encodes and decodes block payloads for the wire.
type Codec interface {
	ID() negotiate.Codec
	Encode(plain []byte) ([]byte, error)
	Decode(wire []byte) ([]byte, error)
	// MaxCompressedSize bounds the wire size for a plaintext block of up to
	// blen bytes, so readers can size their frame buffers up front.
	MaxCompressedSize(blen int) int
}

// ByID returns the Codec implementation for a negotiated codec identifier.
func ByID(id negotiate.Codec) (Codec, error) {
	switch id {
	case negotiate.CodecNone:
		return noneCodec{}, nil
	case negotiate.CodecSnappy:
		return snappyCodec{}, nil
	case negotiate.CodecZstd:
		return newZstdCodec()
	default:
		return nil, errors.Errorf("codec: unknown codec id %d", id)
	}
}

type noneCodec struct{}

func (noneCodec) ID() negotiate.Codec { return negotiate.CodecNone }
func (noneCodec) Encode(plain []byte) ([]byte, error) {
	return plain, nil
}
func (noneCodec) Decode(wire []byte) ([]byte, error) {
	return wire, nil
}
func (noneCodec) MaxCompressedSize(blen int) int { return blen }

type snappyCodec struct{}

func (snappyCodec) ID() negotiate.Codec { return negotiate.CodecSnappy }

func (snappyCodec) Encode(plain []byte) ([]byte, error) {
	return snappy.Encode(nil, plain), nil
}

func (snappyCodec) Decode(wire []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, wire)
	if err != nil {
		return nil, errors.Wrap(err, "codec: snappy decode")
	}
	return out, nil
}

func (snappyCodec) MaxCompressedSize(blen int) int {
	return snappy.MaxEncodedLen(blen)
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "codec: init zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "codec: init zstd decoder")
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) ID() negotiate.Codec { return negotiate.CodecZstd }

func (c *zstdCodec) Encode(plain []byte) ([]byte, error) {
	return c.enc.EncodeAll(plain, nil), nil
}

func (c *zstdCodec) Decode(wire []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(wire, nil)
	if err != nil {
		return nil, errors.Wrap(err, "codec: zstd decode")
	}
	return out, nil
}

func (c *zstdCodec) MaxCompressedSize(blen int) int {
	// zstd frames carry their own framing overhead; double the plaintext
	// bound rather than depend on an internal estimator, since an
	// incompressible block can grow slightly under any codec.
	return blen*2 + 64
}
