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

// Package negotiate implements the pre-transfer handshake: sender and
// receiver agree on block size, stream count, and the per-stream port
// numbers before any data socket is opened.
package negotiate

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Ack is the negotiation response/request flag.
type Ack uint32

const (
	ACK  Ack = 0
	NACK Ack = 1
	REJ  Ack = 2
)

func (a Ack) String() string {
	switch a {
	case ACK:
		return "ACK"
	case NACK:
		return "NACK"
	case REJ:
		return "REJ"
	default:
		return "UNKNOWN"
	}
}

const (
	// BlenDefault is the default block data capacity in bytes.
	BlenDefault = 4096
	// NumPortsDefault is the default requested stream count.
	NumPortsDefault = 4
	// NumPortsMax bounds the trailing port array we will ever decode, guarding
	// against a hostile or corrupt peer inflating streams without bound.
	NumPortsMax = 4096

	headerSize = 4 + 4 + 2 // ack + blen + streams
)

// Codec identifies the optional per-block payload compressor both peers
// agreed on. This field is additive to the source's wire layout (spec.md §9
// item 1 leaves `streams` semantics pinned; it says nothing about codecs) —
// it trails the port array exactly as SPEC_FULL.md §6 specifies.
type Codec uint8

const (
	CodecNone   Codec = 0
	CodecSnappy Codec = 1
	CodecZstd   Codec = 2
)

// Message is the negotiation wire record. Port always trails the record;
// its on-wire length is independent of Streams except where explicitly
// noted: the sender's initial request carries Streams = the number of
// streams it wants, with a zero-length Port array, a deliberate encoding
// spec.md §3 and §9 call out explicitly. Every other message's Port slice
// has exactly Streams entries.
type Message struct {
	Ack     Ack
	Blen    uint32
	Streams uint16
	Port    []uint16
	Codec   Codec
}

// Encode serializes m in wire order: ack, blen, streams, port[...], codec.
func Encode(m Message) []byte {
	buf := make([]byte, headerSize+2*len(m.Port)+1)
	binary.BigEndian.PutUint32(buf[0:4], uint32(m.Ack))
	binary.BigEndian.PutUint32(buf[4:8], m.Blen)
	binary.BigEndian.PutUint16(buf[8:10], m.Streams)
	off := headerSize
	for _, p := range m.Port {
		binary.BigEndian.PutUint16(buf[off:off+2], p)
		off += 2
	}
	buf[off] = byte(m.Codec)
	return buf
}

// Decode parses a Message body. The trailing port array length is inferred
// from the buffer length (not from Streams — see Message doc), which is how
// the sender's zero-port initial request round-trips even though its
// Streams field reports the desired count.
func Decode(buf []byte) (Message, error) {
	if len(buf) < headerSize {
		return Message{}, errors.Errorf("negotiate: short message (%d bytes)", len(buf))
	}
	m := Message{
		Ack:     Ack(binary.BigEndian.Uint32(buf[0:4])),
		Blen:    binary.BigEndian.Uint32(buf[4:8]),
		Streams: binary.BigEndian.Uint16(buf[8:10]),
	}
	rest := buf[headerSize:]
	if len(rest) < 1 {
		return Message{}, errors.Errorf("negotiate: message missing codec trailer")
	}
	portBytes := rest[:len(rest)-1]
	if len(portBytes)%2 != 0 {
		return Message{}, errors.Errorf("negotiate: odd-length port array (%d bytes)", len(portBytes))
	}
	numPorts := len(portBytes) / 2
	if numPorts > NumPortsMax {
		return Message{}, errors.Errorf("negotiate: port array too large (%d > %d)", numPorts, NumPortsMax)
	}
	if numPorts > 0 {
		m.Port = make([]uint16, numPorts)
		for i := range m.Port {
			m.Port[i] = binary.BigEndian.Uint16(portBytes[2*i : 2*i+2])
		}
	}
	m.Codec = Codec(rest[len(rest)-1])
	return m, nil
}
