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

package negotiate

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xtaci/nap-streams/internal/framing"
)

const maxMessageSize = headerSize + 2*NumPortsMax + 1

// Request is what the sender proposes.
type Request struct {
	Blen    uint32
	Streams uint16
	Codec   Codec
}

// Result is what both peers end up agreeing on.
type Result struct {
	Blen  uint32
	Ports []uint16
	Codec Codec
}

var (
	// ErrPeerClosed is returned when the peer closes the negotiation
	// connection before completing the handshake.
	ErrPeerClosed = errors.New("negotiate: peer closed connection")
	// ErrAmended is returned to the sender when the receiver responds with
	// NACK. Per spec.md §9 item 2 and SPEC_FULL.md §4.5, re-negotiation is
	// not implemented: the single round is final.
	ErrAmended = errors.New("negotiate: receiver proposed amended options, aborting (single-round policy)")
	// ErrRejected is returned when the peer sends REJ: unconditional refusal.
	ErrRejected = errors.New("negotiate: peer rejected the request")
	// ErrUnexpectedAck is returned when a message arrives with an Ack value
	// that is not valid in the role's current state — e.g. a responder
	// receiving ACK instead of NACK/REJ. This fixes the source's ACK→REJ
	// switch fallthrough defect (spec.md §9 item 4) by giving the case its
	// own distinct, named outcome instead of silently treating it as REJ.
	ErrUnexpectedAck = errors.New("negotiate: received an ACK where a request was expected")
	// ErrPortReservationFailed is returned to the receiver's caller when
	// fewer ports were reserved than requested after exhausting retries.
	ErrPortReservationFailed = errors.New("negotiate: could not reserve the requested number of ports")
)

// Propose runs the sender side of the handshake: send the initial NACK
// request, then evaluate the single response. The sender's initial request
// carries Streams = the requested stream count together with a zero-length
// Port array — spec.md §3's deliberate encoding, preserved here rather than
// "fixed", since it is how the wire format is actually specified.
func Propose(rw io.ReadWriter, req Request) (Result, error) {
	fw := framing.NewWriter(rw)
	fr := framing.NewReader(rw)

	initial := Message{Ack: NACK, Blen: req.Blen, Streams: req.Streams, Codec: req.Codec}
	if err := fw.PutFrame(Encode(initial)); err != nil {
		return Result{}, errors.Wrap(err, "negotiate: send initial request")
	}

	buf := make([]byte, maxMessageSize)
	n, err := fr.GetFrame(buf, maxMessageSize)
	if err != nil {
		return Result{}, errors.Wrap(err, "negotiate: read response")
	}
	if n == 0 {
		return Result{}, ErrPeerClosed
	}

	resp, err := Decode(buf[:n])
	if err != nil {
		return Result{}, errors.Wrap(err, "negotiate: decode response")
	}

	switch resp.Ack {
	case ACK:
		return Result{Blen: resp.Blen, Ports: resp.Port, Codec: resp.Codec}, nil
	case NACK:
		return Result{}, ErrAmended
	case REJ:
		return Result{}, ErrRejected
	default:
		return Result{}, ErrUnexpectedAck
	}
}

// Accept runs the receiver side of the handshake over one accepted
// negotiation connection. bind is the sole socket-primitive collaborator
// (spec.md §1 places listen/accept out of this package's scope); it is
// called once per candidate port during port reservation.
//
// On success it returns the agreed Result and the listeners backing each
// reserved port, in the same order as Result.Ports, ready for the caller to
// accept one connection from each (spec.md §4.5 step 3).
func Accept(rw io.ReadWriter, bind Binder) (Result, []any, error) {
	fr := framing.NewReader(rw)
	fw := framing.NewWriter(rw)

	buf := make([]byte, maxMessageSize)
	n, err := fr.GetFrame(buf, maxMessageSize)
	if err != nil {
		return Result{}, nil, errors.Wrap(err, "negotiate: read request")
	}
	if n == 0 {
		return Result{}, nil, ErrPeerClosed
	}

	req, err := Decode(buf[:n])
	if err != nil {
		return Result{}, nil, errors.Wrap(err, "negotiate: decode request")
	}

	if req.Ack != NACK {
		// An initial request is always NACK by construction (see Propose);
		// anything else here is a protocol error distinct from REJ, fixing
		// the source's fallthrough defect (spec.md §9 item 4).
		return Result{}, nil, ErrUnexpectedAck
	}

	if req.Streams == 0 {
		reject := Message{Ack: REJ, Blen: req.Blen, Streams: 0, Codec: req.Codec}
		_ = fw.PutFrame(Encode(reject))
		return Result{}, nil, ErrRejected
	}

	ports, listeners, ok := reservePorts(int(req.Streams), bind)
	resp := Message{Blen: req.Blen, Streams: uint16(len(ports)), Port: ports, Codec: req.Codec}
	if ok {
		resp.Ack = ACK
	} else {
		resp.Ack = NACK
	}

	if err := fw.PutFrame(Encode(resp)); err != nil {
		return Result{}, nil, errors.Wrap(err, "negotiate: send response")
	}

	if !ok {
		return Result{}, listeners, ErrPortReservationFailed
	}
	return Result{Blen: resp.Blen, Ports: ports, Codec: resp.Codec}, listeners, nil
}
