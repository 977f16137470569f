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

package supervisor

import (
	"fmt"
	"io"
	"log"
	"net"

	"github.com/pkg/errors"
	"github.com/xtaci/nap-streams/internal/codec"
	"github.com/xtaci/nap-streams/internal/negotiate"
	"github.com/xtaci/nap-streams/internal/ratelimit"
	"github.com/xtaci/nap-streams/internal/striper"
	"github.com/xtaci/nap-streams/internal/telemetry"
)

// SendConfig configures one send-side run.
type SendConfig struct {
	// NegConn is the already-established negotiation connection to the peer.
	NegConn net.Conn
	// Addr is the peer host used to dial each agreed data port (no port).
	Addr string
	// Input is the byte stream to stripe, normally the process's standard input.
	Input     io.Reader
	Streams   uint16
	Blen      uint32
	Codec     negotiate.Codec
	RateLimit int
	Counters  *telemetry.Counters
	Quiet     bool
}

// RunSender executes the sender-side handshake and striping loop: propose
// negotiation terms, dial one connection per agreed port in order, then
// stripe the input across them until EOF or a fatal I/O error.
func RunSender(cfg SendConfig) error {
	result, err := negotiate.Propose(cfg.NegConn, negotiate.Request{
		Blen:    cfg.Blen,
		Streams: cfg.Streams,
		Codec:   cfg.Codec,
	})
	if err != nil {
		return errors.Wrap(err, "supervisor: negotiation failed")
	}

	c, err := codec.ByID(result.Codec)
	if err != nil {
		return errors.Wrap(err, "supervisor: unsupported codec")
	}

	conns := make([]io.Writer, len(result.Ports))
	for i, port := range result.Ports {
		addr := fmt.Sprintf("%s:%d", cfg.Addr, port)
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return errors.Wrapf(err, "supervisor: dial stream %d (%s)", i, addr)
		}
		defer conn.Close()
		if !cfg.Quiet {
			log.Printf("stream %d connected to %s", i, addr)
		}
		paced := ratelimit.New(conn, cfg.RateLimit)
		if cfg.Counters != nil {
			conns[i] = &countingStriperWriter{w: paced, c: cfg.Counters}
		} else {
			conns[i] = paced
		}
	}

	in := cfg.Input
	if cfg.Counters != nil {
		in = &countingReader{r: in, c: cfg.Counters}
	}

	return striper.Run(in, conns, int(result.Blen), c)
}

type countingStriperWriter struct {
	w io.Writer
	c *telemetry.Counters
}

func (cw *countingStriperWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.c.AddBytesOut(int64(n))
		cw.c.AddBlocksOut(1)
	}
	return n, err
}
