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

// Package ratelimit paces per-stream writes and reads with a byte-level
// token bucket applied to each of the N striped connections independently.
package ratelimit

import (
	"context"
	"net"

	"golang.org/x/time/rate"
)

// Conn wraps a net.Conn, pacing Write and Read calls through one token
// bucket. When pacing is disabled New returns the conn unwrapped, so there
// is no bucket bookkeeping overhead at all.
type Conn struct {
	net.Conn
	limiter *rate.Limiter
}

// New wraps conn with a limiter capped at bytesPerSec, or returns conn
// unwrapped if bytesPerSec <= 0 (pacing disabled).
func New(conn net.Conn, bytesPerSec int) net.Conn {
	if bytesPerSec <= 0 {
		return conn
	}
	// The burst must cover the largest single Write (a full framed block),
	// not just bytesPerSec, or WaitN rejects any write bigger than the
	// bucket's capacity outright.
	const minBurst = 65536
	burst := bytesPerSec
	if burst < minBurst {
		burst = minBurst
	}
	return &Conn{Conn: conn, limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst)}
}

func (c *Conn) Write(p []byte) (int, error) {
	if err := c.limiter.WaitN(context.Background(), len(p)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

// Read reads at most one burst worth of bytes and waits for that many
// tokens before returning them.
func (c *Conn) Read(p []byte) (int, error) {
	if b := c.limiter.Burst(); len(p) > b {
		p = p[:b]
	}
	n, err := c.Conn.Read(p)
	if n > 0 {
		if werr := c.limiter.WaitN(context.Background(), n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
