package striper

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/xtaci/nap-streams/internal/codec"
	"github.com/xtaci/nap-streams/internal/framing"
	"github.com/xtaci/nap-streams/internal/negotiate"
)

func readBlocks(t *testing.T, buf *bytes.Buffer) [][]byte {
	t.Helper()
	fr := framing.NewReader(buf)
	var out [][]byte
	raw := make([]byte, 4096)
	for {
		n, err := fr.GetFrame(raw, len(raw))
		if err != nil {
			t.Fatalf("GetFrame: %v", err)
		}
		if n == 0 {
			return out
		}
		body := make([]byte, n)
		copy(body, raw[:n])
		out = append(out, body)
	}
}

func TestRunStripesRoundRobin(t *testing.T) {
	in := strings.NewReader("ABCDEFGHIJ") // 10 bytes, blen=3 => 4 blocks: ABC DEF GHI J
	var conn0, conn1 bytes.Buffer
	c, _ := codec.ByID(negotiate.CodecNone)

	if err := Run(in, []io.Writer{&conn0, &conn1}, 3, c); err != nil {
		t.Fatalf("Run: %v", err)
	}

	b0 := readBlocks(t, &conn0)
	b1 := readBlocks(t, &conn1)

	if len(b0) != 2 || len(b1) != 2 {
		t.Fatalf("expected 2 blocks on each connection, got %d and %d", len(b0), len(b1))
	}

	seq0 := binary.BigEndian.Uint32(b0[0][0:4])
	seq1 := binary.BigEndian.Uint32(b1[0][0:4])
	if seq0 != 0 || seq1 != 1 {
		t.Fatalf("expected ssn 0 on conn0 and 1 on conn1 first, got %d and %d", seq0, seq1)
	}

	payload := func(frame []byte) string {
		l := binary.BigEndian.Uint32(frame[4:8])
		return string(frame[8 : 8+l])
	}
	if payload(b0[0]) != "ABC" || payload(b1[0]) != "DEF" || payload(b0[1]) != "GHI" || payload(b1[1]) != "J" {
		t.Fatalf("unexpected payloads: %q %q %q %q", payload(b0[0]), payload(b1[0]), payload(b0[1]), payload(b1[1]))
	}
}

func TestRunRejectsNoConnections(t *testing.T) {
	c, _ := codec.ByID(negotiate.CodecNone)
	if err := Run(strings.NewReader("x"), nil, 4096, c); err == nil {
		t.Fatalf("expected error with zero connections")
	}
}
