package codec

import (
	"bytes"
	"testing"

	"github.com/xtaci/nap-streams/internal/negotiate"
)

func TestNoneCodecRoundTrip(t *testing.T) {
	c, err := ByID(negotiate.CodecNone)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	plain := []byte("hello world")
	wire, _ := c.Encode(plain)
	got, err := c.Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("got %q want %q", got, plain)
	}
}

func TestSnappyCodecRoundTrip(t *testing.T) {
	c, err := ByID(negotiate.CodecSnappy)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	plain := bytes.Repeat([]byte("the quick brown fox "), 100)
	wire, err := c.Encode(plain)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(wire) >= len(plain) {
		t.Fatalf("expected compression to shrink a repetitive payload")
	}
	got, err := c.Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestZstdCodecRoundTrip(t *testing.T) {
	c, err := ByID(negotiate.CodecZstd)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	plain := bytes.Repeat([]byte("compress me please "), 200)
	wire, err := c.Encode(plain)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestByIDUnknown(t *testing.T) {
	if _, err := ByID(negotiate.Codec(99)); err == nil {
		t.Fatalf("expected error for unknown codec id")
	}
}

func TestMaxCompressedSizeCoversWorstCase(t *testing.T) {
	for _, id := range []negotiate.Codec{negotiate.CodecNone, negotiate.CodecSnappy, negotiate.CodecZstd} {
		c, err := ByID(id)
		if err != nil {
			t.Fatalf("ByID(%v): %v", id, err)
		}
		plain := make([]byte, 4096)
		for i := range plain {
			plain[i] = byte(i) // incompressible-ish pattern
		}
		wire, err := c.Encode(plain)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if len(wire) > c.MaxCompressedSize(len(plain)) {
			t.Fatalf("codec %v: wire size %d exceeds MaxCompressedSize %d", id, len(wire), c.MaxCompressedSize(len(plain)))
		}
	}
}
