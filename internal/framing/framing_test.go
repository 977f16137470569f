package framing

import (
	"bytes"
	"io"
	"testing"
)

func TestPutGetFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutFrame([]byte("hello")); err != nil {
		t.Fatalf("PutFrame returned error: %v", err)
	}
	if err := w.PutFrame([]byte("world!")); err != nil {
		t.Fatalf("PutFrame returned error: %v", err)
	}

	r := NewReader(&buf)
	out := make([]byte, 64)

	n, err := r.GetFrame(out, 64)
	if err != nil {
		t.Fatalf("GetFrame returned error: %v", err)
	}
	if string(out[:n]) != "hello" {
		t.Fatalf("got %q, want %q", out[:n], "hello")
	}

	n, err = r.GetFrame(out, 64)
	if err != nil {
		t.Fatalf("GetFrame returned error: %v", err)
	}
	if string(out[:n]) != "world!" {
		t.Fatalf("got %q, want %q", out[:n], "world!")
	}
}

func TestGetFrameCleanEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	out := make([]byte, 16)
	n, err := r.GetFrame(out, 16)
	if err != nil {
		t.Fatalf("expected clean EOF, got error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 bytes on clean EOF, got %d", n)
	}
}

func TestGetFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutFrame([]byte("hello")); err != nil {
		t.Fatalf("PutFrame returned error: %v", err)
	}

	truncated := buf.Bytes()[:headerSize+2] // header says 5 bytes, only 2 present
	r := NewReader(bytes.NewReader(truncated))
	out := make([]byte, 16)
	_, err := r.GetFrame(out, 16)
	if err == nil {
		t.Fatalf("expected error on truncated frame")
	}
	if err == io.EOF {
		t.Fatalf("truncated read should not surface as clean EOF")
	}
}

func TestGetFrameOversize(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutFrame(make([]byte, 100)); err != nil {
		t.Fatalf("PutFrame returned error: %v", err)
	}

	r := NewReader(&buf)
	out := make([]byte, 50)
	_, err := r.GetFrame(out, 50)
	if err != ErrOversize {
		t.Fatalf("expected ErrOversize, got %v", err)
	}
}

func TestGetFrameZeroLength(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutFrame(nil); err != nil {
		t.Fatalf("PutFrame returned error: %v", err)
	}

	r := NewReader(&buf)
	out := make([]byte, 16)
	n, err := r.GetFrame(out, 16)
	if err != nil {
		t.Fatalf("GetFrame returned error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0-length frame, got %d", n)
	}
}
