package ratelimit

import (
	"net"
	"testing"
	"time"
)

func TestNewDisabledIsPassthrough(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	wrapped := New(client, 0)
	if wrapped != client {
		t.Fatalf("expected New with bytesPerSec<=0 to return the original conn unwrapped")
	}
}

func TestWriteDelivers(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	wrapped := New(client, 1_000_000)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 5)
		n, err := server.Read(buf)
		if err != nil || n != 5 || string(buf) != "hello" {
			t.Errorf("unexpected read: n=%d err=%v buf=%q", n, err, buf)
		}
	}()

	n, err := wrapped.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for read")
	}
}
