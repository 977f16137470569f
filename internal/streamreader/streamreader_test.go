package streamreader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/xtaci/nap-streams/internal/blockqueue"
	"github.com/xtaci/nap-streams/internal/codec"
	"github.com/xtaci/nap-streams/internal/eventbus"
	"github.com/xtaci/nap-streams/internal/framing"
	"github.com/xtaci/nap-streams/internal/negotiate"
	"github.com/xtaci/nap-streams/internal/telemetry"
)

func encodeTestBlock(t *testing.T, fw *framing.Writer, c codec.Codec, seq uint32, payload []byte) {
	t.Helper()
	wire, err := c.Encode(payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	body := make([]byte, 8+len(wire))
	binary.BigEndian.PutUint32(body[0:4], seq)
	binary.BigEndian.PutUint32(body[4:8], uint32(len(wire)))
	copy(body[8:], wire)
	if err := fw.PutFrame(body); err != nil {
		t.Fatalf("PutFrame: %v", err)
	}
}

func TestRunForwardsBlocksThenCleanEOF(t *testing.T) {
	var buf bytes.Buffer
	fw := framing.NewWriter(&buf)
	c, _ := codec.ByID(negotiate.CodecNone)
	encodeTestBlock(t, fw, c, 0, []byte("first"))
	encodeTestBlock(t, fw, c, 1, []byte("second"))

	q := blockqueue.New(4)
	w := q.Writer()
	r := q.Reader()
	bus := eventbus.New(1)

	counters := &telemetry.Counters{}
	done := make(chan struct{})
	go func() {
		Run("task-1", &buf, 4096, c, w, bus, counters, true)
		close(done)
	}()

	b1 := r.Get()
	if b1 == nil || string(b1.Payload()) != "first" {
		t.Fatalf("expected first block, got %+v", b1)
	}
	b2 := r.Get()
	if b2 == nil || string(b2.Payload()) != "second" {
		t.Fatalf("expected second block, got %+v", b2)
	}
	b3 := r.Get()
	if b3 != nil {
		t.Fatalf("expected nil after clean EOF, got %+v", b3)
	}
	<-done
	if counters.BlocksIn != 2 {
		t.Fatalf("expected 2 blocks counted in, got %d", counters.BlocksIn)
	}
}

type errAfterReader struct {
	data []byte
	err  error
}

func (e *errAfterReader) Read(p []byte) (int, error) {
	if len(e.data) == 0 {
		return 0, e.err
	}
	n := copy(p, e.data)
	e.data = e.data[n:]
	return n, nil
}

func TestRunPublishesESOCKOnSocketError(t *testing.T) {
	src := &errAfterReader{err: errors.New("connection reset")}
	q := blockqueue.New(4)
	w := q.Writer()
	bus := eventbus.New(1)
	c, _ := codec.ByID(negotiate.CodecNone)
	counters := &telemetry.Counters{}

	Run("task-2", src, 4096, c, w, bus, counters, true)

	ev := bus.WaitNotify()
	if ev.Kind != eventbus.ESOCK {
		t.Fatalf("expected ESOCK, got %v", ev.Kind)
	}
	if counters.StreamErrs != 1 {
		t.Fatalf("expected 1 stream error counted, got %d", counters.StreamErrs)
	}
}

func TestRunPublishesEPIPWhenQueueClosed(t *testing.T) {
	var buf bytes.Buffer
	fw := framing.NewWriter(&buf)
	c, _ := codec.ByID(negotiate.CodecNone)
	encodeTestBlock(t, fw, c, 0, []byte("orphaned"))

	q := blockqueue.New(0)
	w := q.Writer()
	r := q.Reader()
	r.Close() // consumer departs before the reader ever runs

	bus := eventbus.New(1)
	Run("task-3", &buf, 4096, c, w, bus, nil, true)

	ev := bus.WaitNotify()
	if ev.Kind != eventbus.EPIP {
		t.Fatalf("expected EPIP, got %v", ev.Kind)
	}
}
