package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCountersAccumulate(t *testing.T) {
	c := &Counters{}
	c.AddBlocksIn(3)
	c.AddBytesIn(4096)
	c.AddDuplicates(1)

	got := c.toSlice()
	want := []string{"3", "0", "4096", "0", "1", "0", "0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestRegistryCollectsCurrentValues(t *testing.T) {
	c := &Counters{}
	c.AddBlocksIn(7)
	c.AddBytesOut(1024)

	reg := NewRegistry(c)
	ch := make(chan prometheus.Metric, 16)
	reg.Collect(ch)
	close(ch)

	var sawBlocksIn, sawBytesOut bool
	for m := range ch {
		var d dto.Metric
		if err := m.Write(&d); err != nil {
			t.Fatalf("Write: %v", err)
		}
		switch {
		case d.Counter.GetValue() == 7:
			sawBlocksIn = true
		case d.Counter.GetValue() == 1024:
			sawBytesOut = true
		}
	}
	if !sawBlocksIn || !sawBytesOut {
		t.Fatalf("expected to observe both counter values in the collected metrics")
	}
}
