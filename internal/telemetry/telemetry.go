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

// Package telemetry collects transfer counters and periodically appends them
// to a CSV file, the same shape as std/snmp.go's periodic dump, generalized
// from kcp.DefaultSnmp's fixed counter set to this system's own counters.
// Registry additionally presents them as a Prometheus collector of counter
// metrics.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters holds the running totals tracked for one transfer. All fields are
// updated with atomic operations so reader tasks, the reassembler, and the
// periodic logger can touch them concurrently without locking.
type Counters struct {
	BlocksIn    int64
	BlocksOut   int64
	BytesIn     int64
	BytesOut    int64
	Duplicates  int64
	Stragglers  int64
	StreamErrs  int64
}

func (c *Counters) AddBlocksIn(n int64)   { atomic.AddInt64(&c.BlocksIn, n) }
func (c *Counters) AddBlocksOut(n int64)  { atomic.AddInt64(&c.BlocksOut, n) }
func (c *Counters) AddBytesIn(n int64)    { atomic.AddInt64(&c.BytesIn, n) }
func (c *Counters) AddBytesOut(n int64)   { atomic.AddInt64(&c.BytesOut, n) }
func (c *Counters) AddDuplicates(n int64) { atomic.AddInt64(&c.Duplicates, n) }
func (c *Counters) AddStragglers(n int64) { atomic.AddInt64(&c.Stragglers, n) }
func (c *Counters) AddStreamErrs(n int64) { atomic.AddInt64(&c.StreamErrs, n) }

func (c *Counters) header() []string {
	return []string{"BlocksIn", "BlocksOut", "BytesIn", "BytesOut", "Duplicates", "Stragglers", "StreamErrs"}
}

func (c *Counters) toSlice() []string {
	return []string{
		fmt.Sprint(atomic.LoadInt64(&c.BlocksIn)),
		fmt.Sprint(atomic.LoadInt64(&c.BlocksOut)),
		fmt.Sprint(atomic.LoadInt64(&c.BytesIn)),
		fmt.Sprint(atomic.LoadInt64(&c.BytesOut)),
		fmt.Sprint(atomic.LoadInt64(&c.Duplicates)),
		fmt.Sprint(atomic.LoadInt64(&c.Stragglers)),
		fmt.Sprint(atomic.LoadInt64(&c.StreamErrs)),
	}
}

// CSVLogger periodically appends a row of counters to path, formatted the
// same way as std/snmp.go: the path itself is a time.Format layout so
// log rotation by date/hour falls out of the filename alone.
func CSVLogger(path string, interval int, c *Counters) {
	if path == "" || interval == 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		logdir, logfile := filepath.Split(path)
		f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Println(err)
			return
		}
		w := csv.NewWriter(f)
		if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
			if err := w.Write(append([]string{"Unix"}, c.header()...)); err != nil {
				log.Println(err)
			}
		}
		if err := w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, c.toSlice()...)); err != nil {
			log.Println(err)
		}
		w.Flush()
		f.Close()
	}
}

// Registry wraps Counters as a Prometheus collector of counter metrics. It
// samples Counters on every collection rather than duplicating the atomic
// bookkeeping. Neither command registers it or serves a metrics endpoint.
type Registry struct {
	counters *Counters
	desc     map[string]*prometheus.Desc
}

func NewRegistry(c *Counters) *Registry {
	mk := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("napstreams_"+name, help, nil, nil)
	}
	return &Registry{
		counters: c,
		desc: map[string]*prometheus.Desc{
			"blocks_in":   mk("blocks_in_total", "blocks received from any stream"),
			"blocks_out":  mk("blocks_out_total", "blocks written to output in order"),
			"bytes_in":    mk("bytes_in_total", "bytes received from any stream"),
			"bytes_out":   mk("bytes_out_total", "bytes written to output"),
			"duplicates":  mk("duplicate_blocks_total", "duplicate blocks discarded"),
			"stragglers":  mk("straggler_blocks_total", "blocks arriving after their ssn was already emitted"),
			"stream_errs": mk("stream_errors_total", "ESOCK events observed"),
		},
	}
}

func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range r.desc {
		ch <- d
	}
}

func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	emit := func(key string, v int64) {
		ch <- prometheus.MustNewConstMetric(r.desc[key], prometheus.CounterValue, float64(v))
	}
	emit("blocks_in", atomic.LoadInt64(&r.counters.BlocksIn))
	emit("blocks_out", atomic.LoadInt64(&r.counters.BlocksOut))
	emit("bytes_in", atomic.LoadInt64(&r.counters.BytesIn))
	emit("bytes_out", atomic.LoadInt64(&r.counters.BytesOut))
	emit("duplicates", atomic.LoadInt64(&r.counters.Duplicates))
	emit("stragglers", atomic.LoadInt64(&r.counters.Stragglers))
	emit("stream_errs", atomic.LoadInt64(&r.counters.StreamErrs))
}
