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

import "math/rand"

const (
	// PortMin and PortMax bound the random listening-port range.
	PortMin = 40000
	PortMax = 65000
	// PortResMaxAttempts is the bind-failure ceiling before reservation gives up.
	PortResMaxAttempts = 3

	// randSpan mirrors RAND_MAX+1 on a platform where RAND_MAX is 2^31-1 —
	// the same span rand.Int31 draws from — so the rejection-sampling
	// arithmetic below matches the source's random_minmax bin-size/defect
	// computation exactly.
	randSpan = uint64(1) << 31
)

// randomMinMax draws a uniform integer in [min, max] using rejection
// sampling to eliminate modulo bias: the draw space is divided into
// num_bins equal-sized buckets of bin_size pre-images each, and draws
// landing in the leftover "defect" region at the top of the range are
// discarded and re-drawn so every bucket has exactly the same number of
// pre-images.
func randomMinMax(min, max int) int {
	numBins := uint64(max-min) + 1
	binSize := randSpan / numBins
	defect := randSpan % numBins

	for {
		x := uint64(rand.Int31())
		if x < randSpan-defect {
			return min + int(x/binSize)
		}
	}
}

// Binder attempts to reserve a listening socket on port. It returns ok=false
// (without error) for an ordinary bind failure (port in use), and is the
// negotiate package's sole external collaborator for socket primitives —
// spec.md §1 places listen/bind out of this package's scope.
type Binder func(port uint16) (listener any, ok bool)

// reservePorts attempts to bind `streams` distinct random listening ports in
// [PortMin, PortMax], retrying failed binds up to PortResMaxAttempts times
// before giving up (the attempt counter resets on every success). Duplicate
// proposals within this reservation round are rejected by linear scan
// before each bind attempt, matching the source's behavior.
//
// It returns the ports and listeners reserved so far, and ok=false if fewer
// than `streams` were reserved once the attempt ceiling was reached.
func reservePorts(streams int, bind Binder) (ports []uint16, listeners []any, ok bool) {
	attempts := 0
	for len(ports) < streams && attempts < PortResMaxAttempts {
		candidate := uint16(randomMinMax(PortMin, PortMax))

		dup := false
		for _, p := range ports {
			if p == candidate {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		ln, bound := bind(candidate)
		if !bound {
			attempts++
			continue
		}
		attempts = 0
		ports = append(ports, candidate)
		listeners = append(listeners, ln)
	}
	return ports, listeners, len(ports) == streams
}
