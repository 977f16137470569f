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

// Package reassembler implements the join task: it drains the block queue,
// holds out-of-order arrivals in a sorted cache, discards duplicates, and
// writes blocks to the output stream in strict sequence-number order.
package reassembler

import (
	"io"
	"log"

	"github.com/xtaci/nap-streams/internal/block"
	"github.com/xtaci/nap-streams/internal/blockqueue"
	"github.com/xtaci/nap-streams/internal/eventbus"
	"github.com/xtaci/nap-streams/internal/telemetry"
)

// Run drains r until the block queue closes (clean EOF) or an output write
// fails, writing blocks to out in ssn order as runs of contiguous sequence
// numbers become available. It always closes r on exit and publishes exactly
// one event on bus: OK on clean completion, EPIP if out.Write fails.
// counters may be nil, in which case no counters are updated.
func Run(taskID string, r *blockqueue.Reader, out io.Writer, bus *eventbus.Bus, counters *telemetry.Counters, quiet bool) {
	defer r.Close()

	c := &cache{}
	nextSSN := uint32(0)

	for {
		blk := r.Get()
		if blk == nil {
			bus.Notify(taskID, eventbus.OK)
			return
		}

		if blk.Seq < nextSSN {
			block.Free(blk) // already emitted, a straggler duplicate
			if counters != nil {
				counters.AddStragglers(1)
			}
			continue
		}
		if !c.insert(blk) {
			block.Free(blk) // duplicate of a still-pending block
			if counters != nil {
				counters.AddDuplicates(1)
			}
			continue
		}

		for {
			head := c.peekHead()
			if head == nil || head.Seq != nextSSN {
				break
			}
			head = c.popHead()
			if _, err := out.Write(head.Payload()); err != nil {
				block.Free(head)
				if !quiet {
					log.Printf("reassembler %s: write output: %v", taskID, err)
				}
				bus.Notify(taskID, eventbus.EPIP)
				return
			}
			block.Free(head)
			nextSSN++
		}
	}
}

// cache is the ordered blk_cache: a sorted singly-linked list keyed by ssn,
// matching SPEC_FULL.md §4.7's sort-insertion policy. A linear list is
// sufficient for the small stream counts this system targets.
type cache struct {
	head *node
}

type node struct {
	blk  *block.Block
	next *node
}

// insert places blk at its sorted position, returning false (and leaving
// the cache unchanged) if ssn already has an entry — the cached block wins,
// an arbitrary but consistent choice.
func (c *cache) insert(blk *block.Block) bool {
	n := &node{blk: blk}

	if c.head == nil {
		c.head = n
		return true
	}
	if c.head.blk.Seq == blk.Seq {
		return false
	}
	if c.head.blk.Seq > blk.Seq {
		n.next = c.head
		c.head = n
		return true
	}

	prev := c.head
	for prev.next != nil && prev.next.blk.Seq <= blk.Seq {
		if prev.next.blk.Seq == blk.Seq {
			return false
		}
		prev = prev.next
	}
	n.next = prev.next
	prev.next = n
	return true
}

func (c *cache) peekHead() *block.Block {
	if c.head == nil {
		return nil
	}
	return c.head.blk
}

func (c *cache) popHead() *block.Block {
	blk := c.head.blk
	c.head = c.head.next
	return blk
}
