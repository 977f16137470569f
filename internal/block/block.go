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

// Package block defines the fixed-capacity data unit striped across parallel
// streams: a sequence-numbered buffer that is exclusively owned by one task
// at a time, ownership transferring on every queue handoff.
package block

// Block is a contiguous buffer of fixed capacity tagged with a stream
// sequence number and a used length. Exactly one goroutine holds a given
// Block at any instant; there is no internal locking.
type Block struct {
	Seq  uint32 // ssn: monotone sequence number assigned at issue time
	Len  int    // used length, Len <= cap(Data)
	Data []byte // capacity-blen backing buffer
}

// Alloc returns a new Block with a zeroed backing buffer of capacity blen.
// blen must be > 0; allocation failure in the source's C sense (malloc
// returning NULL) has no Go equivalent, so there is no sentinel "no block"
// return here — an out-of-memory condition panics via the runtime, same as
// any other Go allocation.
func Alloc(blen int) *Block {
	return &Block{Data: make([]byte, blen)}
}

// Free releases a Block's resources. It is a no-op beyond dropping the
// reference: the Go garbage collector reclaims the backing array once no
// reader holds it. The call is kept at every site where the C source calls
// blk_free so ownership transfer reads identically to the original: a block
// is always either enqueued, or freed, never both.
func Free(b *Block) {
	_ = b
}

// Payload returns the used portion of the block's data.
func (b *Block) Payload() []byte {
	return b.Data[:b.Len]
}
