// Package bufferpool implements a size-indexed pool of native-order byte
// buffers, amortizing allocation across inference calls. It generalizes
// the fixed-size sync.Pool idiom (one pool per exact buffer size) to a
// smallest-fit free list, since the backend stages tensors of varying
// byte length.
package bufferpool

import (
	"encoding/binary"
	"sort"
)

// DefaultMaxPooled is the default maximum number of buffers retained.
const DefaultMaxPooled = 16

// NativeOrder is the byte order buffers returned by Lease are stamped
// with. Buffers returned in any other order are rejected by Return.
var NativeOrder = binary.NativeEndian

// Buffer is a leased native-order byte buffer. Position tracks the
// next unread/unwritten offset, mirroring the position-zero-on-lease
// contract from the spec.
type Buffer struct {
	Bytes    []byte
	Position int
	native   bool
}

func newBuffer(capacity int) *Buffer {
	return &Buffer{Bytes: make([]byte, capacity), native: true}
}

// Capacity returns the buffer's total byte capacity.
func (b *Buffer) Capacity() int {
	if b == nil {
		return 0
	}

	return len(b.Bytes)
}

// Pool is an unordered collection of native-order byte buffers bounded
// by a fixed maximum member count.
type Pool struct {
	maxPooled int
	members   []*Buffer
}

// New creates a pool that retains at most maxPooled buffers. A
// non-positive maxPooled falls back to DefaultMaxPooled.
func New(maxPooled int) *Pool {
	if maxPooled <= 0 {
		maxPooled = DefaultMaxPooled
	}

	return &Pool{maxPooled: maxPooled}
}

// Lease returns a native-order buffer with capacity >= minCapacity and
// position 0. The smallest suitable pooled buffer is reused and removed
// from the pool; if none fits, a fresh buffer is allocated.
func (p *Pool) Lease(minCapacity int) *Buffer {
	bestIdx := -1

	for i, b := range p.members {
		if b.Capacity() < minCapacity {
			continue
		}

		if bestIdx == -1 || b.Capacity() < p.members[bestIdx].Capacity() {
			bestIdx = i
		}
	}

	if bestIdx == -1 {
		return newBuffer(minCapacity)
	}

	b := p.members[bestIdx]
	p.members = append(p.members[:bestIdx], p.members[bestIdx+1:]...)
	b.Position = 0

	return b
}

// Return gives a buffer back to the pool. Nil and non-native-order
// buffers are rejected (silently dropped, per the no-fail contract).
// Position is reset to 0. If the pool is already at capacity, Return
// evicts the currently-smallest member only if the returned buffer is
// strictly larger; otherwise the returned buffer is dropped.
func (p *Pool) Return(b *Buffer) {
	if b == nil || !b.native {
		return
	}

	b.Position = 0

	if len(p.members) < p.maxPooled {
		p.members = append(p.members, b)
		return
	}

	smallestIdx := 0
	for i, m := range p.members {
		if m.Capacity() < p.members[smallestIdx].Capacity() {
			smallestIdx = i
		}
	}

	if b.Capacity() > p.members[smallestIdx].Capacity() {
		p.members[smallestIdx] = b
	}
}

// Size returns the number of buffers currently held.
func (p *Pool) Size() int {
	return len(p.members)
}

// Clear empties the pool.
func (p *Pool) Clear() {
	p.members = nil
}

// capacities returns a sorted snapshot of member capacities, used only
// by tests to assert eviction behavior without depending on slice order.
func (p *Pool) capacities() []int {
	out := make([]int, len(p.members))
	for i, b := range p.members {
		out[i] = b.Capacity()
	}

	sort.Ints(out)

	return out
}
