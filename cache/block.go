// Package cache models set-associative caching devices (caches and TLBs)
// that can be connected into an inclusive and/or coherent hierarchy.
package cache

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/sarchlab/akita/v4/mem/vm"
)

// TagInvalid marks an empty block. Blocks are at least 4 bytes wide, so no
// address shifted by the block-size bits can produce this value.
const TagInvalid = ^uint64(0)

// A Block is one storage slot of a device: a cache line or a TLB entry.
type Block struct {
	Tag uint64
	// PID is only compared by PID-tagged devices (TLBs).
	PID vm.PID
	// Counter is owned by the replacement policy.
	Counter uint64
	Valid   bool
	// Recorded is set once the block is touched while recording is on.
	Recorded bool

	used *bitset.BitSet
}

func newBlock(blockSize uint, trackUtilization bool) Block {
	b := Block{Tag: TagInvalid}
	if trackUtilization {
		b.used = bitset.New(blockSize)
	}

	return b
}

// reset empties the block. Counter belongs to the replacement policy and is
// left alone.
func (b *Block) reset() {
	b.Tag = TagInvalid
	b.Valid = false
	b.clearUsage()
}

func (b *Block) clearUsage() {
	b.Recorded = false
	if b.used != nil {
		b.used.ClearAll()
	}
}

// Touch marks the bytes in [offset, offset+size) as used. Bytes past the end
// of the block are ignored.
func (b *Block) Touch(offset, size uint64, recording bool) {
	if recording {
		b.Recorded = true
	}

	if b.used == nil {
		return
	}

	n := uint64(b.used.Len())
	end := offset + size
	if end > n || end < offset {
		end = n
	}

	for i := offset; i < end; i++ {
		b.used.Set(uint(i))
	}
}

// Bits returns the used-byte set, or nil if utilization is not tracked.
func (b *Block) Bits() *bitset.BitSet {
	return b.used
}
