package cache

import (
	"fmt"
	"math/bits"
	"sync/atomic"
)

// Settings is the immutable geometry and behavior of one device. It is copied
// into the device when built.
type Settings struct {
	Associativity int
	// BlockSize is the line size for caches and the page size for TLBs.
	BlockSize int
	// TotalSize in bytes. Used to derive NumBlocks when NumBlocks is zero.
	TotalSize uint64
	NumBlocks int

	RecordUtilization bool
	Inclusive         bool
	Coherent          bool
	// PIDTagged makes lookups match the reference PID as well as the tag.
	PIDTagged bool

	// ID is the index of the device in its snoop filter, or -1.
	ID int

	// Recording is shared by every device of a hierarchy and toggled by the
	// driver. Nil means always recording.
	Recording *atomic.Bool
}

// DefaultSettings returns a 32KB, 8-way cache with 64B lines.
func DefaultSettings() Settings {
	return Settings{
		Associativity: 8,
		BlockSize:     64,
		TotalSize:     32 * 1024,
		ID:            -1,
	}
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}

func log2(v int) uint {
	return uint(bits.TrailingZeros64(uint64(v)))
}

// normalize fills in NumBlocks and validates the geometry.
func (s Settings) normalize() (Settings, error) {
	if !isPowerOfTwo(s.Associativity) {
		return s, fmt.Errorf("associativity %d: %w", s.Associativity, ErrNotPowerOfTwo)
	}

	if !isPowerOfTwo(s.BlockSize) {
		return s, fmt.Errorf("block size %d: %w", s.BlockSize, ErrNotPowerOfTwo)
	}

	if s.BlockSize < 4 {
		return s, fmt.Errorf("block size %d: %w", s.BlockSize, ErrBlockTooSmall)
	}

	if s.NumBlocks == 0 {
		if s.TotalSize%uint64(s.BlockSize) != 0 {
			return s, fmt.Errorf("total size %d, block size %d: %w",
				s.TotalSize, s.BlockSize, ErrSizeNotMultiple)
		}

		s.NumBlocks = int(s.TotalSize / uint64(s.BlockSize))
	}

	if !isPowerOfTwo(s.NumBlocks) {
		return s, fmt.Errorf("block count %d: %w", s.NumBlocks, ErrNotPowerOfTwo)
	}

	if s.NumBlocks < s.Associativity {
		return s, fmt.Errorf("%d blocks, %d ways: %w",
			s.NumBlocks, s.Associativity, ErrTooFewBlocks)
	}

	if s.TotalSize == 0 {
		s.TotalSize = uint64(s.NumBlocks) * uint64(s.BlockSize)
	}

	return s, nil
}

// Validate reports whether the settings describe a buildable device.
func (s Settings) Validate() error {
	_, err := s.normalize()
	return err
}

// String formats the settings for the configuration dump.
func (s Settings) String() string {
	return fmt.Sprintf(
		"associativity: %d, block_size: %d, total_size: %d, inclusive: %t, "+
			"coherent_cache: %t, id: %d, num_blocks: %d",
		s.Associativity, s.BlockSize, s.TotalSize, s.Inclusive,
		s.Coherent, s.ID, s.NumBlocks)
}
