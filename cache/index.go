package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/mem/vm"
)

// A tagIndex finds the block holding a tag. The directory and hashed
// implementations must always agree.
type tagIndex interface {
	// find returns the absolute block position of tag.
	find(tag uint64, pid vm.PID) (pos int, ok bool)
	// replace records that pos now holds newTag instead of oldTag.
	replace(oldTag, newTag uint64, pos int)
	erase(tag uint64)
}

// directoryIndex looks tags up in the akita directory mirroring the
// device's blocks.
type directoryIndex struct {
	dir       *akitacache.DirectoryImpl
	ways      int
	blockBits uint
	pidTagged bool
}

func (x directoryIndex) find(tag uint64, pid vm.PID) (int, bool) {
	if !x.pidTagged {
		pid = 0
	}

	entry := x.dir.Lookup(pid, tag<<x.blockBits)
	if entry == nil || !entry.IsValid {
		return 0, false
	}

	return entry.SetID*x.ways + entry.WayID, true
}

// The device mirrors every fill and invalidation into the directory itself.
func (x directoryIndex) replace(oldTag, newTag uint64, pos int) {}

func (x directoryIndex) erase(tag uint64) {}

// hashIndex maps tags straight to block positions. It pays off once
// hierarchies are large enough that directory scans dominate.
type hashIndex struct {
	positions map[uint64]int
}

func newHashIndex(blocks []Block) *hashIndex {
	h := &hashIndex{positions: make(map[uint64]int, 1<<16)}

	for pos := range blocks {
		if blocks[pos].Tag != TagInvalid {
			h.positions[blocks[pos].Tag] = pos
		}
	}

	return h
}

func (h *hashIndex) find(tag uint64, _ vm.PID) (int, bool) {
	pos, ok := h.positions[tag]
	return pos, ok
}

func (h *hashIndex) replace(oldTag, newTag uint64, pos int) {
	if oldTag != TagInvalid {
		delete(h.positions, oldTag)
	}

	h.positions[newTag] = pos
}

func (h *hashIndex) erase(tag uint64) {
	delete(h.positions, tag)
}
