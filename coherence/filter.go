// Package coherence implements the snoop filter that keeps coherent caches
// consistent.
package coherence

import (
	"errors"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/cachesim/cache"
)

// ErrBadID is returned when registering a cache with an out-of-range or
// reused snoop ID.
var ErrBadID = errors.New("invalid snoop id")

// Invalidator is a cache that can drop a line on request.
type Invalidator interface {
	Invalidate(tag uint64, kind cache.InvalidationKind)
}

type entry struct {
	sharers *bitset.BitSet
	dirty   bool
}

// Filter tracks which snooped caches hold each line. Snoop IDs are dense
// and assigned when the hierarchy is built.
type Filter struct {
	caches []Invalidator
	lines  map[uint64]*entry

	numWrites      uint64
	numWritebacks  uint64
	numInvalidates uint64
}

// NewFilter creates a filter for n snooped caches. Caches are attached with
// Register once they are built.
func NewFilter(n int) *Filter {
	return &Filter{
		caches: make([]Invalidator, n),
		lines:  make(map[uint64]*entry),
	}
}

// Register attaches the cache with the given snoop ID.
func (f *Filter) Register(id int, c Invalidator) error {
	if id < 0 || id >= len(f.caches) || f.caches[id] != nil {
		return fmt.Errorf("%d: %w", id, ErrBadID)
	}

	f.caches[id] = c

	return nil
}

// NumCaches returns the number of snoop IDs.
func (f *Filter) NumCaches() int { return len(f.caches) }

// Snoop records an access to tag by cache id. A write invalidates every
// other sharer and leaves the line dirty. A read of a dirty line counts a
// writeback.
func (f *Filter) Snoop(tag uint64, id int, isWrite bool) {
	e, ok := f.lines[tag]
	if !ok {
		e = &entry{sharers: bitset.New(uint(len(f.caches)))}
		f.lines[tag] = e
	}

	self := uint(id)
	owners := e.sharers.Count()

	if isWrite {
		f.numWrites++

		if owners > 1 || (owners == 1 && !e.sharers.Test(self)) {
			for i, ok := e.sharers.NextSet(0); ok; i, ok = e.sharers.NextSet(i + 1) {
				if i == self {
					continue
				}

				f.numInvalidates++
				f.caches[i].Invalidate(tag, cache.InvalidationCoherence)
				e.sharers.Clear(i)
			}
		}

		e.dirty = true
	} else if e.dirty {
		f.numWritebacks++
		e.dirty = false
	}

	e.sharers.Set(self)
}

// SnoopEviction records that cache id no longer holds tag.
func (f *Filter) SnoopEviction(tag uint64, id int) {
	e, ok := f.lines[tag]
	if !ok {
		return
	}

	if e.dirty {
		f.numWritebacks++
		e.dirty = false
	}

	e.sharers.Clear(uint(id))

	if e.sharers.None() {
		delete(f.lines, tag)
	}
}

// Sharers returns the snoop IDs holding tag in increasing order.
func (f *Filter) Sharers(tag uint64) []int {
	e, ok := f.lines[tag]
	if !ok {
		return nil
	}

	ids := make([]int, 0, e.sharers.Count())
	for i, ok := e.sharers.NextSet(0); ok; i, ok = e.sharers.NextSet(i + 1) {
		ids = append(ids, int(i))
	}

	return ids
}

// Dirty reports whether the last access to tag was a write that has not been
// written back.
func (f *Filter) Dirty(tag uint64) bool {
	e, ok := f.lines[tag]
	return ok && e.dirty
}

// Stats is a snapshot of the filter counters.
type Stats struct {
	Writes      uint64
	Writebacks  uint64
	Invalidates uint64
}

// Stats returns the current counters.
func (f *Filter) Stats() Stats {
	return Stats{
		Writes:      f.numWrites,
		Writebacks:  f.numWritebacks,
		Invalidates: f.numInvalidates,
	}
}

// Print writes the coherence report.
func (f *Filter) Print(w io.Writer) {
	fmt.Fprintf(w, "Coherence stats:\n")
	fmt.Fprintf(w, "    %-18s%20d\n", "Total writes:", f.numWrites)
	fmt.Fprintf(w, "    %-18s%20d\n", "Invalidations:", f.numInvalidates)
	fmt.Fprintf(w, "    %-18s%20d\n", "Writebacks:", f.numWritebacks)
}
