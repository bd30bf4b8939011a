// Package stats collects and reports what happens inside caching devices.
package stats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/memref"
)

// Options configure a CacheStats.
type Options struct {
	// Name is the device name used in reports and file names.
	Name string
	// Dir receives the utilization samples (<Name>.dat). Empty disables the
	// sample file but utilization is still aggregated.
	Dir       string
	BlockSize int
	// MissFile, when set, receives one "0x<pc>,0x<addr>" line per miss.
	// A .gz, .zst or .lz4 extension compresses the output.
	MissFile          string
	WarmupEnabled     bool
	Coherent          bool
	RecordUtilization bool
}

// CacheStats is the statistics sink of one device.
type CacheStats struct {
	opts      Options
	blockBits uint

	hits                 uint64
	misses               uint64
	compulsoryMisses     uint64
	childHits            uint64
	inclusiveInvalidates uint64
	coherenceInvalidates uint64
	prefetchHits         uint64
	prefetchMisses       uint64
	flushes              uint64

	hitsAtReset      uint64
	missesAtReset    uint64
	childHitsAtReset uint64

	seenLines *roaring64.Bitmap

	missOut io.WriteCloser

	histogram      []uint64
	bytesUsed      uint64
	bytesRequested uint64
	utilOut        *bufio.Writer
	utilFile       *os.File

	err error
}

// NewCacheStats creates a sink. Failing to open an output file does not
// return an error here; it is reported by Err so that building the device
// fails.
func NewCacheStats(opts Options) *CacheStats {
	s := &CacheStats{
		opts:      opts,
		seenLines: roaring64.New(),
	}

	if opts.BlockSize > 0 {
		s.blockBits = uint(bits.TrailingZeros64(uint64(opts.BlockSize)))
	}

	if opts.MissFile != "" {
		out, err := CreateOutput(opts.MissFile)
		if err != nil {
			s.err = fmt.Errorf("miss file: %w", err)
		}

		s.missOut = out
	}

	if opts.RecordUtilization && opts.Dir != "" && s.err == nil {
		f, err := os.Create(filepath.Join(opts.Dir, opts.Name+".dat"))
		if err != nil {
			s.err = fmt.Errorf("utilization file: %w", err)
		} else {
			s.utilFile = f
			s.utilOut = bufio.NewWriter(f)
		}
	}

	return s
}

// Name returns the device name.
func (s *CacheStats) Name() string { return s.opts.Name }

// Err reports an output file that could not be opened.
func (s *CacheStats) Err() error { return s.err }

// Access counts a lookup at the device itself.
func (s *CacheStats) Access(ref memref.Ref, hit bool, _ *cache.Block) {
	if ref.Kind.IsPrefetch() {
		if hit {
			s.prefetchHits++
		} else {
			s.prefetchMisses++
		}

		return
	}

	if hit {
		s.hits++
		return
	}

	s.misses++

	if s.missOut != nil {
		s.dumpMiss(ref)
	}

	if s.seenLines.CheckedAdd(ref.Addr >> s.blockBits) {
		s.compulsoryMisses++
	}
}

// ChildAccess counts hits below the device. Child misses already show up as
// accesses here.
func (s *CacheStats) ChildAccess(_ memref.Ref, hit bool, _ *cache.Block) {
	if hit {
		s.childHits++
	}
}

// Invalidate counts a removed line by cause.
func (s *CacheStats) Invalidate(kind cache.InvalidationKind) {
	switch kind {
	case cache.InvalidationInclusive:
		s.inclusiveInvalidates++
	case cache.InvalidationCoherence:
		s.coherenceInvalidates++
	}
}

// Flush counts a flush reference.
func (s *CacheStats) Flush(memref.Ref) {
	s.flushes++
}

// Reset snapshots the warm-up counts and zeroes the counters. Lines seen
// during warm-up do not count as compulsory misses afterwards.
func (s *CacheStats) Reset() {
	s.hitsAtReset = s.hits
	s.missesAtReset = s.misses
	s.childHitsAtReset = s.childHits

	s.hits = 0
	s.misses = 0
	s.compulsoryMisses = 0
	s.childHits = 0
	s.inclusiveInvalidates = 0
	s.coherenceInvalidates = 0
	s.prefetchHits = 0
	s.prefetchMisses = 0
	s.flushes = 0
}

func (s *CacheStats) dumpMiss(ref memref.Ref) {
	pc := ref.PC
	if ref.Kind.IsInstr() {
		pc = ref.Addr
	}

	fmt.Fprintf(s.missOut, "0x%x,0x%x\n", pc, ref.Addr)
}

// FoldLine adds the used bytes of one resident line to the utilization
// histogram.
func (s *CacheStats) FoldLine(used *bitset.BitSet) {
	if used == nil {
		return
	}

	if s.histogram == nil {
		s.histogram = make([]uint64, used.Len())
	}

	s.bytesUsed += uint64(used.Count())
	s.bytesRequested += uint64(used.Len())

	for i, ok := used.NextSet(0); ok; i, ok = used.NextSet(i + 1) {
		s.histogram[i]++
	}
}

// WriteSample writes the histogram gathered since the last sample and
// clears it.
func (s *CacheStats) WriteSample(ref memref.Ref, requests uint64) {
	if s.utilOut != nil {
		s.writeSample(s.utilOut, ref.PC, requests)
	}

	clear(s.histogram)
	s.bytesUsed = 0
	s.bytesRequested = 0
}

func (s *CacheStats) writeSample(w io.Writer, pc, requests uint64) {
	fmt.Fprintf(w, "{{%d, %d},{", requests, pc)

	for i, v := range s.histogram {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}

		fmt.Fprint(w, v)
	}

	ratio := 0.0
	if s.bytesRequested > 0 {
		ratio = float64(s.bytesUsed) / float64(s.bytesRequested)
	}

	fmt.Fprintf(w, "}, %g, %d, %d},\n", ratio, s.bytesUsed, s.bytesRequested)
}

// Utilization returns the current histogram and byte counts.
func (s *CacheStats) Utilization() (histogram []uint64, used, requested uint64) {
	return s.histogram, s.bytesUsed, s.bytesRequested
}

// Close flushes and closes the output files.
func (s *CacheStats) Close() error {
	var errs []error

	if s.missOut != nil {
		errs = append(errs, s.missOut.Close())
		s.missOut = nil
	}

	if s.utilOut != nil {
		errs = append(errs, s.utilOut.Flush(), s.utilFile.Close())
		s.utilOut = nil
	}

	return errors.Join(errs...)
}
