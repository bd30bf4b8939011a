package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func writeCount(w io.Writer, prefix, label string, v uint64) {
	fmt.Fprintf(w, "%s%-18s%20d\n", prefix, label, v)
}

func writeRate(w io.Writer, prefix, label string, rate float64) {
	fmt.Fprintf(w, "%s%-18s%19.2f%%\n", prefix, label, rate*100)
}

// Print writes the human-readable report of the device.
func (s *CacheStats) Print(w io.Writer, prefix string) {
	fmt.Fprintf(w, "%s%s stats:\n", prefix, s.opts.Name)
	prefix += "    "

	if s.opts.WarmupEnabled {
		writeCount(w, prefix, "Warmup hits:", s.hitsAtReset)
		writeCount(w, prefix, "Warmup misses:", s.missesAtReset)
	}

	writeCount(w, prefix, "Hits:", s.hits)
	writeCount(w, prefix, "Misses:", s.misses)
	writeCount(w, prefix, "Compulsory misses:", s.compulsoryMisses)

	if s.opts.Coherent {
		fmt.Fprintf(w, "%s%-21s%17d\n", prefix, "Parent invalidations:", s.inclusiveInvalidates)
		fmt.Fprintf(w, "%s%-20s%18d\n", prefix, "Write invalidations:", s.coherenceInvalidates)
	} else {
		writeCount(w, prefix, "Invalidations:", s.inclusiveInvalidates)
	}

	if s.prefetchHits+s.prefetchMisses > 0 {
		writeCount(w, prefix, "Prefetch hits:", s.prefetchHits)
		writeCount(w, prefix, "Prefetch misses:", s.prefetchMisses)
	}

	if s.flushes > 0 {
		writeCount(w, prefix, "Flushes:", s.flushes)
	}

	if s.hits+s.misses > 0 {
		label := "Miss rate:"
		if s.childHits != 0 {
			label = "Local miss rate:"
		}

		writeRate(w, prefix, label, s.MissRate())
	}

	if s.childHits != 0 {
		writeCount(w, prefix, "Child hits:", s.childHits)
		writeRate(w, prefix, "Total miss rate:", s.TotalMissRate())
	}
}

// WriteReport writes the report to <dir>/<name>.txt.
func (s *CacheStats) WriteReport(dir string) error {
	f, err := os.Create(filepath.Join(dir, s.opts.Name+".txt"))
	if err != nil {
		return fmt.Errorf("report for %s: %w", s.opts.Name, err)
	}

	s.Print(f, "")

	return f.Close()
}
