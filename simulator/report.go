package simulator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/stats"
)

// Split selects the instruction or the data side of a core.
type Split int

// Sides of a core.
const (
	SplitInstruction Split = iota
	SplitData
)

// Levels accepted by CacheMetric.
const (
	LevelFirst = 1
	LevelLast  = 2
)

// CoherenceRow is the snoop filter summary stored by a Recorder.
type CoherenceRow struct {
	RunID       string
	Writes      uint64
	Writebacks  uint64
	Invalidates uint64
}

// CacheMetric returns one counter of a device. Level 1 is the first level of
// core on the given side; level 2 is the last level, indexed by core when
// there are several.
func (s *Simulator) CacheMetric(
	metric stats.Metric,
	level, core int,
	split Split,
) (uint64, error) {
	if core < 0 || core >= s.common.NumCores {
		return 0, fmt.Errorf("core %d: %w", core, ErrWrongCore)
	}

	var d *cache.Device

	switch level {
	case LevelFirst:
		d = s.l1d[core]
		if split == SplitInstruction {
			d = s.l1i[core]
		}
	case LevelLast:
		if len(s.lastLevel) == 0 {
			return 0, fmt.Errorf("level %d: %w", level, ErrWrongLevel)
		}

		d = s.lastLevel[0]
		if len(s.lastLevel) > 1 {
			d = s.lastLevel[core%len(s.lastLevel)]
		}
	default:
		return 0, fmt.Errorf("level %d: %w", level, ErrWrongLevel)
	}

	if d == nil || int(d.ID()) >= len(s.stats) {
		return 0, ErrNoStats
	}

	return s.stats[d.ID()].Metric(metric)
}

// Report writes the statistics of every device: the first level of each
// used core, then the intermediate levels, then the last level, then the
// snoop filter.
func (s *Simulator) Report(w io.Writer) {
	fmt.Fprintln(w, s.title)

	for core := range s.l1i {
		if !s.sched.everUsed(core) {
			continue
		}

		n := s.sched.threads(core)
		plural := "s"
		if n == 1 {
			plural = ""
		}

		fmt.Fprintf(w, "Core #%d (%d thread%s)\n", core, n, plural)

		s.StatsOf(s.l1i[core]).Print(w, "  ")
		if s.l1d[core] != s.l1i[core] {
			s.StatsOf(s.l1d[core]).Print(w, "  ")
		}
	}

	others := make([]*cache.Device, len(s.others))
	copy(others, s.others)
	sort.Slice(others, func(i, j int) bool {
		return others[i].Name() < others[j].Name()
	})

	for _, d := range others {
		s.StatsOf(d).Print(w, "")
	}

	for _, d := range s.lastLevel {
		s.StatsOf(d).Print(w, "")
	}

	if s.filter != nil {
		s.filter.Print(w)
	}
}

// WriteFiles writes one report per device, the device settings and the page
// usage histograms into the statistics directory.
func (s *Simulator) WriteFiles() error {
	dir := s.common.StatsDir
	if dir == "" {
		return nil
	}

	var errs []error

	for _, st := range s.stats {
		errs = append(errs, st.WriteReport(dir))
	}

	errs = append(errs, s.writeConfig(dir))

	if s.pages != nil {
		errs = append(errs, s.pages.Write(dir, "unfiltered"))
		errs = append(errs, s.memPages.Write(dir, "llc_miss"))
	}

	return errors.Join(errs...)
}

func (s *Simulator) writeConfig(dir string) error {
	f, err := os.Create(filepath.Join(dir, "cache_config.dat"))
	if err != nil {
		return fmt.Errorf("failed to write cache config: %w", err)
	}

	for _, d := range s.tree.Devices() {
		fmt.Fprintf(f, "%s: %s\n", d.Name(), d.Settings())
	}

	return f.Close()
}

// Record stores the device and snoop filter summaries in rec.
func (s *Simulator) Record(rec *stats.Recorder) error {
	if err := rec.CreateTable("devices", stats.DeviceRow{}); err != nil {
		return err
	}

	for _, st := range s.stats {
		if err := rec.Insert("devices", st.Row(rec.RunID())); err != nil {
			return err
		}
	}

	if s.filter == nil {
		return nil
	}

	if err := rec.CreateTable("coherence", CoherenceRow{}); err != nil {
		return err
	}

	fs := s.filter.Stats()

	return rec.Insert("coherence", CoherenceRow{
		RunID:       rec.RunID(),
		Writes:      fs.Writes,
		Writebacks:  fs.Writebacks,
		Invalidates: fs.Invalidates,
	})
}

// Close folds the resident lines into the utilization histograms, writes
// the result files and closes every output.
func (s *Simulator) Close() error {
	for _, d := range s.tree.Devices() {
		d.FinalizeUtilization()
	}

	err := s.WriteFiles()

	return errors.Join(err, s.closeStats())
}

func (s *Simulator) closeStats() error {
	var errs []error

	for _, st := range s.stats {
		errs = append(errs, st.Close())
	}

	return errors.Join(errs...)
}
