// Package simulator assembles caching devices into a hierarchy and replays
// memory references through it.
package simulator

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/coherence"
	"github.com/sarchlab/cachesim/config"
	"github.com/sarchlab/cachesim/logging"
	"github.com/sarchlab/cachesim/memref"
	"github.com/sarchlab/cachesim/stats"
)

// progressMask throttles how often the progress limiter is consulted.
const progressMask = 1<<16 - 1

// A Simulator owns a hierarchy and dispatches references to it. It is not
// safe for concurrent use.
type Simulator struct {
	opts   options
	logger *logging.Logger
	common config.Common
	// title heads the report, e.g. "Cache simulation results:".
	title string

	tree  *cache.Tree
	stats []*stats.CacheStats

	l1i       []*cache.Device
	l1d       []*cache.Device
	lastLevel []*cache.Device
	others    []*cache.Device
	filter    *coherence.Filter

	recording *atomic.Bool
	startPC   uint64
	stopPC    uint64

	pages    *stats.PageStats
	memPages *stats.PageStats

	sched *scheduler

	skipRefs      uint64
	simRefs       uint64
	warmupRefs    uint64
	warmupSeen    uint64
	warmupEnabled bool
	warmedUp      bool

	processed uint64
	progress  *rate.Sometimes
}

func newSimulator(common config.Common, title string, opts []Option) *Simulator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Simulator{
		opts:          o,
		logger:        o.logger,
		common:        common,
		title:         title,
		tree:          cache.NewTree(),
		recording:     new(atomic.Bool),
		sched:         newScheduler(common.NumCores, o.logger),
		skipRefs:      common.SkipRefs,
		simRefs:       common.SimRefs,
		warmupRefs:    common.WarmupRefs,
		warmupEnabled: common.WarmupEnabled(),
		l1i:           make([]*cache.Device, common.NumCores),
		l1d:           make([]*cache.Device, common.NumCores),
	}

	s.warmedUp = !s.warmupEnabled
	s.recording.Store(true)

	if o.progressInterval > 0 {
		s.progress = &rate.Sometimes{Interval: o.progressInterval}
	}

	return s
}

// Tree returns the device hierarchy.
func (s *Simulator) Tree() *cache.Tree { return s.tree }

// Filter returns the snoop filter, or nil without coherence.
func (s *Simulator) Filter() *coherence.Filter { return s.filter }

// L1I returns the instruction-side first-level device of core.
func (s *Simulator) L1I(core int) *cache.Device { return s.l1i[core] }

// L1D returns the data-side first-level device of core.
func (s *Simulator) L1D(core int) *cache.Device { return s.l1d[core] }

// LastLevel returns the devices connected to memory.
func (s *Simulator) LastLevel() []*cache.Device { return s.lastLevel }

// StatsOf returns the statistics of a device.
func (s *Simulator) StatsOf(d *cache.Device) *stats.CacheStats {
	return s.stats[d.ID()]
}

// Recording reports whether references are currently recorded.
func (s *Simulator) Recording() bool { return s.recording.Load() }

// WarmedUp reports whether warm-up has completed.
func (s *Simulator) WarmedUp() bool { return s.warmedUp }

// Processed returns the number of references simulated, warm-up included.
func (s *Simulator) Processed() uint64 { return s.processed }

// Done reports whether the post-warm-up reference budget is exhausted.
// Further references are dropped.
func (s *Simulator) Done() bool {
	return s.warmedUp && s.simRefs == 0
}

// PageStats returns the histogram of all recorded references and the one of
// accesses reaching memory. Both are nil when page stats are disabled.
func (s *Simulator) PageStats() (all, memory *stats.PageStats) {
	return s.pages, s.memPages
}

// Process simulates one reference. Markers are only used for scheduling.
// An unknown reference kind returns ErrUnhandledKind.
func (s *Simulator) Process(ref memref.Ref) error {
	if s.skipRefs > 0 {
		s.skipRefs--
		return nil
	}

	if s.Done() {
		return nil
	}

	switch ref.Kind {
	case memref.KindMarker:
		if ref.MarkerType == memref.MarkerCPUID && s.common.CPUScheduling {
			s.sched.cpuMarker(ref.TID, ref.MarkerValue)
		}

		return nil
	case memref.KindThreadExit:
		s.sched.exit(ref.TID)
		s.countRef()

		return nil
	}

	core := s.sched.coreFor(ref.TID)

	switch {
	case ref.Kind == memref.KindInstr || ref.Kind == memref.KindPrefetchInstr:
		s.recordPage(ref)
		s.checkRegion(ref)
		s.l1i[core].Request(ref)
	case ref.Kind.IsData():
		s.recordPage(ref)
		s.l1d[core].Request(ref)
	case ref.Kind == memref.KindInstrFlush:
		s.l1i[core].Flush(ref)
	case ref.Kind == memref.KindDataFlush:
		s.l1d[core].Flush(ref)
	case ref.Kind == memref.KindInstrNoFetch:
	default:
		return fmt.Errorf("%v: %w", ref.Kind, ErrUnhandledKind)
	}

	s.countRef()

	return nil
}

func (s *Simulator) recordPage(ref memref.Ref) {
	if s.pages != nil && s.recording.Load() {
		s.pages.Update(ref)
	}
}

// checkRegion toggles recording when the fetch hits the start or stop PC.
func (s *Simulator) checkRegion(ref memref.Ref) {
	if s.startPC != 0 && ref.Addr == s.startPC {
		s.recording.Store(true)
		s.logger.LogRecording(true, ref.Addr)
	}

	if s.stopPC != 0 && ref.Addr == s.stopPC {
		s.recording.Store(false)
		s.logger.LogRecording(false, ref.Addr)
	}
}

func (s *Simulator) countRef() {
	s.processed++

	if s.progress != nil && s.processed&progressMask == 0 {
		s.progress.Do(func() {
			s.logger.LogProgress(s.processed, s.warmedUp)
		})
	}

	if !s.warmedUp {
		if s.checkWarmedUp() {
			s.finishWarmup()
		}

		return
	}

	if s.simRefs > 0 {
		s.simRefs--
	}
}

func (s *Simulator) checkWarmedUp() bool {
	if s.common.WarmupFraction > 0 {
		for _, d := range s.lastLevel {
			if d.LoadedFraction() < s.common.WarmupFraction {
				return false
			}
		}

		return true
	}

	s.warmupSeen++

	return s.warmupSeen >= s.warmupRefs
}

func (s *Simulator) finishWarmup() {
	for _, st := range s.stats {
		st.Reset()
	}

	s.warmedUp = true
	s.logger.LogWarmedUp(s.processed)
}
