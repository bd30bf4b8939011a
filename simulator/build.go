package simulator

import (
	"fmt"
	"os"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/coherence"
	"github.com/sarchlab/cachesim/config"
	"github.com/sarchlab/cachesim/stats"
)

// hashIndexMinCores is the core count from which hierarchies with mid-level
// caches switch to hashed tag lookups even without coherence.
const hashIndexMinCores = 32

// lastLevelName is the name of the shared cache of the two-level topology.
const lastLevelName = "LL"

// NewCacheSimulator builds the cache simulator described by k. Without a
// hierarchy file the topology is split L1 caches per core below one shared
// last-level cache.
func NewCacheSimulator(k *config.Knobs, opts ...Option) (*Simulator, error) {
	if err := k.Validate(); err != nil {
		return nil, fmt.Errorf("invalid knobs: %w", err)
	}

	if k.HierarchyFile != "" {
		h, err := config.LoadHierarchy(k.HierarchyFile)
		if err != nil {
			return nil, err
		}

		return NewHierarchySimulator(k, h, opts...)
	}

	s, err := newCacheBase(k, opts)
	if err != nil {
		return nil, err
	}

	if err := s.buildTwoLevel(k); err != nil {
		s.closeStats()
		return nil, err
	}

	return s, nil
}

// NewHierarchySimulator builds the cache simulator for an explicit
// hierarchy. Line size, core count, coherence and the reference budgets
// still come from k.
func NewHierarchySimulator(
	k *config.Knobs,
	h *config.Hierarchy,
	opts ...Option,
) (*Simulator, error) {
	if err := k.Validate(); err != nil {
		return nil, fmt.Errorf("invalid knobs: %w", err)
	}

	if err := h.Validate(k.LineSize, k.NumCores); err != nil {
		return nil, fmt.Errorf("invalid hierarchy: %w", err)
	}

	s, err := newCacheBase(k, opts)
	if err != nil {
		return nil, err
	}

	if err := s.buildHierarchy(k, h); err != nil {
		s.closeStats()
		return nil, err
	}

	return s, nil
}

func newCacheBase(k *config.Knobs, opts []Option) (*Simulator, error) {
	s := newSimulator(k.Common, "Cache simulation results:", opts)

	if err := makeStatsDir(k.StatsDir); err != nil {
		return nil, err
	}

	s.startPC = k.StartPC
	s.stopPC = k.StopPC
	s.recording.Store(k.StartPC == 0)

	if s.opts.pageStats {
		s.pages = stats.NewPageStats()
		s.memPages = stats.NewPageStats()
	}

	return s, nil
}

func makeStatsDir(dir string) error {
	if dir == "" {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%s: %w: %v", dir, ErrStatsDir, err)
	}

	return nil
}

type deviceParams struct {
	name     string
	settings cache.Settings
	policy   string
	prefetch string
	missFile string
	parent   *cache.Device
	snooper  cache.Snooper
}

func (s *Simulator) addDevice(dp deviceParams, lineUtil bool) (*cache.Device, error) {
	st := stats.NewCacheStats(stats.Options{
		Name:              dp.name,
		Dir:               s.common.StatsDir,
		BlockSize:         dp.settings.BlockSize,
		MissFile:          dp.missFile,
		WarmupEnabled:     s.warmupEnabled,
		Coherent:          dp.settings.Coherent,
		RecordUtilization: lineUtil,
	})

	prefetcher, err := cache.NewPrefetcher(dp.prefetch)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("device %s: %w", dp.name, err)
	}

	dp.settings.Recording = s.recording
	dp.settings.RecordUtilization = lineUtil

	b := cache.MakeBuilder().
		WithSettings(dp.settings).
		WithPolicy(dp.policy).
		WithStats(st).
		WithPrefetcher(prefetcher).
		WithParent(dp.parent)

	if dp.snooper != nil {
		b = b.WithSnooper(dp.snooper)
	}

	d, err := b.Build(s.tree, dp.name)
	if err != nil {
		st.Close()
		return nil, err
	}

	s.stats = append(s.stats, st)

	if dp.parent == nil && s.memPages != nil {
		d.AcceptHook(s.memPages)
	}

	return d, nil
}

func (s *Simulator) buildTwoLevel(k *config.Knobs) error {
	ll, err := s.addDevice(deviceParams{
		name: lastLevelName,
		settings: cache.Settings{
			Associativity: k.LLAssoc,
			BlockSize:     k.LineSize,
			TotalSize:     k.LLSize,
			ID:            -1,
		},
		policy:   k.ReplacePolicy,
		missFile: k.LLMissFile,
	}, k.LineUtilization)
	if err != nil {
		return err
	}

	s.lastLevel = []*cache.Device{ll}

	var snooper cache.Snooper
	if k.ModelCoherence {
		s.filter = coherence.NewFilter(2 * k.NumCores)
		snooper = s.filter
	}

	for i := 0; i < k.NumCores; i++ {
		l1i, err := s.addDevice(deviceParams{
			name: fmt.Sprintf("L1_I_Cache_%d", i),
			settings: cache.Settings{
				Associativity: k.L1IAssoc,
				BlockSize:     k.LineSize,
				TotalSize:     k.L1ISize,
				Coherent:      k.ModelCoherence,
				ID:            2 * i,
			},
			policy:  k.ReplacePolicy,
			parent:  ll,
			snooper: snooper,
		}, k.LineUtilization)
		if err != nil {
			return err
		}

		l1d, err := s.addDevice(deviceParams{
			name: fmt.Sprintf("L1_D_Cache_%d", i),
			settings: cache.Settings{
				Associativity: k.L1DAssoc,
				BlockSize:     k.LineSize,
				TotalSize:     k.L1DSize,
				Coherent:      k.ModelCoherence,
				ID:            2*i + 1,
			},
			policy:   k.ReplacePolicy,
			prefetch: k.DataPrefetcher,
			parent:   ll,
			snooper:  snooper,
		}, k.LineUtilization)
		if err != nil {
			return err
		}

		s.l1i[i] = l1i
		s.l1d[i] = l1d

		if s.filter != nil {
			if err := s.filter.Register(2*i, l1i); err != nil {
				return err
			}

			if err := s.filter.Register(2*i+1, l1d); err != nil {
				return err
			}
		}
	}

	return nil
}

// snoopPlan decides where the snoop filter sits. With several last-level
// caches it sits above them. With one, it sits below the first cache that
// has several children; the chain of single-child caches above that point
// is fully shared and not coherent.
type snoopPlan struct {
	numLastLevel int
	lowestShared string
	totalSnooped int
	nonCoherent  map[string]bool
}

func planSnooping(h *config.Hierarchy) snoopPlan {
	plan := snoopPlan{nonCoherent: make(map[string]bool)}

	lastLevel := h.LastLevel()
	plan.numLastLevel = len(lastLevel)

	if plan.numLastLevel != 1 {
		plan.totalSnooped = plan.numLastLevel
		return plan
	}

	current, _ := h.Find(lastLevel[0])
	plan.nonCoherent[current.Name] = true

	for len(current.Children) == 1 {
		current, _ = h.Find(current.Children[0])
		plan.nonCoherent[current.Name] = true
	}

	if len(current.Children) > 0 {
		plan.lowestShared = current.Name
		plan.totalSnooped = len(current.Children)
	}

	return plan
}

func (p snoopPlan) snooped(c config.CacheParams) bool {
	lastLevelSnooped := p.numLastLevel > 1 && c.Parent == config.ParentMemory
	midSnooped := p.totalSnooped > 1 && p.lowestShared != "" &&
		c.Parent == p.lowestShared

	return lastLevelSnooped || midSnooped
}

// buildOrder lists the caches parents first, following the children lists.
func buildOrder(h *config.Hierarchy) []config.CacheParams {
	order := make([]config.CacheParams, 0, len(h.Caches))

	var visit func(name string)
	visit = func(name string) {
		c, _ := h.Find(name)
		order = append(order, *c)

		for _, child := range c.Children {
			visit(child)
		}
	}

	for _, name := range h.LastLevel() {
		visit(name)
	}

	return order
}

func (s *Simulator) buildHierarchy(k *config.Knobs, h *config.Hierarchy) error {
	var plan snoopPlan
	if k.ModelCoherence {
		plan = planSnooping(h)
		if plan.totalSnooped > 1 {
			s.filter = coherence.NewFilter(plan.totalSnooped)
		}
	}

	snoopID := 0

	for _, c := range buildOrder(h) {
		var parent *cache.Device
		if c.Parent != config.ParentMemory {
			p, err := s.tree.Lookup(c.Parent)
			if err != nil {
				return err
			}

			parent = p
		}

		snooped := s.filter != nil && plan.snooped(c)

		dp := deviceParams{
			name: c.Name,
			settings: cache.Settings{
				Associativity: c.Assoc,
				BlockSize:     k.LineSize,
				TotalSize:     c.Size,
				Inclusive:     c.Inclusive,
				Coherent:      k.ModelCoherence && !plan.nonCoherent[c.Name],
				ID:            -1,
			},
			policy:   c.ReplacePolicy,
			prefetch: c.Prefetcher,
			missFile: c.MissFile,
			parent:   parent,
		}

		if snooped {
			dp.settings.ID = snoopID
			dp.snooper = s.filter
		}

		d, err := s.addDevice(dp, k.LineUtilization)
		if err != nil {
			return err
		}

		if snooped {
			if err := s.filter.Register(snoopID, d); err != nil {
				return err
			}

			snoopID++
		}

		s.place(c, d)
	}

	if len(s.others) > 0 && (k.ModelCoherence || k.NumCores >= hashIndexMinCores) {
		for _, d := range s.tree.Devices() {
			if err := d.EnableHashIndex(); err != nil {
				return err
			}
		}
	}

	return nil
}

// place records the role of a device: first level of a core, last level,
// or neither.
func (s *Simulator) place(c config.CacheParams, d *cache.Device) {
	isEdge := false

	if c.Core >= 0 {
		isEdge = true

		if c.Type == config.CacheTypeInstruction || c.Type == config.CacheTypeUnified {
			s.l1i[c.Core] = d
		}

		if c.Type == config.CacheTypeData || c.Type == config.CacheTypeUnified {
			s.l1d[c.Core] = d
		}
	}

	if c.Parent == config.ParentMemory {
		isEdge = true
		s.lastLevel = append(s.lastLevel, d)
	}

	if !isEdge {
		s.others = append(s.others, d)
	}
}

// NewTLBSimulator builds per-core L1 instruction and data TLBs below a
// per-core L2 TLB. Entries are tagged with the process ID.
func NewTLBSimulator(k *config.TLBKnobs, opts ...Option) (*Simulator, error) {
	if err := k.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tlb knobs: %w", err)
	}

	opts = append(opts, WithPageStats(false))
	s := newSimulator(k.Common, "TLB simulation results:", opts)

	if err := makeStatsDir(k.StatsDir); err != nil {
		return nil, err
	}

	if err := s.buildTLBs(k); err != nil {
		s.closeStats()
		return nil, err
	}

	return s, nil
}

func (s *Simulator) buildTLBs(k *config.TLBKnobs) error {
	tlb := func(entries, assoc int) cache.Settings {
		return cache.Settings{
			Associativity: assoc,
			BlockSize:     k.PageSize,
			NumBlocks:     entries,
			PIDTagged:     true,
			ID:            -1,
		}
	}

	for i := 0; i < k.NumCores; i++ {
		l2, err := s.addDevice(deviceParams{
			name:     fmt.Sprintf("L2_TLB_%d", i),
			settings: tlb(k.L2Entries, k.L2Assoc),
			policy:   k.ReplacePolicy,
		}, false)
		if err != nil {
			return err
		}

		l1i, err := s.addDevice(deviceParams{
			name:     fmt.Sprintf("L1_I_TLB_%d", i),
			settings: tlb(k.L1IEntries, k.L1IAssoc),
			policy:   k.ReplacePolicy,
			parent:   l2,
		}, false)
		if err != nil {
			return err
		}

		l1d, err := s.addDevice(deviceParams{
			name:     fmt.Sprintf("L1_D_TLB_%d", i),
			settings: tlb(k.L1DEntries, k.L1DAssoc),
			policy:   k.ReplacePolicy,
			parent:   l2,
		}, false)
		if err != nil {
			return err
		}

		s.l1i[i] = l1i
		s.l1d[i] = l1d
		s.lastLevel = append(s.lastLevel, l2)
	}

	return nil
}
