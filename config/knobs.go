package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/cachesim/cache"
)

// Common holds the knobs shared by the cache and the TLB simulators.
type Common struct {
	// NumCores is the number of cores threads are scheduled on. Default: 4.
	NumCores int `json:"num_cores"`

	// SkipRefs references are dropped before anything else happens.
	SkipRefs uint64 `json:"skip_refs"`

	// WarmupRefs references warm the caches before statistics are reset.
	// Mutually exclusive with WarmupFraction.
	WarmupRefs uint64 `json:"warmup_refs"`

	// WarmupFraction ends warm-up once every last-level device holds this
	// fraction of its capacity.
	WarmupFraction float64 `json:"warmup_fraction"`

	// SimRefs bounds the references simulated after warm-up.
	SimRefs uint64 `json:"sim_refs"`

	// CPUScheduling maps threads to cores through CPU-id markers.
	CPUScheduling bool `json:"cpu_scheduling"`

	// Verbose is 0 for warnings only, 1 for info and 2 for debug logging.
	Verbose int `json:"verbose"`

	// StatsDir receives reports, utilization samples and page usage files.
	StatsDir string `json:"stats_dir"`
}

// Knobs configure the cache simulator.
type Knobs struct {
	Common

	// LineSize in bytes, shared by every cache. Default: 64.
	LineSize int `json:"line_size"`

	L1ISize  uint64 `json:"l1i_size"`
	L1DSize  uint64 `json:"l1d_size"`
	L1IAssoc int    `json:"l1i_assoc"`
	L1DAssoc int    `json:"l1d_assoc"`
	LLSize   uint64 `json:"ll_size"`
	LLAssoc  int    `json:"ll_assoc"`

	// LLMissFile receives a line per last-level miss when set.
	LLMissFile string `json:"ll_miss_file"`

	// ModelCoherence connects the L1 caches through a snoop filter.
	ModelCoherence bool `json:"model_coherence"`

	// ReplacePolicy is LFU, LRU or FIFO. Default: LFU.
	ReplacePolicy string `json:"replace_policy"`

	// DataPrefetcher is none or nextline. Default: nextline.
	DataPrefetcher string `json:"data_prefetcher"`

	// LineUtilization tracks the bytes used in every line.
	LineUtilization bool `json:"line_utilization"`

	// StartPC turns recording on when fetched. 0 records from the start.
	StartPC uint64 `json:"start_pc"`

	// StopPC turns recording off when fetched.
	StopPC uint64 `json:"stop_pc"`

	// HierarchyFile, when set, replaces the two-level topology with the YAML
	// hierarchy it names.
	HierarchyFile string `json:"hierarchy_file"`
}

// DefaultCommon returns the shared defaults.
func DefaultCommon() Common {
	return Common{
		NumCores: 4,
		SimRefs:  1 << 63,
		StatsDir: "stats",
	}
}

// DefaultKnobs returns the default two-level configuration: 32KiB 8-way L1
// caches and an 8MiB 16-way shared last level.
func DefaultKnobs() *Knobs {
	return &Knobs{
		Common:         DefaultCommon(),
		LineSize:       64,
		L1ISize:        32 * 1024,
		L1DSize:        32 * 1024,
		L1IAssoc:       8,
		L1DAssoc:       8,
		LLSize:         8 * 1024 * 1024,
		LLAssoc:        16,
		ReplacePolicy:  cache.PolicyLFU,
		DataPrefetcher: cache.PrefetcherNextLine,
	}
}

// LoadKnobs loads Knobs from a JSON file. Missing fields keep their
// defaults.
func LoadKnobs(path string) (*Knobs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knobs file: %w", err)
	}

	k := DefaultKnobs()
	if err := json.Unmarshal(data, k); err != nil {
		return nil, fmt.Errorf("failed to parse knobs: %w", err)
	}

	return k, nil
}

// Save writes the knobs to a JSON file.
func (k *Knobs) Save(path string) error {
	return saveJSON(path, k)
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize knobs: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write knobs file: %w", err)
	}

	return nil
}

// Validate checks the shared knobs.
func (c *Common) Validate() error {
	if c.NumCores <= 0 {
		return ErrNoCores
	}

	if c.WarmupRefs > 0 && c.WarmupFraction > 0 {
		return ErrWarmupConflict
	}

	if c.WarmupFraction < 0 || c.WarmupFraction > 1 {
		return fmt.Errorf("%g: %w", c.WarmupFraction, ErrWarmupFraction)
	}

	return nil
}

// WarmupEnabled reports whether a warm-up phase is configured.
func (c *Common) WarmupEnabled() bool {
	return c.WarmupRefs > 0 || c.WarmupFraction > 0
}

// Validate checks that every cache can be built with the knobs.
func (k *Knobs) Validate() error {
	if err := k.Common.Validate(); err != nil {
		return err
	}

	if _, err := cache.NewPolicy(k.ReplacePolicy); err != nil {
		return err
	}

	if _, err := cache.NewPrefetcher(k.DataPrefetcher); err != nil {
		return err
	}

	for _, c := range []struct {
		name  string
		size  uint64
		assoc int
	}{
		{"l1i", k.L1ISize, k.L1IAssoc},
		{"l1d", k.L1DSize, k.L1DAssoc},
		{"ll", k.LLSize, k.LLAssoc},
	} {
		s := cache.Settings{
			Associativity: c.assoc,
			BlockSize:     k.LineSize,
			TotalSize:     c.size,
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}

	return nil
}

// Clone returns a copy of the knobs.
func (k *Knobs) Clone() *Knobs {
	c := *k
	return &c
}
