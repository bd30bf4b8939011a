package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cachesim/cache"
)

// ParentMemory is the parent name of a last-level cache.
const ParentMemory = "memory"

// CacheType says which references an L1 cache serves.
type CacheType string

// Cache types.
const (
	CacheTypeInstruction CacheType = "instruction"
	CacheTypeData        CacheType = "data"
	CacheTypeUnified     CacheType = "unified"
)

// CacheParams describe one cache of a hierarchy.
type CacheParams struct {
	Name string    `yaml:"name"`
	Type CacheType `yaml:"type"`
	// Core is the core an L1 cache belongs to, or -1 for shared caches.
	Core      int      `yaml:"core"`
	Size      uint64   `yaml:"size"`
	Assoc     int      `yaml:"assoc"`
	Inclusive bool     `yaml:"inclusive,omitempty"`
	Parent    string   `yaml:"parent"`
	Children  []string `yaml:"children,omitempty"`
	// ReplacePolicy is LFU, LRU or FIFO. Empty selects LFU.
	ReplacePolicy string `yaml:"replace_policy,omitempty"`
	Prefetcher    string `yaml:"prefetcher,omitempty"`
	MissFile      string `yaml:"miss_file,omitempty"`
}

// UnmarshalYAML decodes the cache with Core defaulting to -1.
func (c *CacheParams) UnmarshalYAML(node *yaml.Node) error {
	type plain CacheParams

	p := plain{Core: -1}
	if err := node.Decode(&p); err != nil {
		return err
	}

	*c = CacheParams(p)

	return nil
}

// Hierarchy is a general cache topology. Caches are listed in any order.
type Hierarchy struct {
	Caches []CacheParams `yaml:"caches"`
}

// LoadHierarchy parses a YAML hierarchy file. It does not validate it.
func LoadHierarchy(path string) (*Hierarchy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy file: %w", err)
	}

	return ParseHierarchy(data)
}

// ParseHierarchy parses a YAML hierarchy.
func ParseHierarchy(data []byte) (*Hierarchy, error) {
	h := &Hierarchy{}
	if err := yaml.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("failed to parse hierarchy: %w", err)
	}

	for i := range h.Caches {
		c := &h.Caches[i]
		if c.Type == "" {
			c.Type = CacheTypeUnified
		}

		if c.Parent == "" {
			c.Parent = ParentMemory
		}
	}

	return h, nil
}

// Marshal encodes the hierarchy as YAML.
func (h *Hierarchy) Marshal() ([]byte, error) {
	return yaml.Marshal(h)
}

// Find returns the cache with the given name.
func (h *Hierarchy) Find(name string) (*CacheParams, bool) {
	for i := range h.Caches {
		if h.Caches[i].Name == name {
			return &h.Caches[i], true
		}
	}

	return nil, false
}

// LastLevel returns the names of the caches whose parent is memory.
func (h *Hierarchy) LastLevel() []string {
	var names []string

	for _, c := range h.Caches {
		if c.Parent == ParentMemory {
			names = append(names, c.Name)
		}
	}

	return names
}

// Validate checks the hierarchy against the line size and core count. Every
// reference must resolve, links must agree in both directions, every cache
// must reach memory, and every core needs an instruction and a data path.
func (h *Hierarchy) Validate(lineSize, numCores int) error {
	byName := make(map[string]*CacheParams, len(h.Caches))

	for i := range h.Caches {
		c := &h.Caches[i]
		if _, dup := byName[c.Name]; dup {
			return fmt.Errorf("%q: %w", c.Name, ErrDuplicateCache)
		}

		byName[c.Name] = c
	}

	for _, c := range h.Caches {
		if err := validateCache(c, byName, lineSize, numCores); err != nil {
			return err
		}
	}

	if len(h.LastLevel()) == 0 {
		return ErrNoLastLevel
	}

	if err := checkAcyclic(h.Caches, byName); err != nil {
		return err
	}

	return checkCores(h.Caches, numCores)
}

func validateCache(
	c CacheParams,
	byName map[string]*CacheParams,
	lineSize, numCores int,
) error {
	s := cache.Settings{
		Associativity: c.Assoc,
		BlockSize:     lineSize,
		TotalSize:     c.Size,
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("cache %s: %w", c.Name, err)
	}

	if _, err := cache.NewPolicy(c.ReplacePolicy); err != nil {
		return fmt.Errorf("cache %s: %w", c.Name, err)
	}

	if _, err := cache.NewPrefetcher(c.Prefetcher); err != nil {
		return fmt.Errorf("cache %s: %w", c.Name, err)
	}

	switch c.Type {
	case CacheTypeInstruction, CacheTypeData, CacheTypeUnified:
	default:
		return fmt.Errorf("cache %s: %q: %w", c.Name, c.Type, ErrUnknownCacheType)
	}

	if c.Core >= numCores || c.Core < -1 {
		return fmt.Errorf("cache %s: core %d: %w", c.Name, c.Core, ErrCoreOutOfRange)
	}

	if c.Parent != ParentMemory {
		p, ok := byName[c.Parent]
		if !ok {
			return fmt.Errorf("cache %s: parent %q: %w",
				c.Name, c.Parent, ErrDanglingReference)
		}

		if !slices.Contains(p.Children, c.Name) {
			return fmt.Errorf("cache %s is not a child of %s: %w",
				c.Name, p.Name, ErrInconsistentLink)
		}
	}

	for _, child := range c.Children {
		ch, ok := byName[child]
		if !ok {
			return fmt.Errorf("cache %s: child %q: %w",
				c.Name, child, ErrDanglingReference)
		}

		if ch.Parent != c.Name {
			return fmt.Errorf("cache %s: child %s has parent %s: %w",
				c.Name, child, ch.Parent, ErrInconsistentLink)
		}
	}

	return nil
}

func checkAcyclic(caches []CacheParams, byName map[string]*CacheParams) error {
	for _, c := range caches {
		steps := 0
		for name := c.Name; name != ParentMemory; name = byName[name].Parent {
			steps++
			if steps > len(caches) {
				return fmt.Errorf("cache %s: %w", c.Name, ErrCycle)
			}
		}
	}

	return nil
}

func checkCores(caches []CacheParams, numCores int) error {
	hasI := make([]bool, numCores)
	hasD := make([]bool, numCores)

	for _, c := range caches {
		if c.Core < 0 {
			continue
		}

		if c.Type != CacheTypeData {
			hasI[c.Core] = true
		}

		if c.Type != CacheTypeInstruction {
			hasD[c.Core] = true
		}
	}

	for core := 0; core < numCores; core++ {
		if !hasI[core] || !hasD[core] {
			return fmt.Errorf("core %d: %w", core, ErrMissingL1)
		}
	}

	return nil
}

