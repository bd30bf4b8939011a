package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/cachesim/cache"
)

// TLBKnobs configure the TLB simulator. Sizes are in entries.
type TLBKnobs struct {
	Common

	// PageSize in bytes. Default: 4096.
	PageSize int `json:"page_size"`

	L1IEntries int `json:"tlb_l1i_entries"`
	L1IAssoc   int `json:"tlb_l1i_assoc"`
	L1DEntries int `json:"tlb_l1d_entries"`
	L1DAssoc   int `json:"tlb_l1d_assoc"`
	L2Entries  int `json:"tlb_l2_entries"`
	L2Assoc    int `json:"tlb_l2_assoc"`

	// ReplacePolicy is LFU, LRU or FIFO. Default: LFU.
	ReplacePolicy string `json:"tlb_replace_policy"`
}

// DefaultTLBKnobs returns fully associative 32-entry L1 TLBs and a 1024-entry
// 4-way L2 TLB per core.
func DefaultTLBKnobs() *TLBKnobs {
	return &TLBKnobs{
		Common:        DefaultCommon(),
		PageSize:      4096,
		L1IEntries:    32,
		L1IAssoc:      32,
		L1DEntries:    32,
		L1DAssoc:      32,
		L2Entries:     1024,
		L2Assoc:       4,
		ReplacePolicy: cache.PolicyLFU,
	}
}

// LoadTLBKnobs loads TLBKnobs from a JSON file. Missing fields keep their
// defaults.
func LoadTLBKnobs(path string) (*TLBKnobs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tlb knobs file: %w", err)
	}

	k := DefaultTLBKnobs()
	if err := json.Unmarshal(data, k); err != nil {
		return nil, fmt.Errorf("failed to parse tlb knobs: %w", err)
	}

	return k, nil
}

// Save writes the knobs to a JSON file.
func (k *TLBKnobs) Save(path string) error {
	return saveJSON(path, k)
}

// Validate checks that every TLB can be built with the knobs.
func (k *TLBKnobs) Validate() error {
	if err := k.Common.Validate(); err != nil {
		return err
	}

	if _, err := cache.NewPolicy(k.ReplacePolicy); err != nil {
		return err
	}

	for _, t := range []struct {
		name           string
		entries, assoc int
	}{
		{"tlb_l1i", k.L1IEntries, k.L1IAssoc},
		{"tlb_l1d", k.L1DEntries, k.L1DAssoc},
		{"tlb_l2", k.L2Entries, k.L2Assoc},
	} {
		s := cache.Settings{
			Associativity: t.assoc,
			BlockSize:     k.PageSize,
			NumBlocks:     t.entries,
			PIDTagged:     true,
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}

	return nil
}

// Clone returns a copy of the knobs.
func (k *TLBKnobs) Clone() *TLBKnobs {
	c := *k
	return &c
}
