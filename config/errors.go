// Package config holds the simulator configuration: numeric knobs for the
// fixed two-level cache and TLB topologies, and the YAML description of a
// general cache hierarchy.
package config

import "errors"

// Validation errors. Geometry and policy problems wrap the errors of the
// cache package instead.
var (
	ErrNoCores            = errors.New("at least one core is required")
	ErrWarmupConflict     = errors.New("either warmup_refs or warmup_fraction can be set")
	ErrWarmupFraction     = errors.New("warmup_fraction must be in [0, 1]")
	ErrDuplicateCache     = errors.New("duplicate cache name")
	ErrDanglingReference  = errors.New("reference to an unknown cache")
	ErrInconsistentLink   = errors.New("parent and children lists disagree")
	ErrCycle              = errors.New("cache hierarchy has a cycle")
	ErrCoreOutOfRange     = errors.New("core index out of range")
	ErrMissingL1          = errors.New("core has no instruction or data cache")
	ErrUnknownCacheType   = errors.New("unknown cache type")
	ErrNoLastLevel        = errors.New("no cache is connected to memory")
	ErrInvalidEnvOverride = errors.New("invalid environment override")
)
