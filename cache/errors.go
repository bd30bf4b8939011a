package cache

import "errors"

// Errors returned while building devices. All of them are configuration
// errors; the request path itself never fails.
var (
	ErrNotPowerOfTwo     = errors.New("value is not a power of two")
	ErrBlockTooSmall     = errors.New("block size must be at least 4 bytes")
	ErrSizeNotMultiple   = errors.New("total size is not a multiple of the block size")
	ErrTooFewBlocks      = errors.New("fewer blocks than ways")
	ErrNoStats           = errors.New("a statistics sink is required")
	ErrUnknownPolicy     = errors.New("unknown replacement policy")
	ErrUnknownPrefetcher = errors.New("unknown prefetcher")
	ErrUnknownDevice     = errors.New("unknown device")
	ErrDuplicateName     = errors.New("duplicate device name")
	ErrHashIndexPID      = errors.New("hash index cannot be used with PID-tagged blocks")
)
