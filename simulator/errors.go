package simulator

import "errors"

// Errors returned by the simulator.
var (
	// ErrUnhandledKind stops a run on a reference kind the dispatch loop
	// does not know. Later statistics could not be trusted.
	ErrUnhandledKind = errors.New("unhandled reference kind")

	ErrWrongCore  = errors.New("core number out of range")
	ErrWrongLevel = errors.New("cache level out of range")
	ErrNoStats    = errors.New("device has no statistics")
	ErrStatsDir   = errors.New("cannot create the statistics directory")
)
