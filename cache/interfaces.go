package cache

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/cachesim/memref"
)

// InvalidationKind tells a device why a line is being removed.
type InvalidationKind uint8

const (
	// InvalidationInclusive comes from a parent evicting the line.
	InvalidationInclusive InvalidationKind = iota
	// InvalidationCoherence comes from a write by another device.
	InvalidationCoherence
)

func (k InvalidationKind) String() string {
	if k == InvalidationCoherence {
		return "coherence"
	}

	return "inclusive"
}

// StatsSink receives the per-access notifications of one device.
type StatsSink interface {
	Access(ref memref.Ref, hit bool, block *Block)
	ChildAccess(ref memref.Ref, hit bool, block *Block)
	Invalidate(kind InvalidationKind)
	Flush(ref memref.Ref)
	Reset()
	// Err reports a sink that cannot be used, e.g. an unopenable miss file.
	Err() error
}

// UtilizationSink is implemented by sinks that aggregate line utilization.
// Devices recording utilization feed it periodically.
type UtilizationSink interface {
	FoldLine(used *bitset.BitSet)
	WriteSample(ref memref.Ref, requests uint64)
}

// Snooper tracks line ownership across coherent devices.
type Snooper interface {
	Snoop(tag uint64, id int, isWrite bool)
	SnoopEviction(tag uint64, id int)
}

// Prefetcher issues extra requests after a demand miss.
type Prefetcher interface {
	Prefetch(d *Device, ref memref.Ref)
}
