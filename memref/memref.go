// Package memref defines the memory-reference record replayed by the
// simulator.
package memref

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/vm"
)

// Kind identifies what a reference does.
type Kind uint8

// Reference kinds.
const (
	KindInstr Kind = iota
	KindRead
	KindWrite
	KindPrefetch
	KindPrefetchInstr
	KindHardwarePrefetch
	KindInstrFlush
	KindDataFlush
	KindThreadExit
	KindMarker
	KindInstrNoFetch
	numKinds
)

var kindNames = [numKinds]string{
	KindInstr:            "instr",
	KindRead:             "read",
	KindWrite:            "write",
	KindPrefetch:         "prefetch",
	KindPrefetchInstr:    "prefetch_instr",
	KindHardwarePrefetch: "hardware_prefetch",
	KindInstrFlush:       "iflush",
	KindDataFlush:        "dflush",
	KindThreadExit:       "thread_exit",
	KindMarker:           "marker",
	KindInstrNoFetch:     "instr_no_fetch",
}

// String returns the short name used in trace files.
func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind converts a trace-file name back into a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}

	return 0, fmt.Errorf("unknown reference kind %q", s)
}

// IsInstr reports whether the kind is an instruction fetch.
func (k Kind) IsInstr() bool {
	return k == KindInstr
}

// IsPrefetch reports whether the kind is a software or hardware prefetch.
func (k Kind) IsPrefetch() bool {
	return k == KindPrefetch || k == KindPrefetchInstr || k == KindHardwarePrefetch
}

// IsData reports whether the kind is routed to a data cache.
func (k Kind) IsData() bool {
	return k == KindRead || k == KindWrite || k == KindPrefetch ||
		k == KindHardwarePrefetch
}

// IsFlush reports whether the kind invalidates an address range.
func (k Kind) IsFlush() bool {
	return k == KindInstrFlush || k == KindDataFlush
}

// MarkerType identifies the payload of a KindMarker reference.
type MarkerType uint8

// Marker types understood by the simulator. Other values are carried
// through and ignored.
const (
	MarkerTimestamp MarkerType = iota
	MarkerCPUID
)

// Ref is one memory reference. The engine never mutates a caller's Ref; when a
// reference spans several blocks it works on a local copy.
type Ref struct {
	Kind Kind
	Addr uint64
	Size uint64
	PC   uint64
	TID  int64
	PID  vm.PID

	MarkerType  MarkerType
	MarkerValue uint64
}

// LastAddr returns the address of the final byte touched. A zero-sized
// reference is treated as touching one byte.
func (r Ref) LastAddr() uint64 {
	if r.Size == 0 {
		return r.Addr
	}

	last := r.Addr + (r.Size - 1)
	if last < r.Addr {
		return ^uint64(0)
	}

	return last
}

// String formats the reference for diagnostics.
func (r Ref) String() string {
	if r.Kind == KindMarker {
		return fmt.Sprintf("%d.%d marker %d=%d",
			r.PID, r.TID, r.MarkerType, r.MarkerValue)
	}

	return fmt.Sprintf("%d.%d %s @0x%x 0x%x x%d",
		r.PID, r.TID, r.Kind, r.PC, r.Addr, r.Size)
}
