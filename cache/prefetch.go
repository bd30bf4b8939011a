package cache

import (
	"fmt"
	"strings"

	"github.com/sarchlab/cachesim/memref"
)

// Prefetcher names accepted by NewPrefetcher.
const (
	PrefetcherNone     = "none"
	PrefetcherNextLine = "nextline"
)

// NewPrefetcher creates a prefetcher by name. "none" and the empty name
// return nil.
func NewPrefetcher(name string) (Prefetcher, error) {
	switch strings.ToLower(name) {
	case "", PrefetcherNone:
		return nil, nil
	case PrefetcherNextLine:
		return NextLine{}, nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownPrefetcher)
	}
}

// NextLine fetches the line after the one that missed into the same device.
type NextLine struct{}

// Prefetch issues a one-byte hardware prefetch for the following line.
func (NextLine) Prefetch(d *Device, ref memref.Ref) {
	lineSize := uint64(d.settings.BlockSize)
	next := (ref.Addr &^ (lineSize - 1)) + lineSize

	if next < ref.Addr {
		return
	}

	pf := ref
	pf.Kind = memref.KindHardwarePrefetch
	pf.Addr = next
	pf.Size = 1
	d.Request(pf)
}
