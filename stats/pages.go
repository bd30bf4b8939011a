package stats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/memref"
)

// PageCounts are the accesses that fell into one page.
type PageCounts struct {
	Reads  uint64
	Writes uint64
	Instrs uint64
	Other  uint64
}

// Total returns the number of accesses.
func (c PageCounts) Total() uint64 {
	return c.Reads + c.Writes + c.Instrs + c.Other
}

type granularity struct {
	shift  uint
	suffix string
	pages  *roaring64.Bitmap
	counts map[uint64]*PageCounts
}

func (g *granularity) update(ref memref.Ref) {
	page := ref.Addr >> g.shift

	c, ok := g.counts[page]
	if !ok {
		c = &PageCounts{}
		g.counts[page] = c
		g.pages.Add(page)
	}

	switch {
	case ref.Kind == memref.KindWrite:
		c.Writes++
	case ref.Kind.IsInstr():
		c.Instrs++
	case ref.Kind == memref.KindRead:
		c.Reads++
	default:
		c.Other++
	}
}

func (g *granularity) write(w io.Writer) {
	it := g.pages.Iterator()
	for it.HasNext() {
		page := it.Next()
		c := g.counts[page]
		fmt.Fprintf(w, "0x%x, %d, %d, %d, %d\n",
			page<<g.shift, c.Total(), c.Reads, c.Writes, c.Instrs)
	}
}

// PageStats histograms accesses by 4KiB, 64KiB and 1MiB page. Attached to
// a root device as a hook it sees the accesses that reach main memory.
type PageStats struct {
	grans []*granularity
}

// NewPageStats creates an empty page histogram.
func NewPageStats() *PageStats {
	p := &PageStats{}

	for _, g := range []struct {
		shift  uint
		suffix string
	}{{12, "4KiB"}, {16, "64KiB"}, {20, "1MiB"}} {
		p.grans = append(p.grans, &granularity{
			shift:  g.shift,
			suffix: g.suffix,
			pages:  roaring64.New(),
			counts: make(map[uint64]*PageCounts),
		})
	}

	return p
}

// Update counts one access.
func (p *PageStats) Update(ref memref.Ref) {
	for _, g := range p.grans {
		g.update(ref)
	}
}

// Func records memory accesses reported by a device hook.
func (p *PageStats) Func(ctx sim.HookCtx) {
	if ctx.Pos != cache.HookPosMemoryAccess {
		return
	}

	ref, ok := ctx.Item.(memref.Ref)
	if !ok {
		return
	}

	p.Update(ref)
}

// Pages returns the number of distinct pages at the given shift (12, 16 or
// 20), or 0 for another shift.
func (p *PageStats) Pages(shift uint) uint64 {
	for _, g := range p.grans {
		if g.shift == shift {
			return g.pages.GetCardinality()
		}
	}

	return 0
}

// Counts returns the counts of the page containing addr at the given shift.
func (p *PageStats) Counts(shift uint, addr uint64) PageCounts {
	for _, g := range p.grans {
		if g.shift == shift {
			if c, ok := g.counts[addr>>shift]; ok {
				return *c
			}
		}
	}

	return PageCounts{}
}

// Write creates page_usage_<label>_<size>.dat in dir for each granularity.
// Each line is "0x<page>, total, reads, writes, instrs" in address order.
func (p *PageStats) Write(dir, label string) error {
	var errs []error

	for _, g := range p.grans {
		name := fmt.Sprintf("page_usage_%s_%s.dat", label, g.suffix)

		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}

		g.write(f)
		errs = append(errs, f.Close())
	}

	return errors.Join(errs...)
}
