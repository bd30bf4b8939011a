package cache

import (
	"fmt"
	"strings"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Replacement policy names accepted by NewPolicy.
const (
	PolicyLFU  = "LFU"
	PolicyLRU  = "LRU"
	PolicyFIFO = "FIFO"
)

// A ReplacementPolicy decides which way of a set is evicted. Each device owns
// its own policy instance. Both hooks receive the index and the blocks of a
// single set.
type ReplacementPolicy interface {
	Name() string
	// AccessUpdate is called after every hit and every fill.
	AccessUpdate(setID int, set []Block, way int)
	// SelectVictim returns the way to fill. An invalid way is always
	// preferred over a valid one.
	SelectVictim(setID int, set []Block) int
}

// directoryPolicy is implemented by policies that keep their state in the
// device's directory.
type directoryPolicy interface {
	bind(dir *akitacache.DirectoryImpl)
}

// NewPolicy creates a policy by name. The empty name selects LFU.
func NewPolicy(name string) (ReplacementPolicy, error) {
	switch strings.ToUpper(name) {
	case "", PolicyLFU:
		return &LFU{}, nil
	case PolicyLRU:
		return &LRU{}, nil
	case PolicyFIFO:
		return &FIFO{}, nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownPolicy)
	}
}

// firstInvalid returns the first invalid way or -1.
func firstInvalid(set []Block) int {
	for way := range set {
		if set[way].Tag == TagInvalid {
			return way
		}
	}

	return -1
}

// minCounter returns the lowest-indexed way holding the smallest counter.
func minCounter(set []Block) int {
	minWay := 0
	for way := 1; way < len(set); way++ {
		if set[way].Counter < set[minWay].Counter {
			minWay = way
		}
	}

	return minWay
}

// LFU evicts the least frequently used way. Counter counts accesses since the
// line was filled.
type LFU struct{}

// Name returns "LFU".
func (p *LFU) Name() string { return PolicyLFU }

// AccessUpdate counts the access. Overflow is not a concern at 64 bits.
func (p *LFU) AccessUpdate(_ int, set []Block, way int) {
	set[way].Counter++
}

// SelectVictim returns the first invalid way, else the lowest-indexed way with
// the smallest count. The victim's count is cleared.
func (p *LFU) SelectVictim(_ int, set []Block) int {
	way := firstInvalid(set)
	if way < 0 {
		way = minCounter(set)
	}

	set[way].Counter = 0

	return way
}

// LRU evicts the least recently used way. Recency lives in the LRU queues of
// an akita directory; Counter is not used.
type LRU struct {
	dir *akitacache.DirectoryImpl
}

// NewLRU creates an LRU policy over dir. Devices bind their own directory,
// so this is only needed to drive the policy without a device.
func NewLRU(dir *akitacache.DirectoryImpl) *LRU {
	return &LRU{dir: dir}
}

func (p *LRU) bind(dir *akitacache.DirectoryImpl) { p.dir = dir }

// Name returns "LRU".
func (p *LRU) Name() string { return PolicyLRU }

// AccessUpdate moves the way to the back of the set's LRU queue.
func (p *LRU) AccessUpdate(setID int, _ []Block, way int) {
	p.dir.Visit(p.dir.Sets[setID].Blocks[way])
}

// SelectVictim returns the invalid way closest to the front of the LRU
// queue, else the front itself.
func (p *LRU) SelectVictim(setID int, _ []Block) int {
	victim := p.dir.FindVictim(uint64(setID) * uint64(p.dir.BlockSize))
	return victim.WayID
}

// FIFO evicts the way that was filled first. Counter holds the fill time;
// hits do not change it.
type FIFO struct {
	clock uint64
}

// Name returns "FIFO".
func (p *FIFO) Name() string { return PolicyFIFO }

// AccessUpdate does nothing; order is fixed at fill time.
func (p *FIFO) AccessUpdate(_ int, set []Block, way int) {}

// SelectVictim returns the first invalid way, else the earliest filled way,
// and stamps it as the newest fill.
func (p *FIFO) SelectVictim(_ int, set []Block) int {
	way := firstInvalid(set)
	if way < 0 {
		way = minCounter(set)
	}

	p.clock++
	set[way].Counter = p.clock

	return way
}
