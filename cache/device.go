package cache

import (
	"fmt"
	"sync/atomic"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/mem/vm"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/memref"
)

// utilizationInterval is the number of requests between two utilization
// samples. It must be a power of two.
const utilizationInterval = 1 << 12

// A Device is one cache or TLB in a hierarchy. It holds NumBlocks blocks
// organized as sets of Associativity ways. A device is not safe for
// concurrent use; the whole hierarchy processes one reference at a time.
type Device struct {
	*sim.HookableBase

	name     string
	id       DeviceID
	tree     *Tree
	settings Settings
	parent   DeviceID
	children []DeviceID

	blocks []Block
	dir    *akitacache.DirectoryImpl
	policy ReplacementPolicy
	index  tagIndex

	stats      StatsSink
	util       UtilizationSink
	prefetcher Prefetcher
	snooper    Snooper
	recording  *atomic.Bool

	setMask   uint64
	assocBits uint
	blockBits uint

	loaded   int
	requests uint64

	fastPath bool
	lastTag  uint64
	lastPID  vm.PID
	lastPos  int
}

// Builder can build devices.
type Builder struct {
	settings   Settings
	policy     string
	stats      StatsSink
	prefetcher Prefetcher
	snooper    Snooper
	parent     *Device
	hashIndex  bool
	fastPath   bool
}

// MakeBuilder creates a builder with DefaultSettings and LFU replacement.
func MakeBuilder() Builder {
	return Builder{
		settings: DefaultSettings(),
		policy:   PolicyLFU,
		fastPath: true,
	}
}

// WithSettings sets the geometry and flags of the device.
func (b Builder) WithSettings(s Settings) Builder {
	b.settings = s
	return b
}

// WithPolicy sets the replacement policy by name. Every built device gets its
// own policy instance.
func (b Builder) WithPolicy(name string) Builder {
	b.policy = name
	return b
}

// WithStats sets the statistics sink. A sink is required.
func (b Builder) WithStats(stats StatsSink) Builder {
	b.stats = stats
	return b
}

// WithPrefetcher sets the prefetcher invoked after demand misses.
func (b Builder) WithPrefetcher(p Prefetcher) Builder {
	b.prefetcher = p
	return b
}

// WithSnooper sets the snoop filter this device reports to.
func (b Builder) WithSnooper(s Snooper) Builder {
	b.snooper = s
	return b
}

// WithParent sets the next level. The parent must belong to the same tree.
func (b Builder) WithParent(parent *Device) Builder {
	b.parent = parent
	return b
}

// WithHashIndex selects a hashed tag index instead of scanning the ways.
func (b Builder) WithHashIndex(enabled bool) Builder {
	b.hashIndex = enabled
	return b
}

// WithFastPath enables or disables the shortcut for repeated reads of the
// last line. It is on by default.
func (b Builder) WithFastPath(enabled bool) Builder {
	b.fastPath = enabled
	return b
}

// Build creates the device and adds it to the tree.
func (b Builder) Build(tree *Tree, name string) (*Device, error) {
	s, err := b.settings.normalize()
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", name, err)
	}

	if b.stats == nil {
		return nil, fmt.Errorf("device %s: %w", name, ErrNoStats)
	}

	if err := b.stats.Err(); err != nil {
		return nil, fmt.Errorf("device %s: stats: %w", name, err)
	}

	if b.hashIndex && s.PIDTagged {
		return nil, fmt.Errorf("device %s: %w", name, ErrHashIndexPID)
	}

	if b.parent != nil && b.parent.tree != tree {
		return nil, fmt.Errorf("device %s: parent %s: %w",
			name, b.parent.name, ErrUnknownDevice)
	}

	policy, err := NewPolicy(b.policy)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", name, err)
	}

	d := &Device{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		tree:         tree,
		settings:     s,
		parent:       NoDevice,
		policy:       policy,
		stats:        b.stats,
		prefetcher:   b.prefetcher,
		snooper:      b.snooper,
		recording:    s.Recording,
		setMask:      uint64(s.NumBlocks/s.Associativity) - 1,
		assocBits:    log2(s.Associativity),
		blockBits:    log2(s.BlockSize),
		fastPath:     b.fastPath,
		lastTag:      TagInvalid,
	}

	if d.recording == nil {
		d.recording = new(atomic.Bool)
		d.recording.Store(true)
	}

	if s.RecordUtilization {
		if u, ok := b.stats.(UtilizationSink); ok {
			d.util = u
		}
	}

	d.blocks = make([]Block, s.NumBlocks)
	for i := range d.blocks {
		d.blocks[i] = newBlock(uint(s.BlockSize), s.RecordUtilization)
	}

	d.dir = akitacache.NewDirectory(
		d.NumSets(),
		s.Associativity,
		s.BlockSize,
		akitacache.NewLRUVictimFinder(),
	)
	if dp, ok := policy.(directoryPolicy); ok {
		dp.bind(d.dir)
	}

	d.index = directoryIndex{
		dir:       d.dir,
		ways:      s.Associativity,
		blockBits: d.blockBits,
		pidTagged: s.PIDTagged,
	}
	if b.hashIndex {
		d.index = newHashIndex(d.blocks)
	}

	if err := tree.add(d); err != nil {
		return nil, err
	}

	if b.parent != nil {
		d.parent = b.parent.id
		b.parent.children = append(b.parent.children, d.id)
	}

	return d, nil
}

// Name returns the name of the device.
func (d *Device) Name() string { return d.name }

// ID returns the position of the device in its tree.
func (d *Device) ID() DeviceID { return d.id }

// Settings returns the normalized settings of the device.
func (d *Device) Settings() Settings { return d.settings }

// Stats returns the statistics sink.
func (d *Device) Stats() StatsSink { return d.stats }

// Policy returns the replacement policy.
func (d *Device) Policy() ReplacementPolicy { return d.policy }

// Prefetcher returns the prefetcher, or nil.
func (d *Device) Prefetcher() Prefetcher { return d.prefetcher }

// Parent returns the next level, or nil for a root device.
func (d *Device) Parent() *Device {
	if d.parent == NoDevice {
		return nil
	}

	return d.tree.devices[d.parent]
}

// Children returns the devices whose parent is d.
func (d *Device) Children() []*Device {
	children := make([]*Device, 0, len(d.children))
	for _, c := range d.children {
		children = append(children, d.tree.devices[c])
	}

	return children
}

// NumSets returns the number of sets.
func (d *Device) NumSets() int { return int(d.setMask) + 1 }

// Block returns the block at the given set and way.
func (d *Device) Block(set, way int) *Block {
	return &d.blocks[set<<d.assocBits+way]
}

// Requests returns the number of Request calls.
func (d *Device) Requests() uint64 { return d.requests }

// Loaded returns the number of blocks currently holding a line.
func (d *Device) Loaded() int { return d.loaded }

// LoadedFraction returns Loaded as a fraction of NumBlocks.
func (d *Device) LoadedFraction() float64 {
	return float64(d.loaded) / float64(d.settings.NumBlocks)
}

// EnableHashIndex switches the device to a hashed tag index built from its
// current contents.
func (d *Device) EnableHashIndex() error {
	if d.settings.PIDTagged {
		return fmt.Errorf("device %s: %w", d.name, ErrHashIndexPID)
	}

	if _, ok := d.index.(*hashIndex); !ok {
		d.index = newHashIndex(d.blocks)
	}

	return nil
}

// HashIndexed reports whether the device uses a hashed tag index.
func (d *Device) HashIndexed() bool {
	_, ok := d.index.(*hashIndex)
	return ok
}

// Request sends one reference through the device. References that cross
// line boundaries are split and every line is looked up on its own.
func (d *Device) Request(ref memref.Ref) {
	d.requests++
	if d.util != nil && d.requests&(utilizationInterval-1) == 0 {
		d.foldUtilization()
		d.util.WriteSample(ref, d.requests)
	}

	finalAddr := ref.LastAddr()
	tag := ref.Addr >> d.blockBits
	finalTag := finalAddr >> d.blockBits

	if d.fastPath && tag == finalTag && tag == d.lastTag &&
		ref.Kind != memref.KindWrite &&
		(!d.settings.PIDTagged || ref.PID == d.lastPID) {
		b := &d.blocks[d.lastPos]
		d.touch(b, ref)
		d.recordAccess(ref, true, b)
		d.updatePolicy(tag, d.lastPos)

		return
	}

	r := ref
	for {
		if tag < finalTag {
			r.Size = (tag+1)<<d.blockBits - r.Addr
		}

		d.access(r, tag)

		if tag == finalTag {
			return
		}

		tag++
		r.Addr = tag << d.blockBits
		r.Size = finalAddr - r.Addr + 1
	}
}

func (d *Device) access(ref memref.Ref, tag uint64) {
	pos, hit := d.index.find(tag, ref.PID)

	if hit {
		b := &d.blocks[pos]
		d.touch(b, ref)
		d.recordAccess(ref, true, b)

		if d.settings.Coherent && ref.Kind == memref.KindWrite {
			if d.snooper != nil {
				d.snooper.Snoop(tag, d.settings.ID, true)
			} else if d.parent != NoDevice {
				d.tree.devices[d.parent].PropagateWrite(tag, d.id)
			}
		}
	} else {
		pos = d.fill(ref, tag)
	}

	d.updatePolicy(tag, pos)

	if !hit && d.prefetcher != nil && !ref.Kind.IsPrefetch() {
		d.prefetcher.Prefetch(d, ref)
	}

	// A prefetch into the same set may already have replaced the line.
	if d.blocks[pos].Tag == tag {
		d.lastTag = tag
		d.lastPID = ref.PID
		d.lastPos = pos
	} else {
		d.lastTag = TagInvalid
	}
}

// fill handles a miss and returns the position the line was installed at.
func (d *Device) fill(ref memref.Ref, tag uint64) int {
	start := d.setStart(tag)
	pos := start + d.policy.SelectVictim(d.setID(tag), d.set(start))
	b := &d.blocks[pos]

	d.recordAccess(ref, false, b)

	if d.parent != NoDevice {
		d.tree.devices[d.parent].Request(ref)
	} else if d.NumHooks() > 0 && d.recording.Load() {
		d.InvokeHook(sim.HookCtx{
			Domain: d,
			Pos:    HookPosMemoryAccess,
			Item:   ref,
		})
	}

	if d.snooper != nil {
		d.snooper.Snoop(tag, d.settings.ID, ref.Kind == memref.KindWrite)
	}

	// Read the victim only now; the parent may have invalidated it.
	victim := b.Tag
	if victim == TagInvalid {
		d.loaded++
	} else {
		d.evict(victim)
	}

	if pos == d.lastPos {
		d.lastTag = TagInvalid
	}

	d.index.replace(victim, tag, pos)
	b.reset()
	b.Tag = tag
	b.PID = ref.PID
	b.Valid = true
	d.mirror(pos)
	d.touch(b, ref)

	return pos
}

func (d *Device) evict(victim uint64) {
	if d.NumHooks() > 0 {
		d.InvokeHook(sim.HookCtx{
			Domain: d,
			Pos:    HookPosEviction,
			Item:   victim,
		})
	}

	if d.settings.Inclusive {
		for _, c := range d.children {
			d.tree.devices[c].Invalidate(victim, InvalidationInclusive)
		}
	}

	if !d.settings.Coherent || d.childrenContain(victim, NoDevice) {
		return
	}

	if d.snooper != nil {
		d.snooper.SnoopEviction(victim, d.settings.ID)
	} else if d.parent != NoDevice {
		d.tree.devices[d.parent].PropagateEviction(victim, d.id)
	}
}

func (d *Device) recordAccess(ref memref.Ref, hit bool, b *Block) {
	d.stats.Access(ref, hit, b)

	// Hits are reported to every ancestor, misses only to the parent, so a
	// miss is never counted twice at a higher level.
	if hit {
		for up := d.parent; up != NoDevice; up = d.tree.devices[up].parent {
			d.tree.devices[up].stats.ChildAccess(ref, true, b)
		}
	} else if d.parent != NoDevice {
		d.tree.devices[d.parent].stats.ChildAccess(ref, false, b)
	}
}

func (d *Device) touch(b *Block, ref memref.Ref) {
	if !d.settings.RecordUtilization {
		return
	}

	offset := ref.Addr & (uint64(d.settings.BlockSize) - 1)
	b.Touch(offset, ref.Size, d.recording.Load())
}

func (d *Device) updatePolicy(tag uint64, pos int) {
	start := d.setStart(tag)
	d.policy.AccessUpdate(d.setID(tag), d.set(start), pos-start)
}

func (d *Device) setID(tag uint64) int {
	return int(tag & d.setMask)
}

func (d *Device) setStart(tag uint64) int {
	return d.setID(tag) << d.assocBits
}

func (d *Device) set(start int) []Block {
	return d.blocks[start : start+d.settings.Associativity]
}

// findAny looks up a tag regardless of the PID it was installed for.
func (d *Device) findAny(tag uint64) (int, bool) {
	if !d.settings.PIDTagged {
		return d.index.find(tag, 0)
	}

	start := d.setStart(tag)
	for pos := start; pos < start+d.settings.Associativity; pos++ {
		if d.blocks[pos].Tag == tag {
			return pos, true
		}
	}

	return 0, false
}

func (d *Device) invalidateBlock(pos int) {
	b := &d.blocks[pos]
	if pos == d.lastPos {
		d.lastTag = TagInvalid
	}

	d.index.erase(b.Tag)
	b.reset()
	d.mirror(pos)
	d.loaded--
}

// mirror copies the block at pos into the directory entry of the same set
// and way. Directory tags are block-aligned addresses, so TagInvalid never
// matches a lookup.
func (d *Device) mirror(pos int) {
	b := &d.blocks[pos]
	entry := d.dir.Sets[pos>>d.assocBits].Blocks[pos&(d.settings.Associativity-1)]

	entry.IsValid = b.Valid
	if !b.Valid {
		entry.Tag = TagInvalid
		return
	}

	entry.Tag = b.Tag << d.blockBits
	entry.PID = 0
	if d.settings.PIDTagged {
		entry.PID = b.PID
	}
}

func (d *Device) childrenContain(tag uint64, skip DeviceID) bool {
	for _, c := range d.children {
		if c != skip && d.tree.devices[c].ContainsTag(tag) {
			return true
		}
	}

	return false
}

// Invalidate removes a line from the device. Inclusive invalidations reach
// the children only when the device itself is inclusive; coherence
// invalidations always reach them.
func (d *Device) Invalidate(tag uint64, kind InvalidationKind) {
	if pos, ok := d.findAny(tag); ok {
		d.invalidateBlock(pos)
		d.stats.Invalidate(kind)

		if kind == InvalidationInclusive && d.settings.Inclusive {
			for _, c := range d.children {
				d.tree.devices[c].Invalidate(tag, kind)
			}
		}
	}

	if kind == InvalidationCoherence {
		for _, c := range d.children {
			d.tree.devices[c].Invalidate(tag, kind)
		}
	}
}

// ContainsTag reports whether the device or any of its descendants holds the
// line.
func (d *Device) ContainsTag(tag uint64) bool {
	if _, ok := d.findAny(tag); ok {
		return true
	}

	return d.childrenContain(tag, NoDevice)
}

// PropagateEviction is called by a child without a snoop filter that dropped
// a coherent line. Ownership is released only when neither this device nor
// another child still holds it.
func (d *Device) PropagateEviction(tag uint64, requester DeviceID) {
	if _, ok := d.findAny(tag); ok {
		return
	}

	if len(d.children) != 1 && d.childrenContain(tag, requester) {
		return
	}

	if d.snooper != nil {
		d.snooper.SnoopEviction(tag, d.settings.ID)
	} else if d.parent != NoDevice {
		d.tree.devices[d.parent].PropagateEviction(tag, d.id)
	}
}

// PropagateWrite is called by a child without a snoop filter that wrote a
// coherent line. Every other child loses its copy.
func (d *Device) PropagateWrite(tag uint64, requester DeviceID) {
	for _, c := range d.children {
		if c != requester {
			d.tree.devices[c].Invalidate(tag, InvalidationCoherence)
		}
	}

	if d.snooper != nil {
		d.snooper.Snoop(tag, d.settings.ID, true)
	} else if d.parent != NoDevice {
		d.tree.devices[d.parent].PropagateWrite(tag, d.id)
	}
}

// Flush invalidates every line covered by the reference. Instruction flushes
// also flush the parent.
func (d *Device) Flush(ref memref.Ref) {
	d.lastTag = TagInvalid

	tag := ref.Addr >> d.blockBits
	finalTag := ref.LastAddr() >> d.blockBits

	for {
		if pos, ok := d.findAny(tag); ok {
			d.invalidateBlock(pos)
		}

		if tag == finalTag {
			break
		}

		tag++
	}

	if ref.Kind == memref.KindInstrFlush && d.parent != NoDevice {
		d.tree.devices[d.parent].Flush(ref)
	}

	d.stats.Flush(ref)
}

func (d *Device) foldUtilization() {
	for i := range d.blocks {
		b := &d.blocks[i]
		if b.Valid && b.Recorded {
			d.util.FoldLine(b.used)
		}
	}
}

// FinalizeUtilization folds the lines still resident into the utilization
// histogram. It is called once when the simulation ends.
func (d *Device) FinalizeUtilization() {
	if d.util != nil {
		d.foldUtilization()
	}
}
