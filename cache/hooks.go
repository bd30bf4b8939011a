package cache

import "github.com/sarchlab/akita/v4/sim"

// HookPosMemoryAccess is triggered by a root device when a miss goes to main
// memory while recording is on. The item is the memref.Ref of the access.
var HookPosMemoryAccess = &sim.HookPos{Name: "MemoryAccess"}

// HookPosEviction is triggered when a valid line is replaced. The item is the
// evicted tag.
var HookPosEviction = &sim.HookPos{Name: "Eviction"}
