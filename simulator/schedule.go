package simulator

import (
	"math"

	"github.com/sarchlab/cachesim/logging"
)

// scheduler statically assigns threads to cores. A thread stays on the core
// it was first placed on unless a CPU marker moves it.
type scheduler struct {
	logger *logging.Logger

	threadCounts []int
	everCounts   []int
	cpuCounts    []int

	threadCore map[int64]int
	cpuCore    map[uint64]int

	lastTID  int64
	lastCore int
	haveLast bool
}

func newScheduler(numCores int, logger *logging.Logger) *scheduler {
	return &scheduler{
		logger:       logger,
		threadCounts: make([]int, numCores),
		everCounts:   make([]int, numCores),
		cpuCounts:    make([]int, numCores),
		threadCore:   make(map[int64]int),
		cpuCore:      make(map[uint64]int),
	}
}

// emptiest returns the lowest-numbered core with the smallest count.
func emptiest(counts []int) int {
	minCount := math.MaxInt
	minCore := 0

	for core, c := range counts {
		if c < minCount {
			minCount = c
			minCore = core
		}
	}

	return minCore
}

// coreFor returns the core of tid, placing the thread on the least loaded
// core the first time it is seen.
func (s *scheduler) coreFor(tid int64) int {
	if s.haveLast && tid == s.lastTID {
		return s.lastCore
	}

	core, ok := s.threadCore[tid]
	if !ok {
		core = emptiest(s.threadCounts)
		s.threadCounts[core]++
		s.everCounts[core]++
		s.threadCore[tid] = core
		s.logger.LogThreadScheduled(tid, core, s.threadCounts[core], false)
	}

	s.lastTID = tid
	s.lastCore = core
	s.haveLast = true

	return core
}

// cpuMarker moves tid to the core its CPU maps to, mapping the CPU to the
// least loaded core on first sight.
func (s *scheduler) cpuMarker(tid int64, cpu uint64) {
	if int64(cpu) < 0 {
		return
	}

	core, ok := s.cpuCore[cpu]
	if !ok {
		core = emptiest(s.cpuCounts)
		s.cpuCounts[core]++
		s.cpuCore[cpu] = core
		s.logger.LogCPUScheduled(cpu, core, s.cpuCounts[core])
	}

	if prior, ok := s.threadCore[tid]; ok {
		s.threadCounts[prior]--
	}

	s.threadCore[tid] = core
	s.threadCounts[core]++
	s.everCounts[core]++

	if s.haveLast && s.lastTID == tid {
		s.haveLast = false
	}

	s.logger.LogThreadScheduled(tid, core, s.threadCounts[core], true)
}

// exit removes tid from its core. Unknown threads are ignored.
func (s *scheduler) exit(tid int64) {
	core, ok := s.threadCore[tid]
	if !ok {
		return
	}

	s.threadCounts[core]--
	delete(s.threadCore, tid)
	s.haveLast = false
	s.logger.LogThreadExit(tid, core, s.threadCounts[core])
}

// everUsed reports whether any thread ran on core.
func (s *scheduler) everUsed(core int) bool {
	return s.everCounts[core] > 0
}

// threads returns the number of threads ever placed on core.
func (s *scheduler) threads(core int) int {
	return s.everCounts[core]
}
