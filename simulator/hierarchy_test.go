package simulator_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/config"
	"github.com/sarchlab/cachesim/memref"
	"github.com/sarchlab/cachesim/simulator"
	"github.com/sarchlab/cachesim/stats"
)

const privateL2Hierarchy = `
caches:
  - name: L3
    size: 65536
    assoc: 8
    inclusive: true
    parent: memory
    children: [L2_0, L2_1]
  - name: L2_0
    size: 16384
    assoc: 4
    parent: L3
    children: [L1I_0, L1D_0]
  - name: L2_1
    size: 16384
    assoc: 4
    parent: L3
    children: [L1I_1, L1D_1]
  - {name: L1I_0, type: instruction, core: 0, size: 4096, assoc: 4, parent: L2_0}
  - {name: L1D_0, type: data, core: 0, size: 4096, assoc: 4, parent: L2_0}
  - {name: L1I_1, type: instruction, core: 1, size: 4096, assoc: 4, parent: L2_1}
  - {name: L1D_1, type: data, core: 1, size: 4096, assoc: 4, parent: L2_1}
`

const sharedL2Hierarchy = `
caches:
  - {name: L3, size: 65536, assoc: 8, parent: memory, children: [L2]}
  - {name: L2, size: 16384, assoc: 4, parent: L3, children: [L1I_0, L1D_0]}
  - {name: L1I_0, type: instruction, core: 0, size: 4096, assoc: 4, parent: L2}
  - {name: L1D_0, type: data, core: 0, size: 4096, assoc: 4, parent: L2}
`

var _ = Describe("Hierarchy simulator", func() {
	var k *config.Knobs

	BeforeEach(func() {
		k = smallKnobs()
	})

	build := func(doc string) *simulator.Simulator {
		h, err := config.ParseHierarchy([]byte(doc))
		Expect(err).ToNot(HaveOccurred())

		s, err := simulator.NewHierarchySimulator(k, h, simulator.WithProgressInterval(0))
		Expect(err).ToNot(HaveOccurred())

		return s
	}

	It("should place the caches by role", func() {
		s := build(privateL2Hierarchy)

		Expect(s.Tree().Len()).To(Equal(7))
		Expect(s.L1I(1).Name()).To(Equal("L1I_1"))
		Expect(s.L1D(0).Name()).To(Equal("L1D_0"))
		Expect(s.L1D(0).Parent().Name()).To(Equal("L2_0"))
		Expect(s.LastLevel()).To(HaveLen(1))
		Expect(s.LastLevel()[0].Name()).To(Equal("L3"))
		Expect(s.Filter()).To(BeNil())
		Expect(s.L1D(0).HashIndexed()).To(BeFalse())
	})

	It("should load the hierarchy named by the knobs", func() {
		k.HierarchyFile = filepath.Join(k.StatsDir, "hierarchy.yaml")
		Expect(os.WriteFile(k.HierarchyFile, []byte(sharedL2Hierarchy), 0o644)).To(Succeed())
		k.NumCores = 1

		s, err := simulator.NewCacheSimulator(k)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.LastLevel()[0].Name()).To(Equal("L3"))
	})

	It("should reject a hierarchy that leaves a core without caches", func() {
		k.NumCores = 3
		h, err := config.ParseHierarchy([]byte(privateL2Hierarchy))
		Expect(err).ToNot(HaveOccurred())

		_, err = simulator.NewHierarchySimulator(k, h)
		Expect(err).To(HaveOccurred())
	})

	Context("with coherence", func() {
		BeforeEach(func() {
			k.ModelCoherence = true
		})

		It("should snoop the children of the shared last level", func() {
			s := build(privateL2Hierarchy)

			l2a, err := s.Tree().Lookup("L2_0")
			Expect(err).ToNot(HaveOccurred())
			l2b, err := s.Tree().Lookup("L2_1")
			Expect(err).ToNot(HaveOccurred())

			Expect(s.Filter()).ToNot(BeNil())
			Expect(s.Filter().NumCaches()).To(Equal(2))
			Expect(l2a.Settings().ID).To(Equal(0))
			Expect(l2b.Settings().ID).To(Equal(1))
			Expect(s.L1D(0).Settings().ID).To(Equal(-1))
			Expect(s.L1D(0).Settings().Coherent).To(BeTrue())
			Expect(s.LastLevel()[0].Settings().Coherent).To(BeFalse())
		})

		It("should hash the tag lookups of mid-level hierarchies", func() {
			s := build(privateL2Hierarchy)

			for _, d := range s.Tree().Devices() {
				Expect(d.HashIndexed()).To(BeTrue(), d.Name())
			}
		})

		It("should invalidate the other core through its private levels", func() {
			s := build(privateL2Hierarchy)

			process(s, write(1, 0x40), read(2, 0x40))
			Expect(s.Filter().Stats().Writebacks).To(Equal(uint64(1)))

			process(s, write(2, 0x40))

			Expect(s.L1D(0).ContainsTag(1)).To(BeFalse())
			Expect(s.L1D(1).ContainsTag(1)).To(BeTrue())
			Expect(s.Filter().Stats().Invalidates).To(Equal(uint64(1)))
		})

		It("should snoop below a chain of single-child caches", func() {
			k.NumCores = 1
			s := build(sharedL2Hierarchy)

			l2, err := s.Tree().Lookup("L2")
			Expect(err).ToNot(HaveOccurred())

			Expect(s.Filter().NumCaches()).To(Equal(2))
			Expect(s.L1I(0).Settings().ID).To(Equal(0))
			Expect(s.L1D(0).Settings().ID).To(Equal(1))
			Expect(l2.Settings().Coherent).To(BeFalse())
			Expect(s.LastLevel()[0].Settings().Coherent).To(BeFalse())
		})
	})
})

var _ = Describe("TLB simulator", func() {
	var k *config.TLBKnobs

	BeforeEach(func() {
		k = config.DefaultTLBKnobs()
		k.NumCores = 2
		k.StatsDir = GinkgoT().TempDir()
	})

	It("should build private TLBs per core", func() {
		s, err := simulator.NewTLBSimulator(k, simulator.WithProgressInterval(0))
		Expect(err).ToNot(HaveOccurred())

		Expect(s.Tree().Len()).To(Equal(6))
		Expect(s.L1D(1).Name()).To(Equal("L1_D_TLB_1"))
		Expect(s.L1D(1).Parent().Name()).To(Equal("L2_TLB_1"))
		Expect(s.LastLevel()).To(HaveLen(2))

		all, memory := s.PageStats()
		Expect(all).To(BeNil())
		Expect(memory).To(BeNil())
	})

	It("should keep translations of different processes apart", func() {
		s, err := simulator.NewTLBSimulator(k, simulator.WithProgressInterval(0))
		Expect(err).ToNot(HaveOccurred())

		process(s,
			memref.Ref{Kind: memref.KindRead, TID: 1, PID: 1, Addr: 0x1000, Size: 8},
			memref.Ref{Kind: memref.KindRead, TID: 1, PID: 2, Addr: 0x1008, Size: 8},
			memref.Ref{Kind: memref.KindRead, TID: 1, PID: 1, Addr: 0x1010, Size: 8},
		)

		Expect(s.CacheMetric(stats.MetricMisses, simulator.LevelFirst, 0, simulator.SplitData)).
			To(Equal(uint64(2)))
		Expect(s.CacheMetric(stats.MetricHits, simulator.LevelFirst, 0, simulator.SplitData)).
			To(Equal(uint64(1)))
		Expect(s.CacheMetric(stats.MetricMisses, simulator.LevelLast, 0, simulator.SplitData)).
			To(Equal(uint64(2)))
		Expect(s.CacheMetric(stats.MetricMisses, simulator.LevelLast, 1, simulator.SplitData)).
			To(BeZero())
	})

	It("should reject invalid knobs", func() {
		k.L2Entries = 1000
		_, err := simulator.NewTLBSimulator(k)
		Expect(err).To(HaveOccurred())
	})
})
