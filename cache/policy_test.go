package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/cachesim/cache"
)

var _ = Describe("Replacement policies", func() {
	var set []cache.Block

	BeforeEach(func() {
		set = make([]cache.Block, 4)
		for i := range set {
			set[i].Tag = cache.TagInvalid
		}
	})

	fill := func(p cache.ReplacementPolicy, tag uint64) int {
		way := p.SelectVictim(0, set)
		set[way].Tag = tag
		set[way].Valid = true
		p.AccessUpdate(0, set, way)

		return way
	}

	It("should look policies up by name", func() {
		for name, expected := range map[string]string{
			"":     cache.PolicyLFU,
			"lfu":  cache.PolicyLFU,
			"LRU":  cache.PolicyLRU,
			"Fifo": cache.PolicyFIFO,
		} {
			p, err := cache.NewPolicy(name)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Name()).To(Equal(expected))
		}
	})

	It("should reject unknown policies", func() {
		_, err := cache.NewPolicy("random")
		Expect(err).To(MatchError(cache.ErrUnknownPolicy))
	})

	Context("LFU", func() {
		var p cache.ReplacementPolicy

		BeforeEach(func() {
			p, _ = cache.NewPolicy(cache.PolicyLFU)
		})

		It("should fill invalid ways in order", func() {
			for tag := uint64(0); tag < 4; tag++ {
				Expect(fill(p, tag)).To(Equal(int(tag)))
			}
		})

		It("should evict the least used way and clear its count", func() {
			for tag := uint64(0); tag < 4; tag++ {
				fill(p, tag)
			}

			p.AccessUpdate(0, set, 0)
			p.AccessUpdate(0, set, 2)
			p.AccessUpdate(0, set, 3)

			way := p.SelectVictim(0, set)
			Expect(way).To(Equal(1))
			Expect(set[1].Counter).To(BeZero())
		})

		It("should prefer an invalid way over a rarely used one", func() {
			for tag := uint64(0); tag < 4; tag++ {
				fill(p, tag)
			}

			set[3].Tag = cache.TagInvalid
			set[3].Valid = false
			set[3].Counter = 100

			Expect(p.SelectVictim(0, set)).To(Equal(3))
		})
	})

	Context("LRU", func() {
		var (
			dir *akitacache.DirectoryImpl
			p   *cache.LRU
		)

		BeforeEach(func() {
			dir = akitacache.NewDirectory(1, 4, 64, akitacache.NewLRUVictimFinder())
			p = cache.NewLRU(dir)
		})

		fillValid := func(tag uint64) int {
			way := fill(p, tag)
			entry := dir.Sets[0].Blocks[way]
			entry.Tag = tag * 64
			entry.IsValid = true

			return way
		}

		It("should evict the least recently used way", func() {
			for tag := uint64(0); tag < 4; tag++ {
				Expect(fillValid(tag)).To(Equal(int(tag)))
			}

			p.AccessUpdate(0, set, 0)
			p.AccessUpdate(0, set, 1)

			Expect(p.SelectVictim(0, set)).To(Equal(2))
			Expect(dir.Sets[0].LRUQueue[3]).To(BeIdenticalTo(dir.Sets[0].Blocks[1]))
		})

		It("should prefer an invalid way over the least recently used one", func() {
			for tag := uint64(0); tag < 4; tag++ {
				fillValid(tag)
			}

			dir.Sets[0].Blocks[3].IsValid = false

			Expect(p.SelectVictim(0, set)).To(Equal(3))
		})
	})

	Context("FIFO", func() {
		It("should evict in fill order regardless of hits", func() {
			p, _ := cache.NewPolicy(cache.PolicyFIFO)
			for tag := uint64(0); tag < 4; tag++ {
				fill(p, tag)
			}

			p.AccessUpdate(0, set, 0)
			p.AccessUpdate(0, set, 0)

			Expect(fill(p, 10)).To(Equal(0))
			Expect(fill(p, 11)).To(Equal(1))
		})
	})
})
