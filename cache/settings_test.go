package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/cache"
)

var _ = Describe("Settings", func() {
	geometry := func(assoc, blockSize int, total uint64) cache.Settings {
		s := cache.DefaultSettings()
		s.Associativity = assoc
		s.BlockSize = blockSize
		s.TotalSize = total

		return s
	}

	DescribeTable("validating geometry",
		func(assoc, blockSize int, total uint64, expected error) {
			err := geometry(assoc, blockSize, total).Validate()
			if expected == nil {
				Expect(err).ToNot(HaveOccurred())
			} else {
				Expect(err).To(MatchError(expected))
			}
		},
		Entry("default 32KB 8-way", 8, 64, uint64(32*1024), nil),
		Entry("direct mapped", 1, 64, uint64(4096), nil),
		Entry("fully associative", 64, 64, uint64(4096), nil),
		Entry("smallest block", 1, 4, uint64(4), nil),
		Entry("associativity not a power of two", 3, 64, uint64(4096), cache.ErrNotPowerOfTwo),
		Entry("block size not a power of two", 4, 48, uint64(4800), cache.ErrNotPowerOfTwo),
		Entry("block smaller than four bytes", 1, 2, uint64(64), cache.ErrBlockTooSmall),
		Entry("size not a multiple of block", 4, 64, uint64(4100), cache.ErrSizeNotMultiple),
		Entry("block count not a power of two", 4, 64, uint64(64*12), cache.ErrNotPowerOfTwo),
		Entry("fewer blocks than ways", 16, 64, uint64(512), cache.ErrTooFewBlocks),
	)

	It("should accept an explicit block count", func() {
		s := cache.Settings{Associativity: 4, BlockSize: 4096, NumBlocks: 64, ID: -1}
		Expect(s.Validate()).To(Succeed())
	})

	It("should print the configuration dump line", func() {
		s := geometry(4, 64, 256)
		s.NumBlocks = 4

		Expect(s.String()).To(Equal(
			"associativity: 4, block_size: 64, total_size: 256, inclusive: false, " +
				"coherent_cache: false, id: -1, num_blocks: 4"))
	})
})
