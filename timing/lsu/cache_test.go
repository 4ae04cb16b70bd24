package lsu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvcsr/timing/lsu"
)

var _ = Describe("Cache", func() {
	var c *lsu.Cache

	BeforeEach(func() {
		// 4KB, 4-way, 64B lines: 16 sets
		c = lsu.NewCache(lsu.CacheConfig{
			Size:          4 * 1024,
			Associativity: 4,
			BlockSize:     64,
			HitLatency:    1,
			MissLatency:   10,
		})
	})

	It("should miss on a cold cache", func() {
		result := c.Access(0x1000, false)
		Expect(result.Hit).To(BeFalse())
		Expect(result.Latency).To(Equal(uint64(10)))

		stats := c.Stats()
		Expect(stats.Reads).To(Equal(uint64(1)))
		Expect(stats.Misses).To(Equal(uint64(1)))
		Expect(stats.Hits).To(BeZero())
	})

	It("should hit within the same line", func() {
		c.Access(0x1000, false)
		result := c.Access(0x1004, false)
		Expect(result.Hit).To(BeTrue())
		Expect(result.Latency).To(Equal(uint64(1)))
		Expect(c.Contains(0x103F)).To(BeTrue())
		Expect(c.Contains(0x1040)).To(BeFalse())
	})

	It("should write-allocate", func() {
		Expect(c.Access(0x2000, true).Hit).To(BeFalse())
		Expect(c.Access(0x2000, false).Hit).To(BeTrue())
		Expect(c.Stats().Writes).To(Equal(uint64(1)))
	})

	It("should evict the least recently used way", func() {
		c.Access(0x0000, true)
		c.Access(0x0400, false)
		c.Access(0x0800, false)
		c.Access(0x0C00, false)

		// Touch the first line so the second becomes the victim.
		Expect(c.Access(0x0000, false).Hit).To(BeTrue())

		result := c.Access(0x1000, false)
		Expect(result.Hit).To(BeFalse())
		Expect(result.Evicted).To(BeTrue())
		Expect(result.EvictedAddr).To(Equal(uint64(0x0400)))
		Expect(c.Contains(0x0000)).To(BeTrue())
		Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		Expect(c.Stats().Writebacks).To(BeZero())
	})

	It("should count writebacks of dirty lines on flush", func() {
		c.Access(0x0000, true)
		c.Access(0x0040, false)
		c.Flush()
		Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
		Expect(c.Contains(0x0000)).To(BeFalse())
	})

	It("should invalidate a single line", func() {
		c.Access(0x0000, false)
		c.Access(0x0040, false)
		c.Invalidate(0x0000)
		Expect(c.Contains(0x0000)).To(BeFalse())
		Expect(c.Contains(0x0040)).To(BeTrue())
	})

	It("should clear lines and statistics on reset", func() {
		c.Access(0x0000, false)
		c.Reset()
		Expect(c.Contains(0x0000)).To(BeFalse())
		Expect(c.Stats()).To(Equal(lsu.CacheStatistics{}))
	})

	Describe("Validate", func() {
		It("should accept the default", func() {
			Expect(lsu.DefaultCacheConfig().Validate()).To(Succeed())
		})

		It("should reject a cache smaller than one set", func() {
			cfg := lsu.DefaultCacheConfig()
			cfg.Size = 16
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("smaller than one set")))
		})

		It("should reject a miss faster than a hit", func() {
			cfg := lsu.DefaultCacheConfig()
			cfg.MissLatency = 0
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})
})
