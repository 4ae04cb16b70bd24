package scenario_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/scenario"
	"github.com/sarchlab/rvcsr/timing/lsu"
)

var _ = Describe("Parse", func() {
	It("should apply defaults", func() {
		s, err := scenario.Parse([]byte("name: empty\ncycles: 3\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Name).To(Equal("empty"))
		Expect(s.Pipeline.Retire).To(BeTrue())
		Expect(s.LSU).To(Equal(lsu.DefaultConfig()))
	})

	It("should keep lsu defaults not named in the file", func() {
		s, err := scenario.Parse([]byte(`
cycles: 3
lsu:
  address_phase_cycles: 2
  cache:
    miss_latency: 20
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.LSU.AddressPhaseCycles).To(Equal(uint64(2)))
		Expect(s.LSU.Cache.MissLatency).To(Equal(uint64(20)))
		Expect(s.LSU.Cache.Size).To(Equal(lsu.DefaultCacheConfig().Size))
	})

	It("should parse stimuli and expectations", func() {
		s, err := scenario.Parse([]byte(`
cycles: 10
stimuli:
  - at: 1
    csr: {op: set, reg: mstatus, value: 0x8}
  - at: 2
    irq: {line: 40, level: true}
    software: true
  - at: 3
    exception: ecall
    load: 0x1000
expect:
  - at: 3
    class: exception
    debug_cause: none
    csr: {mepc: 0x108, "0x340": 0}
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Stimuli).To(HaveLen(3))
		Expect(s.Stimuli[0].CSR.Value).To(Equal(uint32(0x8)))
		Expect(*s.Stimuli[1].Software).To(BeTrue())
		Expect(*s.Stimuli[2].Load).To(Equal(uint32(0x1000)))
		Expect(s.Expect[0].CSR).To(HaveKeyWithValue("mepc", uint32(0x108)))
	})

	DescribeTable("should reject invalid scenarios",
		func(doc, msg string) {
			_, err := scenario.Parse([]byte(doc))
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("no cycles", "name: x\n", "cycles must be positive"),
		Entry("bad yaml", "cycles: [\n", "parsing scenario"),
		Entry("stimulus past the end",
			"cycles: 2\nstimuli:\n  - at: 2\n    software: true\n", "past the end"),
		Entry("unknown exception",
			"cycles: 2\nstimuli:\n  - at: 0\n    exception: bogus\n", "unknown exception"),
		Entry("unknown register",
			"cycles: 2\nstimuli:\n  - at: 0\n    csr: {op: read, reg: nope}\n", "stimulus 0"),
		Entry("unknown op",
			"cycles: 2\nstimuli:\n  - at: 0\n    csr: {op: swap, reg: mie}\n", "unknown csr op"),
		Entry("irq line out of range",
			"cycles: 2\nstimuli:\n  - at: 0\n    irq: {line: 128, level: true}\n", "out of range"),
		Entry("load and store",
			"cycles: 2\nstimuli:\n  - at: 0\n    load: 4\n    store: 8\n", "load and store"),
		Entry("unknown class",
			"cycles: 2\nexpect:\n  - at: 0\n    class: fault\n", "unknown class"),
		Entry("unknown debug cause",
			"cycles: 2\nexpect:\n  - at: 0\n    debug_cause: nap\n", "unknown debug cause"),
		Entry("unknown expected register",
			"cycles: 2\nexpect:\n  - at: 0\n    csr: {nope: 1}\n", "expectation 0"),
		Entry("bad lsu",
			"cycles: 2\nlsu:\n  fault_ranges:\n    - {start: 8, end: 4}\n", "lsu"),
	)
})

var _ = Describe("Load", func() {
	It("should load a file", func() {
		s, err := scenario.Load(filepath.Join("testdata", "vendor_id.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Name).To(Equal("vendor-id"))
	})

	It("should fail on a missing file", func() {
		_, err := scenario.Load(filepath.Join("testdata", "missing.yaml"))
		Expect(err).To(MatchError(ContainSubstring("reading scenario file")))
	})

	It("should name the file in validation errors", func() {
		path := filepath.Join(GinkgoT().TempDir(), "bad.yaml")
		Expect(os.WriteFile(path, []byte("name: bad\n"), 0o644)).To(Succeed())
		_, err := scenario.Load(path)
		Expect(err).To(MatchError(ContainSubstring("bad.yaml")))
	})
})

var _ = Describe("ApplyConfig", func() {
	It("should return a copy of the base without overrides", func() {
		s, err := scenario.Parse([]byte("cycles: 1\n"))
		Expect(err).NotTo(HaveOccurred())

		base := config.DefaultConfig()
		cfg, err := s.ApplyConfig(base)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(base))
		Expect(cfg).NotTo(BeIdenticalTo(base))
	})

	It("should override only the named fields", func() {
		s, err := scenario.Parse([]byte("cycles: 1\nconfig:\n  num_irqs: 8\n  mtvec_init: 0x400\n"))
		Expect(err).NotTo(HaveOccurred())

		base := config.DefaultConfig()
		base.MvendorID = 0x602
		cfg, err := s.ApplyConfig(base)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.NumIRQs).To(Equal(8))
		Expect(cfg.MtvecInit).To(Equal(uint32(0x400)))
		Expect(cfg.MvendorID).To(Equal(uint32(0x602)))
		Expect(base.NumIRQs).To(Equal(32))
	})

	It("should report mistyped overrides", func() {
		s, err := scenario.Parse([]byte("cycles: 1\nconfig:\n  num_irqs: many\n"))
		Expect(err).NotTo(HaveOccurred())
		_, err = s.ApplyConfig(config.DefaultConfig())
		Expect(err).To(MatchError(ContainSubstring("config override")))
	})
})
