package scenario_test

import (
	"bytes"
	"log/slog"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/scenario"
)

func run(doc string, opts ...scenario.RunnerOption) *scenario.Result {
	s, err := scenario.Parse([]byte(doc))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	result, err := scenario.NewRunner(nil, opts...).Run(s)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return result
}

func expectPassed(result *scenario.Result) {
	ExpectWithOffset(1, result.Failures).To(BeEmpty())
	ExpectWithOffset(1, result.Passed()).To(BeTrue())
}

var _ = Describe("Runner", func() {
	DescribeTable("testdata scenarios",
		func(file string) {
			s, err := scenario.Load(filepath.Join("testdata", file))
			Expect(err).NotTo(HaveOccurred())

			result, err := scenario.NewRunner(nil).Run(s)
			Expect(err).NotTo(HaveOccurred())
			expectPassed(result)
			Expect(result.Cycles).To(Equal(s.Cycles))
		},
		Entry("vectored external line", "vectored_line.yaml"),
		Entry("debug halt and resume", "debug_halt.yaml"),
		Entry("memory fence", "memory_fence.yaml"),
		Entry("load access fault", "access_fault.yaml"),
		Entry("vendor ID", "vendor_id.yaml"),
	)

	It("should take an ecall and return from it", func() {
		result := run(`
cycles: 8
config:
  mtvec_init: 0x400
pipeline:
  reset_pc: 0x100
stimuli:
  - at: 0
    csr: {op: write, reg: mstatus, value: 0x8}
  - at: 2
    exception: ecall
  - at: 4
    exception: mret
expect:
  - at: 2
    class: exception
    accepted: true
    trap_addr: 0x400
    csr: {mcause: 11, mepc: 0x108, mstatus: 0x1880}
  - at: 4
    class: return
    accepted: true
    trap_addr: 0x108
    csr: {mstatus: 0x1888}
`)
		expectPassed(result)
		Expect(result.Stats.Exceptions).To(Equal(uint64(1)))
		Expect(result.Stats.Returns).To(Equal(uint64(1)))
	})

	It("should hold requests for the accept delay", func() {
		result := run(`
cycles: 6
pipeline:
  accept_delay: 2
stimuli:
  - at: 1
    exception: illegal
expect:
  - at: 1
    trap_enter: true
    accepted: false
  - at: 2
    trap_enter: true
    accepted: false
  - at: 3
    accepted: true
    csr: {mcause: 2}
`)
		expectPassed(result)
		Expect(result.Stats.Withdrawn).To(BeZero())
	})

	It("should hold requests while acceptance is blocked", func() {
		result := run(`
cycles: 6
stimuli:
  - at: 1
    exception: ecall
    hold_accept: true
  - at: 4
    hold_accept: false
expect:
  - at: 3
    trap_enter: true
    accepted: false
  - at: 4
    accepted: true
`)
		expectPassed(result)
	})

	It("should stall in wfi until an enabled line is pending", func() {
		result := run(`
cycles: 8
stimuli:
  - at: 0
    csr: {op: write, reg: mie, value: 0x80}
  - at: 2
    wfi: true
  - at: 5
    timer: true
expect:
  - at: 4
    wfi_stall_clear: false
  - at: 5
    wfi_stall_clear: true
    trap_enter: false
`)
		expectPassed(result)
		Expect(result.Retired).To(Equal(uint64(4)))
	})

	It("should halt out of reset", func() {
		result := run(`
cycles: 4
pipeline:
  reset_pc: 0x100
stimuli:
  - at: 0
    halt_on_reset: true
expect:
  - at: 0
    class: debug_halt
    accepted: true
    debug_cause: haltreq
    csr: {dpc: 0x100}
  - at: 3
    debug_mode: true
`)
		expectPassed(result)
		Expect(result.Retired).To(BeZero())
		Expect(result.Stats.DebugEntries).To(Equal(uint64(1)))
	})

	It("should report failed expectations", func() {
		result := run(`
cycles: 2
stimuli:
  - at: 0
    csr: {op: write, reg: mscratch, value: 0x5}
expect:
  - at: 0
    trap_enter: true
    csr: {mscratch: 0x6}
`)
		Expect(result.Passed()).To(BeFalse())
		Expect(result.Failures).To(HaveLen(2))
		Expect(result.Failures[0]).To(MatchError("cycle 0: trap_enter: expected true, got false"))
		Expect(result.Failures[1]).To(MatchError("cycle 0: csr[mscratch]: expected 0x6, got 0x5"))
	})

	It("should apply overrides on top of the base config", func() {
		base := config.DefaultConfig()
		base.MvendorID = 0x602

		s, err := scenario.Parse([]byte(`
cycles: 1
config:
  marchid: 7
expect:
  - at: 0
    csr: {mvendorid: 0x602, marchid: 7}
`))
		Expect(err).NotTo(HaveOccurred())

		result, err := scenario.NewRunner(base).Run(s)
		Expect(err).NotTo(HaveOccurred())
		expectPassed(result)
	})

	It("should reject an invalid configuration", func() {
		s, err := scenario.Parse([]byte("cycles: 1\nconfig:\n  counter_width: 0\n"))
		Expect(err).NotTo(HaveOccurred())
		_, err = scenario.NewRunner(nil).Run(s)
		Expect(err).To(MatchError(ContainSubstring("counter_width")))
	})

	It("should call the cycle hook and log the result", func() {
		var buf bytes.Buffer
		var cycles []uint64
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		run(`
cycles: 3
stimuli:
  - at: 0
    exception: ecall
`,
			scenario.WithLogger(logger),
			scenario.WithCycleHook(func(c uint64) { cycles = append(cycles, c) }),
		)

		Expect(cycles).To(Equal([]uint64{1, 2, 3}))
		Expect(buf.String()).To(ContainSubstring("scenario finished"))
		Expect(buf.String()).To(ContainSubstring("failures=0"))
	})
})

var _ = Describe("Soak", func() {
	It("should keep every invariant under random inputs", func() {
		sc := scenario.DefaultSoakConfig()
		sc.Cycles = 20_000
		sc.Seed = 7

		var last uint64
		result, err := scenario.NewRunner(nil,
			scenario.WithCycleHook(func(c uint64) { last = c }),
		).Soak(sc)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Violations).To(BeEmpty())
		Expect(result.Passed()).To(BeTrue())
		Expect(last).To(Equal(sc.Cycles))
		Expect(result.Stats.Cycles).To(Equal(sc.Cycles))
		Expect(result.Stats.Exceptions).To(BeNumerically(">", 0))
		Expect(result.Stats.Interrupts).To(BeNumerically(">", 0))
		Expect(result.Stats.DebugEntries).To(BeNumerically(">", 0))
		Expect(result.LSU.Loads + result.LSU.Stores).To(BeNumerically(">", 0))
	})

	It("should be reproducible for a seed", func() {
		sc := scenario.DefaultSoakConfig()
		sc.Cycles = 2_000

		a, err := scenario.NewRunner(nil).Soak(sc)
		Expect(err).NotTo(HaveOccurred())
		b, err := scenario.NewRunner(nil).Soak(sc)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Final).To(Equal(b.Final))
		Expect(a.Stats).To(Equal(b.Stats))
	})

	It("should reject an invalid lsu configuration", func() {
		sc := scenario.DefaultSoakConfig()
		sc.LSU.Cache.Associativity = 0
		_, err := scenario.NewRunner(nil).Soak(sc)
		Expect(err).To(MatchError(ContainSubstring("lsu")))
	})

	It("should describe violations", func() {
		err := &scenario.InvariantError{Cycle: 4, Rule: "memory-fence", Detail: "interrupt accepted"}
		Expect(err.Error()).To(Equal("cycle 4: memory-fence: interrupt accepted"))
	})
})
