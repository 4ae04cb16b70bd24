package csr_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvcsr/csr"
)

var _ = Describe("Addr", func() {
	It("should classify the read-only space", func() {
		Expect(csr.Mvendorid.ReadOnly()).To(BeTrue())
		Expect(csr.Mlei.ReadOnly()).To(BeTrue())
		Expect(csr.Mstatus.ReadOnly()).To(BeFalse())
		Expect(csr.Dmdata0.ReadOnly()).To(BeFalse())
	})

	DescribeTable("ParseAddr",
		func(s string, want csr.Addr) {
			addr, err := csr.ParseAddr(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(want))
		},
		Entry("name", "mtvec", csr.Mtvec),
		Entry("upper case name", "MEPC", csr.Mepc),
		Entry("hex", "0x300", csr.Mstatus),
		Entry("hex with separators", "0xb_00", csr.Mcycle),
		Entry("hpm event", "mhpmevent3", csr.Mhpmevent3),
		Entry("hpm counter", "mhpmcounter31", csr.Mhpmcounter31),
		Entry("hpm counter high", "mhpmcounter4h", csr.Mhpmcounter3h+1),
	)

	It("should reject unknown names", func() {
		_, err := csr.ParseAddr("sstatus")
		Expect(err).To(MatchError(ContainSubstring("unknown CSR")))
	})

	It("should name registers", func() {
		Expect(csr.Mcause.String()).To(Equal("mcause"))
		Expect(csr.Mhpmcounter3h.String()).To(Equal("mhpmcounter3h"))
		Expect(csr.Addr(0x7ff).String()).To(Equal("0x7ff"))
	})
})

var _ = Describe("DebugCause", func() {
	It("should parse the names it prints", func() {
		for c := csr.DebugCauseNone; c <= csr.DebugCauseStep; c++ {
			parsed, ok := csr.ParseDebugCause(c.String())
			Expect(ok).To(BeTrue())
			Expect(parsed).To(Equal(c))
		}
	})

	It("should reject unknown names", func() {
		_, ok := csr.ParseDebugCause("nap")
		Expect(ok).To(BeFalse())
	})
})
