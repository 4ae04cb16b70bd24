package trap_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/csr"
	"github.com/sarchlab/rvcsr/trap"
)

var _ = Describe("Sequencer", func() {
	var (
		cfg     *config.Config
		seq     *trap.Sequencer
		state   csr.State
		latches trap.DebugLatches
	)

	BeforeEach(func() {
		cfg = config.DefaultConfig()
		seq = trap.NewSequencer(cfg)
		state = csr.ResetState(cfg)
		latches = trap.DebugLatches{}
	})

	It("should request a halt on an external halt request", func() {
		req := seq.Evaluate(&state, latches, trap.DebugInputs{HaltReq: true})
		Expect(req.Halt).To(BeTrue())
		Expect(req.Cause).To(Equal(csr.DebugCauseHaltRequest))
	})

	It("should latch a halt request pulse until entry", func() {
		latches = seq.Next(&state, latches, trap.DebugInputs{HaltReq: true}, trap.ClassNone)
		Expect(latches.HaltLatched).To(BeTrue())

		req := seq.Evaluate(&state, latches, trap.DebugInputs{})
		Expect(req.Halt).To(BeTrue())

		latches = seq.Next(&state, latches, trap.DebugInputs{}, trap.ClassDebugHalt)
		Expect(latches.HaltLatched).To(BeFalse())
	})

	It("should halt on reset until an instruction retires", func() {
		in := trap.DebugInputs{HaltOnResetReq: true}
		Expect(seq.Evaluate(&state, latches, in).Halt).To(BeTrue())

		latches = seq.Next(&state, latches, trap.DebugInputs{Retire: true}, trap.ClassNone)
		Expect(seq.Evaluate(&state, latches, in).Halt).To(BeFalse())
	})

	It("should halt on reset only once", func() {
		in := trap.DebugInputs{HaltOnResetReq: true}
		latches = seq.Next(&state, latches, in, trap.ClassDebugHalt)
		Expect(latches.ResetHaltDone).To(BeTrue())
		Expect(seq.Evaluate(&state, latches, in).Halt).To(BeFalse())
	})

	It("should latch step completion on retire", func() {
		state.StepEnable = true
		latches = seq.Next(&state, latches, trap.DebugInputs{Retire: true}, trap.ClassNone)
		Expect(latches.StepLatched).To(BeTrue())

		req := seq.Evaluate(&state, latches, trap.DebugInputs{})
		Expect(req.Halt).To(BeTrue())
		Expect(req.Cause).To(Equal(csr.DebugCauseStep))
	})

	It("should latch step completion on an accepted trap entry", func() {
		state.StepEnable = true
		latches = seq.Next(&state, latches, trap.DebugInputs{}, trap.ClassException)
		Expect(latches.StepLatched).To(BeTrue())
	})

	It("should not complete a step on resume", func() {
		state.StepEnable = true
		state.DebugMode = true
		latches.ResumeLatched = true
		latches = seq.Next(&state, latches, trap.DebugInputs{}, trap.ClassDebugResume)
		Expect(latches.StepLatched).To(BeFalse())
		Expect(latches.ResumeLatched).To(BeFalse())
	})

	It("should rank a halt request above step completion", func() {
		latches.StepLatched = true
		req := seq.Evaluate(&state, latches, trap.DebugInputs{HaltReq: true})
		Expect(req.Cause).To(Equal(csr.DebugCauseHaltRequest))
	})

	It("should latch resume in debug mode and resume a cycle later", func() {
		state.DebugMode = true
		in := trap.DebugInputs{ResumeReq: true}
		Expect(seq.Evaluate(&state, latches, in).Resume).To(BeFalse())

		latches = seq.Next(&state, latches, in, trap.ClassNone)
		Expect(seq.Evaluate(&state, latches, trap.DebugInputs{}).Resume).To(BeTrue())
	})

	It("should ignore resume requests while running", func() {
		latches = seq.Next(&state, latches, trap.DebugInputs{ResumeReq: true}, trap.ClassNone)
		Expect(latches.ResumeLatched).To(BeFalse())
	})

	It("should not request halts while halted", func() {
		state.DebugMode = true
		req := seq.Evaluate(&state, latches, trap.DebugInputs{HaltReq: true})
		Expect(req.Halt).To(BeFalse())
	})

	It("should stay idle without debug support", func() {
		cfg.DebugSupport = false
		seq = trap.NewSequencer(cfg)
		req := seq.Evaluate(&state, latches, trap.DebugInputs{HaltReq: true, HaltOnResetReq: true})
		Expect(req).To(Equal(trap.DebugRequest{}))
	})
})
