package trap

import (
	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/csr"
)

// DebugLatches are the debug sequencer's request flags. They are carried
// from cycle to cycle alongside the CSR state.
type DebugLatches struct {
	// HaltLatched holds an external halt request until debug entry.
	HaltLatched bool

	// StepLatched is set when a single step completed while running.
	StepLatched bool

	// ResumeLatched holds a resume request received in debug mode. The
	// resume is taken on the following cycle.
	ResumeLatched bool

	// Retired is set once an instruction has retired since reset.
	Retired bool

	// ResetHaltDone is set once the core has been halted since reset, so
	// a held halt-on-reset request does not halt it again.
	ResetHaltDone bool
}

// DebugInputs are the debug transport and pipeline signals of one cycle.
type DebugInputs struct {
	HaltReq        bool
	HaltOnResetReq bool
	ResumeReq      bool
	Retire         bool
}

// DebugRequest is the sequencer's output for one cycle.
type DebugRequest struct {
	// Halt is an interrupt-like request to enter debug mode.
	Halt bool

	// Cause is the cause recorded if Halt is taken.
	Cause csr.DebugCause

	// Resume requests leaving debug mode.
	Resume bool
}

// Sequencer tracks halt, single-step and resume requests.
type Sequencer struct {
	enabled bool
}

// NewSequencer creates a debug sequencer. Without debug support it never
// requests anything.
func NewSequencer(cfg *config.Config) *Sequencer {
	return &Sequencer{enabled: cfg.DebugSupport}
}

// Evaluate returns this cycle's debug request.
func (q *Sequencer) Evaluate(s *csr.State, l DebugLatches, in DebugInputs) DebugRequest {
	if !q.enabled {
		return DebugRequest{}
	}

	if s.DebugMode {
		return DebugRequest{Resume: l.ResumeLatched}
	}

	haltReq := l.HaltLatched || in.HaltReq ||
		(in.HaltOnResetReq && !l.Retired && !l.ResetHaltDone)

	switch {
	case haltReq:
		return DebugRequest{Halt: true, Cause: csr.DebugCauseHaltRequest}
	case l.StepLatched:
		return DebugRequest{Halt: true, Cause: csr.DebugCauseStep}
	}
	return DebugRequest{}
}

// Next computes the latches for the next cycle. s is the CSR state at the
// start of the cycle and committed is the entry accepted in this cycle.
func (q *Sequencer) Next(s *csr.State, l DebugLatches, in DebugInputs, committed Class) DebugLatches {
	if !q.enabled {
		return l
	}

	next := l
	next.Retired = l.Retired || in.Retire

	switch {
	case committed.EntersDebug():
		next.HaltLatched = false
		next.StepLatched = false
		next.ResumeLatched = false
		next.ResetHaltDone = true
	case committed == ClassDebugResume:
		next.ResumeLatched = false
	case s.DebugMode:
		next.ResumeLatched = l.ResumeLatched || in.ResumeReq
	default:
		next.HaltLatched = l.HaltLatched || in.HaltReq
		stepDone := in.Retire || committed == ClassException ||
			committed == ClassInterrupt || committed == ClassReturn
		next.StepLatched = l.StepLatched || (s.StepEnable && stepDone)
	}
	return next
}
