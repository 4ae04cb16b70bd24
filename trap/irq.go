package trap

import (
	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/csr"
)

// Standard interrupt cause codes.
const (
	CauseSoftware uint8 = 3
	CauseTimer    uint8 = 7
	CauseExternal uint8 = 11
)

// IRQStatus is the combined interrupt state for one cycle.
type IRQStatus struct {
	// EnabledPending holds the external lines that are pending and enabled.
	EnabledPending [4]uint32

	// ExternalActive is set when any external line is pending and enabled.
	ExternalActive bool

	// Claim is the lowest enabled pending external line. Only meaningful
	// when ExternalActive is set.
	Claim int

	// Standard is mip & mie.
	Standard uint32

	// GlobalActive is set when an interrupt may be taken: a standard line
	// is pending and enabled, mstatus.MIE is set and the core is not
	// single-stepping.
	GlobalActive bool

	// Code is the cause code of the highest-priority standard line.
	Code uint8

	// WFIStallClear releases a wait-for-interrupt stall. It ignores
	// mstatus.MIE.
	WFIStallClear bool
}

// Aggregator combines interrupt lines and enables.
type Aggregator struct {
	lineCause bool
}

// NewAggregator creates an interrupt aggregator.
func NewAggregator(cfg *config.Config) *Aggregator {
	return &Aggregator{lineCause: cfg.ExternalCause == config.ExternalCauseLine}
}

// Evaluate computes the interrupt status from the register file state and
// input levels. haltPending is the debug sequencer's interrupt-like halt
// request, which also releases a WFI stall.
func (a *Aggregator) Evaluate(rf *csr.RegisterFile, haltPending bool) IRQStatus {
	s := &rf.State

	st := IRQStatus{EnabledPending: rf.ExternalEnabledPending()}
	st.Claim, st.ExternalActive = csr.LowestSetBit(st.EnabledPending)
	st.Standard = rf.MIP() & s.MIEBits

	// Priority between the standard lines: external, software, timer.
	switch {
	case st.Standard&csr.IRQExternal != 0:
		st.Code = CauseExternal
		if a.lineCause {
			st.Code = uint8(st.Claim)
		}
	case st.Standard&csr.IRQSoftware != 0:
		st.Code = CauseSoftware
	case st.Standard&csr.IRQTimer != 0:
		st.Code = CauseTimer
	}

	st.GlobalActive = st.Standard != 0 && s.MIE && !s.StepEnable

	// Stepping always releases WFI, whether or not a line is pending.
	st.WFIStallClear = st.Standard != 0 || s.StepEnable || s.DebugMode || haltPending

	return st
}
