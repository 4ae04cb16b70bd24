package csr

import "github.com/sarchlab/rvcsr/config"

// Counter halves, as masks over the 64-bit counter value.
const (
	LowHalf  uint64 = 0x0000_0000_FFFF_FFFF
	HighHalf uint64 = 0xFFFF_FFFF_0000_0000
)

// CounterInputs are the per-cycle signals the counters depend on.
type CounterInputs struct {
	// Inhibit is mcountinhibit as it was at the start of the cycle.
	Inhibit uint32

	// DebugMode stops both counters.
	DebugMode bool

	// Retire is the instruction-retired pulse.
	Retire bool

	// CycleWritten and InstretWritten mask the counter halves software
	// wrote this cycle. A written half keeps the written value; the other
	// half still counts.
	CycleWritten   uint64
	InstretWritten uint64
}

// CounterUnit advances mcycle and minstret once per cycle.
type CounterUnit struct {
	live uint64
}

// NewCounterUnit creates a counter unit for the configured counter width.
func NewCounterUnit(cfg *config.Config) *CounterUnit {
	return &CounterUnit{live: cfg.CounterMask()}
}

// Tick applies one cycle of counting. prev is the state at the start of
// the cycle and s the state after this cycle's software write.
func (cu *CounterUnit) Tick(s, prev *State, in CounterInputs) {
	cycle, instret := prev.Mcycle, prev.Minstret
	if !in.DebugMode {
		if in.Inhibit&InhibitCycle == 0 {
			cycle = (cycle + 1) & cu.live
		}
		if in.Retire && in.Inhibit&InhibitInstret == 0 {
			instret = (instret + 1) & cu.live
		}
	}
	s.Mcycle = s.Mcycle&in.CycleWritten | cycle&^in.CycleWritten
	s.Minstret = s.Minstret&in.InstretWritten | instret&^in.InstretWritten
}

// CounterWrites returns the halves of each counter a software write to
// addr targets.
func CounterWrites(addr Addr) (cycle, instret uint64) {
	switch addr {
	case Mcycle:
		return LowHalf, 0
	case Mcycleh:
		return HighHalf, 0
	case Minstret:
		return 0, LowHalf
	case Minstreth:
		return 0, HighHalf
	}
	return 0, 0
}
