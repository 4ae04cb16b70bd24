package csr

// DebugCause is the reason recorded in dcsr.cause on debug mode entry.
type DebugCause uint8

// Debug entry causes, encoded as in dcsr.cause. A halt-on-reset entry is
// recorded as DebugCauseHaltRequest.
const (
	DebugCauseNone        DebugCause = 0
	DebugCauseEbreak      DebugCause = 1
	DebugCauseTrigger     DebugCause = 2
	DebugCauseHaltRequest DebugCause = 3
	DebugCauseStep        DebugCause = 4
)

func (c DebugCause) String() string {
	switch c {
	case DebugCauseEbreak:
		return "ebreak"
	case DebugCauseTrigger:
		return "trigger"
	case DebugCauseHaltRequest:
		return "haltreq"
	case DebugCauseStep:
		return "step"
	default:
		return "none"
	}
}

// ParseDebugCause returns the debug cause with the given name.
func ParseDebugCause(name string) (DebugCause, bool) {
	for c := DebugCauseNone; c <= DebugCauseStep; c++ {
		if c.String() == name {
			return c, true
		}
	}
	return DebugCauseNone, false
}

// mcountinhibit bits.
const (
	InhibitCycle   uint32 = 1 << 0
	InhibitInstret uint32 = 1 << 2
)

// mie/mip bits of the standard interrupt lines.
const (
	IRQSoftware uint32 = 1 << 3
	IRQTimer    uint32 = 1 << 7
	IRQExternal uint32 = 1 << 11
)

// State is the architectural CSR state. It is plain data: copying a State
// snapshots the register file.
type State struct {
	// mstatus
	MIE  bool
	MPIE bool

	// MIEBits holds the standard interrupt enables (mie register).
	MIEBits uint32

	Mtvec    uint32
	Mscratch uint32
	Mepc     uint32

	// mcause
	CauseIRQ  bool
	CauseCode uint8

	Mcountinhibit uint32
	Mcycle        uint64
	Minstret      uint64

	// MEIE holds the custom external interrupt enables, 32 lines per word.
	MEIE [4]uint32

	// Debug mode and dcsr.
	DebugMode  bool
	DebugCause DebugCause
	Ebreakm    bool
	StepEnable bool
	DPC        uint32
}

// Levels are the input signals mirrored by read-only registers. They are
// sampled every tick and never stored.
type Levels struct {
	// IRQ holds the external interrupt line levels, 32 lines per word.
	IRQ      [4]uint32
	Software bool
	Timer    bool

	// DMData0 is the value the debug transport presents on dmdata0.
	DMData0 uint32
}
