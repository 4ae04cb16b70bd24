package trap

import (
	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/csr"
)

// Class identifies the kind of trap entry, in priority order.
type Class uint8

const (
	ClassNone Class = iota
	ClassException
	ClassDebugEbreak
	ClassInterrupt
	ClassDebugHalt
	ClassDebugResume
	ClassReturn
)

var classNames = [...]string{
	ClassNone:        "none",
	ClassException:   "exception",
	ClassDebugEbreak: "debug_ebreak",
	ClassInterrupt:   "interrupt",
	ClassDebugHalt:   "debug_halt",
	ClassDebugResume: "debug_resume",
	ClassReturn:      "return",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// ParseClass returns the class with the given name.
func ParseClass(name string) (Class, bool) {
	for c, n := range classNames {
		if n == name {
			return Class(c), true
		}
	}
	return ClassNone, false
}

// EntersDebug reports whether the class enters debug mode.
func (c Class) EntersDebug() bool {
	return c == ClassDebugEbreak || c == ClassDebugHalt
}

// ArbiterState is carried by the arbiter from cycle to cycle.
type ArbiterState struct {
	// EnteredLastCycle is set after a non-return entry was accepted. It
	// blocks any entry in the following cycle.
	EnteredLastCycle bool

	// IRQDelay counts down the cycles interrupt entry stays masked after
	// the delay input deasserts.
	IRQDelay uint64
}

// Request holds the pipeline and bus signals of one cycle.
type Request struct {
	Exception Exception

	// MemOutstanding is set while a load/store data phase has not
	// resolved.
	MemOutstanding bool

	// DelayIRQEntry is set during the address phase of a memory operation.
	DelayIRQEntry bool
}

// Decision is the arbiter's output for one cycle.
type Decision struct {
	Class Class

	// Enter requests a trap entry. It stays set until the pipeline accepts
	// it or the cause goes away.
	Enter bool

	// Soon is raised whenever Enter is, and also while an interrupt or
	// halt is waiting on a memory operation. The pipeline must not start
	// new memory operations while it is set.
	Soon bool

	// Target is the address the pipeline jumps to on acceptance.
	Target uint32

	// CauseIRQ and CauseCode are written to mcause on an exception or
	// interrupt entry.
	CauseIRQ  bool
	CauseCode uint8

	// DebugCause is written to dcsr.cause on a debug entry.
	DebugCause csr.DebugCause

	// CaughtException and CaughtEbreak report exceptions raised by
	// instructions executed in debug mode. No trap is taken for them.
	CaughtException bool
	CaughtEbreak    bool
}

// Arbiter prioritizes exceptions, interrupts and debug events.
type Arbiter struct {
	debug      bool
	epcMask    uint32
	entryDelay uint64
}

// NewArbiter creates a trap arbiter.
func NewArbiter(cfg *config.Config) *Arbiter {
	return &Arbiter{
		debug:      cfg.DebugSupport,
		epcMask:    cfg.EPCMask(),
		entryDelay: cfg.IRQEntryDelay,
	}
}

// Decide computes the trap decision of one cycle. It does not modify any
// state.
func (a *Arbiter) Decide(
	rf *csr.RegisterFile,
	st ArbiterState,
	req Request,
	irq IRQStatus,
	dbg DebugRequest,
) Decision {
	s := &rf.State
	d := Decision{}

	if s.DebugMode {
		d.CaughtEbreak = req.Exception == ExceptEbreak
		d.CaughtException = req.Exception != ExceptNone && !d.CaughtEbreak
	}

	ebreakToDebug := a.debug && s.Ebreakm && req.Exception == ExceptEbreak
	masked := req.DelayIRQEntry || st.IRQDelay > 0 || req.MemOutstanding

	switch {
	case s.DebugMode:
		if dbg.Resume {
			d.Class = ClassDebugResume
		}
	case req.Exception.Traps() && !ebreakToDebug:
		d.Class = ClassException
		d.CauseCode = req.Exception.Code()
	case ebreakToDebug:
		d.Class = ClassDebugEbreak
		d.DebugCause = csr.DebugCauseEbreak
	case irq.GlobalActive && !masked:
		d.Class = ClassInterrupt
		d.CauseIRQ = true
		d.CauseCode = irq.Code
	case dbg.Halt && !masked:
		d.Class = ClassDebugHalt
		d.DebugCause = dbg.Cause
	case req.Exception == ExceptMRET:
		d.Class = ClassReturn
	}

	waiting := !s.DebugMode && masked && (irq.GlobalActive || dbg.Halt)
	d.Soon = d.Class != ClassNone || waiting

	if st.EnteredLastCycle {
		d.Class = ClassNone
		d.CauseIRQ = false
		d.CauseCode = 0
		d.DebugCause = csr.DebugCauseNone
	}
	d.Enter = d.Class != ClassNone
	d.Target = a.target(s, d)

	return d
}

func (a *Arbiter) target(s *csr.State, d Decision) uint32 {
	switch d.Class {
	case ClassReturn:
		return s.Mepc
	case ClassDebugResume:
		return s.DPC
	}

	base := s.Mtvec &^ 0x3
	if s.Mtvec&0x1 != 0 && d.CauseIRQ {
		return base | uint32(d.CauseCode)<<2
	}
	return base
}

// Commit applies the side effects of an accepted entry to the state.
// mepcIn is the program counter supplied by the pipeline.
func (a *Arbiter) Commit(s *csr.State, d Decision, mepcIn uint32) {
	switch d.Class {
	case ClassException, ClassInterrupt:
		s.Mepc = mepcIn & a.epcMask
		s.CauseIRQ = d.CauseIRQ
		s.CauseCode = d.CauseCode
		s.MPIE = s.MIE
		s.MIE = false
	case ClassDebugEbreak, ClassDebugHalt:
		s.DebugMode = true
		s.DPC = mepcIn & a.epcMask
		s.DebugCause = d.DebugCause
	case ClassDebugResume:
		s.DebugMode = false
	case ClassReturn:
		s.MIE = s.MPIE
		s.MPIE = true
	}
}

// Next computes the arbiter state for the next cycle.
func (a *Arbiter) Next(st ArbiterState, req Request, committed Class) ArbiterState {
	next := ArbiterState{
		EnteredLastCycle: committed != ClassNone && committed != ClassReturn,
	}

	switch {
	case req.DelayIRQEntry:
		next.IRQDelay = a.entryDelay
	case st.IRQDelay > 0:
		next.IRQDelay = st.IRQDelay - 1
	}
	return next
}
