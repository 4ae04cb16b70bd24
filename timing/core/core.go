// Package core provides the cycle-level CSR and trap controller.
// It wires the register file, counters, interrupt aggregator, debug
// sequencer and trap arbiter into a single per-cycle transition.
package core

import (
	"io"
	"log/slog"

	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/csr"
	"github.com/sarchlab/rvcsr/trap"
)

// Inputs are the signals the pipeline, bus and debug transport present in
// one cycle.
type Inputs struct {
	// CSR access.
	Addr      csr.Addr
	WData     uint32
	WKind     csr.WriteKind
	Write     bool
	WriteSoon bool
	Read      bool
	ReadSoon  bool

	// Exception is the synchronous exception of the instruction at
	// MepcIn, or ExceptMRET for a return.
	Exception trap.Exception
	MepcIn    uint32
	Retire    bool

	// Interrupt lines.
	IRQ      [4]uint32
	Software bool
	Timer    bool

	// Bus status.
	MemOutstanding bool
	DelayIRQEntry  bool

	// Debug transport.
	HaltReq        bool
	HaltOnResetReq bool
	ResumeReq      bool
	DMData0        uint32

	// TrapAccept is the pipeline accepting this cycle's trap request.
	TrapAccept bool
}

// Outputs are the signals the controller drives in one cycle.
type Outputs struct {
	RData   uint32
	Illegal bool

	TrapEnter     bool
	TrapEnterSoon bool
	TrapAddr      uint32
	TrapIsIRQ     bool
	Class         trap.Class

	// Accepted is set when the request of this cycle was committed.
	Accepted bool

	WFIStallClear bool
	DebugMode     bool

	CaughtException bool
	CaughtEbreak    bool

	DMData0WData uint32
	DMData0Wen   bool
}

// State is the complete controller state. It is plain data.
type State struct {
	CSR     csr.State
	Debug   trap.DebugLatches
	Arbiter trap.ArbiterState
}

// Statistics holds controller event counts.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Exceptions is the number of exception entries taken.
	Exceptions uint64
	// Interrupts is the number of interrupt entries taken.
	Interrupts uint64
	// DebugEntries is the number of debug mode entries.
	DebugEntries uint64
	// Resumes is the number of debug mode exits.
	Resumes uint64
	// Returns is the number of trap returns.
	Returns uint64
	// IllegalAccesses is the number of cycles flagging an illegal CSR
	// access.
	IllegalAccesses uint64
	// Withdrawn is the number of requests that went away unserviced.
	Withdrawn uint64
}

// Entries returns the total number of accepted entries.
func (s Statistics) Entries() uint64 {
	return s.Exceptions + s.Interrupts + s.DebugEntries + s.Resumes + s.Returns
}

// ControllerOption is a functional option for configuring the Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger committed entries are traced to.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller is the CSR file and trap unit of one core. It is not safe for
// concurrent use.
type Controller struct {
	cfg *config.Config

	rf        *csr.RegisterFile
	counters  *csr.CounterUnit
	irq       *trap.Aggregator
	sequencer *trap.Sequencer
	arbiter   *trap.Arbiter

	state State
	stats Statistics

	// pending is set when the last cycle raised a request that was not
	// accepted.
	pending bool

	logger *slog.Logger
}

// NewController creates a controller in its reset state. It fails if the
// configuration is inconsistent.
func NewController(cfg *config.Config, opts ...ControllerOption) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	c := &Controller{
		cfg:       cfg,
		rf:        csr.NewRegisterFile(cfg),
		counters:  csr.NewCounterUnit(cfg),
		irq:       trap.NewAggregator(cfg),
		sequencer: trap.NewSequencer(cfg),
		arbiter:   trap.NewArbiter(cfg),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()

	return c, nil
}

// Config returns a copy of the controller's configuration.
func (c *Controller) Config() *config.Config {
	return c.cfg.Clone()
}

// Reset restores the reset state and clears statistics.
func (c *Controller) Reset() {
	c.state = State{CSR: csr.ResetState(c.cfg)}
	c.stats = Statistics{}
	c.pending = false
}

// State returns a snapshot of the controller state.
func (c *Controller) State() State {
	return c.state
}

// Stats returns the controller statistics.
func (c *Controller) Stats() Statistics {
	return c.stats
}

// DebugMode reports whether the core is halted in debug mode.
func (c *Controller) DebugMode() bool {
	return c.state.CSR.DebugMode
}

// ReadCSR reads a register as software would in the current state, with
// no input levels applied.
func (c *Controller) ReadCSR(addr csr.Addr) (uint32, bool) {
	return c.rf.View(c.state.CSR, csr.Levels{}).Read(addr)
}

// PeekCSR reads a register regardless of debug-mode gating. It is meant
// for test benches and tracing.
func (c *Controller) PeekCSR(addr csr.Addr) (uint32, bool) {
	d, ok := c.rf.Descriptor(addr)
	if !ok {
		return 0, false
	}
	return d.Read(c.rf.View(c.state.CSR, csr.Levels{})), true
}

type evaluation struct {
	rf       *csr.RegisterFile
	req      trap.Request
	debugIn  trap.DebugInputs
	irq      trap.IRQStatus
	decision trap.Decision
}

func (c *Controller) evaluate(prev State, in Inputs) evaluation {
	e := evaluation{
		rf: c.rf.View(prev.CSR, csr.Levels{
			IRQ:      in.IRQ,
			Software: in.Software,
			Timer:    in.Timer,
			DMData0:  in.DMData0,
		}),
		req: trap.Request{
			Exception:      in.Exception,
			MemOutstanding: in.MemOutstanding,
			DelayIRQEntry:  in.DelayIRQEntry,
		},
		debugIn: trap.DebugInputs{
			HaltReq:        in.HaltReq,
			HaltOnResetReq: in.HaltOnResetReq,
			ResumeReq:      in.ResumeReq,
			Retire:         in.Retire,
		},
	}

	dbg := c.sequencer.Evaluate(&e.rf.State, prev.Debug, e.debugIn)
	e.irq = c.irq.Evaluate(e.rf, dbg.Halt)
	e.decision = c.arbiter.Decide(e.rf, prev.Arbiter, e.req, e.irq, dbg)

	return e
}

// Propose returns the trap decision the controller would make for the
// given inputs in the current state. It does not change any state. A
// pipeline calls it to find out whether to accept before calling Tick.
func (c *Controller) Propose(in Inputs) trap.Decision {
	return c.evaluate(c.state, in).decision
}

// Step is the transition function. It returns the state after one cycle
// with the given inputs, and the outputs of that cycle. It does not modify
// the controller.
func (c *Controller) Step(prev State, in Inputs) (State, Outputs) {
	e := c.evaluate(prev, in)
	d := e.decision
	rf := e.rf

	out := Outputs{
		TrapEnter:       d.Enter,
		TrapEnterSoon:   d.Soon,
		TrapAddr:        d.Target,
		TrapIsIRQ:       d.Class == trap.ClassInterrupt,
		Class:           d.Class,
		WFIStallClear:   e.irq.WFIStallClear,
		DebugMode:       prev.CSR.DebugMode,
		CaughtException: d.CaughtException,
		CaughtEbreak:    d.CaughtEbreak,
	}

	if in.Read {
		out.RData, _ = rf.Read(in.Addr)
	}
	illegal := (in.ReadSoon || in.WriteSoon) && !rf.Legal(in.Addr, in.WriteSoon)

	committed := trap.ClassNone
	var cycleWritten, instretWritten uint64

	if d.Enter && in.TrapAccept {
		// The automatic side effect owns the registers this cycle. Any
		// software write is dropped, and so is its illegal flag.
		c.arbiter.Commit(&rf.State, d, in.MepcIn)
		committed = d.Class
		out.Accepted = true
		illegal = false
	} else if in.Write {
		merged, ok := rf.ApplyWrite(in.Addr, in.WData, in.WKind)
		if ok {
			cycleWritten, instretWritten = csr.CounterWrites(in.Addr)
			if in.Addr == csr.Dmdata0 {
				out.DMData0WData = merged
				out.DMData0Wen = true
			}
		}
	}
	out.Illegal = illegal

	c.counters.Tick(&rf.State, &prev.CSR, csr.CounterInputs{
		Inhibit:        prev.CSR.Mcountinhibit,
		DebugMode:      prev.CSR.DebugMode,
		Retire:         in.Retire,
		CycleWritten:   cycleWritten,
		InstretWritten: instretWritten,
	})

	next := State{
		CSR:     rf.State,
		Debug:   c.sequencer.Next(&prev.CSR, prev.Debug, e.debugIn, committed),
		Arbiter: c.arbiter.Next(prev.Arbiter, e.req, committed),
	}
	return next, out
}

// Tick advances the controller by one cycle. When in.TrapAccept is set and
// a request is raised, the entry is committed in this cycle.
func (c *Controller) Tick(in Inputs) Outputs {
	next, out := c.Step(c.state, in)
	c.state = next
	c.record(in, out)
	return out
}

func (c *Controller) record(in Inputs, out Outputs) {
	c.stats.Cycles++
	if out.Illegal {
		c.stats.IllegalAccesses++
	}
	if c.pending && !out.TrapEnter {
		c.stats.Withdrawn++
	}
	c.pending = out.TrapEnter && !out.Accepted

	if !out.Accepted {
		return
	}

	switch out.Class {
	case trap.ClassException:
		c.stats.Exceptions++
	case trap.ClassInterrupt:
		c.stats.Interrupts++
	case trap.ClassDebugEbreak, trap.ClassDebugHalt:
		c.stats.DebugEntries++
	case trap.ClassDebugResume:
		c.stats.Resumes++
	case trap.ClassReturn:
		c.stats.Returns++
	}

	c.logger.Debug("trap entry",
		"cycle", c.stats.Cycles,
		"class", out.Class.String(),
		"target", out.TrapAddr,
		"pc", in.MepcIn,
		"exception", in.Exception.String(),
	)
}

// RunCycles ticks the controller with the same inputs for the given number
// of cycles and returns the outputs of the last one.
func (c *Controller) RunCycles(in Inputs, cycles uint64) Outputs {
	var out Outputs
	for i := uint64(0); i < cycles; i++ {
		out = c.Tick(in)
	}
	return out
}
