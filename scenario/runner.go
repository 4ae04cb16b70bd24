package scenario

import (
	"io"
	"log/slog"

	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/timing/core"
	"github.com/sarchlab/rvcsr/timing/lsu"
	"github.com/sarchlab/rvcsr/trap"
)

// Result contains the outcome of running a scenario.
type Result struct {
	Name     string
	Cycles   uint64
	Retired  uint64
	Failures []error

	Stats core.Statistics
	LSU   lsu.Statistics
	Cache lsu.CacheStatistics
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// RunnerOption is a functional option for configuring the Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger for the runner and the controllers it
// creates.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithCycleHook sets a function called after every simulated cycle.
func WithCycleHook(hook func(cycle uint64)) RunnerOption {
	return func(r *Runner) {
		r.hook = hook
	}
}

// Runner drives scenarios through a controller, a load/store unit and a
// minimal in-order pipeline.
type Runner struct {
	base   *config.Config
	logger *slog.Logger
	hook   func(cycle uint64)
}

// NewRunner creates a runner. Scenario config overrides are applied on
// top of base, or on top of the default configuration if base is nil.
func NewRunner(base *config.Config, opts ...RunnerOption) *Runner {
	if base == nil {
		base = config.DefaultConfig()
	}

	r := &Runner{
		base:   base,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type memOp struct {
	addr    uint32
	isStore bool
}

// pipeline is the stand-in for the core's fetch/execute logic. It only
// tracks what the controller needs to see.
type pipeline struct {
	cfg PipelineConfig

	pc        uint32
	exception trap.Exception
	mem       *memOp
	wfi       bool

	// memRetire is set for the cycle after a memory instruction
	// completed. Its retire pulse is given then; the pc has already moved
	// past it.
	memRetire bool

	holdAccept bool
	waited     uint64
	lastSoon   bool
}

func (p *pipeline) apply(st *Stimulus, levels, in *core.Inputs) *CSROp {
	if st.IRQ != nil {
		word, bit := st.IRQ.Line/32, uint32(1)<<(st.IRQ.Line%32)
		if st.IRQ.Level {
			levels.IRQ[word] |= bit
		} else {
			levels.IRQ[word] &^= bit
		}
	}
	if st.Software != nil {
		levels.Software = *st.Software
	}
	if st.Timer != nil {
		levels.Timer = *st.Timer
	}
	if st.Halt != nil {
		levels.HaltReq = *st.Halt
	}
	if st.HaltOnReset != nil {
		levels.HaltOnResetReq = *st.HaltOnReset
	}
	if st.DMData0 != nil {
		levels.DMData0 = *st.DMData0
	}
	if st.HoldAccept != nil {
		p.holdAccept = *st.HoldAccept
	}

	if st.exception != trap.ExceptNone {
		p.exception = st.exception
	}
	switch {
	case st.Load != nil:
		p.mem = &memOp{addr: *st.Load}
	case st.Store != nil:
		p.mem = &memOp{addr: *st.Store, isStore: true}
	}
	if st.WFI {
		p.wfi = true
	}
	if st.Resume {
		in.ResumeReq = true
	}
	return st.CSR
}

// Run runs a scenario to completion. It only returns an error when the
// scenario's configuration is invalid. Failed expectations are reported in
// the result.
func (r *Runner) Run(s *Scenario) (*Result, error) {
	cfg, err := s.ApplyConfig(r.base)
	if err != nil {
		return nil, err
	}

	c, err := core.NewController(cfg, core.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	u := lsu.New(s.LSU)

	stimuli := make(map[uint64][]*Stimulus)
	for i := range s.Stimuli {
		st := &s.Stimuli[i]
		stimuli[st.At] = append(stimuli[st.At], st)
	}
	expect := make(map[uint64][]*Expectation)
	for i := range s.Expect {
		e := &s.Expect[i]
		expect[e.At] = append(expect[e.At], e)
	}

	p := &pipeline{cfg: s.Pipeline, pc: s.Pipeline.ResetPC}
	result := &Result{Name: s.Name}

	var levels core.Inputs
	for cycle := uint64(0); cycle < s.Cycles; cycle++ {
		in := core.Inputs{}
		var op *CSROp
		for _, st := range stimuli[cycle] {
			if o := p.apply(st, &levels, &in); o != nil {
				op = o
			}
		}

		in.IRQ = levels.IRQ
		in.Software = levels.Software
		in.Timer = levels.Timer
		in.HaltReq = levels.HaltReq
		in.HaltOnResetReq = levels.HaltOnResetReq
		in.DMData0 = levels.DMData0

		out := r.step(c, u, p, op, in, result, cycle)

		for _, e := range expect[cycle] {
			result.Failures = append(result.Failures, check(e, out, c)...)
		}

		if r.hook != nil {
			r.hook(cycle + 1)
		}
	}

	result.Cycles = s.Cycles
	result.Stats = c.Stats()
	result.LSU = u.Stats()
	result.Cache = u.Cache().Stats()

	r.logger.Info("scenario finished",
		"name", s.Name,
		"cycles", result.Cycles,
		"retired", result.Retired,
		"failures", len(result.Failures),
	)

	return result, nil
}

func (r *Runner) step(
	c *core.Controller,
	u *lsu.LSU,
	p *pipeline,
	op *CSROp,
	in core.Inputs,
	result *Result,
	cycle uint64,
) core.Outputs {
	// A memory instruction is not issued while the controller signals an
	// imminent trap.
	if p.mem != nil && !u.Busy() && !p.lastSoon {
		u.Issue(p.mem.addr, p.mem.isStore)
		p.mem = nil
	}

	if op != nil {
		in.Addr = op.addr
		in.WData = op.Value
		in.WKind = op.kind
		in.Read, in.ReadSoon = true, true
		in.Write, in.WriteSoon = op.write, op.write
	}

	in.Exception = p.exception
	in.MepcIn = p.pc
	in.DelayIRQEntry = u.AddressPhase()
	in.MemOutstanding = u.Outstanding()

	d := c.Propose(in)
	if d.Enter {
		in.TrapAccept = !p.holdAccept && p.waited >= p.cfg.AcceptDelay
	}

	running := !c.DebugMode() && !p.wfi && !u.Busy() &&
		p.mem == nil && p.exception == trap.ExceptNone
	in.Retire = p.memRetire || (p.cfg.Retire && running && !in.TrapAccept)

	out := c.Tick(in)

	switch {
	case out.Accepted:
		if !out.Class.EntersDebug() {
			p.pc = out.TrapAddr
		}
		if p.mem != nil {
			r.logger.Debug("memory op flushed", "cycle", cycle, "addr", p.mem.addr)
		}
		p.exception = trap.ExceptNone
		p.mem = nil
		p.wfi = false
		p.waited = 0
	case out.TrapEnter:
		p.waited++
	default:
		p.waited = 0
	}

	if in.Retire && !p.memRetire {
		p.pc += 4
		result.Retired++
	}
	p.memRetire = false
	if out.CaughtException || out.CaughtEbreak {
		p.exception = trap.ExceptNone
	}
	if p.wfi && out.WFIStallClear {
		p.wfi = false
	}
	p.lastSoon = out.TrapEnterSoon

	res := u.Tick()
	switch {
	case res.Done && res.Fault:
		p.exception = trap.ExceptLoadFault
		if res.IsStore {
			p.exception = trap.ExceptStoreFault
		}
		r.logger.Debug("access fault", "cycle", cycle, "addr", res.Addr, "store", res.IsStore)
	case res.Done:
		p.pc += 4
		p.memRetire = true
		result.Retired++
	}

	return out
}
