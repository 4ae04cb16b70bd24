package scenario

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/rvcsr/csr"
	"github.com/sarchlab/rvcsr/timing/core"
	"github.com/sarchlab/rvcsr/timing/lsu"
	"github.com/sarchlab/rvcsr/trap"
)

// SoakConfig configures a randomized run. Rates are per-cycle
// probabilities in percent.
type SoakConfig struct {
	Cycles uint64
	Seed   int64

	ExceptionRate int
	IRQRate       int
	MemRate       int
	HaltRate      int
	ResumeRate    int
	CSRRate       int
	AcceptRate    int

	LSU lsu.Config
}

// DefaultSoakConfig returns a mix that keeps every trap class busy.
func DefaultSoakConfig() SoakConfig {
	return SoakConfig{
		Cycles:        100_000,
		Seed:          1,
		ExceptionRate: 5,
		IRQRate:       10,
		MemRate:       15,
		HaltRate:      1,
		ResumeRate:    20,
		CSRRate:       10,
		AcceptRate:    70,
		LSU:           lsu.DefaultConfig(),
	}
}

// InvariantError reports a cycle on which the controller broke one of its
// guarantees.
type InvariantError struct {
	Cycle  uint64
	Rule   string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cycle %d: %s: %s", e.Cycle, e.Rule, e.Detail)
}

// SoakResult contains the outcome of a randomized run.
type SoakResult struct {
	Cycles     uint64
	Violations []error

	Stats core.Statistics
	LSU   lsu.Statistics

	// Final is the controller state after the last cycle.
	Final core.State
}

// Passed reports whether no invariant was broken.
func (r *SoakResult) Passed() bool {
	return len(r.Violations) == 0
}

var soakExceptions = []trap.Exception{
	trap.ExceptIllegal,
	trap.ExceptEbreak,
	trap.ExceptEcall,
	trap.ExceptMRET,
	trap.ExceptInstrFault,
	trap.ExceptLoadMisaligned,
}

type soakCSRWrite struct {
	addr csr.Addr
	kind csr.WriteKind
	mask uint32
}

var soakCSRWrites = []soakCSRWrite{
	{csr.Mstatus, csr.WriteKindSet, 0x8},
	{csr.Mstatus, csr.WriteKindClear, 0x8},
	{csr.Mie, csr.WriteKindWrite, 0x888},
	{csr.Meie0, csr.WriteKindWrite, 0xFFFF_FFFF},
	{csr.Mtvec, csr.WriteKindWrite, 0xFFFF_FFFD},
	{csr.Mepc, csr.WriteKindWrite, 0xFFFF_FFFF},
	{csr.Dcsr, csr.WriteKindWrite, 1<<15 | 1<<2},
	{csr.Dpc, csr.WriteKindWrite, 0xFFFF_FFFF},
	{csr.Mcountinhibit, csr.WriteKindWrite, 0x5},
	{csr.Mvendorid, csr.WriteKindWrite, 0xFFFF_FFFF},
}

// Soak drives the controller with random inputs and checks its per-cycle
// guarantees. It only returns an error when the configuration is invalid.
func (r *Runner) Soak(sc SoakConfig) (*SoakResult, error) {
	if err := sc.LSU.Validate(); err != nil {
		return nil, fmt.Errorf("lsu: %w", err)
	}

	c, err := core.NewController(r.base, core.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	u := lsu.New(sc.LSU)
	rng := rand.New(rand.NewSource(sc.Seed))
	chance := func(percent int) bool { return rng.Intn(100) < percent }

	result := &SoakResult{Cycles: sc.Cycles}
	violate := func(cycle uint64, rule, format string, args ...any) {
		result.Violations = append(result.Violations, &InvariantError{
			Cycle:  cycle,
			Rule:   rule,
			Detail: fmt.Sprintf(format, args...),
		})
	}

	var (
		levels    core.Inputs
		pc        uint32
		exception trap.Exception
		lastSoon  bool
		lastEntry trap.Class
	)

	for cycle := uint64(0); cycle < sc.Cycles; cycle++ {
		if chance(sc.IRQRate) {
			line := rng.Intn(32)
			levels.IRQ[0] ^= 1 << line
		}
		if chance(sc.IRQRate) {
			levels.Software = !levels.Software
		}
		if chance(sc.IRQRate) {
			levels.Timer = !levels.Timer
		}

		in := core.Inputs{
			IRQ:      levels.IRQ,
			Software: levels.Software,
			Timer:    levels.Timer,
			MepcIn:   pc,
			HaltReq:  chance(sc.HaltRate),
			DMData0:  rng.Uint32(),
		}
		if c.DebugMode() {
			in.ResumeReq = chance(sc.ResumeRate)
		}

		if exception == trap.ExceptNone && chance(sc.ExceptionRate) {
			exception = soakExceptions[rng.Intn(len(soakExceptions))]
		}
		in.Exception = exception

		if chance(sc.CSRRate) {
			w := soakCSRWrites[rng.Intn(len(soakCSRWrites))]
			in.Addr = w.addr
			in.WKind = w.kind
			in.WData = rng.Uint32() & w.mask
			if w.kind != csr.WriteKindWrite {
				in.WData = w.mask
			}
			in.Read, in.ReadSoon = true, true
			in.Write, in.WriteSoon = true, true
		}

		if !u.Busy() && !lastSoon && chance(sc.MemRate) {
			u.Issue(rng.Uint32(), chance(50))
		}
		in.DelayIRQEntry = u.AddressPhase()
		in.MemOutstanding = u.Outstanding()

		in.TrapAccept = chance(sc.AcceptRate)
		in.Retire = !in.TrapAccept && !u.Busy() && !c.DebugMode() &&
			exception == trap.ExceptNone

		out := c.Tick(in)

		if out.Accepted {
			if !out.TrapEnter {
				violate(cycle, "accept-without-request", "%s accepted with no request", out.Class)
			}
			if lastEntry != trap.ClassNone && lastEntry != trap.ClassReturn {
				violate(cycle, "back-to-back-entry", "%s accepted right after %s", out.Class, lastEntry)
			}
			if (out.Class == trap.ClassInterrupt || out.Class == trap.ClassDebugHalt) &&
				(in.MemOutstanding || in.DelayIRQEntry) {
				violate(cycle, "memory-fence", "%s accepted with a memory operation in flight", out.Class)
			}
			if out.Illegal {
				violate(cycle, "illegal-on-entry", "illegal flag raised on an accepted %s", out.Class)
			}
			if out.Class == trap.ClassDebugResume && c.DebugMode() {
				violate(cycle, "resume", "still in debug mode after resume")
			}
			if out.Class.EntersDebug() && !c.DebugMode() {
				violate(cycle, "debug-entry", "not in debug mode after %s", out.Class)
			}
			lastEntry = out.Class
		} else {
			lastEntry = trap.ClassNone
		}

		if out.TrapEnter && !out.TrapEnterSoon {
			violate(cycle, "imminent", "trap request without imminent")
		}

		switch {
		case out.Accepted:
			exception = trap.ExceptNone
			if !out.Class.EntersDebug() {
				pc = out.TrapAddr
			}
		case out.CaughtException || out.CaughtEbreak:
			exception = trap.ExceptNone
		case in.Retire:
			pc += 4
		}
		lastSoon = out.TrapEnterSoon
		u.Tick()

		if r.hook != nil {
			r.hook(cycle + 1)
		}
	}

	result.Stats = c.Stats()
	result.LSU = u.Stats()
	result.Final = c.State()

	r.logger.Info("soak finished",
		"cycles", result.Cycles,
		"entries", result.Stats.Entries(),
		"violations", len(result.Violations),
	)

	return result, nil
}
