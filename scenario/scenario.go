// Package scenario runs YAML-described stimulus/expectation scripts
// against the trap controller.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/csr"
	"github.com/sarchlab/rvcsr/timing/lsu"
	"github.com/sarchlab/rvcsr/trap"
)

// Scenario is a timed script of inputs and expected outputs.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Config overrides fields of the base configuration.
	Config yaml.Node `yaml:"config"`

	// Cycles is the number of cycles to run.
	Cycles uint64 `yaml:"cycles"`

	Pipeline PipelineConfig `yaml:"pipeline"`
	LSU      lsu.Config     `yaml:"lsu"`

	Stimuli []Stimulus    `yaml:"stimuli"`
	Expect  []Expectation `yaml:"expect"`
}

// PipelineConfig configures the pipeline stand-in.
type PipelineConfig struct {
	// ResetPC is the program counter out of reset.
	ResetPC uint32 `yaml:"reset_pc"`

	// Retire makes the pipeline retire one instruction every cycle it is
	// free to.
	Retire bool `yaml:"retire"`

	// AcceptDelay is the number of cycles a trap request waits before the
	// pipeline accepts it.
	AcceptDelay uint64 `yaml:"accept_delay"`
}

// Stimulus changes the inputs starting at a cycle. Level fields hold
// until changed. CSR operations, exceptions, loads, stores, resume
// requests and wfi apply once.
type Stimulus struct {
	At uint64 `yaml:"at"`

	CSR       *CSROp    `yaml:"csr"`
	IRQ       *IRQLevel `yaml:"irq"`
	Software  *bool     `yaml:"software"`
	Timer     *bool     `yaml:"timer"`
	Exception string    `yaml:"exception"`
	Load      *uint32   `yaml:"load"`
	Store     *uint32   `yaml:"store"`
	WFI       bool      `yaml:"wfi"`

	Halt        *bool   `yaml:"halt"`
	HaltOnReset *bool   `yaml:"halt_on_reset"`
	Resume      bool    `yaml:"resume"`
	DMData0     *uint32 `yaml:"dmdata0"`

	// HoldAccept keeps the pipeline from accepting trap requests.
	HoldAccept *bool `yaml:"hold_accept"`

	exception trap.Exception
}

// CSROp is a CSR instruction. Every op reads the old value.
type CSROp struct {
	// Op is one of read, write, set or clear.
	Op string `yaml:"op"`
	// Reg is a register name or number.
	Reg   string `yaml:"reg"`
	Value uint32 `yaml:"value"`

	addr  csr.Addr
	kind  csr.WriteKind
	write bool
}

// IRQLevel drives one external interrupt line.
type IRQLevel struct {
	Line  int  `yaml:"line"`
	Level bool `yaml:"level"`
}

// Expectation checks the outputs of a cycle and the state after it.
// Unset fields are not checked.
type Expectation struct {
	At uint64 `yaml:"at"`

	TrapEnter     *bool   `yaml:"trap_enter"`
	TrapAddr      *uint32 `yaml:"trap_addr"`
	TrapIsIRQ     *bool   `yaml:"trap_is_irq"`
	Imminent      *bool   `yaml:"imminent"`
	Class         string  `yaml:"class"`
	Accepted      *bool   `yaml:"accepted"`
	Illegal       *bool   `yaml:"illegal"`
	RData         *uint32 `yaml:"rdata"`
	WFIStallClear *bool   `yaml:"wfi_stall_clear"`

	DebugMode  *bool  `yaml:"debug_mode"`
	DebugCause string `yaml:"debug_cause"`

	// CSR maps register names to their expected value after the cycle.
	CSR map[string]uint32 `yaml:"csr"`

	class      trap.Class
	debugCause csr.DebugCause
	csrAddrs   map[string]csr.Addr
}

// Load loads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse parses and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	s := Scenario{
		Pipeline: PipelineConfig{Retire: true},
		LSU:      lsu.DefaultConfig(),
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scenario and resolves register, exception, class
// and cause names.
func (s *Scenario) Validate() error {
	if s.Cycles == 0 {
		return fmt.Errorf("cycles must be positive")
	}
	if err := s.LSU.Validate(); err != nil {
		return fmt.Errorf("lsu: %w", err)
	}

	for i := range s.Stimuli {
		if err := s.Stimuli[i].resolve(s.Cycles); err != nil {
			return fmt.Errorf("stimulus %d: %w", i, err)
		}
	}
	for i := range s.Expect {
		if err := s.Expect[i].resolve(s.Cycles); err != nil {
			return fmt.Errorf("expectation %d: %w", i, err)
		}
	}
	return nil
}

// ApplyConfig returns a copy of base with the scenario's overrides
// applied.
func (s *Scenario) ApplyConfig(base *config.Config) (*config.Config, error) {
	cfg := base.Clone()
	if s.Config.Kind == 0 {
		return cfg, nil
	}
	if err := s.Config.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config override: %w", err)
	}
	return cfg, nil
}

func (st *Stimulus) resolve(cycles uint64) error {
	if st.At >= cycles {
		return fmt.Errorf("cycle %d is past the end (%d)", st.At, cycles)
	}

	if st.Exception != "" {
		e, ok := trap.ParseException(st.Exception)
		if !ok {
			return fmt.Errorf("unknown exception %q", st.Exception)
		}
		st.exception = e
	}

	if st.IRQ != nil && (st.IRQ.Line < 0 || st.IRQ.Line >= config.MaxIRQs) {
		return fmt.Errorf("irq line %d out of range", st.IRQ.Line)
	}

	if st.Load != nil && st.Store != nil {
		return fmt.Errorf("load and store in the same stimulus")
	}

	if st.CSR != nil {
		return st.CSR.resolve()
	}
	return nil
}

func (op *CSROp) resolve() error {
	addr, err := csr.ParseAddr(op.Reg)
	if err != nil {
		return err
	}
	op.addr = addr

	switch op.Op {
	case "read":
	case "write":
		op.kind, op.write = csr.WriteKindWrite, true
	case "set":
		op.kind, op.write = csr.WriteKindSet, true
	case "clear":
		op.kind, op.write = csr.WriteKindClear, true
	default:
		return fmt.Errorf("unknown csr op %q", op.Op)
	}
	return nil
}

func (e *Expectation) resolve(cycles uint64) error {
	if e.At >= cycles {
		return fmt.Errorf("cycle %d is past the end (%d)", e.At, cycles)
	}

	if e.Class != "" {
		c, ok := trap.ParseClass(e.Class)
		if !ok {
			return fmt.Errorf("unknown class %q", e.Class)
		}
		e.class = c
	}

	if e.DebugCause != "" {
		c, ok := csr.ParseDebugCause(e.DebugCause)
		if !ok {
			return fmt.Errorf("unknown debug cause %q", e.DebugCause)
		}
		e.debugCause = c
	}

	e.csrAddrs = make(map[string]csr.Addr, len(e.CSR))
	for name := range e.CSR {
		addr, err := csr.ParseAddr(name)
		if err != nil {
			return err
		}
		e.csrAddrs[name] = addr
	}
	return nil
}
