// Package config holds the build-time parameters of the CSR unit.
//
// A Config is fixed for the lifetime of a controller. Inconsistent
// parameters are rejected by Validate when the controller is constructed,
// never while it is running.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	// MaxIRQs is the number of external interrupt lines the custom
	// meie/meip register set can describe (4 x 32 bits).
	MaxIRQs = 128

	// MaxCounterWidth is the storage width of mcycle and minstret.
	MaxCounterWidth = 64

	// maxCauseCode is the largest value the 6-bit cause field can hold.
	maxCauseCode = 63
)

// External interrupt cause reporting modes.
const (
	// ExternalCauseMEI reports every external interrupt with the standard
	// machine external interrupt code (11).
	ExternalCauseMEI = "mei"

	// ExternalCauseLine reports the claimed external line index as the
	// interrupt cause code, giving every line its own vector.
	ExternalCauseLine = "line"
)

// Config holds the configuration of the CSR file and trap unit.
type Config struct {
	// CompressedISA enables 16-bit instructions. It relaxes the epc and dpc
	// alignment from 4 bytes to 2 bytes and sets misa.C.
	CompressedISA bool `json:"compressed_isa" yaml:"compressed_isa"`

	// MultiplyISA sets misa.M. It has no other effect on this unit.
	MultiplyISA bool `json:"multiply_isa" yaml:"multiply_isa"`

	// DebugSupport enables debug mode and the dcsr, dpc, dmdata0 and
	// tselect registers.
	DebugSupport bool `json:"debug_support" yaml:"debug_support"`

	// VectoredTraps makes the mtvec mode bit writable.
	VectoredTraps bool `json:"vectored_traps" yaml:"vectored_traps"`

	// NumIRQs is the number of external interrupt lines. Default: 32.
	NumIRQs int `json:"num_irqs" yaml:"num_irqs"`

	// CounterWidth is the number of live bits in mcycle and minstret.
	// Bits above the width are frozen at their reset value. Narrow counters
	// are not compliant with the privileged architecture, they exist to
	// model cheaper implementations. Default: 64.
	CounterWidth uint `json:"counter_width" yaml:"counter_width"`

	// IRQEntryDelay is the number of extra cycles interrupt and halt entry
	// stay masked after the delay-interrupt-entry input deasserts.
	// Default: 0.
	IRQEntryDelay uint64 `json:"irq_entry_delay" yaml:"irq_entry_delay"`

	// ExternalCause selects the cause code of external interrupts, one of
	// ExternalCauseMEI or ExternalCauseLine. Default: "mei".
	ExternalCause string `json:"external_cause" yaml:"external_cause"`

	// MtvecInit is the reset value of mtvec.
	MtvecInit uint32 `json:"mtvec_init" yaml:"mtvec_init"`

	// Identification register values.
	MvendorID  uint32 `json:"mvendorid" yaml:"mvendorid"`
	MarchID    uint32 `json:"marchid" yaml:"marchid"`
	MimpID     uint32 `json:"mimpid" yaml:"mimpid"`
	MhartID    uint32 `json:"mhartid" yaml:"mhartid"`
	MconfigPtr uint32 `json:"mconfigptr" yaml:"mconfigptr"`
}

// DefaultConfig returns a Config for a small RV32IMC core with debug
// support and 32 external interrupt lines.
func DefaultConfig() *Config {
	return &Config{
		CompressedISA: true,
		MultiplyISA:   true,
		DebugSupport:  true,
		VectoredTraps: true,
		NumIRQs:       32,
		CounterWidth:  MaxCounterWidth,
		IRQEntryDelay: 0,
		ExternalCause: ExternalCauseMEI,
		MtvecInit:     0x0000_0000,
		MvendorID:     0,
		MarchID:       0x1b,
		MimpID:        0x1,
		MhartID:       0,
		MconfigPtr:    0,
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the parameters describe a buildable unit.
func (c *Config) Validate() error {
	if c.NumIRQs < 0 || c.NumIRQs > MaxIRQs {
		return fmt.Errorf("num_irqs must be in [0, %d], got %d", MaxIRQs, c.NumIRQs)
	}
	if c.CounterWidth == 0 || c.CounterWidth > MaxCounterWidth {
		return fmt.Errorf("counter_width must be in [1, %d], got %d",
			MaxCounterWidth, c.CounterWidth)
	}
	switch c.ExternalCause {
	case ExternalCauseMEI:
	case ExternalCauseLine:
		if c.NumIRQs > maxCauseCode+1 {
			return fmt.Errorf("external_cause %q supports at most %d lines, got %d",
				ExternalCauseLine, maxCauseCode+1, c.NumIRQs)
		}
	default:
		return fmt.Errorf("external_cause must be %q or %q, got %q",
			ExternalCauseMEI, ExternalCauseLine, c.ExternalCause)
	}
	if c.MtvecInit&0x2 != 0 {
		return fmt.Errorf("mtvec_init bit 1 is reserved, got 0x%08x", c.MtvecInit)
	}
	if c.MtvecInit&0x1 != 0 && !c.VectoredTraps {
		return fmt.Errorf("mtvec_init selects vectored mode but vectored_traps is off")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// EPCMask returns the mask applied to mepc and dpc.
func (c *Config) EPCMask() uint32 {
	if c.CompressedISA {
		return ^uint32(0x1)
	}
	return ^uint32(0x3)
}

// CounterMask returns the live bits of mcycle and minstret.
func (c *Config) CounterMask() uint64 {
	if c.CounterWidth >= MaxCounterWidth {
		return ^uint64(0)
	}
	return (uint64(1) << c.CounterWidth) - 1
}

// IRQMask returns the implemented bits of the four external interrupt
// enable/pending words.
func (c *Config) IRQMask() [4]uint32 {
	var mask [4]uint32
	for i := range mask {
		lines := c.NumIRQs - i*32
		switch {
		case lines >= 32:
			mask[i] = ^uint32(0)
		case lines > 0:
			mask[i] = (uint32(1) << uint(lines)) - 1
		}
	}
	return mask
}

// MISA returns the value of the misa register.
func (c *Config) MISA() uint32 {
	const mxl32 = 1 << 30

	value := uint32(mxl32)
	value |= 1 << ('I' - 'A')
	value |= 1 << ('X' - 'A')
	if c.MultiplyISA {
		value |= 1 << ('M' - 'A')
	}
	if c.CompressedISA {
		value |= 1 << ('C' - 'A')
	}
	return value
}
