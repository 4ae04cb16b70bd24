// Package csr provides the machine-mode control and status register file.
//
// Registers are described by a table of descriptors keyed by address. Each
// descriptor carries its read accessor, write mask and the side effect of
// storing a value. The register file knows nothing about trap arbitration:
// callers decide whether a software write is allowed to land in a given
// cycle.
package csr

import (
	"fmt"

	"github.com/sarchlab/rvcsr/config"
)

// WriteKind selects how write data combines with the current value.
type WriteKind uint8

const (
	// WriteKindWrite replaces the value (csrrw).
	WriteKindWrite WriteKind = iota
	// WriteKindSet sets the bits given in the write data (csrrs).
	WriteKindSet
	// WriteKindClear clears the bits given in the write data (csrrc).
	WriteKindClear
)

func (k WriteKind) String() string {
	switch k {
	case WriteKindWrite:
		return "write"
	case WriteKindSet:
		return "set"
	case WriteKindClear:
		return "clear"
	default:
		return fmt.Sprintf("WriteKind(%d)", uint8(k))
	}
}

// Update combines the current value and the raw write data according to
// the write kind.
func (k WriteKind) Update(current, raw uint32) uint32 {
	switch k {
	case WriteKindSet:
		return current | raw
	case WriteKindClear:
		return current &^ raw
	default:
		return raw
	}
}

// Descriptor describes one CSR.
type Descriptor struct {
	Addr Addr

	// DebugOnly registers are only accessible in debug mode.
	DebugOnly bool

	// RejectWrites makes any write to the register illegal even though the
	// address lies in the writable space.
	RejectWrites bool

	// WriteMask selects the software-writable bits. Other bits keep their
	// current value.
	WriteMask uint32

	// Read returns the current value.
	Read func(rf *RegisterFile) uint32

	// Store applies a merged value. A nil Store ignores writes.
	Store func(rf *RegisterFile, value uint32)
}

// RegisterFile holds the CSR state and the descriptor table.
type RegisterFile struct {
	cfg   *config.Config
	table map[Addr]*Descriptor

	// State is the architectural state.
	State State

	// Levels are this cycle's input signals.
	Levels Levels
}

// NewRegisterFile creates a register file in its reset state. The
// descriptor table only contains the registers the configuration
// implements.
func NewRegisterFile(cfg *config.Config) *RegisterFile {
	rf := &RegisterFile{
		cfg:   cfg,
		table: buildTable(cfg),
	}
	rf.Reset()
	return rf
}

// View returns a register file sharing this one's configuration and
// descriptor table, holding the given state and levels.
func (rf *RegisterFile) View(state State, levels Levels) *RegisterFile {
	return &RegisterFile{
		cfg:    rf.cfg,
		table:  rf.table,
		State:  state,
		Levels: levels,
	}
}

// Config returns the configuration the register file was built with.
func (rf *RegisterFile) Config() *config.Config {
	return rf.cfg
}

// Reset restores the reset values. Counters come out of reset inhibited.
func (rf *RegisterFile) Reset() {
	rf.State = ResetState(rf.cfg)
	rf.Levels = Levels{}
}

// ResetState returns the reset value of the CSR state.
func ResetState(cfg *config.Config) State {
	return State{
		Mtvec:         cfg.MtvecInit,
		Mcountinhibit: InhibitCycle | InhibitInstret,
	}
}

// Descriptor returns the descriptor implemented at addr.
func (rf *RegisterFile) Descriptor(addr Addr) (*Descriptor, bool) {
	d, ok := rf.table[addr]
	return d, ok
}

// Len returns the number of implemented registers.
func (rf *RegisterFile) Len() int {
	return len(rf.table)
}

// Legal reports whether an access to addr is legal in the current state.
func (rf *RegisterFile) Legal(addr Addr, write bool) bool {
	d, ok := rf.table[addr]
	if !ok {
		return false
	}
	if d.DebugOnly && !rf.State.DebugMode {
		return false
	}
	if write && (addr.ReadOnly() || d.RejectWrites) {
		return false
	}
	return true
}

// Read returns the value of the register at addr. It has no side effects.
// matched is false when the access is illegal.
func (rf *RegisterFile) Read(addr Addr) (value uint32, matched bool) {
	if !rf.Legal(addr, false) {
		return 0, false
	}
	return rf.table[addr].Read(rf), true
}

// ApplyWrite merges a software write into the register at addr and returns
// the merged value. Bits outside the write mask keep their current value.
// matched is false, and nothing changes, when the write is illegal.
func (rf *RegisterFile) ApplyWrite(
	addr Addr,
	raw uint32,
	kind WriteKind,
) (merged uint32, matched bool) {
	if !rf.Legal(addr, true) {
		return 0, false
	}

	d := rf.table[addr]
	current := d.Read(rf)
	update := kind.Update(current, raw)
	merged = (update & d.WriteMask) | (current &^ d.WriteMask)

	if d.Store != nil {
		d.Store(rf, merged)
	}
	return merged, true
}

// ExternalPending returns the external interrupt levels restricted to the
// implemented lines.
func (rf *RegisterFile) ExternalPending() [4]uint32 {
	return and4(rf.Levels.IRQ, rf.cfg.IRQMask())
}

// ExternalEnabledPending returns the pending external lines that are also
// enabled in meie.
func (rf *RegisterFile) ExternalEnabledPending() [4]uint32 {
	return and4(rf.ExternalPending(), rf.State.MEIE)
}

// MIP returns the value of the standard interrupt pending register.
func (rf *RegisterFile) MIP() uint32 {
	var mip uint32
	if AnySet(rf.ExternalEnabledPending()) {
		mip |= IRQExternal
	}
	if rf.Levels.Timer {
		mip |= IRQTimer
	}
	if rf.Levels.Software {
		mip |= IRQSoftware
	}
	return mip
}
