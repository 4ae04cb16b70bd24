// Package lsu models a single-outstanding load/store unit. It produces the
// bus status signals the trap controller uses to hold off interrupt and
// halt entry while a memory operation is in flight.
package lsu

import (
	"fmt"
)

// Range is a half-open address range [Start, End).
type Range struct {
	Start uint32 `json:"start" yaml:"start"`
	End   uint32 `json:"end" yaml:"end"`
}

// Contains reports whether addr lies in the range.
func (r Range) Contains(addr uint32) bool {
	return addr >= r.Start && addr < r.End
}

// Config holds load/store unit parameters.
type Config struct {
	// AddressPhaseCycles is the length of the address phase. Interrupt
	// entry is delayed while it lasts.
	AddressPhaseCycles uint64 `json:"address_phase_cycles" yaml:"address_phase_cycles"`

	// Cache sets the data phase latency.
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// FaultRanges are address ranges with no device behind them. Accesses
	// there complete with an access fault.
	FaultRanges []Range `json:"fault_ranges" yaml:"fault_ranges"`
}

// DefaultConfig returns a one-cycle address phase in front of the default
// data cache and no fault ranges.
func DefaultConfig() Config {
	return Config{
		AddressPhaseCycles: 1,
		Cache:              DefaultCacheConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	for _, r := range c.FaultRanges {
		if r.End <= r.Start {
			return fmt.Errorf("fault range [%#x, %#x) is empty", r.Start, r.End)
		}
	}
	return nil
}

// Result reports the completion of an access.
type Result struct {
	// Done is set on the cycle the access completes.
	Done bool
	// Fault is set when the access hit a fault range.
	Fault   bool
	IsStore bool
	Addr    uint32
}

// Statistics holds load/store unit statistics.
type Statistics struct {
	Loads  uint64
	Stores uint64
	Faults uint64
	// BusyCycles is the number of cycles an access was in flight.
	BusyCycles uint64
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseAddress
	phaseData
)

// LSU is a load/store unit with at most one access in flight.
type LSU struct {
	config Config
	cache  *Cache

	phase     phase
	remaining uint64
	addr      uint32
	isStore   bool
	fault     bool

	stats Statistics
}

// New creates a load/store unit.
func New(config Config) *LSU {
	return &LSU{
		config: config,
		cache:  NewCache(config.Cache),
	}
}

// Cache returns the data cache.
func (u *LSU) Cache() *Cache {
	return u.cache
}

// Stats returns load/store unit statistics.
func (u *LSU) Stats() Statistics {
	return u.stats
}

// Busy reports whether an access is in flight.
func (u *LSU) Busy() bool {
	return u.phase != phaseIdle
}

// AddressPhase reports whether the access in flight is in its address
// phase.
func (u *LSU) AddressPhase() bool {
	return u.phase == phaseAddress
}

// Outstanding reports whether the access in flight is waiting for its
// data phase to resolve.
func (u *LSU) Outstanding() bool {
	return u.phase == phaseData
}

func (u *LSU) faults(addr uint32) bool {
	for _, r := range u.config.FaultRanges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// Issue starts an access. It returns false, and does nothing, when an
// access is already in flight.
func (u *LSU) Issue(addr uint32, isStore bool) bool {
	if u.Busy() {
		return false
	}

	u.addr = addr
	u.isStore = isStore
	u.fault = u.faults(addr)

	if isStore {
		u.stats.Stores++
	} else {
		u.stats.Loads++
	}

	if u.config.AddressPhaseCycles > 0 {
		u.phase = phaseAddress
		u.remaining = u.config.AddressPhaseCycles
		return true
	}
	u.startData()
	return true
}

func (u *LSU) startData() {
	u.phase = phaseData
	if u.fault {
		// The bus error comes back after a full round trip. Nothing is
		// allocated.
		u.remaining = u.config.Cache.MissLatency
		return
	}
	u.remaining = u.cache.Access(uint64(u.addr), u.isStore).Latency
}

// Tick advances the access in flight by one cycle.
func (u *LSU) Tick() Result {
	if !u.Busy() {
		return Result{}
	}

	u.stats.BusyCycles++
	if u.remaining > 0 {
		u.remaining--
	}
	if u.remaining > 0 {
		return Result{}
	}

	if u.phase == phaseAddress {
		u.startData()
		return Result{}
	}

	u.phase = phaseIdle
	if u.fault {
		u.stats.Faults++
	}
	return Result{
		Done:    true,
		Fault:   u.fault,
		IsStore: u.isStore,
		Addr:    u.addr,
	}
}

// Reset abandons any access in flight and empties the cache.
func (u *LSU) Reset() {
	u.phase = phaseIdle
	u.remaining = 0
	u.stats = Statistics{}
	u.cache.Reset()
}
