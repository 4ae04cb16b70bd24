package csr

import (
	"fmt"

	"github.com/sarchlab/rvcsr/config"
)

const (
	mstatusMIE   = 3
	mstatusMPIE  = 7
	mstatusMPP   = 0x3 << 11
	mstatusMask  = 1<<mstatusMIE | 1<<mstatusMPIE
	mieMask      = IRQSoftware | IRQTimer | IRQExternal
	mcauseIRQ    = 31
	mcauseCode   = 0x3f
	mcauseMask   = 1<<mcauseIRQ | mcauseCode
	inhibitMask  = InhibitCycle | InhibitInstret
	dcsrVersion  = 4 << 28
	dcsrEbreakm  = 15
	dcsrCause    = 6
	dcsrStep     = 2
	dcsrPrvM     = 0x3
	dcsrMask     = 1<<dcsrEbreakm | 1<<dcsrStep
	mtvecModeBit = 0x1
	mtvecBase    = ^uint32(0x3)
)

type tableBuilder struct {
	table map[Addr]*Descriptor
}

func (b *tableBuilder) add(d *Descriptor) {
	if _, dup := b.table[d.Addr]; dup {
		panic(fmt.Sprintf("csr: duplicate descriptor for %s", d.Addr))
	}
	b.table[d.Addr] = d
}

// constant adds a register that reads a fixed value and ignores writes.
func (b *tableBuilder) constant(addr Addr, value uint32) {
	b.add(&Descriptor{
		Addr: addr,
		Read: func(*RegisterFile) uint32 { return value },
	})
}

func buildTable(cfg *config.Config) map[Addr]*Descriptor {
	b := &tableBuilder{table: make(map[Addr]*Descriptor)}

	addTrapRegisters(b, cfg)
	addCounterRegisters(b, cfg)
	addIRQRegisters(b, cfg)
	if cfg.DebugSupport {
		addDebugRegisters(b, cfg)
	}

	b.constant(Mvendorid, cfg.MvendorID)
	b.constant(Marchid, cfg.MarchID)
	b.constant(Mimpid, cfg.MimpID)
	b.constant(Mhartid, cfg.MhartID)
	b.constant(Mconfigptr, cfg.MconfigPtr)

	return b.table
}

func addTrapRegisters(b *tableBuilder, cfg *config.Config) {
	b.add(&Descriptor{
		Addr:      Mstatus,
		WriteMask: mstatusMask,
		Read: func(rf *RegisterFile) uint32 {
			return boolBit(rf.State.MIE, mstatusMIE) |
				boolBit(rf.State.MPIE, mstatusMPIE) |
				mstatusMPP
		},
		Store: func(rf *RegisterFile, v uint32) {
			rf.State.MIE = v&(1<<mstatusMIE) != 0
			rf.State.MPIE = v&(1<<mstatusMPIE) != 0
		},
	})
	b.constant(Misa, cfg.MISA())
	b.constant(Mstatush, 0)

	b.add(&Descriptor{
		Addr:      Mie,
		WriteMask: mieMask,
		Read:      func(rf *RegisterFile) uint32 { return rf.State.MIEBits },
		Store:     func(rf *RegisterFile, v uint32) { rf.State.MIEBits = v },
	})

	mtvecMask := mtvecBase
	if cfg.VectoredTraps {
		mtvecMask |= mtvecModeBit
	}
	b.add(&Descriptor{
		Addr:      Mtvec,
		WriteMask: mtvecMask,
		Read:      func(rf *RegisterFile) uint32 { return rf.State.Mtvec },
		Store: func(rf *RegisterFile, v uint32) {
			rf.State.Mtvec = v & (mtvecBase | mtvecModeBit)
		},
	})

	b.add(&Descriptor{
		Addr:      Mscratch,
		WriteMask: ^uint32(0),
		Read:      func(rf *RegisterFile) uint32 { return rf.State.Mscratch },
		Store:     func(rf *RegisterFile, v uint32) { rf.State.Mscratch = v },
	})

	epcMask := cfg.EPCMask()
	b.add(&Descriptor{
		Addr:      Mepc,
		WriteMask: epcMask,
		Read:      func(rf *RegisterFile) uint32 { return rf.State.Mepc },
		Store:     func(rf *RegisterFile, v uint32) { rf.State.Mepc = v & epcMask },
	})

	b.add(&Descriptor{
		Addr:      Mcause,
		WriteMask: mcauseMask,
		Read: func(rf *RegisterFile) uint32 {
			return boolBit(rf.State.CauseIRQ, mcauseIRQ) | uint32(rf.State.CauseCode)
		},
		Store: func(rf *RegisterFile, v uint32) {
			rf.State.CauseIRQ = v&(1<<mcauseIRQ) != 0
			rf.State.CauseCode = uint8(v & mcauseCode)
		},
	})

	// mtval is hardwired to zero.
	b.add(&Descriptor{
		Addr:  Mtval,
		Read:  func(*RegisterFile) uint32 { return 0 },
		Store: func(*RegisterFile, uint32) {},
	})

	b.add(&Descriptor{
		Addr: Mip,
		Read: func(rf *RegisterFile) uint32 { return rf.MIP() },
	})
}

func addCounterRegisters(b *tableBuilder, cfg *config.Config) {
	live := cfg.CounterMask()

	counter := func(lo, hi Addr, field func(*State) *uint64) {
		b.add(&Descriptor{
			Addr:      lo,
			WriteMask: uint32(live),
			Read:      func(rf *RegisterFile) uint32 { return uint32(*field(&rf.State)) },
			Store: func(rf *RegisterFile, v uint32) {
				p := field(&rf.State)
				*p = (*p&^0xFFFF_FFFF | uint64(v)) & live
			},
		})
		b.add(&Descriptor{
			Addr:      hi,
			WriteMask: uint32(live >> 32),
			Read:      func(rf *RegisterFile) uint32 { return uint32(*field(&rf.State) >> 32) },
			Store: func(rf *RegisterFile, v uint32) {
				p := field(&rf.State)
				*p = (*p&0xFFFF_FFFF | uint64(v)<<32) & live
			},
		})
	}
	cycle := func(s *State) *uint64 { return &s.Mcycle }
	instret := func(s *State) *uint64 { return &s.Minstret }

	counter(Mcycle, Mcycleh, cycle)
	counter(Minstret, Minstreth, instret)

	shadow := func(addr Addr, field func(*State) *uint64, shift uint) {
		b.add(&Descriptor{
			Addr: addr,
			Read: func(rf *RegisterFile) uint32 { return uint32(*field(&rf.State) >> shift) },
		})
	}
	shadow(Cycle, cycle, 0)
	shadow(Cycleh, cycle, 32)
	shadow(Instret, instret, 0)
	shadow(Instreth, instret, 32)

	b.add(&Descriptor{
		Addr:      Mcountinhibit,
		WriteMask: inhibitMask,
		Read:      func(rf *RegisterFile) uint32 { return rf.State.Mcountinhibit },
		Store:     func(rf *RegisterFile, v uint32) { rf.State.Mcountinhibit = v },
	})

	// Unimplemented performance counters are decoded so that software can
	// probe them. They read as zero and accept writes.
	for i := Addr(0); i <= Mhpmcounter31-Mhpmcounter3; i++ {
		for _, addr := range []Addr{Mhpmevent3 + i, Mhpmcounter3 + i, Mhpmcounter3h + i} {
			b.add(&Descriptor{
				Addr:  addr,
				Read:  func(*RegisterFile) uint32 { return 0 },
				Store: func(*RegisterFile, uint32) {},
			})
		}
	}
}

func addIRQRegisters(b *tableBuilder, cfg *config.Config) {
	irqMask := cfg.IRQMask()

	for i := 0; i*32 < cfg.NumIRQs; i++ {
		i := i
		b.add(&Descriptor{
			Addr:      Meie0 + Addr(i),
			WriteMask: irqMask[i],
			Read:      func(rf *RegisterFile) uint32 { return rf.State.MEIE[i] },
			Store:     func(rf *RegisterFile, v uint32) { rf.State.MEIE[i] = v },
		})
		b.add(&Descriptor{
			Addr: Meip0 + Addr(i),
			Read: func(rf *RegisterFile) uint32 { return rf.ExternalPending()[i] },
		})
	}

	b.add(&Descriptor{
		Addr: Mlei,
		Read: func(rf *RegisterFile) uint32 {
			index, ok := LowestSetBit(rf.ExternalEnabledPending())
			if !ok {
				return 0
			}
			return uint32(index)
		},
	})
}

func addDebugRegisters(b *tableBuilder, cfg *config.Config) {
	epcMask := cfg.EPCMask()

	// No triggers are implemented. tselect is decoded for debugger probing
	// and rejects writes.
	b.add(&Descriptor{
		Addr:         Tselect,
		RejectWrites: true,
		Read:         func(*RegisterFile) uint32 { return 0 },
	})

	b.add(&Descriptor{
		Addr:      Dcsr,
		DebugOnly: true,
		WriteMask: dcsrMask,
		Read: func(rf *RegisterFile) uint32 {
			return dcsrVersion |
				boolBit(rf.State.Ebreakm, dcsrEbreakm) |
				uint32(rf.State.DebugCause)<<dcsrCause |
				boolBit(rf.State.StepEnable, dcsrStep) |
				dcsrPrvM
		},
		Store: func(rf *RegisterFile, v uint32) {
			rf.State.Ebreakm = v&(1<<dcsrEbreakm) != 0
			rf.State.StepEnable = v&(1<<dcsrStep) != 0
		},
	})

	b.add(&Descriptor{
		Addr:      Dpc,
		DebugOnly: true,
		WriteMask: epcMask,
		Read:      func(rf *RegisterFile) uint32 { return rf.State.DPC },
		Store: func(rf *RegisterFile, v uint32) {
			if rf.State.DebugMode {
				rf.State.DPC = v & epcMask
			}
		},
	})

	// dmdata0 is owned by the debug transport. Writes are forwarded as a
	// strobe by the controller, nothing is stored here.
	b.add(&Descriptor{
		Addr:      Dmdata0,
		DebugOnly: true,
		WriteMask: ^uint32(0),
		Read:      func(rf *RegisterFile) uint32 { return rf.Levels.DMData0 },
		Store:     func(*RegisterFile, uint32) {},
	})
}
