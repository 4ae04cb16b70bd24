package csr

import (
	"fmt"
	"strconv"
	"strings"
)

// Addr is a 12-bit CSR address.
type Addr uint16

// Machine-mode CSR addresses.
const (
	Mstatus       Addr = 0x300
	Misa          Addr = 0x301
	Mie           Addr = 0x304
	Mtvec         Addr = 0x305
	Mstatush      Addr = 0x310
	Mcountinhibit Addr = 0x320
	Mhpmevent3    Addr = 0x323
	Mhpmevent31   Addr = 0x33f
	Mscratch      Addr = 0x340
	Mepc          Addr = 0x341
	Mcause        Addr = 0x342
	Mtval         Addr = 0x343
	Mip           Addr = 0x344

	Tselect Addr = 0x7a0
	Dcsr    Addr = 0x7b0
	Dpc     Addr = 0x7b1

	Mcycle         Addr = 0xb00
	Minstret       Addr = 0xb02
	Mhpmcounter3   Addr = 0xb03
	Mhpmcounter31  Addr = 0xb1f
	Mcycleh        Addr = 0xb80
	Minstreth      Addr = 0xb82
	Mhpmcounter3h  Addr = 0xb83
	Mhpmcounter31h Addr = 0xb9f

	Meie0   Addr = 0xbe0
	Meie1   Addr = 0xbe1
	Meie2   Addr = 0xbe2
	Meie3   Addr = 0xbe3
	Dmdata0 Addr = 0xbff

	Cycle    Addr = 0xc00
	Instret  Addr = 0xc02
	Cycleh   Addr = 0xc80
	Instreth Addr = 0xc82

	Mvendorid  Addr = 0xf11
	Marchid    Addr = 0xf12
	Mimpid     Addr = 0xf13
	Mhartid    Addr = 0xf14
	Mconfigptr Addr = 0xf15

	Meip0 Addr = 0xfe0
	Meip1 Addr = 0xfe1
	Meip2 Addr = 0xfe2
	Meip3 Addr = 0xfe3
	Mlei  Addr = 0xfe4
)

// ReadOnly reports whether the address lies in the read-only CSR space
// (bits 11:10 both set). Writes to these addresses are always illegal.
func (a Addr) ReadOnly() bool {
	return (a>>10)&0x3 == 0x3
}

var names = map[Addr]string{
	Mstatus:       "mstatus",
	Misa:          "misa",
	Mie:           "mie",
	Mtvec:         "mtvec",
	Mstatush:      "mstatush",
	Mcountinhibit: "mcountinhibit",
	Mscratch:      "mscratch",
	Mepc:          "mepc",
	Mcause:        "mcause",
	Mtval:         "mtval",
	Mip:           "mip",
	Tselect:       "tselect",
	Dcsr:          "dcsr",
	Dpc:           "dpc",
	Mcycle:        "mcycle",
	Minstret:      "minstret",
	Mcycleh:       "mcycleh",
	Minstreth:     "minstreth",
	Meie0:         "meie0",
	Meie1:         "meie1",
	Meie2:         "meie2",
	Meie3:         "meie3",
	Dmdata0:       "dmdata0",
	Cycle:         "cycle",
	Instret:       "instret",
	Cycleh:        "cycleh",
	Instreth:      "instreth",
	Mvendorid:     "mvendorid",
	Marchid:       "marchid",
	Mimpid:        "mimpid",
	Mhartid:       "mhartid",
	Mconfigptr:    "mconfigptr",
	Meip0:         "meip0",
	Meip1:         "meip1",
	Meip2:         "meip2",
	Meip3:         "meip3",
	Mlei:          "mlei",
}

// String returns the architectural name of the address, or its hex value
// when it has none.
func (a Addr) String() string {
	if name, ok := names[a]; ok {
		return name
	}
	switch {
	case a >= Mhpmevent3 && a <= Mhpmevent31:
		return fmt.Sprintf("mhpmevent%d", a-Mhpmevent3+3)
	case a >= Mhpmcounter3 && a <= Mhpmcounter31:
		return fmt.Sprintf("mhpmcounter%d", a-Mhpmcounter3+3)
	case a >= Mhpmcounter3h && a <= Mhpmcounter31h:
		return fmt.Sprintf("mhpmcounter%dh", a-Mhpmcounter3h+3)
	}
	return fmt.Sprintf("0x%03x", uint16(a))
}

// ParseAddr accepts an architectural register name or a numeric address
// (decimal or 0x-prefixed hex).
func ParseAddr(s string) (Addr, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for addr, name := range names {
		if name == s {
			return addr, nil
		}
	}

	if addr, ok := parseHPM(s); ok {
		return addr, nil
	}

	n, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 12)
	if err != nil {
		return 0, fmt.Errorf("unknown CSR %q", s)
	}
	return Addr(n), nil
}

func parseHPM(s string) (Addr, bool) {
	base := Mhpmevent3
	switch {
	case strings.HasPrefix(s, "mhpmevent"):
		s = strings.TrimPrefix(s, "mhpmevent")
	case strings.HasPrefix(s, "mhpmcounter") && strings.HasSuffix(s, "h"):
		s = strings.TrimSuffix(strings.TrimPrefix(s, "mhpmcounter"), "h")
		base = Mhpmcounter3h
	case strings.HasPrefix(s, "mhpmcounter"):
		s = strings.TrimPrefix(s, "mhpmcounter")
		base = Mhpmcounter3
	default:
		return 0, false
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 3 || n > 31 {
		return 0, false
	}
	return base + Addr(n-3), true
}
