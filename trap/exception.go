// Package trap decides, once per cycle, whether and where control flow is
// redirected: synchronous exceptions, interrupts, debug halt and resume, and
// returns from a trap handler.
package trap

// Exception is the synchronous exception code presented by the pipeline.
type Exception uint8

// Exception codes. ExceptMRET is a pseudo-exception requesting a return
// from the trap handler.
const (
	ExceptNone Exception = iota
	ExceptInstrMisaligned
	ExceptInstrFault
	ExceptIllegal
	ExceptEbreak
	ExceptLoadMisaligned
	ExceptLoadFault
	ExceptStoreMisaligned
	ExceptStoreFault
	ExceptEcall
	ExceptMRET
)

var exceptionNames = [...]string{
	ExceptNone:            "none",
	ExceptInstrMisaligned: "instr_misaligned",
	ExceptInstrFault:      "instr_fault",
	ExceptIllegal:         "illegal",
	ExceptEbreak:          "ebreak",
	ExceptLoadMisaligned:  "load_misaligned",
	ExceptLoadFault:       "load_fault",
	ExceptStoreMisaligned: "store_misaligned",
	ExceptStoreFault:      "store_fault",
	ExceptEcall:           "ecall",
	ExceptMRET:            "mret",
}

var exceptionCodes = [...]uint8{
	ExceptInstrMisaligned: 0,
	ExceptInstrFault:      1,
	ExceptIllegal:         2,
	ExceptEbreak:          3,
	ExceptLoadMisaligned:  4,
	ExceptLoadFault:       5,
	ExceptStoreMisaligned: 6,
	ExceptStoreFault:      7,
	ExceptEcall:           11,
}

func (e Exception) String() string {
	if int(e) < len(exceptionNames) {
		return exceptionNames[e]
	}
	return "unknown"
}

// ParseException returns the exception with the given name.
func ParseException(name string) (Exception, bool) {
	for e, n := range exceptionNames {
		if n == name {
			return Exception(e), true
		}
	}
	return ExceptNone, false
}

// Code returns the mcause exception code.
func (e Exception) Code() uint8 {
	if int(e) < len(exceptionCodes) {
		return exceptionCodes[e]
	}
	return 0
}

// Traps reports whether the code is a real synchronous exception, as
// opposed to no exception or a return request.
func (e Exception) Traps() bool {
	return e != ExceptNone && e != ExceptMRET && int(e) < len(exceptionNames)
}
