package scenario

import (
	"fmt"
	"sort"

	"github.com/sarchlab/rvcsr/timing/core"
)

// AssertionError represents a failed expectation.
type AssertionError struct {
	Cycle    uint64
	Field    string
	Expected any
	Actual   any
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("cycle %d: %s: expected %v, got %v",
		e.Cycle, e.Field, e.Expected, e.Actual)
}

type hex uint32

func (h hex) String() string {
	return fmt.Sprintf("%#x", uint32(h))
}

// check compares the outputs of a cycle and the controller state after it
// with an expectation.
func check(e *Expectation, out core.Outputs, c *core.Controller) []error {
	var errs []error

	fail := func(field string, expected, actual any) {
		errs = append(errs, &AssertionError{
			Cycle:    e.At,
			Field:    field,
			Expected: expected,
			Actual:   actual,
		})
	}

	checkBool := func(field string, expected *bool, actual bool) {
		if expected != nil && *expected != actual {
			fail(field, *expected, actual)
		}
	}

	checkHex := func(field string, expected *uint32, actual uint32) {
		if expected != nil && *expected != actual {
			fail(field, hex(*expected), hex(actual))
		}
	}

	checkBool("trap_enter", e.TrapEnter, out.TrapEnter)
	checkHex("trap_addr", e.TrapAddr, out.TrapAddr)
	checkBool("trap_is_irq", e.TrapIsIRQ, out.TrapIsIRQ)
	checkBool("imminent", e.Imminent, out.TrapEnterSoon)
	checkBool("accepted", e.Accepted, out.Accepted)
	checkBool("illegal", e.Illegal, out.Illegal)
	checkHex("rdata", e.RData, out.RData)
	checkBool("wfi_stall_clear", e.WFIStallClear, out.WFIStallClear)
	checkBool("debug_mode", e.DebugMode, c.DebugMode())

	if e.Class != "" && e.class != out.Class {
		fail("class", e.class, out.Class)
	}

	if e.DebugCause != "" {
		if actual := c.State().CSR.DebugCause; actual != e.debugCause {
			fail("debug_cause", e.debugCause, actual)
		}
	}

	names := make([]string, 0, len(e.CSR))
	for name := range e.CSR {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		expected := e.CSR[name]
		actual, ok := c.PeekCSR(e.csrAddrs[name])
		if !ok {
			fail("csr["+name+"]", hex(expected), "unmapped")
			continue
		}
		if actual != expected {
			fail("csr["+name+"]", hex(expected), hex(actual))
		}
	}

	return errs
}
