package x86

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// InternalError reports a violated invariant of the code generator or malformed middle code. Generation of
// the function is aborted.
type InternalError struct {
	Function string // Function being generated.
	Index    int    // Index of the middle code instruction, or -1.
	Msg      string // Description of the fault.
}

// Diagnostic reports a limitation of the target the source program ran into, such as exceeding the x87 register
// stack. Generation of the function is aborted.
type Diagnostic struct {
	Function string // Function being generated.
	Index    int    // Index of the middle code instruction.
	Line     int    // Line of the middle code instruction, zero if unknown.
	Msg      string // Description of the fault.
}

// ---------------------
// ----- Functions -----
// ---------------------

// Error returns the error message of InternalError e.
func (e *InternalError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("internal error in %s: %s", e.Function, e.Msg)
	}
	return fmt.Sprintf("internal error in %s at %d: %s", e.Function, e.Index, e.Msg)
}

// Error returns the error message of Diagnostic d.
func (d *Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", d.Function, d.Line, d.Msg)
	}
	return fmt.Sprintf("%s at %d: %s", d.Function, d.Index, d.Msg)
}

// fatal aborts generation with an InternalError. The generator fills in the position when it recovers.
func fatal(format string, args ...interface{}) {
	panic(&InternalError{Index: -1, Msg: fmt.Sprintf(format, args...)})
}

// diagnose aborts generation with a Diagnostic.
func diagnose(format string, args ...interface{}) {
	panic(&Diagnostic{Msg: fmt.Sprintf(format, args...)})
}
