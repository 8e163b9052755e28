// label.go provides assembly label names for jump targets. Labels are derived from the function name and the
// index of the target instruction, so concurrent function generation needs no shared counter.

package util

import "fmt"

// ---------------------
// ----- Constants -----
// ---------------------

// labelSeparator separates function name and instruction index in generated labels.
const labelSeparator = "$"

// ---------------------
// ----- functions -----
// ---------------------

// Label returns the label of instruction index in function fn.
func Label(fn string, index int) string {
	return fmt.Sprintf("%s%s%d", fn, labelSeparator, index)
}
