// Package regfile provides type definitions for virtual register files.
package regfile

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Register defines a physical register interface.
// A register has an identifier, an assembler name and the operand widths it can hold.
type Register interface {
	Id() int             // The unique id of the register.
	String() string      // String returns the assembler string for the register.
	Holds(size int) bool // Holds returns true if the register has a part of size bytes.
}

// RegisterFile defines an interface for a virtual register file.
// A register file must support retrieval of SP, FP, the ellipse pointer and temporary registers.
type RegisterFile interface {
	SP() Register                                          // Returns the stack pointer register.
	FP() Register                                          // Returns the frame pointer register.
	EP() Register                                          // Returns the ellipse pointer register.
	Get(i int) Register                                    // Return the i'th temporary register.
	GetNextTempExclude(exc []Register, size int) Register // Returns the first temporary register holding size bytes that is not excluded, or nil.
	K() int                                                // K returns the number of usable temporary registers.
}
