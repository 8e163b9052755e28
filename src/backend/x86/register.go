// Package x86 lowers middle code into x86 instructions executed in 64-bit mode. It tracks which middle code
// values occupy which virtual registers, simulates the x87 register stack, builds activation records for the
// jump based calling convention and resolves branch displacements into text or relocatable machine code.
package x86

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Register is a physical register of a given width.
type Register uint8

// Class is a set of overlapping registers, e.g. {al, ax, eax, rax}. Two registers conflict iff they share a
// class.
type Class uint8

// registerInfo describes one Register.
type registerInfo struct {
	name  string // Assembler name.
	class Class  // Overlap class.
	size  int    // Width in bytes.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	NoRegister Register = iota
	AL
	BL
	CL
	DL
	AX
	BX
	CX
	DX
	SI
	DI
	BP
	SP
	EAX
	EBX
	ECX
	EDX
	ESI
	EDI
	EBP
	ESP
	RAX
	RBX
	RCX
	RDX
	RSI
	RDI
	RBP
	RSP
	numRegisters
)

const (
	ClassA Class = iota
	ClassB
	ClassC
	ClassD
	ClassSI
	ClassDI
	ClassBP
	ClassSP
	numClasses
)

// Registers with a fixed role in the calling convention.
const (
	FrameRegister         = RBP // Base of the current activation record.
	EllipseRegister       = RDI // Base of the locals of a variadic function.
	StackRegister         = RSP // Hardware stack; only read at program entry.
	ReturnValueClass      = ClassB
	ReturnAddressClass    = ClassA
	maxRegisterSize       = 8
	noHardwareCode   byte = 0xFF
)

// -------------------
// ----- Globals -----
// -------------------

// registers describes every Register. The table is read only.
var registers = [numRegisters]registerInfo{
	NoRegister: {"", 0, 0},
	AL:         {"al", ClassA, 1},
	BL:         {"bl", ClassB, 1},
	CL:         {"cl", ClassC, 1},
	DL:         {"dl", ClassD, 1},
	AX:         {"ax", ClassA, 2},
	BX:         {"bx", ClassB, 2},
	CX:         {"cx", ClassC, 2},
	DX:         {"dx", ClassD, 2},
	SI:         {"si", ClassSI, 2},
	DI:         {"di", ClassDI, 2},
	BP:         {"bp", ClassBP, 2},
	SP:         {"sp", ClassSP, 2},
	EAX:        {"eax", ClassA, 4},
	EBX:        {"ebx", ClassB, 4},
	ECX:        {"ecx", ClassC, 4},
	EDX:        {"edx", ClassD, 4},
	ESI:        {"esi", ClassSI, 4},
	EDI:        {"edi", ClassDI, 4},
	EBP:        {"ebp", ClassBP, 4},
	ESP:        {"esp", ClassSP, 4},
	RAX:        {"rax", ClassA, 8},
	RBX:        {"rbx", ClassB, 8},
	RCX:        {"rcx", ClassC, 8},
	RDX:        {"rdx", ClassD, 8},
	RSI:        {"rsi", ClassSI, 8},
	RDI:        {"rdi", ClassDI, 8},
	RBP:        {"rbp", ClassBP, 8},
	RSP:        {"rsp", ClassSP, 8},
}

// classRegisters holds the register of every class and width, indexed by class and log2 of the width.
// NoRegister marks widths a class has no register for, e.g. the low byte of rsi without a REX prefix.
var classRegisters = [numClasses][4]Register{
	ClassA:  {AL, AX, EAX, RAX},
	ClassB:  {BL, BX, EBX, RBX},
	ClassC:  {CL, CX, ECX, RCX},
	ClassD:  {DL, DX, EDX, RDX},
	ClassSI: {NoRegister, SI, ESI, RSI},
	ClassDI: {NoRegister, DI, EDI, RDI},
	ClassBP: {NoRegister, BP, EBP, RBP},
	ClassSP: {NoRegister, SP, ESP, RSP},
}

// hardwareCodes holds the 3-bit register number used in ModR/M bytes per class.
var hardwareCodes = [numClasses]byte{
	ClassA:  0,
	ClassC:  1,
	ClassD:  2,
	ClassB:  3,
	ClassSP: 4,
	ClassBP: 5,
	ClassSI: 6,
	ClassDI: 7,
}

// classNames are the print friendly names of the overlap classes.
var classNames = [numClasses]string{"a", "b", "c", "d", "si", "di", "bp", "sp"}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the assembler name of Register r.
func (r Register) String() string {
	if r < numRegisters {
		return registers[r].name
	}
	return fmt.Sprintf("reg(%d)", r)
}

// Class returns the overlap class of Register r.
func (r Register) Class() Class {
	return registers[r].class
}

// Size returns the width of Register r in bytes.
func (r Register) Size() int {
	return registers[r].size
}

// code returns the 3-bit hardware number of Register r.
func (r Register) code() byte {
	if r == NoRegister {
		return noHardwareCode
	}
	return hardwareCodes[r.Class()]
}

// Overlaps returns true if registers a and b share physical storage.
func Overlaps(a, b Register) bool {
	return a != NoRegister && b != NoRegister && a.Class() == b.Class()
}

// Register returns the register of class c that is size bytes wide, or NoRegister if there is none.
func (c Class) Register(size int) Register {
	switch size {
	case 1:
		return classRegisters[c][0]
	case 2:
		return classRegisters[c][1]
	case 4:
		return classRegisters[c][2]
	case 8:
		return classRegisters[c][3]
	}
	return NoRegister
}

// Holds returns true if class c has a register size bytes wide.
func (c Class) Holds(size int) bool {
	return c.Register(size) != NoRegister
}

// Id returns the index of class c.
func (c Class) Id() int {
	return int(c)
}

// String returns the print friendly name of class c.
func (c Class) String() string {
	if c < numClasses {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", c)
}
