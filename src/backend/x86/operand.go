package x86

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Operand is an operand of an x86 Instruction: *Track, Register, Immediate, Memory, Label or Target.
type Operand interface {
	isOperand()
}

// Immediate is a constant operand.
type Immediate int64

// Memory addresses Base + Name + Disp. Base is nil, a Register or a *Track; Name is the link time address of
// a static symbol, or empty.
type Memory struct {
	Base Operand // Base register or Track, or nil for absolute addresses.
	Name string  // Static symbol added to the address, or empty.
	Disp int     // Constant displacement.
}

// Label is the link time address of a static symbol or a function, plus Offset.
type Label struct {
	Name   string // Symbol name.
	Offset int    // Byte offset added to the address.
}

// Target is the index of a jump destination. Before linking it indexes the middle code of the function, after
// linking it indexes the generated instructions. ReturnAddress targets always index generated instructions.
type Target int

// ---------------------
// ----- Functions -----
// ---------------------

func (*Track) isOperand()    {}
func (Register) isOperand()  {}
func (Immediate) isOperand() {}
func (Memory) isOperand()    {}
func (Label) isOperand()     {}
func (Target) isOperand()    {}

// String returns the assembler syntax of Memory m, without the width keyword.
func (m Memory) String() string {
	sb := strings.Builder{}
	sb.WriteRune('[')
	terms := 0
	if m.Base != nil {
		sb.WriteString(operandString(m.Base))
		terms++
	}
	if len(m.Name) > 0 {
		if terms > 0 {
			sb.WriteString(" + ")
		}
		sb.WriteString(m.Name)
		terms++
	}
	switch {
	case terms == 0:
		sb.WriteString(fmt.Sprintf("%d", m.Disp))
	case m.Disp > 0:
		sb.WriteString(fmt.Sprintf(" + %d", m.Disp))
	case m.Disp < 0:
		sb.WriteString(fmt.Sprintf(" - %d", -m.Disp))
	}
	sb.WriteRune(']')
	return sb.String()
}

// String returns the assembler syntax of Label l.
func (l Label) String() string {
	switch {
	case l.Offset > 0:
		return fmt.Sprintf("%s + %d", l.Name, l.Offset)
	case l.Offset < 0:
		return fmt.Sprintf("%s - %d", l.Name, -l.Offset)
	}
	return l.Name
}

// operandString returns the assembler syntax of register, immediate, memory and label operands. Targets are
// rendered by the caller, which knows the label names.
func operandString(o Operand) string {
	switch v := o.(type) {
	case *Track:
		return v.String()
	case Register:
		return v.String()
	case Immediate:
		return fmt.Sprintf("%d", int64(v))
	case Memory:
		return v.String()
	case Label:
		return v.String()
	case Target:
		return fmt.Sprintf("@%d", int(v))
	}
	return "?"
}

// registerOf returns the register held by a Register or allocated *Track operand, or NoRegister.
func registerOf(o Operand) Register {
	switch v := o.(type) {
	case Register:
		return v
	case *Track:
		return v.Register()
	}
	return NoRegister
}

// widthOf returns the width in bytes of a Register or *Track operand, or zero.
func widthOf(o Operand) int {
	switch v := o.(type) {
	case Register:
		return v.Size()
	case *Track:
		return v.Size()
	}
	return 0
}

// isRegister returns true for Register and *Track operands.
func isRegister(o Operand) bool {
	switch o.(type) {
	case Register, *Track:
		return true
	}
	return false
}
