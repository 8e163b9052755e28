package ir

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Operator identifies the operation of a middle code Instruction.
type Operator uint8

// Operand is an operand of a middle code Instruction: *Symbol, Int, Target, Name or SymbolSet.
type Operand interface {
	operand()
}

// Int is an integer operand, e.g. a record size or an offset.
type Int int

// Target is the index of the instruction a jump transfers control to.
type Target int

// Name is a name operand, e.g. the name of a system call.
type Name string

// SymbolSet is a set of symbols, e.g. the integral values alive across a call.
type SymbolSet []*Symbol

// Instruction is one three-address middle code instruction. Instructions are immutable once produced.
//
// Operand layout per operator:
//
//	assign            result, value
//	add sub mul div mod and or xor shl shr
//	                  result, left, right
//	neg not plus      result, operand
//	address           result, symbol
//	deref             result, pointer, Int offset
//	int_to_int int_to_float float_to_int
//	                  result, operand
//	eq ne lt le gt ge Target, left, right
//	goto              Target
//	case              Target, switch symbol, constant
//	case_end          switch symbol
//	push_float pop_float top_float
//	                  symbol
//	precall           Int record size, SymbolSet alive integrals, Int float stack depth
//	parameter         Int offset, value
//	call              Int record size, callee, Int extra (variadic) size
//	postcall          result (optional)
//	set_return        value
//	sys_init          Name
//	sys_param         Name, Int index, value
//	sys_call          Name, result (optional)
//
// Floating arithmetic and relations operate on the x87 stack; their symbol operands only carry the type.
type Instruction struct {
	Op       Operator   // Operation.
	Operands [3]Operand // Up to three operands.
	Line     int        // Line in the middle code listing, used for diagnostics. Zero if unknown.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Empty Operator = iota
	Assign
	Add
	Sub
	Mul
	Div
	Mod
	And
	Or
	Xor
	ShiftLeft
	ShiftRight
	Neg
	Not
	Plus
	Address
	Deref
	IntToInt
	IntToFloat
	FloatToInt
	Equal
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	Goto
	Case
	CaseEnd
	PushFloat
	PopFloat
	TopFloat
	PopEmpty
	PreCall
	Parameter
	Call
	PostCall
	SetReturn
	Return
	SysInit
	SysParam
	SysCall
	FuncEnd
	numOperators
)

// -------------------
// ----- Globals -----
// -------------------

// opNames provides the middle code spelling of every Operator.
var opNames = [numOperators]string{
	Empty:        "empty",
	Assign:       "assign",
	Add:          "add",
	Sub:          "sub",
	Mul:          "mul",
	Div:          "div",
	Mod:          "mod",
	And:          "and",
	Or:           "or",
	Xor:          "xor",
	ShiftLeft:    "shl",
	ShiftRight:   "shr",
	Neg:          "neg",
	Not:          "not",
	Plus:         "plus",
	Address:      "address",
	Deref:        "deref",
	IntToInt:     "int_to_int",
	IntToFloat:   "int_to_float",
	FloatToInt:   "float_to_int",
	Equal:        "eq",
	NotEqual:     "ne",
	Less:         "lt",
	LessEqual:    "le",
	Greater:      "gt",
	GreaterEqual: "ge",
	Goto:         "goto",
	Case:         "case",
	CaseEnd:      "case_end",
	PushFloat:    "push_float",
	PopFloat:     "pop_float",
	TopFloat:     "top_float",
	PopEmpty:     "pop_empty",
	PreCall:      "precall",
	Parameter:    "parameter",
	Call:         "call",
	PostCall:     "postcall",
	SetReturn:    "set_return",
	Return:       "return",
	SysInit:      "sys_init",
	SysParam:     "sys_param",
	SysCall:      "sys_call",
	FuncEnd:      "func_end",
}

// ---------------------
// ----- Functions -----
// ---------------------

func (*Symbol) operand()   {}
func (Int) operand()       {}
func (Target) operand()    {}
func (Name) operand()      {}
func (SymbolSet) operand() {}

// LookupOperator returns the Operator spelled s.
func LookupOperator(s string) (Operator, bool) {
	for i1, e1 := range opNames {
		if e1 == s {
			return Operator(i1), true
		}
	}
	return Empty, false
}

// String returns the middle code spelling of Operator op.
func (op Operator) String() string {
	if op < numOperators {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", op)
}

// IsBinary returns true for the binary arithmetic operators.
func (op Operator) IsBinary() bool {
	return op >= Add && op <= ShiftRight
}

// IsUnary returns true for the unary arithmetic operators.
func (op Operator) IsUnary() bool {
	return op == Neg || op == Not || op == Plus
}

// IsRelation returns true for the conditional jump operators.
func (op Operator) IsRelation() bool {
	return op >= Equal && op <= GreaterEqual
}

// IsJump returns true if the first operand of op is a jump Target.
func (op Operator) IsJump() bool {
	return op.IsRelation() || op == Goto || op == Case
}

// Symbol returns operand i as a *Symbol, or nil.
func (in *Instruction) Symbol(i int) *Symbol {
	s, _ := in.Operands[i].(*Symbol)
	return s
}

// Int returns operand i as an integer, or zero.
func (in *Instruction) Int(i int) int {
	v, _ := in.Operands[i].(Int)
	return int(v)
}

// Target returns operand i as a jump target, or -1.
func (in *Instruction) Target(i int) int {
	if t, ok := in.Operands[i].(Target); ok {
		return int(t)
	}
	return -1
}

// Name returns operand i as a name, or the empty string.
func (in *Instruction) Name(i int) string {
	n, _ := in.Operands[i].(Name)
	return string(n)
}

// Set returns operand i as a SymbolSet, or nil.
func (in *Instruction) Set(i int) SymbolSet {
	s, _ := in.Operands[i].(SymbolSet)
	return s
}

// String returns the middle code listing line of Instruction in.
func (in *Instruction) String() string {
	last := -1
	for i1, e1 := range in.Operands {
		if e1 != nil {
			last = i1
		}
	}
	sb := strings.Builder{}
	sb.WriteString(in.Op.String())
	for i1 := 0; i1 <= last; i1++ {
		if i1 == 0 {
			sb.WriteRune(' ')
		} else {
			sb.WriteString(", ")
		}
		if in.Operands[i1] == nil {
			sb.WriteRune('_')
		} else {
			sb.WriteString(operandString(in.Operands[i1]))
		}
	}
	return sb.String()
}

// operandString returns the middle code spelling of a single Operand.
func operandString(o Operand) string {
	switch v := o.(type) {
	case *Symbol:
		return v.String()
	case Int:
		return fmt.Sprintf("%d", int(v))
	case Target:
		return fmt.Sprintf("@%d", int(v))
	case Name:
		return string(v)
	case SymbolSet:
		sb := strings.Builder{}
		sb.WriteRune('{')
		for i1, e1 := range v {
			if i1 > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e1.String())
		}
		sb.WriteRune('}')
		return sb.String()
	}
	return "?"
}
