package x86

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Operator is an x86 operation. Operators whose operand width is not visible from their operands carry the
// width in their name, e.g. FildDword.
type Operator uint8

// opInfo describes one Operator.
type opInfo struct {
	name  string // Assembler mnemonic, including the memory width keyword where the operator fixes it.
	flags opFlag // Properties of the operator.
	cc    byte   // Condition code of conditional jumps.
}

// opFlag is a set of Operator properties.
type opFlag uint16

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Mov Operator = iota
	MovsxByte
	MovsxWord
	Movsxd
	MovzxByte
	MovzxWord
	Lea
	Add
	Sub
	Inc
	Dec
	Neg
	Not
	And
	Or
	Xor
	Shl
	Shr
	Sar
	Cmp
	Imul
	Idiv
	Div
	Jmp
	Je
	Jne
	Jl
	Jle
	Jg
	Jge
	Jb
	Jbe
	Ja
	Jae
	Call
	ReturnAddress
	Syscall
	Sahf
	Fldz
	Fld1
	FildWord
	FildDword
	FildQword
	FldDword
	FldQword
	FldTword
	FstDword
	FstQword
	FstpDword
	FstpQword
	FstpTword
	FistWord
	FistDword
	FistpWord
	FistpDword
	FistpQword
	Faddp
	Fsubp
	Fmulp
	Fdivp
	Fchs
	Fcompp
	Fstsw
	FstpST0
	Fnstcw
	Fldcw
	numOperators
)

const (
	fJump        opFlag = 1 << iota // Transfers control to a Target or a register.
	fConditional                    // Conditional jump.
	fFloat                          // x87 instruction; takes no operand size prefix.
	fNoSize                         // Operand size is irrelevant.
	fDefines                        // Writes operand 0 without reading it.
	fRegWidth                       // Operand width is the width of the register operand.
)

// -------------------
// ----- Globals -----
// -------------------

// operators describes every Operator. The table is read only.
var operators = [numOperators]opInfo{
	Mov:           {"mov", fDefines, 0},
	MovsxByte:     {"movsx", fDefines, 0},
	MovsxWord:     {"movsx", fDefines, 0},
	Movsxd:        {"movsxd", fDefines, 0},
	MovzxByte:     {"movzx", fDefines, 0},
	MovzxWord:     {"movzx", fDefines, 0},
	Lea:           {"lea", fDefines, 0},
	Add:           {"add", 0, 0},
	Sub:           {"sub", 0, 0},
	Inc:           {"inc", 0, 0},
	Dec:           {"dec", 0, 0},
	Neg:           {"neg", fRegWidth, 0},
	Not:           {"not", fRegWidth, 0},
	And:           {"and", 0, 0},
	Or:            {"or", 0, 0},
	Xor:           {"xor", 0, 0},
	Shl:           {"shl", 0, 0},
	Shr:           {"shr", 0, 0},
	Sar:           {"sar", 0, 0},
	Cmp:           {"cmp", 0, 0},
	Imul:          {"imul", fRegWidth, 0},
	Idiv:          {"idiv", fRegWidth, 0},
	Div:           {"div", fRegWidth, 0},
	Jmp:           {"jmp", fJump | fNoSize, 0},
	Je:            {"je", fJump | fConditional | fNoSize, 0x4},
	Jne:           {"jne", fJump | fConditional | fNoSize, 0x5},
	Jl:            {"jl", fJump | fConditional | fNoSize, 0xC},
	Jle:           {"jle", fJump | fConditional | fNoSize, 0xE},
	Jg:            {"jg", fJump | fConditional | fNoSize, 0xF},
	Jge:           {"jge", fJump | fConditional | fNoSize, 0xD},
	Jb:            {"jb", fJump | fConditional | fNoSize, 0x2},
	Jbe:           {"jbe", fJump | fConditional | fNoSize, 0x6},
	Ja:            {"ja", fJump | fConditional | fNoSize, 0x7},
	Jae:           {"jae", fJump | fConditional | fNoSize, 0x3},
	Call:          {"jmp", fNoSize, 0},
	ReturnAddress: {"mov", 0, 0},
	Syscall:       {"syscall", fNoSize, 0},
	Sahf:          {"sahf", fNoSize, 0},
	Fldz:          {"fldz", fFloat | fNoSize, 0},
	Fld1:          {"fld1", fFloat | fNoSize, 0},
	FildWord:      {"fild word", fFloat | fNoSize, 0},
	FildDword:     {"fild dword", fFloat | fNoSize, 0},
	FildQword:     {"fild qword", fFloat | fNoSize, 0},
	FldDword:      {"fld dword", fFloat | fNoSize, 0},
	FldQword:      {"fld qword", fFloat | fNoSize, 0},
	FldTword:      {"fld tword", fFloat | fNoSize, 0},
	FstDword:      {"fst dword", fFloat | fNoSize, 0},
	FstQword:      {"fst qword", fFloat | fNoSize, 0},
	FstpDword:     {"fstp dword", fFloat | fNoSize, 0},
	FstpQword:     {"fstp qword", fFloat | fNoSize, 0},
	FstpTword:     {"fstp tword", fFloat | fNoSize, 0},
	FistWord:      {"fist word", fFloat | fNoSize, 0},
	FistDword:     {"fist dword", fFloat | fNoSize, 0},
	FistpWord:     {"fistp word", fFloat | fNoSize, 0},
	FistpDword:    {"fistp dword", fFloat | fNoSize, 0},
	FistpQword:    {"fistp qword", fFloat | fNoSize, 0},
	Faddp:         {"faddp", fFloat | fNoSize, 0},
	Fsubp:         {"fsubp", fFloat | fNoSize, 0},
	Fmulp:         {"fmulp", fFloat | fNoSize, 0},
	Fdivp:         {"fdivp", fFloat | fNoSize, 0},
	Fchs:          {"fchs", fFloat | fNoSize, 0},
	Fcompp:        {"fcompp", fFloat | fNoSize, 0},
	Fstsw:         {"fstsw", fFloat | fNoSize | fDefines, 0},
	FstpST0:       {"fstp st0", fFloat | fNoSize, 0},
	Fnstcw:        {"fnstcw word", fFloat | fNoSize, 0},
	Fldcw:         {"fldcw word", fFloat | fNoSize, 0},
}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the assembler mnemonic of Operator op.
func (op Operator) String() string {
	if op < numOperators {
		return operators[op].name
	}
	return fmt.Sprintf("op(%d)", op)
}

// IsJump returns true if op transfers control.
func (op Operator) IsJump() bool {
	return operators[op].flags&fJump != 0
}

// IsConditional returns true if op is a conditional jump.
func (op Operator) IsConditional() bool {
	return operators[op].flags&fConditional != 0
}

// IsFloat returns true for x87 instructions.
func (op Operator) IsFloat() bool {
	return operators[op].flags&fFloat != 0
}

// defines returns true if op overwrites operand 0 without reading it.
func (op Operator) defines() bool {
	return operators[op].flags&fDefines != 0
}
