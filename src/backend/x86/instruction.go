package x86

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Instruction is one x86 instruction: an operator, an optional operand width and up to three operands.
type Instruction struct {
	Op       Operator   // Operation.
	Size     int        // Operand width in bytes; zero lets the width be inferred from the operands.
	Operands [3]Operand // Operands, destination first. Unused slots are nil.
	tier     int        // Displacement width of jumps chosen by branch relaxation: 0, 1 or 4 bytes.
}

// -------------------
// ----- Globals -----
// -------------------

// widthKeywords are the assembler keywords of memory operand widths.
var widthKeywords = map[int]string{
	1: "byte",
	2: "word",
	4: "dword",
	8: "qword",
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewInstruction returns an Instruction with the given operands. Additions and subtractions of one are turned
// into increments and decrements.
func NewInstruction(op Operator, size int, operands ...Operand) *Instruction {
	if len(operands) > len(Instruction{}.Operands) {
		fatal("%s: too many operands (%d)", op, len(operands))
	}
	in := &Instruction{Op: op, Size: size}
	copy(in.Operands[:], operands)
	in.peephole()
	return in
}

// peephole rewrites add/sub by plus or minus one into inc/dec.
func (in *Instruction) peephole() {
	if (in.Op != Add && in.Op != Sub) || in.Operands[2] != nil {
		return
	}
	imm, ok := in.Operands[1].(Immediate)
	if !ok {
		return
	}
	switch {
	case (in.Op == Add && imm == 1) || (in.Op == Sub && imm == -1):
		in.Op = Inc
	case (in.Op == Add && imm == -1) || (in.Op == Sub && imm == 1):
		in.Op = Dec
	default:
		return
	}
	in.Operands[1] = nil
}

// Arity returns the number of operands of in.
func (in *Instruction) Arity() int {
	n := 0
	for n < len(in.Operands) && in.Operands[n] != nil {
		n++
	}
	return n
}

// Width returns the operand width of in. An explicit Size takes precedence over the width of register operands,
// except for operators whose width is always that of their register operand. Width aborts generation if the
// width cannot be determined.
func (in *Instruction) Width() int {
	flags := operators[in.Op].flags
	if flags&fNoSize != 0 {
		return 0
	}
	if flags&fRegWidth != 0 {
		for _, e1 := range in.Operands {
			if w := widthOf(e1); w > 0 {
				return w
			}
		}
	}
	if in.Size != 0 {
		return in.Size
	}
	if w := widthOf(in.Operands[0]); w > 0 {
		return w
	}
	if w := widthOf(in.Operands[1]); w > 0 {
		return w
	}
	fatal("cannot infer operand width of %s", in)
	return 0
}

// sourceWidth returns the width of the source operand of the sign and zero extending moves.
func (in *Instruction) sourceWidth() int {
	switch in.Op {
	case MovsxByte, MovzxByte:
		return 1
	case MovsxWord, MovzxWord:
		return 2
	case Movsxd:
		return 4
	}
	return 0
}

// String returns the assembler text of in, with jump targets rendered as @index.
func (in *Instruction) String() string {
	return in.Text(func(i int) string {
		return fmt.Sprintf("@%d", i)
	})
}

// Text returns the assembler text of in. Jump targets are rendered by label.
func (in *Instruction) Text(label func(int) string) string {
	n := in.Arity()
	if n == 0 {
		return in.Op.String()
	}

	// Memory operands need a width keyword unless a register operand or the mnemonic fixes the width.
	keyword := ""
	if operators[in.Op].flags&fNoSize == 0 {
		hasRegister := false
		for _, e1 := range in.Operands[:n] {
			if isRegister(e1) {
				hasRegister = true
			}
		}
		if !hasRegister || in.Op == Shl || in.Op == Shr || in.Op == Sar {
			if !isRegister(in.Operands[0]) {
				keyword = widthKeywords[in.Width()]
			}
		}
	}

	ops := make([]string, n)
	for i1, e1 := range in.Operands[:n] {
		switch v := e1.(type) {
		case Target:
			ops[i1] = label(int(v))
		case Memory:
			switch {
			case i1 == 1 && in.sourceWidth() > 0:
				ops[i1] = widthKeywords[in.sourceWidth()] + " " + v.String()
			case len(keyword) > 0:
				ops[i1] = keyword + " " + v.String()
				keyword = ""
			default:
				ops[i1] = v.String()
			}
		case Label:
			// A 64 bit register takes a sign extended 32 bit address, not a 64 bit immediate.
			ops[i1] = operandString(e1)
			if in.Op != Call && isRegister(in.Operands[0]) && in.Width() == 8 {
				ops[i1] = "dword " + ops[i1]
			}
		default:
			ops[i1] = operandString(e1)
		}
	}
	return fmt.Sprintf("%s\t%s", in.Op.String(), strings.Join(ops, ", "))
}
