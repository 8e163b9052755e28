package x86

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// shape classifies an operand for opcode selection.
type shape uint8

// key selects the encoding of an instruction: operator, operand width and operand shapes.
type key struct {
	op     Operator
	width  int
	shapes [3]shape
}

// form describes how an instruction is assembled.
type form struct {
	opcode    []byte   // Opcode bytes.
	digit     int      // ModR/M reg field of /digit forms, or -1 for /r forms.
	plusReg   bool     // Register code of operand 0 is added to the last opcode byte.
	rm        int      // Operand slot encoded in the ModR/M r/m field, or -1 if there is no ModR/M byte.
	reg       int      // Operand slot encoded in the ModR/M reg field of /r forms, or -1.
	imm       int      // Operand slot of the trailing immediate or displacement, or -1.
	immSize   int      // Size of the trailing field in bytes.
	fixed     Register // Register an implicit operand must hold, e.g. cl for shift counts.
	fixedSlot int      // Operand slot of the implicit register operand, or -1.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	sNone  shape = iota
	sReg         // Register or Track.
	sMem         // Memory.
	sImm8        // Immediate encoded in one sign extended byte.
	sImm         // Immediate encoded in min(width, 4) bytes.
	sImm64       // Immediate encoded in eight bytes.
	sLabel       // Link time address of a static symbol, four bytes.
	sRet         // Return address, four bytes.
	sCall        // Call target, four byte relative displacement.
	sRel8        // Jump target, one byte displacement.
	sRel32       // Jump target, four byte displacement.
	sCL          // Shift count held in cl.
)

// Prefixes.
const (
	operandSizePrefix byte = 0x66
	rexW              byte = 0x48
)

// -------------------
// ----- Globals -----
// -------------------

// table holds the encoding of every supported instruction. It is built once and read only thereafter.
var table = buildTable()

// ---------------------
// ----- Functions -----
// ---------------------

// lookup returns the form of key k.
func lookup(k key) (*form, bool) {
	f, ok := table[k]
	return f, ok
}

// buildTable builds the opcode table.
func buildTable() map[key]*form {
	t := make(map[key]*form, 512)
	add := func(op Operator, width int, shapes []shape, f form) {
		k := key{op: op, width: width}
		copy(k.shapes[:], shapes)
		if _, ok := t[k]; ok {
			panic("duplicate opcode table entry for " + op.String())
		}
		ff := f
		t[k] = &ff
	}
	modrm := func(opcode []byte, digit, rm, reg, imm, immSize int) form {
		return form{opcode: opcode, digit: digit, rm: rm, reg: reg, imm: imm, immSize: immSize, fixedSlot: -1}
	}
	fixed := func(opcode ...byte) form {
		return form{opcode: opcode, digit: -1, rm: -1, reg: -1, imm: -1, fixedSlot: -1}
	}
	immSize := func(width int) int {
		if width > 4 {
			return 4
		}
		return width
	}
	rms := []shape{sReg, sMem}
	widths := []int{1, 2, 4, 8}

	// Two operand arithmetic: add, or, and, sub, xor and cmp.
	arith := []struct {
		op   Operator
		ext  int
		base byte
	}{
		{Add, 0, 0x00},
		{Or, 1, 0x08},
		{And, 4, 0x20},
		{Sub, 5, 0x28},
		{Xor, 6, 0x30},
		{Cmp, 7, 0x38},
	}
	for _, e1 := range arith {
		for _, w := range widths {
			wide := byte(0)
			if w > 1 {
				wide = 1
			}
			for _, rm := range rms {
				add(e1.op, w, []shape{rm, sReg}, modrm([]byte{e1.base + wide}, -1, 0, 1, -1, 0))
				if w == 1 {
					add(e1.op, w, []shape{rm, sImm8}, modrm([]byte{0x80}, e1.ext, 0, -1, 1, 1))
					add(e1.op, w, []shape{rm, sImm}, modrm([]byte{0x80}, e1.ext, 0, -1, 1, 1))
				} else {
					add(e1.op, w, []shape{rm, sImm8}, modrm([]byte{0x83}, e1.ext, 0, -1, 1, 1))
					add(e1.op, w, []shape{rm, sImm}, modrm([]byte{0x81}, e1.ext, 0, -1, 1, immSize(w)))
				}
			}
			add(e1.op, w, []shape{sReg, sMem}, modrm([]byte{e1.base + 2 + wide}, -1, 1, 0, -1, 0))
		}
	}

	// Moves.
	for _, w := range widths {
		if w == 1 {
			for _, rm := range rms {
				add(Mov, w, []shape{rm, sReg}, modrm([]byte{0x88}, -1, 0, 1, -1, 0))
				add(Mov, w, []shape{rm, sImm8}, modrm([]byte{0xC6}, 0, 0, -1, 1, 1))
				add(Mov, w, []shape{rm, sImm}, modrm([]byte{0xC6}, 0, 0, -1, 1, 1))
			}
			add(Mov, w, []shape{sReg, sMem}, modrm([]byte{0x8A}, -1, 1, 0, -1, 0))
			continue
		}
		for _, rm := range rms {
			add(Mov, w, []shape{rm, sReg}, modrm([]byte{0x89}, -1, 0, 1, -1, 0))
			add(Mov, w, []shape{rm, sImm8}, modrm([]byte{0xC7}, 0, 0, -1, 1, immSize(w)))
			add(Mov, w, []shape{rm, sImm}, modrm([]byte{0xC7}, 0, 0, -1, 1, immSize(w)))
		}
		add(Mov, w, []shape{sReg, sMem}, modrm([]byte{0x8B}, -1, 1, 0, -1, 0))
	}
	movabs := fixed(0xB8)
	movabs.plusReg, movabs.imm, movabs.immSize = true, 1, 8
	add(Mov, 8, []shape{sReg, sImm64}, movabs)
	for _, rm := range rms {
		add(Mov, 8, []shape{rm, sLabel}, modrm([]byte{0xC7}, 0, 0, -1, 1, 4))
		add(ReturnAddress, 8, []shape{rm, sRet}, modrm([]byte{0xC7}, 0, 0, -1, 1, 4))
	}

	// Address computation and extending moves.
	add(Lea, 4, []shape{sReg, sMem}, modrm([]byte{0x8D}, -1, 1, 0, -1, 0))
	add(Lea, 8, []shape{sReg, sMem}, modrm([]byte{0x8D}, -1, 1, 0, -1, 0))
	for _, rm := range rms {
		for _, w := range []int{2, 4, 8} {
			add(MovzxByte, w, []shape{sReg, rm}, modrm([]byte{0x0F, 0xB6}, -1, 1, 0, -1, 0))
			add(MovsxByte, w, []shape{sReg, rm}, modrm([]byte{0x0F, 0xBE}, -1, 1, 0, -1, 0))
		}
		for _, w := range []int{4, 8} {
			add(MovzxWord, w, []shape{sReg, rm}, modrm([]byte{0x0F, 0xB7}, -1, 1, 0, -1, 0))
			add(MovsxWord, w, []shape{sReg, rm}, modrm([]byte{0x0F, 0xBF}, -1, 1, 0, -1, 0))
		}
		add(Movsxd, 8, []shape{sReg, rm}, modrm([]byte{0x63}, -1, 1, 0, -1, 0))
	}

	// One operand arithmetic.
	unary := []struct {
		op  Operator
		ext int
	}{
		{Inc, 0},
		{Dec, 1},
		{Not, 2},
		{Neg, 3},
		{Div, 6},
		{Idiv, 7},
	}
	for _, e1 := range unary {
		for _, w := range widths {
			opcode := byte(0xF6)
			if e1.op == Inc || e1.op == Dec {
				opcode = 0xFE
			}
			if w > 1 {
				opcode++
			}
			for _, rm := range rms {
				add(e1.op, w, []shape{rm}, modrm([]byte{opcode}, e1.ext, 0, -1, -1, 0))
			}
		}
	}

	// Signed multiplication.
	for _, w := range []int{2, 4, 8} {
		for _, rm := range rms {
			add(Imul, w, []shape{sReg, rm}, modrm([]byte{0x0F, 0xAF}, -1, 1, 0, -1, 0))
			add(Imul, w, []shape{sReg, rm, sImm8}, modrm([]byte{0x6B}, -1, 1, 0, 2, 1))
			add(Imul, w, []shape{sReg, rm, sImm}, modrm([]byte{0x69}, -1, 1, 0, 2, immSize(w)))
		}
	}

	// Shifts.
	shifts := []struct {
		op  Operator
		ext int
	}{
		{Shl, 4},
		{Shr, 5},
		{Sar, 7},
	}
	for _, e1 := range shifts {
		for _, w := range widths {
			byImm, byCL := byte(0xC0), byte(0xD2)
			if w > 1 {
				byImm, byCL = 0xC1, 0xD3
			}
			for _, rm := range rms {
				add(e1.op, w, []shape{rm, sImm8}, modrm([]byte{byImm}, e1.ext, 0, -1, 1, 1))
				f := modrm([]byte{byCL}, e1.ext, 0, -1, -1, 0)
				f.fixed, f.fixedSlot = CL, 1
				add(e1.op, w, []shape{rm, sCL}, f)
			}
		}
	}

	// Jumps.
	add(Jmp, 0, []shape{sRel8}, form{opcode: []byte{0xEB}, digit: -1, rm: -1, reg: -1, imm: 0, immSize: 1, fixedSlot: -1})
	add(Jmp, 0, []shape{sRel32}, form{opcode: []byte{0xE9}, digit: -1, rm: -1, reg: -1, imm: 0, immSize: 4, fixedSlot: -1})
	add(Jmp, 0, []shape{sReg}, modrm([]byte{0xFF}, 4, 0, -1, -1, 0))
	add(Call, 0, []shape{sCall}, form{opcode: []byte{0xE9}, digit: -1, rm: -1, reg: -1, imm: 0, immSize: 4, fixedSlot: -1})
	for op := Je; op <= Jae; op++ {
		cc := operators[op].cc
		add(op, 0, []shape{sRel8}, form{opcode: []byte{0x70 + cc}, digit: -1, rm: -1, reg: -1, imm: 0, immSize: 1, fixedSlot: -1})
		add(op, 0, []shape{sRel32}, form{opcode: []byte{0x0F, 0x80 + cc}, digit: -1, rm: -1, reg: -1, imm: 0, immSize: 4, fixedSlot: -1})
	}

	// System and flag instructions.
	add(Syscall, 0, nil, fixed(0x0F, 0x05))
	add(Sahf, 0, nil, fixed(0x9E))

	// x87 register stack.
	add(Fldz, 0, nil, fixed(0xD9, 0xEE))
	add(Fld1, 0, nil, fixed(0xD9, 0xE8))
	add(Faddp, 0, nil, fixed(0xDE, 0xC1))
	add(Fsubp, 0, nil, fixed(0xDE, 0xE9))
	add(Fmulp, 0, nil, fixed(0xDE, 0xC9))
	add(Fdivp, 0, nil, fixed(0xDE, 0xF9))
	add(Fchs, 0, nil, fixed(0xD9, 0xE0))
	add(Fcompp, 0, nil, fixed(0xDE, 0xD9))
	add(FstpST0, 0, nil, fixed(0xDD, 0xD8))
	fstsw := fixed(0x9B, 0xDF, 0xE0)
	fstsw.fixed, fstsw.fixedSlot = AX, 0
	add(Fstsw, 0, []shape{sReg}, fstsw)
	x87 := []struct {
		op     Operator
		opcode byte
		ext    int
	}{
		{FildWord, 0xDF, 0},
		{FildDword, 0xDB, 0},
		{FildQword, 0xDF, 5},
		{FldDword, 0xD9, 0},
		{FldQword, 0xDD, 0},
		{FldTword, 0xDB, 5},
		{FstDword, 0xD9, 2},
		{FstQword, 0xDD, 2},
		{FstpDword, 0xD9, 3},
		{FstpQword, 0xDD, 3},
		{FstpTword, 0xDB, 7},
		{FistWord, 0xDF, 2},
		{FistDword, 0xDB, 2},
		{FistpWord, 0xDF, 3},
		{FistpDword, 0xDB, 3},
		{FistpQword, 0xDF, 7},
		{Fnstcw, 0xD9, 7},
		{Fldcw, 0xD9, 5},
	}
	for _, e1 := range x87 {
		add(e1.op, 0, []shape{sMem}, modrm([]byte{e1.opcode}, e1.ext, 0, -1, -1, 0))
	}
	return t
}
