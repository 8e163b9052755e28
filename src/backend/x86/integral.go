package x86

import "ccgen/src/ir"

// -------------------
// ----- Globals -----
// -------------------

// arithmetic maps the middle code operators lowered to a single two operand instruction.
var arithmetic = map[ir.Operator]Operator{
	ir.Add: Add,
	ir.Sub: Sub,
	ir.And: And,
	ir.Or:  Or,
	ir.Xor: Xor,
}

// signedJumps and unsignedJumps map relations to conditional jumps.
var (
	signedJumps = map[ir.Operator]Operator{
		ir.Equal:        Je,
		ir.NotEqual:     Jne,
		ir.Less:         Jl,
		ir.LessEqual:    Jle,
		ir.Greater:      Jg,
		ir.GreaterEqual: Jge,
	}
	unsignedJumps = map[ir.Operator]Operator{
		ir.Equal:        Je,
		ir.NotEqual:     Jne,
		ir.Less:         Jb,
		ir.LessEqual:    Jbe,
		ir.Greater:      Ja,
		ir.GreaterEqual: Jae,
	}
	// swapped holds the relation obtained by exchanging the operands.
	swapped = map[ir.Operator]ir.Operator{
		ir.Equal:        ir.Equal,
		ir.NotEqual:     ir.NotEqual,
		ir.Less:         ir.Greater,
		ir.LessEqual:    ir.GreaterEqual,
		ir.Greater:      ir.Less,
		ir.GreaterEqual: ir.LessEqual,
	}
)

// ---------------------
// ----- Functions -----
// ---------------------

// assign lowers result = value.
func (g *generator) assign(in *ir.Instruction) {
	res, v := in.Symbol(0), in.Symbol(1)
	switch {
	case res.Type.IsFloating():
		g.pushFloat(v)
		g.popFloat(res, true)
	case res.Type.IsStructOrUnion():
		g.copyBlock(g.memory(res), v, res.Type.Size())
	default:
		if imm, ok := immediate(v, res.Type.Size()); ok && !res.Temporary {
			g.emit(Mov, res.Type.Size(), g.memory(res), imm)
			return
		}
		g.result(res, g.load(v, NoRegister))
	}
}

// copyBlock copies size bytes from the aggregate v to dst, eight bytes at a time where possible.
func (g *generator) copyBlock(dst Memory, v *ir.Symbol, size int) {
	g.copyFrom(dst, g.load(v, NoRegister), size)
}

// copyFrom copies size bytes from the address held by src to dst.
func (g *generator) copyFrom(dst Memory, src *Track, size int) {
	src.pointer = true
	if base, ok := dst.Base.(*Track); ok && base == src {
		fatal("block copy of %s onto itself", src)
	}
	for off := 0; off < size; {
		w := 8
		for w > size-off {
			w /= 2
		}
		t := g.newTrack(nil, w)
		g.emit(Mov, 0, t, Memory{Base: src, Disp: off})
		g.emit(Mov, 0, Memory{Base: dst.Base, Name: dst.Name, Disp: dst.Disp + off}, t)
		off += w
	}
}

// binary lowers the binary arithmetic operators.
func (g *generator) binary(in *ir.Instruction) {
	res, l, r := in.Symbol(0), in.Symbol(1), in.Symbol(2)
	if res == nil || res.Type.IsFloating() {
		g.floatBinary(in)
		return
	}
	switch in.Op {
	case ir.Mul:
		g.multiply(res, l, r)
		return
	case ir.Div, ir.Mod:
		g.divide(in.Op, res, l, r)
		return
	case ir.ShiftLeft, ir.ShiftRight:
		g.shift(in.Op, res, l, r)
		return
	}
	op := arithmetic[in.Op]

	// Operate on memory when the result overwrites the left operand in place.
	if res == l && !res.Temporary && res.Type.IsIntegralOrPointer() {
		var src Operand
		if imm, ok := immediate(r, res.Type.Size()); ok {
			src = imm
		} else {
			src = g.load(r, NoRegister)
		}
		g.emit(op, res.Type.Size(), g.memory(res), src)
		return
	}
	t := g.load(l, NoRegister)
	g.emit(op, 0, t, g.operand(r))
	g.result(res, t)
}

// multiply lowers result = l * r with the two and three operand forms of imul.
func (g *generator) multiply(res, l, r *ir.Symbol) {
	if l.IsIntConstant() && !r.IsIntConstant() {
		l, r = r, l
	}
	if imm, ok := immediate(r, res.Type.Size()); ok {
		src := g.registerOrMemory(l)
		t := g.newTrack(res, res.Type.Size())
		g.emit(Imul, 0, t, src, imm)
		g.result(res, t)
		return
	}
	t := g.load(l, NoRegister)
	g.emit(Imul, 0, t, g.registerOrMemory(r))
	g.result(res, t)
}

// divide lowers result = l / r and result = l % r. The dividend is held in the a class, its sign or zero
// extension in the d class; the quotient is left in a and the remainder in d.
func (g *generator) divide(op ir.Operator, res, l, r *ir.Symbol) {
	size := l.Type.Size()
	if size < 2 {
		fatal("division of %d byte operands", size)
	}
	a := g.load(l, ClassA.Register(size))
	d := g.fixedTrack(ClassD.Register(size))
	if l.Type.IsSigned() {
		g.emit(Mov, 0, d, a)
		g.emit(Sar, 0, d, Immediate(size*8-1))
	} else {
		g.emit(Xor, 0, d, d)
	}
	divisor := g.registerOrMemory(r)
	if l.Type.IsSigned() {
		g.emit(Idiv, size, divisor)
	} else {
		g.emit(Div, size, divisor)
	}
	g.implicit(a)
	g.implicit(d)
	if op == ir.Div {
		g.result(res, a)
	} else {
		g.result(res, d)
	}
}

// shift lowers result = l << r and result = l >> r. Variable counts are held in cl.
func (g *generator) shift(op ir.Operator, res, l, r *ir.Symbol) {
	var sop Operator
	switch {
	case op == ir.ShiftLeft:
		sop = Shl
	case l.Type.IsSigned():
		sop = Sar
	default:
		sop = Shr
	}
	if res == l && !res.Temporary && r.IsIntConstant() {
		g.emit(sop, res.Type.Size(), g.memory(res), Immediate(r.IntValue&63))
		return
	}
	t := g.load(l, NoRegister)
	if r.IsIntConstant() {
		g.emit(sop, 0, t, Immediate(r.IntValue&63))
	} else {
		c := g.load(r, ClassC.Register(trackSize(r)))
		g.emit(sop, 0, t, CL)
		g.implicit(c)
	}
	g.result(res, t)
}

// unary lowers negation, bitwise complement and unary plus.
func (g *generator) unary(in *ir.Instruction) {
	res, v := in.Symbol(0), in.Symbol(1)
	if res == nil || res.Type.IsFloating() {
		g.emit(Fchs, 0)
		return
	}
	if in.Op == ir.Plus {
		g.result(res, g.load(v, NoRegister))
		return
	}
	op := Neg
	if in.Op == ir.Not {
		op = Not
	}
	if res == v && !res.Temporary {
		g.emit(op, res.Type.Size(), g.memory(res))
		return
	}
	t := g.load(v, NoRegister)
	g.emit(op, 0, t)
	g.result(res, t)
}

// address lowers result = &symbol.
func (g *generator) address(in *ir.Instruction) {
	res, s := in.Symbol(0), in.Symbol(1)
	t := g.newTrack(res, pointerSize)
	g.loadAddress(t, s)
	g.result(res, t)
}

// deref binds the dereferenced symbol to the Track holding the pointer.
func (g *generator) deref(in *ir.Instruction) {
	res := in.Symbol(0)
	if !res.IsDereference() {
		fatal("deref result %s does not denote a dereferenced location", res)
	}
	g.addressTrack(res)
}

// intToInt lowers conversions between integral types. Narrowing shares the register of the wider value.
func (g *generator) intToInt(in *ir.Instruction) {
	res, v := in.Symbol(0), in.Symbol(1)
	from, to := v.Type.Size(), res.Type.Size()
	switch {
	case v.IsIntConstant():
		g.result(res, g.load(ir.NewIntConstant(truncate(v.IntValue, res.Type), res.Type), NoRegister))
	case from == to:
		g.result(res, g.load(v, NoRegister))
	case to < from && g.memoryOperand(v) != nil:
		// Little endian: the low part is stored at the address of the value.
		n := g.newTrack(res, to)
		g.emit(Mov, 0, n, g.memory(v))
		g.result(res, n)
	case to < from:
		t := g.load(v, NoRegister)
		n := g.newTrack(res, to)
		Twin(t, n)
		g.result(res, n)
	default:
		g.result(res, g.widen(v, to))
	}
}

// extension returns the sign or zero extending move from a source of the given width.
func extension(from int, signed bool) Operator {
	switch {
	case from == 1 && signed:
		return MovsxByte
	case from == 1:
		return MovzxByte
	case from == 2 && signed:
		return MovsxWord
	case from == 2:
		return MovzxWord
	case from == 4 && signed:
		return Movsxd
	}
	fatal("no extension from %d byte(s)", from)
	return Mov
}

// truncate returns v converted to the integral Type t.
func truncate(v int64, t *ir.Type) int64 {
	switch t.Sort {
	case ir.SignedChar:
		return int64(int8(v))
	case ir.UnsignedChar:
		return int64(uint8(v))
	case ir.SignedShort:
		return int64(int16(v))
	case ir.UnsignedShort:
		return int64(uint16(v))
	case ir.SignedInt:
		return int64(int32(v))
	case ir.UnsignedInt:
		return int64(uint32(v))
	}
	return v
}

// relation lowers conditional jumps on integral and floating operands.
func (g *generator) relation(in *ir.Instruction) {
	op, l, r := in.Op, in.Symbol(1), in.Symbol(2)
	if l == nil || l.Type.IsFloating() {
		g.floatRelation(in)
		return
	}
	if l.IsIntConstant() && !r.IsIntConstant() {
		l, r = r, l
		op = swapped[op]
	}
	jumps := signedJumps
	if l.Type.IsUnsigned() {
		jumps = unsignedJumps
	}
	if imm, ok := immediate(r, l.Type.Size()); ok {
		if m := g.memoryOperand(l); m != nil {
			g.emit(Cmp, l.Type.Size(), m, imm)
		} else {
			g.emit(Cmp, 0, g.load(l, NoRegister), imm)
		}
	} else {
		t := g.load(l, NoRegister)
		g.emit(Cmp, 0, t, g.operand(r))
	}
	g.emit(jumps[op], 0, Target(in.Target(0)))
}

// switchCase lowers one case of a switch: the switch value stays alive in its Track until case_end.
func (g *generator) switchCase(in *ir.Instruction) {
	s, v := in.Symbol(1), in.Symbol(2)
	t := g.load(s, NoRegister)
	g.live[s] = t
	t.symbol = s
	g.emit(Cmp, 0, t, g.operand(v))
	g.emit(Je, 0, Target(in.Target(0)))
}

// caseEnd ends the case sequence of a switch.
func (g *generator) caseEnd(in *ir.Instruction) {
	delete(g.live, in.Symbol(0))
}
