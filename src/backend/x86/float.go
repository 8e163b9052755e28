package x86

import (
	"math"

	"ccgen/src/ir"
)

// -------------------
// ----- Globals -----
// -------------------

// pushOps, popOps and topOps map the sorts the x87 reads and writes directly to the instructions doing so.
var (
	pushOps = map[ir.Sort]Operator{
		ir.SignedShort: FildWord,
		ir.SignedInt:   FildDword,
		ir.SignedLong:  FildQword,
		ir.Float:       FldDword,
		ir.Double:      FldQword,
		ir.LongDouble:  FldTword,
	}
	popOps = map[ir.Sort]Operator{
		ir.SignedShort: FistpWord,
		ir.SignedInt:   FistpDword,
		ir.SignedLong:  FistpQword,
		ir.Float:       FstpDword,
		ir.Double:      FstpQword,
		ir.LongDouble:  FstpTword,
	}
	topOps = map[ir.Sort]Operator{
		ir.SignedShort: FistWord,
		ir.SignedInt:   FistDword,
		ir.Float:       FstDword,
		ir.Double:      FstQword,
	}
)

// widened maps the integral sorts the x87 cannot convert directly to the signed sort they are converted through.
// Unsigned long values of 2^63 and above do not survive the conversion.
var widened = map[ir.Sort]ir.Sort{
	ir.SignedChar:    ir.SignedShort,
	ir.UnsignedChar:  ir.SignedShort,
	ir.UnsignedShort: ir.SignedInt,
	ir.UnsignedInt:   ir.SignedLong,
	ir.UnsignedLong:  ir.SignedLong,
	ir.Pointer:       ir.SignedLong,
}

// floatJumps maps relations to the jumps taken on the flags of fcompp; the operands are compared in reverse.
var floatJumps = map[ir.Operator]Operator{
	ir.Equal:        Je,
	ir.NotEqual:     Jne,
	ir.Less:         Ja,
	ir.LessEqual:    Jae,
	ir.Greater:      Jb,
	ir.GreaterEqual: Jbe,
}

// floatArithmetic maps the floating binary operators.
var floatArithmetic = map[ir.Operator]Operator{
	ir.Add: Faddp,
	ir.Sub: Fsubp,
	ir.Mul: Fmulp,
	ir.Div: Fdivp,
}

// ---------------------
// ----- Functions -----
// ---------------------

// floatPushed counts a value pushed on the x87 stack.
func (g *generator) floatPushed() {
	g.floatDepth++
	if g.floatDepth > maxFloatDepth {
		diagnose("floating point expression too complex: more than %d values on the x87 register stack",
			maxFloatDepth)
	}
}

// floatPopped counts n values popped off the x87 stack.
func (g *generator) floatPopped(n int) {
	g.floatDepth -= n
	if g.floatDepth < 0 {
		fatal("x87 register stack underflow")
	}
}

// pushFloat pushes the value of symbol s on the x87 stack, converting integral values.
func (g *generator) pushFloat(s *ir.Symbol) {
	g.floatPushed()
	if s.Constant {
		g.pushConstant(s)
		return
	}
	sort := s.Type.Sort
	wide, ok := widened[sort]
	if !ok && !s.Type.IsFloating() && s.Temporary && !s.IsDereference() {
		wide, ok = sort, true
	}
	if ok {
		// Pass the value through the scratch cell at a width the x87 converts.
		t := g.widen(s, ir.ScalarType(wide).Size())
		scratch := g.scratch()
		g.emit(Mov, 0, scratch, t)
		g.emit(pushOps[wide], 0, scratch)
		return
	}
	op, ok := pushOps[sort]
	if !ok {
		fatal("cannot push %s of type %s", s, s.Type)
	}
	g.emit(op, 0, g.memory(s))
}

// pushConstant pushes the constant s. Zero and one have dedicated instructions; other values pass through the
// scratch cell.
func (g *generator) pushConstant(s *ir.Symbol) {
	v := s.FloatValue
	if s.IsIntConstant() {
		v = float64(s.IntValue)
	}
	switch {
	case v == 0 && !math.Signbit(v):
		g.emit(Fldz, 0)
		return
	case v == 1:
		g.emit(Fld1, 0)
		return
	}
	scratch := g.scratch()
	switch {
	case s.IsIntConstant() && fits(s.IntValue, sImm, 8):
		g.emit(Mov, 8, scratch, Immediate(s.IntValue))
		g.emit(FildQword, 0, scratch)
	case s.Type.Sort == ir.Float:
		g.emit(Mov, 4, scratch, Immediate(math.Float32bits(float32(v))))
		g.emit(FldDword, 0, scratch)
	default:
		t := g.newTrack(nil, 8)
		g.emit(Mov, 0, t, Immediate(int64(math.Float64bits(v))))
		g.emit(Mov, 0, scratch, t)
		g.emit(FldQword, 0, scratch)
	}
}

// popFloat stores the top of the x87 stack into symbol s, converting to integral types by truncation. The value
// is popped if pop is set.
func (g *generator) popFloat(s *ir.Symbol, pop bool) {
	if g.floatDepth < 1 {
		fatal("x87 register stack underflow")
	}
	sort := s.Type.Sort
	direct := !s.Temporary || s.IsDereference()
	_, stored := popOps[sort]
	switch {
	case s.Type.IsFloating():
		if !direct {
			fatal("floating temporary %s has no storage", s)
		}
		g.storeFloat(sort, g.memory(s), pop)
	case direct && stored && s.Type.IsSigned():
		g.storeFloat(sort, g.memory(s), pop)
	default:
		// Convert through the scratch cell at a width holding every value of the sort, then load the low part.
		wide := sort
		if w, ok := widened[sort]; ok {
			wide = w
		}
		scratch := g.scratch()
		g.storeFloat(wide, scratch, pop)
		t := g.newTrack(s, trackSize(s))
		g.emit(Mov, 0, t, scratch)
		g.result(s, t)
	}
	if pop {
		g.floatPopped(1)
	}
}

// storeFloat writes the top of the x87 stack to dst as the given sort, popping it if pop is set. Sorts without a
// non-popping store are popped and reloaded.
func (g *generator) storeFloat(sort ir.Sort, dst Memory, pop bool) {
	if pop {
		g.emit(popOps[sort], 0, dst)
		return
	}
	if op, ok := topOps[sort]; ok {
		g.emit(op, 0, dst)
		return
	}
	g.emit(popOps[sort], 0, dst)
	g.emit(pushOps[sort], 0, dst)
}

// floatBinary lowers floating arithmetic on the two topmost values of the x87 stack.
func (g *generator) floatBinary(in *ir.Instruction) {
	op, ok := floatArithmetic[in.Op]
	if !ok {
		fatal("operator %s on floating operands", in.Op)
	}
	if g.floatDepth < 2 {
		fatal("x87 register stack underflow")
	}
	g.emit(op, 0)
	g.floatPopped(1)
}

// floatRelation lowers a conditional jump comparing the two topmost values of the x87 stack. The status word is
// moved to the flags through ax.
func (g *generator) floatRelation(in *ir.Instruction) {
	if g.floatDepth < 2 {
		fatal("x87 register stack underflow")
	}
	g.emit(Fcompp, 0)
	g.floatPopped(2)
	a := g.fixedTrack(AX)
	g.emit(Fstsw, 0, a)
	g.emit(Sahf, 0)
	g.implicit(a)
	g.emit(floatJumps[in.Op], 0, Target(in.Target(0)))
}

// scratch returns the scratch cell used for x87 conversions.
func (g *generator) scratch() Memory {
	g.reference(ScratchCell)
	return Memory{Name: ScratchCell}
}

// widen returns a Track holding the value of the integral symbol s sign or zero extended to size bytes.
func (g *generator) widen(s *ir.Symbol, size int) *Track {
	from := trackSize(s)
	switch {
	case from == size:
		return g.load(s, NoRegister)
	case from > size:
		fatal("cannot widen %s from %d to %d byte(s)", s, from, size)
	case from == 4 && !s.Type.IsSigned():
		// Writing a 32 bit register clears the upper half.
		n := g.newTrack(nil, size)
		low := g.newTrack(nil, 4)
		Twin(n, low)
		g.emit(Mov, 0, low, g.registerOrMemory(s))
		return n
	}
	n := g.newTrack(nil, size)
	g.emit(extension(from, s.Type.IsSigned()), 0, n, g.registerOrMemory(s))
	return n
}
