package x86

import "ccgen/src/ir"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// record is the activation record of a call being set up. Records are pushed by precall and popped by postcall,
// so nested calls in argument lists see the records of their enclosing calls.
type record struct {
	declared  int                   // Record offset given by the middle code.
	size      int                   // Offset of the callee's frame relative to the local base.
	spilled   int                   // Bytes of spills in this and every enclosing record.
	live      map[*ir.Symbol]*Track // Live map of the caller, restored by postcall.
	restore   []spill               // Live tracks saved in the record.
	addresses []spill               // Address tracks saved in the record.
	floats    []int                 // Offsets of x87 values saved in the record, top of stack first.
}

// spill is a value saved in an activation record.
type spill struct {
	symbol *ir.Symbol // Symbol the value belongs to.
	track  *Track     // Track the value was saved from.
	offset int        // Offset relative to the local base.
}

// ---------------------
// ----- Constants -----
// ---------------------

// floatSlot is the record space of a saved x87 value, stored with full precision.
const floatSlot = 16

// ---------------------
// ----- Functions -----
// ---------------------

// preCall opens the activation record of a call. Every live Track, every address Track still needed and every
// value on the x87 stack is saved in the record, and argument evaluation starts with an empty live map.
func (g *generator) preCall(in *ir.Instruction) {
	alive := in.Set(1)
	if len(alive) != len(g.live) {
		fatal("%d temporaries alive across call, middle code lists %d", len(g.live), len(alive))
	}
	for _, e1 := range alive {
		if _, ok := g.live[e1]; !ok {
			fatal("temporary %s listed alive across call is not alive", e1)
		}
	}
	if in.Int(2) != g.floatDepth {
		fatal("x87 stack depth %d at call, middle code expects %d", g.floatDepth, in.Int(2))
	}

	outer := 0
	if r, ok := g.records.Peek(); ok {
		outer = r.spilled
	}
	rec := &record{declared: in.Int(0), live: g.live}
	base := g.localBase()
	start := in.Int(0) + outer
	off := start

	for _, e1 := range g.sortedLive() {
		g.emit(Mov, 0, Memory{Base: base, Disp: off}, e1)
		rec.restore = append(rec.restore, spill{symbol: e1.symbol, track: e1, offset: off})
		off += pointerSize
	}
	for _, e1 := range g.addrOrder {
		if g.lastUse[e1] <= g.index {
			continue
		}
		t := g.addresses[e1]
		g.emit(Mov, 0, Memory{Base: base, Disp: off}, t)
		rec.addresses = append(rec.addresses, spill{symbol: e1, track: t, offset: off})
		off += pointerSize
	}
	for g.floatDepth > 0 {
		g.emit(FstpTword, 0, Memory{Base: base, Disp: off})
		g.floatPopped(1)
		rec.floats = append(rec.floats, off)
		off += floatSlot
	}

	rec.size = off
	rec.spilled = outer + off - start
	g.records.Push(rec)
	g.live = make(map[*ir.Symbol]*Track)
}

// parameter copies an argument into the activation record of the innermost call. Floating arguments are taken
// from the top of the x87 stack.
func (g *generator) parameter(in *ir.Instruction) {
	rec := g.record()
	v := in.Symbol(1)
	base := g.localBase()
	dst := Memory{Base: base, Disp: rec.size + in.Int(0)}
	switch {
	case v.Type.IsFloating():
		if g.floatDepth < 1 {
			fatal("floating argument %s is not on the x87 stack", v)
		}
		g.storeFloat(v.Type.Sort, dst, true)
		g.floatPopped(1)
	case v.Type.IsStructOrUnion():
		g.copyBlock(dst, v, v.Type.Size())
	case v.IsIntConstant():
		if imm, ok := immediate(v, v.Type.Size()); ok {
			g.emit(Mov, v.Type.Size(), dst, imm)
			return
		}
		g.emit(Mov, 0, dst, g.load(v, NoRegister))
	case v.IsStaticOrExtern() && (v.Type.IsArray() || v.Type.IsFunction()):
		g.reference(v.Name)
		g.emit(Mov, pointerSize, dst, Label{Name: v.Name})
	case v.IsAutoOrParam() && v.Type.IsArray():
		g.emit(Mov, 0, dst, g.frameBase(v))
		g.emit(Add, pointerSize, dst, Immediate(v.Offset))
	default:
		g.emit(Mov, 0, dst, g.load(v, NoRegister))
	}
}

// call transfers control to the callee. The return address and the caller's frame are stored in the record
// header and the frame register is advanced to the record. Variadic callees address their locals through the
// ellipse register, which is advanced past the extra arguments. Returns are jumps, so calls are jumps too.
func (g *generator) call(in *ir.Instruction) {
	rec := g.record()
	if in.Int(0) != rec.declared {
		fatal("call record offset %d does not match precall offset %d", in.Int(0), rec.declared)
	}
	callee := in.Symbol(1)
	direct := callee.IsStaticOrExtern() && callee.Type.IsFunction()

	// The address of an indirect callee is read before the frame register moves.
	var target *Track
	if !direct {
		target = g.load(callee, NoRegister)
		target.pointer = true
	}

	base := g.localBase()
	ra := g.emit(ReturnAddress, pointerSize, Memory{Base: base, Disp: rec.size + ir.ReturnAddressOffset}, Target(0))
	g.emit(Mov, 0, Memory{Base: base, Disp: rec.size + ir.RegularFrameOffset}, FrameRegister)
	if g.fn.IsVariadic() {
		g.emit(Mov, 0, Memory{Base: base, Disp: rec.size + ir.VariadicFrameOffset}, EllipseRegister)
		g.emit(Mov, 0, FrameRegister, EllipseRegister)
	}
	g.emit(Add, 0, FrameRegister, Immediate(rec.size))

	var ellipse *Track
	if callee.Type.IsVariadic() {
		ellipse = g.fixedTrack(EllipseRegister)
		g.emit(Mov, 0, ellipse, FrameRegister)
		if extra := in.Int(2); extra != 0 {
			g.emit(Add, 0, ellipse, Immediate(extra))
		}
	}

	if direct {
		g.reference(callee.Name)
		g.emit(Call, 0, Label{Name: callee.Name})
	} else {
		g.emit(Jmp, 0, target)
	}
	if ellipse != nil {
		g.implicit(ellipse)
	}
	ra.Operands[1] = Target(len(g.code.Instructions))
	g.dropAddresses(rec)
}

// dropAddresses forgets the address Tracks loaded since the precall of rec, as the callee overwrites every
// register. An address through a variable is loaded again on its next use; an address through a temporary
// pointer cannot be, and must not be needed after the call.
func (g *generator) dropAddresses(rec *record) {
	saved := make(map[*ir.Symbol]bool, len(rec.addresses))
	for _, e1 := range rec.addresses {
		saved[e1.symbol] = true
	}
	kept := g.addrOrder[:0]
	for _, e1 := range g.addrOrder {
		if saved[e1] {
			kept = append(kept, e1)
			continue
		}
		if p := e1.AddressSymbol; g.lastUse[e1] > g.index && p.Temporary && !p.IsDereference() {
			fatal("address of %s loaded in the arguments of a call is needed after the call", e1)
		}
		delete(g.addresses, e1)
	}
	g.addrOrder = kept
}

// postCall closes the activation record of the innermost call: the caller's live map is restored, the return
// value is taken from the return register or the x87 stack and the saved values are reloaded.
func (g *generator) postCall(in *ir.Instruction) {
	rec, ok := g.records.Pop()
	if !ok {
		fatal("postcall without precall")
	}
	if len(g.live) > 0 {
		fatal("%d temporaries alive at end of call", len(g.live))
	}
	g.live = rec.live
	res := in.Symbol(0)

	// The return register is read before any reload may reuse it.
	var ret *Track
	if res != nil && !res.Type.IsFloating() {
		size := trackSize(res)
		ret = g.newTrack(res, size)
		ret.pointer = res.Type.IsPointer() || res.Type.IsStructOrUnion()
		g.emit(Mov, 0, ret, ReturnValueClass.Register(size))
	}

	base := g.localBase()
	for _, e1 := range rec.restore {
		n := g.newTrack(e1.symbol, e1.track.size)
		n.pointer = e1.track.pointer
		g.emit(Mov, 0, n, Memory{Base: base, Disp: e1.offset})
		g.live[e1.symbol] = n
	}
	for _, e1 := range rec.addresses {
		if g.lastUse[e1.symbol] <= g.index {
			continue
		}
		n := g.newTrack(nil, pointerSize)
		n.pointer = true
		g.emit(Mov, 0, n, Memory{Base: base, Disp: e1.offset})
		if _, ok := g.addresses[e1.symbol]; !ok {
			g.addrOrder = append(g.addrOrder, e1.symbol)
		}
		g.addresses[e1.symbol] = n
	}

	floating := res != nil && res.Type.IsFloating()
	if floating {
		g.floatPushed()
		if len(rec.floats) > 0 {
			g.emit(FstpTword, 0, g.scratch())
			g.floatPopped(1)
		}
	}
	for i1 := len(rec.floats) - 1; i1 >= 0; i1-- {
		g.floatPushed()
		g.emit(FldTword, 0, Memory{Base: base, Disp: rec.floats[i1]})
	}
	if floating && len(rec.floats) > 0 {
		g.floatPushed()
		g.emit(FldTword, 0, g.scratch())
	}

	if ret == nil {
		return
	}
	if res.Type.IsStructOrUnion() && !res.Temporary {
		g.copyFrom(g.memory(res), ret, res.Type.Size())
		return
	}
	g.result(res, ret)
}

// setReturn makes v the return value of the function. Integral values and the addresses of aggregates are
// returned in the return register, floating values on the x87 stack.
func (g *generator) setReturn(in *ir.Instruction) {
	v := in.Symbol(0)
	if v.Type.IsFloating() {
		g.pushFloat(v)
		return
	}
	g.returnTrack = g.load(v, ReturnValueClass.Register(trackSize(v)))
}

// ret returns to the caller: the return address is read from the frame, the caller's ellipse and frame
// registers are restored and control jumps back. Returning from main exits the program.
func (g *generator) ret() {
	switch {
	case g.fn.ReturnType().IsFloating() && g.floatDepth == 1:
		g.floatPopped(1)
	case g.floatDepth != 0:
		fatal("%d value(s) left on the x87 stack at return", g.floatDepth)
	}
	if g.fn.IsMain() {
		g.exit()
		g.returnTrack = nil
		return
	}
	a := g.fixedTrack(ReturnAddressClass.Register(pointerSize))
	g.emit(Mov, 0, a, Memory{Base: FrameRegister, Disp: ir.ReturnAddressOffset})
	g.emit(Mov, 0, EllipseRegister, Memory{Base: FrameRegister, Disp: ir.VariadicFrameOffset})
	g.emit(Mov, 0, FrameRegister, Memory{Base: FrameRegister, Disp: ir.RegularFrameOffset})
	g.emit(Jmp, 0, a)
	if g.returnTrack != nil {
		g.implicit(g.returnTrack)
		g.returnTrack = nil
	}
}

// record returns the activation record of the innermost call.
func (g *generator) record() *record {
	r, ok := g.records.Peek()
	if !ok {
		fatal("%s outside of a call sequence", g.fn.Code[g.index].Op)
	}
	return r
}
