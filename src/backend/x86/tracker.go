package x86

import "ccgen/src/ir"

// ---------------------
// ----- Functions -----
// ---------------------

// load returns a Track holding the value of symbol s. A temporary alive in a Track is removed from the live map
// and its Track returned; other symbols are loaded into a new Track. If wanted is not NoRegister the returned
// Track is bound to the class of wanted, and values alive in that class are evicted first. An unbound live Track
// is bound in place when nothing else refers to the class of wanted since its first reference; otherwise the
// value is copied.
func (g *generator) load(s *ir.Symbol, wanted Register) *Track {
	if t, ok := g.live[s]; ok {
		delete(g.live, s)
		if wanted == NoRegister || (t.Bound() && t.Class() == wanted.Class()) {
			return t
		}
		g.checkRegister(s, wanted)
		if !t.Bound() && !t.HasTwins() && len(t.sites) > 0 && g.unclaimed(t, wanted.Class(), t.sites[0].Index) {
			t.Bind(wanted.Class())
			return t
		}
		// Rebind: copy the value into a track of the wanted class.
		n := g.newTrack(s, t.Size())
		n.pointer = t.pointer
		n.Bind(wanted.Class())
		g.emit(Mov, 0, n, t)
		return n
	}
	if s.Temporary && !s.IsDereference() {
		fatal("temporary %s is not alive", s)
	}
	t := g.newTrack(s, trackSize(s))
	if wanted != NoRegister {
		g.checkRegister(s, wanted)
		t.Bind(wanted.Class())
	}
	g.materialize(t, s)
	return t
}

// materialize emits the instruction loading the value of symbol s into Track t. Arrays, functions and
// aggregates are represented by their address.
func (g *generator) materialize(t *Track, s *ir.Symbol) {
	switch {
	case s.IsIntConstant():
		g.emit(Mov, 0, t, Immediate(s.IntValue))
	case s.Type.IsArray() || s.Type.IsFunction() || s.Type.IsStructOrUnion():
		g.loadAddress(t, s)
	default:
		g.emit(Mov, 0, t, g.memory(s))
	}
}

// loadAddress emits the instruction loading the address of symbol s into Track t.
func (g *generator) loadAddress(t *Track, s *ir.Symbol) {
	t.pointer = true
	switch {
	case s.IsStaticOrExtern():
		g.reference(s.Name)
		g.emit(Mov, pointerSize, t, Label{Name: s.Name})
	case s.IsDereference() && s.AddressOffset == 0:
		g.emit(Mov, 0, t, g.addressTrack(s))
	default:
		g.emit(Lea, 0, t, g.memory(s))
	}
}

// store emits the instruction storing Track t into the memory location of symbol s.
func (g *generator) store(t *Track, s *ir.Symbol) {
	g.emit(Mov, 0, g.memory(s), t)
}

// result makes Track t the value of symbol s. Temporaries enter the live map; a temporary that is already alive,
// as at the join of a conditional expression, is twinned with t so both share one register. Other symbols are
// stored to memory.
func (g *generator) result(s *ir.Symbol, t *Track) {
	if s.Temporary && !s.IsDereference() {
		if old, ok := g.live[s]; ok {
			Twin(old, t)
		}
		t.symbol = s
		g.live[s] = t
		return
	}
	g.store(t, s)
}

// memory returns the memory operand addressing symbol s.
func (g *generator) memory(s *ir.Symbol) Memory {
	switch {
	case s.IsDereference():
		return Memory{Base: g.addressTrack(s), Disp: s.AddressOffset}
	case s.Temporary:
		fatal("temporary %s has no memory location", s)
	case s.IsStaticOrExtern():
		g.reference(s.Name)
		return Memory{Name: s.Name}
	case s.IsAutoOrParam():
		return Memory{Base: g.frameBase(s), Disp: s.Offset}
	}
	fatal("symbol %s has no memory location", s)
	return Memory{}
}

// addressTrack returns the Track holding the address of the dereferenced symbol s, loading the pointer on first
// use.
func (g *generator) addressTrack(s *ir.Symbol) *Track {
	if t, ok := g.addresses[s]; ok {
		return t
	}
	t := g.load(s.AddressSymbol, NoRegister)
	t.pointer = true
	g.addresses[s] = t
	g.addrOrder = append(g.addrOrder, s)
	return t
}

// frameBase returns the register addressing symbol s. Parameters are addressed through the frame register; the
// locals of variadic functions through the ellipse register.
func (g *generator) frameBase(s *ir.Symbol) Register {
	if s.Storage == ir.Param {
		return FrameRegister
	}
	return g.localBase()
}

// localBase returns the register addressing locals and the activation records of calls.
func (g *generator) localBase() Register {
	if g.fn.IsVariadic() {
		return EllipseRegister
	}
	return FrameRegister
}

// operand returns an operand for the value of symbol s: an immediate for small constants, the memory location of
// addressable scalars, else a Track.
func (g *generator) operand(s *ir.Symbol) Operand {
	if imm, ok := immediate(s, s.Type.Size()); ok {
		return imm
	}
	if o := g.memoryOperand(s); o != nil {
		return o
	}
	return g.load(s, NoRegister)
}

// memoryOperand returns the memory location of symbol s if s is an addressable scalar that is not alive in a
// Track, else nil.
func (g *generator) memoryOperand(s *ir.Symbol) Operand {
	if s.Constant || !s.Type.IsIntegralOrPointer() {
		return nil
	}
	if _, ok := g.live[s]; ok {
		return nil
	}
	if s.IsDereference() || (!s.Temporary && (s.IsStaticOrExtern() || s.IsAutoOrParam())) {
		return g.memory(s)
	}
	return nil
}

// registerOrMemory returns the value of symbol s as a Track or memory operand, never an immediate.
func (g *generator) registerOrMemory(s *ir.Symbol) Operand {
	if o := g.memoryOperand(s); o != nil {
		return o
	}
	return g.load(s, NoRegister)
}

// checkRegister evicts every live Track, other than the one of symbol s, that occupies a register overlapping r.
func (g *generator) checkRegister(s *ir.Symbol, r Register) {
	for _, e1 := range g.sortedLive() {
		if e1.symbol != s && Overlaps(e1.Register(), r) {
			g.live[e1.symbol] = g.evict(e1)
		}
	}
	for _, e1 := range g.addrOrder {
		if t := g.addresses[e1]; Overlaps(t.Register(), r) {
			g.addresses[e1] = g.evict(t)
		}
	}
}

// unclaimed returns true if no instruction from index from on refers to register class c, through a register
// operand or a Track other than t bound to c.
func (g *generator) unclaimed(t *Track, c Class, from int) bool {
	for _, e1 := range g.code.Tracks {
		if e1 == t || !e1.Bound() || e1.Class() != c {
			continue
		}
		for _, e2 := range e1.sites {
			if e2.Index >= from {
				return false
			}
		}
	}
	for _, e1 := range g.code.Instructions[from:] {
		for _, e2 := range e1.Operands {
			switch v := e2.(type) {
			case Register:
				if v.Class() == c {
					return false
				}
			case Memory:
				if r, ok := v.Base.(Register); ok && r.Class() == c {
					return false
				}
			}
		}
	}
	return true
}

// evict moves the value of Track t to a new unbound Track and returns it. If t has no twins and all its
// references from its last definition on are explicit operands, the definition and the references are rewritten
// to the new Track; otherwise a copy is emitted.
func (g *generator) evict(t *Track) *Track {
	g.code.Evictions++
	n := g.newTrack(t.symbol, t.size)
	n.pointer = t.pointer

	def := -1
	for i1, e1 := range t.sites {
		if e1.Slot == 0 && !e1.Base && g.code.Instructions[e1.Index].Op.defines() {
			def = i1
		}
	}
	rewrite := def >= 0 && !t.HasTwins()
	if rewrite {
		for _, e1 := range t.sites[def:] {
			if e1.Slot < 0 {
				rewrite = false
				break
			}
		}
	}
	if !rewrite {
		g.emit(Mov, 0, n, t)
		return n
	}
	for _, e1 := range t.sites[def:] {
		in := g.code.Instructions[e1.Index]
		if e1.Base {
			m := in.Operands[e1.Slot].(Memory)
			m.Base = n
			in.Operands[e1.Slot] = m
		} else {
			in.Operands[e1.Slot] = n
		}
		n.addSite(e1)
	}
	t.sites = t.sites[:def]
	return n
}

// immediate returns the value of symbol s if s is a constant encodable as an immediate operand of the given
// width.
func immediate(s *ir.Symbol, width int) (Immediate, bool) {
	if s.IsIntConstant() && fits(s.IntValue, sImm, width) && fits(s.IntValue, sImm, 8) {
		return Immediate(s.IntValue), true
	}
	return 0, false
}

// trackSize returns the width of a Track holding the value of symbol s.
func trackSize(s *ir.Symbol) int {
	if s.Type.IsIntegralOrPointer() {
		return s.Type.Size()
	}
	return pointerSize
}
