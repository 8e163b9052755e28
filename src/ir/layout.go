package ir

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Layout answers size and alignment queries for the target's data layout.
type Layout interface {
	SizeOf(t *Type) int  // Allocation size of a value of type t, including tail padding.
	AlignOf(t *Type) int // ABI alignment of type t.
}

// NaturalLayout is the x86-64 System V data layout computed without any external library: scalars are aligned
// to their size, long double to 16, aggregates to their strictest member.
type NaturalLayout struct{}

// ---------------------
// ----- Functions -----
// ---------------------

// SizeOf returns the allocation size of Type t.
func (l NaturalLayout) SizeOf(t *Type) int {
	switch t.Sort {
	case Array:
		return t.Count * l.SizeOf(t.Elem)
	case Struct, Union:
		if !t.arranged {
			l.arrange(t)
		}
		return t.size
	case LongDouble:
		return 16
	}
	return scalarSizes[t.Sort]
}

// AlignOf returns the alignment of Type t.
func (l NaturalLayout) AlignOf(t *Type) int {
	switch t.Sort {
	case Array:
		return l.AlignOf(t.Elem)
	case Struct, Union:
		a := 1
		for _, e1 := range t.Members {
			if b := l.AlignOf(e1); b > a {
				a = b
			}
		}
		return a
	case LongDouble:
		return 16
	case Void:
		return 1
	}
	return scalarSizes[t.Sort]
}

// arrange computes and stores the size and member offsets of the aggregate Type t.
func (l NaturalLayout) arrange(t *Type) {
	ArrangeAggregate(l, t)
}

// ArrangeAggregate computes the member offsets and size of the struct or union t using Layout l and stores them
// in t. Members are placed at their alignment, struct members in order, union members at offset zero.
func ArrangeAggregate(l Layout, t *Type) {
	offsets := make([]int, len(t.Members))
	size, align := 0, 1
	for i1, e1 := range t.Members {
		a := l.AlignOf(e1)
		if a > align {
			align = a
		}
		s := l.SizeOf(e1)
		if t.Sort == Union {
			if s > size {
				size = s
			}
			continue
		}
		size = alignUp(size, a)
		offsets[i1] = size
		size += s
	}
	t.SetLayout(alignUp(size, align), offsets)
}

// Arrange assigns the size of every aggregate type reachable from the module and the frame offset of every
// parameter and local variable, using Layout l. Parameters follow the activation record header in declaration
// order; locals follow the parameters. Types reached only through instruction operands, such as those of
// temporaries, are arranged too, so that generation never assigns a layout. Arrange must run before code
// generation.
func (m *Module) Arrange(l Layout) {
	seen := make(map[*Type]bool)
	for _, e1 := range m.Statics {
		arrangeType(l, e1.Type, seen)
	}
	for _, e1 := range m.Externs {
		arrangeType(l, e1.Type, seen)
	}
	for _, e1 := range m.Functions {
		arrangeType(l, e1.Symbol.Type, seen)
		for i2 := range e1.Code {
			for _, e3 := range e1.Code[i2].Operands {
				switch o := e3.(type) {
				case *Symbol:
					arrangeType(l, o.Type, seen)
					if o.AddressSymbol != nil {
						arrangeType(l, o.AddressSymbol.Type, seen)
					}
				case SymbolSet:
					for _, e4 := range o {
						arrangeType(l, e4.Type, seen)
					}
				}
			}
		}

		offset := FunctionHeaderSize
		for _, e2 := range e1.Params {
			arrangeType(l, e2.Type, seen)
			offset = alignUp(offset, l.AlignOf(e2.Type))
			e2.Offset = offset
			offset += l.SizeOf(e2.Type)
		}
		for _, e2 := range e1.Locals {
			arrangeType(l, e2.Type, seen)
			offset = alignUp(offset, l.AlignOf(e2.Type))
			e2.Offset = offset
			offset += l.SizeOf(e2.Type)
		}
		e1.FrameSize = alignUp(offset, PointerSize)
	}
}

// arrangeType arranges t and every aggregate it is composed of.
func arrangeType(l Layout, t *Type, seen map[*Type]bool) {
	if t == nil || seen[t] {
		return
	}
	seen[t] = true
	arrangeType(l, t.Elem, seen)
	for _, e1 := range t.Members {
		arrangeType(l, e1, seen)
	}
	if t.IsStructOrUnion() {
		ArrangeAggregate(l, t)
	}
}

// alignUp rounds n up to the nearest multiple of a.
func alignUp(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}
