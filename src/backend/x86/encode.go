package x86

import "math"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// RelocKind differentiates the fields of machine code the linker must complete.
type RelocKind uint8

// Relocation marks a four byte field of an encoded instruction.
type Relocation struct {
	Kind   RelocKind // What the field refers to.
	Offset int       // Byte offset of the field within the instruction.
	Name   string    // Referenced symbol, empty for return addresses.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	RelocAccess RelocKind = iota // Field holds an offset added to the address of a static symbol.
	RelocCall                    // Field holds the displacement to a function.
	RelocReturn                  // Field holds a return address, patched by Code.Binary.
)

// ModR/M and SIB constants.
const (
	modIndirect   byte = 0
	modDisp8      byte = 1
	modDisp32     byte = 2
	modRegister   byte = 3
	rmSIB         byte = 4
	sibNoIndex    byte = 0x24 // Scale 1, no index, base rsp.
	sibAbsolute   byte = 0x25 // Scale 1, no index, no base: absolute disp32.
	codeStack     byte = 4    // Hardware number of rsp.
	codeFrame     byte = 5    // Hardware number of rbp.
	maxInstrBytes      = 16
)

// ---------------------
// ----- Functions -----
// ---------------------

// Encode returns the machine code of Instruction in and the relocations within it. Jump displacements and
// return addresses are left zero. Encode aborts generation if in has no encoding or refers to an unallocated
// Track.
func Encode(in *Instruction) ([]byte, []Relocation) {
	width := in.Width()
	f := in.form(width)
	buf := make([]byte, 0, maxInstrBytes)
	var relocs []Relocation

	if f.fixedSlot >= 0 && registerOf(in.Operands[f.fixedSlot]) != f.fixed {
		fatal("%s: operand %d must be %s", in, f.fixedSlot, f.fixed)
	}
	if width == 2 {
		buf = append(buf, operandSizePrefix)
	}
	if width == 8 {
		buf = append(buf, rexW)
	}
	buf = append(buf, f.opcode...)
	if f.plusReg {
		buf[len(buf)-1] += registerCode(in.Operands[0])
	}

	if f.rm >= 0 {
		var reg byte
		if f.digit >= 0 {
			reg = byte(f.digit)
		} else {
			reg = registerCode(in.Operands[f.reg])
		}
		switch v := in.Operands[f.rm].(type) {
		case Memory:
			buf, relocs = appendMemory(buf, relocs, v, reg)
		default:
			buf = append(buf, modRegister<<6|reg<<3|registerCode(v))
		}
	}

	if f.imm >= 0 {
		pos := len(buf)
		switch v := in.Operands[f.imm].(type) {
		case Immediate:
			buf = appendValue(buf, int64(v), f.immSize)
		case Label:
			if in.Op == Call {
				relocs = append(relocs, Relocation{Kind: RelocCall, Offset: pos, Name: v.Name})
				buf = appendValue(buf, 0, f.immSize)
			} else {
				relocs = append(relocs, Relocation{Kind: RelocAccess, Offset: pos, Name: v.Name})
				buf = appendValue(buf, int64(v.Offset), f.immSize)
			}
		case Target:
			if in.Op == ReturnAddress {
				relocs = append(relocs, Relocation{Kind: RelocReturn, Offset: pos})
			}
			buf = appendValue(buf, 0, f.immSize)
		default:
			fatal("%s: unexpected operand %d", in, f.imm)
		}
	}
	return buf, relocs
}

// form returns the encoding form of in. Immediates use the shortest form the table provides.
func (in *Instruction) form(width int) *form {
	k := key{op: in.Op, width: width}
	immSlot := -1
	for i1, e1 := range in.Operands {
		k.shapes[i1] = in.shapeOf(i1, e1)
		if _, ok := e1.(Immediate); ok {
			immSlot = i1
		}
	}
	if immSlot < 0 {
		if f, ok := lookup(k); ok {
			return f
		}
		fatal("no encoding for %s", in)
	}
	v := int64(in.Operands[immSlot].(Immediate))
	for _, e1 := range []shape{sImm8, sImm, sImm64} {
		if !fits(v, e1, width) {
			continue
		}
		k.shapes[immSlot] = e1
		if f, ok := lookup(k); ok {
			return f
		}
	}
	fatal("no encoding for %s", in)
	return nil
}

// shapeOf classifies operand o in slot i of in.
func (in *Instruction) shapeOf(i int, o Operand) shape {
	switch v := o.(type) {
	case nil:
		return sNone
	case *Track, Register:
		if i == 1 && (in.Op == Shl || in.Op == Shr || in.Op == Sar) {
			return sCL
		}
		return sReg
	case Memory:
		return sMem
	case Label:
		if in.Op == Call {
			return sCall
		}
		return sLabel
	case Target:
		if in.Op == ReturnAddress {
			return sRet
		}
		if in.tier == tierShort {
			return sRel8
		}
		return sRel32
	case Immediate:
		return sImm
	default:
		fatal("unknown operand %v", v)
	}
	return sNone
}

// fits returns true if v can be encoded as an immediate of shape s for an operation of the given width.
func fits(v int64, s shape, width int) bool {
	switch s {
	case sImm8:
		return v >= math.MinInt8 && v <= math.MaxInt8
	case sImm:
		switch width {
		case 1:
			return v >= math.MinInt8 && v <= math.MaxUint8
		case 2:
			return v >= math.MinInt16 && v <= math.MaxUint16
		case 4:
			return v >= math.MinInt32 && v <= math.MaxUint32
		}
		return v >= math.MinInt32 && v <= math.MaxInt32
	case sImm64:
		return width == 8
	}
	return false
}

// registerCode returns the hardware number of a Register or allocated Track operand.
func registerCode(o Operand) byte {
	r := registerOf(o)
	if r == NoRegister {
		fatal("operand %s is not an allocated register", operandString(o))
	}
	return r.code()
}

// appendMemory appends the ModR/M byte, SIB byte and displacement addressing Memory m, with reg in the ModR/M
// reg field.
func appendMemory(buf []byte, relocs []Relocation, m Memory, reg byte) ([]byte, []Relocation) {
	if m.Base == nil {
		buf = append(buf, modIndirect<<6|reg<<3|rmSIB, sibAbsolute)
		if len(m.Name) > 0 {
			relocs = append(relocs, Relocation{Kind: RelocAccess, Offset: len(buf), Name: m.Name})
		}
		return appendValue(buf, int64(m.Disp), 4), relocs
	}
	base := registerOf(m.Base)
	if base == NoRegister || base.Size() != 8 {
		fatal("memory base %s is not an allocated 64 bit register", operandString(m.Base))
	}
	b := base.code()
	mod, size := modDisp32, 4
	switch {
	case len(m.Name) > 0:
	case m.Disp == 0 && b != codeFrame:
		mod, size = modIndirect, 0
	case m.Disp >= math.MinInt8 && m.Disp <= math.MaxInt8:
		mod, size = modDisp8, 1
	}
	buf = append(buf, mod<<6|reg<<3|b)
	if b == codeStack {
		buf = append(buf, sibNoIndex)
	}
	if len(m.Name) > 0 {
		relocs = append(relocs, Relocation{Kind: RelocAccess, Offset: len(buf), Name: m.Name})
	}
	if size > 0 {
		buf = appendValue(buf, int64(m.Disp), size)
	}
	return buf, relocs
}

// appendValue appends v little endian in size bytes. v must be representable as a signed or unsigned integer of
// that size.
func appendValue(buf []byte, v int64, size int) []byte {
	if size < 8 {
		lo, hi := -(int64(1) << (size*8 - 1)), int64(1)<<(size*8)-1
		if v < lo || v > hi {
			fatal("value %d does not fit in %d byte(s)", v, size)
		}
	}
	for i1 := 0; i1 < size; i1++ {
		buf = append(buf, byte(v>>(8*i1)))
	}
	return buf
}

// patch overwrites the size bytes of buf at pos with v, little endian.
func patch(buf []byte, pos int, v int64, size int) {
	for i1 := 0; i1 < size; i1++ {
		buf[pos+i1] = byte(v >> (8 * i1))
	}
}
