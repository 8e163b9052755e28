package x86

import (
	"math"
	"sort"

	"ccgen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Binary is the machine code of one function with the fields the linker completes. Offsets are relative to the
// first byte of the function.
type Binary struct {
	Bytes     []byte         // Machine code.
	AccessMap map[int]string // Offsets of fields holding a displacement from a static symbol's address.
	CallMap   map[int]string // Offsets of fields holding the displacement of a call.
	ReturnSet []int          // Offsets of return address fields, sorted. See Binary for their value.
}

// ---------------------
// ----- Constants -----
// ---------------------

// Displacement widths of jumps.
const (
	tierNone  = 0 // Jump to the next instruction, not emitted.
	tierShort = 1 // One byte displacement.
	tierNear  = 4 // Four byte displacement.
)

// ---------------------
// ----- Functions -----
// ---------------------

// Link converts the targets of jumps from middle code indices to indices of c.Instructions. A middle code
// instruction that generated no code is represented by the next instruction generated. Link is idempotent.
func (c *Code) Link() {
	if c.linked {
		return
	}
	for _, e1 := range c.Instructions {
		if t, ok := jumpTarget(e1); ok {
			if t < 0 || t >= len(c.positions) {
				fatal("jump target %d out of range", t)
			}
			e1.Operands[0] = Target(c.positions[t])
		}
	}
	c.linked = true
}

// Relax chooses the displacement width of every jump. Forward jumps start out eliminated and backward jumps with
// a one byte displacement. A jump is widened when its displacement does not fit its width: an eliminated jump
// whose target does not start where the jump ends becomes short, a short jump out of byte range becomes near.
// Widening is monotone, so the loop ends. A backward jump is never eliminated, even at displacement 0. The Tracks
// of c must be allocated.
func (c *Code) Relax() (err error) {
	defer c.catch(&err)
	c.Link()
	lengths := make([]int, len(c.Instructions))
	for i1, e1 := range c.Instructions {
		if t, ok := jumpTarget(e1); ok {
			if t > i1 {
				e1.tier = tierNone
			} else {
				e1.tier = tierShort
			}
		}
		lengths[i1] = e1.length()
	}

	c.Passes = 0
	for changed := true; changed; {
		changed = false
		c.Passes++
		offsets := layout(lengths)
		for i1, e1 := range c.Instructions {
			t, ok := jumpTarget(e1)
			if !ok {
				continue
			}
			d := offsets[t] - offsets[i1+1]
			tier := e1.tier
			if tier == tierNone && d != 0 {
				tier = tierShort
			}
			if tier == tierShort && (d < math.MinInt8 || d > math.MaxInt8) {
				tier = tierNear
			}
			if tier != e1.tier {
				e1.tier = tier
				lengths[i1] = e1.length()
				changed = true
			}
		}
	}
	c.offsets = layout(lengths)
	return nil
}

// Binary returns the machine code of c with every jump displacement and return address patched. A return address
// field holds the offset of its target minus the offset following the storing instruction, plus the pointer
// size; the linker relocates it to an absolute address. Binary relaxes c if that has not been done.
func (c *Code) Binary() (b *Binary, err error) {
	if c.offsets == nil {
		if err := c.Relax(); err != nil {
			return nil, err
		}
	}
	defer c.catch(&err)

	b = &Binary{
		Bytes:     make([]byte, 0, c.offsets[len(c.offsets)-1]),
		AccessMap: make(map[int]string),
		CallMap:   make(map[int]string),
	}
	for i1, e1 := range c.Instructions {
		if e1.eliminated() {
			continue
		}
		start := c.offsets[i1]
		buf, relocs := Encode(e1)
		if t, ok := jumpTarget(e1); ok {
			patch(buf, len(buf)-e1.tier, int64(c.offsets[t]-c.offsets[i1+1]), e1.tier)
		}
		for _, e2 := range relocs {
			pos := start + e2.Offset
			switch e2.Kind {
			case RelocAccess:
				b.AccessMap[pos] = e2.Name
			case RelocCall:
				b.CallMap[pos] = e2.Name
			case RelocReturn:
				t := int(e1.Operands[1].(Target))
				patch(buf, e2.Offset, int64(c.offsets[t]-c.offsets[i1+1]+pointerSize), 4)
				b.ReturnSet = append(b.ReturnSet, pos)
			}
		}
		b.Bytes = append(b.Bytes, buf...)
	}
	sort.Ints(b.ReturnSet)
	return b, nil
}

// Text writes the assembly text of c to w. Every instruction a jump or return address refers to is labelled.
func (c *Code) Text(w *util.Writer) (err error) {
	defer c.catch(&err)
	c.Link()
	name := c.Function.Name()
	labels := make(map[int]bool)
	for _, e1 := range c.Instructions {
		if t, ok := jumpTarget(e1); ok {
			labels[t] = true
		}
		if e1.Op == ReturnAddress {
			labels[int(e1.Operands[1].(Target))] = true
		}
	}
	label := func(i int) string {
		return util.Label(name, i)
	}

	w.Label(name)
	for i1, e1 := range c.Instructions {
		if labels[i1] {
			w.Label(label(i1))
		}
		w.Write("\t%s\n", e1.Text(label))
	}
	if labels[len(c.Instructions)] {
		w.Label(label(len(c.Instructions)))
	}
	return nil
}

// Size returns the number of bytes of the relaxed code of c, or -1 if c has not been relaxed.
func (c *Code) Size() int {
	if c.offsets == nil {
		return -1
	}
	return c.offsets[len(c.offsets)-1]
}

// catch recovers an InternalError raised while resolving c into err.
func (c *Code) catch(err *error) {
	if r := recover(); r != nil {
		e, ok := r.(*InternalError)
		if !ok {
			panic(r)
		}
		e.Function = c.Function.Name()
		*err = e
	}
}

// jumpTarget returns the target of a jump instruction with a Target operand.
func jumpTarget(in *Instruction) (int, bool) {
	if !in.Op.IsJump() {
		return 0, false
	}
	t, ok := in.Operands[0].(Target)
	return int(t), ok
}

// eliminated returns true for jumps whose target starts where they end, once relaxed.
func (in *Instruction) eliminated() bool {
	_, ok := jumpTarget(in)
	return ok && in.tier == tierNone
}

// length returns the number of bytes of in at its current displacement width.
func (in *Instruction) length() int {
	if in.eliminated() {
		return 0
	}
	buf, _ := Encode(in)
	return len(buf)
}

// layout returns the offset of every instruction and, last, the total size.
func layout(lengths []int) []int {
	offsets := make([]int, len(lengths)+1)
	for i1, e1 := range lengths {
		offsets[i1+1] = offsets[i1] + e1
	}
	return offsets
}
