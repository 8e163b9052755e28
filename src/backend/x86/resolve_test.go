// Tests branch relaxation and the patching of jump displacements and return addresses on hand written
// instruction sequences using physical registers only.

package x86

import (
	"bytes"
	"strings"
	"testing"

	"ccgen/src/ir"
	"ccgen/src/util"
)

// helperCode wraps already linked instructions in a Code of a function called name.
func helperCode(name string, ins ...*Instruction) *Code {
	f := &ir.Function{Symbol: &ir.Symbol{Name: name, Type: ir.FunctionOf(ir.VoidType, nil, false)}}
	positions := make([]int, len(ins)+1)
	for i1 := range positions {
		positions[i1] = i1
	}
	return &Code{Function: f, Instructions: ins, positions: positions, linked: true}
}

// helperStores returns n instructions of seven bytes each.
func helperStores(n int) []*Instruction {
	ins := make([]*Instruction, n)
	for i1 := range ins {
		ins[i1] = NewInstruction(Mov, 4, Memory{Base: RBP, Disp: 24}, Immediate(1000))
	}
	return ins
}

// TestRelaxShort verifies that a jump over a few bytes uses a one byte displacement.
func TestRelaxShort(t *testing.T) {
	ins := append([]*Instruction{NewInstruction(Je, 0, Target(2))}, helperStores(1)...)
	c := helperCode("short", ins...)
	b, err := c.Binary()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.Bytes[:2], []byte{0x74, 0x07}) {
		t.Fatalf("expected je rel8 over 7 bytes, got % X", b.Bytes[:2])
	}
	if c.Size() != 9 {
		t.Fatalf("expected 9 bytes, got %d", c.Size())
	}
}

// TestRelaxFar verifies that a forward branch over 200 bytes uses a six byte jcc and a backward jump over the
// same distance a five byte jmp.
func TestRelaxFar(t *testing.T) {
	ins := []*Instruction{NewInstruction(Jne, 0, Target(31))}
	ins = append(ins, helperStores(30)...)
	ins = append(ins, NewInstruction(Jmp, 0, Target(0)))
	c := helperCode("far", ins...)
	b, err := c.Binary()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.Bytes[:6], []byte{0x0F, 0x85, 0xD2, 0x00, 0x00, 0x00}) {
		t.Fatalf("expected jne rel32 +210, got % X", b.Bytes[:6])
	}
	tail := b.Bytes[len(b.Bytes)-5:]
	if !bytes.Equal(tail, []byte{0xE9, 0x23, 0xFF, 0xFF, 0xFF}) {
		t.Fatalf("expected jmp rel32 -221, got % X", tail)
	}
	if c.Size() != 6+210+5 {
		t.Fatalf("expected %d bytes, got %d", 6+210+5, c.Size())
	}
}

// TestRelaxNext verifies that a jump to the next instruction is not emitted and a jump to itself is.
func TestRelaxNext(t *testing.T) {
	c := helperCode("next",
		NewInstruction(Jmp, 0, Target(1)),
		NewInstruction(Jmp, 0, Target(1)),
	)
	b, err := c.Binary()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.Bytes, []byte{0xEB, 0xFE}) {
		t.Fatalf("expected a single jmp $, got % X", b.Bytes)
	}
}

// TestRelaxEliminated verifies that jumps are eliminated by distance: the first jump targets the second
// instruction after it, but the jump in between is eliminated itself.
func TestRelaxEliminated(t *testing.T) {
	exp := []struct {
		name string
		ins  []*Instruction
		out  []byte
	}{
		{
			name: "chain",
			ins: []*Instruction{
				NewInstruction(Jmp, 0, Target(2)),
				NewInstruction(Jmp, 0, Target(2)),
				NewInstruction(Mov, 0, EAX, EBX),
			},
			out: []byte{0x89, 0xD8},
		},
		{
			name: "conditional",
			ins: []*Instruction{
				NewInstruction(Je, 0, Target(3)),
				NewInstruction(Jne, 0, Target(3)),
				NewInstruction(Jmp, 0, Target(3)),
				NewInstruction(Mov, 0, EAX, EBX),
			},
			out: []byte{0x89, 0xD8},
		},
		{
			name: "loop",
			ins: []*Instruction{
				NewInstruction(Jmp, 0, Target(1)),
				NewInstruction(Jmp, 0, Target(0)),
			},
			out: []byte{0xEB, 0xFE},
		},
		{
			name: "over",
			ins: []*Instruction{
				NewInstruction(Jmp, 0, Target(2)),
				NewInstruction(Mov, 0, EAX, EBX),
				NewInstruction(Jmp, 0, Target(3)),
			},
			out: []byte{0xEB, 0x02, 0x89, 0xD8},
		},
	}
	for _, e1 := range exp {
		c := helperCode(e1.name, e1.ins...)
		b, err := c.Binary()
		if err != nil {
			t.Fatalf("%s: %s", e1.name, err)
		}
		if !bytes.Equal(b.Bytes, e1.out) {
			t.Errorf("%s: expected % X, got % X", e1.name, e1.out, b.Bytes)
		}
	}
}

// TestRelaxIdempotent verifies that relaxing twice yields the same code and that the second relaxation takes a
// single pass.
func TestRelaxIdempotent(t *testing.T) {
	ins := []*Instruction{NewInstruction(Je, 0, Target(20)), NewInstruction(Jmp, 0, Target(21))}
	ins = append(ins, helperStores(18)...)
	ins = append(ins, NewInstruction(Jl, 0, Target(0)), NewInstruction(Syscall, 0))
	c := helperCode("twice", ins...)

	if err := c.Relax(); err != nil {
		t.Fatal(err)
	}
	first, err := c.Binary()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Relax(); err != nil {
		t.Fatal(err)
	}
	second, err := c.Binary()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Bytes, second.Bytes) {
		t.Fatalf("relaxation is not idempotent:\n% X\n% X", first.Bytes, second.Bytes)
	}

	// Minimality: only zero length forward jumps are eliminated, every near jump does not fit a byte.
	offsets := c.offsets
	for i1, e1 := range c.Instructions {
		target, ok := jumpTarget(e1)
		if !ok {
			continue
		}
		d := offsets[target] - offsets[i1+1]
		switch e1.tier {
		case tierNone:
			if d != 0 || target <= i1 {
				t.Errorf("jump %d eliminated at displacement %d", i1, d)
			}
		case tierShort:
			if d == 0 && target > i1 {
				t.Errorf("forward jump %d emitted at displacement 0", i1)
			}
		case tierNear:
			if d >= -128 && d <= 127 {
				t.Errorf("jump %d widened although displacement %d fits a byte", i1, d)
			}
		}
	}
}

// TestReturnAddress verifies the patched return address and the relocation maps.
func TestReturnAddress(t *testing.T) {
	c := helperCode("caller",
		NewInstruction(ReturnAddress, 8, Memory{Base: RBP, Disp: 40}, Target(2)),
		NewInstruction(Call, 0, Label{Name: "callee"}),
		NewInstruction(Mov, 0, EAX, EBX),
		NewInstruction(Mov, 0, EAX, Memory{Name: "counter"}),
	)
	b, err := c.Binary()
	if err != nil {
		t.Fatal(err)
	}
	// The call returns to offset 13; the storing instruction ends at offset 8.
	if !bytes.Equal(b.Bytes[4:8], []byte{0x0D, 0x00, 0x00, 0x00}) {
		t.Fatalf("expected return address 13 - 8 + 8, got % X", b.Bytes[4:8])
	}
	if len(b.ReturnSet) != 1 || b.ReturnSet[0] != 4 {
		t.Fatalf("expected return set [4], got %v", b.ReturnSet)
	}
	if b.CallMap[9] != "callee" || len(b.CallMap) != 1 {
		t.Fatalf("expected call to callee at 9, got %v", b.CallMap)
	}
	if b.AccessMap[18] != "counter" || len(b.AccessMap) != 1 {
		t.Fatalf("expected access to counter at 18, got %v", b.AccessMap)
	}
}

// TestText verifies labels and the rendering of jumps, calls and return addresses.
func TestText(t *testing.T) {
	c := helperCode("loop",
		NewInstruction(ReturnAddress, 8, Memory{Base: RBP, Disp: 40}, Target(2)),
		NewInstruction(Call, 0, Label{Name: "f"}),
		NewInstruction(Cmp, 4, Memory{Base: RBP, Disp: 24}, Immediate(0)),
		NewInstruction(Jne, 0, Target(0)),
	)
	w := util.Writer{}
	if err := c.Text(&w); err != nil {
		t.Fatal(err)
	}
	exp := []string{
		"loop:",
		"loop$0:",
		"\tmov\tqword [rbp + 40], loop$2",
		"\tjmp\tf",
		"loop$2:",
		"\tcmp\tdword [rbp + 24], 0",
		"\tjne\tloop$0",
		"",
	}
	got := strings.Split(w.String(), "\n")
	if len(got) != len(exp) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(exp), len(got), w.String())
	}
	for i1, e1 := range exp {
		if got[i1] != e1 {
			t.Errorf("expected line %d to be %q, got %q", i1, e1, got[i1])
		}
	}
}
