// Tests instruction construction, register overlap and the rendering of instructions as assembler text.

package x86

import "testing"

// TestPeephole verifies that additions and subtractions of one become increments and decrements.
func TestPeephole(t *testing.T) {
	exp := []struct {
		in    *Instruction
		op    Operator
		arity int
	}{
		{NewInstruction(Add, 0, EAX, Immediate(1)), Inc, 1},
		{NewInstruction(Add, 0, EAX, Immediate(-1)), Dec, 1},
		{NewInstruction(Sub, 0, EAX, Immediate(1)), Dec, 1},
		{NewInstruction(Sub, 0, EAX, Immediate(-1)), Inc, 1},
		{NewInstruction(Add, 0, EAX, Immediate(2)), Add, 2},
		{NewInstruction(Add, 0, EAX, EBX), Add, 2},
		{NewInstruction(Imul, 0, EAX, EBX, Immediate(1)), Imul, 3},
	}

	for i1, e1 := range exp {
		if e1.in.Op != e1.op || e1.in.Arity() != e1.arity {
			t.Errorf("expected instruction %d to be %s with %d operand(s), got %q", i1, e1.op, e1.arity, e1.in)
		}
	}
}

// TestOverlaps verifies that registers overlap iff they share a class, and that the relation is symmetric.
func TestOverlaps(t *testing.T) {
	exp := []struct {
		a, b Register
		out  bool
	}{
		{AL, RAX, true},
		{AX, EAX, true},
		{EAX, EBX, false},
		{SI, RSI, true},
		{RDI, RSI, false},
		{RBP, BP, true},
		{NoRegister, NoRegister, false},
		{NoRegister, EAX, false},
	}

	for _, e1 := range exp {
		if Overlaps(e1.a, e1.b) != e1.out || Overlaps(e1.b, e1.a) != e1.out {
			t.Errorf("expected overlap of %s and %s to be %t", e1.a, e1.b, e1.out)
		}
	}
}

// TestClassRegister verifies the registers of every class and width, including the missing low bytes.
func TestClassRegister(t *testing.T) {
	exp := []struct {
		c    Class
		size int
		out  Register
	}{
		{ClassA, 1, AL},
		{ClassB, 2, BX},
		{ClassC, 4, ECX},
		{ClassD, 8, RDX},
		{ClassSI, 1, NoRegister},
		{ClassDI, 4, EDI},
		{ClassBP, 8, RBP},
		{ClassA, 3, NoRegister},
	}

	for _, e1 := range exp {
		if r := e1.c.Register(e1.size); r != e1.out {
			t.Errorf("expected %d byte register of class %s to be %q, got %q", e1.size, e1.c, e1.out, r)
		}
		if e1.c.Holds(e1.size) != (e1.out != NoRegister) {
			t.Errorf("wrong Holds(%d) of class %s", e1.size, e1.c)
		}
	}
}

// TestInstructionText verifies width keywords: memory operands are qualified unless a register operand fixes
// the width, extending moves qualify their source and x87 mnemonics carry the width themselves.
func TestInstructionText(t *testing.T) {
	exp := []struct {
		in  *Instruction
		out string
	}{
		{NewInstruction(Mov, 0, EAX, Memory{Base: RBP, Disp: 24}), "mov\teax, [rbp + 24]"},
		{NewInstruction(Mov, 2, Memory{Base: RBP, Disp: 24}, Immediate(5)), "mov\tword [rbp + 24], 5"},
		{NewInstruction(Mov, 8, Memory{Name: "x", Disp: -8}, Immediate(0)), "mov\tqword [x - 8], 0"},
		{NewInstruction(MovsxByte, 0, EAX, Memory{Base: RDI, Disp: 30}), "movsx\teax, byte [rdi + 30]"},
		{NewInstruction(Shl, 4, Memory{Base: RBP, Disp: 24}, CL), "shl\tdword [rbp + 24], cl"},
		{NewInstruction(Shl, 0, EAX, CL), "shl\teax, cl"},
		{NewInstruction(FldQword, 0, Memory{Name: ScratchCell}), "fld qword\t[$Scratch]"},
		{NewInstruction(Mov, 0, RAX, Label{Name: "f", Offset: 16}), "mov\trax, dword f + 16"},
		{NewInstruction(Mov, 0, EAX, Label{Name: "f"}), "mov\teax, f"},
		{NewInstruction(Mov, 8, Memory{Base: RBP, Disp: 8}, Label{Name: "f"}), "mov\tqword [rbp + 8], f"},
		{NewInstruction(Call, 0, Label{Name: "f"}), "jmp\tf"},
		{NewInstruction(Mov, 0, EAX, Memory{Disp: 4096}), "mov\teax, [4096]"},
		{NewInstruction(Je, 0, Target(7)), "je\t@7"},
		{NewInstruction(Syscall, 0), "syscall"},
	}

	for i1, e1 := range exp {
		if s := e1.in.String(); s != e1.out {
			t.Errorf("expected text %d to be %q, got %q", i1, e1.out, s)
		}
	}
}

// TestTwin verifies that binding one twin binds the whole set, and that tracks print as their register once
// bound.
func TestTwin(t *testing.T) {
	a, b, c := newTrack(0, nil, 8), newTrack(1, nil, 4), newTrack(2, nil, 1)
	Twin(a, b)
	Twin(c, b)
	if a.Root() != c.Root() {
		t.Fatalf("expected %s and %s to share a root", a, c)
	}
	if a.Bound() {
		t.Fatalf("expected unbound twins")
	}
	if b.String() != "%t1:4" {
		t.Fatalf("expected %q, got %q", "%t1:4", b.String())
	}
	c.Bind(ClassD)
	if a.Register() != RDX || b.Register() != EDX || c.Register() != DL {
		t.Fatalf("expected rdx, edx and dl, got %s, %s and %s", a, b, c)
	}
	if !a.HasTwins() || !c.HasTwins() {
		t.Fatalf("expected twins")
	}
}

// TestBindConflict verifies that binding twins to two classes is an InternalError.
func TestBindConflict(t *testing.T) {
	defer func() {
		if _, ok := recover().(*InternalError); !ok {
			t.Fatalf("expected *InternalError")
		}
	}()
	a, b := newTrack(0, nil, 4), newTrack(1, nil, 4)
	a.Bind(ClassA)
	b.Bind(ClassB)
	Twin(a, b)
}
