// Tests the opcode table and the encoder by assembling instructions with physical register operands and
// comparing the bytes against the encodings given in the Intel manual.

package x86

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// TestEncode verifies the machine code of single instructions.
func TestEncode(t *testing.T) {
	exp := []struct {
		in  *Instruction
		out []byte
	}{
		{NewInstruction(Mov, 0, EAX, EBX), []byte{0x89, 0xD8}},
		{NewInstruction(Mov, 0, RAX, RBX), []byte{0x48, 0x89, 0xD8}},
		{NewInstruction(Mov, 0, AX, BX), []byte{0x66, 0x89, 0xD8}},
		{NewInstruction(Mov, 0, AL, BL), []byte{0x88, 0xD8}},
		{NewInstruction(Add, 0, EAX, Immediate(1)), []byte{0xFF, 0xC0}},
		{NewInstruction(Add, 0, AL, Immediate(1)), []byte{0xFE, 0xC0}},
		{NewInstruction(Add, 0, EAX, Immediate(5)), []byte{0x83, 0xC0, 0x05}},
		{NewInstruction(Add, 0, EAX, Immediate(1000)), []byte{0x81, 0xC0, 0xE8, 0x03, 0x00, 0x00}},
		{NewInstruction(Cmp, 0, EAX, Immediate(0)), []byte{0x83, 0xF8, 0x00}},
		{NewInstruction(Mov, 0, RAX, Immediate(0x123456789)),
			[]byte{0x48, 0xB8, 0x89, 0x67, 0x45, 0x23, 0x01, 0x00, 0x00, 0x00}},
		{NewInstruction(Mov, 4, Memory{Base: RBP, Disp: 24}, Immediate(7)),
			[]byte{0xC7, 0x45, 0x18, 0x07, 0x00, 0x00, 0x00}},
		{NewInstruction(Mov, 0, EAX, Memory{Base: RSP}), []byte{0x8B, 0x04, 0x24}},
		{NewInstruction(Mov, 0, RAX, Memory{Base: RBP}), []byte{0x48, 0x8B, 0x45, 0x00}},
		{NewInstruction(Mov, 0, EAX, Memory{Base: RBX, Disp: 300}), []byte{0x8B, 0x83, 0x2C, 0x01, 0x00, 0x00}},
		{NewInstruction(Lea, 0, RAX, Memory{Base: RBP, Disp: -8}), []byte{0x48, 0x8D, 0x45, 0xF8}},
		{NewInstruction(MovzxByte, 0, EAX, BL), []byte{0x0F, 0xB6, 0xC3}},
		{NewInstruction(Movsxd, 0, RAX, EBX), []byte{0x48, 0x63, 0xC3}},
		{NewInstruction(Idiv, 0, ECX), []byte{0xF7, 0xF9}},
		{NewInstruction(Imul, 0, EAX, EBX, Immediate(10)), []byte{0x6B, 0xC3, 0x0A}},
		{NewInstruction(Shl, 0, EAX, CL), []byte{0xD3, 0xE0}},
		{NewInstruction(Sar, 0, EDX, Immediate(31)), []byte{0xC1, 0xFA, 0x1F}},
		{NewInstruction(Inc, 4, Memory{Base: RBP, Disp: 24}), []byte{0xFF, 0x45, 0x18}},
		{NewInstruction(Jmp, 0, RAX), []byte{0xFF, 0xE0}},
		{NewInstruction(Syscall, 0), []byte{0x0F, 0x05}},
		{NewInstruction(Sahf, 0), []byte{0x9E}},
		{NewInstruction(Fstsw, 0, AX), []byte{0x9B, 0xDF, 0xE0}},
		{NewInstruction(Fcompp, 0), []byte{0xDE, 0xD9}},
		{NewInstruction(FldQword, 0, Memory{Base: RBP, Disp: 32}), []byte{0xDD, 0x45, 0x20}},
		{NewInstruction(FistpQword, 0, Memory{Base: RBP, Disp: 32}), []byte{0xDF, 0x7D, 0x20}},
	}

	for i1, e1 := range exp {
		out, _ := Encode(e1.in)
		if !bytes.Equal(out, e1.out) {
			t.Errorf("expected encoding %d %q to be % X, got % X", i1, e1.in, e1.out, out)
		}
	}
}

// TestEncodeRelocations verifies the relocations of static symbol accesses, calls and return addresses.
func TestEncodeRelocations(t *testing.T) {
	exp := []struct {
		in     *Instruction
		out    []byte
		relocs []Relocation
	}{
		{
			NewInstruction(Mov, 0, EAX, Memory{Name: "x"}),
			[]byte{0x8B, 0x04, 0x25, 0x00, 0x00, 0x00, 0x00},
			[]Relocation{{Kind: RelocAccess, Offset: 3, Name: "x"}},
		},
		{
			NewInstruction(Mov, 0, RAX, Label{Name: "x", Offset: 8}),
			[]byte{0x48, 0xC7, 0xC0, 0x08, 0x00, 0x00, 0x00},
			[]Relocation{{Kind: RelocAccess, Offset: 3, Name: "x"}},
		},
		{
			NewInstruction(Call, 0, Label{Name: "f"}),
			[]byte{0xE9, 0x00, 0x00, 0x00, 0x00},
			[]Relocation{{Kind: RelocCall, Offset: 1, Name: "f"}},
		},
		{
			NewInstruction(ReturnAddress, 8, Memory{Base: RBP, Disp: 40}, Target(3)),
			[]byte{0x48, 0xC7, 0x45, 0x28, 0x00, 0x00, 0x00, 0x00},
			[]Relocation{{Kind: RelocReturn, Offset: 4}},
		},
	}

	for i1, e1 := range exp {
		out, relocs := Encode(e1.in)
		if !bytes.Equal(out, e1.out) {
			t.Errorf("expected encoding %d %q to be % X, got % X", i1, e1.in, e1.out, out)
		}
		if len(relocs) != len(e1.relocs) {
			t.Fatalf("expected %d relocation(s) for %q, got %s", len(e1.relocs), e1.in, spew.Sdump(relocs))
		}
		for i2, e2 := range e1.relocs {
			if relocs[i2] != e2 {
				t.Errorf("expected relocation %s of %q, got %s", spew.Sdump(e2), e1.in, spew.Sdump(relocs[i2]))
			}
		}
	}
}

// TestEncodeMissing verifies that an instruction without an encoding aborts with an InternalError.
func TestEncodeMissing(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(*InternalError); !ok {
			t.Fatalf("expected *InternalError, got %v", r)
		}
	}()
	// There is no byte form of lea.
	Encode(NewInstruction(Lea, 0, AL, Memory{Base: RBP, Disp: 8}))
}
