// Tests the validation of middle code: operand kinds, the operands of integral arithmetic and the depth of the x87
// stack through arithmetic, relations, calls and returns.

package ir

import (
	"strings"
	"testing"
)

// helperFunction returns a function called f returning ret with the given middle code.
func helperFunction(ret *Type, code ...Instruction) *Function {
	return &Function{Symbol: &Symbol{Name: "f", Type: FunctionOf(ret, nil, false), Storage: Static}, Code: code}
}

// TestValidateFloatStack verifies that x87 stack operations are checked against the values pushed before them.
func TestValidateFloatStack(t *testing.T) {
	x := &Symbol{Name: "x", Type: DoubleType, Storage: Auto}
	y := &Symbol{Name: "y", Type: FloatType, Storage: Auto}
	i := &Symbol{Name: "i", Type: SignedIntType, Storage: Auto}
	g := &Symbol{Name: "g", Type: FunctionOf(DoubleType, []*Type{DoubleType}, false), Storage: Extern}
	r := NewTemporary("r", DoubleType)
	push := func(s *Symbol) Instruction {
		return Instruction{Op: PushFloat, Operands: [3]Operand{s}}
	}
	pop := func(s *Symbol) Instruction {
		return Instruction{Op: PopFloat, Operands: [3]Operand{s}}
	}
	end := Instruction{Op: FuncEnd}

	exp := []struct {
		name string
		f    *Function
		err  string // Empty if valid.
	}{
		{
			name: "add",
			f:    helperFunction(VoidType, push(x), push(y), Instruction{Op: Add}, pop(x), end),
		},
		{
			name: "add without operands",
			f:    helperFunction(VoidType, Instruction{Op: Add}, end),
			err:  "f:0: add needs 2 value(s) on the x87 stack, found 0",
		},
		{
			name: "add of one value",
			f:    helperFunction(VoidType, push(x), Instruction{Op: Sub, Operands: [3]Operand{x, x, nil}}, end),
			err:  "f:1: sub needs 2",
		},
		{
			name: "integral add without right operand",
			f:    helperFunction(VoidType, Instruction{Op: Add, Operands: [3]Operand{i, i, nil}}, end),
			err:  "f:0: add: integral arithmetic needs two operands",
		},
		{
			name: "neg",
			f:    helperFunction(VoidType, Instruction{Op: Neg}, end),
			err:  "f:0: neg needs 1",
		},
		{
			name: "conversion",
			f: helperFunction(VoidType,
				Instruction{Op: IntToFloat, Operands: [3]Operand{nil, i}},
				Instruction{Op: FloatToInt, Operands: [3]Operand{i, nil}},
				Instruction{Op: FloatToInt, Operands: [3]Operand{i, nil}},
				end),
			err: "f:2: float_to_int needs 1",
		},
		{
			name: "relation",
			f: helperFunction(VoidType, push(x), push(y), Instruction{Op: Less, Operands: [3]Operand{Target(4)}},
				Instruction{Op: PopEmpty}, end),
			err: "f:3: pop_empty needs 1",
		},
		{
			name: "precall depth",
			f: helperFunction(VoidType, push(x),
				Instruction{Op: PreCall, Operands: [3]Operand{Int(32), nil, Int(0)}},
				end),
			err: "f:1: precall expects x87 stack depth 0, got 1",
		},
		{
			name: "floating parameter",
			f: helperFunction(VoidType,
				Instruction{Op: PreCall, Operands: [3]Operand{Int(32), nil, Int(0)}},
				Instruction{Op: Parameter, Operands: [3]Operand{Int(24), x}},
				end),
			err: "f:1: parameter needs 1",
		},
		{
			name: "call",
			f: helperFunction(VoidType, push(y),
				Instruction{Op: PreCall, Operands: [3]Operand{Int(32), nil, Int(1)}},
				push(x),
				Instruction{Op: Parameter, Operands: [3]Operand{Int(24), x}},
				Instruction{Op: Call, Operands: [3]Operand{Int(32), g, Int(0)}},
				Instruction{Op: PostCall, Operands: [3]Operand{r}},
				Instruction{Op: Add},
				pop(x),
				end),
		},
		{
			name: "return",
			f: helperFunction(DoubleType,
				Instruction{Op: Equal, Operands: [3]Operand{Target(3), i, i}},
				Instruction{Op: SetReturn, Operands: [3]Operand{x}},
				Instruction{Op: Return},
				Instruction{Op: PreCall, Operands: [3]Operand{Int(32), nil, Int(0)}},
				Instruction{Op: Call, Operands: [3]Operand{Int(32), g, Int(0)}},
				Instruction{Op: PostCall, Operands: [3]Operand{r}},
				Instruction{Op: TopFloat, Operands: [3]Operand{x}},
				Instruction{Op: Return},
				end),
		},
		{
			name: "postcall",
			f:    helperFunction(VoidType, Instruction{Op: PostCall}, end),
			err:  "f:0: postcall without precall",
		},
		{
			name: "operand kind",
			f:    helperFunction(VoidType, Instruction{Op: PushFloat, Operands: [3]Operand{Int(1)}}, end),
			err:  "f:0: push_float operand 0: expected symbol",
		},
	}
	for _, e1 := range exp {
		err := Validate(e1.f)
		switch {
		case len(e1.err) == 0 && err != nil:
			t.Errorf("%s: unexpected error: %s", e1.name, err)
		case len(e1.err) > 0 && err == nil:
			t.Errorf("%s: expected error %q", e1.name, e1.err)
		case err != nil && !strings.Contains(err.Error(), e1.err):
			t.Errorf("%s: expected error %q, got %q", e1.name, e1.err, err)
		}
	}
}
