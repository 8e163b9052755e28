// Tests the middle code reader: declarations, operands and types of a sample listing, read back of the listing
// printed from the module, and rejection of malformed listings.

package frontend

import (
	"math"
	"strings"
	"testing"

	"ccgen/src/ir"
)

// listing is a sample middle code module.
const listing = `; test module
extern g func(int) int
extern printf func(*char, ...) int
static counter long
static buf char[16]

func f(a int, p *int, ...) int
var x int
temp t1 int
temp r int
deref d int = p + 4
   0	add t1, a, #-5
   1	assign d, t1
   2	precall 40, {t1}, 0
   3	parameter 24, t1
   4	call 40, g, 0
   5	postcall r
   6	ne @8, r, #0
   7	assign x, #2:long
   8	set_return x
   9	return
  10	func_end
end

func main() int
   0	sys_init exit
   1	sys_param exit, 0, #0
   2	sys_call exit, _
   3	func_end
end
`

// helperConstant returns the constant read from the listing spelling c.
func helperConstant(t *testing.T, c string) *ir.Symbol {
	t.Helper()
	m, err := Parse("c", "func f() void\nvar x int\nassign x, "+c+"\nend\n")
	if err != nil {
		t.Fatalf("%s: %s", c, err)
	}
	s := m.Functions[0].Code[0].Symbol(1)
	if s == nil || !s.Constant {
		t.Fatalf("%s: expected constant, got %v", c, s)
	}
	return s
}

// TestParse verifies the module read from the sample listing.
func TestParse(t *testing.T) {
	m, err := Parse("test", listing)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Externs) != 2 || len(m.Statics) != 2 || len(m.Functions) != 2 {
		t.Fatalf("expected 2 externs, 2 statics and 2 functions, got %d, %d and %d",
			len(m.Externs), len(m.Statics), len(m.Functions))
	}
	if s := m.Statics[1]; s.Storage != ir.Static || !s.Type.IsArray() || s.Type.Count != 16 {
		t.Errorf("expected static char array of 16, got %s %s %s", s.Storage, s.Name, s.Type)
	}
	if !m.Externs[1].Type.IsVariadic() {
		t.Errorf("expected variadic printf, got %s", m.Externs[1].Type)
	}

	f := m.Functions[0]
	if !f.IsVariadic() || len(f.Params) != 2 || len(f.Locals) != 1 || len(f.Code) != 11 {
		t.Fatalf("unexpected function %s", f)
	}
	if f.Params[1].Storage != ir.Param || !f.Params[1].Type.IsPointer() {
		t.Errorf("expected pointer parameter, got %s %s", f.Params[1].Storage, f.Params[1].Type)
	}
	if c := f.Code[0].Symbol(2); !c.IsIntConstantValue(-5) || c.Type != ir.SignedIntType {
		t.Errorf("expected int constant -5, got %s", c)
	}
	if f.Code[0].Line != 12 {
		t.Errorf("expected instruction on line 12, got %d", f.Code[0].Line)
	}
	if d := f.Code[1].Symbol(0); d.AddressSymbol != f.Params[1] || d.AddressOffset != 4 || !d.Temporary {
		t.Errorf("expected dereference of p + 4, got %v", d)
	}
	if s := f.Code[2].Set(1); len(s) != 1 || s[0] != f.Code[0].Symbol(0) {
		t.Errorf("expected set {t1}, got %v", s)
	}
	if f.Code[4].Symbol(1) != m.Externs[0] || f.Code[4].Int(0) != 40 {
		t.Errorf("expected call of g, got %s", f.Code[4].String())
	}
	if f.Code[6].Target(0) != 8 {
		t.Errorf("expected jump to 8, got %d", f.Code[6].Target(0))
	}
	if c := f.Code[7].Symbol(1); c.Type != ir.SignedLongType {
		t.Errorf("expected long constant, got %s", c)
	}

	main := m.Functions[1]
	if !main.IsMain() || main.Code[0].Name(0) != "exit" || main.Code[2].Operands[1] != nil {
		t.Errorf("unexpected main %s", main)
	}
	for _, e1 := range m.Functions {
		if err := ir.Validate(e1); err != nil {
			t.Errorf("validation of %s failed: %s", e1.Name(), err)
		}
	}
}

// TestParseListing verifies that the listing printed from a module reads back to the same module.
func TestParseListing(t *testing.T) {
	m, err := Parse("test", listing)
	if err != nil {
		t.Fatal(err)
	}
	s1 := m.String()
	m2, err := Parse("test", s1)
	if err != nil {
		t.Fatalf("failed to read listing:\n%s\n%s", s1, err)
	}
	if s2 := m2.String(); s1 != s2 {
		t.Fatalf("expected listing\n%s\ngot\n%s", s1, s2)
	}
}

// TestParseTypes verifies that types read back to their spelling.
func TestParseTypes(t *testing.T) {
	exp := []string{
		"int",
		"ldouble",
		"*char",
		"char[16]",
		"int[2][3]",
		"(*int)[4]",
		"*int[4]",
		"func(int, ...) void",
		"*func(*char) int",
		"(func() int)[2]",
		"struct{int, double[2], union{char, long}}",
	}
	for _, e1 := range exp {
		m, err := Parse("t", "static s "+e1+"\n")
		if err != nil {
			t.Errorf("%s: %s", e1, err)
			continue
		}
		if s := m.Statics[0].Type.String(); s != e1 {
			t.Errorf("expected type %s, got %s", e1, s)
		}
	}
}

// TestParseConstants verifies the value and type of constants.
func TestParseConstants(t *testing.T) {
	if c := helperConstant(t, "#-5:long"); c.IntValue != -5 || c.Type != ir.SignedLongType {
		t.Errorf("expected long -5, got %s", c)
	}
	if c := helperConstant(t, "#0x10"); c.IntValue != 16 || c.Type != ir.SignedIntType {
		t.Errorf("expected int 16, got %s", c)
	}
	if c := helperConstant(t, "#18446744073709551615:ulong"); c.IntValue != -1 || c.Type != ir.UnsignedLongType {
		t.Errorf("expected all ones ulong, got %s", c)
	}
	if c := helperConstant(t, "#1.5"); c.FloatValue != 1.5 || c.Type != ir.DoubleType {
		t.Errorf("expected double 1.5, got %s", c)
	}
	if c := helperConstant(t, "#2.5:float"); c.FloatValue != 2.5 || c.Type != ir.FloatType {
		t.Errorf("expected float 2.5, got %s", c)
	}
	if c := helperConstant(t, "#3:ldouble"); c.FloatValue != 3 || c.Type != ir.LongDoubleType {
		t.Errorf("expected long double 3, got %s", c)
	}
	if c := helperConstant(t, "#-Inf"); !math.IsInf(c.FloatValue, -1) {
		t.Errorf("expected negative infinity, got %s", c)
	}
	if c := helperConstant(t, "#0:*char"); !c.IsIntConstantValue(0) || !c.Type.IsPointer() {
		t.Errorf("expected null pointer, got %s", c)
	}
}

// TestParseErrors verifies that malformed listings are rejected with a positioned error.
func TestParseErrors(t *testing.T) {
	exp := []struct {
		src string
		err string
	}{
		{src: "func f() int\n0 add x\nend\n", err: `undeclared symbol "x"`},
		{src: "func f() int\n0 frob\nend\n", err: `unknown operator "frob"`},
		{src: "func f() int\n1 return\nend\n", err: "instruction index 1, expected 0"},
		{src: "func f() int\n0 return\n", err: "has no end"},
		{src: "extern x int\nextern x int\n", err: "redeclared"},
		{src: "var x int\n", err: "expected declaration"},
		{src: "func f() int\nvar x int\nderef d int = x\nend\n", err: "non-pointer type"},
		{src: "static s foo\n", err: "expected type"},
		{src: "func f() int\nvar x int\nassign x, #1.5:int\nend\n", err: "floating constant of type int"},
		{src: "func f(..., a int) int\nend\n", err: "parameter after ..."},
		{src: "static s int int\n", err: "expected end of line"},
	}
	for _, e1 := range exp {
		_, err := Parse("e", e1.src)
		if err == nil {
			t.Errorf("%q: expected error %q", e1.src, e1.err)
			continue
		}
		if !strings.Contains(err.Error(), e1.err) || !strings.HasPrefix(err.Error(), "line ") {
			t.Errorf("%q: expected error %q, got %q", e1.src, e1.err, err)
		}
	}
}
