// Tests the generation of whole modules read from a middle code listing, in assembly text and binary mode, by one
// and by several threads.

package backend

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"ccgen/src/frontend"
	"ccgen/src/ir"
	"ccgen/src/util"
)

// listing is a module of two functions: main calls inc and stores the result in a static.
const listing = `extern g func(int) int
static counter int

func inc(a int) int
temp t int
   0	add t, a, #1
   1	set_return t
   2	return
   3	func_end
end

func main() int
var x int
temp r int
   0	assign x, #5
   1	precall 32, {}, 0
   2	parameter 24, x
   3	call 32, inc, 0
   4	postcall r
   5	assign counter, r
   6	set_return counter
   7	return
   8	func_end
end
`

// helperModule reads and arranges src.
func helperModule(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := frontend.Parse("test", src)
	if err != nil {
		t.Fatal(err)
	}
	m.Arrange(ir.NaturalLayout{})
	return m
}

// helperText generates the assembly text of listing using threads worker threads.
func helperText(t *testing.T, threads int) (string, []Stats) {
	t.Helper()
	sb := strings.Builder{}
	stats, err := GenerateAssembler(util.Options{Threads: threads}, helperModule(t, listing), Output{Text: &sb})
	if err != nil {
		t.Fatal(err)
	}
	return sb.String(), stats
}

// TestGenerateText verifies the directives, function order and statistics of assembly text output.
func TestGenerateText(t *testing.T) {
	s, stats := helperText(t, 1)
	exp := []string{
		"; test\n",
		"\tglobal inc\n",
		"\tglobal main\n",
		"\textern $StackTop\n",
		"\tsection .text\n",
		"inc:\n",
		"main:\n",
		"\tjmp\tinc\n",
	}
	for _, e1 := range exp {
		if !strings.Contains(s, e1) {
			t.Errorf("expected %q in output:\n%s", e1, s)
		}
	}
	if strings.Contains(s, "extern g\n") || strings.Contains(s, "extern counter\n") {
		t.Errorf("unexpected extern directive in output:\n%s", s)
	}
	if strings.Index(s, "inc:\n") > strings.Index(s, "main:\n") {
		t.Errorf("expected inc before main:\n%s", s)
	}

	if len(stats) != 2 || stats[0].Function != "inc" || stats[1].Function != "main" {
		t.Fatalf("unexpected statistics %v", stats)
	}
	for _, e1 := range stats {
		if e1.Instructions <= 0 || e1.Size <= 0 || e1.Tracks <= 0 {
			t.Errorf("unexpected statistics %v", e1)
		}
	}
}

// TestGenerateThreads verifies that parallel generation writes the same text as sequential generation.
func TestGenerateThreads(t *testing.T) {
	s1, _ := helperText(t, 1)
	for _, e1 := range []int{2, 4} {
		if s2, _ := helperText(t, e1); s1 != s2 {
			t.Errorf("%d threads: expected\n%s\ngot\n%s", e1, s1, s2)
		}
	}
}

// TestGenerateBinary verifies the machine code length and the relocation listing of binary output.
func TestGenerateBinary(t *testing.T) {
	code := bytes.Buffer{}
	rel := strings.Builder{}
	opt := util.Options{Threads: 1, Binary: true}
	stats, err := GenerateAssembler(opt, helperModule(t, listing), Output{Code: &code, Relocations: &rel})
	if err != nil {
		t.Fatal(err)
	}
	if code.Len() != stats[0].Size+stats[1].Size {
		t.Fatalf("expected %d bytes, got %d", stats[0].Size+stats[1].Size, code.Len())
	}

	r := rel.String()
	exp := []string{
		"extern\t$StackTop\n",
		fmt.Sprintf("function\tinc\t0\t%d\n", stats[0].Size),
		fmt.Sprintf("function\tmain\t%d\t%d\n", stats[0].Size, stats[1].Size),
		"\tcounter\n",
		"\tinc\n",
		"return\t",
	}
	for _, e1 := range exp {
		if !strings.Contains(r, e1) {
			t.Errorf("expected %q in relocation listing:\n%s", e1, r)
		}
	}
}

// TestGenerateInvalid verifies that malformed middle code is rejected before generation.
func TestGenerateInvalid(t *testing.T) {
	m := helperModule(t, "func f() void\n0 goto @9\n1 func_end\nend\n")
	_, err := GenerateAssembler(util.Options{Threads: 1}, m, Output{Text: &strings.Builder{}})
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected jump target error, got %v", err)
	}
}
