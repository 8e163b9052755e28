// Tests the utilities shared by the compiler stages: command line parsing, the generic stack, the parallel error
// listener, label names and output buffering.

package util

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TestParseArgs verifies the options produced by valid and invalid command lines.
func TestParseArgs(t *testing.T) {
	opt, err := parseArgs([]string{"-b", "-t", "4", "-o", "out.s", "-nl", "-vb", "prog.mir"})
	if err != nil {
		t.Fatal(err)
	}
	exp := Options{Src: "prog.mir", Out: "out.s", Threads: 4, Verbose: true, Binary: true, NaturalLayout: true}
	if opt != exp {
		t.Fatalf("expected %+v, got %+v", exp, opt)
	}

	bad := [][]string{
		{"-t", "0", "prog.mir"},
		{"-t", "abc", "prog.mir"},
		{"-o", "-b", "prog.mir"},
		{"-q", "prog.mir"},
		{"-b"},
		{"prog.mir", "-t"},
	}
	for _, e1 := range bad {
		if _, err := parseArgs(e1); err == nil {
			t.Errorf("%v: expected error", e1)
		}
	}
}

// TestParseArgsEnvironment verifies option defaults read from the environment.
func TestParseArgsEnvironment(t *testing.T) {
	t.Setenv(envThreads, "3")
	t.Setenv(envOut, "a.s")
	opt, err := parseArgs([]string{"prog.mir"})
	if err != nil {
		t.Fatal(err)
	}
	if opt.Threads != 3 || opt.Out != "a.s" {
		t.Fatalf("expected 3 threads and output a.s, got %+v", opt)
	}

	// Out of range thread counts fall back to one thread.
	t.Setenv(envThreads, "1000")
	if opt = DefaultOptions(); opt.Threads != 1 {
		t.Fatalf("expected 1 thread, got %d", opt.Threads)
	}

	// Variables changed after the first read are seen, and flags override them.
	t.Setenv(envThreads, "2")
	t.Setenv(envBinary, "1")
	t.Setenv(envOut, "b.s")
	if opt, err = parseArgs([]string{"-o", "c.s", "prog.mir"}); err != nil {
		t.Fatal(err)
	}
	if opt.Threads != 2 || !opt.Binary || opt.Out != "c.s" {
		t.Fatalf("expected 2 threads, binary output and output c.s, got %+v", opt)
	}
}

// TestStack verifies the LIFO order of Stack and its top down indexing.
func TestStack(t *testing.T) {
	s := Stack[int]{}
	if _, ok := s.Pop(); ok {
		t.Fatal("expected empty stack")
	}
	for i1 := 1; i1 <= 3; i1++ {
		s.Push(i1)
	}
	exp := []struct {
		n int
		v int
	}{
		{n: 1, v: 3},
		{n: 2, v: 2},
		{n: 3, v: 1},
	}
	for _, e1 := range exp {
		if v, ok := s.Get(e1.n); !ok || v != e1.v {
			t.Errorf("expected element %d to be %d, got %d", e1.n, e1.v, v)
		}
	}
	if _, ok := s.Get(4); ok {
		t.Error("expected Get out of range to fail")
	}
	if v, _ := s.Peek(); v != 3 || s.Size() != 3 {
		t.Errorf("expected top 3 of 3 elements, got %d of %d", v, s.Size())
	}
	for i1 := 3; i1 >= 1; i1-- {
		if v, ok := s.Pop(); !ok || v != i1 {
			t.Errorf("expected %d, got %d", i1, v)
		}
	}
	if s.Size() != 0 {
		t.Errorf("expected empty stack, got %d elements", s.Size())
	}
}

// TestPerror verifies that errors appended by concurrent workers are all collected.
func TestPerror(t *testing.T) {
	pe := NewPerror(4)
	wg := sync.WaitGroup{}
	wg.Add(8)
	for i1 := 0; i1 < 8; i1++ {
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				pe.Append(errors.New("failed"))
			} else {
				pe.Append(nil)
			}
		}(i1)
	}
	wg.Wait()
	pe.Stop()
	if pe.Len() != 4 || len(pe.Errors()) != 4 {
		t.Fatalf("expected 4 errors, got %d", pe.Len())
	}
	if pe.Err() == nil {
		t.Fatal("expected joined error")
	}

	empty := NewPerror(0)
	empty.Stop()
	if empty.Err() != nil {
		t.Fatalf("expected no error, got %s", empty.Err())
	}
}

// TestLabel verifies label names of jump targets.
func TestLabel(t *testing.T) {
	if s := Label("main", 12); s != "main$12" {
		t.Fatalf("expected main$12, got %s", s)
	}
}

// TestWriter verifies the instruction formats of Writer and that WriteTo empties the buffer.
func TestWriter(t *testing.T) {
	w := Writer{}
	w.Label("f")
	w.Ins0("ret")
	w.Ins2("mov", "eax", "ebx")
	w.Directive("\tglobal %s", "f")
	exp := "f:\n\tret\n\tmov\teax, ebx\n\tglobal f\n"
	if w.String() != exp {
		t.Fatalf("expected %q, got %q", exp, w.String())
	}

	path := filepath.Join(t.TempDir(), "out.s")
	out, closeOut, err := CreateOutput(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteTo(out); err != nil {
		t.Fatal(err)
	}
	if err := closeOut(); err != nil {
		t.Fatal(err)
	}
	if len(w.String()) != 0 {
		t.Errorf("expected empty buffer, got %q", w.String())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != exp {
		t.Fatalf("expected file content %q, got %q", exp, string(b))
	}
}
