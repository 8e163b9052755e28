// Package backend drives the x86 code generation of a module: validation, generation, register allocation and
// branch resolution of every function, and the ordered output of the results.
package backend

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"ccgen/src/backend/regalloc"
	"ccgen/src/backend/x86"
	"ccgen/src/ir"
	"ccgen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Output receives the generated program. Text is written in assembly mode, Code and Relocations in binary mode.
type Output struct {
	Text        io.Writer // Assembly text.
	Code        io.Writer // Machine code of every function, in module order.
	Relocations io.Writer // Listing of function offsets and relocations of Code.
}

// Stats holds the statistics of one generated function.
type Stats struct {
	Function     string // Function name.
	Instructions int    // Number of generated instructions.
	Tracks       int    // Number of Tracks created.
	Evictions    int    // Number of Tracks moved out of a register required elsewhere.
	Passes       int    // Number of branch relaxation passes.
	Size         int    // Bytes of machine code.
}

// result is the outcome of the generation of one function.
type result struct {
	code   *x86.Code   // Allocated and relaxed code.
	text   util.Writer // Assembly text, in text mode.
	binary *x86.Binary // Machine code, in binary mode.
}

// ---------------------
// ----- Functions -----
// ---------------------

// GenerateAssembler generates the x86 code of every function of Module m and writes it to out in module order.
// Functions are generated by opt.Threads worker threads. The statistics of every function are returned.
func GenerateAssembler(opt util.Options, m *ir.Module, out Output) ([]Stats, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	results := make([]result, len(m.Functions))

	if opt.Threads > 1 && len(m.Functions) > 1 {
		// Parallel.
		t := opt.Threads
		l := len(m.Functions)
		if t > l {
			t = l
		}
		n := l / t
		res := l % t

		pe := util.NewPerror(l)
		wg := sync.WaitGroup{}
		wg.Add(t)

		start := 0
		end := n
		for i1 := 0; i1 < t; i1++ {
			if i1 < res {
				// This thread does one extra residual function.
				end++
			}
			go func(start, end int) {
				defer wg.Done()
				for i2 := start; i2 < end; i2++ {
					pe.Append(generate(opt, m.Functions[i2], &results[i2]))
				}
			}(start, end)
			start = end
			end += n
		}
		wg.Wait()
		pe.Stop()
		if pe.Len() > 0 {
			return nil, pe.Err()
		}
	} else {
		// Sequential.
		for i1, e1 := range m.Functions {
			if err := generate(opt, e1, &results[i1]); err != nil {
				return nil, err
			}
		}
	}

	stats := make([]Stats, len(results))
	for i1, e1 := range results {
		c := e1.code
		stats[i1] = Stats{
			Function:     c.Function.Name(),
			Instructions: len(c.Instructions),
			Tracks:       len(c.Tracks),
			Evictions:    c.Evictions,
			Passes:       c.Passes,
			Size:         c.Size(),
		}
		if opt.Dump {
			fmt.Print(c.String())
		}
	}

	if opt.Binary {
		return stats, writeBinary(m, results, out)
	}
	return stats, writeText(m, results, out.Text)
}

// validate checks the middle code of every function of m.
func validate(m *ir.Module) error {
	errs := make([]error, 0, len(m.Functions))
	for _, e1 := range m.Functions {
		if err := ir.Validate(e1); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// generate generates, allocates and relaxes the code of Function f into res.
func generate(opt util.Options, f *ir.Function, res *result) error {
	c, err := x86.Generate(f, x86.LinuxSystemCode{})
	if err != nil {
		return err
	}
	if err := regalloc.Allocate(c, x86.CreateRegisterFile(f.IsVariadic())); err != nil {
		return fmt.Errorf("register allocation failed: %w", err)
	}
	if err := c.Relax(); err != nil {
		return err
	}
	res.code = c
	if opt.Binary {
		res.binary, err = c.Binary()
		return err
	}
	return c.Text(&res.text)
}

// externals returns the symbols referenced by the generated code of results that m does not define, sorted.
func externals(m *ir.Module, results []result) []string {
	defined := make(map[string]bool)
	for _, e1 := range m.Functions {
		defined[e1.Name()] = true
	}
	for _, e1 := range m.Statics {
		defined[e1.Name] = true
	}
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, e1 := range results {
		for _, e2 := range e1.code.References {
			if !defined[e2] && !seen[e2] {
				seen[e2] = true
				names = append(names, e2)
			}
		}
	}
	sort.Strings(names)
	return names
}

// writeText writes the assembly text of the module: global and extern directives followed by the functions.
func writeText(m *ir.Module, results []result, out io.Writer) error {
	w := util.Writer{}
	if len(m.Name) > 0 {
		w.Directive("; %s", m.Name)
	}
	for _, e1 := range m.Functions {
		w.Directive("\tglobal %s", e1.Name())
	}
	for _, e1 := range externals(m, results) {
		w.Directive("\textern %s", e1)
	}
	w.Directive("\tsection .text")
	if _, err := w.WriteTo(out); err != nil {
		return err
	}
	for i1 := range results {
		if _, err := results[i1].text.WriteTo(out); err != nil {
			return err
		}
	}
	return nil
}

// writeBinary writes the machine code of the module and a listing of function offsets and relocations relative to
// the start of the code.
func writeBinary(m *ir.Module, results []result, out Output) error {
	w := util.Writer{}
	for _, e1 := range externals(m, results) {
		w.Directive("extern\t%s", e1)
	}
	base := 0
	for _, e1 := range results {
		b := e1.binary
		w.Directive("function\t%s\t%d\t%d", e1.code.Function.Name(), base, len(b.Bytes))
		for _, e2 := range sortedKeys(b.AccessMap) {
			w.Directive("access\t%d\t%s", base+e2, b.AccessMap[e2])
		}
		for _, e2 := range sortedKeys(b.CallMap) {
			w.Directive("call\t%d\t%s", base+e2, b.CallMap[e2])
		}
		for _, e2 := range b.ReturnSet {
			w.Directive("return\t%d", base+e2)
		}
		if _, err := out.Code.Write(b.Bytes); err != nil {
			return err
		}
		base += len(b.Bytes)
	}
	_, err := w.WriteTo(out.Relocations)
	return err
}

// sortedKeys returns the keys of m in increasing order.
func sortedKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
