package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"

	"ccgen/src/backend"
	"ccgen/src/frontend"
	"ccgen/src/ir"
	"ccgen/src/ir/llvm"
	"ccgen/src/util"
)

func main() {
	// Parse command line arguments.
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}

	// Read source code.
	src, err := util.ReadSource(opt)
	if err != nil {
		fmt.Printf("Could not read source code: %s\n", err)
		os.Exit(1)
	}

	// If -ts flag was passed: output token stream and exit.
	if opt.TokenStream {
		if err := frontend.TokenStream(src, os.Stdout); err != nil {
			fmt.Printf("Syntax error: %s\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Read middle code.
	name := filepath.Base(opt.Src)
	if len(opt.Src) == 0 {
		name = "stdin"
	}
	m, err := frontend.Parse(name, src)
	if err != nil {
		fmt.Printf("Parse error: %s\n", err)
		os.Exit(1)
	}

	// Assign frame offsets and aggregate layouts.
	if opt.NaturalLayout {
		m.Arrange(ir.NaturalLayout{})
	} else {
		l, err := llvm.NewLayout()
		if err != nil {
			fmt.Printf("Error reported by LLVM: %s\n", err)
			os.Exit(1)
		}
		if opt.Verbose {
			fmt.Printf("data layout %s\n", l)
		}
		m.Arrange(l)
		l.Dispose()
	}

	if opt.Dump {
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, MaxDepth: 4}
		cfg.Dump(m.Statics, m.Externs)
		fmt.Print(m.String())
	}

	// Generate code.
	if err := run(opt, m); err != nil {
		fmt.Printf("Code generation error: %s\n", err)
		os.Exit(1)
	}
}

// run generates the code of Module m and writes it to the outputs named by opt.
func run(opt util.Options, m *ir.Module) error {
	w, closeOut, err := util.CreateOutput(opt.Out)
	if err != nil {
		return err
	}
	out := backend.Output{Text: w, Code: w}

	// The relocation listing of binary output is written next to the code, or to stdout after it.
	closeRel := func() error { return nil }
	if opt.Binary {
		out.Relocations = os.Stdout
		if len(opt.Out) > 0 {
			if out.Relocations, closeRel, err = util.CreateOutput(opt.Out + ".rel"); err != nil {
				_ = closeOut()
				return err
			}
		}
	}

	stats, err := backend.GenerateAssembler(opt, m, out)
	if err2 := closeOut(); err == nil {
		err = err2
	}
	if err2 := closeRel(); err == nil {
		err = err2
	}
	if err != nil {
		return err
	}

	if opt.Verbose {
		total := 0
		for _, e1 := range stats {
			fmt.Printf("%-20s %5d instructions %5d tracks %3d evictions %2d passes %6d bytes\n",
				e1.Function, e1.Instructions, e1.Tracks, e1.Evictions, e1.Passes, e1.Size)
			total += e1.Size
		}
		fmt.Printf("%d functions, %d bytes\n", len(stats), total)
	}
	return nil
}
