package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/xyproto/env/v2"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the compiler configuration given on the command line. Defaults are read from the environment.
type Options struct {
	Src           string // Path to middle code source file.
	Out           string // Path to output file.
	Threads       int    // Thread count.
	Verbose       bool   // Set true if compiler should log statistical data to stdout.
	TokenStream   bool   // Set true if compiler should output token stream and exit.
	Binary        bool   // Set true to emit relocatable machine code instead of assembly text.
	Dump          bool   // Set true to dump the generated instructions of every function to stdout.
	NaturalLayout bool   // Set true to compute data layout without LLVM.
}

// ---------------------
// ----- Constants -----
// ---------------------

const maxThreads = 64 // Maximum threads allowed executing in parallel.
const appVersion = "ccgen x86-64 code generator 1.0"

// Environment variables providing option defaults.
const (
	envThreads = "CCGEN_THREADS"
	envVerbose = "CCGEN_VERBOSE"
	envOut     = "CCGEN_OUT"
	envBinary  = "CCGEN_BINARY"
)

// ---------------------
// ----- functions -----
// ---------------------

// DefaultOptions returns the options in effect when no flag is given. The environment is read anew on every call.
func DefaultOptions() Options {
	env.Load()
	opt := Options{
		Out:     env.Str(envOut),
		Threads: env.Int(envThreads, 1),
		Verbose: env.Bool(envVerbose),
		Binary:  env.Bool(envBinary),
	}
	if opt.Threads < 1 || opt.Threads > maxThreads {
		opt.Threads = 1
	}
	return opt
}

// ParseArgs parses command line arguments.
func ParseArgs() (Options, error) {
	return parseArgs(os.Args[1:])
}

// parseArgs parses the arguments args, excluding the program name. The last argument is the source file.
func parseArgs(args []string) (Options, error) {
	opt := DefaultOptions()
	if len(args) < 1 {
		return opt, nil
	}
	for i1 := 0; i1 < len(args)-1; i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			// Help and usage.
			printHelp()
			os.Exit(0)
		case "-b":
			// Relocatable machine code output.
			opt.Binary = true
		case "-dump":
			opt.Dump = true
		case "-nl":
			// Natural data layout.
			opt.NaturalLayout = true
		case "-o", "-t":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, fmt.Errorf("expected argument to %s, got new flag %s", args[i1], args[i1+1])
			}
			switch args[i1] {
			case "-o":
				// Output file.
				opt.Out = args[i1+1]
			case "-t":
				// Thread count.
				if t, err := strconv.Atoi(args[i1+1]); err == nil {
					if t > 0 && t <= maxThreads {
						opt.Threads = t
					} else {
						return opt, fmt.Errorf("thread count must be integer in range [1, %d]", maxThreads)
					}
				} else {
					return opt, fmt.Errorf("expected integer thread count, got: %s", args[i1+1])
				}
			}
			i1++
		case "-ts":
			// Output token stream
			opt.TokenStream = true
		case "-v", "--v", "-version", "--version":
			// Application version.
			fmt.Println(appVersion)
			os.Exit(0)
		case "-vb":
			// Verbose mode.
			opt.Verbose = true
		default:
			return opt, fmt.Errorf("unexpected flag: %s", args[i1])
		}
	}
	last := args[len(args)-1]
	switch last {
	case "-h", "--h", "-help", "--help":
		printHelp()
		os.Exit(0)
	case "-v", "--v", "-version", "--version":
		fmt.Println(appVersion)
		os.Exit(0)
	}
	if strings.HasPrefix(last, "-") {
		return opt, fmt.Errorf("expected path to source file, got flag %s", last)
	}
	opt.Src = last
	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "usage: ccgen [flags] file.mir")
	_, _ = fmt.Fprintln(w, "-b\tEmit relocatable machine code and a relocation listing instead of assembly text.")
	_, _ = fmt.Fprintln(w, "-dump\tDump the generated instructions of every function to stdout.")
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(w, "--h, --help")
	_, _ = fmt.Fprintln(w, "-nl\tCompute data layout without LLVM.")
	_, _ = fmt.Fprintf(w, "-o\tPath and name of the output file. Defaults to $%s or stdout.\n", envOut)
	_, _ = fmt.Fprintf(w, "-t\tNumber of threads to run in parallel. Must be in range [1, %d]. Defaults to $%s.\n",
		maxThreads, envThreads)
	_, _ = fmt.Fprintln(w, "-ts\tOutput the tokens of the source code and exit.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintln(w, "--v, --version")
	_, _ = fmt.Fprintf(w, "-vb\tVerbose mode: print compiler statistics to stdout. Defaults to $%s.\n", envVerbose)
	_ = w.Flush()
}
