// Package llvm answers data layout queries of the middle code types using the target data of the system installed
// LLVM runtime.
package llvm

import (
	"fmt"
	"sync"

	"tinygo.org/x/go-llvm"

	"ccgen/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Layout implements ir.Layout with the target data of an LLVM x86-64 target machine. Layout is safe for concurrent
// use.
type Layout struct {
	ctx   llvm.Context           // Context owning the LLVM types.
	tm    llvm.TargetMachine     // Target machine of the x86-64 triple.
	td    llvm.TargetData        // Data layout of the target machine.
	types map[*ir.Type]llvm.Type // Cache of translated types.
	sync.Mutex
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	triple = "x86_64-pc-linux-gnu" // Target triple of the generated code.
	cpu    = "generic"             // Target CPU.
)

// ---------------------
// ----- Functions -----
// ---------------------

// NewLayout creates the target machine of the x86-64 triple and returns its data layout. Dispose must be called
// when the Layout is no longer needed.
func NewLayout() (*Layout, error) {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllTargets()

	t, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return nil, fmt.Errorf("no LLVM target for %s: %w", triple, err)
	}
	features := "" // The generated code only needs the base instruction set.
	tm := t.CreateTargetMachine(triple, cpu, features,
		llvm.CodeGenLevelNone,
		llvm.RelocDefault,
		llvm.CodeModelDefault)

	return &Layout{
		ctx:   llvm.NewContext(),
		tm:    tm,
		td:    tm.CreateTargetData(),
		types: make(map[*ir.Type]llvm.Type),
	}, nil
}

// Dispose releases the LLVM objects of l.
func (l *Layout) Dispose() {
	l.td.Dispose()
	l.tm.Dispose()
	l.ctx.Dispose()
}

// String returns the LLVM data layout string of the target.
func (l *Layout) String() string {
	return l.td.String()
}

// SizeOf returns the allocation size of Type t, including tail padding.
func (l *Layout) SizeOf(t *ir.Type) int {
	if t.Sort == ir.Void {
		return 0
	}
	l.Lock()
	defer l.Unlock()
	return int(l.td.TypeAllocSize(l.llvmType(t)))
}

// AlignOf returns the ABI alignment of Type t.
func (l *Layout) AlignOf(t *ir.Type) int {
	if t.Sort == ir.Void {
		return 1
	}
	l.Lock()
	defer l.Unlock()
	return l.td.ABITypeAlignment(l.llvmType(t))
}

// llvmType returns the LLVM type of t. The caller must hold the lock of l.
func (l *Layout) llvmType(t *ir.Type) llvm.Type {
	if lt, ok := l.types[t]; ok {
		return lt
	}

	var lt llvm.Type
	switch t.Sort {
	case ir.Void, ir.SignedChar, ir.UnsignedChar:
		lt = l.ctx.Int8Type()
	case ir.SignedShort, ir.UnsignedShort:
		lt = l.ctx.Int16Type()
	case ir.SignedInt, ir.UnsignedInt:
		lt = l.ctx.Int32Type()
	case ir.SignedLong, ir.UnsignedLong:
		lt = l.ctx.Int64Type()
	case ir.Float:
		lt = l.ctx.FloatType()
	case ir.Double:
		lt = l.ctx.DoubleType()
	case ir.LongDouble:
		lt = l.ctx.X86FP80Type()
	case ir.Pointer, ir.FunctionSort:
		// Functions are only stored by address.
		lt = llvm.PointerType(l.ctx.Int8Type(), 0)
	case ir.Array:
		lt = llvm.ArrayType(l.llvmType(t.Elem), t.Count)
	case ir.Struct:
		members := make([]llvm.Type, len(t.Members))
		for i1, e1 := range t.Members {
			members[i1] = l.llvmType(e1)
		}
		lt = l.ctx.StructType(members, false)
	case ir.Union:
		lt = l.unionType(t)
	default:
		panic(fmt.Sprintf("no LLVM type for sort %s", t.Sort))
	}
	l.types[t] = lt
	return lt
}

// unionType returns a struct of the most aligned member of union t padded with bytes to the size of its largest
// member.
func (l *Layout) unionType(t *ir.Type) llvm.Type {
	if len(t.Members) == 0 {
		return l.ctx.StructType(nil, false)
	}
	var aligned llvm.Type
	align, size := 0, uint64(0)
	for _, e1 := range t.Members {
		lt := l.llvmType(e1)
		if a := l.td.ABITypeAlignment(lt); a > align {
			align, aligned = a, lt
		}
		if s := l.td.TypeAllocSize(lt); s > size {
			size = s
		}
	}
	members := []llvm.Type{aligned}
	if pad := size - l.td.TypeAllocSize(aligned); pad > 0 {
		members = append(members, llvm.ArrayType(l.ctx.Int8Type(), int(pad)))
	}
	return l.ctx.StructType(members, false)
}
