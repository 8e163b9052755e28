package x86

import (
	"fmt"
	"sort"
	"strings"

	"ccgen/src/ir"
	"ccgen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Code is the x86 code generated for one function.
type Code struct {
	Function     *ir.Function   // Source function.
	Instructions []*Instruction // Generated instructions.
	Tracks       []*Track       // Every Track created, indexed by id.
	References   []string       // Static and external symbols referenced, sorted.
	Evictions    int            // Number of tracks moved out of a register required elsewhere.
	Passes       int            // Number of branch relaxation passes.
	positions    []int          // Index of the first instruction generated for every middle code instruction.
	offsets      []int          // Byte offset of every instruction once relaxed, and the total size.
	linked       bool           // Set true once jump targets index Instructions.
}

// generator holds the state of the generation of one function. The state is owned by a single goroutine.
type generator struct {
	fn          *ir.Function          // Function being generated.
	code        *Code                 // Output.
	sys         SystemCode            // Operating system services.
	live        map[*ir.Symbol]*Track // Temporaries alive in a register.
	addresses   map[*ir.Symbol]*Track // Dereferenced symbols and the tracks holding their address.
	addrOrder   []*ir.Symbol          // Keys of addresses in insertion order.
	lastUse     map[*ir.Symbol]int    // Index of the last middle code instruction referring to a symbol.
	records     util.Stack[*record]   // Activation records of calls being set up.
	floatDepth  int                   // Number of values on the x87 register stack.
	returnTrack *Track                // Track holding the return value, read implicitly by the return jump.
	sysCall     *sysCall              // System call being set up, or nil.
	references  map[string]bool       // Static and external symbols referenced.
	index       int                   // Index of the middle code instruction being generated.
}

// ---------------------
// ----- Constants -----
// ---------------------

// Link time symbols provided by the runtime.
const (
	StackTop      = "$StackTop"      // Top of the memory area holding activation records.
	ScratchCell   = "$Scratch"       // 16 byte cell for x87 conversions.
	ControlCell   = "$ControlWord"   // 2 byte cell for the x87 control word.
	EllipseCell   = "$EllipseSave"   // 8 byte cell preserving the ellipse register across system calls.
	truncateMode  = 0x0C00           // x87 rounding control: round toward zero.
	maxFloatDepth = 7                // Deepest x87 register stack allowed; one of the eight registers stays free.
	pointerSize   = ir.PointerSize
)

// ---------------------
// ----- Functions -----
// ---------------------

// Generate generates the x86 code of Function f. The Tracks of the returned Code are not yet allocated and jump
// targets index the middle code of f. Generate returns an *InternalError for malformed middle code and a
// *Diagnostic if the program exceeds a limit of the target.
func Generate(f *ir.Function, sys SystemCode) (c *Code, err error) {
	g := &generator{
		fn:         f,
		code:       &Code{Function: f, positions: make([]int, len(f.Code)+1)},
		sys:        sys,
		live:       make(map[*ir.Symbol]*Track),
		addresses:  make(map[*ir.Symbol]*Track),
		lastUse:    lastUses(f),
		references: make(map[string]bool),
	}
	defer func() {
		if r := recover(); r != nil {
			c = nil
			switch e := r.(type) {
			case *InternalError:
				e.Function = f.Name()
				if e.Index < 0 && g.index < len(f.Code) {
					e.Index = g.index
				}
				err = e
			case *Diagnostic:
				e.Function = f.Name()
				e.Index = g.index
				if g.index < len(f.Code) {
					e.Line = f.Code[g.index].Line
				}
				err = e
			default:
				panic(r)
			}
		}
	}()

	g.index = -1
	g.prologue()
	for i1 := range f.Code {
		g.index = i1
		g.code.positions[i1] = len(g.code.Instructions)
		g.prune()
		g.generate(&f.Code[i1])
	}
	g.index = len(f.Code)
	g.code.positions[len(f.Code)] = len(g.code.Instructions)

	if len(g.live) > 0 {
		names := make([]string, 0, len(g.live))
		for _, e1 := range g.sortedLive() {
			names = append(names, e1.symbol.Name)
		}
		fatal("temporaries alive at end of function: %s", strings.Join(names, ", "))
	}
	for k := range g.references {
		g.code.References = append(g.code.References, k)
	}
	sort.Strings(g.code.References)
	return g.code, nil
}

// generate generates the code of a single middle code instruction.
func (g *generator) generate(in *ir.Instruction) {
	switch in.Op {
	case ir.Empty:
	case ir.Assign:
		g.assign(in)
	case ir.Add, ir.Sub, ir.Mul, ir.Div, ir.Mod, ir.And, ir.Or, ir.Xor, ir.ShiftLeft, ir.ShiftRight:
		g.binary(in)
	case ir.Neg, ir.Not, ir.Plus:
		g.unary(in)
	case ir.Address:
		g.address(in)
	case ir.Deref:
		g.deref(in)
	case ir.IntToInt:
		g.intToInt(in)
	case ir.IntToFloat:
		g.pushFloat(in.Symbol(1))
	case ir.FloatToInt:
		g.popFloat(in.Symbol(0), true)
	case ir.Equal, ir.NotEqual, ir.Less, ir.LessEqual, ir.Greater, ir.GreaterEqual:
		g.relation(in)
	case ir.Goto:
		g.emit(Jmp, 0, Target(in.Target(0)))
	case ir.Case:
		g.switchCase(in)
	case ir.CaseEnd:
		g.caseEnd(in)
	case ir.PushFloat:
		g.pushFloat(in.Symbol(0))
	case ir.PopFloat:
		g.popFloat(in.Symbol(0), true)
	case ir.TopFloat:
		g.popFloat(in.Symbol(0), false)
	case ir.PopEmpty:
		g.emit(FstpST0, 0)
		g.floatPopped(1)
	case ir.PreCall:
		g.preCall(in)
	case ir.Parameter:
		g.parameter(in)
	case ir.Call:
		g.call(in)
	case ir.PostCall:
		g.postCall(in)
	case ir.SetReturn:
		g.setReturn(in)
	case ir.Return:
		g.ret()
	case ir.SysInit:
		g.sysInit(in)
	case ir.SysParam:
		g.sysParam(in)
	case ir.SysCall:
		g.sysCallEmit(in)
	case ir.FuncEnd:
		g.funcEnd()
	default:
		fatal("unsupported operator %s", in.Op)
	}
}

// emit appends an instruction and records the sites of its Track operands.
func (g *generator) emit(op Operator, size int, operands ...Operand) *Instruction {
	in := NewInstruction(op, size, operands...)
	idx := len(g.code.Instructions)
	g.code.Instructions = append(g.code.Instructions, in)
	for i1, e1 := range in.Operands {
		switch v := e1.(type) {
		case *Track:
			v.addSite(Site{Index: idx, Slot: i1})
		case Memory:
			if t, ok := v.Base.(*Track); ok {
				t.addSite(Site{Index: idx, Slot: i1, Base: true})
			}
		}
	}
	return in
}

// implicit records that the last emitted instruction reads or writes Track t without naming it.
func (g *generator) implicit(t *Track) {
	t.addSite(Site{Index: len(g.code.Instructions) - 1, Slot: -1})
}

// newTrack returns a new unbound Track.
func (g *generator) newTrack(s *ir.Symbol, size int) *Track {
	t := newTrack(len(g.code.Tracks), s, size)
	g.code.Tracks = append(g.code.Tracks, t)
	return t
}

// fixedTrack returns a new Track bound to the class of register r, after evicting live values from r.
func (g *generator) fixedTrack(r Register) *Track {
	g.checkRegister(nil, r)
	t := g.newTrack(nil, r.Size())
	t.Bind(r.Class())
	return t
}

// reference records a reference to a static or external symbol.
func (g *generator) reference(name string) {
	g.references[name] = true
}

// prologue emits the program entry sequence of main: the frame register is pointed at the activation record
// area, the x87 is set to truncate, and argc and argv are copied from the hardware stack.
func (g *generator) prologue() {
	if !g.fn.IsMain() {
		return
	}
	g.reference(StackTop)
	g.reference(ControlCell)
	g.emit(Mov, pointerSize, FrameRegister, Label{Name: StackTop})
	g.emit(Fnstcw, 0, Memory{Name: ControlCell})
	g.emit(Or, 2, Memory{Name: ControlCell}, Immediate(truncateMode))
	g.emit(Fldcw, 0, Memory{Name: ControlCell})
	if len(g.fn.Params) >= 1 {
		argc := g.fn.Params[0]
		t := g.newTrack(nil, argc.Type.Size())
		g.emit(Mov, 0, t, Memory{Base: StackRegister})
		g.emit(Mov, 0, Memory{Base: FrameRegister, Disp: argc.Offset}, t)
	}
	if len(g.fn.Params) >= 2 {
		argv := g.fn.Params[1]
		t := g.newTrack(nil, pointerSize)
		g.emit(Lea, 0, t, Memory{Base: StackRegister, Disp: pointerSize})
		g.emit(Mov, 0, Memory{Base: FrameRegister, Disp: argv.Offset}, t)
	}
}

// funcEnd ends the function. Control reaching the end of a function returns to the caller, or exits the program
// in main.
func (g *generator) funcEnd() {
	if g.records.Size() > 0 {
		fatal("%d call sequence(s) open at end of function", g.records.Size())
	}
	g.ret()
}

// prune forgets address tracks of dereferenced symbols that are not referred to again.
func (g *generator) prune() {
	kept := g.addrOrder[:0]
	for _, e1 := range g.addrOrder {
		if g.lastUse[e1] < g.index {
			delete(g.addresses, e1)
			continue
		}
		kept = append(kept, e1)
	}
	g.addrOrder = kept
}

// sortedLive returns the tracks of the live map ordered by id.
func (g *generator) sortedLive() []*Track {
	ts := make([]*Track, 0, len(g.live))
	for _, e1 := range g.live {
		ts = append(ts, e1)
	}
	sort.Slice(ts, func(i, j int) bool {
		return ts[i].id < ts[j].id
	})
	return ts
}

// lastUses returns the index of the last instruction of f referring to every symbol, including dereferenced
// symbols through their pointer.
func lastUses(f *ir.Function) map[*ir.Symbol]int {
	m := make(map[*ir.Symbol]int)
	for i1 := range f.Code {
		for _, e2 := range f.Code[i1].Operands {
			switch v := e2.(type) {
			case *ir.Symbol:
				m[v] = i1
			case ir.SymbolSet:
				for _, e3 := range v {
					m[e3] = i1
				}
			}
		}
	}
	return m
}

// String returns the assembly listing of c for debugging.
func (c *Code) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%s:\n", c.Function.Name()))
	for i1, e1 := range c.Instructions {
		sb.WriteString(fmt.Sprintf("%4d\t%s\n", i1, e1.String()))
	}
	return sb.String()
}
