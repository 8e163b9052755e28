package x86

import (
	"sort"

	"ccgen/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// SystemCode describes the operating system services a program may request.
type SystemCode interface {
	Service(name string) (Service, bool) // Returns the service called name.
}

// Service is one operating system service: the number identifying it and the register classes of its
// arguments, its result and the registers the trap destroys.
type Service struct {
	Number   int     // Service number, passed in the class of Result.
	Args     []Class // Argument registers, in argument order.
	Result   Class   // Register holding the result.
	Clobbers []Class // Registers destroyed by the trap, other than Result.
}

// LinuxSystemCode provides the Linux x86-64 system calls.
type LinuxSystemCode struct{}

// sysCall is the system call being set up.
type sysCall struct {
	name    string   // Name of the service.
	service Service  // Service called.
	args    []*Track // Argument values, indexed by argument position.
}

// ---------------------
// ----- Constants -----
// ---------------------

// exitService is the service ending the program when main returns.
const exitService = "exit"

// -------------------
// ----- Globals -----
// -------------------

// linuxArgs and linuxClobbers are the argument registers and the registers destroyed by syscall on Linux.
var (
	linuxArgs     = []Class{ClassDI, ClassSI, ClassD}
	linuxClobbers = []Class{ClassC}
)

// linuxServices maps service names to Linux x86-64 system call numbers.
var linuxServices = map[string]struct {
	number int
	args   int
}{
	"read":   {0, 3},
	"write":  {1, 3},
	"open":   {2, 3},
	"close":  {3, 1},
	"lseek":  {8, 3},
	"exit":   {60, 1},
	"rename": {82, 2},
	"unlink": {87, 1},
}

// ---------------------
// ----- Functions -----
// ---------------------

// Service returns the Linux system call called name.
func (LinuxSystemCode) Service(name string) (Service, bool) {
	s, ok := linuxServices[name]
	if !ok {
		return Service{}, false
	}
	return Service{
		Number:   s.number,
		Args:     linuxArgs[:s.args],
		Result:   ClassA,
		Clobbers: linuxClobbers,
	}, true
}

// Services returns the names of the Linux system calls, sorted.
func (LinuxSystemCode) Services() []string {
	names := make([]string, 0, len(linuxServices))
	for k := range linuxServices {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// service returns the service called name, aborting generation if the system provides none.
func (g *generator) service(name string) Service {
	if g.sys == nil {
		fatal("system call %s without system services", name)
	}
	s, ok := g.sys.Service(name)
	if !ok {
		fatal("unknown system call %s", name)
	}
	return s
}

// sysInit starts setting up a system call. The ellipse register of a variadic function is saved, since the
// argument registers include it.
func (g *generator) sysInit(in *ir.Instruction) {
	if g.sysCall != nil {
		fatal("system call %s started inside system call %s", in.Name(0), g.sysCall.name)
	}
	s := g.service(in.Name(0))
	g.sysCall = &sysCall{name: in.Name(0), service: s, args: make([]*Track, len(s.Args))}
	if g.fn.IsVariadic() {
		g.reference(EllipseCell)
		g.emit(Mov, 0, Memory{Name: EllipseCell}, EllipseRegister)
	}
}

// sysParam evaluates an argument of the system call being set up. Arguments are widened to 64 bits and moved to
// their registers by sys_call, after every argument has been evaluated.
func (g *generator) sysParam(in *ir.Instruction) {
	c := g.sysCall
	if c == nil || c.name != in.Name(0) {
		fatal("argument of system call %s outside of its setup", in.Name(0))
	}
	i := in.Int(1)
	if i < 0 || i >= len(c.args) {
		fatal("system call %s takes %d argument(s), got argument %d", c.name, len(c.args), i)
	}
	v := in.Symbol(2)
	if !v.Type.IsIntegralOrPointer() && !v.Type.IsArray() {
		fatal("system call argument %s of type %s", v, v.Type)
	}
	if v.Type.IsArray() {
		c.args[i] = g.load(v, NoRegister)
		return
	}
	c.args[i] = g.widen(v, pointerSize)
}

// sysCallEmit emits the system call set up since sys_init and takes its result.
func (g *generator) sysCallEmit(in *ir.Instruction) {
	c := g.sysCall
	if c == nil || c.name != in.Name(0) {
		fatal("system call %s was not set up", in.Name(0))
	}
	for i1, e1 := range c.args {
		if e1 == nil {
			fatal("argument %d of system call %s missing", i1, c.name)
		}
	}
	g.sysCall = nil
	g.trap(c.service, c.args, in.Symbol(1))
}

// exit ends the program with the return value of main, or zero.
func (g *generator) exit() {
	status := g.returnTrack
	if status == nil {
		status = g.newTrack(nil, 4)
		g.emit(Xor, 0, status, status)
	}
	g.trap(g.service(exitService), []*Track{status}, nil)
}

// trap moves the arguments to the registers of service s, emits syscall and stores the result in res. The live
// map is empty afterwards, and a variadic function's ellipse register is restored.
func (g *generator) trap(s Service, args []*Track, res *ir.Symbol) {
	fixed := make([]*Track, 0, len(args)+len(s.Clobbers)+1)
	for i1, e1 := range args {
		t := g.fixedTrack(s.Args[i1].Register(e1.Size()))
		g.emit(Mov, 0, t, e1)
		fixed = append(fixed, t)
	}
	number := g.fixedTrack(s.Result.Register(4))
	g.emit(Mov, 0, number, Immediate(s.Number))
	fixed = append(fixed, number)
	for _, e1 := range s.Clobbers {
		fixed = append(fixed, g.fixedTrack(e1.Register(pointerSize)))
	}
	g.emit(Syscall, 0)
	for _, e1 := range fixed {
		g.implicit(e1)
	}
	if res != nil {
		size := trackSize(res)
		t := g.newTrack(res, size)
		g.emit(Mov, 0, t, s.Result.Register(size))
		g.live = make(map[*ir.Symbol]*Track)
		g.result(res, t)
	} else {
		g.live = make(map[*ir.Symbol]*Track)
	}
	if g.fn.IsVariadic() {
		g.emit(Mov, 0, EllipseRegister, Memory{Name: EllipseCell})
	}
}
