package ir

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Function holds the middle code of one function together with the metadata the backend needs from the symbol
// table: its type, parameter layout and local variables.
type Function struct {
	Symbol    *Symbol       // Function symbol. Its type carries the return type and the variadic flag.
	Params    []*Symbol     // Parameters, in declaration order.
	Locals    []*Symbol     // Non-temporary local variables.
	Code      []Instruction // Middle code.
	FrameSize int           // Bytes used by header, parameters and locals. Assigned by Module.Arrange.
}

// Module is a translation unit: functions, static variables and external declarations.
type Module struct {
	Name      string      // Name of module, usually the source file name.
	Functions []*Function // Functions defined in the module.
	Statics   []*Symbol   // Static variables defined in the module.
	Externs   []*Symbol   // Symbols defined elsewhere.
}

// ---------------------
// ----- Constants -----
// ---------------------

// Offsets of the activation record header. Every frame starts with the return address, the caller's frame
// pointer and the caller's ellipse pointer.
const (
	ReturnAddressOffset = 0
	RegularFrameOffset  = PointerSize
	VariadicFrameOffset = 2 * PointerSize
	FunctionHeaderSize  = 3 * PointerSize
)

// mainFunctionName is the name of the program entry point.
const mainFunctionName = "main"

// ---------------------
// ----- Functions -----
// ---------------------

// Name returns the name of Function f.
func (f *Function) Name() string {
	return f.Symbol.Name
}

// IsMain returns true if f is the program entry point.
func (f *Function) IsMain() bool {
	return f.Symbol.Name == mainFunctionName
}

// IsVariadic returns true if f takes extra arguments.
func (f *Function) IsVariadic() bool {
	return f.Symbol.Type.Variadic
}

// ReturnType returns the return type of f.
func (f *Function) ReturnType() *Type {
	return f.Symbol.Type.Elem
}

// String returns the middle code listing of Function f.
func (f *Function) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("func %s(", f.Name()))
	for i1, e1 := range f.Params {
		if i1 > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s %s", e1.Name, e1.Type.String()))
	}
	if f.IsVariadic() {
		if len(f.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteString(fmt.Sprintf(") %s\n", f.ReturnType().String()))
	for _, e1 := range f.Locals {
		sb.WriteString(fmt.Sprintf("var %s %s\n", e1.Name, e1.Type.String()))
	}
	declared := make(map[*Symbol]bool)
	for i1 := range f.Code {
		for _, e2 := range f.Code[i1].Operands {
			switch v := e2.(type) {
			case *Symbol:
				declareTemporary(&sb, v, declared)
			case SymbolSet:
				for _, e3 := range v {
					declareTemporary(&sb, e3, declared)
				}
			}
		}
	}
	for i1 := range f.Code {
		sb.WriteString(fmt.Sprintf("%4d\t%s\n", i1, f.Code[i1].String()))
	}
	sb.WriteString("end\n")
	return sb.String()
}

// declareTemporary writes the temp or deref declaration of s unless s is a named variable or already declared.
// The pointer of a dereference is declared first.
func declareTemporary(sb *strings.Builder, s *Symbol, declared map[*Symbol]bool) {
	if s == nil || !s.Temporary || declared[s] {
		return
	}
	declared[s] = true
	if !s.IsDereference() {
		sb.WriteString(fmt.Sprintf("temp %s %s\n", s.Name, s.Type.String()))
		return
	}
	declareTemporary(sb, s.AddressSymbol, declared)
	sb.WriteString(fmt.Sprintf("deref %s %s = %s", s.Name, s.Type.String(), s.AddressSymbol.Name))
	switch {
	case s.AddressOffset > 0:
		sb.WriteString(fmt.Sprintf(" + %d", s.AddressOffset))
	case s.AddressOffset < 0:
		sb.WriteString(fmt.Sprintf(" - %d", -s.AddressOffset))
	}
	sb.WriteRune('\n')
}

// Function returns the function named name, or nil.
func (m *Module) Function(name string) *Function {
	for _, e1 := range m.Functions {
		if e1.Name() == name {
			return e1
		}
	}
	return nil
}

// String returns the middle code listing of Module m.
func (m *Module) String() string {
	sb := strings.Builder{}
	for _, e1 := range m.Externs {
		sb.WriteString(fmt.Sprintf("extern %s %s\n", e1.Name, e1.Type.String()))
	}
	for _, e1 := range m.Statics {
		sb.WriteString(fmt.Sprintf("static %s %s\n", e1.Name, e1.Type.String()))
	}
	for _, e1 := range m.Functions {
		sb.WriteString(e1.String())
	}
	return sb.String()
}
