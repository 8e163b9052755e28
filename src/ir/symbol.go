package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Storage differentiates where the value of a Symbol lives.
type Storage uint8

// Symbol is an IR value: a variable, a parameter, a temporary, a constant or a function.
type Symbol struct {
	Name          string  // Name of symbol. Statics and externs are referenced by this name in the output.
	Type          *Type   // C type of the symbol.
	Storage       Storage // Storage class of the symbol.
	Temporary     bool    // Set true for temporaries produced by the middle code generator.
	Offset        int     // Frame offset of Auto and Param symbols, assigned by Module.Arrange.
	Constant      bool    // Set true if the symbol is a compile time constant.
	IntValue      int64   // Value of an integral or pointer constant.
	FloatValue    float64 // Value of a floating constant.
	AddressSymbol *Symbol // Pointer symbol, if this symbol denotes a dereferenced location.
	AddressOffset int     // Byte offset added to AddressSymbol.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Auto   Storage = iota // Local variable or temporary in the function's frame.
	Param                 // Function parameter in the function's frame.
	Static                // Variable or function defined in this module.
	Extern                // Variable or function defined elsewhere.
)

// -------------------
// ----- Globals -----
// -------------------

// storageNames provides print friendly strings for Storage constants.
var storageNames = [...]string{
	"auto",
	"param",
	"static",
	"extern",
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewTemporary returns a temporary Symbol of Type t.
func NewTemporary(name string, t *Type) *Symbol {
	return &Symbol{Name: name, Type: t, Storage: Auto, Temporary: true}
}

// NewIntConstant returns an integral constant Symbol of Type t.
func NewIntConstant(v int64, t *Type) *Symbol {
	return &Symbol{Name: strconv.FormatInt(v, 10), Type: t, Storage: Static, Constant: true, IntValue: v}
}

// NewFloatConstant returns a floating constant Symbol of Type t.
func NewFloatConstant(v float64, t *Type) *Symbol {
	return &Symbol{Name: strconv.FormatFloat(v, 'g', -1, 64), Type: t, Storage: Static, Constant: true, FloatValue: v}
}

// String provides a print friendly string of Storage s.
func (s Storage) String() string {
	return storageNames[s]
}

// String returns the middle code spelling of Symbol s.
func (s *Symbol) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.Constant {
		// Constants other than int and double carry their type.
		switch {
		case s.Type.IsFloating() && s.Type.Sort == Double:
			return "#" + floatText(s.FloatValue)
		case s.Type.IsFloating():
			return fmt.Sprintf("#%s:%s", floatText(s.FloatValue), s.Type)
		case s.Type.Sort == SignedInt:
			return fmt.Sprintf("#%d", s.IntValue)
		}
		return fmt.Sprintf("#%d:%s", s.IntValue, s.Type)
	}
	return s.Name
}

// IsAutoOrParam returns true if the symbol is stored in the function's frame.
func (s *Symbol) IsAutoOrParam() bool {
	return !s.Constant && s.AddressSymbol == nil && (s.Storage == Auto || s.Storage == Param)
}

// IsStaticOrExtern returns true if the symbol is stored at a link time address.
func (s *Symbol) IsStaticOrExtern() bool {
	return !s.Constant && s.AddressSymbol == nil && (s.Storage == Static || s.Storage == Extern)
}

// IsDereference returns true if the symbol denotes the location pointed to by AddressSymbol.
func (s *Symbol) IsDereference() bool {
	return s.AddressSymbol != nil
}

// IsIntConstant returns true if the symbol is an integral or pointer constant.
func (s *Symbol) IsIntConstant() bool {
	return s.Constant && s.Type.IsIntegralOrPointer()
}

// IsIntConstantValue returns true if the symbol is an integral constant equal to v.
func (s *Symbol) IsIntConstantValue(v int64) bool {
	return s.IsIntConstant() && s.IntValue == v
}

// floatText returns v in a form read back as a floating constant.
func floatText(v float64) string {
	f := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(f, ".eIN") {
		return f
	}
	return f + ".0"
}
