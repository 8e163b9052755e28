// Package ir defines the middle code consumed by the x86 backend: types, symbols, three-address instructions and
// the functions and modules that hold them.
package ir

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Sort identifies the kind of a Type.
type Sort uint8

// Type describes the C type of a Symbol.
type Type struct {
	Sort     Sort    // Kind of type.
	Elem     *Type   // Element type of pointers and arrays, return type of functions.
	Count    int     // Number of elements of an array.
	Members  []*Type // Member types of structs and unions, parameter types of functions.
	Variadic bool    // Set true if a function type takes extra arguments (...).
	size     int     // Size of aggregates, assigned by Module.Arrange.
	offsets  []int   // Member offsets of aggregates, assigned by Module.Arrange.
	arranged bool    // Set true once size and offsets are assigned, also for empty aggregates.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Void Sort = iota
	SignedChar
	UnsignedChar
	SignedShort
	UnsignedShort
	SignedInt
	UnsignedInt
	SignedLong
	UnsignedLong
	Float
	Double
	LongDouble
	Pointer
	Array
	FunctionSort
	Struct
	Union
)

// PointerSize is the size of addresses on the target.
const PointerSize = 8

// LongDoubleSize is the number of bytes read and written by the x87 for a long double.
const LongDoubleSize = 10

// -------------------
// ----- Globals -----
// -------------------

// sortNames provides the middle code spelling of every Sort.
var sortNames = [...]string{
	Void:          "void",
	SignedChar:    "char",
	UnsignedChar:  "uchar",
	SignedShort:   "short",
	UnsignedShort: "ushort",
	SignedInt:     "int",
	UnsignedInt:   "uint",
	SignedLong:    "long",
	UnsignedLong:  "ulong",
	Float:         "float",
	Double:        "double",
	LongDouble:    "ldouble",
	Pointer:       "ptr",
	Array:         "array",
	FunctionSort:  "func",
	Struct:        "struct",
	Union:         "union",
}

// scalarSizes holds the size of every scalar Sort.
var scalarSizes = [...]int{
	Void:          0,
	SignedChar:    1,
	UnsignedChar:  1,
	SignedShort:   2,
	UnsignedShort: 2,
	SignedInt:     4,
	UnsignedInt:   4,
	SignedLong:    8,
	UnsignedLong:  8,
	Float:         4,
	Double:        8,
	LongDouble:    LongDoubleSize,
	Pointer:       PointerSize,
	FunctionSort:  PointerSize,
}

// Predefined scalar types shared by the reader and the backend.
var (
	VoidType          = &Type{Sort: Void}
	SignedCharType    = &Type{Sort: SignedChar}
	UnsignedCharType  = &Type{Sort: UnsignedChar}
	SignedShortType   = &Type{Sort: SignedShort}
	UnsignedShortType = &Type{Sort: UnsignedShort}
	SignedIntType     = &Type{Sort: SignedInt}
	UnsignedIntType   = &Type{Sort: UnsignedInt}
	SignedLongType    = &Type{Sort: SignedLong}
	UnsignedLongType  = &Type{Sort: UnsignedLong}
	FloatType         = &Type{Sort: Float}
	DoubleType        = &Type{Sort: Double}
	LongDoubleType    = &Type{Sort: LongDouble}
)

// ---------------------
// ----- Functions -----
// ---------------------

// ScalarType returns the shared Type of a scalar sort, or nil if s is not scalar.
func ScalarType(s Sort) *Type {
	switch s {
	case Void:
		return VoidType
	case SignedChar:
		return SignedCharType
	case UnsignedChar:
		return UnsignedCharType
	case SignedShort:
		return SignedShortType
	case UnsignedShort:
		return UnsignedShortType
	case SignedInt:
		return SignedIntType
	case UnsignedInt:
		return UnsignedIntType
	case SignedLong:
		return SignedLongType
	case UnsignedLong:
		return UnsignedLongType
	case Float:
		return FloatType
	case Double:
		return DoubleType
	case LongDouble:
		return LongDoubleType
	}
	return nil
}

// PointerTo returns a pointer type to elem.
func PointerTo(elem *Type) *Type {
	return &Type{Sort: Pointer, Elem: elem}
}

// ArrayOf returns an array type of n elements of type elem.
func ArrayOf(elem *Type, n int) *Type {
	return &Type{Sort: Array, Elem: elem, Count: n}
}

// FunctionOf returns a function type.
func FunctionOf(ret *Type, params []*Type, variadic bool) *Type {
	return &Type{Sort: FunctionSort, Elem: ret, Members: params, Variadic: variadic}
}

// String returns the middle code spelling of Sort s.
func (s Sort) String() string {
	if int(s) < len(sortNames) {
		return sortNames[s]
	}
	return fmt.Sprintf("sort(%d)", s)
}

// Size returns the number of bytes occupied by a value of Type t. Aggregates must have been arranged by
// Module.Arrange, else their size is computed with natural alignment and stored, which is not safe for
// concurrent use.
func (t *Type) Size() int {
	switch t.Sort {
	case Array:
		return t.Count * t.Elem.Size()
	case Struct, Union:
		if !t.arranged {
			NaturalLayout{}.arrange(t)
		}
		return t.size
	}
	return scalarSizes[t.Sort]
}

// MemberOffset returns the byte offset of member i of a struct or union.
func (t *Type) MemberOffset(i int) int {
	if !t.arranged {
		NaturalLayout{}.arrange(t)
	}
	return t.offsets[i]
}

// SetLayout assigns the size and member offsets of an aggregate Type.
func (t *Type) SetLayout(size int, offsets []int) {
	t.size = size
	t.offsets = offsets
	t.arranged = true
}

// IsIntegral returns true for the char, short, int and long sorts.
func (t *Type) IsIntegral() bool {
	return t.Sort >= SignedChar && t.Sort <= UnsignedLong
}

// IsFloating returns true for float, double and long double.
func (t *Type) IsFloating() bool {
	return t.Sort == Float || t.Sort == Double || t.Sort == LongDouble
}

// IsSigned returns true for the signed integral sorts.
func (t *Type) IsSigned() bool {
	return t.Sort == SignedChar || t.Sort == SignedShort || t.Sort == SignedInt || t.Sort == SignedLong
}

// IsUnsigned returns true for the unsigned integral sorts and pointers.
func (t *Type) IsUnsigned() bool {
	return t.Sort == UnsignedChar || t.Sort == UnsignedShort || t.Sort == UnsignedInt ||
		t.Sort == UnsignedLong || t.Sort == Pointer
}

// IsPointer returns true for pointer types.
func (t *Type) IsPointer() bool {
	return t.Sort == Pointer
}

// IsIntegralOrPointer returns true if values of Type t are held in general purpose registers.
func (t *Type) IsIntegralOrPointer() bool {
	return t.IsIntegral() || t.Sort == Pointer
}

// IsArray returns true for array types.
func (t *Type) IsArray() bool {
	return t.Sort == Array
}

// IsFunction returns true for function types.
func (t *Type) IsFunction() bool {
	return t.Sort == FunctionSort
}

// IsStructOrUnion returns true for aggregate record types.
func (t *Type) IsStructOrUnion() bool {
	return t.Sort == Struct || t.Sort == Union
}

// ReturnType returns the return type of a function type, or of the function pointed to by a pointer type.
func (t *Type) ReturnType() *Type {
	if t.Sort == Pointer && t.Elem != nil && t.Elem.Sort == FunctionSort {
		return t.Elem.Elem
	}
	return t.Elem
}

// IsVariadic returns true if t is, or points to, a function type with extra arguments.
func (t *Type) IsVariadic() bool {
	if t.Sort == Pointer && t.Elem != nil {
		return t.Elem.Variadic
	}
	return t.Variadic
}

// String returns the middle code spelling of Type t.
func (t *Type) String() string {
	switch t.Sort {
	case Pointer:
		return "*" + t.Elem.String()
	case Array:
		if t.Elem.Sort == Pointer || t.Elem.Sort == FunctionSort {
			return fmt.Sprintf("(%s)[%d]", t.Elem.String(), t.Count)
		}
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Count)
	case FunctionSort:
		sb := strings.Builder{}
		sb.WriteString("func(")
		for i1, e1 := range t.Members {
			if i1 > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e1.String())
		}
		if t.Variadic {
			if len(t.Members) > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("...")
		}
		sb.WriteString(") ")
		sb.WriteString(t.Elem.String())
		return sb.String()
	case Struct, Union:
		sb := strings.Builder{}
		sb.WriteString(t.Sort.String())
		sb.WriteRune('{')
		for i1, e1 := range t.Members {
			if i1 > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e1.String())
		}
		sb.WriteRune('}')
		return sb.String()
	}
	return t.Sort.String()
}
