package ir

import (
	"errors"
	"fmt"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// kind classifies the operands accepted at one operand position.
type kind uint8

// ---------------------
// ----- Constants -----
// ---------------------

const (
	kNone   kind = iota // Operand must be absent.
	kSym                // *Symbol required.
	kOptSym             // *Symbol or absent.
	kInt                // Int required.
	kTarget             // Target required.
	kName               // Name required.
	kSet                // SymbolSet, may be absent.
)

// -------------------
// ----- Globals -----
// -------------------

// lut is the lookup table of operand kinds per operator and operand position.
var lut = [numOperators][3]kind{
	Empty:        {kNone, kNone, kNone},
	Assign:       {kSym, kSym, kNone},
	Add:          {kOptSym, kOptSym, kOptSym},
	Sub:          {kOptSym, kOptSym, kOptSym},
	Mul:          {kOptSym, kOptSym, kOptSym},
	Div:          {kOptSym, kOptSym, kOptSym},
	Mod:          {kSym, kSym, kSym},
	And:          {kSym, kSym, kSym},
	Or:           {kSym, kSym, kSym},
	Xor:          {kSym, kSym, kSym},
	ShiftLeft:    {kSym, kSym, kSym},
	ShiftRight:   {kSym, kSym, kSym},
	Neg:          {kOptSym, kOptSym, kNone},
	Not:          {kSym, kSym, kNone},
	Plus:         {kSym, kSym, kNone},
	Address:      {kSym, kSym, kNone},
	Deref:        {kSym, kSym, kInt},
	IntToInt:     {kSym, kSym, kNone},
	IntToFloat:   {kOptSym, kSym, kNone},
	FloatToInt:   {kSym, kOptSym, kNone},
	Equal:        {kTarget, kOptSym, kOptSym},
	NotEqual:     {kTarget, kOptSym, kOptSym},
	Less:         {kTarget, kOptSym, kOptSym},
	LessEqual:    {kTarget, kOptSym, kOptSym},
	Greater:      {kTarget, kOptSym, kOptSym},
	GreaterEqual: {kTarget, kOptSym, kOptSym},
	Goto:         {kTarget, kNone, kNone},
	Case:         {kTarget, kSym, kSym},
	CaseEnd:      {kSym, kNone, kNone},
	PushFloat:    {kSym, kNone, kNone},
	PopFloat:     {kSym, kNone, kNone},
	TopFloat:     {kSym, kNone, kNone},
	PopEmpty:     {kNone, kNone, kNone},
	PreCall:      {kInt, kSet, kInt},
	Parameter:    {kInt, kSym, kNone},
	Call:         {kInt, kSym, kInt},
	PostCall:     {kOptSym, kNone, kNone},
	SetReturn:    {kSym, kNone, kNone},
	Return:       {kNone, kNone, kNone},
	SysInit:      {kName, kNone, kNone},
	SysParam:     {kName, kInt, kSym},
	SysCall:      {kName, kOptSym, kNone},
	FuncEnd:      {kNone, kNone, kNone},
}

// ---------------------
// ----- Functions -----
// ---------------------

// Validate checks the middle code of Function f: operand kinds per operator, the operands of the integral forms
// of arithmetic and relations, jump targets within the function, the strict nesting of call sequences and the
// depth of the x87 stack in program order.
func Validate(f *Function) error {
	var saved []int // x87 stack depth at each open precall.
	depth := 0
	for i1 := range f.Code {
		in := &f.Code[i1]
		if in.Op >= numOperators {
			return fmt.Errorf("%s:%d: unknown operator %d", f.Name(), i1, in.Op)
		}
		for i2, e2 := range lut[in.Op] {
			if err := checkKind(in.Operands[i2], e2); err != nil {
				return fmt.Errorf("%s:%d: %s operand %d: %w", f.Name(), i1, in.Op, i2, err)
			}
		}
		if in.Op.IsJump() {
			if t := in.Target(0); t < 0 || t > len(f.Code) {
				return fmt.Errorf("%s:%d: jump target %d out of range", f.Name(), i1, t)
			}
		}
		switch in.Op {
		case PreCall:
			if in.Int(2) != depth {
				return fmt.Errorf("%s:%d: precall expects x87 stack depth %d, got %d", f.Name(), i1, in.Int(2), depth)
			}
			saved = append(saved, depth)
			depth = 0
			continue
		case PostCall:
			if len(saved) == 0 {
				return fmt.Errorf("%s:%d: postcall without precall", f.Name(), i1)
			}
			depth = saved[len(saved)-1]
			saved = saved[:len(saved)-1]
			if res := in.Symbol(0); res != nil && res.Type.IsFloating() {
				depth++
			}
			continue
		case Return:
			// The floating return value leaves on the x87 stack.
			if f.ReturnType().IsFloating() && depth == 1 {
				depth = 0
			}
			continue
		}
		need, delta, err := floatEffect(in)
		if err != nil {
			return fmt.Errorf("%s:%d: %s: %w", f.Name(), i1, in.Op, err)
		}
		if depth < need {
			return fmt.Errorf("%s:%d: %s needs %d value(s) on the x87 stack, found %d", f.Name(), i1, in.Op, need,
				depth)
		}
		depth += delta
	}
	if len(saved) != 0 {
		return fmt.Errorf("%s: %d unterminated call sequence(s)", f.Name(), len(saved))
	}
	return nil
}

// floatEffect returns the number of x87 stack values instruction in consumes and the change of the stack depth.
// Arithmetic and relations are floating when their result, or left operand for relations, is absent or floating;
// the integral forms need every operand, which is reported as an error.
func floatEffect(in *Instruction) (need, delta int, err error) {
	floating := func(s *Symbol) bool {
		return s == nil || s.Type.IsFloating()
	}
	switch in.Op {
	case Add, Sub, Mul, Div:
		if floating(in.Symbol(0)) {
			return 2, -1, nil
		}
		if in.Symbol(1) == nil || in.Symbol(2) == nil {
			return 0, 0, errors.New("integral arithmetic needs two operands")
		}
	case Neg:
		if floating(in.Symbol(0)) {
			return 1, 0, nil
		}
		if in.Symbol(1) == nil {
			return 0, 0, errors.New("integral negation needs an operand")
		}
	case Equal, NotEqual, Less, LessEqual, Greater, GreaterEqual:
		if floating(in.Symbol(1)) {
			return 2, -2, nil
		}
		if in.Symbol(2) == nil {
			return 0, 0, errors.New("integral relation needs two operands")
		}
	case IntToFloat, PushFloat:
		return 0, 1, nil
	case FloatToInt, PopFloat, PopEmpty:
		return 1, -1, nil
	case TopFloat:
		return 1, 0, nil
	case Parameter:
		if in.Symbol(1).Type.IsFloating() {
			return 1, -1, nil
		}
	case SetReturn:
		if in.Symbol(0).Type.IsFloating() {
			return 0, 1, nil
		}
	}
	return 0, 0, nil
}

// checkKind returns an error if operand o does not match kind k.
func checkKind(o Operand, k kind) error {
	switch k {
	case kNone:
		if o != nil {
			return errors.New("unexpected operand")
		}
	case kSym:
		if s, ok := o.(*Symbol); !ok || s == nil {
			return errors.New("expected symbol")
		}
	case kOptSym:
		if o == nil {
			return nil
		}
		if s, ok := o.(*Symbol); !ok || s == nil {
			return errors.New("expected symbol")
		}
	case kInt:
		if _, ok := o.(Int); !ok {
			return errors.New("expected integer")
		}
	case kTarget:
		if _, ok := o.(Target); !ok {
			return errors.New("expected jump target")
		}
	case kName:
		if _, ok := o.(Name); !ok {
			return errors.New("expected name")
		}
	case kSet:
		if o == nil {
			return nil
		}
		if _, ok := o.(SymbolSet); !ok {
			return errors.New("expected symbol set")
		}
	}
	return nil
}
