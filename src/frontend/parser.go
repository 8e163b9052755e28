package frontend

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"ccgen/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// parser reads a middle code listing from a slice of tokens. Declarations are read in one pass and function
// bodies in a second, so calls may refer to functions defined later in the listing.
type parser struct {
	toks   []item     // Tokens of the listing, ending with itemEOF.
	pos    int        // Index of the next token.
	scopes ir.Scopes  // Module scope and the scope of the function being read.
	m      *ir.Module // Module being read.
}

// -------------------
// ----- Globals -----
// -------------------

// sorts maps the middle code spelling of every scalar sort to its Sort.
var sorts = func() map[string]ir.Sort {
	m := make(map[string]ir.Sort)
	for s := ir.Void; s <= ir.LongDouble; s++ {
		m[s.String()] = s
	}
	return m
}()

// ---------------------
// ----- Functions -----
// ---------------------

// Parse reads the middle code listing src and returns the Module it declares. The module is named name.
func Parse(name, src string) (*ir.Module, error) {
	toks, err := tokens(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, m: &ir.Module{Name: name}}
	p.scopes.Open()
	defer p.scopes.Close()

	bodies, err := p.declarations()
	if err != nil {
		return nil, err
	}
	for i1, e1 := range bodies {
		p.pos = e1
		if err := p.body(p.m.Functions[i1]); err != nil {
			return nil, err
		}
	}
	return p.m, nil
}

// TokenStream writes the tokens of src to w as a table of value, type and position.
func TokenStream(src string, w io.Writer) error {
	l := newLexer(src, lexGlobal)
	go l.run()

	tw := tabwriter.NewWriter(w, 10, 20, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Value\tType\tPosition\n")
	for {
		t := l.nextItem()
		switch t.typ {
		case itemEOF:
			return tw.Flush()
		case itemError:
			_ = tw.Flush()
			for range l.items {
			}
			return errors.New(t.val)
		default:
			if len(t.val) > 20 {
				_, _ = fmt.Fprintf(tw, "%.17q...\t%s\tline: %d:%d\n", t.val, t.typ, t.line, t.pos)
			} else {
				_, _ = fmt.Fprintf(tw, "%q\t%s\tline: %d:%d\n", t.val, t.typ, t.line, t.pos)
			}
		}
	}
}

// ----------------------------
// ----- Parser functions -----
// ----------------------------

// peek returns the next token without consuming it.
func (p *parser) peek() item {
	return p.toks[p.pos]
}

// next consumes and returns the next token. itemEOF is never consumed.
func (p *parser) next() item {
	i := p.toks[p.pos]
	if i.typ != itemEOF {
		p.pos++
	}
	return i
}

// errorf returns an error positioned at token i.
func (p *parser) errorf(i item, format string, args ...interface{}) error {
	return fmt.Errorf("line %d:%d: %s", i.line, i.pos, fmt.Sprintf(format, args...))
}

// expect consumes the next token and returns an error if it is not of type typ.
func (p *parser) expect(typ itemType) (item, error) {
	i := p.next()
	if i.typ != typ {
		return i, p.errorf(i, "expected %s, got %s", typ, i)
	}
	return i, nil
}

// endLine consumes the newline ending the current line. The end of the listing also ends a line.
func (p *parser) endLine() error {
	i := p.peek()
	switch i.typ {
	case itemNewline:
		p.next()
		return nil
	case itemEOF:
		return nil
	}
	return p.errorf(i, "expected end of line, got %s", i)
}

// skipLines consumes empty lines.
func (p *parser) skipLines() {
	for p.peek().typ == itemNewline {
		p.next()
	}
}

// declarations reads the extern, static and function declarations of the module. Function bodies are skipped;
// the token index of every body is returned in function order.
func (p *parser) declarations() ([]int, error) {
	bodies := make([]int, 0, 8)
	for {
		p.skipLines()
		i := p.next()
		switch i.typ {
		case itemEOF:
			return bodies, nil
		case itemExtern, itemStatic:
			s, err := p.declaration()
			if err != nil {
				return nil, err
			}
			if i.typ == itemExtern {
				s.Storage = ir.Extern
				p.m.Externs = append(p.m.Externs, s)
			} else {
				s.Storage = ir.Static
				p.m.Statics = append(p.m.Statics, s)
			}
			if err := p.scopes.Declare(s); err != nil {
				return nil, p.errorf(i, "%s", err)
			}
		case itemFunc:
			f, err := p.header()
			if err != nil {
				return nil, err
			}
			if err := p.scopes.Declare(f.Symbol); err != nil {
				return nil, p.errorf(i, "%s", err)
			}
			p.m.Functions = append(p.m.Functions, f)
			bodies = append(bodies, p.pos)

			// Skip body.
			for t := p.next(); t.typ != itemEnd; t = p.next() {
				if t.typ == itemEOF {
					return nil, p.errorf(i, "function %s has no end", f.Name())
				}
			}
		default:
			return nil, p.errorf(i, "expected declaration, got %s", i)
		}
		if err := p.endLine(); err != nil {
			return nil, err
		}
	}
}

// declaration reads the name and type of a declaration.
func (p *parser) declaration() (*ir.Symbol, error) {
	n, err := p.expect(itemIdentifier)
	if err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &ir.Symbol{Name: n.val, Type: t}, nil
}

// header reads a function header: name, parameter list and return type.
func (p *parser) header() (*ir.Function, error) {
	n, err := p.expect(itemIdentifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect('('); err != nil {
		return nil, err
	}
	f := &ir.Function{}
	types := make([]*ir.Type, 0, 4)
	variadic := false
	for p.peek().typ != ')' {
		if len(types) > 0 || variadic {
			if _, err := p.expect(','); err != nil {
				return nil, err
			}
		}
		if variadic {
			i := p.peek()
			return nil, p.errorf(i, "parameter after ... in function %s", n.val)
		}
		if p.peek().typ == itemEllipsis {
			p.next()
			variadic = true
			continue
		}
		s, err := p.declaration()
		if err != nil {
			return nil, err
		}
		s.Storage = ir.Param
		f.Params = append(f.Params, s)
		types = append(types, s.Type)
	}
	p.next()
	ret, err := p.parseType()
	if err != nil {
		return nil, err
	}
	f.Symbol = &ir.Symbol{Name: n.val, Type: ir.FunctionOf(ret, types, variadic), Storage: ir.Static}
	return f, nil
}

// body reads the declarations and instructions of Function f up to and including its end keyword.
func (p *parser) body(f *ir.Function) error {
	p.scopes.Open()
	defer p.scopes.Close()
	for _, e1 := range f.Params {
		if err := p.scopes.Declare(e1); err != nil {
			return fmt.Errorf("function %s: %w", f.Name(), err)
		}
	}
	if err := p.endLine(); err != nil {
		return err
	}

	for {
		p.skipLines()
		i := p.peek()
		var s *ir.Symbol
		var err error
		switch i.typ {
		case itemEOF:
			return p.errorf(i, "function %s has no end", f.Name())
		case itemEnd:
			p.next()
			return nil
		case itemVar:
			// Local variable.
			p.next()
			if s, err = p.declaration(); err != nil {
				return err
			}
			s.Storage = ir.Auto
			f.Locals = append(f.Locals, s)
		case itemTemp:
			// Temporary.
			p.next()
			if s, err = p.declaration(); err != nil {
				return err
			}
			s = ir.NewTemporary(s.Name, s.Type)
		case itemDeref:
			// Dereferenced pointer.
			p.next()
			if s, err = p.dereference(); err != nil {
				return err
			}
		default:
			if err := p.instruction(f); err != nil {
				return err
			}
		}
		if s != nil {
			if err := p.scopes.Declare(s); err != nil {
				return p.errorf(i, "%s", err)
			}
		}
		if err := p.endLine(); err != nil {
			return err
		}
	}
}

// dereference reads the name, type, pointer and offset of a dereferenced location.
func (p *parser) dereference() (*ir.Symbol, error) {
	s, err := p.declaration()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect('='); err != nil {
		return nil, err
	}
	n, err := p.expect(itemIdentifier)
	if err != nil {
		return nil, err
	}
	ptr, err := p.scopes.Lookup(n.val)
	if err != nil {
		return nil, p.errorf(n, "%s", err)
	}
	if !ptr.Type.IsPointer() {
		return nil, p.errorf(n, "dereference of %s, which has non-pointer type %s", ptr, ptr.Type)
	}

	offset := int64(0)
	switch i := p.peek(); i.typ {
	case '+', '-':
		p.next()
		v, err := p.expect(itemInteger)
		if err != nil {
			return nil, err
		}
		if offset, err = strconv.ParseInt(v.val, 0, 32); err != nil {
			return nil, p.errorf(v, "%s", err)
		}
		if i.typ == '-' {
			offset = -offset
		}
	case itemInteger:
		// Signed offset without a space.
		p.next()
		if offset, err = strconv.ParseInt(i.val, 0, 32); err != nil || i.val[0] != '-' {
			return nil, p.errorf(i, "malformed offset %q", i.val)
		}
	}
	s.Storage = ir.Auto
	s.Temporary = true
	s.AddressSymbol = ptr
	s.AddressOffset = int(offset)
	return s, nil
}

// instruction reads one instruction, optionally preceded by its index, and appends it to f.
func (p *parser) instruction(f *ir.Function) error {
	i := p.next()
	if i.typ == itemInteger {
		n, err := strconv.Atoi(i.val)
		if err != nil || n != len(f.Code) {
			return p.errorf(i, "instruction index %s, expected %d", i.val, len(f.Code))
		}
		i = p.next()
	}
	if i.typ != itemIdentifier {
		return p.errorf(i, "expected instruction, got %s", i)
	}
	op, ok := ir.LookupOperator(i.val)
	if !ok {
		return p.errorf(i, "unknown operator %q", i.val)
	}

	in := ir.Instruction{Op: op, Line: i.line}
	if t := p.peek().typ; t == itemNewline || t == itemEOF {
		f.Code = append(f.Code, in)
		return nil
	}
	for i1 := 0; ; i1++ {
		if i1 >= len(in.Operands) {
			return p.errorf(p.peek(), "too many operands to %s", op)
		}
		o, err := p.operand(op, i1)
		if err != nil {
			return err
		}
		in.Operands[i1] = o
		if p.peek().typ != ',' {
			break
		}
		p.next()
	}
	f.Code = append(f.Code, in)
	return nil
}

// operand reads operand i of an instruction of Operator op.
func (p *parser) operand(op ir.Operator, i int) (ir.Operand, error) {
	t := p.next()
	switch t.typ {
	case itemIdentifier:
		if t.val == "_" {
			return nil, nil
		}
		if i == 0 && (op == ir.SysInit || op == ir.SysParam || op == ir.SysCall) {
			return ir.Name(t.val), nil
		}
		return p.symbol(t)
	case itemInteger:
		v, err := strconv.ParseInt(t.val, 0, 64)
		if err != nil {
			return nil, p.errorf(t, "%s", err)
		}
		return ir.Int(v), nil
	case '@':
		n, err := p.expect(itemInteger)
		if err != nil {
			return nil, err
		}
		v, err := strconv.Atoi(n.val)
		if err != nil {
			return nil, p.errorf(n, "%s", err)
		}
		return ir.Target(v), nil
	case '#':
		return p.constant()
	case '{':
		set := make(ir.SymbolSet, 0, 4)
		for p.peek().typ != '}' {
			if len(set) > 0 {
				if _, err := p.expect(','); err != nil {
					return nil, err
				}
			}
			n, err := p.expect(itemIdentifier)
			if err != nil {
				return nil, err
			}
			s, err := p.symbol(n)
			if err != nil {
				return nil, err
			}
			set = append(set, s)
		}
		p.next()
		return set, nil
	}
	return nil, p.errorf(t, "expected operand, got %s", t)
}

// symbol looks up the symbol named by token t.
func (p *parser) symbol(t item) (*ir.Symbol, error) {
	s, err := p.scopes.Lookup(t.val)
	if err != nil {
		return nil, p.errorf(t, "%s", err)
	}
	return s, nil
}

// constant reads the value and optional type of a constant. The leading '#' is already consumed.
func (p *parser) constant() (*ir.Symbol, error) {
	t := p.next()
	sign := 1.0
	if t.typ == '+' || t.typ == '-' {
		if t.typ == '-' {
			sign = -1
		}
		t = p.next()
		if t.typ != itemIdentifier || t.val != "Inf" {
			return nil, p.errorf(t, "expected Inf, got %s", t)
		}
	}

	var iv int64
	var fv float64
	floating := false
	switch {
	case t.typ == itemInteger:
		v, err := strconv.ParseInt(t.val, 0, 64)
		if err != nil {
			// Unsigned long constants above the signed range.
			u, err2 := strconv.ParseUint(t.val, 0, 64)
			if err2 != nil {
				return nil, p.errorf(t, "%s", err)
			}
			v = int64(u)
		}
		iv = v
	case t.typ == itemFloat:
		v, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, p.errorf(t, "%s", err)
		}
		fv, floating = v, true
	case t.typ == itemIdentifier && t.val == "Inf":
		fv, floating = math.Inf(int(sign)), true
	case t.typ == itemIdentifier && t.val == "NaN":
		fv, floating = math.NaN(), true
	default:
		return nil, p.errorf(t, "expected constant, got %s", t)
	}

	if p.peek().typ != ':' {
		if floating {
			return ir.NewFloatConstant(fv, ir.DoubleType), nil
		}
		return ir.NewIntConstant(iv, ir.SignedIntType), nil
	}
	p.next()
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	switch {
	case typ.IsFloating() && !floating:
		return ir.NewFloatConstant(float64(iv), typ), nil
	case typ.IsFloating():
		return ir.NewFloatConstant(fv, typ), nil
	case !typ.IsIntegralOrPointer():
		return nil, p.errorf(t, "constant of type %s", typ)
	case floating:
		return nil, p.errorf(t, "floating constant of type %s", typ)
	}
	return ir.NewIntConstant(iv, typ), nil
}

// parseType reads a type followed by any number of array dimensions.
func (p *parser) parseType() (*ir.Type, error) {
	t, err := p.primaryType()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == '[' {
		p.next()
		n, err := p.expect(itemInteger)
		if err != nil {
			return nil, err
		}
		c, err := strconv.Atoi(n.val)
		if err != nil || c < 0 {
			return nil, p.errorf(n, "malformed array length %q", n.val)
		}
		if _, err := p.expect(']'); err != nil {
			return nil, err
		}
		t = ir.ArrayOf(t, c)
	}
	return t, nil
}

// primaryType reads a scalar, pointer, function, struct, union or parenthesised type.
func (p *parser) primaryType() (*ir.Type, error) {
	t := p.next()
	switch t.typ {
	case '*':
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return ir.PointerTo(elem), nil
	case '(':
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(')'); err != nil {
			return nil, err
		}
		return typ, nil
	case itemFunc:
		if _, err := p.expect('('); err != nil {
			return nil, err
		}
		params := make([]*ir.Type, 0, 4)
		variadic := false
		for p.peek().typ != ')' {
			if len(params) > 0 || variadic {
				if _, err := p.expect(','); err != nil {
					return nil, err
				}
			}
			if variadic {
				return nil, p.errorf(p.peek(), "parameter after ...")
			}
			if p.peek().typ == itemEllipsis {
				p.next()
				variadic = true
				continue
			}
			typ, err := p.parseType()
			if err != nil {
				return nil, err
			}
			params = append(params, typ)
		}
		p.next()
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return ir.FunctionOf(ret, params, variadic), nil
	case itemIdentifier:
		if t.val == "struct" || t.val == "union" {
			typ := &ir.Type{Sort: ir.Struct}
			if t.val == "union" {
				typ.Sort = ir.Union
			}
			if _, err := p.expect('{'); err != nil {
				return nil, err
			}
			for p.peek().typ != '}' {
				if len(typ.Members) > 0 {
					if _, err := p.expect(','); err != nil {
						return nil, err
					}
				}
				m, err := p.parseType()
				if err != nil {
					return nil, err
				}
				typ.Members = append(typ.Members, m)
			}
			p.next()
			return typ, nil
		}
		if s, ok := sorts[t.val]; ok {
			return ir.ScalarType(s), nil
		}
	}
	return nil, p.errorf(t, "expected type, got %s", t)
}
