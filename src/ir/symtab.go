package ir

import (
	"fmt"

	"ccgen/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// SymTab maps names to symbols within one scope.
type SymTab struct {
	HT map[string]*Symbol // Hash table holding Symbol entries.
}

// Scopes is the stack of symbol tables visible while reading a module: the module scope at the bottom and the
// scope of the function being read on top.
type Scopes struct {
	st util.Stack[*SymTab]
}

// ---------------------
// ----- Constants -----
// ---------------------

const hTabSize = 16 // Initial capacity of a scope.

// ---------------------
// ----- Functions -----
// ---------------------

// NewSymTab returns an empty symbol table.
func NewSymTab() *SymTab {
	return &SymTab{HT: make(map[string]*Symbol, hTabSize)}
}

// Add inserts symbol s into the table. An error is returned if the name is already declared in this scope.
func (st *SymTab) Add(s *Symbol) error {
	if _, ok := st.HT[s.Name]; ok {
		return fmt.Errorf("symbol %q redeclared", s.Name)
	}
	st.HT[s.Name] = s
	return nil
}

// Open pushes a new innermost scope.
func (sc *Scopes) Open() *SymTab {
	st := NewSymTab()
	sc.st.Push(st)
	return st
}

// Close pops the innermost scope.
func (sc *Scopes) Close() {
	sc.st.Pop()
}

// Declare adds symbol s to the innermost scope.
func (sc *Scopes) Declare(s *Symbol) error {
	st, ok := sc.st.Peek()
	if !ok {
		return fmt.Errorf("no open scope for symbol %q", s.Name)
	}
	return st.Add(s)
}

// Lookup searches the scopes from the innermost outwards for the symbol named name.
func (sc *Scopes) Lookup(name string) (*Symbol, error) {
	for i1 := 1; i1 <= sc.st.Size(); i1++ {
		st, _ := sc.st.Get(i1)
		if s, ok := st.HT[name]; ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("undeclared symbol %q", name)
}
