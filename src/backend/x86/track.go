package x86

import (
	"fmt"

	"ccgen/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Track is a virtual register holding the value of one temporary during a bounded range of instructions. A Track
// is either unbound, leaving the choice of register to the allocator, or bound to a register class. Tracks that
// must share a physical register are twins; twins form a disjoint set whose root carries the binding.
type Track struct {
	id       int        // Unique id within the function.
	symbol   *ir.Symbol // Symbol whose value the track holds, nil for scratch values.
	size     int        // Width in bytes.
	pointer  bool       // Set true if the value is used as an address.
	bound    bool       // Set true if the set of twins is bound to class. Only meaningful at the root.
	class    Class      // Register class of the set of twins.
	parent   *Track     // Parent in the set of twins, nil at the root.
	isParent bool       // Set true once another Track has been merged into the set of t.
	sites    []Site     // Instruction operand positions referring to the track.
}

// Site is a reference from an instruction to a Track.
type Site struct {
	Index int  // Index of the instruction.
	Slot  int  // Operand slot, or -1 for implicit references the instruction does not print.
	Base  bool // Set true if the track is the base register of the memory operand in Slot.
}

// ---------------------
// ----- Functions -----
// ---------------------

// newTrack returns an unbound Track for the value of symbol s.
func newTrack(id int, s *ir.Symbol, size int) *Track {
	return &Track{id: id, symbol: s, size: size}
}

// Id returns the unique id of Track t.
func (t *Track) Id() int {
	return t.id
}

// Symbol returns the symbol whose value t holds, or nil.
func (t *Track) Symbol() *ir.Symbol {
	return t.symbol
}

// Size returns the width of t in bytes.
func (t *Track) Size() int {
	return t.size
}

// Sites returns the operand positions referring to t, in instruction order.
func (t *Track) Sites() []Site {
	return t.sites
}

// Root returns the representative of the set of twins t belongs to.
func (t *Track) Root() *Track {
	r := t
	for r.parent != nil {
		r = r.parent
	}
	// Path compression.
	for t != r {
		next := t.parent
		t.parent = r
		t = next
	}
	return r
}

// Bound returns true if the twins of t are bound to a register class.
func (t *Track) Bound() bool {
	return t.Root().bound
}

// Class returns the register class of the twins of t. The result is meaningless if t is unbound.
func (t *Track) Class() Class {
	return t.Root().class
}

// Register returns the register of t, sized to t, or NoRegister if t is unbound.
func (t *Track) Register() Register {
	r := t.Root()
	if !r.bound {
		return NoRegister
	}
	return r.class.Register(t.size)
}

// Pointer returns true if t holds an address.
func (t *Track) Pointer() bool {
	return t.pointer
}

// Bind binds the twins of t to class c.
func (t *Track) Bind(c Class) {
	r := t.Root()
	if r.bound && r.class != c {
		fatal("track %s bound to both %s and %s", t, r.class, c)
	}
	r.bound = true
	r.class = c
}

// HasTwins returns true if t shares its register with another Track.
func (t *Track) HasTwins() bool {
	return t.parent != nil || t.isParent
}

// String returns the register name of a bound Track, else a print friendly identifier.
func (t *Track) String() string {
	if r := t.Register(); r != NoRegister {
		return r.String()
	}
	return fmt.Sprintf("%%t%d:%d", t.id, t.size)
}

// addSite records a reference to t.
func (t *Track) addSite(s Site) {
	t.sites = append(t.sites, s)
}

// Twin merges the sets of twins of a and b so that they are assigned the same register.
func Twin(a, b *Track) {
	ra, rb := a.Root(), b.Root()
	if ra == rb {
		return
	}
	if ra.bound && rb.bound && ra.class != rb.class {
		fatal("twins %s and %s bound to different classes %s and %s", a, b, ra.class, rb.class)
	}
	if rb.bound {
		ra.bound = true
		ra.class = rb.class
	}
	rb.parent = ra
	ra.isParent = true
}
