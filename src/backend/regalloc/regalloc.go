// Package regalloc assigns registers to the Tracks of generated x86 code by colouring the register interference
// graph. Tracks bound during generation are precoloured. There is no spilling: a function needing more
// registers than the register file provides at one point fails to allocate.
package regalloc

import (
	"fmt"

	"ccgen/src/backend/regfile"
	"ccgen/src/backend/x86"
	"ccgen/src/util"
)

// ---------------------
// ----- Constants -----
// ---------------------

// Number of times register allocation will retry finding a node with fewer than k neighbours before colouring the
// remaining nodes optimistically.
const retry = 128

// byteRegisters is the number of register classes with a byte register.
const byteRegisters = 4

// ---------------------
// ----- Functions -----
// ---------------------

// Allocate assigns a register class to every unbound Track of Code c using register file rf. An error is
// returned if the interference graph cannot be coloured.
func Allocate(c *x86.Code, rf regfile.RegisterFile) error {
	// Procedure from: http://web.cecs.pdx.edu/~mperkows/temp/register-allocation.pdf
	rig := CalcLiveness(c)

	// "Remove" nodes from RIG and put them on stack.
	stack := util.Stack[*LiveNode]{}
	remaining := 0
	for _, e1 := range rig {
		if !e1.Fixed {
			remaining++
			continue
		}
		for _, e2 := range e1.Dep {
			if e2.Fixed && e2.Reg.Id() == e1.Reg.Id() {
				return fmt.Errorf("%s: %s and %s both need register %s", c.Function.Name(), e1, e2, e1.Reg)
			}
		}
	}
	for rt := retry; remaining > 0 && rt > 0; rt-- {
		removed := false
		for i1 := len(rig) - 1; i1 >= 0; i1-- {
			e1 := rig[i1]
			if !e1.Enabled || e1.Fixed {
				continue
			}
			if len(e1.GetEnabledNeighbours()) < k(rf, e1) {
				e1.Enabled = false
				stack.Push(e1)
				remaining--
				removed = true
			}
		}
		if !removed {
			break
		}
	}

	// Nodes left in the graph are pushed in order of their start, hoping their neighbours share registers.
	for i1 := len(rig) - 1; i1 >= 0 && remaining > 0; i1-- {
		if e1 := rig[i1]; e1.Enabled && !e1.Fixed {
			e1.Enabled = false
			stack.Push(e1)
			remaining--
		}
	}

	// Pop nodes from stack and assign registers.
	for n, ok := stack.Pop(); ok; n, ok = stack.Pop() {
		n.Enabled = true
		en := n.GetEnabledNeighbours()
		excl := make([]regfile.Register, 0, len(en))
		for _, e1 := range en {
			if e1.Reg != nil {
				excl = append(excl, e1.Reg)
			}
		}
		size := n.Size
		if n.Narrow {
			size = 1
		}
		r := rf.GetNextTempExclude(excl, size)
		if r == nil {
			return fmt.Errorf("%s: no register left for %s", c.Function.Name(), n)
		}
		if n.Narrow && !r.Holds(n.Size) {
			return fmt.Errorf("%s: register %s cannot hold %s", c.Function.Name(), r, n)
		}
		n.Reg = r
		x86.Assign(n.Tracks[0], r)
	}
	return nil
}

// k returns the number of registers node n may be assigned.
func k(rf regfile.RegisterFile, n *LiveNode) int {
	if n.Narrow && rf.K() > byteRegisters {
		return byteRegisters
	}
	return rf.K()
}
