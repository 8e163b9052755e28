package regalloc

import (
	"fmt"
	"sort"
	"strings"

	"ccgen/src/backend/regfile"
	"ccgen/src/backend/x86"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// LiveNode wraps a set of twin Tracks and its neighbours in the register interference graph.
type LiveNode struct {
	Tracks  []*x86.Track     // Twins sharing one register; the first is the root.
	Start   int              // Index of the first instruction referring to a twin.
	End     int              // Index of the last instruction referring to a twin.
	Size    int              // Widest part of the register required by a twin.
	Narrow  bool             // Set true if a twin needs a byte register.
	Dep     []*LiveNode      // Neighbours: nodes alive at the same time.
	Enabled bool             // Set to true if the LiveNode is present in the graph.
	Fixed   bool             // Set true if the twins were bound during generation.
	Reg     regfile.Register // Register assigned to the twins.
}

// ---------------------
// ----- Functions -----
// ---------------------

// CalcLiveness builds the register interference graph of the Tracks of Code c. A node is alive from the first to
// the last instruction referring to it. Two nodes interfere if each starts before the other ends, so a value may
// be defined in the register of an operand the same instruction reads for the last time. Tracks without
// references are left out.
func CalcLiveness(c *x86.Code) []*LiveNode {
	roots := make(map[*x86.Track]*LiveNode)
	rig := make([]*LiveNode, 0, len(c.Tracks))
	for _, e1 := range c.Tracks {
		sites := e1.Sites()
		if len(sites) == 0 {
			continue
		}
		r := e1.Root()
		n, ok := roots[r]
		if !ok {
			n = &LiveNode{Start: sites[0].Index, End: sites[0].Index, Enabled: true}
			roots[r] = n
			rig = append(rig, n)
		}
		n.Tracks = append(n.Tracks, e1)
		for _, e2 := range sites {
			if e2.Index < n.Start {
				n.Start = e2.Index
			}
			if e2.Index > n.End {
				n.End = e2.Index
			}
		}
		if e1.Size() > n.Size {
			n.Size = e1.Size()
		}
		if e1.Size() == 1 {
			n.Narrow = true
		}
	}

	sort.SliceStable(rig, func(i, j int) bool {
		return rig[i].Start < rig[j].Start
	})
	for i1, e1 := range rig {
		e1.Fixed = e1.Tracks[0].Bound()
		if e1.Fixed {
			e1.Reg = e1.Tracks[0].Class()
		}
		for _, e2 := range rig[i1+1:] {
			if e2.Start >= e1.End {
				break
			}
			if Interferes(e1, e2) {
				e1.Dep = append(e1.Dep, e2)
				e2.Dep = append(e2.Dep, e1)
			}
		}
	}
	return rig
}

// Interferes returns true if the nodes a and b are alive at the same time.
func Interferes(a, b *LiveNode) bool {
	return a.Start < b.End && b.Start < a.End
}

// GetEnabledNeighbours returns the neighbours of n still present in the graph.
func (n *LiveNode) GetEnabledNeighbours() []*LiveNode {
	res := make([]*LiveNode, 0, len(n.Dep))
	for _, e1 := range n.Dep {
		if e1.Enabled {
			res = append(res, e1)
		}
	}
	return res
}

// String creates a print friendly string representing this node: its twins, its range and its neighbours.
func (n *LiveNode) String() string {
	names := make([]string, len(n.Tracks))
	for i1, e1 := range n.Tracks {
		names[i1] = e1.String()
	}
	deps := make([]string, len(n.Dep))
	for i1, e1 := range n.Dep {
		deps[i1] = e1.Tracks[0].String()
	}
	return fmt.Sprintf("{%s} [%d, %d]\tLive: {%s}", strings.Join(names, ", "), n.Start, n.End,
		strings.Join(deps, ", "))
}
