package x86

import "ccgen/src/backend/regfile"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// registerFile is the x86 register file seen by the register allocator. Its registers are register classes;
// the allocator picks a class and the width of a Track selects the register of the class.
type registerFile struct {
	temps []Class // Allocatable classes, in order of preference.
}

// ---------------------
// ----- Functions -----
// ---------------------

// CreateRegisterFile returns the register file of a function. The frame and stack registers are never
// allocated, and neither is the ellipse register in variadic functions, where it addresses the locals.
func CreateRegisterFile(variadic bool) regfile.RegisterFile {
	rf := &registerFile{temps: []Class{ClassA, ClassC, ClassD, ClassB, ClassSI}}
	if !variadic {
		rf.temps = append(rf.temps, ClassDI)
	}
	return rf
}

// SP returns the stack register class.
func (rf *registerFile) SP() regfile.Register {
	return StackRegister.Class()
}

// FP returns the frame register class.
func (rf *registerFile) FP() regfile.Register {
	return FrameRegister.Class()
}

// EP returns the ellipse register class.
func (rf *registerFile) EP() regfile.Register {
	return EllipseRegister.Class()
}

// Get returns the i'th allocatable class, or nil.
func (rf *registerFile) Get(i int) regfile.Register {
	if i < 0 || i >= len(rf.temps) {
		return nil
	}
	return rf.temps[i]
}

// GetNextTempExclude returns the first allocatable class holding size bytes that is not in exc, or nil.
func (rf *registerFile) GetNextTempExclude(exc []regfile.Register, size int) regfile.Register {
next:
	for _, e1 := range rf.temps {
		if !e1.Holds(size) {
			continue
		}
		for _, e2 := range exc {
			if e2 != nil && e2.Id() == e1.Id() {
				continue next
			}
		}
		return e1
	}
	return nil
}

// K returns the number of allocatable classes.
func (rf *registerFile) K() int {
	return len(rf.temps)
}

// Assign binds Track t to the class of register r. Assign is used by register allocators.
func Assign(t *Track, r regfile.Register) {
	t.Bind(Class(r.Id()))
}
