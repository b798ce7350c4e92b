package vm

import "github.com/kristofer/ember/pkg/value"

// captureUpvalue returns the open upvalue for the stack slot at index,
// creating one and linking it into the sorted (descending-slot)
// openUpvalues list if none exists yet (spec §4.3). Reusing an existing
// open upvalue for the same slot is what makes two closures that close
// over the same local actually share storage.
func (vm *VM) captureUpvalue(slot int) *value.ObjUpvalueVal {
	var prev *value.ObjUpvalueVal
	cur := vm.openUpvalues
	for cur != nil && cur.Slot > slot {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.Slot == slot {
		return cur
	}

	created := vm.gc.NewUpvalue(slot)
	created.Next = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above lastSlot, copying
// the live stack value into the upvalue itself so it survives the stack
// slot being reused or discarded. Called both when a block scope holding
// captured locals ends (OP_CLOSE_UPVALUE) and, implicitly, whenever
// OP_RETURN discards a frame (spec §4.3).
func (vm *VM) closeUpvalues(lastSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= lastSlot {
		uv := vm.openUpvalues
		uv.Closed = vm.stack[uv.Slot]
		uv.IsOpen = false
		vm.openUpvalues = uv.Next
	}
}
