package vm

import (
	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/value"
)

// CallFrame is one activation record: the closure being executed, its
// instruction pointer, and the base stack slot its locals start at
// (spec §4.1). Slot 0 of every frame holds the receiver for methods, or
// is otherwise unused but reserved.
type CallFrame struct {
	closure *value.ObjClosureVal
	ip      int
	slots   int
}

func (vm *VM) currentFrame() *CallFrame {
	return &vm.frames[vm.frameCount-1]
}

func (f *CallFrame) chunkOf() *value.ObjFunctionVal {
	return f.closure.Function
}

// Closure exposes the frame's closure, for a debugger to inspect its
// function's name and arity.
func (f *CallFrame) Closure() *value.ObjClosureVal { return f.closure }

// SourceLine returns the source line of the instruction at ip, per the
// chunk's line table (spec §6.2), or 0 if ip is out of range.
func (f *CallFrame) SourceLine(ip int) int {
	c, ok := f.closure.Function.Chunk.(*chunk.Chunk)
	if !ok || ip < 0 || ip >= len(c.Lines) {
		return 0
	}
	return c.Lines[ip]
}
