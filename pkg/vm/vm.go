// Package vm implements the bytecode interpreter: the operand stack,
// call frames, upvalue machinery, class/instance dispatch, and the main
// fetch-decode-execute loop over the opcodes pkg/chunk defines.
//
// Grounded on the teacher's pkg/vm (a VM struct driving a Run loop over
// a frame stack, with errors.go's stack-trace formatting kept almost
// verbatim) but generalized throughout: the teacher's VM sends
// Smalltalk-style messages to objects, while this one executes a flat
// bytecode stream against an operand stack per spec §4.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/value"
)

// FramesMax bounds call depth (spec §4.1's "fixed array of CallFrame").
const FramesMax = 64

// StackMax bounds the operand stack. clox sizes this as FramesMax times
// the largest plausible per-frame slot count; this module follows suit.
const StackMax = FramesMax * 256

// DebugHook lets an external debugger observe execution without the vm
// package importing pkg/debugger (which instead imports vm and
// implements this interface). The VM calls it, when non-nil, once
// before decoding each instruction.
type DebugHook interface {
	BeforeInstruction(vm *VM, frame *CallFrame, ip int, op chunk.OpCode)
}

// VM is the bytecode interpreter's entire mutable state.
type VM struct {
	stack      [StackMax]value.Value
	stackTop   int
	frames     [FramesMax]CallFrame
	frameCount int

	globals      *value.Table
	gc           *value.GC
	openUpvalues *value.ObjUpvalueVal // sorted by descending stack slot
	initString   *value.ObjStringVal

	Out   io.Writer
	Debug DebugHook
}

// New constructs a VM with its own garbage collector and globals table.
// It installs no natives; callers (cmd/ember) install them afterwards
// through GC() and Globals(), so this package does not import
// pkg/natives.
func New() *VM {
	vm := &VM{
		globals: value.NewTable(),
		Out:     os.Stdout,
	}
	vm.gc = value.NewGC(vm, func(format string, args ...interface{}) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	vm.initString = vm.gc.Intern("init")
	return vm
}

// GC returns the VM's garbage collector, so a driver can install
// natives (which need to intern names and allocate ObjNativeVal) and
// tune GC.Verbose before running anything.
func (vm *VM) GC() *value.GC { return vm.gc }

// Globals returns the VM's global variable table.
func (vm *VM) Globals() *value.Table { return vm.globals }

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// Interpret is the VM's entry point: wraps fn in a Closure,
// pushes a call frame for it, and runs the dispatch loop to completion.
func (vm *VM) Interpret(fn *value.ObjFunctionVal) error {
	closure := vm.gc.NewClosure(fn)
	vm.push(value.ObjValue(closure))
	if err := vm.call(closure, 0); err != nil {
		return err
	}
	return vm.run()
}

// MarkRoots implements value.RootProvider: every live stack slot, every
// active frame's closure, every open upvalue, the globals table, and the
// cached "init" string are roots (spec §4.8).
func (vm *VM) MarkRoots(gc *value.GC) {
	for i := 0; i < vm.stackTop; i++ {
		gc.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		gc.Mark(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Next {
		gc.Mark(uv)
	}
	gc.MarkTable(vm.globals)
	gc.Mark(vm.initString)
}

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	err := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.closure.Function
		line := 0
		if c, ok := fn.Chunk.(*chunk.Chunk); ok && frame.ip-1 < len(c.Lines) && frame.ip-1 >= 0 {
			line = c.Lines[frame.ip-1]
		}
		name := "<script>"
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		err.Frames = append(err.Frames, StackFrame{FunctionName: name, Line: line})
	}
	vm.resetStack()
	return err
}
