// Package debugger implements a breakpoint/step debugger over pkg/vm,
// adapted from the teacher's pkg/vm/debugger.go (a line-breakpoint set
// plus a step/continue command loop) but rewired to this VM's
// frame+instruction-pointer model instead of the teacher's message-send
// trace. The VM only depends on the vm.DebugHook interface; this package
// is the one concrete implementation of it, kept out of pkg/vm per
// spec §1's "debug/disassembly tooling is out of scope for the core".
package debugger

import (
	"fmt"
	"io"
	"sort"

	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/value"
	"github.com/kristofer/ember/pkg/vm"
	"golang.org/x/exp/maps"
)

// Mode selects how the debugger reacts to BeforeInstruction callbacks.
type Mode int

const (
	// ModeRun pauses only at armed breakpoint lines.
	ModeRun Mode = iota
	// ModeStep pauses before every instruction.
	ModeStep
)

// Debugger is a vm.DebugHook that can pause execution at line
// breakpoints or single-step, printing every executed instruction to Out.
type Debugger struct {
	Out         io.Writer
	Mode        Mode
	breakpoints map[int]bool // source lines
	onStop      func(vm *vm.VM, frame *vm.CallFrame, line int)
}

// New returns a Debugger writing trace output to out.
func New(out io.Writer) *Debugger {
	return &Debugger{Out: out, breakpoints: make(map[int]bool)}
}

// SetBreakpoint arms a stop at source line.
func (d *Debugger) SetBreakpoint(line int) { d.breakpoints[line] = true }

// ClearBreakpoint disarms a previously armed line.
func (d *Debugger) ClearBreakpoint(line int) { delete(d.breakpoints, line) }

// Breakpoints returns the currently armed lines, sorted, for deterministic
// listing (e.g. a `break list` REPL command).
func (d *Debugger) Breakpoints() []int {
	lines := maps.Keys(d.breakpoints)
	sort.Ints(lines)
	return lines
}

// OnStop registers a callback invoked whenever the debugger pauses
// (breakpoint hit or single-step), e.g. to drive an interactive prompt
// from cmd/ember.
func (d *Debugger) OnStop(fn func(vm *vm.VM, frame *vm.CallFrame, line int)) {
	d.onStop = fn
}

// BeforeInstruction implements vm.DebugHook.
func (d *Debugger) BeforeInstruction(m *vm.VM, frame *vm.CallFrame, ip int, op chunk.OpCode) {
	line := frame.SourceLine(ip)
	stop := d.Mode == ModeStep || d.breakpoints[line]
	if d.Out != nil {
		id := value.ObjectID(frame.Closure())
		fmt.Fprintf(d.Out, "%04d [line %4d] %-16s closure=%s\n", ip, line, op, id.String()[:8])
	}
	if stop && d.onStop != nil {
		d.onStop(m, frame, line)
	}
}
