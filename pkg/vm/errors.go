package vm

import (
	"fmt"
	"strings"
)

// StackFrame is one entry of a RuntimeError's trace: the function that
// was executing and the source line its instruction pointer had reached,
// innermost frame first. Grounded near-verbatim on the teacher's
// pkg/vm/errors.go trace formatting.
type StackFrame struct {
	FunctionName string
	Line         int
}

// RuntimeError is raised by the dispatch loop for any operation the
// spec requires to fail at runtime (type mismatches, undefined globals,
// out-of-bounds indices, arity mismatches, stack overflow). Its Error()
// rendering matches spec §7's "report the error message, then the call
// stack from innermost to outermost frame" and drives cmd/ember's exit
// code 70 on an uncaught runtime error.
type RuntimeError struct {
	Message string
	Frames  []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, f := range e.Frames {
		b.WriteString("\n")
		if f.FunctionName == "<script>" {
			fmt.Fprintf(&b, "[line %d] in script", f.Line)
		} else {
			fmt.Fprintf(&b, "[line %d] in %s()", f.Line, f.FunctionName)
		}
	}
	return b.String()
}
