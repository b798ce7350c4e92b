package chunk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kristofer/ember/pkg/value"
	"golang.org/x/exp/maps"
)

// Disassemble writes a human-readable listing of every instruction in c
// to a string, prefixed with name, followed by a one-line constant pool
// summary. This is debug/disassembly tooling (spec §1 names it
// explicitly out of scope for the VM's core semantics) kept around
// because the teacher's pkg/bytecode/format.go always ships one; it is
// never consulted by the interpreter itself.
func Disassemble(c *Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = disassembleInstruction(&b, c, offset)
	}
	if len(c.Constants) > 0 {
		fmt.Fprintf(&b, "-- constants: %s\n", constantKindSummary(c))
	}
	return b.String()
}

// constantKindSummary counts c.Constants by kind ("number", "string",
// "function", ...) and renders them as "kind:count" pairs in sorted-key
// order, so the summary line is stable across runs even though Go map
// iteration isn't.
func constantKindSummary(c *Chunk) string {
	counts := make(map[string]int)
	for _, v := range c.Constants {
		counts[constantKindName(v)]++
	}
	keys := maps.Keys(counts)
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

func constantKindName(v value.Value) string {
	switch v.Type {
	case value.TypeNil:
		return "nil"
	case value.TypeBool:
		return "bool"
	case value.TypeNumber:
		return "number"
	case value.TypeObj:
		return v.AsObj().Kind().String()
	default:
		return "unknown"
	}
}

func disassembleInstruction(b *strings.Builder, c *Chunk, offset int) int {
	fmt.Fprintf(b, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(b, "   | ")
	} else {
		fmt.Fprintf(b, "%4d ", c.Lines[offset])
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal, OpGetProperty, OpSetProperty, OpGetSuper, OpClass, OpMethod:
		return constantInstruction(b, op, c, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall, OpListInit:
		return byteInstruction(b, op, c, offset)
	case OpInvoke, OpSuperInvoke:
		return invokeInstruction(b, op, c, offset)
	case OpJump, OpJumpIfFalse, OpLoop:
		return jumpInstruction(b, op, c, offset)
	case OpClosure:
		return closureInstruction(b, c, offset)
	default:
		return simpleInstruction(b, op, offset)
	}
}

func simpleInstruction(b *strings.Builder, op OpCode, offset int) int {
	fmt.Fprintf(b, "%s\n", op)
	return offset + 1
}

func constantInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d '%v'\n", op, idx, displayConstant(c, int(idx)))
	return offset + 2
}

func byteInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d\n", op, slot)
	return offset + 2
}

func invokeInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int) int {
	nameIdx := c.Code[offset+1]
	argc := c.Code[offset+2]
	fmt.Fprintf(b, "%-16s (%d args) %4d '%v'\n", op, argc, nameIdx, displayConstant(c, int(nameIdx)))
	return offset + 3
}

func jumpInstruction(b *strings.Builder, op OpCode, c *Chunk, offset int) int {
	hi, lo := c.Code[offset+1], c.Code[offset+2]
	jump := int(hi)<<8 | int(lo)
	sign := 1
	if op == OpLoop {
		sign = -1
	}
	fmt.Fprintf(b, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func closureInstruction(b *strings.Builder, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d '%v'\n", OpClosure, idx, displayConstant(c, int(idx)))
	offset += 2

	if fn, ok := c.Constants[idx].AsObj().(*value.ObjFunctionVal); ok {
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := c.Code[offset]
			index := c.Code[offset+1]
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			fmt.Fprintf(b, "%04d      |                     %s %d\n", offset, kind, index)
			offset += 2
		}
	}
	return offset
}

func displayConstant(c *Chunk, idx int) interface{} {
	if idx < 0 || idx >= len(c.Constants) {
		return "?"
	}
	v := c.Constants[idx]
	if v.Type == value.TypeObj {
		id := value.ObjectID(v.AsObj())
		return fmt.Sprintf("%v (id=%s)", v, id.String()[:8])
	}
	return v
}
