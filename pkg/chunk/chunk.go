// Package chunk defines the bytecode container the compiler emits and
// the VM executes: a flat instruction byte stream, a constant pool, and
// a line-number table aligned one-to-one with the instruction bytes.
//
// This mirrors the teacher's pkg/bytecode package in spirit (an opcode
// enum with a human-readable String() method, a constant pool, a
// disassembler) but not in representation: the teacher stores a
// []Instruction{Op, Operand} slice, where this VM's spec calls for a raw
// []byte stream read via explicit 1-byte and 2-byte big-endian reads
// (spec §4.7/§6.2), so that jump offsets, operand widths, and the line
// table all line up exactly the way the dispatch loop expects.
package chunk

import "github.com/kristofer/ember/pkg/value"

// OpCode is a single bytecode instruction's operation.
type OpCode byte

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpGetUpvalue
	OpSetUpvalue
	OpGetProperty
	OpSetProperty
	OpGetSuper
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpPrintln
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpInvoke
	OpSuperInvoke
	OpClosure
	OpCloseUpvalue
	OpListInit
	OpListGetIdx
	OpListSetIdx
	OpReturn
	OpClass
	OpInherit
	OpMethod
)

var opNames = [...]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpSetUpvalue:   "OP_SET_UPVALUE",
	OpGetProperty:  "OP_GET_PROPERTY",
	OpSetProperty:  "OP_SET_PROPERTY",
	OpGetSuper:     "OP_GET_SUPER",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpPrintln:      "OP_PRINTLN",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpInvoke:       "OP_INVOKE",
	OpSuperInvoke:  "OP_SUPER_INVOKE",
	OpClosure:      "OP_CLOSURE",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpListInit:     "OP_LIST_INIT",
	OpListGetIdx:   "OP_LIST_GETIDX",
	OpListSetIdx:   "OP_LIST_SETIDX",
	OpReturn:       "OP_RETURN",
	OpClass:        "OP_CLASS",
	OpInherit:      "OP_INHERIT",
	OpMethod:       "OP_METHOD",
}

// String returns the opcode's mnemonic, e.g. for disassembly.
func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "OP_UNKNOWN"
}

// Chunk is a compiled unit of bytecode: the instruction stream, the
// constant pool referenced by OP_CONSTANT and friends, and a line table
// with lines[i] giving the source line of code[i] (spec §6.2).
type Chunk struct {
	Code      []byte
	Constants []value.Value
	Lines     []int
}

// New returns an empty chunk.
func New() *Chunk {
	return &Chunk{}
}

// Write appends a single instruction byte, recording its source line.
func (c *Chunk) Write(b byte, line int) int {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op OpCode, line int) int {
	return c.Write(byte(op), line)
}

// WriteUint16 appends a big-endian 16-bit operand, e.g. a jump offset.
func (c *Chunk) WriteUint16(v uint16, line int) {
	c.Write(byte(v>>8), line)
	c.Write(byte(v), line)
}

// AddConstant appends v to the constant pool and returns its index. The
// garbage collector's write barrier applies here conceptually (spec
// §4.8's "constant append" barrier point), but AddConstant makes no
// gc.WriteBarrier call: a collection runs to completion inside a single
// allocation, so none is ever in progress while a constant is appended.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// MarkConstants implements value.ConstantMarker so the GC can trace a
// function's constant pool without pkg/value importing pkg/chunk.
func (c *Chunk) MarkConstants(gc *value.GC) {
	for _, v := range c.Constants {
		gc.MarkValue(v)
	}
}

// PatchJump backfills a previously emitted 2-byte jump operand at
// offset with the distance from just after the operand to the current
// end of the chunk. Used for forward jumps (OP_JUMP, OP_JUMP_IF_FALSE)
// once the jump target is known.
func (c *Chunk) PatchJump(offset int) {
	jump := len(c.Code) - offset - 2
	c.Code[offset] = byte(uint16(jump) >> 8)
	c.Code[offset+1] = byte(uint16(jump))
}
