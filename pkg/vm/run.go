package vm

import (
	"fmt"

	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/value"
)

func readByte(frame *CallFrame, c *chunk.Chunk) byte {
	b := c.Code[frame.ip]
	frame.ip++
	return b
}

func readShort(frame *CallFrame, c *chunk.Chunk) uint16 {
	hi := c.Code[frame.ip]
	lo := c.Code[frame.ip+1]
	frame.ip += 2
	return uint16(hi)<<8 | uint16(lo)
}

func readConstant(frame *CallFrame, c *chunk.Chunk) value.Value {
	return c.Constants[readByte(frame, c)]
}

func readString(frame *CallFrame, c *chunk.Chunk) *value.ObjStringVal {
	return readConstant(frame, c).AsObj().(*value.ObjStringVal)
}

// run is the main fetch-decode-execute loop (spec §4.7). frame and c are
// cached across iterations and refreshed only when an instruction
// changes which frame is executing (call, invoke, return), matching the
// teacher's Run() for/switch structure generalized to this opcode set.
func (vm *VM) run() error {
	frame := vm.currentFrame()
	c := frame.chunkOf().Chunk.(*chunk.Chunk)

	for {
		if vm.Debug != nil {
			vm.Debug.BeforeInstruction(vm, frame, frame.ip, chunk.OpCode(c.Code[frame.ip]))
		}
		op := chunk.OpCode(readByte(frame, c))

		switch op {
		case chunk.OpConstant:
			vm.push(readConstant(frame, c))

		case chunk.OpNil:
			vm.push(value.Nil())
		case chunk.OpTrue:
			vm.push(value.Bool(true))
		case chunk.OpFalse:
			vm.push(value.Bool(false))
		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := readByte(frame, c)
			vm.push(vm.stack[frame.slots+int(slot)])
		case chunk.OpSetLocal:
			slot := readByte(frame, c)
			vm.stack[frame.slots+int(slot)] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := readString(frame, c)
			val, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined symbol '%s'.", name.Chars)
			}
			vm.push(val)
		case chunk.OpDefineGlobal:
			name := readString(frame, c)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := readString(frame, c)
			if isNew := vm.globals.Set(name, vm.peek(0)); isNew {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case chunk.OpGetUpvalue:
			idx := readByte(frame, c)
			uv := frame.closure.Upvalues[idx]
			if uv.IsOpen {
				vm.push(vm.stack[uv.Slot])
			} else {
				vm.push(uv.Closed)
			}
		case chunk.OpSetUpvalue:
			idx := readByte(frame, c)
			uv := frame.closure.Upvalues[idx]
			if uv.IsOpen {
				vm.stack[uv.Slot] = vm.peek(0)
			} else {
				uv.Closed = vm.peek(0)
			}

		case chunk.OpGetProperty:
			name := readString(frame, c)
			recv := vm.peek(0)
			if recv.Kind() != value.ObjInstance {
				return vm.runtimeError("Only instances have properties.")
			}
			inst := recv.AsObj().(*value.ObjInstanceVal)
			if val, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(val)
			} else if err := vm.bindMethod(inst.Class, name); err != nil {
				return err
			}
		case chunk.OpSetProperty:
			name := readString(frame, c)
			recv := vm.peek(1)
			if recv.Kind() != value.ObjInstance {
				return vm.runtimeError("Only instances have fields.")
			}
			inst := recv.AsObj().(*value.ObjInstanceVal)
			val := vm.peek(0)
			inst.Fields.Set(name, val)
			vm.pop()
			vm.pop()
			vm.push(val)
		case chunk.OpGetSuper:
			name := readString(frame, c)
			superclass := vm.pop().AsObj().(*value.ObjClassVal)
			if err := vm.bindMethod(superclass, name); err != nil {
				return err
			}

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater:
			if err := vm.numericBinary(func(a, b float64) value.Value { return value.Bool(a > b) }); err != nil {
				return err
			}
		case chunk.OpLess:
			if err := vm.numericBinary(func(a, b float64) value.Value { return value.Bool(a < b) }); err != nil {
				return err
			}
		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case chunk.OpSubtract:
			if err := vm.numericBinary(func(a, b float64) value.Value { return value.Number(a - b) }); err != nil {
				return err
			}
		case chunk.OpMultiply:
			if err := vm.numericBinary(func(a, b float64) value.Value { return value.Number(a * b) }); err != nil {
				return err
			}
		case chunk.OpDivide:
			if err := vm.numericBinary(func(a, b float64) value.Value { return value.Number(a / b) }); err != nil {
				return err
			}
		case chunk.OpNot:
			vm.push(value.Bool(vm.pop().IsFalsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case chunk.OpPrint:
			fmt.Fprint(vm.Out, Stringify(vm.pop()))
		case chunk.OpPrintln:
			fmt.Fprintln(vm.Out, Stringify(vm.pop()))

		case chunk.OpJump:
			offset := readShort(frame, c)
			frame.ip += int(offset)
		case chunk.OpJumpIfFalse:
			offset := readShort(frame, c)
			if vm.peek(0).IsFalsey() {
				frame.ip += int(offset)
			}
		case chunk.OpLoop:
			offset := readShort(frame, c)
			frame.ip -= int(offset)

		case chunk.OpCall:
			argc := int(readByte(frame, c))
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return err
			}
			frame, c = vm.currentFrame(), vm.currentFrame().chunkOf().Chunk.(*chunk.Chunk)

		case chunk.OpInvoke:
			name := readString(frame, c)
			argc := int(readByte(frame, c))
			if err := vm.invoke(name, argc); err != nil {
				return err
			}
			frame, c = vm.currentFrame(), vm.currentFrame().chunkOf().Chunk.(*chunk.Chunk)

		case chunk.OpSuperInvoke:
			name := readString(frame, c)
			argc := int(readByte(frame, c))
			superclass := vm.pop().AsObj().(*value.ObjClassVal)
			if err := vm.invokeFromClass(superclass, name, argc); err != nil {
				return err
			}
			frame, c = vm.currentFrame(), vm.currentFrame().chunkOf().Chunk.(*chunk.Chunk)

		case chunk.OpClosure:
			fnVal := readConstant(frame, c)
			fn := fnVal.AsObj().(*value.ObjFunctionVal)
			closure := vm.gc.NewClosure(fn)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte(frame, c) == 1
				index := readByte(frame, c)
				if isLocal {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slots + int(index))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			vm.push(value.ObjValue(closure))
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpListInit:
			n := int(readByte(frame, c))
			items := make([]value.Value, n)
			copy(items, vm.stack[vm.stackTop-n:vm.stackTop])
			vm.stackTop -= n
			vm.push(value.ObjValue(vm.gc.NewList(items)))
		case chunk.OpListGetIdx:
			idxVal := vm.pop()
			listVal := vm.pop()
			if listVal.Kind() != value.ObjList {
				return vm.runtimeError("Invalid type to index into.")
			}
			list := listVal.AsObj().(*value.ObjListVal)
			idx, err := listIndex(list, idxVal)
			if err != nil {
				return vm.runtimeError("%v", err)
			}
			vm.push(list.Items[idx])
		case chunk.OpListSetIdx:
			val := vm.pop()
			idxVal := vm.pop()
			listVal := vm.pop()
			if listVal.Kind() != value.ObjList {
				return vm.runtimeError("Invalid type to index into.")
			}
			list := listVal.AsObj().(*value.ObjListVal)
			idx, err := listIndex(list, idxVal)
			if err != nil {
				return vm.runtimeError("%v", err)
			}
			list.Items[idx] = val
			vm.push(val)

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.slots
			vm.push(result)
			frame, c = vm.currentFrame(), vm.currentFrame().chunkOf().Chunk.(*chunk.Chunk)

		case chunk.OpClass:
			name := readString(frame, c)
			vm.push(value.ObjValue(vm.gc.NewClass(name)))
		case chunk.OpInherit:
			superVal := vm.peek(1)
			if superVal.Kind() != value.ObjClass {
				return vm.runtimeError("Superclass must be a class.")
			}
			superclass := superVal.AsObj().(*value.ObjClassVal)
			subclass := vm.peek(0).AsObj().(*value.ObjClassVal)
			subclass.Methods.AddAll(superclass.Methods)
			vm.pop() // the subclass; "super" local keeps the superclass reachable
		case chunk.OpMethod:
			name := readString(frame, c)
			methodVal := vm.pop()
			class := vm.peek(0).AsObj().(*value.ObjClassVal)
			class.Methods.Set(name, methodVal)

		default:
			return vm.runtimeError("unknown opcode %d", op)
		}
	}
}

func (vm *VM) numericBinary(op func(a, b float64) value.Value) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operand must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(op(a, b))
	return nil
}

// add implements OP_ADD's dual role: numeric addition, or string
// concatenation when both operands are strings (spec §4.7).
func (vm *VM) add() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		bn := vm.pop().AsNumber()
		an := vm.pop().AsNumber()
		vm.push(value.Number(an + bn))
		return nil
	case a.Kind() == value.ObjString && b.Kind() == value.ObjString:
		bs := vm.pop().AsObj().(*value.ObjStringVal)
		as := vm.pop().AsObj().(*value.ObjStringVal)
		vm.push(value.ObjValue(vm.gc.Intern(as.Chars + bs.Chars)))
		return nil
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}
