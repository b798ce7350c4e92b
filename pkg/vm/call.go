package vm

import "github.com/kristofer/ember/pkg/value"

// callValue implements the call protocol's callee dispatch (spec §4.2):
// closures call directly, natives invoke their Go function immediately,
// classes instantiate (running `init` if the class defines one), and
// bound methods rebind their receiver into the callee slot before
// calling through.
func (vm *VM) callValue(callee value.Value, argc int) error {
	if !callee.IsObj() {
		return vm.runtimeError("Can only call functions and classes.")
	}
	switch callee.Kind() {
	case value.ObjClosure:
		return vm.call(callee.AsObj().(*value.ObjClosureVal), argc)
	case value.ObjNative:
		native := callee.AsObj().(*value.ObjNativeVal)
		args := vm.stack[vm.stackTop-argc : vm.stackTop]
		result, err := native.Fn(argc, args)
		if err != nil {
			return vm.runtimeError("%v", err)
		}
		vm.stackTop -= argc + 1
		vm.push(result)
		return nil
	case value.ObjClass:
		class := callee.AsObj().(*value.ObjClassVal)
		instance := vm.gc.NewInstance(class)
		vm.stack[vm.stackTop-argc-1] = value.ObjValue(instance)
		if initializer, ok := class.Methods.Get(vm.initString); ok {
			return vm.call(initializer.AsObj().(*value.ObjClosureVal), argc)
		}
		if argc != 0 {
			return vm.runtimeError("Expected %d arguments but got %d.", 0, argc)
		}
		return nil
	case value.ObjBoundMethod:
		bound := callee.AsObj().(*value.ObjBoundMethodVal)
		vm.stack[vm.stackTop-argc-1] = bound.Receiver
		return vm.call(bound.Method, argc)
	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

// call pushes a new CallFrame for closure, validating arity and
// call-depth bounds (spec §4.1/§4.2).
func (vm *VM) call(closure *value.ObjClosureVal, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if vm.frameCount == FramesMax {
		return vm.runtimeError("Stack overflow.")
	}
	frame := &vm.frames[vm.frameCount]
	frame.closure = closure
	frame.ip = 0
	frame.slots = vm.stackTop - argc - 1
	vm.frameCount++
	return nil
}

// invoke implements the OP_INVOKE fast path: a field of the same name
// shadows a method (spec §4.4), so a callable field must be checked and
// dispatched through callValue before falling back to method lookup.
func (vm *VM) invoke(name *value.ObjStringVal, argc int) error {
	receiver := vm.peek(argc)
	if receiver.Kind() != value.ObjInstance {
		return vm.runtimeError("Only instances have methods.")
	}
	instance := receiver.AsObj().(*value.ObjInstanceVal)
	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argc-1] = field
		return vm.callValue(field, argc)
	}
	return vm.invokeFromClass(instance.Class, name, argc)
}

// invokeFromClass looks up name in class's method table only (bypassing
// field shadowing), which is exactly the class-qualified dispatch
// OP_SUPER_INVOKE needs.
func (vm *VM) invokeFromClass(class *value.ObjClassVal, name *value.ObjStringVal, argc int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	return vm.call(method.AsObj().(*value.ObjClosureVal), argc)
}

// bindMethod looks up name on class, producing a BoundMethod pairing it
// with the receiver currently on top of the stack (replacing the
// receiver with the bound method). Used by OP_GET_PROPERTY and
// OP_GET_SUPER when the name resolves to a method rather than a field.
func (vm *VM) bindMethod(class *value.ObjClassVal, name *value.ObjStringVal) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	bound := vm.gc.NewBoundMethod(vm.peek(0), method.AsObj().(*value.ObjClosureVal))
	vm.pop()
	vm.push(value.ObjValue(bound))
	return nil
}
