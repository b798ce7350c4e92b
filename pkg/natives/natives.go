// Package natives implements the VM's built-in native function registry
// (spec §6.3): clock, length, append, delete. Grounded on the teacher's
// pkg/vm/primitives.go registration pattern -- a flat list of
// name/NativeFn pairs installed into globals at startup -- with the
// primitive bodies themselves replaced wholesale for this language's
// domain (strings and lists rather than the teacher's Smalltalk message
// primitives).
package natives

import (
	"fmt"

	"github.com/kristofer/ember/pkg/value"
)

// Register installs every native function as a global in gc/globals,
// the way vm_init is specified to (spec §6.2's "register built-in
// natives" step).
func Register(gc *value.GC, globals *value.Table) {
	define(gc, globals, "clock", clock)
	define(gc, globals, "length", length)
	define(gc, globals, "append", appendNative)
	define(gc, globals, "delete", deleteNative)
}

func define(gc *value.GC, globals *value.Table, name string, fn value.NativeFn) {
	globals.Set(gc.Intern(name), value.ObjValue(gc.NewNative(name, fn)))
}

// clock reports process CPU time in seconds as a double, matching
// `_examples/original_source/src/vm.c`'s `clock() / CLOCKS_PER_SEC`
// exactly (spec §5/§6.3 both call this out as "process CPU time", not
// wall-clock time -- see DESIGN.md's Open Question decisions). The
// actual sampling lives in clock_unix.go/clock_other.go since reading
// CPU time needs a platform syscall Go's stdlib doesn't expose
// portably.
func clock(argc int, args []value.Value) (value.Value, error) {
	if argc != 0 {
		return value.Nil(), fmt.Errorf("clock() takes no arguments")
	}
	return value.Number(processCPUSeconds()), nil
}

func length(argc int, args []value.Value) (value.Value, error) {
	if argc != 1 {
		return value.Nil(), fmt.Errorf("length() takes exactly 1 argument")
	}
	switch args[0].Kind() {
	case value.ObjList:
		return value.Number(float64(len(args[0].AsObj().(*value.ObjListVal).Items))), nil
	case value.ObjString:
		return value.Number(float64(len(args[0].AsObj().(*value.ObjStringVal).Chars))), nil
	default:
		return value.Nil(), fmt.Errorf("length() expects a list or string")
	}
}

func appendNative(argc int, args []value.Value) (value.Value, error) {
	if argc != 2 {
		return value.Nil(), fmt.Errorf("append() takes exactly 2 arguments")
	}
	if args[0].Kind() != value.ObjList {
		return value.Nil(), fmt.Errorf("append() expects a list as its first argument")
	}
	list := args[0].AsObj().(*value.ObjListVal)
	list.Items = append(list.Items, args[1])
	return value.Nil(), nil
}

func deleteNative(argc int, args []value.Value) (value.Value, error) {
	if argc != 2 {
		return value.Nil(), fmt.Errorf("delete() takes exactly 2 arguments")
	}
	if args[0].Kind() != value.ObjList {
		return value.Nil(), fmt.Errorf("delete() expects a list as its first argument")
	}
	if !args[1].IsNumber() {
		return value.Nil(), fmt.Errorf("delete() expects a numeric index")
	}
	list := args[0].AsObj().(*value.ObjListVal)
	idx := int(args[1].AsNumber())
	if idx < 0 || idx >= len(list.Items) {
		return value.Nil(), fmt.Errorf("cannot delete: index %d out of bounds for list of length %d", idx, len(list.Items))
	}
	list.Items = append(list.Items[:idx], list.Items[idx+1:]...)
	return value.Nil(), nil
}
