package compiler

import (
	"testing"

	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/parser"
	"github.com/kristofer/ember/pkg/value"
)

func compileSource(t *testing.T, src string) (*value.ObjFunctionVal, *value.GC) {
	t.Helper()
	prog, err := parser.New(src).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	gc := value.NewGC(nil, nil)
	fn, err := Compile(prog, gc)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return fn, gc
}

func opsOf(t *testing.T, fn *value.ObjFunctionVal) []chunk.OpCode {
	t.Helper()
	c, ok := fn.Chunk.(*chunk.Chunk)
	if !ok {
		t.Fatalf("fn.Chunk is %T, not *chunk.Chunk", fn.Chunk)
	}
	var ops []chunk.OpCode
	for i := 0; i < len(c.Code); {
		op := chunk.OpCode(c.Code[i])
		ops = append(ops, op)
		switch op {
		case chunk.OpConstant, chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetGlobal,
			chunk.OpDefineGlobal, chunk.OpSetGlobal, chunk.OpGetUpvalue, chunk.OpSetUpvalue,
			chunk.OpGetProperty, chunk.OpSetProperty, chunk.OpGetSuper, chunk.OpCall,
			chunk.OpMethod, chunk.OpClass, chunk.OpListInit:
			i += 2
		case chunk.OpInvoke, chunk.OpSuperInvoke:
			i += 3
		case chunk.OpJump, chunk.OpJumpIfFalse, chunk.OpLoop:
			i += 3
		case chunk.OpClosure:
			fnVal := c.Constants[c.Code[i+1]]
			upvalCount := fnVal.AsObj().(*value.ObjFunctionVal).UpvalueCount
			i += 2 + 2*upvalCount
		default:
			i++
		}
	}
	return ops
}

func TestCompileArithmeticEmitsPostfixOrder(t *testing.T) {
	fn, _ := compileSource(t, "print 1 + 2 * 3;")
	ops := opsOf(t, fn)
	want := []chunk.OpCode{
		chunk.OpConstant, chunk.OpConstant, chunk.OpConstant,
		chunk.OpMultiply, chunk.OpAdd, chunk.OpPrint,
		chunk.OpNil, chunk.OpReturn,
	}
	assertOps(t, ops, want)
}

func TestCompileGlobalVarRoundTrips(t *testing.T) {
	fn, _ := compileSource(t, "var x = 1; x = 2;")
	ops := opsOf(t, fn)
	want := []chunk.OpCode{
		chunk.OpConstant, chunk.OpDefineGlobal,
		chunk.OpConstant, chunk.OpSetGlobal, chunk.OpPop,
		chunk.OpNil, chunk.OpReturn,
	}
	assertOps(t, ops, want)
}

func TestCompileLocalVarUsesSlotOpcodes(t *testing.T) {
	fn, _ := compileSource(t, "{ var x = 1; print x; }")
	ops := opsOf(t, fn)
	// local init leaves the value in its slot (no DEFINE_GLOBAL), then a
	// GET_LOCAL for the print, then a POP to close the scope.
	want := []chunk.OpCode{
		chunk.OpConstant, chunk.OpGetLocal, chunk.OpPrint, chunk.OpPop,
		chunk.OpNil, chunk.OpReturn,
	}
	assertOps(t, ops, want)
}

func TestCompileClosureCapturesEnclosingLocal(t *testing.T) {
	src := `
fun outer() {
  var x = 1;
  fun inner() { return x; }
  return inner;
}`
	fn, _ := compileSource(t, src)
	ops := opsOf(t, fn)
	// top level: OP_CLOSURE(outer), OP_DEFINE_GLOBAL, implicit nil return.
	want := []chunk.OpCode{chunk.OpClosure, chunk.OpDefineGlobal, chunk.OpNil, chunk.OpReturn}
	assertOps(t, ops, want)

	c := fn.Chunk.(*chunk.Chunk)
	outerFn := c.Constants[c.Code[1]].AsObj().(*value.ObjFunctionVal)
	if outerFn.UpvalueCount != 0 {
		t.Errorf("outer() should capture nothing, got %d upvalues", outerFn.UpvalueCount)
	}
	outerOps := opsOf(t, outerFn)
	// The VM's OP_RETURN handler closes any upvalues into a captured
	// local itself (spec §4.3); the compiler emits no explicit
	// OP_CLOSE_UPVALUE for a local that only goes out of scope because
	// its enclosing function returned.
	wantOuter := []chunk.OpCode{
		chunk.OpConstant, chunk.OpClosure, chunk.OpGetLocal, chunk.OpReturn,
		chunk.OpNil, chunk.OpReturn,
	}
	assertOps(t, outerOps, wantOuter)
}

func TestCompileClassWithInheritanceEmitsInherit(t *testing.T) {
	src := `
class A { greet() { return "A"; } }
class B < A { greet() { return super.greet(); } }`
	fn, _ := compileSource(t, src)
	ops := opsOf(t, fn)
	var sawInherit, sawMethod bool
	for _, op := range ops {
		if op == chunk.OpInherit {
			sawInherit = true
		}
		if op == chunk.OpMethod {
			sawMethod = true
		}
	}
	if !sawInherit {
		t.Errorf("expected an OP_INHERIT in %v", ops)
	}
	if !sawMethod {
		t.Errorf("expected OP_METHOD in %v", ops)
	}
}

func TestCompileMethodCallUsesInvoke(t *testing.T) {
	src := `class A { greet() { return "hi"; } } var a = A(); print a.greet();`
	fn, _ := compileSource(t, src)
	ops := opsOf(t, fn)
	var sawInvoke bool
	for _, op := range ops {
		if op == chunk.OpInvoke {
			sawInvoke = true
		}
	}
	if !sawInvoke {
		t.Errorf("expected OP_INVOKE optimization in %v", ops)
	}
}

func TestCompileSelfReferentialInitializerIsError(t *testing.T) {
	prog, err := parser.New("{ var a = a; }").Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	gc := value.NewGC(nil, nil)
	if _, err := Compile(prog, gc); err == nil {
		t.Fatal("expected a compile error for self-referential initializer")
	}
}

func TestCompileReturnOutsideFunctionIsError(t *testing.T) {
	prog, err := parser.New("return 1;").Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	gc := value.NewGC(nil, nil)
	if _, err := Compile(prog, gc); err == nil {
		t.Fatal("expected a compile error for top-level return")
	}
}

func assertOps(t *testing.T, got, want []chunk.OpCode) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("opcodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("opcode[%d] = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}
