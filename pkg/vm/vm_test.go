package vm_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/kristofer/ember/pkg/compiler"
	"github.com/kristofer/ember/pkg/natives"
	"github.com/kristofer/ember/pkg/parser"
	"github.com/kristofer/ember/pkg/vm"
)

func run(t *testing.T, src string) (string, error) {
	t.Helper()
	prog, err := parser.New(src).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	machine := vm.New()
	natives.Register(machine.GC(), machine.Globals())
	fn, err := compiler.Compile(prog, machine.GC())
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var buf bytes.Buffer
	machine.Out = &buf
	runErr := machine.Interpret(fn)
	return buf.String(), runErr
}

func TestArithmeticPrecedence(t *testing.T) {
	out, err := run(t, `println (1 + 2) * 3 - 4;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "5" {
		t.Errorf("got %q, want 5", out)
	}
}

func TestClosuresShareStorage(t *testing.T) {
	src := `
fun makeCounter() {
  var count = 0;
  fun increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
var counter = makeCounter();
println counter();
println counter();
println counter();
`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "1\n2\n3" {
		t.Errorf("got %q, want 1/2/3 sequence", out)
	}
}

func TestClassInitAndMethod(t *testing.T) {
	src := `
class Counter {
  init(start) { this.n = start; }
  bump() { this.n = this.n + 1; return this.n; }
}
var c = Counter(10);
println c.bump();
println c.bump();
`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "11\n12" {
		t.Errorf("got %q, want 11/12 sequence", out)
	}
}

func TestInheritanceAndSuper(t *testing.T) {
	src := `
class Animal {
  speak() { return "..."; }
  describe() { return "A generic animal says " + this.speak(); }
}
class Dog < Animal {
  speak() { return "Woof, and " + super.speak(); }
}
var d = Dog();
println d.describe();
`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "A generic animal says Woof, and ..." {
		t.Errorf("got %q", out)
	}
}

func TestListsAndNatives(t *testing.T) {
	src := `
var xs = [10, 20, 30];
append(xs, 40);
delete(xs, 0);
println length(xs);
println xs[1];
`
	out, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "3\n30"
	if strings.TrimSpace(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestRuntimeErrorReportsStackTrace(t *testing.T) {
	src := `
fun boom() {
  return 1 + nil;
}
boom();
`
	_, err := run(t, src)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	re, ok := err.(*vm.RuntimeError)
	if !ok {
		t.Fatalf("expected *vm.RuntimeError, got %T", err)
	}
	if len(re.Frames) < 2 {
		t.Errorf("expected at least 2 stack frames, got %d: %v", len(re.Frames), re.Frames)
	}
	if re.Frames[0].FunctionName != "boom" {
		t.Errorf("innermost frame = %q, want boom", re.Frames[0].FunctionName)
	}
}

// TestMethodCallOnNonInstanceReportsExactMessage covers spec §8 scenario
// 6 verbatim: calling a method on a non-instance must print exactly
// "Only instances have methods." followed by a single "[line L] in
// script" trace entry.
func TestMethodCallOnNonInstanceReportsExactMessage(t *testing.T) {
	_, err := run(t, `var x = 1; x.greet();`)
	re, ok := err.(*vm.RuntimeError)
	if !ok {
		t.Fatalf("expected *vm.RuntimeError, got %T (%v)", err, err)
	}
	if re.Message != "Only instances have methods." {
		t.Errorf("message = %q, want %q", re.Message, "Only instances have methods.")
	}
	if len(re.Frames) != 1 || re.Frames[0].FunctionName != "<script>" {
		t.Fatalf("frames = %v, want a single top-level script frame", re.Frames)
	}
	wantLine := fmt.Sprintf("[line %d] in script", re.Frames[0].Line)
	if !strings.Contains(re.Error(), wantLine) {
		t.Errorf("Error() = %q, want it to contain %q", re.Error(), wantLine)
	}
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, err := run(t, `print undefinedThing;`)
	if err == nil {
		t.Fatal("expected a runtime error for an undefined global")
	}
}

func TestListIndexOutOfRangeIsRuntimeError(t *testing.T) {
	_, err := run(t, `var xs = [1,2]; print xs[5];`)
	if err == nil {
		t.Fatal("expected a runtime error for an out-of-range list index")
	}
}
