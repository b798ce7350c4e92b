package parser

import (
	"testing"

	"github.com/kristofer/ember/pkg/ast"
)

func TestParseArithmeticPrecedence(t *testing.T) {
	prog, err := New("print (1 + 2) * 3 - 4;").Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	ps, ok := prog.Statements[0].(*ast.PrintStmt)
	if !ok {
		t.Fatalf("expected *ast.PrintStmt, got %T", prog.Statements[0])
	}
	bin, ok := ps.X.(*ast.Binary)
	if !ok || bin.Op != "-" {
		t.Fatalf("expected top-level '-' binary, got %#v", ps.X)
	}
}

func TestParseClassWithSuperclass(t *testing.T) {
	src := `class B < A { greet() { return super.greet() + "B"; } }`
	prog, err := New(src).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cd, ok := prog.Statements[0].(*ast.ClassDecl)
	if !ok {
		t.Fatalf("expected *ast.ClassDecl, got %T", prog.Statements[0])
	}
	if cd.Name != "B" || cd.SuperName != "A" {
		t.Errorf("got name=%q super=%q, want B/A", cd.Name, cd.SuperName)
	}
	if len(cd.Methods) != 1 || cd.Methods[0].Name != "greet" {
		t.Fatalf("expected single 'greet' method, got %#v", cd.Methods)
	}
}

func TestParseForDesugarsToWhile(t *testing.T) {
	src := `for (var i = 0; i < 3; i = i + 1) print i;`
	prog, err := New(src).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	block, ok := prog.Statements[0].(*ast.BlockStmt)
	if !ok || len(block.Statements) != 2 {
		t.Fatalf("expected desugared block of [init, while], got %#v", prog.Statements[0])
	}
	if _, ok := block.Statements[0].(*ast.VarDecl); !ok {
		t.Errorf("expected first statement to be VarDecl, got %T", block.Statements[0])
	}
	if _, ok := block.Statements[1].(*ast.WhileStmt); !ok {
		t.Errorf("expected second statement to be WhileStmt, got %T", block.Statements[1])
	}
}

func TestParseIndexAssignment(t *testing.T) {
	prog, err := New(`xs[0] = 1;`).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	es, ok := prog.Statements[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected ExprStmt, got %T", prog.Statements[0])
	}
	if _, ok := es.X.(*ast.IndexSet); !ok {
		t.Fatalf("expected IndexSet, got %T", es.X)
	}
}

func TestParseInvalidAssignmentTargetIsError(t *testing.T) {
	_, err := New(`1 = 2;`).Parse()
	if err == nil {
		t.Fatal("expected a parse error for invalid assignment target")
	}
}
