package compiler

import (
	"github.com/kristofer/ember/pkg/ast"
	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/value"
)

func (c *Compiler) compileStatement(s ast.Statement) error {
	c.line = s.Line()
	switch n := s.(type) {
	case *ast.ExprStmt:
		if err := c.compileExpression(n.X); err != nil {
			return err
		}
		c.emitOp(chunk.OpPop, n.Line())
		return nil
	case *ast.VarDecl:
		return c.varDecl(n)
	case *ast.FunDecl:
		return c.funDecl(n)
	case *ast.ClassDecl:
		return c.classDecl(n)
	case *ast.BlockStmt:
		c.beginScope()
		for _, stmt := range n.Statements {
			if err := c.compileStatement(stmt); err != nil {
				return err
			}
		}
		c.endScope(n.Line())
		return nil
	case *ast.IfStmt:
		return c.ifStmt(n)
	case *ast.WhileStmt:
		return c.whileStmt(n)
	case *ast.PrintStmt:
		if err := c.compileExpression(n.X); err != nil {
			return err
		}
		if n.Newline {
			c.emitOp(chunk.OpPrintln, n.Line())
		} else {
			c.emitOp(chunk.OpPrint, n.Line())
		}
		return nil
	case *ast.ReturnStmt:
		return c.returnStmt(n)
	default:
		return c.compileError(s.Line(), "compiler: unhandled statement %T", s)
	}
}

func (c *Compiler) varDecl(n *ast.VarDecl) error {
	if err := c.declareLocal(n.Name, n.Line()); err != nil {
		return err
	}
	if n.Init != nil {
		if err := c.compileExpression(n.Init); err != nil {
			return err
		}
	} else {
		c.emitOp(chunk.OpNil, n.Line())
	}
	c.defineVariable(n.Name, n.Line())
	return nil
}

func (c *Compiler) funDecl(n *ast.FunDecl) error {
	if err := c.declareLocal(n.Name, n.Line()); err != nil {
		return err
	}
	c.markInitialized()
	if err := c.compileFunction(n, TypeFunction); err != nil {
		return err
	}
	c.defineVariable(n.Name, n.Line())
	return nil
}

// compileFunction compiles n's parameter list and body as a nested
// function, emitting an OP_CLOSURE (with its trailing upvalue
// descriptors) into the *enclosing* compiler's chunk.
func (c *Compiler) compileFunction(n *ast.FunDecl, fnType FunctionType) error {
	inner := newCompiler(c, c.gc, fnType, n.Name)
	inner.beginScope()
	for _, p := range n.Params {
		if err := inner.declareLocal(p, n.Line()); err != nil {
			return err
		}
		inner.markInitialized()
	}
	inner.fn.Arity = len(n.Params)
	for _, stmt := range n.Body {
		if err := inner.compileStatement(stmt); err != nil {
			return err
		}
	}
	inner.emitReturn()

	idx := c.makeConstant(value.ObjValue(inner.fn))
	c.emitOp(chunk.OpClosure, n.Line())
	c.emitByte(byte(idx), n.Line())
	for _, uv := range inner.upvalues {
		if uv.isLocal {
			c.emitByte(1, n.Line())
		} else {
			c.emitByte(0, n.Line())
		}
		c.emitByte(uv.index, n.Line())
	}
	return nil
}

func (c *Compiler) classDecl(n *ast.ClassDecl) error {
	if err := c.declareLocal(n.Name, n.Line()); err != nil {
		return err
	}
	nameIdx := c.identifierConstant(n.Name)
	c.emitOp(chunk.OpClass, n.Line())
	c.emitByte(byte(nameIdx), n.Line())
	c.defineVariable(n.Name, n.Line())

	cc := &classCompiler{enclosing: c.class}
	c.class = cc

	if n.SuperName != "" {
		if n.SuperName == n.Name {
			return c.compileError(n.Line(), "class %q cannot inherit from itself", n.Name)
		}
		if err := c.compileVariableRef(n.SuperName, n.Line()); err != nil {
			return err
		}
		c.beginScope()
		if err := c.declareLocal("super", n.Line()); err != nil {
			return err
		}
		c.markInitialized()
		if err := c.compileVariableRef(n.Name, n.Line()); err != nil {
			return err
		}
		c.emitOp(chunk.OpInherit, n.Line())
		cc.hasSuperclass = true
	}

	if err := c.compileVariableRef(n.Name, n.Line()); err != nil {
		return err
	}
	for _, m := range n.Methods {
		methodIdx := c.identifierConstant(m.Name)
		fnType := TypeMethod
		if m.Name == "init" {
			fnType = TypeInitializer
		}
		if err := c.compileFunction(m, fnType); err != nil {
			return err
		}
		c.emitOp(chunk.OpMethod, m.Line())
		c.emitByte(byte(methodIdx), m.Line())
	}
	c.emitOp(chunk.OpPop, n.Line()) // pop the class itself

	if cc.hasSuperclass {
		c.endScope(n.Line())
	}
	c.class = cc.enclosing
	return nil
}

func (c *Compiler) ifStmt(n *ast.IfStmt) error {
	if err := c.compileExpression(n.Cond); err != nil {
		return err
	}
	thenJump := c.emitJump(chunk.OpJumpIfFalse, n.Line())
	c.emitOp(chunk.OpPop, n.Line())
	if err := c.compileStatement(n.Then); err != nil {
		return err
	}
	elseJump := c.emitJump(chunk.OpJump, n.Line())
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop, n.Line())
	if n.Else != nil {
		if err := c.compileStatement(n.Else); err != nil {
			return err
		}
	}
	c.patchJump(elseJump)
	return nil
}

func (c *Compiler) whileStmt(n *ast.WhileStmt) error {
	loopStart := len(c.chunk.Code)
	if err := c.compileExpression(n.Cond); err != nil {
		return err
	}
	exitJump := c.emitJump(chunk.OpJumpIfFalse, n.Line())
	c.emitOp(chunk.OpPop, n.Line())
	if err := c.compileStatement(n.Body); err != nil {
		return err
	}
	c.emitLoop(loopStart, n.Line())
	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop, n.Line())
	return nil
}

func (c *Compiler) returnStmt(n *ast.ReturnStmt) error {
	if c.fnType == TypeScript {
		return c.compileError(n.Line(), "cannot return from top-level code")
	}
	if n.X == nil {
		c.emitReturn()
		return nil
	}
	if c.fnType == TypeInitializer {
		return c.compileError(n.Line(), "cannot return a value from an initializer")
	}
	if err := c.compileExpression(n.X); err != nil {
		return err
	}
	c.emitOp(chunk.OpReturn, n.Line())
	return nil
}
