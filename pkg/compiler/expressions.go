package compiler

import (
	"github.com/kristofer/ember/pkg/ast"
	"github.com/kristofer/ember/pkg/chunk"
	"github.com/kristofer/ember/pkg/value"
)

func (c *Compiler) compileExpression(e ast.Expression) error {
	c.line = e.Line()
	switch n := e.(type) {
	case *ast.NumberLit:
		c.emitConstant(value.Number(n.Value), n.Line())
		return nil
	case *ast.StringLit:
		c.emitConstant(value.ObjValue(c.gc.Intern(n.Value)), n.Line())
		return nil
	case *ast.BoolLit:
		if n.Value {
			c.emitOp(chunk.OpTrue, n.Line())
		} else {
			c.emitOp(chunk.OpFalse, n.Line())
		}
		return nil
	case *ast.NilLit:
		c.emitOp(chunk.OpNil, n.Line())
		return nil
	case *ast.ListLit:
		for _, item := range n.Items {
			if err := c.compileExpression(item); err != nil {
				return err
			}
		}
		c.emitOp(chunk.OpListInit, n.Line())
		c.emitByte(byte(len(n.Items)), n.Line())
		return nil
	case *ast.Identifier:
		return c.compileVariableRef(n.Name, n.Line())
	case *ast.ThisExpr:
		if c.class == nil {
			return c.compileError(n.Line(), "cannot use 'this' outside of a method")
		}
		return c.compileVariableRef("this", n.Line())
	case *ast.SuperExpr:
		return c.superGet(n)
	case *ast.Assign:
		if err := c.compileExpression(n.Value); err != nil {
			return err
		}
		return c.namedVariableSet(n.Name, n.Line())
	case *ast.Logical:
		return c.logical(n)
	case *ast.Binary:
		return c.binary(n)
	case *ast.Unary:
		return c.unary(n)
	case *ast.Call:
		return c.call(n)
	case *ast.Get:
		if err := c.compileExpression(n.Object); err != nil {
			return err
		}
		idx := c.identifierConstant(n.Name)
		c.emitOp(chunk.OpGetProperty, n.Line())
		c.emitByte(byte(idx), n.Line())
		return nil
	case *ast.Set:
		if err := c.compileExpression(n.Object); err != nil {
			return err
		}
		if err := c.compileExpression(n.Value); err != nil {
			return err
		}
		idx := c.identifierConstant(n.Name)
		c.emitOp(chunk.OpSetProperty, n.Line())
		c.emitByte(byte(idx), n.Line())
		return nil
	case *ast.IndexGet:
		if err := c.compileExpression(n.List); err != nil {
			return err
		}
		if err := c.compileExpression(n.Index); err != nil {
			return err
		}
		c.emitOp(chunk.OpListGetIdx, n.Line())
		return nil
	case *ast.IndexSet:
		if err := c.compileExpression(n.List); err != nil {
			return err
		}
		if err := c.compileExpression(n.Index); err != nil {
			return err
		}
		if err := c.compileExpression(n.Value); err != nil {
			return err
		}
		c.emitOp(chunk.OpListSetIdx, n.Line())
		return nil
	default:
		return c.compileError(e.Line(), "compiler: unhandled expression %T", e)
	}
}

// compileVariableRef emits the get form for name: a local slot read, an
// upvalue read, or (falling through both) a global lookup by name.
func (c *Compiler) compileVariableRef(name string, line int) error {
	if local, err := c.resolveLocal(name); err != nil {
		return c.compileError(line, "%v", err)
	} else if local != -1 {
		c.emitOpByte(chunk.OpGetLocal, byte(local), line)
		return nil
	}
	if up, err := c.resolveUpvalue(name); err != nil {
		return c.compileError(line, "%v", err)
	} else if up != -1 {
		c.emitOpByte(chunk.OpGetUpvalue, byte(up), line)
		return nil
	}
	idx := c.identifierConstant(name)
	c.emitOpByte(chunk.OpGetGlobal, byte(idx), line)
	return nil
}

// namedVariableSet emits the set form for name, assuming the new value is
// already on top of the stack.
func (c *Compiler) namedVariableSet(name string, line int) error {
	if local, err := c.resolveLocal(name); err != nil {
		return c.compileError(line, "%v", err)
	} else if local != -1 {
		c.emitOpByte(chunk.OpSetLocal, byte(local), line)
		return nil
	}
	if up, err := c.resolveUpvalue(name); err != nil {
		return c.compileError(line, "%v", err)
	} else if up != -1 {
		c.emitOpByte(chunk.OpSetUpvalue, byte(up), line)
		return nil
	}
	idx := c.identifierConstant(name)
	c.emitOpByte(chunk.OpSetGlobal, byte(idx), line)
	return nil
}

func (c *Compiler) logical(n *ast.Logical) error {
	if err := c.compileExpression(n.Left); err != nil {
		return err
	}
	if n.Op == "and" {
		endJump := c.emitJump(chunk.OpJumpIfFalse, n.Line())
		c.emitOp(chunk.OpPop, n.Line())
		if err := c.compileExpression(n.Right); err != nil {
			return err
		}
		c.patchJump(endJump)
		return nil
	}
	// "or": if left is truthy, short-circuit by jumping past the right
	// operand; clox does this with two jumps rather than a dedicated
	// OP_JUMP_IF_TRUE, and so do we since the opcode set has none.
	elseJump := c.emitJump(chunk.OpJumpIfFalse, n.Line())
	endJump := c.emitJump(chunk.OpJump, n.Line())
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop, n.Line())
	if err := c.compileExpression(n.Right); err != nil {
		return err
	}
	c.patchJump(endJump)
	return nil
}

func (c *Compiler) binary(n *ast.Binary) error {
	if err := c.compileExpression(n.Left); err != nil {
		return err
	}
	if err := c.compileExpression(n.Right); err != nil {
		return err
	}
	line := n.Line()
	switch n.Op {
	case "+":
		c.emitOp(chunk.OpAdd, line)
	case "-":
		c.emitOp(chunk.OpSubtract, line)
	case "*":
		c.emitOp(chunk.OpMultiply, line)
	case "/":
		c.emitOp(chunk.OpDivide, line)
	case "==":
		c.emitOp(chunk.OpEqual, line)
	case "!=":
		c.emitOp(chunk.OpEqual, line)
		c.emitOp(chunk.OpNot, line)
	case ">":
		c.emitOp(chunk.OpGreater, line)
	case ">=":
		c.emitOp(chunk.OpLess, line)
		c.emitOp(chunk.OpNot, line)
	case "<":
		c.emitOp(chunk.OpLess, line)
	case "<=":
		c.emitOp(chunk.OpGreater, line)
		c.emitOp(chunk.OpNot, line)
	default:
		return c.compileError(line, "compiler: unknown binary operator %q", n.Op)
	}
	return nil
}

func (c *Compiler) unary(n *ast.Unary) error {
	if err := c.compileExpression(n.Right); err != nil {
		return err
	}
	switch n.Op {
	case "-":
		c.emitOp(chunk.OpNegate, n.Line())
	case "!":
		c.emitOp(chunk.OpNot, n.Line())
	default:
		return c.compileError(n.Line(), "compiler: unknown unary operator %q", n.Op)
	}
	return nil
}

// call compiles a call expression, choosing the OP_INVOKE / OP_SUPER_INVOKE
// fast paths (spec §4.2's "call protocol") whenever the callee is a
// property access, instead of the generic OP_GET_PROPERTY + OP_CALL pair.
func (c *Compiler) call(n *ast.Call) error {
	if get, ok := n.Callee.(*ast.Get); ok {
		if err := c.compileExpression(get.Object); err != nil {
			return err
		}
		if err := c.compileArgs(n.Args); err != nil {
			return err
		}
		idx := c.identifierConstant(get.Name)
		c.emitOp(chunk.OpInvoke, n.Line())
		c.emitByte(byte(idx), n.Line())
		c.emitByte(byte(len(n.Args)), n.Line())
		return nil
	}
	if sup, ok := n.Callee.(*ast.SuperExpr); ok {
		if c.class == nil {
			return c.compileError(n.Line(), "cannot use 'super' outside of a method")
		}
		if !c.class.hasSuperclass {
			return c.compileError(n.Line(), "cannot use 'super' in a class with no superclass")
		}
		if err := c.compileVariableRef("this", n.Line()); err != nil {
			return err
		}
		if err := c.compileArgs(n.Args); err != nil {
			return err
		}
		if err := c.compileVariableRef("super", n.Line()); err != nil {
			return err
		}
		idx := c.identifierConstant(sup.Method)
		c.emitOp(chunk.OpSuperInvoke, n.Line())
		c.emitByte(byte(idx), n.Line())
		c.emitByte(byte(len(n.Args)), n.Line())
		return nil
	}

	if err := c.compileExpression(n.Callee); err != nil {
		return err
	}
	if err := c.compileArgs(n.Args); err != nil {
		return err
	}
	c.emitOp(chunk.OpCall, n.Line())
	c.emitByte(byte(len(n.Args)), n.Line())
	return nil
}

func (c *Compiler) compileArgs(args []ast.Expression) error {
	if len(args) > 255 {
		return c.compileError(0, "cannot pass more than 255 arguments")
	}
	for _, a := range args {
		if err := c.compileExpression(a); err != nil {
			return err
		}
	}
	return nil
}

// superGet compiles a bare `super.method` (not a call): push the
// receiver, push the superclass, emit OP_GET_SUPER to produce a bound
// method.
func (c *Compiler) superGet(n *ast.SuperExpr) error {
	if c.class == nil {
		return c.compileError(n.Line(), "cannot use 'super' outside of a method")
	}
	if !c.class.hasSuperclass {
		return c.compileError(n.Line(), "cannot use 'super' in a class with no superclass")
	}
	if err := c.compileVariableRef("this", n.Line()); err != nil {
		return err
	}
	if err := c.compileVariableRef("super", n.Line()); err != nil {
		return err
	}
	idx := c.identifierConstant(n.Method)
	c.emitOp(chunk.OpGetSuper, n.Line())
	c.emitByte(byte(idx), n.Line())
	return nil
}
