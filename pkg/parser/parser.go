// Package parser implements a recursive-descent parser with Pratt-style
// precedence climbing for expressions, grounded on the teacher's
// pkg/parser (same New()/Parse() entry shape, same error-accumulation
// style) but built over this language's C-like statement grammar
// (classes, functions, if/while/for, blocks) instead of Smalltalk
// message cascades.
package parser

import (
	"fmt"
	"strconv"

	"github.com/kristofer/ember/pkg/ast"
	"github.com/kristofer/ember/pkg/lexer"
	"github.com/pkg/errors"
)

// Parser consumes a token stream from pkg/lexer and produces an
// *ast.Program, accumulating parse errors rather than stopping at the
// first one; Parse reports only the first of them.
type Parser struct {
	l       *lexer.Lexer
	cur     lexer.Token
	next    lexer.Token
	errs    []error
}

// New returns a Parser over source.
func New(source string) *Parser {
	p := &Parser{l: lexer.New(source)}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.next
	p.next = p.l.Next()
}

func (p *Parser) check(t lexer.TokenType) bool { return p.cur.Type == t }

func (p *Parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(t lexer.TokenType, what string) lexer.Token {
	if !p.check(t) {
		p.errorf("expected %s, got %q at line %d", what, p.cur.Literal, p.cur.Line)
		return p.cur
	}
	tok := p.cur
	p.advance()
	return tok
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errs = append(p.errs, errors.Wrap(fmt.Errorf(format, args...), "parse error"))
}

// Parse parses the entire token stream into a Program. If any errors
// were accumulated, it returns the first one (per the teacher's
// convention of surfacing a single compile error to the driver)
// alongside whatever partial Program was built.
func (p *Parser) Parse() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.check(lexer.TokenEOF) {
		prog.Statements = append(prog.Statements, p.declaration())
		if len(p.errs) > 8 {
			break
		}
	}
	if len(p.errs) > 0 {
		return prog, p.errs[0]
	}
	return prog, nil
}

func (p *Parser) declaration() ast.Statement {
	switch {
	case p.match(lexer.TokenClass):
		return p.classDecl()
	case p.match(lexer.TokenFun):
		return p.funDecl("function")
	case p.match(lexer.TokenVar):
		return p.varDecl()
	default:
		return p.statement()
	}
}

func (p *Parser) classDecl() ast.Statement {
	line := p.cur.Line
	name := p.expect(lexer.TokenIdentifier, "class name").Literal
	super := ""
	if p.match(lexer.TokenLess) {
		super = p.expect(lexer.TokenIdentifier, "superclass name").Literal
	}
	p.expect(lexer.TokenLBrace, "'{'")
	var methods []*ast.FunDecl
	for !p.check(lexer.TokenRBrace) && !p.check(lexer.TokenEOF) {
		methods = append(methods, p.funDecl("method"))
	}
	p.expect(lexer.TokenRBrace, "'}'")
	return ast.NewClassDecl(line, name, super, methods)
}

func (p *Parser) funDecl(kind string) *ast.FunDecl {
	line := p.cur.Line
	name := p.expect(lexer.TokenIdentifier, kind+" name").Literal
	p.expect(lexer.TokenLParen, "'('")
	var params []string
	if !p.check(lexer.TokenRParen) {
		for {
			params = append(params, p.expect(lexer.TokenIdentifier, "parameter name").Literal)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.expect(lexer.TokenRParen, "')'")
	p.expect(lexer.TokenLBrace, "'{'")
	body := p.blockBody()
	return ast.NewFunDecl(line, name, params, body)
}

func (p *Parser) varDecl() ast.Statement {
	line := p.cur.Line
	name := p.expect(lexer.TokenIdentifier, "variable name").Literal
	var init ast.Expression
	if p.match(lexer.TokenEqual) {
		init = p.expression()
	}
	p.expect(lexer.TokenSemicolon, "';'")
	return ast.NewVarDecl(line, name, init)
}

func (p *Parser) statement() ast.Statement {
	switch {
	case p.match(lexer.TokenIf):
		return p.ifStmt()
	case p.match(lexer.TokenWhile):
		return p.whileStmt()
	case p.match(lexer.TokenFor):
		return p.forStmt()
	case p.match(lexer.TokenPrint):
		return p.printStmt(false)
	case p.match(lexer.TokenPrintln):
		return p.printStmt(true)
	case p.match(lexer.TokenReturn):
		return p.returnStmt()
	case p.match(lexer.TokenLBrace):
		line := p.cur.Line
		return ast.NewBlockStmt(line, p.blockBody())
	default:
		return p.exprStmt()
	}
}

func (p *Parser) blockBody() []ast.Statement {
	var stmts []ast.Statement
	for !p.check(lexer.TokenRBrace) && !p.check(lexer.TokenEOF) {
		stmts = append(stmts, p.declaration())
	}
	p.expect(lexer.TokenRBrace, "'}'")
	return stmts
}

func (p *Parser) ifStmt() ast.Statement {
	line := p.cur.Line
	p.expect(lexer.TokenLParen, "'('")
	cond := p.expression()
	p.expect(lexer.TokenRParen, "')'")
	then := p.statement()
	var els ast.Statement
	if p.match(lexer.TokenElse) {
		els = p.statement()
	}
	return ast.NewIfStmt(line, cond, then, els)
}

func (p *Parser) whileStmt() ast.Statement {
	line := p.cur.Line
	p.expect(lexer.TokenLParen, "'('")
	cond := p.expression()
	p.expect(lexer.TokenRParen, "')'")
	body := p.statement()
	return ast.NewWhileStmt(line, cond, body)
}

// forStmt desugars the C-style for loop into the equivalent block of a
// var decl, a while loop, and an increment appended to the loop body --
// there is no dedicated OP_FOR in the bytecode, matching spec §4.7's
// opcode set, which has no for-loop-specific instruction.
func (p *Parser) forStmt() ast.Statement {
	line := p.cur.Line
	p.expect(lexer.TokenLParen, "'('")

	var init ast.Statement
	switch {
	case p.match(lexer.TokenSemicolon):
		init = nil
	case p.check(lexer.TokenVar):
		p.advance()
		init = p.varDecl()
	default:
		init = p.exprStmt()
	}

	var cond ast.Expression
	if !p.check(lexer.TokenSemicolon) {
		cond = p.expression()
	}
	p.expect(lexer.TokenSemicolon, "';'")

	var post ast.Expression
	if !p.check(lexer.TokenRParen) {
		post = p.expression()
	}
	p.expect(lexer.TokenRParen, "')'")

	body := p.statement()

	if post != nil {
		body = ast.NewBlockStmt(line, []ast.Statement{body, ast.NewExprStmt(line, post)})
	}
	if cond == nil {
		cond = ast.NewBoolLit(line, true)
	}
	body = ast.NewWhileStmt(line, cond, body)
	if init != nil {
		body = ast.NewBlockStmt(line, []ast.Statement{init, body})
	}
	return body
}

func (p *Parser) printStmt(newline bool) ast.Statement {
	line := p.cur.Line
	x := p.expression()
	p.expect(lexer.TokenSemicolon, "';'")
	return ast.NewPrintStmt(line, x, newline)
}

func (p *Parser) returnStmt() ast.Statement {
	line := p.cur.Line
	var x ast.Expression
	if !p.check(lexer.TokenSemicolon) {
		x = p.expression()
	}
	p.expect(lexer.TokenSemicolon, "';'")
	return ast.NewReturnStmt(line, x)
}

func (p *Parser) exprStmt() ast.Statement {
	line := p.cur.Line
	x := p.expression()
	p.expect(lexer.TokenSemicolon, "';'")
	return ast.NewExprStmt(line, x)
}

// ---- expressions ----

func (p *Parser) expression() ast.Expression {
	return p.assignment()
}

func (p *Parser) assignment() ast.Expression {
	expr := p.or()

	if p.match(lexer.TokenEqual) {
		line := p.cur.Line
		value := p.assignment()
		switch target := expr.(type) {
		case *ast.Identifier:
			return ast.NewAssign(line, target.Name, value)
		case *ast.Get:
			return ast.NewSet(line, target.Object, target.Name, value)
		case *ast.IndexGet:
			return ast.NewIndexSet(line, target.List, target.Index, value)
		default:
			p.errorf("invalid assignment target at line %d", line)
			return expr
		}
	}
	return expr
}

func (p *Parser) or() ast.Expression {
	expr := p.and()
	for p.match(lexer.TokenOr) {
		line := p.cur.Line
		right := p.and()
		expr = ast.NewLogical(line, "or", expr, right)
	}
	return expr
}

func (p *Parser) and() ast.Expression {
	expr := p.equality()
	for p.match(lexer.TokenAnd) {
		line := p.cur.Line
		right := p.equality()
		expr = ast.NewLogical(line, "and", expr, right)
	}
	return expr
}

func (p *Parser) equality() ast.Expression {
	expr := p.comparison()
	for p.check(lexer.TokenBangEqual) || p.check(lexer.TokenEqualEqual) {
		op := p.cur
		p.advance()
		right := p.comparison()
		expr = ast.NewBinary(op.Line, op.Literal, expr, right)
	}
	return expr
}

func (p *Parser) comparison() ast.Expression {
	expr := p.term()
	for p.check(lexer.TokenGreater) || p.check(lexer.TokenGreaterEqual) ||
		p.check(lexer.TokenLess) || p.check(lexer.TokenLessEqual) {
		op := p.cur
		p.advance()
		right := p.term()
		expr = ast.NewBinary(op.Line, op.Literal, expr, right)
	}
	return expr
}

func (p *Parser) term() ast.Expression {
	expr := p.factor()
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) {
		op := p.cur
		p.advance()
		right := p.factor()
		expr = ast.NewBinary(op.Line, op.Literal, expr, right)
	}
	return expr
}

func (p *Parser) factor() ast.Expression {
	expr := p.unary()
	for p.check(lexer.TokenStar) || p.check(lexer.TokenSlash) {
		op := p.cur
		p.advance()
		right := p.unary()
		expr = ast.NewBinary(op.Line, op.Literal, expr, right)
	}
	return expr
}

func (p *Parser) unary() ast.Expression {
	if p.check(lexer.TokenBang) || p.check(lexer.TokenMinus) {
		op := p.cur
		p.advance()
		right := p.unary()
		return ast.NewUnary(op.Line, op.Literal, right)
	}
	return p.call()
}

func (p *Parser) call() ast.Expression {
	expr := p.primary()
	for {
		switch {
		case p.match(lexer.TokenLParen):
			expr = p.finishCall(expr)
		case p.match(lexer.TokenDot):
			line := p.cur.Line
			name := p.expect(lexer.TokenIdentifier, "property name").Literal
			expr = ast.NewGet(line, expr, name)
		case p.match(lexer.TokenLBracket):
			line := p.cur.Line
			idx := p.expression()
			p.expect(lexer.TokenRBracket, "']'")
			expr = ast.NewIndexGet(line, expr, idx)
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee ast.Expression) ast.Expression {
	line := p.cur.Line
	var args []ast.Expression
	if !p.check(lexer.TokenRParen) {
		for {
			args = append(args, p.expression())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.expect(lexer.TokenRParen, "')'")
	return ast.NewCall(line, callee, args)
}

func (p *Parser) primary() ast.Expression {
	tok := p.cur
	switch {
	case p.match(lexer.TokenFalse):
		return ast.NewBoolLit(tok.Line, false)
	case p.match(lexer.TokenTrue):
		return ast.NewBoolLit(tok.Line, true)
	case p.match(lexer.TokenNil):
		return ast.NewNilLit(tok.Line)
	case p.match(lexer.TokenNumber):
		n, _ := strconv.ParseFloat(tok.Literal, 64)
		return ast.NewNumberLit(tok.Line, n)
	case p.match(lexer.TokenString):
		return ast.NewStringLit(tok.Line, tok.Literal)
	case p.match(lexer.TokenThis):
		return ast.NewThisExpr(tok.Line)
	case p.match(lexer.TokenSuper):
		p.expect(lexer.TokenDot, "'.' after 'super'")
		method := p.expect(lexer.TokenIdentifier, "superclass method name").Literal
		return ast.NewSuperExpr(tok.Line, method)
	case p.match(lexer.TokenIdentifier):
		return ast.NewIdentifier(tok.Line, tok.Literal)
	case p.match(lexer.TokenLParen):
		expr := p.expression()
		p.expect(lexer.TokenRParen, "')'")
		return expr
	case p.match(lexer.TokenLBracket):
		var items []ast.Expression
		if !p.check(lexer.TokenRBracket) {
			for {
				items = append(items, p.expression())
				if !p.match(lexer.TokenComma) {
					break
				}
			}
		}
		p.expect(lexer.TokenRBracket, "']'")
		return ast.NewListLit(tok.Line, items)
	default:
		p.errorf("unexpected token %q at line %d", tok.Literal, tok.Line)
		p.advance()
		return ast.NewNilLit(tok.Line)
	}
}
