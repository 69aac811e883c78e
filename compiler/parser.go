package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rove-lang/rove/ast"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for Rove syntax
// ---------------------------------------------------------------------------

// Parser parses Rove source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    []string
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete program. Convenience wrapper around NewParser.
func Parse(input string) (*ast.Program, error) {
	return NewParser(input).ParseProgram()
}

// ParseProgram parses the whole input as a statement sequence.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.curTokenIs(TokenEOF) {
		stmt := p.parseStmt()
		if stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
		if len(p.errors) > 0 {
			break
		}
	}
	if len(p.errors) > 0 {
		return nil, fmt.Errorf("parse error: %s", strings.Join(p.errors, "; "))
	}
	return prog, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.curToken.Type == TokenError {
		p.errorf("%s", p.curToken.Literal)
		p.curToken.Type = TokenEOF
	}
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances past the current token if it matches, otherwise records
// an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s at %d:%d", t, p.curToken.Type, p.curToken.Line, p.curToken.Col)
	return false
}

// errorf records a parse error.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *Parser) pos() ast.Position {
	return ast.Position{Line: p.curToken.Line, Col: p.curToken.Col}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStmt() ast.Stmt {
	switch p.curToken.Type {
	case TokenSemicolon:
		p.nextToken()
		return nil
	case TokenLet:
		return p.parseLet(false)
	case TokenConst:
		return p.parseLet(true)
	case TokenFn:
		return p.parseFnDef()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenLoop:
		return p.parseLoop()
	case TokenFor:
		return p.parseFor()
	case TokenBreak:
		pos := p.pos()
		p.nextToken()
		p.optionalSemicolon()
		return &ast.Break{Position: pos}
	case TokenContinue:
		pos := p.pos()
		p.nextToken()
		p.optionalSemicolon()
		return &ast.Continue{Position: pos}
	case TokenReturn:
		return p.parseReturn()
	case TokenTry:
		return p.parseTry()
	case TokenLBrace:
		return p.parseBlock()
	default:
		return p.parseExprOrAssign()
	}
}

// optionalSemicolon consumes a trailing semicolon if present.
func (p *Parser) optionalSemicolon() {
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
}

func (p *Parser) parseLet(constant bool) ast.Stmt {
	pos := p.pos()
	p.nextToken() // let / const
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected identifier after declaration at %d:%d", pos.Line, pos.Col)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	var init ast.Expr
	if p.curTokenIs(TokenAssign) && p.curToken.Literal == "=" {
		p.nextToken()
		init = p.parseExpr()
	}
	p.optionalSemicolon()
	return &ast.Let{Position: pos, Name: name, Init: init, Const: constant}
}

func (p *Parser) parseFnDef() ast.Stmt {
	pos := p.pos()
	p.nextToken() // fn
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected function name at %d:%d", pos.Line, pos.Col)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	var params []string
	if p.curTokenIs(TokenUnit) {
		// fn f() lexes the empty parameter list as the unit token
		p.nextToken()
	} else {
		if !p.expect(TokenLParen) {
			return nil
		}
		for !p.curTokenIs(TokenRParen) {
			if !p.curTokenIs(TokenIdentifier) {
				p.errorf("expected parameter name at %d:%d", p.curToken.Line, p.curToken.Col)
				return nil
			}
			params = append(params, p.curToken.Literal)
			p.nextToken()
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			}
		}
		p.nextToken() // )
	}

	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.FnDef{Position: pos, Name: name, Params: params, Body: body}
}

func (p *Parser) parseBlock() *ast.Block {
	pos := p.pos()
	if !p.expect(TokenLBrace) {
		return nil
	}
	block := &ast.Block{Position: pos}
	for !p.curTokenIs(TokenRBrace) {
		if p.curTokenIs(TokenEOF) {
			p.errorf("unterminated block starting at %d:%d", pos.Line, pos.Col)
			return nil
		}
		stmt := p.parseStmt()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if len(p.errors) > 0 {
			return nil
		}
	}
	p.nextToken() // }
	return block
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.pos()
	p.nextToken() // if
	cond := p.parseExpr()
	then := p.parseBlock()
	if then == nil {
		return nil
	}
	var elseStmt ast.Stmt
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			elseStmt = p.parseIf()
		} else {
			elseStmt = p.parseBlock()
		}
	}
	return &ast.If{Position: pos, Cond: cond, Then: then, Else: elseStmt}
}

func (p *Parser) parseWhile() ast.Stmt {
	pos := p.pos()
	p.nextToken() // while
	cond := p.parseExpr()
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.While{Position: pos, Cond: cond, Body: body}
}

func (p *Parser) parseLoop() ast.Stmt {
	pos := p.pos()
	p.nextToken() // loop
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.While{Position: pos, Cond: nil, Body: body}
}

func (p *Parser) parseFor() ast.Stmt {
	pos := p.pos()
	p.nextToken() // for
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected loop variable at %d:%d", pos.Line, pos.Col)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	if !p.expect(TokenIn) {
		return nil
	}
	iter := p.parseExpr()
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.For{Position: pos, Name: name, Iter: iter, Body: body}
}

func (p *Parser) parseReturn() ast.Stmt {
	pos := p.pos()
	p.nextToken() // return
	var x ast.Expr
	if !p.curTokenIs(TokenSemicolon) && !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		x = p.parseExpr()
	}
	p.optionalSemicolon()
	return &ast.Return{Position: pos, X: x}
}

func (p *Parser) parseTry() ast.Stmt {
	pos := p.pos()
	p.nextToken() // try
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	if !p.expect(TokenCatch) {
		return nil
	}
	errVar := ""
	if p.curTokenIs(TokenLParen) {
		p.nextToken()
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected catch variable at %d:%d", p.curToken.Line, p.curToken.Col)
			return nil
		}
		errVar = p.curToken.Literal
		p.nextToken()
		if !p.expect(TokenRParen) {
			return nil
		}
	}
	catch := p.parseBlock()
	if catch == nil {
		return nil
	}
	return &ast.TryCatch{Position: pos, Body: body, ErrVar: errVar, Catch: catch}
}

// parseExprOrAssign parses an expression statement, promoting it to an
// assignment when followed by `=` or a compound assignment operator.
func (p *Parser) parseExprOrAssign() ast.Stmt {
	pos := p.pos()
	lhs := p.parseExpr()
	if lhs == nil {
		// Skip the offending token so a broken input cannot loop forever.
		p.nextToken()
		return nil
	}
	if p.curTokenIs(TokenAssign) {
		op := p.curToken.Literal
		switch lhs.(type) {
		case *ast.Ident, *ast.Index, *ast.Prop:
		default:
			p.errorf("invalid assignment target at %d:%d", pos.Line, pos.Col)
			return nil
		}
		p.nextToken()
		rhs := p.parseExpr()
		p.optionalSemicolon()
		return &ast.Assign{Position: pos, LHS: lhs, Op: op, RHS: rhs}
	}
	p.optionalSemicolon()
	return &ast.ExprStmt{X: lhs}
}

// ---------------------------------------------------------------------------
// Expressions (precedence climbing, lowest binds loosest)
// ---------------------------------------------------------------------------

func (p *Parser) parseExpr() ast.Expr {
	return p.parseRange()
}

func (p *Parser) parseRange() ast.Expr {
	left := p.parseOr()
	if p.curTokenIs(TokenRange) {
		pos := p.pos()
		p.nextToken()
		right := p.parseOr()
		return &ast.Range{Position: pos, From: left, To: right}
	}
	return left
}

func (p *Parser) parseOr() ast.Expr {
	return p.parseBinaryLevel(p.parseAnd, "||")
}

func (p *Parser) parseAnd() ast.Expr {
	return p.parseBinaryLevel(p.parseBitOr, "&&")
}

func (p *Parser) parseBitOr() ast.Expr {
	return p.parseBinaryLevel(p.parseBitAnd, "|")
}

func (p *Parser) parseBitAnd() ast.Expr {
	return p.parseBinaryLevel(p.parseMembership, "&")
}

// parseMembership parses `value in collection`.
func (p *Parser) parseMembership() ast.Expr {
	left := p.parseEquality()
	for p.curTokenIs(TokenIn) {
		pos := p.pos()
		p.nextToken()
		right := p.parseEquality()
		if right == nil {
			return nil
		}
		left = &ast.Binary{Position: pos, Op: "in", X: left, Y: right}
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	return p.parseBinaryLevel(p.parseRelational, "==", "!=")
}

func (p *Parser) parseRelational() ast.Expr {
	return p.parseBinaryLevel(p.parseAdditive, "<", "<=", ">", ">=")
}

func (p *Parser) parseAdditive() ast.Expr {
	return p.parseBinaryLevel(p.parseMultiplicative, "+", "-")
}

func (p *Parser) parseMultiplicative() ast.Expr {
	return p.parseBinaryLevel(p.parseUnary, "*", "/", "%")
}

// parseBinaryLevel parses a left-associative run of the given operators.
func (p *Parser) parseBinaryLevel(next func() ast.Expr, ops ...string) ast.Expr {
	left := next()
	for p.curTokenIs(TokenOperator) && contains(ops, p.curToken.Literal) {
		pos := p.pos()
		op := p.curToken.Literal
		p.nextToken()
		right := next()
		if right == nil {
			return nil
		}
		left = &ast.Binary{Position: pos, Op: op, X: left, Y: right}
	}
	return left
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func (p *Parser) parseUnary() ast.Expr {
	if p.curTokenIs(TokenOperator) && (p.curToken.Literal == "-" || p.curToken.Literal == "!" || p.curToken.Literal == "+") {
		pos := p.pos()
		op := p.curToken.Literal
		p.nextToken()
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		if op == "+" {
			return x
		}
		return &ast.Unary{Position: pos, Op: op, X: x}
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary expression followed by any chain of
// calls, indexing and property/method accesses.
func (p *Parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	if x == nil {
		return nil
	}
	for {
		switch {
		case p.curTokenIs(TokenLBracket):
			pos := p.pos()
			p.nextToken()
			idx := p.parseExpr()
			if !p.expect(TokenRBracket) {
				return nil
			}
			x = &ast.Index{Position: pos, Target: x, Idx: idx}
		case p.curTokenIs(TokenDot):
			pos := p.pos()
			p.nextToken()
			if !p.curTokenIs(TokenIdentifier) {
				p.errorf("expected property name after '.' at %d:%d", pos.Line, pos.Col)
				return nil
			}
			name := p.curToken.Literal
			p.nextToken()
			if p.curTokenIs(TokenLParen) || p.curTokenIs(TokenUnit) {
				args, ok := p.parseArgs()
				if !ok {
					return nil
				}
				x = &ast.MethodCall{Position: pos, Target: x, Name: name, Args: args}
			} else {
				x = &ast.Prop{Position: pos, Target: x, Name: name}
			}
		default:
			return x
		}
	}
}

// parseArgs parses a parenthesized argument list. The empty list may
// arrive as the unit token.
func (p *Parser) parseArgs() ([]ast.Expr, bool) {
	if p.curTokenIs(TokenUnit) {
		p.nextToken()
		return nil, true
	}
	if !p.expect(TokenLParen) {
		return nil, false
	}
	var args []ast.Expr
	for !p.curTokenIs(TokenRParen) {
		if p.curTokenIs(TokenEOF) {
			p.errorf("unterminated argument list")
			return nil, false
		}
		arg := p.parseExpr()
		if arg == nil {
			return nil, false
		}
		args = append(args, arg)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		}
	}
	p.nextToken() // )
	return args, true
}

func (p *Parser) parsePrimary() ast.Expr {
	pos := p.pos()
	switch p.curToken.Type {
	case TokenUnit:
		p.nextToken()
		return &ast.UnitLit{Position: pos}
	case TokenTrue:
		p.nextToken()
		return &ast.BoolLit{Position: pos, Value: true}
	case TokenFalse:
		p.nextToken()
		return &ast.BoolLit{Position: pos, Value: false}
	case TokenInt:
		lit := p.curToken.Literal
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			p.errorf("invalid integer literal %q at %d:%d", lit, pos.Line, pos.Col)
			return nil
		}
		p.nextToken()
		return &ast.IntLit{Position: pos, Value: n}
	case TokenFloat:
		f, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			p.errorf("invalid float literal %q at %d:%d", p.curToken.Literal, pos.Line, pos.Col)
			return nil
		}
		p.nextToken()
		return &ast.FloatLit{Position: pos, Value: f}
	case TokenString:
		s := p.curToken.Literal
		p.nextToken()
		return &ast.StringLit{Position: pos, Value: s}
	case TokenChar:
		r := []rune(p.curToken.Literal)
		p.nextToken()
		return &ast.CharLit{Position: pos, Value: r[0]}
	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()
		if p.curTokenIs(TokenLParen) || p.curTokenIs(TokenUnit) {
			args, ok := p.parseArgs()
			if !ok {
				return nil
			}
			return &ast.Call{Position: pos, Name: name, Args: args}
		}
		return &ast.Ident{Position: pos, Name: name}
	case TokenLParen:
		p.nextToken()
		x := p.parseExpr()
		if !p.expect(TokenRParen) {
			return nil
		}
		return x
	case TokenLBracket:
		p.nextToken()
		arr := &ast.ArrayLit{Position: pos}
		for !p.curTokenIs(TokenRBracket) {
			if p.curTokenIs(TokenEOF) {
				p.errorf("unterminated array literal")
				return nil
			}
			el := p.parseExpr()
			if el == nil {
				return nil
			}
			arr.Elems = append(arr.Elems, el)
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			}
		}
		p.nextToken() // ]
		return arr
	case TokenMapStart:
		p.nextToken()
		m := &ast.MapLit{Position: pos}
		for !p.curTokenIs(TokenRBrace) {
			if p.curTokenIs(TokenEOF) {
				p.errorf("unterminated map literal")
				return nil
			}
			var key string
			switch p.curToken.Type {
			case TokenIdentifier, TokenString:
				key = p.curToken.Literal
			default:
				p.errorf("expected map key, got %s at %d:%d", p.curToken.Type, p.curToken.Line, p.curToken.Col)
				return nil
			}
			p.nextToken()
			if !p.expect(TokenColon) {
				return nil
			}
			val := p.parseExpr()
			if val == nil {
				return nil
			}
			m.Keys = append(m.Keys, key)
			m.Values = append(m.Values, val)
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			}
		}
		p.nextToken() // }
		return m
	default:
		p.errorf("unexpected token %s at %d:%d", p.curToken.Type, pos.Line, pos.Col)
		return nil
	}
}
