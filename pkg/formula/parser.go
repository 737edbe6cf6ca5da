package formula

import (
	"fmt"

	"github.com/finbook/loan-engine/pkg/constants"
)

// Program is a parsed formula, ready to evaluate any number of times.
type Program struct {
	stmts []stmt
}

type stmt interface{ stmtNode() }

type declStmt struct {
	name string
	expr expr
	pos  int
}

type assignStmt struct {
	name string
	expr expr
	pos  int
}

type ifStmt struct {
	cond     expr
	then     []stmt
	elseBody []stmt
	pos      int
}

type returnStmt struct {
	expr expr
	pos  int
}

type exprStmt struct {
	expr expr
}

func (declStmt) stmtNode()   {}
func (assignStmt) stmtNode() {}
func (ifStmt) stmtNode()     {}
func (returnStmt) stmtNode() {}
func (exprStmt) stmtNode()   {}

type expr interface{ exprNode() }

type numberLit struct {
	val float64
}

type stringLit struct {
	val string
}

type boolLit struct {
	val bool
}

type identExpr struct {
	name string
	pos  int
}

type unaryExpr struct {
	op      string
	operand expr
	pos     int
}

type binaryExpr struct {
	op    string
	left  expr
	right expr
	pos   int
}

type ternaryExpr struct {
	cond    expr
	then    expr
	elseVal expr
	pos     int
}

type callExpr struct {
	fn   string
	args []expr
	pos  int
}

func (numberLit) exprNode()   {}
func (stringLit) exprNode()   {}
func (boolLit) exprNode()     {}
func (identExpr) exprNode()   {}
func (unaryExpr) exprNode()   {}
func (binaryExpr) exprNode()  {}
func (ternaryExpr) exprNode() {}
func (callExpr) exprNode()    {}

// Parse compiles a formula into a Program. Any syntax fault is reported as an
// *EvalError; nothing is executed yet.
func Parse(source string) (*Program, error) {
	if len(source) > constants.MaxFormulaLength {
		return nil, &EvalError{Msg: fmt.Sprintf("formula exceeds maximum length of %d bytes", constants.MaxFormulaLength)}
	}

	tokens, err := tokenize(source)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	stmts, err := p.parseStatements(func() bool { return p.peek().kind == tokenEOF })
	if err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return nil, &EvalError{Msg: "formula is empty"}
	}
	return &Program{stmts: stmts}, nil
}

type parser struct {
	tokens []token
	idx    int
	depth  int
}

func (p *parser) peek() token {
	return p.tokens[p.idx]
}

func (p *parser) next() token {
	t := p.tokens[p.idx]
	if p.idx < len(p.tokens)-1 {
		p.idx++
	}
	return t
}

func (p *parser) acceptOp(text string) bool {
	if t := p.peek(); t.kind == tokenOp && t.text == text {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectOp(text string) error {
	if !p.acceptOp(text) {
		t := p.peek()
		return &EvalError{Msg: fmt.Sprintf("expected '%s', found %s", text, t), Pos: t.pos}
	}
	return nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > constants.MaxFormulaDepth {
		return &EvalError{Msg: "formula is nested too deeply", Pos: p.peek().pos}
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseStatements(done func() bool) ([]stmt, error) {
	var stmts []stmt
	for !done() {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		for p.acceptOp(";") {
		}
	}
	return stmts, nil
}

func (p *parser) parseStatement() (stmt, error) {
	t := p.peek()

	if t.kind == tokenKeyword {
		switch t.text {
		case "var", "let", "const":
			p.next()
			name := p.next()
			if name.kind != tokenIdent {
				return nil, &EvalError{Msg: fmt.Sprintf("expected variable name after '%s', found %s", t.text, name), Pos: name.pos}
			}
			if err := p.expectOp("="); err != nil {
				return nil, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return declStmt{name: name.text, expr: e, pos: t.pos}, nil

		case "if":
			return p.parseIf()

		case "return":
			p.next()
			if p.peek().kind == tokenEOF || (p.peek().kind == tokenOp && (p.peek().text == ";" || p.peek().text == "}")) {
				return nil, &EvalError{Msg: "'return' requires a value", Pos: t.pos}
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return returnStmt{expr: e, pos: t.pos}, nil
		}
	}

	// Assignment to an already-declared name, distinguished from a bare
	// expression by the single '=' after the identifier.
	if t.kind == tokenIdent && p.idx+1 < len(p.tokens) {
		nt := p.tokens[p.idx+1]
		if nt.kind == tokenOp && nt.text == "=" {
			p.next()
			p.next()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return assignStmt{name: t.text, expr: e, pos: t.pos}, nil
		}
	}

	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return exprStmt{expr: e}, nil
}

func (p *parser) parseIf() (stmt, error) {
	t := p.next() // 'if'
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}

	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	var elseBody []stmt
	if et := p.peek(); et.kind == tokenKeyword && et.text == "else" {
		p.next()
		if nt := p.peek(); nt.kind == tokenKeyword && nt.text == "if" {
			chained, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			elseBody = []stmt{chained}
		} else {
			elseBody, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}

	return ifStmt{cond: cond, then: then, elseBody: elseBody, pos: t.pos}, nil
}

// parseBlock parses either a braced statement list or a single statement.
func (p *parser) parseBlock() ([]stmt, error) {
	if p.acceptOp("{") {
		stmts, err := p.parseStatements(func() bool {
			t := p.peek()
			return t.kind == tokenEOF || (t.kind == tokenOp && t.text == "}")
		})
		if err != nil {
			return nil, err
		}
		if err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return stmts, nil
	}

	s, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	for p.acceptOp(";") {
	}
	return []stmt{s}, nil
}

func (p *parser) parseExpr() (expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseTernary()
}

func (p *parser) parseTernary() (expr, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokenOp && t.text == "?" {
		p.next()
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		elseVal, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ternaryExpr{cond: cond, then: then, elseVal: elseVal, pos: t.pos}, nil
	}
	return cond, nil
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokenOp || t.text != "||" {
			return left, nil
		}
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: "||", left: left, right: right, pos: t.pos}
	}
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokenOp || t.text != "&&" {
			return left, nil
		}
		p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: "&&", left: left, right: right, pos: t.pos}
	}
}

func (p *parser) parseEquality() (expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokenOp || (t.text != "==" && t.text != "!=") {
			return left, nil
		}
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: t.text, left: left, right: right, pos: t.pos}
	}
}

func (p *parser) parseComparison() (expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokenOp || (t.text != "<" && t.text != "<=" && t.text != ">" && t.text != ">=") {
			return left, nil
		}
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: t.text, left: left, right: right, pos: t.pos}
	}
}

func (p *parser) parseAdditive() (expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokenOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: t.text, left: left, right: right, pos: t.pos}
	}
}

func (p *parser) parseMultiplicative() (expr, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokenOp || (t.text != "*" && t.text != "/" && t.text != "%") {
			return left, nil
		}
		p.next()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: t.text, left: left, right: right, pos: t.pos}
	}
}

func (p *parser) parsePower() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	// Right-associative like pow itself.
	if t := p.peek(); t.kind == tokenOp && t.text == "**" {
		p.next()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return binaryExpr{op: "**", left: left, right: right, pos: t.pos}, nil
	}
	return left, nil
}

func (p *parser) parseUnary() (expr, error) {
	t := p.peek()
	if t.kind == tokenOp && (t.text == "-" || t.text == "!" || t.text == "+") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if t.text == "+" {
			return operand, nil
		}
		return unaryExpr{op: t.text, operand: operand, pos: t.pos}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.next()

	switch t.kind {
	case tokenNumber:
		return numberLit{val: t.num}, nil

	case tokenString:
		return stringLit{val: t.text}, nil

	case tokenKeyword:
		switch t.text {
		case "true":
			return boolLit{val: true}, nil
		case "false":
			return boolLit{val: false}, nil
		}
		return nil, &EvalError{Msg: fmt.Sprintf("unexpected keyword '%s'", t.text), Pos: t.pos}

	case tokenIdent:
		// Math.fn(...) or a bare whitelisted call.
		name := t.text
		if name == "Math" && p.acceptOp(".") {
			fn := p.next()
			if fn.kind != tokenIdent {
				return nil, &EvalError{Msg: fmt.Sprintf("expected function name after 'Math.', found %s", fn), Pos: fn.pos}
			}
			return p.parseCall(fn.text, fn.pos)
		}
		if pt := p.peek(); pt.kind == tokenOp && pt.text == "(" {
			return p.parseCall(name, t.pos)
		}
		return identExpr{name: name, pos: t.pos}, nil

	case tokenOp:
		if t.text == "(" {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}

	return nil, &EvalError{Msg: fmt.Sprintf("unexpected %s", t), Pos: t.pos}
}

func (p *parser) parseCall(fn string, pos int) (expr, error) {
	if _, ok := mathFuncs[fn]; !ok {
		return nil, &EvalError{Msg: fmt.Sprintf("function '%s' is not available in formulas", fn), Pos: pos}
	}
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	var args []expr
	if !p.acceptOp(")") {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.acceptOp(")") {
				break
			}
			if err := p.expectOp(","); err != nil {
				return nil, err
			}
		}
	}
	return callExpr{fn: fn, args: args, pos: pos}, nil
}
