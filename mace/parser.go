package mace

import (
	"fmt"
	"strings"
)

var keywords = map[string]bool{
	"and": true, "as": true, "assert": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"not": true, "or": true, "pass": true, "raise": true, "return": true,
	"try": true, "while": true, "with": true, "yield": true,
	"True": true, "False": true, "None": true,
}

var augOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "//=": "//", "%=": "%",
	"**=": "**", "<<=": "<<", ">>=": ">>", "&=": "&", "|=": "|", "^=": "^",
}

// Parser is a recursive-descent parser for one unit of source text.
type Parser struct {
	toks []Token
	i    int
}

// Parse turns a unit of text into a Module. firstLine is the file
// line of the first line of text, so node positions are file lines.
func Parse(text string, firstLine int) (*Module, error) {
	toks, err := NewLexer(text, firstLine).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	mod := &Module{nodeBase: nodeBase{pos: p.pos()}}
	for !p.at(TokenEnd) {
		if p.at(TokenNewline) {
			p.next()
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		mod.Body = append(mod.Body, stmts...)
	}
	return mod, nil
}

// ParseExpression parses text that must be a single expression.
func ParseExpression(text string) (Node, error) {
	toks, err := NewLexer(text, 1).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	for p.at(TokenNewline) {
		p.next()
	}
	x, err := p.testlist()
	if err != nil {
		return nil, err
	}
	for p.at(TokenNewline) || p.at(TokenDedent) {
		p.next()
	}
	if !p.at(TokenEnd) {
		return nil, p.unexpected()
	}
	return x, nil
}

func (p *Parser) peek() Token { return p.toks[p.i] }

func (p *Parser) peekAt(k int) Token {
	if p.i+k < len(p.toks) {
		return p.toks[p.i+k]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) next() Token {
	t := p.toks[p.i]
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}

func (p *Parser) pos() Pos {
	t := p.peek()
	return Pos{Line: t.line, Col: t.col}
}

func (p *Parser) at(typ TokenType) bool { return p.peek().typ == typ }

func (p *Parser) atOp(op string) bool {
	t := p.peek()
	return t.typ == TokenOp && t.str == op
}

func (p *Parser) atKeyword(kw string) bool {
	t := p.peek()
	return t.typ == TokenName && t.str == kw
}

func (p *Parser) acceptOp(op string) bool {
	if p.atOp(op) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) acceptKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) errorAt(t Token, format string, args ...any) *ErrorRecord {
	return &ErrorRecord{Kind: SyntaxError, Msg: fmt.Sprintf(format, args...),
		Line: t.line, Col: t.col}
}

func (p *Parser) unexpected() *ErrorRecord {
	t := p.peek()
	return p.errorAt(t, "invalid syntax: unexpected %s", t)
}

func (p *Parser) expectOp(op string) error {
	if !p.acceptOp(op) {
		t := p.peek()
		return p.errorAt(t, "invalid syntax: expected '%s', got %s", op, t)
	}
	return nil
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		t := p.peek()
		return p.errorAt(t, "invalid syntax: expected '%s', got %s", kw, t)
	}
	return nil
}

func (p *Parser) expectName() (string, error) {
	t := p.peek()
	if t.typ != TokenName || keywords[t.str] {
		return "", p.errorAt(t, "invalid syntax: expected a name, got %s", t)
	}
	p.next()
	return t.str, nil
}

func (p *Parser) expectNewline() error {
	if p.at(TokenNewline) {
		p.next()
		return nil
	}
	if p.at(TokenEnd) {
		return nil
	}
	return p.unexpected()
}

// statements

func (p *Parser) statement() ([]Node, error) {
	t := p.peek()
	if t.typ == TokenIndent {
		return nil, p.errorAt(t, "unexpected indent")
	}
	if t.typ == TokenName {
		var n Node
		var err error
		switch t.str {
		case "if":
			n, err = p.ifStmt()
		case "while":
			n, err = p.whileStmt()
		case "for":
			n, err = p.forStmt()
		case "def":
			n, err = p.funcDef()
		case "try":
			n, err = p.tryStmt()
		case "class", "with", "lambda", "global", "yield":
			return nil, &ErrorRecord{Kind: UnsupportedConstruct,
				Msg: fmt.Sprintf("'%s' is not supported", t.str), Line: t.line, Col: t.col}
		default:
			return p.simpleStmt()
		}
		if err != nil {
			return nil, err
		}
		return []Node{n}, nil
	}
	return p.simpleStmt()
}

func (p *Parser) simpleStmt() ([]Node, error) {
	var out []Node
	for {
		n, err := p.smallStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		if !p.acceptOp(";") {
			break
		}
		if p.at(TokenNewline) || p.at(TokenEnd) {
			break
		}
	}
	return out, p.expectNewline()
}

func (p *Parser) smallStmt() (Node, error) {
	t := p.peek()
	pos := Pos{t.line, t.col}
	if t.typ == TokenName {
		switch t.str {
		case "pass":
			p.next()
			return &Pass{nodeBase{pos}}, nil
		case "break":
			p.next()
			return &Break{nodeBase{pos}}, nil
		case "continue":
			p.next()
			return &Continue{nodeBase{pos}}, nil
		case "return":
			p.next()
			r := &Return{nodeBase: nodeBase{pos}}
			if !p.atStmtEnd() {
				v, err := p.testlist()
				if err != nil {
					return nil, err
				}
				r.Value = v
			}
			return r, nil
		case "del":
			p.next()
			x, err := p.exprlist()
			if err != nil {
				return nil, err
			}
			d := &Delete{nodeBase: nodeBase{pos}}
			if tup, ok := x.(*TupleExpr); ok {
				d.Targets = tup.Elts
			} else {
				d.Targets = []Node{x}
			}
			for _, tgt := range d.Targets {
				switch tgt.(type) {
				case *Name, *Attribute, *Subscript:
				default:
					return nil, p.errorAt(t, "cannot delete %s", tgt.Kind())
				}
			}
			return d, nil
		case "assert":
			p.next()
			test, err := p.test()
			if err != nil {
				return nil, err
			}
			a := &Assert{nodeBase: nodeBase{pos}, Test: test}
			if p.acceptOp(",") {
				if a.Msg, err = p.test(); err != nil {
					return nil, err
				}
			}
			return a, nil
		case "raise":
			p.next()
			r := &Raise{nodeBase: nodeBase{pos}}
			if !p.atStmtEnd() {
				var err error
				if r.Exc, err = p.test(); err != nil {
					return nil, err
				}
				if p.acceptKeyword("from") {
					if r.Cause, err = p.test(); err != nil {
						return nil, err
					}
				}
			}
			return r, nil
		case "import":
			return p.importStmt()
		case "from":
			return p.fromStmt()
		}
	}
	return p.exprStmt()
}

func (p *Parser) atStmtEnd() bool {
	return p.at(TokenNewline) || p.at(TokenEnd) || p.atOp(";")
}

func (p *Parser) exprStmt() (Node, error) {
	pos := p.pos()
	first, err := p.testlist()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.typ == TokenOp {
		if op, ok := augOps[t.str]; ok {
			if err := checkTarget(first, false); err != nil {
				return nil, p.errorAt(t, "%s", err.Error())
			}
			p.next()
			val, err := p.testlist()
			if err != nil {
				return nil, err
			}
			return &AugAssign{nodeBase: nodeBase{pos}, Target: first, Op: op, Value: val}, nil
		}
	}
	if !p.atOp("=") {
		return &ExprStmt{nodeBase: nodeBase{pos}, X: first}, nil
	}
	exprs := []Node{first}
	for p.acceptOp("=") {
		x, err := p.testlist()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, x)
	}
	targets := exprs[:len(exprs)-1]
	for _, tgt := range targets {
		if err := checkTarget(tgt, true); err != nil {
			return nil, p.errorAt(t, "%s", err.Error())
		}
	}
	return &Assign{nodeBase: nodeBase{pos}, Targets: targets, Value: exprs[len(exprs)-1]}, nil
}

func checkTarget(n Node, allowSeq bool) error {
	switch x := n.(type) {
	case *Name, *Attribute, *Subscript:
		return nil
	case *TupleExpr:
		if allowSeq {
			for _, e := range x.Elts {
				if err := checkTarget(e, true); err != nil {
					return err
				}
			}
			return nil
		}
	case *ListExpr:
		if allowSeq {
			for _, e := range x.Elts {
				if err := checkTarget(e, true); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return fmt.Errorf("cannot assign to %s", n.Kind())
}

func (p *Parser) dottedName() (string, error) {
	name, err := p.expectName()
	if err != nil {
		return "", err
	}
	parts := []string{name}
	for p.acceptOp(".") {
		n, err := p.expectName()
		if err != nil {
			return "", err
		}
		parts = append(parts, n)
	}
	return strings.Join(parts, "."), nil
}

func (p *Parser) importStmt() (Node, error) {
	pos := p.pos()
	p.next()
	imp := &Import{nodeBase: nodeBase{pos}}
	for {
		name, err := p.dottedName()
		if err != nil {
			return nil, err
		}
		a := Alias{Name: name}
		if p.acceptKeyword("as") {
			if a.AsName, err = p.expectName(); err != nil {
				return nil, err
			}
		}
		imp.Names = append(imp.Names, a)
		if !p.acceptOp(",") {
			break
		}
	}
	return imp, nil
}

func (p *Parser) fromStmt() (Node, error) {
	pos := p.pos()
	p.next()
	mod, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("import"); err != nil {
		return nil, err
	}
	imp := &ImportFrom{nodeBase: nodeBase{pos}, Module: mod}
	if p.acceptOp("*") {
		imp.Names = []Alias{{Name: "*"}}
		return imp, nil
	}
	paren := p.acceptOp("(")
	for {
		name, err := p.expectName()
		if err != nil {
			return nil, err
		}
		a := Alias{Name: name}
		if p.acceptKeyword("as") {
			if a.AsName, err = p.expectName(); err != nil {
				return nil, err
			}
		}
		imp.Names = append(imp.Names, a)
		if !p.acceptOp(",") {
			break
		}
		if paren && p.atOp(")") {
			break
		}
	}
	if paren {
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
	}
	return imp, nil
}

// block parses ':' followed by an indented suite or a one-line body.
func (p *Parser) block() ([]Node, error) {
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if !p.at(TokenNewline) {
		return p.simpleStmt()
	}
	p.next()
	for p.at(TokenNewline) {
		p.next()
	}
	if !p.at(TokenIndent) {
		t := p.peek()
		return nil, p.errorAt(t, "expected an indented block")
	}
	p.next()
	var body []Node
	for !p.at(TokenDedent) && !p.at(TokenEnd) {
		if p.at(TokenNewline) {
			p.next()
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if p.at(TokenDedent) {
		p.next()
	}
	return body, nil
}

func (p *Parser) ifStmt() (Node, error) {
	pos := p.pos()
	p.next()
	test, err := p.test()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	n := &If{nodeBase: nodeBase{pos}, Test: test, Body: body}
	switch {
	case p.atKeyword("elif"):
		elif, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		n.Orelse = []Node{elif}
	case p.acceptKeyword("else"):
		if n.Orelse, err = p.block(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *Parser) whileStmt() (Node, error) {
	pos := p.pos()
	p.next()
	test, err := p.test()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	n := &While{nodeBase: nodeBase{pos}, Test: test, Body: body}
	if p.acceptKeyword("else") {
		if n.Orelse, err = p.block(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *Parser) forStmt() (Node, error) {
	pos := p.pos()
	p.next()
	target, err := p.exprlist()
	if err != nil {
		return nil, err
	}
	if err := checkTarget(target, true); err != nil {
		return nil, p.errorAt(p.peek(), "%s", err.Error())
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	iter, err := p.testlist()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	n := &For{nodeBase: nodeBase{pos}, Target: target, Iter: iter, Body: body}
	if p.acceptKeyword("else") {
		if n.Orelse, err = p.block(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *Parser) funcDef() (Node, error) {
	pos := p.pos()
	p.next()
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	fd := &FuncDef{nodeBase: nodeBase{pos}, Name: name}
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	addName := func(n string, t Token) error {
		if seen[n] {
			return p.errorAt(t, "duplicate argument '%s' in procedure definition", n)
		}
		seen[n] = true
		return nil
	}
	for !p.atOp(")") {
		t := p.peek()
		switch {
		case p.acceptOp("**"):
			n, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if err := addName(n, t); err != nil {
				return nil, err
			}
			fd.VarKws = n
		case p.acceptOp("*"):
			n, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if err := addName(n, t); err != nil {
				return nil, err
			}
			fd.VarArg = n
		default:
			if fd.VarKws != "" {
				return nil, p.errorAt(t, "invalid syntax: parameter after **%s", fd.VarKws)
			}
			n, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if err := addName(n, t); err != nil {
				return nil, err
			}
			if p.acceptOp("=") {
				def, err := p.test()
				if err != nil {
					return nil, err
				}
				fd.KwNames = append(fd.KwNames, n)
				fd.Defaults = append(fd.Defaults, def)
			} else {
				if len(fd.KwNames) > 0 || fd.VarArg != "" {
					return nil, p.errorAt(t, "non-default argument follows default argument")
				}
				fd.Args = append(fd.Args, n)
			}
		}
		if !p.acceptOp(",") {
			break
		}
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if p.acceptOp("->") {
		if _, err := p.test(); err != nil {
			return nil, err
		}
	}
	if fd.Body, err = p.block(); err != nil {
		return nil, err
	}
	if len(fd.Body) > 0 {
		if es, ok := fd.Body[0].(*ExprStmt); ok {
			if c, ok := es.X.(*Constant); ok {
				if s, ok := c.Value.(string); ok {
					fd.Doc = s
				}
			}
		}
	}
	return fd, nil
}

func (p *Parser) tryStmt() (Node, error) {
	pos := p.pos()
	p.next()
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	n := &Try{nodeBase: nodeBase{pos}, Body: body}
	for p.atKeyword("except") {
		h := &ExceptHandler{nodeBase: nodeBase{p.pos()}}
		p.next()
		if !p.atOp(":") {
			if h.Type, err = p.test(); err != nil {
				return nil, err
			}
			if p.acceptKeyword("as") || p.acceptOp(",") {
				if h.Name, err = p.expectName(); err != nil {
					return nil, err
				}
			}
		}
		if h.Body, err = p.block(); err != nil {
			return nil, err
		}
		n.Handlers = append(n.Handlers, h)
	}
	if len(n.Handlers) > 0 && p.acceptKeyword("else") {
		if n.Orelse, err = p.block(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("finally") {
		if n.Finally, err = p.block(); err != nil {
			return nil, err
		}
	}
	if len(n.Handlers) == 0 && n.Finally == nil {
		return nil, p.errorAt(p.peek(), "invalid syntax: try without except or finally")
	}
	return n, nil
}

// expressions

// testlist parses test (',' test)* [','], producing a tuple when a
// comma is present.
func (p *Parser) testlist() (Node, error) {
	return p.seqOf(p.testOrStar)
}

// exprlist is the target form used by for and del; it does not
// consume 'in'.
func (p *Parser) exprlist() (Node, error) {
	return p.seqOf(p.bitor)
}

func (p *Parser) seqOf(item func() (Node, error)) (Node, error) {
	pos := p.pos()
	first, err := item()
	if err != nil {
		return nil, err
	}
	if !p.atOp(",") {
		return first, nil
	}
	elts := []Node{first}
	for p.acceptOp(",") {
		if p.atSeqEnd() {
			break
		}
		x, err := item()
		if err != nil {
			return nil, err
		}
		elts = append(elts, x)
	}
	return &TupleExpr{nodeBase: nodeBase{pos}, Elts: elts}, nil
}

func (p *Parser) atSeqEnd() bool {
	t := p.peek()
	switch t.typ {
	case TokenNewline, TokenEnd, TokenDedent:
		return true
	case TokenOp:
		switch t.str {
		case ")", "]", "}", "=", ";", ":":
			return true
		}
		_, aug := augOps[t.str]
		return aug
	case TokenName:
		return t.str == "in"
	}
	return false
}

func (p *Parser) testOrStar() (Node, error) {
	if p.atOp("*") {
		pos := p.pos()
		p.next()
		x, err := p.bitor()
		if err != nil {
			return nil, err
		}
		return &Starred{nodeBase: nodeBase{pos}, Value: x}, nil
	}
	return p.test()
}

func (p *Parser) test() (Node, error) {
	if p.atKeyword("lambda") {
		t := p.peek()
		return nil, &ErrorRecord{Kind: UnsupportedConstruct,
			Msg: "'lambda' is not supported", Line: t.line, Col: t.col}
	}
	pos := p.pos()
	x, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("if") {
		return x, nil
	}
	p.next()
	cond, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("else"); err != nil {
		return nil, err
	}
	orelse, err := p.test()
	if err != nil {
		return nil, err
	}
	return &IfExp{nodeBase: nodeBase{pos}, Test: cond, Body: x, Orelse: orelse}, nil
}

func (p *Parser) orTest() (Node, error) {
	return p.boolChain("or", p.andTest)
}

func (p *Parser) andTest() (Node, error) {
	return p.boolChain("and", p.notTest)
}

func (p *Parser) boolChain(op string, item func() (Node, error)) (Node, error) {
	pos := p.pos()
	x, err := item()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword(op) {
		return x, nil
	}
	vals := []Node{x}
	for p.acceptKeyword(op) {
		y, err := item()
		if err != nil {
			return nil, err
		}
		vals = append(vals, y)
	}
	return &BoolOp{nodeBase: nodeBase{pos}, Op: op, Values: vals}, nil
}

func (p *Parser) notTest() (Node, error) {
	if p.atKeyword("not") {
		pos := p.pos()
		p.next()
		x, err := p.notTest()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{nodeBase: nodeBase{pos}, Op: "not", Operand: x}, nil
	}
	return p.comparison()
}

func (p *Parser) compOp() (string, bool) {
	t := p.peek()
	switch t.typ {
	case TokenOp:
		switch t.str {
		case "<", ">", "==", ">=", "<=", "!=":
			p.next()
			return t.str, true
		}
	case TokenName:
		switch t.str {
		case "in":
			p.next()
			return "in", true
		case "not":
			if n := p.peekAt(1); n.typ == TokenName && n.str == "in" {
				p.next()
				p.next()
				return "not in", true
			}
		case "is":
			p.next()
			if p.acceptKeyword("not") {
				return "is not", true
			}
			return "is", true
		}
	}
	return "", false
}

func (p *Parser) comparison() (Node, error) {
	pos := p.pos()
	x, err := p.bitor()
	if err != nil {
		return nil, err
	}
	var ops []string
	var comps []Node
	for {
		op, ok := p.compOp()
		if !ok {
			break
		}
		y, err := p.bitor()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comps = append(comps, y)
	}
	if len(ops) == 0 {
		return x, nil
	}
	return &Compare{nodeBase: nodeBase{pos}, Left: x, Ops: ops, Comparators: comps}, nil
}

// binary builds a left-associative chain over the given operators.
func (p *Parser) binary(ops []string, item func() (Node, error)) (Node, error) {
	pos := p.pos()
	x, err := item()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.typ != TokenOp || !containsStr(ops, t.str) {
			return x, nil
		}
		p.next()
		y, err := item()
		if err != nil {
			return nil, err
		}
		x = &BinOp{nodeBase: nodeBase{pos}, Op: t.str, Left: x, Right: y}
	}
}

func containsStr(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func (p *Parser) bitor() (Node, error)  { return p.binary([]string{"|"}, p.bitxor) }
func (p *Parser) bitxor() (Node, error) { return p.binary([]string{"^"}, p.bitand) }
func (p *Parser) bitand() (Node, error) { return p.binary([]string{"&"}, p.shift) }
func (p *Parser) shift() (Node, error)  { return p.binary([]string{"<<", ">>"}, p.arith) }
func (p *Parser) arith() (Node, error)  { return p.binary([]string{"+", "-"}, p.term) }
func (p *Parser) term() (Node, error) {
	return p.binary([]string{"*", "/", "//", "%", "@"}, p.factor)
}

func (p *Parser) factor() (Node, error) {
	t := p.peek()
	if t.typ == TokenOp && (t.str == "-" || t.str == "+" || t.str == "~") {
		p.next()
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		// fold negative literals
		if c, ok := x.(*Constant); ok && t.str == "-" {
			switch v := c.Value.(type) {
			case int64:
				return &Constant{nodeBase: nodeBase{Pos{t.line, t.col}}, Value: -v}, nil
			case float64:
				return &Constant{nodeBase: nodeBase{Pos{t.line, t.col}}, Value: -v}, nil
			}
		}
		return &UnaryOp{nodeBase: nodeBase{Pos{t.line, t.col}}, Op: t.str, Operand: x}, nil
	}
	return p.power()
}

func (p *Parser) power() (Node, error) {
	pos := p.pos()
	x, err := p.atomExpr()
	if err != nil {
		return nil, err
	}
	if p.acceptOp("**") {
		y, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &BinOp{nodeBase: nodeBase{pos}, Op: "**", Left: x, Right: y}, nil
	}
	return x, nil
}

func (p *Parser) atomExpr() (Node, error) {
	x, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		pos := Pos{t.line, t.col}
		switch {
		case p.acceptOp("("):
			call, err := p.callArgs(x, pos)
			if err != nil {
				return nil, err
			}
			x = call
		case p.acceptOp("["):
			idx, err := p.subscript()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			x = &Subscript{nodeBase: nodeBase{pos}, Value: x, Index: idx}
		case p.acceptOp("."):
			name := p.peek()
			if name.typ != TokenName {
				return nil, p.errorAt(name, "invalid syntax: expected attribute name, got %s", name)
			}
			p.next()
			x = &Attribute{nodeBase: nodeBase{pos}, Value: x, Attr: name.str}
		default:
			return x, nil
		}
	}
}

func (p *Parser) callArgs(fn Node, pos Pos) (Node, error) {
	call := &Call{nodeBase: nodeBase{pos}, Func: fn}
	for !p.atOp(")") {
		t := p.peek()
		switch {
		case p.acceptOp("**"):
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, Keyword{Value: v})
		case p.acceptOp("*"):
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, &Starred{nodeBase: nodeBase{Pos{t.line, t.col}}, Value: v})
		case t.typ == TokenName && !keywords[t.str] && p.peekAt(1).typ == TokenOp && p.peekAt(1).str == "=":
			p.next()
			p.next()
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, Keyword{Name: t.str, Value: v})
		default:
			if len(call.Keywords) > 0 {
				return nil, p.errorAt(t, "positional argument follows keyword argument")
			}
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, v)
		}
		if !p.acceptOp(",") {
			break
		}
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) subscript() (Node, error) {
	pos := p.pos()
	first, err := p.sliceItem()
	if err != nil {
		return nil, err
	}
	if !p.atOp(",") {
		return first, nil
	}
	elts := []Node{first}
	for p.acceptOp(",") {
		if p.atOp("]") {
			break
		}
		x, err := p.sliceItem()
		if err != nil {
			return nil, err
		}
		elts = append(elts, x)
	}
	return &TupleExpr{nodeBase: nodeBase{pos}, Elts: elts}, nil
}

func (p *Parser) sliceItem() (Node, error) {
	pos := p.pos()
	var lo Node
	var err error
	if !p.atOp(":") {
		if lo, err = p.test(); err != nil {
			return nil, err
		}
		if !p.atOp(":") {
			return lo, nil
		}
	}
	p.next()
	s := &Slice{nodeBase: nodeBase{pos}, Lo: lo}
	if !p.atOp(":") && !p.atOp("]") && !p.atOp(",") {
		if s.Hi, err = p.test(); err != nil {
			return nil, err
		}
	}
	if p.acceptOp(":") {
		if !p.atOp("]") && !p.atOp(",") {
			if s.Step, err = p.test(); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (p *Parser) atom() (Node, error) {
	t := p.peek()
	pos := Pos{t.line, t.col}
	switch t.typ {
	case TokenInt, TokenFloat:
		p.next()
		return &Constant{nodeBase: nodeBase{pos}, Value: t.val}, nil
	case TokenString:
		var b strings.Builder
		for p.at(TokenString) {
			b.WriteString(p.next().str)
		}
		return &Constant{nodeBase: nodeBase{pos}, Value: b.String()}, nil
	case TokenName:
		switch t.str {
		case "True":
			p.next()
			return &Constant{nodeBase: nodeBase{pos}, Value: true}, nil
		case "False":
			p.next()
			return &Constant{nodeBase: nodeBase{pos}, Value: false}, nil
		case "None":
			p.next()
			return &Constant{nodeBase: nodeBase{pos}, Value: nil}, nil
		}
		if keywords[t.str] {
			return nil, p.errorAt(t, "invalid syntax: unexpected keyword '%s'", t.str)
		}
		p.next()
		return &Name{nodeBase: nodeBase{pos}, Id: t.str}, nil
	case TokenOp:
		switch t.str {
		case "(":
			p.next()
			if p.acceptOp(")") {
				return &TupleExpr{nodeBase: nodeBase{pos}}, nil
			}
			x, err := p.testlist()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			p.next()
			return p.listDisplay(pos)
		case "{":
			p.next()
			return p.dictDisplay(pos)
		}
	}
	return nil, p.unexpected()
}

func (p *Parser) listDisplay(pos Pos) (Node, error) {
	if p.acceptOp("]") {
		return &ListExpr{nodeBase: nodeBase{pos}}, nil
	}
	first, err := p.testOrStar()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("for") {
		lc := &ListComp{nodeBase: nodeBase{pos}, Elt: first}
		for p.acceptKeyword("for") {
			target, err := p.exprlist()
			if err != nil {
				return nil, err
			}
			if err := checkTarget(target, true); err != nil {
				return nil, p.errorAt(p.peek(), "%s", err.Error())
			}
			if err := p.expectKeyword("in"); err != nil {
				return nil, err
			}
			iter, err := p.orTest()
			if err != nil {
				return nil, err
			}
			gen := Comprehension{Target: target, Iter: iter}
			for p.acceptKeyword("if") {
				cond, err := p.orTest()
				if err != nil {
					return nil, err
				}
				gen.Ifs = append(gen.Ifs, cond)
			}
			lc.Generators = append(lc.Generators, gen)
		}
		if err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return lc, nil
	}
	elts := []Node{first}
	for p.acceptOp(",") {
		if p.atOp("]") {
			break
		}
		x, err := p.testOrStar()
		if err != nil {
			return nil, err
		}
		elts = append(elts, x)
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return &ListExpr{nodeBase: nodeBase{pos}, Elts: elts}, nil
}

func (p *Parser) dictDisplay(pos Pos) (Node, error) {
	d := &DictExpr{nodeBase: nodeBase{pos}}
	for !p.atOp("}") {
		k, err := p.test()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		v, err := p.test()
		if err != nil {
			return nil, err
		}
		d.Keys = append(d.Keys, k)
		d.Values = append(d.Values, v)
		if !p.acceptOp(",") {
			break
		}
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return d, nil
}
