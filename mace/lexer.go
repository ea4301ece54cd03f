package mace

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type TokenType int

const (
	TokenEnd TokenType = iota
	TokenName
	TokenInt
	TokenFloat
	TokenString
	TokenOp
	TokenNewline
	TokenIndent
	TokenDedent
)

type Token struct {
	typ  TokenType
	str  string
	val  any
	line int
	col  int
}

func (t Token) String() string {
	switch t.typ {
	case TokenEnd:
		return "end of input"
	case TokenNewline:
		return "end of line"
	case TokenIndent:
		return "indent"
	case TokenDedent:
		return "dedent"
	case TokenString:
		return strconv.Quote(t.str)
	}
	return t.str
}

// three, two and one character operators, longest first
var operators = []string{
	"**=", "//=", ">>=", "<<=",
	"**", "//", "==", "!=", "<=", ">=", "<<", ">>", "+=", "-=", "*=",
	"/=", "%=", "&=", "|=", "^=", "->",
	"+", "-", "*", "/", "%", "&", "|", "^", "~", "<", ">", "(", ")",
	"[", "]", "{", "}", ",", ":", ".", ";", "=", "@",
}

// Lexer turns one unit of source text into tokens, synthesizing
// INDENT and DEDENT tokens from leading whitespace.
type Lexer struct {
	src     []rune
	pos     int
	line    int
	col     int
	tokens  []Token
	indents []int
	depth   int // bracket nesting
	atBOL   bool
}

func NewLexer(text string, firstLine int) *Lexer {
	if firstLine < 1 {
		firstLine = 1
	}
	return &Lexer{
		src:     []rune(text),
		line:    firstLine,
		indents: []int{0},
		atBOL:   true,
	}
}

func (lex *Lexer) errorf(format string, args ...any) *ErrorRecord {
	return &ErrorRecord{Kind: SyntaxError, Msg: fmt.Sprintf(format, args...),
		Line: lex.line, Col: lex.col}
}

func (lex *Lexer) peek(k int) rune {
	if lex.pos+k < len(lex.src) {
		return lex.src[lex.pos+k]
	}
	return 0
}

func (lex *Lexer) advance() rune {
	r := lex.src[lex.pos]
	lex.pos++
	if r == '\n' {
		lex.line++
		lex.col = 0
	} else {
		lex.col++
	}
	return r
}

func (lex *Lexer) emit(typ TokenType, str string, val any, line, col int) {
	lex.tokens = append(lex.tokens, Token{typ: typ, str: str, val: val, line: line, col: col})
}

// Tokenize returns the full token stream, ending with TokenEnd.
func (lex *Lexer) Tokenize() ([]Token, error) {
	for lex.pos < len(lex.src) {
		if lex.atBOL && lex.depth == 0 {
			if err := lex.lexIndent(); err != nil {
				return nil, err
			}
			continue
		}
		r := lex.peek(0)
		switch {
		case r == '\n':
			line, col := lex.line, lex.col
			lex.advance()
			if lex.depth == 0 {
				lex.emit(TokenNewline, "\n", nil, line, col)
				lex.atBOL = true
			}
		case r == ' ' || r == '\t' || r == '\r' || r == '\f':
			lex.advance()
		case r == '#':
			for lex.pos < len(lex.src) && lex.peek(0) != '\n' {
				lex.advance()
			}
		case r == '\\' && lex.peek(1) == '\n':
			lex.advance()
			lex.advance()
		case r == '\\' && lex.peek(1) == '\r' && lex.peek(2) == '\n':
			lex.advance()
			lex.advance()
			lex.advance()
		case isNameStart(r):
			if q, n := lex.stringPrefix(); n > 0 {
				if err := lex.lexString(q, n); err != nil {
					return nil, err
				}
				continue
			}
			lex.lexName()
		case unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(lex.peek(1))):
			if err := lex.lexNumber(); err != nil {
				return nil, err
			}
		case r == '\'' || r == '"':
			if err := lex.lexString("", 0); err != nil {
				return nil, err
			}
		default:
			if err := lex.lexOp(); err != nil {
				return nil, err
			}
		}
	}
	if lex.depth > 0 {
		return nil, lex.errorf("unexpected end of input: unclosed bracket")
	}
	if n := len(lex.tokens); n > 0 && lex.tokens[n-1].typ != TokenNewline {
		lex.emit(TokenNewline, "\n", nil, lex.line, lex.col)
	}
	for len(lex.indents) > 1 {
		lex.indents = lex.indents[:len(lex.indents)-1]
		lex.emit(TokenDedent, "", nil, lex.line, 0)
	}
	lex.emit(TokenEnd, "", nil, lex.line, lex.col)
	return lex.tokens, nil
}

// lexIndent measures leading whitespace of a logical line. Blank and
// comment-only lines do not affect indentation.
func (lex *Lexer) lexIndent() error {
	width := 0
measure:
	for lex.pos < len(lex.src) {
		switch lex.peek(0) {
		case ' ':
			width++
		case '\t':
			width = (width/8 + 1) * 8
		case '\f', '\r':
		default:
			break measure
		}
		lex.advance()
	}
	r := lex.peek(0)
	if lex.pos >= len(lex.src) || r == '\n' || r == '#' {
		for lex.pos < len(lex.src) && lex.peek(0) != '\n' {
			lex.advance()
		}
		if lex.pos < len(lex.src) {
			lex.advance()
		}
		return nil
	}
	lex.atBOL = false
	if len(lex.tokens) == 0 {
		// the first line sets the base indentation
		lex.indents[0] = width
	}
	cur := lex.indents[len(lex.indents)-1]
	switch {
	case width > cur:
		lex.indents = append(lex.indents, width)
		lex.emit(TokenIndent, "", nil, lex.line, 0)
	case width < cur:
		for width < lex.indents[len(lex.indents)-1] {
			lex.indents = lex.indents[:len(lex.indents)-1]
			lex.emit(TokenDedent, "", nil, lex.line, 0)
		}
		if width != lex.indents[len(lex.indents)-1] {
			return lex.errorf("unindent does not match any outer indentation level")
		}
	}
	return nil
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// stringPrefix detects string prefixes such as r, b, u and rb.
func (lex *Lexer) stringPrefix() (string, int) {
	for n := 1; n <= 2; n++ {
		if !strings.ContainsRune("rRbBuU", lex.peek(n-1)) {
			return "", 0
		}
		if q := lex.peek(n); q == '\'' || q == '"' {
			return strings.ToLower(string(lex.src[lex.pos : lex.pos+n])), n
		}
	}
	return "", 0
}

func (lex *Lexer) lexName() {
	line, col := lex.line, lex.col
	start := lex.pos
	for lex.pos < len(lex.src) && isNameChar(lex.peek(0)) {
		lex.advance()
	}
	lex.emit(TokenName, string(lex.src[start:lex.pos]), nil, line, col)
}

func (lex *Lexer) lexNumber() error {
	line, col := lex.line, lex.col
	start := lex.pos
	if lex.peek(0) == '0' && strings.ContainsRune("xXoObB", lex.peek(1)) {
		lex.advance()
		lex.advance()
		for lex.pos < len(lex.src) && (isNameChar(lex.peek(0))) {
			lex.advance()
		}
		text := string(lex.src[start:lex.pos])
		v, err := strconv.ParseInt(strings.ReplaceAll(text, "_", ""), 0, 64)
		if err != nil {
			return lex.errorf("invalid number literal '%s'", text)
		}
		lex.emit(TokenInt, text, v, line, col)
		return nil
	}
	isFloat := false
	digits := func() {
		for lex.pos < len(lex.src) && (unicode.IsDigit(lex.peek(0)) || lex.peek(0) == '_') {
			lex.advance()
		}
	}
	digits()
	if lex.peek(0) == '.' && !isNameStart(lex.peek(1)) {
		isFloat = true
		lex.advance()
		digits()
	}
	if (lex.peek(0) == 'e' || lex.peek(0) == 'E') &&
		(unicode.IsDigit(lex.peek(1)) ||
			((lex.peek(1) == '+' || lex.peek(1) == '-') && unicode.IsDigit(lex.peek(2)))) {
		isFloat = true
		lex.advance()
		if lex.peek(0) == '+' || lex.peek(0) == '-' {
			lex.advance()
		}
		digits()
	}
	if lex.peek(0) == 'j' || lex.peek(0) == 'J' {
		return lex.errorf("complex literals are not supported")
	}
	text := string(lex.src[start:lex.pos])
	clean := strings.ReplaceAll(text, "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return lex.errorf("invalid number literal '%s'", text)
		}
		lex.emit(TokenFloat, text, f, line, col)
		return nil
	}
	v, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(clean, 64)
		if ferr != nil {
			return lex.errorf("invalid number literal '%s'", text)
		}
		lex.emit(TokenFloat, text, f, line, col)
		return nil
	}
	lex.emit(TokenInt, text, v, line, col)
	return nil
}

func (lex *Lexer) lexString(prefix string, nprefix int) error {
	line, col := lex.line, lex.col
	for i := 0; i < nprefix; i++ {
		lex.advance()
	}
	raw := strings.Contains(prefix, "r")
	q := lex.advance()
	triple := lex.peek(0) == q && lex.peek(1) == q
	if triple {
		lex.advance()
		lex.advance()
	}
	var b strings.Builder
	for {
		if lex.pos >= len(lex.src) {
			return &ErrorRecord{Kind: SyntaxError, Msg: "unterminated string literal",
				Line: line, Col: col}
		}
		r := lex.peek(0)
		if r == q {
			if !triple {
				lex.advance()
				break
			}
			if lex.peek(1) == q && lex.peek(2) == q {
				lex.advance()
				lex.advance()
				lex.advance()
				break
			}
		}
		if r == '\n' && !triple {
			return &ErrorRecord{Kind: SyntaxError, Msg: "unterminated string literal",
				Line: line, Col: col}
		}
		if r == '\\' {
			lex.advance()
			if lex.pos >= len(lex.src) {
				continue
			}
			e := lex.advance()
			if raw {
				b.WriteRune('\\')
				b.WriteRune(e)
				continue
			}
			switch e {
			case '\n':
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '0':
				b.WriteRune(0)
			case 'a':
				b.WriteRune('\a')
			case 'b':
				b.WriteRune('\b')
			case 'f':
				b.WriteRune('\f')
			case 'v':
				b.WriteRune('\v')
			case '\\', '\'', '"':
				b.WriteRune(e)
			case 'x', 'u', 'U':
				n := map[rune]int{'x': 2, 'u': 4, 'U': 8}[e]
				if lex.pos+n > len(lex.src) {
					return lex.errorf("truncated \\%c escape", e)
				}
				hex := string(lex.src[lex.pos : lex.pos+n])
				v, err := strconv.ParseUint(hex, 16, 32)
				if err != nil {
					return lex.errorf("invalid \\%c escape", e)
				}
				for i := 0; i < n; i++ {
					lex.advance()
				}
				b.WriteRune(rune(v))
			default:
				b.WriteRune('\\')
				b.WriteRune(e)
			}
			continue
		}
		b.WriteRune(lex.advance())
	}
	lex.emit(TokenString, b.String(), b.String(), line, col)
	return nil
}

func (lex *Lexer) lexOp() error {
	line, col := lex.line, lex.col
	for _, op := range operators {
		n := len(op)
		if lex.pos+n > len(lex.src) || string(lex.src[lex.pos:lex.pos+n]) != op {
			continue
		}
		for i := 0; i < n; i++ {
			lex.advance()
		}
		switch op {
		case "(", "[", "{":
			lex.depth++
		case ")", "]", "}":
			if lex.depth > 0 {
				lex.depth--
			}
		}
		lex.emit(TokenOp, op, nil, line, col)
		return nil
	}
	return lex.errorf("unexpected character %q", lex.peek(0))
}
