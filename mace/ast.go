package mace

// Pos locates a node in its source file. Line is absolute within
// the file; Col is zero-based within the line.
type Pos struct {
	Line int
	Col  int
}

// Node is one element of a parsed statement tree. Kind names the
// evaluator handler that runs it.
type Node interface {
	Pos() Pos
	Kind() string
}

type nodeBase struct {
	pos Pos
}

func (b *nodeBase) Pos() Pos { return b.pos }

// statements

type Module struct {
	nodeBase
	Body []Node
}

type ExprStmt struct {
	nodeBase
	X Node
}

// Assign covers chained assignment: a = b = value.
type Assign struct {
	nodeBase
	Targets []Node
	Value   Node
}

type AugAssign struct {
	nodeBase
	Target Node
	Op     string
	Value  Node
}

type If struct {
	nodeBase
	Test   Node
	Body   []Node
	Orelse []Node
}

type While struct {
	nodeBase
	Test   Node
	Body   []Node
	Orelse []Node
}

type For struct {
	nodeBase
	Target Node
	Iter   Node
	Body   []Node
	Orelse []Node
}

// FuncDef is `def name(args, *va, kw=default, **vk):`. Defaults holds
// one expression per KwNames entry, evaluated at definition time.
type FuncDef struct {
	nodeBase
	Name     string
	Args     []string
	KwNames  []string
	Defaults []Node
	VarArg   string
	VarKws   string
	Doc      string
	Body     []Node
}

type Return struct {
	nodeBase
	Value Node
}

type Break struct{ nodeBase }
type Continue struct{ nodeBase }
type Pass struct{ nodeBase }

type Try struct {
	nodeBase
	Body     []Node
	Handlers []*ExceptHandler
	Orelse   []Node
	Finally  []Node
}

// ExceptHandler is one `except [Type [as name]]:` clause.
// A nil Type catches everything.
type ExceptHandler struct {
	nodeBase
	Type Node
	Name string
	Body []Node
}

type Alias struct {
	Name   string
	AsName string
}

type Import struct {
	nodeBase
	Names []Alias
}

type ImportFrom struct {
	nodeBase
	Module string
	Names  []Alias
}

type Delete struct {
	nodeBase
	Targets []Node
}

type Assert struct {
	nodeBase
	Test Node
	Msg  Node
}

type Raise struct {
	nodeBase
	Exc   Node
	Cause Node
}

// expressions

type Name struct {
	nodeBase
	Id string
}

// Constant holds a literal: int64, float64, string, bool or nil.
type Constant struct {
	nodeBase
	Value any
}

type Attribute struct {
	nodeBase
	Value Node
	Attr  string
}

type Subscript struct {
	nodeBase
	Value Node
	Index Node
}

type Slice struct {
	nodeBase
	Lo, Hi, Step Node
}

// Keyword is name=value in a call; an empty Name is a **spread.
type Keyword struct {
	Name  string
	Value Node
}

type Call struct {
	nodeBase
	Func     Node
	Args     []Node
	Keywords []Keyword
}

type Starred struct {
	nodeBase
	Value Node
}

type BinOp struct {
	nodeBase
	Op          string
	Left, Right Node
}

type UnaryOp struct {
	nodeBase
	Op      string
	Operand Node
}

type BoolOp struct {
	nodeBase
	Op     string
	Values []Node
}

type Compare struct {
	nodeBase
	Left        Node
	Ops         []string
	Comparators []Node
}

type IfExp struct {
	nodeBase
	Test, Body, Orelse Node
}

type ListExpr struct {
	nodeBase
	Elts []Node
}

type TupleExpr struct {
	nodeBase
	Elts []Node
}

type DictExpr struct {
	nodeBase
	Keys   []Node
	Values []Node
}

type Comprehension struct {
	Target Node
	Iter   Node
	Ifs    []Node
}

type ListComp struct {
	nodeBase
	Elt        Node
	Generators []Comprehension
}

func (*Module) Kind() string        { return "module" }
func (*ExprStmt) Kind() string      { return "expr" }
func (*Assign) Kind() string        { return "assign" }
func (*AugAssign) Kind() string     { return "augassign" }
func (*If) Kind() string            { return "if" }
func (*While) Kind() string         { return "while" }
func (*For) Kind() string           { return "for" }
func (*FuncDef) Kind() string       { return "functiondef" }
func (*Return) Kind() string        { return "return" }
func (*Break) Kind() string         { return "break" }
func (*Continue) Kind() string      { return "continue" }
func (*Pass) Kind() string          { return "pass" }
func (*Try) Kind() string           { return "try" }
func (*ExceptHandler) Kind() string { return "excepthandler" }
func (*Import) Kind() string        { return "import" }
func (*ImportFrom) Kind() string    { return "importfrom" }
func (*Delete) Kind() string        { return "delete" }
func (*Assert) Kind() string        { return "assert" }
func (*Raise) Kind() string         { return "raise" }
func (*Name) Kind() string          { return "name" }
func (*Constant) Kind() string      { return "constant" }
func (*Attribute) Kind() string     { return "attribute" }
func (*Subscript) Kind() string     { return "subscript" }
func (*Slice) Kind() string         { return "slice" }
func (*Call) Kind() string          { return "call" }
func (*Starred) Kind() string       { return "starred" }
func (*BinOp) Kind() string         { return "binop" }
func (*UnaryOp) Kind() string       { return "unaryop" }
func (*BoolOp) Kind() string        { return "boolop" }
func (*Compare) Kind() string       { return "compare" }
func (*IfExp) Kind() string         { return "ifexp" }
func (*ListExpr) Kind() string      { return "list" }
func (*TupleExpr) Kind() string     { return "tuple" }
func (*DictExpr) Kind() string      { return "dict" }
func (*ListComp) Kind() string      { return "listcomp" }
