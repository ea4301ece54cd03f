package mace

import (
	"errors"
	"fmt"
	"strings"
)

var WrongNargs error = fmt.Errorf("wrong number of arguments")
var ErrNotAGroup = errors.New("not a group")
var ErrNoUnitReady = errors.New("no complete unit ready")

// ErrorKind classifies a recorded failure.
type ErrorKind int

const (
	HostFault ErrorKind = iota
	IncompleteInput
	InvalidIdentifier
	UnknownName
	UnknownMember
	ForbiddenAttribute
	NotCallable
	MissingArgument
	TooManyArguments
	DuplicateArgument
	UnexpectedKeyword
	UnpackMismatch
	UnsupportedConstruct
	ImportFailed
	AssertionFailed
	SyntaxError
	TypeMismatch
	IndexOutOfRange
	KeyNotFound
	ZeroDivision
	IOFailure
	UserError
	numErrorKinds
)

var errorKindNames = [numErrorKinds]string{
	HostFault:            "HostFault",
	IncompleteInput:      "IncompleteInput",
	InvalidIdentifier:    "InvalidIdentifier",
	UnknownName:          "UnknownName",
	UnknownMember:        "UnknownMember",
	ForbiddenAttribute:   "ForbiddenAttribute",
	NotCallable:          "NotCallable",
	MissingArgument:      "MissingArgument",
	TooManyArguments:     "TooManyArguments",
	DuplicateArgument:    "DuplicateArgument",
	UnexpectedKeyword:    "UnexpectedKeyword",
	UnpackMismatch:       "UnpackMismatch",
	UnsupportedConstruct: "UnsupportedConstruct",
	ImportFailed:         "ImportFailed",
	AssertionFailed:      "AssertionFailed",
	SyntaxError:          "SyntaxError",
	TypeMismatch:         "TypeMismatch",
	IndexOutOfRange:      "IndexOutOfRange",
	KeyNotFound:          "KeyNotFound",
	ZeroDivision:         "ZeroDivision",
	IOFailure:            "IOFailure",
	UserError:            "UserError",
}

func (k ErrorKind) String() string {
	if k < 0 || k >= numErrorKinds {
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
	return errorKindNames[k]
}

// CallableName lets an ErrorKind stand in an except clause
// and be called to build a raisable record: raise UnknownName("x").
func (k ErrorKind) CallableName() string { return k.String() }

func (k ErrorKind) Call(env *Mace, args []any, kws *Dict) (any, error) {
	return &ErrorRecord{Kind: k, Msg: joinArgs(args)}, nil
}

// ErrorClass is a script-visible family of kinds, spelled the way
// users of Python-like languages expect (TypeError, NameError, ...).
// A class with no kinds matches everything.
type ErrorClass struct {
	Name    string
	Primary ErrorKind
	Kinds   []ErrorKind
}

func (c *ErrorClass) String() string { return "<error class " + c.Name + ">" }

func (c *ErrorClass) CallableName() string { return c.Name }

func (c *ErrorClass) Call(env *Mace, args []any, kws *Dict) (any, error) {
	return &ErrorRecord{Kind: c.Primary, Msg: joinArgs(args), Class: c.Name}, nil
}

func (c *ErrorClass) Matches(k ErrorKind) bool {
	if len(c.Kinds) == 0 {
		return true
	}
	for _, x := range c.Kinds {
		if x == k {
			return true
		}
	}
	return false
}

var ErrorClasses = []*ErrorClass{
	{Name: "Exception", Primary: UserError},
	{Name: "RuntimeError", Primary: HostFault, Kinds: []ErrorKind{HostFault, UserError}},
	{Name: "NameError", Primary: UnknownName, Kinds: []ErrorKind{UnknownName, InvalidIdentifier}},
	{Name: "AttributeError", Primary: UnknownMember, Kinds: []ErrorKind{UnknownMember, ForbiddenAttribute}},
	{Name: "TypeError", Primary: TypeMismatch, Kinds: []ErrorKind{TypeMismatch, NotCallable,
		MissingArgument, TooManyArguments, DuplicateArgument, UnexpectedKeyword}},
	{Name: "ValueError", Primary: UserError, Kinds: []ErrorKind{UnpackMismatch, UserError}},
	{Name: "IndexError", Primary: IndexOutOfRange, Kinds: []ErrorKind{IndexOutOfRange}},
	{Name: "KeyError", Primary: KeyNotFound, Kinds: []ErrorKind{KeyNotFound}},
	{Name: "ImportError", Primary: ImportFailed, Kinds: []ErrorKind{ImportFailed}},
	{Name: "AssertionError", Primary: AssertionFailed, Kinds: []ErrorKind{AssertionFailed}},
	{Name: "SyntaxError", Primary: SyntaxError, Kinds: []ErrorKind{SyntaxError, IncompleteInput}},
	{Name: "ZeroDivisionError", Primary: ZeroDivision, Kinds: []ErrorKind{ZeroDivision}},
	{Name: "IOError", Primary: IOFailure, Kinds: []ErrorKind{IOFailure}},
	{Name: "NotImplementedError", Primary: UnsupportedConstruct, Kinds: []ErrorKind{UnsupportedConstruct}},
}

// ErrorRecord captures one failure. It is not modified after
// being appended to a session's error list.
type ErrorRecord struct {
	Kind ErrorKind
	Msg  string

	// Class is set when the record was raised through an ErrorClass,
	// so that the class name is what gets reported.
	Class string

	Node     Node
	Func     Callable
	Expr     string
	Filename string
	Line     int
	Col      int
}

func (e *ErrorRecord) KindName() string {
	if e.Class != "" {
		return e.Class
	}
	return e.Kind.String()
}

func (e *ErrorRecord) Error() string {
	return e.KindName() + ": " + e.Msg
}

func (e *ErrorRecord) String() string {
	return "<" + e.Error() + ">"
}

// GetMember exposes the record to scripts that bind it in a handler.
func (e *ErrorRecord) GetMember(name string) (any, bool) {
	switch name {
	case "kind":
		return e.KindName(), true
	case "msg", "message":
		return e.Msg, true
	case "filename":
		return e.Filename, true
	case "lineno", "line":
		return int64(e.Line), true
	case "expr", "text":
		return e.Expr, true
	}
	return nil, false
}

// Format renders the record the way the session reports it:
// source snippet, caret, file/line location and the message.
func (e *ErrorRecord) Format() string {
	var out []string
	switch {
	case e.Expr == "":
		out = append(out, "unknown error")
	case strings.Contains(e.Expr, "\n"):
		out = append(out, "\n"+e.Expr)
	default:
		out = append(out, "    "+e.Expr)
		if e.Col > 0 {
			out = append(out, strings.Repeat(" ", e.Col+4)+"^^^")
		}
	}
	fname := e.Filename
	if fname == "" {
		fname = "<stdin>"
	}
	fline := fmt.Sprintf("   File %s, line %d", fname, e.Line)
	if e.Func != nil {
		dec := ""
		if _, isProc := e.Func.(*Procedure); isProc {
			dec = "procedure "
		}
		fline += ", in " + dec + e.Func.CallableName()
	}
	out = append(out, fline)
	out = append(out, e.Error())
	return strings.Join(out, "\n") + "\n"
}

func joinArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = ToStr(a)
	}
	return strings.Join(parts, " ")
}

// asRecord converts an arbitrary Go error into a record of kind dflt,
// keeping the kind of errors that already are records.
func asRecord(err error, dflt ErrorKind) *ErrorRecord {
	var rec *ErrorRecord
	if errors.As(err, &rec) {
		cp := *rec
		return &cp
	}
	return &ErrorRecord{Kind: dflt, Msg: err.Error()}
}

func newError(kind ErrorKind, format string, args ...any) *ErrorRecord {
	return &ErrorRecord{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
