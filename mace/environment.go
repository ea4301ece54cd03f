package mace

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
)

type PreHook func(*Mace, string, []any)
type PostHook func(*Mace, string, any)

type interruptKind int

const (
	intNone interruptKind = iota
	intBreak
	intContinue
)

const DefaultMaxCallDepth = 200

// source remembers the text a tree was parsed from, so that error
// records can quote the offending line.
type source struct {
	filename string
	first    int
	lines    []string
}

func newSource(text, filename string, first int) *source {
	return &source{filename: filename, first: first, lines: strings.Split(text, "\n")}
}

func (s *source) line(n int) string {
	if s == nil {
		return ""
	}
	i := n - s.first
	if i < 0 || i >= len(s.lines) {
		return ""
	}
	return strings.TrimRight(s.lines[i], " \t\r")
}

// Mace is one interpreter session: a symbol table, a statement
// assembler and the error list. Sessions share nothing.
type Mace struct {
	symtable *SymbolTable
	input    *InputText
	handlers map[string]nodeHandler

	errors []*ErrorRecord
	// errors before mark belong to earlier units
	mark int

	// handling holds the records bound by the except clauses
	// currently running, for a bare raise.
	handling []*ErrorRecord

	MaxCallDepth int
	calldepth    int

	fn       Callable
	filename string
	line     int
	expr     string
	src      *source

	retval    any
	interrupt interruptKind

	before []PreHook
	after  []PostHook

	hostModules map[string]HostModuleBuilder

	Stdout    io.Writer
	sandboxed bool
	debugExec bool

	countCalls bool
	callCounts map[string]int
}

func NewMace() *Mace {
	return NewMaceWithFuncs(AllBuiltinFunctions())
}

// NewMaceSandbox returns a session whose builtins cannot reach the
// file system, the clock or the module loader's script search.
func NewMaceSandbox() *Mace {
	env := NewMaceWithFuncs(SandboxSafeFunctions())
	env.sandboxed = true
	return env
}

// NewMaceWithFuncs returns a session with only the given functions
// installed in _builtin, plus the _math group and the error classes.
func NewMaceWithFuncs(funcs map[string]HostFunction) *Mace {
	env := &Mace{
		symtable:     NewSymbolTable(),
		input:        NewInputText(),
		MaxCallDepth: DefaultMaxCallDepth,
		hostModules:  make(map[string]HostModuleBuilder),
		Stdout:       OurStdout,
		callCounts:   make(map[string]int),
	}
	env.handlers = env.makeHandlers()
	env.input.Commands = env.symtable.ValidCommands
	env.symtable.AddValidCommand(DefaultCommands...)

	b := env.symtable.Builtin
	for _, name := range sortedKeys(funcs) {
		b.Set(name, MakeClosure(name, funcs[name]))
	}
	for _, c := range ErrorClasses {
		b.Set(c.Name, c)
	}
	for k := ErrorKind(0); k < numErrorKinds; k++ {
		if !b.Has(k.String()) {
			b.Set(k.String(), k)
		}
	}
	installMath(env.symtable.Math)
	env.registerStandardHostModules()
	return env
}

// StandardSetup makes a session ready for interactive use.
func (env *Mace) StandardSetup() {
	env.symtable.Sys.Set("sandboxed", env.sandboxed)
	env.symtable.Sys.Set("version", Version())
}

func (env *Mace) SymbolTable() *SymbolTable { return env.symtable }

func (env *Mace) Input() *InputText { return env.input }

func (env *Mace) SetHistory(h *HistoryBuffer) { env.input.History = h }

func (env *Mace) History() *HistoryBuffer { return env.input.History }

func (env *Mace) AddPreHook(fun PreHook) {
	env.before = append(env.before, fun)
}

func (env *Mace) AddPostHook(fun PostHook) {
	env.after = append(env.after, fun)
}

func (env *Mace) SetDebugExec(on bool) { env.debugExec = on }

func (env *Mace) SetCountCalls(on bool) { env.countCalls = on }

// CallCounts reports how often each callable was invoked while
// counting was on.
func (env *Mace) CallCounts() map[string]int {
	out := make(map[string]int, len(env.callCounts))
	for k, v := range env.callCounts {
		out[k] = v
	}
	return out
}

// AddFunction installs a host function in the top group.
func (env *Mace) AddFunction(name string, function HostFunction) {
	env.AddGlobal(name, MakeClosure(name, function))
}

// AddGlobal installs a value in the top group. Go funcs are wrapped.
func (env *Mace) AddGlobal(name string, obj any) error {
	if _, isCallable := obj.(Callable); !isCallable && isGoFunc(obj) {
		c, err := NewClosure(name, obj)
		if err != nil {
			return err
		}
		obj = c
	}
	_, err := env.symtable.SetSymbol(name, normalize(obj), env.symtable.Top())
	return err
}

// Errors returns the session's error list.
func (env *Mace) Errors() []*ErrorRecord {
	return append([]*ErrorRecord(nil), env.errors...)
}

func (env *Mace) ClearErrors() {
	env.errors = nil
	env.mark = 0
	env.handling = nil
}

// ShowErrors writes each distinct error once.
func (env *Mace) ShowErrors(w io.Writer) {
	seen := make(map[string]bool)
	for _, rec := range env.errors {
		text := rec.Format()
		key := strings.SplitN(text, "\n", 2)[0] + rec.Error()
		if seen[key] {
			continue
		}
		seen[key] = true
		fmt.Fprint(w, text)
	}
}

func (env *Mace) faulted() bool {
	return len(env.errors) > env.mark
}

// addError fills in whatever location the record lacks from the
// running statement and appends it.
func (env *Mace) addError(rec *ErrorRecord) {
	if rec.Filename == "" {
		rec.Filename = env.filename
	}
	if rec.Line == 0 {
		rec.Line = env.line
	}
	if rec.Func == nil {
		rec.Func = env.fn
	}
	if rec.Expr == "" {
		rec.Expr = env.src.line(rec.Line)
		if rec.Expr == "" {
			rec.Expr = env.expr
		}
	}
	VPrintf("error recorded: %s", rec.Error())
	env.errors = append(env.errors, rec)
}

// raise records a failure at node.
func (env *Mace) raise(kind ErrorKind, node Node, format string, args ...any) {
	rec := &ErrorRecord{Kind: kind, Msg: fmt.Sprintf(format, args...), Node: node}
	if node != nil {
		pos := node.Pos()
		rec.Line, rec.Col = pos.Line, pos.Col
	}
	env.addError(rec)
}

// raiseErr records err at node, keeping its kind when it is a record.
func (env *Mace) raiseErr(err error, node Node) {
	rec := asRecord(err, HostFault)
	if rec.Node == nil {
		rec.Node = node
	}
	if node != nil && rec.Line == 0 {
		pos := node.Pos()
		rec.Line, rec.Col = pos.Line, pos.Col
	}
	env.addError(rec)
}

// Feed queues more text.
func (env *Mace) Feed(text, filename string, line int) {
	env.input.Put(text, filename, line, true)
}

// PopReadyUnit never blocks; ok is false while more input is needed.
func (env *Mace) PopReadyUnit() (Unit, bool) {
	return env.input.Get()
}

// Parse turns a unit into a tree, recording a SyntaxError on failure.
func (env *Mace) Parse(u Unit) (*Module, bool) {
	tree, err := Parse(u.Text, u.Line)
	if err != nil {
		rec := asRecord(err, SyntaxError)
		rec.Filename = u.Filename
		src := newSource(u.Text, u.Filename, u.Line)
		if rec.Expr == "" {
			rec.Expr = src.line(rec.Line)
		}
		if rec.Expr == "" {
			rec.Expr = u.Text
		}
		env.errors = append(env.errors, rec)
		return nil, false
	}
	return tree, true
}

// Run evaluates one parsed unit. Failures land in the error list; a
// panic inside a handler becomes a HostFault and stops only this unit.
// The value of a trailing expression statement is returned.
func (env *Mace) Run(tree Node, expr, filename string, line int) (result any) {
	saveExpr, saveFile, saveLine, saveSrc := env.expr, env.filename, env.line, env.src
	saveMark, saveFn := env.mark, env.fn
	env.expr, env.filename, env.line = expr, filename, line
	env.src = newSource(expr, filename, line)
	env.mark = len(env.errors)
	env.interrupt = intNone
	env.retval = nil

	defer func() {
		if recovered := recover(); recovered != nil {
			trace := make([]byte, 16384)
			nbyte := runtime.Stack(trace, false)
			VPrintf("Run caught panic: %v\n stack trace:\n%s", recovered, trace[:nbyte])
			env.addError(&ErrorRecord{Kind: HostFault,
				Msg: fmt.Sprintf("internal error: %v", recovered)})
			result = nil
		}
		env.interrupt = intNone
		env.retval = nil
		env.expr, env.filename, env.line, env.src = saveExpr, saveFile, saveLine, saveSrc
		env.fn = saveFn
		env.mark = saveMark
	}()
	if env.calldepth == 0 {
		env.fn = nil
	}

	body := []Node{tree}
	if mod, ok := tree.(*Module); ok {
		body = mod.Body
	}
	for _, node := range body {
		env.line = node.Pos().Line
		result = env.eval(node)
		if _, isExpr := node.(*ExprStmt); !isExpr {
			result = nil
		}
		if env.faulted() {
			return nil
		}
		if env.retval != nil {
			env.raise(UnsupportedConstruct, node, "'return' outside procedure")
			return nil
		}
		env.interrupt = intNone
	}
	return result
}

// runUnit parses and runs one unit.
func (env *Mace) runUnit(u Unit) (any, bool) {
	start := len(env.errors)
	tree, ok := env.Parse(u)
	if !ok {
		return nil, false
	}
	val := env.Run(tree, u.Text, u.Filename, u.Line)
	return val, len(env.errors) == start
}

// ExecuteInput runs every complete unit waiting in the assembler.
// display, when non-nil, receives the value of each unit that ends in
// an expression with a non-None value. It returns the number of units
// run.
func (env *Mace) ExecuteInput(display func(any)) int {
	n := 0
	for {
		val, err := env.RunNext()
		if err == ErrNoUnitReady {
			return n
		}
		n++
		if err == nil && val != nil && display != nil {
			display(val)
		}
	}
}

// RunNext runs the next complete unit. It returns ErrNoUnitReady
// while more input is needed, and a failed unit's first error.
func (env *Mace) RunNext() (any, error) {
	u, ok := env.input.Get()
	if !ok {
		return nil, ErrNoUnitReady
	}
	start := len(env.errors)
	val, ok := env.runUnit(u)
	if !ok {
		return nil, env.errors[start]
	}
	return val, nil
}

// EvalString runs text as a script in the current frame and returns
// the value of the last unit. The first recorded error, if any, is
// returned as the error.
func (env *Mace) EvalString(text string) (any, error) {
	env.ClearErrors()
	saved := env.input
	env.input = NewInputText()
	env.input.Commands = saved.Commands
	defer func() { env.input = saved }()

	env.input.Put(text, "<string>", 1, false)
	if rec := env.input.Incomplete(); rec != nil {
		env.addError(rec)
		return nil, rec
	}
	var last any
	for {
		u, ok := env.input.Get()
		if !ok {
			break
		}
		last, _ = env.runUnit(u)
	}
	if len(env.errors) > 0 {
		return last, env.errors[0]
	}
	return last, nil
}

// RunFile loads path and runs its units before anything already
// queued. With a module name the file runs in a fresh frame whose
// group is returned and cached as that module; otherwise it runs in
// the current frame and the local group is returned.
func (env *Mace) RunFile(path, asModule string) (*Group, error) {
	start := len(env.errors)
	n, err := env.input.PutFile(path)
	if err != nil {
		rec := asRecord(err, IOFailure)
		env.addError(rec)
		return nil, rec
	}
	st := env.symtable
	g := st.LocalGroup()
	if asModule != "" {
		g = NewGroup(asModule)
		g.Set("__file__", path)
		prev, had := st.modules[asModule]
		st.modules[asModule] = g
		defer func() {
			if len(env.errors) == start {
				return
			}
			if had {
				st.modules[asModule] = prev
			} else {
				delete(st.modules, asModule)
			}
		}()
		st.SaveFrame()
		defer st.RestoreFrame()
		st.SetFrame(g, g)
	}
	for i := 0; i < n; i++ {
		u, ok := env.input.Get()
		if !ok {
			break
		}
		env.runUnit(u)
	}
	if len(env.errors) > start {
		return g, env.errors[start]
	}
	return g, nil
}

// RunInitScripts runs each file that exists, reporting the first
// failure.
func (env *Mace) RunInitScripts(files []string) error {
	var errs []error
	for _, f := range files {
		if !fileExists(f) {
			continue
		}
		if _, err := env.RunFile(f, ""); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Apply calls any callable value with the session as context.
func (env *Mace) Apply(fn any, args []any, kws *Dict) (any, error) {
	start := len(env.errors)
	saveMark := env.mark
	env.mark = start
	defer func() { env.mark = saveMark }()
	res := env.callValue(fn, args, kws, nil)
	if len(env.errors) > start {
		return nil, env.errors[start]
	}
	return res, nil
}

// Call looks up a procedure or function by name and applies it.
func (env *Mace) Call(name string, args ...any) (any, error) {
	fn, err := env.symtable.Resolve(name, false)
	if err != nil {
		return nil, err
	}
	for i := range args {
		args[i] = normalize(args[i])
	}
	return env.Apply(fn, args, nil)
}

func (env *Mace) printf(format string, args ...any) {
	fmt.Fprintf(env.Stdout, format, args...)
}
