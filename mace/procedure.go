package mace

import (
	"fmt"
	"strings"
)

// KeywordParam is one keyword-defaulted formal parameter.
type KeywordParam struct {
	Name    string
	Default any
}

// Procedure is a user-defined callable. It is not modified after
// definition; each call binds its arguments into a fresh local Group.
type Procedure struct {
	Name     string
	Doc      string
	Args     []string
	Kwargs   []KeywordParam
	VarArg   string
	VarKws   string
	Body     []Node
	Module   *Group
	Filename string
	Line     int

	src *source
}

func (p *Procedure) CallableName() string { return p.Name }

func (p *Procedure) String() string {
	return fmt.Sprintf("<Procedure %s, file=%s>", p.Signature(), p.Filename)
}

// Signature renders name(args, *va, kw=default, **vk).
func (p *Procedure) Signature() string {
	var parts []string
	parts = append(parts, p.Args...)
	if p.VarArg != "" {
		parts = append(parts, "*"+p.VarArg)
	}
	for _, kw := range p.Kwargs {
		parts = append(parts, kw.Name+"="+Repr(kw.Default))
	}
	if p.VarKws != "" {
		parts = append(parts, "**"+p.VarKws)
	}
	return p.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (p *Procedure) GetMember(name string) (any, bool) {
	switch name {
	case "__name__", "name":
		return p.Name, true
	case "__doc__", "doc":
		return p.Doc, true
	case "__file__", "filename":
		return p.Filename, true
	case "signature":
		return p.Signature(), true
	}
	return nil, false
}

func (p *Procedure) fault(kind ErrorKind, format string, args ...any) *ErrorRecord {
	return &ErrorRecord{Kind: kind, Msg: fmt.Sprintf(format, args...),
		Func: p, Filename: p.Filename, Line: p.Line}
}

// bind applies the argument-binding rules and returns the populated
// local frame group.
func (p *Procedure) bind(args []any, kws *Dict) (*Group, error) {
	args = append([]any{}, args...)
	if kws == nil {
		kws = NewDict()
	} else {
		kws = kws.Copy()
	}
	nexpected := len(p.Args)

	// too few positionals, but the missing ones were given by name
	if len(args) < nexpected && kws.Len() > 0 {
		for _, name := range p.Args[len(args):] {
			v, ok := kws.Get(name)
			if !ok {
				break
			}
			args = append(args, v)
			kws.Delete(name)
		}
	}

	for _, name := range p.Args {
		if _, ok := kws.Get(name); ok {
			return nil, p.fault(DuplicateArgument,
				"%s() got multiple values for argument '%s'", p.Name, name)
		}
	}

	if len(args) < nexpected {
		mod := "exactly"
		if p.VarArg != "" {
			mod = "at least"
		}
		return nil, p.fault(MissingArgument,
			"%s() expected %s %d arguments (got %d), missing %d",
			p.Name, mod, nexpected, len(args), nexpected-len(args))
	}

	if len(args) > nexpected && p.VarArg == "" {
		excess := args[nexpected:]
		if len(excess) > len(p.Kwargs) {
			return nil, p.fault(TooManyArguments,
				"too many arguments for %s() expected at most %d, got %d",
				p.Name, nexpected+len(p.Kwargs), len(args))
		}
		for i, x := range excess {
			kwName := p.Kwargs[i].Name
			if _, given := kws.Get(kwName); given {
				return nil, p.fault(DuplicateArgument,
					"%s() got multiple values for argument '%s'", p.Name, kwName)
			}
			kws.Set(kwName, x)
		}
		args = args[:nexpected]
	}

	local := NewGroup("")
	for i, name := range p.Args {
		local.Set(name, args[i])
	}
	if p.VarArg != "" {
		local.Set(p.VarArg, Tuple(append([]any{}, args[nexpected:]...)))
	}
	for _, kw := range p.Kwargs {
		val := kw.Default
		if v, ok := kws.Get(kw.Name); ok {
			val = v
			kws.Delete(kw.Name)
		}
		local.Set(kw.Name, val)
	}
	if p.VarKws != "" {
		local.Set(p.VarKws, kws)
	} else if kws.Len() > 0 {
		return nil, p.fault(UnexpectedKeyword,
			"extra keyword arguments for procedure %s (%s)",
			p.Name, strings.Join(kws.StrKeys(), ","))
	}
	return local, nil
}

// Call binds arguments, runs the body in a new frame and restores the
// caller's frame whether or not the body faulted.
func (p *Procedure) Call(env *Mace, args []any, kws *Dict) (any, error) {
	local, err := p.bind(args, kws)
	if err != nil {
		return nil, err
	}
	if env.calldepth >= env.MaxCallDepth {
		return nil, p.fault(HostFault, "maximum recursion depth (%d) exceeded in %s()",
			env.MaxCallDepth, p.Name)
	}

	st := env.symtable
	st.SaveFrame()
	defer st.RestoreFrame()
	st.SetFrame(local, p.Module)

	saveFunc, saveFile, saveLine, saveSrc := env.fn, env.filename, env.line, env.src
	env.calldepth++
	env.retval = nil
	env.src = p.src
	defer func() {
		env.calldepth--
		env.retval = nil
		env.fn, env.filename, env.line, env.src = saveFunc, saveFile, saveLine, saveSrc
	}()

	var retval any
	for _, node := range p.Body {
		env.fn = p
		env.filename = p.Filename
		env.line = node.Pos().Line
		env.eval(node)
		if env.faulted() {
			break
		}
		if env.retval != nil {
			retval = env.retval
			if retval == ReturnedNone {
				retval = nil
			}
			break
		}
		if env.interrupt != intNone {
			env.interrupt = intNone
		}
	}
	return retval, nil
}
