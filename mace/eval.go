package mace

import (
	"strings"
)

type nodeHandler func(env *Mace, n Node) any

// ForbiddenAttributes are never readable or writable from scripts.
var ForbiddenAttributes = map[string]bool{
	"__subclasses__": true, "__bases__": true, "__globals__": true,
	"__code__": true, "__closure__": true, "__func__": true, "__self__": true,
	"__module__": true, "__dict__": true, "__class__": true, "__call__": true,
	"__get__": true, "__getattribute__": true, "__subclasshook__": true,
	"__new__": true, "__init__": true, "func_globals": true, "func_code": true,
	"func_closure": true, "im_class": true, "im_func": true, "im_self": true,
	"gi_code": true, "gi_frame": true, "f_locals": true, "__mro__": true,
	"__maceenv__": true,
}

func (env *Mace) makeHandlers() map[string]nodeHandler {
	return map[string]nodeHandler{
		"module":        (*Mace).onModule,
		"expr":          (*Mace).onExpr,
		"assign":        (*Mace).onAssign,
		"augassign":     (*Mace).onAugAssign,
		"if":            (*Mace).onIf,
		"while":         (*Mace).onWhile,
		"for":           (*Mace).onFor,
		"functiondef":   (*Mace).onFunctionDef,
		"return":        (*Mace).onReturn,
		"break":         (*Mace).onBreak,
		"continue":      (*Mace).onContinue,
		"pass":          (*Mace).onPass,
		"try":           (*Mace).onTry,
		"excepthandler": (*Mace).onExceptHandler,
		"import":        (*Mace).onImport,
		"importfrom":    (*Mace).onImportFrom,
		"delete":        (*Mace).onDelete,
		"assert":        (*Mace).onAssert,
		"raise":         (*Mace).onRaise,
		"name":          (*Mace).onName,
		"constant":      (*Mace).onConstant,
		"attribute":     (*Mace).onAttribute,
		"subscript":     (*Mace).onSubscript,
		"slice":         (*Mace).onSlice,
		"call":          (*Mace).onCall,
		"starred":       (*Mace).onStarred,
		"binop":         (*Mace).onBinOp,
		"unaryop":       (*Mace).onUnaryOp,
		"boolop":        (*Mace).onBoolOp,
		"compare":       (*Mace).onCompare,
		"ifexp":         (*Mace).onIfExp,
		"list":          (*Mace).onList,
		"tuple":         (*Mace).onTuple,
		"dict":          (*Mace).onDict,
		"listcomp":      (*Mace).onListComp,
	}
}

// eval dispatches n to its handler. Once the running unit has faulted
// every further eval is a no-op returning nil.
func (env *Mace) eval(n Node) any {
	if n == nil || env.faulted() {
		return nil
	}
	h, ok := env.handlers[n.Kind()]
	if !ok {
		env.raise(UnsupportedConstruct, n, "'%s' not supported", n.Kind())
		return nil
	}
	if env.debugExec {
		VPrintf("eval %s at %s:%d", n.Kind(), env.filename, n.Pos().Line)
	}
	return h(env, n)
}

// runBody runs statements until one faults, returns, or sets the
// interrupt flag.
func (env *Mace) runBody(body []Node) {
	for _, n := range body {
		env.line = n.Pos().Line
		env.eval(n)
		if env.faulted() || env.retval != nil || env.interrupt != intNone {
			return
		}
	}
}

// statements

func (env *Mace) onModule(n Node) any {
	env.runBody(n.(*Module).Body)
	return nil
}

func (env *Mace) onExpr(n Node) any {
	return env.eval(n.(*ExprStmt).X)
}

func (env *Mace) onPass(n Node) any { return nil }

func (env *Mace) onBreak(n Node) any {
	env.interrupt = intBreak
	return nil
}

func (env *Mace) onContinue(n Node) any {
	env.interrupt = intContinue
	return nil
}

func (env *Mace) onReturn(n Node) any {
	r := n.(*Return)
	val := env.eval(r.Value)
	if env.faulted() {
		return nil
	}
	if val == nil {
		val = ReturnedNone
	}
	env.retval = val
	return nil
}

func (env *Mace) onAssign(n Node) any {
	a := n.(*Assign)
	val := env.eval(a.Value)
	if env.faulted() {
		return nil
	}
	for _, tgt := range a.Targets {
		env.assign(tgt, val)
		if env.faulted() {
			break
		}
	}
	return nil
}

func (env *Mace) assign(target Node, val any) {
	switch t := target.(type) {
	case *Name:
		if _, err := env.symtable.SetSymbol(t.Id, val, nil); err != nil {
			env.raiseErr(err, t)
		}
	case *Attribute:
		base := env.eval(t.Value)
		if env.faulted() {
			return
		}
		env.setAttr(base, t.Attr, val, t)
	case *Subscript:
		base := env.eval(t.Value)
		idx := env.eval(t.Index)
		if env.faulted() {
			return
		}
		if err := SetItem(base, idx, val); err != nil {
			env.raiseErr(err, t)
		}
	case *TupleExpr:
		env.unpack(t.Elts, val, t)
	case *ListExpr:
		env.unpack(t.Elts, val, t)
	default:
		env.raise(UnsupportedConstruct, target, "cannot assign to %s", target.Kind())
	}
}

func (env *Mace) unpack(targets []Node, val any, n Node) {
	items, err := Iterate(val)
	if err != nil {
		env.raise(UnpackMismatch, n, "cannot unpack non-sequence %s", TypeName(val))
		return
	}
	if len(items) != len(targets) {
		if len(items) > len(targets) {
			env.raise(UnpackMismatch, n, "too many values to unpack (expected %d)", len(targets))
		} else {
			env.raise(UnpackMismatch, n, "not enough values to unpack (expected %d, got %d)",
				len(targets), len(items))
		}
		return
	}
	for i, tgt := range targets {
		env.assign(tgt, items[i])
		if env.faulted() {
			return
		}
	}
}

func (env *Mace) setAttr(base any, attr string, val any, n Node) {
	if ForbiddenAttributes[attr] {
		env.raise(ForbiddenAttribute, n, "no safe attribute '%s'", attr)
		return
	}
	switch b := base.(type) {
	case *Group:
		if _, err := env.symtable.SetSymbol(attr, val, b); err != nil {
			env.raiseErr(err, n)
		}
	case MemberSetter:
		if err := b.SetMember(attr, val); err != nil {
			env.raiseErr(err, n)
		}
	default:
		env.raise(UnknownMember, n, "cannot set attribute '%s' of %s object", attr, TypeName(base))
	}
}

func (env *Mace) onAugAssign(n Node) any {
	a := n.(*AugAssign)
	cur := env.eval(a.Target)
	val := env.eval(a.Value)
	if env.faulted() {
		return nil
	}
	if l, ok := cur.(*List); ok && a.Op == "+" {
		items, err := Iterate(val)
		if err != nil {
			env.raiseErr(err, a)
			return nil
		}
		l.Items = append(l.Items, items...)
		return nil
	}
	res, err := BinaryOp(a.Op, cur, val)
	if err != nil {
		env.raiseErr(err, a)
		return nil
	}
	env.assign(a.Target, res)
	return nil
}

func (env *Mace) onIf(n Node) any {
	x := n.(*If)
	test := env.eval(x.Test)
	if env.faulted() {
		return nil
	}
	if Truthy(test) {
		env.runBody(x.Body)
	} else {
		env.runBody(x.Orelse)
	}
	return nil
}

// loopDone clears the interrupt flag after one pass of a loop body
// and reports whether the loop must stop. A stopped loop skips its
// else clause.
func (env *Mace) loopDone() bool {
	if env.faulted() || env.retval != nil {
		return true
	}
	in := env.interrupt
	env.interrupt = intNone
	return in == intBreak
}

func (env *Mace) onWhile(n Node) any {
	w := n.(*While)
	for {
		test := env.eval(w.Test)
		if env.faulted() {
			return nil
		}
		if !Truthy(test) {
			break
		}
		env.interrupt = intNone
		env.runBody(w.Body)
		if env.loopDone() {
			return nil
		}
	}
	env.runBody(w.Orelse)
	return nil
}

func (env *Mace) onFor(n Node) any {
	f := n.(*For)
	seq := env.eval(f.Iter)
	if env.faulted() {
		return nil
	}
	items, err := Iterate(seq)
	if err != nil {
		env.raiseErr(err, f.Iter)
		return nil
	}
	for _, item := range items {
		env.assign(f.Target, item)
		if env.faulted() {
			return nil
		}
		env.interrupt = intNone
		env.runBody(f.Body)
		if env.loopDone() {
			return nil
		}
	}
	env.runBody(f.Orelse)
	return nil
}

func (env *Mace) onFunctionDef(n Node) any {
	fd := n.(*FuncDef)
	proc := &Procedure{
		Name:     fd.Name,
		Doc:      strings.TrimSpace(fd.Doc),
		Args:     fd.Args,
		VarArg:   fd.VarArg,
		VarKws:   fd.VarKws,
		Body:     fd.Body,
		Module:   env.symtable.ModuleGroup(),
		Filename: env.filename,
		Line:     fd.Pos().Line,
		src:      env.src,
	}
	for i, name := range fd.KwNames {
		def := env.eval(fd.Defaults[i])
		if env.faulted() {
			return nil
		}
		proc.Kwargs = append(proc.Kwargs, KeywordParam{Name: name, Default: def})
	}
	if _, err := env.symtable.SetSymbol(fd.Name, proc, nil); err != nil {
		env.raiseErr(err, fd)
	}
	return nil
}

// errorMatches reports whether an except clause type catches rec.
func errorMatches(typ any, rec *ErrorRecord) bool {
	switch t := typ.(type) {
	case ErrorKind:
		return t == rec.Kind
	case *ErrorClass:
		return t.Name == rec.Class || t.Matches(rec.Kind)
	case string:
		return t == rec.KindName() || t == rec.Kind.String()
	case Tuple:
		for _, x := range t {
			if errorMatches(x, rec) {
				return true
			}
		}
	case *List:
		for _, x := range t.Items {
			if errorMatches(x, rec) {
				return true
			}
		}
	}
	return false
}

func (env *Mace) onTry(n Node) any {
	t := n.(*Try)
	start := len(env.errors)
	env.runBody(t.Body)

	if len(env.errors) > start {
		caught := append([]*ErrorRecord(nil), env.errors[start:]...)
		env.errors = env.errors[:start]
		handled := false
		for _, h := range t.Handlers {
			match := h.Type == nil
			if !match {
				typ := env.eval(h.Type)
				if env.faulted() {
					break
				}
				match = errorMatches(typ, caught[0])
			}
			if match {
				handled = true
				env.interrupt = intNone
				env.handling = append(env.handling, caught[0])
				env.eval(h)
				env.handling = env.handling[:len(env.handling)-1]
				break
			}
		}
		if !handled {
			fresh := append([]*ErrorRecord(nil), env.errors[start:]...)
			env.errors = append(append(env.errors[:start], caught...), fresh...)
		}
	} else if env.retval == nil && env.interrupt == intNone {
		env.runBody(t.Orelse)
	}

	if len(t.Finally) > 0 {
		pending := append([]*ErrorRecord(nil), env.errors[start:]...)
		env.errors = env.errors[:start]
		retval, interrupt := env.retval, env.interrupt
		env.retval, env.interrupt = nil, intNone
		env.runBody(t.Finally)
		fresh := append([]*ErrorRecord(nil), env.errors[start:]...)
		env.errors = append(append(env.errors[:start], pending...), fresh...)
		if env.retval == nil && env.interrupt == intNone {
			env.retval, env.interrupt = retval, interrupt
		}
	}
	return nil
}

func (env *Mace) onExceptHandler(n Node) any {
	h := n.(*ExceptHandler)
	if h.Name != "" && len(env.handling) > 0 {
		if _, err := env.symtable.SetSymbol(h.Name, env.handling[len(env.handling)-1], nil); err != nil {
			env.raiseErr(err, h)
			return nil
		}
	}
	env.runBody(h.Body)
	return nil
}

func (env *Mace) onImport(n Node) any {
	imp := n.(*Import)
	for _, a := range imp.Names {
		if _, err := env.ImportModule(a.Name, a.AsName, nil, nil, false); err != nil {
			env.raiseErr(err, imp)
			return nil
		}
	}
	return nil
}

func (env *Mace) onImportFrom(n Node) any {
	imp := n.(*ImportFrom)
	var names []string
	aliases := make(map[string]string)
	for _, a := range imp.Names {
		names = append(names, a.Name)
		if a.AsName != "" {
			aliases[a.Name] = a.AsName
		}
	}
	if _, err := env.ImportModule(imp.Module, "", names, aliases, false); err != nil {
		env.raiseErr(err, imp)
	}
	return nil
}

func (env *Mace) onDelete(n Node) any {
	d := n.(*Delete)
	for _, tgt := range d.Targets {
		switch t := tgt.(type) {
		case *Name:
			if err := env.symtable.DeleteSymbol(t.Id); err != nil {
				env.raiseErr(err, t)
			}
		case *Attribute:
			base := env.eval(t.Value)
			if env.faulted() {
				return nil
			}
			g, ok := base.(*Group)
			if !ok || !g.Delete(t.Attr) {
				env.raise(UnknownMember, t, "cannot delete member '%s' of %s", t.Attr, TypeName(base))
			}
		case *Subscript:
			base := env.eval(t.Value)
			idx := env.eval(t.Index)
			if env.faulted() {
				return nil
			}
			if err := DelItem(base, idx); err != nil {
				env.raiseErr(err, t)
			}
		}
		if env.faulted() {
			return nil
		}
	}
	return nil
}

func (env *Mace) onAssert(n Node) any {
	a := n.(*Assert)
	test := env.eval(a.Test)
	if env.faulted() || Truthy(test) {
		return nil
	}
	msg := "assertion failed"
	if a.Msg != nil {
		m := env.eval(a.Msg)
		if env.faulted() {
			return nil
		}
		msg = ToStr(m)
	}
	env.raise(AssertionFailed, a, "%s", msg)
	return nil
}

func (env *Mace) onRaise(n Node) any {
	r := n.(*Raise)
	if r.Exc == nil {
		if len(env.handling) == 0 {
			env.raise(UserError, r, "no active error to re-raise")
			return nil
		}
		cp := *env.handling[len(env.handling)-1]
		env.addError(&cp)
		return nil
	}
	exc := env.eval(r.Exc)
	if env.faulted() {
		return nil
	}
	var rec *ErrorRecord
	switch e := exc.(type) {
	case *ErrorRecord:
		cp := *e
		rec = &cp
	case *ErrorClass:
		rec = &ErrorRecord{Kind: e.Primary, Class: e.Name}
	case ErrorKind:
		rec = &ErrorRecord{Kind: e}
	case string:
		rec = &ErrorRecord{Kind: UserError, Msg: e}
	default:
		env.raise(TypeMismatch, r, "exceptions must be error values, not %s", TypeName(exc))
		return nil
	}
	if r.Cause != nil {
		cause := env.eval(r.Cause)
		if env.faulted() {
			return nil
		}
		rec.Msg += " (caused by " + ToStr(cause) + ")"
	}
	pos := r.Pos()
	rec.Node, rec.Line, rec.Col = r, pos.Line, pos.Col
	rec.Filename, rec.Expr, rec.Func = "", "", nil
	env.addError(rec)
	return nil
}

// expressions

func (env *Mace) onConstant(n Node) any {
	return n.(*Constant).Value
}

func (env *Mace) onName(n Node) any {
	x := n.(*Name)
	v, err := env.symtable.Resolve(x.Id, false)
	if err != nil {
		env.raiseErr(err, x)
		return nil
	}
	return v
}

func (env *Mace) onAttribute(n Node) any {
	a := n.(*Attribute)
	base := env.eval(a.Value)
	if env.faulted() {
		return nil
	}
	return env.getAttr(base, a.Attr, a)
}

func (env *Mace) getAttr(base any, attr string, n Node) any {
	if ForbiddenAttributes[attr] {
		env.raise(ForbiddenAttribute, n, "no safe attribute '%s'", attr)
		return nil
	}
	if v, ok := memberOf(base, attr); ok {
		return v
	}
	if m, ok := boundMethod(base, attr); ok {
		return m
	}
	if g, ok := base.(*Group); ok {
		env.raise(UnknownMember, n, "group '%s' has no member '%s'", g.Name, attr)
	} else {
		env.raise(UnknownMember, n, "'%s' object has no attribute '%s'", TypeName(base), attr)
	}
	return nil
}

func (env *Mace) onSubscript(n Node) any {
	s := n.(*Subscript)
	base := env.eval(s.Value)
	idx := env.eval(s.Index)
	if env.faulted() {
		return nil
	}
	v, err := GetItem(base, idx)
	if err != nil {
		env.raiseErr(err, s)
		return nil
	}
	return v
}

func (env *Mace) onSlice(n Node) any {
	s := n.(*Slice)
	out := &SliceValue{Lo: env.eval(s.Lo), Hi: env.eval(s.Hi), Step: env.eval(s.Step)}
	if env.faulted() {
		return nil
	}
	return out
}

func (env *Mace) onStarred(n Node) any {
	env.raise(UnsupportedConstruct, n, "starred expression is not allowed here")
	return nil
}

// evalElts evaluates a display or argument list, expanding *x.
func (env *Mace) evalElts(elts []Node) []any {
	out := make([]any, 0, len(elts))
	for _, e := range elts {
		if s, ok := e.(*Starred); ok {
			v := env.eval(s.Value)
			if env.faulted() {
				return nil
			}
			items, err := Iterate(v)
			if err != nil {
				env.raiseErr(err, s)
				return nil
			}
			out = append(out, items...)
			continue
		}
		out = append(out, env.eval(e))
		if env.faulted() {
			return nil
		}
	}
	return out
}

func (env *Mace) onCall(n Node) any {
	c := n.(*Call)
	fn := env.eval(c.Func)
	if env.faulted() {
		return nil
	}
	args := env.evalElts(c.Args)
	if env.faulted() {
		return nil
	}
	var kws *Dict
	if len(c.Keywords) > 0 {
		kws = NewDict()
	}
	put := func(k string, v any) bool {
		if _, dup := kws.Get(k); dup {
			env.raise(DuplicateArgument, c, "keyword argument repeated: '%s'", k)
			return false
		}
		kws.Set(k, v)
		return true
	}
	for _, kw := range c.Keywords {
		v := env.eval(kw.Value)
		if env.faulted() {
			return nil
		}
		if kw.Name != "" {
			if !put(kw.Name, v) {
				return nil
			}
			continue
		}
		switch m := v.(type) {
		case *Dict:
			for _, k := range m.Keys() {
				kv, _ := m.Get(k)
				if !put(ToStr(k), kv) {
					return nil
				}
			}
		case *Group:
			for _, k := range m.Members() {
				kv, _ := m.Get(k)
				if !put(k, kv) {
					return nil
				}
			}
		default:
			env.raise(TypeMismatch, c, "argument after ** must be a mapping, not %s", TypeName(v))
			return nil
		}
	}
	return env.callValue(fn, args, kws, c)
}

// callValue invokes fn, turning any failure into an error record
// attributed to the callee.
func (env *Mace) callValue(fn any, args []any, kws *Dict, n Node) any {
	var callee Callable
	switch f := fn.(type) {
	case Callable:
		callee = f
	default:
		if !isGoFunc(fn) {
			env.raise(NotCallable, n, "'%s' object is not callable", TypeName(fn))
			return nil
		}
		c, err := NewClosure("<host function>", fn)
		if err != nil {
			env.raiseErr(err, n)
			return nil
		}
		callee = c
	}
	name := callee.CallableName()
	if env.countCalls {
		env.callCounts[name]++
	}
	for _, pre := range env.before {
		pre(env, name, args)
	}
	res, err := callee.Call(env, args, kws)
	if err != nil {
		if env.faulted() {
			// already recorded by a procedure the callee ran
			return nil
		}
		rec := asRecord(err, HostFault)
		if rec.Func == nil {
			rec.Func = callee
		}
		if n != nil {
			if rec.Node == nil {
				rec.Node = n
			}
			if rec.Line == 0 {
				pos := n.Pos()
				rec.Line, rec.Col = pos.Line, pos.Col
			}
		}
		env.addError(rec)
		return nil
	}
	if env.faulted() {
		return nil
	}
	for _, post := range env.after {
		post(env, name, res)
	}
	return res
}

func (env *Mace) onBinOp(n Node) any {
	b := n.(*BinOp)
	l := env.eval(b.Left)
	r := env.eval(b.Right)
	if env.faulted() {
		return nil
	}
	v, err := BinaryOp(b.Op, l, r)
	if err != nil {
		env.raiseErr(err, b)
		return nil
	}
	return v
}

func (env *Mace) onUnaryOp(n Node) any {
	u := n.(*UnaryOp)
	x := env.eval(u.Operand)
	if env.faulted() {
		return nil
	}
	v, err := unaryOpValue(u.Op, x)
	if err != nil {
		env.raiseErr(err, u)
		return nil
	}
	return v
}

func (env *Mace) onBoolOp(n Node) any {
	b := n.(*BoolOp)
	var v any
	for _, x := range b.Values {
		v = env.eval(x)
		if env.faulted() {
			return nil
		}
		if (b.Op == "and") != Truthy(v) {
			return v
		}
	}
	return v
}

func (env *Mace) onCompare(n Node) any {
	c := n.(*Compare)
	left := env.eval(c.Left)
	if env.faulted() {
		return nil
	}
	for i, op := range c.Ops {
		right := env.eval(c.Comparators[i])
		if env.faulted() {
			return nil
		}
		ok, err := compareValues(op, left, right)
		if err != nil {
			env.raiseErr(err, c)
			return nil
		}
		if !ok {
			return false
		}
		left = right
	}
	return true
}

func (env *Mace) onIfExp(n Node) any {
	x := n.(*IfExp)
	test := env.eval(x.Test)
	if env.faulted() {
		return nil
	}
	if Truthy(test) {
		return env.eval(x.Body)
	}
	return env.eval(x.Orelse)
}

func (env *Mace) onList(n Node) any {
	items := env.evalElts(n.(*ListExpr).Elts)
	if env.faulted() {
		return nil
	}
	return NewList(items...)
}

func (env *Mace) onTuple(n Node) any {
	items := env.evalElts(n.(*TupleExpr).Elts)
	if env.faulted() {
		return nil
	}
	return Tuple(items)
}

func (env *Mace) onDict(n Node) any {
	d := n.(*DictExpr)
	out := NewDict()
	for i, kn := range d.Keys {
		k := env.eval(kn)
		v := env.eval(d.Values[i])
		if env.faulted() {
			return nil
		}
		if err := out.Set(k, v); err != nil {
			env.raiseErr(err, kn)
			return nil
		}
	}
	return out
}

// onListComp binds comprehension targets in the local group.
func (env *Mace) onListComp(n Node) any {
	lc := n.(*ListComp)
	out := NewList()
	var gen func(i int)
	gen = func(i int) {
		if i == len(lc.Generators) {
			v := env.eval(lc.Elt)
			if !env.faulted() {
				out.Items = append(out.Items, v)
			}
			return
		}
		g := lc.Generators[i]
		seq := env.eval(g.Iter)
		if env.faulted() {
			return
		}
		items, err := Iterate(seq)
		if err != nil {
			env.raiseErr(err, g.Iter)
			return
		}
	next:
		for _, item := range items {
			env.assign(g.Target, item)
			for _, cond := range g.Ifs {
				c := env.eval(cond)
				if env.faulted() {
					return
				}
				if !Truthy(c) {
					continue next
				}
			}
			gen(i + 1)
			if env.faulted() {
				return
			}
		}
	}
	gen(0)
	if env.faulted() {
		return nil
	}
	return out
}
