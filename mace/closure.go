package mace

import (
	"fmt"
	"reflect"
	"runtime"
)

// Callable is anything a call expression can invoke: procedures,
// closures, error kinds and error classes.
type Callable interface {
	CallableName() string
	Call(env *Mace, args []any, kws *Dict) (any, error)
}

// HostFunction is the native calling convention for functions
// supplied by the embedding program.
type HostFunction func(env *Mace, name string, args []any, kws *Dict) (any, error)

// Closure wraps a host function so it can live in a Group and be
// called from scripts. A Closure may carry preset leading arguments
// and keywords, which is how partial application and bound methods
// are expressed.
type Closure struct {
	Name string
	Doc  string

	// MinArgs and MaxArgs bound the positional count after presets
	// are applied. MaxArgs < 0 means no upper bound.
	MinArgs int
	MaxArgs int

	fn      HostFunction
	preArgs []any
	preKws  *Dict
}

func MakeClosure(name string, fn HostFunction) *Closure {
	return &Closure{Name: name, fn: fn, MaxArgs: -1}
}

func (c *Closure) CallableName() string { return c.Name }

func (c *Closure) String() string {
	return "<closure " + c.Name + ">"
}

// Partial returns a new Closure with args appended to the preset
// positional arguments and kws overlaid on the preset keywords.
func (c *Closure) Partial(args []any, kws *Dict) *Closure {
	cp := *c
	cp.preArgs = append(append([]any{}, c.preArgs...), args...)
	if kws != nil && kws.Len() > 0 {
		if c.preKws != nil {
			cp.preKws = c.preKws.Copy()
		} else {
			cp.preKws = NewDict()
		}
		for _, k := range kws.keys {
			cp.preKws.Set(k, kws.vals[k])
		}
	}
	return &cp
}

func (c *Closure) Call(env *Mace, args []any, kws *Dict) (res any, err error) {
	if len(c.preArgs) > 0 {
		args = append(append([]any{}, c.preArgs...), args...)
	}
	if c.preKws != nil && c.preKws.Len() > 0 {
		merged := c.preKws.Copy()
		if kws != nil {
			for _, k := range kws.keys {
				merged.Set(k, kws.vals[k])
			}
		}
		kws = merged
	}
	if kws == nil {
		kws = NewDict()
	}
	if len(args) < c.MinArgs {
		return nil, newError(MissingArgument, "%s() takes at least %d arguments (%d given)",
			c.Name, c.MinArgs, len(args))
	}
	if c.MaxArgs >= 0 && len(args) > c.MaxArgs {
		return nil, newError(TooManyArguments, "%s() takes at most %d arguments (%d given)",
			c.Name, c.MaxArgs, len(args))
	}

	// protect against bad calls/bad reflection in host functions
	defer func() {
		recovered := recover()
		if recovered != nil {
			trace := make([]byte, 16384)
			nbyte := runtime.Stack(trace, false)
			VPrintf("closure '%s' panic stack trace:\n%s", c.Name, trace[:nbyte])
			res = nil
			err = &ErrorRecord{Kind: HostFault, Func: c,
				Msg: fmt.Sprintf("%s() caught panic: %v", c.Name, recovered)}
		}
	}()
	res, err = c.fn(env, c.Name, args, kws)
	if err != nil {
		rec := asRecord(err, HostFault)
		if rec.Func == nil {
			rec.Func = c
		}
		return nil, rec
	}
	return normalize(res), nil
}

var (
	maceType  = reflect.TypeOf((*Mace)(nil))
	dictType  = reflect.TypeOf((*Dict)(nil))
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// NewClosure adapts an arbitrary Go function. If the first parameter
// is *Mace the calling session is passed there. If the last parameter
// is *Dict it receives the keyword arguments; otherwise keywords are
// refused. A trailing error result becomes a HostFault (or keeps its
// kind when it is an *ErrorRecord).
func NewClosure(name string, fn any) (*Closure, error) {
	if hf, ok := fn.(HostFunction); ok {
		return MakeClosure(name, hf), nil
	}
	if hf, ok := fn.(func(*Mace, string, []any, *Dict) (any, error)); ok {
		return MakeClosure(name, hf), nil
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("NewClosure '%s': %T is not a function", name, fn)
	}
	t := v.Type()
	first, last := 0, t.NumIn()
	wantsEnv := last > 0 && t.In(0) == maceType
	if wantsEnv {
		first = 1
	}
	wantsKws := !t.IsVariadic() && last > first && t.In(last-1) == dictType
	if wantsKws {
		last--
	}
	nfixed := last - first
	c := &Closure{Name: name, MinArgs: nfixed, MaxArgs: nfixed}
	if t.IsVariadic() {
		c.MinArgs = nfixed - 1
		c.MaxArgs = -1
	}

	c.fn = func(env *Mace, name string, args []any, kws *Dict) (any, error) {
		if !wantsKws && kws.Len() > 0 {
			return nil, newError(UnexpectedKeyword, "%s() got unexpected keyword argument '%s'",
				name, ToStr(kws.keys[0]))
		}
		in := make([]reflect.Value, 0, t.NumIn())
		if wantsEnv {
			in = append(in, reflect.ValueOf(env))
		}
		for i, a := range args {
			pi := first + i
			var pt reflect.Type
			if t.IsVariadic() && pi >= t.NumIn()-1 {
				pt = t.In(t.NumIn() - 1).Elem()
			} else {
				pt = t.In(pi)
			}
			rv, err := toGoValue(a, pt)
			if err != nil {
				return nil, newError(TypeMismatch, "%s() argument %d: %v", name, i+1, err)
			}
			in = append(in, rv)
		}
		if wantsKws {
			in = append(in, reflect.ValueOf(kws))
		}
		out := v.Call(in)
		return fromGoResults(out)
	}
	return c, nil
}

// MustClosure is NewClosure for registration code that cannot fail.
func MustClosure(name string, fn any) *Closure {
	c, err := NewClosure(name, fn)
	panicOn(err)
	return c
}

func fromGoResults(out []reflect.Value) (any, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return normalize(out[0].Interface()), nil
	}
	tup := make(Tuple, len(out))
	for i := range out {
		tup[i] = normalize(out[i].Interface())
	}
	return tup, nil
}

func toGoValue(a any, pt reflect.Type) (reflect.Value, error) {
	if a == nil || a == ReturnedNone {
		switch pt.Kind() {
		case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("expected %s, got None", pt)
	}
	av := reflect.ValueOf(a)
	if av.Type().AssignableTo(pt) {
		return av, nil
	}
	switch pt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if i, ok := asInt(a); ok {
			return reflect.ValueOf(i).Convert(pt), nil
		}
		if f, ok := a.(float64); ok && f == float64(int64(f)) {
			return reflect.ValueOf(int64(f)).Convert(pt), nil
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := asFloat(a); ok {
			return reflect.ValueOf(f).Convert(pt), nil
		}
	case reflect.Bool:
		return reflect.ValueOf(Truthy(a)), nil
	case reflect.String:
		if s, ok := a.(string); ok {
			return reflect.ValueOf(s).Convert(pt), nil
		}
	case reflect.Slice:
		items, err := Iterate(a)
		if err != nil {
			break
		}
		sl := reflect.MakeSlice(pt, len(items), len(items))
		for i, it := range items {
			ev, err := toGoValue(it, pt.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			sl.Index(i).Set(ev)
		}
		return sl, nil
	}
	return reflect.Value{}, fmt.Errorf("expected %s, got %s", pt, TypeName(a))
}
