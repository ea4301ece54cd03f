package mace

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/ugorji/go/codec"
)

func (env *Mace) registerStandardHostModules() {
	env.RegisterHostModule("json", buildJSONModule)
	env.RegisterHostModule("time", buildTimeModule)
}

func newJSONHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	h.MapType = reflect.TypeOf(map[string]any(nil))
	h.SignedInteger = true
	h.Canonical = true
	h.HTMLCharsAsIs = true
	return h
}

func buildJSONModule(env *Mace, g *Group) error {
	g.Doc = "JSON encoding of lists, dicts, groups and scalars"
	g.Set("dumps", MakeClosure("json.dumps", JSONDumpsFunction))
	g.Set("loads", MakeClosure("json.loads", JSONLoadsFunction))
	return nil
}

// toPlain converts a value into the Go shapes the codec understands.
// Groups encode as objects of their public members.
func toPlain(x any, depth int) (any, error) {
	if depth > 100 {
		return nil, newError(TypeMismatch, "value too deeply nested (circular reference?)")
	}
	switch v := x.(type) {
	case nil, *returnedNone:
		return nil, nil
	case bool, int64, float64, string:
		return v, nil
	case *List:
		return plainSlice(v.Items, depth)
	case Tuple:
		return plainSlice(v, depth)
	case *Dict:
		m := make(map[string]any, v.Len())
		for _, k := range v.keys {
			pv, err := toPlain(v.vals[k], depth+1)
			if err != nil {
				return nil, err
			}
			m[ToStr(k)] = pv
		}
		return m, nil
	case *Group:
		m := make(map[string]any)
		for _, k := range v.Members() {
			mv, _ := v.Get(k)
			if _, isCallable := mv.(Callable); isCallable {
				continue
			}
			pv, err := toPlain(mv, depth+1)
			if err != nil {
				return nil, err
			}
			m[k] = pv
		}
		return m, nil
	}
	return nil, newError(TypeMismatch, "object of type '%s' is not JSON serializable", TypeName(x))
}

func plainSlice(items []any, depth int) ([]any, error) {
	out := make([]any, len(items))
	for i, it := range items {
		pv, err := toPlain(it, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = pv
	}
	return out, nil
}

// fromPlain is the inverse of toPlain; objects become dicts with
// sorted keys.
func fromPlain(x any) any {
	switch v := x.(type) {
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = fromPlain(v[i])
		}
		return &List{Items: out}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := NewDict()
		for _, k := range keys {
			d.Set(k, fromPlain(v[k]))
		}
		return d
	case map[any]any:
		d := NewDict()
		for k, val := range v {
			d.Set(ToStr(k), fromPlain(val))
		}
		return d
	}
	return normalize(x)
}

func JSONDumpsFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	if err := onlyKeywords(name, kws, "indent"); err != nil {
		return nil, err
	}
	plain, err := toPlain(args[0], 0)
	if err != nil {
		return nil, err
	}
	h := newJSONHandle()
	if n, ok := asInt(kwArg(kws, "indent", int64(0))); ok && n > 0 {
		h.Indent = int8(min(n, 16))
	}
	var out []byte
	if err := codec.NewEncoderBytes(&out, h).Encode(plain); err != nil {
		return nil, newError(TypeMismatch, "json.dumps: %v", err)
	}
	return string(out), nil
}

func JSONLoadsFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	text, ok := args[0].(string)
	if !ok {
		return nil, newError(TypeMismatch, "json.loads() argument must be str, not %s", TypeName(args[0]))
	}
	var v any
	if err := codec.NewDecoderBytes([]byte(text), newJSONHandle()).Decode(&v); err != nil {
		return nil, newError(UserError, "json.loads: %v", err)
	}
	return fromPlain(v), nil
}

func buildTimeModule(env *Mace, g *Group) error {
	if env.sandboxed {
		return newError(ImportFailed, "the time module is not available in the sandbox")
	}
	g.Doc = "wall clock access"
	g.Set("time", MakeClosure("time.time", SysTimeFunction))
	g.Set("sleep", MakeClosure("time.sleep", SleepFunction))
	g.Set("strftime", MakeClosure("time.strftime", StrftimeFunction))
	return nil
}

func SysTimeFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 0); err != nil {
		return nil, err
	}
	return float64(time.Now().UnixNano()) / 1e9, nil
}

func SleepFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	secs, ok := asFloat(args[0])
	if !ok || secs < 0 {
		return nil, newError(UserError, "sleep length must be a non-negative number")
	}
	time.Sleep(time.Duration(secs * float64(time.Second)))
	return nil, nil
}

// StrftimeFunction formats a time given in epoch seconds (default
// now) using %-directives.
func StrftimeFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 2); err != nil {
		return nil, err
	}
	format, ok := args[0].(string)
	if !ok {
		return nil, newError(TypeMismatch, "strftime() format must be str, not %s", TypeName(args[0]))
	}
	t := time.Now()
	if len(args) == 2 && args[1] != nil {
		secs, ok := asFloat(args[1])
		if !ok {
			return nil, newError(TypeMismatch, "strftime() time must be a number")
		}
		t = time.Unix(0, int64(secs*1e9))
	}
	return strftime(format, t), nil
}

var strftimeLayouts = map[byte]string{
	'Y': "2006", 'y': "06", 'm': "01", 'd': "02", 'H': "15", 'I': "03",
	'M': "04", 'S': "05", 'p': "PM", 'b': "Jan", 'B': "January",
	'a': "Mon", 'A': "Monday", 'Z': "MST", 'z': "-0700", 'j': "002",
}

func strftime(format string, t time.Time) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		d := format[i]
		switch d {
		case '%':
			b.WriteByte('%')
		case 'f':
			b.WriteString(t.Format(".000000")[1:])
		default:
			if layout, ok := strftimeLayouts[d]; ok {
				b.WriteString(t.Format(layout))
			} else {
				b.WriteByte('%')
				b.WriteByte(d)
			}
		}
	}
	return b.String()
}
