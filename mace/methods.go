package mace

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// methodFunc is a method body; recv is the bound receiver.
type methodFunc func(env *Mace, recv any, args []any, kws *Dict) (any, error)

type methodTable map[string]methodFunc

var listMethods = methodTable{
	"append": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		l := recv.(*List)
		if len(args) != 1 {
			return nil, WrongNargs
		}
		l.Items = append(l.Items, args[0])
		return nil, nil
	},
	"extend": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		l := recv.(*List)
		if len(args) != 1 {
			return nil, WrongNargs
		}
		items, err := Iterate(args[0])
		if err != nil {
			return nil, err
		}
		l.Items = append(l.Items, items...)
		return nil, nil
	},
	"insert": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		l := recv.(*List)
		if len(args) != 2 {
			return nil, WrongNargs
		}
		i, err := toIndex(args[0])
		if err != nil {
			return nil, err
		}
		n := len(l.Items)
		if i < 0 {
			i = max(0, i+n)
		}
		i = min(i, n)
		l.Items = append(l.Items, nil)
		copy(l.Items[i+1:], l.Items[i:])
		l.Items[i] = args[1]
		return nil, nil
	},
	"pop": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		l := recv.(*List)
		if len(l.Items) == 0 {
			return nil, newError(IndexOutOfRange, "pop from empty list")
		}
		i := len(l.Items) - 1
		if len(args) > 0 {
			var err error
			if i, err = toIndex(args[0]); err != nil {
				return nil, err
			}
			if i, err = normIndex(i, len(l.Items)); err != nil {
				return nil, newError(IndexOutOfRange, "pop index out of range")
			}
		}
		v := l.Items[i]
		l.Items = append(l.Items[:i], l.Items[i+1:]...)
		return v, nil
	},
	"remove": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		l := recv.(*List)
		if len(args) != 1 {
			return nil, WrongNargs
		}
		i := indexOf(l.Items, args[0])
		if i < 0 {
			return nil, newError(UserError, "list.remove(x): x not in list")
		}
		l.Items = append(l.Items[:i], l.Items[i+1:]...)
		return nil, nil
	},
	"index": seqIndex,
	"count": seqCount,
	"reverse": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		l := recv.(*List)
		for i, j := 0, len(l.Items)-1; i < j; i, j = i+1, j-1 {
			l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
		}
		return nil, nil
	},
	"sort": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		l := recv.(*List)
		sorted, err := sortValues(env, l.Items, kws)
		if err != nil {
			return nil, err
		}
		l.Items = sorted
		return nil, nil
	},
	"copy": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		return NewList(append([]any{}, recv.(*List).Items...)...), nil
	},
	"clear": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		recv.(*List).Items = []any{}
		return nil, nil
	},
}

var tupleMethods = methodTable{
	"index": seqIndex,
	"count": seqCount,
}

func seqIndex(env *Mace, recv any, args []any, kws *Dict) (any, error) {
	items, _ := Iterate(recv)
	if len(args) != 1 {
		return nil, WrongNargs
	}
	i := indexOf(items, args[0])
	if i < 0 {
		return nil, newError(UserError, "%s is not in %s", Repr(args[0]), TypeName(recv))
	}
	return int64(i), nil
}

func seqCount(env *Mace, recv any, args []any, kws *Dict) (any, error) {
	items, _ := Iterate(recv)
	if len(args) != 1 {
		return nil, WrongNargs
	}
	n := 0
	for _, x := range items {
		if Equal(x, args[0]) {
			n++
		}
	}
	return int64(n), nil
}

var dictMethods = methodTable{
	"keys": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		return NewList(recv.(*Dict).Keys()...), nil
	},
	"values": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		d := recv.(*Dict)
		out := NewList()
		for _, k := range d.keys {
			out.Items = append(out.Items, d.vals[k])
		}
		return out, nil
	},
	"items": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		d := recv.(*Dict)
		out := NewList()
		for _, k := range d.keys {
			out.Items = append(out.Items, Tuple{k, d.vals[k]})
		}
		return out, nil
	},
	"get": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, WrongNargs
		}
		if v, ok := recv.(*Dict).Get(args[0]); ok {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, nil
	},
	"pop": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, WrongNargs
		}
		d := recv.(*Dict)
		if v, ok := d.Get(args[0]); ok {
			d.Delete(args[0])
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, newError(KeyNotFound, "%s", Repr(args[0]))
	},
	"setdefault": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, WrongNargs
		}
		d := recv.(*Dict)
		if v, ok := d.Get(args[0]); ok {
			return v, nil
		}
		var dflt any
		if len(args) == 2 {
			dflt = args[1]
		}
		return dflt, d.Set(args[0], dflt)
	},
	"update": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		d := recv.(*Dict)
		for _, a := range args {
			other, ok := a.(*Dict)
			if !ok {
				return nil, newError(TypeMismatch, "dict.update() needs a dict, got %s", TypeName(a))
			}
			for _, k := range other.keys {
				d.Set(k, other.vals[k])
			}
		}
		for _, k := range kws.keys {
			d.Set(k, kws.vals[k])
		}
		return nil, nil
	},
	"copy": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		return recv.(*Dict).Copy(), nil
	},
	"clear": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		d := recv.(*Dict)
		d.keys = nil
		d.vals = make(map[any]any)
		return nil, nil
	},
}

func strArg(args []any, i int, dflt string) (string, error) {
	if i >= len(args) || args[i] == nil {
		return dflt, nil
	}
	s, ok := args[i].(string)
	if !ok {
		return "", newError(TypeMismatch, "expected a string argument, got %s", TypeName(args[i]))
	}
	return s, nil
}

func strFunc(f func(string) string) methodFunc {
	return func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		return f(recv.(string)), nil
	}
}

func strTrim(trim func(string, string) string, space func(string) string) methodFunc {
	return func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		s := recv.(string)
		if len(args) == 0 || args[0] == nil {
			return space(s), nil
		}
		cut, err := strArg(args, 0, "")
		if err != nil {
			return nil, err
		}
		return trim(s, cut), nil
	}
}

func strPred(f func(rune) bool) methodFunc {
	return func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		s := recv.(string)
		if s == "" {
			return false, nil
		}
		for _, r := range s {
			if !f(r) {
				return false, nil
			}
		}
		return true, nil
	}
}

var stringMethods = methodTable{
	"upper":   strFunc(strings.ToUpper),
	"lower":   strFunc(strings.ToLower),
	"strip":   strTrim(strings.Trim, strings.TrimSpace),
	"lstrip":  strTrim(strings.TrimLeft, func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }),
	"rstrip":  strTrim(strings.TrimRight, func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }),
	"isdigit": strPred(unicode.IsDigit),
	"isalpha": strPred(unicode.IsLetter),
	"isspace": strPred(unicode.IsSpace),
	"title": strFunc(func(s string) string {
		prev := ' '
		return strings.Map(func(r rune) rune {
			out := unicode.ToUpper(r)
			if unicode.IsLetter(prev) {
				out = unicode.ToLower(r)
			}
			prev = r
			return out
		}, s)
	}),
	"capitalize": strFunc(func(s string) string {
		if s == "" {
			return s
		}
		r := []rune(strings.ToLower(s))
		r[0] = unicode.ToUpper(r[0])
		return string(r)
	}),
	"split": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		s := recv.(string)
		sep, err := strArg(args, 0, "")
		if err != nil {
			return nil, err
		}
		var parts []string
		if sep == "" {
			parts = strings.Fields(s)
		} else {
			parts = strings.Split(s, sep)
		}
		out := NewList()
		for _, p := range parts {
			out.Items = append(out.Items, p)
		}
		return out, nil
	},
	"join": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		if len(args) != 1 {
			return nil, WrongNargs
		}
		items, err := Iterate(args[0])
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, newError(TypeMismatch, "sequence item %d: expected str, got %s", i, TypeName(it))
			}
			parts[i] = s
		}
		return strings.Join(parts, recv.(string)), nil
	},
	"replace": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		if len(args) != 2 {
			return nil, WrongNargs
		}
		old, err := strArg(args, 0, "")
		if err != nil {
			return nil, err
		}
		repl, err := strArg(args, 1, "")
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(recv.(string), old, repl), nil
	},
	"startswith": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		p, err := strArg(args, 0, "")
		return strings.HasPrefix(recv.(string), p), err
	},
	"endswith": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		p, err := strArg(args, 0, "")
		return strings.HasSuffix(recv.(string), p), err
	},
	"find": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		p, err := strArg(args, 0, "")
		if err != nil {
			return nil, err
		}
		i := strings.Index(recv.(string), p)
		if i < 0 {
			return int64(-1), nil
		}
		return int64(len([]rune(recv.(string)[:i]))), nil
	},
	"count": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		p, err := strArg(args, 0, "")
		return int64(strings.Count(recv.(string), p)), err
	},
	"format": func(env *Mace, recv any, args []any, kws *Dict) (any, error) {
		return formatBraces(recv.(string), args, kws)
	},
}

// formatBraces handles "{}" , "{0}" and "{name}" replacement fields.
func formatBraces(s string, args []any, kws *Dict) (any, error) {
	var b strings.Builder
	next := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '{' && i+1 < len(s) && s[i+1] == '{' {
			b.WriteByte('{')
			i++
			continue
		}
		if c == '}' && i+1 < len(s) && s[i+1] == '}' {
			b.WriteByte('}')
			i++
			continue
		}
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			return nil, newError(UserError, "single '{' encountered in format string")
		}
		field := s[i+1 : i+end]
		i += end
		var v any
		switch {
		case field == "":
			if next >= len(args) {
				return nil, newError(IndexOutOfRange, "format index %d out of range", next)
			}
			v = args[next]
			next++
		case field[0] >= '0' && field[0] <= '9':
			k, err := strconv.Atoi(field)
			if err != nil || k >= len(args) {
				return nil, newError(IndexOutOfRange, "format index %s out of range", field)
			}
			v = args[k]
		default:
			var ok bool
			if v, ok = kws.Get(field); !ok {
				return nil, newError(KeyNotFound, "%s", Repr(field))
			}
		}
		b.WriteString(ToStr(v))
	}
	return b.String(), nil
}

// sortValues sorts a copy of items, honoring key= and reverse=.
func sortValues(env *Mace, items []any, kws *Dict) ([]any, error) {
	out := append([]any{}, items...)
	keys := out
	if kws != nil {
		if keyfn, ok := kws.Get("key"); ok && keyfn != nil {
			keys = make([]any, len(out))
			for i, x := range out {
				k, err := env.Apply(keyfn, []any{x}, nil)
				if err != nil {
					return nil, err
				}
				keys[i] = k
			}
		}
	}
	reverse := false
	if kws != nil {
		if r, ok := kws.Get("reverse"); ok {
			reverse = Truthy(r)
		}
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	sort.SliceStable(idx, func(a, b int) bool {
		c, err := order(keys[idx[a]], keys[idx[b]])
		if err != nil && sortErr == nil {
			sortErr = err
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	sorted := make([]any, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted, nil
}

// methodTables is filled in init; the tables reach the evaluator
// through sort's key= callback.
var methodTables map[string]methodTable

func init() {
	methodTables = map[string]methodTable{
		"list":  listMethods,
		"tuple": tupleMethods,
		"dict":  dictMethods,
		"str":   stringMethods,
	}
}

// boundMethod returns a Closure for recv.name when recv is a list,
// tuple, dict or string with such a method.
func boundMethod(recv any, name string) (*Closure, bool) {
	table, ok := methodTables[TypeName(recv)]
	if !ok {
		return nil, false
	}
	m, ok := table[name]
	if !ok {
		return nil, false
	}
	c := MakeClosure(TypeName(recv)+"."+name, func(env *Mace, _ string, args []any, kws *Dict) (any, error) {
		return m(env, recv, args, kws)
	})
	return c, true
}
