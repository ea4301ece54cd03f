package mace

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Values handled by the evaluator are plain Go values:
//
//	nil           None
//	bool          True / False
//	int64         integers
//	float64       floats
//	string        strings
//	*List, Tuple, *Dict, *SliceValue
//	*Group, *Procedure, *Closure, *ErrorRecord
//
// Host functions may hand back other Go types; normalize() folds the
// common numeric and slice types into the set above.

// MemberGetter is implemented by values that expose named members
// to attribute access (g.x).
type MemberGetter interface {
	GetMember(name string) (any, bool)
}

// MemberSetter is implemented by values that accept g.x = v.
type MemberSetter interface {
	SetMember(name string, val any) error
}

// List is the mutable sequence.
type List struct {
	Items []any
}

func NewList(items ...any) *List {
	if items == nil {
		items = []any{}
	}
	return &List{Items: items}
}

// Tuple is the immutable sequence.
type Tuple []any

// SliceValue is produced by a[lo:hi:step] before it is applied.
type SliceValue struct {
	Lo, Hi, Step any
}

func (s *SliceValue) String() string {
	return fmt.Sprintf("slice(%s, %s, %s)", Repr(s.Lo), Repr(s.Hi), Repr(s.Step))
}

// returnedNone marks an explicit bare `return` inside a procedure,
// distinct from falling off the end of the body.
type returnedNone struct{}

var ReturnedNone = &returnedNone{}

func (r *returnedNone) String() string { return "None" }

// Dict is an insertion-ordered mapping with hashable scalar keys.
type Dict struct {
	keys []any
	vals map[any]any
}

func NewDict() *Dict {
	return &Dict{vals: make(map[any]any)}
}

func hashable(k any) (any, error) {
	switch x := normalize(k).(type) {
	case nil, bool, int64, string:
		return x, nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), nil
		}
		return x, nil
	}
	return nil, newError(TypeMismatch, "unhashable type: '%s'", TypeName(k))
}

func (d *Dict) Get(k any) (any, bool) {
	hk, err := hashable(k)
	if err != nil {
		return nil, false
	}
	v, ok := d.vals[hk]
	return v, ok
}

func (d *Dict) Set(k, v any) error {
	hk, err := hashable(k)
	if err != nil {
		return err
	}
	if _, already := d.vals[hk]; !already {
		d.keys = append(d.keys, hk)
	}
	d.vals[hk] = v
	return nil
}

func (d *Dict) Delete(k any) bool {
	hk, err := hashable(k)
	if err != nil {
		return false
	}
	if _, ok := d.vals[hk]; !ok {
		return false
	}
	delete(d.vals, hk)
	for i, x := range d.keys {
		if x == hk {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return true
}

func (d *Dict) Len() int { return len(d.keys) }

func (d *Dict) Keys() []any {
	out := make([]any, len(d.keys))
	copy(out, d.keys)
	return out
}

func (d *Dict) Copy() *Dict {
	out := NewDict()
	for _, k := range d.keys {
		out.keys = append(out.keys, k)
		out.vals[k] = d.vals[k]
	}
	return out
}

// StrKeys returns the keys as strings, for keyword-argument dicts.
func (d *Dict) StrKeys() []string {
	out := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		out = append(out, ToStr(k))
	}
	return out
}

// normalize folds host Go values into the evaluator's value set.
func normalize(x any) any {
	switch v := x.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case []any:
		return &List{Items: v}
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return &List{Items: out}
	case []float64:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return &List{Items: out}
	case []int64:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return &List{Items: out}
	case map[string]any:
		d := NewDict()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			d.Set(k, normalize(v[k]))
		}
		return d
	}
	return x
}

func TypeName(x any) string {
	switch x.(type) {
	case nil, *returnedNone:
		return "NoneType"
	case bool:
		return "bool"
	case int64, int:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *List:
		return "list"
	case Tuple:
		return "tuple"
	case *Dict:
		return "dict"
	case *SliceValue:
		return "slice"
	case *Group:
		return "group"
	case *Procedure:
		return "procedure"
	case *Closure:
		return "closure"
	case *ErrorRecord:
		return "error"
	case ErrorKind, *ErrorClass:
		return "errorclass"
	}
	return fmt.Sprintf("%T", x)
}

func Truthy(x any) bool {
	switch v := x.(type) {
	case nil, *returnedNone:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case *List:
		return len(v.Items) > 0
	case Tuple:
		return len(v) > 0
	case *Dict:
		return v.Len() > 0
	}
	return true
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// ToStr is the str() conversion.
func ToStr(x any) string {
	switch v := x.(type) {
	case string:
		return v
	}
	return Repr(x)
}

// Repr is the repr() conversion.
func Repr(x any) string {
	switch v := x.(type) {
	case nil, *returnedNone:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return formatFloat(v)
	case string:
		return quoteString(v)
	case *List:
		return "[" + reprJoin(v.Items) + "]"
	case Tuple:
		if len(v) == 1 {
			return "(" + Repr(v[0]) + ",)"
		}
		return "(" + reprJoin(v) + ")"
	case *Dict:
		parts := make([]string, 0, v.Len())
		for _, k := range v.keys {
			parts = append(parts, Repr(k)+": "+Repr(v.vals[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	return fmt.Sprintf("%v", x)
}

func reprJoin(items []any) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = Repr(it)
	}
	return strings.Join(parts, ", ")
}

func quoteString(s string) string {
	q := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		q = `"`
	}
	var b strings.Builder
	b.WriteString(q)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if string(r) == q {
				b.WriteString(`\` + q)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteString(q)
	return b.String()
}

// Iterate returns the elements a for-loop visits.
func Iterate(x any) ([]any, error) {
	switch v := x.(type) {
	case *List:
		out := make([]any, len(v.Items))
		copy(out, v.Items)
		return out, nil
	case Tuple:
		return []any(v), nil
	case string:
		out := make([]any, 0, len(v))
		for _, r := range v {
			out = append(out, string(r))
		}
		return out, nil
	case *Dict:
		return v.Keys(), nil
	case *Group:
		names := v.Members()
		out := make([]any, len(names))
		for i := range names {
			out[i] = names[i]
		}
		return out, nil
	}
	return nil, newError(TypeMismatch, "'%s' object is not iterable", TypeName(x))
}

func length(x any) (int, error) {
	switch v := x.(type) {
	case *List:
		return len(v.Items), nil
	case Tuple:
		return len(v), nil
	case string:
		return len([]rune(v)), nil
	case *Dict:
		return v.Len(), nil
	case *Group:
		return v.Len(), nil
	}
	return 0, newError(TypeMismatch, "object of type '%s' has no len()", TypeName(x))
}

func toIndex(x any) (int, error) {
	switch v := x.(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, newError(TypeMismatch, "indices must be integers, not %s", TypeName(x))
}

func normIndex(i, n int) (int, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, newError(IndexOutOfRange, "index out of range")
	}
	return i, nil
}

// sliceBounds resolves a slice against a sequence of length n,
// returning the selected indices.
func sliceBounds(s *SliceValue, n int) ([]int, error) {
	step := 1
	if s.Step != nil {
		st, err := toIndex(s.Step)
		if err != nil {
			return nil, err
		}
		if st == 0 {
			return nil, newError(UserError, "slice step cannot be zero")
		}
		step = st
	}
	clamp := func(x any, dflt int) (int, error) {
		if x == nil {
			return dflt, nil
		}
		i, err := toIndex(x)
		if err != nil {
			return 0, err
		}
		if i < 0 {
			i += n
		}
		if step > 0 {
			i = max(0, min(i, n))
		} else {
			i = max(-1, min(i, n-1))
		}
		return i, nil
	}
	var lo, hi int
	var err error
	if step > 0 {
		if lo, err = clamp(s.Lo, 0); err != nil {
			return nil, err
		}
		if hi, err = clamp(s.Hi, n); err != nil {
			return nil, err
		}
	} else {
		if lo, err = clamp(s.Lo, n-1); err != nil {
			return nil, err
		}
		if hi, err = clamp(s.Hi, -1); err != nil {
			return nil, err
		}
	}
	var idx []int
	for i := lo; (step > 0 && i < hi) || (step < 0 && i > hi); i += step {
		idx = append(idx, i)
	}
	return idx, nil
}

func pick(items []any, idx []int) []any {
	out := make([]any, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

// GetItem implements x[key].
func GetItem(x any, key any) (any, error) {
	switch v := x.(type) {
	case *List:
		if s, ok := key.(*SliceValue); ok {
			idx, err := sliceBounds(s, len(v.Items))
			if err != nil {
				return nil, err
			}
			return &List{Items: pick(v.Items, idx)}, nil
		}
		i, err := toIndex(key)
		if err != nil {
			return nil, err
		}
		if i, err = normIndex(i, len(v.Items)); err != nil {
			return nil, newError(IndexOutOfRange, "list index out of range")
		}
		return v.Items[i], nil
	case Tuple:
		if s, ok := key.(*SliceValue); ok {
			idx, err := sliceBounds(s, len(v))
			if err != nil {
				return nil, err
			}
			return Tuple(pick(v, idx)), nil
		}
		i, err := toIndex(key)
		if err != nil {
			return nil, err
		}
		if i, err = normIndex(i, len(v)); err != nil {
			return nil, newError(IndexOutOfRange, "tuple index out of range")
		}
		return v[i], nil
	case string:
		runes := []rune(v)
		if s, ok := key.(*SliceValue); ok {
			idx, err := sliceBounds(s, len(runes))
			if err != nil {
				return nil, err
			}
			out := make([]rune, len(idx))
			for i, j := range idx {
				out[i] = runes[j]
			}
			return string(out), nil
		}
		i, err := toIndex(key)
		if err != nil {
			return nil, err
		}
		if i, err = normIndex(i, len(runes)); err != nil {
			return nil, newError(IndexOutOfRange, "string index out of range")
		}
		return string(runes[i]), nil
	case *Dict:
		val, ok := v.Get(key)
		if !ok {
			return nil, newError(KeyNotFound, "%s", Repr(key))
		}
		return val, nil
	case *Group:
		name, isStr := key.(string)
		if !isStr {
			return nil, newError(TypeMismatch, "group members are indexed by name")
		}
		val, ok := v.Get(name)
		if !ok {
			return nil, newError(UnknownMember, "%s does not have member '%s'", v, name)
		}
		return val, nil
	}
	return nil, newError(TypeMismatch, "'%s' object is not subscriptable", TypeName(x))
}

// SetItem implements x[key] = val, using the container's own assignment.
func SetItem(x any, key any, val any) error {
	switch v := x.(type) {
	case *List:
		if s, ok := key.(*SliceValue); ok {
			repl, err := Iterate(val)
			if err != nil {
				return err
			}
			if s.Step != nil {
				idx, err := sliceBounds(s, len(v.Items))
				if err != nil {
					return err
				}
				if len(idx) != len(repl) {
					return newError(UnpackMismatch, "attempt to assign sequence of size %d to extended slice of size %d", len(repl), len(idx))
				}
				for i, j := range idx {
					v.Items[j] = repl[i]
				}
				return nil
			}
			lo, hi, err := spanBounds(s, len(v.Items))
			if err != nil {
				return err
			}
			return spliceList(v, lo, hi, repl)
		}
		i, err := toIndex(key)
		if err != nil {
			return err
		}
		if i, err = normIndex(i, len(v.Items)); err != nil {
			return newError(IndexOutOfRange, "list assignment index out of range")
		}
		v.Items[i] = val
		return nil
	case *Dict:
		return v.Set(key, val)
	case *Group:
		name, isStr := key.(string)
		if !isStr || !isValidName(name) {
			return newError(InvalidIdentifier, "invalid member name %s", Repr(key))
		}
		v.Set(name, val)
		return nil
	}
	return newError(TypeMismatch, "'%s' object does not support item assignment", TypeName(x))
}

// spanBounds resolves a step-less slice to the half-open range it replaces.
func spanBounds(s *SliceValue, n int) (lo, hi int, err error) {
	bound := func(x any, dflt int) (int, error) {
		if x == nil {
			return dflt, nil
		}
		i, err := toIndex(x)
		if err != nil {
			return 0, err
		}
		if i < 0 {
			i += n
		}
		return max(0, min(i, n)), nil
	}
	if lo, err = bound(s.Lo, 0); err != nil {
		return
	}
	if hi, err = bound(s.Hi, n); err != nil {
		return
	}
	hi = max(hi, lo)
	return
}

func spliceList(l *List, lo, hi int, repl []any) error {
	out := make([]any, 0, len(l.Items)-(hi-lo)+len(repl))
	out = append(out, l.Items[:lo]...)
	out = append(out, repl...)
	out = append(out, l.Items[hi:]...)
	l.Items = out
	return nil
}

// DelItem implements del x[key].
func DelItem(x any, key any) error {
	switch v := x.(type) {
	case *List:
		i, err := toIndex(key)
		if err != nil {
			return err
		}
		if i, err = normIndex(i, len(v.Items)); err != nil {
			return newError(IndexOutOfRange, "list assignment index out of range")
		}
		v.Items = append(v.Items[:i], v.Items[i+1:]...)
		return nil
	case *Dict:
		if !v.Delete(key) {
			return newError(KeyNotFound, "%s", Repr(key))
		}
		return nil
	case *Group:
		if !v.Delete(ToStr(key)) {
			return newError(UnknownMember, "%s does not have member '%s'", v, ToStr(key))
		}
		return nil
	}
	return newError(TypeMismatch, "'%s' object does not support item deletion", TypeName(x))
}
