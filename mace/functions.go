package mace

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shurcooL/go-goon"
)

// MergeFuncMap combines function tables, refusing duplicate names.
func MergeFuncMap(funcs ...map[string]HostFunction) map[string]HostFunction {
	n := make(map[string]HostFunction)

	for _, f := range funcs {
		for k, v := range f {
			// disallow dups, avoiding possible security implications and confusion generally.
			if _, dup := n[k]; dup {
				panic(fmt.Sprintf(" duplicate function '%s' not allowed", k))
			}
			n[k] = v
		}
	}
	return n
}

// SandboxSafeFunctions returns all functions that are safe to run in a sandbox
func SandboxSafeFunctions() map[string]HostFunction {
	return MergeFuncMap(
		CoreFunctions(),
		ConversionFunctions(),
		ReflectionFunctions(),
	)
}

// AllBuiltinFunctions returns all built in functions
func AllBuiltinFunctions() map[string]HostFunction {
	return MergeFuncMap(
		CoreFunctions(),
		ConversionFunctions(),
		ReflectionFunctions(),
		SystemFunctions(),
	)
}

func CoreFunctions() map[string]HostFunction {
	return map[string]HostFunction{
		"print":     PrintFunction,
		"len":       LenFunction,
		"range":     RangeFunction,
		"abs":       AbsFunction,
		"min":       MinMaxFunction(-1),
		"max":       MinMaxFunction(1),
		"sum":       SumFunction,
		"round":     RoundFunction,
		"sorted":    SortedFunction,
		"reversed":  ReversedFunction,
		"enumerate": EnumerateFunction,
		"zip":       ZipFunction,
		"eval":      EvalFunction,
		"checksum":  ChecksumFunction,
		"hash":      HashFunction,
	}
}

func ConversionFunctions() map[string]HostFunction {
	return map[string]HostFunction{
		"str":   StrFunction,
		"repr":  ReprFunction,
		"int":   IntFunction,
		"float": FloatFunction,
		"bool":  BoolFunction,
		"list":  ListFunction,
		"tuple": TupleFunction,
		"dict":  DictFunction,
	}
}

func ReflectionFunctions() map[string]HostFunction {
	return map[string]HostFunction{
		"type":        TypeFunction,
		"group":       GroupFunction,
		"dir":         DirFunction,
		"which":       WhichFunction,
		"exists":      ExistsFunction,
		"isgroup":     IsGroupFunction,
		"subgroups":   SubgroupsFunction,
		"group_items": GroupItemsFunction,
		"getattr":     GetAttrFunction,
		"setattr":     SetAttrFunction,
		"hasattr":     HasAttrFunction,
		"help":        HelpFunction,
		"show":        ShowFunction,
		"dump":        GoonDumpFunction,
	}
}

// wantArgs checks a positional count; hi < 0 means unbounded.
func wantArgs(name string, args []any, lo, hi int) error {
	if len(args) < lo {
		return newError(MissingArgument, "%s() takes at least %d arguments (%d given)", name, lo, len(args))
	}
	if hi >= 0 && len(args) > hi {
		return newError(TooManyArguments, "%s() takes at most %d arguments (%d given)", name, hi, len(args))
	}
	return nil
}

// kwArg returns the keyword argument key, or dflt.
func kwArg(kws *Dict, key string, dflt any) any {
	if kws == nil {
		return dflt
	}
	if v, ok := kws.Get(key); ok {
		return v
	}
	return dflt
}

func noKeywords(name string, kws *Dict) error {
	if kws != nil && kws.Len() > 0 {
		return newError(UnexpectedKeyword, "%s() got unexpected keyword argument '%s'", name, ToStr(kws.keys[0]))
	}
	return nil
}

// onlyKeywords refuses any keyword not in allowed.
func onlyKeywords(name string, kws *Dict, allowed ...string) error {
	for _, k := range kws.StrKeys() {
		if !containsStr(allowed, k) {
			return newError(UnexpectedKeyword, "%s() got unexpected keyword argument '%s'", name, k)
		}
	}
	return nil
}

func PrintFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := onlyKeywords(name, kws, "sep", "end"); err != nil {
		return nil, err
	}
	sep := ToStr(kwArg(kws, "sep", " "))
	end := ToStr(kwArg(kws, "end", "\n"))
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = ToStr(a)
	}
	env.printf("%s%s", strings.Join(parts, sep), end)
	return nil, nil
}

func LenFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	n, err := length(args[0])
	return int64(n), err
}

func RangeFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 3); err != nil {
		return nil, err
	}
	if err := noKeywords(name, kws); err != nil {
		return nil, err
	}
	var ints [3]int64
	for i, a := range args {
		v, ok := asInt(a)
		if !ok {
			return nil, newError(TypeMismatch, "range() arguments must be integers, not %s", TypeName(a))
		}
		ints[i] = v
	}
	start, stop, step := int64(0), ints[0], int64(1)
	if len(args) > 1 {
		start, stop = ints[0], ints[1]
	}
	if len(args) == 3 {
		step = ints[2]
	}
	if step == 0 {
		return nil, newError(UserError, "range() step must not be zero")
	}
	out := NewList()
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out.Items = append(out.Items, i)
	}
	return out, nil
}

func AbsFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case int64:
		if x < 0 {
			return -x, nil
		}
		return x, nil
	case float64:
		return math.Abs(x), nil
	case bool:
		i, _ := asInt(x)
		return i, nil
	}
	return nil, newError(TypeMismatch, "bad operand type for abs(): '%s'", TypeName(args[0]))
}

// MinMaxFunction builds min (sign -1) and max (sign 1).
func MinMaxFunction(sign int) HostFunction {
	return func(env *Mace, name string, args []any, kws *Dict) (any, error) {
		if err := wantArgs(name, args, 1, -1); err != nil {
			return nil, err
		}
		if err := onlyKeywords(name, kws, "key"); err != nil {
			return nil, err
		}
		items := args
		if len(args) == 1 {
			var err error
			if items, err = Iterate(args[0]); err != nil {
				return nil, err
			}
		}
		if len(items) == 0 {
			return nil, newError(UserError, "%s() arg is an empty sequence", name)
		}
		key := kwArg(kws, "key", nil)
		keyOf := func(x any) (any, error) {
			if key == nil {
				return x, nil
			}
			return env.Apply(key, []any{x}, nil)
		}
		best := items[0]
		bestKey, err := keyOf(best)
		if err != nil {
			return nil, err
		}
		for _, x := range items[1:] {
			k, err := keyOf(x)
			if err != nil {
				return nil, err
			}
			c, err := order(k, bestKey)
			if err != nil {
				return nil, err
			}
			if c*sign > 0 {
				best, bestKey = x, k
			}
		}
		return best, nil
	}
}

func SumFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 2); err != nil {
		return nil, err
	}
	items, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}
	var total any = int64(0)
	if len(args) == 2 {
		total = args[1]
	}
	for _, x := range items {
		if total, err = BinaryOp("+", total, x); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// RoundFunction rounds half to even; with a digit count the result
// stays a float.
func RoundFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 2); err != nil {
		return nil, err
	}
	if i, ok := args[0].(int64); ok {
		return i, nil
	}
	f, ok := asFloat(args[0])
	if !ok {
		return nil, newError(TypeMismatch, "type %s doesn't define round()", TypeName(args[0]))
	}
	if len(args) == 1 || args[1] == nil {
		return int64(math.RoundToEven(f)), nil
	}
	nd, ok := asInt(args[1])
	if !ok {
		return nil, newError(TypeMismatch, "round() digits must be an integer")
	}
	scale := math.Pow(10, float64(nd))
	return math.RoundToEven(f*scale) / scale, nil
}

func SortedFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	if err := onlyKeywords(name, kws, "key", "reverse"); err != nil {
		return nil, err
	}
	items, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}
	sorted, err := sortValues(env, items, kws)
	if err != nil {
		return nil, err
	}
	return &List{Items: sorted}, nil
}

func ReversedFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	items, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, x := range items {
		out[len(items)-1-i] = x
	}
	return &List{Items: out}, nil
}

func EnumerateFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 2); err != nil {
		return nil, err
	}
	items, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}
	start := int64(0)
	if len(args) == 2 {
		start, _ = asInt(args[1])
	} else if s, ok := asInt(kwArg(kws, "start", int64(0))); ok {
		start = s
	}
	out := NewList()
	for i, x := range items {
		out.Items = append(out.Items, Tuple{start + int64(i), x})
	}
	return out, nil
}

func ZipFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	seqs := make([][]any, len(args))
	n := -1
	for i, a := range args {
		items, err := Iterate(a)
		if err != nil {
			return nil, err
		}
		seqs[i] = items
		if n < 0 || len(items) < n {
			n = len(items)
		}
	}
	out := NewList()
	for j := 0; j < n; j++ {
		tup := make(Tuple, len(seqs))
		for i := range seqs {
			tup[i] = seqs[i][j]
		}
		out.Items = append(out.Items, tup)
	}
	return out, nil
}

// EvalFunction evaluates one expression in the current frame.
// Failures are recorded against the running unit.
func EvalFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	text, ok := args[0].(string)
	if !ok {
		return nil, newError(TypeMismatch, "eval() arg must be a string, not %s", TypeName(args[0]))
	}
	node, err := ParseExpression(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	return env.eval(node), nil
}

func ChecksumFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	return Checksum([]byte(ToStr(args[0]))), nil
}

// HashFunction hashes the repr of its argument, so equal scalars and
// equal containers hash alike.
func HashFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	return int64(Blake2bUint64([]byte(Repr(args[0])))), nil
}

func StrFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return "", nil
	}
	return ToStr(args[0]), nil
}

func ReprFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	return Repr(args[0]), nil
}

func IntFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 2); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return int64(0), nil
	}
	switch x := args[0].(type) {
	case int64:
		return x, nil
	case bool:
		i, _ := asInt(x)
		return i, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, newError(UserError, "cannot convert float %s to integer", formatFloat(x))
		}
		return int64(x), nil
	case string:
		base := 10
		if len(args) == 2 {
			b, ok := asInt(args[1])
			if !ok {
				return nil, newError(TypeMismatch, "int() base must be an integer")
			}
			base = int(b)
		}
		s := strings.ReplaceAll(strings.TrimSpace(x), "_", "")
		i, err := strconv.ParseInt(s, base, 64)
		if err != nil {
			return nil, newError(UserError, "invalid literal for int() with base %d: %s", base, Repr(x))
		}
		return i, nil
	}
	return nil, newError(TypeMismatch, "int() argument must be a string or a number, not '%s'", TypeName(args[0]))
}

func FloatFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return 0.0, nil
	}
	if s, ok := args[0].(string); ok {
		t := strings.ToLower(strings.TrimSpace(s))
		switch t {
		case "inf", "+inf", "infinity":
			return math.Inf(1), nil
		case "-inf", "-infinity":
			return math.Inf(-1), nil
		case "nan":
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, newError(UserError, "could not convert string to float: %s", Repr(s))
		}
		return f, nil
	}
	if f, ok := asFloat(args[0]); ok {
		return f, nil
	}
	return nil, newError(TypeMismatch, "float() argument must be a string or a number, not '%s'", TypeName(args[0]))
}

func BoolFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return false, nil
	}
	return Truthy(args[0]), nil
}

func ListFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return NewList(), nil
	}
	items, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}
	return &List{Items: items}, nil
}

func TupleFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return Tuple{}, nil
	}
	items, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}
	return Tuple(append([]any{}, items...)), nil
}

// DictFunction accepts a dict, a group or a sequence of pairs, then
// overlays any keywords.
func DictFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	out := NewDict()
	if len(args) == 1 {
		switch src := args[0].(type) {
		case *Dict:
			out = src.Copy()
		case *Group:
			for _, k := range src.Members() {
				v, _ := src.Get(k)
				out.Set(k, v)
			}
		default:
			items, err := Iterate(src)
			if err != nil {
				return nil, err
			}
			for i, it := range items {
				pair, err := Iterate(it)
				if err != nil || len(pair) != 2 {
					return nil, newError(UserError, "dictionary update sequence element #%d has wrong length", i)
				}
				if err := out.Set(pair[0], pair[1]); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, k := range kws.keys {
		out.Set(k, kws.vals[k])
	}
	return out, nil
}

func TypeFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	return TypeName(args[0]), nil
}

// GroupFunction makes a detached group: group("name", a=1, b=2).
func GroupFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	gname := ""
	if len(args) == 1 {
		gname = ToStr(args[0])
	}
	return env.symtable.CreateGroup(gname, kws), nil
}

func DirFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	var names []string
	if len(args) == 0 {
		names = env.symtable.LocalGroup().Members()
	} else {
		switch x := args[0].(type) {
		case *Group:
			names = x.Members()
		default:
			if tbl, ok := methodTables[TypeName(x)]; ok {
				names = sortedKeys(tbl)
			}
		}
	}
	return normalize(append([]string{}, names...)), nil
}

func WhichFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	return env.symtable.Which(ToStr(args[0]))
}

func ExistsFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	return env.symtable.HasSymbol(ToStr(args[0])), nil
}

func IsGroupFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, -1); err != nil {
		return nil, err
	}
	members := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		members = append(members, ToStr(a))
	}
	return IsGroup(args[0], members...), nil
}

func groupArg(name string, x any) (*Group, error) {
	g, ok := x.(*Group)
	if !ok {
		return nil, newError(TypeMismatch, "%s() argument must be a group, not %s", name, TypeName(x))
	}
	return g, nil
}

func SubgroupsFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	g, err := groupArg(name, args[0])
	if err != nil {
		return nil, err
	}
	return normalize(append([]string{}, g.Subgroups()...)), nil
}

func GroupItemsFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	g, err := groupArg(name, args[0])
	if err != nil {
		return nil, err
	}
	out := NewList()
	for _, k := range g.Members() {
		v, _ := g.Get(k)
		out.Items = append(out.Items, Tuple{k, v})
	}
	return out, nil
}

func checkAttrName(attr string) error {
	if ForbiddenAttributes[attr] {
		return newError(ForbiddenAttribute, "no access to attribute '%s'", attr)
	}
	return nil
}

func GetAttrFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 2, 3); err != nil {
		return nil, err
	}
	attr := ToStr(args[1])
	if err := checkAttrName(attr); err != nil {
		return nil, err
	}
	if v, ok := memberOf(args[0], attr); ok {
		return v, nil
	}
	if m, ok := boundMethod(args[0], attr); ok {
		return m, nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return nil, newError(UnknownMember, "'%s' object has no attribute '%s'", TypeName(args[0]), attr)
}

func SetAttrFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 3, 3); err != nil {
		return nil, err
	}
	attr := ToStr(args[1])
	if err := checkAttrName(attr); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case *Group:
		_, err := env.symtable.SetSymbol(attr, args[2], x)
		return nil, err
	case MemberSetter:
		return nil, x.SetMember(attr, args[2])
	}
	return nil, newError(UnknownMember, "'%s' object attributes are read-only", TypeName(args[0]))
}

func HasAttrFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 2, 2); err != nil {
		return nil, err
	}
	attr := ToStr(args[1])
	if ForbiddenAttributes[attr] {
		return false, nil
	}
	if _, ok := memberOf(args[0], attr); ok {
		return true, nil
	}
	_, ok := boundMethod(args[0], attr)
	return ok, nil
}

func HelpFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if len(args) == 0 {
		env.printf("builtins: %s\n", strings.Join(env.symtable.Builtin.Members(), " "))
		return nil, nil
	}
	for _, a := range args {
		switch x := a.(type) {
		case *Procedure:
			env.printf("procedure %s\n", x.Signature())
			if x.Doc != "" {
				env.printf("    %s\n", x.Doc)
			}
		case *Closure:
			env.printf("%s\n", x)
			if x.Doc != "" {
				env.printf("    %s\n", x.Doc)
			}
		case *Group:
			if x.Doc != "" {
				env.printf("%s\n", x.Doc)
			}
			env.printf("%s", x.Show())
		default:
			env.printf("%s: %s\n", TypeName(a), Repr(a))
		}
	}
	return nil, nil
}

func ShowFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if len(args) == 0 {
		env.printf("%s", env.symtable.LocalGroup().Show())
		return nil, nil
	}
	for _, a := range args {
		switch x := a.(type) {
		case *Group:
			env.printf("%s", x.Show())
		case string:
			env.printf("%s", env.symtable.ShowGroup(x))
		default:
			env.printf("%s\n", Repr(x))
		}
	}
	return nil, nil
}

func GoonDumpFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if len(args) != 1 {
		return nil, WrongNargs
	}
	fmt.Fprintf(env.Stdout, "\n%s", goon.Sdump(args[0]))
	return nil, nil
}

func mathFunc1(f func(float64) float64) HostFunction {
	return func(env *Mace, name string, args []any, kws *Dict) (any, error) {
		if err := wantArgs(name, args, 1, 1); err != nil {
			return nil, err
		}
		x, ok := asFloat(args[0])
		if !ok {
			return nil, newError(TypeMismatch, "must be real number, not %s", TypeName(args[0]))
		}
		return f(x), nil
	}
}

func mathFunc2(f func(float64, float64) float64) HostFunction {
	return func(env *Mace, name string, args []any, kws *Dict) (any, error) {
		if err := wantArgs(name, args, 2, 2); err != nil {
			return nil, err
		}
		x, ok1 := asFloat(args[0])
		y, ok2 := asFloat(args[1])
		if !ok1 || !ok2 {
			return nil, newError(TypeMismatch, "%s() arguments must be real numbers", name)
		}
		return f(x, y), nil
	}
}

// mathDomain is mathFunc1 for functions defined only where ok holds.
func mathDomain(f func(float64) float64, ok func(float64) bool) HostFunction {
	inner := mathFunc1(f)
	return func(env *Mace, name string, args []any, kws *Dict) (any, error) {
		if len(args) == 1 {
			if x, isNum := asFloat(args[0]); isNum && !ok(x) {
				return nil, newError(UserError, "math domain error")
			}
		}
		return inner(env, name, args, kws)
	}
}

func installMath(g *Group) {
	g.Set("pi", math.Pi)
	g.Set("e", math.E)
	g.Set("inf", math.Inf(1))
	g.Set("nan", math.NaN())

	positive := func(x float64) bool { return x > 0 }
	unit := func(x float64) bool { return x >= -1 && x <= 1 }
	funcs := map[string]HostFunction{
		"sqrt":  mathDomain(math.Sqrt, func(x float64) bool { return x >= 0 }),
		"exp":   mathFunc1(math.Exp),
		"log":   mathDomain(math.Log, positive),
		"log10": mathDomain(math.Log10, positive),
		"sin":   mathFunc1(math.Sin),
		"cos":   mathFunc1(math.Cos),
		"tan":   mathFunc1(math.Tan),
		"asin":  mathDomain(math.Asin, unit),
		"acos":  mathDomain(math.Acos, unit),
		"atan":  mathFunc1(math.Atan),
		"atan2": mathFunc2(math.Atan2),
		"hypot": mathFunc2(math.Hypot),
		"fabs":  mathFunc1(math.Abs),
		"pow":   mathFunc2(math.Pow),
		"floor": floorCeil(math.Floor),
		"ceil":  floorCeil(math.Ceil),
		"isnan": func(env *Mace, name string, args []any, kws *Dict) (any, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			f, ok := args[0].(float64)
			return ok && math.IsNaN(f), nil
		},
	}
	for _, name := range sortedKeys(funcs) {
		g.Set(name, MakeClosure(name, funcs[name]))
	}
}

// floorCeil returns ints.
func floorCeil(f func(float64) float64) HostFunction {
	return func(env *Mace, name string, args []any, kws *Dict) (any, error) {
		if err := wantArgs(name, args, 1, 1); err != nil {
			return nil, err
		}
		if i, ok := args[0].(int64); ok {
			return i, nil
		}
		x, ok := asFloat(args[0])
		if !ok {
			return nil, newError(TypeMismatch, "must be real number, not %s", TypeName(args[0]))
		}
		return int64(f(x)), nil
	}
}
