package mace

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

func asInt(x any) (int64, bool) {
	switch v := x.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asFloat(x any) (float64, bool) {
	switch v := x.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isNumber(x any) bool {
	_, ok := asFloat(x)
	return ok
}

func isFloat(x any) bool {
	_, ok := x.(float64)
	return ok
}

func floorDivInt(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func modInt(a, b int64) int64 {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

func modFloat(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

func powInt(a, b int64) int64 {
	r := int64(1)
	for b > 0 {
		if b&1 == 1 {
			r *= a
		}
		a *= a
		b >>= 1
	}
	return r
}

func unsupported(op string, a, b any) error {
	return newError(TypeMismatch, "unsupported operand type(s) for %s: '%s' and '%s'",
		op, TypeName(a), TypeName(b))
}

// BinaryOp applies an arithmetic or bitwise operator.
func BinaryOp(op string, a, b any) (any, error) {
	ai, aInt := asInt(a)
	bi, bInt := asInt(b)
	bothInt := aInt && bInt
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	bothNum := aNum && bNum

	switch op {
	case "+":
		switch {
		case bothInt:
			return ai + bi, nil
		case bothNum:
			return af + bf, nil
		}
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				return x + y, nil
			}
		case *List:
			if y, ok := b.(*List); ok {
				out := make([]any, 0, len(x.Items)+len(y.Items))
				out = append(out, x.Items...)
				return &List{Items: append(out, y.Items...)}, nil
			}
		case Tuple:
			if y, ok := b.(Tuple); ok {
				out := make(Tuple, 0, len(x)+len(y))
				out = append(out, x...)
				return append(out, y...), nil
			}
		}
	case "-":
		switch {
		case bothInt:
			return ai - bi, nil
		case bothNum:
			return af - bf, nil
		}
	case "*":
		switch {
		case bothInt:
			return ai * bi, nil
		case bothNum:
			return af * bf, nil
		}
		if r, ok := repeatSeq(a, b); ok {
			return r, nil
		}
		if r, ok := repeatSeq(b, a); ok {
			return r, nil
		}
	case "/":
		if bothNum {
			if bf == 0 {
				return nil, newError(ZeroDivision, "division by zero")
			}
			return af / bf, nil
		}
	case "//":
		switch {
		case bothInt:
			if bi == 0 {
				return nil, newError(ZeroDivision, "integer division or modulo by zero")
			}
			return floorDivInt(ai, bi), nil
		case bothNum:
			if bf == 0 {
				return nil, newError(ZeroDivision, "float divmod()")
			}
			return math.Floor(af / bf), nil
		}
	case "%":
		if s, ok := a.(string); ok {
			return formatPercent(s, b)
		}
		switch {
		case bothInt:
			if bi == 0 {
				return nil, newError(ZeroDivision, "integer division or modulo by zero")
			}
			return modInt(ai, bi), nil
		case bothNum:
			if bf == 0 {
				return nil, newError(ZeroDivision, "float modulo")
			}
			return modFloat(af, bf), nil
		}
	case "**":
		switch {
		case bothInt && bi >= 0:
			return powInt(ai, bi), nil
		case bothNum:
			if af == 0 && bf < 0 {
				return nil, newError(ZeroDivision, "0.0 cannot be raised to a negative power")
			}
			return math.Pow(af, bf), nil
		}
	case "<<", ">>", "&", "|", "^":
		if bothInt {
			switch op {
			case "<<":
				if bi < 0 {
					return nil, newError(UserError, "negative shift count")
				}
				return ai << uint(bi), nil
			case ">>":
				if bi < 0 {
					return nil, newError(UserError, "negative shift count")
				}
				return ai >> uint(bi), nil
			case "&":
				return ai & bi, nil
			case "|":
				return ai | bi, nil
			case "^":
				return ai ^ bi, nil
			}
		}
	default:
		return nil, newError(UnsupportedConstruct, "unknown operator %s", op)
	}
	return nil, unsupported(op, a, b)
}

func repeatSeq(seq, n any) (any, bool) {
	k, ok := n.(int64)
	if !ok {
		return nil, false
	}
	if k < 0 {
		k = 0
	}
	switch s := seq.(type) {
	case string:
		return strings.Repeat(s, int(k)), true
	case *List:
		out := make([]any, 0, len(s.Items)*int(k))
		for i := int64(0); i < k; i++ {
			out = append(out, s.Items...)
		}
		return &List{Items: out}, true
	case Tuple:
		out := make(Tuple, 0, len(s)*int(k))
		for i := int64(0); i < k; i++ {
			out = append(out, s...)
		}
		return out, true
	}
	return nil, false
}

// unaryOpValue applies -, +, ~ or not.
func unaryOpValue(op string, a any) (any, error) {
	switch op {
	case "not":
		return !Truthy(a), nil
	case "-":
		switch v := a.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		case bool:
			i, _ := asInt(v)
			return -i, nil
		}
	case "+":
		switch v := a.(type) {
		case int64, float64:
			return v, nil
		case bool:
			i, _ := asInt(v)
			return i, nil
		}
	case "~":
		if i, ok := asInt(a); ok {
			return ^i, nil
		}
	}
	return nil, newError(TypeMismatch, "bad operand type for unary %s: '%s'", op, TypeName(a))
}

// Equal is deep value equality for sequences and dicts, numeric
// equality across int and float, identity for everything else.
func Equal(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
		return false
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		return ok && seqEqual(x.Items, y.Items)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && seqEqual(x, y)
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, k := range x.keys {
			yv, ok := y.Get(k)
			if !ok || !Equal(x.vals[k], yv) {
				return false
			}
		}
		return true
	}
	return Identical(a, b)
}

func seqEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Identical implements the `is` operator.
func Identical(a, b any) bool {
	switch x := a.(type) {
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x) != len(y) {
			return false
		}
		return len(x) == 0 || &x[0] == &y[0]
	case *returnedNone:
		return b == nil || b == ReturnedNone
	case nil:
		return b == nil || b == ReturnedNone
	}
	if _, ok := b.(Tuple); ok {
		return false
	}
	if a != nil && !reflect.TypeOf(a).Comparable() {
		return false
	}
	return a == b
}

// order returns -1, 0 or 1 for the ordering comparisons.
func order(a, b any) (int, error) {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			}
			return 0, nil
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			return seqOrder(x.Items, y.Items)
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return seqOrder(x, y)
		}
	}
	return 0, newError(TypeMismatch, "'<' not supported between instances of '%s' and '%s'",
		TypeName(a), TypeName(b))
}

func seqOrder(a, b []any) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if Equal(a[i], b[i]) {
			continue
		}
		return order(a[i], b[i])
	}
	switch {
	case len(a) < len(b):
		return -1, nil
	case len(a) > len(b):
		return 1, nil
	}
	return 0, nil
}

// Contains implements `needle in haystack`.
func Contains(haystack, needle any) (bool, error) {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		if !ok {
			return false, newError(TypeMismatch, "'in <string>' requires string as left operand, not %s", TypeName(needle))
		}
		return strings.Contains(h, n), nil
	case *List:
		return indexOf(h.Items, needle) >= 0, nil
	case Tuple:
		return indexOf(h, needle) >= 0, nil
	case *Dict:
		_, ok := h.Get(needle)
		return ok, nil
	case *Group:
		n, ok := needle.(string)
		return ok && h.Has(n), nil
	}
	return false, newError(TypeMismatch, "argument of type '%s' is not iterable", TypeName(haystack))
}

func indexOf(items []any, x any) int {
	for i, it := range items {
		if Equal(it, x) {
			return i
		}
	}
	return -1
}

// compareValues applies one comparison operator.
func compareValues(op string, a, b any) (bool, error) {
	switch op {
	case "==":
		return Equal(a, b), nil
	case "!=":
		return !Equal(a, b), nil
	case "is":
		return Identical(a, b), nil
	case "is not":
		return !Identical(a, b), nil
	case "in":
		return Contains(b, a)
	case "not in":
		in, err := Contains(b, a)
		return !in, err
	}
	c, err := order(a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, newError(UnsupportedConstruct, "unknown comparison %s", op)
}

// formatPercent implements printf-style `fmt % args`.
func formatPercent(format string, arg any) (any, error) {
	var args []any
	switch v := arg.(type) {
	case Tuple:
		args = v
	default:
		args = []any{arg}
	}
	var b strings.Builder
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return nil, newError(UserError, "incomplete format")
		}
		if format[i] == '%' {
			b.WriteByte('%')
			continue
		}
		start := i
		for i < len(format) && strings.IndexByte("-+ #0123456789.", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			return nil, newError(UserError, "incomplete format")
		}
		spec := format[start:i]
		verb := format[i]
		if next >= len(args) {
			return nil, newError(TypeMismatch, "not enough arguments for format string")
		}
		a := args[next]
		next++
		s, err := formatOne(spec, verb, a)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	if next < len(args) {
		return nil, newError(TypeMismatch, "not all arguments converted during string formatting")
	}
	return b.String(), nil
}

func formatOne(spec string, verb byte, a any) (string, error) {
	left := strings.Contains(spec, "-")
	zero := strings.HasPrefix(strings.TrimLeft(spec, "-+ #"), "0")
	plus := strings.Contains(spec, "+")
	width, prec := 0, -1
	num := strings.TrimLeft(spec, "-+ #")
	if dot := strings.IndexByte(num, '.'); dot >= 0 {
		prec, _ = strconv.Atoi(num[dot+1:])
		num = num[:dot]
	}
	if num != "" {
		width, _ = strconv.Atoi(num)
	}
	var s string
	switch verb {
	case 's':
		s = ToStr(a)
		if prec >= 0 && prec < len(s) {
			s = s[:prec]
		}
	case 'r':
		s = Repr(a)
	case 'd', 'i':
		f, ok := asFloat(a)
		if !ok {
			return "", newError(TypeMismatch, "%%d format: a number is required, not %s", TypeName(a))
		}
		s = strconv.FormatInt(int64(f), 10)
	case 'x', 'X', 'o':
		i, ok := asInt(a)
		if !ok {
			return "", newError(TypeMismatch, "%%%c format: an integer is required, not %s", verb, TypeName(a))
		}
		base := 16
		if verb == 'o' {
			base = 8
		}
		s = strconv.FormatInt(i, base)
		if verb == 'X' {
			s = strings.ToUpper(s)
		}
	case 'f', 'F', 'e', 'E', 'g', 'G':
		f, ok := asFloat(a)
		if !ok {
			return "", newError(TypeMismatch, "must be real number, not %s", TypeName(a))
		}
		if prec < 0 {
			prec = 6
		}
		fc := verb
		if fc == 'F' {
			fc = 'f'
		}
		s = strconv.FormatFloat(f, fc, prec, 64)
	default:
		return "", newError(UserError, "unsupported format character '%c'", verb)
	}
	if plus && verb != 's' && verb != 'r' && !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	for len(s) < width {
		switch {
		case left:
			s += " "
		case zero && verb != 's' && verb != 'r':
			if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
				s = s[:1] + "0" + s[1:]
			} else {
				s = "0" + s
			}
		default:
			s = " " + s
		}
	}
	return s, nil
}
