package mace

import (
	"errors"
	"testing"
	"time"

	cv "github.com/glycerine/goconvey/convey"
)

// evalRepr evaluates text in a fresh session and returns the repr of
// the last expression.
func evalRepr(text string) (string, error) {
	env, _ := newTestEnv()
	v, err := env.EvalString(text)
	if err != nil {
		return "", err
	}
	return Repr(v), nil
}

func Test070_CoreBuiltins(t *testing.T) {

	cv.Convey(`sequence builtins`, t, func() {
		cases := map[string]string{
			"len([1, 2, 3])":    "3",
			"len('abcd')":       "4",
			"range(5)":          "[0, 1, 2, 3, 4]",
			"range(10, 0, -3)":  "[10, 7, 4, 1]",
			"sorted([3, 1, 2])": "[1, 2, 3]",
			"sorted(['bb', 'a', 'ccc'], key=len, reverse=True)": "['ccc', 'bb', 'a']",
			"reversed((1, 2, 3))":                               "[3, 2, 1]",
			"sum([1, 2, 3])":                                    "6",
			"min(3, 1, 2)":                                      "1",
			"max(['aa', 'b', 'cccc'], key=len)":                 "'cccc'",
			"abs(-4)":                                           "4",
			"round(2.5)":                                        "2",
			"round(3.5)":                                        "4",
			"int('ff', 16)":                                     "255",
			"int(3.9)":                                          "3",
			"str(12)":                                           "'12'",
			"repr('a')":                                         "\"'a'\"",
			"eval('1 + 2')":                                     "3",
			"type([])":                                          "'list'",
		}
		for text, want := range cases {
			got, err := evalRepr(text)
			cv.So(err, cv.ShouldBeNil)
			cv.So(got, cv.ShouldEqual, want)
		}
	})

	cv.Convey(`bad arguments give typed errors`, t, func() {
		bad := map[string]ErrorKind{
			"range(1, 2, 0)":     UserError,
			"min([])":            UserError,
			"int('x')":           UserError,
			"len(5)":             TypeMismatch,
			"range('a')":         TypeMismatch,
			"len()":              MissingArgument,
			"range(1, 2, 3, 4)":  TooManyArguments,
			"sorted([1], cmp=2)": UnexpectedKeyword,
		}
		for text, kind := range bad {
			env, _ := newTestEnv()
			_, err := env.EvalString(text)
			cv.So(err, cv.ShouldNotBeNil)
			cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, kind)
		}
	})

	cv.Convey(`checksum and hash use BLAKE2b`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString("checksum('abc')")
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, Checksum([]byte("abc")))
		cv.So(len(v.(string)), cv.ShouldEqual, 64)

		v, err = env.EvalString("hash((1, 'a')) == hash((1, 'a')) and hash(1) != hash(2)")
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, true)
	})
}

func Test071_ReflectionBuiltins(t *testing.T) {

	cv.Convey(`dir, which, exists and attribute access`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString(`
g = group('g', b=2)
g.a = 1
dir(g)
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(Repr(v), cv.ShouldEqual, "['b', 'a']")

		v, err = env.EvalString("which('sqrt')")
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, "_math.sqrt")

		v, err = env.EvalString("(exists('g.a'), exists('g.zz'), isgroup(g), isgroup(g, 'zz'))")
		cv.So(err, cv.ShouldBeNil)
		cv.So(Repr(v), cv.ShouldEqual, "(True, False, True, False)")

		v, err = env.EvalString("setattr(g, 'c', 3)\n(getattr(g, 'c'), getattr(g, 'zz', 9), hasattr(g, 'zz'))")
		cv.So(err, cv.ShouldBeNil)
		cv.So(Repr(v), cv.ShouldEqual, "(3, 9, False)")

		_, err = env.EvalString("getattr(g, 'zz')")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, UnknownMember)
		_, err = env.EvalString("getattr(g, '__class__')")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, ForbiddenAttribute)
	})

	cv.Convey(`help and show write to the session output`, t, func() {
		env, out := newTestEnv()
		_, err := env.EvalString(`
def f(a, k=1):
    "does f"
    return a
end
help(f)
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(out.String(), cv.ShouldContainSubstring, "procedure f(a, k=1)")
		cv.So(out.String(), cv.ShouldContainSubstring, "does f")
	})
}

func Test072_MathGroup(t *testing.T) {

	cv.Convey(`math functions live in _math and check their domain`, t, func() {
		got, err := evalRepr("(sqrt(16), floor(2.7), ceil(2.1), _math.pi > 3)")
		cv.So(err, cv.ShouldBeNil)
		cv.So(got, cv.ShouldEqual, "(4.0, 2, 3, True)")

		env, _ := newTestEnv()
		_, err = env.EvalString("sqrt(-1)")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, UserError)
		cv.So(err.(*ErrorRecord).Msg, cv.ShouldEqual, "math domain error")

		_, err = env.EvalString("log('x')")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, TypeMismatch)
	})
}

func Test073_GoClosures(t *testing.T) {

	env, _ := newTestEnv()

	cv.Convey(`a Go func taking the session as first parameter`, t, func() {
		c := MustClosure("who", func(e *Mace, n int) string {
			if e == nil {
				return "no session"
			}
			return "session"
		})
		cv.So(c.MinArgs, cv.ShouldEqual, 1)
		cv.So(c.MaxArgs, cv.ShouldEqual, 1)
		v, err := c.Call(env, []any{int64(3)}, nil)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, "session")

		_, err = c.Call(env, nil, nil)
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, MissingArgument)
		_, err = c.Call(env, ints(1, 2), nil)
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, TooManyArguments)
	})

	cv.Convey(`an error result becomes a HostFault unless it is already a record`, t, func() {
		c := MustClosure("fail", func(useRecord bool) (int64, error) {
			if useRecord {
				return 0, newError(KeyNotFound, "no key")
			}
			return 0, errors.New("plain failure")
		})
		_, err := c.Call(env, []any{false}, nil)
		rec := err.(*ErrorRecord)
		cv.So(rec.Kind, cv.ShouldEqual, HostFault)
		cv.So(rec.Msg, cv.ShouldEqual, "plain failure")
		cv.So(rec.Func, cv.ShouldEqual, c)

		_, err = c.Call(env, []any{true}, nil)
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, KeyNotFound)
	})

	cv.Convey(`multiple results become a tuple and panics are caught`, t, func() {
		pair := MustClosure("pair", func(a, b int64) (int64, int64) { return b, a })
		v, err := pair.Call(env, ints(1, 2), nil)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldResemble, Tuple{int64(2), int64(1)})

		boom := MustClosure("boom", func() int64 { panic("kaboom") })
		_, err = boom.Call(env, nil, nil)
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, HostFault)
		cv.So(err.(*ErrorRecord).Msg, cv.ShouldContainSubstring, "kaboom")
	})

	cv.Convey(`keywords go to a trailing *Dict or are refused`, t, func() {
		withKws := MustClosure("opts", func(a int64, kws *Dict) int64 {
			v, ok := kws.Get("extra")
			if !ok {
				return a
			}
			return a + v.(int64)
		})
		v, err := withKws.Call(env, ints(1), kwDict("extra", int64(10)))
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(11))

		plain := MustClosure("plain", func(a int64) int64 { return a })
		_, err = plain.Call(env, ints(1), kwDict("extra", int64(10)))
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, UnexpectedKeyword)
	})

	cv.Convey(`variadic funcs and Partial`, t, func() {
		sum := MustClosure("sum3", func(base int64, xs ...int64) int64 {
			for _, x := range xs {
				base += x
			}
			return base
		})
		cv.So(sum.MinArgs, cv.ShouldEqual, 1)
		cv.So(sum.MaxArgs, cv.ShouldEqual, -1)

		add100 := sum.Partial(ints(100), nil)
		v, err := add100.Call(env, ints(1, 2), nil)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(103))

		// the original is unchanged
		v, err = sum.Call(env, ints(1), nil)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(1))
	})

	cv.Convey(`non-functions are refused`, t, func() {
		_, err := NewClosure("x", 42)
		cv.So(err, cv.ShouldNotBeNil)
	})

	cv.Convey(`Go closures are callable from scripts with converted arguments`, t, func() {
		env, _ := newTestEnv()
		env.SymbolTable().SetSymbol("join", MustClosure("join", func(parts []string, sep string) string {
			out := ""
			for i, p := range parts {
				if i > 0 {
					out += sep
				}
				out += p
			}
			return out
		}), nil)
		v, err := env.EvalString("join(['a', 'b', 'c'], '-')")
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, "a-b-c")

		_, err = env.EvalString("join(5, '-')")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, TypeMismatch)
	})
}

func Test074_HostModulesJSONAndTime(t *testing.T) {

	cv.Convey(`json.dumps writes sorted keys and json.loads reads them back`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString("import json\njson.dumps({'b': 1, 'a': [1, 'x', None, True]})")
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, `{"a":[1,"x",null,true],"b":1}`)

		v, err = env.EvalString("d = json.loads('{\"k\": [1, 2], \"s\": \"v\"}')\n(d['k'][1], d['s'])")
		cv.So(err, cv.ShouldBeNil)
		cv.So(Repr(v), cv.ShouldEqual, "(2, 'v')")

		_, err = env.EvalString("json.loads('{bad')")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, UserError)

		_, err = env.EvalString("json.dumps(json)")
		cv.So(err, cv.ShouldBeNil)
		_, err = env.EvalString("json.dumps(json.dumps)")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, TypeMismatch)
	})

	cv.Convey(`strftime formats %-directives`, t, func() {
		at := time.Date(2024, 3, 5, 7, 8, 9, 123456000, time.UTC)
		cv.So(strftime("%Y-%m-%d %H:%M:%S.%f %% %q", at), cv.ShouldEqual,
			"2024-03-05 07:08:09.123456 % %q")
		cv.So(strftime("%b %j", at), cv.ShouldEqual, "Mar 065")

		env, _ := newTestEnv()
		v, err := env.EvalString("strftime('%Y', 1700049600)")
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, "2023")
	})

	cv.Convey(`the sandbox leaves out system functions`, t, func() {
		env := NewMaceSandbox()
		for _, name := range []string{"run", "cd", "save_group", "strftime"} {
			cv.So(env.SymbolTable().Builtin.Has(name), cv.ShouldBeFalse)
		}
		cv.So(env.SymbolTable().Builtin.Has("len"), cv.ShouldBeTrue)
		_, err := env.EvalString("run('x')")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, UnknownName)
	})
}
