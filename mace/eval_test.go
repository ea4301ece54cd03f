package mace

import (
	"bytes"
	"strings"
	"testing"

	cv "github.com/glycerine/goconvey/convey"
)

// newTestEnv returns a session whose print output is captured.
func newTestEnv() (*Mace, *bytes.Buffer) {
	env := NewMace()
	env.StandardSetup()
	var buf bytes.Buffer
	env.Stdout = &buf
	return env, &buf
}

func lookup(env *Mace, name string) any {
	v, err := env.SymbolTable().Resolve(name, false)
	if err != nil {
		return err
	}
	return v
}

func kinds(env *Mace) []ErrorKind {
	var out []ErrorKind
	for _, rec := range env.Errors() {
		out = append(out, rec.Kind)
	}
	return out
}

func Test030_ErrorsDoNotStopLaterUnits(t *testing.T) {

	cv.Convey(`a failing unit is recorded and the following units still run`, t, func() {
		env, _ := newTestEnv()
		env.Feed("x = 1\ny = undefined_name\nz = 3", "<test>", 1)
		n := env.ExecuteInput(nil)
		cv.So(n, cv.ShouldEqual, 3)
		cv.So(kinds(env), cv.ShouldResemble, []ErrorKind{UnknownName})
		cv.So(lookup(env, "z"), cv.ShouldEqual, int64(3))

		rec := env.Errors()[0]
		cv.So(rec.Filename, cv.ShouldEqual, "<test>")
		cv.So(rec.Line, cv.ShouldEqual, 2)
		cv.So(rec.Expr, cv.ShouldEqual, "y = undefined_name")
		out := rec.Format()
		cv.So(out, cv.ShouldContainSubstring, "File <test>, line 2")
		cv.So(out, cv.ShouldEndWith, "UnknownName: name 'undefined_name' is not defined\n")

		env.Feed("w = nope2", "<test>", 0)
		env.ExecuteInput(nil)
		cv.So(len(env.Errors()), cv.ShouldEqual, 2)

		env.ClearErrors()
		cv.So(len(env.Errors()), cv.ShouldEqual, 0)
	})

	cv.Convey(`inside one unit, the first failure stops the rest of that unit`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString(`
if True:
    p = 1
    q = nope
    r = 3
end
s = 4
`)
		cv.So(err, cv.ShouldNotBeNil)
		cv.So(lookup(env, "p"), cv.ShouldEqual, int64(1))
		cv.So(env.SymbolTable().HasSymbol("r"), cv.ShouldBeFalse)
		cv.So(lookup(env, "s"), cv.ShouldEqual, int64(4))
		cv.So(len(env.Errors()), cv.ShouldEqual, 1)
	})

	cv.Convey(`a syntax error is recorded with its line and the session carries on`, t, func() {
		env, _ := newTestEnv()
		env.Feed("a = 1\nb = (2 +* 3)\nc = 5", "<test>", 1)
		env.ExecuteInput(nil)
		cv.So(kinds(env), cv.ShouldResemble, []ErrorKind{SyntaxError})
		cv.So(env.Errors()[0].Line, cv.ShouldEqual, 2)
		cv.So(lookup(env, "c"), cv.ShouldEqual, int64(5))
	})
}

func Test031_FramesAreRestoredAfterFaults(t *testing.T) {

	cv.Convey(`a procedure that faults leaves the caller's frame in place`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString(`
def bad(n):
    x = n
    return n.missing
end
bad(1)
`)
		cv.So(err, cv.ShouldNotBeNil)
		st := env.SymbolTable()
		cv.So(st.FrameDepth(), cv.ShouldEqual, 0)
		cv.So(st.LocalGroup(), cv.ShouldEqual, st.Top())
		cv.So(st.HasSymbol("x"), cv.ShouldBeFalse)

		rec := env.Errors()[0]
		cv.So(rec.Kind, cv.ShouldEqual, UnknownMember)
		cv.So(rec.Line, cv.ShouldEqual, 4)
		cv.So(rec.Func.CallableName(), cv.ShouldEqual, "bad")
	})

	cv.Convey(`runaway recursion stops at the call depth limit`, t, func() {
		env, _ := newTestEnv()
		env.MaxCallDepth = 50
		_, err := env.EvalString(`
def down(n):
    return down(n + 1)
end
down(0)
`)
		cv.So(err, cv.ShouldNotBeNil)
		cv.So(kinds(env), cv.ShouldResemble, []ErrorKind{HostFault})
		cv.So(err.Error(), cv.ShouldContainSubstring, "maximum recursion depth (50)")
		cv.So(env.SymbolTable().FrameDepth(), cv.ShouldEqual, 0)
	})

	cv.Convey(`procedure locals shadow globals without touching them`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString(`
x = 1
def f():
    x = 2
    return x
end
f() * 10 + x
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(21))
	})
}

func Test032_TryExcept(t *testing.T) {

	cv.Convey(`a matching handler clears the error and binds the record`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString(`
try:
    x = 1 / 0
except ZeroDivisionError as e:
    msg = e.msg
    kind = e.kind
end
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(lookup(env, "msg"), cv.ShouldEqual, "division by zero")
		cv.So(lookup(env, "kind"), cv.ShouldEqual, "ZeroDivision")
	})

	cv.Convey(`else runs on success and finally always runs`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString(`
log = []
try:
    log.append(1)
except:
    log.append(2)
else:
    log.append(3)
finally:
    log.append(4)
end
log
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(Repr(v), cv.ShouldEqual, "[1, 3, 4]")
	})

	cv.Convey(`an unmatched handler lets the error through, after finally`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString(`
done = False
try:
    x = nope
except KeyError:
    pass
finally:
    done = True
end
`)
		cv.So(err, cv.ShouldNotBeNil)
		cv.So(kinds(env), cv.ShouldResemble, []ErrorKind{UnknownName})
		cv.So(lookup(env, "done"), cv.ShouldEqual, true)
	})

	cv.Convey(`raise makes user errors, and a bare raise re-raises`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString(`
try:
    raise ValueError("bad value")
except ValueError as e:
    got = e.msg
end
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(lookup(env, "got"), cv.ShouldEqual, "bad value")

		_, err = env.EvalString(`
try:
    raise KeyError("k")
except:
    raise
end
`)
		cv.So(err, cv.ShouldNotBeNil)
		rec := err.(*ErrorRecord)
		cv.So(rec.KindName(), cv.ShouldEqual, "KeyError")
		cv.So(rec.Msg, cv.ShouldEqual, "k")
	})

	cv.Convey(`errors raised inside a called procedure are caught by the caller`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString(`
def get(d, k):
    return d[k]
end
try:
    r = get({}, 'a')
except KeyError:
    r = 'missing'
end
r
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, "missing")
		cv.So(env.SymbolTable().FrameDepth(), cv.ShouldEqual, 0)
	})

	cv.Convey(`assert records an AssertionFailed with its message`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString("assert 1 == 2, 'nope'")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, AssertionFailed)
		cv.So(err.(*ErrorRecord).Msg, cv.ShouldEqual, "nope")
	})
}

func Test033_Loops(t *testing.T) {

	cv.Convey(`break skips the loop's else clause`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString(`
found = -1
for i in range(10):
    if i == 3:
        found = i
        break
    end
else:
    found = 99
end
found
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(3))
	})

	cv.Convey(`a loop that runs out runs its else clause`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString(`
n = 0
while n < 5:
    n += 1
else:
    done = True
end
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(lookup(env, "n"), cv.ShouldEqual, int64(5))
		cv.So(lookup(env, "done"), cv.ShouldEqual, true)
	})

	cv.Convey(`continue skips to the next iteration`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString(`
total = 0
for i in range(6):
    if i % 2 == 0:
        continue
    end
    total += i
end
total
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(9))
	})

	cv.Convey(`return from inside a loop leaves the procedure`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString(`
def first_big(xs):
    for x in xs:
        if x > 10:
            return x
        end
    end
    return -1
end
first_big([1, 20, 30])
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(20))
	})
}

func Test034_AssignmentAndExpressions(t *testing.T) {

	cv.Convey(`tuple targets unpack, and a length mismatch is an UnpackMismatch`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString("a, b = 1, 2\nc = d = a + b")
		cv.So(err, cv.ShouldBeNil)
		cv.So(lookup(env, "b"), cv.ShouldEqual, int64(2))
		cv.So(lookup(env, "d"), cv.ShouldEqual, int64(3))

		_, err = env.EvalString("a, b = 1, 2, 3")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, UnpackMismatch)
	})

	cv.Convey(`attribute and subscript targets write into groups, lists and dicts`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString(`
g = group('g')
g.x = 5
l = [0, 0, 0]
l[1] = g.x
d = {}
d['k'] = l
d['k'][2] = 7
l
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(Repr(v), cv.ShouldEqual, "[0, 5, 7]")
	})

	cv.Convey(`comprehensions, slices, chained comparisons and conditionals`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString("[x * x for x in range(5) if x % 2 == 0]")
		cv.So(err, cv.ShouldBeNil)
		cv.So(Repr(v), cv.ShouldEqual, "[0, 4, 16]")

		v, _ = env.EvalString("[1, 2, 3, 4, 5][1:4]")
		cv.So(Repr(v), cv.ShouldEqual, "[2, 3, 4]")

		v, _ = env.EvalString("1 < 2 < 3")
		cv.So(v, cv.ShouldEqual, true)

		v, _ = env.EvalString("'yes' if 3 in [1, 2, 3] else 'no'")
		cv.So(v, cv.ShouldEqual, "yes")

		v, _ = env.EvalString("'a-b-c'.split('-')")
		cv.So(Repr(v), cv.ShouldEqual, "['a', 'b', 'c']")
	})

	cv.Convey(`forbidden attributes cannot be read or written`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString("x = [].__class__")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, ForbiddenAttribute)

		_, err = env.EvalString("g = group('g')\ng.__dict__ = 1")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, ForbiddenAttribute)
	})

	cv.Convey(`calling a non-callable is a NotCallable`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString("x = 5\nx()")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, NotCallable)
	})

	cv.Convey(`del removes names and items`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString("x = 1\nl = [1, 2, 3]\ndel x, l[0]\nl")
		cv.So(err, cv.ShouldBeNil)
		cv.So(Repr(v), cv.ShouldEqual, "[2, 3]")
		cv.So(env.SymbolTable().HasSymbol("x"), cv.ShouldBeFalse)
	})
}

func Test035_OutputAndHooks(t *testing.T) {

	cv.Convey(`print writes to the session's Stdout`, t, func() {
		env, buf := newTestEnv()
		_, err := env.EvalString("print('a', 1, sep='-')\nprint 'b'")
		cv.So(err, cv.ShouldNotBeNil)
		cv.So(buf.String(), cv.ShouldEqual, "a-1\n")
	})

	cv.Convey(`ExecuteInput hands expression values to the display function`, t, func() {
		env, _ := newTestEnv()
		var shown []string
		env.Feed("1 + 1\nx = 2\nNone\n'hi'", "<stdin>", 1)
		env.ExecuteInput(func(v any) { shown = append(shown, Repr(v)) })
		cv.So(shown, cv.ShouldResemble, []string{"2", "'hi'"})
	})

	cv.Convey(`pre and post hooks see every call`, t, func() {
		env, _ := newTestEnv()
		var names []string
		env.AddPreHook(func(e *Mace, name string, args []any) { names = append(names, "pre:"+name) })
		env.AddPostHook(func(e *Mace, name string, ret any) { names = append(names, "post:"+name) })
		_, err := env.EvalString("len([1])")
		cv.So(err, cv.ShouldBeNil)
		cv.So(names, cv.ShouldResemble, []string{"pre:len", "post:len"})
	})

	cv.Convey(`ShowErrors prints each distinct error once`, t, func() {
		env, _ := newTestEnv()
		env.Feed("a = nope", "<stdin>", 1)
		env.ExecuteInput(nil)
		var out bytes.Buffer
		env.ShowErrors(&out)
		cv.So(strings.Count(out.String(), "UnknownName"), cv.ShouldEqual, 1)
	})
}

func Test036_RunNextUnitByUnit(t *testing.T) {

	cv.Convey(`RunNext runs one unit at a time and waits for open blocks`, t, func() {
		env, _ := newTestEnv()
		_, err := env.RunNext()
		cv.So(err, cv.ShouldEqual, ErrNoUnitReady)

		env.Feed("if True:", "<stdin>", 1)
		_, err = env.RunNext()
		cv.So(err, cv.ShouldEqual, ErrNoUnitReady)

		env.Feed("    v = 5", "<stdin>", 2)
		env.Feed("end", "<stdin>", 3)
		env.Feed("v * 2", "<stdin>", 4)
		env.Feed("v / 0", "<stdin>", 5)

		val, err := env.RunNext()
		cv.So(err, cv.ShouldBeNil)
		cv.So(val, cv.ShouldBeNil)

		val, err = env.RunNext()
		cv.So(err, cv.ShouldBeNil)
		cv.So(val, cv.ShouldEqual, int64(10))

		_, err = env.RunNext()
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, ZeroDivision)
		cv.So(err.(*ErrorRecord).Line, cv.ShouldEqual, 5)

		_, err = env.RunNext()
		cv.So(err, cv.ShouldEqual, ErrNoUnitReady)
	})
}

func Test037_OperatorHelpers(t *testing.T) {

	cv.Convey(`unary and comparison operators apply to plain values`, t, func() {
		v, err := unaryOpValue("-", int64(3))
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(-3))
		v, err = unaryOpValue("not", int64(0))
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, true)

		ok, err := compareValues("<", int64(1), 2.5)
		cv.So(err, cv.ShouldBeNil)
		cv.So(ok, cv.ShouldBeTrue)
		ok, err = compareValues("in", "b", "abc")
		cv.So(err, cv.ShouldBeNil)
		cv.So(ok, cv.ShouldBeTrue)
	})

	cv.Convey(`scripts reach the same operators`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString("(-4, not 1, 1 < 2 <= 2, 3 not in [1, 2])")
		cv.So(err, cv.ShouldBeNil)
		cv.So(Repr(v), cv.ShouldEqual, "(-4, False, True, True)")
	})
}
