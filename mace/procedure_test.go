package mace

import (
	"testing"

	cv "github.com/glycerine/goconvey/convey"
)

func kwDict(pairs ...any) *Dict {
	d := NewDict()
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Set(pairs[i], pairs[i+1])
	}
	return d
}

func ints(xs ...int64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func member(g *Group, name string) any {
	v, _ := g.Get(name)
	return v
}

func bindKind(err error) ErrorKind {
	return err.(*ErrorRecord).Kind
}

func Test020_ArgumentBinding(t *testing.T) {

	p := &Procedure{
		Name:   "f",
		Args:   []string{"a", "b"},
		Kwargs: []KeywordParam{{Name: "c", Default: int64(3)}},
	}

	cv.Convey(`positionals fill the required parameters and defaults fill the rest`, t, func() {
		local, err := p.bind(ints(1, 2), nil)
		cv.So(err, cv.ShouldBeNil)
		cv.So(member(local, "a"), cv.ShouldEqual, int64(1))
		cv.So(member(local, "b"), cv.ShouldEqual, int64(2))
		cv.So(member(local, "c"), cv.ShouldEqual, int64(3))
	})

	cv.Convey(`missing positionals may be given by name`, t, func() {
		local, err := p.bind(ints(1), kwDict("b", int64(2), "c", int64(4)))
		cv.So(err, cv.ShouldBeNil)
		cv.So(member(local, "b"), cv.ShouldEqual, int64(2))
		cv.So(member(local, "c"), cv.ShouldEqual, int64(4))
	})

	cv.Convey(`a required parameter given twice is a DuplicateArgument`, t, func() {
		_, err := p.bind(ints(1, 2), kwDict("a", int64(5)))
		cv.So(bindKind(err), cv.ShouldEqual, DuplicateArgument)
	})

	cv.Convey(`too few arguments is a MissingArgument`, t, func() {
		_, err := p.bind(ints(1), nil)
		cv.So(bindKind(err), cv.ShouldEqual, MissingArgument)
		cv.So(err.Error(), cv.ShouldContainSubstring, "expected exactly 2 arguments (got 1), missing 1")
	})

	cv.Convey(`excess positionals spill into the keyword parameters in order`, t, func() {
		local, err := p.bind(ints(1, 2, 9), nil)
		cv.So(err, cv.ShouldBeNil)
		cv.So(member(local, "c"), cv.ShouldEqual, int64(9))
	})

	cv.Convey(`more positionals than parameters is TooManyArguments`, t, func() {
		_, err := p.bind(ints(1, 2, 9, 10), nil)
		cv.So(bindKind(err), cv.ShouldEqual, TooManyArguments)
	})

	cv.Convey(`an excess positional whose keyword was also named is a DuplicateArgument`, t, func() {
		_, err := p.bind(ints(1, 2, 9), kwDict("c", int64(4)))
		cv.So(bindKind(err), cv.ShouldEqual, DuplicateArgument)
	})

	cv.Convey(`an unknown keyword without **kws is an UnexpectedKeyword`, t, func() {
		_, err := p.bind(ints(1, 2), kwDict("zz", int64(1)))
		cv.So(bindKind(err), cv.ShouldEqual, UnexpectedKeyword)
		cv.So(err.Error(), cv.ShouldContainSubstring, "zz")
	})

	cv.Convey(`the caller's keyword dict is not consumed`, t, func() {
		kws := kwDict("b", int64(2))
		_, err := p.bind(ints(1), kws)
		cv.So(err, cv.ShouldBeNil)
		cv.So(kws.Len(), cv.ShouldEqual, 1)
	})
}

func Test021_VarArgsAndVarKeywords(t *testing.T) {

	p := &Procedure{Name: "g", Args: []string{"a"}, VarArg: "rest", VarKws: "opts"}

	cv.Convey(`extra positionals collect into a tuple, extra keywords into a dict`, t, func() {
		local, err := p.bind(ints(1, 2, 3), kwDict("x", int64(7)))
		cv.So(err, cv.ShouldBeNil)
		cv.So(member(local, "rest"), cv.ShouldResemble, Tuple(ints(2, 3)))
		opts := member(local, "opts").(*Dict)
		x, ok := opts.Get("x")
		cv.So(ok, cv.ShouldBeTrue)
		cv.So(x, cv.ShouldEqual, int64(7))
	})

	cv.Convey(`with *args the missing-argument message says at least`, t, func() {
		_, err := p.bind(nil, nil)
		cv.So(bindKind(err), cv.ShouldEqual, MissingArgument)
		cv.So(err.Error(), cv.ShouldContainSubstring, "at least 1")
	})

	cv.Convey(`an empty rest is an empty tuple`, t, func() {
		local, err := p.bind(ints(1), nil)
		cv.So(err, cv.ShouldBeNil)
		cv.So(len(member(local, "rest").(Tuple)), cv.ShouldEqual, 0)
		cv.So(member(local, "opts").(*Dict).Len(), cv.ShouldEqual, 0)
	})
}

func Test022_SignatureAndMembers(t *testing.T) {

	cv.Convey(`Signature renders every parameter kind`, t, func() {
		p := &Procedure{Name: "h", Args: []string{"a"}, VarArg: "va",
			Kwargs: []KeywordParam{{Name: "k", Default: "s"}}, VarKws: "vk", Doc: "does h"}
		cv.So(p.Signature(), cv.ShouldEqual, "h(a, *va, k='s', **vk)")
		doc, _ := p.GetMember("__doc__")
		cv.So(doc, cv.ShouldEqual, "does h")
	})
}

func Test023_ProcedureCallsFromScripts(t *testing.T) {

	cv.Convey(`defaults are evaluated once, when the procedure is defined`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString(`
d = 1
def f(x=d):
    return x
end
d = 2
r = f()
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(lookup(env, "r"), cv.ShouldEqual, int64(1))
	})

	cv.Convey(`falling off the end and a bare return both give None`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString(`
def f():
    pass
end
def g():
    return
end
a = f()
b = g()
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(lookup(env, "a"), cv.ShouldBeNil)
		cv.So(lookup(env, "b"), cv.ShouldBeNil)
	})

	cv.Convey(`a binding failure names the procedure`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString(`
def f(a, b):
    return a
end
f(1)
`)
		cv.So(err, cv.ShouldNotBeNil)
		rec := err.(*ErrorRecord)
		cv.So(rec.Kind, cv.ShouldEqual, MissingArgument)
		cv.So(rec.Format(), cv.ShouldContainSubstring, "in procedure f")
	})

	cv.Convey(`star and double-star spread into the call`, t, func() {
		env, _ := newTestEnv()
		v, err := env.EvalString(`
def g(a, b, c=0):
    return a + b + c
end
g(*[1, 2], **{'c': 3})
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(6))
	})

	cv.Convey(`env.Call invokes a script procedure from Go`, t, func() {
		env, _ := newTestEnv()
		_, err := env.EvalString("def sq(x):\n    return x * x\nend\n")
		cv.So(err, cv.ShouldBeNil)
		v, err := env.Call("sq", 7)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(49))

		_, err = env.Call("sq")
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, MissingArgument)
		cv.So(env.SymbolTable().FrameDepth(), cv.ShouldEqual, 0)
	})
}
