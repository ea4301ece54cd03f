package mace

import (
	"testing"

	cv "github.com/glycerine/goconvey/convey"
)

func Test010_GroupKeepsInsertionOrder(t *testing.T) {

	cv.Convey(`a Group lists public members in insertion order`, t, func() {
		g := NewGroup("g")
		g.Set("b", int64(1))
		g.Set("a", int64(2))
		g.Set("__hidden__", true)
		g.Set("b", int64(3))
		cv.So(g.Members(), cv.ShouldResemble, []string{"b", "a"})
		cv.So(g.Len(), cv.ShouldEqual, 2)

		v, ok := g.Get("b")
		cv.So(ok, cv.ShouldBeTrue)
		cv.So(v, cv.ShouldEqual, int64(3))

		name, _ := g.Get("__name__")
		cv.So(name, cv.ShouldEqual, "g")

		cv.So(g.Delete("b"), cv.ShouldBeTrue)
		cv.So(g.Delete("b"), cv.ShouldBeFalse)
		cv.So(g.Has("b"), cv.ShouldBeFalse)
		cv.So(g.HasAll("a", "__hidden__"), cv.ShouldBeTrue)
	})

	cv.Convey(`Copy is shallow and unnamed groups get distinct names`, t, func() {
		l := NewList(int64(1))
		g := NewGroup("")
		g.Set("l", l)
		h := g.Copy()
		cv.So(h.Name, cv.ShouldNotEqual, g.Name)
		hl, _ := h.Get("l")
		cv.So(hl, cv.ShouldEqual, l)

		sub := NewGroup("sub")
		g.Set("sub", sub)
		cv.So(g.Subgroups(), cv.ShouldResemble, []string{"sub"})
		cv.So(IsGroup(g, "l", "sub"), cv.ShouldBeTrue)
		cv.So(IsGroup(l), cv.ShouldBeFalse)
	})
}

func Test011_DottedSetAndResolve(t *testing.T) {

	cv.Convey(`SetSymbol creates intermediate groups and Resolve walks them`, t, func() {
		st := NewSymbolTable()
		_, err := st.SetSymbol("a.b.c", int64(1), nil)
		cv.So(err, cv.ShouldBeNil)

		v, err := st.Resolve("a.b.c", false)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(1))

		g, err := st.GetGroup("a.b")
		cv.So(err, cv.ShouldBeNil)
		cv.So(g.Name, cv.ShouldEqual, "b")
		cv.So(st.HasGroup("a.b.c"), cv.ShouldBeFalse)

		v, err = st.Resolve("_main.a.b.c", false)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(1))
	})

	cv.Convey(`missing names and members are distinct kinds`, t, func() {
		st := NewSymbolTable()
		_, err := st.Resolve("nothere", false)
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, UnknownName)

		st.SetSymbol("x", int64(1), nil)
		_, err = st.Resolve("x.y", false)
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, UnknownMember)
	})

	cv.Convey(`Resolve with create makes placeholders`, t, func() {
		st := NewSymbolTable()
		v, err := st.Resolve("q.r", true)
		cv.So(err, cv.ShouldBeNil)
		cv.So(st.HasGroup("q"), cv.ShouldBeTrue)
		cv.So(st.HasSymbol("q.r"), cv.ShouldBeTrue)
		r, isGroup := v.(*Group)
		cv.So(isGroup, cv.ShouldBeTrue)
		cv.So(r.Name, cv.ShouldEqual, "r")

		// every missing segment becomes an empty group
		v, err = st.Resolve("q.s.t", true)
		cv.So(err, cv.ShouldBeNil)
		cv.So(st.HasGroup("q.s"), cv.ShouldBeTrue)
		cv.So(st.HasGroup("q.s.t"), cv.ShouldBeTrue)
		cv.So(v.(*Group).Members(), cv.ShouldBeEmpty)
	})

	cv.Convey(`invalid and reserved names are refused`, t, func() {
		st := NewSymbolTable()
		_, err := st.SetSymbol("1bad", int64(1), nil)
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, InvalidIdentifier)
		_, err = st.SetSymbol("a.if", int64(1), nil)
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, InvalidIdentifier)
		cv.So(st.HasSymbol("a"), cv.ShouldBeFalse)

		st.SetSymbol("n", int64(1), nil)
		_, err = st.SetSymbol("n.m", int64(1), nil)
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, TypeMismatch)
	})

	cv.Convey(`NewGroup fixes up names that are not identifiers`, t, func() {
		st := NewSymbolTable()
		g, err := st.NewGroup("my group", nil)
		cv.So(err, cv.ShouldBeNil)
		cv.So(g.Name, cv.ShouldEqual, "my_group")
		cv.So(fixName("9 lives"), cv.ShouldEqual, "_9_lives")
		cv.So(fixName("for"), cv.ShouldEqual, "_for")
	})

	cv.Convey(`DeleteSymbol removes the leaf from its parent`, t, func() {
		st := NewSymbolTable()
		st.SetSymbol("p.q", int64(5), nil)
		cv.So(st.DeleteSymbol("p.q"), cv.ShouldBeNil)
		cv.So(st.HasSymbol("p.q"), cv.ShouldBeFalse)
		cv.So(st.HasSymbol("p"), cv.ShouldBeTrue)
		cv.So(st.DeleteSymbol("p.q"), cv.ShouldNotBeNil)
	})
}

func Test012_FramesAndShadowing(t *testing.T) {

	cv.Convey(`local shadows module shadows top, and frames restore symmetrically`, t, func() {
		st := NewSymbolTable()
		st.SetSymbol("v", int64(1), st.Top())

		mod := NewGroup("mod")
		mod.Set("v", int64(2))
		local := NewGroup("")
		local.Set("v", int64(3))

		st.SaveFrame()
		st.SetFrame(local, mod)
		cv.So(st.FrameDepth(), cv.ShouldEqual, 1)
		v, _ := st.Resolve("v", false)
		cv.So(v, cv.ShouldEqual, int64(3))

		local.Delete("v")
		v, _ = st.Resolve("v", false)
		cv.So(v, cv.ShouldEqual, int64(2))

		mod.Delete("v")
		v, _ = st.Resolve("v", false)
		cv.So(v, cv.ShouldEqual, int64(1))

		st.SetSymbol("w", int64(9), nil)
		cv.So(local.Has("w"), cv.ShouldBeTrue)

		st.RestoreFrame()
		cv.So(st.FrameDepth(), cv.ShouldEqual, 0)
		cv.So(st.LocalGroup(), cv.ShouldEqual, st.Top())
		cv.So(st.HasSymbol("w"), cv.ShouldBeFalse)

		// popping an empty stack is harmless
		st.RestoreFrame()
		cv.So(st.LocalGroup(), cv.ShouldEqual, st.Top())
	})

	cv.Convey(`SetFrame with only a module uses it as the local group too`, t, func() {
		st := NewSymbolTable()
		mod := NewGroup("m")
		st.SetFrame(nil, mod)
		cv.So(st.LocalGroup(), cv.ShouldEqual, mod)
		cv.So(st.ModuleGroup(), cv.ShouldEqual, mod)
	})
}

func Test013_SearchPathChangesAreSeen(t *testing.T) {

	cv.Convey(`adding a group name to _sys.searchGroups makes its members visible`, t, func() {
		st := NewSymbolTable()
		extra := NewGroup("extra")
		extra.Set("zed", "z")
		st.SetSymbol("extra", extra, st.Top())

		_, err := st.Resolve("zed", false)
		cv.So(err, cv.ShouldNotBeNil)

		sp := st.SearchPath()
		sp.Items = append(sp.Items, "extra")
		v, err := st.Resolve("zed", false)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, "z")

		w, err := st.Which("zed")
		cv.So(err, cv.ShouldBeNil)
		cv.So(w, cv.ShouldEqual, "extra.zed")
	})

	cv.Convey(`the first match along the search list wins`, t, func() {
		st := NewSymbolTable()
		one := NewGroup("one")
		one.Set("k", int64(1))
		two := NewGroup("two")
		two.Set("k", int64(2))
		st.SetSymbol("one", one, st.Top())
		st.SetSymbol("two", two, st.Top())
		sp := st.SearchPath()
		sp.Items = append(sp.Items, "two", "one")
		v, _ := st.Resolve("k", false)
		cv.So(v, cv.ShouldEqual, int64(2))
	})
}

func Test014_PluginsAndCallbacks(t *testing.T) {

	cv.Convey(`AddPlugin wraps Go funcs and puts the group on the search path`, t, func() {
		st := NewSymbolTable()
		_, err := st.AddPlugin("plug", map[string]any{
			"add":   func(a, b int64) int64 { return a + b },
			"label": "plugged",
		})
		cv.So(err, cv.ShouldBeNil)

		v, err := st.Resolve("add", false)
		cv.So(err, cv.ShouldBeNil)
		_, isClosure := v.(*Closure)
		cv.So(isClosure, cv.ShouldBeTrue)

		w, _ := st.Which("label")
		cv.So(w, cv.ShouldEqual, "plug.label")
	})

	cv.Convey(`callbacks fire when a watched symbol is set`, t, func() {
		st := NewSymbolTable()
		st.SetSymbol("a.b.c", int64(0), nil)
		var seen []any
		err := st.AddCallback("a.b.c", func(g *Group, name string, value any) {
			seen = append(seen, value)
		})
		cv.So(err, cv.ShouldBeNil)

		st.SetSymbol("a.b.c", int64(5), nil)
		st.SetSymbol("a.b.d", int64(6), nil)
		cv.So(seen, cv.ShouldResemble, []any{int64(5)})

		st.ClearCallbacks("a.b.c")
		st.SetSymbol("a.b.c", int64(7), nil)
		cv.So(len(seen), cv.ShouldEqual, 1)

		cv.So(st.AddCallback("nope", nil), cv.ShouldNotBeNil)
	})
}

func Test015_TopGroupIsSearchedLast(t *testing.T) {

	cv.Convey(`top-level names stay visible when _main leaves the search path`, t, func() {
		st := NewSymbolTable()
		st.SetSymbol("shared", int64(7), st.Top())
		st.SearchPath().Items = nil

		mod := NewGroup("m")
		st.SaveFrame()
		st.SetFrame(NewGroup("call"), mod)
		defer st.RestoreFrame()

		v, err := st.Resolve("shared", false)
		cv.So(err, cv.ShouldBeNil)
		cv.So(v, cv.ShouldEqual, int64(7))

		groups := st.SearchGroups()
		cv.So(groups[len(groups)-1], cv.ShouldEqual, st.Top())
	})
}
