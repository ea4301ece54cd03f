package mace

import (
	"path/filepath"
	"testing"

	cv "github.com/glycerine/goconvey/convey"
)

func Test060_GroupSnapshotRoundTrip(t *testing.T) {

	cv.Convey(`a group snapshot keeps scalars, containers and subgroups`, t, func() {
		sub := NewGroup("inner")
		sub.Set("deep", "yes")

		d := NewDict()
		d.Set("k", int64(1))
		d.Set(int64(2), Tuple{"t", 2.5})

		g := NewGroup("outer")
		g.Doc = "settings"
		g.Set("i", int64(-7))
		g.Set("f", 1.5)
		g.Set("s", "str")
		g.Set("b", true)
		g.Set("n", nil)
		g.Set("l", NewList(int64(1), "two", NewList(int64(3))))
		g.Set("t", Tuple{int64(1), int64(2)})
		g.Set("d", d)
		g.Set("sub", sub)

		by, err := MarshalGroup(g)
		cv.So(err, cv.ShouldBeNil)
		back, err := UnmarshalGroup(by)
		cv.So(err, cv.ShouldBeNil)

		cv.So(back.Name, cv.ShouldEqual, "outer")
		cv.So(back.Doc, cv.ShouldEqual, "settings")
		cv.So(back.Members(), cv.ShouldResemble, g.Members())
		cv.So(member(back, "i"), cv.ShouldEqual, int64(-7))
		cv.So(member(back, "f"), cv.ShouldEqual, 1.5)
		cv.So(member(back, "b"), cv.ShouldEqual, true)
		cv.So(member(back, "n"), cv.ShouldBeNil)
		cv.So(Repr(member(back, "l")), cv.ShouldEqual, "[1, 'two', [3]]")
		cv.So(member(back, "t"), cv.ShouldResemble, Tuple{int64(1), int64(2)})

		bd := member(back, "d").(*Dict)
		v, ok := bd.Get(int64(2))
		cv.So(ok, cv.ShouldBeTrue)
		cv.So(v, cv.ShouldResemble, Tuple{"t", 2.5})

		bsub := member(back, "sub").(*Group)
		cv.So(bsub.Name, cv.ShouldEqual, "inner")
		cv.So(member(bsub, "deep"), cv.ShouldEqual, "yes")
	})

	cv.Convey(`procedures and closures are left out of a snapshot`, t, func() {
		g := NewGroup("withcode")
		g.Set("keep", int64(1))
		g.Set("proc", &Procedure{Name: "p"})
		g.Set("fn", MustClosure("fn", func() int64 { return 1 }))
		g.Set("mixed", NewList(int64(1), &Procedure{Name: "q"}))

		by, err := MarshalGroup(g)
		cv.So(err, cv.ShouldBeNil)
		back, err := UnmarshalGroup(by)
		cv.So(err, cv.ShouldBeNil)
		cv.So(back.Members(), cv.ShouldResemble, []string{"keep", "mixed"})
		cv.So(Repr(member(back, "mixed")), cv.ShouldEqual, "[1, None]")
	})

	cv.Convey(`a group that contains itself cannot be saved`, t, func() {
		g := NewGroup("loop")
		g.Set("self", g)
		_, err := MarshalGroup(g)
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, TypeMismatch)

		// shared, non-cyclic references are fine
		shared := NewList(int64(1))
		h := NewGroup("twice")
		h.Set("a", shared)
		h.Set("b", shared)
		_, err = MarshalGroup(h)
		cv.So(err, cv.ShouldBeNil)
	})

	cv.Convey(`corrupt or truncated snapshots are IOFailure`, t, func() {
		by, err := MarshalGroup(NewGroup("x"))
		cv.So(err, cv.ShouldBeNil)
		_, err = UnmarshalGroup(by[:len(by)-1])
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, IOFailure)
		_, err = UnmarshalGroup(append(by, 0xc0))
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, IOFailure)
	})
}

func Test061_GroupSnapshotFiles(t *testing.T) {

	cv.Convey(`SaveGroupFile and LoadGroupFile go through the file system`, t, func() {
		path := filepath.Join(t.TempDir(), "g.snap")
		g := NewGroup("cfg")
		g.Set("port", int64(8080))
		cv.So(SaveGroupFile(g, path), cv.ShouldBeNil)
		back, err := LoadGroupFile(path)
		cv.So(err, cv.ShouldBeNil)
		cv.So(member(back, "port"), cv.ShouldEqual, int64(8080))

		_, err = LoadGroupFile(filepath.Join(t.TempDir(), "absent"))
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, IOFailure)
	})

	cv.Convey(`save_group and load_group are available to scripts`, t, func() {
		env, _ := newTestEnv()
		path := filepath.Join(t.TempDir(), "s.snap")
		env.SymbolTable().SetSymbol("snap_path", path, nil)
		v, err := env.EvalString(`
settings = group('settings')
settings.depth = 3
settings.names = ['a', 'b']
save_group(settings, snap_path)
restored = load_group(snap_path)
(restored.depth, restored.names[1])
`)
		cv.So(err, cv.ShouldBeNil)
		cv.So(Repr(v), cv.ShouldEqual, "(3, 'b')")
	})
}
