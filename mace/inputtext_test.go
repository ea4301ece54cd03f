package mace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	cv "github.com/glycerine/goconvey/convey"
)

func feedLines(it *InputText, lines ...string) {
	for _, ln := range lines {
		it.Put(ln, "", 0, false)
	}
}

func Test001_BlockRoundTrip(t *testing.T) {

	cv.Convey(`an if block typed without indentation comes back as two indented lines and one unit`, t, func() {
		it := NewInputText()
		it.Put("if x > 0 :", "<t>", 1, false)
		cv.So(it.Depth(), cv.ShouldEqual, 1)
		cv.So(it.Complete(), cv.ShouldBeFalse)

		feedLines(it, "y = 1", "end if")
		cv.So(it.Depth(), cv.ShouldEqual, 0)

		lines := it.Lines()
		cv.So(len(lines), cv.ShouldEqual, 2)
		cv.So(lines[0].Text, cv.ShouldEqual, "if x > 0 :")
		cv.So(lines[1].Text, cv.ShouldEqual, "    y = 1")
		cv.So(lines[1].Line, cv.ShouldEqual, 2)

		u, ok := it.Get()
		cv.So(ok, cv.ShouldBeTrue)
		cv.So(u.Text, cv.ShouldEqual, "if x > 0 :\n    y = 1")
		cv.So(u.Line, cv.ShouldEqual, 1)
		cv.So(u.Filename, cv.ShouldEqual, "<t>")

		_, ok = it.Get()
		cv.So(ok, cv.ShouldBeFalse)
	})
}

func Test002_FriendKeywordsDedent(t *testing.T) {

	cv.Convey(`else inside an open if is queued at the if's own indent`, t, func() {
		it := NewInputText()
		feedLines(it, "if a:", "b = 1", "elif c:", "b = 2", "else:", "b = 3", "endif")
		var texts []string
		for _, u := range it.Lines() {
			texts = append(texts, u.Text)
		}
		cv.So(texts, cv.ShouldResemble, []string{
			"if a:", "    b = 1", "elif c:", "    b = 2", "else:", "    b = 3"})
	})

	cv.Convey(`try handlers dedent the same way`, t, func() {
		it := NewInputText()
		feedLines(it, "try:", "x = 1", "except KeyError as e:", "x = 2", "finally:", "x = 3", "#end try")
		var texts []string
		for _, u := range it.Lines() {
			texts = append(texts, u.Text)
		}
		cv.So(texts, cv.ShouldResemble, []string{
			"try:", "    x = 1", "except KeyError as e:", "    x = 2", "finally:", "    x = 3"})
		_, ok := it.Get()
		cv.So(ok, cv.ShouldBeTrue)
	})
}

func Test003_NestedBlocksWaitForOutermostEnd(t *testing.T) {

	cv.Convey(`a nested block is not ready until the outer block closes`, t, func() {
		it := NewInputText()
		feedLines(it, "for i in range(3):", "if i:", "x = i")
		cv.So(it.Depth(), cv.ShouldEqual, 2)
		cv.So(it.NextPrompt(), cv.ShouldEqual, DefaultPrompt2)

		feedLines(it, "end if")
		_, ok := it.Get()
		cv.So(ok, cv.ShouldBeFalse)

		feedLines(it, "end for")
		u, ok := it.Get()
		cv.So(ok, cv.ShouldBeTrue)
		cv.So(u.Text, cv.ShouldEqual, "for i in range(3):\n    if i:\n        x = i")
		cv.So(it.NextPrompt(), cv.ShouldEqual, DefaultPrompt)
	})
}

func Test004_IncompleteLiteralsAndBrackets(t *testing.T) {

	cv.Convey(`statements spanning lines are joined once brackets close`, t, func() {
		it := NewInputText()
		it.Put("x = [1,\n2,\n3]", "<t>", 10, false)
		u, ok := it.Get()
		cv.So(ok, cv.ShouldBeTrue)
		cv.So(u.Line, cv.ShouldEqual, 10)
		cv.So(strings.Count(u.Text, "\n"), cv.ShouldEqual, 2)
	})

	cv.Convey(`an open triple-quoted string is reported as incomplete input`, t, func() {
		it := NewInputText()
		it.Put("s = '''abc", "<t>", 1, false)
		cv.So(it.Complete(), cv.ShouldBeFalse)
		rec := it.Incomplete()
		cv.So(rec, cv.ShouldNotBeNil)
		cv.So(rec.Kind, cv.ShouldEqual, IncompleteInput)
		cv.So(rec.Msg, cv.ShouldContainSubstring, "un-terminated string")

		it.Put("def'''", "", 0, false)
		cv.So(it.Complete(), cv.ShouldBeTrue)
		cv.So(it.Incomplete(), cv.ShouldBeNil)
	})

	cv.Convey(`an open block is described by its keyword and line`, t, func() {
		it := NewInputText()
		it.Put("x = 1\nwhile True:", "<t>", 1, false)
		rec := it.Incomplete()
		cv.So(rec.Msg, cv.ShouldEqual, "un-terminated 'while' block")
		cv.So(rec.Line, cv.ShouldEqual, 2)
	})

	cv.Convey(`quotes inside comments and escaped quotes do not confuse completeness`, t, func() {
		cv.So(IsComplete(`x = 1 # don't`), cv.ShouldBeTrue)
		cv.So(IsComplete(`s = 'it\'s'`), cv.ShouldBeTrue)
		cv.So(IsComplete(`f(1,`), cv.ShouldBeFalse)
		cv.So(IsComplete("x = 1 + \\"), cv.ShouldBeFalse)
	})
}

func Test005_BareCommands(t *testing.T) {

	cv.Convey(`an allow-listed command word gets call parentheses`, t, func() {
		it := NewInputText()
		feedLines(it, "show x", "show = 1", "show(y)", "print x")
		lines := it.Lines()
		cv.So(lines[0].Text, cv.ShouldEqual, "show(x)")
		cv.So(lines[1].Text, cv.ShouldEqual, "show = 1")
		cv.So(lines[2].Text, cv.ShouldEqual, "show(y)")
		cv.So(lines[3].Text, cv.ShouldEqual, "print x")
	})

	cv.Convey(`the allow-list can be supplied by the caller`, t, func() {
		it := NewInputText()
		it.Commands = func() []string { return []string{"print"} }
		feedLines(it, "print 'hi'")
		cv.So(it.Lines()[0].Text, cv.ShouldEqual, "print('hi')")
	})
}

func Test006_PutFileGoesToTheFront(t *testing.T) {

	cv.Convey(`units from a loaded file run before input queued earlier, and partial input survives`, t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.mac")
		err := os.WriteFile(path, []byte("a = 1\n\nif a:\nb = 2\nend\n"), 0644)
		cv.So(err, cv.ShouldBeNil)

		it := NewInputText()
		it.Put("c = 3", "<stdin>", 1, false)
		it.Put("d = (4,", "", 0, false)

		n, err := it.PutFile(path)
		cv.So(err, cv.ShouldBeNil)
		cv.So(n, cv.ShouldEqual, 2)

		u, _ := it.Get()
		cv.So(u.Text, cv.ShouldEqual, "a = 1")
		cv.So(u.Filename, cv.ShouldEqual, path)
		cv.So(u.Line, cv.ShouldEqual, 1)

		u, _ = it.Get()
		cv.So(u.Text, cv.ShouldEqual, "if a:\n    b = 2")
		cv.So(u.Line, cv.ShouldEqual, 3)

		u, _ = it.Get()
		cv.So(u.Text, cv.ShouldEqual, "c = 3")

		cv.So(it.Complete(), cv.ShouldBeFalse)
		it.Put("5)", "", 0, false)
		u, ok := it.Get()
		cv.So(ok, cv.ShouldBeTrue)
		cv.So(u.Text, cv.ShouldEqual, "d = (4,\n5)")
	})

	cv.Convey(`a file ending inside a block is rejected and leaves the queue alone`, t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "bad.mac")
		cv.So(os.WriteFile(path, []byte("if a:\nb = 2\n"), 0644), cv.ShouldBeNil)

		it := NewInputText()
		it.Put("c = 3", "<stdin>", 1, false)
		n, err := it.PutFile(path)
		cv.So(n, cv.ShouldEqual, 0)
		cv.So(err, cv.ShouldNotBeNil)
		rec := err.(*ErrorRecord)
		cv.So(rec.Kind, cv.ShouldEqual, IncompleteInput)
		cv.So(rec.Msg, cv.ShouldContainSubstring, "ends with un-terminated 'if'")
		cv.So(it.Len(), cv.ShouldEqual, 1)
		cv.So(it.Depth(), cv.ShouldEqual, 0)
	})

	cv.Convey(`a missing file is an IOFailure`, t, func() {
		it := NewInputText()
		_, err := it.PutFile(filepath.Join(t.TempDir(), "nope.mac"))
		cv.So(err.(*ErrorRecord).Kind, cv.ShouldEqual, IOFailure)
	})
}

func Test007_HistoryRecordsFedText(t *testing.T) {

	cv.Convey(`Put with addHistory appends to the attached history buffer`, t, func() {
		it := NewInputText()
		it.History = NewHistoryBuffer("", 10)
		it.Put("x = 1", "<stdin>", 0, true)
		it.Put("y = 2", "<stdin>", 0, false)
		cv.So(it.History.Lines(), cv.ShouldResemble, []string{"x = 1"})
	})
}
