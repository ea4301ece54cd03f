package mace

import (
	"fmt"
	"os"
	"strings"
)

const (
	DefaultPrompt  = "mace> "
	DefaultPrompt2 = ".....> "
)

// BlockKeywords open a block when a complete line starts with one of
// them and ends with a colon.
var BlockKeywords = []string{"if", "for", "def", "try", "while"}

// blockFriends continue an open block at the block's own indent.
var blockFriends = map[string][]string{
	"if":    {"else", "elif"},
	"for":   {"else"},
	"def":   {},
	"try":   {"else", "except", "finally"},
	"while": {"else"},
}

// DefaultCommands may be written without call parentheses.
var DefaultCommands = []string{"run", "help", "show", "which", "cd"}

// Unit is one complete statement or top-level block, ready to parse.
type Unit struct {
	Text     string
	Filename string
	Line     int
}

type openBlock struct {
	key  string
	line int
	text string
}

type queued struct {
	text     string
	filename string
	line     int
	done     bool
}

// InputText assembles chunks of input text into indented statement
// units. Block bodies need no indentation from the user; the indent
// is synthesized from the open-block stack.
type InputText struct {
	Prompt  string
	Prompt2 string

	History *HistoryBuffer

	// Commands supplies the bare-command allow-list. When nil,
	// DefaultCommands is used.
	Commands func() []string

	queue    []queued
	filename string
	lineno   int
	curline  int
	curtext  string
	blocks   []openBlock
}

func NewInputText() *InputText {
	return &InputText{
		Prompt:   DefaultPrompt,
		Prompt2:  DefaultPrompt2,
		filename: "<stdin>",
	}
}

// scanText walks text tracking quotes and bracket pairs, skipping
// comments. It returns the pending end-of-string marker, the stack of
// closing delimiters still needed, and the line offset at which the
// open string began.
func scanText(text string) (eos string, delims []byte, strLine int) {
	i := 0
	line := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '\n':
			line++
		case c == '\'' || c == '"':
			eos = string(c)
			if strings.HasPrefix(text[i:], strings.Repeat(eos, 3)) {
				eos = strings.Repeat(eos, 3)
			}
			strLine = line
			end := findEndOfString(text, eos, i+len(eos))
			if end < 0 {
				return eos, delims, strLine
			}
			line += strings.Count(text[i:end], "\n")
			eos = ""
			i = end
			continue
		case c == '(':
			delims = append(delims, ')')
		case c == '[':
			delims = append(delims, ']')
		case c == '{':
			delims = append(delims, '}')
		case c == ')' || c == ']' || c == '}':
			if n := len(delims); n > 0 && delims[n-1] == c {
				delims = delims[:n-1]
			}
		case c == '#':
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				return "", delims, 0
			}
			i += nl
			continue
		}
		i++
	}
	return "", delims, 0
}

// findEndOfString returns the index just past the closing eos, or -1.
// A quote preceded by an odd number of backslashes does not close.
func findEndOfString(text, eos string, start int) int {
	for start <= len(text) {
		k := strings.Index(text[start:], eos)
		if k < 0 {
			return -1
		}
		at := start + k
		nslash := 0
		for j := at - 1; j >= 0 && text[j] == '\\'; j-- {
			nslash++
		}
		if nslash%2 == 1 {
			start = at + 1
			continue
		}
		return at + len(eos)
	}
	return -1
}

// IsComplete reports whether text has closed quotes and brackets and
// does not end with a line continuation.
func IsComplete(text string) bool {
	eos, delims, _ := scanText(text)
	return eos == "" && len(delims) == 0 &&
		!strings.HasSuffix(strings.TrimRight(text, " \t\r\n"), "\\")
}

// stripComments removes end-of-line comments outside of quotes.
func stripComments(text string) string {
	lines := strings.Split(text, "\n")
	for n, line := range lines {
		var quote byte
		for i := 0; i < len(line); i++ {
			c := line[i]
			if quote != 0 {
				if c == '\\' {
					i++
				} else if c == quote {
					quote = 0
				}
				continue
			}
			if c == '\'' || c == '"' {
				quote = c
			} else if c == '#' {
				line = line[:i]
				break
			}
		}
		lines[n] = strings.TrimRight(line, " \t\r")
	}
	return strings.Join(lines, "\n")
}

// leadingKey returns the first word of text, split before '(' and ':'.
func leadingKey(text string) string {
	t := strings.NewReplacer("(", " (", ":", " :").Replace(text)
	f := strings.Fields(t)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func blockStart(text string) string {
	txt := strings.TrimSpace(stripComments(text))
	key := leadingKey(txt)
	if containsStr(BlockKeywords, key) && strings.HasSuffix(txt, ":") {
		return key
	}
	return ""
}

// blockEnd recognizes endif, end if, #endif and #end if (and the same
// for every block keyword). A bare end or #end returns "end".
func blockEnd(text string) string {
	txt := strings.TrimSpace(text)
	var rest string
	switch {
	case strings.HasPrefix(txt, "#end"):
		rest = txt[4:]
	case strings.HasPrefix(txt, "end"):
		rest = txt[3:]
	default:
		return ""
	}
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "end"
	}
	key := strings.Fields(rest)[0]
	if containsStr(BlockKeywords, key) {
		return key
	}
	return ""
}

func (it *InputText) commands() []string {
	if it.Commands != nil {
		return it.Commands()
	}
	return DefaultCommands
}

// Put adds text to the assembler. A positive line gives the file line
// of the first line of text; otherwise numbering continues. An empty
// filename keeps the current one.
func (it *InputText) Put(text, filename string, line int, addHistory bool) {
	if filename != "" {
		it.filename = filename
	}
	if line > 0 {
		it.lineno = line - 1
	}
	if it.History != nil && addHistory {
		it.History.Add(text)
	}
	for _, txt := range strings.Split(text, "\n") {
		it.putLine(txt)
	}
}

func (it *InputText) putLine(txt string) {
	it.lineno++
	if it.curtext == "" {
		it.curtext = txt
		it.curline = it.lineno
	} else {
		it.curtext += "\n" + txt
	}
	if it.curtext == "" || !IsComplete(it.curtext) {
		return
	}

	start := blockStart(it.curtext)
	if start != "" {
		it.blocks = append(it.blocks, openBlock{key: start, line: it.curline, text: strings.TrimSpace(txt)})
	} else if end := blockEnd(it.curtext); end != "" && len(it.blocks) > 0 &&
		(end == "end" || end == it.blocks[len(it.blocks)-1].key) {
		// end markers are not queued; closing the outermost block
		// completes its unit
		it.blocks = it.blocks[:len(it.blocks)-1]
		if n := len(it.queue); n > 0 && len(it.blocks) == 0 {
			it.queue[n-1].done = true
		}
		VPrintf("closed block at %s:%d depth=%d", it.filename, it.curline, len(it.blocks))
		it.curtext = ""
		return
	}

	var friends []string
	if len(it.blocks) > 0 {
		friends = blockFriends[it.blocks[len(it.blocks)-1].key]
	}
	key := leadingKey(it.curtext)
	ilevel := len(it.blocks)
	if ilevel > 0 && (start != "" || containsStr(friends, key)) {
		ilevel--
	}
	indent := strings.Repeat(" ", 4*ilevel)
	stripped := strings.TrimSpace(it.curtext)
	pytext := indent + stripped

	if !strings.Contains(it.curtext, "\n") && containsStr(it.commands(), key) {
		argtext := strings.TrimSpace(stripped[len(key):])
		if !(strings.HasPrefix(argtext, "(") && strings.HasSuffix(argtext, ")")) &&
			!looksLikeOperator(argtext) {
			pytext = indent + key + "(" + argtext + ")"
		}
	}

	VPrintf("queued %s:%d depth=%d: %s", it.filename, it.curline, len(it.blocks), pytext)
	it.queue = append(it.queue, queued{
		text:     pytext,
		filename: it.filename,
		line:     it.curline,
		done:     len(it.blocks) == 0,
	})
	it.curtext = ""
}

// looksLikeOperator is true when the text after a command word shows
// the word is being used as an ordinary value (show = 1, run.x, ...).
func looksLikeOperator(argtext string) bool {
	if argtext == "" {
		return false
	}
	return strings.ContainsAny(argtext[:1], "=.[+-*/%&|^<>!,:;")
}

// Get pops the next complete top-level unit: a single statement, or a
// whole block with its lines joined. ok is false while more input is
// needed.
func (it *InputText) Get() (u Unit, ok bool) {
	n := -1
	for i, q := range it.queue {
		if q.done {
			n = i
			break
		}
	}
	if n < 0 {
		return Unit{}, false
	}
	lines := make([]string, n+1)
	for i, q := range it.queue[:n+1] {
		lines[i] = q.text
	}
	u = Unit{
		Text:     strings.Join(lines, "\n"),
		Filename: it.queue[0].filename,
		Line:     it.queue[0].line,
	}
	it.queue = it.queue[n+1:]
	return u, true
}

// Lines returns the queued, re-indented lines without consuming them.
func (it *InputText) Lines() []Unit {
	out := make([]Unit, len(it.queue))
	for i, q := range it.queue {
		out[i] = Unit{Text: q.text, Filename: q.filename, Line: q.line}
	}
	return out
}

// Len is the number of queued lines, complete or not.
func (it *InputText) Len() int { return len(it.queue) }

// Depth is the number of open blocks.
func (it *InputText) Depth() int { return len(it.blocks) }

func (it *InputText) Clear() {
	it.queue = nil
	it.curtext = ""
	it.blocks = nil
}

// Complete is true when no partial statement and no open block remain.
func (it *InputText) Complete() bool {
	return it.curtext == "" && len(it.blocks) == 0
}

func (it *InputText) NextPrompt() string {
	if it.Complete() {
		return it.Prompt
	}
	return it.Prompt2
}

// Incomplete describes what is still open, or returns nil.
func (it *InputText) Incomplete() *ErrorRecord {
	rec := &ErrorRecord{Kind: IncompleteInput, Filename: it.filename}
	switch {
	case it.curtext != "":
		eos, delims, strLine := scanText(it.curtext)
		rec.Line = it.curline
		rec.Expr = it.curtext
		switch {
		case eos != "":
			rec.Line += strLine
			rec.Msg = fmt.Sprintf("un-terminated string literal (%s)", eos)
		case len(delims) > 0:
			rec.Msg = fmt.Sprintf("un-closed bracket, expected '%c'", delims[len(delims)-1])
		default:
			rec.Msg = "incomplete statement"
		}
		return rec
	case len(it.blocks) > 0:
		b := it.blocks[len(it.blocks)-1]
		rec.Line = b.line
		rec.Expr = b.text
		rec.Msg = fmt.Sprintf("un-terminated '%s' block", b.key)
		return rec
	}
	return nil
}

// PutFile reads path and inserts its statements at the front of the
// queue, ahead of anything already queued. Partial input typed before
// the call is set aside during the load and restored afterwards. A
// file that ends inside a block or literal is rejected entirely.
func (it *InputText) PutFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &ErrorRecord{Kind: IOFailure, Filename: path,
			Msg: fmt.Sprintf("cannot read %s: %v", path, err)}
	}

	saved := *it
	it.queue = nil
	it.curtext = ""
	it.blocks = nil
	it.lineno = 0
	it.Put(string(data), path, 1, false)

	if rec := it.Incomplete(); rec != nil {
		if len(it.blocks) > 0 && it.curtext == "" {
			rec.Msg = fmt.Sprintf("File '%s' ends with un-terminated '%s'", path, it.blocks[len(it.blocks)-1].key)
		} else {
			rec.Msg = fmt.Sprintf("File '%s' ends with incomplete statement: %s", path, rec.Msg)
		}
		it.restore(&saved, nil)
		return 0, rec
	}

	loaded := it.queue
	nunits := 0
	for _, q := range loaded {
		if q.done {
			nunits++
		}
	}
	it.restore(&saved, loaded)
	return nunits, nil
}

func (it *InputText) restore(saved *InputText, front []queued) {
	it.queue = append(front, saved.queue...)
	it.filename = saved.filename
	it.lineno = saved.lineno
	it.curline = saved.curline
	it.curtext = saved.curtext
	it.blocks = saved.blocks
}
