package mace

import (
	"bufio"
	"fmt"
	"sort"
	"strings"

	"github.com/glycerine/liner"
)

// Prompter reads lines for the REPL, through the line editor or,
// with noLiner, from a plain reader.
type Prompter struct {
	prompter *liner.State
	reader   *bufio.Reader
	env      *Mace
}

func NewPrompter(env *Mace) *Prompter {
	p := &Prompter{
		prompter: liner.NewLiner(),
		env:      env,
	}
	p.prompter.SetCtrlCAborts(true)
	p.prompter.SetCompleter(p.complete)
	if h := env.History(); h != nil {
		for _, line := range h.Lines() {
			p.prompter.AppendHistory(line)
		}
	}
	return p
}

func newPlainPrompter(env *Mace, reader *bufio.Reader) *Prompter {
	return &Prompter{reader: reader, env: env}
}

func (p *Prompter) Close() {
	if p.prompter != nil {
		p.prompter.Close()
	}
}

func (p *Prompter) Getline(prompt string) (line string, err error) {
	if p.prompter == nil {
		fmt.Fprint(OurStdout, prompt)
		return getLine(p.reader)
	}
	line, err = p.prompter.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		p.prompter.AppendHistory(line)
	}
	return line, nil
}

func getLine(reader *bufio.Reader) (string, error) {
	line := make([]byte, 0)
	for {
		linepart, hasMore, err := reader.ReadLine()
		if err != nil {
			return "", err
		}
		line = append(line, linepart...)
		if !hasMore {
			break
		}
	}
	return string(line), nil
}

// complete offers reserved words and every name visible through the
// search list that extends the identifier under the cursor.
func (p *Prompter) complete(line string) (c []string) {
	i := len(line)
	for i > 0 && (isNameChar(rune(line[i-1])) || line[i-1] == '.') {
		i--
	}
	head, word := line[:i], line[i:]
	if word == "" {
		return nil
	}
	seen := make(map[string]bool)
	add := func(name string) {
		if strings.HasPrefix(name, word) && !seen[name] {
			seen[name] = true
			c = append(c, head+name)
		}
	}
	if dot := strings.LastIndex(word, "."); dot > 0 {
		if g, err := p.env.symtable.GetGroup(word[:dot]); err == nil {
			for _, m := range g.Members() {
				add(word[:dot+1] + m)
			}
		}
		sort.Strings(c)
		return c
	}
	for _, kw := range ReservedWords {
		add(kw)
	}
	for _, g := range p.env.symtable.SearchGroups() {
		for _, m := range g.Members() {
			add(m)
		}
	}
	sort.Strings(c)
	return c
}
