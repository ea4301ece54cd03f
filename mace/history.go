package mace

import (
	"bufio"
	"os"
	"strings"
	"time"
)

const DefaultMaxHistory = 5000

// HistoryBuffer keeps the statements typed in a session, and persists
// them to a plain text file one statement per line.
type HistoryBuffer struct {
	Filename string
	MaxLines int
	Title    string

	buffer       []string
	sessionStart int
}

// NewHistoryBuffer loads filename when it exists.
func NewHistoryBuffer(filename string, maxLines int) *HistoryBuffer {
	if maxLines <= 0 {
		maxLines = DefaultMaxHistory
	}
	h := &HistoryBuffer{Filename: filename, MaxLines: maxLines, Title: "mace history"}
	if filename != "" {
		if err := h.Load(""); err != nil {
			VPrintf("history: %v", err)
		}
	}
	return h
}

func (h *HistoryBuffer) Add(text string) {
	if strings.TrimSpace(text) != "" {
		h.buffer = append(h.buffer, text)
	}
}

func (h *HistoryBuffer) Clear() {
	h.buffer = nil
	h.sessionStart = 0
}

func (h *HistoryBuffer) Lines() []string {
	return append([]string(nil), h.buffer...)
}

// SessionLines returns what was added since the last Load.
func (h *HistoryBuffer) SessionLines() []string {
	return append([]string(nil), h.buffer[h.sessionStart:]...)
}

// Load replaces the buffer with the contents of filename (or
// h.Filename). A missing file is not an error.
func (h *HistoryBuffer) Load(filename string) error {
	if filename != "" {
		h.Filename = filename
	}
	f, err := os.Open(h.Filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	h.Clear()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	comment := h.comment()
	for sc.Scan() {
		if line := sc.Text(); !strings.HasPrefix(line, comment) {
			h.Add(line)
		}
	}
	h.sessionStart = len(h.buffer)
	return sc.Err()
}

func (h *HistoryBuffer) comment() string {
	return "# " + h.Title + " saved"
}

// Save writes the history. The file starts with a comment line holding
// the save time; at most maxLines lines follow (h.MaxLines when
// maxLines <= 0). With sessionOnly only lines added since Load are
// written; trimLast drops the final line, usually the save command
// itself.
func (h *HistoryBuffer) Save(filename string, sessionOnly, trimLast bool, maxLines int) error {
	if filename == "" {
		filename = h.Filename
	}
	if maxLines <= 0 {
		maxLines = h.MaxLines
	}
	start := len(h.buffer) - maxLines
	if start < 0 {
		start = 0
	}
	if sessionOnly {
		start = h.sessionStart
	}
	end := len(h.buffer)
	if trimLast && end > 0 {
		end--
	}
	if start > end {
		start = end
	}
	comment := h.comment()
	out := []string{comment + " " + time.Now().Format(time.ANSIC)}
	for _, line := range h.buffer[start:end] {
		if !strings.HasPrefix(line, comment) {
			out = append(out, line)
		}
	}
	out = append(out, "")
	return os.WriteFile(filename, []byte(strings.Join(out, "\n")), 0644)
}
