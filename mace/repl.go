package mace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/glycerine/liner"
	"github.com/shurcooL/go-goon"
)

var (
	errorHeading = color.New(color.FgRed, color.Bold)
	errorDetail  = color.New(color.FgYellow)
	promptColor  = color.New(color.FgCyan)
)

// ErrorPrinter writes error records, the final "Kind: message" line
// highlighted.
type ErrorPrinter struct {
	W       io.Writer
	NoColor bool
}

func (ep *ErrorPrinter) Print(rec *ErrorRecord) {
	text := strings.TrimRight(rec.Format(), "\n")
	lines := strings.Split(text, "\n")
	last := len(lines) - 1
	for i, ln := range lines {
		switch {
		case ep.NoColor:
			fmt.Fprintln(ep.W, ln)
		case i == last:
			errorHeading.Fprintln(ep.W, ln)
		default:
			errorDetail.Fprintln(ep.W, ln)
		}
	}
}

// PrintSince shows the records appended after index start, each
// distinct location and message once.
func (ep *ErrorPrinter) PrintSince(env *Mace, start int) {
	seen := make(map[string]bool)
	for _, rec := range env.errors[min(start, len(env.errors)):] {
		key := fmt.Sprintf("%s:%d:%s", rec.Filename, rec.Line, rec.Error())
		if seen[key] {
			continue
		}
		seen[key] = true
		ep.Print(rec)
	}
}

func CountPreHook(env *Mace, name string, args []any) {
	env.callCounts["pre:"+name]++
}

func CountPostHook(env *Mace, name string, retval any) {
	env.callCounts["post:"+name]++
}

func showCallCounts(env *Mace) {
	counts := env.CallCounts()
	names := sortedKeys(counts)
	fmt.Fprintln(env.Stdout, "call counts:")
	for _, name := range names {
		fmt.Fprintf(env.Stdout, "\t%s: %d\n", name, counts[name])
	}
}

func displayValue(env *Mace) func(any) {
	return func(val any) {
		if val == ReturnedNone {
			return
		}
		fmt.Fprintln(env.Stdout, Repr(val))
	}
}

// processDotCommand handles the REPL's own commands; it reports
// whether line was one of them.
func processDotCommand(env *Mace, line string) (handled, quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || !strings.HasPrefix(parts[0], ".") {
		return false, false
	}
	st := env.SymbolTable()
	switch parts[0] {
	case ".quit", ".exit":
		return true, true
	case ".cd":
		if len(parts) < 2 {
			fmt.Printf("provide directory path to change to.\n")
			return true, false
		}
		if err := os.Chdir(parts[1]); err != nil {
			fmt.Printf("error: %s\n", err)
			return true, false
		}
		if pwd, err := os.Getwd(); err == nil {
			fmt.Printf("cur dir: %s\n", pwd)
		}
	case ".ls":
		fmt.Print(st.LocalGroup().Show())
	case ".gls":
		for _, g := range st.SearchGroups() {
			names := g.Members()
			sort.Strings(names)
			fmt.Printf("%s: %s\n", g.Name, strings.Join(names, " "))
		}
	case ".verb":
		Verbose = !Verbose
		fmt.Printf("verbose: %v\n", Verbose)
	case ".debug":
		env.SetDebugExec(true)
		Verbose = true
	case ".undebug":
		env.SetDebugExec(false)
		Verbose = false
	case ".dump":
		if len(parts) < 2 {
			fmt.Print(goon.Sdump(st.LocalGroup().Members()))
			return true, false
		}
		v, err := st.Resolve(parts[1], false)
		if err != nil {
			fmt.Println(err)
			return true, false
		}
		fmt.Print(goon.Sdump(v))
	default:
		return false, false
	}
	return true, false
}

func Repl(env *Mace, cfg *MaceConfig) {
	ep := &ErrorPrinter{W: os.Stdout, NoColor: cfg.NoColor}
	if cfg.Trace {
		// debug tracing
		env.SetDebugExec(true)
	}

	if !cfg.Quiet {
		if cfg.Sandboxed {
			fmt.Printf("mace [sandbox mode] version %s\n", Version())
		} else {
			fmt.Printf("mace version %s\n", Version())
		}
		fmt.Printf("press tab to get completion suggestions. Ctrl-d to exit.\n")
	}
	var pr *Prompter
	if cfg.NoLiner {
		// plain reader, for terminals the line editor cannot drive.
		pr = newPlainPrompter(env, bufio.NewReader(os.Stdin))
	} else {
		pr = NewPrompter(env)
	}
	defer pr.Close()

	input := env.Input()
	for {
		prompt := input.NextPrompt()
		if !cfg.NoColor && !input.Complete() {
			prompt = promptColor.Sprint(prompt)
		}
		line, err := pr.Getline(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				input.Clear()
				fmt.Println()
				continue
			}
			if err == io.EOF {
				if rec := input.Incomplete(); rec != nil {
					ep.Print(rec)
				}
				fmt.Println()
				break
			}
			fmt.Println(err)
			break
		}

		if input.Complete() {
			if handled, quit := processDotCommand(env, line); quit {
				break
			} else if handled {
				continue
			}
		}

		start := len(env.errors)
		env.Feed(line, "<stdin>", 0)
		env.ExecuteInput(displayValue(env))
		ep.PrintSince(env, start)
	}
	saveHistoryOnExit(env)
}

func saveHistoryOnExit(env *Mace) {
	h := env.History()
	if h == nil || h.Filename == "" {
		return
	}
	if err := h.Save(h.Filename, false, false, h.MaxLines); err != nil {
		VPrintf("could not save history to '%s': %v", h.Filename, err)
	}
}

// runScript runs fname and reports failure; it returns false when
// the script recorded errors.
func runScript(env *Mace, fname string, cfg *MaceConfig) bool {
	ep := &ErrorPrinter{W: os.Stderr, NoColor: cfg.NoColor}
	start := len(env.errors)
	_, err := env.RunFile(fname, "")
	if cfg.CountFuncCalls {
		showCallCounts(env)
	}
	if err != nil {
		ep.PrintSince(env, start)
		if len(env.errors) == start {
			fmt.Fprintln(os.Stderr, err)
		}
		return false
	}
	return true
}

// like main() for a standalone repl, now in library
func ReplMain(cfg *MaceConfig) {
	var env *Mace
	if cfg.Sandboxed {
		env = NewMaceSandbox()
	} else {
		env = NewMace()
	}
	env.StandardSetup()
	cfg.Apply(env)
	color.NoColor = color.NoColor || cfg.NoColor

	if cfg.HistoryFile != "" && !cfg.Sandboxed {
		env.SetHistory(NewHistoryBuffer(cfg.HistoryFile, cfg.MaxHistory))
	}

	if cfg.CpuProfile != "" {
		f, err := os.Create(cfg.CpuProfile)
		if err != nil {
			fmt.Println(err)
			os.Exit(-1)
		}
		err = pprof.StartCPUProfile(f)
		if err != nil {
			fmt.Println(err)
			os.Exit(-1)
		}
		defer pprof.StopCPUProfile()
	}

	if cfg.CountFuncCalls {
		env.AddPreHook(CountPreHook)
		env.AddPostHook(CountPostHook)
	}

	if err := env.RunInitScripts(cfg.InitFiles); err != nil {
		fmt.Fprintf(os.Stderr, "init script failed: %v\n", err)
		env.ClearErrors()
	}

	if cfg.Command != "" {
		_, err := env.EvalString(cfg.Command)
		if err != nil {
			(&ErrorPrinter{W: os.Stderr, NoColor: cfg.NoColor}).PrintSince(env, 0)
			os.Exit(1)
		}
		os.Exit(0)
	}

	runRepl := true
	args := cfg.Flags.Args()
	if len(args) > 0 {
		runRepl = false
		ok := runScript(env, args[0], cfg)
		if !ok && cfg.ExitOnFailure {
			os.Exit(-1)
		}
		if cfg.AfterScriptDontExit {
			env.ClearErrors()
			runRepl = true
		}
	}
	if runRepl {
		Repl(env, cfg)
	}

	if cfg.MemProfile != "" {
		f, err := os.Create(cfg.MemProfile)
		if err != nil {
			fmt.Println(err)
			os.Exit(-1)
		}
		defer f.Close()

		err = pprof.Lookup("heap").WriteTo(f, 1)
		if err != nil {
			fmt.Println(err)
			os.Exit(-1)
		}
	}
}
