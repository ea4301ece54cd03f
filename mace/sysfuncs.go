package mace

import (
	"os"
	"path/filepath"
)

// SystemFunctions reach the file system, the clock or the module
// loader; the sandbox leaves them out.
func SystemFunctions() map[string]HostFunction {
	return map[string]HostFunction{
		"run":          RunFunction,
		"reload":       ReloadFunction,
		"cd":           ChdirFunction,
		"cwd":          CwdFunction,
		"save_history": SaveHistoryFunction,
		"show_history": ShowHistoryFunction,
		"save_group":   SaveGroupFunction,
		"load_group":   LoadGroupFunction,
		"sleep":        SleepFunction,
		"systime":      SysTimeFunction,
		"strftime":     StrftimeFunction,
	}
}

// RunFunction runs a script file in the current frame. A missing
// extension is supplied, and _sys.path is searched for relative
// names not found in the working directory.
func RunFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	path := ToStr(args[0])
	if filepath.Ext(path) == "" {
		path += ScriptExt
	}
	if !fileExists(path) && !filepath.IsAbs(path) {
		for _, dir := range env.symtable.ModulePath() {
			if p := filepath.Join(dir, path); fileExists(p) {
				path = p
				break
			}
		}
	}
	_, err := env.RunFile(path, "")
	return nil, err
}

func ReloadFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	switch m := args[0].(type) {
	case *Group:
		return env.ReloadModule(m)
	case string:
		return env.ImportModule(m, "", nil, nil, true)
	}
	return nil, newError(TypeMismatch, "reload() argument must be a module, not %s", TypeName(args[0]))
}

func ChdirFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	dir := ""
	if len(args) == 1 {
		dir = ToStr(args[0])
	} else if home, err := os.UserHomeDir(); err == nil {
		dir = home
	}
	if err := os.Chdir(dir); err != nil {
		return nil, newError(IOFailure, "cannot change directory to '%s': %v", dir, err)
	}
	return CwdFunction(env, "cwd", nil, kws)
}

func CwdFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 0); err != nil {
		return nil, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, newError(IOFailure, "%v", err)
	}
	return wd, nil
}

// SaveHistoryFunction leaves out its own call, the last line fed.
func SaveHistoryFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	if err := onlyKeywords(name, kws, "session_only", "maxlines"); err != nil {
		return nil, err
	}
	h := env.History()
	if h == nil {
		return nil, newError(UserError, "no history buffer attached to this session")
	}
	filename := h.Filename
	if len(args) == 1 {
		filename = ToStr(args[0])
	}
	maxLines, _ := asInt(kwArg(kws, "maxlines", int64(h.MaxLines)))
	err := h.Save(filename, Truthy(kwArg(kws, "session_only", false)), true, int(maxLines))
	if err != nil {
		return nil, newError(IOFailure, "cannot save history to '%s': %v", filename, err)
	}
	return nil, nil
}

func ShowHistoryFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return nil, err
	}
	h := env.History()
	if h == nil {
		return nil, nil
	}
	lines := h.Lines()
	n := int64(20)
	if len(args) == 1 {
		n, _ = asInt(args[0])
	}
	first := max(0, len(lines)-int(n))
	for i := first; i < len(lines); i++ {
		env.printf("%4d %s\n", i+1, lines[i])
	}
	return nil, nil
}

// SaveGroupFunction writes a binary snapshot: save_group(g, path).
func SaveGroupFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 2, 2); err != nil {
		return nil, err
	}
	g, err := groupArg(name, args[0])
	if err != nil {
		return nil, err
	}
	return nil, SaveGroupFile(g, ToStr(args[1]))
}

// LoadGroupFunction reads a snapshot and returns the group.
func LoadGroupFunction(env *Mace, name string, args []any, kws *Dict) (any, error) {
	if err := wantArgs(name, args, 1, 1); err != nil {
		return nil, err
	}
	return LoadGroupFile(ToStr(args[0]))
}
