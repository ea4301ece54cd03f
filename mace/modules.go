package mace

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ScriptExt is the file extension of script modules.
const ScriptExt = ".mac"

// HostModuleBuilder fills g with the members of a module implemented
// by the host program.
type HostModuleBuilder func(env *Mace, g *Group) error

// ModuleInfo describes a cached module.
type ModuleInfo struct {
	Name     string
	Path     string
	Checksum string
	Host     bool
	Loaded   time.Time
}

// RegisterHostModule makes name importable without a script file.
// Host modules take precedence over scripts of the same name.
func (env *Mace) RegisterHostModule(name string, builder HostModuleBuilder) {
	env.hostModules[name] = builder
}

func (env *Mace) ModuleInfo(name string) (*ModuleInfo, bool) {
	mi, ok := env.symtable.moduleInfo[name]
	return mi, ok
}

// Modules lists the names in the module cache, core groups included.
func (env *Mace) Modules() []string {
	names := make([]string, 0, len(env.symtable.modules))
	for k := range env.symtable.modules {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// findModule searches _sys.path for name.mac, dots in name
// becoming directory separators.
func (env *Mace) findModule(name string) (string, bool) {
	rel := filepath.Join(strings.Split(name, ".")...) + ScriptExt
	for _, dir := range env.symtable.ModulePath() {
		if dir == "" {
			dir = "."
		}
		p := filepath.Join(dir, rel)
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}

// loadModule builds or runs the module and stores it in the cache.
// A failed script leaves no cache entry.
func (env *Mace) loadModule(name string) (*Group, error) {
	st := env.symtable
	if builder, ok := env.hostModules[name]; ok {
		g := NewGroup(name)
		if err := builder(env, g); err != nil {
			return nil, newError(ImportFailed, "cannot build module '%s': %v", name, err)
		}
		st.modules[name] = g
		st.moduleInfo[name] = &ModuleInfo{Name: name, Host: true, Loaded: time.Now()}
		return g, nil
	}
	if env.sandboxed {
		return nil, newError(ImportFailed, "no module named '%s' (script modules are disabled in the sandbox)", name)
	}
	path, ok := env.findModule(name)
	if !ok {
		return nil, newError(ImportFailed, "no module named '%s' in _sys.path", name)
	}
	sum, err := FileChecksum(path)
	if err != nil {
		return nil, newError(ImportFailed, "cannot read module '%s': %v", name, err)
	}
	VPrintf("importing %s from %s (%s)", name, path, sum[:12])
	start := len(env.errors)
	g, err := env.RunFile(path, name)
	if err != nil {
		// the module's own records fold into the ImportFailed one
		env.errors = env.errors[:start]
		delete(st.modules, name)
		delete(st.moduleInfo, name)
		rec := asRecord(err, HostFault)
		return nil, newError(ImportFailed, "import of '%s' failed: %s: %s (%s line %d)",
			name, rec.KindName(), rec.Msg, path, rec.Line)
	}
	st.moduleInfo[name] = &ModuleInfo{Name: name, Path: path, Checksum: sum, Loaded: time.Now()}
	return g, nil
}

// ImportModule imports name, running it only when it is not cached
// or reload is set. With an empty fromlist the module is bound in the
// module group under asname (or name, dotted names creating
// subgroups); otherwise each listed member is bound, renamed through
// aliases. A fromlist of "*" binds every public member.
func (env *Mace) ImportModule(name, asname string, fromlist []string, aliases map[string]string, reload bool) (*Group, error) {
	st := env.symtable
	mod, cached := st.modules[name]
	if !cached || reload {
		var err error
		if mod, err = env.loadModule(name); err != nil {
			return nil, err
		}
		st.searchGroups(true)
	}

	dest := st.ModuleGroup()
	if len(fromlist) == 0 {
		target := name
		if asname != "" {
			target = asname
		}
		if _, err := st.SetSymbol(target, mod, dest); err != nil {
			return nil, err
		}
		return mod, nil
	}
	for _, sym := range fromlist {
		if sym == "*" {
			for _, m := range mod.Members() {
				v, _ := mod.Get(m)
				if _, err := st.SetSymbol(m, v, dest); err != nil {
					return nil, err
				}
			}
			continue
		}
		v, ok := mod.Get(sym)
		if !ok {
			return nil, newError(ImportFailed, "cannot import name '%s' from '%s'", sym, name)
		}
		target := sym
		if a := aliases[sym]; a != "" {
			target = a
		}
		if _, err := st.SetSymbol(target, v, dest); err != nil {
			return nil, err
		}
	}
	return mod, nil
}

// ReloadModule re-imports the module that g was loaded as.
func (env *Mace) ReloadModule(g *Group) (*Group, error) {
	for name, m := range env.symtable.modules {
		if m == g {
			if isCoreGroup(name) {
				return nil, newError(ImportFailed, "cannot reload core group '%s'", name)
			}
			return env.ImportModule(name, "", nil, nil, true)
		}
	}
	return nil, newError(ImportFailed, "group '%s' is not a loaded module", g.Name)
}

func isCoreGroup(name string) bool {
	return name == TopGroupName || containsStr(CoreGroupNames, name)
}
