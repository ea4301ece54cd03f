package mace

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

const TopGroupName = "_main"

// CoreGroupNames are created with every SymbolTable and never removed.
var CoreGroupNames = []string{"_sys", "_builtin", "_math"}

var groupDocs = map[string]string{
	"_sys":     "system-wide status variables, including the lists of groups used for finding variables",
	"_builtin": "core built-in functions",
	"_math":    "mathematical functions and constants",
}

var ReservedWords = []string{"and", "as", "assert", "break", "class",
	"continue", "def", "del", "elif", "else", "except", "exec", "finally",
	"for", "from", "global", "if", "import", "in", "is", "lambda", "not",
	"or", "pass", "raise", "return", "try", "while", "with", "yield",
	"True", "False", "None", "eval", "end"}

var reservedSet = func() map[string]bool {
	m := make(map[string]bool)
	for _, w := range ReservedWords {
		m[w] = true
	}
	return m
}()

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// isValidName reports whether s may be used as one segment of a symbol name.
func isValidName(s string) bool {
	return identRegex.MatchString(s) && !reservedSet[s]
}

// fixName turns arbitrary text into a valid symbol name.
func fixName(s string) string {
	if isValidName(s) {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || reservedSet[out] {
		out = "_" + out
	}
	return out
}

// SymbolCallback fires after SetSymbol assigns a watched name.
type SymbolCallback func(group *Group, name string, value any)

type frame struct {
	local  *Group
	module *Group
}

type callbackKey struct {
	group *Group
	name  string
}

type searchCache struct {
	local  *Group
	module *Group
	names  []string
	groups []*Group
}

// SymbolTable owns the namespace graph of one session: the top group,
// the core groups, the current frame and the frame stack, and the
// module cache. The table itself is the top group.
type SymbolTable struct {
	*Group

	Sys     *Group
	Builtin *Group
	Math    *Group

	local  *Group
	module *Group
	frames []frame

	modules    map[string]*Group
	moduleInfo map[string]*ModuleInfo

	cache     *searchCache
	callbacks map[callbackKey][]SymbolCallback

	// lastParent is the group in which the most recent
	// Resolve found its leading segment.
	lastParent *Group
}

func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{
		Group:      NewGroup(TopGroupName),
		modules:    make(map[string]*Group),
		moduleInfo: make(map[string]*ModuleInfo),
		callbacks:  make(map[callbackKey][]SymbolCallback),
	}
	st.Group.Set(TopGroupName, st.Group)
	for _, name := range CoreGroupNames {
		g := NewGroup(name)
		g.Doc = groupDocs[name]
		st.Group.Set(name, g)
		st.modules[name] = g
	}
	st.modules[TopGroupName] = st.Group
	st.Sys = st.mustGet("_sys")
	st.Builtin = st.mustGet("_builtin")
	st.Math = st.mustGet("_math")

	st.Sys.Set("searchGroups", NewList(TopGroupName))
	st.Sys.Set("path", NewList("."))
	st.Sys.Set("valid_commands", NewList())
	st.local = st.Group
	st.module = st.Group
	st.searchGroups(false)
	return st
}

func (st *SymbolTable) mustGet(name string) *Group {
	v, _ := st.Group.Get(name)
	return v.(*Group)
}

// Top is the root group, "_main".
func (st *SymbolTable) Top() *Group { return st.Group }

func (st *SymbolTable) LocalGroup() *Group  { return st.local }
func (st *SymbolTable) ModuleGroup() *Group { return st.module }

// SearchPath returns the mutable list of group names consulted
// after the local and module groups.
func (st *SymbolTable) SearchPath() *List {
	if l, ok := st.Sys.members["searchGroups"].(*List); ok {
		return l
	}
	l := NewList(TopGroupName)
	st.Sys.Set("searchGroups", l)
	return l
}

// ModulePath returns the directories searched by import.
func (st *SymbolTable) ModulePath() []string {
	l, ok := st.Sys.members["path"].(*List)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l.Items))
	for _, it := range l.Items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ValidCommands returns the bare-command allow-list.
func (st *SymbolTable) ValidCommands() []string {
	l, ok := st.Sys.members["valid_commands"].(*List)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l.Items))
	for _, it := range l.Items {
		out = append(out, ToStr(it))
	}
	return out
}

func (st *SymbolTable) AddValidCommand(names ...string) {
	l, ok := st.Sys.members["valid_commands"].(*List)
	if !ok {
		l = NewList()
		st.Sys.Set("valid_commands", l)
	}
	for _, n := range names {
		if indexOf(l.Items, n) < 0 {
			l.Items = append(l.Items, n)
		}
	}
}

func (st *SymbolTable) SaveFrame() {
	st.frames = append(st.frames, frame{st.local, st.module})
}

// RestoreFrame pops the last saved frame. On an empty stack it does nothing.
func (st *SymbolTable) RestoreFrame() {
	n := len(st.frames)
	if n == 0 {
		return
	}
	f := st.frames[n-1]
	st.frames = st.frames[:n-1]
	st.local, st.module = f.local, f.module
	st.searchGroups(false)
}

func (st *SymbolTable) SetFrame(local, module *Group) {
	if module == nil {
		module = st.Group
	}
	if local == nil {
		local = module
	}
	st.local, st.module = local, module
	st.searchGroups(false)
}

func (st *SymbolTable) FrameDepth() int { return len(st.frames) }

// SearchGroups returns the groups consulted by Resolve, in order.
func (st *SymbolTable) SearchGroups() []*Group {
	return st.searchGroups(false)
}

// ForceSearchGroups recomputes the search list even when none of
// its inputs appear to have changed.
func (st *SymbolTable) ForceSearchGroups() []*Group {
	return st.searchGroups(true)
}

func (st *SymbolTable) searchNames() []string {
	l := st.SearchPath()
	names := make([]string, 0, len(l.Items)+len(CoreGroupNames))
	for _, it := range l.Items {
		if s, ok := it.(string); ok {
			names = append(names, s)
		}
	}
	return names
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (st *SymbolTable) searchGroups(force bool) []*Group {
	names := st.searchNames()
	c := st.cache
	if !force && c != nil && c.local == st.local && c.module == st.module && sameNames(c.names, names) {
		return c.groups
	}
	var groups []*Group
	seen := make(map[*Group]bool)
	add := func(g *Group) {
		if g != nil && !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	add(st.local)
	add(st.module)
	for _, name := range names {
		add(st.groupByName(name))
	}
	for _, name := range CoreGroupNames {
		add(st.modules[name])
	}
	// the top group is always searched last, even when _main is not listed
	add(st.Group)
	st.cache = &searchCache{local: st.local, module: st.module, names: names, groups: groups}
	VPrintf("search groups recomputed: %d groups", len(groups))
	return groups
}

// groupByName finds a group for a search-path entry: a cached module,
// then a dotted path from the top group.
func (st *SymbolTable) groupByName(name string) *Group {
	if g, ok := st.modules[name]; ok {
		return g
	}
	var cur any = st.Group
	for _, part := range strings.Split(name, ".") {
		g, ok := cur.(*Group)
		if !ok {
			return nil
		}
		if cur, ok = g.Get(part); !ok {
			return nil
		}
	}
	g, _ := cur.(*Group)
	return g
}

func memberOf(x any, name string) (any, bool) {
	switch g := x.(type) {
	case *Group:
		return g.Get(name)
	case MemberGetter:
		return g.GetMember(name)
	}
	return nil, false
}

// Resolve finds the value of a possibly dotted name. With create,
// missing intermediate segments become empty groups and a missing
// leaf is set to nil.
func (st *SymbolTable) Resolve(name string, create bool) (any, error) {
	parts := strings.Split(name, ".")
	groups := st.searchGroups(false)
	st.lastParent = nil

	head := parts[0]
	var out any
	found := false
	if head == TopGroupName && len(parts) > 1 {
		out, found = st.Group, true
		st.lastParent = st.Group
	} else {
		for _, g := range groups {
			if v, ok := g.Get(head); ok {
				out, found = v, true
				st.lastParent = g
				break
			}
		}
	}
	if !found {
		if !create {
			return nil, newError(UnknownName, "name '%s' is not defined", head)
		}
		if err := validateName(head); err != nil {
			return nil, err
		}
		st.lastParent = st.local
		if len(parts) == 1 {
			st.local.Set(head, nil)
			return nil, nil
		}
		g := NewGroup(head)
		st.local.Set(head, g)
		out = g
	}

	for _, part := range parts[1:] {
		if v, ok := memberOf(out, part); ok {
			out = v
			continue
		}
		g, isGroup := out.(*Group)
		if !create || !isGroup {
			return nil, newError(UnknownMember, "cannot locate member '%s' of %s", part, Repr(out))
		}
		if err := validateName(part); err != nil {
			return nil, err
		}
		ng := NewGroup(part)
		g.Set(part, ng)
		out = ng
	}
	return out, nil
}

func validateName(n string) error {
	if !isValidName(n) {
		return newError(InvalidIdentifier, "invalid symbol name '%s'", n)
	}
	return nil
}

// SetSymbol assigns value to a possibly dotted name, relative to
// group (or the local group when group is nil), creating intermediate
// groups as needed.
func (st *SymbolTable) SetSymbol(name string, value any, group *Group) (any, error) {
	g := group
	if g == nil {
		g = st.local
	}
	names := strings.Split(name, ".")
	for _, n := range names {
		if err := validateName(n); err != nil {
			return nil, err
		}
	}
	child := names[len(names)-1]
	for _, n := range names[:len(names)-1] {
		v, ok := g.Get(n)
		if !ok {
			sub := NewGroup(n)
			g.Set(n, sub)
			g = sub
			continue
		}
		sub, isGroup := v.(*Group)
		if !isGroup {
			return nil, newError(TypeMismatch, "cannot create subgroup of non-group '%s'", Repr(v))
		}
		g = sub
	}
	g.Set(child, value)
	for _, cb := range st.callbacks[callbackKey{g, child}] {
		cb(g, child, value)
	}
	return value, nil
}

// GetParent returns the group holding name and the leaf member name.
// A single-segment name is looked up through the search list.
func (st *SymbolTable) GetParent(name string) (*Group, string, error) {
	if name == TopGroupName {
		return st.Group, "", nil
	}
	i := strings.LastIndex(name, ".")
	if i < 0 {
		for _, g := range st.searchGroups(false) {
			if g.Has(name) {
				return g, name, nil
			}
		}
		return nil, "", newError(UnknownName, "name '%s' is not defined", name)
	}
	v, err := st.Resolve(name[:i], false)
	if err != nil {
		return nil, "", err
	}
	g, ok := v.(*Group)
	if !ok {
		return nil, "", newError(TypeMismatch, "'%s' is not a group", name[:i])
	}
	child := name[i+1:]
	if !g.Has(child) {
		return nil, "", newError(UnknownMember, "cannot locate member '%s' of %s", child, g)
	}
	return g, child, nil
}

func (st *SymbolTable) DeleteSymbol(name string) error {
	parent, child, err := st.GetParent(name)
	if err != nil {
		return err
	}
	if child == "" {
		return newError(TypeMismatch, "cannot delete the top group")
	}
	delete(st.callbacks, callbackKey{parent, child})
	parent.Delete(child)
	return nil
}

func (st *SymbolTable) HasSymbol(name string) bool {
	_, err := st.Resolve(name, false)
	return err == nil
}

func (st *SymbolTable) GetGroup(name string) (*Group, error) {
	v, err := st.Resolve(name, false)
	if err != nil {
		return nil, err
	}
	g, ok := v.(*Group)
	if !ok {
		return nil, fmt.Errorf("symbol '%s' found, but %w", name, ErrNotAGroup)
	}
	return g, nil
}

func (st *SymbolTable) HasGroup(name string) bool {
	_, err := st.GetGroup(name)
	return err == nil
}

// CreateGroup makes a Group that is not placed anywhere in the table.
func (st *SymbolTable) CreateGroup(name string, members *Dict) *Group {
	g := NewGroup(name)
	if members != nil {
		for _, k := range members.keys {
			g.Set(ToStr(k), members.vals[k])
		}
	}
	return g
}

// NewGroup creates a Group and stores it under name in the local group.
func (st *SymbolTable) NewGroup(name string, members *Dict) (*Group, error) {
	name = fixName(name)
	g := st.CreateGroup(name, members)
	if _, err := st.SetSymbol(name, g, nil); err != nil {
		return nil, err
	}
	return g, nil
}

// Which returns the dotted path under which name is found, such as
// "_math.sqrt".
func (st *SymbolTable) Which(name string) (string, error) {
	if _, err := st.Resolve(name, false); err != nil {
		return "", err
	}
	parent := st.lastParent
	if parent == nil {
		return name, nil
	}
	if parent == st.Group && strings.HasPrefix(name, TopGroupName+".") {
		return name, nil
	}
	return parent.Name + "." + name, nil
}

// AddCallback watches name; cb runs after every SetSymbol of it.
func (st *SymbolTable) AddCallback(name string, cb SymbolCallback) error {
	if _, err := st.Resolve(name, false); err != nil {
		return newError(UnknownName, "cannot locate symbol '%s' for callback", name)
	}
	parent, child, err := st.GetParent(name)
	if err != nil {
		return err
	}
	key := callbackKey{parent, child}
	st.callbacks[key] = append(st.callbacks[key], cb)
	return nil
}

func (st *SymbolTable) ClearCallbacks(name string) {
	parent, child, err := st.GetParent(name)
	if err != nil {
		return
	}
	delete(st.callbacks, callbackKey{parent, child})
}

// AddPlugin installs host values into the named group, creating it if
// needed, and appends the group to the search path. Go functions are
// wrapped as Closures.
func (st *SymbolTable) AddPlugin(groupName string, syms map[string]any) (*Group, error) {
	g, err := st.GetGroup(groupName)
	if err != nil {
		g = NewGroup(groupName)
		if _, err = st.SetSymbol(groupName, g, st.Group); err != nil {
			return nil, err
		}
	}
	sp := st.SearchPath()
	if indexOf(sp.Items, groupName) < 0 {
		sp.Items = append(sp.Items, groupName)
	}
	st.searchGroups(true)
	for _, key := range sortedKeys(syms) {
		val := syms[key]
		if _, isCallable := val.(Callable); !isCallable && isGoFunc(val) {
			c, err := NewClosure(key, val)
			if err != nil {
				return nil, err
			}
			val = c
		}
		if _, err := st.SetSymbol(key, val, g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ShowGroup renders the members of the named group.
func (st *SymbolTable) ShowGroup(name string) string {
	g, err := st.GetGroup(name)
	if err != nil {
		return fmt.Sprintf("Group %s not found\n", name)
	}
	return g.Show()
}

func isGoFunc(x any) bool {
	return x != nil && reflect.TypeOf(x).Kind() == reflect.Func
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
