package mace

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Group is the generic container of the namespace: a named,
// insertion-ordered mapping from member name to value. Groups may
// reference one another freely, cycles included; nothing owns a Group.
type Group struct {
	Name string
	Doc  string

	members map[string]any
	order   []string
}

var groupSerial int64

// names never listed by Members()
var privateMembers = map[string]bool{
	"__name__":    true,
	"__doc__":     true,
	"__private":   true,
	"_subgroups":  true,
	"_members":    true,
	"_repr_html_": true,
}

func NewGroup(name string) *Group {
	if name == "" {
		name = fmt.Sprintf("0x%06x", atomic.AddInt64(&groupSerial, 1))
	}
	return &Group{
		Name:    name,
		members: make(map[string]any),
	}
}

func (g *Group) String() string {
	if g.Name != "" {
		return "<Group " + g.Name + ">"
	}
	return "<Group>"
}

func (g *Group) Get(name string) (any, bool) {
	switch name {
	case "__name__":
		return g.Name, true
	case "__doc__":
		return g.Doc, true
	}
	v, ok := g.members[name]
	return v, ok
}

func (g *Group) Has(name string) bool {
	_, ok := g.Get(name)
	return ok
}

// GetMember satisfies MemberGetter.
func (g *Group) GetMember(name string) (any, bool) {
	return g.Get(name)
}

// SetMember satisfies MemberSetter.
func (g *Group) SetMember(name string, val any) error {
	g.Set(name, val)
	return nil
}

func (g *Group) Set(name string, val any) {
	switch name {
	case "__name__":
		g.Name = ToStr(val)
		return
	case "__doc__":
		g.Doc = ToStr(val)
		return
	}
	if _, already := g.members[name]; !already {
		g.order = append(g.order, name)
	}
	g.members[name] = val
}

func (g *Group) Delete(name string) bool {
	if _, ok := g.members[name]; !ok {
		return false
	}
	delete(g.members, name)
	for i, k := range g.order {
		if k == name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

func isHiddenMember(name string) bool {
	if privateMembers[name] {
		return true
	}
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// Members returns the public member names in insertion order.
func (g *Group) Members() []string {
	out := make([]string, 0, len(g.order))
	for _, k := range g.order {
		if !isHiddenMember(k) {
			out = append(out, k)
		}
	}
	return out
}

// Subgroups returns the names of members that are themselves groups.
func (g *Group) Subgroups() []string {
	var out []string
	for _, k := range g.Members() {
		if _, ok := g.members[k].(*Group); ok {
			out = append(out, k)
		}
	}
	return out
}

func (g *Group) Len() int {
	return len(g.Members())
}

// Copy is shallow: member values are shared with g.
func (g *Group) Copy() *Group {
	out := NewGroup("")
	out.Doc = g.Doc
	for _, k := range g.order {
		out.Set(k, g.members[k])
	}
	return out
}

// HasAll reports whether every name is a member of g.
func (g *Group) HasAll(names ...string) bool {
	for _, n := range names {
		if !g.Has(n) {
			return false
		}
	}
	return true
}

// Show lists the members of g, sorted by name, one per line.
func (g *Group) Show() string {
	members := g.Members()
	sorted := make([]string, len(members))
	copy(sorted, members)
	sort.Strings(sorted)
	var b strings.Builder
	fmt.Fprintf(&b, "== %s: %d symbols ==\n", g.Name, len(sorted))
	for _, k := range sorted {
		fmt.Fprintf(&b, "  %s: %s\n", k, Repr(g.members[k]))
	}
	return b.String()
}

// IsGroup reports whether x is a Group that carries all of the given members.
func IsGroup(x any, members ...string) bool {
	g, ok := x.(*Group)
	if !ok {
		return false
	}
	return g.HasAll(members...)
}
