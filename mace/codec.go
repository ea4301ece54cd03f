package mace

import (
	"fmt"
	"os"

	"github.com/tinylib/msgp/msgp"
)

// Snapshot layout. Scalars and lists map directly onto msgpack;
// groups, dicts and tuples are maps tagged by a "kind" entry.
// Procedures, closures and other host values are not persisted:
// group members holding them are left out and list items become nil.

const snapshotKind = "kind"

type groupEncoder struct {
	visiting map[any]bool
}

// MarshalGroup encodes g and everything reachable from it.
// A reference cycle is an error.
func MarshalGroup(g *Group) ([]byte, error) {
	enc := &groupEncoder{visiting: make(map[any]bool)}
	return enc.appendValue(nil, g)
}

func persistable(x any) bool {
	switch x.(type) {
	case nil, bool, int64, float64, string, *List, Tuple, *Dict, *Group:
		return true
	}
	return false
}

func (enc *groupEncoder) enter(ptr any) error {
	if enc.visiting[ptr] {
		return newError(TypeMismatch, "cannot save a self-referencing %s", TypeName(ptr))
	}
	enc.visiting[ptr] = true
	return nil
}

func (enc *groupEncoder) appendValue(o []byte, x any) ([]byte, error) {
	var err error
	switch v := x.(type) {
	case nil:
		return msgp.AppendNil(o), nil
	case bool:
		return msgp.AppendBool(o, v), nil
	case int64:
		return msgp.AppendInt64(o, v), nil
	case float64:
		return msgp.AppendFloat64(o, v), nil
	case string:
		return msgp.AppendString(o, v), nil

	case *List:
		if err = enc.enter(v); err != nil {
			return nil, err
		}
		defer delete(enc.visiting, v)
		o = msgp.AppendArrayHeader(o, uint32(len(v.Items)))
		for _, it := range v.Items {
			if o, err = enc.appendItem(o, it); err != nil {
				return nil, err
			}
		}
		return o, nil

	case Tuple:
		o = msgp.AppendMapHeader(o, 2)
		o = msgp.AppendString(o, snapshotKind)
		o = msgp.AppendString(o, "tuple")
		o = msgp.AppendString(o, "items")
		o = msgp.AppendArrayHeader(o, uint32(len(v)))
		for _, it := range v {
			if o, err = enc.appendItem(o, it); err != nil {
				return nil, err
			}
		}
		return o, nil

	case *Dict:
		if err = enc.enter(v); err != nil {
			return nil, err
		}
		defer delete(enc.visiting, v)
		o = msgp.AppendMapHeader(o, 2)
		o = msgp.AppendString(o, snapshotKind)
		o = msgp.AppendString(o, "dict")
		o = msgp.AppendString(o, "items")
		o = msgp.AppendArrayHeader(o, uint32(2*v.Len()))
		for _, k := range v.keys {
			if o, err = enc.appendValue(o, k); err != nil {
				return nil, err
			}
			if o, err = enc.appendItem(o, v.vals[k]); err != nil {
				return nil, err
			}
		}
		return o, nil

	case *Group:
		if err = enc.enter(v); err != nil {
			return nil, err
		}
		defer delete(enc.visiting, v)
		var keep []string
		for _, k := range v.order {
			if persistable(v.members[k]) {
				keep = append(keep, k)
			}
		}
		o = msgp.AppendMapHeader(o, 4)
		o = msgp.AppendString(o, snapshotKind)
		o = msgp.AppendString(o, "group")
		o = msgp.AppendString(o, "name")
		o = msgp.AppendString(o, v.Name)
		o = msgp.AppendString(o, "doc")
		o = msgp.AppendString(o, v.Doc)
		o = msgp.AppendString(o, "members")
		o = msgp.AppendMapHeader(o, uint32(len(keep)))
		for _, k := range keep {
			o = msgp.AppendString(o, k)
			if o, err = enc.appendValue(o, v.members[k]); err != nil {
				return nil, err
			}
		}
		return o, nil
	}
	return nil, fmt.Errorf("cannot encode %T", x)
}

func (enc *groupEncoder) appendItem(o []byte, x any) ([]byte, error) {
	if !persistable(x) {
		x = nil
	}
	return enc.appendValue(o, x)
}

// UnmarshalGroup decodes a snapshot written by MarshalGroup.
func UnmarshalGroup(b []byte) (*Group, error) {
	v, rest, err := readValue(b)
	if err != nil {
		return nil, newError(IOFailure, "corrupt group snapshot: %v", err)
	}
	if len(rest) != 0 {
		return nil, newError(IOFailure, "corrupt group snapshot: %d trailing bytes", len(rest))
	}
	g, ok := v.(*Group)
	if !ok {
		return nil, newError(IOFailure, "snapshot holds a %s, not a group", TypeName(v))
	}
	return g, nil
}

func readValue(b []byte) (any, []byte, error) {
	switch msgp.NextType(b) {
	case msgp.NilType:
		o, err := msgp.ReadNilBytes(b)
		return nil, o, err
	case msgp.BoolType:
		return wrapRead(msgp.ReadBoolBytes(b))
	case msgp.IntType:
		return wrapRead(msgp.ReadInt64Bytes(b))
	case msgp.UintType:
		u, o, err := msgp.ReadUint64Bytes(b)
		return int64(u), o, err
	case msgp.Float64Type:
		return wrapRead(msgp.ReadFloat64Bytes(b))
	case msgp.Float32Type:
		f, o, err := msgp.ReadFloat32Bytes(b)
		return float64(f), o, err
	case msgp.StrType:
		return wrapRead(msgp.ReadStringBytes(b))
	case msgp.ArrayType:
		items, o, err := readItems(b)
		if err != nil {
			return nil, nil, err
		}
		return &List{Items: items}, o, nil
	case msgp.MapType:
		return readTagged(b)
	}
	return nil, nil, fmt.Errorf("unexpected msgpack type %v", msgp.NextType(b))
}

func wrapRead[T any](v T, o []byte, err error) (any, []byte, error) {
	return v, o, err
}

func readItems(b []byte) ([]any, []byte, error) {
	sz, o, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, nil, err
	}
	items := make([]any, 0, sz)
	for i := uint32(0); i < sz; i++ {
		var v any
		if v, o, err = readValue(o); err != nil {
			return nil, nil, err
		}
		items = append(items, v)
	}
	return items, o, nil
}

func readTagged(b []byte) (any, []byte, error) {
	sz, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, nil, err
	}
	var kind, name, doc string
	var items []any
	members := NewGroup("")
	for i := uint32(0); i < sz; i++ {
		var field string
		if field, o, err = msgp.ReadStringBytes(o); err != nil {
			return nil, nil, err
		}
		switch field {
		case snapshotKind:
			kind, o, err = msgp.ReadStringBytes(o)
		case "name":
			name, o, err = msgp.ReadStringBytes(o)
		case "doc":
			doc, o, err = msgp.ReadStringBytes(o)
		case "items":
			items, o, err = readItems(o)
		case "members":
			var n uint32
			if n, o, err = msgp.ReadMapHeaderBytes(o); err != nil {
				return nil, nil, err
			}
			for j := uint32(0); j < n; j++ {
				var k string
				var v any
				if k, o, err = msgp.ReadStringBytes(o); err != nil {
					return nil, nil, err
				}
				if v, o, err = readValue(o); err != nil {
					return nil, nil, err
				}
				members.Set(k, v)
			}
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	switch kind {
	case "tuple":
		return Tuple(items), o, nil
	case "dict":
		d := NewDict()
		for i := 0; i+1 < len(items); i += 2 {
			if err := d.Set(items[i], items[i+1]); err != nil {
				return nil, nil, err
			}
		}
		return d, o, nil
	case "group":
		members.Name = name
		members.Doc = doc
		return members, o, nil
	}
	return nil, nil, fmt.Errorf("unknown snapshot kind '%s'", kind)
}

// SaveGroupFile writes a snapshot of g to path.
func SaveGroupFile(g *Group, path string) error {
	by, err := MarshalGroup(g)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, by, 0644); err != nil {
		return newError(IOFailure, "cannot write '%s': %v", path, err)
	}
	return nil
}

// LoadGroupFile reads a snapshot written by SaveGroupFile.
func LoadGroupFile(path string) (*Group, error) {
	by, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(IOFailure, "cannot read '%s': %v", path, err)
	}
	return UnmarshalGroup(by)
}
