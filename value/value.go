// Package value implements the tree value model exchanged between
// statements: byte strings, ordered lists, key-ordered maps, and placeholder
// markers used inside pre-compiled argument templates.
//
// Values are immutable by reference once handed off, and every value is
// owned by the [Arena] that produced it. A value handle is only meaningful
// while its arena is reachable; moving data between arenas is an explicit
// deep [Copy]. Arenas may carry a node budget, in which case build
// operations yield the invalid zero [Value] on exhaustion rather than
// allocating past the budget.
package value

import (
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Type identifies the kind of a [Value].
type Type uint8

const (
	// TypeInvalid is the type of the zero Value.
	TypeInvalid Type = iota
	// TypeString is a byte sequence (may contain NULs).
	TypeString
	// TypeList is an ordered sequence of values.
	TypeList
	// TypeMap is a mapping ordered by total key comparison.
	TypeMap
	// TypePlaceholder is a deferred substitution site, used only inside
	// argument templates.
	TypePlaceholder
)

// String returns a human-readable representation of the type.
func (t Type) String() string {
	switch t {
	case TypeInvalid:
		return "invalid"
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	case TypePlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// Arena is an allocation scope for values. All build operations go through
// an arena, and the resulting values are tagged with it. The zero Arena is
// not usable; use [NewArena] or [NewArenaSize].
type Arena struct {
	limit int // max live nodes, 0 means unbounded
	count int
}

// NewArena returns an unbounded arena.
func NewArena() *Arena {
	return &Arena{}
}

// NewArenaSize returns an arena limited to maxNodes value nodes. Build
// operations that would exceed the budget return the invalid zero Value.
// A non-positive maxNodes means unbounded.
func NewArenaSize(maxNodes int) *Arena {
	if maxNodes < 0 {
		maxNodes = 0
	}
	return &Arena{limit: maxNodes}
}

// Len returns the number of value nodes allocated from the arena.
func (a *Arena) Len() int {
	return a.count
}

// alloc returns a new node owned by the arena, or nil if the budget is
// exhausted.
func (a *Arena) alloc() *node {
	if a.limit > 0 && a.count >= a.limit {
		return nil
	}
	a.count++
	return &node{arena: a}
}

type mapEntry struct {
	key *node
	val *node
}

// node is the backing storage of a Value. Exactly one of the payload fields
// is meaningful, selected by typ.
type node struct {
	arena       *Arena
	str         []byte
	list        []*node
	entries     []mapEntry // maintained in total key order
	placeholder int
	typ         Type
}

// Value is a handle to a node within an arena. The zero Value is invalid;
// build operations return it to signal arena exhaustion.
type Value struct {
	n *node
}

// IsValid reports whether the value references an allocated node.
func (v Value) IsValid() bool {
	return v.n != nil
}

// Type returns the value's type, TypeInvalid for the zero Value.
func (v Value) Type() Type {
	if v.n == nil {
		return TypeInvalid
	}
	return v.n.typ
}

// Arena returns the arena that owns the value, nil for the zero Value.
func (v Value) Arena() *Arena {
	if v.n == nil {
		return nil
	}
	return v.n.arena
}

// NewString builds a string value from s.
func (a *Arena) NewString(s string) Value {
	return a.NewStringBytes([]byte(s))
}

// NewStringBytes builds a string value holding a copy of b. The byte
// sequence may contain NULs; length is explicit.
func (a *Arena) NewStringBytes(b []byte) Value {
	n := a.alloc()
	if n == nil {
		return Value{}
	}
	n.typ = TypeString
	n.str = append([]byte(nil), b...)
	return Value{n}
}

// NewList builds an empty list value.
func (a *Arena) NewList() Value {
	n := a.alloc()
	if n == nil {
		return Value{}
	}
	n.typ = TypeList
	return Value{n}
}

// NewMap builds an empty map value.
func (a *Arena) NewMap() Value {
	n := a.alloc()
	if n == nil {
		return Value{}
	}
	n.typ = TypeMap
	return Value{n}
}

// NewPlaceholder builds a placeholder value for the given non-negative
// substitution site id.
func (a *Arena) NewPlaceholder(id int) Value {
	if id < 0 {
		panic(`value: negative placeholder id`)
	}
	n := a.alloc()
	if n == nil {
		return Value{}
	}
	n.typ = TypePlaceholder
	n.placeholder = id
	return Value{n}
}

// StringBytes returns the byte content of a string value. The returned
// slice is owned by the arena and must not be modified.
func (v Value) StringBytes() []byte {
	v.check(TypeString)
	return v.n.str
}

// ListLen returns the number of elements of a list value.
func (v Value) ListLen() int {
	v.check(TypeList)
	return len(v.n.list)
}

// ListGet returns the i-th element of a list value.
func (v Value) ListGet(i int) Value {
	v.check(TypeList)
	if i < 0 || i >= len(v.n.list) {
		panic(`value: list index out of range`)
	}
	return Value{v.n.list[i]}
}

// ListAppend appends child to a list value. Both values must belong to the
// same arena; a list shares ownership with its elements.
func (v Value) ListAppend(child Value) {
	v.check(TypeList)
	if !child.IsValid() {
		panic(`value: append of invalid value`)
	}
	if child.n.arena != v.n.arena {
		panic(`value: append across arenas`)
	}
	v.n.list = append(v.n.list, child.n)
}

// MapLen returns the number of entries of a map value.
func (v Value) MapLen() int {
	v.check(TypeMap)
	return len(v.n.entries)
}

// MapInsert inserts or replaces the entry for key. Key and value must
// belong to the same arena as the map.
func (v Value) MapInsert(key, val Value) {
	v.check(TypeMap)
	if !key.IsValid() || !val.IsValid() {
		panic(`value: map insert of invalid value`)
	}
	if key.n.arena != v.n.arena || val.n.arena != v.n.arena {
		panic(`value: map insert across arenas`)
	}
	i, found := slices.BinarySearchFunc(v.n.entries, key.n, func(e mapEntry, k *node) int {
		return compareNodes(e.key, k)
	})
	if found {
		v.n.entries[i].val = val.n
		return
	}
	v.n.entries = slices.Insert(v.n.entries, i, mapEntry{key: key.n, val: val.n})
}

// MapLookup returns the value stored under key, if any. The key may belong
// to any arena; lookup is by comparison.
func (v Value) MapLookup(key Value) (Value, bool) {
	v.check(TypeMap)
	if !key.IsValid() {
		return Value{}, false
	}
	i, found := slices.BinarySearchFunc(v.n.entries, key.n, func(e mapEntry, k *node) int {
		return compareNodes(e.key, k)
	})
	if !found {
		return Value{}, false
	}
	return Value{v.n.entries[i].val}, true
}

// MapEntrySorted returns the i-th entry in total key order.
func (v Value) MapEntrySorted(i int) (key, val Value) {
	v.check(TypeMap)
	if i < 0 || i >= len(v.n.entries) {
		panic(`value: map entry index out of range`)
	}
	e := v.n.entries[i]
	return Value{e.key}, Value{e.val}
}

// PlaceholderID returns the substitution site id of a placeholder value.
func (v Value) PlaceholderID() int {
	v.check(TypePlaceholder)
	return v.n.placeholder
}

func (v Value) check(t Type) {
	if v.n == nil {
		panic(`value: use of invalid value`)
	}
	if v.n.typ != t {
		panic(`value: type mismatch: have ` + v.n.typ.String() + `, want ` + t.String())
	}
}

// Copy deep-copies src into dst, which may be a different arena. The result
// outlives any reference to the source. Returns the invalid zero Value if
// dst's budget is exhausted (the partially copied nodes still count against
// the budget).
func Copy(src Value, dst *Arena) Value {
	if !src.IsValid() {
		return Value{}
	}
	n := copyNode(src.n, dst)
	return Value{n}
}

func copyNode(src *node, dst *Arena) *node {
	n := dst.alloc()
	if n == nil {
		return nil
	}
	n.typ = src.typ
	switch src.typ {
	case TypeString:
		n.str = append([]byte(nil), src.str...)
	case TypeList:
		n.list = make([]*node, len(src.list))
		for i, c := range src.list {
			cc := copyNode(c, dst)
			if cc == nil {
				return nil
			}
			n.list[i] = cc
		}
	case TypeMap:
		n.entries = make([]mapEntry, len(src.entries))
		for i, e := range src.entries {
			k := copyNode(e.key, dst)
			if k == nil {
				return nil
			}
			v := copyNode(e.val, dst)
			if v == nil {
				return nil
			}
			n.entries[i] = mapEntry{key: k, val: v}
		}
	case TypePlaceholder:
		n.placeholder = src.placeholder
	}
	return n
}

// String returns a diagnostic representation of the value, for logging and
// error text. It is not the string accessor; see [Value.StringBytes].
func (v Value) String() string {
	var b strings.Builder
	v.format(&b)
	return b.String()
}

func (v Value) format(b *strings.Builder) {
	if v.n == nil {
		b.WriteString("<invalid>")
		return
	}
	switch v.n.typ {
	case TypeString:
		b.WriteString(strconv.Quote(string(v.n.str)))
	case TypeList:
		b.WriteByte('{')
		for i, c := range v.n.list {
			if i > 0 {
				b.WriteString(", ")
			}
			(Value{c}).format(b)
		}
		b.WriteByte('}')
	case TypeMap:
		b.WriteByte('[')
		for i, e := range v.n.entries {
			if i > 0 {
				b.WriteString(", ")
			}
			(Value{e.key}).format(b)
			b.WriteByte(':')
			(Value{e.val}).format(b)
		}
		b.WriteByte(']')
	case TypePlaceholder:
		b.WriteByte('#')
		b.WriteString(strconv.Itoa(v.n.placeholder))
	default:
		b.WriteString("<unknown>")
	}
}
