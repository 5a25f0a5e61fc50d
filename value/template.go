package value

import (
	"errors"
	"fmt"
)

var (
	// ErrArenaExhausted is returned when materialization runs out of arena
	// budget.
	ErrArenaExhausted = errors.New(`value: arena budget exhausted`)

	// ErrPlaceholderKey is returned by NewTemplate for a placeholder in map
	// key position; substituting a key would invalidate the map's ordering.
	ErrPlaceholderKey = errors.New(`value: placeholder in map key position`)
)

// replacement is one entry of a template's replacement program: the
// placeholder id and the path of child indexes leading to the substitution
// site. For list nodes a path element is the element index; for map nodes
// it is the entry index, targeting the entry's value.
type replacement struct {
	path []int
	id   int
}

// Template is an immutable value tree plus a replacement program, enabling
// O(nodes + substitutions) materialization of concrete arguments without
// reparsing. Built once per compiled statement, materialized once per
// statement instantiation.
type Template struct {
	arena *Arena
	root  Value
	prog  []replacement
}

// NewTemplate builds a template from v. The tree is deep-copied into a
// private arena; placeholder sites are recorded in depth-first tree order.
// A placeholder in map key position is an error.
func NewTemplate(v Value) (*Template, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf(`value: template from invalid value`)
	}
	t := &Template{arena: NewArena()}
	t.root = Copy(v, t.arena)
	if err := t.scan(t.root.n, nil); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Template) scan(n *node, path []int) error {
	switch n.typ {
	case TypePlaceholder:
		t.prog = append(t.prog, replacement{
			path: append([]int(nil), path...),
			id:   n.placeholder,
		})
	case TypeList:
		for i, c := range n.list {
			if err := t.scan(c, append(path, i)); err != nil {
				return err
			}
		}
	case TypeMap:
		for i, e := range n.entries {
			if hasPlaceholder(e.key) {
				return ErrPlaceholderKey
			}
			if err := t.scan(e.val, append(path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasPlaceholder(n *node) bool {
	switch n.typ {
	case TypePlaceholder:
		return true
	case TypeList:
		for _, c := range n.list {
			if hasPlaceholder(c) {
				return true
			}
		}
	case TypeMap:
		for _, e := range n.entries {
			if hasPlaceholder(e.key) || hasPlaceholder(e.val) {
				return true
			}
		}
	}
	return false
}

// Value returns the template's literal tree (placeholders included). The
// returned value is owned by the template and must not be retained past it.
func (t *Template) Value() Value {
	return t.root
}

// PlaceholderIDs returns the placeholder ids of the replacement program, in
// tree order. The returned slice is a fresh copy on each call.
func (t *Template) PlaceholderIDs() []int {
	ids := make([]int, len(t.prog))
	for i, r := range t.prog {
		ids[i] = r.id
	}
	return ids
}

// Materialize instantiates the template into dst, replacing every
// placeholder site with the value produced by subst for its id. Substituted
// values are deep-copied into dst, so the result is independent of their
// source arenas. With an empty replacement program the result compares
// equal to the template literal, and subst may be nil.
func (t *Template) Materialize(dst *Arena, subst func(id int) (Value, error)) (Value, error) {
	root := Copy(t.root, dst)
	if !root.IsValid() {
		return Value{}, ErrArenaExhausted
	}
	if len(t.prog) > 0 && subst == nil {
		panic(`value: nil substitution func for template with placeholders`)
	}
	for _, r := range t.prog {
		v, err := subst(r.id)
		if err != nil {
			return Value{}, err
		}
		c := Copy(v, dst)
		if !c.IsValid() {
			return Value{}, ErrArenaExhausted
		}
		if len(r.path) == 0 {
			root = c
			continue
		}
		parent := root.n
		for _, i := range r.path[:len(r.path)-1] {
			parent = childNode(parent, i)
		}
		last := r.path[len(r.path)-1]
		switch parent.typ {
		case TypeList:
			parent.list[last] = c.n
		case TypeMap:
			parent.entries[last].val = c.n
		default:
			panic(`value: corrupt template path`)
		}
	}
	return root, nil
}

func childNode(n *node, i int) *node {
	switch n.typ {
	case TypeList:
		return n.list[i]
	case TypeMap:
		return n.entries[i].val
	default:
		panic(`value: corrupt template path`)
	}
}
