package ncd

import (
	"fmt"
	"strings"

	"github.com/joeycumines/go-ncd/value"
)

// Module describes one statement kind: its type name, how it is dispatched,
// and its operation table. Operations other than Init are optional; absent
// entries degrade gracefully (no Die means destruction is synchronous, no
// GetVar means no variables, and so on).
type Module struct {
	// Type is the module's full type name, e.g. "var" or "var::set".
	Type string

	// Base is the type name seen by method dispatch. Defaults to the text
	// before the first "::" of Type, so "var" and "var::set" both have base
	// "var".
	Base string

	// Init constructs the statement. Required. It must, possibly later and
	// asynchronously, either bring the instance up ([Instance.Up]) or
	// report failure ([Instance.SetError] then [Instance.Dead]) exactly
	// once.
	Init func(i *Instance, args value.Value)

	// Die initiates destruction; it must eventually call [Instance.Dead].
	// If nil, destruction is synchronous: the instance goes dead as soon as
	// the scheduler requests it.
	Die func(i *Instance)

	// Clean is invoked when the scheduler has finished tearing down every
	// statement after this one following a regress, i.e. when it is safe
	// for the statement to make progress again.
	Clean func(i *Instance)

	// GetVar resolves a variable exported by the statement.
	GetVar func(i *Instance, name string) (value.Value, bool)

	// GetObj resolves a sub-object exported by the statement.
	GetObj func(i *Instance, name string) (Object, bool)

	// CanResolveWhenDown permits GetVar/GetObj while the statement is down
	// (clean or unclean). Resolution while dying is never permitted.
	CanResolveWhenDown bool
}

// base returns the effective base type.
func (m *Module) base() string {
	if m.Base != "" {
		return m.Base
	}
	if i := strings.Index(m.Type, "::"); i >= 0 {
		return m.Type[:i]
	}
	return m.Type
}

// methodName returns the method suffix of the type name, if any: the text
// after the last "::".
func (m *Module) methodName() (string, bool) {
	if i := strings.LastIndex(m.Type, "::"); i >= 0 {
		return m.Type[i+2:], true
	}
	return "", false
}

type methodKey struct {
	base   string
	method string
}

// Registry is a catalog of statement kinds, indexed by type name and, for
// "::" method types, by (base type, method name). It is populated before
// the interpreter starts and immutable afterwards; the interpreter
// snapshots it at construction.
type Registry struct {
	modules map[string]*Module
	methods map[methodKey]*Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]*Module),
		methods: make(map[methodKey]*Module),
	}
}

// Register adds a module. The type name must be unique, Init must be set,
// and a method type must not collide with another method of the same base.
func (r *Registry) Register(m *Module) error {
	if m == nil {
		return fmt.Errorf(`ncd: register nil module`)
	}
	if m.Type == "" {
		return fmt.Errorf(`ncd: register module with empty type`)
	}
	if m.Init == nil {
		return fmt.Errorf("ncd: module %q has no init", m.Type)
	}
	if _, ok := r.modules[m.Type]; ok {
		return fmt.Errorf("ncd: duplicate module type %q", m.Type)
	}
	if method, ok := m.methodName(); ok {
		k := methodKey{base: m.base(), method: method}
		if _, ok := r.methods[k]; ok {
			return fmt.Errorf("ncd: duplicate method %q on base %q", method, k.base)
		}
		r.methods[k] = m
	}
	r.modules[m.Type] = m
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// registration at module-library load time.
func (r *Registry) MustRegister(m *Module) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Lookup returns the module registered under the given type name.
func (r *Registry) Lookup(typeName string) (*Module, bool) {
	m, ok := r.modules[typeName]
	return m, ok
}

// LookupMethod resolves a method invocation: given the base type of the
// method object and the method name, it returns the single matching module
// (e.g. base "var" and method "set" resolve to the module registered as
// "var::set").
func (r *Registry) LookupMethod(baseType, method string) (*Module, bool) {
	m, ok := r.methods[methodKey{base: baseType, method: method}]
	return m, ok
}
