package ncd

import "github.com/joeycumines/go-ncd/value"

// Object is a named handle exported into a namespace: by a statement, by a
// sub-process special (such as the caller scope), or by a module as a
// sub-object. It is a record of optional accessors; absent accessors
// resolve as absence. The zero Object is invalid.
type Object struct {
	getVar func(name string) (value.Value, bool)
	getObj func(name string) (Object, bool)
	data   any
	typ    string
	valid  bool
}

// NewObject builds an object. typ is the base type used for method
// dispatch ("" if the object cannot be a method target); data is an opaque
// payload retrievable with [Object.Data], conventionally the state a
// method module operates on. Either accessor may be nil.
func NewObject(typ string, data any, getVar func(name string) (value.Value, bool), getObj func(name string) (Object, bool)) Object {
	return Object{
		typ:    typ,
		data:   data,
		getVar: getVar,
		getObj: getObj,
		valid:  true,
	}
}

// Valid reports whether the object is usable.
func (o Object) Valid() bool {
	return o.valid
}

// Type returns the object's base type for method dispatch, "" if none.
func (o Object) Type() string {
	return o.typ
}

// Data returns the object's opaque payload.
func (o Object) Data() any {
	return o.data
}

// GetVar resolves a variable of the object, absence if unsupported.
func (o Object) GetVar(name string) (value.Value, bool) {
	if !o.valid || o.getVar == nil {
		return value.Value{}, false
	}
	return o.getVar(name)
}

// GetObj resolves a sub-object, absence if unsupported.
func (o Object) GetObj(name string) (Object, bool) {
	if !o.valid || o.getObj == nil {
		return Object{}, false
	}
	return o.getObj(name)
}
