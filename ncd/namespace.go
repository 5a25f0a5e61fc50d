package ncd

import "github.com/joeycumines/go-ncd/value"

// lookupObject resolves a bare object name from the perspective of the
// statement at index from: the nearest preceding statement exporting that
// name, else a process special object (sub-process views such as the
// caller scope). The object itself is always returned; reads through it
// are gated by the exporting statement's state.
func (p *Process) lookupObject(from int, name string) (Object, bool) {
	limit := from
	if limit > p.ap {
		limit = p.ap
	}
	for j := limit - 1; j >= 0; j-- {
		if p.desc.Statements[j].Name != name {
			continue
		}
		if st := p.statements[j]; st != nil {
			return st.object(), true
		}
	}
	if o, ok := p.specials[name]; ok {
		return o, true
	}
	return Object{}, false
}

// resolveObject resolves a dotted object path left-to-right: the head
// names a statement or special object, every further segment a sub-object.
func (p *Process) resolveObject(from int, path []string) (Object, bool) {
	if len(path) == 0 {
		return Object{}, false
	}
	obj, ok := p.lookupObject(from, path[0])
	if !ok {
		return Object{}, false
	}
	for _, seg := range path[1:] {
		obj, ok = obj.GetObj(seg)
		if !ok {
			return Object{}, false
		}
	}
	return obj, true
}

// resolveVar resolves a dotted variable path. A bare name reads the named
// object's empty-named variable; for longer paths the final segment is
// tried as a sub-object (whose empty-named variable is read) before being
// read as a variable of the preceding object. Failure is absence; the call
// site decides whether absence is an error.
func (p *Process) resolveVar(from int, path []string) (value.Value, bool) {
	if len(path) == 0 {
		return value.Value{}, false
	}
	obj, ok := p.lookupObject(from, path[0])
	if !ok {
		return value.Value{}, false
	}
	if len(path) == 1 {
		return obj.GetVar("")
	}
	for _, seg := range path[1 : len(path)-1] {
		obj, ok = obj.GetObj(seg)
		if !ok {
			return value.Value{}, false
		}
	}
	last := path[len(path)-1]
	if sub, ok := obj.GetObj(last); ok {
		return sub.GetVar("")
	}
	return obj.GetVar(last)
}

// setSpecial installs a special object into the process namespace.
// Statements shadow specials; specials shadow nothing.
func (p *Process) setSpecial(name string, obj Object) {
	if p.specials == nil {
		p.specials = make(map[string]Object)
	}
	p.specials[name] = obj
}
