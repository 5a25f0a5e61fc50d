package ncdmodules

import (
	"github.com/joeycumines/go-ncd/ncd"
	"github.com/joeycumines/go-ncd/value"
)

// var(v)
//
// Holds a value. The empty-named variable yields it.
//
// var::set(v)
//
// Replaces the value held by the var statement the method is invoked on.
var varModule = &ncd.Module{
	Type: "var",
	Init: func(i *ncd.Instance, args value.Value) {
		if err := exactArgs(args, 1); err != nil {
			initFailure(i, err)
			return
		}
		i.Mem = args.ListGet(0)
		i.Up()
	},
	GetVar: func(i *ncd.Instance, name string) (value.Value, bool) {
		if name != "" {
			return value.Value{}, false
		}
		return i.Mem.(value.Value), true
	},
}

var varSetModule = &ncd.Module{
	Type: "var::set",
	Init: func(i *ncd.Instance, args value.Value) {
		if err := exactArgs(args, 1); err != nil {
			initFailure(i, err)
			return
		}
		obj, _ := i.MethodObject()
		target := obj.Data().(*ncd.Instance)
		v := value.Copy(args.ListGet(0), target.Arena())
		if !v.IsValid() {
			initFailure(i, value.ErrArenaExhausted)
			return
		}
		target.Mem = v
		i.Up()
	},
}
