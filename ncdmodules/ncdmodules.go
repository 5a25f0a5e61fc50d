// Package ncdmodules provides the baseline statement-module library:
// value containers, control flow over templates (call, foreach), condition
// assertion, timers, logging, and interpreter control.
package ncdmodules

import (
	"fmt"

	"github.com/joeycumines/go-ncd/ncd"
	"github.com/joeycumines/go-ncd/value"
)

// Register registers every module of the library. It panics on collision
// with an already-registered type.
func Register(reg *ncd.Registry) {
	for _, m := range []*ncd.Module{
		varModule,
		varSetModule,
		callModule,
		ifModule,
		foreachModule,
		sleepModule,
		logModule,
		exitModule,
		argsModule,
	} {
		reg.MustRegister(m)
	}
}

// exactArgs validates arity.
func exactArgs(args value.Value, n int) error {
	if got := args.ListLen(); got != n {
		return &ncd.ArgumentError{Message: fmt.Sprintf("need %d arguments, have %d", n, got)}
	}
	return nil
}

// rangeArgs validates arity within [min, max].
func rangeArgs(args value.Value, min, max int) error {
	if got := args.ListLen(); got < min || got > max {
		return &ncd.ArgumentError{Message: fmt.Sprintf("need %d to %d arguments, have %d", min, max, got)}
	}
	return nil
}

// stringArg extracts argument i as a string.
func stringArg(args value.Value, i int) (string, error) {
	if i < 0 || i >= args.ListLen() {
		return "", &ncd.ArgumentError{Message: fmt.Sprintf("missing argument %d", i)}
	}
	v := args.ListGet(i)
	if v.Type() != value.TypeString {
		return "", &ncd.ArgumentError{Message: fmt.Sprintf("argument %d must be a string, have %s", i, v.Type())}
	}
	return string(v.StringBytes()), nil
}

// listArg extracts argument i as a list.
func listArg(args value.Value, i int) (value.Value, error) {
	if i < 0 || i >= args.ListLen() {
		return value.Value{}, &ncd.ArgumentError{Message: fmt.Sprintf("missing argument %d", i)}
	}
	v := args.ListGet(i)
	if v.Type() != value.TypeList {
		return value.Value{}, &ncd.ArgumentError{Message: fmt.Sprintf("argument %d must be a list, have %s", i, v.Type())}
	}
	return v, nil
}

// initFailure reports a construction failure from Init: log, flag, dead.
func initFailure(i *ncd.Instance, err error) {
	i.Logger().Err().
		Err(err).
		Log("statement init failed")
	i.SetError()
	i.Dead()
}
