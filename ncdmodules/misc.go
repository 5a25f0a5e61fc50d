package ncdmodules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joeycumines/go-ncd/ncd"
	"github.com/joeycumines/go-ncd/value"
	"github.com/joeycumines/logiface"
)

// log(level, args...)
//
// Emits the string arguments, space-joined, through the engine logger at
// the given level, then reports up.
var logModule = &ncd.Module{
	Type: "log",
	Init: func(i *ncd.Instance, args value.Value) {
		if args.ListLen() < 1 {
			initFailure(i, &ncd.ArgumentError{Message: "need at least a level argument"})
			return
		}
		levelName, err := stringArg(args, 0)
		if err != nil {
			initFailure(i, err)
			return
		}
		level, ok := logLevel(levelName)
		if !ok {
			initFailure(i, &ncd.ArgumentError{Message: fmt.Sprintf("unknown log level %q", levelName)})
			return
		}
		parts := make([]string, 0, args.ListLen()-1)
		for n := 1; n < args.ListLen(); n++ {
			s, err := stringArg(args, n)
			if err != nil {
				initFailure(i, err)
				return
			}
			parts = append(parts, s)
		}
		i.Logger().Build(level).Log(strings.Join(parts, " "))
		i.Up()
	},
}

func logLevel(name string) (logiface.Level, bool) {
	switch name {
	case "trace":
		return logiface.LevelTrace, true
	case "debug":
		return logiface.LevelDebug, true
	case "info":
		return logiface.LevelInformational, true
	case "notice":
		return logiface.LevelNotice, true
	case "warning":
		return logiface.LevelWarning, true
	case "err":
		return logiface.LevelError, true
	default:
		return 0, false
	}
}

// exit(code)
//
// Requests interpreter shutdown with the given exit code, then reports up;
// the statement is torn down with everything else on the way out.
var exitModule = &ncd.Module{
	Type: "exit",
	Init: func(i *ncd.Instance, args value.Value) {
		if err := exactArgs(args, 1); err != nil {
			initFailure(i, err)
			return
		}
		s, err := stringArg(args, 0)
		if err != nil {
			initFailure(i, err)
			return
		}
		code, err := strconv.Atoi(s)
		if err != nil {
			initFailure(i, &ncd.ArgumentError{Cause: err, Message: "exit code must be an integer"})
			return
		}
		i.InterpExit(code)
		i.Up()
	},
}

// args()
//
// Exposes the interpreter's invocation arguments: the empty-named variable
// is the argument list, "length" its size, and a decimal name indexes one
// argument.
var argsModule = &ncd.Module{
	Type: "args",
	Init: func(i *ncd.Instance, args value.Value) {
		if err := exactArgs(args, 0); err != nil {
			initFailure(i, err)
			return
		}
		v := value.Copy(i.InterpArgs(), i.Arena())
		if !v.IsValid() {
			initFailure(i, value.ErrArenaExhausted)
			return
		}
		i.Mem = v
		i.Up()
	},
	GetVar: func(i *ncd.Instance, name string) (value.Value, bool) {
		v := i.Mem.(value.Value)
		switch name {
		case "":
			return v, true
		case "length":
			return i.Arena().NewString(strconv.Itoa(v.ListLen())), true
		}
		n, err := strconv.Atoi(name)
		if err != nil || n < 0 || n >= v.ListLen() {
			return value.Value{}, false
		}
		return v.ListGet(n), true
	},
}
