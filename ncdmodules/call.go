package ncdmodules

import (
	"github.com/joeycumines/go-ncd/ncd"
	"github.com/joeycumines/go-ncd/value"
)

// call(template)
// call(template, {args...})
//
// Instantiates the named template as a child process. The child resolves
// the caller's scope through "_caller" and its arguments through
// "_argN"/"_args". The statement mirrors the child: it is up while the
// child is fully up, goes down when the child regresses, and lets the
// child advance again once everything after the call has been torn down.
var callModule = &ncd.Module{
	Type: "call",
	Init: func(i *ncd.Instance, args value.Value) {
		if err := rangeArgs(args, 1, 2); err != nil {
			initFailure(i, err)
			return
		}
		tmpl, err := stringArg(args, 0)
		if err != nil {
			initFailure(i, err)
			return
		}
		var cargs value.Value
		if args.ListLen() == 2 {
			cargs, err = listArg(args, 1)
			if err != nil {
				initFailure(i, err)
				return
			}
		}

		st := &callState{inst: i}
		sp, err := i.NewProcess(tmpl, cargs, st.event)
		if err != nil {
			initFailure(i, err)
			return
		}
		sp.SetCallerScope(i)
		st.sp = sp
		i.Mem = st
	},
	Die: func(i *ncd.Instance) {
		st := i.Mem.(*callState)
		st.dying = true
		st.sp.Terminate()
	},
	Clean: func(i *ncd.Instance) {
		st := i.Mem.(*callState)
		if st.childDown {
			st.childDown = false
			st.sp.Continue()
		}
	},
}

type callState struct {
	inst *ncd.Instance
	sp   *ncd.SubProcess

	childDown bool
	dying     bool
}

func (st *callState) event(ev ncd.ProcessEvent) {
	switch ev {
	case ncd.ProcessEventUp:
		st.inst.Up()
	case ncd.ProcessEventDown:
		st.childDown = true
		st.inst.Down()
	case ncd.ProcessEventTerminated:
		st.inst.Dead()
	}
}
