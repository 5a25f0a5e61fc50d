package ncdmodules

import (
	"strconv"

	"github.com/joeycumines/go-ncd/ncd"
	"github.com/joeycumines/go-ncd/value"
)

// foreach(list, template)
//
// Instantiates the template once per list element, as an ordered chain of
// child processes: branch k+1 is brought up only after branch k is fully
// up, and a regress of branch k tears down branches above it, newest
// first, before branch k is allowed to advance again. Each branch resolves
// "_elem" (the element), "_index" (its decimal position), and the caller's
// scope through "_caller". The statement is up while every branch is up.
var foreachModule = &ncd.Module{
	Type: "foreach",
	Init: func(i *ncd.Instance, args value.Value) {
		if err := exactArgs(args, 2); err != nil {
			initFailure(i, err)
			return
		}
		elems, err := listArg(args, 0)
		if err != nil {
			initFailure(i, err)
			return
		}
		tmpl, err := stringArg(args, 1)
		if err != nil {
			initFailure(i, err)
			return
		}
		st := &foreachState{
			inst:  i,
			tmpl:  tmpl,
			elems: elems,
		}
		i.Mem = st
		st.work()
	},
	Die: func(i *ncd.Instance) {
		st := i.Mem.(*foreachState)
		st.dying = true
		st.work()
	},
	Clean: func(i *ncd.Instance) {
		st := i.Mem.(*foreachState)
		st.needClean = false
		st.work()
	},
}

type foreachBranch struct {
	sp *ncd.SubProcess

	up          bool
	waiting     bool // child reported down, needs Continue
	terminating bool
	terminated  bool
}

// foreachState runs the branch chain under the same discipline the engine
// applies to statements: branches [0, nf) are up, teardown is newest
// first, and a regressed branch is only continued once its dependent state
// (branches above it, and whatever follows the foreach statement) is gone.
type foreachState struct {
	inst  *ncd.Instance
	tmpl  string
	elems value.Value

	branches []*foreachBranch
	nf       int

	instUp    bool
	needClean bool // went down, waiting for the engine's clean delivery
	dying     bool
}

func (st *foreachState) work() {
	if st.dying {
		st.workDying()
		return
	}

	// Tear down branches above the regressed one, newest first.
	if st.nf < len(st.branches)-1 {
		last := len(st.branches) - 1
		b := st.branches[last]
		if b.terminated {
			st.branches = st.branches[:last]
			st.work()
			return
		}
		if !b.terminating {
			b.terminating = true
			b.sp.Terminate()
		}
		return
	}

	if st.nf < len(st.branches) {
		b := st.branches[st.nf]
		switch {
		case b.up:
			st.nf++
			st.work()
		case b.waiting:
			// Everything above the branch is gone; once the engine has
			// also torn down everything after this statement, release it.
			if st.needClean {
				return
			}
			b.waiting = false
			b.sp.Continue()
		}
		return
	}

	// Every created branch is up.
	if len(st.branches) < st.elems.ListLen() {
		if st.needClean {
			return
		}
		st.startBranch(len(st.branches))
		return
	}

	if !st.instUp && !st.needClean {
		st.instUp = true
		st.inst.Up()
	}
}

// workDying tears down every branch, newest first, then reports dead. It
// serves both a die request and a failed branch start.
func (st *foreachState) workDying() {
	for last := len(st.branches) - 1; last >= 0; last-- {
		b := st.branches[last]
		if b.terminated {
			st.branches = st.branches[:last]
			continue
		}
		if !b.terminating {
			b.terminating = true
			b.sp.Terminate()
		}
		return
	}
	st.inst.Dead()
}

func (st *foreachState) startBranch(k int) {
	b := &foreachBranch{}
	sp, err := st.inst.NewProcess(st.tmpl, value.Value{}, func(ev ncd.ProcessEvent) {
		st.branchEvent(b, ev)
	})
	if err != nil {
		st.inst.Logger().Err().
			Err(err).
			Int("branch", k).
			Log("branch start failed")
		st.inst.SetError()
		st.dying = true
		st.work()
		return
	}
	sp.SetCallerScope(st.inst)
	elem := st.elems.ListGet(k)
	sp.SetSpecialObject("_elem", ncd.NewObject("", nil,
		func(name string) (value.Value, bool) {
			if name == "" {
				return elem, true
			}
			return value.Value{}, false
		}, nil))
	index := st.inst.Arena().NewString(strconv.Itoa(k))
	sp.SetSpecialObject("_index", ncd.NewObject("", nil,
		func(name string) (value.Value, bool) {
			if name == "" {
				return index, true
			}
			return value.Value{}, false
		}, nil))
	b.sp = sp
	st.branches = append(st.branches, b)
}

func (st *foreachState) branchEvent(b *foreachBranch, ev ncd.ProcessEvent) {
	switch ev {
	case ncd.ProcessEventUp:
		b.up = true
	case ncd.ProcessEventDown:
		b.up = false
		b.waiting = true
		if k := st.branchIndex(b); k < st.nf {
			st.nf = k
		}
		if st.instUp && !st.dying {
			st.instUp = false
			st.needClean = true
			st.inst.Down()
		}
	case ncd.ProcessEventTerminated:
		b.terminated = true
	}
	st.work()
}

func (st *foreachState) branchIndex(b *foreachBranch) int {
	for k, x := range st.branches {
		if x == b {
			return k
		}
	}
	panic(`ncdmodules: unknown foreach branch`)
}
