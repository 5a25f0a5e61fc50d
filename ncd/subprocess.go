package ncd

import (
	"fmt"
	"strconv"

	"github.com/joeycumines/go-ncd/value"
)

// SubProcess is a template invocation attached to a statement: a child
// process whose up/down/terminated events flow to the owning module, and
// whose namespace is augmented with owner-provided special objects. After
// the child reports down it will not advance again until the owner, having
// torn down its own dependent state, calls [SubProcess.Continue]; this
// handshake is what makes nested regress compose.
//
// The owner holds the child; the child's back-reference is the event
// handler, never an ownership edge. When the owner dies it must terminate
// the child first and wait for [ProcessEventTerminated].
type SubProcess struct {
	proc    *Instance
	child   *Process
	handler func(ProcessEvent)

	argsArena *value.Arena
	args      value.Value

	terminated bool
}

// NewProcess creates a child process from the named template, parameterized
// by args (a list value; the invalid zero value means no arguments). The
// handler receives the child's events, called from engine continuations.
// The child's namespace gets per-index "_argN" views and an "_args" view of
// the argument list; install further specials with
// [SubProcess.SetSpecialObject] or [SubProcess.SetCallerScope] before
// control returns from the calling module callback.
func (i *Instance) NewProcess(templateName string, args value.Value, handler func(ProcessEvent)) (*SubProcess, error) {
	i.proc.interp.assertLoop()
	if handler == nil {
		panic(`ncd: nil sub-process handler`)
	}
	desc, ok := i.proc.interp.program.Template(templateName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, templateName)
	}

	sp := &SubProcess{
		proc:      i,
		handler:   handler,
		argsArena: value.NewArena(),
	}
	if args.IsValid() {
		if args.Type() != value.TypeList {
			return nil, &ArgumentError{Message: fmt.Sprintf("template %q arguments must be a list, have %s", templateName, args.Type())}
		}
		sp.args = value.Copy(args, sp.argsArena)
	} else {
		sp.args = sp.argsArena.NewList()
	}

	sp.child = newProcess(i.proc.interp, desc, sp, true)
	sp.installArgViews()
	sp.child.schedule()
	return sp, nil
}

// installArgViews exposes the argument list in the child's namespace.
func (sp *SubProcess) installArgViews() {
	args := sp.args
	sp.child.setSpecial("_args", NewObject("", nil,
		func(name string) (value.Value, bool) {
			switch name {
			case "":
				return args, true
			case "length":
				return sp.argsArena.NewString(strconv.Itoa(args.ListLen())), true
			default:
				return value.Value{}, false
			}
		}, nil))
	for n := 0; n < args.ListLen(); n++ {
		elem := args.ListGet(n)
		sp.child.setSpecial("_arg"+strconv.Itoa(n), NewObject("", nil,
			func(name string) (value.Value, bool) {
				if name == "" {
					return elem, true
				}
				return value.Value{}, false
			}, nil))
	}
}

// SetSpecialObject installs an additional special object into the child's
// namespace.
func (sp *SubProcess) SetSpecialObject(name string, obj Object) {
	sp.proc.proc.interp.assertLoop()
	if !obj.Valid() {
		panic(`ncd: invalid special object`)
	}
	sp.child.setSpecial(name, obj)
}

// SetCallerScope installs "_caller": an object proxying the owning
// statement's scope, so the child resolves the owner's preceding
// statements by name.
func (sp *SubProcess) SetCallerScope(owner *Instance) {
	sp.proc.proc.interp.assertLoop()
	ownerProc := owner.proc
	ownerIndex := owner.index
	sp.child.setSpecial("_caller", NewObject("", nil,
		func(name string) (value.Value, bool) {
			return ownerProc.resolveVar(ownerIndex, []string{name})
		},
		func(name string) (Object, bool) {
			return ownerProc.lookupObject(ownerIndex, name)
		}))
}

// Continue releases the pause after an observed [ProcessEventDown],
// letting the child advance again when appropriate. Calling it without a
// pending down is a misuse.
func (sp *SubProcess) Continue() {
	sp.proc.proc.interp.assertLoop()
	sp.child.continueAdvance()
}

// Terminate begins teardown of the child. The handler will receive
// [ProcessEventTerminated] once the child is gone; no events follow it.
func (sp *SubProcess) Terminate() {
	sp.proc.proc.interp.assertLoop()
	sp.child.terminate()
}

// Terminated reports whether the child has finished teardown.
func (sp *SubProcess) Terminated() bool {
	return sp.terminated
}

// processEvent implements processOwner, relaying the child's events to the
// owning module.
func (sp *SubProcess) processEvent(_ *Process, ev ProcessEvent) {
	if ev == ProcessEventTerminated {
		sp.terminated = true
	}
	sp.handler(ev)
}
