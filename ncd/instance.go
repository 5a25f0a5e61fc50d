package ncd

import (
	"time"

	"github.com/joeycumines/go-ncd/reactor"
	"github.com/joeycumines/go-ncd/value"
	"github.com/joeycumines/logiface"
)

// StatementState is the lifecycle state of a statement instance.
//
// Transitions:
//
//	(none) → StateDownClean              [init]
//	StateDownClean|StateDownUnclean → StateUp        [Instance.Up]
//	StateUp → StateDownUnclean           [Instance.Down]
//	StateDownUnclean → StateDownClean    [scheduler clean delivery]
//	StateDownClean|StateUp|StateDownUnclean → StateDying  [scheduler die request]
//	any live state → StateDead           [Instance.Dead]
type StatementState uint8

const (
	// StateForgotten is the scheduler-side view of a statement slot that
	// has no live instance (not yet initialized, or already freed).
	StateForgotten StatementState = iota
	// StateDownClean indicates the statement initialized but has not (or
	// not again) reported up, with no unacknowledged regress.
	StateDownClean
	// StateUp indicates the statement is up.
	StateUp
	// StateDownUnclean indicates the statement reported down and has not
	// yet been told that everything after it has been torn down.
	StateDownUnclean
	// StateDying indicates destruction was requested and has not finished.
	StateDying
	// StateDead indicates the instance is dead; the slot is freed by the
	// scheduler shortly after.
	StateDead
)

// String returns a human-readable representation of the state.
func (s StatementState) String() string {
	switch s {
	case StateForgotten:
		return "Forgotten"
	case StateDownClean:
		return "DownClean"
	case StateUp:
		return "Up"
	case StateDownUnclean:
		return "DownUnclean"
	case StateDying:
		return "Dying"
	case StateDead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// Instance is the runtime of one statement: the handle passed into module
// callbacks, mediating between the module (backend commands, below) and
// the process scheduler. All methods must be called on the engine's
// reactor goroutine, from within a module callback or a continuation
// scheduled by one.
type Instance struct {
	// Mem is the module's private state, owned by the instance and
	// discarded when it is freed. Set it from Init.
	Mem any

	proc  *Process
	mod   *Module
	arena *value.Arena

	// initArgs carries the materialized arguments from construction to the
	// module's Init call.
	initArgs value.Value

	logger *logiface.Logger[logiface.Event]

	methodObj Object

	index int
	state StatementState

	errorFlag    bool
	dieRequested bool
	hasMethodObj bool
}

// State returns the instance's current lifecycle state.
func (i *Instance) State() StatementState {
	return i.state
}

// Index returns the statement's index within its process.
func (i *Instance) Index() int {
	return i.index
}

// Logger returns a logger scoped to the statement (process, index, type).
// It may be disabled (including nil); logiface loggers are safe either way.
func (i *Instance) Logger() *logiface.Logger[logiface.Event] {
	return i.logger
}

// Arena returns the instance's value arena. Values a module retains across
// callbacks belong here; the arena is discarded with the instance.
func (i *Instance) Arena() *value.Arena {
	return i.arena
}

// MethodObject returns the object a method statement was invoked on.
func (i *Instance) MethodObject() (Object, bool) {
	return i.methodObj, i.hasMethodObj
}

// Reactor returns the engine's reactor, for module-owned timers and
// deferred continuations.
func (i *Instance) Reactor() *reactor.Reactor {
	return i.proc.interp.reactor
}

// Up reports that the statement is up. Legal while down (clean or
// unclean); notifies the scheduler.
func (i *Instance) Up() {
	i.proc.interp.assertLoop()
	switch i.state {
	case StateDownClean, StateDownUnclean:
	default:
		panic(`ncd: Up in state ` + i.state.String())
	}
	i.state = StateUp
	i.proc.noteUp(i.index)
}

// Down reports that the statement's state regressed. Legal only while up;
// notifies the scheduler, which tears down every later statement before
// delivering clean.
func (i *Instance) Down() {
	i.proc.interp.assertLoop()
	if i.state != StateUp {
		panic(`ncd: Down in state ` + i.state.String())
	}
	i.state = StateDownUnclean
	i.proc.noteDown(i.index)
}

// Dead reports that the instance finished dying, or died spontaneously.
// Legal from any live state. A spontaneous death (no die request) is a
// failure if preceded by [Instance.SetError]; either way the scheduler
// regresses and retries the statement.
func (i *Instance) Dead() {
	i.proc.interp.assertLoop()
	switch i.state {
	case StateDownClean, StateUp, StateDownUnclean, StateDying:
	default:
		panic(`ncd: Dead in state ` + i.state.String())
	}
	i.state = StateDead
	i.proc.noteDead(i.index)
}

// SetError sets the sticky error flag, distinguishing failure from normal
// teardown. Call before [Instance.Dead].
func (i *Instance) SetError() {
	i.proc.interp.assertLoop()
	if i.state == StateDead {
		panic(`ncd: SetError after Dead`)
	}
	i.errorFlag = true
}

// ResolveObject resolves an object visible to the statement: exported by a
// preceding statement of the process, or a process special object.
func (i *Instance) ResolveObject(path ...string) (Object, bool) {
	i.proc.interp.assertLoop()
	return i.proc.resolveObject(i.index, path)
}

// ResolveVar resolves a variable visible to the statement. The result is
// owned by the resolved statement; copy it into the instance's arena
// before retaining it across a suspension point.
func (i *Instance) ResolveVar(path ...string) (value.Value, bool) {
	i.proc.interp.assertLoop()
	return i.proc.resolveVar(i.index, path)
}

// InterpExit requests that the interpreter shut down with the given exit
// code.
func (i *Instance) InterpExit(code int) {
	i.proc.interp.assertLoop()
	i.proc.interp.requestExitOnLoop(code)
}

// InterpArgs returns the interpreter's invocation arguments, conventionally
// a list value. Owned by the interpreter; copy before retaining.
func (i *Instance) InterpArgs() value.Value {
	i.proc.interp.assertLoop()
	return i.proc.interp.args
}

// InterpRetryTime returns the configured retry backoff.
func (i *Instance) InterpRetryTime() time.Duration {
	return i.proc.interp.retryTime
}

// requestDie initiates destruction (scheduler command). With no Die
// operation destruction is synchronous.
func (i *Instance) requestDie() {
	switch i.state {
	case StateUp, StateDownClean, StateDownUnclean:
	default:
		panic(`ncd: die request in state ` + i.state.String())
	}
	i.dieRequested = true
	i.state = StateDying
	if i.mod.Die == nil {
		i.state = StateDead
		i.proc.noteDead(i.index)
		return
	}
	i.mod.Die(i)
}

// deliverClean notifies the statement that everything after it has been
// torn down (scheduler command). Only meaningful while down unclean.
func (i *Instance) deliverClean() {
	if i.state != StateDownUnclean {
		return
	}
	i.state = StateDownClean
	if i.mod.Clean != nil {
		i.mod.Clean(i)
	}
}

// resolvable gates namespace reads per the instance's state: up always,
// down only when the module permits, dying and dead never.
func (i *Instance) resolvable() bool {
	switch i.state {
	case StateUp:
		return true
	case StateDownClean, StateDownUnclean:
		return i.mod.CanResolveWhenDown
	default:
		return false
	}
}

// object is the statement's exported view in the process namespace.
// Variable and sub-object reads are gated by resolvable; the object itself
// exists for as long as the instance does, e.g. as a method target.
func (i *Instance) object() Object {
	return NewObject(i.mod.base(), i, i.objGetVar, i.objGetObj)
}

func (i *Instance) objGetVar(name string) (value.Value, bool) {
	if !i.resolvable() || i.mod.GetVar == nil {
		return value.Value{}, false
	}
	return i.mod.GetVar(i, name)
}

func (i *Instance) objGetObj(name string) (Object, bool) {
	if !i.resolvable() || i.mod.GetObj == nil {
		return Object{}, false
	}
	return i.mod.GetObj(i, name)
}
