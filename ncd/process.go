package ncd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/joeycumines/go-ncd/reactor"
	"github.com/joeycumines/go-ncd/value"
	"github.com/joeycumines/logiface"
)

// ProcessEvent is an event a process reports to its owner.
type ProcessEvent uint8

const (
	// ProcessEventUp: every statement of the process is up.
	ProcessEventUp ProcessEvent = iota
	// ProcessEventDown: the process regressed after having been up. A
	// child process pauses after reporting this, until the owner calls
	// [SubProcess.Continue].
	ProcessEventDown
	// ProcessEventTerminated: teardown after a terminate request finished;
	// the process is gone.
	ProcessEventTerminated
)

// String returns a human-readable representation of the event.
func (e ProcessEvent) String() string {
	switch e {
	case ProcessEventUp:
		return "Up"
	case ProcessEventDown:
		return "Down"
	case ProcessEventTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// processOwner receives process events: the interpreter for top-level
// processes, the sub-process primitive for children.
type processOwner interface {
	processEvent(p *Process, ev ProcessEvent)
}

// Process executes one compiled block under the advance-cursor (ap) /
// fixed-pointer (fp) discipline: statements [0, fp) are up, the statement
// at fp (when fp < ap) is the lowest one not up, statements [ap, N) have
// no live instance. Advance is strictly in index order; teardown strictly
// in reverse. All work happens in a coalesced job on the reactor.
type Process struct {
	interp *Interp
	desc   *ProcessDesc
	owner  processOwner
	logger *logiface.Logger[logiface.Event]
	id     uuid.UUID

	statements []*Instance
	ap         int
	fp         int

	// specials are namespace entries beyond the statements: sub-process
	// views such as the caller scope and argument objects.
	specials map[string]Object

	retryTimer *reactor.Timer

	scheduled    bool
	terminating  bool
	terminated   bool
	reportedUp   bool
	pauseOnDown  bool
	waitContinue bool
}

// newProcess builds a process over desc. It does not schedule work; the
// caller starts it with schedule once configured.
func newProcess(interp *Interp, desc *ProcessDesc, owner processOwner, pauseOnDown bool) *Process {
	p := &Process{
		interp:      interp,
		desc:        desc,
		owner:       owner,
		id:          uuid.New(),
		statements:  make([]*Instance, len(desc.Statements)),
		pauseOnDown: pauseOnDown,
	}
	p.logger = interp.logger
	if c := interp.logger.Clone(); c != nil {
		p.logger = c.
			Str("process", desc.Name).
			Stringer("process_id", p.id).
			Logger()
	}
	return p
}

// Name returns the process's descriptor name.
func (p *Process) Name() string {
	return p.desc.Name
}

// schedule coalesces a work pass onto the reactor.
func (p *Process) schedule() {
	if p.scheduled || p.terminated {
		return
	}
	p.scheduled = true
	p.interp.reactor.Schedule(p.work)
}

// work is the scheduler step: it inspects the current statement states and
// performs at most one action (advance one statement, tear down one
// statement, deliver one clean, bump fp), rescheduling itself while more
// progress is possible. Teardown always precedes advance.
func (p *Process) work() {
	p.scheduled = false
	if p.terminated {
		return
	}

	if p.terminating {
		p.workTerminating()
		return
	}

	if p.fp < p.ap {
		if p.ap > p.fp+1 {
			// Statements above the regressed one are torn down first,
			// newest first.
			p.teardownTop()
			return
		}
		st := p.statements[p.fp]
		switch st.state {
		case StateDead:
			p.handleDeadAt(p.fp)
		case StateDownUnclean:
			// Everything after fp is gone; let the statement make progress.
			// A child that reported down stays paused until its owner
			// acknowledges with Continue.
			if !p.waitContinue {
				st.deliverClean()
			}
		case StateDownClean:
			// Waiting for the module to come up.
		case StateUp:
			p.fp++
			p.schedule()
		default:
			panic(fmt.Sprintf(`ncd: statement %d in state %s at fp`, p.fp, st.state))
		}
		return
	}

	// fp == ap: the whole prefix is up.
	if p.ap < len(p.statements) {
		if p.retryTimer != nil || p.waitContinue {
			return
		}
		p.advance()
		return
	}

	if !p.reportedUp {
		p.reportedUp = true
		p.logger.Debug().Log("process up")
		p.owner.processEvent(p, ProcessEventUp)
	}
}

// workTerminating performs one reverse-order teardown step.
func (p *Process) workTerminating() {
	if p.ap == 0 {
		p.terminated = true
		p.logger.Debug().Log("process terminated")
		p.owner.processEvent(p, ProcessEventTerminated)
		return
	}
	i := p.ap - 1
	st := p.statements[i]
	switch st.state {
	case StateDead:
		p.free(i)
		p.ap--
		p.schedule()
	case StateDying:
		// Wait for the module.
	default:
		st.requestDie()
	}
}

// teardownTop tears down the newest live statement above fp.
func (p *Process) teardownTop() {
	i := p.ap - 1
	st := p.statements[i]
	switch st.state {
	case StateDead:
		p.free(i)
		p.ap--
		p.schedule()
	case StateDying:
		// Wait for the module.
	default:
		st.requestDie()
	}
}

// handleDeadAt frees a statement that died without a die request, at the
// bottom of the torn-down range, and arms the retry timer. The error flag
// distinguishes failure from a quiet death in the log; both regress and
// retry.
func (p *Process) handleDeadAt(i int) {
	st := p.statements[i]
	if st.errorFlag {
		p.logger.Warning().
			Limit().
			Int("statement", i).
			Str("type", p.desc.Statements[i].String()).
			Dur("retry_time", p.interp.retryTime).
			Log("statement failed, will retry")
	} else {
		p.logger.Debug().
			Int("statement", i).
			Str("type", p.desc.Statements[i].String()).
			Log("statement died, will retry")
	}
	p.free(i)
	p.ap--
	p.startRetry()
}

// free discards the instance in slot i.
func (p *Process) free(i int) {
	st := p.statements[i]
	p.statements[i] = nil
	st.state = StateForgotten
	st.Mem = nil
}

// startRetry arms the retry timer; advance is gated until it fires.
func (p *Process) startRetry() {
	if p.retryTimer != nil {
		return
	}
	p.retryTimer = p.interp.reactor.After(p.interp.retryTime, func() {
		p.retryTimer = nil
		p.schedule()
	})
}

// cancelRetry disarms the retry timer, if armed.
func (p *Process) cancelRetry() {
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
}

// advance initializes the statement at ap. Scheduler-level errors (unknown
// module or method, unresolved method object or arguments, arena
// exhaustion) are synthetic construction failures: logged, retried after
// the backoff, cursor unchanged.
func (p *Process) advance() {
	idx := p.ap
	desc := &p.desc.Statements[idx]

	inst, err := p.construct(idx, desc)
	if err != nil {
		p.logger.Warning().
			Limit().
			Err(err).
			Int("statement", idx).
			Str("type", desc.String()).
			Dur("retry_time", p.interp.retryTime).
			Log("statement construction failed, will retry")
		p.startRetry()
		return
	}

	p.statements[idx] = inst
	p.ap++
	inst.state = StateDownClean
	inst.mod.Init(inst, inst.initArgs)
	inst.initArgs = value.Value{}
}

// construct resolves the module and materializes the arguments for the
// statement at idx.
func (p *Process) construct(idx int, desc *StatementDesc) (*Instance, error) {
	var mod *Module
	var methodObj Object
	var hasMethodObj bool
	if len(desc.ObjPath) > 0 {
		obj, ok := p.resolveObject(idx, desc.ObjPath)
		if !ok {
			return nil, &ResolveError{Path: desc.ObjPath}
		}
		if obj.Type() == "" {
			return nil, fmt.Errorf("ncd: object %q cannot be a method target", desc.ObjPath)
		}
		mod, ok = p.interp.registry.LookupMethod(obj.Type(), desc.Type)
		if !ok {
			return nil, fmt.Errorf("%w: method %q on base %q", ErrModuleNotFound, desc.Type, obj.Type())
		}
		methodObj = obj
		hasMethodObj = true
	} else {
		var ok bool
		mod, ok = p.interp.registry.Lookup(desc.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, desc.Type)
		}
	}

	arena := value.NewArena()
	if desc.ArenaBudget > 0 {
		arena = value.NewArenaSize(desc.ArenaBudget)
	}
	args := arena.NewList()
	if !args.IsValid() {
		return nil, value.ErrArenaExhausted
	}
	if desc.Args != nil {
		var err error
		args, err = desc.Args.Materialize(arena, func(id int) (value.Value, error) {
			path, ok := p.interp.program.PlaceholderPath(id)
			if !ok {
				return value.Value{}, fmt.Errorf("ncd: unknown placeholder %d", id)
			}
			v, ok := p.resolveVar(idx, path)
			if !ok {
				return value.Value{}, &ResolveError{Path: path}
			}
			return v, nil
		})
		if err != nil {
			return nil, err
		}
	}

	inst := &Instance{
		proc:         p,
		mod:          mod,
		arena:        arena,
		index:        idx,
		methodObj:    methodObj,
		hasMethodObj: hasMethodObj,
		initArgs:     args,
	}
	inst.logger = p.logger
	if c := p.logger.Clone(); c != nil {
		inst.logger = c.
			Int("statement", idx).
			Str("type", desc.String()).
			Logger()
	}
	return inst, nil
}

// terminate begins reverse-order teardown of the whole process.
func (p *Process) terminate() {
	if p.terminating || p.terminated {
		return
	}
	p.terminating = true
	p.cancelRetry()
	p.logger.Debug().Log("process terminating")
	p.schedule()
}

// noteUp handles a statement's up report. An up for an index above fp is
// absorbed: the statement stays up in its own view but remains slated for
// teardown.
func (p *Process) noteUp(int) {
	p.schedule()
}

// noteDown handles a statement's down report. A down below fp is a
// regress: fp drops to the statement, the retry timer disarms, and the
// owner observes down if the process had been up.
func (p *Process) noteDown(i int) {
	if i < p.fp {
		p.fp = i
		p.cancelRetry()
		p.maybeReportDown()
	}
	p.schedule()
}

// noteDead handles a statement's death. A death that was not requested
// regresses like a down; a requested one just advances the teardown.
func (p *Process) noteDead(i int) {
	st := p.statements[i]
	if !st.dieRequested && i < p.fp {
		p.fp = i
		p.cancelRetry()
		p.maybeReportDown()
	}
	p.schedule()
}

func (p *Process) maybeReportDown() {
	if !p.reportedUp || p.terminating {
		return
	}
	p.reportedUp = false
	p.logger.Debug().Log("process down")
	if p.pauseOnDown {
		p.waitContinue = true
	}
	p.owner.processEvent(p, ProcessEventDown)
}

// continueAdvance releases the pause after a reported down.
func (p *Process) continueAdvance() {
	if !p.waitContinue {
		panic(`ncd: continue without a pending down`)
	}
	p.waitContinue = false
	p.schedule()
}
