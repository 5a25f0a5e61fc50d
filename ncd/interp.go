package ncd

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-ncd/reactor"
	"github.com/joeycumines/go-ncd/value"
	"github.com/joeycumines/logiface"
)

// DefaultRetryTime is the retry backoff applied to failed statements when
// no [WithRetryTime] option is given.
const DefaultRetryTime = 10 * time.Second

// Interp hosts a compiled program: it starts every top-level process on
// the reactor, keeps retrying failed statements, and tears everything down
// in reverse start order when an exit is requested. The registry and
// program are snapshotted at construction and immutable afterwards.
type Interp struct {
	reactor  *reactor.Reactor
	registry *Registry
	program  *Program
	logger   *logiface.Logger[logiface.Event]

	retryTime time.Duration

	argsArena *value.Arena
	args      value.Value

	processes []*Process
	liveCount int

	exitRequested bool
	exitCode      int

	started atomic.Bool
}

// Option configures an interpreter.
type Option interface {
	apply(*interpOptions) error
}

type interpOptions struct {
	logger    *logiface.Logger[logiface.Event]
	reactor   *reactor.Reactor
	retryTime time.Duration
	args      []string
}

type optionFunc func(*interpOptions) error

func (f optionFunc) apply(o *interpOptions) error { return f(o) }

// WithLogger sets the interpreter's logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return optionFunc(func(o *interpOptions) error {
		o.logger = logger
		return nil
	})
}

// WithRetryTime sets the backoff before a failed statement is retried.
func WithRetryTime(d time.Duration) Option {
	return optionFunc(func(o *interpOptions) error {
		if d <= 0 {
			return fmt.Errorf(`ncd: retry time must be positive`)
		}
		o.retryTime = d
		return nil
	})
}

// WithArgs sets the program's invocation arguments, exposed to modules via
// [Instance.InterpArgs] as a list of strings.
func WithArgs(args ...string) Option {
	return optionFunc(func(o *interpOptions) error {
		o.args = append([]string(nil), args...)
		return nil
	})
}

// WithReactor runs the interpreter on the given reactor, which must be
// freshly created; [Interp.Run] still drives it. Without this option the
// interpreter owns a private reactor.
func WithReactor(r *reactor.Reactor) Option {
	return optionFunc(func(o *interpOptions) error {
		if r == nil {
			return fmt.Errorf(`ncd: nil reactor`)
		}
		o.reactor = r
		return nil
	})
}

// NewInterp creates an interpreter over a compiled program and a module
// registry.
func NewInterp(program *Program, registry *Registry, opts ...Option) (*Interp, error) {
	if program == nil {
		return nil, fmt.Errorf(`ncd: nil program`)
	}
	if registry == nil {
		return nil, fmt.Errorf(`ncd: nil registry`)
	}
	cfg := interpOptions{
		retryTime: DefaultRetryTime,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.apply(&cfg); err != nil {
			return nil, err
		}
	}
	i := &Interp{
		reactor:   cfg.reactor,
		registry:  registry,
		program:   program,
		logger:    cfg.logger,
		retryTime: cfg.retryTime,
		argsArena: value.NewArena(),
	}
	if i.reactor == nil {
		i.reactor = reactor.New(reactor.WithLogger(cfg.logger))
	}
	i.args = i.argsArena.NewList()
	for _, a := range cfg.args {
		i.args.ListAppend(i.argsArena.NewString(a))
	}
	return i, nil
}

// Run starts every top-level process and blocks, driving the reactor on
// the calling goroutine, until an exit is requested (a statement's
// [Instance.InterpExit], [Interp.RequestExit], or ctx cancellation, which
// requests exit code 1) and teardown has finished. It returns the exit
// code. Run may be called once.
func (i *Interp) Run(ctx context.Context) (int, error) {
	if !i.started.CompareAndSwap(false, true) {
		return 0, ErrInterpRunning
	}

	if err := i.reactor.Submit(i.start); err != nil {
		return 0, err
	}

	stop := context.AfterFunc(ctx, func() {
		i.RequestExit(1)
	})
	defer stop()

	if err := i.reactor.Run(context.Background()); err != nil {
		return 0, err
	}
	return i.exitCode, nil
}

// start runs on the loop: it instantiates the top-level processes in
// program order.
func (i *Interp) start() {
	for _, desc := range i.program.Processes() {
		if desc.Template {
			continue
		}
		p := newProcess(i, desc, i, false)
		i.processes = append(i.processes, p)
		p.schedule()
	}
	i.liveCount = len(i.processes)
	i.logger.Info().
		Int("processes", i.liveCount).
		Log("interpreter started")
	if i.liveCount == 0 {
		i.requestExitOnLoop(0)
	}
}

// RequestExit requests shutdown with the given exit code. Safe to call
// from any goroutine; the first request wins.
func (i *Interp) RequestExit(code int) {
	_ = i.reactor.Submit(func() {
		i.requestExitOnLoop(code)
	})
}

// requestExitOnLoop begins shutdown: processes are terminated in reverse
// start order, and the reactor stops once the last one is gone.
func (i *Interp) requestExitOnLoop(code int) {
	if i.exitRequested {
		return
	}
	i.exitRequested = true
	i.exitCode = code
	i.logger.Info().
		Int("exit_code", code).
		Log("interpreter exit requested")
	if i.liveCount == 0 {
		i.reactor.Close()
		return
	}
	for j := len(i.processes) - 1; j >= 0; j-- {
		i.processes[j].terminate()
	}
}

// processEvent implements processOwner for top-level processes. Down needs
// no acknowledgement (top-level processes do not pause); Terminated
// decrements the live count and stops the reactor once shutdown is
// complete.
func (i *Interp) processEvent(_ *Process, ev ProcessEvent) {
	if ev != ProcessEventTerminated {
		return
	}
	i.liveCount--
	if i.exitRequested && i.liveCount == 0 {
		i.reactor.Close()
	}
}

// assertLoop enforces the single-threaded discipline on the engine API.
func (i *Interp) assertLoop() {
	if !i.reactor.IsLoopThread() {
		panic(`ncd: engine call from outside the reactor goroutine`)
	}
}
