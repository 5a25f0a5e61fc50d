// Package reactor provides a single-threaded cooperative scheduler of jobs
// and timers: the host event loop that the execution engine runs on.
//
// All engine work executes on the one goroutine that called [Reactor.Run].
// External goroutines hand work in via [Reactor.Submit]; code already on
// the loop thread defers continuations with [Reactor.Schedule] and arms
// timers with [Reactor.After]. Within a tick, expired timers run first,
// then scheduled continuations (drained to exhaustion), then one batch of
// submitted jobs. There is no I/O polling; the loop blocks on a wake
// channel when idle.
package reactor

import (
	"container/heap"
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

var (
	// ErrAlreadyRunning is returned when Run is called on a reactor that is
	// already running.
	ErrAlreadyRunning = errors.New(`reactor: already running`)

	// ErrTerminated is returned when operations are attempted on a reactor
	// that has been shut down.
	ErrTerminated = errors.New(`reactor: terminated`)

	// ErrReentrantRun is returned when Run is called from the loop thread.
	ErrReentrantRun = errors.New(`reactor: cannot call Run from within the loop`)
)

// Reactor is the cooperative event loop. Instances must be created with
// [New], and are not usable after termination.
type Reactor struct {
	_ [0]func() // prevent copying

	logger *logiface.Logger[logiface.Event]

	state stateMachine

	// jobs/jobsSpare implement batch draining of externally submitted work:
	// producers append under mu, the loop swaps the slices and executes
	// without holding the lock, reusing the drained buffer.
	mu        sync.Mutex
	jobs      []func()
	jobsSpare []func()

	// internal jobs and timers are owned by the loop thread.
	internal     []func()
	internalNext []func()
	timers       timerHeap
	timerSeq     uint64

	wakeCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	loopGoroutineID atomic.Uint64
}

// Option configures a Reactor.
type Option interface {
	apply(*Reactor)
}

type optionFunc func(*Reactor)

func (f optionFunc) apply(r *Reactor) { f(r) }

// WithLogger sets the reactor's logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return optionFunc(func(r *Reactor) {
		r.logger = logger
	})
}

// New creates a new reactor in the Awake state.
func New(opts ...Option) *Reactor {
	r := &Reactor{
		wakeCh: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		if o != nil {
			o.apply(r)
		}
	}
	return r
}

// Run runs the loop on the calling goroutine, blocking until the reactor
// terminates via [Reactor.Shutdown], [Reactor.Close], or ctx cancellation.
// Cancellation is abrupt: pending work is discarded and ctx.Err() is
// returned. For a graceful stop, arrange for Shutdown instead.
func (r *Reactor) Run(ctx context.Context) error {
	if r.IsLoopThread() {
		return ErrReentrantRun
	}
	if !r.state.TryTransition(StateAwake, StateRunning) {
		switch r.state.Load() {
		case StateTerminating, StateTerminated:
			return ErrTerminated
		default:
			return ErrAlreadyRunning
		}
	}
	defer close(r.done)

	r.loopGoroutineID.Store(getGoroutineID())
	defer r.loopGoroutineID.Store(0)

	// Wake the loop when ctx is cancelled so the select below observes it.
	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.wake()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	r.logger.Debug().Log("reactor running")
	err := r.run(ctx)
	r.state.Store(StateTerminated)
	r.logger.Debug().Err(err).Log("reactor terminated")
	return err
}

func (r *Reactor) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.state.Load() == StateTerminating {
			r.drain()
			return nil
		}

		r.runTimers()
		r.runInternal()
		r.runExternalBatch()

		if r.hasWork() {
			continue
		}

		// Idle: block until woken or the next timer expires. The CAS pair
		// mirrors a poll: a Submit racing with the transition will have
		// either been picked up by hasWork above or will hit the wake
		// channel.
		if !r.state.TryTransition(StateRunning, StateSleeping) {
			continue
		}
		if r.hasWork() || ctx.Err() != nil {
			r.state.TryTransition(StateSleeping, StateRunning)
			continue
		}
		r.sleep(ctx)
		r.state.TryTransition(StateSleeping, StateRunning)
	}
}

// sleep blocks until a wakeup, ctx cancellation, or the next timer
// deadline. Must only be called with state Sleeping.
func (r *Reactor) sleep(ctx context.Context) {
	if len(r.timers) == 0 {
		select {
		case <-r.wakeCh:
		case <-ctx.Done():
		}
		return
	}
	d := time.Until(r.timers[0].when)
	if d <= 0 {
		return
	}
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-r.wakeCh:
	case <-tm.C:
	case <-ctx.Done():
	}
}

func (r *Reactor) hasWork() bool {
	if len(r.internal) > 0 {
		return true
	}
	if len(r.timers) > 0 && !r.timers[0].when.After(time.Now()) {
		return true
	}
	r.mu.Lock()
	n := len(r.jobs)
	r.mu.Unlock()
	return n > 0
}

// runTimers executes every expired timer, in deadline order.
func (r *Reactor) runTimers() {
	now := time.Now()
	for len(r.timers) > 0 && !r.timers[0].when.After(now) {
		t := heap.Pop(&r.timers).(*Timer)
		t.index = -1
		t.fired = true
		t.fn()
	}
}

// runInternal drains scheduled continuations to exhaustion. Jobs scheduled
// while draining run within the same pass, preserving FIFO order.
func (r *Reactor) runInternal() {
	for len(r.internal) > 0 {
		jobs := r.internal
		r.internal = r.internalNext[:0]
		for i, fn := range jobs {
			fn()
			jobs[i] = nil
		}
		r.internalNext = jobs[:0]
	}
}

// runExternalBatch executes one batch swap of submitted jobs.
func (r *Reactor) runExternalBatch() {
	r.mu.Lock()
	jobs := r.jobs
	r.jobs = r.jobsSpare
	r.mu.Unlock()

	for i, fn := range jobs {
		fn()
		jobs[i] = nil
	}

	r.mu.Lock()
	r.jobsSpare = jobs[:0]
	r.mu.Unlock()
}

// drain runs remaining work on shutdown: continuations first, then
// whatever was submitted before the accept gate closed, until both queues
// are empty.
func (r *Reactor) drain() {
	for {
		r.runInternal()
		r.mu.Lock()
		n := len(r.jobs)
		r.mu.Unlock()
		if n == 0 && len(r.internal) == 0 {
			return
		}
		r.runExternalBatch()
	}
}

// Submit enqueues fn for execution on the loop thread. Safe to call from
// any goroutine. Jobs submitted from one goroutine execute in submission
// order. Returns ErrTerminated once shutdown has begun.
func (r *Reactor) Submit(fn func()) error {
	if fn == nil {
		panic(`reactor: nil job`)
	}
	r.mu.Lock()
	if !r.state.CanAcceptWork() {
		r.mu.Unlock()
		return ErrTerminated
	}
	r.jobs = append(r.jobs, fn)
	r.mu.Unlock()
	r.wake()
	return nil
}

// Schedule defers fn as a continuation of the current callback. It runs
// before any submitted job, after the callback returns. Must be called
// from the loop thread.
func (r *Reactor) Schedule(fn func()) {
	if fn == nil {
		panic(`reactor: nil job`)
	}
	r.assertLoopThread()
	r.internal = append(r.internal, fn)
}

// After arms a one-shot timer. The callback runs on the loop thread no
// earlier than d from now. Must be called from the loop thread.
func (r *Reactor) After(d time.Duration, fn func()) *Timer {
	if fn == nil {
		panic(`reactor: nil timer func`)
	}
	r.assertLoopThread()
	r.timerSeq++
	t := &Timer{
		when: time.Now().Add(d),
		seq:  r.timerSeq,
		fn:   fn,
		r:    r,
	}
	heap.Push(&r.timers, t)
	return t
}

// Shutdown requests a graceful stop and blocks until the loop has exited
// or ctx expires. Pending continuations and already-submitted jobs run
// before the loop exits. If the reactor is still Awake (Run has not started
// the loop), it terminates at once: jobs submitted so far never run, and a
// later Run returns ErrTerminated.
func (r *Reactor) Shutdown(ctx context.Context) error {
	r.requestStop()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close requests a stop without waiting. Safe to call from any goroutine,
// including the loop thread.
func (r *Reactor) Close() {
	r.requestStop()
}

func (r *Reactor) requestStop() {
	r.stopOnce.Do(func() {
		for {
			s := r.state.Load()
			if s == StateTerminating || s == StateTerminated {
				return
			}
			if r.state.TryTransition(s, StateTerminating) {
				if s == StateAwake {
					r.state.Store(StateTerminated)
					close(r.done)
					return
				}
				r.wake()
				return
			}
		}
	})
}

// State returns the reactor's current state.
func (r *Reactor) State() State {
	return r.state.Load()
}

// Done returns a channel closed once the loop has fully terminated.
func (r *Reactor) Done() <-chan struct{} {
	return r.done
}

// IsLoopThread reports whether the caller is running on the loop thread.
func (r *Reactor) IsLoopThread() bool {
	id := r.loopGoroutineID.Load()
	return id != 0 && id == getGoroutineID()
}

func (r *Reactor) assertLoopThread() {
	if !r.IsLoopThread() {
		panic(`reactor: call from outside the loop thread`)
	}
}

func (r *Reactor) wake() {
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
