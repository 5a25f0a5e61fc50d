package reactor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// start runs a reactor on a background goroutine and waits until its loop
// is running, returning a stop func that shuts it down and waits for Run to
// return.
func start(t *testing.T, r *Reactor) (stop func()) {
	t.Helper()
	runErr := make(chan error, 1)
	go func() {
		runErr <- r.Run(context.Background())
	}()
	waitForRunning(t, r)
	return func() {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, r.Shutdown(ctx))
		require.NoError(t, <-runErr)
	}
}

// waitForRunning blocks until the loop has executed a submitted job, so a
// following Shutdown cannot find the reactor still Awake.
func waitForRunning(t *testing.T, r *Reactor) {
	t.Helper()
	running := make(chan struct{})
	require.NoError(t, r.Submit(func() { close(running) }))
	select {
	case <-running:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not start")
	}
}

func TestReactor_submitRunsOnLoop(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()

	done := make(chan bool, 1)
	require.NoError(t, r.Submit(func() {
		done <- r.IsLoopThread()
	}))
	select {
	case onLoop := <-done:
		assert.True(t, onLoop)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestReactor_submitOrdering(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, r.Submit(func() {
			got = append(got, i)
			if i == 99 {
				close(done)
			}
		}))
	}
	<-done
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestReactor_scheduleBeforeSubmitted(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()

	var got []string
	done := make(chan struct{})
	require.NoError(t, r.Submit(func() {
		// Continuations scheduled here must run before any job submitted
		// afterwards from this callback.
		r.Schedule(func() { got = append(got, "c1") })
		r.Schedule(func() {
			got = append(got, "c2")
			r.Schedule(func() { got = append(got, "c3") })
		})
		_ = r.Submit(func() {
			got = append(got, "external")
			close(done)
		})
	}))
	<-done
	assert.Equal(t, []string{"c1", "c2", "c3", "external"}, got)
}

func TestReactor_schedulePanicsOffLoop(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()
	assert.Panics(t, func() { r.Schedule(func() {}) })
}

func TestReactor_timerFires(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()

	fired := make(chan time.Time, 1)
	begin := time.Now()
	require.NoError(t, r.Submit(func() {
		r.After(30*time.Millisecond, func() {
			fired <- time.Now()
		})
	}))
	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(begin), 30*time.Millisecond)
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestReactor_timerOrdering(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()

	var got []string
	done := make(chan struct{})
	require.NoError(t, r.Submit(func() {
		r.After(50*time.Millisecond, func() {
			got = append(got, "late")
			close(done)
		})
		r.After(10*time.Millisecond, func() { got = append(got, "early") })
		r.After(10*time.Millisecond, func() { got = append(got, "early2") })
	}))
	<-done
	assert.Equal(t, []string{"early", "early2", "late"}, got)
}

func TestReactor_timerStop(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()

	fired := make(chan struct{}, 1)
	checked := make(chan bool, 1)
	require.NoError(t, r.Submit(func() {
		tm := r.After(20*time.Millisecond, func() {
			fired <- struct{}{}
		})
		checked <- tm.Stop()
	}))
	assert.True(t, <-checked)
	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReactor_shutdownDrainsPending(t *testing.T) {
	r := New()
	runErr := make(chan error, 1)
	go func() {
		runErr <- r.Run(context.Background())
	}()
	waitForRunning(t, r)

	var ran atomic.Int32
	gate := make(chan struct{})
	require.NoError(t, r.Submit(func() {
		<-gate
		ran.Add(1)
	}))
	require.NoError(t, r.Submit(func() {
		ran.Add(1)
	}))
	close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	require.NoError(t, <-runErr)
	assert.Equal(t, int32(2), ran.Load())
	assert.Equal(t, StateTerminated, r.State())
}

func TestReactor_submitAfterShutdown(t *testing.T) {
	r := New()
	stop := start(t, r)
	stop()
	assert.ErrorIs(t, r.Submit(func() {}), ErrTerminated)
}

func TestReactor_runTwice(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()
	// Wait for the loop goroutine to have started.
	done := make(chan struct{})
	require.NoError(t, r.Submit(func() { close(done) }))
	<-done
	assert.ErrorIs(t, r.Run(context.Background()), ErrAlreadyRunning)
}

func TestReactor_runAfterTerminated(t *testing.T) {
	r := New()
	stop := start(t, r)
	stop()
	assert.ErrorIs(t, r.Run(context.Background()), ErrTerminated)
}

func TestReactor_reentrantRun(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()

	errCh := make(chan error, 1)
	require.NoError(t, r.Submit(func() {
		errCh <- r.Run(context.Background())
	}))
	assert.ErrorIs(t, <-errCh, ErrReentrantRun)
}

func TestReactor_contextCancellation(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- r.Run(ctx)
	}()
	done := make(chan struct{})
	require.NoError(t, r.Submit(func() { close(done) }))
	<-done
	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return on cancellation")
	}
}

func TestReactor_shutdownBeforeRun(t *testing.T) {
	r := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	assert.Equal(t, StateTerminated, r.State())
	assert.ErrorIs(t, r.Run(context.Background()), ErrTerminated)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Awake", StateAwake.String())
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "Sleeping", StateSleeping.String())
	assert.Equal(t, "Terminating", StateTerminating.String())
	assert.Equal(t, "Terminated", StateTerminated.String())
	assert.Equal(t, "Unknown", State(99).String())
}
