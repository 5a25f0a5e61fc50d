package ncd

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-ncd/value"
	"github.com/stretchr/testify/require"
)

// trace records engine events in order. Writes happen on the reactor
// goroutine; reads happen from the test goroutine, synchronized by the
// mutex.
type trace struct {
	mu     sync.Mutex
	events []string
}

func (tr *trace) add(format string, args ...any) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, fmt.Sprintf(format, args...))
}

func (tr *trace) snapshot() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.events...)
}

// assertSubsequence checks that want occurs within the trace, in order,
// not necessarily contiguously.
func (tr *trace) assertSubsequence(t *testing.T, want ...string) {
	t.Helper()
	events := tr.snapshot()
	i := 0
	for _, ev := range events {
		if i < len(want) && ev == want[i] {
			i++
		}
	}
	require.Equal(t, len(want), i, "trace %v does not contain %v in order", events, want)
}

func (tr *trace) count(ev string) int {
	n := 0
	for _, e := range tr.snapshot() {
		if e == ev {
			n++
		}
	}
	return n
}

// nameOf returns the statement's descriptor name, falling back to its
// index.
func nameOf(i *Instance) string {
	if n := i.proc.desc.Statements[i.index].Name; n != "" {
		return n
	}
	return fmt.Sprintf("#%d", i.index)
}

// stubUpModule reports up synchronously and records its lifecycle.
func stubUpModule(tr *trace, typ string) *Module {
	return &Module{
		Type: typ,
		Init: func(i *Instance, args value.Value) {
			tr.add("%s:up", nameOf(i))
			i.Up()
		},
		Die: func(i *Instance) {
			tr.add("%s:dead", nameOf(i))
			i.Dead()
		},
	}
}

// notifyModule signals ch on every init, then reports up.
func notifyModule(typ string, ch chan<- struct{}) *Module {
	return &Module{
		Type: typ,
		Init: func(i *Instance, args value.Value) {
			select {
			case ch <- struct{}{}:
			default:
			}
			i.Up()
		},
	}
}

// failTimesModule fails its first n inits with the error flag, then
// reports up.
func failTimesModule(tr *trace, typ string, n int) *Module {
	count := 0
	return &Module{
		Type: typ,
		Init: func(i *Instance, args value.Value) {
			if count < n {
				count++
				tr.add("%s:fail", nameOf(i))
				i.SetError()
				i.Dead()
				return
			}
			tr.add("%s:up", nameOf(i))
			i.Up()
		},
		Die: func(i *Instance) {
			tr.add("%s:dead", nameOf(i))
			i.Dead()
		},
	}
}

// ref marks an argument as a variable reference, interned as a
// placeholder.
type ref []string

// makeArgs compiles an argument template: strings become literals, refs
// become placeholders.
func makeArgs(t *testing.T, b *ProgramBuilder, argv ...any) *value.Template {
	t.Helper()
	a := value.NewArena()
	l := a.NewList()
	for _, x := range argv {
		switch x := x.(type) {
		case string:
			l.ListAppend(a.NewString(x))
		case ref:
			l.ListAppend(a.NewPlaceholder(b.AddPlaceholder(x...)))
		default:
			t.Fatalf("unsupported argument %T", x)
		}
	}
	tpl, err := value.NewTemplate(l)
	require.NoError(t, err)
	return tpl
}

// testInterp runs an interpreter on a background goroutine.
type testInterp struct {
	interp *Interp
	done   chan struct{}
	code   int
	err    error
}

func runInterp(t *testing.T, prog *Program, reg *Registry, opts ...Option) *testInterp {
	t.Helper()
	interp, err := NewInterp(prog, reg, opts...)
	require.NoError(t, err)
	ti := &testInterp{interp: interp, done: make(chan struct{})}
	go func() {
		ti.code, ti.err = interp.Run(context.Background())
		close(ti.done)
	}()
	t.Cleanup(func() {
		interp.RequestExit(0)
		select {
		case <-ti.done:
		case <-time.After(10 * time.Second):
			t.Error("interpreter did not stop")
		}
	})
	return ti
}

// wait blocks until Run returns, then reports the exit code.
func (ti *testInterp) wait(t *testing.T) int {
	t.Helper()
	select {
	case <-ti.done:
	case <-time.After(10 * time.Second):
		t.Fatal("interpreter did not stop")
	}
	require.NoError(t, ti.err)
	return ti.code
}

// await receives from ch with a deadline.
func await(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}
