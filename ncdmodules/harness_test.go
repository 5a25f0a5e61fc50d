package ncdmodules

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-ncd/ncd"
	"github.com/joeycumines/go-ncd/value"
	"github.com/stretchr/testify/require"
)

// trace records module events in order, mutex-synchronized between the
// reactor goroutine and the test.
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

func (tr *trace) count(ev string) int {
	n := 0
	for _, e := range tr.snapshot() {
		if e == ev {
			n++
		}
	}
	return n
}

// assertSubsequence checks that want occurs within the trace, in order.
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

// registry returns a fresh registry with the library registered.
func registry(extra ...*ncd.Module) *ncd.Registry {
	reg := ncd.NewRegistry()
	Register(reg)
	for _, m := range extra {
		reg.MustRegister(m)
	}
	return reg
}

// notifyModule signals ch on every init, then reports up.
func notifyModule(typ string, ch chan<- struct{}) *ncd.Module {
	return &ncd.Module{
		Type: typ,
		Init: func(i *ncd.Instance, args value.Value) {
			select {
			case ch <- struct{}{}:
			default:
			}
			i.Up()
		},
	}
}

// traceValueModule holds its first argument like var, recording its
// lifecycle under the given label.
func traceValueModule(tr *trace, typ, label string) *ncd.Module {
	return &ncd.Module{
		Type: typ,
		Init: func(i *ncd.Instance, args value.Value) {
			tr.add("%s:up", label)
			i.Mem = args.ListGet(0)
			i.Up()
		},
		Die: func(i *ncd.Instance) {
			tr.add("%s:dead", label)
			i.Dead()
		},
		GetVar: func(i *ncd.Instance, name string) (value.Value, bool) {
			if name != "" {
				return value.Value{}, false
			}
			return i.Mem.(value.Value), true
		},
	}
}

// ref marks an argument as a variable reference; lst builds a nested
// list literal.
type (
	ref []string
	lst []any
)

// argValue builds one template argument node.
func argValue(t *testing.T, b *ncd.ProgramBuilder, a *value.Arena, x any) value.Value {
	t.Helper()
	switch x := x.(type) {
	case string:
		return a.NewString(x)
	case ref:
		return a.NewPlaceholder(b.AddPlaceholder(x...))
	case lst:
		l := a.NewList()
		for _, e := range x {
			l.ListAppend(argValue(t, b, a, e))
		}
		return l
	default:
		t.Fatalf("unsupported argument %T", x)
		return value.Value{}
	}
}

// makeArgs compiles an argument template.
func makeArgs(t *testing.T, b *ncd.ProgramBuilder, argv ...any) *value.Template {
	t.Helper()
	a := value.NewArena()
	l := a.NewList()
	for _, x := range argv {
		l.ListAppend(argValue(t, b, a, x))
	}
	tpl, err := value.NewTemplate(l)
	require.NoError(t, err)
	return tpl
}

// testInterp runs an interpreter on a background goroutine.
type testInterp struct {
	interp *ncd.Interp
	done   chan struct{}
	code   int
	err    error
}

func runInterp(t *testing.T, prog *ncd.Program, reg *ncd.Registry, opts ...ncd.Option) *testInterp {
	t.Helper()
	interp, err := ncd.NewInterp(prog, reg, opts...)
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

// assertHoldsRetrying runs a process of the given statement followed by a
// notify, and asserts the statement fails construction: the process holds
// retrying and notify is never reached.
func assertHoldsRetrying(t *testing.T, desc ncd.StatementDesc) {
	t.Helper()
	ready := make(chan struct{}, 1)
	reg := registry(notifyModule("notify", ready))

	b := ncd.NewProgramBuilder()
	b.AddProcess(ncd.ProcessDesc{
		Name: "main",
		Statements: []ncd.StatementDesc{
			desc,
			{Type: "notify"},
		},
	})
	prog, err := b.Build()
	require.NoError(t, err)

	ti := runInterp(t, prog, reg, ncd.WithRetryTime(time.Hour))
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, ready)
	ti.interp.RequestExit(0)
	ti.wait(t)
}

func await(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}
