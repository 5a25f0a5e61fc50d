// Package ncd implements a declarative execution engine for processes made
// of statements. A statement is a live instance of a module with a
// lifecycle: it initializes, reports up, may later report down or die, and
// is eventually destroyed. A process executes its statements with strict
// in-order bring-up and reverse-order teardown: statement i+1 is never
// initialized before statement i is up, and when a statement regresses,
// everything initialized after it is torn down, newest first, before the
// regressed statement is told the coast is clear.
//
// # Architecture
//
// The engine is built from five pieces. The [value] package supplies the
// tree values statements exchange. A [Registry] catalogs statement kinds
// ([Module]): each module advertises an operation table and capabilities
// such as whether its variables may be read while the statement is down.
// [Instance] is the runtime of one statement, mediating between the module
// (backend commands: [Instance.Up], [Instance.Down], [Instance.Dead], ...)
// and the process scheduler. [Process] executes a compiled block
// ([ProcessDesc]) under the advance-cursor / fixed-pointer discipline, with
// deferred retry of failed statements. [SubProcess] lets a module spawn a
// child process from a template, with bidirectional events and the
// down/continue handshake that makes nested regress compose.
//
// Compiled inputs ([Program], [ProcessDesc], [StatementDesc]) are produced
// by an external loader; this package performs no parsing and no I/O.
//
// # Concurrency
//
// Everything runs on a single [reactor.Reactor] goroutine. Module callbacks
// are invoked on that goroutine and may issue backend commands
// synchronously; control transfers between statements only after a callback
// returns, on a timer, or on external submission. Backend commands panic if
// issued in a state where they are illegal.
//
// # Usage
//
//	reg := ncd.NewRegistry()
//	ncdmodules.Register(reg)
//
//	b := ncd.NewProgramBuilder()
//	// ... add compiled processes ...
//	program, err := b.Build()
//	if err != nil {
//		// ...
//	}
//
//	interp, err := ncd.NewInterp(program, reg,
//		ncd.WithLogger(logger),
//		ncd.WithRetryTime(10*time.Second),
//	)
//	if err != nil {
//		// ...
//	}
//	code, err := interp.Run(context.Background())
package ncd
