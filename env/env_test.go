package env

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wippyai/script-bridge/cell"
	bridgeerrors "github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/ownership"
)

type point struct {
	X int
	Y int
}

func (p *point) Sum() int { return p.X + p.Y }

func newTestEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()
	e, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNewAndClose(t *testing.T) {
	e, err := New(context.Background())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Closed() {
		t.Fatal("fresh environment reports closed")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !e.Closed() {
		t.Fatal("environment not closed after Close")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := e.Eval("1"); err == nil {
		t.Fatal("Eval after Close succeeded")
	}
	if err := e.Set("x", 1); err == nil {
		t.Fatal("Set after Close succeeded")
	}
	if _, err := e.Get("x"); err == nil {
		t.Fatal("Get after Close succeeded")
	}
	if _, err := e.BindType("P", point{}); err == nil {
		t.Fatal("BindType after Close succeeded")
	}
}

func TestEvalAndCall(t *testing.T) {
	e := newTestEnv(t)

	v, err := e.Eval("1 + 2")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got := v.Export(); got != int64(3) {
		t.Fatalf("Eval result = %v, want 3", got)
	}

	if _, err := e.Eval("function add(a, b) { return a + b }"); err != nil {
		t.Fatalf("Eval define: %v", err)
	}
	v, err = e.Call("add", 2, 3)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got := v.Export(); got != int64(5) {
		t.Fatalf("Call result = %v, want 5", got)
	}

	if _, err := e.Eval("syntax error here("); err == nil {
		t.Fatal("Eval of invalid source succeeded")
	}

	_, err = e.Call("missing")
	var be *bridgeerrors.Error
	if !errors.As(err, &be) || be.Kind != bridgeerrors.KindUnknownName {
		t.Fatalf("Call of unknown function: got %v, want unknown_name", err)
	}
}

func TestSetGetScalars(t *testing.T) {
	e := newTestEnv(t)

	if err := e.Set("n", 42); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set("s", "hello"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	n, err := e.Get("n")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n != int64(42) {
		t.Fatalf("Get(n) = %v, want 42", n)
	}
	s, err := e.Get("s")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s != "hello" {
		t.Fatalf("Get(s) = %v, want hello", s)
	}

	if _, err := e.Get("absent"); err == nil {
		t.Fatal("Get of unknown name succeeded")
	}
}

func TestCopiedStructIsolation(t *testing.T) {
	e := newTestEnv(t)

	orig := point{X: 1, Y: 2}
	if err := e.Set("p", orig); err != nil {
		t.Fatalf("Set: %v", err)
	}

	m, err := e.Mode("p")
	if err != nil {
		t.Fatalf("Mode: %v", err)
	}
	if m != ownership.Copied {
		t.Fatalf("Mode = %v, want Copied", m)
	}

	// Host-side mutation after the offer must not show through.
	orig.X = 99
	got, err := e.Get("p")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.(point).X != 1 {
		t.Fatalf("copied cell tracked host mutation: got X=%d", got.(point).X)
	}

	ref, err := e.GetRef("p")
	if err != nil {
		t.Fatalf("GetRef: %v", err)
	}
	if ref.(*point) == &orig {
		t.Fatal("copied cell aliases the original")
	}

	// Script mutation hits the copy, and the copy only.
	if _, err := e.Eval("p.X = 7"); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if ref.(*point).X != 7 {
		t.Fatalf("script write not visible through storage pointer: X=%d", ref.(*point).X)
	}
	if orig.X != 99 {
		t.Fatalf("script write leaked into the original: X=%d", orig.X)
	}
}

func TestBorrowedAliasesOriginal(t *testing.T) {
	e := newTestEnv(t)

	v := point{X: 1, Y: 2}
	if err := e.Set("bp", &v); err != nil {
		t.Fatalf("Set pointer: %v", err)
	}
	if err := e.Set("br", ownership.Ref(&v)); err != nil {
		t.Fatalf("Set ref: %v", err)
	}

	for name, want := range map[string]ownership.Mode{
		"bp": ownership.BorrowedPointer,
		"br": ownership.BorrowedReference,
	} {
		m, err := e.Mode(name)
		if err != nil {
			t.Fatalf("Mode(%s): %v", name, err)
		}
		if m != want {
			t.Fatalf("Mode(%s) = %v, want %v", name, m, want)
		}
		ref, err := e.GetRef(name)
		if err != nil {
			t.Fatalf("GetRef(%s): %v", name, err)
		}
		if ref.(*point) != &v {
			t.Fatalf("GetRef(%s) does not alias the original", name)
		}
	}

	if _, err := e.Eval("bp.X = 10; br.Y = 20"); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.X != 10 || v.Y != 20 {
		t.Fatalf("script writes not visible on original: %+v", v)
	}
}

func TestMethodDispatch(t *testing.T) {
	e := newTestEnv(t)

	if err := e.Set("p", point{X: 3, Y: 4}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := e.Eval("p.Sum()")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got := v.Export(); got != int64(7) {
		t.Fatalf("p.Sum() = %v, want 7", got)
	}

	v, err = e.Eval("p.Sum === p.Sum")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got := v.Export(); got != true {
		t.Fatal("method wrapper identity is not stable across accesses")
	}
}

func TestSetFuncPlain(t *testing.T) {
	e := newTestEnv(t)

	if err := e.SetFunc("twice", func(n int) int { return 2 * n }); err != nil {
		t.Fatalf("SetFunc: %v", err)
	}
	v, err := e.Eval("twice(21)")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got := v.Export(); got != int64(42) {
		t.Fatalf("twice(21) = %v, want 42", got)
	}

	if err := e.SetFunc("nothing", nil); err == nil {
		t.Fatal("SetFunc(nil) succeeded")
	}
}

func TestSetFuncRejectsNonCallable(t *testing.T) {
	counters := &ownership.Counters{}
	e := newTestEnv(t, WithHooks(counters.Hooks()))

	err := e.SetFunc("bogus", point{X: 1})
	var be *bridgeerrors.Error
	if !errors.As(err, &be) || be.Kind != bridgeerrors.KindInvalidInput {
		t.Fatalf("SetFunc of non-callable: got %v, want invalid_input", err)
	}

	// The failed bind leaves no trace: no cell, no copy, no global.
	if live := e.Stats().LiveCells; live != 0 {
		t.Fatalf("LiveCells = %d after failed SetFunc, want 0", live)
	}
	if got := counters.Copies.Load(); got != 0 {
		t.Fatalf("Copies = %d after failed SetFunc, want 0", got)
	}
	if _, err := e.Get("bogus"); err == nil {
		t.Fatal("failed SetFunc still bound a global")
	}
}

func TestBindTypeErrors(t *testing.T) {
	e := newTestEnv(t)

	if _, err := e.BindType("P", point{}); err != nil {
		t.Fatalf("BindType: %v", err)
	}
	// Same name, same type: idempotent.
	if _, err := e.BindType("P", point{}); err != nil {
		t.Fatalf("repeat BindType: %v", err)
	}

	type other struct{ Z int }
	_, err := e.BindType("P", other{})
	var be *bridgeerrors.Error
	if !errors.As(err, &be) || !be.IsSetup() {
		t.Fatalf("conflicting BindType: got %v, want setup error", err)
	}

	// Original binding survives the failed attempt.
	if err := e.Set("q", point{X: 1}); err != nil {
		t.Fatalf("Set after failed rebind: %v", err)
	}

	_, err = e.BindType("D", struct{ point }{}, cell.WithBase(other{}))
	if err == nil {
		t.Fatal("WithBase on unregistered base succeeded")
	}
}

func TestStats(t *testing.T) {
	e := newTestEnv(t)

	st := e.Stats()
	if st.LiveCells != 0 {
		t.Fatalf("fresh LiveCells = %d", st.LiveCells)
	}

	if err := e.Set("a", point{X: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set("b", point{X: 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	st = e.Stats()
	if st.LiveCells != 2 {
		t.Fatalf("LiveCells = %d, want 2", st.LiveCells)
	}
	if st.Descriptors != 1 {
		t.Fatalf("Descriptors = %d, want 1", st.Descriptors)
	}
}

func TestConsoleOption(t *testing.T) {
	e := newTestEnv(t, WithConsole())
	if _, err := e.Eval(`console.log("boundary check")`); err != nil {
		t.Fatalf("console.log: %v", err)
	}
}

func TestContextInterrupt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	e, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if _, err := e.Eval("while (true) {}"); err == nil {
		t.Fatal("runaway script was not interrupted")
	}
}
