package kedo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kedoruntime/kedo/internal/core"
)

func writeScript(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.ModuleRoot = t.TempDir()
	rt, err := New(cfg)
	if err != nil {
		t.Fatalf("constructing runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

// Scenario 1: sequential timeouts — spec.md §8 scenario 1.
func TestSequentialTimeouts(t *testing.T) {
	rt := newTestRuntime(t)
	dir := t.TempDir()
	entry := writeScript(t, dir, "main.js", `
setTimeout(() => { globalThis.a = 1; }, 10);
setTimeout(() => { globalThis.b = 2; }, 20);
`)

	if err := rt.EvaluateModule(entry); err != nil {
		t.Fatalf("evaluating entry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rt.Idle(ctx)

	ok, err := rt.EvalBool("globalThis.a === 1 && globalThis.b === 2")
	if err != nil {
		t.Fatalf("checking result: %v", err)
	}
	if !ok {
		t.Fatal("expected both timeouts to have fired in order by idle")
	}
}

// Scenario 2: an interval cleared after its third firing — spec.md §8 scenario 2.
func TestIntervalWithClear(t *testing.T) {
	rt := newTestRuntime(t)
	dir := t.TempDir()
	entry := writeScript(t, dir, "main.js", `
globalThis.c = 0;
const id = setInterval(() => { globalThis.c++; }, 5);
setTimeout(() => { clearInterval(id); }, 17);
`)

	if err := rt.EvaluateModule(entry); err != nil {
		t.Fatalf("evaluating entry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rt.Idle(ctx)

	ok, err := rt.EvalBool("globalThis.c === 3")
	if err != nil {
		t.Fatalf("checking result: %v", err)
	}
	if !ok {
		t.Fatal("expected exactly 3 interval firings before clearInterval took effect")
	}
}

// Scenario 6: a script with no asynchronous work reaches idle immediately
// and Idle returns without hanging — spec.md §8 scenario 6.
func TestCleanExitWithNoAsyncWork(t *testing.T) {
	rt := newTestRuntime(t)
	dir := t.TempDir()
	entry := writeScript(t, dir, "main.js", `globalThis.done = 1 + 1;`)

	if err := rt.EvaluateModule(entry); err != nil {
		t.Fatalf("evaluating entry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	finished := make(chan struct{})
	go func() { rt.Idle(ctx); close(finished) }()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Idle to return promptly for a script with no async work")
	}
	if ctx.Err() != nil {
		t.Fatal("expected Idle to return because the loop went idle, not because the context expired")
	}

	ok, err := rt.EvalBool("globalThis.done === 2")
	if err != nil {
		t.Fatalf("checking result: %v", err)
	}
	if !ok {
		t.Fatal("expected the synchronous assignment to have run")
	}
}

// Scenario 4: module cache identity — spec.md §8 scenario 4, exercised
// through the @kedo/assert standard library module.
func TestModuleCacheIdentity(t *testing.T) {
	rt := newTestRuntime(t)
	dir := t.TempDir()
	entry := writeScript(t, dir, "main.js", `
import assertA from "@kedo/assert";
import assertB from "@kedo/assert";
globalThis.same = assertA === assertB;
assertA.ok(true);
`)

	if err := rt.EvaluateModule(entry); err != nil {
		t.Fatalf("evaluating entry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rt.Idle(ctx)

	ok, err := rt.EvalBool("globalThis.same === true")
	if err != nil {
		t.Fatalf("checking result: %v", err)
	}
	if !ok {
		t.Fatal("expected two imports of the same specifier to yield identity-equal exports")
	}
}

// Scenario 4 (process-lifetime): the module cache must survive across
// separate top-level evaluations in the same runtime, not just across
// two imports within a single evaluation — spec.md §4.4 describes the
// cache as scoped to the process, and §8 scenario 4's "every subsequent
// import of s returns the cached module" applies to a second top-level
// EvaluateSource call exactly as it does to a second import statement.
func TestModuleCacheIdentityAcrossTopLevelEvaluations(t *testing.T) {
	rt := newTestRuntime(t)

	if err := rt.EvaluateSource("entry-one", `
import assertA from "@kedo/assert";
globalThis.firstAssert = assertA;
`); err != nil {
		t.Fatalf("evaluating first source: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rt.Idle(ctx)

	if err := rt.EvaluateSource("entry-two", `
import assertB from "@kedo/assert";
globalThis.sameAcrossEvaluations = globalThis.firstAssert === assertB;
`); err != nil {
		t.Fatalf("evaluating second source: %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	rt.Idle(ctx2)

	ok, err := rt.EvalBool("globalThis.sameAcrossEvaluations === true")
	if err != nil {
		t.Fatalf("checking result: %v", err)
	}
	if !ok {
		t.Fatal("expected a module imported in a later, separate top-level evaluation to reuse the identity-equal module cached by an earlier evaluation")
	}
}
