package modsys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kedoruntime/kedo/internal/core"
)

func newTestSystem(t *testing.T, root string) (*System, *StdProvider, *OpProvider) {
	t.Helper()
	sys := New()
	std := NewStdProvider()
	ops := NewOpProvider()
	fs := NewFilesystemProvider(root)
	sys.Register(NewStdResolver(std), std)
	sys.Register(NewOpResolver(ops), ops)
	sys.Register(fs, fs)
	return sys, std, ops
}

func TestSystemResolvesStdBeforeFilesystem(t *testing.T) {
	sys, std, _ := newTestSystem(t, t.TempDir())
	std.AddSource("@kedo/assert", "export default 1;")

	resolved, err := sys.Resolve("@kedo/assert", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != "@kedo/assert" {
		t.Fatalf("expected std specifier to resolve unchanged, got %q", resolved)
	}

	src, err := sys.Load(resolved)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if src.Source != "export default 1;" {
		t.Fatalf("unexpected source: %q", src.Source)
	}
}

func TestSystemResolvesOpSpecifiers(t *testing.T) {
	sys, _, ops := newTestSystem(t, t.TempDir())
	ops.Register("timers", "export const setTimeout = globalThis.setTimeout;")

	resolved, err := sys.Resolve("@kedo:op/timers", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != "@kedo:op/timers" {
		t.Fatalf("expected op specifier to resolve unchanged, got %q", resolved)
	}
}

func TestSystemFallsBackToFilesystem(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.js")
	if err := os.WriteFile(entry, []byte("export const x = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}

	sys, _, _ := newTestSystem(t, dir)
	resolved, err := sys.Resolve("./main.js", filepath.Join(dir, "entry.js"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != entry {
		t.Fatalf("expected resolved path %q, got %q", entry, resolved)
	}

	src, err := sys.Load(resolved)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if src.Path != entry {
		t.Fatalf("expected filesystem provider to set Path, got %+v", src)
	}
}

func TestSystemResolveUnknownSpecifierFails(t *testing.T) {
	sys, _, _ := newTestSystem(t, t.TempDir())
	_, err := sys.Resolve("@kedo/does-not-exist", "")
	var kerr *core.Error
	if !errors.As(err, &kerr) || kerr.Kind != core.KindModuleNotFound {
		t.Fatalf("expected KindModuleNotFound, got %v", err)
	}
}

func TestSystemMarkEvaluatedIsIdempotentAndQueryable(t *testing.T) {
	sys := New()
	if sys.IsEvaluated("x") {
		t.Fatal("expected fresh system to report unevaluated")
	}
	sys.MarkEvaluated("x")
	sys.MarkEvaluated("x")
	if !sys.IsEvaluated("x") {
		t.Fatal("expected specifier to be marked evaluated")
	}
}
