package modsys

import (
	"strings"
	"testing"
)

func newLinkerSystem() (*System, *StdProvider) {
	sys := New()
	std := NewStdProvider()
	sys.Register(NewStdResolver(std), std)
	return sys, std
}

func TestLinkerRewritesNamedImportAndExportDecl(t *testing.T) {
	sys, std := newLinkerSystem()
	std.AddSource("@kedo/math", "export function add(a, b) { return a + b; }")
	std.AddSource("@kedo/main", `
import { add } from "@kedo/math";
export const result = add(1, 2);
`)

	linker := NewLinker(sys)
	out, err := linker.Link("@kedo/main", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	modDecl := strings.Index(out, `globalThis.__kedo_modules["@kedo/math"] = (function()`)
	entryDecl := strings.Index(out, `globalThis.__kedo_modules["@kedo/main"] = (function()`)
	if modDecl == -1 || entryDecl == -1 || modDecl > entryDecl {
		t.Fatalf("expected the dependency module's IIFE to be emitted (and so run) before the entry's, got:\n%s", out)
	}
	if !strings.Contains(out, `{ add } = globalThis.__kedo_modules["@kedo/math"]`) {
		t.Fatalf("expected named import rewritten to destructure from the math module, got:\n%s", out)
	}
	if !strings.Contains(out, `exports["add"] = add`) {
		t.Fatalf("expected declared export to be assigned onto exports, got:\n%s", out)
	}
}

func TestLinkerRewritesDefaultAndListExports(t *testing.T) {
	sys, std := newLinkerSystem()
	std.AddSource("@kedo/assert", `
function ok(v) { if (!v) throw new Error('assert'); }
export default ok;
export { ok };
`)
	linker := NewLinker(sys)
	out, err := linker.Link("@kedo/assert", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "exports.default = ok") {
		t.Fatalf("expected default export rewritten, got:\n%s", out)
	}
	if !strings.Contains(out, `exports["ok"] = ok`) {
		t.Fatalf("expected named export list rewritten, got:\n%s", out)
	}
}

func TestLinkerVisitsEachSpecifierOnlyOnce(t *testing.T) {
	sys, std := newLinkerSystem()
	std.AddSource("@kedo/shared", "export const value = {};")
	std.AddSource("@kedo/a", `import { value } from "@kedo/shared"; export const a = value;`)
	std.AddSource("@kedo/b", `import { value } from "@kedo/shared"; export const b = value;`)
	std.AddSource("@kedo/main", `
import { a } from "@kedo/a";
import { b } from "@kedo/b";
export const both = [a, b];
`)

	linker := NewLinker(sys)
	out, err := linker.Link("@kedo/main", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := strings.Count(out, "= (function()"); n != 4 {
		t.Fatalf("expected exactly 4 linked modules (shared, a, b, main), got %d in:\n%s", n, out)
	}
	if n := strings.Count(out, `globalThis.__kedo_modules["@kedo/shared"] = (function()`); n != 1 {
		t.Fatalf("expected @kedo/shared's IIFE to be emitted exactly once despite two importers, got %d in:\n%s", n, out)
	}
	if !sys.IsEvaluated("@kedo/shared") {
		t.Fatal("expected @kedo/shared to be marked evaluated")
	}
}

func TestLinkerReusesAlreadyEvaluatedModulesAcrossSeparateLinkCalls(t *testing.T) {
	// A brand-new Linker is constructed for every top-level evaluation
	// (see EvaluateModule/EvaluateModuleFromSource in the engine
	// runtimes), so the cross-call cache has to live on the System, not
	// on the Linker's own per-call visited set. A second Link call
	// against the same System must not re-emit (and so not re-run) a
	// module its first call already linked.
	sys, std := newLinkerSystem()
	std.AddSource("@kedo/shared", "export const value = {};")
	std.AddSource("@kedo/first", `import { value } from "@kedo/shared"; export const first = value;`)
	std.AddSource("@kedo/second", `import { value } from "@kedo/shared"; export const second = value;`)

	first := NewLinker(sys)
	out1, err := first.Link("@kedo/first", "")
	if err != nil {
		t.Fatalf("unexpected error linking @kedo/first: %v", err)
	}
	if !strings.Contains(out1, `globalThis.__kedo_modules["@kedo/shared"] = (function()`) {
		t.Fatalf("expected the first Link call to emit @kedo/shared's IIFE, got:\n%s", out1)
	}

	second := NewLinker(sys)
	out2, err := second.Link("@kedo/second", "")
	if err != nil {
		t.Fatalf("unexpected error linking @kedo/second: %v", err)
	}
	if strings.Contains(out2, `globalThis.__kedo_modules["@kedo/shared"] = (function()`) {
		t.Fatalf("expected the second, independent Link call to reuse @kedo/shared from the shared globalThis.__kedo_modules table instead of re-emitting it, got:\n%s", out2)
	}
	if !strings.Contains(out2, `globalThis.__kedo_modules["@kedo/second"] = (function()`) {
		t.Fatalf("expected the second Link call to still emit its own new module, got:\n%s", out2)
	}
}

func TestLinkerUnresolvableImportFails(t *testing.T) {
	sys, std := newLinkerSystem()
	std.AddSource("@kedo/main", `import { x } from "@kedo/missing";`)

	linker := NewLinker(sys)
	if _, err := linker.Link("@kedo/main", ""); err == nil {
		t.Fatal("expected linking an unresolvable import to fail")
	}
}
