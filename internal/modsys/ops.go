package modsys

import (
	"strings"

	"github.com/kedoruntime/kedo/internal/core"
)

// OpProvider serves the synthetic `@kedo:op/<name>` modules backing
// native op wrappers (timers, fetch, websocket, console, encoding).
// Grounded on spec.md §4.4's synthetic-provider design note and
// original_source/packages/kedo_runtime/src/std_modules.rs's
// pattern-matched synthetic module handling.
type OpProvider struct {
	ops map[string]string
}

func NewOpProvider() *OpProvider { return &OpProvider{ops: make(map[string]string)} }

// Register associates name (without the `@kedo:op/` prefix) with the JS
// source exposing that op's bindings.
func (p *OpProvider) Register(name, source string) {
	p.ops["@kedo:op/"+name] = source
}

func (p *OpProvider) CanHandle(resolved string) bool {
	_, ok := p.ops[resolved]
	return ok
}

func (p *OpProvider) Load(resolved string) (core.ModuleSource, error) {
	src, ok := p.ops[resolved]
	if !ok {
		return core.ModuleSource{}, core.NewError(core.KindModuleNotFound, resolved, nil)
	}
	return core.ModuleSource{Specifier: resolved, Source: src}, nil
}

// OpResolver recognizes the `@kedo:op/` prefix.
type OpResolver struct{ provider *OpProvider }

func NewOpResolver(p *OpProvider) *OpResolver { return &OpResolver{provider: p} }

func (r *OpResolver) Resolve(specifier, _ string) (string, bool, error) {
	if strings.HasPrefix(specifier, "@kedo:op/") {
		return specifier, r.provider.CanHandle(specifier), nil
	}
	return "", false, nil
}
