package modsys

import (
	"strings"

	"github.com/kedoruntime/kedo/internal/core"
)

// StdProvider serves JS source text embedded at build time for the
// `@kedo/...` and `@kedo:int/std/...` specifier schemes. Grounded on
// original_source/cli/std_loader.rs's StdModuleLoader, whose `modules`
// HashSet is a fixed allow-list and whose `load` returns `include_str!`
// source; here the allow-list is the map's keys and the source is
// whatever the caller registered (the JS-authored standard library is
// an external collaborator per spec.md §1 — this provider only supplies
// the plumbing that would host it).
type StdProvider struct {
	sources map[string]string
}

func NewStdProvider() *StdProvider {
	return &StdProvider{sources: make(map[string]string)}
}

// AddSource registers the JS source for a given `@kedo/...` specifier.
func (p *StdProvider) AddSource(specifier, source string) {
	p.sources[specifier] = source
}

func (p *StdProvider) CanHandle(resolved string) bool {
	_, ok := p.sources[resolved]
	return ok
}

func (p *StdProvider) Load(resolved string) (core.ModuleSource, error) {
	src, ok := p.sources[resolved]
	if !ok {
		return core.ModuleSource{}, core.NewError(core.KindModuleNotFound, resolved, nil)
	}
	return core.ModuleSource{Specifier: resolved, Source: src}, nil
}

// StdResolver recognizes the `@kedo/` and `@kedo:int/std/` specifier
// prefixes and passes them through unchanged (they are already
// canonical), mirroring std_modules.rs's PATTERN = "@kedo" prefix match.
type StdResolver struct{ provider *StdProvider }

func NewStdResolver(p *StdProvider) *StdResolver { return &StdResolver{provider: p} }

func (r *StdResolver) Resolve(specifier, _ string) (string, bool, error) {
	if strings.HasPrefix(specifier, "@kedo/") || strings.HasPrefix(specifier, "@kedo:int/std/") {
		return specifier, r.provider.CanHandle(specifier), nil
	}
	return "", false, nil
}
