// Package modsys implements the module system: a short ordered list of
// resolvers tried against each import specifier, and a cache of already
// evaluated modules keyed by resolved specifier. Grounded on
// original_source/src/es_module.rs's KedoModuleLoader (canonicalize +
// cache by path) and original_source/src/std_modules.rs's pattern-matched
// StdModuleResolver/StdModuleLoader pair, generalized from "one
// hard-coded loader" into spec.md §4.4's registered-resolvers design.
package modsys

import (
	"sync"

	"github.com/kedoruntime/kedo/internal/core"
)

// System is the process-lifetime module resolution + cache.
type System struct {
	resolvers []core.Resolver
	providers []core.Provider

	mu    sync.Mutex
	cache map[string]bool // resolved specifier -> already evaluated
}

func New() *System {
	return &System{cache: make(map[string]bool)}
}

// Register adds resolver/provider pairs in priority order: the first
// registered resolver/provider willing to handle a specifier wins.
func (s *System) Register(r core.Resolver, p core.Provider) {
	s.resolvers = append(s.resolvers, r)
	s.providers = append(s.providers, p)
}

// Resolve runs every registered resolver in order, returning the first
// match.
func (s *System) Resolve(specifier, referrer string) (string, error) {
	for _, r := range s.resolvers {
		resolved, ok, err := r.Resolve(specifier, referrer)
		if err != nil {
			return "", core.Wrap(core.KindModuleLoad, "resolve "+specifier, err)
		}
		if ok {
			return resolved, nil
		}
	}
	return "", core.NewError(core.KindModuleNotFound, specifier, nil)
}

// Load finds the provider willing to handle resolved and returns its
// ModuleSource.
func (s *System) Load(resolved string) (core.ModuleSource, error) {
	for _, p := range s.providers {
		if p.CanHandle(resolved) {
			src, err := p.Load(resolved)
			if err != nil {
				return core.ModuleSource{}, core.Wrap(core.KindModuleLoad, resolved, err)
			}
			return src, nil
		}
	}
	return core.ModuleSource{}, core.NewError(core.KindModuleNotFound, resolved, nil)
}

// MarkEvaluated records that resolved has already been evaluated once.
// IsEvaluated is consulted by Linker.visit so a module already linked by
// an earlier top-level evaluation is reused rather than relinked and
// rerun by a later one: "evaluate a module exactly once per process,
// reuse its result for every subsequent import" (spec.md §8 scenario 4).
func (s *System) MarkEvaluated(resolved string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[resolved] = true
}

func (s *System) IsEvaluated(resolved string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[resolved]
}
