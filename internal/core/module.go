package core

// ModuleSource is what a module Provider resolves a specifier to: either
// JS source text (evaluated as an ES module) or a signal that the
// resolved specifier should be read from the filesystem at Path.
// Grounded on original_source/cli/std_loader.rs's StdModuleLoader::load
// (returns embedded source text) and es_module.rs's filesystem loader
// (reads and parses from a canonicalized path).
type ModuleSource struct {
	Specifier string
	Source    string // populated when the provider supplies source text directly
	Path      string // populated when the provider wants the engine to read a file
}

// Resolver maps an import specifier (as written in source) plus the
// path of the referring module to a canonical resolved specifier.
// Multiple resolvers are tried in registration order; the first to
// return ok=true wins. Grounded on spec.md §4.4's "a short ordered list
// of resolvers" design and original_source/src/std_modules.rs's
// pattern-matched StdModuleResolver.
type Resolver interface {
	Resolve(specifier, referrer string) (resolved string, ok bool, err error)
}

// Provider loads the source for a resolved specifier it claims via
// CanHandle. Grounded on original_source/cli/std_loader.rs's ModuleLoader
// trait (can_handle/load) and kedo_runtime's synthetic @kedo:op providers.
type Provider interface {
	CanHandle(resolved string) bool
	Load(resolved string) (ModuleSource, error)
}
