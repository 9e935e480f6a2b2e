package modsys

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kedoruntime/kedo/internal/core"
)

// FilesystemProvider is the resolver/provider of last resort: relative
// and absolute paths are read straight off disk. Grounded on
// original_source/src/es_module.rs's KedoModuleLoader, whose
// load_imported_module canonicalizes the specifier relative to the
// referrer's directory (or the configured root for the entry module)
// before reading and caching it.
type FilesystemProvider struct {
	Root string
}

func NewFilesystemProvider(root string) *FilesystemProvider {
	return &FilesystemProvider{Root: root}
}

func (p *FilesystemProvider) Resolve(specifier, referrer string) (string, bool, error) {
	if strings.HasPrefix(specifier, "@kedo") {
		return "", false, nil
	}
	base := p.Root
	if referrer != "" {
		base = filepath.Dir(referrer)
	}
	var joined string
	if filepath.IsAbs(specifier) {
		joined = specifier
	} else {
		joined = filepath.Join(base, specifier)
	}
	resolved, err := filepath.Abs(joined)
	if err != nil {
		return "", false, core.Wrap(core.KindModuleLoad, specifier, err)
	}
	return resolved, true, nil
}

func (p *FilesystemProvider) CanHandle(resolved string) bool {
	return filepath.IsAbs(resolved) && !strings.HasPrefix(resolved, "@kedo")
}

func (p *FilesystemProvider) Load(resolved string) (core.ModuleSource, error) {
	if _, err := os.Stat(resolved); err != nil {
		return core.ModuleSource{}, core.Wrap(core.KindModuleNotFound, resolved, err)
	}
	return core.ModuleSource{Specifier: resolved, Path: resolved}, nil
}
