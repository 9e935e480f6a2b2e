package kedo

import (
	"fmt"
	"path/filepath"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// Bundle resolves entry's import graph with esbuild and returns a single
// self-contained ES module. Grounded on the teacher's bundle.go
// BundleWorkerScript, trimmed to the plain entry/output shape SPEC_FULL.md
// §6 names: no Node-compat aliasing, since that exists only to serve the
// teacher's deployment-specific unenv polyfill set, which has no anchor
// in this runtime's module system.
func Bundle(entry string, minify bool) (string, error) {
	opts := esbuild.BuildOptions{
		EntryPoints:   []string{entry},
		AbsWorkingDir: filepath.Dir(entry),
		Bundle:        true,
		Format:        esbuild.FormatESModule,
		Write:         false,
		Platform:      esbuild.PlatformNeutral,
		Target:        esbuild.ES2022,
		TreeShaking:   esbuild.TreeShakingFalse,
		MinifyWhitespace:  minify,
		MinifyIdentifiers: minify,
		MinifySyntax:      minify,
	}

	result := esbuild.Build(opts)
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return "", fmt.Errorf("bundling %s: %s", entry, strings.Join(msgs, "; "))
	}
	if len(result.OutputFiles) == 0 {
		return "", fmt.Errorf("bundling %s produced no output", entry)
	}
	return string(result.OutputFiles[0].Contents), nil
}
