//go:build v8

package kedo

import (
	"github.com/kedoruntime/kedo/internal/core"
	"github.com/kedoruntime/kedo/internal/eventloop"
	"github.com/kedoruntime/kedo/internal/modsys"
	"github.com/kedoruntime/kedo/internal/v8engine"
)

// newEngine selects the V8 backend, built with -tags v8.
func newEngine(cfg core.RuntimeConfig, el *eventloop.EventLoop) (core.JSRuntime, *modsys.System, *core.ClassTable, error) {
	return v8engine.New(cfg, el)
}

const engineName = "v8"
