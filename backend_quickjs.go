//go:build !v8

package kedo

import (
	"github.com/kedoruntime/kedo/internal/core"
	"github.com/kedoruntime/kedo/internal/eventloop"
	"github.com/kedoruntime/kedo/internal/modsys"
	"github.com/kedoruntime/kedo/internal/quickjs"
)

// newEngine selects the QuickJS backend, the default build.
func newEngine(cfg core.RuntimeConfig, el *eventloop.EventLoop) (core.JSRuntime, *modsys.System, *core.ClassTable, error) {
	return quickjs.New(cfg, el)
}

const engineName = "quickjs"
