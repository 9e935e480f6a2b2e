//go:build v8

package v8engine

import (
	"github.com/kedoruntime/kedo/internal/core"
	"github.com/kedoruntime/kedo/internal/eventloop"
	"github.com/kedoruntime/kedo/internal/modsys"
	"github.com/kedoruntime/kedo/internal/webapi"
	v8 "github.com/tommie/v8go"
)

// New constructs a single V8 isolate/context, wires the standard module
// resolvers, and installs every native op module's Go-side bindings.
// Grounded on the teacher's getOrCreatePool, adapted from "build N pooled
// workers" to "build the one instance this process owns" (per-site
// pooling is out of scope: see the Non-goals section of SPEC_FULL.md).
func New(cfg core.RuntimeConfig, el *eventloop.EventLoop) (core.JSRuntime, *modsys.System, *core.ClassTable, error) {
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)

	sys := modsys.New()
	stdProvider := modsys.NewStdProvider()
	stdProvider.AddSource("@kedo/assert", modsys.AssertJS)
	opProvider := modsys.NewOpProvider()
	fsProvider := modsys.NewFilesystemProvider(cfg.ModuleRoot)
	sys.Register(modsys.NewStdResolver(stdProvider), stdProvider)
	sys.Register(modsys.NewOpResolver(opProvider), opProvider)
	sys.Register(fsProvider, fsProvider)

	rt := &v8Runtime{iso: iso, ctx: ctx, modsys: sys}

	classes := core.NewClassTable()
	if err := webapi.InstallAll(rt, el, classes, opProvider); err != nil {
		rt.Close()
		return nil, nil, nil, core.Wrap(core.KindEngine, "install web apis", err)
	}

	return rt, sys, classes, nil
}
