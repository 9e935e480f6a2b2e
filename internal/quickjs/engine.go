//go:build !v8

package quickjs

import (
	"github.com/kedoruntime/kedo/internal/core"
	"github.com/kedoruntime/kedo/internal/eventloop"
	"github.com/kedoruntime/kedo/internal/modsys"
	"github.com/kedoruntime/kedo/internal/webapi"
	"modernc.org/quickjs"
)

// New constructs a single QuickJS VM, wires the standard module
// resolvers, and installs every native op module's Go-side bindings.
// Grounded on the teacher's newQJSWorker, adapted from "build one of N
// pooled workers" to "build the one instance this process owns" (see
// the Non-goals section of SPEC_FULL.md on why per-site pooling is dropped).
func New(cfg core.RuntimeConfig, el *eventloop.EventLoop) (core.JSRuntime, *modsys.System, *core.ClassTable, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, nil, nil, core.Wrap(core.KindEngine, "create quickjs vm", err)
	}

	sys := modsys.New()
	stdProvider := modsys.NewStdProvider()
	stdProvider.AddSource("@kedo/assert", modsys.AssertJS)
	opProvider := modsys.NewOpProvider()
	fsProvider := modsys.NewFilesystemProvider(cfg.ModuleRoot)
	sys.Register(modsys.NewStdResolver(stdProvider), stdProvider)
	sys.Register(modsys.NewOpResolver(opProvider), opProvider)
	sys.Register(fsProvider, fsProvider)

	rt := &qjsRuntime{vm: vm, modsys: sys}
	if err := rt.initBinaryTransfer(); err != nil {
		vm.Close()
		return nil, nil, nil, core.Wrap(core.KindEngine, "init binary transfer", err)
	}

	classes := core.NewClassTable()
	if err := webapi.InstallAll(rt, el, classes, opProvider); err != nil {
		vm.Close()
		return nil, nil, nil, core.Wrap(core.KindEngine, "install web apis", err)
	}

	return rt, sys, classes, nil
}
