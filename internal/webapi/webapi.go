// Package webapi installs the native op modules spec.md §4.8 lists:
// globals, console, encoding, timers, fetch, and websocket. Each Setup*
// function wires its Go-backed functions into the engine and evaluates
// its JS polyfill; InstallAll runs them in the dependency order the
// polyfills themselves assume (globals before anything that throws
// DOMException, encoding before fetch's base64/TextDecoder use, globals'
// performance.now() before console's time()/timeEnd()).
package webapi

import (
	"github.com/kedoruntime/kedo/internal/core"
	"github.com/kedoruntime/kedo/internal/eventloop"
	"github.com/kedoruntime/kedo/internal/modsys"
)

// InstallAll wires every native op module into rt and registers each as
// a `@kedo:op/<name>` synthetic module so scripts can `import` them
// explicitly in addition to using the matching global. Grounded on the
// teacher's worker.go setup call sequence, generalized from "once per
// pooled worker" to "once for the process's single engine instance".
func InstallAll(rt core.JSRuntime, el *eventloop.EventLoop, classes *core.ClassTable, ops *modsys.OpProvider) error {
	if err := SetupGlobals(rt, el); err != nil {
		return core.Wrap(core.KindEngine, "installing globals", err)
	}
	if err := SetupConsole(rt, el); err != nil {
		return core.Wrap(core.KindEngine, "installing console", err)
	}
	if err := SetupConsoleExt(rt, el); err != nil {
		return core.Wrap(core.KindEngine, "installing console extensions", err)
	}
	ops.Register("console", consoleOpJS)

	if err := SetupEncoding(rt, el, classes); err != nil {
		return core.Wrap(core.KindEngine, "installing encoding", err)
	}
	ops.Register("encoding", encodingOpJS)

	if err := SetupTimers(rt, el); err != nil {
		return core.Wrap(core.KindEngine, "installing timers", err)
	}
	ops.Register("timers", timersOpJS)

	if err := SetupFetch(rt, el); err != nil {
		return core.Wrap(core.KindEngine, "installing fetch", err)
	}
	ops.Register("fetch", fetchOpJS)

	if err := SetupWebSocket(rt, el); err != nil {
		return core.Wrap(core.KindEngine, "installing websocket", err)
	}
	ops.Register("websocket", websocketOpJS)

	return nil
}

const consoleOpJS = `
export const log = console.log.bind(console);
export const info = console.info.bind(console);
export const warn = console.warn.bind(console);
export const error = console.error.bind(console);
export const debug = console.debug.bind(console);
`

const encodingOpJS = `
export const TextEncoder = globalThis.TextEncoder;
export const TextDecoder = globalThis.TextDecoder;
export const atob = globalThis.atob;
export const btoa = globalThis.btoa;
`

const timersOpJS = `
export const setTimeout = globalThis.setTimeout;
export const setInterval = globalThis.setInterval;
export const clearTimeout = globalThis.clearTimeout;
export const clearInterval = globalThis.clearInterval;
`

const fetchOpJS = `
export const fetch = globalThis.fetch;
export const Headers = globalThis.Headers;
export const Request = globalThis.Request;
export const Response = globalThis.Response;
`

const websocketOpJS = `
export const WebSocket = globalThis.WebSocket;
`
