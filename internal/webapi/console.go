package webapi

import (
	"fmt"
	"os"

	"github.com/kedoruntime/kedo/internal/core"
	"github.com/kedoruntime/kedo/internal/eventloop"
)

// SetupConsole replaces globalThis.console with a Go-backed version that
// writes log/info/debug to stdout and warn/error to stderr, mirroring
// Node/Deno's split and the teacher's console.go level routing (minus
// the per-request log buffer: a single-process host has nowhere to
// drain a buffer to but stdio, so writes go straight through).
func SetupConsole(rt core.JSRuntime, _ *eventloop.EventLoop) error {
	if err := rt.RegisterFunc("__console", func(level, message string) {
		switch level {
		case "warn", "error":
			fmt.Fprintln(os.Stderr, message)
		default:
			fmt.Fprintln(os.Stdout, message)
		}
	}); err != nil {
		return err
	}

	return rt.Eval(consoleJS)
}

const consoleJS = `
(function() {
	var levels = ['log', 'info', 'warn', 'error', 'debug'];
	var con = {};
	for (var i = 0; i < levels.length; i++) {
		(function(lvl) {
			con[lvl] = function() {
				var parts = [];
				for (var j = 0; j < arguments.length; j++) {
					var arg = arguments[j];
					if (typeof arg === 'object' && arg !== null) {
						try {
							parts.push(JSON.stringify(arg));
						} catch (e) {
							parts.push(String(arg));
						}
					} else {
						parts.push(String(arg));
					}
				}
				__console(lvl, parts.join(' '));
			};
		})(levels[i]);
	}
	globalThis.console = con;
})();
`

// consoleExtJS adds the extended console methods (time, count, assert,
// group, dir, trace) as pure-JS layers over the Go-backed base methods.
const consoleExtJS = `
(function() {
var __timers = {};
var __counters = {};

console.time = function(label) {
	__timers[label || 'default'] = performance.now();
};
console.timeEnd = function(label) {
	var l = label || 'default';
	var start = __timers[l];
	if (start === undefined) { console.warn('Timer "' + l + '" does not exist'); return; }
	var elapsed = performance.now() - start;
	delete __timers[l];
	console.log(l + ': ' + elapsed.toFixed(3) + 'ms');
};
console.count = function(label) {
	var l = label || 'default';
	__counters[l] = (__counters[l] || 0) + 1;
	console.log(l + ': ' + __counters[l]);
};
console.countReset = function(label) {
	__counters[label || 'default'] = 0;
};
console.assert = function(cond) {
	if (!cond) {
		var args = Array.prototype.slice.call(arguments, 1);
		console.error.apply(console, ['Assertion failed:'].concat(args));
	}
};
console.group = function(label) { if (label) console.log(label); };
console.groupEnd = function() {};
console.dir = function(obj) { console.log(JSON.stringify(obj, null, 2)); };
console.trace = function() {
	var args = Array.prototype.slice.call(arguments);
	console.log.apply(console, ['Trace:'].concat(args));
};
})();
`

// SetupConsoleExt evaluates the extended console methods polyfill.
func SetupConsoleExt(rt core.JSRuntime, _ *eventloop.EventLoop) error {
	return rt.Eval(consoleExtJS)
}
