package core

import "sync"

// protoTableInit is evaluated once, lazily, the first time a prototype
// is inserted; it creates the engine-global table that keeps every
// protected prototype object reachable across event-loop ticks.
const protoTableInit = `globalThis.__kedo_protos = globalThis.__kedo_protos || {};`

// ProtoTable is the process-lifetime registry of native prototype
// objects. Grounded on original_source/packages/kedo_core/proto_table.rs
// (ProtoTable: insert protects, remove/Drop unprotects). The Go rendition
// has no destructor, so protection is realized the way the teacher's own
// timer code already protects JS callbacks: by storing the prototype
// value under a reachable engine-global key (globalThis.__kedo_protos),
// rather than an explicit engine-level pin/unpin call.
type ProtoTable struct {
	mu    sync.RWMutex
	names map[string]struct{}
	rt    JSRuntime
	init  bool
}

func NewProtoTable(rt JSRuntime) *ProtoTable {
	return &ProtoTable{names: make(map[string]struct{}), rt: rt}
}

func (t *ProtoTable) ensureInit() error {
	if t.init {
		return nil
	}
	if err := t.rt.Eval(protoTableInit); err != nil {
		return Wrap(KindEngine, "init proto table", err)
	}
	t.init = true
	return nil
}

// Insert protects value under name by storing it in the prototype table,
// so it is set using whatever expression the caller has already arranged
// to be readable from globalThis (insert is called right after a
// constructor assigns window.<Name>.prototype, and protectExpr is the JS
// expression yielding that same object, e.g. "GlobalFoo.prototype").
func (t *ProtoTable) Insert(name, protectExpr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureInit(); err != nil {
		return err
	}
	if err := t.rt.Eval("globalThis.__kedo_protos[" + quoteJS(name) + "] = " + protectExpr + ";"); err != nil {
		return Wrap(KindEngine, "protect prototype "+name, err)
	}
	t.names[name] = struct{}{}
	return nil
}

func (t *ProtoTable) Contains(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.names[name]
	return ok
}

func (t *ProtoTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.names))
	for n := range t.names {
		names = append(names, n)
	}
	return names
}

func (t *ProtoTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}

// Remove unprotects name: the engine may now collect it once nothing
// else references it.
func (t *ProtoTable) Remove(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.names[name]; !ok {
		return nil
	}
	delete(t.names, name)
	if !t.init {
		return nil
	}
	return t.rt.Eval("delete globalThis.__kedo_protos[" + quoteJS(name) + "];")
}

// Clear unprotects every prototype, called during Runtime shutdown.
func (t *ProtoTable) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.init {
		if err := t.rt.Eval("globalThis.__kedo_protos = {};"); err != nil {
			t.names = make(map[string]struct{})
			return err
		}
	}
	t.names = make(map[string]struct{})
	return nil
}

func quoteJS(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	out = append(out, '"')
	return string(out)
}
