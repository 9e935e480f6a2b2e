package core

import "sync"

// NativeClass describes a native class registered with the engine: a
// constructor installed as a global (or property of a host object), and
// an optional finalizer run when the engine's GC collects an instance.
// Grounded on original_source/src/class_manager.rs's ClassManager entry
// shape (name, init_class/init_proto contract), adapted to Go closures
// since Go has no trait-object vtable to store directly.
type NativeClass struct {
	Name        string
	Constructor func(rt JSRuntime) error
	Finalizer   func(rt JSRuntime) error
}

// ClassTable is the process-lifetime registry of native classes
// installed into the engine. One ClassTable lives on HostState.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*NativeClass
}

func NewClassTable() *ClassTable {
	return &ClassTable{classes: make(map[string]*NativeClass)}
}

// Register installs cls's constructor against rt and adds it to the
// table. Re-registering the same name is an error (mirrors the Rust
// original's HashMap::insert returning the old binding, made fatal).
func (t *ClassTable) Register(rt JSRuntime, cls *NativeClass) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.classes[cls.Name]; exists {
		return NewError(KindEngine, "class already registered: "+cls.Name, nil)
	}
	if cls.Constructor != nil {
		if err := cls.Constructor(rt); err != nil {
			return Wrap(KindEngine, "register class "+cls.Name, err)
		}
	}
	t.classes[cls.Name] = cls
	return nil
}

func (t *ClassTable) Get(name string) (*NativeClass, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.classes[name]
	return c, ok
}

func (t *ClassTable) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

func (t *ClassTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.classes))
	for n := range t.classes {
		names = append(names, n)
	}
	return names
}

func (t *ClassTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.classes)
}

// Close runs every registered finalizer. Errors are collected but do not
// stop remaining finalizers from running, mirroring teardown semantics
// where one misbehaving class must not leak the rest.
func (t *ClassTable) Close(rt JSRuntime) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var first error
	for _, c := range t.classes {
		if c.Finalizer == nil {
			continue
		}
		if err := c.Finalizer(rt); err != nil && first == nil {
			first = err
		}
	}
	t.classes = make(map[string]*NativeClass)
	return first
}
