package core

// HostState is the shared, per-context state every native callback
// closure holds a reference to: the engine handle, the native class and
// prototype registries, and process configuration. Grounded on
// original_source/packages/kedo_core/state.rs's CoreState, whose Arc/Rc
// wrapping exists so Rust call sites can cheaply clone a handle to
// shared interior state; Go has no borrow checker forcing that, so
// HostState is simply shared by pointer.
type HostState struct {
	Runtime    JSRuntime
	Classes    *ClassTable
	Protos     *ProtoTable
	Config     RuntimeConfig
}

// NewHostState wires a HostState around rt, with fresh empty registries.
func NewHostState(rt JSRuntime, cfg RuntimeConfig) *HostState {
	return &HostState{
		Runtime: rt,
		Classes: NewClassTable(),
		Protos:  NewProtoTable(rt),
		Config:  cfg,
	}
}

// Close tears down the registries in dependency order: classes first
// (their finalizers may reference protected prototypes), then protos.
func (s *HostState) Close() error {
	err := s.Classes.Close(s.Runtime)
	if pErr := s.Protos.Clear(); err == nil {
		err = pErr
	}
	return err
}
