package animation

import "sync"

// Registry holds every registered base animation type, keyed by
// TypeName, plus which one is currently rendering. Instances are owned
// for the node's lifetime; they are never removed once registered.
type Registry struct {
	mu      sync.RWMutex
	byType  map[string]Animation
	current string
}

func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]Animation)}
}

// Register adds a base animation type. Panics if TypeName collides,
// since that is a programming error at startup wiring time, not a
// runtime condition callers should need to handle.
func (r *Registry) Register(a Animation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := a.TypeName()
	if _, exists := r.byType[name]; exists {
		panic("animation: duplicate type name " + name)
	}
	r.byType[name] = a
	if r.current == "" {
		r.current = name
	}
}

func (r *Registry) Get(typeName string) (Animation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byType[typeName]
	return a, ok
}

// SetCurrent makes typeName the live animation the scheduler renders.
// A no-op if typeName is unregistered.
func (r *Registry) SetCurrent(typeName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byType[typeName]; ok {
		r.current = typeName
	}
}

// Current returns the live animation, or nil if none is registered yet.
func (r *Registry) Current() Animation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == "" {
		return nil
	}
	return r.byType[r.current]
}

// CurrentTypeName returns the live animation's type name.
func (r *Registry) CurrentTypeName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// TypeNames lists every registered base animation, for the control
// plane's list_base_animations().
func (r *Registry) TypeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byType))
	for n := range r.byType {
		names = append(names, n)
	}
	return names
}
