package tools

import "fmt"

// Registry is the static name -> tool mapping. It is populated during startup
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	byName map[string]Tool
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds a tool. Names are unique; a collision is a programming error
// surfaced at startup, not something to resolve at dispatch time.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("register: tool name must not be empty")
	}
	if _, exists := r.byName[t.Name]; exists {
		return fmt.Errorf("register: duplicate tool name %q", t.Name)
	}
	r.byName[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// List returns all tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
