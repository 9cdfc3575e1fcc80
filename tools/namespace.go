package tools

import (
	"sort"
	"sync"
)

// Namespace is the per-session variable store shared by python_inter,
// fig_inter and extract_data. A zero Namespace is not usable; call
// NewNamespace.
type Namespace struct {
	mu   sync.RWMutex
	vars map[string]interface{}
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{vars: make(map[string]interface{})}
}

// Get returns the value bound to name.
func (n *Namespace) Get(name string) (interface{}, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.vars[name]
	return v, ok
}

// Set binds name to value, replacing any previous binding.
func (n *Namespace) Set(name string, value interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.vars[name] = value
}

// Delete removes name.
func (n *Namespace) Delete(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.vars, name)
}

// Keys returns the bound names in sorted order.
func (n *Namespace) Keys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	keys := make([]string, 0, len(n.vars))
	for k := range n.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of bindings.
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.vars)
}

// Snapshot returns a shallow copy of every binding.
func (n *Namespace) Snapshot() map[string]interface{} {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]interface{}, len(n.vars))
	for k, v := range n.vars {
		out[k] = v
	}
	return out
}

// Reset drops every binding.
func (n *Namespace) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.vars = make(map[string]interface{})
}
