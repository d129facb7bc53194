package core

import (
	"strings"
	"sync"
)

// BackendRegistry is a per-context ordered list of named backends.
// Registration order is preserved and is the order the collection
// cursor visits backends in; it is not alphabetized.
type BackendRegistry struct {
	mu            sync.RWMutex
	order         []string
	backends      map[string]Backend
	defaultPrefix string
	filePrefix    string
}

// NewBackendRegistry creates an empty registry. defaultPrefix names the
// compile-time default backend (used when a caller resolves NULL);
// filePrefix names the backend that bare paths and leading-"/" names
// are forced to. The two are typically the same backend.
func NewBackendRegistry(defaultPrefix, filePrefix string) *BackendRegistry {
	return &BackendRegistry{
		backends:      make(map[string]Backend),
		defaultPrefix: defaultPrefix,
		filePrefix:    filePrefix,
	}
}

// Register installs backend at the slot for backend.Prefix(). If a
// backend is already registered under that prefix and override is
// false, it fails with type-exists and leaves the prior vtable intact.
// override=true replaces the vtable in place without disturbing
// registration order.
func (r *BackendRegistry) Register(backend Backend, override bool) error {
	if backend == nil {
		return errBadName("backend is nil")
	}
	prefix := strings.TrimSpace(backend.Prefix())
	if prefix == "" {
		return errBadName("backend prefix is empty")
	}
	if strings.Contains(prefix, ":") {
		return errBadName("backend prefix must not contain ':'")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[prefix]; exists {
		if !override {
			return errTypeExists(prefix)
		}
		r.backends[prefix] = backend
		return nil
	}
	r.backends[prefix] = backend
	r.order = append(r.order, prefix)
	return nil
}

// GetPrefixOps implements get_prefix_ops: "" selects the compile-time
// default backend, a leading "/" forces the file backend, and anything
// else is matched up to its first ":" against registered prefixes.
func (r *BackendRegistry) GetPrefixOps(hint string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if hint == "" {
		backend, ok := r.backends[r.defaultPrefix]
		if !ok {
			return nil, errUnknownType(r.defaultPrefix)
		}
		return backend, nil
	}
	if strings.HasPrefix(hint, "/") {
		backend, ok := r.backends[r.filePrefix]
		if !ok {
			return nil, errUnknownType(r.filePrefix)
		}
		return backend, nil
	}
	prefix := hint
	if idx := strings.IndexByte(hint, ':'); idx >= 0 {
		prefix = hint[:idx]
	}
	backend, ok := r.backends[prefix]
	if !ok {
		return nil, errUnknownType(prefix)
	}
	return backend, nil
}

// Lookup returns the backend registered under prefix, if any.
func (r *BackendRegistry) Lookup(prefix string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	backend, ok := r.backends[prefix]
	return backend, ok
}

// List returns every registered backend in registration order.
func (r *BackendRegistry) List() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	backends := make([]Backend, 0, len(r.order))
	for _, prefix := range r.order {
		backends = append(backends, r.backends[prefix])
	}
	return backends
}

// Len reports how many backends are registered.
func (r *BackendRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
