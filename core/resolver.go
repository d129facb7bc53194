package core

import (
	"context"
	"strings"
)

// Resolve implements name resolution (§4.3). An empty string stands in
// for the C API's NULL: "use the default cache name". Typed names
// ("prefix:residual") are dispatched to the registered backend whose
// prefix matches; names with no ':' are treated as file paths; anything
// else fails unknown-type.
func (c *Context) Resolve(ctx context.Context, name string) (*Handle, error) {
	if name == "" {
		resolved, err := c.DefaultName(ctx)
		if err != nil {
			return nil, err
		}
		name = resolved
	}

	for _, backend := range c.registry.List() {
		prefix := backend.Prefix()
		if strings.HasPrefix(name, prefix+":") {
			residual := name[len(prefix)+1:]
			state, err := backend.Resolve(ctx, residual)
			if err != nil {
				return nil, wrapBackendError("resolve", err)
			}
			return newHandle(backend, state), nil
		}
	}

	if !strings.Contains(name, ":") {
		fileBackend, ok := c.registry.Lookup(c.config.DefaultBackendPrefix)
		if !ok {
			return nil, errUnknownType(c.config.DefaultBackendPrefix)
		}
		state, err := fileBackend.Resolve(ctx, name)
		if err != nil {
			return nil, wrapBackendError("resolve", err)
		}
		return newHandle(fileBackend, state), nil
	}

	return nil, errUnknownType(name)
}

// NewUnique implements new_unique: look up the backend named by
// typeHint (or the compile-time default when empty) and ask it to
// generate a fresh, backend-unique cache. humanHint is advisory and
// backend-defined; it is not interpreted by the core.
func (c *Context) NewUnique(ctx context.Context, typeHint string, humanHint string) (*Handle, error) {
	backend, err := c.registry.GetPrefixOps(typeHint)
	if err != nil {
		return nil, err
	}
	state, _, err := backend.GenNew(ctx)
	if err != nil {
		return nil, wrapBackendError("gen_new", err)
	}
	return newHandle(backend, state), nil
}

// Default resolves and returns a handle to the context's current
// default cache.
func (c *Context) Default(ctx context.Context) (*Handle, error) {
	return c.Resolve(ctx, "")
}

// DefaultName returns the context's current default cache name,
// recomputing it per the priority cascade and environment-change
// detection in §4.3 when the explicitly-set flag is false.
func (c *Context) DefaultName(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultNameLocked(ctx)
}

// SetDefaultName sets the default cache name explicitly. An empty
// string clears the explicitly-set flag and any cached state, so the
// next DefaultName call recomputes from the priority cascade again.
func (c *Context) SetDefaultName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		c.defaultNameSet = false
		c.defaultName = ""
		c.envSeen = nil
		return
	}
	c.defaultName = name
	c.defaultNameSet = true
}

func (c *Context) defaultNameLocked(ctx context.Context) (string, error) {
	if c.defaultNameSet {
		return c.defaultName, nil
	}

	if issuid() {
		if c.defaultName == "" {
			if err := c.recomputeDefaultNameLocked(ctx, false, ""); err != nil {
				return "", err
			}
		}
		return c.defaultName, nil
	}

	envValue, present := c.env("KRB5CCNAME")
	changed := c.defaultName == ""
	switch {
	case present && (c.envSeen == nil || *c.envSeen != envValue):
		changed = true
	case !present && c.envSeen != nil:
		changed = true
	}
	if changed {
		if err := c.recomputeDefaultNameLocked(ctx, present, envValue); err != nil {
			return "", err
		}
	}
	return c.defaultName, nil
}

func (c *Context) recomputeDefaultNameLocked(ctx context.Context, envPresent bool, envValue string) error {
	if envPresent {
		c.defaultName = envValue
		seen := envValue
		c.envSeen = &seen
		return nil
	}
	c.envSeen = nil

	if c.config.DefaultCCName != "" {
		expanded, err := ExpandVars(c.config.DefaultCCName, c.uid)
		if err != nil {
			return err
		}
		c.defaultName = expanded
		return nil
	}

	var backend Backend
	if c.config.DefaultCCType != "" {
		found, err := c.registry.GetPrefixOps(c.config.DefaultCCType)
		if err != nil {
			return err
		}
		backend = found
	} else {
		found, err := c.registry.GetPrefixOps("")
		if err != nil {
			return err
		}
		backend = found
	}
	c.defaultName = backend.GetDefaultName()
	return nil
}
