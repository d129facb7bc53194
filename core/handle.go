package core

import (
	"context"
	"fmt"
	"time"
)

// Handle is an owned cache handle: a backend vtable bound to an opaque
// per-backend state value. Once resolved or generated, state is valid
// until Close or Destroy; a handle is single-owner and must not be
// shared across concurrent operations unless the backend documents
// otherwise.
type Handle struct {
	backend Backend
	state   any
	closed  bool
}

func newHandle(backend Backend, state any) *Handle {
	return &Handle{backend: backend, state: state}
}

// Prefix returns the owning backend's registered prefix.
func (h *Handle) Prefix() string {
	return h.backend.Prefix()
}

// Backend returns the backend the handle is bound to, for callers that
// need to check optional capabilities (Retriever, Remover, ...).
func (h *Handle) Backend() Backend {
	return h.backend
}

// GetName returns the textual residual of this handle's state.
func (h *Handle) GetName(ctx context.Context) (string, error) {
	name, err := h.backend.GetName(ctx, h.state)
	if err != nil {
		return "", wrapBackendError("get_name", err)
	}
	return name, nil
}

// GetFullName produces "prefix:residual".
func (h *Handle) GetFullName(ctx context.Context) (string, error) {
	name, err := h.GetName(ctx)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", errBadName("backend returned no name for get_full_name")
	}
	return fmt.Sprintf("%s:%s", h.backend.Prefix(), name), nil
}

// Init creates an empty cache owned by principal.
func (h *Handle) Init(ctx context.Context, owner Principal) error {
	if err := h.backend.Init(ctx, h.state, owner); err != nil {
		return wrapBackendError("init", err)
	}
	return nil
}

// GetPrincipal returns the cache's owner principal.
func (h *Handle) GetPrincipal(ctx context.Context) (Principal, error) {
	principal, err := h.backend.GetPrincipal(ctx, h.state)
	if err != nil {
		return Principal{}, wrapBackendError("get_princ", err)
	}
	return principal, nil
}

// LastChange returns the modification timestamp of the cache.
func (h *Handle) LastChange(ctx context.Context) (time.Time, error) {
	when, err := h.backend.LastChange(ctx, h.state)
	if err != nil {
		return time.Time{}, wrapBackendError("lastchange", err)
	}
	return when, nil
}

// SetFlags sets backend-defined flags.
func (h *Handle) SetFlags(ctx context.Context, flags uint32) error {
	if err := h.backend.SetFlags(ctx, h.state, flags); err != nil {
		return wrapBackendError("set_flags", err)
	}
	return nil
}

// GetFlags returns backend-defined flags. Per the original
// implementation this commonly returns 0 unconditionally; the
// asymmetry with SetFlags is preserved, not treated as a bug.
func (h *Handle) GetFlags(ctx context.Context) (uint32, error) {
	flags, err := h.backend.GetFlags(ctx, h.state)
	if err != nil {
		return 0, wrapBackendError("get_flags", err)
	}
	return flags, nil
}

// Close releases in-memory state only; backing storage is left intact.
// Safe to call more than once.
func (h *Handle) Close(ctx context.Context) error {
	if h.closed {
		return nil
	}
	h.closed = true
	if err := h.backend.Close(ctx, h.state); err != nil {
		return wrapBackendError("close", err)
	}
	return nil
}

// Destroy erases the backing storage and then closes the handle. The
// destroy error, if any, is returned; the close happens unconditionally.
func (h *Handle) Destroy(ctx context.Context) error {
	destroyErr := h.backend.Destroy(ctx, h.state)
	_ = h.Close(ctx)
	if destroyErr != nil {
		return wrapBackendError("destroy", destroyErr)
	}
	return nil
}
