package core

import (
	"context"
	"errors"
)

// Move implements the same-type atomic hand-off (§4.7). Cross-type
// moves fail with not-supported and mutate nothing. On success, from
// is invalidated; callers must not use it afterward.
func (c *Context) Move(ctx context.Context, from, to *Handle) error {
	if from.Prefix() != to.Prefix() {
		return errNotSupported("cross-type move")
	}
	if err := from.backend.Move(ctx, from.state, to.state); err != nil {
		return wrapBackendError("move", err)
	}
	from.closed = true
	return nil
}

// CopyCacheMatch initializes to with from's owner principal (wiping
// to), then copies every credential from from that matches
// mask/templateOpt (or every credential, when templateOpt is nil) into
// to. counterOpt, if non-nil, is incremented once per credential
// copied.
func (c *Context) CopyCacheMatch(ctx context.Context, from, to *Handle, mask MatchField, templateOpt *Credential, counterOpt *int) error {
	owner, err := from.GetPrincipal(ctx)
	if err != nil {
		return err
	}
	if err := to.Init(ctx, owner); err != nil {
		return err
	}

	cred, cursor, err := from.GetFirst(ctx)
	for {
		if err != nil {
			_ = from.EndGet(ctx, cursor)
			if errors.Is(err, ErrEndOfSequence) {
				return nil
			}
			return err
		}
		matched := templateOpt == nil || MatchCredential(mask, *templateOpt, cred)
		if matched {
			if storeErr := to.Store(ctx, cred); storeErr != nil {
				_ = from.EndGet(ctx, cursor)
				return storeErr
			}
			if counterOpt != nil {
				*counterOpt++
			}
		}
		cred, cursor, err = from.GetNext(ctx, cursor)
	}
}

// CopyCache is CopyCacheMatch with no filtering template.
func (c *Context) CopyCache(ctx context.Context, from, to *Handle) error {
	return c.CopyCacheMatch(ctx, from, to, 0, nil, nil)
}

// Switch invokes the backend's set_default when present; backends
// without DefaultSetter make Switch a silent success.
func (c *Context) Switch(ctx context.Context, h *Handle) error {
	setter, ok := h.backend.(DefaultSetter)
	if !ok {
		return nil
	}
	if err := setter.SetDefault(ctx, h.state); err != nil {
		return wrapBackendError("set_default", err)
	}
	return nil
}
