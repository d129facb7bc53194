package core

import (
	"context"
	"errors"
)

// Store persists a credential via the bound backend.
func (h *Handle) Store(ctx context.Context, cred Credential) error {
	if err := h.backend.Store(ctx, h.state, cred.Clone()); err != nil {
		return wrapBackendError("store", err)
	}
	return nil
}

// GetFirst starts per-cache iteration.
func (h *Handle) GetFirst(ctx context.Context) (Credential, SeqCursor, error) {
	cred, cursor, err := h.backend.GetFirst(ctx, h.state)
	if err != nil {
		return Credential{}, nil, wrapBackendError("get_first", err)
	}
	return cred, cursor, nil
}

// GetNext advances cursor. Returns ErrEndOfSequence when the sequence
// is exhausted.
func (h *Handle) GetNext(ctx context.Context, cursor SeqCursor) (Credential, SeqCursor, error) {
	cred, next, err := h.backend.GetNext(ctx, h.state, cursor)
	if err != nil {
		return Credential{}, nil, wrapBackendError("get_next", err)
	}
	return cred, next, nil
}

// EndGet releases cursor. Safe to call even after an earlier error.
func (h *Handle) EndGet(ctx context.Context, cursor SeqCursor) error {
	if err := h.backend.EndGet(ctx, h.state, cursor); err != nil {
		return wrapBackendError("end_seq_get", err)
	}
	return nil
}

// Retrieve returns the first stored credential matching mask/template.
// If the backend implements Retriever, the call is delegated directly;
// otherwise the core iterates with GetFirst/GetNext, comparing each
// candidate with MatchCredential, and releases the cursor before
// returning.
func (h *Handle) Retrieve(ctx context.Context, mask MatchField, template Credential) (Credential, error) {
	if retriever, ok := h.backend.(Retriever); ok {
		cred, err := retriever.Retrieve(ctx, h.state, mask, template)
		if err != nil {
			return Credential{}, wrapBackendError("retrieve", err)
		}
		return cred, nil
	}

	cred, cursor, err := h.GetFirst(ctx)
	for {
		if err != nil {
			_ = h.EndGet(ctx, cursor)
			if errors.Is(err, ErrEndOfSequence) {
				return Credential{}, errNotFound("no credential matches template")
			}
			return Credential{}, err
		}
		if MatchCredential(mask, template, cred) {
			_ = h.EndGet(ctx, cursor)
			return cred, nil
		}
		cred, cursor, err = h.GetNext(ctx, cursor)
	}
}

// NextCredMatch wraps GetNext, skipping candidates that do not match
// mask/template and returning the first one that does.
func (h *Handle) NextCredMatch(ctx context.Context, cursor SeqCursor, mask MatchField, template Credential) (Credential, SeqCursor, error) {
	for {
		cred, next, err := h.GetNext(ctx, cursor)
		if err != nil {
			return Credential{}, nil, err
		}
		if MatchCredential(mask, template, cred) {
			return cred, next, nil
		}
		cursor = next
	}
}

// RemoveCred deletes the first stored credential matching mask/template.
// Backends without Remover fail with permission-denied, per the
// polymorphism contract's fallback for this optional operation.
func (h *Handle) RemoveCred(ctx context.Context, mask MatchField, template Credential) error {
	remover, ok := h.backend.(Remover)
	if !ok {
		return errPermissionDenied("remove_cred")
	}
	if err := remover.RemoveCred(ctx, h.state, mask, template); err != nil {
		return wrapBackendError("remove_cred", err)
	}
	return nil
}
