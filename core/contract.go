package core

import (
	"context"
	"time"
)

// SeqCursor is an opaque per-cache iteration position produced by
// GetFirst and consumed by GetNext/EndGet. Its zero value denotes "no
// cursor" and is never itself a valid mid-iteration state.
type SeqCursor any

// CacheCursor is an opaque per-backend cursor over that backend's own
// caches, produced by GetCacheFirst and consumed by
// GetCacheNext/EndCacheGet.
type CacheCursor any

// CacheInfo describes one cache surfaced by a backend's collection
// enumeration.
type CacheInfo struct {
	Backend string
	Name    string
}

// Backend is the capability set every cache implementation must
// provide. State is an opaque value the backend itself defines and
// owns; the core never inspects it.
type Backend interface {
	// Prefix returns the backend's registered name: non-empty,
	// colon-free, used as the typed-URI scheme.
	Prefix() string

	// GetName returns the textual residual of state.
	GetName(ctx context.Context, state any) (string, error)

	// Resolve binds state to an existing or addressable cache named by
	// residual (the portion of a name after "prefix:").
	Resolve(ctx context.Context, residual string) (any, error)

	// GenNew generates a fresh, backend-unique cache and returns its
	// state and residual name.
	GenNew(ctx context.Context) (state any, residual string, err error)

	// Init creates an empty cache owned by principal.
	Init(ctx context.Context, state any, owner Principal) error

	// Destroy erases the backing storage for state.
	Destroy(ctx context.Context, state any) error

	// Close releases in-memory state only; backing storage is left
	// intact.
	Close(ctx context.Context, state any) error

	// Store persists a credential.
	Store(ctx context.Context, state any, cred Credential) error

	// GetPrincipal returns the cache's owner principal.
	GetPrincipal(ctx context.Context, state any) (Principal, error)

	// GetFirst starts per-cache iteration and returns the first
	// credential and a cursor for subsequent calls.
	GetFirst(ctx context.Context, state any) (Credential, SeqCursor, error)

	// GetNext advances cursor and returns the next credential. It
	// returns ErrEndOfSequence when iteration is exhausted.
	GetNext(ctx context.Context, state any, cursor SeqCursor) (Credential, SeqCursor, error)

	// EndGet releases cursor. It must be safe to call even after an
	// error from GetFirst/GetNext.
	EndGet(ctx context.Context, state any, cursor SeqCursor) error

	// SetFlags sets backend-defined flags.
	SetFlags(ctx context.Context, state any, flags uint32) error

	// GetFlags returns backend-defined flags. Per the original
	// implementation this is commonly wired to always return 0; the
	// asymmetry with SetFlags is intentional and preserved here.
	GetFlags(ctx context.Context, state any) (uint32, error)

	// Move atomically replaces to's contents with from's. Both states
	// belong to backends with the same prefix; the caller enforces
	// that invariant before calling Move.
	Move(ctx context.Context, from, to any) error

	// GetDefaultName returns this backend's suggested default cache
	// name, used when libdefaults.default_cc_type dispatches here.
	GetDefaultName() string

	// LastChange returns the modification timestamp of state.
	LastChange(ctx context.Context, state any) (time.Time, error)
}

// Retriever is the optional retrieve primitive. A backend without it
// falls back to an iterate-and-compare loop over GetFirst/GetNext.
type Retriever interface {
	Retrieve(ctx context.Context, state any, mask MatchField, template Credential) (Credential, error)
}

// Remover is the optional remove_cred primitive. A backend without it
// causes RemoveCred to fail with permission-denied.
type Remover interface {
	RemoveCred(ctx context.Context, state any, mask MatchField, template Credential) error
}

// DefaultSetter is the optional set_default primitive. A backend
// without it causes Switch to silently succeed.
type DefaultSetter interface {
	SetDefault(ctx context.Context, state any) error
}

// VersionProvider is the optional get_version primitive.
type VersionProvider interface {
	GetVersion(ctx context.Context, state any) (int, error)
}

// CollectionEnumerator is the optional set of backend-wide cursor
// primitives a backend may provide so the collection cursor (§4.5) can
// enumerate its caches. A backend without it is skipped by the
// collection cursor rather than aborting enumeration.
type CollectionEnumerator interface {
	GetCacheFirst(ctx context.Context) (CacheInfo, CacheCursor, error)
	GetCacheNext(ctx context.Context, cursor CacheCursor) (CacheInfo, CacheCursor, error)
	EndCacheGet(ctx context.Context, cursor CacheCursor) error
}
