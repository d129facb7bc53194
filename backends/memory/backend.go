// Package memory implements an in-process, map-backed credential-cache
// backend: every cache and credential lives only in the current
// process's memory, for as long as the owning Backend value does.
// Closing a handle does not discard its cache; Destroy does.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-krb5cc/core"
)

// Backend is a core.Backend implementation whose storage is a plain Go
// map guarded by a mutex. It additionally implements core.Retriever,
// core.Remover, core.DefaultSetter, core.VersionProvider, and
// core.CollectionEnumerator.
type Backend struct {
	prefix string

	mu      sync.RWMutex
	caches  map[string]*cache
	current string
}

type cache struct {
	name    string
	owner   core.Principal
	creds   []core.Credential
	flags   uint32
	version int
	changed time.Time
}

// New creates an empty memory backend registered under prefix (the
// original implementation's analogue is "MEMORY").
func New(prefix string) *Backend {
	return &Backend{prefix: prefix, caches: map[string]*cache{}}
}

func (b *Backend) Prefix() string { return b.prefix }

func (b *Backend) GetName(_ context.Context, state any) (string, error) {
	return state.(*cache).name, nil
}

func (b *Backend) Resolve(_ context.Context, residual string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.caches[residual]
	if !ok {
		c = &cache{name: residual, version: 1}
		b.caches[residual] = c
	}
	return c, nil
}

func (b *Backend) GenNew(_ context.Context) (any, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := uuid.NewString()
	c := &cache{name: name, version: 1}
	b.caches[name] = c
	return c, name, nil
}

func (b *Backend) Init(_ context.Context, state any, owner core.Principal) error {
	c := state.(*cache)
	b.mu.Lock()
	c.owner = owner
	c.creds = nil
	c.changed = time.Now().UTC()
	b.mu.Unlock()
	return nil
}

func (b *Backend) Destroy(_ context.Context, state any) error {
	c := state.(*cache)
	b.mu.Lock()
	delete(b.caches, c.name)
	b.mu.Unlock()
	return nil
}

func (b *Backend) Close(_ context.Context, _ any) error { return nil }

func (b *Backend) Store(_ context.Context, state any, cred core.Credential) error {
	c := state.(*cache)
	b.mu.Lock()
	c.creds = append(c.creds, cred.Clone())
	c.changed = time.Now().UTC()
	b.mu.Unlock()
	return nil
}

func (b *Backend) GetPrincipal(_ context.Context, state any) (core.Principal, error) {
	return state.(*cache).owner, nil
}

type seqState struct {
	index int
}

func (b *Backend) GetFirst(ctx context.Context, state any) (core.Credential, core.SeqCursor, error) {
	return b.GetNext(ctx, state, seqState{index: 0})
}

func (b *Backend) GetNext(_ context.Context, state any, cursor core.SeqCursor) (core.Credential, core.SeqCursor, error) {
	c := state.(*cache)
	s := cursor.(seqState)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s.index >= len(c.creds) {
		return core.Credential{}, nil, core.ErrEndOfSequence
	}
	return c.creds[s.index].Clone(), seqState{index: s.index + 1}, nil
}

func (b *Backend) EndGet(_ context.Context, _ any, _ core.SeqCursor) error { return nil }

func (b *Backend) SetFlags(_ context.Context, state any, flags uint32) error {
	state.(*cache).flags = flags
	return nil
}

func (b *Backend) GetFlags(_ context.Context, _ any) (uint32, error) {
	return 0, nil
}

func (b *Backend) Move(_ context.Context, from, to any) error {
	fromCache := from.(*cache)
	toCache := to.(*cache)
	b.mu.Lock()
	toCache.owner = fromCache.owner
	toCache.creds = fromCache.creds
	toCache.changed = time.Now().UTC()
	b.mu.Unlock()
	return nil
}

func (b *Backend) GetDefaultName() string {
	return b.prefix + ":default"
}

func (b *Backend) LastChange(_ context.Context, state any) (time.Time, error) {
	return state.(*cache).changed, nil
}

func (b *Backend) GetVersion(_ context.Context, state any) (int, error) {
	return state.(*cache).version, nil
}

func (b *Backend) Retrieve(_ context.Context, state any, mask core.MatchField, template core.Credential) (core.Credential, error) {
	c := state.(*cache)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, cred := range c.creds {
		if core.MatchCredential(mask, template, cred) {
			return cred.Clone(), nil
		}
	}
	return core.Credential{}, core.ErrCredentialNotFound
}

func (b *Backend) RemoveCred(_ context.Context, state any, mask core.MatchField, template core.Credential) error {
	c := state.(*cache)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cred := range c.creds {
		if core.MatchCredential(mask, template, cred) {
			c.creds = append(c.creds[:i], c.creds[i+1:]...)
			return nil
		}
	}
	return core.ErrCredentialNotFound
}

func (b *Backend) SetDefault(_ context.Context, state any) error {
	b.mu.Lock()
	b.current = state.(*cache).name
	b.mu.Unlock()
	return nil
}

type cacheCursor struct {
	names []string
	index int
}

func (b *Backend) GetCacheFirst(_ context.Context) (core.CacheInfo, core.CacheCursor, error) {
	b.mu.RLock()
	names := make([]string, 0, len(b.caches))
	for name := range b.caches {
		names = append(names, name)
	}
	b.mu.RUnlock()
	sort.Strings(names)
	return b.cacheInfoAt(names, 0)
}

func (b *Backend) GetCacheNext(_ context.Context, cursor core.CacheCursor) (core.CacheInfo, core.CacheCursor, error) {
	c := cursor.(cacheCursor)
	return b.cacheInfoAt(c.names, c.index+1)
}

func (b *Backend) EndCacheGet(_ context.Context, _ core.CacheCursor) error { return nil }

func (b *Backend) cacheInfoAt(names []string, index int) (core.CacheInfo, core.CacheCursor, error) {
	if index >= len(names) {
		return core.CacheInfo{}, nil, core.ErrEndOfCaches
	}
	return core.CacheInfo{Backend: b.prefix, Name: names[index]}, cacheCursor{names: names, index: index}, nil
}

var (
	_ core.Backend              = (*Backend)(nil)
	_ core.Retriever            = (*Backend)(nil)
	_ core.Remover              = (*Backend)(nil)
	_ core.DefaultSetter        = (*Backend)(nil)
	_ core.VersionProvider      = (*Backend)(nil)
	_ core.CollectionEnumerator = (*Backend)(nil)
)
