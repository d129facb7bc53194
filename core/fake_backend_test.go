package core

import (
	"context"
	"fmt"
	"time"
)

// fakeBackend is an in-process Backend used only by this package's own
// tests. Its "state" is always a *fakeCache pointer.
type fakeBackend struct {
	prefix  string
	caches  map[string]*fakeCache
	counter int
}

type fakeCache struct {
	name    string
	owner   Principal
	creds   []Credential
	flags   uint32
	changed time.Time
}

func newFakeBackend(prefix string) *fakeBackend {
	return &fakeBackend{prefix: prefix, caches: map[string]*fakeCache{}}
}

func (b *fakeBackend) Prefix() string { return b.prefix }

func (b *fakeBackend) GetName(_ context.Context, state any) (string, error) {
	return state.(*fakeCache).name, nil
}

func (b *fakeBackend) Resolve(_ context.Context, residual string) (any, error) {
	cache, ok := b.caches[residual]
	if !ok {
		cache = &fakeCache{name: residual}
		b.caches[residual] = cache
	}
	return cache, nil
}

func (b *fakeBackend) GenNew(_ context.Context) (any, string, error) {
	b.counter++
	name := fmt.Sprintf("unique-%d", b.counter)
	cache := &fakeCache{name: name}
	b.caches[name] = cache
	return cache, name, nil
}

func (b *fakeBackend) Init(_ context.Context, state any, owner Principal) error {
	cache := state.(*fakeCache)
	cache.owner = owner
	cache.creds = nil
	return nil
}

func (b *fakeBackend) Destroy(_ context.Context, state any) error {
	cache := state.(*fakeCache)
	delete(b.caches, cache.name)
	return nil
}

func (b *fakeBackend) Close(_ context.Context, _ any) error { return nil }

func (b *fakeBackend) Store(_ context.Context, state any, cred Credential) error {
	cache := state.(*fakeCache)
	cache.creds = append(cache.creds, cred)
	cache.changed = time.Now().UTC()
	return nil
}

func (b *fakeBackend) GetPrincipal(_ context.Context, state any) (Principal, error) {
	return state.(*fakeCache).owner, nil
}

func (b *fakeBackend) GetFirst(_ context.Context, state any) (Credential, SeqCursor, error) {
	cache := state.(*fakeCache)
	if len(cache.creds) == 0 {
		return Credential{}, nil, ErrEndOfSequence
	}
	return cache.creds[0], 1, nil
}

func (b *fakeBackend) GetNext(_ context.Context, state any, cursor SeqCursor) (Credential, SeqCursor, error) {
	cache := state.(*fakeCache)
	idx := cursor.(int)
	if idx >= len(cache.creds) {
		return Credential{}, nil, ErrEndOfSequence
	}
	return cache.creds[idx], idx + 1, nil
}

func (b *fakeBackend) EndGet(_ context.Context, _ any, _ SeqCursor) error { return nil }

func (b *fakeBackend) SetFlags(_ context.Context, state any, flags uint32) error {
	state.(*fakeCache).flags = flags
	return nil
}

func (b *fakeBackend) GetFlags(_ context.Context, _ any) (uint32, error) {
	return 0, nil
}

func (b *fakeBackend) Move(_ context.Context, from, to any) error {
	fromCache := from.(*fakeCache)
	toCache := to.(*fakeCache)
	toCache.owner = fromCache.owner
	toCache.creds = fromCache.creds
	return nil
}

func (b *fakeBackend) GetDefaultName() string {
	return b.prefix + ":default"
}

func (b *fakeBackend) LastChange(_ context.Context, state any) (time.Time, error) {
	return state.(*fakeCache).changed, nil
}

func (b *fakeBackend) RemoveCred(_ context.Context, state any, mask MatchField, template Credential) error {
	cache := state.(*fakeCache)
	for i, cred := range cache.creds {
		if MatchCredential(mask, template, cred) {
			cache.creds = append(cache.creds[:i], cache.creds[i+1:]...)
			return nil
		}
	}
	return errNotFound("no matching credential")
}

func (b *fakeBackend) GetCacheFirst(_ context.Context) (CacheInfo, CacheCursor, error) {
	names := make([]string, 0, len(b.caches))
	for name := range b.caches {
		names = append(names, name)
	}
	return b.cacheInfoAt(names, 0)
}

func (b *fakeBackend) GetCacheNext(_ context.Context, cursor CacheCursor) (CacheInfo, CacheCursor, error) {
	state := cursor.(fakeCacheCursorState)
	return b.cacheInfoAt(state.names, state.index+1)
}

func (b *fakeBackend) EndCacheGet(_ context.Context, _ CacheCursor) error { return nil }

type fakeCacheCursorState struct {
	names []string
	index int
}

func (b *fakeBackend) cacheInfoAt(names []string, index int) (CacheInfo, CacheCursor, error) {
	if index >= len(names) {
		return CacheInfo{}, nil, errEndOfCaches()
	}
	return CacheInfo{Backend: b.prefix, Name: names[index]}, fakeCacheCursorState{names: names, index: index}, nil
}

var (
	_ Backend              = (*fakeBackend)(nil)
	_ Remover               = (*fakeBackend)(nil)
	_ CollectionEnumerator = (*fakeBackend)(nil)
)
