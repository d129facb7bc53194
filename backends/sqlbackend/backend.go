// Package sqlbackend implements a credential-cache backend over a
// relational store: each cache is a cc_caches row and its credentials
// are cc_credentials rows, accessed through the bun repositories in
// store/sql. Reads are served through a read-through cache so a
// process juggling many handles on the same cache name doesn't hit the
// database on every GetFirst/Retrieve; every write invalidates that
// cache entry before returning.
package sqlbackend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-krb5cc/core"
	sqlstore "github.com/goliatone/go-krb5cc/store/sql"
)

const cacheKeyPrefix = "go-krb5cc::sqlbackend::v1"

// Backend is a core.Backend implementation backed by sqlstore.Store.
// It additionally implements core.Retriever, core.Remover,
// core.DefaultSetter, core.VersionProvider, and
// core.CollectionEnumerator.
type Backend struct {
	prefix string
	store  *sqlstore.Store
	cache  repositorycache.CacheService

	mu      sync.Mutex
	current string
}

// New creates a Backend over store, registered under prefix. cacheService
// may be nil, in which case reads always hit the store directly.
func New(prefix string, store *sqlstore.Store, cacheService repositorycache.CacheService) (*Backend, error) {
	if store == nil {
		return nil, fmt.Errorf("sqlbackend: store is required")
	}
	return &Backend{prefix: prefix, store: store, cache: cacheService}, nil
}

type state struct {
	name string
}

func (b *Backend) Prefix() string { return b.prefix }

func (b *Backend) GetName(_ context.Context, s any) (string, error) {
	return s.(*state).name, nil
}

func (b *Backend) Resolve(ctx context.Context, residual string) (any, error) {
	if _, err := b.store.Caches.ensure(ctx, residual); err != nil {
		return nil, err
	}
	return &state{name: residual}, nil
}

func (b *Backend) GenNew(ctx context.Context) (any, string, error) {
	name := uuid.NewString()
	if _, err := b.store.Caches.ensure(ctx, name); err != nil {
		return nil, "", err
	}
	return &state{name: name}, name, nil
}

func (b *Backend) Init(ctx context.Context, s any, owner core.Principal) error {
	name := s.(*state).name
	if err := b.store.DB().RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := b.store.Credentials.deleteAllForCache(ctx, tx, name); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return err
	}
	if err := b.store.Caches.init(ctx, name, owner); err != nil {
		return err
	}
	b.invalidate(ctx, name)
	return nil
}

func (b *Backend) Destroy(ctx context.Context, s any) error {
	name := s.(*state).name
	if err := b.store.Caches.destroy(ctx, name); err != nil {
		return err
	}
	b.invalidate(ctx, name)
	return nil
}

func (b *Backend) Close(_ context.Context, _ any) error { return nil }

func (b *Backend) Store(ctx context.Context, s any, cred core.Credential) error {
	name := s.(*state).name
	if err := b.store.Credentials.insert(ctx, name, cred); err != nil {
		return err
	}
	b.invalidate(ctx, name)
	return nil
}

func (b *Backend) GetPrincipal(ctx context.Context, s any) (core.Principal, error) {
	record, err := b.store.Caches.get(ctx, s.(*state).name)
	if err != nil {
		return core.Principal{}, err
	}
	return core.NewPrincipal(record.OwnerRealm, record.OwnerName...), nil
}

type seqState struct {
	creds []core.Credential
	index int
}

func (b *Backend) allCredentials(ctx context.Context, name string) ([]core.Credential, error) {
	if b.cache == nil {
		return b.loadCredentials(ctx, name)
	}
	return repositorycache.GetOrFetch(ctx, b.cache, b.cacheKey(name), func(ctx context.Context) ([]core.Credential, error) {
		return b.loadCredentials(ctx, name)
	})
}

func (b *Backend) loadCredentials(ctx context.Context, name string) ([]core.Credential, error) {
	records, err := b.store.Credentials.listByCache(ctx, name)
	if err != nil {
		return nil, err
	}
	creds := make([]core.Credential, len(records))
	for i, record := range records {
		creds[i] = record.toDomain()
	}
	return creds, nil
}

func (b *Backend) GetFirst(ctx context.Context, s any) (core.Credential, core.SeqCursor, error) {
	return b.GetNext(ctx, s, seqState{index: 0})
}

func (b *Backend) GetNext(ctx context.Context, s any, cursor core.SeqCursor) (core.Credential, core.SeqCursor, error) {
	seq, ok := cursor.(seqState)
	if !ok || seq.creds == nil {
		creds, err := b.allCredentials(ctx, s.(*state).name)
		if err != nil {
			return core.Credential{}, nil, err
		}
		seq = seqState{creds: creds, index: seq.index}
	}
	if seq.index >= len(seq.creds) {
		return core.Credential{}, nil, core.ErrEndOfSequence
	}
	return seq.creds[seq.index].Clone(), seqState{creds: seq.creds, index: seq.index + 1}, nil
}

func (b *Backend) EndGet(_ context.Context, _ any, _ core.SeqCursor) error { return nil }

func (b *Backend) SetFlags(ctx context.Context, s any, flags uint32) error {
	name := s.(*state).name
	if err := b.store.Caches.setFlags(ctx, name, flags); err != nil {
		return err
	}
	b.invalidate(ctx, name)
	return nil
}

func (b *Backend) GetFlags(ctx context.Context, s any) (uint32, error) {
	record, err := b.store.Caches.get(ctx, s.(*state).name)
	if err != nil {
		return 0, err
	}
	return record.Flags, nil
}

func (b *Backend) Move(ctx context.Context, from, to any) error {
	fromName := from.(*state).name
	toName := to.(*state).name
	fromRecord, err := b.store.Caches.get(ctx, fromName)
	if err != nil {
		return err
	}
	owner := core.NewPrincipal(fromRecord.OwnerRealm, fromRecord.OwnerName...)
	if err := b.store.DB().RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return b.store.Credentials.copyInto(ctx, tx, fromName, toName)
	}); err != nil {
		return err
	}
	if err := b.store.Caches.init(ctx, toName, owner); err != nil {
		return err
	}
	b.invalidate(ctx, fromName)
	b.invalidate(ctx, toName)
	return nil
}

func (b *Backend) GetDefaultName() string {
	return b.prefix + ":default"
}

func (b *Backend) LastChange(ctx context.Context, s any) (time.Time, error) {
	record, err := b.store.Caches.get(ctx, s.(*state).name)
	if err != nil {
		return time.Time{}, err
	}
	return record.ChangedAt, nil
}

func (b *Backend) GetVersion(ctx context.Context, s any) (int, error) {
	record, err := b.store.Caches.get(ctx, s.(*state).name)
	if err != nil {
		return 0, err
	}
	return record.Version, nil
}

func (b *Backend) Retrieve(ctx context.Context, s any, mask core.MatchField, template core.Credential) (core.Credential, error) {
	creds, err := b.allCredentials(ctx, s.(*state).name)
	if err != nil {
		return core.Credential{}, err
	}
	for _, cred := range creds {
		if core.MatchCredential(mask, template, cred) {
			return cred.Clone(), nil
		}
	}
	return core.Credential{}, core.ErrCredentialNotFound
}

func (b *Backend) RemoveCred(ctx context.Context, s any, mask core.MatchField, template core.Credential) error {
	name := s.(*state).name
	records, err := b.store.Credentials.listByCache(ctx, name)
	if err != nil {
		return err
	}
	for _, record := range records {
		if core.MatchCredential(mask, template, record.toDomain()) {
			if err := b.store.Credentials.deleteByID(ctx, record.ID); err != nil {
				return err
			}
			b.invalidate(ctx, name)
			return nil
		}
	}
	return core.ErrCredentialNotFound
}

func (b *Backend) SetDefault(_ context.Context, s any) error {
	b.mu.Lock()
	b.current = s.(*state).name
	b.mu.Unlock()
	return nil
}

type cacheCursor struct {
	names []string
	index int
}

func (b *Backend) GetCacheFirst(ctx context.Context) (core.CacheInfo, core.CacheCursor, error) {
	names, err := b.store.Caches.listNames(ctx)
	if err != nil {
		return core.CacheInfo{}, nil, err
	}
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

func (b *Backend) cacheKey(name string) string {
	return strings.Join([]string{cacheKeyPrefix, b.prefix, name}, "::")
}

func (b *Backend) invalidate(ctx context.Context, name string) {
	if b.cache == nil {
		return
	}
	_ = b.cache.Delete(ctx, b.cacheKey(name))
}

var (
	_ core.Backend              = (*Backend)(nil)
	_ core.Retriever            = (*Backend)(nil)
	_ core.Remover              = (*Backend)(nil)
	_ core.DefaultSetter        = (*Backend)(nil)
	_ core.VersionProvider      = (*Backend)(nil)
	_ core.CollectionEnumerator = (*Backend)(nil)
)
