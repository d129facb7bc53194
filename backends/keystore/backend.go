// Package keystore implements a credential-cache backend standing in
// for an OS keystore: every stored ticket blob is sealed with a
// core.SecretProvider before it reaches the in-process map, and opened
// again on retrieval. The map never holds a plaintext ticket; client
// and server principals and times are kept in the clear.
package keystore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-krb5cc/core"
)

// Backend wraps an in-process store with envelope encryption. sealer
// is typically a security.AppKeySecretProvider, a
// security.KMSSecretProvider/VaultSecretProvider standing in for a
// remote daemon holding the key material, or a
// security.FailoverSecretProvider composing a primary remote provider
// with a local fallback.
type Backend struct {
	prefix string
	sealer core.SecretProvider

	mu      sync.RWMutex
	caches  map[string]*cache
	current string
}

type cache struct {
	name    string
	owner   core.Principal
	sealed  []sealedCredential
	flags   uint32
	version int
	changed time.Time
}

// sealedCredential mirrors core.Credential but keeps Ticket encrypted
// at rest; Client/Server/Times stay in the clear so MatchCredential can
// run without a decrypt round-trip per candidate.
type sealedCredential struct {
	client core.Principal
	server core.Principal
	times  core.Times
	ticket []byte
}

// New creates a Backend that seals every stored ticket with sealer.
func New(prefix string, sealer core.SecretProvider) *Backend {
	return &Backend{prefix: prefix, sealer: sealer, caches: map[string]*cache{}}
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
	for i := 1; ; i++ {
		name := strconv.Itoa(i)
		if _, exists := b.caches[name]; !exists {
			c := &cache{name: name, version: 1}
			b.caches[name] = c
			return c, name, nil
		}
	}
}

func (b *Backend) Init(_ context.Context, state any, owner core.Principal) error {
	c := state.(*cache)
	b.mu.Lock()
	c.owner = owner
	c.sealed = nil
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

func (b *Backend) Store(ctx context.Context, state any, cred core.Credential) error {
	sealedTicket, err := b.seal(ctx, cred.Ticket)
	if err != nil {
		return err
	}
	c := state.(*cache)
	b.mu.Lock()
	c.sealed = append(c.sealed, sealedCredential{
		client: cred.Client,
		server: cred.Server,
		times:  cred.Times,
		ticket: sealedTicket,
	})
	c.changed = time.Now().UTC()
	b.mu.Unlock()
	return nil
}

func (b *Backend) GetPrincipal(_ context.Context, state any) (core.Principal, error) {
	return state.(*cache).owner, nil
}

func (b *Backend) seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}
	return b.sealer.Encrypt(ctx, plaintext)
}

func (b *Backend) open(ctx context.Context, sealed []byte) ([]byte, error) {
	if len(sealed) == 0 {
		return nil, nil
	}
	return b.sealer.Decrypt(ctx, sealed)
}

func (b *Backend) unseal(ctx context.Context, sc sealedCredential) (core.Credential, error) {
	ticket, err := b.open(ctx, sc.ticket)
	if err != nil {
		return core.Credential{}, err
	}
	return core.Credential{Client: sc.client, Server: sc.server, Times: sc.times, Ticket: ticket}, nil
}

type seqCursor struct {
	index int
}

func (b *Backend) GetFirst(ctx context.Context, state any) (core.Credential, core.SeqCursor, error) {
	return b.GetNext(ctx, state, seqCursor{index: 0})
}

func (b *Backend) GetNext(ctx context.Context, state any, cursor core.SeqCursor) (core.Credential, core.SeqCursor, error) {
	c := state.(*cache)
	s := cursor.(seqCursor)
	b.mu.RLock()
	if s.index >= len(c.sealed) {
		b.mu.RUnlock()
		return core.Credential{}, nil, core.ErrEndOfSequence
	}
	entry := c.sealed[s.index]
	b.mu.RUnlock()

	cred, err := b.unseal(ctx, entry)
	if err != nil {
		return core.Credential{}, nil, err
	}
	return cred, seqCursor{index: s.index + 1}, nil
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
	toCache.sealed = fromCache.sealed
	toCache.changed = time.Now().UTC()
	b.mu.Unlock()
	return nil
}

func (b *Backend) GetDefaultName() string {
	return b.prefix + ":1"
}

func (b *Backend) LastChange(_ context.Context, state any) (time.Time, error) {
	return state.(*cache).changed, nil
}

func (b *Backend) GetVersion(_ context.Context, state any) (int, error) {
	return state.(*cache).version, nil
}

func (b *Backend) Retrieve(ctx context.Context, state any, mask core.MatchField, template core.Credential) (core.Credential, error) {
	c := state.(*cache)
	b.mu.RLock()
	entries := append([]sealedCredential(nil), c.sealed...)
	b.mu.RUnlock()

	for _, entry := range entries {
		if matchSealed(mask, template, entry) {
			return b.unseal(ctx, entry)
		}
	}
	return core.Credential{}, core.ErrCredentialNotFound
}

func matchSealed(mask core.MatchField, template core.Credential, entry sealedCredential) bool {
	candidate := core.Credential{Client: entry.client, Server: entry.server, Times: entry.times}
	return core.MatchCredential(mask, template, candidate)
}

func (b *Backend) RemoveCred(_ context.Context, state any, mask core.MatchField, template core.Credential) error {
	c := state.(*cache)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, entry := range c.sealed {
		if matchSealed(mask, template, entry) {
			c.sealed = append(c.sealed[:i], c.sealed[i+1:]...)
			c.changed = time.Now().UTC()
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
