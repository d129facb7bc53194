// Package file implements a filesystem-backed credential-cache backend:
// one file per cache, holding a JSON-encoded snapshot of its owner,
// credentials, flags, and version. Writes are atomic (write to a
// temp file in the same directory, then rename) so a crash mid-write
// never leaves a cache file half-written.
package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-krb5cc/core"
)

// Backend stores each cache as one file under dir. Residual names are
// sanitized into filenames; the original residual is kept inside the
// file so GetName can return it unchanged.
type Backend struct {
	prefix string
	dir    string

	mu      sync.Mutex
	current string
}

// New creates a Backend rooted at dir. dir is created on first write if
// it does not already exist.
func New(prefix, dir string) *Backend {
	return &Backend{prefix: prefix, dir: dir}
}

func (b *Backend) Prefix() string { return b.prefix }

type snapshot struct {
	Name    string            `json:"name"`
	Owner   core.Principal    `json:"owner"`
	Creds   []core.Credential `json:"creds"`
	Flags   uint32            `json:"flags"`
	Version int               `json:"version"`
	Changed time.Time         `json:"changed"`
}

// state is the opaque value handed back by Resolve/GenNew: a path plus
// the residual name it was resolved from. The backend never caches a
// snapshot in memory across calls; every operation reads the file
// fresh and writes it back, so concurrent processes sharing dir see
// each other's writes.
type state struct {
	path string
	name string
}

func (b *Backend) pathFor(residual string) string {
	return filepath.Join(b.dir, sanitize(residual)+".json")
}

func sanitize(name string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_", "\\", "_")
	return replacer.Replace(name)
}

func (b *Backend) GetName(_ context.Context, s any) (string, error) {
	return s.(*state).name, nil
}

func (b *Backend) Resolve(_ context.Context, residual string) (any, error) {
	return &state{path: b.pathFor(residual), name: residual}, nil
}

func (b *Backend) GenNew(_ context.Context) (any, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; ; i++ {
		name := tempName(i)
		path := b.pathFor(name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return &state{path: path, name: name}, name, nil
		}
	}
}

func tempName(i int) string {
	if i == 0 {
		return "tkt"
	}
	return "tkt" + strconv.Itoa(i)
}

func (b *Backend) Init(_ context.Context, s any, owner core.Principal) error {
	st := s.(*state)
	return b.write(st, snapshot{Name: st.name, Owner: owner, Version: 1, Changed: time.Now().UTC()})
}

func (b *Backend) Destroy(_ context.Context, s any) error {
	st := s.(*state)
	if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *Backend) Close(_ context.Context, _ any) error { return nil }

func (b *Backend) Store(_ context.Context, s any, cred core.Credential) error {
	st := s.(*state)
	snap, err := b.read(st)
	if err != nil {
		return err
	}
	snap.Creds = append(snap.Creds, cred.Clone())
	snap.Version++
	snap.Changed = time.Now().UTC()
	return b.write(st, snap)
}

func (b *Backend) GetPrincipal(_ context.Context, s any) (core.Principal, error) {
	snap, err := b.read(s.(*state))
	if err != nil {
		return core.Principal{}, err
	}
	return snap.Owner, nil
}

type seqCursor struct {
	index int
}

func (b *Backend) GetFirst(_ context.Context, s any) (core.Credential, core.SeqCursor, error) {
	return b.GetNext(context.Background(), s, seqCursor{index: 0})
}

func (b *Backend) GetNext(_ context.Context, s any, cursor core.SeqCursor) (core.Credential, core.SeqCursor, error) {
	snap, err := b.read(s.(*state))
	if err != nil {
		return core.Credential{}, nil, err
	}
	c := cursor.(seqCursor)
	if c.index >= len(snap.Creds) {
		return core.Credential{}, nil, core.ErrEndOfSequence
	}
	return snap.Creds[c.index].Clone(), seqCursor{index: c.index + 1}, nil
}

func (b *Backend) EndGet(_ context.Context, _ any, _ core.SeqCursor) error { return nil }

func (b *Backend) SetFlags(_ context.Context, s any, flags uint32) error {
	st := s.(*state)
	snap, err := b.read(st)
	if err != nil {
		return err
	}
	snap.Flags = flags
	return b.write(st, snap)
}

func (b *Backend) GetFlags(_ context.Context, _ any) (uint32, error) {
	return 0, nil
}

func (b *Backend) Move(_ context.Context, from, to any) error {
	fromSt := from.(*state)
	toSt := to.(*state)
	snap, err := b.read(fromSt)
	if err != nil {
		return err
	}
	snap.Name = toSt.name
	snap.Changed = time.Now().UTC()
	if err := b.write(toSt, snap); err != nil {
		return err
	}
	return os.Remove(fromSt.path)
}

func (b *Backend) GetDefaultName() string {
	return b.prefix + ":tkt"
}

func (b *Backend) LastChange(_ context.Context, s any) (time.Time, error) {
	snap, err := b.read(s.(*state))
	if err != nil {
		return time.Time{}, err
	}
	return snap.Changed, nil
}

func (b *Backend) GetVersion(_ context.Context, s any) (int, error) {
	snap, err := b.read(s.(*state))
	if err != nil {
		return 0, err
	}
	return snap.Version, nil
}

func (b *Backend) Retrieve(_ context.Context, s any, mask core.MatchField, template core.Credential) (core.Credential, error) {
	snap, err := b.read(s.(*state))
	if err != nil {
		return core.Credential{}, err
	}
	for _, cred := range snap.Creds {
		if core.MatchCredential(mask, template, cred) {
			return cred.Clone(), nil
		}
	}
	return core.Credential{}, core.ErrCredentialNotFound
}

func (b *Backend) RemoveCred(_ context.Context, s any, mask core.MatchField, template core.Credential) error {
	st := s.(*state)
	snap, err := b.read(st)
	if err != nil {
		return err
	}
	for i, cred := range snap.Creds {
		if core.MatchCredential(mask, template, cred) {
			snap.Creds = append(snap.Creds[:i], snap.Creds[i+1:]...)
			snap.Version++
			snap.Changed = time.Now().UTC()
			return b.write(st, snap)
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

func (b *Backend) GetCacheFirst(_ context.Context) (core.CacheInfo, core.CacheCursor, error) {
	names, err := b.listCaches()
	if err != nil {
		return core.CacheInfo{}, nil, err
	}
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

func (b *Backend) listCaches() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		snap, readErr := b.readPath(filepath.Join(b.dir, entry.Name()))
		if readErr != nil {
			continue
		}
		names = append(names, snap.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *Backend) read(s *state) (snapshot, error) {
	return b.readPath(s.path)
}

func (b *Backend) readPath(path string) (snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return snapshot{}, core.ErrCredentialNotFound
	}
	if err != nil {
		return snapshot{}, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func (b *Backend) write(s *state, snap snapshot) error {
	if err := os.MkdirAll(b.dir, 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}

var (
	_ core.Backend              = (*Backend)(nil)
	_ core.Retriever            = (*Backend)(nil)
	_ core.Remover              = (*Backend)(nil)
	_ core.DefaultSetter        = (*Backend)(nil)
	_ core.VersionProvider      = (*Backend)(nil)
	_ core.CollectionEnumerator = (*Backend)(nil)
)
