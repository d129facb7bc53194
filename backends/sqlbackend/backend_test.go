package sqlbackend_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-krb5cc/backends/sqlbackend"
	"github.com/goliatone/go-krb5cc/core"
	"github.com/goliatone/go-krb5cc/migrations"
	sqlstore "github.com/goliatone/go-krb5cc/store/sql"
)

type testPersistenceConfig struct{}

func (testPersistenceConfig) GetDebug() bool               { return false }
func (testPersistenceConfig) GetDriver() string             { return "sqlite3" }
func (testPersistenceConfig) GetServer() string             { return "" }
func (testPersistenceConfig) GetPingTimeout() time.Duration { return time.Second }
func (testPersistenceConfig) GetOtelIdentifier() string     { return "go-krb5cc-tests" }

func newSQLiteStore(t *testing.T) (*sqlstore.Store, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:krb5cc-test-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client, err := persistence.New(testPersistenceConfig{}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = migrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithValidationTargets(migrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	store, err := sqlstore.NewStoreFromPersistence(client)
	if err != nil {
		_ = client.Close()
		t.Fatalf("new store: %v", err)
	}
	return store, func() { _ = client.Close() }
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestStoreAndRetrieveRoundTrip(t *testing.T) {
	store, cleanup := newSQLiteStore(t)
	defer cleanup()
	b, err := sqlbackend.New("DB", store, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	ctx := context.Background()
	state, err := b.Resolve(ctx, "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	owner := core.NewPrincipal("EXAMPLE.COM", "alice")
	if err := b.Init(ctx, state, owner); err != nil {
		t.Fatalf("Init: %v", err)
	}

	server := core.NewPrincipal("EXAMPLE.COM", "krbtgt", "EXAMPLE.COM")
	cred := core.Credential{Client: owner, Server: server, Ticket: []byte("ticket-bytes")}
	if err := b.Store(ctx, state, cred); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := b.Retrieve(ctx, state, core.MatchClient|core.MatchServer, core.Credential{Client: owner, Server: server})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(got.Ticket) != "ticket-bytes" {
		t.Fatalf("expected retrieved ticket bytes, got %q", got.Ticket)
	}
}

func TestRetrieveInvalidatesCacheOnStore(t *testing.T) {
	store, cleanup := newSQLiteStore(t)
	defer cleanup()
	b, err := sqlbackend.New("DB", store, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	ctx := context.Background()
	state, _ := b.Resolve(ctx, "alice")
	owner := core.NewPrincipal("EXAMPLE.COM", "alice")
	if err := b.Init(ctx, state, owner); err != nil {
		t.Fatalf("Init: %v", err)
	}

	server := core.NewPrincipal("EXAMPLE.COM", "krbtgt", "EXAMPLE.COM")
	if _, _, err := b.GetFirst(ctx, state); !errors.Is(err, core.ErrEndOfSequence) {
		t.Fatalf("expected empty cache before store, got %v", err)
	}

	cred := core.Credential{Client: owner, Server: server}
	if err := b.Store(ctx, state, cred); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, _, err := b.GetFirst(ctx, state); err != nil {
		t.Fatalf("expected cached read to observe the new store, got %v", err)
	}
}

func TestRemoveCredDeletesMatchingRow(t *testing.T) {
	store, cleanup := newSQLiteStore(t)
	defer cleanup()
	b, err := sqlbackend.New("DB", store, nil)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	ctx := context.Background()
	state, _ := b.Resolve(ctx, "alice")
	owner := core.NewPrincipal("EXAMPLE.COM", "alice")
	b.Init(ctx, state, owner)
	server := core.NewPrincipal("EXAMPLE.COM", "krbtgt", "EXAMPLE.COM")
	cred := core.Credential{Client: owner, Server: server}
	if err := b.Store(ctx, state, cred); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := b.RemoveCred(ctx, state, core.MatchServer, core.Credential{Server: server}); err != nil {
		t.Fatalf("RemoveCred: %v", err)
	}
	if _, err := b.Retrieve(ctx, state, core.MatchServer, core.Credential{Server: server}); !errors.Is(err, core.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound after remove, got %v", err)
	}
}

func TestMoveCopiesCredentialsAndOwner(t *testing.T) {
	store, cleanup := newSQLiteStore(t)
	defer cleanup()
	b, err := sqlbackend.New("DB", store, nil)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	ctx := context.Background()
	from, _ := b.Resolve(ctx, "from-cache")
	to, _ := b.Resolve(ctx, "to-cache")
	owner := core.NewPrincipal("EXAMPLE.COM", "alice")
	b.Init(ctx, from, owner)
	server := core.NewPrincipal("EXAMPLE.COM", "krbtgt", "EXAMPLE.COM")
	if err := b.Store(ctx, from, core.Credential{Client: owner, Server: server}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := b.Move(ctx, from, to); err != nil {
		t.Fatalf("Move: %v", err)
	}

	gotOwner, err := b.GetPrincipal(ctx, to)
	if err != nil {
		t.Fatalf("GetPrincipal: %v", err)
	}
	if !gotOwner.Equal(owner) {
		t.Fatalf("expected owner copied to destination, got %+v", gotOwner)
	}
	if _, err := b.Retrieve(ctx, to, core.MatchServer, core.Credential{Server: server}); err != nil {
		t.Fatalf("expected credential copied to destination: %v", err)
	}
}

func TestGetCacheFirstEnumeratesCaches(t *testing.T) {
	store, cleanup := newSQLiteStore(t)
	defer cleanup()
	b, err := sqlbackend.New("DB", store, nil)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	ctx := context.Background()
	if _, err := b.Resolve(ctx, "alpha"); err != nil {
		t.Fatalf("Resolve alpha: %v", err)
	}
	if _, err := b.Resolve(ctx, "beta"); err != nil {
		t.Fatalf("Resolve beta: %v", err)
	}

	info, cursor, err := b.GetCacheFirst(ctx)
	if err != nil {
		t.Fatalf("GetCacheFirst: %v", err)
	}
	if info.Name != "alpha" {
		t.Fatalf("expected alpha first, got %q", info.Name)
	}
	info, _, err = b.GetCacheNext(ctx, cursor)
	if err != nil {
		t.Fatalf("GetCacheNext: %v", err)
	}
	if info.Name != "beta" {
		t.Fatalf("expected beta second, got %q", info.Name)
	}
}
