package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Store bundles the two bun-backed tables a database credential-cache
// backend needs: cc_caches (one row per cache) and cc_credentials (one
// row per stored credential).
type Store struct {
	db          *bun.DB
	Caches      *CacheStore
	Credentials *CredentialStore
}

// NewStoreFromPersistence builds a Store from a go-persistence-bun
// client, the construction path production wiring uses.
func NewStoreFromPersistence(client *persistence.Client) (*Store, error) {
	return NewStore(client)
}

// NewStoreFromDB builds a Store directly from an open bun.DB.
func NewStoreFromDB(db *bun.DB) (*Store, error) {
	return NewStore(db)
}

// NewStore resolves persistenceClient into a *bun.DB and builds the
// repositories over it. persistenceClient may be a *bun.DB directly or
// anything exposing a DB() *bun.DB method.
func NewStore(persistenceClient any) (*Store, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}

	credentialRepo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := credentialRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}

	return &Store{
		db:          db,
		Caches:      &CacheStore{db: db},
		Credentials: &CredentialStore{db: db, repo: credentialRepo},
	}, nil
}

// DB returns the underlying bun.DB, primarily for transactional
// callers that need to span both tables (e.g. cache move/copy).
func (s *Store) DB() *bun.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
