package sqlstore

import (
	"context"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-krb5cc/core"
)

// CredentialStore owns cc_credentials rows: one per stored credential,
// ordered within a cache by insertion position so GetFirst/GetNext can
// walk a cache the way the original sequence cursor expects.
type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
}

func (s *CredentialStore) insert(ctx context.Context, cacheName string, cred core.Credential) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		cache := &CacheStore{db: s.db}
		position, err := cache.nextPosition(ctx, tx, cacheName)
		if err != nil {
			return err
		}
		record := newCredentialRecord(cacheName, cred, position, time.Now().UTC())
		if _, err := s.repo.CreateTx(ctx, tx, record); err != nil {
			return err
		}
		return cache.touch(ctx, tx, cacheName)
	})
}

func (s *CredentialStore) listByCache(ctx context.Context, cacheName string) ([]*credentialRecord, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("cache_name", "=", cacheName),
		repository.OrderBy("position ASC"),
	)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *CredentialStore) deleteAllForCache(ctx context.Context, tx bun.IDB, cacheName string) error {
	_, err := tx.NewDelete().Model((*credentialRecord)(nil)).Where("cache_name = ?", cacheName).Exec(ctx)
	return err
}

func (s *CredentialStore) deleteByID(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().Model((*credentialRecord)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *CredentialStore) copyInto(ctx context.Context, tx bun.IDB, fromCache, toCache string) error {
	if err := s.deleteAllForCache(ctx, tx, toCache); err != nil {
		return err
	}
	var source []*credentialRecord
	if err := tx.NewSelect().Model(&source).Where("cache_name = ?", fromCache).Order("position ASC").Scan(ctx); err != nil {
		return err
	}
	for _, record := range source {
		clone := *record
		clone.ID = uuid.NewString()
		clone.CacheName = toCache
		if _, err := tx.NewInsert().Model(&clone).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
