package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-krb5cc/core"
)

// CacheStore owns the cc_caches row: the cache-level metadata a
// credential-cache backend keeps apart from the credentials
// themselves (owner, flags, version, last-change time).
type CacheStore struct {
	db *bun.DB
}

func (s *CacheStore) ensure(ctx context.Context, name string) (*cacheRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: cache store is not configured")
	}
	record := &cacheRecord{}
	err := s.db.NewSelect().Model(record).Where("name = ?", name).Scan(ctx)
	if err == nil {
		return record, nil
	}
	record = &cacheRecord{Name: name, Version: 1, ChangedAt: time.Now().UTC()}
	if _, insertErr := s.db.NewInsert().Model(record).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx); insertErr != nil {
		return nil, insertErr
	}
	if scanErr := s.db.NewSelect().Model(record).Where("name = ?", name).Scan(ctx); scanErr != nil {
		return nil, scanErr
	}
	return record, nil
}

func (s *CacheStore) get(ctx context.Context, name string) (*cacheRecord, error) {
	record := &cacheRecord{}
	if err := s.db.NewSelect().Model(record).Where("name = ?", name).Scan(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *CacheStore) init(ctx context.Context, name string, owner core.Principal) error {
	if _, err := s.ensure(ctx, name); err != nil {
		return err
	}
	ownerName, err := json.Marshal(owner.Name)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.NewUpdate().Model((*cacheRecord)(nil)).
		Set("owner_realm = ?", owner.Realm).
		Set("owner_name = ?", string(ownerName)).
		Set("changed_at = ?", now).
		Where("name = ?", name).
		Exec(ctx)
	return err
}

func (s *CacheStore) destroy(ctx context.Context, name string) error {
	_, err := s.db.NewDelete().Model((*cacheRecord)(nil)).Where("name = ?", name).Exec(ctx)
	return err
}

func (s *CacheStore) setFlags(ctx context.Context, name string, flags uint32) error {
	_, err := s.db.NewUpdate().Model((*cacheRecord)(nil)).
		Set("flags = ?", flags).
		Where("name = ?", name).
		Exec(ctx)
	return err
}

func (s *CacheStore) touch(ctx context.Context, tx bun.IDB, name string) error {
	_, err := tx.NewUpdate().Model((*cacheRecord)(nil)).
		Set("changed_at = ?", time.Now().UTC()).
		Set("version = version + 1").
		Where("name = ?", name).
		Exec(ctx)
	return err
}

func (s *CacheStore) listNames(ctx context.Context) ([]string, error) {
	var records []*cacheRecord
	if err := s.db.NewSelect().Model(&records).Column("name").Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	return names, nil
}

func (s *CacheStore) nextPosition(ctx context.Context, tx bun.IDB, cacheName string) (int64, error) {
	var maxPosition int64
	if err := tx.NewSelect().
		Model((*credentialRecord)(nil)).
		ColumnExpr("COALESCE(MAX(position), 0)").
		Where("cache_name = ?", cacheName).
		Scan(ctx, &maxPosition); err != nil {
		return 0, err
	}
	return maxPosition + 1, nil
}
