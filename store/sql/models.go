// Package sqlstore is the bun-backed persistence layer for the
// database credential-cache backend: one cacheRecord row per cache and
// one credentialRecord row per stored credential, with the JSON
// principal-name encoding shared across the postgres and sqlite
// dialects.
package sqlstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-krb5cc/core"
)

type cacheRecord struct {
	bun.BaseModel `bun:"table:cc_caches,alias:cc"`

	Name       string    `bun:"name,pk"`
	OwnerRealm string    `bun:"owner_realm,notnull"`
	OwnerName  []string  `bun:"owner_name,type:jsonb,notnull"`
	Flags      uint32    `bun:"flags,notnull"`
	Version    int       `bun:"version,notnull"`
	ChangedAt  time.Time `bun:"changed_at,nullzero,notnull,default:current_timestamp"`
}

type credentialRecord struct {
	bun.BaseModel `bun:"table:cc_credentials,alias:ccr"`

	ID          string    `bun:"id,pk"`
	CacheName   string    `bun:"cache_name,notnull"`
	ClientRealm string    `bun:"client_realm,notnull"`
	ClientName  []string  `bun:"client_name,type:jsonb,notnull"`
	ServerRealm string    `bun:"server_realm,notnull"`
	ServerName  []string  `bun:"server_name,type:jsonb,notnull"`
	AuthTime    int64     `bun:"auth_time,notnull"`
	EndTime     int64     `bun:"end_time,notnull"`
	Ticket      []byte    `bun:"ticket"`
	Position    int64     `bun:"position,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newCredentialRecord(cacheName string, cred core.Credential, position int64, now time.Time) *credentialRecord {
	return &credentialRecord{
		ID:          uuid.NewString(),
		CacheName:   cacheName,
		ClientRealm: cred.Client.Realm,
		ClientName:  cred.Client.Name,
		ServerRealm: cred.Server.Realm,
		ServerName:  cred.Server.Name,
		AuthTime:    cred.Times.AuthTime,
		EndTime:     cred.Times.EndTime,
		Ticket:      cred.Ticket,
		Position:    position,
		CreatedAt:   now,
	}
}

func (r *credentialRecord) toDomain() core.Credential {
	return core.Credential{
		Client: core.NewPrincipal(r.ClientRealm, r.ClientName...),
		Server: core.NewPrincipal(r.ServerRealm, r.ServerName...),
		Ticket: append([]byte(nil), r.Ticket...),
		Times:  core.Times{AuthTime: r.AuthTime, EndTime: r.EndTime},
	}
}
