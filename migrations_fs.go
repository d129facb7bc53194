package services

import (
	"embed"
	"io/fs"
)

// migrationsFS contains the full SQL migration tree for the
// database-backed credential-cache backend, including the sqlite
// dialect alternative under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetCoreMigrationsFS returns the default core schema migration tree.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
