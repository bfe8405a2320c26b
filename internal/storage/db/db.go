// Package db opens the database, runs migrations and wires the repositories.
package db

import (
	"context"
	"database/sql"

	"github.com/couplesdiary/cryptocore/internal/storage/archives"
	"github.com/couplesdiary/cryptocore/internal/storage/couples"
	"github.com/couplesdiary/cryptocore/internal/storage/entries"
	"github.com/couplesdiary/cryptocore/internal/storage/keymeta"
	"github.com/couplesdiary/cryptocore/internal/storage/memories"
	"github.com/couplesdiary/cryptocore/internal/storage/plans"
)

// Repositories bundles every repository the services depend on.
type Repositories struct {
	Entries  entries.Repository
	Plans    plans.Repository
	Memories memories.Repository
	Couples  couples.Repository
	Archives archives.Repository
	KeyMeta  keymeta.Repository
}

// Manager owns the database handle and its repositories.
type Manager interface {
	Conn() *sql.DB
	Repos() *Repositories
	RunMigrations(ctx context.Context) error
	Close() error
}
