package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/couplesdiary/cryptocore/internal/storage/archives"
	"github.com/couplesdiary/cryptocore/internal/storage/couples"
	"github.com/couplesdiary/cryptocore/internal/storage/entries"
	"github.com/couplesdiary/cryptocore/internal/storage/keymeta"
	"github.com/couplesdiary/cryptocore/internal/storage/memories"
	migrations "github.com/couplesdiary/cryptocore/internal/storage/migrations/sqlite"
	"github.com/couplesdiary/cryptocore/internal/storage/plans"
)

// SQLiteManager is the embedded deployment: a single sqlite file.
type SQLiteManager struct {
	db    *sql.DB
	repos *Repositories
}

func (m *SQLiteManager) Conn() *sql.DB {
	return m.db
}

func (m *SQLiteManager) Repos() *Repositories {
	return m.repos
}

func (m *SQLiteManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, m.db, ".")
}

func (m *SQLiteManager) Close() error {
	return m.db.Close()
}

// NewSQLiteManager opens the sqlite database at dsn and migrates it.
func NewSQLiteManager(ctx context.Context, dsn string) (*SQLiteManager, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &SQLiteManager{
		db: db,
		repos: &Repositories{
			Entries:  entries.NewSQLiteRepository(db),
			Plans:    plans.NewSQLiteRepository(db),
			Memories: memories.NewSQLiteRepository(db),
			Couples:  couples.NewSQLiteRepository(db),
			Archives: archives.NewSQLiteRepository(db),
			KeyMeta:  keymeta.NewSQLiteRepository(db),
		},
	}

	if err := m.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
