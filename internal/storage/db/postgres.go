package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/couplesdiary/cryptocore/internal/storage/archives"
	"github.com/couplesdiary/cryptocore/internal/storage/couples"
	"github.com/couplesdiary/cryptocore/internal/storage/entries"
	"github.com/couplesdiary/cryptocore/internal/storage/keymeta"
	"github.com/couplesdiary/cryptocore/internal/storage/memories"
	migrations "github.com/couplesdiary/cryptocore/internal/storage/migrations/postgres"
	"github.com/couplesdiary/cryptocore/internal/storage/plans"
)

// PostgresManager is the server-side deployment.
type PostgresManager struct {
	db    *sql.DB
	repos *Repositories
}

func (m *PostgresManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresManager) Repos() *Repositories {
	return m.repos
}

func (m *PostgresManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, m.db, ".")
}

func (m *PostgresManager) Close() error {
	return m.db.Close()
}

// NewPostgresManager opens the postgres database at dsn and migrates it.
func NewPostgresManager(ctx context.Context, dsn string) (*PostgresManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &PostgresManager{
		db: db,
		repos: &Repositories{
			Entries:  entries.NewPostgresRepository(db),
			Plans:    plans.NewPostgresRepository(db),
			Memories: memories.NewPostgresRepository(db),
			Couples:  couples.NewPostgresRepository(db),
			Archives: archives.NewPostgresRepository(db),
			KeyMeta:  keymeta.NewPostgresRepository(db),
		},
	}

	if err := m.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
