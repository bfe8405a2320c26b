package keymeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/dbx"
	"github.com/couplesdiary/cryptocore/internal/models"
)

// PostgresRepository implements Repository over a dbx.DBTX for the
// server-side deployment.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, m *models.KeyMetadata) error {
	query := `INSERT INTO key_metadata (key_id, couple_id, purpose, algorithm, version, salt, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT(couple_id, purpose) DO UPDATE SET
			key_id = excluded.key_id,
			algorithm = excluded.algorithm,
			version = excluded.version,
			salt = excluded.salt,
			created_at = excluded.created_at,
			last_used_at = excluded.last_used_at`
	_, err := r.db.ExecContext(ctx, query,
		m.KeyID, m.CoupleID, string(m.Purpose), m.Algorithm, m.Version, m.Salt, m.CreatedAt, m.LastUsedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, coupleID string, purpose models.KeyPurpose) (*models.KeyMetadata, error) {
	query := `SELECT key_id, couple_id, purpose, algorithm, version, salt, created_at, last_used_at
		FROM key_metadata WHERE couple_id=$1 AND purpose=$2`
	row := r.db.QueryRowContext(ctx, query, coupleID, string(purpose))

	m, err := scanRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select key metadata: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) ListByCouple(ctx context.Context, coupleID string) ([]*models.KeyMetadata, error) {
	query := `SELECT key_id, couple_id, purpose, algorithm, version, salt, created_at, last_used_at
		FROM key_metadata WHERE couple_id=$1`
	rows, err := r.db.QueryContext(ctx, query, coupleID)
	if err != nil {
		return nil, fmt.Errorf("failed to select key metadata: %w", err)
	}
	defer rows.Close()

	var result []*models.KeyMetadata
	for rows.Next() {
		m, err := scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, coupleID string, purpose models.KeyPurpose) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE key_metadata SET last_used_at=$1 WHERE couple_id=$2 AND purpose=$3`,
		time.Now().UTC(), coupleID, string(purpose))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByCouple(ctx context.Context, coupleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM key_metadata WHERE couple_id=$1`, coupleID)
	if err != nil {
		return fmt.Errorf("failed to delete key metadata: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM key_metadata`)
	if err != nil {
		return fmt.Errorf("failed to delete key metadata: %w", err)
	}
	return nil
}
