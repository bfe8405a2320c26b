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

// SQLiteRepository implements Repository using a DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert inserts or replaces the row for (couple_id, purpose).
func (r *SQLiteRepository) Upsert(ctx context.Context, m *models.KeyMetadata) error {
	query := `INSERT INTO key_metadata (key_id, couple_id, purpose, algorithm, version, salt, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
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
		return fmt.Errorf("failed to upsert key metadata: %w", err)
	}
	return nil
}

// Get returns the row for (coupleID, purpose), or common.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, coupleID string, purpose models.KeyPurpose) (*models.KeyMetadata, error) {
	query := `SELECT key_id, couple_id, purpose, algorithm, version, salt, created_at, last_used_at
		FROM key_metadata WHERE couple_id=? AND purpose=?`
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

// ListByCouple returns all purpose rows for a couple.
func (r *SQLiteRepository) ListByCouple(ctx context.Context, coupleID string) ([]*models.KeyMetadata, error) {
	query := `SELECT key_id, couple_id, purpose, algorithm, version, salt, created_at, last_used_at
		FROM key_metadata WHERE couple_id=?`
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

// Touch updates last_used_at for the (couple, purpose) row.
func (r *SQLiteRepository) Touch(ctx context.Context, coupleID string, purpose models.KeyPurpose) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE key_metadata SET last_used_at=? WHERE couple_id=? AND purpose=?`,
		time.Now().UTC(), coupleID, string(purpose))
	if err != nil {
		return fmt.Errorf("failed to touch key metadata: %w", err)
	}
	return nil
}

// DeleteByCouple removes all rows for a couple.
func (r *SQLiteRepository) DeleteByCouple(ctx context.Context, coupleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM key_metadata WHERE couple_id=?`, coupleID)
	if err != nil {
		return fmt.Errorf("failed to delete key metadata: %w", err)
	}
	return nil
}

// DeleteAll removes every row.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM key_metadata`)
	if err != nil {
		return fmt.Errorf("failed to delete key metadata: %w", err)
	}
	return nil
}

func scanRow(scan func(dest ...any) error) (*models.KeyMetadata, error) {
	var m models.KeyMetadata
	var purpose string
	if err := scan(&m.KeyID, &m.CoupleID, &purpose, &m.Algorithm, &m.Version, &m.Salt, &m.CreatedAt, &m.LastUsedAt); err != nil {
		return nil, err
	}
	m.Purpose = models.KeyPurpose(purpose)
	return &m, nil
}
