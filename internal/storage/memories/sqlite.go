package memories

import (
	"context"
	"fmt"

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

func (r *SQLiteRepository) Insert(ctx context.Context, m *models.Memory) error {
	query := `INSERT INTO memories (id, couple_id, title, description, photo_url, happened_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.CoupleID, m.Title, m.Description, m.PhotoURL, m.HappenedAt, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListByCouple(ctx context.Context, coupleID string) ([]*models.Memory, error) {
	query := `SELECT id, couple_id, title, description, photo_url, happened_at, created_at
		FROM memories WHERE couple_id=? ORDER BY happened_at`
	rows, err := r.db.QueryContext(ctx, query, coupleID)
	if err != nil {
		return nil, fmt.Errorf("failed to select memories: %w", err)
	}
	defer rows.Close()

	var result []*models.Memory
	for rows.Next() {
		var m models.Memory
		if err := rows.Scan(&m.ID, &m.CoupleID, &m.Title, &m.Description, &m.PhotoURL, &m.HappenedAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByCouple(ctx context.Context, coupleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE couple_id=?`, coupleID)
	if err != nil {
		return fmt.Errorf("failed to delete memories: %w", err)
	}
	return nil
}
