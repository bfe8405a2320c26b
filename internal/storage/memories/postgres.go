package memories

import (
	"context"
	"fmt"

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

func (r *PostgresRepository) Insert(ctx context.Context, m *models.Memory) error {
	query := `INSERT INTO memories (id, couple_id, title, description, photo_url, happened_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.CoupleID, m.Title, m.Description, m.PhotoURL, m.HappenedAt, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByCouple(ctx context.Context, coupleID string) ([]*models.Memory, error) {
	query := `SELECT id, couple_id, title, description, photo_url, happened_at, created_at
		FROM memories WHERE couple_id=$1 ORDER BY happened_at`
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

func (r *PostgresRepository) DeleteByCouple(ctx context.Context, coupleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE couple_id=$1`, coupleID)
	if err != nil {
		return fmt.Errorf("failed to delete memories: %w", err)
	}
	return nil
}
