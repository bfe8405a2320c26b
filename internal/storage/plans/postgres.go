package plans

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

func (r *PostgresRepository) Insert(ctx context.Context, p *models.DatePlan) error {
	query := `INSERT INTO plans (id, couple_id, title, description, location, planned_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.CoupleID, p.Title, p.Description, p.Location, p.PlannedAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByCouple(ctx context.Context, coupleID string) ([]*models.DatePlan, error) {
	query := `SELECT id, couple_id, title, description, location, planned_at, created_at
		FROM plans WHERE couple_id=$1 ORDER BY planned_at`
	rows, err := r.db.QueryContext(ctx, query, coupleID)
	if err != nil {
		return nil, fmt.Errorf("failed to select plans: %w", err)
	}
	defer rows.Close()

	var result []*models.DatePlan
	for rows.Next() {
		var p models.DatePlan
		if err := rows.Scan(&p.ID, &p.CoupleID, &p.Title, &p.Description, &p.Location, &p.PlannedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByCouple(ctx context.Context, coupleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE couple_id=$1`, coupleID)
	if err != nil {
		return fmt.Errorf("failed to delete plans: %w", err)
	}
	return nil
}
