package couples

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

func (r *PostgresRepository) Upsert(ctx context.Context, c *models.Couple) error {
	query := `INSERT INTO couples (id, user_id, partner_id, status, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			partner_id = excluded.partner_id,
			status = excluded.status,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.PartnerID, string(c.Status), c.StartedAt, c.EndedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Couple, error) {
	query := `SELECT id, user_id, partner_id, status, started_at, ended_at FROM couples WHERE id=$1`
	row := r.db.QueryRowContext(ctx, query, id)

	var c models.Couple
	var status string
	err := row.Scan(&c.ID, &c.UserID, &c.PartnerID, &status, &c.StartedAt, &c.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select couple: %w", err)
	}
	c.Status = models.CoupleStatus(status)
	return &c, nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status models.CoupleStatus, endedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE couples SET status=$1, ended_at=$2 WHERE id=$3`, string(status), endedAt, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrNotFound
	}
	return nil
}
