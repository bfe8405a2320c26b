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

// SQLiteRepository implements Repository using a DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert inserts or replaces the couple record by id.
func (r *SQLiteRepository) Upsert(ctx context.Context, c *models.Couple) error {
	query := `INSERT INTO couples (id, user_id, partner_id, status, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			partner_id = excluded.partner_id,
			status = excluded.status,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.PartnerID, string(c.Status), c.StartedAt, c.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert couple: %w", err)
	}
	return nil
}

// GetByID returns the couple or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Couple, error) {
	query := `SELECT id, user_id, partner_id, status, started_at, ended_at FROM couples WHERE id=?`
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

// SetStatus flips the lifecycle status.
func (r *SQLiteRepository) SetStatus(ctx context.Context, id string, status models.CoupleStatus, endedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE couples SET status=?, ended_at=? WHERE id=?`, string(status), endedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update couple status: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}
