package archives

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/dbx"
	"github.com/couplesdiary/cryptocore/internal/models"
)

// PostgresRepository implements Repository over a dbx.DBTX for the
// server-side deployment of the persistence collaborator.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, a *models.BreakupArchive) error {
	query := `INSERT INTO archives
		(id, couple_id, user_id, archived_at, reason, recovery_expires_at, is_recoverable,
		 encrypted_data, storage_key, checksum, key_hint, recovery_envelope)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.CoupleID, a.UserID, a.ArchivedAt, a.Reason, a.RecoveryExpiresAt, a.IsRecoverable,
		a.EncryptedData, a.StorageKey, a.Checksum, a.KeyHint, a.RecoveryEnvelope)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.BreakupArchive, error) {
	query := `SELECT id, couple_id, user_id, archived_at, reason, recovery_expires_at, is_recoverable,
		encrypted_data, storage_key, checksum, key_hint, recovery_envelope
		FROM archives WHERE id=$1`
	row := r.db.QueryRowContext(ctx, query, id)

	var a models.BreakupArchive
	err := row.Scan(&a.ID, &a.CoupleID, &a.UserID, &a.ArchivedAt, &a.Reason, &a.RecoveryExpiresAt,
		&a.IsRecoverable, &a.EncryptedData, &a.StorageKey, &a.Checksum, &a.KeyHint, &a.RecoveryEnvelope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select archive: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM archives WHERE id=$1`, id)
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

func (r *PostgresRepository) DeleteByCouple(ctx context.Context, coupleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM archives WHERE couple_id=$1`, coupleID)
	if err != nil {
		return fmt.Errorf("failed to delete archives: %w", err)
	}
	return nil
}
