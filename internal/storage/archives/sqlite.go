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

// SQLiteRepository implements Repository using a DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert stores a new archive record. The encrypted payload is opaque here.
func (r *SQLiteRepository) Insert(ctx context.Context, a *models.BreakupArchive) error {
	query := `INSERT INTO archives
		(id, couple_id, user_id, archived_at, reason, recovery_expires_at, is_recoverable,
		 encrypted_data, storage_key, checksum, key_hint, recovery_envelope)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.CoupleID, a.UserID, a.ArchivedAt, a.Reason, a.RecoveryExpiresAt, a.IsRecoverable,
		a.EncryptedData, a.StorageKey, a.Checksum, a.KeyHint, a.RecoveryEnvelope)
	if err != nil {
		return fmt.Errorf("failed to insert archive: %w", err)
	}
	return nil
}

// GetByID returns the archive or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.BreakupArchive, error) {
	query := `SELECT id, couple_id, user_id, archived_at, reason, recovery_expires_at, is_recoverable,
		encrypted_data, storage_key, checksum, key_hint, recovery_envelope
		FROM archives WHERE id=?`
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

// Delete removes the archive record.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM archives WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete archive: %w", err)
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

// DeleteByCouple removes every archive for a couple.
func (r *SQLiteRepository) DeleteByCouple(ctx context.Context, coupleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM archives WHERE couple_id=?`, coupleID)
	if err != nil {
		return fmt.Errorf("failed to delete archives: %w", err)
	}
	return nil
}
