package entries

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Insert(ctx context.Context, e *models.DiaryEntry) error {
	media, err := json.Marshal(e.Media)
	if err != nil {
		return fmt.Errorf("serializing media: %w", err)
	}
	query := `INSERT INTO entries (id, couple_id, author_id, content, mood, is_encrypted, media, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.CoupleID, e.AuthorID, e.Content, e.Mood, e.IsEncrypted, string(media), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, e *models.DiaryEntry) error {
	media, err := json.Marshal(e.Media)
	if err != nil {
		return fmt.Errorf("serializing media: %w", err)
	}
	query := `UPDATE entries SET content=$1, mood=$2, is_encrypted=$3, media=$4, updated_at=$5 WHERE id=$6`
	res, err := r.db.ExecContext(ctx, query,
		e.Content, e.Mood, e.IsEncrypted, string(media), e.UpdatedAt, e.ID)
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

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.DiaryEntry, error) {
	query := `SELECT id, couple_id, author_id, content, mood, is_encrypted, media, created_at, updated_at
		FROM entries WHERE id=$1`
	row := r.db.QueryRowContext(ctx, query, id)

	var e models.DiaryEntry
	var media []byte
	err := row.Scan(&e.ID, &e.CoupleID, &e.AuthorID, &e.Content, &e.Mood, &e.IsEncrypted, &media, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select entry: %w", err)
	}
	if len(media) > 0 {
		if err := json.Unmarshal(media, &e.Media); err != nil {
			return nil, fmt.Errorf("parsing media: %w", err)
		}
	}
	return &e, nil
}

func (r *PostgresRepository) ListByCouple(ctx context.Context, coupleID string, limit int) ([]*models.DiaryEntry, error) {
	query := `SELECT id, couple_id, author_id, content, mood, is_encrypted, media, created_at, updated_at
		FROM entries WHERE couple_id=$1 ORDER BY created_at DESC`
	args := []any{coupleID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.DiaryEntry
	for rows.Next() {
		var e models.DiaryEntry
		var media []byte
		if err := rows.Scan(&e.ID, &e.CoupleID, &e.AuthorID, &e.Content, &e.Mood, &e.IsEncrypted, &media, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if len(media) > 0 {
			if err := json.Unmarshal(media, &e.Media); err != nil {
				return nil, fmt.Errorf("parsing media: %w", err)
			}
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByCouple(ctx context.Context, coupleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE couple_id=$1`, coupleID)
	if err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	return nil
}
