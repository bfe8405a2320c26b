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

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func marshalMedia(items []models.MediaItem) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("serializing media: %w", err)
	}
	return string(b), nil
}

func unmarshalMedia(raw string) ([]models.MediaItem, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var items []models.MediaItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parsing media: %w", err)
	}
	return items, nil
}

// Insert stores a new entry. Content is stored verbatim: ciphertext is an
// opaque string to this layer.
func (r *SQLiteRepository) Insert(ctx context.Context, e *models.DiaryEntry) error {
	media, err := marshalMedia(e.Media)
	if err != nil {
		return err
	}
	query := `INSERT INTO entries (id, couple_id, author_id, content, mood, is_encrypted, media, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.CoupleID, e.AuthorID, e.Content, e.Mood, e.IsEncrypted, media, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// Update replaces the stored entry with the same id.
func (r *SQLiteRepository) Update(ctx context.Context, e *models.DiaryEntry) error {
	media, err := marshalMedia(e.Media)
	if err != nil {
		return err
	}
	query := `UPDATE entries SET content=?, mood=?, is_encrypted=?, media=?, updated_at=? WHERE id=?`
	res, err := r.db.ExecContext(ctx, query,
		e.Content, e.Mood, e.IsEncrypted, media, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
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

// GetByID returns the entry or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.DiaryEntry, error) {
	query := `SELECT id, couple_id, author_id, content, mood, is_encrypted, media, created_at, updated_at
		FROM entries WHERE id=?`
	row := r.db.QueryRowContext(ctx, query, id)

	var e models.DiaryEntry
	var media string
	err := row.Scan(&e.ID, &e.CoupleID, &e.AuthorID, &e.Content, &e.Mood, &e.IsEncrypted, &media, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select entry: %w", err)
	}
	if e.Media, err = unmarshalMedia(media); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByCouple lists the couple's entries, newest first. A limit of 0 means
// no limit.
func (r *SQLiteRepository) ListByCouple(ctx context.Context, coupleID string, limit int) ([]*models.DiaryEntry, error) {
	query := `SELECT id, couple_id, author_id, content, mood, is_encrypted, media, created_at, updated_at
		FROM entries WHERE couple_id=? ORDER BY created_at DESC`
	args := []any{coupleID}
	if limit > 0 {
		query += ` LIMIT ?`
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
		var media string
		if err := rows.Scan(&e.ID, &e.CoupleID, &e.AuthorID, &e.Content, &e.Mood, &e.IsEncrypted, &media, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if e.Media, err = unmarshalMedia(media); err != nil {
			return nil, err
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteByCouple removes every entry for a couple.
func (r *SQLiteRepository) DeleteByCouple(ctx context.Context, coupleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE couple_id=?`, coupleID)
	if err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	return nil
}
