// Package entries defines and implements diary-entry persistence. The
// storage layer treats entry content as an opaque string; it never parses
// or indexes ciphertext.
package entries

import (
	"context"

	"github.com/couplesdiary/cryptocore/internal/models"
)

// Repository is the persistence collaborator for diary entries.
type Repository interface {
	// Insert stores a new entry.
	Insert(ctx context.Context, e *models.DiaryEntry) error

	// Update replaces the stored entry with the same ID.
	Update(ctx context.Context, e *models.DiaryEntry) error

	// GetByID returns the entry or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.DiaryEntry, error)

	// ListByCouple returns the couple's entries, newest first. A limit of 0
	// means no limit.
	ListByCouple(ctx context.Context, coupleID string, limit int) ([]*models.DiaryEntry, error)

	// DeleteByCouple removes every entry for a couple.
	DeleteByCouple(ctx context.Context, coupleID string) error
}
