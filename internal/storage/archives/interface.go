// Package archives persists breakup-archive records. The encrypted payload
// column is an opaque string to this layer.
package archives

import (
	"context"

	"github.com/couplesdiary/cryptocore/internal/models"
)

// Repository is the persistence collaborator for breakup archives.
type Repository interface {
	// Insert stores a new archive record.
	Insert(ctx context.Context, a *models.BreakupArchive) error

	// GetByID returns the archive or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.BreakupArchive, error)

	// Delete removes the archive record. Recovery is single-use, so a
	// successful recovery always ends here.
	Delete(ctx context.Context, id string) error

	// DeleteByCouple removes every archive for a couple.
	DeleteByCouple(ctx context.Context, coupleID string) error
}
