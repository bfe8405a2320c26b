// Package keymeta persists non-secret key metadata. Raw key bytes never
// pass through this package.
package keymeta

import (
	"context"

	"github.com/couplesdiary/cryptocore/internal/models"
)

// Repository stores one KeyMetadata row per (couple, purpose).
type Repository interface {
	// Upsert inserts or replaces the row for (CoupleID, Purpose).
	Upsert(ctx context.Context, m *models.KeyMetadata) error

	// Get returns the row for (coupleID, purpose), or common.ErrNotFound.
	Get(ctx context.Context, coupleID string, purpose models.KeyPurpose) (*models.KeyMetadata, error)

	// ListByCouple returns all purpose rows for a couple.
	ListByCouple(ctx context.Context, coupleID string) ([]*models.KeyMetadata, error)

	// Touch updates LastUsedAt for the (coupleID, purpose) row.
	Touch(ctx context.Context, coupleID string, purpose models.KeyPurpose) error

	// DeleteByCouple removes all rows for a couple.
	DeleteByCouple(ctx context.Context, coupleID string) error

	// DeleteAll removes every row. Used by full key erasure.
	DeleteAll(ctx context.Context) error
}
