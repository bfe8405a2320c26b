// Package couples persists relationship records and their lifecycle status.
package couples

import (
	"context"
	"time"

	"github.com/couplesdiary/cryptocore/internal/models"
)

// Repository is the persistence collaborator for couple records.
type Repository interface {
	// Upsert inserts or replaces the couple record.
	Upsert(ctx context.Context, c *models.Couple) error

	// GetByID returns the couple or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Couple, error)

	// SetStatus flips the lifecycle status. endedAt is nil for
	// reactivation and set for ended/restricted transitions.
	SetStatus(ctx context.Context, id string, status models.CoupleStatus, endedAt *time.Time) error
}
