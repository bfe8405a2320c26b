// Package memories persists saved shared moments.
package memories

import (
	"context"

	"github.com/couplesdiary/cryptocore/internal/models"
)

// Repository is the persistence collaborator for memories.
type Repository interface {
	Insert(ctx context.Context, m *models.Memory) error
	ListByCouple(ctx context.Context, coupleID string) ([]*models.Memory, error)
	DeleteByCouple(ctx context.Context, coupleID string) error
}
