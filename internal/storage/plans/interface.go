// Package plans persists date plans.
package plans

import (
	"context"

	"github.com/couplesdiary/cryptocore/internal/models"
)

// Repository is the persistence collaborator for date plans.
type Repository interface {
	Insert(ctx context.Context, p *models.DatePlan) error
	ListByCouple(ctx context.Context, coupleID string) ([]*models.DatePlan, error)
	DeleteByCouple(ctx context.Context, coupleID string) error
}
