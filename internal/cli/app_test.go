package cli

import (
	"context"
	"testing"
	"time"

	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCoupleRepo is an in-memory couples.Repository.
type fakeCoupleRepo struct {
	records  map[string]*models.Couple
	upserted int
}

func newFakeCoupleRepo() *fakeCoupleRepo {
	return &fakeCoupleRepo{records: make(map[string]*models.Couple)}
}

func (f *fakeCoupleRepo) Upsert(_ context.Context, c *models.Couple) error {
	f.records[c.ID] = c
	f.upserted++
	return nil
}

func (f *fakeCoupleRepo) GetByID(_ context.Context, id string) (*models.Couple, error) {
	c, ok := f.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return c, nil
}

func (f *fakeCoupleRepo) SetStatus(_ context.Context, id string, status models.CoupleStatus, endedAt *time.Time) error {
	c, ok := f.records[id]
	if !ok {
		return common.ErrNotFound
	}
	c.Status = status
	c.EndedAt = endedAt
	return nil
}

func TestEnsureCouple_CreatesMissingRecord(t *testing.T) {
	repo := newFakeCoupleRepo()
	a := &App{couples: repo, coupleID: "c1", userID: "u1"}

	require.NoError(t, a.ensureCouple(context.Background()))

	c, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, models.CoupleStatusActive, c.Status)
	assert.False(t, c.StartedAt.IsZero())
}

func TestEnsureCouple_ExistingRecordUntouched(t *testing.T) {
	repo := newFakeCoupleRepo()
	existing := &models.Couple{
		ID:        "c1",
		UserID:    "someone-else",
		Status:    models.CoupleStatusActive,
		StartedAt: time.Now().UTC().AddDate(-2, 0, 0),
	}
	require.NoError(t, repo.Upsert(context.Background(), existing))
	repo.upserted = 0

	a := &App{couples: repo, coupleID: "c1", userID: "u1"}
	require.NoError(t, a.ensureCouple(context.Background()))

	assert.Zero(t, repo.upserted, "selecting a known couple must not rewrite its record")
	c, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", c.UserID)
}
