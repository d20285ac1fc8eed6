package ledger

import (
	"context"

	"github.com/google/uuid"

	"finance-ledger/internal/errs"
	"finance-ledger/internal/models"
)

// DimensionStore persists a soft-deleted stats dimension.
type DimensionStore interface {
	Insert(ctx context.Context, d models.Category) error
	Get(ctx context.Context, userID, id string) (models.Category, error)
	List(ctx context.Context, userID string) ([]models.Category, error)
	SoftDelete(ctx context.Context, userID, id string) error
}

// DimensionService manages expense categories or income sources; one
// instance per collection.
type DimensionService struct {
	store DimensionStore
}

// NewDimensionService creates a dimension service over the given store.
func NewDimensionService(store DimensionStore) *DimensionService {
	return &DimensionService{store: store}
}

// Create adds a new dimension and returns it.
func (s *DimensionService) Create(ctx context.Context, userID, name, currencyID string) (models.Category, error) {
	if name == "" {
		return models.Category{}, errs.Validationf("name is required")
	}
	d := models.Category{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		CurrencyID: currencyID,
	}
	if err := s.store.Insert(ctx, d); err != nil {
		return models.Category{}, err
	}
	return d, nil
}

// Get returns one dimension, deleted or not, so historical stats keep
// resolving to a name.
func (s *DimensionService) Get(ctx context.Context, userID, id string) (models.Category, error) {
	return s.store.Get(ctx, userID, id)
}

// List returns the user's live dimensions.
func (s *DimensionService) List(ctx context.Context, userID string) ([]models.Category, error) {
	return s.store.List(ctx, userID)
}

// Delete soft-deletes the dimension.
func (s *DimensionService) Delete(ctx context.Context, userID, id string) error {
	return s.store.SoftDelete(ctx, userID, id)
}

// Require loads a live dimension, rejecting missing or deleted ones.
func (s *DimensionService) Require(ctx context.Context, userID, id string) (models.Category, error) {
	d, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return models.Category{}, err
	}
	if d.IsDeleted {
		return models.Category{}, errs.Validationf("%q is deleted", id)
	}
	return d, nil
}
