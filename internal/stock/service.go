package stock

import (
	"context"
	"fmt"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	GetQty(ctx context.Context, productID int64) (int, error)
	List(ctx context.Context) ([]Entry, error)
	Upsert(ctx context.Context, productID int64, qty int) error
}

// Service exposes current on-hand quantities to procurement and accepts
// batch updates from stock-take. Each product write is independent, so a
// partially applied batch leaves valid per-product state.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the stock service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// OnHand returns the current quantity for a product; zero when never counted.
func (s *Service) OnHand(ctx context.Context, productID int64) (int, error) {
	return s.repo.GetQty(ctx, productID)
}

// List returns every stock entry.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	return s.repo.List(ctx)
}

// BatchSet writes quantities product by product, stopping at the first
// failure with prior writes left applied.
func (s *Service) BatchSet(ctx context.Context, quantities map[int64]int) error {
	for productID, qty := range quantities {
		if productID == 0 {
			return fmt.Errorf("%w: product is required", ErrValidation)
		}
		if qty < 0 {
			return fmt.Errorf("%w: quantity for product %d must be non-negative", ErrValidation, productID)
		}
	}
	for productID, qty := range quantities {
		if err := s.repo.Upsert(ctx, productID, qty); err != nil {
			return fmt.Errorf("stock: set product %d: %w", productID, err)
		}
	}
	return nil
}
