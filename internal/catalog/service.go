package catalog

import (
	"context"
	"fmt"
	"strings"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	CreateProduct(ctx context.Context, p Product) (int64, error)
	UpdateProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductByCode(ctx context.Context, code string) (Product, error)
	ListProducts(ctx context.Context, onlyActive bool) ([]Product, error)
	CreateVendor(ctx context.Context, v Vendor) (int64, error)
	GetVendor(ctx context.Context, id int64) (Vendor, error)
	GetVendorByCode(ctx context.Context, code string) (Vendor, error)
	ListVendors(ctx context.Context) ([]Vendor, error)
}

// Service exposes catalog lookups and the minimal writes required to operate
// the pricing and procurement flows.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the catalog service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateProduct validates and persists a new product.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	if _, err := s.repo.GetVendor(ctx, p.VendorID); err != nil {
		return Product{}, fmt.Errorf("catalog: verify vendor: %w", err)
	}
	id, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	return s.repo.GetProduct(ctx, id)
}

// UpdateProduct persists mutable product fields. The family of an existing
// product is immutable.
func (s *Service) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	existing, err := s.repo.GetProduct(ctx, p.ID)
	if err != nil {
		return Product{}, err
	}
	if p.Family != "" && p.Family != existing.Family {
		return Product{}, ErrFamilyImmutable
	}
	p.Code = existing.Code
	p.Family = existing.Family
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return s.repo.GetProduct(ctx, p.ID)
}

// ProductByCode resolves a product by its unique code.
func (s *Service) ProductByCode(ctx context.Context, code string) (Product, error) {
	return s.repo.GetProductByCode(ctx, code)
}

// Product resolves a product by ID.
func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts lists catalog products.
func (s *Service) ListProducts(ctx context.Context, onlyActive bool) ([]Product, error) {
	return s.repo.ListProducts(ctx, onlyActive)
}

// CreateVendor validates and persists a new vendor.
func (s *Service) CreateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	if strings.TrimSpace(v.Code) == "" || strings.TrimSpace(v.Name) == "" {
		return Vendor{}, fmt.Errorf("%w: vendor code and name are required", ErrValidation)
	}
	id, err := s.repo.CreateVendor(ctx, v)
	if err != nil {
		return Vendor{}, err
	}
	return s.repo.GetVendor(ctx, id)
}

// VendorByCode resolves a vendor by its unique code.
func (s *Service) VendorByCode(ctx context.Context, code string) (Vendor, error) {
	return s.repo.GetVendorByCode(ctx, code)
}

// Vendor resolves a vendor by ID.
func (s *Service) Vendor(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

// ListVendors lists all vendors.
func (s *Service) ListVendors(ctx context.Context) ([]Vendor, error) {
	return s.repo.ListVendors(ctx)
}

func validateProduct(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: product code is required", ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if !p.Family.Valid() {
		return fmt.Errorf("%w: unknown family %q", ErrValidation, p.Family)
	}
	if p.PurchasePrice < 0 || p.MinPrice < 0 || p.MidPrice < 0 {
		return fmt.Errorf("%w: prices must be non-negative", ErrValidation)
	}
	if p.VendorID == 0 {
		return fmt.Errorf("%w: vendor is required", ErrValidation)
	}
	return nil
}
