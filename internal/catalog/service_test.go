package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogRepo struct {
	products map[int64]Product
	vendors  map[int64]Vendor
	nextID   int64
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		products: map[int64]Product{},
		vendors: map[int64]Vendor{
			100: {ID: 100, Code: "FRESH-CO", Name: "Fresh Co", IsActive: true},
		},
	}
}

func (f *fakeCatalogRepo) CreateProduct(_ context.Context, p Product) (int64, error) {
	for _, existing := range f.products {
		if existing.Code == p.Code {
			return 0, ErrDuplicateCode
		}
	}
	f.nextID++
	p.ID = f.nextID
	f.products[p.ID] = p
	return p.ID, nil
}

func (f *fakeCatalogRepo) UpdateProduct(_ context.Context, p Product) error {
	existing, ok := f.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.Family = existing.Family
	f.products[p.ID] = p
	return nil
}

func (f *fakeCatalogRepo) GetProduct(_ context.Context, id int64) (Product, error) {
	p, ok := f.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalogRepo) GetProductByCode(_ context.Context, code string) (Product, error) {
	for _, p := range f.products {
		if p.Code == code {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (f *fakeCatalogRepo) ListProducts(_ context.Context, onlyActive bool) ([]Product, error) {
	var list []Product
	for _, p := range f.products {
		if onlyActive && !p.IsActive {
			continue
		}
		list = append(list, p)
	}
	return list, nil
}

func (f *fakeCatalogRepo) CreateVendor(_ context.Context, v Vendor) (int64, error) {
	f.nextID++
	v.ID = f.nextID
	f.vendors[v.ID] = v
	return v.ID, nil
}

func (f *fakeCatalogRepo) GetVendor(_ context.Context, id int64) (Vendor, error) {
	v, ok := f.vendors[id]
	if !ok {
		return Vendor{}, ErrNotFound
	}
	return v, nil
}

func (f *fakeCatalogRepo) GetVendorByCode(_ context.Context, code string) (Vendor, error) {
	for _, v := range f.vendors {
		if v.Code == code {
			return v, nil
		}
	}
	return Vendor{}, ErrNotFound
}

func (f *fakeCatalogRepo) ListVendors(context.Context) ([]Vendor, error) {
	var list []Vendor
	for _, v := range f.vendors {
		list = append(list, v)
	}
	return list, nil
}

func validProduct() Product {
	return Product{
		Code:          "TOMATO",
		Name:          "Tomato",
		Family:        FamilyPerishable,
		PurchasePrice: 180,
		VendorID:      100,
		IsActive:      true,
	}
}

func TestCreateProduct(t *testing.T) {
	svc := NewService(newFakeCatalogRepo())

	created, err := svc.CreateProduct(context.Background(), validProduct())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, FamilyPerishable, created.Family)

	_, err = svc.CreateProduct(context.Background(), validProduct())
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestCreateProductRequiresKnownVendor(t *testing.T) {
	svc := NewService(newFakeCatalogRepo())
	p := validProduct()
	p.VendorID = 999

	_, err := svc.CreateProduct(context.Background(), p)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProductRejectsUnknownFamily(t *testing.T) {
	svc := NewService(newFakeCatalogRepo())
	p := validProduct()
	p.Family = Family("FROZEN")

	_, err := svc.CreateProduct(context.Background(), p)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateProductFamilyIsImmutable(t *testing.T) {
	svc := NewService(newFakeCatalogRepo())
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, validProduct())
	require.NoError(t, err)

	update := created
	update.Family = FamilyNonPerishable
	_, err = svc.UpdateProduct(ctx, update)
	require.ErrorIs(t, err, ErrFamilyImmutable)

	update = created
	update.PurchasePrice = 195
	update.Family = ""
	updated, err := svc.UpdateProduct(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, FamilyPerishable, updated.Family)
	assert.InDelta(t, 195.0, updated.PurchasePrice, 0.001)
}

func TestProductByCode(t *testing.T) {
	svc := NewService(newFakeCatalogRepo())
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, validProduct())
	require.NoError(t, err)

	found, err := svc.ProductByCode(ctx, "TOMATO")
	require.NoError(t, err)
	assert.Equal(t, "Tomato", found.Name)

	_, err = svc.ProductByCode(ctx, "NOPE")
	require.ErrorIs(t, err, ErrNotFound)
}
