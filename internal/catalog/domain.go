package catalog

import (
	"errors"
	"time"
)

// Family classifies a product's pricing formula family. A product's family
// never changes after creation.
type Family string

const (
	FamilyPerishable    Family = "PERISHABLE"
	FamilyNonPerishable Family = "NON_PERISHABLE"
)

// Valid reports whether the family is one of the two known values.
func (f Family) Valid() bool {
	return f == FamilyPerishable || f == FamilyNonPerishable
}

// Product is a catalog entry. PurchasePrice is the static cost basis used
// when no observed price history exists; MinPrice and MidPrice feed the
// grade-D non-perishable formula.
type Product struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Family        Family    `json:"family"`
	PurchasePrice float64   `json:"purchase_price"`
	MinPrice      float64   `json:"min_price"`
	MidPrice      float64   `json:"mid_price"`
	VendorID      int64     `json:"vendor_id"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Vendor is a supplier record referenced by products and purchase orders.
type Vendor struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates a missing product or vendor.
	ErrNotFound = errors.New("catalog: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("catalog: invalid input")
	// ErrFamilyImmutable occurs when an update tries to change a product family.
	ErrFamilyImmutable = errors.New("catalog: product family cannot change")
	// ErrDuplicateCode occurs when a code is already taken.
	ErrDuplicateCode = errors.New("catalog: code already exists")
)
