package stock

import (
	"errors"
	"time"
)

// Entry is the single current on-hand quantity for a product. There is no
// batch or lot tracking.
type Entry struct {
	ProductID int64     `json:"product_id"`
	Qty       int       `json:"qty"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("stock: invalid input")
)
