package procurement

import (
	"errors"
	"time"

	"github.com/greengate-erp/greengate-erp/internal/orders"
)

// POType tags a purchase order with the wave it was generated for.
type POType string

const (
	TypeBuy1 POType = "BUY1"
	TypeBuy2 POType = "BUY2"
	TypeBuy3 POType = "BUY3"
)

// TypeForWave maps an ordering wave to its purchase order type.
func TypeForWave(w orders.Wave) POType {
	switch w {
	case orders.WaveNormal:
		return TypeBuy1
	case orders.WaveAdditional:
		return TypeBuy2
	default:
		return TypeBuy3
	}
}

// Fixed notes tagging the single-order waves.
const (
	NoteAdditional = "additional same-day purchase"
	NoteUrgent     = "urgent same-day purchase"
)

// Item is one product line on a generated purchase order. StockQty is the
// on-hand quantity at generation time; BuyQty is what must actually be
// bought.
type Item struct {
	ID          int64   `json:"id"`
	ProductID   int64   `json:"product_id"`
	ProductCode string  `json:"product_code"`
	DemandQty   int     `json:"demand_qty"`
	StockQty    int     `json:"stock_qty"`
	BuyQty      int     `json:"buy_qty"`
	UnitCost    float64 `json:"unit_cost"`
	Amount      float64 `json:"amount"`
}

// PurchaseOrder is one generated order to a vendor. VendorID is nil for the
// single-order waves, which are not split per vendor.
type PurchaseOrder struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	Day         time.Time `json:"day"`
	Type        POType    `json:"type"`
	VendorID    *int64    `json:"vendor_id,omitempty"`
	Note        string    `json:"note,omitempty"`
	Items       []Item    `json:"items"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	// ErrNothingToOrder occurs when a generation run nets every quantity to
	// zero. Explicitly distinct from an empty success.
	ErrNothingToOrder = errors.New("procurement: nothing to order")
	// ErrNotFound indicates a missing purchase order.
	ErrNotFound = errors.New("procurement: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("procurement: invalid input")
)
