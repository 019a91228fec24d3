package orders

import (
	"errors"
	"time"
)

// Wave is one of the three sequential daily ordering windows.
type Wave int

const (
	WaveNormal     Wave = 1
	WaveAdditional Wave = 2
	WaveUrgent     Wave = 3
)

// Valid reports whether the wave is one of the three known windows.
func (w Wave) Valid() bool {
	return w >= WaveNormal && w <= WaveUrgent
}

// OrderStatus is the lifecycle state of an order. Deletion is a hard removal,
// not a third state.
type OrderStatus string

const (
	StatusDraft     OrderStatus = "DRAFT"
	StatusConfirmed OrderStatus = "CONFIRMED"
)

// OrderLine is one product line on an order. Amount is qty × sell price,
// fixed at save time.
type OrderLine struct {
	ID              int64   `json:"id"`
	ProductID       int64   `json:"product_id"`
	ProductCode     string  `json:"product_code"`
	Qty             int     `json:"qty"`
	BaseAdjustment  float64 `json:"base_adjustment"`
	OrderAdjustment float64 `json:"order_adjustment"`
	SellPrice       float64 `json:"sell_price"`
	Amount          float64 `json:"amount"`
}

// Order is one customer's order for one day and wave. A customer has at most
// one order per day per wave.
type Order struct {
	ID           int64       `json:"id"`
	Day          time.Time   `json:"day"`
	CustomerID   int64       `json:"customer_id"`
	CustomerCode string      `json:"customer_code"`
	Wave         Wave        `json:"wave"`
	Status       OrderStatus `json:"status"`
	Lines        []OrderLine `json:"lines"`
	TotalAmount  float64     `json:"total_amount"`
	// Discount subtracts from the total. It may exceed the total; a negative
	// final amount is legitimate.
	Discount  *float64  `json:"discount,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FinalAmount is the total minus the discount when one is set.
func (o Order) FinalAmount() float64 {
	if o.Discount == nil {
		return o.TotalAmount
	}
	return o.TotalAmount - *o.Discount
}

// CustomerDayStatus is the derived aggregate status of one customer's orders
// across a day's waves.
type CustomerDayStatus string

const (
	DayStatusDraft     CustomerDayStatus = "DRAFT"
	DayStatusConfirmed CustomerDayStatus = "CONFIRMED"
	DayStatusMixed     CustomerDayStatus = "MIXED"
	DayStatusNone      CustomerDayStatus = "NONE"
)

// WaveSummary is the roll-up of one wave's orders on a day.
type WaveSummary struct {
	Wave   Wave    `json:"wave"`
	Orders int     `json:"orders"`
	Total  float64 `json:"total"`
}

// DaySummary is the per-wave partition of a day's orders plus the grand
// total, computed over final amounts.
type DaySummary struct {
	Day   string        `json:"day"`
	Waves []WaveSummary `json:"waves"`
	Total float64       `json:"total"`
}

// ConfirmResult is the outcome of one order inside a bulk confirmation.
type ConfirmResult struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

var (
	// ErrNotFound indicates a missing order.
	ErrNotFound = errors.New("orders: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("orders: invalid input")
	// ErrInvalidState occurs when a transition is not allowed from the
	// order's current status.
	ErrInvalidState = errors.New("orders: invalid state transition")
)
