package pricing

import (
	"errors"
	"time"

	"github.com/greengate-erp/greengate-erp/internal/directory"
)

// RuleShape identifies which field set a non-perishable margin rule carries.
// The mapping from grade to shape is closed and fixed: multiplier-based for
// S/A/B/C/E, min/mid-based for D.
type RuleShape string

const (
	RuleShapeMultiplier RuleShape = "MULTIPLIER"
	RuleShapeMinMid     RuleShape = "MIN_MID"
)

// ShapeForGrade returns the only valid rule shape for a grade.
func ShapeForGrade(g directory.Grade) RuleShape {
	if g == directory.GradeD {
		return RuleShapeMinMid
	}
	return RuleShapeMultiplier
}

// NonPerishableRule is the margin rule for one grade of the non-perishable
// family. Exactly one field set is valid per shape.
type NonPerishableRule struct {
	Grade          directory.Grade `json:"grade"`
	Shape          RuleShape       `json:"shape"`
	Multiplier     float64         `json:"multiplier,omitempty"`
	MinMultiplier  float64         `json:"min_multiplier,omitempty"`
	MidMultiplier  float64         `json:"mid_multiplier,omitempty"`
	MinMarginCheck float64         `json:"min_margin_check,omitempty"`
}

// MarginConfig holds the current margin rules for both product families. It
// is passed explicitly into Resolve so resolution stays a pure function of
// its arguments.
type MarginConfig struct {
	Perishable    map[directory.Grade]float64
	NonPerishable map[directory.Grade]NonPerishableRule
}

// MarginAudit is one entry of the append-only margin change trail.
type MarginAudit struct {
	ID        int64           `json:"id"`
	Family    string          `json:"family"`
	Grade     directory.Grade `json:"grade"`
	Field     string          `json:"field"`
	OldValue  float64         `json:"old_value"`
	NewValue  float64         `json:"new_value"`
	Actor     string          `json:"actor"`
	ChangedAt time.Time       `json:"changed_at"`
}

// PriceEntry is one observed purchase price for a product on a calendar day.
type PriceEntry struct {
	ProductID int64     `json:"product_id"`
	Day       time.Time `json:"day"`
	Price     float64   `json:"price"`
}

// Snapshot is a frozen grade-indexed price table for a product on a day. A
// snapshot taken earlier in the day stays authoritative even if margins
// change mid-day.
type Snapshot struct {
	ProductID int64
	Day       time.Time
	Prices    map[directory.Grade]float64
}

var (
	// ErrConfig indicates a missing margin rule or a rule with the wrong
	// field shape. Fatal to the specific call; never falls back to a default.
	ErrConfig = errors.New("pricing: margin configuration invalid")
	// ErrNotFound indicates an unknown product or customer code.
	ErrNotFound = errors.New("pricing: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("pricing: invalid input")
)
