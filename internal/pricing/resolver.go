package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/greengate-erp/greengate-erp/internal/catalog"
	"github.com/greengate-erp/greengate-erp/internal/directory"
)

// ResolveInput carries everything a price resolution needs. Resolve has no
// side effects: the same input always yields the same quote.
type ResolveInput struct {
	Product         catalog.Product
	Grade           directory.Grade
	BaseAdjustment  float64
	OrderAdjustment float64
	// SnapshotPrices, when non-nil, is a frozen grade-indexed price table
	// that wins over formula-based resolution.
	SnapshotPrices map[directory.Grade]float64
	// TrailingMax is the trailing-3-day maximum purchase price; zero means no
	// observed history, in which case the static purchase price applies.
	TrailingMax float64
	Config      MarginConfig
}

// Quote is the result of a price resolution.
type Quote struct {
	SellPrice float64 `json:"sell_price"`
	BuyPrice  float64 `json:"buy_price"`
	// Renegotiate flags a grade-D price whose implied margin fell below the
	// configured minimum. The price is still returned; renegotiation is a
	// human follow-up, not a rejection.
	Renegotiate bool `json:"renegotiate"`
}

// Resolve computes the sell price of one product for one customer grade.
// Amounts are computed with decimal arithmetic and rounded to two places so
// resolution is deterministic and reproducible.
func Resolve(in ResolveInput) (Quote, error) {
	if !in.Grade.Valid() {
		return Quote{}, fmt.Errorf("%w: unknown grade %q", ErrValidation, in.Grade)
	}

	adjustment := decimal.NewFromFloat(in.BaseAdjustment).Add(decimal.NewFromFloat(in.OrderAdjustment))
	buyPrice := buyPriceFor(in)

	if in.SnapshotPrices != nil {
		frozen, ok := in.SnapshotPrices[in.Grade]
		if !ok {
			return Quote{}, fmt.Errorf("%w: snapshot missing grade %s", ErrConfig, in.Grade)
		}
		sell := decimal.NewFromFloat(frozen).Add(adjustment).Round(2)
		return Quote{SellPrice: sell.InexactFloat64(), BuyPrice: buyPrice.InexactFloat64()}, nil
	}

	switch in.Product.Family {
	case catalog.FamilyPerishable:
		margin, ok := in.Config.Perishable[in.Grade]
		if !ok {
			return Quote{}, fmt.Errorf("%w: no perishable margin for grade %s", ErrConfig, in.Grade)
		}
		sell := buyPrice.Add(decimal.NewFromFloat(margin)).Add(adjustment).Round(2)
		return Quote{SellPrice: sell.InexactFloat64(), BuyPrice: buyPrice.InexactFloat64()}, nil

	case catalog.FamilyNonPerishable:
		rule, ok := in.Config.NonPerishable[in.Grade]
		if !ok {
			return Quote{}, fmt.Errorf("%w: no non-perishable rule for grade %s", ErrConfig, in.Grade)
		}
		if rule.Shape != ShapeForGrade(in.Grade) {
			return Quote{}, fmt.Errorf("%w: grade %s requires %s rule, got %s", ErrConfig, in.Grade, ShapeForGrade(in.Grade), rule.Shape)
		}
		if rule.Shape == RuleShapeMultiplier {
			sell := buyPrice.Mul(decimal.NewFromFloat(rule.Multiplier)).Add(adjustment).Round(2)
			return Quote{SellPrice: sell.InexactFloat64(), BuyPrice: buyPrice.InexactFloat64()}, nil
		}
		return resolveMinMid(in, rule, buyPrice, adjustment)

	default:
		return Quote{}, fmt.Errorf("%w: unknown family %q", ErrValidation, in.Product.Family)
	}
}

// resolveMinMid applies the grade-D formula: the higher of min price × min
// multiplier and mid price × mid multiplier, flagged when the implied margin
// percentage falls below the configured check.
func resolveMinMid(in ResolveInput, rule NonPerishableRule, buyPrice, adjustment decimal.Decimal) (Quote, error) {
	minCandidate := decimal.NewFromFloat(in.Product.MinPrice).Mul(decimal.NewFromFloat(rule.MinMultiplier))
	midCandidate := decimal.NewFromFloat(in.Product.MidPrice).Mul(decimal.NewFromFloat(rule.MidMultiplier))
	base := minCandidate
	if midCandidate.GreaterThan(base) {
		base = midCandidate
	}
	sell := base.Add(adjustment).Round(2)

	renegotiate := false
	if sell.IsPositive() {
		impliedMargin := sell.Sub(buyPrice).Div(sell)
		renegotiate = impliedMargin.LessThan(decimal.NewFromFloat(rule.MinMarginCheck))
	} else if buyPrice.IsPositive() {
		renegotiate = true
	}

	return Quote{SellPrice: sell.InexactFloat64(), BuyPrice: buyPrice.InexactFloat64(), Renegotiate: renegotiate}, nil
}

// buyPriceFor picks the cost basis: trailing-3-day max for perishables when
// history exists, the static purchase price otherwise.
func buyPriceFor(in ResolveInput) decimal.Decimal {
	if in.Product.Family == catalog.FamilyPerishable && in.TrailingMax > 0 {
		return decimal.NewFromFloat(in.TrailingMax)
	}
	return decimal.NewFromFloat(in.Product.PurchasePrice)
}
