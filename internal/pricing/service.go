package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/greengate-erp/greengate-erp/internal/catalog"
	"github.com/greengate-erp/greengate-erp/internal/directory"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPrices(ctx context.Context, productID int64, days []time.Time) (map[string]float64, error)
	GetStoredTrailingMax(ctx context.Context, productID int64, day time.Time) (float64, bool, error)
	GetPerishableMargins(ctx context.Context) (map[directory.Grade]float64, error)
	GetNonPerishableRules(ctx context.Context) (map[directory.Grade]NonPerishableRule, error)
	GetSnapshot(ctx context.Context, productID int64, day time.Time) (map[directory.Grade]float64, error)
	ListMarginAudit(ctx context.Context) ([]MarginAudit, error)
	PruneHistory(ctx context.Context, before time.Time) (int64, error)
}

// CatalogPort exposes the product lookups the resolver needs.
type CatalogPort interface {
	ProductByCode(ctx context.Context, code string) (catalog.Product, error)
}

// DirectoryPort exposes the customer lookups the resolver needs.
type DirectoryPort interface {
	CustomerByCode(ctx context.Context, code string) (directory.Customer, error)
	BaseAdjustment(ctx context.Context, customerID, productID int64) (float64, error)
}

// Service orchestrates the price history ledger, the margin configuration
// store, and price resolution.
type Service struct {
	repo      RepositoryPort
	catalog   CatalogPort
	directory DirectoryPort
}

// NewService constructs the pricing service.
func NewService(repo RepositoryPort, catalog CatalogPort, directory DirectoryPort) *Service {
	return &Service{repo: repo, catalog: catalog, directory: directory}
}

// RecordPrice upserts the observed purchase price for a product/day and
// recomputes the stored trailing-3-day maxima in the same transaction. The
// entry's day sits in the trailing window of the two following days as well,
// so a backdated write refreshes their stored maxima too.
func (s *Service) RecordPrice(ctx context.Context, productID int64, day time.Time, price float64) error {
	if productID == 0 {
		return fmt.Errorf("%w: product is required", ErrValidation)
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: price must be a non-negative number", ErrValidation)
	}
	day = shared.Day(day)
	affected := []time.Time{day, day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)}
	span := []time.Time{day.AddDate(0, 0, -2), day.AddDate(0, 0, -1), day, affected[1], affected[2]}
	prices, err := s.repo.GetPrices(ctx, productID, span)
	if err != nil {
		return err
	}
	prices[shared.FormatDay(day)] = price
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpsertPriceEntry(ctx, PriceEntry{ProductID: productID, Day: day, Price: price}); err != nil {
			return err
		}
		for _, d := range affected {
			if err := tx.UpsertTrailingMax(ctx, productID, d, windowMax(trailingWindow(d), prices)); err != nil {
				return err
			}
		}
		return nil
	})
}

// TrailingMax returns the trailing-3-day maximum purchase price as of day.
// The stored value is preferred; when no write ever cached one for that day
// the maximum is recomputed from the ledger. Zero means no history at all —
// a legitimate "no observed cost yet" state, not an error.
func (s *Service) TrailingMax(ctx context.Context, productID int64, day time.Time) (float64, error) {
	day = shared.Day(day)
	stored, ok, err := s.repo.GetStoredTrailingMax(ctx, productID, day)
	if err != nil {
		return 0, err
	}
	if ok {
		return stored, nil
	}
	window := trailingWindow(day)
	prices, err := s.repo.GetPrices(ctx, productID, window)
	if err != nil {
		return 0, err
	}
	return windowMax(window, prices), nil
}

// ResolvePrice computes the sell price of one product for one customer on one
// day, applying the ad hoc order-level adjustment.
func (s *Service) ResolvePrice(ctx context.Context, productCode, customerCode string, day time.Time, orderAdjustment float64) (Quote, error) {
	product, err := s.catalog.ProductByCode(ctx, productCode)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Quote{}, fmt.Errorf("%w: product %s", ErrNotFound, productCode)
		}
		return Quote{}, err
	}
	customer, err := s.directory.CustomerByCode(ctx, customerCode)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Quote{}, fmt.Errorf("%w: customer %s", ErrNotFound, customerCode)
		}
		return Quote{}, err
	}
	baseAdjustment, err := s.directory.BaseAdjustment(ctx, customer.ID, product.ID)
	if err != nil {
		return Quote{}, err
	}
	return s.resolve(ctx, product, customer.Grade, day, baseAdjustment, orderAdjustment)
}

func (s *Service) resolve(ctx context.Context, product catalog.Product, grade directory.Grade, day time.Time, baseAdjustment, orderAdjustment float64) (Quote, error) {
	snapshot, err := s.repo.GetSnapshot(ctx, product.ID, day)
	if err != nil {
		return Quote{}, err
	}
	var trailingMax float64
	if product.Family == catalog.FamilyPerishable {
		trailingMax, err = s.TrailingMax(ctx, product.ID, day)
		if err != nil {
			return Quote{}, err
		}
	}
	config, err := s.MarginConfig(ctx)
	if err != nil {
		return Quote{}, err
	}
	return Resolve(ResolveInput{
		Product:         product,
		Grade:           grade,
		BaseAdjustment:  baseAdjustment,
		OrderAdjustment: orderAdjustment,
		SnapshotPrices:  snapshot,
		TrailingMax:     trailingMax,
		Config:          config,
	})
}

// MarginConfig loads the current margin rules for both families.
func (s *Service) MarginConfig(ctx context.Context) (MarginConfig, error) {
	perishable, err := s.repo.GetPerishableMargins(ctx)
	if err != nil {
		return MarginConfig{}, err
	}
	nonPerishable, err := s.repo.GetNonPerishableRules(ctx)
	if err != nil {
		return MarginConfig{}, err
	}
	return MarginConfig{Perishable: perishable, NonPerishable: nonPerishable}, nil
}

// SetPerishableMargin writes the flat margin amount for a grade. An unchanged
// value is a no-op and leaves no audit record.
func (s *Service) SetPerishableMargin(ctx context.Context, grade directory.Grade, amount float64, actor string) error {
	if !grade.Valid() {
		return fmt.Errorf("%w: unknown grade %q", ErrConfig, grade)
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: margin amount must be a non-negative number", ErrValidation)
	}
	current, err := s.repo.GetPerishableMargins(ctx)
	if err != nil {
		return err
	}
	if existing, ok := current[grade]; ok && existing == amount {
		return nil
	}
	old := current[grade]
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpsertPerishableMargin(ctx, grade, amount); err != nil {
			return err
		}
		return tx.AppendMarginAudit(ctx, MarginAudit{
			Family:   string(catalog.FamilyPerishable),
			Grade:    grade,
			Field:    "amount",
			OldValue: old,
			NewValue: amount,
			Actor:    actor,
		})
	})
}

// SetNonPerishableMargin writes the rule for a grade. The field shape must
// match the grade: a purchase multiplier for S/A/B/C/E, min/mid multipliers
// plus the minimum-margin-check percentage for D. Unchanged fields leave no
// audit records; a fully unchanged rule is a no-op.
func (s *Service) SetNonPerishableMargin(ctx context.Context, rule NonPerishableRule, actor string) error {
	if !rule.Grade.Valid() {
		return fmt.Errorf("%w: unknown grade %q", ErrConfig, rule.Grade)
	}
	expected := ShapeForGrade(rule.Grade)
	if rule.Shape == "" {
		rule.Shape = expected
	}
	if rule.Shape != expected {
		return fmt.Errorf("%w: grade %s requires %s rule, got %s", ErrConfig, rule.Grade, expected, rule.Shape)
	}
	switch rule.Shape {
	case RuleShapeMultiplier:
		if rule.Multiplier <= 0 {
			return fmt.Errorf("%w: grade %s requires a positive purchase multiplier", ErrConfig, rule.Grade)
		}
		if rule.MinMultiplier != 0 || rule.MidMultiplier != 0 || rule.MinMarginCheck != 0 {
			return fmt.Errorf("%w: grade %s does not take min/mid fields", ErrConfig, rule.Grade)
		}
	case RuleShapeMinMid:
		if rule.MinMultiplier <= 0 || rule.MidMultiplier <= 0 {
			return fmt.Errorf("%w: grade %s requires min and mid multipliers", ErrConfig, rule.Grade)
		}
		if rule.MinMarginCheck < 0 {
			return fmt.Errorf("%w: minimum-margin check must be non-negative", ErrConfig)
		}
		if rule.Multiplier != 0 {
			return fmt.Errorf("%w: grade %s does not take a purchase multiplier", ErrConfig, rule.Grade)
		}
	}

	current, err := s.repo.GetNonPerishableRules(ctx)
	if err != nil {
		return err
	}
	existing, exists := current[rule.Grade]
	changes := diffRule(existing, rule, exists)
	if len(changes) == 0 {
		return nil
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpsertNonPerishableRule(ctx, rule); err != nil {
			return err
		}
		for _, change := range changes {
			change.Family = string(catalog.FamilyNonPerishable)
			change.Grade = rule.Grade
			change.Actor = actor
			if err := tx.AppendMarginAudit(ctx, change); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarginAuditTrail lists the append-only change history.
func (s *Service) MarginAuditTrail(ctx context.Context) ([]MarginAudit, error) {
	return s.repo.ListMarginAudit(ctx)
}

// FreezeDayPrices resolves and stores a grade-indexed price table for a
// product/day with zero adjustments. Later resolutions on that day use the
// frozen table even if margins change.
func (s *Service) FreezeDayPrices(ctx context.Context, productCode string, day time.Time) (Snapshot, error) {
	product, err := s.catalog.ProductByCode(ctx, productCode)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Snapshot{}, fmt.Errorf("%w: product %s", ErrNotFound, productCode)
		}
		return Snapshot{}, err
	}
	config, err := s.MarginConfig(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	var trailingMax float64
	if product.Family == catalog.FamilyPerishable {
		trailingMax, err = s.TrailingMax(ctx, product.ID, day)
		if err != nil {
			return Snapshot{}, err
		}
	}
	snap := Snapshot{ProductID: product.ID, Day: shared.Day(day), Prices: make(map[directory.Grade]float64, len(directory.Grades))}
	for _, grade := range directory.Grades {
		quote, err := Resolve(ResolveInput{Product: product, Grade: grade, TrailingMax: trailingMax, Config: config})
		if err != nil {
			return Snapshot{}, err
		}
		snap.Prices[grade] = quote.SellPrice
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpsertSnapshot(ctx, snap)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// PruneHistory removes ledger entries older than the cutoff.
func (s *Service) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.PruneHistory(ctx, before)
}

// trailingWindow lists the day and its two predecessors.
func trailingWindow(day time.Time) []time.Time {
	day = shared.Day(day)
	return []time.Time{day, day.AddDate(0, 0, -1), day.AddDate(0, 0, -2)}
}

// windowMax takes the maximum over recorded days only; missing days are
// absent, not zero. All three absent yields 0.
func windowMax(window []time.Time, prices map[string]float64) float64 {
	max := 0.0
	for _, d := range window {
		if price, ok := prices[shared.FormatDay(d)]; ok && price > max {
			max = price
		}
	}
	return max
}

func diffRule(existing, next NonPerishableRule, exists bool) []MarginAudit {
	var changes []MarginAudit
	appendChange := func(field string, old, new float64) {
		if !exists || old != new {
			changes = append(changes, MarginAudit{Field: field, OldValue: old, NewValue: new})
		}
	}
	switch next.Shape {
	case RuleShapeMultiplier:
		appendChange("multiplier", existing.Multiplier, next.Multiplier)
	case RuleShapeMinMid:
		appendChange("min_multiplier", existing.MinMultiplier, next.MinMultiplier)
		appendChange("mid_multiplier", existing.MidMultiplier, next.MidMultiplier)
		appendChange("min_margin_check", existing.MinMarginCheck, next.MinMarginCheck)
	}
	if exists && existing.Shape != next.Shape {
		// A shape swap replaces the whole rule; record every field.
		return []MarginAudit{
			{Field: "multiplier", OldValue: existing.Multiplier, NewValue: next.Multiplier},
			{Field: "min_multiplier", OldValue: existing.MinMultiplier, NewValue: next.MinMultiplier},
			{Field: "mid_multiplier", OldValue: existing.MidMultiplier, NewValue: next.MidMultiplier},
			{Field: "min_margin_check", OldValue: existing.MinMarginCheck, NewValue: next.MinMarginCheck},
		}
	}
	return changes
}
