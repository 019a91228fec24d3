package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/greengate-erp/greengate-erp/internal/catalog"
	"github.com/greengate-erp/greengate-erp/internal/directory"
	"github.com/greengate-erp/greengate-erp/internal/pricing"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	FindByCustomerDayWave(ctx context.Context, customerID int64, day time.Time, wave Wave) (Order, error)
	ListByDay(ctx context.Context, day time.Time) ([]Order, error)
	ListByCustomerDay(ctx context.Context, customerID int64, day time.Time) ([]Order, error)
	ListDraftsByDayWave(ctx context.Context, day time.Time, wave Wave) ([]Order, error)
	ListConfirmedByDayWave(ctx context.Context, day time.Time, wave Wave) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status OrderStatus) error
	SetDiscount(ctx context.Context, id int64, discount *float64) error
	Delete(ctx context.Context, id int64) error
}

// PricingPort resolves sell prices for line items as they are entered.
type PricingPort interface {
	ResolvePrice(ctx context.Context, productCode, customerCode string, day time.Time, orderAdjustment float64) (pricing.Quote, error)
}

// CatalogPort resolves products referenced by order lines.
type CatalogPort interface {
	ProductByCode(ctx context.Context, code string) (catalog.Product, error)
}

// DirectoryPort resolves the ordering customer.
type DirectoryPort interface {
	CustomerByCode(ctx context.Context, code string) (directory.Customer, error)
	BaseAdjustment(ctx context.Context, customerID, productID int64) (float64, error)
}

// Service assembles line items into per-customer/day/wave orders and drives
// the draft/confirmed lifecycle.
type Service struct {
	repo      RepositoryPort
	pricing   PricingPort
	catalog   CatalogPort
	directory DirectoryPort
	cache     *SummaryCache
	group     singleflight.Group
}

// NewService constructs the orders service. cache may be nil.
func NewService(repo RepositoryPort, pricing PricingPort, catalog CatalogPort, directory DirectoryPort, cache *SummaryCache) *Service {
	return &Service{repo: repo, pricing: pricing, catalog: catalog, directory: directory, cache: cache}
}

// LineInput is one requested line on a save call.
type LineInput struct {
	ProductCode     string  `json:"product_code"`
	Qty             int     `json:"qty"`
	OrderAdjustment float64 `json:"order_adjustment"`
}

// SaveOrderInput carries a full order save: the line set replaces whatever
// the order had before.
type SaveOrderInput struct {
	CustomerCode string      `json:"customer_code"`
	Day          time.Time   `json:"day"`
	Wave         Wave        `json:"wave"`
	Lines        []LineInput `json:"lines"`
	Discount     *float64    `json:"discount,omitempty"`
}

// SaveOrder resolves prices for the requested lines and upserts the
// customer's order for the day/wave. Zero-quantity lines are dropped; when
// nothing remains the order is removed instead of persisted empty, and the
// returned order is nil.
func (s *Service) SaveOrder(ctx context.Context, in SaveOrderInput) (*Order, error) {
	if !in.Wave.Valid() {
		return nil, fmt.Errorf("%w: wave must be 1, 2 or 3", ErrValidation)
	}
	if in.Discount != nil && (*in.Discount < 0 || math.IsNaN(*in.Discount) || math.IsInf(*in.Discount, 0)) {
		return nil, fmt.Errorf("%w: discount must be a non-negative number", ErrValidation)
	}
	customer, err := s.directory.CustomerByCode(ctx, in.CustomerCode)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrNotFound, in.CustomerCode)
		}
		return nil, err
	}
	day := shared.Day(in.Day)

	var lines []OrderLine
	var total float64
	for _, li := range in.Lines {
		if li.Qty < 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be a non-negative count", ErrValidation, li.ProductCode)
		}
		if li.Qty == 0 {
			continue
		}
		line, err := s.BuildLineItem(ctx, li, customer, day)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
		total += line.Amount
	}

	if len(lines) == 0 {
		// All quantities reduced to zero: equivalent to deleting the order.
		existing, err := s.repo.FindByCustomerDayWave(ctx, customer.ID, day, in.Wave)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if err := s.repo.Delete(ctx, existing.ID); err != nil {
			return nil, err
		}
		s.cache.Invalidate(ctx, day)
		return nil, nil
	}

	order := Order{
		Day:          day,
		CustomerID:   customer.ID,
		CustomerCode: customer.Code,
		Wave:         in.Wave,
		Status:       StatusDraft,
		TotalAmount:  round2(total),
		Discount:     in.Discount,
	}
	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err = tx.UpsertOrder(ctx, order)
		if err != nil {
			return err
		}
		return tx.ReplaceLines(ctx, id, lines)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, day)
	saved, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// BuildLineItem resolves one line's sell price and fixes its amount.
func (s *Service) BuildLineItem(ctx context.Context, in LineInput, customer directory.Customer, day time.Time) (OrderLine, error) {
	if in.Qty < 0 {
		return OrderLine{}, fmt.Errorf("%w: quantity must be a non-negative count", ErrValidation)
	}
	product, err := s.catalog.ProductByCode(ctx, in.ProductCode)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return OrderLine{}, fmt.Errorf("%w: product %s", ErrNotFound, in.ProductCode)
		}
		return OrderLine{}, err
	}
	baseAdjustment, err := s.directory.BaseAdjustment(ctx, customer.ID, product.ID)
	if err != nil {
		return OrderLine{}, err
	}
	quote, err := s.pricing.ResolvePrice(ctx, product.Code, customer.Code, day, in.OrderAdjustment)
	if err != nil {
		return OrderLine{}, err
	}
	return OrderLine{
		ProductID:       product.ID,
		ProductCode:     product.Code,
		Qty:             in.Qty,
		BaseAdjustment:  baseAdjustment,
		OrderAdjustment: in.OrderAdjustment,
		SellPrice:       quote.SellPrice,
		Amount:          round2(float64(in.Qty) * quote.SellPrice),
	}, nil
}

// SetDiscount writes the order-level discount. A discount larger than the
// total is allowed and yields a negative final amount.
func (s *Service) SetDiscount(ctx context.Context, orderID int64, discount *float64) (Order, error) {
	if discount != nil && (*discount < 0 || math.IsNaN(*discount) || math.IsInf(*discount, 0)) {
		return Order{}, fmt.Errorf("%w: discount must be a non-negative number", ErrValidation)
	}
	if err := s.repo.SetDiscount(ctx, orderID, discount); err != nil {
		return Order{}, err
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	s.cache.Invalidate(ctx, order.Day)
	return order, nil
}

// Confirm advances an order from draft to confirmed.
func (s *Service) Confirm(ctx context.Context, orderID int64) (Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status == StatusConfirmed {
		return order, nil
	}
	if err := s.repo.UpdateStatus(ctx, orderID, StatusConfirmed); err != nil {
		return Order{}, err
	}
	order.Status = StatusConfirmed
	s.cache.Invalidate(ctx, order.Day)
	return order, nil
}

// RevertToDraft un-confirms an order. This is an administrative override for
// correcting a mistaken confirmation, never an automatic transition.
func (s *Service) RevertToDraft(ctx context.Context, orderID int64) (Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status != StatusConfirmed {
		return Order{}, fmt.Errorf("%w: order %d is not confirmed", ErrInvalidState, orderID)
	}
	if err := s.repo.UpdateStatus(ctx, orderID, StatusDraft); err != nil {
		return Order{}, err
	}
	order.Status = StatusDraft
	s.cache.Invalidate(ctx, order.Day)
	return order, nil
}

// Delete removes an order unconditionally. Compensating actions, such as
// restoring netted stock, are the caller's responsibility.
func (s *Service) Delete(ctx context.Context, orderID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, orderID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, order.Day)
	return nil
}

// BulkConfirm confirms every draft order in a day/wave, order by order. The
// sequence is not atomic: a failure stops the walk and leaves earlier
// confirmations in place, and the per-order results report exactly how far it
// got. Zero drafts is a no-op, not an error.
func (s *Service) BulkConfirm(ctx context.Context, day time.Time, wave Wave) ([]ConfirmResult, error) {
	if !wave.Valid() {
		return nil, fmt.Errorf("%w: wave must be 1, 2 or 3", ErrValidation)
	}
	day = shared.Day(day)
	drafts, err := s.repo.ListDraftsByDayWave(ctx, day, wave)
	if err != nil {
		return nil, err
	}
	results := make([]ConfirmResult, 0, len(drafts))
	for _, draft := range drafts {
		if err := s.repo.UpdateStatus(ctx, draft.ID, StatusConfirmed); err != nil {
			results = append(results, ConfirmResult{OrderID: draft.ID, Status: string(StatusDraft), Error: err.Error()})
			s.cache.Invalidate(ctx, day)
			return results, fmt.Errorf("orders: bulk confirm stopped at order %d: %w", draft.ID, err)
		}
		results = append(results, ConfirmResult{OrderID: draft.ID, Status: string(StatusConfirmed)})
	}
	if len(results) > 0 {
		s.cache.Invalidate(ctx, day)
	}
	return results, nil
}

// CutoffSummary partitions a day's orders by wave and totals their final
// amounts. Concurrent callers for the same day share one computation.
func (s *Service) CutoffSummary(ctx context.Context, day time.Time) (DaySummary, error) {
	day = shared.Day(day)
	if cached, ok := s.cache.Get(ctx, day); ok {
		return cached, nil
	}
	v, err, _ := s.group.Do(shared.FormatDay(day), func() (any, error) {
		summary, err := s.computeSummary(ctx, day)
		if err != nil {
			return DaySummary{}, err
		}
		s.cache.Set(ctx, day, summary)
		return summary, nil
	})
	if err != nil {
		return DaySummary{}, err
	}
	return v.(DaySummary), nil
}

func (s *Service) computeSummary(ctx context.Context, day time.Time) (DaySummary, error) {
	list, err := s.repo.ListByDay(ctx, day)
	if err != nil {
		return DaySummary{}, err
	}
	summary := DaySummary{Day: shared.FormatDay(day)}
	byWave := map[Wave]*WaveSummary{}
	for _, wave := range []Wave{WaveNormal, WaveAdditional, WaveUrgent} {
		ws := &WaveSummary{Wave: wave}
		byWave[wave] = ws
	}
	for _, o := range list {
		ws, ok := byWave[o.Wave]
		if !ok {
			continue
		}
		ws.Orders++
		ws.Total = round2(ws.Total + o.FinalAmount())
		summary.Total = round2(summary.Total + o.FinalAmount())
	}
	for _, wave := range []Wave{WaveNormal, WaveAdditional, WaveUrgent} {
		summary.Waves = append(summary.Waves, *byWave[wave])
	}
	return summary, nil
}

// OrdersForCustomer returns all of a customer's orders on a day, across
// waves.
func (s *Service) OrdersForCustomer(ctx context.Context, customerCode string, day time.Time) ([]Order, error) {
	customer, err := s.directory.CustomerByCode(ctx, customerCode)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrNotFound, customerCode)
		}
		return nil, err
	}
	return s.repo.ListByCustomerDay(ctx, customer.ID, shared.Day(day))
}

// CustomerStatus derives the aggregate status of a customer's orders on a
// day: confirmed when all are confirmed, draft when all are draft, mixed
// otherwise.
func (s *Service) CustomerStatus(ctx context.Context, customerCode string, day time.Time) (CustomerDayStatus, error) {
	list, err := s.OrdersForCustomer(ctx, customerCode, day)
	if err != nil {
		return DayStatusNone, err
	}
	if len(list) == 0 {
		return DayStatusNone, nil
	}
	confirmed, draft := 0, 0
	for _, o := range list {
		if o.Status == StatusConfirmed {
			confirmed++
		} else {
			draft++
		}
	}
	switch {
	case draft == 0:
		return DayStatusConfirmed, nil
	case confirmed == 0:
		return DayStatusDraft, nil
	default:
		return DayStatusMixed, nil
	}
}

// Order loads one order with lines.
func (s *Service) Order(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ConfirmedDemand aggregates confirmed quantities per product for a
// day/wave, the demand input to procurement.
func (s *Service) ConfirmedDemand(ctx context.Context, day time.Time, wave Wave) (map[int64]int, error) {
	if !wave.Valid() {
		return nil, fmt.Errorf("%w: wave must be 1, 2 or 3", ErrValidation)
	}
	list, err := s.repo.ListConfirmedByDayWave(ctx, shared.Day(day), wave)
	if err != nil {
		return nil, err
	}
	demand := make(map[int64]int)
	for _, o := range list {
		for _, l := range o.Lines {
			demand[l.ProductID] += l.Qty
		}
	}
	return demand, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
