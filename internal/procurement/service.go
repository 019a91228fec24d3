package procurement

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/greengate-erp/greengate-erp/internal/catalog"
	"github.com/greengate-erp/greengate-erp/internal/orders"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	ListByDay(ctx context.Context, day time.Time) ([]PurchaseOrder, error)
}

// DemandPort aggregates confirmed order quantities per product for a
// day/wave.
type DemandPort interface {
	ConfirmedDemand(ctx context.Context, day time.Time, wave orders.Wave) (map[int64]int, error)
}

// StockPort reads current on-hand quantities.
type StockPort interface {
	OnHand(ctx context.Context, productID int64) (int, error)
}

// CatalogPort resolves products and vendors.
type CatalogPort interface {
	Product(ctx context.Context, id int64) (catalog.Product, error)
	Vendor(ctx context.Context, id int64) (catalog.Vendor, error)
}

// CostPort estimates the unit cost of a product as of a day.
type CostPort interface {
	TrailingMax(ctx context.Context, productID int64, day time.Time) (float64, error)
}

// IdempotencyPort guards against duplicate generation runs.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service converts per-wave confirmed demand into purchase orders, netting
// the normal wave against stock.
type Service struct {
	repo        RepositoryPort
	demand      DemandPort
	stock       StockPort
	catalog     CatalogPort
	cost        CostPort
	idempotency IdempotencyPort
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, demand DemandPort, stock StockPort, catalog CatalogPort, cost CostPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, demand: demand, stock: stock, catalog: catalog, cost: cost, idempotency: idem}
}

// GenerateInput parameterizes one generation run. VendorOverrides reassigns
// perishable products to a different vendor for this run only; the catalog
// vendor is untouched. RunKey, when set, rejects a repeat submission of the
// same run before any order is created.
type GenerateInput struct {
	Day             time.Time
	Wave            orders.Wave
	VendorOverrides map[int64]int64
	RunKey          string
}

// Generate produces the purchase orders for a day/wave from confirmed
// demand. Wave 1 nets demand against stock and splits per vendor; waves 2
// and 3 buy the full demand in one tagged order. Every call produces new
// orders; duplicate-run protection comes from the caller-supplied RunKey.
func (s *Service) Generate(ctx context.Context, in GenerateInput) ([]PurchaseOrder, error) {
	if !in.Wave.Valid() {
		return nil, fmt.Errorf("%w: wave must be 1, 2 or 3", ErrValidation)
	}
	inserted := false
	if s.idempotency != nil && in.RunKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, in.RunKey, "procurement.generate"); err != nil {
			return nil, err
		}
		inserted = true
	}
	created, err := s.generate(ctx, in)
	if err != nil && inserted && len(created) == 0 {
		// Nothing was created, so the run may be retried with the same key.
		// Partially created runs keep the key: a blind retry would duplicate
		// the orders that already exist.
		_ = s.idempotency.Delete(ctx, in.RunKey)
	}
	return created, err
}

func (s *Service) generate(ctx context.Context, in GenerateInput) ([]PurchaseOrder, error) {
	day := shared.Day(in.Day)
	demand, err := s.demand.ConfirmedDemand(ctx, day, in.Wave)
	if err != nil {
		return nil, err
	}

	items, byVendor, err := s.buildItems(ctx, day, in, demand)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s wave %d", ErrNothingToOrder, shared.FormatDay(day), in.Wave)
	}

	if in.Wave == orders.WaveNormal {
		return s.createPerVendor(ctx, day, byVendor)
	}

	note := NoteAdditional
	if in.Wave == orders.WaveUrgent {
		note = NoteUrgent
	}
	po, err := s.create(ctx, PurchaseOrder{
		Day:   day,
		Type:  TypeForWave(in.Wave),
		Note:  note,
		Items: items,
	})
	if err != nil {
		return nil, err
	}
	return []PurchaseOrder{po}, nil
}

// buildItems turns raw demand into purchase items. For the normal wave the
// quantity is netted against stock, zero-buy items are dropped, and items are
// grouped per vendor; the other waves buy the full demand regardless of stock
// into one unsplit order, so vendor overrides do not apply there.
func (s *Service) buildItems(ctx context.Context, day time.Time, in GenerateInput, demand map[int64]int) ([]Item, map[int64][]Item, error) {
	productIDs := make([]int64, 0, len(demand))
	for id := range demand {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	var items []Item
	byVendor := make(map[int64][]Item)
	for _, productID := range productIDs {
		demandQty := demand[productID]
		if demandQty <= 0 {
			continue
		}
		product, err := s.catalog.Product(ctx, productID)
		if err != nil {
			return nil, nil, err
		}
		stockQty := 0
		buyQty := demandQty
		if in.Wave == orders.WaveNormal {
			stockQty, err = s.stock.OnHand(ctx, productID)
			if err != nil {
				return nil, nil, err
			}
			buyQty = demandQty - stockQty
			if buyQty < 0 {
				buyQty = 0
			}
		}
		if buyQty == 0 {
			continue
		}
		cost, err := s.unitCost(ctx, product, day)
		if err != nil {
			return nil, nil, err
		}
		item := Item{
			ProductID:   product.ID,
			ProductCode: product.Code,
			DemandQty:   demandQty,
			StockQty:    stockQty,
			BuyQty:      buyQty,
			UnitCost:    cost,
			Amount:      round2(float64(buyQty) * cost),
		}
		items = append(items, item)

		if in.Wave == orders.WaveNormal {
			vendorID, err := s.effectiveVendor(ctx, product, in.VendorOverrides)
			if err != nil {
				return nil, nil, err
			}
			byVendor[vendorID] = append(byVendor[vendorID], item)
		}
	}
	return items, byVendor, nil
}

// effectiveVendor picks the vendor an item is bought from. Only perishables
// accept a per-run override, reflecting day-of price shopping.
func (s *Service) effectiveVendor(ctx context.Context, product catalog.Product, overrides map[int64]int64) (int64, error) {
	override, ok := overrides[product.ID]
	if !ok {
		return product.VendorID, nil
	}
	if product.Family != catalog.FamilyPerishable {
		return 0, fmt.Errorf("%w: vendor override on %s is only allowed for perishables", ErrValidation, product.Code)
	}
	if _, err := s.catalog.Vendor(ctx, override); err != nil {
		return 0, fmt.Errorf("%w: override vendor %d", ErrValidation, override)
	}
	return override, nil
}

// unitCost estimates what a unit will cost: the trailing observed maximum
// for perishables when history exists, the static purchase price otherwise.
func (s *Service) unitCost(ctx context.Context, product catalog.Product, day time.Time) (float64, error) {
	if product.Family == catalog.FamilyPerishable {
		max, err := s.cost.TrailingMax(ctx, product.ID, day)
		if err != nil {
			return 0, err
		}
		if max > 0 {
			return max, nil
		}
	}
	return product.PurchasePrice, nil
}

func (s *Service) createPerVendor(ctx context.Context, day time.Time, byVendor map[int64][]Item) ([]PurchaseOrder, error) {
	vendorIDs := make([]int64, 0, len(byVendor))
	for id := range byVendor {
		vendorIDs = append(vendorIDs, id)
	}
	sort.Slice(vendorIDs, func(i, j int) bool { return vendorIDs[i] < vendorIDs[j] })

	var created []PurchaseOrder
	for _, vendorID := range vendorIDs {
		vid := vendorID
		po, err := s.create(ctx, PurchaseOrder{
			Day:      day,
			Type:     TypeBuy1,
			VendorID: &vid,
			Items:    byVendor[vendorID],
		})
		if err != nil {
			// Orders created so far stay; the caller re-reads to reconcile.
			return created, err
		}
		created = append(created, po)
	}
	return created, nil
}

func (s *Service) create(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	var total float64
	for _, item := range po.Items {
		total += item.Amount
	}
	po.TotalAmount = round2(total)
	po.Number = fmt.Sprintf("PO-%s-%s", shared.Day(po.Day).Format("20060102"), uuid.NewString()[:8])
	return s.repo.Create(ctx, po)
}

// PurchaseOrder loads one generated order.
func (s *Service) PurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// PurchaseOrdersForDay lists every order generated for a day.
func (s *Service) PurchaseOrdersForDay(ctx context.Context, day time.Time) ([]PurchaseOrder, error) {
	return s.repo.ListByDay(ctx, day)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
