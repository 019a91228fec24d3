package orders

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengate-erp/greengate-erp/internal/catalog"
	"github.com/greengate-erp/greengate-erp/internal/directory"
	"github.com/greengate-erp/greengate-erp/internal/pricing"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

type fakeOrderRepo struct {
	orders    map[int64]*Order
	nextID    int64
	failOn    map[int64]error
	statusLog []int64
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[int64]*Order{}, failOn: map[int64]error{}}
}

func (f *fakeOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeOrderRepo) UpsertOrder(_ context.Context, o Order) (int64, error) {
	for id, existing := range f.orders {
		if existing.CustomerID == o.CustomerID && existing.Day.Equal(shared.Day(o.Day)) && existing.Wave == o.Wave {
			existing.TotalAmount = o.TotalAmount
			existing.Discount = o.Discount
			existing.UpdatedAt = time.Now()
			return id, nil
		}
	}
	f.nextID++
	o.ID = f.nextID
	o.Day = shared.Day(o.Day)
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	f.orders[o.ID] = &o
	return o.ID, nil
}

func (f *fakeOrderRepo) ReplaceLines(_ context.Context, orderID int64, lines []OrderLine) error {
	o, ok := f.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Lines = append([]OrderLine(nil), lines...)
	return nil
}

func (f *fakeOrderRepo) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := f.orders[id]; !ok {
		return ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeOrderRepo) GetOrder(_ context.Context, id int64) (Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return *o, nil
}

func (f *fakeOrderRepo) FindByCustomerDayWave(_ context.Context, customerID int64, day time.Time, wave Wave) (Order, error) {
	for _, o := range f.orders {
		if o.CustomerID == customerID && o.Day.Equal(shared.Day(day)) && o.Wave == wave {
			return *o, nil
		}
	}
	return Order{}, ErrNotFound
}

func (f *fakeOrderRepo) ListByDay(_ context.Context, day time.Time) ([]Order, error) {
	return f.filter(func(o *Order) bool { return o.Day.Equal(shared.Day(day)) }), nil
}

func (f *fakeOrderRepo) ListByCustomerDay(_ context.Context, customerID int64, day time.Time) ([]Order, error) {
	return f.filter(func(o *Order) bool {
		return o.CustomerID == customerID && o.Day.Equal(shared.Day(day))
	}), nil
}

func (f *fakeOrderRepo) ListDraftsByDayWave(_ context.Context, day time.Time, wave Wave) ([]Order, error) {
	return f.filter(func(o *Order) bool {
		return o.Day.Equal(shared.Day(day)) && o.Wave == wave && o.Status == StatusDraft
	}), nil
}

func (f *fakeOrderRepo) ListConfirmedByDayWave(_ context.Context, day time.Time, wave Wave) ([]Order, error) {
	return f.filter(func(o *Order) bool {
		return o.Day.Equal(shared.Day(day)) && o.Wave == wave && o.Status == StatusConfirmed
	}), nil
}

func (f *fakeOrderRepo) filter(keep func(*Order) bool) []Order {
	var list []Order
	for _, o := range f.orders {
		if keep(o) {
			list = append(list, *o)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id int64, status OrderStatus) error {
	if err, ok := f.failOn[id]; ok {
		return err
	}
	o, ok := f.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	f.statusLog = append(f.statusLog, id)
	return nil
}

func (f *fakeOrderRepo) SetDiscount(_ context.Context, id int64, discount *float64) error {
	o, ok := f.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Discount = discount
	return nil
}

func (f *fakeOrderRepo) Delete(ctx context.Context, id int64) error {
	return f.DeleteOrder(ctx, id)
}

type fakePricer struct {
	prices map[string]float64
}

func (f *fakePricer) ResolvePrice(_ context.Context, productCode, _ string, _ time.Time, orderAdjustment float64) (pricing.Quote, error) {
	price, ok := f.prices[productCode]
	if !ok {
		return pricing.Quote{}, pricing.ErrNotFound
	}
	return pricing.Quote{SellPrice: price + orderAdjustment}, nil
}

type fakeCatalog struct {
	products map[string]catalog.Product
}

func (f *fakeCatalog) ProductByCode(_ context.Context, code string) (catalog.Product, error) {
	p, ok := f.products[code]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

type fakeDirectory struct {
	customers map[string]directory.Customer
}

func (f *fakeDirectory) CustomerByCode(_ context.Context, code string) (directory.Customer, error) {
	c, ok := f.customers[code]
	if !ok {
		return directory.Customer{}, directory.ErrNotFound
	}
	return c, nil
}

func (f *fakeDirectory) BaseAdjustment(context.Context, int64, int64) (float64, error) {
	return 0, nil
}

func newTestService() (*Service, *fakeOrderRepo) {
	repo := newFakeOrderRepo()
	pricer := &fakePricer{prices: map[string]float64{"TOMATO": 225, "RICE": 130}}
	cat := &fakeCatalog{products: map[string]catalog.Product{
		"TOMATO": {ID: 1, Code: "TOMATO", Family: catalog.FamilyPerishable, VendorID: 1},
		"RICE":   {ID: 2, Code: "RICE", Family: catalog.FamilyNonPerishable, VendorID: 2},
	}}
	dir := &fakeDirectory{customers: map[string]directory.Customer{
		"REST-1": {ID: 10, Code: "REST-1", Grade: directory.GradeB, IsActive: true},
		"CAFE-2": {ID: 11, Code: "CAFE-2", Grade: directory.GradeA, IsActive: true},
		"BAR-3":  {ID: 12, Code: "BAR-3", Grade: directory.GradeC, IsActive: true},
	}}
	return NewService(repo, pricer, cat, dir, nil), repo
}

func day(s string) time.Time {
	d, err := shared.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr(v float64) *float64 { return &v }

func TestSaveOrderComputesTotals(t *testing.T) {
	svc, _ := newTestService()

	order, err := svc.SaveOrder(context.Background(), SaveOrderInput{
		CustomerCode: "REST-1",
		Day:          day("2026-03-03"),
		Wave:         WaveNormal,
		Lines: []LineInput{
			{ProductCode: "TOMATO", Qty: 2},
			{ProductCode: "RICE", Qty: 1, OrderAdjustment: -5},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, StatusDraft, order.Status)
	require.Len(t, order.Lines, 2)
	assert.InDelta(t, 450.0, order.Lines[0].Amount, 0.001)
	assert.InDelta(t, 125.0, order.Lines[1].Amount, 0.001)
	assert.InDelta(t, 575.0, order.TotalAmount, 0.001)
}

func TestSaveOrderDropsZeroQtyLines(t *testing.T) {
	svc, _ := newTestService()

	order, err := svc.SaveOrder(context.Background(), SaveOrderInput{
		CustomerCode: "REST-1",
		Day:          day("2026-03-03"),
		Wave:         WaveNormal,
		Lines: []LineInput{
			{ProductCode: "TOMATO", Qty: 0},
			{ProductCode: "RICE", Qty: 3},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "RICE", order.Lines[0].ProductCode)
}

func TestSaveOrderRejectsNegativeQty(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SaveOrder(context.Background(), SaveOrderInput{
		CustomerCode: "REST-1",
		Day:          day("2026-03-03"),
		Wave:         WaveNormal,
		Lines:        []LineInput{{ProductCode: "RICE", Qty: -1}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSaveOrderAllZeroDeletesExisting(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	order, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "REST-1",
		Day:          day("2026-03-03"),
		Wave:         WaveNormal,
		Lines:        []LineInput{{ProductCode: "RICE", Qty: 3}},
	})
	require.NoError(t, err)
	require.NotNil(t, order)

	removed, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "REST-1",
		Day:          day("2026-03-03"),
		Wave:         WaveNormal,
		Lines:        []LineInput{{ProductCode: "RICE", Qty: 0}},
	})
	require.NoError(t, err)
	assert.Nil(t, removed)
	assert.Empty(t, repo.orders)
}

func TestSaveOrderUpsertsPerWave(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	first, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "REST-1", Day: day("2026-03-03"), Wave: WaveNormal,
		Lines: []LineInput{{ProductCode: "RICE", Qty: 1}},
	})
	require.NoError(t, err)
	second, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "REST-1", Day: day("2026-03-03"), Wave: WaveNormal,
		Lines: []LineInput{{ProductCode: "RICE", Qty: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.orders, 1)
	assert.InDelta(t, 650.0, second.TotalAmount, 0.001)

	third, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "REST-1", Day: day("2026-03-03"), Wave: WaveAdditional,
		Lines: []LineInput{{ProductCode: "RICE", Qty: 1}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestDiscountMayExceedTotal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	order, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "CAFE-2", Day: day("2026-03-03"), Wave: WaveNormal,
		Lines:    []LineInput{{ProductCode: "RICE", Qty: 5, OrderAdjustment: -30}},
		Discount: ptr(50),
	})
	require.NoError(t, err)
	assert.InDelta(t, 500.0, order.TotalAmount, 0.001)
	assert.InDelta(t, 450.0, order.FinalAmount(), 0.001)

	updated, err := svc.SetDiscount(ctx, order.ID, ptr(600))
	require.NoError(t, err)
	assert.InDelta(t, -100.0, updated.FinalAmount(), 0.001)
}

func TestSetDiscountRejectsNegative(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.SetDiscount(context.Background(), 1, ptr(-1))
	require.ErrorIs(t, err, ErrValidation)
}

func TestConfirmAndRevert(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	order, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "REST-1", Day: day("2026-03-03"), Wave: WaveNormal,
		Lines: []LineInput{{ProductCode: "RICE", Qty: 1}},
	})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	// Confirming again is harmless.
	again, err := svc.Confirm(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, again.Status)

	reverted, err := svc.RevertToDraft(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, reverted.Status)

	_, err = svc.RevertToDraft(ctx, order.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestBulkConfirmStopsAtFirstFailure(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	d := day("2026-03-03")

	for _, code := range []string{"REST-1", "CAFE-2", "BAR-3"} {
		_, err := svc.SaveOrder(ctx, SaveOrderInput{
			CustomerCode: code, Day: d, Wave: WaveAdditional,
			Lines: []LineInput{{ProductCode: "RICE", Qty: 1}},
		})
		require.NoError(t, err)
	}
	drafts, err := repo.ListDraftsByDayWave(ctx, d, WaveAdditional)
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	repo.failOn[drafts[1].ID] = errors.New("connection reset")

	results, err := svc.BulkConfirm(ctx, d, WaveAdditional)
	require.Error(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, string(StatusConfirmed), results[0].Status)
	assert.Equal(t, string(StatusDraft), results[1].Status)
	assert.NotEmpty(t, results[1].Error)

	// Order 1 stays confirmed, order 2 stays draft, order 3 was never touched.
	assert.Equal(t, StatusConfirmed, repo.orders[drafts[0].ID].Status)
	assert.Equal(t, StatusDraft, repo.orders[drafts[1].ID].Status)
	assert.Equal(t, StatusDraft, repo.orders[drafts[2].ID].Status)
}

func TestBulkConfirmNoDraftsIsNoOp(t *testing.T) {
	svc, _ := newTestService()
	results, err := svc.BulkConfirm(context.Background(), day("2026-03-03"), WaveUrgent)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCutoffSummaryPartitionsByWave(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := day("2026-03-03")

	_, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "REST-1", Day: d, Wave: WaveNormal,
		Lines: []LineInput{{ProductCode: "RICE", Qty: 2}},
	})
	require.NoError(t, err)
	_, err = svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "CAFE-2", Day: d, Wave: WaveAdditional,
		Lines:    []LineInput{{ProductCode: "RICE", Qty: 1}},
		Discount: ptr(30),
	})
	require.NoError(t, err)

	summary, err := svc.CutoffSummary(ctx, d)
	require.NoError(t, err)
	require.Len(t, summary.Waves, 3)
	assert.InDelta(t, 260.0, summary.Waves[0].Total, 0.001)
	assert.InDelta(t, 100.0, summary.Waves[1].Total, 0.001)
	assert.Zero(t, summary.Waves[2].Total)
	assert.InDelta(t, 360.0, summary.Total, 0.001)
}

func TestCustomerStatusDerivation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := day("2026-03-03")

	status, err := svc.CustomerStatus(ctx, "REST-1", d)
	require.NoError(t, err)
	assert.Equal(t, DayStatusNone, status)

	first, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "REST-1", Day: d, Wave: WaveNormal,
		Lines: []LineInput{{ProductCode: "RICE", Qty: 1}},
	})
	require.NoError(t, err)
	_, err = svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "REST-1", Day: d, Wave: WaveAdditional,
		Lines: []LineInput{{ProductCode: "TOMATO", Qty: 1}},
	})
	require.NoError(t, err)

	status, err = svc.CustomerStatus(ctx, "REST-1", d)
	require.NoError(t, err)
	assert.Equal(t, DayStatusDraft, status)

	_, err = svc.Confirm(ctx, first.ID)
	require.NoError(t, err)
	status, err = svc.CustomerStatus(ctx, "REST-1", d)
	require.NoError(t, err)
	assert.Equal(t, DayStatusMixed, status)
}

func TestConfirmedDemandAggregates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d := day("2026-03-03")

	o1, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "REST-1", Day: d, Wave: WaveNormal,
		Lines: []LineInput{{ProductCode: "TOMATO", Qty: 25}},
	})
	require.NoError(t, err)
	o2, err := svc.SaveOrder(ctx, SaveOrderInput{
		CustomerCode: "CAFE-2", Day: d, Wave: WaveNormal,
		Lines: []LineInput{{ProductCode: "TOMATO", Qty: 15}, {ProductCode: "RICE", Qty: 10}},
	})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, o1.ID)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, o2.ID)
	require.NoError(t, err)

	demand, err := svc.ConfirmedDemand(ctx, d, WaveNormal)
	require.NoError(t, err)
	assert.Equal(t, 40, demand[1])
	assert.Equal(t, 10, demand[2])
}
