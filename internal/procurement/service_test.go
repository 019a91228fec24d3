package procurement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengate-erp/greengate-erp/internal/catalog"
	"github.com/greengate-erp/greengate-erp/internal/orders"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

type fakePORepo struct {
	created    []PurchaseOrder
	nextID     int64
	failCreate error
}

func (f *fakePORepo) Create(_ context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	if f.failCreate != nil {
		return PurchaseOrder{}, f.failCreate
	}
	f.nextID++
	po.ID = f.nextID
	po.CreatedAt = time.Now()
	f.created = append(f.created, po)
	return po, nil
}

func (f *fakePORepo) Get(_ context.Context, id int64) (PurchaseOrder, error) {
	for _, po := range f.created {
		if po.ID == id {
			return po, nil
		}
	}
	return PurchaseOrder{}, ErrNotFound
}

func (f *fakePORepo) ListByDay(_ context.Context, day time.Time) ([]PurchaseOrder, error) {
	var list []PurchaseOrder
	for _, po := range f.created {
		if po.Day.Equal(shared.Day(day)) {
			list = append(list, po)
		}
	}
	return list, nil
}

type fakeDemand struct {
	byWave map[orders.Wave]map[int64]int
}

func (f *fakeDemand) ConfirmedDemand(_ context.Context, _ time.Time, wave orders.Wave) (map[int64]int, error) {
	return f.byWave[wave], nil
}

type fakeStock struct {
	onHand map[int64]int
}

func (f *fakeStock) OnHand(_ context.Context, productID int64) (int, error) {
	return f.onHand[productID], nil
}

type fakeCatalog struct {
	products map[int64]catalog.Product
	vendors  map[int64]catalog.Vendor
}

func (f *fakeCatalog) Product(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalog) Vendor(_ context.Context, id int64) (catalog.Vendor, error) {
	v, ok := f.vendors[id]
	if !ok {
		return catalog.Vendor{}, catalog.ErrNotFound
	}
	return v, nil
}

type fakeCost struct {
	trailing map[int64]float64
}

func (f *fakeCost) TrailingMax(_ context.Context, productID int64, _ time.Time) (float64, error) {
	return f.trailing[productID], nil
}

type fakeIdempotency struct {
	keys map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: map[string]string{}}
}

func (f *fakeIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if _, ok := f.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = module
	return nil
}

func (f *fakeIdempotency) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

func day(s string) time.Time {
	d, err := shared.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(demand *fakeDemand, stock *fakeStock) (*Service, *fakePORepo) {
	svc, repo, _ := newTestServiceIdem(demand, stock)
	return svc, repo
}

func newTestServiceIdem(demand *fakeDemand, stock *fakeStock) (*Service, *fakePORepo, *fakeIdempotency) {
	repo := &fakePORepo{}
	cat := &fakeCatalog{
		products: map[int64]catalog.Product{
			1: {ID: 1, Code: "TOMATO", Family: catalog.FamilyPerishable, PurchasePrice: 180, VendorID: 100},
			2: {ID: 2, Code: "RICE", Family: catalog.FamilyNonPerishable, PurchasePrice: 100, VendorID: 200},
			3: {ID: 3, Code: "LETTUCE", Family: catalog.FamilyPerishable, PurchasePrice: 60, VendorID: 100},
		},
		vendors: map[int64]catalog.Vendor{
			100: {ID: 100, Code: "FRESH-CO"},
			200: {ID: 200, Code: "DRY-CO"},
			300: {ID: 300, Code: "MARKET-STALL"},
		},
	}
	cost := &fakeCost{trailing: map[int64]float64{1: 210}}
	idem := newFakeIdempotency()
	return NewService(repo, demand, stock, cat, cost, idem), repo, idem
}

func TestGenerateWave1NetsAgainstStock(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveNormal: {1: 40, 2: 10},
	}}
	stock := &fakeStock{onHand: map[int64]int{1: 15, 2: 50}}
	svc, _ := newTestService(demand, stock)

	created, err := svc.Generate(context.Background(), GenerateInput{Day: day("2026-03-03"), Wave: orders.WaveNormal})
	require.NoError(t, err)
	require.Len(t, created, 1)

	po := created[0]
	assert.Equal(t, TypeBuy1, po.Type)
	require.NotNil(t, po.VendorID)
	assert.Equal(t, int64(100), *po.VendorID)
	require.Len(t, po.Items, 1)
	assert.Equal(t, 40, po.Items[0].DemandQty)
	assert.Equal(t, 15, po.Items[0].StockQty)
	assert.Equal(t, 25, po.Items[0].BuyQty)
	// Perishable cost comes from the observed trailing maximum.
	assert.InDelta(t, 210.0, po.Items[0].UnitCost, 0.001)
	assert.InDelta(t, 5250.0, po.TotalAmount, 0.001)
}

func TestGenerateWave1SplitsPerVendor(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveNormal: {1: 20, 2: 30, 3: 10},
	}}
	stock := &fakeStock{onHand: map[int64]int{}}
	svc, _ := newTestService(demand, stock)

	created, err := svc.Generate(context.Background(), GenerateInput{Day: day("2026-03-03"), Wave: orders.WaveNormal})
	require.NoError(t, err)
	require.Len(t, created, 2)

	require.NotNil(t, created[0].VendorID)
	require.NotNil(t, created[1].VendorID)
	assert.Equal(t, int64(100), *created[0].VendorID)
	assert.Len(t, created[0].Items, 2)
	assert.Equal(t, int64(200), *created[1].VendorID)
	assert.Len(t, created[1].Items, 1)
}

func TestGenerateWave1VendorOverridePerishableOnly(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveNormal: {1: 20},
	}}
	svc, _ := newTestService(demand, &fakeStock{onHand: map[int64]int{}})

	created, err := svc.Generate(context.Background(), GenerateInput{
		Day:             day("2026-03-03"),
		Wave:            orders.WaveNormal,
		VendorOverrides: map[int64]int64{1: 300},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, int64(300), *created[0].VendorID)
}

func TestGenerateRejectsOverrideOnNonPerishable(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveNormal: {2: 20},
	}}
	svc, _ := newTestService(demand, &fakeStock{onHand: map[int64]int{}})

	_, err := svc.Generate(context.Background(), GenerateInput{
		Day:             day("2026-03-03"),
		Wave:            orders.WaveNormal,
		VendorOverrides: map[int64]int64{2: 300},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestGenerateWave2BuysFullDemand(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveAdditional: {1: 5, 2: 8},
	}}
	// Plenty of stock; wave 2 ignores it.
	stock := &fakeStock{onHand: map[int64]int{1: 100, 2: 100}}
	svc, _ := newTestService(demand, stock)

	created, err := svc.Generate(context.Background(), GenerateInput{Day: day("2026-03-03"), Wave: orders.WaveAdditional})
	require.NoError(t, err)
	require.Len(t, created, 1)

	po := created[0]
	assert.Equal(t, TypeBuy2, po.Type)
	assert.Nil(t, po.VendorID)
	assert.Equal(t, NoteAdditional, po.Note)
	require.Len(t, po.Items, 2)
	assert.Equal(t, 5, po.Items[0].BuyQty)
	assert.Equal(t, 8, po.Items[1].BuyQty)
	assert.Zero(t, po.Items[0].StockQty)
}

func TestGenerateWave3TaggedUrgent(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveUrgent: {3: 4},
	}}
	svc, _ := newTestService(demand, &fakeStock{onHand: map[int64]int{}})

	created, err := svc.Generate(context.Background(), GenerateInput{Day: day("2026-03-03"), Wave: orders.WaveUrgent})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, TypeBuy3, created[0].Type)
	assert.Equal(t, NoteUrgent, created[0].Note)
}

func TestGenerateNothingToOrderWhenFullyStocked(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveNormal: {1: 40},
	}}
	stock := &fakeStock{onHand: map[int64]int{1: 50}}
	svc, repo := newTestService(demand, stock)

	_, err := svc.Generate(context.Background(), GenerateInput{Day: day("2026-03-03"), Wave: orders.WaveNormal})
	require.ErrorIs(t, err, ErrNothingToOrder)
	assert.Empty(t, repo.created)
}

func TestGenerateNothingToOrderWhenNoDemand(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{}}
	svc, _ := newTestService(demand, &fakeStock{onHand: map[int64]int{}})

	_, err := svc.Generate(context.Background(), GenerateInput{Day: day("2026-03-03"), Wave: orders.WaveUrgent})
	require.ErrorIs(t, err, ErrNothingToOrder)
}

func TestGenerateAdditionalWaveIgnoresVendorOverrides(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveAdditional: {2: 20},
	}}
	svc, _ := newTestService(demand, &fakeStock{onHand: map[int64]int{}})

	// An override on a non-perishable would be rejected on wave 1, but waves
	// 2 and 3 are not split per vendor, so the entry is irrelevant there.
	created, err := svc.Generate(context.Background(), GenerateInput{
		Day:             day("2026-03-03"),
		Wave:            orders.WaveAdditional,
		VendorOverrides: map[int64]int64{2: 300},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Nil(t, created[0].VendorID)
}

func TestGenerateDuplicateRunKeyRejected(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveUrgent: {3: 4},
	}}
	svc, repo, _ := newTestServiceIdem(demand, &fakeStock{onHand: map[int64]int{}})
	ctx := context.Background()
	in := GenerateInput{Day: day("2026-03-03"), Wave: orders.WaveUrgent, RunKey: "gen-2026-03-03-w3"}

	first, err := svc.Generate(ctx, in)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = svc.Generate(ctx, in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Len(t, repo.created, 1)
}

func TestGenerateFailedRunReleasesRunKey(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveUrgent: {3: 4},
	}}
	svc, repo, idem := newTestServiceIdem(demand, &fakeStock{onHand: map[int64]int{}})
	ctx := context.Background()
	in := GenerateInput{Day: day("2026-03-03"), Wave: orders.WaveUrgent, RunKey: "gen-2026-03-03-w3"}

	repo.failCreate = errors.New("connection reset")
	_, err := svc.Generate(ctx, in)
	require.Error(t, err)
	assert.Empty(t, idem.keys)

	// A run that created nothing may be resubmitted under the same key.
	repo.failCreate = nil
	created, err := svc.Generate(ctx, in)
	require.NoError(t, err)
	require.Len(t, created, 1)
}

func TestGenerateWithoutRunKeySkipsGuard(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveUrgent: {3: 4},
	}}
	svc, repo, idem := newTestServiceIdem(demand, &fakeStock{onHand: map[int64]int{}})
	ctx := context.Background()
	in := GenerateInput{Day: day("2026-03-03"), Wave: orders.WaveUrgent}

	_, err := svc.Generate(ctx, in)
	require.NoError(t, err)
	_, err = svc.Generate(ctx, in)
	require.NoError(t, err)
	assert.Len(t, repo.created, 2)
	assert.Empty(t, idem.keys)
}

func TestGenerateDoesNotMergeRuns(t *testing.T) {
	demand := &fakeDemand{byWave: map[orders.Wave]map[int64]int{
		orders.WaveUrgent: {3: 4},
	}}
	svc, repo := newTestService(demand, &fakeStock{onHand: map[int64]int{}})
	ctx := context.Background()
	in := GenerateInput{Day: day("2026-03-03"), Wave: orders.WaveUrgent}

	first, err := svc.Generate(ctx, in)
	require.NoError(t, err)
	second, err := svc.Generate(ctx, in)
	require.NoError(t, err)

	assert.Len(t, repo.created, 2)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[0].Number, second[0].Number)
}
