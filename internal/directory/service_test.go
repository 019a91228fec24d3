package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengate-erp/greengate-erp/internal/shared"
)

type fakeDirectoryRepo struct {
	customers   map[int64]Customer
	adjustments map[int64]map[int64]float64
	changes     []GradeChange
	nextID      int64
}

func newFakeDirectoryRepo() *fakeDirectoryRepo {
	return &fakeDirectoryRepo{
		customers:   map[int64]Customer{},
		adjustments: map[int64]map[int64]float64{},
	}
}

func (f *fakeDirectoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeDirectoryRepo) CreateCustomer(_ context.Context, c Customer) (int64, error) {
	for _, existing := range f.customers {
		if existing.Code == c.Code {
			return 0, ErrDuplicateCode
		}
	}
	f.nextID++
	c.ID = f.nextID
	f.customers[c.ID] = c
	return c.ID, nil
}

func (f *fakeDirectoryRepo) GetCustomer(_ context.Context, id int64) (Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeDirectoryRepo) GetCustomerByCode(_ context.Context, code string) (Customer, error) {
	for _, c := range f.customers {
		if c.Code == code {
			return c, nil
		}
	}
	return Customer{}, ErrNotFound
}

func (f *fakeDirectoryRepo) ListCustomers(context.Context) ([]Customer, error) {
	var list []Customer
	for _, c := range f.customers {
		list = append(list, c)
	}
	return list, nil
}

func (f *fakeDirectoryRepo) GetBaseAdjustments(_ context.Context, customerID int64) (map[int64]float64, error) {
	out := make(map[int64]float64)
	for productID, amount := range f.adjustments[customerID] {
		out[productID] = amount
	}
	return out, nil
}

func (f *fakeDirectoryRepo) UpsertBaseAdjustment(_ context.Context, adj BaseAdjustment) error {
	if f.adjustments[adj.CustomerID] == nil {
		f.adjustments[adj.CustomerID] = map[int64]float64{}
	}
	f.adjustments[adj.CustomerID][adj.ProductID] = adj.Amount
	return nil
}

func (f *fakeDirectoryRepo) ListGradeChanges(_ context.Context, customerID int64) ([]GradeChange, error) {
	var list []GradeChange
	for _, change := range f.changes {
		if change.CustomerID == customerID {
			list = append(list, change)
		}
	}
	return list, nil
}

func (f *fakeDirectoryRepo) UpdateGrade(_ context.Context, customerID int64, grade Grade) error {
	c, ok := f.customers[customerID]
	if !ok {
		return ErrNotFound
	}
	c.Grade = grade
	f.customers[customerID] = c
	return nil
}

func (f *fakeDirectoryRepo) DeleteBaseAdjustments(_ context.Context, customerID int64) error {
	delete(f.adjustments, customerID)
	return nil
}

func (f *fakeDirectoryRepo) InsertGradeChange(_ context.Context, change GradeChange) (int64, error) {
	f.nextID++
	change.ID = f.nextID
	f.changes = append(f.changes, change)
	return change.ID, nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func seedCustomer(t *testing.T, svc *Service) Customer {
	t.Helper()
	customer, err := svc.CreateCustomer(context.Background(), Customer{
		Code:     "REST-1",
		Name:     "Harbour Restaurant",
		Grade:    GradeB,
		IsActive: true,
	})
	require.NoError(t, err)
	return customer
}

func TestChangeGradeResetsAdjustments(t *testing.T) {
	repo := newFakeDirectoryRepo()
	audit := &fakeAudit{}
	svc := NewService(repo, audit)
	ctx := context.Background()
	customer := seedCustomer(t, svc)

	require.NoError(t, svc.SetBaseAdjustment(ctx, BaseAdjustment{CustomerID: customer.ID, ProductID: 1, Amount: -5}))
	require.NoError(t, svc.SetBaseAdjustment(ctx, BaseAdjustment{CustomerID: customer.ID, ProductID: 2, Amount: 3}))

	change, err := svc.ChangeGrade(ctx, customer.ID, GradeA, "admin")
	require.NoError(t, err)
	assert.Equal(t, GradeB, change.FromGrade)
	assert.Equal(t, GradeA, change.ToGrade)

	updated, err := svc.Customer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, GradeA, updated.Grade)

	// Every standing offset is gone; resolutions see zero until new ones are
	// set.
	adj, err := svc.BaseAdjustment(ctx, customer.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, adj)
	all, err := svc.BaseAdjustments(ctx, customer.ID)
	require.NoError(t, err)
	assert.Empty(t, all)

	history, err := svc.GradeHistory(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, GradeB, history[0].FromGrade)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "GRADE_CHANGE", audit.logs[0].Action)
}

func TestChangeGradeRejectsSameGrade(t *testing.T) {
	svc := NewService(newFakeDirectoryRepo(), nil)
	customer := seedCustomer(t, svc)

	_, err := svc.ChangeGrade(context.Background(), customer.ID, GradeB, "admin")
	require.ErrorIs(t, err, ErrValidation)
}

func TestChangeGradeRejectsUnknownGrade(t *testing.T) {
	svc := NewService(newFakeDirectoryRepo(), nil)
	customer := seedCustomer(t, svc)

	_, err := svc.ChangeGrade(context.Background(), customer.ID, Grade("Z"), "admin")
	require.ErrorIs(t, err, ErrValidation)
}

func TestSetBaseAdjustmentAllowsNegative(t *testing.T) {
	svc := NewService(newFakeDirectoryRepo(), nil)
	ctx := context.Background()
	customer := seedCustomer(t, svc)

	require.NoError(t, svc.SetBaseAdjustment(ctx, BaseAdjustment{CustomerID: customer.ID, ProductID: 1, Amount: -12.5}))
	adj, err := svc.BaseAdjustment(ctx, customer.ID, 1)
	require.NoError(t, err)
	assert.InDelta(t, -12.5, adj, 0.001)
}

func TestBaseAdjustmentUnsetIsZero(t *testing.T) {
	svc := NewService(newFakeDirectoryRepo(), nil)
	customer := seedCustomer(t, svc)

	adj, err := svc.BaseAdjustment(context.Background(), customer.ID, 42)
	require.NoError(t, err)
	assert.Zero(t, adj)
}
