package directory

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateCustomer(ctx context.Context, c Customer) (int64, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	GetCustomerByCode(ctx context.Context, code string) (Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	GetBaseAdjustments(ctx context.Context, customerID int64) (map[int64]float64, error)
	UpsertBaseAdjustment(ctx context.Context, adj BaseAdjustment) error
	ListGradeChanges(ctx context.Context, customerID int64) ([]GradeChange, error)
}

// AuditPort records directory mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes the customer directory to the pricing core.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs the directory service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateCustomer validates and persists a new customer.
func (s *Service) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if strings.TrimSpace(c.Code) == "" || strings.TrimSpace(c.Name) == "" {
		return Customer{}, fmt.Errorf("%w: customer code and name are required", ErrValidation)
	}
	if !c.Grade.Valid() {
		return Customer{}, fmt.Errorf("%w: unknown grade %q", ErrValidation, c.Grade)
	}
	id, err := s.repo.CreateCustomer(ctx, c)
	if err != nil {
		return Customer{}, err
	}
	return s.repo.GetCustomer(ctx, id)
}

// CustomerByCode resolves a customer by its unique code.
func (s *Service) CustomerByCode(ctx context.Context, code string) (Customer, error) {
	return s.repo.GetCustomerByCode(ctx, code)
}

// Customer resolves a customer by ID.
func (s *Service) Customer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// ListCustomers lists all customers.
func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// BaseAdjustments returns the customer's per-product standing offsets.
// Products without an entry have an implicit offset of zero.
func (s *Service) BaseAdjustments(ctx context.Context, customerID int64) (map[int64]float64, error) {
	return s.repo.GetBaseAdjustments(ctx, customerID)
}

// BaseAdjustment returns the offset for one product, zero when unset.
func (s *Service) BaseAdjustment(ctx context.Context, customerID, productID int64) (float64, error) {
	adjustments, err := s.repo.GetBaseAdjustments(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return adjustments[productID], nil
}

// SetBaseAdjustment writes a standing offset. Negative offsets are allowed;
// non-finite values are malformed.
func (s *Service) SetBaseAdjustment(ctx context.Context, adj BaseAdjustment) error {
	if adj.CustomerID == 0 || adj.ProductID == 0 {
		return fmt.Errorf("%w: customer and product are required", ErrValidation)
	}
	if math.IsNaN(adj.Amount) || math.IsInf(adj.Amount, 0) {
		return fmt.Errorf("%w: malformed adjustment amount", ErrValidation)
	}
	if _, err := s.repo.GetCustomer(ctx, adj.CustomerID); err != nil {
		return err
	}
	return s.repo.UpsertBaseAdjustment(ctx, adj)
}

// ChangeGrade moves a customer to a new grade. Every one of the customer's
// base adjustments is reset to zero and the previous grade is recorded in the
// append-only grade history.
func (s *Service) ChangeGrade(ctx context.Context, customerID int64, newGrade Grade, actor string) (GradeChange, error) {
	if !newGrade.Valid() {
		return GradeChange{}, fmt.Errorf("%w: unknown grade %q", ErrValidation, newGrade)
	}
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return GradeChange{}, err
	}
	if customer.Grade == newGrade {
		return GradeChange{}, fmt.Errorf("%w: customer already graded %s", ErrValidation, newGrade)
	}
	change := GradeChange{CustomerID: customerID, FromGrade: customer.Grade, ToGrade: newGrade, Actor: actor}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateGrade(ctx, customerID, newGrade); err != nil {
			return err
		}
		if err := tx.DeleteBaseAdjustments(ctx, customerID); err != nil {
			return err
		}
		id, err := tx.InsertGradeChange(ctx, change)
		if err != nil {
			return err
		}
		change.ID = id
		return nil
	})
	if err != nil {
		return GradeChange{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   "GRADE_CHANGE",
			Entity:   "customer",
			EntityID: customer.Code,
			Meta:     map[string]any{"from": string(change.FromGrade), "to": string(change.ToGrade)},
		})
	}
	return change, nil
}

// GradeHistory lists the customer's grade transitions.
func (s *Service) GradeHistory(ctx context.Context, customerID int64) ([]GradeChange, error) {
	return s.repo.ListGradeChanges(ctx, customerID)
}
