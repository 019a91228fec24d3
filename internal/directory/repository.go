package directory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the customer directory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the grade-change
// sequence.
type TxRepository interface {
	UpdateGrade(ctx context.Context, customerID int64, grade Grade) error
	DeleteBaseAdjustments(ctx context.Context, customerID int64) error
	InsertGradeChange(ctx context.Context, change GradeChange) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Grade, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	return c, nil
}

// CreateCustomer inserts a customer and returns its ID.
func (r *Repository) CreateCustomer(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (code, name, grade, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING id`,
		c.Code, c.Name, string(c.Grade), c.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

// GetCustomer returns a customer by ID.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `SELECT id, code, name, grade, is_active, created_at, updated_at FROM customers WHERE id=$1`, id))
}

// GetCustomerByCode returns a customer by its unique code.
func (r *Repository) GetCustomerByCode(ctx context.Context, code string) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `SELECT id, code, name, grade, is_active, created_at, updated_at FROM customers WHERE code=$1`, code))
}

// ListCustomers returns all customers ordered by code.
func (r *Repository) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, grade, is_active, created_at, updated_at FROM customers ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// GetBaseAdjustments returns the customer's per-product offsets.
func (r *Repository) GetBaseAdjustments(ctx context.Context, customerID int64) (map[int64]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, amount FROM base_adjustments WHERE customer_id=$1`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	adjustments := make(map[int64]float64)
	for rows.Next() {
		var productID int64
		var amount float64
		if err := rows.Scan(&productID, &amount); err != nil {
			return nil, err
		}
		adjustments[productID] = amount
	}
	return adjustments, rows.Err()
}

// UpsertBaseAdjustment writes a single per-product offset.
func (r *Repository) UpsertBaseAdjustment(ctx context.Context, adj BaseAdjustment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO base_adjustments (customer_id, product_id, amount, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (customer_id, product_id) DO UPDATE SET amount=EXCLUDED.amount, updated_at=NOW()`,
		adj.CustomerID, adj.ProductID, adj.Amount)
	return err
}

// ListGradeChanges returns the append-only grade history for a customer.
func (r *Repository) ListGradeChanges(ctx context.Context, customerID int64) ([]GradeChange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, customer_id, from_grade, to_grade, actor, changed_at FROM grade_changes WHERE customer_id=$1 ORDER BY id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var changes []GradeChange
	for rows.Next() {
		var gc GradeChange
		if err := rows.Scan(&gc.ID, &gc.CustomerID, &gc.FromGrade, &gc.ToGrade, &gc.Actor, &gc.ChangedAt); err != nil {
			return nil, err
		}
		changes = append(changes, gc)
	}
	return changes, rows.Err()
}

func (t *txRepo) UpdateGrade(ctx context.Context, customerID int64, grade Grade) error {
	tag, err := t.tx.Exec(ctx, `UPDATE customers SET grade=$2, updated_at=NOW() WHERE id=$1`, customerID, string(grade))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteBaseAdjustments(ctx context.Context, customerID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM base_adjustments WHERE customer_id=$1`, customerID)
	return err
}

func (t *txRepo) InsertGradeChange(ctx context.Context, change GradeChange) (int64, error) {
	at := change.ChangedAt
	if at.IsZero() {
		at = time.Now()
	}
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO grade_changes (customer_id, from_grade, to_grade, actor, changed_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		change.CustomerID, string(change.FromGrade), string(change.ToGrade), change.Actor, at).Scan(&id)
	return id, err
}
