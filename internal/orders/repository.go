package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for orders and their
// lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional write operations.
type TxRepository interface {
	UpsertOrder(ctx context.Context, o Order) (int64, error)
	ReplaceLines(ctx context.Context, orderID int64, lines []OrderLine) error
	DeleteOrder(ctx context.Context, id int64) error
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

const orderColumns = `id, day, customer_id, customer_code, wave, status, total_amount, discount, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var wave int
	var status string
	if err := row.Scan(&o.ID, &o.Day, &o.CustomerID, &o.CustomerCode, &wave, &status, &o.TotalAmount, &o.Discount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.Wave = Wave(wave)
	o.Status = OrderStatus(status)
	return o, nil
}

// GetOrder loads one order with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return Order{}, err
	}
	o.Lines, err = r.getLines(ctx, o.ID)
	return o, err
}

// FindByCustomerDayWave locates the single order a customer has for a
// day/wave, if any.
func (r *Repository) FindByCustomerDayWave(ctx context.Context, customerID int64, day time.Time, wave Wave) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id=$1 AND day=$2 AND wave=$3`,
		customerID, shared.Day(day), int(wave)))
	if err != nil {
		return Order{}, err
	}
	o.Lines, err = r.getLines(ctx, o.ID)
	return o, err
}

// ListByDay returns all orders on a day, without lines.
func (r *Repository) ListByDay(ctx context.Context, day time.Time) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE day=$1 ORDER BY wave, id`, shared.Day(day))
}

// ListByCustomerDay returns a customer's orders on a day across waves, with
// lines.
func (r *Repository) ListByCustomerDay(ctx context.Context, customerID int64, day time.Time) ([]Order, error) {
	list, err := r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id=$1 AND day=$2 ORDER BY wave`, customerID, shared.Day(day))
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Lines, err = r.getLines(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return list, nil
}

// ListDraftsByDayWave returns draft orders for a day/wave in id order, the
// order bulk confirmation walks them in.
func (r *Repository) ListDraftsByDayWave(ctx context.Context, day time.Time, wave Wave) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE day=$1 AND wave=$2 AND status=$3 ORDER BY id`,
		shared.Day(day), int(wave), string(StatusDraft))
}

// ListConfirmedByDayWave returns confirmed orders for a day/wave with lines,
// the demand input for procurement.
func (r *Repository) ListConfirmedByDayWave(ctx context.Context, day time.Time, wave Wave) ([]Order, error) {
	list, err := r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE day=$1 AND wave=$2 AND status=$3 ORDER BY id`,
		shared.Day(day), int(wave), string(StatusConfirmed))
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Lines, err = r.getLines(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func (r *Repository) getLines(ctx context.Context, orderID int64) ([]OrderLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, product_code, qty, base_adjustment, order_adjustment, sell_price, amount
		FROM order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductCode, &l.Qty, &l.BaseAdjustment, &l.OrderAdjustment, &l.SellPrice, &l.Amount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// UpdateStatus writes the order status. Safe to retry.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status OrderStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDiscount writes or clears the order discount.
func (r *Repository) SetDiscount(ctx context.Context, id int64, discount *float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET discount=$2, updated_at=NOW() WHERE id=$1`, id, discount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an order and its lines.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteOrder(ctx, id)
	})
}

func (t *txRepo) UpsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO orders (day, customer_id, customer_code, wave, status, total_amount, discount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (customer_id, day, wave) DO UPDATE SET total_amount=EXCLUDED.total_amount, discount=EXCLUDED.discount, updated_at=NOW()
		RETURNING id`,
		shared.Day(o.Day), o.CustomerID, o.CustomerCode, int(o.Wave), string(o.Status), o.TotalAmount, o.Discount).Scan(&id)
	return id, err
}

func (t *txRepo) ReplaceLines(ctx context.Context, orderID int64, lines []OrderLine) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id=$1`, orderID); err != nil {
		return err
	}
	for _, l := range lines {
		_, err := t.tx.Exec(ctx, `INSERT INTO order_lines (order_id, product_id, product_code, qty, base_adjustment, order_adjustment, sell_price, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			orderID, l.ProductID, l.ProductCode, l.Qty, l.BaseAdjustment, l.OrderAdjustment, l.SellPrice, l.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
