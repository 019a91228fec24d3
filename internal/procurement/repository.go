package procurement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for purchase orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a purchase order with its items in one transaction. Each
// call produces a new independent order; there is no merge with prior runs.
func (r *Repository) Create(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, day, type, vendor_id, note, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`,
		po.Number, shared.Day(po.Day), string(po.Type), po.VendorID, po.Note, po.TotalAmount).Scan(&po.ID, &po.CreatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	for i := range po.Items {
		item := &po.Items[i]
		err = tx.QueryRow(ctx, `INSERT INTO purchase_order_items (purchase_order_id, product_id, product_code, demand_qty, stock_qty, buy_qty, unit_cost, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			po.ID, item.ProductID, item.ProductCode, item.DemandQty, item.StockQty, item.BuyQty, item.UnitCost, item.Amount).Scan(&item.ID)
		if err != nil {
			return PurchaseOrder{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// Get loads one purchase order with items.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := r.scanOne(r.pool.QueryRow(ctx, `SELECT id, number, day, type, vendor_id, note, total_amount, created_at
		FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items, err = r.getItems(ctx, po.ID)
	return po, err
}

// ListByDay returns every purchase order generated for a day, with items.
func (r *Repository) ListByDay(ctx context.Context, day time.Time) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, day, type, vendor_id, note, total_amount, created_at
		FROM purchase_orders WHERE day=$1 ORDER BY id`, shared.Day(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []PurchaseOrder
	for rows.Next() {
		po, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, po)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Items, err = r.getItems(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *Repository) scanOne(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var poType string
	if err := row.Scan(&po.ID, &po.Number, &po.Day, &poType, &po.VendorID, &po.Note, &po.TotalAmount, &po.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	po.Type = POType(poType)
	return po, nil
}

func (r *Repository) getItems(ctx context.Context, poID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, product_code, demand_qty, stock_qty, buy_qty, unit_cost, amount
		FROM purchase_order_items WHERE purchase_order_id=$1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductCode, &it.DemandQty, &it.StockQty, &it.BuyQty, &it.UnitCost, &it.Amount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
