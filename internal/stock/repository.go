package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for on-hand quantities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetQty returns the on-hand quantity for a product, zero when no entry
// exists.
func (r *Repository) GetQty(ctx context.Context, productID int64) (int, error) {
	var qty int
	err := r.pool.QueryRow(ctx, `SELECT qty FROM stock_entries WHERE product_id=$1`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

// List returns every stock entry.
func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, qty, updated_at FROM stock_entries ORDER BY product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ProductID, &e.Qty, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Upsert writes the quantity for one product.
func (r *Repository) Upsert(ctx context.Context, productID int64, qty int) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO stock_entries (product_id, qty, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (product_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`, productID, qty)
	return err
}
