package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for products and vendors.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, code, name, family, purchase_price, min_price, mid_price, vendor_id, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Family, &p.PurchasePrice, &p.MinPrice, &p.MidPrice, &p.VendorID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// CreateProduct inserts a product and returns its ID.
func (r *Repository) CreateProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (code, name, family, purchase_price, min_price, mid_price, vendor_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING id`,
		p.Code, p.Name, string(p.Family), p.PurchasePrice, p.MinPrice, p.MidPrice, p.VendorID, p.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

// UpdateProduct persists mutable product fields. Family is intentionally not
// part of the statement.
func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET name=$2, purchase_price=$3, min_price=$4, mid_price=$5, vendor_id=$6, is_active=$7, updated_at=NOW() WHERE id=$1`,
		p.ID, p.Name, p.PurchasePrice, p.MinPrice, p.MidPrice, p.VendorID, p.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProduct returns a product by ID.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

// GetProductByCode returns a product by its unique code.
func (r *Repository) GetProductByCode(ctx context.Context, code string) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code=$1`, code))
}

// ListProducts returns products, optionally only active ones.
func (r *Repository) ListProducts(ctx context.Context, onlyActive bool) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if onlyActive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CreateVendor inserts a vendor and returns its ID.
func (r *Repository) CreateVendor(ctx context.Context, v Vendor) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO vendors (code, name, phone, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING id`,
		v.Code, v.Name, v.Phone, v.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

// GetVendor returns a vendor by ID.
func (r *Repository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	var v Vendor
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, phone, is_active, created_at, updated_at FROM vendors WHERE id=$1`, id).
		Scan(&v.ID, &v.Code, &v.Name, &v.Phone, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, ErrNotFound
		}
		return Vendor{}, err
	}
	return v, nil
}

// GetVendorByCode returns a vendor by its unique code.
func (r *Repository) GetVendorByCode(ctx context.Context, code string) (Vendor, error) {
	var v Vendor
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, phone, is_active, created_at, updated_at FROM vendors WHERE code=$1`, code).
		Scan(&v.ID, &v.Code, &v.Name, &v.Phone, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, ErrNotFound
		}
		return Vendor{}, err
	}
	return v, nil
}

// ListVendors returns all vendors ordered by code.
func (r *Repository) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, phone, is_active, created_at, updated_at FROM vendors ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Code, &v.Name, &v.Phone, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}
