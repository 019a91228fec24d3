package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greengate-erp/greengate-erp/internal/directory"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the price history
// ledger, the margin configuration store, and frozen price snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional write operations.
type TxRepository interface {
	UpsertPriceEntry(ctx context.Context, entry PriceEntry) error
	UpsertTrailingMax(ctx context.Context, productID int64, day time.Time, amount float64) error
	UpsertPerishableMargin(ctx context.Context, grade directory.Grade, amount float64) error
	UpsertNonPerishableRule(ctx context.Context, rule NonPerishableRule) error
	AppendMarginAudit(ctx context.Context, audit MarginAudit) error
	UpsertSnapshot(ctx context.Context, snap Snapshot) error
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

// GetPrices returns observed prices for the given days, keyed by canonical
// day string. Days without an entry are simply absent.
func (r *Repository) GetPrices(ctx context.Context, productID int64, days []time.Time) (map[string]float64, error) {
	keys := make([]time.Time, 0, len(days))
	for _, d := range days {
		keys = append(keys, shared.Day(d))
	}
	rows, err := r.pool.Query(ctx, `SELECT day, price FROM price_entries WHERE product_id=$1 AND day = ANY($2)`, productID, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	prices := make(map[string]float64)
	for rows.Next() {
		var day time.Time
		var price float64
		if err := rows.Scan(&day, &price); err != nil {
			return nil, err
		}
		prices[shared.FormatDay(day)] = price
	}
	return prices, rows.Err()
}

// GetStoredTrailingMax returns the stored trailing maximum for a day, if any.
func (r *Repository) GetStoredTrailingMax(ctx context.Context, productID int64, day time.Time) (float64, bool, error) {
	var amount float64
	err := r.pool.QueryRow(ctx, `SELECT amount FROM trailing_maxes WHERE product_id=$1 AND day=$2`, productID, shared.Day(day)).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return amount, true, nil
}

// GetPerishableMargins loads the current perishable margin amounts per grade.
func (r *Repository) GetPerishableMargins(ctx context.Context) (map[directory.Grade]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT grade, amount FROM perishable_margins`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	margins := make(map[directory.Grade]float64)
	for rows.Next() {
		var grade string
		var amount float64
		if err := rows.Scan(&grade, &amount); err != nil {
			return nil, err
		}
		margins[directory.Grade(grade)] = amount
	}
	return margins, rows.Err()
}

// GetNonPerishableRules loads the current non-perishable rules per grade.
func (r *Repository) GetNonPerishableRules(ctx context.Context) (map[directory.Grade]NonPerishableRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT grade, shape, multiplier, min_multiplier, mid_multiplier, min_margin_check FROM non_perishable_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rules := make(map[directory.Grade]NonPerishableRule)
	for rows.Next() {
		var rule NonPerishableRule
		var grade, shape string
		if err := rows.Scan(&grade, &shape, &rule.Multiplier, &rule.MinMultiplier, &rule.MidMultiplier, &rule.MinMarginCheck); err != nil {
			return nil, err
		}
		rule.Grade = directory.Grade(grade)
		rule.Shape = RuleShape(shape)
		rules[rule.Grade] = rule
	}
	return rules, rows.Err()
}

// GetSnapshot returns the frozen grade-price table for a product/day, nil
// when none was taken.
func (r *Repository) GetSnapshot(ctx context.Context, productID int64, day time.Time) (map[directory.Grade]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT grade, price FROM price_snapshots WHERE product_id=$1 AND day=$2`, productID, shared.Day(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var prices map[directory.Grade]float64
	for rows.Next() {
		var grade string
		var price float64
		if err := rows.Scan(&grade, &price); err != nil {
			return nil, err
		}
		if prices == nil {
			prices = make(map[directory.Grade]float64)
		}
		prices[directory.Grade(grade)] = price
	}
	return prices, rows.Err()
}

// ListMarginAudit returns the append-only margin change trail, oldest first.
func (r *Repository) ListMarginAudit(ctx context.Context) ([]MarginAudit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, family, grade, field, old_value, new_value, actor, changed_at FROM margin_audit ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var trail []MarginAudit
	for rows.Next() {
		var a MarginAudit
		var grade string
		if err := rows.Scan(&a.ID, &a.Family, &grade, &a.Field, &a.OldValue, &a.NewValue, &a.Actor, &a.ChangedAt); err != nil {
			return nil, err
		}
		a.Grade = directory.Grade(grade)
		trail = append(trail, a)
	}
	return trail, rows.Err()
}

// PruneHistory deletes ledger entries and stored maxima older than the cutoff
// day, returning the number of removed price entries.
func (r *Repository) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	cutoff := shared.Day(before)
	tag, err := r.pool.Exec(ctx, `DELETE FROM price_entries WHERE day < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM trailing_maxes WHERE day < $1`, cutoff); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) UpsertPriceEntry(ctx context.Context, entry PriceEntry) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO price_entries (product_id, day, price, recorded_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id, day) DO UPDATE SET price=EXCLUDED.price, recorded_at=NOW()`,
		entry.ProductID, shared.Day(entry.Day), entry.Price)
	return err
}

func (t *txRepo) UpsertTrailingMax(ctx context.Context, productID int64, day time.Time, amount float64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO trailing_maxes (product_id, day, amount) VALUES ($1, $2, $3)
		ON CONFLICT (product_id, day) DO UPDATE SET amount=EXCLUDED.amount`,
		productID, shared.Day(day), amount)
	return err
}

func (t *txRepo) UpsertPerishableMargin(ctx context.Context, grade directory.Grade, amount float64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO perishable_margins (grade, amount) VALUES ($1, $2)
		ON CONFLICT (grade) DO UPDATE SET amount=EXCLUDED.amount`,
		string(grade), amount)
	return err
}

func (t *txRepo) UpsertNonPerishableRule(ctx context.Context, rule NonPerishableRule) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO non_perishable_rules (grade, shape, multiplier, min_multiplier, mid_multiplier, min_margin_check) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (grade) DO UPDATE SET shape=EXCLUDED.shape, multiplier=EXCLUDED.multiplier, min_multiplier=EXCLUDED.min_multiplier, mid_multiplier=EXCLUDED.mid_multiplier, min_margin_check=EXCLUDED.min_margin_check`,
		string(rule.Grade), string(rule.Shape), rule.Multiplier, rule.MinMultiplier, rule.MidMultiplier, rule.MinMarginCheck)
	return err
}

func (t *txRepo) AppendMarginAudit(ctx context.Context, audit MarginAudit) error {
	at := audit.ChangedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO margin_audit (family, grade, field, old_value, new_value, actor, changed_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		audit.Family, string(audit.Grade), audit.Field, audit.OldValue, audit.NewValue, audit.Actor, at)
	return err
}

func (t *txRepo) UpsertSnapshot(ctx context.Context, snap Snapshot) error {
	day := shared.Day(snap.Day)
	for grade, price := range snap.Prices {
		_, err := t.tx.Exec(ctx, `INSERT INTO price_snapshots (product_id, day, grade, price) VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, day, grade) DO UPDATE SET price=EXCLUDED.price`,
			snap.ProductID, day, string(grade), price)
		if err != nil {
			return err
		}
	}
	return nil
}
