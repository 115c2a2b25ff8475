// Package sor is the source-of-record access layer reconciliation writes
// through: the catalog products table plus the review/price history tables
// (spec §3, §4.I).
package sor

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Product is one catalog row as held by the source of record, addressed by
// platform + product id.
type Product struct {
	ProductSetID    string    `db:"product_set_id"`
	Platform        string    `db:"platform"`
	ProductID       string    `db:"product_id"`
	Name            string    `db:"name"`
	Thumbnail       string    `db:"thumbnail"`
	OriginalPrice   float64   `db:"original_price"`
	DiscountedPrice float64   `db:"discounted_price"`
	SaleState       string    `db:"sale_state"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// ReviewClassification labels a review history entry per spec §4.I step 7.
type ReviewClassification string

const (
	ReviewOnlyPrice ReviewClassification = "only-price"
	ReviewAll       ReviewClassification = "all"
	ReviewConfused  ReviewClassification = "confused"
)

// ReviewHistoryEntry records one reconciliation write for audit purposes.
type ReviewHistoryEntry struct {
	Platform       string               `db:"platform"`
	ProductID      string               `db:"product_id"`
	Classification ReviewClassification `db:"classification"`
	Comment        string               `db:"comment"`
	CreatedAt      time.Time            `db:"created_at"`
}

// PriceHistoryEntry records a price change, written only when either price
// field actually changed.
type PriceHistoryEntry struct {
	Platform        string    `db:"platform"`
	ProductID       string    `db:"product_id"`
	OriginalPrice   float64   `db:"original_price"`
	DiscountedPrice float64   `db:"discounted_price"`
	CreatedAt       time.Time `db:"created_at"`
}

// Store is the source-of-record read/write surface reconciliation and the
// fetch node need. DB is the Postgres-backed implementation; tests
// substitute an in-memory fake.
type Store interface {
	Get(ctx context.Context, platform, productID string) (*Product, error)
	ListByPlatformAndSaleState(ctx context.Context, platform, saleState string) ([]*Product, error)
	ApplyUpdate(ctx context.Context, platform, productID string, fields map[string]any) error
	RecordReview(ctx context.Context, entry ReviewHistoryEntry) error
	RecordPriceChange(ctx context.Context, entry PriceHistoryEntry) error
}

// DB wraps a sqlx connection to the Postgres-backed source of record.
type DB struct {
	conn *sqlx.DB
}

var _ Store = (*DB)(nil)

// Open connects to dsn (a standard Postgres connection string) using the
// pq driver.
func Open(dsn string) (*DB, error) {
	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sor: connect: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Get reads one product row, or sql.ErrNoRows via sqlx if absent.
func (d *DB) Get(ctx context.Context, platform, productID string) (*Product, error) {
	var p Product
	err := d.conn.GetContext(ctx, &p, `
		SELECT product_set_id, platform, product_id, name, thumbnail, original_price, discounted_price, sale_state, updated_at
		FROM catalog_products
		WHERE platform = $1 AND product_id = $2
	`, platform, productID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByPlatformAndSaleState returns every catalog row for platform
// currently recorded in sale-state saleState, the batch a fetch node
// re-verifies in one job (the scheduler admits work per platform +
// sale-state, not per product; spec §4.E step 3).
func (d *DB) ListByPlatformAndSaleState(ctx context.Context, platform, saleState string) ([]*Product, error) {
	var products []*Product
	err := d.conn.SelectContext(ctx, &products, `
		SELECT product_set_id, platform, product_id, name, thumbnail, original_price, discounted_price, sale_state, updated_at
		FROM catalog_products
		WHERE platform = $1 AND sale_state = $2
	`, platform, saleState)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// ApplyUpdate applies a sparse field-masked update to one product row.
// fields keys are column names from {name, thumbnail, original_price,
// discounted_price, sale_state}; callers are expected to have already
// dropped zero-field updates before calling.
func (d *DB) ApplyUpdate(ctx context.Context, platform, productID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := []any{platform, productID}
	i := 3
	for col, val := range fields {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", i))
	args = append(args, time.Now().UTC())

	query := fmt.Sprintf(`
		UPDATE catalog_products
		SET %s
		WHERE platform = $1 AND product_id = $2
	`, joinComma(setClauses))

	_, err := d.conn.ExecContext(ctx, query, args...)
	return err
}

// RecordReview inserts one review history row.
func (d *DB) RecordReview(ctx context.Context, entry ReviewHistoryEntry) error {
	entry.CreatedAt = time.Now().UTC()
	_, err := d.conn.NamedExecContext(ctx, `
		INSERT INTO catalog_review_history (platform, product_id, classification, comment, created_at)
		VALUES (:platform, :product_id, :classification, :comment, :created_at)
	`, entry)
	return err
}

// RecordPriceChange inserts one price history row.
func (d *DB) RecordPriceChange(ctx context.Context, entry PriceHistoryEntry) error {
	entry.CreatedAt = time.Now().UTC()
	_, err := d.conn.NamedExecContext(ctx, `
		INSERT INTO catalog_price_history (platform, product_id, original_price, discounted_price, created_at)
		VALUES (:platform, :product_id, :original_price, :discounted_price, :created_at)
	`, entry)
	return err
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
