package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, url, title, brand, model, image_url, store, currency, current_price_cents, last_checked_at, created_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Url, &p.Title, &p.Brand, &p.Model, &p.ImageUrl, &p.Store,
		&p.Currency, &p.CurrentPriceCents, &p.LastCheckedAt, &p.CreatedAt,
	)
	return p, err
}

type UpsertProductParams struct {
	Url               string
	Title             string
	Brand             pgtype.Text
	Model             pgtype.Text
	ImageUrl          pgtype.Text
	Store             pgtype.Text
	Currency          pgtype.Text
	CurrentPriceCents pgtype.Int8
}

// UpsertProduct keeps existing values for any field passed as NULL.
func (q *Queries) UpsertProduct(ctx context.Context, arg UpsertProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO products
    (url, title, brand, model, image_url, store, currency, current_price_cents, last_checked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $8::bigint IS NULL THEN NULL ELSE now() END)
ON CONFLICT (url) DO UPDATE SET
    title = EXCLUDED.title,
    brand = COALESCE(EXCLUDED.brand, products.brand),
    model = COALESCE(EXCLUDED.model, products.model),
    image_url = COALESCE(EXCLUDED.image_url, products.image_url),
    store = COALESCE(EXCLUDED.store, products.store),
    currency = COALESCE(EXCLUDED.currency, products.currency),
    current_price_cents = COALESCE(EXCLUDED.current_price_cents, products.current_price_cents),
    last_checked_at = COALESCE(EXCLUDED.last_checked_at, products.last_checked_at)
RETURNING `+productColumns,
		arg.Url, arg.Title, arg.Brand, arg.Model, arg.ImageUrl, arg.Store, arg.Currency, arg.CurrentPriceCents,
	)
	return scanProduct(row)
}

func (q *Queries) FindProductByID(ctx context.Context, id pgtype.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (q *Queries) FindProductByURL(ctx context.Context, url string) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE url = $1`, url))
}

type UpdateProductPriceParams struct {
	ID         pgtype.UUID
	Title      pgtype.Text
	PriceCents int64
}

func (q *Queries) UpdateProductPrice(ctx context.Context, arg UpdateProductPriceParams) error {
	_, err := q.db.Exec(ctx, `UPDATE products SET
    title = COALESCE($2, title),
    current_price_cents = $3,
    last_checked_at = now()
WHERE id = $1`, arg.ID, arg.Title, arg.PriceCents)
	return err
}

// ListProductsToRefresh returns products that at least one user follows.
func (q *Queries) ListProductsToRefresh(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, `SELECT `+productColumns+` FROM products p
WHERE EXISTS (SELECT 1 FROM favorites f WHERE f.product_id = p.id)
ORDER BY last_checked_at ASC NULLS FIRST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const snapshotColumns = `id, product_id, price_cents, currency, source, collected_at`

func scanSnapshot(row pgx.Row) (PriceSnapshot, error) {
	var s PriceSnapshot
	err := row.Scan(&s.ID, &s.ProductID, &s.PriceCents, &s.Currency, &s.Source, &s.CollectedAt)
	return s, err
}

type CreatePriceSnapshotParams struct {
	ProductID  pgtype.UUID
	PriceCents int64
	Currency   pgtype.Text
	Source     string
}

func (q *Queries) CreatePriceSnapshot(ctx context.Context, arg CreatePriceSnapshotParams) (PriceSnapshot, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO price_snapshots (product_id, price_cents, currency, source)
VALUES ($1, $2, $3, $4)
RETURNING `+snapshotColumns, arg.ProductID, arg.PriceCents, arg.Currency, arg.Source)
	return scanSnapshot(row)
}

func (q *Queries) GetLatestPriceSnapshot(ctx context.Context, productID pgtype.UUID) (PriceSnapshot, error) {
	return scanSnapshot(q.db.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM price_snapshots
WHERE product_id = $1
ORDER BY collected_at DESC
LIMIT 1`, productID))
}

type ListPriceSnapshotsParams struct {
	ProductID pgtype.UUID
	Limit     int32
}

func (q *Queries) ListPriceSnapshots(ctx context.Context, arg ListPriceSnapshotsParams) ([]PriceSnapshot, error) {
	rows, err := q.db.Query(ctx, `SELECT `+snapshotColumns+` FROM price_snapshots
WHERE product_id = $1
ORDER BY collected_at DESC
LIMIT $2`, arg.ProductID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PriceSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
