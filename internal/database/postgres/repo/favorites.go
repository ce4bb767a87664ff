package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const favoriteColumns = `id, user_id, product_id, product_url, title, price_cents, currency, image_url, store, created_at`

func scanFavorite(row pgx.Row) (Favorite, error) {
	var f Favorite
	err := row.Scan(
		&f.ID, &f.UserID, &f.ProductID, &f.ProductUrl, &f.Title,
		&f.PriceCents, &f.Currency, &f.ImageUrl, &f.Store, &f.CreatedAt,
	)
	return f, err
}

type CreateFavoriteParams struct {
	UserID     pgtype.UUID
	ProductID  pgtype.UUID
	ProductUrl string
	Title      string
	PriceCents pgtype.Int8
	Currency   pgtype.Text
	ImageUrl   pgtype.Text
	Store      pgtype.Text
}

func (q *Queries) CreateFavorite(ctx context.Context, arg CreateFavoriteParams) (Favorite, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO favorites
    (user_id, product_id, product_url, title, price_cents, currency, image_url, store)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+favoriteColumns,
		arg.UserID, arg.ProductID, arg.ProductUrl, arg.Title,
		arg.PriceCents, arg.Currency, arg.ImageUrl, arg.Store,
	)
	return scanFavorite(row)
}

type ListFavoritesByUserParams struct {
	UserID pgtype.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListFavoritesByUser(ctx context.Context, arg ListFavoritesByUserParams) ([]Favorite, error) {
	rows, err := q.db.Query(ctx, `SELECT `+favoriteColumns+` FROM favorites
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Favorite
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (q *Queries) CountFavoritesByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM favorites WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

type DeleteFavoriteParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

// DeleteFavorite returns the number of rows removed; 0 means the favorite is
// missing or belongs to another user.
func (q *Queries) DeleteFavorite(ctx context.Context, arg DeleteFavoriteParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM favorites WHERE id = $1 AND user_id = $2`, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type FavoriteUserRow struct {
	UserID pgtype.UUID
	Name   string
	Email  string
}

func (q *Queries) ListFavoriteUsersByProduct(ctx context.Context, productID pgtype.UUID) ([]FavoriteUserRow, error) {
	rows, err := q.db.Query(ctx, `SELECT DISTINCT u.id, u.name, u.email
FROM favorites f
JOIN users u ON u.id = f.user_id
WHERE f.product_id = $1`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FavoriteUserRow
	for rows.Next() {
		var r FavoriteUserRow
		if err := rows.Scan(&r.UserID, &r.Name, &r.Email); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
