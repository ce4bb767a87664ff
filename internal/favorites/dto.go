package favorites

import (
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/compare"
	"github.com/freitasmatheusrn/pricecompare/pkg/pagination"
	"github.com/jackc/pgx/v5/pgtype"
)

type AddInput struct {
	ProductURL string        `json:"product_url"`
	Title      string        `json:"title"`
	Price      compare.Price `json:"price"`
	Currency   string        `json:"currency"`
	ImageURL   string        `json:"image_url"`
	Store      string        `json:"store"`
}

type FavoriteOutput struct {
	ID         pgtype.UUID `json:"id"`
	ProductID  pgtype.UUID `json:"product_id"`
	ProductURL string      `json:"product_url"`
	Title      string      `json:"title"`
	PriceCents *int64      `json:"price_cents,omitempty"`
	Currency   string      `json:"currency,omitempty"`
	ImageURL   string      `json:"image_url,omitempty"`
	Store      string      `json:"store,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

type Page struct {
	Items []FavoriteOutput `json:"items"`
	pagination.Meta
}
