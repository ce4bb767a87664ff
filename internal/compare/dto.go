package compare

import (
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	SourceN8N       = "n8n"
	SourceSearchAPI = "searchapi"

	maxURLLength   = 2048
	maxComparisons = 20
)

type CompareInput struct {
	URL string `json:"url"`
}

type Product struct {
	Title      string `json:"title"`
	Brand      string `json:"brand,omitempty"`
	Model      string `json:"model,omitempty"`
	PriceCents int64  `json:"price_cents,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Image      string `json:"image,omitempty"`
	Store      string `json:"store,omitempty"`
	URL        string `json:"url"`
}

type Offer struct {
	Title      string `json:"title"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency,omitempty"`
	Store      string `json:"store,omitempty"`
	URL        string `json:"url"`
	Image      string `json:"image,omitempty"`
}

type CompareOutput struct {
	ProductID   *pgtype.UUID `json:"product_id,omitempty"`
	Product     Product      `json:"product"`
	Comparisons []Offer      `json:"comparisons"`
	Source      string       `json:"source"`
	Cached      bool         `json:"cached"`
}

// Identity is what the fallback path knows about a product before searching.
type Identity struct {
	Title string `json:"title"`
	Brand string `json:"brand"`
	Model string `json:"model"`
}
