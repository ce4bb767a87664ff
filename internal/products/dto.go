package products

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	SourceCrawler = "crawler"

	defaultHistoryLimit = 90
	maxHistoryLimit     = 500
)

type ProductOutput struct {
	ID                pgtype.UUID `json:"id"`
	URL               string      `json:"url"`
	Title             string      `json:"title"`
	Brand             string      `json:"brand,omitempty"`
	Model             string      `json:"model,omitempty"`
	ImageURL          string      `json:"image_url,omitempty"`
	Store             string      `json:"store,omitempty"`
	Currency          string      `json:"currency,omitempty"`
	CurrentPriceCents *int64      `json:"current_price_cents,omitempty"`
	LastCheckedAt     *time.Time  `json:"last_checked_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

type SnapshotOutput struct {
	ID          pgtype.UUID `json:"id"`
	PriceCents  int64       `json:"price_cents"`
	Currency    string      `json:"currency,omitempty"`
	Source      string      `json:"source"`
	CollectedAt time.Time   `json:"collected_at"`
}

type ProductWithSnapshotOutput struct {
	Product        ProductOutput   `json:"product"`
	LatestSnapshot *SnapshotOutput `json:"latest_snapshot,omitempty"`
}

type HistoryInput struct {
	Limit int `query:"limit"`
}

type HistoryOutput struct {
	ProductID pgtype.UUID      `json:"product_id"`
	Snapshots []SnapshotOutput `json:"snapshots"`
	MinCents  int64            `json:"min_cents"`
	MaxCents  int64            `json:"max_cents"`
}

// Crawler DTOs

type CrawlerJob struct {
	ProductID pgtype.UUID
	URL       string
	jobID     string // set for jobs whose result goes back to a waiting caller
}

type CrawledData struct {
	Title      string
	PriceCents int64
	Currency   string
}

// PriceChange is reported when a crawl finds a price different from the
// stored one.
type PriceChange struct {
	ProductID pgtype.UUID
	URL       string
	Title     string
	Currency  string
	OldCents  int64
	NewCents  int64
}

func (c PriceChange) Dropped() bool {
	return c.NewCents < c.OldCents
}
