package tracking

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	EventPageView  = "page_view"
	EventAddToCart = "add_to_cart"
	EventCheckout  = "checkout"
	EventPurchase  = "purchase"
	EventCustom    = "custom"

	SourceAPI     = "api"
	SourceScript  = "script"
	SourceShopify = "shopify"

	ClickParam = "pc_click_id"
)

var allowedEvents = map[string]bool{
	EventPageView:  true,
	EventAddToCart: true,
	EventCheckout:  true,
	EventPurchase:  true,
	EventCustom:    true,
}

type ClickInput struct {
	AffiliateID string
	TargetURL   string
	UserID      string
	IP          string
	UserAgent   string
	Referrer    string
}

type ClickResult struct {
	ClickID     string
	RedirectURL string
	Duplicate   bool
}

type EventInput struct {
	EventType string          `json:"event_type"`
	SessionID string          `json:"session_id"`
	PageURL   string          `json:"page_url"`
	ClickID   string          `json:"click_id"`
	Data      json.RawMessage `json:"data"`
	OrderID   string          `json:"order_id"`
	Amount    Amount          `json:"amount"`
	Currency  string          `json:"currency"`
}

type EventOutput struct {
	ID         pgtype.UUID       `json:"id"`
	EventType  string            `json:"event_type"`
	Conversion *ConversionOutput `json:"conversion,omitempty"`
}

type ConversionInput struct {
	OrderID  string `json:"order_id"`
	Amount   Amount `json:"amount"`
	Currency string `json:"currency"`
	ClickID  string `json:"click_id"`
}

type ConversionOutput struct {
	ID              pgtype.UUID `json:"id"`
	OrderID         string      `json:"order_id"`
	ClickID         string      `json:"click_id,omitempty"`
	AmountCents     int64       `json:"amount_cents"`
	Currency        string      `json:"currency"`
	Source          string      `json:"source"`
	CommissionCents int64       `json:"commission_cents"`
	Duplicate       bool        `json:"duplicate"`
	CreatedAt       time.Time   `json:"created_at"`
}

type ShopifyResult struct {
	Topic      string            `json:"topic"`
	Conversion *ConversionOutput `json:"conversion,omitempty"`
	EventID    *pgtype.UUID      `json:"event_id,omitempty"`
}
