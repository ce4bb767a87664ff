package business

import (
	"time"

	"github.com/freitasmatheusrn/pricecompare/pkg/pagination"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"

	CommissionPending   = "pending"
	CommissionApproved  = "approved"
	CommissionPaid      = "paid"
	CommissionCancelled = "cancelled"

	MaxCommissionBps = 10000
	statsWindowDays  = 30
)

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Website  string `json:"website"`
	Phone    string `json:"phone"`
}

type UpdateProfileInput struct {
	Name     *string `json:"name"`
	Website  *string `json:"website"`
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
}

type BusinessOutput struct {
	ID                pgtype.UUID `json:"id"`
	Name              string      `json:"name"`
	Email             string      `json:"email"`
	Website           string      `json:"website,omitempty"`
	Domain            string      `json:"domain,omitempty"`
	DomainVerified    bool        `json:"domain_verified"`
	Phone             string      `json:"phone,omitempty"`
	AffiliateID       string      `json:"affiliate_id"`
	CommissionRateBps int32       `json:"commission_rate_bps"`
	Status            string      `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
}

// CredentialsOutput is only returned on registration and key rotation.
type CredentialsOutput struct {
	ApiKey        string `json:"api_key"`
	ShopifySecret string `json:"shopify_secret,omitempty"`
}

type RegisterResult struct {
	Business    BusinessOutput    `json:"business"`
	Credentials CredentialsOutput `json:"credentials"`
}

type DailyPoint struct {
	Date        string `json:"date"`
	Clicks      int64  `json:"clicks"`
	Conversions int64  `json:"conversions"`
}

type StatsOutput struct {
	TotalClicks             int64        `json:"total_clicks"`
	TotalConversions        int64        `json:"total_conversions"`
	TotalRevenueCents       int64        `json:"total_revenue_cents"`
	TotalCommissionCents    int64        `json:"total_commission_cents"`
	ConversionRate          float64      `json:"conversion_rate"`
	PendingCommissionCents  int64        `json:"pending_commission_cents"`
	ApprovedCommissionCents int64        `json:"approved_commission_cents"`
	PaidCommissionCents     int64        `json:"paid_commission_cents"`
	Daily                   []DailyPoint `json:"daily"`
}

type ClickOutput struct {
	ID        pgtype.UUID `json:"id"`
	ClickID   string      `json:"click_id"`
	TargetURL string      `json:"target_url"`
	Referrer  string      `json:"referrer,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type ConversionOutput struct {
	ID               pgtype.UUID `json:"id"`
	OrderID          string      `json:"order_id"`
	ClickID          string      `json:"click_id,omitempty"`
	AmountCents      int64       `json:"amount_cents"`
	Currency         string      `json:"currency"`
	Source           string      `json:"source"`
	CommissionCents  int64       `json:"commission_cents"`
	CommissionStatus string      `json:"commission_status,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

type CommissionOutput struct {
	ID          pgtype.UUID `json:"id"`
	OrderID     string      `json:"order_id"`
	AmountCents int64       `json:"amount_cents"`
	RateBps     int32       `json:"rate_bps"`
	Status      string      `json:"status"`
	PaidAt      *time.Time  `json:"paid_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type Page[T any] struct {
	Items []T `json:"items"`
	pagination.Meta
}

// Admin

type ListBusinessesInput struct {
	pagination.Params
	Search string `query:"search"`
}

type SetStatusInput struct {
	Status string `json:"status"`
}

type SetCommissionRateInput struct {
	CommissionRateBps int32 `json:"commission_rate_bps"`
}

type SetCommissionStatusInput struct {
	Status string `json:"status"`
}

type PlatformStatsOutput struct {
	Users                  int64 `json:"users"`
	Businesses             int64 `json:"businesses"`
	ActiveBusinesses       int64 `json:"active_businesses"`
	Clicks                 int64 `json:"clicks"`
	Conversions            int64 `json:"conversions"`
	RevenueCents           int64 `json:"revenue_cents"`
	CommissionCents        int64 `json:"commission_cents"`
	PendingCommissionCents int64 `json:"pending_commission_cents"`
}
