package repo

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID        pgtype.UUID
	Name      string
	Email     string
	Password  string
	Role      string
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type Business struct {
	ID                   pgtype.UUID
	Name                 string
	Email                string
	Password             string
	Website              pgtype.Text
	Domain               pgtype.Text
	DomainVerified       bool
	Phone                pgtype.Text
	AffiliateID          string
	ApiKey               string
	ShopifySecret        string
	CommissionRateBps    int32
	Status               string
	TotalClicks          int64
	TotalConversions     int64
	TotalRevenueCents    int64
	TotalCommissionCents int64
	CreatedAt            pgtype.Timestamptz
	UpdatedAt            pgtype.Timestamptz
}

type Product struct {
	ID                pgtype.UUID
	Url               string
	Title             string
	Brand             pgtype.Text
	Model             pgtype.Text
	ImageUrl          pgtype.Text
	Store             pgtype.Text
	Currency          pgtype.Text
	CurrentPriceCents pgtype.Int8
	LastCheckedAt     pgtype.Timestamptz
	CreatedAt         pgtype.Timestamptz
}

type PriceSnapshot struct {
	ID          pgtype.UUID
	ProductID   pgtype.UUID
	PriceCents  int64
	Currency    pgtype.Text
	Source      string
	CollectedAt pgtype.Timestamptz
}

type Favorite struct {
	ID         pgtype.UUID
	UserID     pgtype.UUID
	ProductID  pgtype.UUID
	ProductUrl string
	Title      string
	PriceCents pgtype.Int8
	Currency   pgtype.Text
	ImageUrl   pgtype.Text
	Store      pgtype.Text
	CreatedAt  pgtype.Timestamptz
}

type ClickLog struct {
	ID         pgtype.UUID
	BusinessID pgtype.UUID
	ClickID    string
	TargetUrl  string
	Ip         pgtype.Text
	UserAgent  pgtype.Text
	Referrer   pgtype.Text
	UserID     pgtype.UUID
	CreatedAt  pgtype.Timestamptz
}

type Conversion struct {
	ID          pgtype.UUID
	BusinessID  pgtype.UUID
	ClickID     pgtype.Text
	OrderID     string
	AmountCents int64
	Currency    string
	Source      string
	CreatedAt   pgtype.Timestamptz
}

type Sale struct {
	ID           pgtype.UUID
	BusinessID   pgtype.UUID
	ConversionID pgtype.UUID
	OrderID      string
	AmountCents  int64
	Currency     string
	CreatedAt    pgtype.Timestamptz
}

type Commission struct {
	ID          pgtype.UUID
	BusinessID  pgtype.UUID
	SaleID      pgtype.UUID
	AmountCents int64
	RateBps     int32
	Status      string
	PaidAt      pgtype.Timestamptz
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

type TrackingEvent struct {
	ID         pgtype.UUID
	BusinessID pgtype.UUID
	EventType  string
	SessionID  pgtype.Text
	PageUrl    pgtype.Text
	ClickID    pgtype.Text
	Data       []byte
	CreatedAt  pgtype.Timestamptz
}

type Webhook struct {
	ID         pgtype.UUID
	BusinessID pgtype.UUID
	Url        string
	Events     []string
	Secret     string
	Active     bool
	CreatedAt  pgtype.Timestamptz
}

type WebhookDelivery struct {
	ID            pgtype.UUID
	WebhookID     pgtype.UUID
	Event         string
	Payload       []byte
	Status        string
	Attempts      int32
	ResponseCode  pgtype.Int4
	LastError     pgtype.Text
	NextAttemptAt pgtype.Timestamptz
	DeliveredAt   pgtype.Timestamptz
	CreatedAt     pgtype.Timestamptz
}

type DomainVerification struct {
	ID         pgtype.UUID
	BusinessID pgtype.UUID
	Domain     string
	Token      string
	Method     string
	Status     string
	Attempts   int32
	LastError  pgtype.Text
	VerifiedAt pgtype.Timestamptz
	CreatedAt  pgtype.Timestamptz
}
