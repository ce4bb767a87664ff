package webhooks

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	EventConversionCreated = "conversion.created"
	EventClickCreated      = "click.created"
	EventCommissionUpdated = "commission.updated"
	EventDomainVerified    = "domain.verified"
	EventTest              = "webhook.test"
	EventAll               = "*"

	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

var subscribableEvents = map[string]bool{
	EventConversionCreated: true,
	EventClickCreated:      true,
	EventCommissionUpdated: true,
	EventDomainVerified:    true,
	EventAll:               true,
}

type CreateInput struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type WebhookOutput struct {
	ID        pgtype.UUID `json:"id"`
	URL       string      `json:"url"`
	Events    []string    `json:"events"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreatedOutput is the only response that carries the signing secret.
type CreatedOutput struct {
	WebhookOutput
	Secret string `json:"secret"`
}

type DeliveryOutput struct {
	ID            pgtype.UUID     `json:"id"`
	Event         string          `json:"event"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	Attempts      int32           `json:"attempts"`
	ResponseCode  *int32          `json:"response_code,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Envelope is the JSON body POSTed to subscribers.
type Envelope struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}
