package domains

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	MethodDNS  = "dns"
	MethodFile = "file"

	StatusPending  = "pending"
	StatusVerified = "verified"

	EventDomainVerified = "domain.verified"

	tokenPrefix   = "pc-verify="
	wellKnownPath = "/.well-known/pricecompare-verification.txt"
)

type StartInput struct {
	Domain string `json:"domain"`
	Method string `json:"method"`
}

type Instructions struct {
	RecordType  string `json:"record_type,omitempty"`
	RecordName  string `json:"record_name,omitempty"`
	RecordValue string `json:"record_value,omitempty"`
	FileURL     string `json:"file_url,omitempty"`
	FileContent string `json:"file_content,omitempty"`
}

type VerificationOutput struct {
	ID           pgtype.UUID   `json:"id"`
	Domain       string        `json:"domain"`
	Method       string        `json:"method"`
	Token        string        `json:"token"`
	Status       string        `json:"status"`
	Attempts     int32         `json:"attempts"`
	LastError    string        `json:"last_error,omitempty"`
	VerifiedAt   *time.Time    `json:"verified_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	Instructions *Instructions `json:"instructions,omitempty"`
}
