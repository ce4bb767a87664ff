package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderEvent     = "X-Webhook-Event"
	HeaderID        = "X-Webhook-Id"
)

var (
	ErrMalformedHeader = errors.New("malformed signature header")
	ErrMismatch        = errors.New("signature mismatch")
	ErrTooOld          = errors.New("signature timestamp outside tolerance")
)

// Sign returns the header value "t=<unix>,v1=<hex>" where v1 is
// HMAC-SHA256(secret, "<unix>.<body>").
func Sign(secret string, body []byte, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", unix, compute(secret, unix, body))
}

// Verify checks a header produced by Sign. tolerance <= 0 disables the age check.
func Verify(secret string, body []byte, header string, tolerance time.Duration, now time.Time) error {
	var unix, v1 string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			unix = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	if unix == "" || v1 == "" {
		return ErrMalformedHeader
	}

	sec, err := strconv.ParseInt(unix, 10, 64)
	if err != nil {
		return ErrMalformedHeader
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(sec, 0))
		if age > tolerance || age < -tolerance {
			return ErrTooOld
		}
	}

	expected := compute(secret, unix, body)
	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return ErrMismatch
	}
	return nil
}

// VerifyShopify validates the X-Shopify-Hmac-Sha256 header: base64 of
// HMAC-SHA256(secret, raw body).
func VerifyShopify(secret string, body []byte, header string) error {
	given, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil || len(given) == 0 {
		return ErrMalformedHeader
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), given) {
		return ErrMismatch
	}
	return nil
}

// ShopifyHeader builds the header value Shopify would send. Used by tests and tooling.
func ShopifyHeader(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func compute(secret, unix string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unix))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
