package signature

import (
	"errors"
	"testing"
	"time"
)

func TestSignVerify(t *testing.T) {
	body := []byte(`{"event":"conversion.created"}`)
	now := time.Unix(1700000000, 0)

	header := Sign("whsec_abc", body, now)

	if err := Verify("whsec_abc", body, header, 5*time.Minute, now.Add(time.Minute)); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerify_TamperedBody(t *testing.T) {
	now := time.Unix(1700000000, 0)
	header := Sign("whsec_abc", []byte(`{"a":1}`), now)

	err := Verify("whsec_abc", []byte(`{"a":2}`), header, 0, now)
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	header := Sign("s", []byte("x"), now)

	err := Verify("s", []byte("x"), header, time.Minute, now.Add(10*time.Minute))
	if !errors.Is(err, ErrTooOld) {
		t.Fatalf("expected ErrTooOld, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	if err := Verify("s", []byte("x"), "garbage", 0, time.Now()); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestVerifyShopify(t *testing.T) {
	body := []byte(`{"id":820982911946154508,"total_price":"199.00"}`)
	header := ShopifyHeader("shpss_secret", body)

	if err := VerifyShopify("shpss_secret", body, header); err != nil {
		t.Fatalf("expected valid shopify hmac, got %v", err)
	}
	if err := VerifyShopify("other", body, header); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := VerifyShopify("shpss_secret", body, "%%%"); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("expected malformed, got %v", err)
	}
}
