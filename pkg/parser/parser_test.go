package parser

import (
	"errors"
	"testing"
)

func TestCentsFromString(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1299.90", 129990},
		{"1.299,90", 129990},
		{"R$ 1.299,90", 129990},
		{"$1,299.90", 129990},
		{"1,299", 129900},
		{"1.299", 129900},
		{"49", 4900},
		{"49.9", 4990},
		{"US$ 0,99", 99},
	}

	for _, tt := range tests {
		got, err := CentsFromString(tt.in)
		if err != nil {
			t.Errorf("CentsFromString(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CentsFromString(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCentsFromString_Empty(t *testing.T) {
	if _, err := CentsFromString("grátis"); err == nil {
		t.Error("expected error for string without digits")
	}
}

func TestCentsFromString_TooLarge(t *testing.T) {
	for _, in := range []string{"R$ 10.000.000.000,01", "184467440737095516,17", "99999999999999999999999"} {
		if _, err := CentsFromString(in); !errors.Is(err, ErrAmountTooLarge) {
			t.Errorf("CentsFromString(%q) expected ErrAmountTooLarge, got %v", in, err)
		}
	}
	got, err := CentsFromString("R$ 10.000.000.000,00")
	if err != nil || got != MaxCents {
		t.Errorf("expected MaxCents, got %d (%v)", got, err)
	}
}

func TestPgUUIDRoundTrip(t *testing.T) {
	id := NewPgUUID()
	s, err := PgUUIDToString(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := PgUUIDFromString(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back != id {
		t.Error("expected same uuid after conversion")
	}
	if MustPgUUIDToString(back) != s {
		t.Error("MustPgUUIDToString mismatch")
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents    int64
		currency string
		want     string
	}{
		{129990, "BRL", "R$ 1.299,90"},
		{5, "", "R$ 0,05"},
		{129990, "usd", "$1,299.90"},
		{100000000, "EUR", "EUR 1,000,000.00"},
		{-250, "BRL", "-R$ 2,50"},
	}

	for _, tt := range tests {
		if got := FormatCents(tt.cents, tt.currency); got != tt.want {
			t.Errorf("FormatCents(%d, %q) = %q, want %q", tt.cents, tt.currency, got, tt.want)
		}
	}
}
