package smtp

import (
	"bytes"
	"strings"
	"testing"
)

func TestMessage_BuildsMultipart(t *testing.T) {
	s := New("smtp.example.com", "user@example.com", "pass", 587, "", "PriceCompare")

	m, err := s.message("Assunto", "texto", "<p>html</p>", []string{"to@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("failed to write message: %v", err)
	}
	raw := buf.String()

	for _, want := range []string{"user@example.com", "to@example.com", "text/plain", "text/html"} {
		if !strings.Contains(raw, want) {
			t.Errorf("expected message to contain %q", want)
		}
	}
}

func TestMessage_InvalidRecipient(t *testing.T) {
	s := New("smtp.example.com", "user@example.com", "pass", 587, "noreply@example.com", "")

	if _, err := s.message("a", "b", "c", []string{"not an address"}); err == nil {
		t.Fatal("expected error for invalid recipient")
	}
}
