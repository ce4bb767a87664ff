package mailjet

import "testing"

func TestMail_OneRecipientPerAddress(t *testing.T) {
	m := New("key", "secret", "noreply@example.com", "PriceCompare")

	info := m.mail("s", "t", "h", []string{"a@example.com", "b@example.com"})

	if len(info.Recipients) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(info.Recipients))
	}
	if info.Recipients[0].Email != "a@example.com" {
		t.Errorf("unexpected first recipient %q", info.Recipients[0].Email)
	}
	if info.FromEmail != "noreply@example.com" || info.FromName != "PriceCompare" {
		t.Errorf("unexpected sender %q <%s>", info.FromName, info.FromEmail)
	}
}
