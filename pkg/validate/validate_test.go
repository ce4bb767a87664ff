package validate

import "testing"

func TestEmail(t *testing.T) {
	valid := []string{"ana@example.com", "a.b+c@sub.example.com.br"}
	invalid := []string{"", "ana", "ana@example", "ana@.com", "ana@example.", "Ana <ana@example.com>", "a@b@c.com"}

	for _, e := range valid {
		if !Email(e) {
			t.Errorf("expected %q to be valid", e)
		}
	}
	for _, e := range invalid {
		if Email(e) {
			t.Errorf("expected %q to be invalid", e)
		}
	}
}

func TestPassword(t *testing.T) {
	if Password("1234567") {
		t.Error("7 chars should be rejected")
	}
	if !Password("12345678") {
		t.Error("8 chars should be accepted")
	}
}

func TestCredentials(t *testing.T) {
	if err := Credentials("Ana", "ana@example.com", "secret123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Credentials("", "bad", "short")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Code != 400 {
		t.Errorf("expected 400, got %d", err.Code)
	}
	if len(err.Causes) != 3 {
		t.Errorf("expected 3 causes, got %d", len(err.Causes))
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://www.Loja.com.br/produtos", "loja.com.br", true},
		{"loja.com:8443", "loja.com", true},
		{"shop.loja.com", "shop.loja.com", true},
		{"localhost", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := Domain(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Domain(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHostMatches(t *testing.T) {
	if !HostMatches("www.loja.com", "loja.com") {
		t.Error("www prefix should match")
	}
	if !HostMatches("checkout.loja.com", "loja.com") {
		t.Error("subdomain should match")
	}
	if HostMatches("fakeloja.com", "loja.com") {
		t.Error("suffix without dot must not match")
	}
}
