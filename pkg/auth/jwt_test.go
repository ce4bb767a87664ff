package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseJWT(t *testing.T) {
	claims := NewClaims("0b5e7d4c-59b2-4bb8-9d59-1d1a3c4a7f10", "loja@example.com", RoleBusiness, 900)

	token, err := GenerateJWT(claims, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if parsed.SubjectID != claims.SubjectID {
		t.Errorf("expected subject %s, got %s", claims.SubjectID, parsed.SubjectID)
	}
	if parsed.Role != RoleBusiness {
		t.Errorf("expected role %s, got %s", RoleBusiness, parsed.Role)
	}
	if parsed.Subject != claims.SubjectID {
		t.Errorf("registered subject should mirror sub_id")
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	token, _ := GenerateJWT(NewClaims("id", "a@b.com", RoleUser, 900), "secret")

	if _, err := ParseJWT(token, "other"); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestParseJWT_Expired(t *testing.T) {
	claims := NewClaims("id", "a@b.com", RoleUser, 900)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	token, _ := GenerateJWT(claims, "secret")

	if _, err := ParseJWT(token, "secret"); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestHashTokenIsStable(t *testing.T) {
	token, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if HashToken(token) != HashToken(token) {
		t.Error("hash should be deterministic")
	}
	if len(HashToken(token)) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(HashToken(token)))
	}
	if strings.Contains(HashToken(token), token) {
		t.Error("hash must not contain the plain token")
	}
}

func TestRandomHex(t *testing.T) {
	a, _ := RandomHex(16)
	b, _ := RandomHex(16)
	if len(a) != 32 {
		t.Errorf("expected 32 chars, got %d", len(a))
	}
	if a == b {
		t.Error("expected distinct values")
	}
}
