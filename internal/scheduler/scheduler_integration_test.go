//go:build integration

package scheduler

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/internal/email/smtp"
	"github.com/freitasmatheusrn/pricecompare/internal/products"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// TestSendRealPriceDropEmail_Integration sends a real email to verify formatting
// Run with: go test -v -tags=integration ./internal/scheduler/... -run TestSendRealPriceDropEmail_Integration
//
// Required environment variables:
//   - SMTP_HOST
//   - SMTP_PORT
//   - SMTP_USER
//   - SMTP_PASS
//   - TEST_EMAIL_RECIPIENT (your email to receive the test)
func TestSendRealPriceDropEmail_Integration(t *testing.T) {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPortStr := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	recipient := os.Getenv("TEST_EMAIL_RECIPIENT")

	if smtpHost == "" || smtpUser == "" || smtpPass == "" || recipient == "" {
		t.Skip("Skipping integration test: SMTP_HOST, SMTP_USER, SMTP_PASS and TEST_EMAIL_RECIPIENT not set")
	}

	smtpPort, err := strconv.Atoi(smtpPortStr)
	if err != nil {
		smtpPort = 587
	}

	emailClient := smtp.New(smtpHost, smtpUser, smtpPass, smtpPort, smtpUser, "PriceCompare")
	logger, _ := zap.NewDevelopment()

	productID := pgtype.UUID{Bytes: [16]byte{1}, Valid: true}
	scheduler := &Scheduler{
		logger: logger,
		email:  emailClient,
		audience: &MockAudience{users: map[pgtype.UUID][]repo.FavoriteUserRow{
			productID: {{Name: "Teste", Email: recipient}},
		}},
	}

	sent := scheduler.sendPriceDropEmails(context.Background(), products.PriceChange{
		ProductID: productID,
		URL:       "https://www.example.com/notebook-acer-aspire-5-a515",
		Title:     "Notebook Acer Aspire 5 A515",
		Currency:  "BRL",
		OldCents:  349990,
		NewCents:  299990,
	})
	if sent != 1 {
		t.Fatalf("expected 1 email sent, got %d", sent)
	}

	t.Log("Email sent successfully! Check your inbox at:", recipient)
}
