package configs

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadConfig_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "JWT_SECRET=secret\nDB_HOST=db\nDB_PORT=5432\nDB_USER=app\nDB_PASSWORD=pw\nDB_NAME=pc\nALERT_RECIPIENTS=a@x.com, b@x.com\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AccessTokenExp != 900 {
		t.Errorf("expected default access exp 900, got %d", cfg.AccessTokenExp)
	}
	if cfg.PriceRefreshCron != "0 0 */6 * * *" {
		t.Errorf("unexpected price cron %q", cfg.PriceRefreshCron)
	}
	if cfg.WebhookMaxAttempts != 5 {
		t.Errorf("expected 5 webhook attempts, got %d", cfg.WebhookMaxAttempts)
	}
	if got := cfg.DSN(); got != "postgres://app:pw@db:5432/pc" {
		t.Errorf("unexpected dsn %q", got)
	}
	if want := []string{"a@x.com", "b@x.com"}; !reflect.DeepEqual(cfg.AlertRecipients, want) {
		t.Errorf("expected %v, got %v", want, cfg.AlertRecipients)
	}
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DATABASE_URL", "postgres://u:p@h:1/d")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.JWTSecret != "from-env" {
		t.Errorf("expected secret from env, got %q", cfg.JWTSecret)
	}
	if cfg.DSN() != "postgres://u:p@h:1/d" {
		t.Errorf("expected DATABASE_URL to win, got %q", cfg.DSN())
	}
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}
