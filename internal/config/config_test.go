package config

import (
	"os"
	"testing"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/vitalred_test")
	defer os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %q", cfg.Port)
	}
	if cfg.NotificationMaxAttempts != 5 {
		t.Errorf("expected 5 max attempts, got %d", cfg.NotificationMaxAttempts)
	}
	if cfg.NotificationBaseDelaySec != 60 {
		t.Errorf("expected 60s base delay, got %d", cfg.NotificationBaseDelaySec)
	}
	if cfg.NotificationMaxDelaySec != 3600 {
		t.Errorf("expected 3600s delay cap, got %d", cfg.NotificationMaxDelaySec)
	}
	if cfg.AIConfidenceThreshold != 0.7 {
		t.Errorf("expected confidence threshold 0.7, got %v", cfg.AIConfidenceThreshold)
	}
	if cfg.UrgentScoreThreshold != 80 {
		t.Errorf("expected urgent score threshold 80, got %v", cfg.UrgentScoreThreshold)
	}
	if len(cfg.BlockedSenderDomains) == 0 {
		t.Error("expected default blocked sender domains")
	}
}

func TestValidate_ProductionNeedsJWTSecret(t *testing.T) {
	cfg := &Config{
		Env:                     "production",
		NotificationMaxAttempts: 5,
		AIConfidenceThreshold:   0.7,
		UrgentScoreThreshold:    80,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing JWT_SECRET in production")
	}
	cfg.JWTSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Thresholds(t *testing.T) {
	cfg := &Config{
		Env:                     "development",
		NotificationMaxAttempts: 5,
		AIConfidenceThreshold:   1.5,
		UrgentScoreThreshold:    80,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range confidence threshold")
	}
	cfg.AIConfidenceThreshold = 0.7
	cfg.UrgentScoreThreshold = 150
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range urgent score threshold")
	}
}
