package config

import (
	"testing"
	"time"
)

func TestFromEnvRequiresMongoURI(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error without MONGODB_URI")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("MASTER_KEY_BASE64", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Database != "messaging" {
		t.Errorf("database = %q, want messaging", cfg.Database)
	}
	if cfg.AuditRules.LoginFailThreshold != 5 {
		t.Errorf("login fail threshold = %d, want 5", cfg.AuditRules.LoginFailThreshold)
	}
	if cfg.Retention.Schedule != "0 3 * * *" {
		t.Errorf("retention schedule = %q", cfg.Retention.Schedule)
	}
	if cfg.FollowUpDelay != 24*time.Hour {
		t.Errorf("follow-up delay = %s", cfg.FollowUpDelay)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("MASTER_KEY_BASE64", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	t.Setenv("AUDIT_LOGIN_FAIL_THRESHOLD", "3")
	t.Setenv("AUDIT_LOGIN_FAIL_WINDOW", "30m")
	t.Setenv("UPLOAD_BLOCKED_EXTENSIONS", ".exe, .bin")
	t.Setenv("BUSINESS_OPEN_HOUR", "8")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.AuditRules.LoginFailThreshold != 3 {
		t.Errorf("login fail threshold = %d, want 3", cfg.AuditRules.LoginFailThreshold)
	}
	if cfg.AuditRules.LoginFailWindow != 30*time.Minute {
		t.Errorf("login fail window = %s", cfg.AuditRules.LoginFailWindow)
	}
	if len(cfg.Uploads.BlockedExtensions) != 2 || cfg.Uploads.BlockedExtensions[1] != ".bin" {
		t.Errorf("blocked extensions = %v", cfg.Uploads.BlockedExtensions)
	}
	if cfg.Hours.OpenHour != 8 {
		t.Errorf("open hour = %d, want 8", cfg.Hours.OpenHour)
	}
}
