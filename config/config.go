// Package config loads the module configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

// Config is everything the embedder needs to construct the services.
type Config struct {
	MongoURI string
	Database string
	RedisURL string

	Crypto     types.CryptoConfig
	AuditRules types.AuditRuleConfig
	Retention  types.RetentionConfig
	Uploads    types.UploadPolicy
	Hours      types.BusinessHours

	// PolicyPath optionally overrides the built-in DLP catalog with a
	// YAML policy document.
	PolicyPath string

	FollowUpDelay    time.Duration
	QueueConcurrency int
}

// Load reads an optional .env file and builds the config from the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment")
	}
	return FromEnv()
}

// FromEnv builds the config from environment variables, falling back to
// sane defaults for everything except the Mongo connection.
func FromEnv() (*Config, error) {
	cfg := &Config{
		MongoURI: os.Getenv("MONGODB_URI"),
		Database: envString("MONGODB_DATABASE", "messaging"),
		RedisURL: envString("REDIS_URL", "redis://localhost:6379/0"),

		Crypto: types.CryptoConfig{
			Provider:      types.ProviderType(envString("KMS_PROVIDER", string(types.ProviderAead))),
			KeyID:         os.Getenv("KMS_KEY_ID"),
			Region:        os.Getenv("KMS_REGION"),
			VaultAddress:  os.Getenv("VAULT_ADDR"),
			VaultMount:    envString("VAULT_MOUNT", "transit"),
			AeadKeyBase64: os.Getenv("MASTER_KEY_BASE64"),
			AeadKeyID:     envString("MASTER_KEY_ID", "root"),
		},

		AuditRules: types.AuditRuleConfig{
			ExportThreshold:    envInt("AUDIT_EXPORT_THRESHOLD", 5),
			ExportWindow:       envDuration("AUDIT_EXPORT_WINDOW", 24*time.Hour),
			LoginFailThreshold: envInt("AUDIT_LOGIN_FAIL_THRESHOLD", 5),
			LoginFailWindow:    envDuration("AUDIT_LOGIN_FAIL_WINDOW", time.Hour),
			DownloadThreshold:  envInt("AUDIT_DOWNLOAD_THRESHOLD", 20),
			DownloadWindow:     envDuration("AUDIT_DOWNLOAD_WINDOW", time.Hour),
		},

		Retention: types.RetentionConfig{
			AuditRetention:      envDuration("AUDIT_RETENTION", types.DefaultRetentionConfig().AuditRetention),
			MessageArchiveAfter: envDuration("MESSAGE_ARCHIVE_AFTER", types.DefaultRetentionConfig().MessageArchiveAfter),
			Schedule:            envString("RETENTION_SCHEDULE", types.DefaultRetentionConfig().Schedule),
		},

		Uploads: types.UploadPolicy{
			MaxSize:           envInt64("UPLOAD_MAX_SIZE", types.DefaultUploadPolicy().MaxSize),
			BlockedExtensions: envList("UPLOAD_BLOCKED_EXTENSIONS", types.DefaultUploadPolicy().BlockedExtensions),
		},

		Hours: types.BusinessHours{
			Timezone:  envString("BUSINESS_TIMEZONE", "UTC"),
			Days:      types.DefaultBusinessHours().Days,
			OpenHour:  envInt("BUSINESS_OPEN_HOUR", 9),
			CloseHour: envInt("BUSINESS_CLOSE_HOUR", 18),
		},

		PolicyPath:       os.Getenv("DLP_POLICY_PATH"),
		FollowUpDelay:    envDuration("FOLLOW_UP_DELAY", 24*time.Hour),
		QueueConcurrency: envInt("QUEUE_CONCURRENCY", 10),
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.Crypto.Provider == types.ProviderAead && cfg.Crypto.AeadKeyBase64 == "" {
		return nil, fmt.Errorf("MASTER_KEY_BASE64 is required for the aead provider")
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer, using default")
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer, using default")
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration, using default")
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
