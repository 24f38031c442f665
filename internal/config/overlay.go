// config/overlay.go
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file if present. Missing files are not an error.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// OverlayEnv applies OUTREACH_* environment overrides on top of cfg.
func OverlayEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OUTREACH_DATA_DIR")); v != "" {
		cfg.App.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("OUTREACH_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = p
		}
	}
	if v := strings.TrimSpace(os.Getenv("OUTREACH_BASE_URL")); v != "" {
		cfg.App.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("OUTREACH_REDIS_ADDR")); v != "" {
		cfg.Quota.RedisAddr = v
		cfg.Quota.Backend = "redis"
	}
	if v := strings.TrimSpace(os.Getenv("OUTREACH_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("OUTREACH_DIRECTORY_URL")); v != "" {
		cfg.Directory.BaseURL = v
	}
}
