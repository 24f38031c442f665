package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	_, vr := NormalizeAndValidate(Default())
	assert.True(t, vr.OK(), vr.Errors)
	assert.Equal(t, 150, Default().Quota.DailyLimit)
	assert.Equal(t, 20, Default().Prospecting.MaxProspects)
}

func TestNormalizeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.App.Port = 0 }, "app.port must be 1..65535"},
		{"redis without addr", func(c *Config) { c.Quota.Backend = "Redis" }, "quota.redis_addr is required when quota.backend=redis"},
		{"unknown scorer", func(c *Config) { c.Scorer.Provider = "magic" }, `scorer.provider must be anthropic or heuristic, got "magic"`},
		{"bad schedule", func(c *Config) { c.Retry.SweepSchedule = "every now and then" }, "retry.sweep_schedule is not a valid schedule"},
		{"telegram without chat", func(c *Config) { c.Notify.Telegram.Enabled = true }, "notify.telegram.chat_id is required when notify.telegram.enabled=true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			_, vr := NormalizeAndValidate(cfg)
			require.False(t, vr.OK())
			found := false
			for _, e := range vr.Errors {
				if len(e) >= len(tt.wantErr) && e[:len(tt.wantErr)] == tt.wantErr {
					found = true
				}
			}
			assert.True(t, found, "errors: %v", vr.Errors)
		})
	}
}

func TestNormalizeTrimsAndWarns(t *testing.T) {
	cfg := Default()
	cfg.Enricher.Pages = []string{" /about ", "/About", "", "/team"}
	cfg.App.BaseURL = "http://localhost:1234/"
	cfg.Directory.RequestsPerMinute = 900

	out, vr := NormalizeAndValidate(cfg)
	assert.True(t, vr.OK())
	assert.Equal(t, []string{"/about", "/team"}, out.Enricher.Pages)
	assert.Equal(t, "http://localhost:1234", out.App.BaseURL)
	assert.NotEmpty(t, vr.Warnings)
}

func TestEnsureLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	path, err := EnsureUserConfig(dir, filepath.Join(dir, "missing.yml"))
	require.NoError(t, err)
	assert.FileExists(t, path)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Quota.DailyLimit, cfg.Quota.DailyLimit)

	cfg.Quota.DailyLimit = 75
	require.NoError(t, SaveAtomic(path, cfg))
	assert.FileExists(t, path+".bak")

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75, again.Quota.DailyLimit)

	cfg.Quota.DailyLimit = -1
	err = SaveAtomic(path, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota.daily_limit")
}

func TestOverlayEnv(t *testing.T) {
	t.Setenv("OUTREACH_PORT", "9000")
	t.Setenv("OUTREACH_REDIS_ADDR", "localhost:6379")
	t.Setenv("OUTREACH_DATA_DIR", os.TempDir())

	cfg := Default()
	OverlayEnv(&cfg)
	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "redis", cfg.Quota.Backend)
	assert.Equal(t, "localhost:6379", cfg.Quota.RedisAddr)
	assert.Equal(t, os.TempDir(), cfg.App.DataDir)
}
