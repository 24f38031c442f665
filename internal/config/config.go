// internal/config/config.go
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
		BaseURL string `yaml:"base_url" json:"base_url"` // used for deep links in notifications
	} `yaml:"app" json:"app"`

	Logging Logging `yaml:"logging" json:"logging"`

	Quota struct {
		DailyLimit     int    `yaml:"daily_limit" json:"daily_limit"`
		Backend        string `yaml:"backend" json:"backend"` // sqlite | redis
		RedisAddr      string `yaml:"redis_addr" json:"redis_addr"`
		RedisKeyPrefix string `yaml:"redis_key_prefix" json:"redis_key_prefix"`
	} `yaml:"quota" json:"quota"`

	Directory struct {
		BaseURL           string `yaml:"base_url" json:"base_url"`
		RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
		CallDelayMS       int    `yaml:"call_delay_ms" json:"call_delay_ms"`
		TimeoutSeconds    int    `yaml:"timeout_seconds" json:"timeout_seconds"`
		APIKeyAccount     string `yaml:"api_key_account" json:"api_key_account"`
	} `yaml:"directory" json:"directory"`

	Enricher struct {
		TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds"`
		UserAgent      string   `yaml:"user_agent" json:"user_agent"`
		MaxAttempts    int      `yaml:"max_attempts" json:"max_attempts"`
		Pages          []string `yaml:"pages" json:"pages"`
	} `yaml:"enricher" json:"enricher"`

	Scorer struct {
		Provider      string `yaml:"provider" json:"provider"` // anthropic | heuristic
		Model         string `yaml:"model" json:"model"`
		MaxTokens     int    `yaml:"max_tokens" json:"max_tokens"`
		APIKeyAccount string `yaml:"api_key_account" json:"api_key_account"`
	} `yaml:"scorer" json:"scorer"`

	Prospecting struct {
		MaxProspects         int `yaml:"max_prospects" json:"max_prospects"`
		SearchThreshold      int `yaml:"search_threshold" json:"search_threshold"`
		AutoSelectPerCompany int `yaml:"auto_select_per_company" json:"auto_select_per_company"`
		SmallCompany         int `yaml:"small_company" json:"small_company"`
		LargeCompany         int `yaml:"large_company" json:"large_company"`
	} `yaml:"prospecting" json:"prospecting"`

	Retry struct {
		MaxAutoAttempts int    `yaml:"max_auto_attempts" json:"max_auto_attempts"`
		SweepSchedule   string `yaml:"sweep_schedule" json:"sweep_schedule"` // cron spec, "" disables
	} `yaml:"retry" json:"retry"`

	Supervisor struct {
		StaleAfterMinutes int    `yaml:"stale_after_minutes" json:"stale_after_minutes"`
		Schedule          string `yaml:"schedule" json:"schedule"`
	} `yaml:"supervisor" json:"supervisor"`

	Workers struct {
		Shards    int `yaml:"shards" json:"shards"`
		QueueSize int `yaml:"queue_size" json:"queue_size"`
	} `yaml:"workers" json:"workers"`

	Notify struct {
		Telegram struct {
			Enabled      bool   `yaml:"enabled" json:"enabled"`
			ChatID       int64  `yaml:"chat_id" json:"chat_id"`
			TokenAccount string `yaml:"token_account" json:"token_account"`
		} `yaml:"telegram" json:"telegram"`
	} `yaml:"notify" json:"notify"`
}

type Logging struct {
	Level       string `yaml:"level" json:"level"`
	Development bool   `yaml:"development" json:"development"`
}

// Default returns a config with every field that has a sane default filled in.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38471
	cfg.App.DataDir = "."
	cfg.App.BaseURL = "http://127.0.0.1:38471"
	cfg.Logging.Level = "info"

	cfg.Quota.DailyLimit = 150
	cfg.Quota.Backend = "sqlite"
	cfg.Quota.RedisKeyPrefix = "outreach:quota"

	cfg.Directory.RequestsPerMinute = 600
	cfg.Directory.CallDelayMS = 200
	cfg.Directory.TimeoutSeconds = 20
	cfg.Directory.APIKeyAccount = "outreach:directory"

	cfg.Enricher.TimeoutSeconds = 15
	cfg.Enricher.UserAgent = "OutreachEngine/1.0 (+local)"
	cfg.Enricher.MaxAttempts = 3
	cfg.Enricher.Pages = []string{"/", "/about", "/team", "/company"}

	cfg.Scorer.Provider = "heuristic"
	cfg.Scorer.Model = "claude-3-5-haiku-latest"
	cfg.Scorer.MaxTokens = 1024
	cfg.Scorer.APIKeyAccount = "outreach:anthropic"

	cfg.Prospecting.MaxProspects = 20
	cfg.Prospecting.SearchThreshold = 20
	cfg.Prospecting.AutoSelectPerCompany = 3
	cfg.Prospecting.SmallCompany = 50
	cfg.Prospecting.LargeCompany = 500

	cfg.Retry.MaxAutoAttempts = 3
	cfg.Retry.SweepSchedule = "@every 30m"

	cfg.Supervisor.StaleAfterMinutes = 30
	cfg.Supervisor.Schedule = "@every 5m"

	cfg.Workers.Shards = 4
	cfg.Workers.QueueSize = 256

	cfg.Notify.Telegram.TokenAccount = "outreach:telegram"
	return cfg
}

// Load reads the YAML file at path on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) CallDelay() time.Duration {
	return time.Duration(c.Directory.CallDelayMS) * time.Millisecond
}

func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.Supervisor.StaleAfterMinutes) * time.Minute
}
