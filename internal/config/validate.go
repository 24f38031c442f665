package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

func (v Validation) Error() string {
	return "config validation failed:\n- " + strings.Join(v.Errors, "\n- ")
}

// NormalizeAndValidate returns a normalized copy of cfg and the validation result.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Enricher.Pages = trimList(out.Enricher.Pages)
	out.Quota.Backend = strings.ToLower(strings.TrimSpace(out.Quota.Backend))
	out.Scorer.Provider = strings.ToLower(strings.TrimSpace(out.Scorer.Provider))
	out.App.BaseURL = strings.TrimRight(strings.TrimSpace(out.App.BaseURL), "/")
	out.Directory.BaseURL = strings.TrimRight(strings.TrimSpace(out.Directory.BaseURL), "/")

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Quota.DailyLimit <= 0 {
		res.addErr("quota.daily_limit must be > 0")
	}
	switch out.Quota.Backend {
	case "", "sqlite":
		out.Quota.Backend = "sqlite"
	case "redis":
		if strings.TrimSpace(out.Quota.RedisAddr) == "" {
			res.addErr("quota.redis_addr is required when quota.backend=redis")
		}
	default:
		res.addErr("quota.backend must be sqlite or redis, got %q", out.Quota.Backend)
	}

	if out.Directory.RequestsPerMinute <= 0 {
		res.addErr("directory.requests_per_minute must be > 0")
	} else if out.Directory.RequestsPerMinute > 600 {
		res.addWarn("directory.requests_per_minute=%d exceeds the provider ceiling of 600/min", out.Directory.RequestsPerMinute)
	}
	if out.Directory.CallDelayMS < 0 {
		res.addErr("directory.call_delay_ms must be >= 0")
	}
	if out.Directory.BaseURL == "" {
		res.addWarn("directory.base_url is empty; supplementary search and contact enrichment are disabled")
	}

	switch out.Scorer.Provider {
	case "", "heuristic":
		out.Scorer.Provider = "heuristic"
	case "anthropic":
		if strings.TrimSpace(out.Scorer.Model) == "" {
			res.addErr("scorer.model is required when scorer.provider=anthropic")
		}
	default:
		res.addErr("scorer.provider must be anthropic or heuristic, got %q", out.Scorer.Provider)
	}

	p := out.Prospecting
	if p.MaxProspects <= 0 {
		res.addErr("prospecting.max_prospects must be > 0")
	}
	if p.AutoSelectPerCompany <= 0 {
		res.addErr("prospecting.auto_select_per_company must be > 0")
	}
	if p.SmallCompany <= 0 || p.LargeCompany <= p.SmallCompany {
		res.addErr("prospecting.small_company must be > 0 and < prospecting.large_company")
	}

	if out.Retry.MaxAutoAttempts <= 0 {
		res.addErr("retry.max_auto_attempts must be > 0")
	}
	checkSchedule := func(name, spec string) {
		if strings.TrimSpace(spec) == "" {
			return
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			res.addErr("%s is not a valid schedule: %v", name, err)
		}
	}
	checkSchedule("retry.sweep_schedule", out.Retry.SweepSchedule)
	checkSchedule("supervisor.schedule", out.Supervisor.Schedule)
	if out.Supervisor.StaleAfterMinutes <= 0 {
		res.addErr("supervisor.stale_after_minutes must be > 0")
	}

	if out.Workers.Shards <= 0 {
		res.addErr("workers.shards must be > 0")
	}

	if out.Notify.Telegram.Enabled && out.Notify.Telegram.ChatID == 0 {
		res.addErr("notify.telegram.chat_id is required when notify.telegram.enabled=true")
	}

	return out, res
}
