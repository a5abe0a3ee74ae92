package app

import (
	"strings"
	"time"

	"tickd/internal/config"
	"tickd/internal/history"
	"tickd/internal/scheduler"
)

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	if cfg == nil {
		return scheduler.Config{}, nil
	}
	retryBase, err := config.ParseDurationOrDefault("scheduler.retry_base", cfg.Scheduler.RetryBase, 5*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}
	retryMax, err := config.ParseDurationOrDefault("scheduler.retry_max_delay", cfg.Scheduler.RetryMaxDelay, 15*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:       cfg.Scheduler.Enabled,
		HistorySize:   cfg.Scheduler.HistorySize,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMax,
		Timezone:      cfg.Scheduler.Timezone,
	}, nil
}

// mapHistoryConfig reports enabled=false when the history section is omitted
// or its driver is "none".
func mapHistoryConfig(cfg *config.Config) (history.Config, bool, error) {
	if cfg == nil || cfg.History == nil {
		return history.Config{}, false, nil
	}
	h := cfg.History

	busy, err := config.ParseDurationOrDefault("history.busy_timeout", h.BusyTimeout, 0)
	if err != nil {
		return history.Config{}, false, err
	}
	retention, err := config.ParseDurationOrDefault("history.retention", h.Retention, 7*24*time.Hour)
	if err != nil {
		return history.Config{}, false, err
	}
	pruneEvery, err := config.ParseDurationOrDefault("history.prune_every", h.PruneEvery, time.Hour)
	if err != nil {
		return history.Config{}, false, err
	}

	out := history.Config{
		Driver:      h.Driver,
		Path:        h.Path,
		BusyTimeout: busy,
		RatePerSec:  float64(h.RatePerSec),
		Retention:   retention,
		PruneEvery:  pruneEvery,
	}
	driver := strings.ToLower(strings.TrimSpace(h.Driver))
	enabled := driver != "" && driver != "none"
	return out, enabled, nil
}
