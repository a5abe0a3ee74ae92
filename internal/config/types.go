package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Scheduler controls the dispatch loop and retry policy.
	Scheduler SchedulerConfig `json:"scheduler"`

	// History controls the optional run-history persistence layer.
	// If omitted, history stays in memory only.
	History *HistoryConfig `json:"history,omitempty"`

	Watchdog  WatchdogConfig  `json:"watchdog,omitempty"`
	Heartbeat HeartbeatConfig `json:"heartbeat,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the scheduler service.
//
// All durations are Go duration strings (e.g. "5s", "15m").
//
// Defaults (when fields are omitted/zero):
//   - history_size: 200
//   - retry_base: "5s"
//   - retry_max_delay: "15m"
//   - timezone: process local time
type SchedulerConfig struct {
	Enabled     bool `json:"enabled"`
	HistorySize int  `json:"history_size,omitempty"`

	// RetryBase is the first retry delay after a deadline item fails.
	RetryBase string `json:"retry_base,omitempty"`
	// RetryMaxDelay caps the exponential retry delay growth.
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`

	// Timezone anchors calendar-aligned repeats (IANA TZ, e.g. "Asia/Jakarta").
	Timezone string `json:"timezone,omitempty"`
}

// HistoryConfig controls the optional persistence layer for run records.
//
// Example:
//
//	"history": { "driver": "file", "path": "./tickd_history" }
type HistoryConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)

	// RatePerSec bounds record writes; excess records are dropped (counted).
	RatePerSec int `json:"rate_per_sec,omitempty"`

	// Retention is how long records are kept; enforced by the built-in
	// history.prune item. Go duration string, default "168h".
	Retention string `json:"retention,omitempty"`
	// PruneEvery is the prune cadence in whole minutes, default "60m".
	PruneEvery string `json:"prune_every,omitempty"`
}

// WatchdogConfig controls systemd readiness/watchdog integration.
// Keepalives are only sent when the process actually runs under systemd
// with WatchdogSec set.
type WatchdogConfig struct {
	Enabled bool `json:"enabled"`
}

// HeartbeatConfig controls the periodic snapshot log line.
// Spec is a cron expression (5-field, optional seconds, or "@every ...").
type HeartbeatConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec,omitempty"` // default "@every 1h"
}
