package history

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("history disabled")

// Config configures run-history persistence.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", history persistence is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// RatePerSec caps persisted records per second; excess records are
	// dropped, not queued. 0 means default.
	RatePerSec float64

	Retention  time.Duration // records older than this are pruned
	PruneEvery time.Duration // how often the recorder prunes
}

// Record is one persisted run outcome.
// Keep it compact and schema-stable.
type Record struct {
	At          time.Time `json:"at"`
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	TookMS      int64     `json:"took_ms"`
	Error       string    `json:"error,omitempty"`
	Reschedules int       `json:"reschedules,omitempty"`
	NextRun     int64     `json:"next_run,omitempty"`
}
