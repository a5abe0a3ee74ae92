package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tickd/internal/eventbus"
	logx "tickd/pkg/logx"
)

// Job is a unit of work. The scheduler is agnostic to what it does; it only
// cares whether the run settled with an error.
type Job func(ctx context.Context) error

// ItemKind tags the three work item variants. They share one retry/backoff
// implementation; kind-specific behavior is dispatched by matching on the tag.
type ItemKind int

const (
	KindTicking ItemKind = iota
	KindOneShot
	KindRepeating
)

func (k ItemKind) String() string {
	switch k {
	case KindTicking:
		return "ticking"
	case KindOneShot:
		return "once"
	case KindRepeating:
		return "repeat"
	default:
		return "unknown"
	}
}

// Config controls the scheduler service.
type Config struct {
	Enabled     bool
	HistorySize int

	// RetryBase is the first retry delay after a deadline item fails.
	// Grows by min(round(d*1.659), RetryMaxDelay) on consecutive failures
	// and resets on any success.
	RetryBase     time.Duration
	RetryMaxDelay time.Duration

	// Timezone anchors calendar-aligned repeats (IANA TZ, e.g. "Asia/Jakarta").
	Timezone string
}

func (c Config) withDefaults() Config {
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 5 * time.Second
	}
	if c.RetryMaxDelay < c.RetryBase {
		c.RetryMaxDelay = 15 * time.Minute
	}
	return c
}

// item is one registered unit of work.
//
// The deadline state machine has two states: Scheduled(nextRun) when
// scheduled is true, and Unscheduled otherwise. Ticking items never use it.
type item struct {
	id   string
	kind ItemKind
	job  Job

	scheduled bool
	nextRun   int64 // epoch seconds; valid while scheduled

	retryDelaySec   int64
	rescheduleCount int

	intervalSec int64         // repeating: fixed calendar-aligned interval
	sched       cron.Schedule // repeating: cron-spec driven (nil for fixed interval)
}

// HistoryItem is one completed run, kept in a bounded in-memory ring.
type HistoryItem struct {
	ID       string
	Kind     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

// RunEvent is the bus payload published for every settled deadline run and
// every failed ticking run.
type RunEvent struct {
	ID          string
	Kind        string
	Started     time.Time
	Duration    time.Duration
	Error       string
	Reschedules int
	NextRun     int64 // epoch seconds; 0 when the item self-terminated
}

// Bus event types published by the scheduler.
const (
	EventItemRun        = "item.run"
	EventItemRegistered = "item.registered"
	EventItemReplaced   = "item.replaced"
)

// Service is the scheduler. Construct with New, register items through the
// facade in api.go, and drive it with Start/Stop.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	bus    eventbus.Bus

	tickers []*item
	queue   *deadlineQueue

	stopCh chan struct{}
	// stopDone is non-nil while a Stop() is in progress; it is closed when
	// the loop has fully exited.
	stopDone chan struct{}
	loopWG   sync.WaitGroup

	// now is the wall-clock source (epoch seconds via .Unix()); swapped in tests.
	now func() time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

// ItemInfo describes one pending deadline item in a Snapshot.
type ItemInfo struct {
	ID          string
	Kind        string
	NextRun     time.Time
	RetryDelay  time.Duration
	Reschedules int
}

type Snapshot struct {
	Enabled       bool
	Timezone      string
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	Ticking       []string
	Pending       []ItemInfo
	History       []HistoryItem
}
