package history

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tickd/internal/eventbus"
	"tickd/internal/scheduler"
	logx "tickd/pkg/logx"
)

// Recorder drains scheduler run events from the bus into a Store.
//
// Writes are throttled: a misbehaving item that fails every second must not
// turn the history file into a disk eater. Throttled records are dropped and
// counted, not queued.
type Recorder struct {
	log     logx.Logger
	store   Store
	limiter *rate.Limiter

	retention  time.Duration
	pruneEvery time.Duration

	dropped atomic.Uint64
}

func NewRecorder(cfg Config, store Store, log logx.Logger) *Recorder {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	pruneEvery := cfg.PruneEvery
	if pruneEvery <= 0 {
		pruneEvery = time.Hour
	}
	return &Recorder{
		log:        log,
		store:      store,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retention:  retention,
		pruneEvery: pruneEvery,
	}
}

// Dropped reports how many records were discarded by the rate limiter.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Run consumes bus events until ctx is done or the subscription closes.
// It is intended to run as a supervised goroutine.
func (r *Recorder) Run(ctx context.Context, bus eventbus.Bus) error {
	if r.store == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ch, unsub := bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.Type != scheduler.EventItemRun {
				continue
			}
			run, ok := ev.Data.(scheduler.RunEvent)
			if !ok {
				continue
			}
			if !r.limiter.Allow() {
				r.dropped.Add(1)
				continue
			}
			rec := Record{
				At:          run.Started,
				ID:          run.ID,
				Kind:        run.Kind,
				TookMS:      run.Duration.Milliseconds(),
				Error:       run.Error,
				Reschedules: run.Reschedules,
				NextRun:     run.NextRun,
			}
			if err := r.store.Append(ctx, rec); err != nil {
				r.log.Warn("history append failed", logx.String("item", rec.ID), logx.Err(err))
			}
		}
	}
}

// PruneJob returns a job suitable for registration as a repeating item. Each
// run deletes records older than the retention window.
func (r *Recorder) PruneJob() scheduler.Job {
	return func(ctx context.Context) error {
		if r.store == nil {
			return nil
		}
		cutoff := time.Now().Add(-r.retention)
		n, err := r.store.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		if n > 0 {
			r.log.Debug("history pruned", logx.Int64("dropped", n))
		}
		return nil
	}
}

// PruneEvery reports the configured prune cadence in whole minutes, minimum 1.
func (r *Recorder) PruneEvery() int {
	m := int(r.pruneEvery / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}
