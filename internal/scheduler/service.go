package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"tickd/internal/eventbus"
	logx "tickd/pkg/logx"
)

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	return &Service{
		cfg: cfg.withDefaults(),
		log: log,
		bus: bus,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		queue:  newDeadlineQueue(),
		now:    time.Now,
	}
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps the retry policy, history size and timezone at runtime.
// Already-booked next-run timestamps are left alone; new completions pick up
// the new settings.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.withDefaults()
	s.loc = s.loadLocationLocked()
}

// Start launches the dispatch loop. If a Stop() is in progress it waits for
// it to complete first (prevents two loops racing over the queue).
func (s *Service) Start(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		// already running (no stop in progress)
		if done == nil {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-done:
			// loop and try again
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()

	s.stopCh = make(chan struct{})
	s.loc = s.loadLocationLocked()
	stopCh := s.stopCh

	s.loopWG.Add(1)
	go func() {
		defer s.loopWG.Done()
		s.loop(ctx, stopCh)
	}()

	s.log.Info("scheduler started",
		logx.String("tz", s.loc.String()),
		logx.Int("ticking", len(s.tickers)),
		logx.Int("pending", s.queue.pending()),
	)
}

// Stop halts the dispatch loop. Pending items keep their definitions and
// resume on the next Start().
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	// If a stop is already in progress, just wait (best-effort).
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	s.mu.Unlock()

	close(stopCh)

	// Finalize cleanup in background so Stop() can return on timeout safely.
	go func() {
		s.loopWG.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("scheduler stopped")
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// stop continues in background
	}
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) location() *time.Location {
	s.mu.Lock()
	loc := s.loc
	if loc == nil {
		loc = s.loadLocationLocked()
		s.loc = loc
	}
	s.mu.Unlock()
	return loc
}

func (s *Service) retryBaseSec() int64 {
	s.mu.Lock()
	base := s.cfg.RetryBase
	s.mu.Unlock()
	return int64(base / time.Second)
}

// record appends a run outcome to the history ring and publishes it on the bus.
func (s *Service) record(it *item, started time.Time, took time.Duration, err error) {
	h := HistoryItem{
		ID:       it.id,
		Kind:     it.kind.String(),
		Started:  started,
		Duration: took,
	}
	ev := RunEvent{
		ID:          it.id,
		Kind:        it.kind.String(),
		Started:     started,
		Duration:    took,
		Reschedules: it.rescheduleCount,
	}
	if err != nil {
		h.Error = err.Error()
		ev.Error = err.Error()
	}
	if it.scheduled {
		ev.NextRun = it.nextRun
	}

	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, h)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: EventItemRun, Time: started, Data: ev})
	}
}
