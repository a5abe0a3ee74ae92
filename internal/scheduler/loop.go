package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	logx "tickd/pkg/logx"
)

// loop drives the once-a-second dispatch. Each timer firing re-arms itself
// for the next whole-second boundary, so ticks stay phase-locked to the wall
// clock instead of drifting by the pipeline's own latency.
func (s *Service) loop(ctx context.Context, stopCh chan struct{}) {
	timer := time.NewTimer(s.nextTickDelay())
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.nextTickDelay())
		}
	}
}

// nextTickDelay returns the time until the next whole-second boundary.
func (s *Service) nextTickDelay() time.Duration {
	return time.Duration(1000-s.now().UnixMilli()%1000) * time.Millisecond
}

// tick runs one dispatch pass: pop every due deadline item, run the ticking
// set concurrently, settle the due items sequentially, and re-book whatever
// came out of settlement still scheduled.
func (s *Service) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tick pipeline panicked",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()

	nowSec := s.now().Unix()

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	due := s.queue.popDue(nowSec)
	tickers := make([]*item, len(s.tickers))
	copy(tickers, s.tickers)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, it := range tickers {
		wg.Add(1)
		go func(it *item) {
			defer wg.Done()
			started := s.now()
			err := it.execute(ctx, s.log)
			// Ticking runs fire every second; only failures are worth keeping.
			if err != nil {
				s.record(it, started, s.now().Sub(started), err)
			}
		}(it)
	}

	loc := s.location()
	baseSec := s.retryBaseSec()
	s.mu.Lock()
	maxSec := int64(s.cfg.RetryMaxDelay / time.Second)
	s.mu.Unlock()

	for _, it := range due {
		started := s.now()
		err := it.execute(ctx, s.log)
		took := s.now().Sub(started)
		endSec := s.now().Unix()

		it.complete(err == nil, endSec, loc, baseSec)
		if err != nil {
			it.scheduleForRetry(endSec, maxSec)
			s.log.Info("item retry booked",
				logx.String("item", it.id),
				logx.String("kind", it.kind.String()),
				logx.Int("reschedules", it.rescheduleCount),
				logx.Time("next_run", time.Unix(it.nextRun, 0).In(loc)),
			)
		}
		s.record(it, started, took, err)

		if it.scheduled {
			s.rebook(it)
		}
	}

	wg.Wait()
}
