package history

import (
	"context"
	"testing"
	"time"

	"tickd/internal/eventbus"
	"tickd/internal/scheduler"
	logx "tickd/pkg/logx"
)

func TestRecorderPersistsRunEvents(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	rec := NewRecorder(Config{RatePerSec: 100}, st, logx.Nop())
	bus := eventbus.New()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = rec.Run(ctx, bus)
		close(done)
	}()

	started := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	// Re-publish until the recorder's subscription has picked one up; the
	// goroutine above may not be subscribed yet on the first publish.
	waitFor(t, func() bool {
		bus.Publish(eventbus.Event{
			Type: scheduler.EventItemRun,
			Time: started,
			Data: scheduler.RunEvent{ID: "a", Kind: "once", Started: started, Duration: 20 * time.Millisecond, Error: "boom", Reschedules: 1, NextRun: started.Unix() + 5},
		})
		// Unrelated event types are ignored.
		bus.Publish(eventbus.Event{Type: scheduler.EventItemRegistered, Time: started, Data: "a"})

		got, err := st.Recent(context.Background(), 10)
		return err == nil && len(got) >= 1
	})

	got, err := st.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	r := got[0]
	if r.ID != "a" || r.Kind != "once" || r.Error != "boom" || r.TookMS != 20 || r.Reschedules != 1 {
		t.Fatalf("unexpected record: %+v", r)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}
}

func TestRecorderRateLimitDrops(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	// Burst of 2; everything past that in the same instant is dropped.
	rec := NewRecorder(Config{RatePerSec: 1}, st, logx.Nop())
	bus := eventbus.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rec.Run(ctx, bus) }()

	started := time.Now()
	waitFor(t, func() bool {
		for i := 0; i < 20; i++ {
			bus.Publish(eventbus.Event{
				Type: scheduler.EventItemRun,
				Time: started,
				Data: scheduler.RunEvent{ID: "noisy", Kind: "ticking", Started: started, Error: "boom"},
			})
		}
		return rec.Dropped() > 0
	})
}

func TestRecorderNilStoreBlocksUntilDone(t *testing.T) {
	t.Parallel()
	rec := NewRecorder(Config{}, nil, logx.Nop())
	bus := eventbus.New()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx, bus) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not return after cancel")
	}
}

func TestPruneJob(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	rec := NewRecorder(Config{Retention: time.Hour}, st, logx.Nop())

	ctx := context.Background()
	old := time.Now().Add(-2 * time.Hour)
	if err := st.Append(ctx, Record{At: old, ID: "stale", Kind: "once"}); err != nil {
		t.Fatal(err)
	}
	if err := st.Append(ctx, Record{At: time.Now(), ID: "fresh", Kind: "once"}); err != nil {
		t.Fatal(err)
	}

	if err := rec.PruneJob()(ctx); err != nil {
		t.Fatalf("prune job error: %v", err)
	}
	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Fatalf("unexpected records after prune: %+v", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
