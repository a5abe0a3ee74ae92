package scheduler

import (
	"testing"
	"time"
)

func TestRetryDelayGrowth(t *testing.T) {
	t.Parallel()
	it := &item{id: "a", kind: KindOneShot, retryDelaySec: 5}

	// Delay applied on each consecutive failure, capped at 900s.
	want := []int64{5, 8, 13, 22, 36, 60, 100, 166, 275, 456, 757, 900, 900}
	for i, delay := range want {
		if it.retryDelaySec != delay {
			t.Fatalf("attempt %d: delay = %d, want %d", i, it.retryDelaySec, delay)
		}
		it.scheduled = false
		it.scheduleForRetry(1000, 900)
		if got := it.nextRun - 1000; got != delay {
			t.Fatalf("attempt %d: booked +%ds, want +%ds", i, got, delay)
		}
	}
	if it.rescheduleCount != len(want) {
		t.Fatalf("rescheduleCount = %d, want %d", it.rescheduleCount, len(want))
	}
}

func TestRetryNeverDelaysPendingRun(t *testing.T) {
	t.Parallel()

	// Earlier retry wins over a later booked run.
	it := &item{id: "a", kind: KindRepeating, retryDelaySec: 5, scheduled: true, nextRun: 1100}
	it.scheduleForRetry(1000, 900)
	if it.nextRun != 1005 {
		t.Fatalf("nextRun = %d, want 1005", it.nextRun)
	}

	// An already-earlier booked run is never pushed later.
	it = &item{id: "a", kind: KindRepeating, retryDelaySec: 500, scheduled: true, nextRun: 1010}
	it.scheduleForRetry(1000, 900)
	if it.nextRun != 1010 {
		t.Fatalf("nextRun = %d, want 1010", it.nextRun)
	}
}

func TestCompleteResetsRetryOnSuccess(t *testing.T) {
	t.Parallel()
	it := &item{id: "a", kind: KindOneShot, retryDelaySec: 275, rescheduleCount: 8, scheduled: true, nextRun: 999}
	it.complete(true, 1000, time.UTC, 5)
	if it.retryDelaySec != 5 || it.rescheduleCount != 0 {
		t.Fatalf("retry state not reset: delay=%d count=%d", it.retryDelaySec, it.rescheduleCount)
	}
	if it.scheduled {
		t.Fatal("one-shot should be unscheduled after completion")
	}
}

func TestCompleteRebooksRepeating(t *testing.T) {
	t.Parallel()
	it := &item{id: "b", kind: KindRepeating, retryDelaySec: 5, intervalSec: 3600}

	// Failure does not reset retry state but still recomputes the boundary.
	it.retryDelaySec = 36
	it.complete(false, 361000, time.UTC, 5) // 361000 mod 3600 = 1000
	if !it.scheduled {
		t.Fatal("repeating item should rebook on completion")
	}
	if it.nextRun != 363600 {
		t.Fatalf("nextRun = %d, want 363600", it.nextRun)
	}
	if it.retryDelaySec != 36 {
		t.Fatalf("failure must not reset retry delay, got %d", it.retryDelaySec)
	}
}

func TestNextAligned(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		now      int64
		interval int64
		offset   int64
		want     int64
	}{
		{name: "mid interval", now: 361000, interval: 3600, offset: 0, want: 363600},
		{name: "on boundary", now: 360000, interval: 3600, offset: 0, want: 363600},
		{name: "one before boundary", now: 363599, interval: 3600, offset: 0, want: 363600},
		{name: "half-hour offset shifts boundary", now: 361000, interval: 3600, offset: 19800, want: 361800},
		{name: "negative half-hour offset", now: 361000, interval: 3600, offset: -16200, want: 361800},
		{name: "offset larger than now", now: 1000, interval: 3600, offset: 19800, want: 1800},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := nextAligned(tt.now, tt.interval, tt.offset)
			if got != tt.want {
				t.Fatalf("nextAligned(%d,%d,%d) = %d, want %d", tt.now, tt.interval, tt.offset, got, tt.want)
			}
			if got <= tt.now {
				t.Fatalf("next must be strictly after now: %d <= %d", got, tt.now)
			}
			if (got-tt.offset)%tt.interval != 0 {
				t.Fatalf("next %d not on an offset-adjusted boundary", got)
			}
		})
	}
}
