package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	logx "tickd/pkg/logx"
)

// backoffFactor is the geometric growth applied to the retry delay after each
// consecutive failure.
const backoffFactor = 1.659

// execute runs the callback, converting panics into errors so synchronous
// panics and returned errors land in one failure channel. A failure is logged
// with the item identity before being propagated to the dispatch loop.
func (it *item) execute(ctx context.Context, log logx.Logger) error {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return it.job(ctx)
	}()
	if err != nil {
		log.Warn("item run failed",
			logx.String("item", it.id),
			logx.String("kind", it.kind.String()),
			logx.Err(err),
		)
	}
	return err
}

// complete transitions the item after a run settles, regardless of outcome.
//
// Success resets the retry policy. Repeating items recompute their next
// calendar-aligned boundary and go straight back to Scheduled; one-shots end
// Unscheduled (a subsequent scheduleForRetry may re-book them on failure).
func (it *item) complete(success bool, now int64, loc *time.Location, baseSec int64) {
	if success {
		it.retryDelaySec = baseSec
		it.rescheduleCount = 0
	}
	it.scheduled = false
	it.nextRun = 0

	if it.kind != KindRepeating {
		return
	}
	var next int64
	if it.sched != nil {
		next = it.sched.Next(time.Unix(now, 0).In(loc)).Unix()
	} else {
		_, off := time.Unix(now, 0).In(loc).Zone()
		next = nextAligned(now, it.intervalSec, int64(off))
	}
	it.scheduled = true
	it.nextRun = next
}

// scheduleForRetry books the next attempt after a failure, then grows the
// delay. A pending obligation is never pushed later by a retry: if the item
// is already scheduled, the earlier of the two timestamps wins.
func (it *item) scheduleForRetry(now, maxSec int64) {
	retryAt := now + it.retryDelaySec
	if it.scheduled {
		if retryAt < it.nextRun {
			it.nextRun = retryAt
		}
	} else {
		it.scheduled = true
		it.nextRun = retryAt
	}

	d := int64(math.Round(float64(it.retryDelaySec) * backoffFactor))
	if d > maxSec {
		d = maxSec
	}
	it.retryDelaySec = d
	it.rescheduleCount++
}

// nextAligned returns the next boundary of interval after now, anchored to
// wall-clock time via the zone offset: (next - offset) is a multiple of
// interval, and next > now.
func nextAligned(now, interval, offset int64) int64 {
	m := (now - offset) % interval
	if m < 0 {
		m += interval
	}
	return now + interval - m
}
