package scheduler

import (
	"strings"
	"time"

	"tickd/internal/eventbus"
	logx "tickd/pkg/logx"
)

// Repeat registers recurring work under id. minutes == 0 books a ticking item
// that runs on every clock tick; minutes > 0 books a repeating deadline item
// firing on calendar-aligned boundaries of minutes*60 seconds. Re-registering
// an existing id replaces its definition.
func (s *Service) Repeat(id string, job Job, minutes int) error {
	if err := validateID(id); err != nil {
		return err
	}
	if job == nil {
		return ErrNilJob
	}
	if minutes < 0 {
		return ErrNegativeInterval
	}

	if minutes == 0 {
		s.addTicker(&item{id: id, kind: KindTicking, job: job})
		return nil
	}

	nowSec := s.now().Unix()
	_, off := time.Unix(nowSec, 0).In(s.location()).Zone()
	interval := int64(minutes) * 60
	s.add(&item{
		id:            id,
		kind:          KindRepeating,
		job:           job,
		scheduled:     true,
		nextRun:       nextAligned(nowSec, interval, int64(off)),
		retryDelaySec: s.retryBaseSec(),
		intervalSec:   interval,
	})
	return nil
}

// RepeatSpec registers a repeating deadline item whose next run is computed
// from a cron expression ("*/5 * * * *", "@every 1h", "@daily", ...) instead
// of a fixed aligned interval. Failure retries behave exactly as for Repeat.
func (s *Service) RepeatSpec(id string, job Job, spec string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if job == nil {
		return ErrNilJob
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return err
	}

	s.add(&item{
		id:            id,
		kind:          KindRepeating,
		job:           job,
		scheduled:     true,
		nextRun:       sched.Next(s.now().In(s.location())).Unix(),
		retryDelaySec: s.retryBaseSec(),
		sched:         sched,
	})
	return nil
}

// Once registers a one-shot deadline item firing at now + minutes*60 + seconds.
// Both components must be non-negative; a negative minutes value cannot be
// offset by a large seconds value.
func (s *Service) Once(id string, job Job, minutes, seconds int) error {
	if err := validateID(id); err != nil {
		return err
	}
	if job == nil {
		return ErrNilJob
	}
	if minutes < 0 || seconds < 0 {
		return ErrNegativeDelay
	}
	delay := int64(minutes)*60 + int64(seconds)

	s.add(&item{
		id:            id,
		kind:          KindOneShot,
		job:           job,
		scheduled:     true,
		nextRun:       s.now().Unix() + delay,
		retryDelaySec: s.retryBaseSec(),
	})
	return nil
}

// At registers a one-shot deadline item firing at the given epoch second.
// Timestamps in the past fire on the next tick.
func (s *Service) At(id string, job Job, ts int64) error {
	if err := validateID(id); err != nil {
		return err
	}
	if job == nil {
		return ErrNilJob
	}
	if ts <= 0 {
		return ErrInvalidTimestamp
	}

	s.add(&item{
		id:            id,
		kind:          KindOneShot,
		job:           job,
		scheduled:     true,
		nextRun:       ts,
		retryDelaySec: s.retryBaseSec(),
	})
	return nil
}

// Remove drops the item with the given id from both containers. An in-flight
// run is not aborted; removal only prevents future runs. Reports whether an
// item was found.
func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, it := range s.tickers {
		if it.id == id {
			s.tickers = append(s.tickers[:i], s.tickers[i+1:]...)
			return true
		}
	}
	return s.queue.remove(id)
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	if id == sentinelID {
		return ErrReservedID
	}
	return nil
}

// addTicker inserts or replaces a ticking item.
func (s *Service) addTicker(it *item) {
	s.mu.Lock()
	replaced := false
	for i, cur := range s.tickers {
		if cur.id == it.id {
			s.tickers[i] = it
			replaced = true
			break
		}
	}
	if !replaced {
		s.tickers = append(s.tickers, it)
	}
	s.mu.Unlock()

	s.announce(it, replaced)
}

// add inserts or replaces a deadline item in the queue. Items not in the
// Scheduled state are rejected; the queue only ever holds bookable work.
func (s *Service) add(it *item) {
	if !it.scheduled {
		s.log.Error("refusing to queue unscheduled item",
			logx.String("item", it.id),
			logx.String("kind", it.kind.String()),
		)
		return
	}

	s.mu.Lock()
	replaced := s.queue.upsert(it)
	s.mu.Unlock()

	s.announce(it, replaced)
}

// rebook re-inserts an item the tick loop just settled. Unlike add it stays
// quiet: reschedules are routine, not registration events.
func (s *Service) rebook(it *item) {
	s.mu.Lock()
	s.queue.upsert(it)
	s.mu.Unlock()
}

func (s *Service) announce(it *item, replaced bool) {
	evType := EventItemRegistered
	msg := "item registered"
	if replaced {
		evType = EventItemReplaced
		msg = "item replaced"
	}

	fields := []logx.Field{
		logx.String("item", it.id),
		logx.String("kind", it.kind.String()),
	}
	if it.kind != KindTicking {
		fields = append(fields, logx.Time("next_run", time.Unix(it.nextRun, 0).In(s.location())))
	}
	s.log.Debug(msg, fields...)

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: evType, Time: s.now(), Data: it.id})
	}
}
