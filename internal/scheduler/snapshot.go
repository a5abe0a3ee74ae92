package scheduler

import "time"

// Snap returns a point-in-time view of the scheduler for status surfaces.
func (s *Service) Snap() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Enabled:       s.cfg.Enabled,
		Timezone:      s.cfg.Timezone,
		RetryBase:     s.cfg.RetryBase,
		RetryMaxDelay: s.cfg.RetryMaxDelay,
	}
	for _, it := range s.tickers {
		snap.Ticking = append(snap.Ticking, it.id)
	}
	for _, it := range s.queue.items {
		if it.id == sentinelID {
			continue
		}
		snap.Pending = append(snap.Pending, ItemInfo{
			ID:          it.id,
			Kind:        it.kind.String(),
			NextRun:     time.Unix(it.nextRun, 0),
			RetryDelay:  time.Duration(it.retryDelaySec) * time.Second,
			Reschedules: it.rescheduleCount,
		})
	}
	s.mu.Unlock()

	s.hmu.Lock()
	snap.History = append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return snap
}

// History returns a copy of the in-memory run history, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

// Pending reports the number of booked deadline items.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.pending()
}
