package scheduler

import (
	"sort"
	"time"
)

// sentinelID is reserved; the registration facade rejects it.
const sentinelID = "~sentinel"

// sentinelAt keeps the queue non-empty so the due scan in popDue never needs
// a bounds check.
var sentinelAt = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()

// deadlineQueue holds deadline items sorted ascending by (nextRun, id), id
// compared lexicographically as tie-break. It always contains the sentinel.
type deadlineQueue struct {
	items []*item
}

func newDeadlineQueue() *deadlineQueue {
	return &deadlineQueue{items: []*item{{
		id:        sentinelID,
		kind:      KindOneShot,
		scheduled: true,
		nextRun:   sentinelAt,
	}}}
}

// upsert replaces the item with the same id in place, or appends, then
// restores the sort order. Reports whether an existing item was replaced.
func (q *deadlineQueue) upsert(it *item) bool {
	replaced := false
	for i, cur := range q.items {
		if cur.id == it.id {
			q.items[i] = it
			replaced = true
			break
		}
	}
	if !replaced {
		q.items = append(q.items, it)
	}
	q.sort()
	return replaced
}

func (q *deadlineQueue) sort() {
	sort.Slice(q.items, func(i, j int) bool {
		a, b := q.items[i], q.items[j]
		if a.nextRun != b.nextRun {
			return a.nextRun < b.nextRun
		}
		return a.id < b.id
	})
}

// popDue removes and returns every item with nextRun <= now. Due items are a
// contiguous prefix of the sorted queue; the sentinel bounds the scan.
func (q *deadlineQueue) popDue(now int64) []*item {
	n := 0
	for q.items[n].nextRun <= now {
		n++
	}
	if n == 0 {
		return nil
	}
	due := make([]*item, n)
	copy(due, q.items[:n])
	q.items = append(q.items[:0], q.items[n:]...)
	return due
}

// remove deletes the item with the given id. The sentinel is not removable.
func (q *deadlineQueue) remove(id string) bool {
	if id == sentinelID {
		return false
	}
	for i, cur := range q.items {
		if cur.id == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// pending returns the number of real (non-sentinel) items.
func (q *deadlineQueue) pending() int {
	return len(q.items) - 1
}
