package scheduler

import "testing"

func TestQueueOrdering(t *testing.T) {
	t.Parallel()
	q := newDeadlineQueue()
	q.upsert(&item{id: "y", scheduled: true, nextRun: 5})
	q.upsert(&item{id: "x", scheduled: true, nextRun: 5})
	q.upsert(&item{id: "a", scheduled: true, nextRun: 3})

	want := []string{"a", "x", "y", sentinelID}
	for i, id := range want {
		if q.items[i].id != id {
			t.Fatalf("position %d: got %q, want %q", i, q.items[i].id, id)
		}
	}
}

func TestQueueUpsertReplaces(t *testing.T) {
	t.Parallel()
	q := newDeadlineQueue()
	if replaced := q.upsert(&item{id: "a", scheduled: true, nextRun: 10}); replaced {
		t.Fatal("first insert reported as replace")
	}
	if replaced := q.upsert(&item{id: "a", scheduled: true, nextRun: 20}); !replaced {
		t.Fatal("second insert under same id should replace")
	}
	if q.pending() != 1 {
		t.Fatalf("pending = %d, want 1", q.pending())
	}
	if q.items[0].nextRun != 20 {
		t.Fatalf("nextRun = %d, want 20", q.items[0].nextRun)
	}
}

func TestQueuePopDue(t *testing.T) {
	t.Parallel()
	q := newDeadlineQueue()
	q.upsert(&item{id: "a", scheduled: true, nextRun: 3})
	q.upsert(&item{id: "b", scheduled: true, nextRun: 5})
	q.upsert(&item{id: "c", scheduled: true, nextRun: 9})

	if due := q.popDue(2); due != nil {
		t.Fatalf("nothing due yet, got %d items", len(due))
	}

	due := q.popDue(5)
	if len(due) != 2 || due[0].id != "a" || due[1].id != "b" {
		t.Fatalf("unexpected due set: %+v", due)
	}
	if q.pending() != 1 {
		t.Fatalf("pending = %d, want 1", q.pending())
	}

	// Sentinel bounds the scan even for far-future now values.
	if due := q.popDue(1 << 37); len(due) != 1 || due[0].id != "c" {
		t.Fatalf("unexpected due set: %+v", due)
	}
	if q.pending() != 0 {
		t.Fatalf("pending = %d, want 0", q.pending())
	}
}

func TestQueueRemove(t *testing.T) {
	t.Parallel()
	q := newDeadlineQueue()
	q.upsert(&item{id: "a", scheduled: true, nextRun: 3})

	if !q.remove("a") {
		t.Fatal("remove existing item should report true")
	}
	if q.remove("a") {
		t.Fatal("double remove should report false")
	}
	if q.remove(sentinelID) {
		t.Fatal("sentinel must not be removable")
	}
	if len(q.items) != 1 {
		t.Fatalf("queue should hold only the sentinel, got %d items", len(q.items))
	}
}
