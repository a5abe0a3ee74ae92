package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "tickd/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "history.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", "  NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("driver %q should disable the store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileAppendRecent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := st.Append(ctx, Record{
			At:     base.Add(time.Duration(i) * time.Second),
			ID:     "job",
			Kind:   "once",
			TookMS: int64(i),
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	got, err := st.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	// Newest last.
	if got[0].TookMS != 2 || got[2].TookMS != 4 {
		t.Fatalf("unexpected window: %+v", got)
	}
}

func TestFilePrune(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := st.Append(ctx, Record{At: base.Add(time.Duration(i) * time.Hour), ID: "job", Kind: "repeat"}); err != nil {
			t.Fatal(err)
		}
	}

	dropped, err := st.Prune(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Prune error: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}

	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records after prune, want 2", len(got))
	}

	// Appends after a prune land in the rewritten file.
	if err := st.Append(ctx, Record{At: base.Add(5 * time.Hour), ID: "job", Kind: "repeat"}); err != nil {
		t.Fatal(err)
	}
	got, err = st.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
}
