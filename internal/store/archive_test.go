package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := NewArchive(filepath.Join(t.TempDir(), "summaries.db"), testLogger())
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchive_SaveAndRecent(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	if err := a.SaveSummary(ctx, 123, "100", "第一次总结", "", false); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := a.SaveSummary(ctx, 123, "2h", "第二次总结", "/tmp/img.png", true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := a.SaveSummary(ctx, 456, "1d", "别的群", "", false); err != nil {
		t.Fatalf("save: %v", err)
	}

	recs, err := a.Recent(ctx, 123, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	// Newest first.
	if recs[0].Summary != "第二次总结" {
		t.Fatalf("unexpected order, first = %q", recs[0].Summary)
	}
	if !recs[0].Degraded || recs[0].ImageRef != "/tmp/img.png" {
		t.Fatalf("record fields lost: %+v", recs[0])
	}
	if recs[1].Degraded {
		t.Fatal("degraded flag leaked onto the wrong record")
	}
}

func TestArchive_RecentLimit(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := a.SaveSummary(ctx, 1, "30", "s", "", false); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	recs, err := a.Recent(ctx, 1, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}

	n, err := a.Count(ctx, 1)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected count 5, got %d", n)
	}
}

func TestArchive_EmptyGroup(t *testing.T) {
	a := newTestArchive(t)

	recs, err := a.Recent(context.Background(), 999, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}
