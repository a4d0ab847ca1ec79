package reports

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "refinery.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenStore_SeedsDefaultPatternsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refinery.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s, err = OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	patterns, err := s.ListPatterns(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 seeded patterns after reopen, got %d", len(patterns))
	}
	if patterns[0].Name != "Default Pattern" || patterns[0].Pattern != DefaultFilenamePattern || !patterns[0].IsActive {
		t.Fatalf("unexpected first pattern %+v", patterns[0])
	}
}

func TestStore_AdvanceDownloadUntilTerminal(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := DownloadRecord{Year: "2024", UserID: "u1"}
	if err := s.CreateDownload(ctx, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID == 0 || rec.Status != StatusPending {
		t.Fatalf("unexpected created record %+v", rec)
	}

	got, err := s.AdvanceDownload(ctx, rec.ID, 10, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusInProgress || got.FileCount != 10 {
		t.Fatalf("unexpected record after advance %+v", got)
	}

	got, err = s.AdvanceDownload(ctx, rec.ID, 5, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompletedWithErrors || got.FileCount != 15 || got.ErrorCount != 1 || got.CompletedAt == nil {
		t.Fatalf("unexpected record after finish %+v", got)
	}

	if _, err := s.AdvanceDownload(ctx, rec.ID, 1, 0, false); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	after, err := s.GetDownload(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.FileCount != 15 || after.Status != StatusCompletedWithErrors {
		t.Fatalf("terminal record changed: %+v", after)
	}

	active, err := s.ListActiveDownloads(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active downloads, got %d", len(active))
	}
}

func TestStore_GetDownloadNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetDownload(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.AdvanceDownload(context.Background(), 42, 1, 0, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListErrorLogsFilters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id := uint(7)
	entries := []ErrorLogEntry{
		{ErrorMessage: "Fetch failed", UserID: "alice", DownloadID: &id},
		{ErrorMessage: "timeout talking to RRC", UserID: "bob"},
		{ErrorMessage: "ZIP generation failed", UserID: "carol", DownloadID: &id},
	}
	for i := range entries {
		if err := s.CreateErrorLog(ctx, &entries[i]); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListErrorLogs(ctx, ErrorLogFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	byDownload, err := s.ListErrorLogs(ctx, ErrorLogFilter{DownloadID: &id})
	if err != nil {
		t.Fatal(err)
	}
	if len(byDownload) != 2 {
		t.Fatalf("expected 2 entries for download 7, got %d", len(byDownload))
	}

	byQuery, err := s.ListErrorLogs(ctx, ErrorLogFilter{Query: "FAILED"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byQuery) != 2 {
		t.Fatalf("expected 2 entries matching 'failed', got %d", len(byQuery))
	}

	byUser, err := s.ListErrorLogs(ctx, ErrorLogFilter{Query: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byUser) != 1 || byUser[0].UserID != "bob" {
		t.Fatalf("expected bob's entry, got %+v", byUser)
	}

	limited, err := s.ListErrorLogs(ctx, ErrorLogFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 entry with limit, got %d", len(limited))
	}
}

func TestStore_SaveSettingsUpserts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SaveSettings(ctx, map[string]string{"smtp_host": "a.example", "smtp_port": "25"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSettings(ctx, map[string]string{"smtp_host": "b.example"}); err != nil {
		t.Fatal(err)
	}
	kv, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if kv["smtp_host"] != "b.example" || kv["smtp_port"] != "25" {
		t.Fatalf("unexpected settings %v", kv)
	}
	if len(kv) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(kv))
	}
}
