package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"tradeclock/internal/domain"
)

func TestRunArchive(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "events.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	old := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	if err := s.SaveEvents(ctx, []domain.Event{
		{ID: "old", Name: "Old Event", TimestampMs: old.UnixMilli()},
		{ID: "recent", Name: "Recent Event", TimestampMs: recent.UnixMilli()},
	}); err != nil {
		t.Fatalf("SaveEvents: %v", err)
	}

	archive := NewParquetArchive(dir)
	cutoff := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	if err := RunArchive(ctx, s, archive, cutoff, slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("RunArchive: %v", err)
	}

	// Both events land in the 2024 archive file.
	archived, err := archive.ReadYear(ctx, 2024)
	if err != nil {
		t.Fatalf("ReadYear: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("archived %d events, want 2", len(archived))
	}

	// Only the recent event survives the prune.
	left, err := s.EventsBetween(ctx, old.AddDate(0, 0, -1), recent.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("EventsBetween: %v", err)
	}
	if len(left) != 1 || left[0].ID != "recent" {
		t.Errorf("remaining events = %+v, want only recent", left)
	}
}

func TestRunArchiveEmptyStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "events.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	archive := NewParquetArchive(dir)
	err = RunArchive(context.Background(), s, archive, time.Now(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("RunArchive on empty store: %v", err)
	}
}
