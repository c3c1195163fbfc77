package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RunArchive copies every stored event into the archive, then prunes rows
// older than cutoff from the store. Archiving the full table keeps the
// yearly files complete even when a previous run was missed; the merge on
// write deduplicates.
func RunArchive(ctx context.Context, src EventStore, dst EventArchive, cutoff time.Time, log *slog.Logger) error {
	// Effectively unbounded range; events live in the near past and future.
	start := time.Unix(0, 0)
	end := time.Now().AddDate(10, 0, 0)

	events, err := src.EventsBetween(ctx, start, end)
	if err != nil {
		return fmt.Errorf("reading events for archive: %w", err)
	}
	if len(events) > 0 {
		if err := dst.ArchiveEvents(ctx, events); err != nil {
			return fmt.Errorf("writing archive: %w", err)
		}
	}

	pruned, err := src.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pruning archived events: %w", err)
	}

	log.Info("event archive complete",
		"archived", len(events),
		"pruned", pruned,
		"cutoff", cutoff.Format("2006-01-02"))
	return nil
}
