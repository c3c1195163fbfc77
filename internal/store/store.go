// Package store persists economic-calendar events: a SQLite store for the
// live working set and a Parquet archive for finished history.
package store

import (
	"context"
	"time"

	"tradeclock/internal/domain"
)

// EventStore persists and retrieves calendar events by time range.
type EventStore interface {
	// SaveEvents upserts a batch of events. Events without a resolvable
	// timestamp are skipped, not fatal.
	SaveEvents(ctx context.Context, events []domain.Event) error

	// EventsBetween returns events with epoch in [start, end), ordered by
	// epoch ascending.
	EventsBetween(ctx context.Context, start, end time.Time) ([]domain.Event, error)

	// DeleteBefore removes events with epoch before cutoff and reports how
	// many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventArchive stores finished event history outside the live database.
type EventArchive interface {
	// ArchiveEvents appends events to the archive, deduplicating by
	// (identifier, epoch).
	ArchiveEvents(ctx context.Context, events []domain.Event) error

	// ReadYear returns all archived events for a calendar year.
	ReadYear(ctx context.Context, year int) ([]domain.Event, error)
}
