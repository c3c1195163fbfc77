package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tradeclock/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ EventStore = (*SQLiteStore)(nil)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	id      TEXT    NOT NULL,
	ts_ms   INTEGER NOT NULL,
	name    TEXT    NOT NULL,
	country TEXT    NOT NULL DEFAULT '',
	impact  TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (id, ts_ms)
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events (ts_ms);
`

// SQLiteStore implements EventStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(eventsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying events schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveEvents upserts events in a single transaction, keyed by
// (identifier, epoch). Events with no resolvable timestamp are skipped.
func (s *SQLiteStore) SaveEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (id, ts_ms, name, country, impact)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id, ts_ms) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			impact = excluded.impact`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		ms, ok := domain.ResolveEpoch(ev)
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, ev.Identifier(), ms, ev.Name, ev.Country, ev.Impact); err != nil {
			return fmt.Errorf("upserting event %s: %w", ev.Identifier(), err)
		}
	}

	return tx.Commit()
}

// EventsBetween returns events with epoch in [start, end) ordered ascending.
func (s *SQLiteStore) EventsBetween(ctx context.Context, start, end time.Time) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts_ms, name, country, impact
		FROM events
		WHERE ts_ms >= ? AND ts_ms < ?
		ORDER BY ts_ms ASC`,
		start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(&ev.ID, &ev.TimestampMs, &ev.Name, &ev.Country, &ev.Impact); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteBefore removes events with epoch before cutoff.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE ts_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
