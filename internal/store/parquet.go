package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradeclock/internal/domain"
)

// Compile-time interface check.
var _ EventArchive = (*ParquetArchive)(nil)

// ParquetArchive implements EventArchive using Parquet files on disk.
type ParquetArchive struct {
	DataDir string
}

// NewParquetArchive creates a ParquetArchive rooted at the given data
// directory.
func NewParquetArchive(dataDir string) *ParquetArchive {
	return &ParquetArchive{DataDir: dataDir}
}

// EventRecord is the Parquet schema for archived calendar events.
type EventRecord struct {
	ID        string `parquet:"id"`
	Timestamp int64  `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Name      string `parquet:"name"`
	Country   string `parquet:"country"`
	Impact    string `parquet:"impact"`
}

// ArchiveEvents writes events to yearly Parquet files, merging with existing
// records. Layout: <DataDir>/events/<YYYY>.parquet. Events without a
// resolvable timestamp are skipped.
func (a *ParquetArchive) ArchiveEvents(_ context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	groups := make(map[int][]EventRecord)
	for _, ev := range events {
		ms, ok := domain.ResolveEpoch(ev)
		if !ok {
			continue
		}
		year := time.UnixMilli(ms).UTC().Year()
		groups[year] = append(groups[year], EventRecord{
			ID:        ev.Identifier(),
			Timestamp: ms,
			Name:      ev.Name,
			Country:   ev.Country,
			Impact:    ev.Impact,
		})
	}

	for year, records := range groups {
		path := a.yearPath(year)

		// Read existing records to merge.
		existing, _ := readParquetFile[EventRecord](path)
		merged := mergeEventRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing event archive for %d: %w", year, err)
		}
	}
	return nil
}

// ReadYear returns all archived events for the given calendar year, ordered
// by epoch ascending.
func (a *ParquetArchive) ReadYear(_ context.Context, year int) ([]domain.Event, error) {
	path := a.yearPath(year)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	records, err := readParquetFile[EventRecord](path)
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(records))
	for _, r := range records {
		events = append(events, domain.Event{
			ID:          r.ID,
			TimestampMs: r.Timestamp,
			Name:        r.Name,
			Country:     r.Country,
			Impact:      r.Impact,
		})
	}
	return events, nil
}

// yearPath returns the filesystem path for a yearly archive file.
// Layout: <dataDir>/events/<YYYY>.parquet
func (a *ParquetArchive) yearPath(year int) string {
	return filepath.Join(a.DataDir, "events", fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeEventRecords deduplicates records by (id, timestamp), preferring new
// records over existing ones. Results are sorted by timestamp.
func mergeEventRecords(existing, incoming []EventRecord) []EventRecord {
	type key struct {
		id string
		ts int64
	}
	seen := make(map[key]EventRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.ID, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.ID, r.Timestamp}] = r
	}

	merged := make([]EventRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
