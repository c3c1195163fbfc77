// One-shot tool: move stored economic events into the yearly parquet
// archive and prune old rows from the SQLite store. The server runs the
// same job on a schedule; this binary exists for backfills and manual runs.
//
// Usage:
//
//	go run cmd/events-archive/main.go [-keep-days N]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"tradeclock/internal/config"
	"tradeclock/internal/store"
	"tradeclock/internal/util"
)

func main() {
	keepDays := flag.Int("keep-days", 0, "override archive.keep_days from config")
	flag.Parse()

	cfgPath := "config/tradeclock.yaml"
	if p := os.Getenv("TRADECLOCK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	es, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening event store: %v", err)
	}
	defer es.Close()

	keep := cfg.Archive.KeepDays
	if *keepDays > 0 {
		keep = *keepDays
	}
	cutoff := time.Now().AddDate(0, 0, -keep)

	archive := store.NewParquetArchive(cfg.Storage.DataDir)
	if err := store.RunArchive(context.Background(), es, archive, cutoff, logger); err != nil {
		log.Fatalf("archive failed: %v", err)
	}
}
