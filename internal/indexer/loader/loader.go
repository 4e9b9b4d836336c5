// Package loader bootstraps the in-memory index from a PostgreSQL table of
// documents at startup. The table is only read; the index is never written
// back.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-server/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-server/pkg/postgres"
)

// Record is one row of the corpus table:
//
//	id BIGINT, content TEXT, status TEXT, ratings INTEGER[]
type Record struct {
	ID      int64
	Content string
	Status  string
	Ratings []int64
}

type Stats struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

type Loader struct {
	client *postgres.Client
	table  string
	engine *indexer.Engine
	logger *slog.Logger
}

func New(client *postgres.Client, table string, engine *indexer.Engine) *Loader {
	return &Loader{
		client: client,
		table:  table,
		engine: engine,
		logger: slog.Default().With("component", "corpus-loader"),
	}
}

// Load reads the whole table in one snapshot and indexes every row.
func (l *Loader) Load(ctx context.Context) (Stats, error) {
	start := time.Now()
	var records []Record
	err := l.client.InReadTx(ctx, func(tx *sql.Tx) error {
		var err error
		records, err = fetch(ctx, tx, l.table)
		return err
	})
	if err != nil {
		return Stats{}, fmt.Errorf("loading corpus from %s: %w", l.table, err)
	}

	stats := IndexRecords(l.engine, records, l.logger)
	l.logger.Info("corpus loaded",
		"table", l.table,
		"loaded", stats.Loaded,
		"skipped", stats.Skipped,
		"duration", time.Since(start),
	)
	return stats, nil
}

func fetch(ctx context.Context, tx *sql.Tx, table string) ([]Record, error) {
	query := fmt.Sprintf(
		`SELECT id, content, status, COALESCE(ratings, '{}') FROM %s ORDER BY id`,
		pq.QuoteIdentifier(table),
	)
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Status, pq.Array(&rec.Ratings)); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	return records, nil
}

// IndexRecords adds records to engine. A row with an unknown status or one
// the engine rejects is logged and skipped.
func IndexRecords(engine *indexer.Engine, records []Record, logger *slog.Logger) Stats {
	var stats Stats
	for _, rec := range records {
		status, err := index.ParseStatus(rec.Status)
		if err == nil {
			ratings := make([]int, len(rec.Ratings))
			for i, r := range rec.Ratings {
				ratings[i] = int(r)
			}
			err = engine.AddDocument(int(rec.ID), rec.Content, status, ratings)
		}
		if err != nil {
			logger.Warn("skipping corpus row", "doc_id", rec.ID, "error", err)
			stats.Skipped++
			continue
		}
		stats.Loaded++
	}
	return stats
}
