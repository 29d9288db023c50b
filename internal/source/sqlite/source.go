// Package sqlite provides a BarSource backed by a SQLite bar archive,
// used by cmd/replay and for offline sessions against recorded history.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signal-enginev1/internal/fetch"
	"signal-enginev1/internal/model"
)

// Source reads OHLCV bars from a SQLite `bars` table:
//
//	bars(symbol TEXT, timeframe TEXT, ts INTEGER, open REAL, high REAL,
//	     low REAL, close REAL, volume REAL)
type Source struct {
	db *sql.DB
}

// Open opens a read-only SQLite connection to the bar archive.
func Open(dbPath string) (*Source, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-source] opened %s", dbPath)
	return &Source{db: db}, nil
}

// NewWithDB wraps an existing database handle (used in tests).
func NewWithDB(db *sql.DB) *Source {
	return &Source{db: db}
}

// DB exposes the underlying handle for liveness probes.
func (s *Source) DB() *sql.DB { return s.db }

// Fetch returns the count most recent bars for (symbol, timeframe),
// oldest first. A symbol or timeframe with no rows at all is a permanent
// error; query failures are transient (the archive may be mid-write).
func (s *Source) Fetch(ctx context.Context, symbol string, tf model.Timeframe, count int) ([]model.Bar, error) {
	if !tf.Valid() {
		return nil, fetch.Permanent(fmt.Errorf("invalid timeframe %q", tf))
	}
	if count <= 0 {
		return nil, fetch.Permanent(fmt.Errorf("invalid bar count %d", count))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND timeframe = ?
		ORDER BY ts DESC
		LIMIT ?
	`, symbol, string(tf), count)
	if err != nil {
		return nil, fetch.Transient(fmt.Errorf("sqlite query bars: %w", err))
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tfStr string
		var tsUnix int64
		if err := rows.Scan(&b.Symbol, &tfStr, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fetch.Transient(fmt.Errorf("sqlite scan bars: %w", err))
		}
		b.Timeframe = model.Timeframe(tfStr)
		b.TS = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fetch.Transient(err)
	}
	if len(bars) == 0 {
		return nil, fetch.Permanent(fmt.Errorf("no bars for %s@%s", symbol, tf))
	}

	// Reverse DESC results to chronological order.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// Symbols lists the distinct symbols present in the archive.
func (s *Source) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *Source) Close() error {
	return s.db.Close()
}
