package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mtraver/airquality/reading"
)

// No IF NOT EXISTS: like a time-series collection, the readings table is created once
// and creating it again is an error.
const createReadingsSQL = `CREATE TABLE sensor_data (
  ts     TEXT NOT NULL,
  value  REAL NOT NULL,
  source TEXT NOT NULL
);
CREATE INDEX idx_sensor_data_ts ON sensor_data(ts);`

const createWeeklySQL = `CREATE TABLE IF NOT EXISTS weekly_avg (
  week       TEXT    NOT NULL,
  week_start TEXT    NOT NULL,
  avg_value  REAL    NOT NULL,
  count      INTEGER NOT NULL
);`

// Timestamps are stored as fixed-width UTC text so that ORDER BY ts is time order.
// RFC 3339 with trimmed fractional seconds sorts .55 before .5.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	insertReadingSQL = `INSERT INTO sensor_data (ts, value, source) VALUES (?, ?, ?)`
	selectReadingSQL = `SELECT ts, value, source FROM sensor_data ORDER BY ts, rowid`
	insertWeeklySQL  = `INSERT INTO weekly_avg (week, week_start, avg_value, count) VALUES (?, ?, ?, ?)`
)

// SQLite keeps both containers as tables in a single database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at path, creating its directory if needed. The
// special path ":memory:" opens a private in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return &SQLite{db: db}, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path, nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path), nil
}

func (s *SQLite) EnsureReadings(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createReadingsSQL)
	return err
}

// insertBatch runs insert once per row inside a single transaction.
func (s *SQLite) insertBatch(ctx context.Context, query string, n int, args func(i int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLite) InsertReadings(ctx context.Context, readings []reading.Reading) error {
	err := s.insertBatch(ctx, insertReadingSQL, len(readings), func(i int) []any {
		r := readings[i]
		return []any{r.Timestamp.UTC().Format(sqliteTimeLayout), r.Value, r.Source()}
	})
	if err != nil {
		return fmt.Errorf("insert readings: %w", err)
	}
	return nil
}

func (s *SQLite) Readings(ctx context.Context) ([]reading.Reading, error) {
	rows, err := s.db.QueryContext(ctx, selectReadingSQL)
	if err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}
	defer rows.Close()

	var out []reading.Reading
	for rows.Next() {
		var (
			ts     string
			value  float64
			source string
		)
		if err := rows.Scan(&ts, &value, &source); err != nil {
			return nil, err
		}

		t, err := time.Parse(sqliteTimeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		out = append(out, reading.New(t, value, source))
	}
	return out, rows.Err()
}

func (s *SQLite) InsertWeekly(ctx context.Context, weeks []reading.WeeklyAverage) error {
	if _, err := s.db.ExecContext(ctx, createWeeklySQL); err != nil {
		return fmt.Errorf("create weekly table: %w", err)
	}

	err := s.insertBatch(ctx, insertWeeklySQL, len(weeks), func(i int) []any {
		w := weeks[i]
		return []any{w.Week, w.WeekStart.UTC().Format(time.RFC3339), w.AvgValue, w.Count}
	})
	if err != nil {
		return fmt.Errorf("insert weekly averages: %w", err)
	}
	return nil
}

func (s *SQLite) Close(ctx context.Context) error {
	return s.db.Close()
}
