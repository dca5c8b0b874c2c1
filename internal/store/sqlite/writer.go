// Package sqlite stores bar history and backtest journals in SQLite
// (mattn/go-sqlite3).
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"tradesim/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const defaultBatchSize = 500

// dsn opens in WAL mode with a busy timeout so a reader and the single
// writer can share the file.
func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath    string // path to SQLite database file, e.g. "data/bars.db"
	BatchSize int    // rows per transaction, default 500
}

// Writer loads bar history into SQLite. Single connection, batched
// transactions.
type Writer struct {
	db        *sql.DB
	batchSize int
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	slog.Debug("sqlite writer opened", "path", cfg.DBPath)
	return &Writer{db: db, batchSize: cfg.BatchSize}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS instruments (
			symbol       TEXT PRIMARY KEY,
			min_tick     REAL,
			lot_size     REAL,
			point_value  REAL NOT NULL DEFAULT 1,
			timeframe_s  INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS bars (
			symbol  TEXT    NOT NULL,
			idx     INTEGER NOT NULL,
			ts      INTEGER,
			open    REAL,
			high    REAL,
			low     REAL,
			close   REAL,
			volume  REAL,
			PRIMARY KEY (symbol, idx)
		);
	`)
	return err
}

// SaveInstrument stores the instrument metadata and bar timeframe of a
// symbol, replacing any previous row.
func (w *Writer) SaveInstrument(inst model.Instrument, timeframe time.Duration) error {
	_, err := w.db.Exec(`
		INSERT OR REPLACE INTO instruments (symbol, min_tick, lot_size, point_value, timeframe_s)
		VALUES (?, ?, ?, ?, ?)
	`, inst.Symbol, nullable(inst.MinTick), nullable(inst.LotSize), inst.Points(), int64(timeframe/time.Second))
	if err != nil {
		return fmt.Errorf("sqlite save instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

// WriteBars replaces the bars of symbol at the given indices. Bars are
// written in transactions of BatchSize rows.
func (w *Writer) WriteBars(symbol string, bars []model.Bar) error {
	start := time.Now()
	for from := 0; from < len(bars); from += w.batchSize {
		to := min(from+w.batchSize, len(bars))
		if err := w.insertBatch(symbol, bars[from:to]); err != nil {
			return fmt.Errorf("sqlite write bars %s: %w", symbol, err)
		}
	}
	slog.Debug("sqlite bars committed", "symbol", symbol, "bars", len(bars), "elapsed", time.Since(start))
	return nil
}

// insertBatch inserts a batch of bars in a single transaction.
func (w *Writer) insertBatch(symbol string, bars []model.Bar) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, idx, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		var ts sql.NullInt64
		if b.HasTime {
			ts = sql.NullInt64{Int64: b.Time.Unix(), Valid: true}
		}
		_, err := stmt.Exec(symbol, b.Index, ts,
			nullable(b.Open), nullable(b.High), nullable(b.Low), nullable(b.Close), nullable(b.Volume))
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

// nullable stores NaN as NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// orNaN reads NULL back as NaN.
func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
