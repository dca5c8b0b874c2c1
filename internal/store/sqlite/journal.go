package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradesim/internal/strategy"
)

// Journal persists backtest reports (run summary, fills, trades) for
// analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL,
		strategy    TEXT NOT NULL,
		asset       TEXT NOT NULL,
		from_tick   INTEGER NOT NULL,
		to_tick     INTEGER NOT NULL,
		bars        INTEGER NOT NULL,
		net_profit  REAL NOT NULL,
		trades      INTEGER NOT NULL,
		summary     TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS fills (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run         INTEGER NOT NULL REFERENCES runs(id),
		fill_id     TEXT NOT NULL,
		bar         INTEGER NOT NULL,
		direction   TEXT NOT NULL,
		size        REAL NOT NULL,
		price       REAL,
		slippage    REAL,
		comment     TEXT,
		filled_at   TEXT
	);
	CREATE TABLE IF NOT EXISTS trades (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run         INTEGER NOT NULL REFERENCES runs(id),
		direction   TEXT NOT NULL,
		size        REAL NOT NULL,
		entry_bar   INTEGER NOT NULL,
		entry_price REAL,
		exit_bar    INTEGER,
		exit_price  REAL,
		closed      INTEGER NOT NULL,
		profit      REAL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id);
	CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run);
	CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite journal schema: %w", err)
	}

	slog.Debug("trade journal opened", "path", dbPath)
	return &Journal{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// RecordReport stores a report in one transaction and returns its row id.
func (j *Journal) RecordReport(r *strategy.Report) (int64, error) {
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return 0, fmt.Errorf("marshal summary: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		`INSERT INTO runs (run_id, strategy, asset, from_tick, to_tick, bars, net_profit, trades, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Strategy, r.Asset, r.Period.From, r.Period.To, r.Bars,
		r.Summary.NetProfit, r.Summary.TotalTrades, string(summary),
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("sqlite insert run: %w", err)
	}
	run, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	for _, f := range r.Fills {
		var at sql.NullString
		if !f.Time.IsZero() {
			at = sql.NullString{String: f.Time.Format(time.RFC3339), Valid: true}
		}
		if _, err := tx.Exec(
			`INSERT INTO fills (run, fill_id, bar, direction, size, price, slippage, comment, filled_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run, f.ID, f.Bar, f.Direction.String(), f.Size, nullable(f.Price), nullable(f.Slippage), f.Comment, at,
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("sqlite insert fill: %w", err)
		}
	}

	for _, t := range r.Trades {
		var exitBar sql.NullInt64
		exitPrice := sql.NullFloat64{}
		if t.Exit != nil {
			exitBar = sql.NullInt64{Int64: int64(t.Exit.Bar), Valid: true}
			exitPrice = nullable(t.Exit.Price)
		}
		if _, err := tx.Exec(
			`INSERT INTO trades (run, direction, size, entry_bar, entry_price, exit_bar, exit_price, closed, profit)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run, t.Direction, t.Size, t.Entry.Bar, nullable(t.Entry.Price), exitBar, exitPrice, t.Closed, nullable(t.Profit),
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("sqlite insert trade: %w", err)
		}
	}
	return run, tx.Commit()
}

// RunRecord is a row of the runs table.
type RunRecord struct {
	ID        int64   `json:"id"`
	RunID     string  `json:"run_id"`
	Strategy  string  `json:"strategy"`
	Asset     string  `json:"asset"`
	From      int     `json:"from"`
	To        int     `json:"to"`
	Bars      int     `json:"bars"`
	NetProfit float64 `json:"net_profit"`
	Trades    int     `json:"trades"`
}

// GetRuns returns the runs of runID, oldest first. An empty runID returns
// the last limit runs of any batch, newest first.
func (j *Journal) GetRuns(runID string, limit int) ([]RunRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	const cols = `SELECT id, run_id, strategy, asset, from_tick, to_tick, bars, net_profit, trades FROM runs`
	var (
		rows *sql.Rows
		err  error
	)
	if runID == "" {
		rows, err = j.db.Query(cols+` ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = j.db.Query(cols+` WHERE run_id = ? ORDER BY id ASC`, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.Strategy, &r.Asset, &r.From, &r.To, &r.Bars, &r.NetProfit, &r.Trades); err != nil {
			return nil, fmt.Errorf("sqlite scan runs: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FillRecord is a row of the fills table.
type FillRecord struct {
	FillID    string  `json:"fill_id"`
	Bar       int     `json:"bar"`
	Direction string  `json:"direction"`
	Size      float64 `json:"size"`
	Price     float64 `json:"price"`
	Comment   string  `json:"comment"`
}

// GetFills returns the fills of one run row in execution order.
func (j *Journal) GetFills(run int64) ([]FillRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT fill_id, bar, direction, size, price, comment FROM fills WHERE run = ? ORDER BY id ASC`, run)
	if err != nil {
		return nil, fmt.Errorf("sqlite query fills: %w", err)
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var (
			f       FillRecord
			price   sql.NullFloat64
			comment sql.NullString
		)
		if err := rows.Scan(&f.FillID, &f.Bar, &f.Direction, &f.Size, &price, &comment); err != nil {
			return nil, fmt.Errorf("sqlite scan fills: %w", err)
		}
		f.Price, f.Comment = orNaN(price), comment.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
