package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradesim/internal/data"
	"tradesim/internal/model"
)

// ErrNoBars is returned when a symbol has no stored bars.
var ErrNoBars = errors.New("sqlite: no bars")

// Reader provides read-only access to stored bars.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Debug("sqlite reader opened", "path", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Symbols lists the symbols that have bars.
func (r *Reader) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbols: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Instrument returns the stored metadata of symbol. A symbol without a row
// gets model.NewInstrument defaults and a zero timeframe.
func (r *Reader) Instrument(symbol string) (model.Instrument, time.Duration, error) {
	var (
		tick, lot sql.NullFloat64
		pv        float64
		tfSeconds int64
	)
	err := r.db.QueryRow(`
		SELECT min_tick, lot_size, point_value, timeframe_s
		FROM instruments WHERE symbol = ?
	`, symbol).Scan(&tick, &lot, &pv, &tfSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewInstrument(symbol), 0, nil
	}
	if err != nil {
		return model.Instrument{}, 0, fmt.Errorf("sqlite read instrument %s: %w", symbol, err)
	}
	inst := model.Instrument{Symbol: symbol, MinTick: orNaN(tick), LotSize: orNaN(lot), PointValue: pv}
	return inst, time.Duration(tfSeconds) * time.Second, nil
}

// ReadBars reads the bars of symbol ordered by index. Bar indices are
// renumbered from 0 so they match provider ticks.
func (r *Reader) ReadBars(symbol string) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ?
		ORDER BY idx ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var (
			ts                     sql.NullInt64
			open, high, low, cl, v sql.NullFloat64
		)
		if err := rows.Scan(&ts, &open, &high, &low, &cl, &v); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b := model.Bar{
			Index: len(bars),
			Open:  orNaN(open), High: orNaN(high), Low: orNaN(low), Close: orNaN(cl), Volume: orNaN(v),
		}
		if ts.Valid {
			b.Time, b.HasTime = time.Unix(ts.Int64, 0).UTC(), true
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LoadProvider reads symbol into an in-memory provider.
func (r *Reader) LoadProvider(symbol string) (*data.Memory, error) {
	inst, tf, err := r.Instrument(symbol)
	if err != nil {
		return nil, err
	}
	bars, err := r.ReadBars(symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoBars, symbol)
	}
	m, err := data.NewMemory(inst, tf, bars)
	if err != nil {
		return nil, fmt.Errorf("sqlite load %s: %w", symbol, err)
	}
	return m, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
