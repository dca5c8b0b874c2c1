// Package parquet loads and writes bar history as Parquet files
// (parquet-go).
package parquet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	parquetgo "github.com/parquet-go/parquet-go"

	"tradesim/internal/data"
	"tradesim/internal/model"
)

// ErrNoTime is returned when writing bars without timestamps.
var ErrNoTime = errors.New("parquet: bars must carry timestamps")

// BarRecord is the on-disk schema of one bar.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, bar open
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// Write stores bars of symbol at path, merging with the records already in
// the file. A bar at an existing (symbol, timestamp) replaces the old one.
func Write(path, symbol string, bars []model.Bar) error {
	records := make([]BarRecord, 0, len(bars))
	for i, b := range bars {
		if !b.HasTime {
			return fmt.Errorf("%w: bar %d", ErrNoTime, i)
		}
		records = append(records, BarRecord{
			Symbol:    symbol,
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	var existing []BarRecord
	if _, err := os.Stat(path); err == nil {
		existing, err = parquetgo.ReadFile[BarRecord](path)
		if err != nil {
			return fmt.Errorf("parquet read %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	merged := merge(existing, records)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquetgo.WriteFile(path, merged); err != nil {
		return fmt.Errorf("parquet write %s: %w", path, err)
	}
	return nil
}

// ReadBars returns the bars of symbol in path ordered by time. An empty
// symbol selects every row.
func ReadBars(path, symbol string) ([]model.Bar, error) {
	records, err := parquetgo.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("parquet read %s: %w", path, err)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })

	var bars []model.Bar
	for _, r := range records {
		if symbol != "" && r.Symbol != symbol {
			continue
		}
		bars = append(bars, model.Bar{
			Index:   len(bars),
			Time:    time.UnixMilli(r.Timestamp).UTC(),
			HasTime: true,
			Open:    r.Open,
			High:    r.High,
			Low:     r.Low,
			Close:   r.Close,
			Volume:  r.Volume,
		})
	}
	return bars, nil
}

// Load reads the bars of inst.Symbol into an in-memory provider. Each bar's
// interval extends to the next bar.
func Load(path string, inst model.Instrument) (*data.Memory, error) {
	return LoadTimeframe(path, inst, 0)
}

// LoadTimeframe is Load with a fixed bar duration, used by FindTick to
// reject times falling in gaps.
func LoadTimeframe(path string, inst model.Instrument, tf time.Duration) (*data.Memory, error) {
	bars, err := ReadBars(path, inst.Symbol)
	if err != nil {
		return nil, err
	}
	m, err := data.NewMemory(inst, tf, bars)
	if err != nil {
		return nil, fmt.Errorf("parquet load %s from %s: %w", inst.Symbol, path, err)
	}
	return m, nil
}

// merge deduplicates records by (symbol, timestamp), preferring incoming.
func merge(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	out := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
