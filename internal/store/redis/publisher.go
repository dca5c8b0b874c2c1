// Package redis publishes backtest reports and progress to Redis
// (go-redis v8).
//
// Each report lands in a hash keyed by run, asset and period, is announced on
// a capped stream, and progress events are fanned out over pub/sub for live
// dashboards.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradesim/internal/progress"
	"tradesim/internal/strategy"
)

const (
	defaultPrefix       = "tradesim"
	defaultStreamMaxLen = 10000
	defaultReportTTL    = 7 * 24 * time.Hour
	progressTimeout     = 2 * time.Second
)

// Config configures the Redis publisher.
type Config struct {
	Addr         string        `yaml:"addr" json:"addr"` // e.g. "localhost:6379"
	Password     string        `yaml:"password" json:"-"`
	DB           int           `yaml:"db" json:"db"`
	Prefix       string        `yaml:"prefix" json:"prefix"`                 // key prefix, default "tradesim"
	StreamMaxLen int64         `yaml:"stream_max_len" json:"stream_max_len"` // approximate cap of the report stream
	ReportTTL    time.Duration `yaml:"report_ttl" json:"report_ttl"`
}

// Publisher writes reports and progress events to Redis.
type Publisher struct {
	client *goredis.Client
	cfg    Config
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.StreamMaxLen <= 0 {
		cfg.StreamMaxLen = defaultStreamMaxLen
	}
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = defaultReportTTL
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr, "prefix", cfg.Prefix)
	return &Publisher{client: client, cfg: cfg}, nil
}

// ReportKey is the hash holding one unit's report.
func ReportKey(prefix string, r *strategy.Report) string {
	return fmt.Sprintf("%s:report:%s:%s:%d-%d", prefix, r.RunID, r.Asset, r.Period.From, r.Period.To)
}

// StreamKey is the stream announcing finished reports.
func StreamKey(prefix string) string { return prefix + ":reports" }

// ProgressChannel is the pub/sub channel carrying progress events.
func ProgressChannel(prefix string) string { return prefix + ":progress" }

// PublishReport stores r and announces it in one pipeline.
func (p *Publisher) PublishReport(ctx context.Context, r *strategy.Report) error {
	full, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	key := ReportKey(p.cfg.Prefix, r)

	pipe := p.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"run_id":     r.RunID,
		"strategy":   r.Strategy,
		"asset":      r.Asset,
		"bars":       r.Bars,
		"net_profit": r.Summary.NetProfit,
		"trades":     r.Summary.TotalTrades,
		"summary":    string(summary),
		"report":     string(full),
	})
	pipe.Expire(ctx, key, p.cfg.ReportTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: StreamKey(p.cfg.Prefix),
		MaxLen: p.cfg.StreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"key":     key,
			"run_id":  r.RunID,
			"asset":   r.Asset,
			"summary": string(summary),
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish report %s: %w", key, err)
	}
	return nil
}

// Report publishes a progress event. Errors are logged; progress is best
// effort.
func (p *Publisher) Report(e progress.Event) {
	b, err := json.Marshal(e)
	if err != nil {
		slog.Warn("progress marshal failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), progressTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, ProgressChannel(p.cfg.Prefix), b).Err(); err != nil {
		slog.Warn("redis progress publish failed", "run_id", e.RunID, "error", err)
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
