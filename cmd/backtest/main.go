// cmd/backtest replays bar history from SQLite or Parquet through a strategy
// and reports per-asset performance.
//
// Usage:
//
//	go run ./cmd/backtest --config=backtest.yaml --out=reports.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tradesim/config"
	"tradesim/internal/data"
	"tradesim/internal/indicator"
	"tradesim/internal/logger"
	"tradesim/internal/metrics"
	"tradesim/internal/notification"
	"tradesim/internal/progress"
	"tradesim/internal/runner"
	parquetstore "tradesim/internal/store/parquet"
	redisstore "tradesim/internal/store/redis"
	sqlitestore "tradesim/internal/store/sqlite"
	"tradesim/internal/strategy"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	strategyName := flag.String("strategy", "", "Override the configured strategy")
	assets := flag.String("assets", "", "Comma-separated symbols to run (default: configured assets)")
	out := flag.String("out", "", "Write reports as JSON to this file")
	serve := flag.Bool("serve", false, "Keep the metrics/progress server up after the batch until interrupted")
	list := flag.Bool("list", false, "List strategies and indicator types and exit")
	flag.Parse()

	if *list {
		fmt.Println("strategies:", strings.Join(strategy.Names(), ", "))
		fmt.Println("indicators:", strings.Join(indicator.Types, ", "))
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *strategyName != "" {
		cfg.Strategy.Strategy = *strategyName
	}
	level, _ := logger.ParseLevel(cfg.LogLevel)
	log := logger.Init("backtest", level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()
	ctx, runID := logger.EnsureRunID(ctx)

	if err := run(ctx, cfg, runID, selected(*assets), *out, *serve); err != nil {
		log.Error("backtest failed", "run_id", runID, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, runID string, only map[string]bool, outPath string, serve bool) error {
	log := slog.Default().With(logger.Attrs(ctx)...)

	factory, err := strategy.NewBacktest(cfg.Strategy)
	if err != nil {
		return err
	}

	// Metrics, health and live progress
	reg := prometheus.NewRegistry()
	prom := metrics.New(reg)
	health := metrics.NewHealthStatus()
	hub := progress.NewHub(4096)
	hub.OnOverflow = prom.RingOverflow.Inc
	go hub.Run(ctx)

	var srv *metrics.Server
	if cfg.Metrics.Addr != "" {
		srv = metrics.NewServer(cfg.Metrics.Addr, health, reg)
		srv.Handle("/ws/progress", hub)
		srv.Start()
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			srv.Stop(stopCtx)
		}()
	}

	// Data
	assets := selectAssets(cfg, only)
	work, closeData, err := loadAssets(ctx, cfg, assets, health)
	if err != nil {
		return err
	}
	defer closeData()
	if len(work.items) == 0 {
		return fmt.Errorf("no assets to run")
	}

	// Sinks
	reporters := progress.Multi{progress.NewLogReporter(log), progress.NewMetricsReporter(prom), hub}

	var journal *sqlitestore.Journal
	if cfg.Journal.Enabled {
		journal, err = sqlitestore.NewJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	var publisher *redisstore.BufferedPublisher
	if cfg.Redis.Enabled {
		pub, err := redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		health.CheckRedis(ctx, pub.Client())
		health.StartLivenessChecker(ctx, pub.Client(), nil, 10*time.Second)
		publisher = redisstore.NewBufferedPublisher(pub, redisstore.NewCircuitBreaker(5, 10*time.Second), 0)
		reporters = append(reporters, pub)
	}

	// Run
	start := time.Now()
	r := runner.New(work.registry, factory, runner.Options{
		Workers:  cfg.Workers,
		Reporter: reporters,
		Logger:   log,
	})
	results := r.Run(ctx, work.items)
	health.SetLastRunAt(time.Now())
	log.Info("batch complete", "units", len(results), "elapsed", time.Since(start))

	reports := runner.Values(results)
	for _, rep := range reports {
		if journal != nil {
			if _, err := journal.RecordReport(rep); err != nil {
				log.Warn("journal write failed", "asset", rep.Asset, "error", err)
			}
		}
		if publisher != nil {
			if err := publisher.PublishReport(ctx, rep); err != nil {
				log.Warn("redis publish failed", "asset", rep.Asset, "error", err)
			}
		}
	}
	if publisher != nil && publisher.Pending() > 0 {
		log.Warn("reports left unpublished", "pending", publisher.Pending())
	}

	notify(ctx, cfg, runID, results)
	printSummary(os.Stdout, results)
	if outPath != "" {
		if err := writeJSON(outPath, reports); err != nil {
			return err
		}
		log.Info("reports written", "path", outPath, "count", len(reports))
	}

	if serve && srv != nil {
		log.Info("serving until interrupted", "addr", cfg.Metrics.Addr)
		<-ctx.Done()
	}
	return runner.Errors(results)
}

// notify sends the batch completion alert to the log and, when configured,
// the webhook.
func notify(ctx context.Context, cfg *config.Config, runID string, results []runner.Result[*strategy.Report]) {
	stats := notification.BatchStats{RunID: runID, Strategy: cfg.Strategy.Strategy, Units: len(results)}
	for _, r := range results {
		if r.Err != nil {
			stats.Failed++
			continue
		}
		stats.Trades += r.Value.TradeCount()
		stats.NetProfit += r.Value.Summary.NetProfit
	}
	n := notification.Multi{notification.NewLogNotifier(nil)}
	if cfg.Notify.WebhookURL != "" {
		n = append(n, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if err := n.Send(ctx, notification.BatchAlert(stats)); err != nil {
		slog.Warn("batch alert not delivered", "error", err)
	}
}

type workSet struct {
	registry *runner.Registry
	items    []runner.Work
}

// selectAssets filters the configured assets by the -assets flag. With no
// configured assets the flag names SQLite symbols directly.
func selectAssets(cfg *config.Config, only map[string]bool) []config.AssetConfig {
	var out []config.AssetConfig
	for _, a := range cfg.Assets {
		if only == nil || only[a.Symbol] {
			out = append(out, a)
		}
	}
	if len(cfg.Assets) == 0 && only != nil {
		for sym := range only {
			out = append(out, config.AssetConfig{Symbol: sym})
		}
	}
	return out
}

// loadAssets builds the provider registry. With no configured assets every
// symbol in the SQLite database is loaded.
func loadAssets(ctx context.Context, cfg *config.Config, assets []config.AssetConfig, health *metrics.HealthStatus) (workSet, func(), error) {
	ws := workSet{registry: runner.NewRegistry()}
	closeFn := func() {}

	needSQLite := len(assets) == 0
	for _, a := range assets {
		if a.Source == "" || a.Source == config.SourceSQLite {
			needSQLite = true
		}
	}

	var reader *sqlitestore.Reader
	if needSQLite {
		var err error
		reader, err = sqlitestore.NewReader(cfg.SQLitePath)
		if err != nil {
			return ws, closeFn, err
		}
		closeFn = func() { reader.Close() }
		health.CheckSQLite(ctx, reader.DB())
		if len(assets) == 0 {
			syms, err := reader.Symbols()
			if err != nil {
				return ws, closeFn, err
			}
			for _, s := range syms {
				assets = append(assets, config.AssetConfig{Symbol: s})
			}
		}
	}

	for _, a := range assets {
		var (
			prov data.Provider
			err  error
		)
		switch a.Source {
		case config.SourceParquet:
			prov, err = parquetstore.Load(a.Path, a.Instrument())
		default:
			prov, err = reader.LoadProvider(a.Symbol)
		}
		if err == nil && a.Timeframe > 0 {
			prov, err = data.Resample(prov, a.Timeframe)
		}
		if err != nil {
			// the runner reports the unknown asset as a failed unit
			slog.Warn("asset not loaded", "symbol", a.Symbol, "error", err)
		} else {
			ws.registry.Register(a.Symbol, prov)
			slog.Debug("asset loaded", "symbol", a.Symbol, "bars", data.Len(prov))
		}
		ws.items = append(ws.items, a.Work())
	}
	return ws, closeFn, nil
}

func printSummary(w *os.File, results []runner.Result[*strategy.Report]) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tPERIOD\tBARS\tTRADES\tWIN%\tNET\tMAX DD%\tPF\tERROR")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\t-\t%v\n", r.Asset, r.Period, r.Err)
			continue
		}
		s := r.Value.Summary
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f\t%.2f\t%.2f\t%.2f\t\n",
			r.Asset, r.Period, r.Value.Bars, s.TotalTrades, s.WinRate, s.NetProfit, s.MaxDrawdownPct, s.ProfitFactor)
	}
	tw.Flush()
}

func writeJSON(path string, reports []*strategy.Report) error {
	b, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	return nil
}

func selected(s string) map[string]bool {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out[p] = true
		}
	}
	return out
}
