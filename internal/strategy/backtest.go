package strategy

import (
	"fmt"
	"time"

	"tradesim/internal/barctx"
	"tradesim/internal/indicator"
	"tradesim/internal/model"
	"tradesim/internal/na"
	"tradesim/internal/portfolio"
	"tradesim/internal/runner"
	"tradesim/internal/trade"
)

// BacktestConfig configures one strategy over every unit of a batch.
type BacktestConfig struct {
	Strategy string             `yaml:"name" json:"name"`
	Params   Params             `yaml:"params" json:"params"`
	Book     portfolio.Options  `yaml:"book" json:"book"`
	Features []indicator.Config `yaml:"features,omitempty" json:"features,omitempty"` // extra features recorded in the report
}

// Report is the result of one backtest unit.
type Report struct {
	RunID    string                  `json:"run_id"`
	Strategy string                  `json:"strategy"`
	Asset    string                  `json:"asset"`
	Period   runner.Period           `json:"period"`
	From     time.Time               `json:"from,omitempty"`
	To       time.Time               `json:"to,omitempty"`
	Bars     int                     `json:"bars"`
	Summary  portfolio.Summary       `json:"summary"`
	Trades   []trade.Record          `json:"trades"`
	Fills    []portfolio.Fill        `json:"fills"`
	Equity   []portfolio.EquityPoint `json:"equity"`
	Features map[string]float64      `json:"features"` // last bar, undefined values dropped
	Rejected int                     `json:"rejected"`
	Reason   string                  `json:"reject_reason,omitempty"`
}

// TradeCount is the number of closed trades.
func (r *Report) TradeCount() int { return r.Summary.TotalTrades }

// NewBacktest validates cfg and returns a runner factory producing one
// Backtest per unit.
func NewBacktest(cfg BacktestConfig) (runner.Factory[*Report], error) {
	ctor, err := Lookup(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	logic, err := ctor(cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", cfg.Strategy, err)
	}
	features := append(logic.Features(), cfg.Features...)
	if err := indicator.ValidateConfigs(features); err != nil {
		return nil, fmt.Errorf("strategy %s: %w", cfg.Strategy, err)
	}
	if na.Is(cfg.Book.Capital) || cfg.Book.Capital <= 0 {
		return nil, fmt.Errorf("strategy %s: capital must be > 0, got %v", cfg.Strategy, cfg.Book.Capital)
	}
	return func(job runner.Job) runner.Target[*Report] {
		return &Backtest{cfg: cfg, ctor: ctor, job: job}
	}, nil
}

// Backtest is a runner.Target replaying one strategy over one period.
// Everything it owns is created in OnStart and touched only by the
// goroutine running the unit.
type Backtest struct {
	cfg  BacktestConfig
	ctor Constructor
	job  runner.Job

	ctx      *barctx.Context
	features *indicator.FeatureSet
	logic    Logic
	book     *portfolio.Book
	last     model.Features
	bars     int
}

func (b *Backtest) OnStart() {
	logic, err := b.ctor(b.cfg.Params)
	if err != nil {
		panic(err) // validated by NewBacktest
	}
	fs, err := indicator.NewFeatureSet(append(logic.Features(), b.cfg.Features...))
	if err != nil {
		panic(err)
	}
	b.logic = logic
	b.features = fs
	b.ctx = barctx.New(b.job.Provider)
	b.book = portfolio.NewBook(b.ctx.Instrument(), b.cfg.Book)
}

// Next advances the context onto tick. Ticks before the period start are
// skipped, so indicators warm up inside the period only.
func (b *Backtest) Next(tick int) {
	if !b.ctx.Seek(tick) {
		panic(fmt.Sprintf("strategy: tick %d past end of data", tick))
	}
	bar := b.ctx.Current()
	f := b.features.Update(bar)
	sig := b.logic.OnBar(b.ctx, f, Account{
		Position:     b.book.Position(),
		Equity:       b.book.EquityAt(bar.Close),
		ExchangeRate: b.book.Options().ExchangeRate,
	})
	b.book.Execute(sig, bar)
	b.book.Mark(bar)
	b.last = f
	b.bars++
}

func (b *Backtest) OnFinish() *Report {
	r := &Report{
		RunID:    b.job.RunID,
		Strategy: b.logic.Name(),
		Asset:    b.job.Asset,
		Period:   b.job.Period,
		Bars:     b.bars,
		Summary:  b.book.Summary(),
		Trades:   b.book.Records(),
		Fills:    b.book.Fills(),
		Equity:   b.book.Curve(),
		Features: make(map[string]float64, len(b.last)),
	}
	r.Rejected, r.Reason = b.book.Rejected()
	if t, ok := b.job.Provider.Time(b.job.Period.From); ok {
		r.From = t
	}
	if t, ok := b.job.Provider.Time(b.job.Period.To); ok {
		r.To = t
	}
	for k, v := range b.last {
		if !na.Is(v) {
			r.Features[k] = v
		}
	}
	return r
}
