// Package indicator provides named technical indicators over bar data.
//
// All indicators implement the Indicator interface, receiving bars and
// producing float64 values. Each is a thin composition of the streaming
// primitives in package stats; a FeatureSet runs a configured list of them
// and emits one feature map per bar.
package indicator

import (
	"fmt"
	"math"

	"tradesim/internal/incr"
	"tradesim/internal/model"
	"tradesim/internal/stats"
)

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the feature name (e.g., "SMA_20", "HIGHEST_10_high").
	Name() string

	// Update feeds the next bar. Call exactly once per bar.
	Update(bar model.Bar)

	// Value returns the current value; NaN while not computable.
	Value() float64

	// Ready returns true when Value is defined.
	Ready() bool
}

// Config specifies a single indicator to compute.
type Config struct {
	Type   string `yaml:"type" json:"type"` // "SMA", "EMA", "RSI", ... see Types
	Period int    `yaml:"period" json:"period"`
	Source string `yaml:"source,omitempty" json:"source,omitempty"` // bar field, default close
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`     // overrides the generated name
}

// Types lists the supported indicator types.
var Types = []string{
	"SMA", "EMA", "RMA", "WMA", "HMA", "SWMA",
	"STDEV", "VARIANCE", "HIGHEST", "LOWEST", "HIGHESTBARS", "LOWESTBARS", "PERCENTRANK",
	"CHANGE", "RSI", "CCI",
}

func knownType(t string) bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

// ValidateConfigs checks a set of Configs for errors.
func ValidateConfigs(configs []Config) error {
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if !knownType(cfg.Type) {
			return fmt.Errorf("unknown indicator type %q", cfg.Type)
		}
		// SWMA has a fixed window
		if cfg.Type != "SWMA" && cfg.Period <= 0 {
			return fmt.Errorf("invalid period=%d for %s", cfg.Period, cfg.Type)
		}
		if _, err := sourceOf(cfg); err != nil {
			return err
		}
		name := nameOf(cfg)
		if seen[name] {
			return fmt.Errorf("duplicate indicator %s", name)
		}
		seen[name] = true
	}
	return nil
}

func sourceOf(cfg Config) (model.Field, error) {
	if cfg.Source == "" {
		if cfg.Type == "CCI" {
			return model.FieldHLC3, nil
		}
		return model.FieldClose, nil
	}
	f, ok := model.ParseField(cfg.Source)
	if !ok {
		return 0, fmt.Errorf("indicator %s: unknown source %q", cfg.Type, cfg.Source)
	}
	return f, nil
}

func nameOf(cfg Config) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	period := cfg.Period
	if cfg.Type == "SWMA" {
		period = 4
	}
	name := model.FeatureName(cfg.Type, period)
	if cfg.Source != "" {
		name += "_" + cfg.Source
	}
	return name
}

// New builds the indicator described by cfg.
func New(cfg Config) (Indicator, error) {
	if err := ValidateConfigs([]Config{cfg}); err != nil {
		return nil, err
	}
	src, _ := sourceOf(cfg)
	name := nameOf(cfg)
	n := cfg.Period

	var step stats.Series
	switch cfg.Type {
	case "SMA":
		step = stats.NewSMA(n)
	case "EMA":
		step = stats.NewEMA(n)
	case "RMA":
		step = stats.NewRMA(n)
	case "WMA":
		step = stats.NewWMA(n)
	case "HMA":
		step = stats.NewHMA(n)
	case "SWMA":
		step = stats.NewSWMA()
	case "STDEV":
		step = stats.NewWindowStdev(n, true)
	case "VARIANCE":
		step = incr.Chain[float64, float64, float64](stats.NewWindowStdev(n, true), incr.Map(func(sd float64) float64 { return sd * sd }))
	case "HIGHEST":
		step = stats.NewHighest(n)
	case "LOWEST":
		step = stats.NewLowest(n)
	case "HIGHESTBARS":
		step = stats.NewHighestBars(n)
	case "LOWESTBARS":
		step = stats.NewLowestBars(n)
	case "PERCENTRANK":
		step = stats.NewPercentRank(n)
	case "CHANGE":
		step = stats.NewChange(n)
	case "RSI":
		return NewRSI(n).withName(name, src), nil
	case "CCI":
		return NewCCI(n).withName(name, src), nil
	}
	return &series{name: name, source: src, step: step, value: math.NaN()}, nil
}

// series adapts a stats primitive fed from one bar field.
type series struct {
	name   string
	source model.Field
	step   stats.Series
	value  float64
}

func (s *series) Name() string         { return s.name }
func (s *series) Update(bar model.Bar) { s.value = s.step.Step(bar.Value(s.source)) }
func (s *series) Value() float64       { return s.value }
func (s *series) Ready() bool          { return !math.IsNaN(s.value) }
