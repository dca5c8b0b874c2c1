package indicator

import (
	"fmt"

	"tradesim/internal/model"
)

// FeatureSet computes a fixed list of indicators over one bar stream.
// A FeatureSet belongs to one run and is not safe for concurrent use.
type FeatureSet struct {
	configs    []Config
	indicators []Indicator
	byName     map[string]Indicator
	features   model.Features
}

// NewFeatureSet validates configs and creates fresh indicator instances.
func NewFeatureSet(configs []Config) (*FeatureSet, error) {
	if err := ValidateConfigs(configs); err != nil {
		return nil, fmt.Errorf("feature set: %w", err)
	}
	fs := &FeatureSet{
		configs:    configs,
		indicators: make([]Indicator, 0, len(configs)),
		byName:     make(map[string]Indicator, len(configs)),
		features:   make(model.Features, len(configs)),
	}
	for _, cfg := range configs {
		ind, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("feature set: %w", err)
		}
		fs.indicators = append(fs.indicators, ind)
		fs.byName[ind.Name()] = ind
	}
	return fs, nil
}

// Update feeds bar to every indicator and returns the feature map. The map
// is reused across calls; Clone it to keep a bar's values.
func (fs *FeatureSet) Update(bar model.Bar) model.Features {
	for _, ind := range fs.indicators {
		ind.Update(bar)
		fs.features[ind.Name()] = ind.Value()
	}
	return fs.features
}

// Value returns the current value of a named indicator, and whether it exists.
func (fs *FeatureSet) Value(name string) (float64, bool) {
	ind, ok := fs.byName[name]
	if !ok {
		return 0, false
	}
	return ind.Value(), true
}

// Ready reports whether every indicator has a defined value.
func (fs *FeatureSet) Ready() bool {
	for _, ind := range fs.indicators {
		if !ind.Ready() {
			return false
		}
	}
	return true
}

// Names returns the indicator names in configuration order.
func (fs *FeatureSet) Names() []string {
	names := make([]string, len(fs.indicators))
	for i, ind := range fs.indicators {
		names[i] = ind.Name()
	}
	return names
}

// Features returns the last feature map.
func (fs *FeatureSet) Features() model.Features { return fs.features }

// Configs returns the configuration the set was built from.
func (fs *FeatureSet) Configs() []Config { return fs.configs }
