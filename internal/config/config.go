// Package config loads the optional tuning file shared by every entry point.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/reportflow/internal/analysis"
	"github.com/Lllllllleong/reportflow/internal/flow"
	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/models"
)

// Tuning holds the knobs that are not environment-specific.
type Tuning struct {
	Analysis   AnalysisTuning   `yaml:"analysis"`
	Classifier ClassifierTuning `yaml:"classifier"`
	Series     []SeriesTuning   `yaml:"series"`
	LLM        LLMTuning        `yaml:"llm"`
	Batch      BatchTuning      `yaml:"batch"`
}

type AnalysisTuning struct {
	SectorWeights   map[string]float64 `yaml:"sector_weights"`
	MaxCorrelations int                `yaml:"max_correlations"`
	MaxSignals      int                `yaml:"max_signals"`
}

type ClassifierTuning struct {
	MinImageSize        int     `yaml:"min_image_size"`
	HeadingMaxLength    int     `yaml:"heading_max_length"`
	HeadingFontSize     float64 `yaml:"heading_font_size"`
	OverviewAspectRatio float64 `yaml:"overview_aspect_ratio"`
}

// SeriesTuning adds a series pattern after the built-in table.
type SeriesTuning struct {
	Name    string `yaml:"name"`
	Sector  string `yaml:"sector"`
	Pattern string `yaml:"pattern"`
}

type LLMTuning struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseBackoff       time.Duration `yaml:"base_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

type BatchTuning struct {
	Concurrency int `yaml:"concurrency"`
}

// Default returns the tuning used when no file is configured.
func Default() *Tuning {
	weights := map[string]float64{}
	for s, w := range analysis.DefaultSectorWeights() {
		weights[string(s)] = w
	}
	cc := flow.DefaultClassifierConfig()
	policy := llm.DefaultPolicy()
	ac := analysis.DefaultConfig()
	return &Tuning{
		Analysis: AnalysisTuning{
			SectorWeights:   weights,
			MaxCorrelations: ac.MaxCorrelations,
			MaxSignals:      ac.MaxSignals,
		},
		Classifier: ClassifierTuning{
			MinImageSize:        cc.MinImageSize,
			HeadingMaxLength:    cc.HeadingMaxLength,
			HeadingFontSize:     cc.HeadingFontSize,
			OverviewAspectRatio: cc.OverviewAspectRatio,
		},
		LLM: LLMTuning{
			MaxAttempts:       policy.MaxAttempts,
			BaseBackoff:       policy.BaseBackoff,
			MaxBackoff:        policy.MaxBackoff,
			CallTimeout:       policy.CallTimeout,
			RequestsPerMinute: 60,
		},
		Batch: BatchTuning{Concurrency: 4},
	}
}

// Load reads a tuning file over the defaults. An empty path returns the defaults.
func Load(path string) (*Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}
	// Weights in the file replace the default table rather than merging into it.
	t.Analysis.SectorWeights = nil
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning file %s: %w", path, err)
	}
	return t, nil
}

// Validate checks ranges and compiles the extra series patterns.
func (t *Tuning) Validate() error {
	v := &models.ValidationError{Subject: "tuning"}
	var sum float64
	for name, w := range t.Analysis.SectorWeights {
		if _, ok := models.ParseSector(name); !ok {
			v.Addf("unknown sector %q in sector_weights", name)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			v.Addf("sector weight %s=%v is not a non-negative number", name, w)
		}
		sum += w
	}
	if len(t.Analysis.SectorWeights) > 0 && sum <= 0 {
		v.Addf("sector weights sum to zero")
	}
	if t.Classifier.MinImageSize < 0 || t.Classifier.HeadingMaxLength <= 0 || t.Classifier.HeadingFontSize <= 0 {
		v.Addf("classifier thresholds must be positive")
	}
	if t.LLM.MaxAttempts < 1 {
		v.Addf("llm.max_attempts must be at least 1")
	}
	if t.LLM.CallTimeout <= 0 {
		v.Addf("llm.call_timeout must be positive")
	}
	if t.Batch.Concurrency < 1 {
		v.Addf("batch.concurrency must be at least 1")
	}
	if _, err := t.SeriesTable(); err != nil {
		v.Addf("%v", err)
	}
	return v.OrNil()
}

// AnalysisConfig converts the analysis section for the aggregator.
func (t *Tuning) AnalysisConfig(model string) analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.LLMModel = model
	if len(t.Analysis.SectorWeights) > 0 {
		cfg.SectorWeights = map[models.Sector]float64{}
		for name, w := range t.Analysis.SectorWeights {
			cfg.SectorWeights[models.Sector(name)] = w
		}
	}
	if t.Analysis.MaxCorrelations > 0 {
		cfg.MaxCorrelations = t.Analysis.MaxCorrelations
	}
	if t.Analysis.MaxSignals > 0 {
		cfg.MaxSignals = t.Analysis.MaxSignals
	}
	return cfg
}

func (t *Tuning) ClassifierConfig() flow.ClassifierConfig {
	return flow.ClassifierConfig{
		MinImageSize:        t.Classifier.MinImageSize,
		HeadingMaxLength:    t.Classifier.HeadingMaxLength,
		HeadingFontSize:     t.Classifier.HeadingFontSize,
		OverviewAspectRatio: t.Classifier.OverviewAspectRatio,
	}
}

// SeriesTable is the built-in series table extended with the configured patterns.
func (t *Tuning) SeriesTable() (flow.SeriesTable, error) {
	extra := make([]flow.SeriesPattern, 0, len(t.Series))
	for _, s := range t.Series {
		p, err := flow.CompileSeries(s.Name, s.Sector, s.Pattern)
		if err != nil {
			return nil, err
		}
		extra = append(extra, p)
	}
	return flow.DefaultSeriesTable.With(extra...), nil
}

// Policy builds the retry policy; the limiter is shared by every call made with it.
func (t *Tuning) Policy() llm.Policy {
	return llm.Policy{
		MaxAttempts: t.LLM.MaxAttempts,
		BaseBackoff: t.LLM.BaseBackoff,
		MaxBackoff:  t.LLM.MaxBackoff,
		CallTimeout: t.LLM.CallTimeout,
		Limiter:     llm.NewLimiter(t.LLM.RequestsPerMinute),
	}
}
