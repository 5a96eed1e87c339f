// Package analysis aggregates a document flow into overall and per-sector analyses.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/models"
	"github.com/google/uuid"
)

// GeneratorVersion identifies this analysis generator in analysis metadata.
const GeneratorVersion = "reportflow-analysis/1.2"

// Config tunes the aggregator.
type Config struct {
	// SectorWeights is the sentiment weight of each sector before renormalization.
	SectorWeights map[models.Sector]float64
	// LLMModel is recorded in analysis metadata.
	LLMModel string
	// MaxCorrelations caps cross-sector correlations in the overall analysis.
	MaxCorrelations int
	// MaxSignals caps indicator signals in the sentiment score.
	MaxSignals int
}

// DefaultSectorWeights ranks core > financial > construction > manufacturing.
func DefaultSectorWeights() map[models.Sector]float64 {
	return map[models.Sector]float64{
		models.SectorCore:          0.4,
		models.SectorFinancial:     0.3,
		models.SectorConstruction:  0.2,
		models.SectorManufacturing: 0.1,
	}
}

func DefaultConfig() Config {
	return Config{
		SectorWeights:   DefaultSectorWeights(),
		MaxCorrelations: 5,
		MaxSignals:      12,
	}
}

// Aggregator builds analyses from a FlowDocument. It runs sequentially; the
// generator is expected to apply its own retry policy.
type Aggregator struct {
	gen    llm.Generator
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	runID  func() string
}

func NewAggregator(gen llm.Generator, cfg Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.SectorWeights) == 0 {
		cfg.SectorWeights = DefaultSectorWeights()
	}
	if cfg.MaxCorrelations <= 0 {
		cfg.MaxCorrelations = 5
	}
	if cfg.MaxSignals <= 0 {
		cfg.MaxSignals = 12
	}
	return &Aggregator{gen: gen, cfg: cfg, logger: logger, now: time.Now, runID: uuid.NewString}
}

// Result holds every analysis field of a document.
type Result struct {
	Overall  *models.OverallAnalysis
	Sectors  map[models.Sector]models.SectorAnalysis
	Metadata *models.AnalysisMetadata
}

// run carries the state of one aggregation: model failures and quality notes.
type run struct {
	a           *Aggregator
	doc         *models.FlowDocument
	inputs      map[models.Sector]*sectorInputs
	logger      *slog.Logger
	notes       []string
	llmFailures int
}

func (a *Aggregator) newRun(doc *models.FlowDocument) *run {
	return &run{
		a:      a,
		doc:    doc,
		inputs: collect(doc),
		logger: a.logger.With("reportId", doc.ReportID),
	}
}

func (r *run) note(format string, args ...any) {
	r.notes = append(r.notes, fmt.Sprintf(format, args...))
}

// generate calls the model. It returns false when the model is unavailable; the
// caller then falls back to structural output.
func (r *run) generate(ctx context.Context, task llm.Task, format llm.Format, prompt string) (string, bool) {
	if r.a.gen == nil {
		r.llmFailures++
		return "", false
	}
	out, err := r.a.gen.Generate(ctx, llm.Request{Task: task, Format: format, Prompt: prompt})
	if err == nil && llm.IsRefusal(out) {
		err = llm.ErrRefusal
	}
	if err != nil {
		r.llmFailures++
		r.logger.Warn("Language model call failed, using structural fallback.", "task", task, "error", err)
		r.note("%s generated without language model", task)
		return "", false
	}
	return out, true
}

// Generate produces the overall analysis, the analysis of every sector with data,
// and the metadata of this generation.
func (a *Aggregator) Generate(ctx context.Context, doc *models.FlowDocument) (*Result, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	start := a.now()
	r := a.newRun(doc)
	r.logger.Info("Starting analysis generation.")

	docIssues := validateDocument(doc)
	for _, issue := range docIssues {
		r.note("%s", issue)
	}

	sectors := map[models.Sector]models.SectorAnalysis{}
	for _, s := range presentSectors(r.inputs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sectors[s] = r.sectorAnalysis(ctx, s)
	}
	overall, err := r.overall(ctx, sectors)
	if err != nil {
		return nil, err
	}

	meta := &models.AnalysisMetadata{
		Version:                doc.AnalysisVersion() + 1,
		SchemaVersion:          models.SchemaVersion,
		GeneratedAt:            a.now().UTC(),
		GeneratorVersion:       GeneratorVersion,
		LLMModel:               a.cfg.LLMModel,
		RunID:                  a.runID(),
		RegeneratedFromVersion: doc.AnalysisVersion(),
		LLMFailures:            r.llmFailures,
		Partial:                r.llmFailures > 0 || len(docIssues) > 0,
		QualityNotes:           r.notes,
	}
	meta.ProcessingTimeSeconds = a.now().Sub(start).Seconds()
	r.logger.Info("Analysis generation complete.",
		"version", meta.Version,
		"sectors", len(sectors),
		"llmFailures", r.llmFailures,
		"partial", meta.Partial,
	)
	return &Result{Overall: overall, Sectors: sectors, Metadata: meta}, nil
}

// GenerateOverallAnalysis returns only the document-level analysis.
func (a *Aggregator) GenerateOverallAnalysis(ctx context.Context, doc *models.FlowDocument) (*models.OverallAnalysis, error) {
	res, err := a.Generate(ctx, doc)
	if err != nil {
		return nil, err
	}
	return res.Overall, nil
}

// GenerateSectorAnalysis analyses one sector. A sector without series yields an
// analysis with series_count 0 and a "No data" summary.
func (a *Aggregator) GenerateSectorAnalysis(ctx context.Context, doc *models.FlowDocument, sector models.Sector) (*models.SectorAnalysis, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	if _, ok := models.ParseSector(string(sector)); !ok {
		return nil, fmt.Errorf("unknown sector %q", sector)
	}
	r := a.newRun(doc)
	sa := r.sectorAnalysis(ctx, sector)
	return &sa, nil
}
