package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/reportflow/internal/analysis"
	"github.com/Lllllllleong/reportflow/internal/flow"
	"github.com/Lllllllleong/reportflow/internal/models"
	"github.com/Lllllllleong/reportflow/internal/store"
)

// Engine runs the extraction and analysis of reports against a store.
type Engine struct {
	Extractor  *flow.Extractor
	Aggregator *analysis.Aggregator
	Store      store.Store
	Logger     *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// ExtractFlow builds the flow document of a local PDF.
func (e *Engine) ExtractFlow(ctx context.Context, pdfPath string) (*models.FlowDocument, error) {
	return e.Extractor.ExtractFlow(ctx, pdfPath)
}

func (e *Engine) GenerateOverallAnalysis(ctx context.Context, doc *models.FlowDocument) (*models.OverallAnalysis, error) {
	return e.Aggregator.GenerateOverallAnalysis(ctx, doc)
}

func (e *Engine) GenerateSectorAnalysis(ctx context.Context, doc *models.FlowDocument, sector models.Sector) (*models.SectorAnalysis, error) {
	return e.Aggregator.GenerateSectorAnalysis(ctx, doc, sector)
}

// SaveFlow stores a freshly extracted document, keeping saved custom analysis and existing analysis.
func (e *Engine) SaveFlow(ctx context.Context, doc *models.FlowDocument) error {
	if err := e.Store.SaveFlow(ctx, doc, store.SaveOptions{}); err != nil {
		return fmt.Errorf("failed to save flow for %s: %w", doc.ReportID, err)
	}
	return nil
}

// RegenerateAnalysis re-runs the aggregator over the stored flow of a report and
// replaces its analysis. The flow itself is never rewritten.
func (e *Engine) RegenerateAnalysis(ctx context.Context, reportID string) (*models.AnalysisMetadata, error) {
	doc, err := e.RegenerateReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return doc.AnalysisMetadata, nil
}

// RegenerateReport is RegenerateAnalysis returning the stored report with its new analysis.
func (e *Engine) RegenerateReport(ctx context.Context, reportID string) (*models.FlowDocument, error) {
	logCtx := e.logger().With("reportId", reportID)

	doc, err := e.Store.Get(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", reportID, err)
	}
	previous := doc.AnalysisVersion()

	res, err := e.Aggregator.Generate(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis for %s: %w", reportID, err)
	}
	upd := store.AnalysisUpdate{
		Overall:         res.Overall,
		Sectors:         res.Sectors,
		Metadata:        res.Metadata,
		ExpectedVersion: previous,
	}
	if err := e.Store.SaveAnalysis(ctx, reportID, upd); err != nil {
		return nil, fmt.Errorf("failed to save analysis for %s: %w", reportID, err)
	}
	res.Apply(doc)
	logCtx.Info("Analysis regenerated.",
		"version", res.Metadata.Version,
		"regeneratedFrom", previous,
		"partial", res.Metadata.Partial,
	)
	return doc, nil
}

// ProcessReport extracts a PDF, stores its flow and then its analysis.
func (e *Engine) ProcessReport(ctx context.Context, pdfPath string) (*models.FlowDocument, error) {
	doc, err := e.ExtractFlow(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	if err := e.SaveFlow(ctx, doc); err != nil {
		return nil, err
	}
	return e.RegenerateReport(ctx, doc.ReportID)
}
