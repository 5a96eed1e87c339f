package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/reportflow/internal/analysis"
	"github.com/Lllllllleong/reportflow/internal/gcp"
	"github.com/Lllllllleong/reportflow/internal/models"
	"github.com/Lllllllleong/reportflow/internal/store"
)

// ErrBadRequest marks a request the caller must fix before retrying.
var ErrBadRequest = errors.New("bad request")

type AnalysisRegeneratorConfig struct {
	ExportBucket string
}

// AnalysisRegeneratorFunction replaces the analysis of a stored report and
// optionally publishes the result as JSON.
type AnalysisRegeneratorFunction struct {
	engine *Engine
	export func(ctx context.Context, objectName string, content []byte) (string, error)
	config AnalysisRegeneratorConfig
}

func NewAnalysisRegenerator(ctx context.Context) (*AnalysisRegeneratorFunction, error) {
	rc := LoadRuntimeConfig()
	config := AnalysisRegeneratorConfig{
		ExportBucket: gcp.GetEnv("ANALYSIS_EXPORT_BUCKET", ""),
	}
	rc.UseStorage = config.ExportBucket != ""

	rt, err := NewRuntime(ctx, rc)
	if err != nil {
		return nil, err
	}
	f := &AnalysisRegeneratorFunction{engine: rt.Engine, config: config}
	if config.ExportBucket != "" {
		bucket := rt.Storage.Bucket(config.ExportBucket)
		f.export = func(ctx context.Context, objectName string, content []byte) (string, error) {
			if err := gcp.SaveToGCSAtomically(ctx, bucket, objectName, "application/json", content); err != nil {
				return "", err
			}
			return fmt.Sprintf("gs://%s/%s", config.ExportBucket, objectName), nil
		}
	}
	slog.Info("Analysis regenerator logic initialized.", "exportBucket", config.ExportBucket)
	return f, nil
}

// Process regenerates the analysis of req.ReportID. A version conflict is returned
// wrapped in store.ErrConflict.
func (f *AnalysisRegeneratorFunction) Process(ctx context.Context, req *models.RegenerateAnalysisRequest) (*models.RegenerateAnalysisResponse, error) {
	logCtx := slog.With("reportId", req.ReportID, "executionId", req.ExecutionID)
	if req.ReportID == "" {
		return nil, fmt.Errorf("%w: reportId is required", ErrBadRequest)
	}
	logCtx.Info("Starting analysis regeneration.")

	doc, err := f.engine.RegenerateReport(ctx, req.ReportID)
	if err != nil {
		logCtx.Error("Analysis regeneration failed", "error", err)
		return nil, err
	}
	meta := doc.AnalysisMetadata
	res := &models.RegenerateAnalysisResponse{
		Status:                 "SUCCESS",
		ReportID:               req.ReportID,
		Version:                meta.Version,
		RegeneratedFromVersion: meta.RegeneratedFromVersion,
		GeneratedAt:            meta.GeneratedAt,
		Partial:                meta.Partial,
	}

	if f.export != nil {
		uri, err := f.exportAnalysis(ctx, doc)
		if err != nil {
			// The analysis is stored; a failed export is reported but not fatal.
			logCtx.Error("Failed to export analysis", "error", err)
		} else {
			res.ExportURI = uri
		}
	}
	logCtx.Info("Analysis regeneration complete.", "version", res.Version, "partial", res.Partial)
	return res, nil
}

func (f *AnalysisRegeneratorFunction) exportAnalysis(ctx context.Context, doc *models.FlowDocument) (string, error) {
	content, err := json.MarshalIndent(analysis.ExportAnalysis(doc), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis export: %w", err)
	}
	return f.export(ctx, fmt.Sprintf("%s/analysis-v%04d.json", doc.ReportID, doc.AnalysisVersion()), content)
}

// StatusFor maps a processing error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return 400
	case errors.Is(err, store.ErrNotFound):
		return 404
	case errors.Is(err, store.ErrConflict):
		return 409
	default:
		return 500
	}
}
