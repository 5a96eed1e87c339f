package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// SectorAnalysisFunction computes the analysis of one sector of a stored report.
// Nothing is written back.
type SectorAnalysisFunction struct {
	engine *Engine
}

func NewSectorAnalysis(ctx context.Context) (*SectorAnalysisFunction, error) {
	rt, err := NewRuntime(ctx, LoadRuntimeConfig())
	if err != nil {
		return nil, err
	}
	slog.Info("Sector analysis logic initialized.")
	return &SectorAnalysisFunction{engine: rt.Engine}, nil
}

func (f *SectorAnalysisFunction) Process(ctx context.Context, req *models.SectorAnalysisRequest) (*models.SectorAnalysisResponse, error) {
	logCtx := slog.With("reportId", req.ReportID, "sector", req.Sector, "executionId", req.ExecutionID)
	sector, ok := models.ParseSector(req.Sector)
	if !ok {
		return nil, fmt.Errorf("%w: unknown sector %q", ErrBadRequest, req.Sector)
	}
	if req.ReportID == "" {
		return nil, fmt.Errorf("%w: reportId is required", ErrBadRequest)
	}

	doc, err := f.engine.Store.Get(ctx, req.ReportID)
	if err != nil {
		logCtx.Error("Failed to load report", "error", err)
		return nil, fmt.Errorf("failed to load report %s: %w", req.ReportID, err)
	}
	sa, err := f.engine.GenerateSectorAnalysis(ctx, doc, sector)
	if err != nil {
		logCtx.Error("Sector analysis failed", "error", err)
		return nil, err
	}
	logCtx.Info("Sector analysis complete.", "dominantTrend", sa.DominantTrend, "confidence", sa.Confidence)
	return &models.SectorAnalysisResponse{
		Status:   "SUCCESS",
		ReportID: req.ReportID,
		Analysis: sa,
	}, nil
}
