// Package interpret obtains normalized chart interpretations from a vision model.
package interpret

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/models"
)

// ErrUnavailable is returned when no interpretation could be obtained. It is a soft failure.
var ErrUnavailable = errors.New("chart interpretation unavailable")

// PageContext is the page information sent along with a chart image.
type PageContext struct {
	PageNumber int
	SeriesName string
	Sector     models.Sector
	NearbyText string
}

// Adapter calls the vision model and normalizes its answer. Retries, timeouts and
// rate limiting are applied by the Vision it is given (see llm.VisionWithRetry).
type Adapter struct {
	vision llm.Vision
	logger *slog.Logger
}

func NewAdapter(vision llm.Vision, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{vision: vision, logger: logger}
}

// Interpret returns the normalized interpretation of a chart block.
func (a *Adapter) Interpret(ctx context.Context, block *models.ContentBlock, pc PageContext) (*models.Interpretation, error) {
	if a.vision == nil {
		return nil, fmt.Errorf("%w: no vision model configured", ErrUnavailable)
	}
	if block.BlockType != models.BlockChart || block.Chart == nil || len(block.Chart.Image) == 0 {
		return nil, fmt.Errorf("%w: block %d has no chart image", ErrUnavailable, block.SequenceNumber)
	}
	resp, err := a.vision.InterpretChart(ctx, llm.ChartRequest{
		Image:      block.Chart.Image,
		MIMEType:   block.Chart.MIMEType,
		ChartType:  block.Chart.ChartType,
		PageNumber: pc.PageNumber,
		SeriesName: pc.SeriesName,
		Sector:     pc.Sector,
		NearbyText: pc.NearbyText,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var raw RawInterpretation
	if err := llm.DecodeJSON(resp, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	in := Normalize(raw)
	return &in, nil
}

// Attach interprets a chart block and attaches the result. It reports whether an
// interpretation was attached; on failure the block is left without one.
func (a *Adapter) Attach(ctx context.Context, block *models.ContentBlock, pc PageContext) bool {
	if block.Interpretation != nil {
		return true
	}
	in, err := a.Interpret(ctx, block, pc)
	if err != nil {
		a.logger.Warn("Chart interpretation unavailable.", "page", pc.PageNumber, "sequence", block.SequenceNumber, "error", err)
		return false
	}
	if err := block.AttachInterpretation(*in); err != nil {
		a.logger.Warn("Chart already interpreted.", "page", pc.PageNumber, "sequence", block.SequenceNumber)
		return false
	}
	return true
}
