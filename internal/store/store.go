// Package store persists FlowDocuments and their analyses.
package store

import (
	"context"
	"errors"

	"github.com/Lllllllleong/reportflow/internal/models"
)

var (
	// ErrNotFound is returned when no flow exists for a report id.
	ErrNotFound = errors.New("report flow not found")
	// ErrConflict is returned when the stored analysis version differs from the
	// version an analysis update expected.
	ErrConflict = errors.New("analysis version conflict")
)

// SaveOptions controls how an incoming flow is merged with the stored one.
type SaveOptions struct {
	// ReplaceCustomAnalysisPages lists pages whose custom analysis is replaced by
	// the incoming page's entries instead of merged with the stored ones.
	ReplaceCustomAnalysisPages []int
}

// AnalysisUpdate carries the analysis fields of one generation.
type AnalysisUpdate struct {
	Overall  *models.OverallAnalysis
	Sectors  map[models.Sector]models.SectorAnalysis
	Metadata *models.AnalysisMetadata
	// ExpectedVersion is the analysis version the update was generated from.
	ExpectedVersion int
}

// Store is the document store of report flows. Flows are keyed by report_id and
// sector analyses by (report_id, sector).
type Store interface {
	// Get returns the stored flow with its analyses, or ErrNotFound.
	Get(ctx context.Context, reportID string) (*models.FlowDocument, error)
	// SaveFlow upserts the flow part of doc, merging it with any stored flow.
	SaveFlow(ctx context.Context, doc *models.FlowDocument, opts SaveOptions) error
	// SaveAnalysis writes only the analysis fields of a stored flow.
	SaveAnalysis(ctx context.Context, reportID string, upd AnalysisUpdate) error
}

func validateUpdate(reportID string, upd AnalysisUpdate) error {
	if reportID == "" {
		return errors.New("report id is required")
	}
	if upd.Metadata == nil {
		return errors.New("analysis metadata is required")
	}
	return nil
}
