package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// MemoryStore keeps flows in memory and is safe for concurrent use. Documents
// are copied through JSON on the way in and out, so callers never share state
// with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, reportID string) (*models.FlowDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	raw, ok := s.docs[reportID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(raw)
}

func (s *MemoryStore) SaveFlow(ctx context.Context, doc *models.FlowDocument, opts SaveOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || doc.ReportID == "" {
		return fmt.Errorf("report id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *models.FlowDocument
	if raw, ok := s.docs[doc.ReportID]; ok {
		var err error
		if existing, err = decode(raw); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(MergeFlow(existing, doc, opts))
	if err != nil {
		return fmt.Errorf("failed to encode flow %s: %w", doc.ReportID, err)
	}
	s.docs[doc.ReportID] = raw
	return nil
}

func (s *MemoryStore) SaveAnalysis(ctx context.Context, reportID string, upd AnalysisUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateUpdate(reportID, upd); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.docs[reportID]
	if !ok {
		return ErrNotFound
	}
	doc, err := decode(raw)
	if err != nil {
		return err
	}
	if got := doc.AnalysisVersion(); got != upd.ExpectedVersion {
		return fmt.Errorf("%w: report %s is at version %d, expected %d", ErrConflict, reportID, got, upd.ExpectedVersion)
	}
	doc.OverallAnalysis = upd.Overall
	doc.SectorAnalyses = upd.Sectors
	doc.AnalysisMetadata = upd.Metadata
	if raw, err = json.Marshal(doc); err != nil {
		return fmt.Errorf("failed to encode flow %s: %w", reportID, err)
	}
	s.docs[reportID] = raw
	return nil
}

func decode(raw []byte) (*models.FlowDocument, error) {
	var doc models.FlowDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode stored flow: %w", err)
	}
	return &doc, nil
}
