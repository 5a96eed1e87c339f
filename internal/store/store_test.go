package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Lllllllleong/reportflow/internal/models"
)

func flowDoc(pages ...models.PageFlow) *models.FlowDocument {
	return &models.FlowDocument{
		ReportID:            "trends_report_march_2025",
		PDFFilename:         "Trends Report March 2025.pdf",
		ExtractionTimestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		DocumentFlow:        pages,
		SeriesIndex:         map[string]models.SeriesEntry{},
	}
}

func page(n int, notes ...models.SavedAnalysis) models.PageFlow {
	return models.PageFlow{
		PageNumber:     n,
		PageType:       models.PageOther,
		Blocks:         []models.ContentBlock{{BlockType: models.BlockText, Content: "text"}},
		KeyInsights:    []string{},
		CustomAnalysis: append([]models.SavedAnalysis{}, notes...),
	}
}

func note(id, content string) models.SavedAnalysis {
	return models.SavedAnalysis{ID: id, Title: id, Content: content, CreatedAt: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)}
}

func TestMergeFlowKeepsCustomAnalysis(t *testing.T) {
	existing := flowDoc(page(1, note("a", "first")), page(2, note("b", "second")), page(3, note("c", "gone")))
	existing.AnalysisMetadata = &models.AnalysisMetadata{Version: 4}
	incoming := flowDoc(page(1, note("a", "edited"), note("d", "new")), page(2))

	merged := MergeFlow(existing, incoming, SaveOptions{})

	got := merged.Page(1).CustomAnalysis
	if len(got) != 2 || got[0].Content != "edited" || got[1].ID != "d" {
		t.Fatalf("page 1 custom analysis %+v", got)
	}
	if got := merged.Page(2).CustomAnalysis; len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("page 2 custom analysis %+v", got)
	}
	if len(merged.OrphanedCustomAnalysis) != 1 || merged.OrphanedCustomAnalysis[0].ID != "c" {
		t.Fatalf("orphans %+v", merged.OrphanedCustomAnalysis)
	}
	if merged.AnalysisVersion() != 4 {
		t.Fatalf("stored analysis should be kept, got version %d", merged.AnalysisVersion())
	}
}

func TestMergeFlowReplaceFlag(t *testing.T) {
	existing := flowDoc(page(1, note("a", "first")), page(2, note("b", "second")))
	incoming := flowDoc(page(1), page(2))

	merged := MergeFlow(existing, incoming, SaveOptions{ReplaceCustomAnalysisPages: []int{2}})
	if len(merged.Page(1).CustomAnalysis) != 1 {
		t.Fatalf("page 1 should keep its analysis")
	}
	if len(merged.Page(2).CustomAnalysis) != 0 {
		t.Fatalf("page 2 analysis should be replaced, got %+v", merged.Page(2).CustomAnalysis)
	}
}

func TestMemoryStoreRegenerationIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SaveFlow(ctx, flowDoc(page(1, note("a", "x")), page(2)), SaveOptions{}); err != nil {
		t.Fatalf("SaveFlow: %v", err)
	}
	before, err := s.Get(ctx, "trends_report_march_2025")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	flowBefore, _ := json.Marshal(before.DocumentFlow)

	upd := AnalysisUpdate{
		Overall:  &models.OverallAnalysis{ExecutiveSummary: "summary"},
		Sectors:  map[models.Sector]models.SectorAnalysis{models.SectorCore: {SectorName: models.SectorCore}},
		Metadata: &models.AnalysisMetadata{Version: 1, GeneratedAt: time.Now().UTC()},
	}
	if err := s.SaveAnalysis(ctx, "trends_report_march_2025", upd); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	after, err := s.Get(ctx, "trends_report_march_2025")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	flowAfter, _ := json.Marshal(after.DocumentFlow)
	if !bytes.Equal(flowBefore, flowAfter) {
		t.Fatalf("document flow changed:\n%s\n%s", flowBefore, flowAfter)
	}
	if after.AnalysisVersion() != 1 || after.SectorAnalyses[models.SectorCore].SectorName != models.SectorCore {
		t.Fatalf("analysis not stored: %+v", after.AnalysisMetadata)
	}
}

func TestMemoryStoreConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SaveFlow(ctx, flowDoc(page(1)), SaveOptions{}); err != nil {
		t.Fatalf("SaveFlow: %v", err)
	}
	upd := AnalysisUpdate{Metadata: &models.AnalysisMetadata{Version: 3}, ExpectedVersion: 2}
	if err := s.SaveAnalysis(ctx, "trends_report_march_2025", upd); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := s.SaveAnalysis(ctx, "missing", upd); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreResaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := flowDoc(page(1), page(2))
	for i := 0; i < 2; i++ {
		if err := s.SaveFlow(ctx, doc, SaveOptions{}); err != nil {
			t.Fatalf("SaveFlow: %v", err)
		}
	}
	if len(s.docs) != 1 {
		t.Fatalf("expected one stored document, got %d", len(s.docs))
	}
	got, err := s.Get(ctx, doc.ReportID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.DocumentFlow) != 2 {
		t.Fatalf("unexpected flow %+v", got.DocumentFlow)
	}
}
