package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// newEmulatorStore returns a FirestoreStore on a fresh collection of the local
// emulator. The test is skipped when FIRESTORE_EMULATOR_HOST is not set.
func newEmulatorStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "reportflow-test")
	if err != nil {
		t.Fatalf("failed to create firestore client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewFirestoreStore(client, "report_flows_"+uuid.NewString())
}

func sectorSet(sectors ...models.Sector) map[models.Sector]models.SectorAnalysis {
	out := map[models.Sector]models.SectorAnalysis{}
	for _, s := range sectors {
		out[s] = models.SectorAnalysis{SectorName: s, Summary: string(s) + " summary", Confidence: models.ConfidenceMedium}
	}
	return out
}

func TestFirestoreStoreRoundTrip(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	doc := flowDoc(page(1, note("a", "first")), page(2))
	doc.DocumentFlow[0].RawText = "text"
	if err := s.SaveFlow(ctx, doc, SaveOptions{}); err != nil {
		t.Fatalf("SaveFlow: %v", err)
	}

	got, err := s.Get(ctx, doc.ReportID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.DocumentFlow) != 2 || got.AnalysisVersion() != 0 {
		t.Fatalf("unexpected stored flow: %+v", got)
	}
	p1 := got.Page(1)
	if p1.RawText != "" {
		t.Errorf("raw text was stored: %q", p1.RawText)
	}
	if p1.Text() != "text" {
		t.Errorf("Text() = %q, want rebuilt %q", p1.Text(), "text")
	}
	if len(p1.CustomAnalysis) != 1 || p1.CustomAnalysis[0].Content != "first" {
		t.Errorf("custom analysis %+v", p1.CustomAnalysis)
	}
}

func TestFirestoreStoreSaveAnalysis(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	doc := flowDoc(page(1), page(2))
	if err := s.SaveFlow(ctx, doc, SaveOptions{}); err != nil {
		t.Fatalf("SaveFlow: %v", err)
	}

	first := AnalysisUpdate{
		Overall:  &models.OverallAnalysis{ExecutiveSummary: "first"},
		Sectors:  sectorSet(models.SectorCore, models.SectorFinancial),
		Metadata: &models.AnalysisMetadata{Version: 1, GeneratedAt: time.Now().UTC()},
	}
	if err := s.SaveAnalysis(ctx, doc.ReportID, first); err != nil {
		t.Fatalf("SaveAnalysis v1: %v", err)
	}
	got, err := s.Get(ctx, doc.ReportID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AnalysisVersion() != 1 || len(got.SectorAnalyses) != 2 {
		t.Fatalf("after v1: version %d, sectors %d", got.AnalysisVersion(), len(got.SectorAnalyses))
	}
	if got.SectorAnalyses[models.SectorFinancial].Summary != "financial summary" {
		t.Errorf("financial analysis %+v", got.SectorAnalyses[models.SectorFinancial])
	}

	second := AnalysisUpdate{
		Overall:         &models.OverallAnalysis{ExecutiveSummary: "second"},
		Sectors:         sectorSet(models.SectorCore),
		Metadata:        &models.AnalysisMetadata{Version: 2, RegeneratedFromVersion: 1, GeneratedAt: time.Now().UTC()},
		ExpectedVersion: 1,
	}
	if err := s.SaveAnalysis(ctx, doc.ReportID, second); err != nil {
		t.Fatalf("SaveAnalysis v2: %v", err)
	}
	got, err = s.Get(ctx, doc.ReportID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AnalysisVersion() != 2 || got.OverallAnalysis.ExecutiveSummary != "second" {
		t.Fatalf("after v2: version %d, overall %+v", got.AnalysisVersion(), got.OverallAnalysis)
	}
	if _, ok := got.SectorAnalyses[models.SectorFinancial]; ok || len(got.SectorAnalyses) != 1 {
		t.Fatalf("stale sector analysis kept: %v", got.SectorAnalyses)
	}

	// A re-extracted flow keeps the stored analysis.
	if err := s.SaveFlow(ctx, flowDoc(page(1), page(2), page(3)), SaveOptions{}); err != nil {
		t.Fatalf("SaveFlow again: %v", err)
	}
	got, err = s.Get(ctx, doc.ReportID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.DocumentFlow) != 3 || got.AnalysisVersion() != 2 || len(got.SectorAnalyses) != 1 {
		t.Fatalf("after re-save: pages %d, version %d, sectors %d", len(got.DocumentFlow), got.AnalysisVersion(), len(got.SectorAnalyses))
	}
}

func TestFirestoreStoreConflictAndMissing(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
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
