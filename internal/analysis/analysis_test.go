package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/llm/llmtest"
	"github.com/Lllllllleong/reportflow/internal/models"
)

func chartPage(n int, series string, sector models.Sector, phase models.Phase, dir models.TrendDirection) models.PageFlow {
	page := models.PageFlow{
		PageNumber:  n,
		SeriesName:  series,
		Sector:      sector,
		PageType:    models.PageSeries,
		PageSummary: fmt.Sprintf("%s is in phase %s.", series, phase),
		KeyInsights: []string{fmt.Sprintf("%s insight from page %d", series, n)},
		Blocks: []models.ContentBlock{
			{BlockType: models.BlockHeading, Content: series, SequenceNumber: 0},
			{BlockType: models.BlockChart, Chart: &models.ChartContent{ChartType: "rate_of_change"}, SequenceNumber: 1},
		},
	}
	if phase != "" {
		page.Blocks[1].Interpretation = &models.Interpretation{
			Description:    series + " chart",
			TrendDirection: dir,
			CurrentPhase:   phase,
			Confidence:     models.ConfidenceHigh,
		}
	}
	return page
}

func sampleFlow(pages ...models.PageFlow) *models.FlowDocument {
	doc := &models.FlowDocument{
		ReportID:     "trends_report_march_2025",
		PDFFilename:  "Trends Report March 2025.pdf",
		ReportPeriod: "March 2025",
		DocumentFlow: pages,
		SeriesIndex:  map[string]models.SeriesEntry{},
	}
	for _, p := range pages {
		if p.SeriesName == "" {
			continue
		}
		e := doc.SeriesIndex[p.SeriesName]
		e.Sector = p.Sector
		e.SourcePages = append(e.SourcePages, p.PageNumber)
		e.Insights = append(e.Insights, p.KeyInsights...)
		doc.SeriesIndex[p.SeriesName] = e
	}
	return doc
}

func themesJSON(n int) string {
	var parts []string
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf(`{"theme_name":"Theme %d","significance_score":%d,"frequency":2,"description":"d","affected_sectors":["core","retail"],"business_implications":"b"}`, i, i+1))
	}
	return "```json\n[" + strings.Join(parts, ",") + "]\n```"
}

func newTestAggregator(gen llm.Generator) *Aggregator {
	a := NewAggregator(gen, DefaultConfig(), nil)
	a.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	a.runID = func() string { return "run-1" }
	return a
}

func TestSummarizePhasesTieGoesToLaterPage(t *testing.T) {
	charts := collect(sampleFlow(
		chartPage(3, "US Industrial Production", models.SectorCore, models.PhaseA, models.TrendRising),
		chartPage(7, "US Retail Sales", models.SectorCore, models.PhaseC, models.TrendFalling),
	))[models.SectorCore].Charts

	ps := summarizePhases(charts)
	if ps.Plurality != models.PhaseC {
		t.Fatalf("expected later phase C to win the tie, got %s", ps.Plurality)
	}
	if ps.Trajectory != models.TrendFalling || ps.Dominant != TrendSlowing {
		t.Fatalf("expected falling/slowing, got %s/%s", ps.Trajectory, ps.Dominant)
	}
	if ps.Distribution[models.PhaseB] != 0 || ps.Distribution[models.PhaseA] != 1 {
		t.Fatalf("unexpected distribution %v", ps.Distribution)
	}
}

func TestDominantTrend(t *testing.T) {
	tests := []struct {
		phase models.Phase
		dir   models.TrendDirection
		want  string
	}{
		{models.PhaseA, models.TrendRising, TrendRecovering},
		{models.PhaseB, models.TrendRising, TrendAccelerating},
		{models.PhaseB, models.TrendFalling, TrendSlowing},
		{models.PhaseD, models.TrendFalling, TrendDeclining},
		{models.PhaseD, models.TrendRising, TrendRecovering},
	}
	for _, tt := range tests {
		charts := []chartSignal{{Interp: models.Interpretation{CurrentPhase: tt.phase, TrendDirection: tt.dir}}}
		if got := summarizePhases(charts).Dominant; got != tt.want {
			t.Errorf("%s/%s: got %s, want %s", tt.phase, tt.dir, got, tt.want)
		}
	}
	if got := summarizePhases(nil); got.Dominant != TrendStable || got.Plurality != "" || got.lean() != 3 {
		t.Errorf("no charts: got %+v", got)
	}
}

func TestNormalizeWeights(t *testing.T) {
	w := NormalizeWeights(DefaultSectorWeights(), []models.Sector{models.SectorCore, models.SectorConstruction})
	if len(w) != 2 {
		t.Fatalf("expected two sectors, got %v", w)
	}
	if math.Abs(w[models.SectorCore]-2.0/3) > 1e-9 || math.Abs(w[models.SectorConstruction]-1.0/3) > 1e-9 {
		t.Fatalf("unexpected weights %v", w)
	}

	w = NormalizeWeights(map[models.Sector]float64{}, []models.Sector{models.SectorFinancial})
	if w[models.SectorFinancial] != 1 {
		t.Fatalf("expected equal share, got %v", w)
	}
}

func TestStructuralConfidence(t *testing.T) {
	tests := []struct {
		agreement float64
		want      models.Confidence
	}{
		{1, models.ConfidenceHigh},
		{0.81, models.ConfidenceHigh},
		{0.8, models.ConfidenceMedium},
		{0.5, models.ConfidenceMedium},
		{0.49, models.ConfidenceLow},
		{0, models.ConfidenceLow},
	}
	for _, tt := range tests {
		if got := StructuralConfidence(tt.agreement); got != tt.want {
			t.Errorf("StructuralConfidence(%v) = %s, want %s", tt.agreement, got, tt.want)
		}
	}
}

func TestGenerateWithModelDown(t *testing.T) {
	doc := sampleFlow(
		models.PageFlow{PageNumber: 1, PageType: models.PageOther},
		chartPage(2, "US Industrial Production", models.SectorCore, models.PhaseB, models.TrendRising),
		chartPage(3, "US Stock Prices", models.SectorFinancial, models.PhaseB, models.TrendRising),
		chartPage(4, "US Single-Unit Housing Starts", models.SectorConstruction, models.PhaseD, models.TrendFalling),
	)
	a := newTestAggregator(llmtest.Down(llm.ErrUnavailable))

	res, err := a.Generate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := res.Overall.Validate(); err != nil {
		t.Fatalf("overall analysis invalid: %v", err)
	}
	for s, sa := range res.Sectors {
		if err := sa.Validate(); err != nil {
			t.Errorf("sector %s invalid: %v", s, err)
		}
		if sa.Confidence != models.ConfidenceLow || !strings.HasPrefix(sa.Summary, models.FallbackPrefix) {
			t.Errorf("sector %s not flagged as fallback: %+v", s, sa)
		}
	}
	if _, ok := res.Sectors[models.SectorManufacturing]; ok {
		t.Errorf("sector without series should be omitted")
	}

	sent := res.Overall.SentimentScore
	if sent.Confidence != models.ConfidenceLow || !strings.HasPrefix(sent.Rationale, models.FallbackPrefix) {
		t.Errorf("sentiment not flagged as fallback: %+v", sent)
	}
	if sent.Label != models.SentimentLabel(sent.Score) {
		t.Errorf("label %q does not match score %d", sent.Label, sent.Score)
	}
	if !strings.HasPrefix(res.Overall.ExecutiveSummary, models.FallbackPrefix) {
		t.Errorf("executive summary not flagged: %q", res.Overall.ExecutiveSummary)
	}
	for _, theme := range res.Overall.KeyThemes {
		if !strings.HasPrefix(theme.Description, models.FallbackPrefix) {
			t.Errorf("theme %q not flagged", theme.ThemeName)
		}
	}

	meta := res.Metadata
	if meta.Version != 1 || meta.RunID != "run-1" || !meta.Partial || meta.LLMFailures == 0 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.SchemaVersion != models.SchemaVersion {
		t.Errorf("schema version %q", meta.SchemaVersion)
	}
}

func TestSentimentCorrectsModelAnswer(t *testing.T) {
	doc := sampleFlow(
		chartPage(2, "US Industrial Production", models.SectorCore, models.PhaseB, models.TrendRising),
		chartPage(3, "US Stock Prices", models.SectorFinancial, models.PhaseD, models.TrendFalling),
		chartPage(4, "US Single-Unit Housing Starts", models.SectorConstruction, "", ""),
	)
	gen := &llmtest.Generator{Responses: map[llm.Task]string{
		llm.TaskSentiment: `{"score": 4, "label": "Bearish", "confidence": "high", "rationale": "Core strength outweighs financial weakness."}`,
		llm.TaskThemes:    themesJSON(6),
	}}
	a := newTestAggregator(gen)

	res, err := a.Generate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sent := res.Overall.SentimentScore
	if sent.Score != 4 || sent.Label != models.LabelBullish {
		t.Fatalf("expected score 4 relabelled Bullish, got %d %q", sent.Score, sent.Label)
	}
	if sent.Confidence != models.ConfidenceLow {
		t.Fatalf("expected structural low confidence to win, got %s", sent.Confidence)
	}
	if sent.Rationale != "Core strength outweighs financial weakness." {
		t.Errorf("rationale %q", sent.Rationale)
	}
	var sum float64
	for _, w := range sent.SectorWeights {
		sum += w
	}
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("weights sum to %v", sum)
	}

	notes := strings.Join(res.Metadata.QualityNotes, "\n")
	for _, want := range []string{"corrected", "overridden"} {
		if !strings.Contains(notes, want) {
			t.Errorf("expected a %q note in %q", want, notes)
		}
	}
}

func TestSentimentRejectsOutOfRangeScore(t *testing.T) {
	doc := sampleFlow(chartPage(2, "US Industrial Production", models.SectorCore, models.PhaseB, models.TrendRising))
	gen := &llmtest.Generator{Responses: map[llm.Task]string{
		llm.TaskSentiment: `{"score": 9, "label": "Euphoric", "confidence": "high", "rationale": "r"}`,
	}}
	r := newTestAggregator(gen).newRun(doc)

	sent := r.sentiment(context.Background(), nil)
	if sent.Score != 5 || sent.Label != models.LabelStronglyBullish {
		t.Fatalf("expected structural score 5, got %d %q", sent.Score, sent.Label)
	}
	if err := sent.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestThemeBounds(t *testing.T) {
	doc := sampleFlow(chartPage(2, "US Industrial Production", models.SectorCore, models.PhaseB, models.TrendRising))

	r := newTestAggregator(&llmtest.Generator{Responses: map[llm.Task]string{llm.TaskThemes: themesJSON(12)}}).newRun(doc)
	themes, structural := r.themes(context.Background())
	if structural || len(themes) != models.ThemesMax {
		t.Fatalf("expected 10 model themes, got %d (structural=%v)", len(themes), structural)
	}
	if themes[0].SignificanceScore != 10 {
		t.Errorf("expected most significant first, got %v", themes[0].SignificanceScore)
	}
	for _, theme := range themes {
		if err := theme.Validate(); err != nil {
			t.Errorf("theme invalid: %v", err)
		}
		if len(theme.AffectedSectors) != 1 || theme.AffectedSectors[0] != models.SectorCore {
			t.Errorf("sectors not filtered: %v", theme.AffectedSectors)
		}
		if len(theme.SourcePages) != 1 || theme.SourcePages[0] != 2 {
			t.Errorf("source pages %v", theme.SourcePages)
		}
	}

	r = newTestAggregator(&llmtest.Generator{Responses: map[llm.Task]string{llm.TaskThemes: themesJSON(3)}}).newRun(doc)
	themes, structural = r.themes(context.Background())
	if !structural || len(themes) < models.ThemesMin || len(themes) > models.ThemesMax {
		t.Fatalf("expected structural themes, got %d (structural=%v)", len(themes), structural)
	}
	if !strings.Contains(strings.Join(r.notes, "\n"), "data quality") {
		t.Errorf("expected a data quality note, got %v", r.notes)
	}
}

func TestGenerateSectorAnalysisEmptySector(t *testing.T) {
	doc := sampleFlow(chartPage(2, "US Industrial Production", models.SectorCore, models.PhaseB, models.TrendRising))
	a := newTestAggregator(llmtest.Down(errors.New("offline")))

	sa, err := a.GenerateSectorAnalysis(context.Background(), doc, models.SectorManufacturing)
	if err != nil {
		t.Fatalf("GenerateSectorAnalysis: %v", err)
	}
	if sa.SeriesCount != 0 || !strings.HasPrefix(sa.Summary, "No data") || sa.DominantTrend != TrendNoData {
		t.Fatalf("unexpected empty sector analysis %+v", sa)
	}
	if err := sa.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if _, err := a.GenerateSectorAnalysis(context.Background(), doc, "retail"); err == nil {
		t.Fatal("expected an error for an unknown sector")
	}
}

func TestGenerateSectorAnalysisWithModel(t *testing.T) {
	doc := sampleFlow(
		chartPage(2, "US Industrial Production", models.SectorCore, models.PhaseB, models.TrendRising),
		chartPage(5, "ITR Leading Indicator", models.SectorCore, models.PhaseA, models.TrendRising),
	)
	gen := &llmtest.Generator{Responses: map[llm.Task]string{
		llm.TaskSectorSummary: strings.Repeat("Core activity is accelerating. ", 60),
	}}

	sa, err := newTestAggregator(gen).GenerateSectorAnalysis(context.Background(), doc, models.SectorCore)
	if err != nil {
		t.Fatalf("GenerateSectorAnalysis: %v", err)
	}
	if err := sa.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !strings.HasSuffix(sa.Summary, ".") {
		t.Errorf("summary should be cut on a sentence end: %q", sa.Summary)
	}
	if sa.SeriesCount != 2 || sa.LeadingIndicators[0] != "ITR Leading Indicator" {
		t.Errorf("unexpected analysis %+v", sa)
	}
	if sa.Confidence != models.ConfidenceHigh {
		t.Errorf("confidence %s", sa.Confidence)
	}
}

func TestGenerateRegenerationVersion(t *testing.T) {
	doc := sampleFlow(chartPage(2, "US Industrial Production", models.SectorCore, models.PhaseB, models.TrendRising))
	doc.AnalysisMetadata = &models.AnalysisMetadata{Version: 2}

	res, err := newTestAggregator(llmtest.Down(llm.ErrUnavailable)).Generate(context.Background(), doc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Metadata.Version != 3 || res.Metadata.RegeneratedFromVersion != 2 {
		t.Fatalf("unexpected metadata %+v", res.Metadata)
	}
}

func TestFitLength(t *testing.T) {
	got := fitLength("Short.", 20, 100, "Second sentence here.", "Third.")
	if got != "Short. Second sentence here." {
		t.Errorf("padded: %q", got)
	}
	got = fitLength("One two. Three four five six.", 5, 12)
	if got != "One two." {
		t.Errorf("cut: %q", got)
	}
}
