package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/models"
)

// Overall directions.
const (
	DirectionExpanding   = "expanding"
	DirectionContracting = "contracting"
	DirectionMixed       = "mixed"
)

func (r *run) overall(ctx context.Context, sectors map[models.Sector]models.SectorAnalysis) (*models.OverallAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	trends := r.crossSectorTrends()
	themes, structural := r.themes(ctx)
	oa := &models.OverallAnalysis{
		CrossSectorTrends: trends,
		KeyThemes:         themes,
	}
	oa.ExecutiveSummary = r.executiveSummary(ctx, trends, sectors, themes)
	oa.Recommendations = r.recommendations(ctx, trends, themes)
	oa.SentimentScore = r.sentiment(ctx, sectors)
	if structural {
		oa.SentimentScore.Confidence = models.ConfidenceLow
	}

	if err := oa.Validate(); err != nil {
		r.logger.Warn("Overall analysis failed validation.", "error", err)
		r.note("validation: %v", err)
		oa.SentimentScore.Confidence = models.ConfidenceLow
	}
	oa.QualityNotes = append([]string{}, r.notes...)
	return oa, nil
}

func (r *run) crossSectorTrends() models.CrossSectorTrends {
	t := models.CrossSectorTrends{
		SectorsInGrowth:    []models.Sector{},
		SectorsInDecline:   []models.Sector{},
		SectorCorrelations: []models.Correlation{},
	}
	var stable []models.Sector
	present := presentSectors(r.inputs)
	for _, s := range present {
		ps := summarizePhases(r.inputs[s].Charts)
		switch ps.direction() {
		case 1:
			t.SectorsInGrowth = append(t.SectorsInGrowth, s)
		case -1:
			t.SectorsInDecline = append(t.SectorsInDecline, s)
		default:
			stable = append(stable, s)
		}
		for _, c := range correlationsFor(s) {
			if len(t.SectorCorrelations) < r.a.cfg.MaxCorrelations {
				t.SectorCorrelations = append(t.SectorCorrelations, c)
			}
		}
	}

	switch {
	case len(t.SectorsInGrowth) > len(t.SectorsInDecline):
		t.OverallDirection = DirectionExpanding
	case len(t.SectorsInDecline) > len(t.SectorsInGrowth):
		t.OverallDirection = DirectionContracting
	default:
		t.OverallDirection = DirectionMixed
	}

	if len(present) == 0 {
		t.TrendSummary = "No sector series were found, so no cross-sector trend could be derived."
		return t
	}
	t.TrendSummary = fmt.Sprintf("The economy is %s across %d sectors: growth in %s, decline in %s, undecided in %s.",
		t.OverallDirection, len(present), sectorList(t.SectorsInGrowth), sectorList(t.SectorsInDecline), sectorList(stable))
	return t
}

func (r *run) executiveSummary(ctx context.Context, trends models.CrossSectorTrends, sectors map[models.Sector]models.SectorAnalysis, themes []models.Theme) string {
	structural := structuralExecutiveText(r.doc, trends, sectors, themes)
	text, ok := r.generate(ctx, llm.TaskExecutiveSummary, llm.FormatText, executiveSummaryPrompt(trends, sectors, themes))
	if !ok {
		return fitLength(models.FallbackPrefix+structural[0], models.ExecutiveSummaryMin, models.ExecutiveSummaryMax, structural[1:]...)
	}
	return fitLength(text, models.ExecutiveSummaryMin, models.ExecutiveSummaryMax, structural...)
}

func structuralExecutiveText(doc *models.FlowDocument, trends models.CrossSectorTrends, sectors map[models.Sector]models.SectorAnalysis, themes []models.Theme) []string {
	period := doc.ReportPeriod
	if period == "" {
		period = "the reporting period"
	}
	out := []string{
		fmt.Sprintf("This report for %s covers %d pages and %d economic series.", period, len(doc.DocumentFlow), len(doc.SeriesIndex)),
		trends.TrendSummary,
	}
	for _, s := range models.Sectors {
		if sa, ok := sectors[s]; ok {
			out = append(out, fmt.Sprintf("The %s sector shows a %s trend across %d series.", s, sa.DominantTrend, sa.SeriesCount))
		}
	}
	if len(themes) > 0 {
		names := make([]string, 0, len(themes))
		for _, t := range themes {
			names = append(names, t.ThemeName)
		}
		out = append(out, fmt.Sprintf("Key themes: %s.", strings.Join(names, "; ")))
	}
	return out
}

func (r *run) recommendations(ctx context.Context, trends models.CrossSectorTrends, themes []models.Theme) []string {
	structural := structuralRecommendations(trends)
	text, ok := r.generate(ctx, llm.TaskRecommendations, llm.FormatJSON, recommendationsPrompt(trends, themes))
	if !ok {
		return prefixAll(structural[:models.RecommendationsMin])
	}
	var recs []string
	if err := llm.DecodeJSON(text, &recs); err != nil {
		var wrapped struct {
			Recommendations []string `json:"recommendations"`
		}
		if err2 := llm.DecodeJSON(text, &wrapped); err2 != nil {
			r.llmFailures++
			r.note("recommendations response could not be parsed: %v", err)
			return prefixAll(structural[:models.RecommendationsMin])
		}
		recs = wrapped.Recommendations
	}

	var out []string
	seen := map[string]bool{}
	for _, rec := range recs {
		rec = strings.TrimSpace(rec)
		if rec == "" || seen[strings.ToLower(rec)] {
			continue
		}
		seen[strings.ToLower(rec)] = true
		out = append(out, truncateText(rec, 500))
	}
	if len(out) > models.RecommendationsMax {
		r.note("%d recommendations returned, kept %d", len(out), models.RecommendationsMax)
		out = out[:models.RecommendationsMax]
	}
	if len(out) < models.RecommendationsMin {
		r.note("%d recommendations returned, supplemented with structural recommendations", len(out))
		for _, rec := range structural {
			if len(out) == models.RecommendationsMin {
				break
			}
			out = append(out, models.FallbackPrefix+rec)
		}
	}
	return out
}

// structuralRecommendations always returns at least three entries.
func structuralRecommendations(trends models.CrossSectorTrends) []string {
	var out []string
	switch trends.OverallDirection {
	case DirectionExpanding:
		out = append(out, "Position for growth: align capacity, hiring and inventory with rising demand in the expanding sectors.")
	case DirectionContracting:
		out = append(out, "Prepare for contraction: tighten cost controls and protect cash flow while the declining sectors bottom out.")
	default:
		out = append(out, "Plan for divergence: treat each sector on its own cycle rather than applying one company-wide outlook.")
	}
	if len(trends.SectorsInDecline) > 0 {
		out = append(out, fmt.Sprintf("Reduce exposure to %s until their phases turn upward.", sectorList(trends.SectorsInDecline)))
	}
	if len(trends.SectorsInGrowth) > 0 {
		out = append(out, fmt.Sprintf("Prioritize sales effort in %s while growth persists.", sectorList(trends.SectorsInGrowth)))
	}
	out = append(out,
		"Track the leading indicators monthly to catch turning points before they reach your markets.",
		"Revisit capital spending plans when the next report confirms or reverses the current phase.",
	)
	return out
}

func prefixAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = models.FallbackPrefix + s
	}
	return out
}
