package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/models"
)

// sectorAnalysis builds the analysis of one sector. It never fails: model
// problems degrade the narrative and the confidence.
func (r *run) sectorAnalysis(ctx context.Context, sector models.Sector) models.SectorAnalysis {
	in, ok := r.inputs[sector]
	if !ok || len(in.Series) == 0 {
		return noDataAnalysis(sector)
	}
	ps := summarizePhases(in.Charts)

	sa := models.SectorAnalysis{
		SectorName:        sector,
		SeriesCount:       len(in.Series),
		PhaseDistribution: ps.Distribution,
		DominantTrend:     ps.Dominant,
		LeadingIndicators: leadingIndicators(sector, in.Series),
		BusinessPhase:     ps.Plurality,
		Correlations:      correlationsFor(sector),
		SourcePages:       append([]int{}, in.Pages...),
		Confidence:        chartConfidence(in.Charts),
	}

	structural := structuralSectorText(sector, in, ps)
	text, ok := r.generate(ctx, llm.TaskSectorSummary, llm.FormatText, sectorSummaryPrompt(sector, in, ps))
	if ok {
		sa.Summary = fitLength(text, models.SectorSummaryMin, models.SectorSummaryMax, structural...)
	} else {
		sa.Summary = fitLength(models.FallbackPrefix+structural[0], models.SectorSummaryMin, models.SectorSummaryMax, structural[1:]...)
		sa.Confidence = models.ConfidenceLow
	}
	sa.KeyInsights = sectorInsights(sector, in, ps)
	return sa
}

func noDataAnalysis(sector models.Sector) models.SectorAnalysis {
	dist := map[models.Phase]int{}
	for _, p := range models.Phases {
		dist[p] = 0
	}
	summary := fmt.Sprintf("No data: this report contains no %s sector series, so no phase distribution, leading indicators or trend could be derived for the %s sector. "+
		"The sector is listed for completeness only and does not contribute to the overall sentiment score.", sector, sector)
	return models.SectorAnalysis{
		SectorName:        sector,
		Summary:           fitLength(summary, models.SectorSummaryMin, models.SectorSummaryMax),
		SeriesCount:       0,
		PhaseDistribution: dist,
		DominantTrend:     TrendNoData,
		LeadingIndicators: []string{},
		Correlations:      correlationsFor(sector),
		KeyInsights: []string{
			fmt.Sprintf("No %s series were found in this report.", sector),
			"No chart interpretations are available for this sector.",
			"Sector analysis should be revisited when the sector's series are present.",
		},
		SourcePages: []int{},
		Confidence:  models.ConfidenceLow,
	}
}

// chartConfidence is the median confidence of the sector's interpreted charts.
func chartConfidence(charts []chartSignal) models.Confidence {
	if len(charts) == 0 {
		return models.ConfidenceLow
	}
	var counts [3]int
	for _, c := range charts {
		counts[c.Interp.Confidence.Level()]++
	}
	mid := (len(charts) + 1) / 2
	seen := 0
	for level := 0; level < 3; level++ {
		seen += counts[level]
		if seen >= mid {
			return [...]models.Confidence{models.ConfidenceLow, models.ConfidenceMedium, models.ConfidenceHigh}[level]
		}
	}
	return models.ConfidenceLow
}

// structuralSectorText describes the sector from counts alone, sentence by sentence.
func structuralSectorText(sector models.Sector, in *sectorInputs, ps phaseSummary) []string {
	out := []string{
		fmt.Sprintf("The %s sector covers %d series (%s).", sector, len(in.Series), joinLimited(in.Series, ", ", 240)),
	}
	if ps.Phased > 0 {
		out = append(out, fmt.Sprintf("Across %d interpreted charts the phase distribution is A:%d, B:%d, C:%d, D:%d, with phase %s most common and a %s trajectory, giving a dominant trend of %s.",
			ps.Phased, ps.Distribution[models.PhaseA], ps.Distribution[models.PhaseB], ps.Distribution[models.PhaseC], ps.Distribution[models.PhaseD],
			ps.Plurality, ps.Trajectory, ps.Dominant))
	} else {
		out = append(out, "No chart in this sector carries a business-cycle phase, so the dominant trend defaults to stable.")
	}
	for _, c := range correlationsFor(sector) {
		out = append(out, c.Description)
	}
	out = append(out,
		fmt.Sprintf("Leading indicators to watch: %s.", strings.Join(leadingIndicators(sector, in.Series), ", ")),
		"Phase letters follow the ITR business cycle: A recovery, B accelerating growth, C slowing growth, D recession.",
	)
	return out
}

// sectorInsights keeps page insights first and pads with structural statements.
func sectorInsights(sector models.Sector, in *sectorInputs, ps phaseSummary) []string {
	var out []string
	for _, s := range in.Insights {
		if len(out) == models.SectorInsightsMax {
			break
		}
		out = append(out, truncateText(s, 300))
	}
	pad := []string{
		fmt.Sprintf("%d interpreted %s charts are in growth phases (A/B) and %d in decline phases (C/D).", ps.Growth, sector, ps.Decline),
		fmt.Sprintf("The dominant %s trend is %s.", sector, ps.Dominant),
		fmt.Sprintf("The %s sector is reported on %d pages.", sector, len(in.Pages)),
	}
	for _, p := range pad {
		if len(out) >= models.SectorInsightsMin {
			break
		}
		out = append(out, p)
	}
	return out
}
