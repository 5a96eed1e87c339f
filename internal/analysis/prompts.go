package analysis

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// digestLimit bounds the report material pasted into one prompt.
const digestLimit = 12000

// --- Sector Summary Prompt ---
const sectorSummaryTemplate = `Write a summary of the %s sector of an ITR Economics report.

Facts computed from the report:
%s

Page summaries and chart readings:
%s

Rules:
1.  Write between 200 and 900 characters of plain prose. No headings, lists or markdown.
2.  Describe where the sector sits in the business cycle and where it is heading.
3.  Only use facts present above. Do not invent figures.`

// --- Theme Prompt ---
const themesTemplate = `Identify the key economic themes running through an ITR Economics report.

Report material grouped by sector:
%s

Return a JSON array of between 5 and 10 objects. Each object must have exactly these keys:
    - "theme_name": a short title.
    - "significance_score": a number from 1 to 10.
    - "frequency": how many pages mention the theme, at least 1.
    - "description": one or two sentences.
    - "affected_sectors": an array using only "core", "financial", "construction", "manufacturing".
    - "business_implications": one sentence of practical guidance.
Do not include any text before or after the JSON array.`

// --- Executive Summary Prompt ---
const executiveSummaryTemplate = `Write the executive summary of an ITR Economics report for business leaders.

Cross-sector picture:
%s

Sector summaries:
%s

Key themes:
%s

Rules:
1.  Write between 300 and 1800 characters of plain prose in two or three paragraphs.
2.  Lead with the overall direction of the economy, then the sectors that diverge from it.
3.  Only use facts present above.`

// --- Recommendations Prompt ---
const recommendationsTemplate = `Based on this ITR Economics report analysis, give business leaders between 3 and 5 concrete recommendations.

Cross-sector picture:
%s

Key themes:
%s

Return a JSON array of strings, one recommendation per string, each under 300 characters.`

// --- Sentiment Prompt ---
const sentimentTemplate = `Confirm the market sentiment of an ITR Economics report.

A structural model scored the report %.2f on a 1 (strongly bearish) to 5 (strongly bullish) scale, rounded to %d (%s), with %s confidence.
Sector leans (weight, lean): %s

Sector summaries:
%s

Return a JSON object with exactly these keys:
    - "score": an integer from 1 to 5.
    - "label": one of "Strongly Bearish", "Bearish", "Neutral", "Bullish", "Strongly Bullish" matching the score.
    - "confidence": one of "high", "medium", "low".
    - "rationale": two or three sentences explaining the score.
Do not include any text before or after the JSON object.`

func sectorSummaryPrompt(sector models.Sector, in *sectorInputs, ps phaseSummary) string {
	facts := strings.Join(structuralSectorText(sector, in, ps), "\n")
	return fmt.Sprintf(sectorSummaryTemplate, sector, facts, sectorDigest(in, digestLimit))
}

func themesPrompt(inputs map[models.Sector]*sectorInputs, doc *models.FlowDocument) string {
	var sb strings.Builder
	sectors := presentSectors(inputs)
	per := digestLimit
	if len(sectors) > 0 {
		per = digestLimit / (len(sectors) + 1)
	}
	for _, s := range sectors {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", s, sectorDigest(inputs[s], per))
	}
	if other := unassignedDigest(doc, per); other != "" {
		fmt.Fprintf(&sb, "## general\n%s\n", other)
	}
	return fmt.Sprintf(themesTemplate, sb.String())
}

func executiveSummaryPrompt(trends models.CrossSectorTrends, sectors map[models.Sector]models.SectorAnalysis, themes []models.Theme) string {
	return fmt.Sprintf(executiveSummaryTemplate, trendsDigest(trends), sectorSummaries(sectors), themeDigest(themes))
}

func recommendationsPrompt(trends models.CrossSectorTrends, themes []models.Theme) string {
	return fmt.Sprintf(recommendationsTemplate, trendsDigest(trends), themeDigest(themes))
}

func sentimentPrompt(st structuralSentiment, sectors map[models.Sector]models.SectorAnalysis) string {
	var leans []string
	for _, s := range models.Sectors {
		if w, ok := st.Weights[s]; ok {
			leans = append(leans, fmt.Sprintf("%s (%.2f, %.2f)", s, w, st.Leans[s]))
		}
	}
	return fmt.Sprintf(sentimentTemplate, st.Raw, st.Score, models.SentimentLabel(st.Score), st.Confidence,
		strings.Join(leans, "; "), sectorSummaries(sectors))
}

// sectorDigest lists page summaries and chart descriptions of a sector.
func sectorDigest(in *sectorInputs, limit int) string {
	var lines []string
	for _, s := range in.Summaries {
		lines = append(lines, "- "+s)
	}
	for _, c := range in.Charts {
		line := fmt.Sprintf("- p.%d %s chart: %s", c.Page, c.Series, c.Interp.Description)
		if c.Interp.CurrentPhase != "" {
			line += fmt.Sprintf(" (phase %s, %s)", c.Interp.CurrentPhase, c.Interp.TrendDirection)
		}
		lines = append(lines, line)
	}
	for _, s := range in.Insights {
		lines = append(lines, "- "+s)
	}
	return joinLimited(lines, "\n", limit)
}

// unassignedDigest lists summaries of pages that belong to no sector.
func unassignedDigest(doc *models.FlowDocument, limit int) string {
	var lines []string
	for _, p := range doc.DocumentFlow {
		if p.Sector == "" && p.PageSummary != "" {
			lines = append(lines, fmt.Sprintf("- p.%d (%s): %s", p.PageNumber, p.PageType, p.PageSummary))
		}
	}
	return joinLimited(lines, "\n", limit)
}

func trendsDigest(t models.CrossSectorTrends) string {
	return fmt.Sprintf("Overall direction: %s. Sectors in growth: %s. Sectors in decline: %s.\n%s",
		t.OverallDirection, sectorList(t.SectorsInGrowth), sectorList(t.SectorsInDecline), t.TrendSummary)
}

func sectorSummaries(sectors map[models.Sector]models.SectorAnalysis) string {
	var lines []string
	for _, s := range models.Sectors {
		if sa, ok := sectors[s]; ok {
			lines = append(lines, fmt.Sprintf("- %s (%s): %s", s, sa.DominantTrend, sa.Summary))
		}
	}
	return joinLimited(lines, "\n", digestLimit)
}

func themeDigest(themes []models.Theme) string {
	var lines []string
	for _, t := range themes {
		lines = append(lines, fmt.Sprintf("- %s (%.0f/10): %s", t.ThemeName, t.SignificanceScore, t.Description))
	}
	return strings.Join(lines, "\n")
}

func sectorList(sectors []models.Sector) string {
	if len(sectors) == 0 {
		return "none"
	}
	parts := make([]string, len(sectors))
	for i, s := range sectors {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
