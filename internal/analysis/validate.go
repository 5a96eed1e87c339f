package analysis

import (
	"fmt"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// validateDocument lists problems of the input flow that limit analysis quality.
func validateDocument(doc *models.FlowDocument) []string {
	var issues []string
	if len(doc.DocumentFlow) == 0 {
		return []string{"document flow is empty"}
	}
	if len(doc.SeriesIndex) == 0 {
		issues = append(issues, "no economic series detected")
	}
	covered := map[models.Sector]bool{}
	for _, e := range doc.SeriesIndex {
		covered[e.Sector] = true
	}
	for _, s := range models.Sectors {
		if len(doc.SeriesIndex) > 0 && !covered[s] {
			issues = append(issues, fmt.Sprintf("no %s sector series", s))
		}
	}
	summaries := 0
	for i, p := range doc.DocumentFlow {
		if p.PageSummary != "" {
			summaries++
		}
		if i > 0 && p.PageNumber != doc.DocumentFlow[i-1].PageNumber+1 {
			issues = append(issues, fmt.Sprintf("page gap between %d and %d", doc.DocumentFlow[i-1].PageNumber, p.PageNumber))
		}
	}
	if summaries == 0 {
		issues = append(issues, "no page summaries available")
	}
	return issues
}
