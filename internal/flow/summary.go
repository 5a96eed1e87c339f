package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/models"
)

// maxPromptText caps how much page text is sent with a summary prompt.
const maxPromptText = 6000

// PageSummarizer writes the summary of a page once its charts are interpreted.
type PageSummarizer interface {
	SummarizePage(ctx context.Context, page *models.PageFlow) (string, error)
}

// LLMSummarizer summarizes pages with a language model.
type LLMSummarizer struct {
	Gen llm.Generator
}

func (s *LLMSummarizer) SummarizePage(ctx context.Context, page *models.PageFlow) (string, error) {
	if s.Gen == nil {
		return "", llm.ErrUnavailable
	}
	resp, err := s.Gen.Generate(ctx, llm.Request{Task: llm.TaskPageSummary, Prompt: PageSummaryPrompt(page)})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp)
	if summary == "" {
		return "", llm.ErrEmptyResponse
	}
	return summary, nil
}

// PageSummaryPrompt renders the page content sent to the model.
func PageSummaryPrompt(page *models.PageFlow) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Page %d (%s)", page.PageNumber, page.PageType)
	if page.SeriesName != "" {
		fmt.Fprintf(&sb, " reporting on %s, %s sector", page.SeriesName, page.Sector)
	}
	sb.WriteString(".\n\nContent:\n")
	text := page.Text()
	text = text[:runeBoundary(text, maxPromptText)]
	sb.WriteString(text)
	for _, c := range page.Charts() {
		if c.Interpretation == nil {
			continue
		}
		fmt.Fprintf(&sb, "\n\nChart (%s): %s Trend: %s.", c.Chart.ChartType, c.Interpretation.Description, c.Interpretation.TrendDirection)
		if c.Interpretation.CurrentPhase != "" {
			fmt.Fprintf(&sb, " Phase %s.", c.Interpretation.CurrentPhase)
		}
	}
	return sb.String()
}

// FallbackPageSummary describes a page from its structure alone.
func FallbackPageSummary(page *models.PageFlow) string {
	var s string
	switch page.PageType {
	case models.PageSeries:
		s = fmt.Sprintf("Page %d presents %s in the %s sector", page.PageNumber, page.SeriesName, page.Sector)
		var phases []string
		for _, c := range page.Charts() {
			if c.Interpretation != nil && c.Interpretation.CurrentPhase != "" {
				phases = append(phases, string(c.Interpretation.CurrentPhase))
			}
		}
		if len(phases) > 0 {
			s += fmt.Sprintf(", with charts indicating phase %s", strings.Join(phases, "/"))
		}
		s += "."
	case models.PageExecutiveSummary:
		s = fmt.Sprintf("Page %d is the executive summary of the report.", page.PageNumber)
	case models.PageAtAGlance:
		s = fmt.Sprintf("Page %d gives an at-a-glance view of phases across all series.", page.PageNumber)
	case models.PageTableOfContents:
		s = fmt.Sprintf("Page %d lists the contents of the report.", page.PageNumber)
	default:
		s = fmt.Sprintf("Page %d contains %d content blocks.", page.PageNumber, len(page.Blocks))
	}
	if len(page.KeyInsights) > 0 {
		s += " " + page.KeyInsights[0]
	}
	return models.FallbackPrefix + s
}
