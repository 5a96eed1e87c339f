package flow

import (
	"regexp"
	"strings"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// seriesScanBlocks is how many text-bearing blocks, besides headings, are searched for a series name.
const seriesScanBlocks = 5

const maxKeyInsights = 5

var (
	tocLineRe = regexp.MustCompile(`(?m)^[^\n]*[A-Za-z][^\n]*?(?:\.{2,}|[ \t]{2,})[ \t]*\d{1,3}[ \t]*$`)
	bylineRe  = regexp.MustCompile(`(?m)^\s*(?:By|Author:)\s+[A-Z][a-z]+(?:\s+[A-Z]\.)?\s+[A-Z][A-Za-z'\-]+`)
)

// Segmenter types pages and detects the series a page reports on.
type Segmenter struct {
	table SeriesTable
}

func NewSegmenter(table SeriesTable) *Segmenter {
	if table == nil {
		table = DefaultSeriesTable
	}
	return &Segmenter{table: table}
}

// Segment builds the PageFlow of one page from its classified blocks. A page with no
// blocks still yields a PageFlow of type other.
func (s *Segmenter) Segment(pageNumber int, blocks []models.ContentBlock) models.PageFlow {
	page := models.PageFlow{
		PageNumber:     pageNumber,
		PageType:       models.PageOther,
		Blocks:         blocks,
		KeyInsights:    []string{},
		CustomAnalysis: []models.SavedAnalysis{},
	}
	if page.Blocks == nil {
		page.Blocks = []models.ContentBlock{}
	}
	if len(blocks) == 0 {
		page.QualityNotes = append(page.QualityNotes, "page has no extractable content")
		return page
	}

	page.RawText = models.BlocksText(blocks)
	match, matched := s.detectSeries(blocks)
	page.PageType = pageType(blocks, page.RawText, matched)
	if page.PageType == models.PageSeries {
		page.SeriesName = match.Name
		page.Sector = match.Sector
	}
	page.KeyInsights = KeyInsights(blocks)
	return page
}

// detectSeries scans headings and the first few text blocks in sequence order.
// The first block with a match wins.
func (s *Segmenter) detectSeries(blocks []models.ContentBlock) (SeriesMatch, bool) {
	scanned := 0
	for _, b := range blocks {
		if b.BlockType == models.BlockChart || b.Content == "" {
			continue
		}
		if b.BlockType != models.BlockHeading {
			if scanned >= seriesScanBlocks {
				continue
			}
			scanned++
		}
		if m, ok := s.table.Match(b.Content); ok {
			return m, true
		}
	}
	return SeriesMatch{}, false
}

// pageType applies the page type rules in precedence order.
func pageType(blocks []models.ContentBlock, raw string, seriesMatched bool) models.PageType {
	lower := strings.ToLower(raw)
	headings := strings.ToLower(headingText(blocks))

	switch {
	case strings.Contains(headings, "at a glance") || strings.Contains(headings, "at-a-glance") || strings.Contains(raw, "PHASE KEY"):
		return models.PageAtAGlance
	case strings.Contains(lower, "table of contents") || len(tocLineRe.FindAllString(raw, -1)) >= 3 && !seriesMatched:
		return models.PageTableOfContents
	case strings.Contains(headings, "executive summary") || bylineRe.MatchString(raw):
		return models.PageExecutiveSummary
	case seriesMatched:
		return models.PageSeries
	}
	return models.PageOther
}

func headingText(blocks []models.ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.BlockType == models.BlockHeading {
			sb.WriteString(b.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// KeyInsights collects up to five distinct insights: list items first, then the
// block that follows a HIGHLIGHTS heading.
func KeyInsights(blocks []models.ContentBlock) []string {
	insights := []string{}
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if len(s) < 10 || seen[s] || len(insights) >= maxKeyInsights {
			return
		}
		seen[s] = true
		insights = append(insights, s)
	}
	for _, b := range blocks {
		for _, item := range b.Items {
			add(item)
		}
	}
	for i, b := range blocks {
		if b.BlockType == models.BlockHeading && strings.Contains(strings.ToUpper(b.Content), "HIGHLIGHTS") && i+1 < len(blocks) {
			next := blocks[i+1]
			if len(next.Items) == 0 && next.BlockType != models.BlockChart {
				add(next.Content)
			}
		}
	}
	return insights
}
