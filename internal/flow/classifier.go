package flow

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Lllllllleong/reportflow/internal/models"
	"github.com/Lllllllleong/reportflow/internal/pdfsource"
)

// ClassifierConfig holds the thresholds used to type content units.
type ClassifierConfig struct {
	// MinImageSize is the smallest width or height, in pixels, of an image kept as a chart.
	MinImageSize int
	// HeadingMaxLength is the longest text that can be a heading.
	HeadingMaxLength int
	// HeadingFontSize is the size above which short bold text is a heading.
	HeadingFontSize float64
	// OverviewAspectRatio is the width/height ratio from which a chart is an overview chart.
	OverviewAspectRatio float64
}

// DefaultClassifierConfig returns the thresholds tuned for ITR trends reports.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MinImageSize:        50,
		HeadingMaxLength:    100,
		HeadingFontSize:     12,
		OverviewAspectRatio: 2.2,
	}
}

// Classifier assigns a block type to every content unit of a page and orders them.
type Classifier struct {
	cfg ClassifierConfig
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

var (
	sectionKeywords = []string{"OVERVIEW", "DATA TREND", "HIGHLIGHTS", "FORECAST", "MANAGEMENT OBJECTIVE", "AT-A-GLANCE", "EXECUTIVE SUMMARY"}
	bulletLineRe    = regexp.MustCompile(`^\s*(?:[•▪‣◦\-*–]|\d{1,2}[.)])\s+`)
	cellSplitRe     = regexp.MustCompile(`\t+| {2,}`)
	forecastRowRe   = regexp.MustCompile(`^\s*20\d{2}\s*:`)
	forecastRe      = regexp.MustCompile(`20\d{2}:\s*\n?\s*12/12`)
	sentenceEndRe   = regexp.MustCompile(`[.!?](?:\s|$)`)
	chartTypeOrder  = []string{"rate_of_change", "data_trend", "overview_chart"}
)

// Classify orders the units of a page and returns one block per unit, with list
// items folded into paragraphs. Notes describe degraded input.
func (c *Classifier) Classify(page pdfsource.Page) ([]models.ContentBlock, []string) {
	var notes []string
	ordered, unplaced := ReadingOrder(page.Units, page.Width)
	if unplaced > 0 {
		notes = append(notes, fmt.Sprintf("%d units without usable position appended at end of page", unplaced))
	}
	median := medianFontSize(page.Units)

	var blocks []models.ContentBlock
	chartIndex := 0
	for _, u := range ordered {
		var b models.ContentBlock
		if u.Box.Valid() {
			b.Position = &models.Position{X0: u.Box.X0, Y0: u.Box.Y0, X1: u.Box.X1, Y1: u.Box.Y1}
		} else {
			b.Metadata.Unpositioned = true
		}

		if u.Kind == pdfsource.UnitImage {
			if u.Image == nil || u.Image.Width < c.cfg.MinImageSize || u.Image.Height < c.cfg.MinImageSize {
				continue
			}
			b.BlockType = models.BlockChart
			b.Chart = &models.ChartContent{
				ChartType: c.chartType(u.Image, chartIndex),
				ImageName: u.Image.Name,
				Width:     u.Image.Width,
				Height:    u.Image.Height,
				Image:     u.Image.Data,
				MIMEType:  u.Image.MIMEType,
			}
			chartIndex++
			blocks = append(blocks, b)
			continue
		}

		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		b.Content = text
		b.Metadata.FontSize = u.FontSize
		b.Metadata.Bold = u.Bold

		if items, ok := listItems(text); ok {
			if n := len(blocks); n > 0 && blocks[n-1].BlockType == models.BlockParagraph && len(blocks[n-1].Items) > 0 {
				prev := &blocks[n-1]
				prev.Items = append(prev.Items, items...)
				prev.Content = strings.Join(prev.Items, "\n")
				continue
			}
			b.BlockType = models.BlockParagraph
			b.Items = items
			b.Content = strings.Join(items, "\n")
			blocks = append(blocks, b)
			continue
		}

		b.BlockType, b.Metadata.SectionHeading = c.classifyText(text, u.FontSize, u.Bold, median)
		if b.BlockType == models.BlockTable {
			b.Table = parseTable(text)
		}
		blocks = append(blocks, b)
	}

	for i := range blocks {
		blocks[i].SequenceNumber = i + 1
	}
	return blocks, notes
}

func (c *Classifier) classifyText(text string, size float64, bold bool, median float64) (models.BlockType, bool) {
	short := len(text) < c.cfg.HeadingMaxLength && !strings.Contains(text, "\n")
	if short && bold {
		if isSectionHeading(text) {
			return models.BlockHeading, true
		}
		if size > c.cfg.HeadingFontSize {
			return models.BlockHeading, false
		}
	}
	if short && median > 0 && size >= median*1.3 {
		return models.BlockHeading, false
	}
	if isTable(text) {
		return models.BlockTable, false
	}
	if len(text) >= 80 || len(sentenceEndRe.FindAllStringIndex(text, -1)) >= 2 {
		return models.BlockParagraph, false
	}
	return models.BlockText, false
}

func (c *Classifier) chartType(img *pdfsource.Image, index int) string {
	if img.Height > 0 && float64(img.Width)/float64(img.Height) >= c.cfg.OverviewAspectRatio {
		return "overview_chart"
	}
	if index < len(chartTypeOrder) {
		return chartTypeOrder[index]
	}
	return fmt.Sprintf("chart_%d", index+1)
}

func isSectionHeading(text string) bool {
	upper := strings.ToUpper(text)
	for _, kw := range sectionKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// listItems splits bulleted text into items. Lines without a marker continue the previous item.
func listItems(text string) ([]string, bool) {
	lines := strings.Split(text, "\n")
	if !bulletLineRe.MatchString(lines[0]) {
		return nil, false
	}
	var items []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if loc := bulletLineRe.FindStringIndex(line); loc != nil {
			items = append(items, strings.TrimSpace(line[loc[1]:]))
			continue
		}
		items[len(items)-1] += " " + line
	}
	return items, len(items) > 0
}

func isTable(text string) bool {
	if forecastRe.MatchString(text) {
		return true
	}
	lines := nonEmptyLines(text)
	if len(lines) < 2 {
		return false
	}
	cells, forecast := 0, 0
	for _, line := range lines {
		if len(cellSplitRe.Split(strings.TrimSpace(line), -1)) >= 3 {
			cells++
		}
		if forecastRowRe.MatchString(line) {
			forecast++
		}
	}
	return forecast >= 2 || cells >= 2 && cells*2 >= len(lines)
}

func parseTable(text string) *models.TableContent {
	t := &models.TableContent{}
	for _, line := range nonEmptyLines(text) {
		line = strings.TrimSpace(line)
		var cells []string
		if forecastRowRe.MatchString(line) && !cellSplitRe.MatchString(line) {
			year, value, _ := strings.Cut(line, ":")
			cells = []string{strings.TrimSpace(year), strings.TrimSpace(value)}
		} else {
			cells = cellSplitRe.Split(line, -1)
		}
		t.Rows = append(t.Rows, models.TableRow{Cells: cells})
	}
	return t
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func medianFontSize(units []pdfsource.Unit) float64 {
	var sizes []float64
	for _, u := range units {
		if u.Kind == pdfsource.UnitText && u.FontSize > 0 {
			sizes = append(sizes, u.FontSize)
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// ReadingOrder sorts units top-to-bottom and, inside a two-column band, reads the
// left column before the right one. Units that span the gutter separate bands.
// Units without a valid box keep their relative order after all placed units; the
// second return value counts them.
func ReadingOrder(units []pdfsource.Unit, pageWidth float64) ([]pdfsource.Unit, int) {
	var placed, unplaced []pdfsource.Unit
	for _, u := range units {
		if u.Box.Valid() {
			placed = append(placed, u)
		} else {
			unplaced = append(unplaced, u)
		}
	}
	if pageWidth <= 0 {
		for _, u := range placed {
			if u.Box.X1 > pageWidth {
				pageWidth = u.Box.X1
			}
		}
	}
	sort.SliceStable(placed, func(i, j int) bool {
		a, b := placed[i].Box, placed[j].Box
		if a.Y0 != b.Y0 {
			return a.Y0 < b.Y0
		}
		return a.X0 < b.X0
	})

	mid := pageWidth / 2
	tol := pageWidth * 0.02
	ordered := make([]pdfsource.Unit, 0, len(units))
	var left, right []pdfsource.Unit
	flush := func() {
		ordered = append(ordered, left...)
		ordered = append(ordered, right...)
		left, right = left[:0], right[:0]
	}
	for _, u := range placed {
		switch {
		case u.Box.X0 < mid-tol && u.Box.X1 > mid+tol:
			flush()
			ordered = append(ordered, u)
		case u.Box.X1 <= mid+tol:
			left = append(left, u)
		default:
			right = append(right, u)
		}
	}
	flush()
	return append(ordered, unplaced...), len(unplaced)
}
