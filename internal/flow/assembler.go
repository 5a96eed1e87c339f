package flow

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// ErrAssembly is returned when pages cannot form a valid document.
var ErrAssembly = errors.New("invalid document assembly")

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	reportPeriodRe  = regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+(20\d{2}|19\d{2})\b`)
	periodScanPages = 3
)

// ReportID derives the stable document key from a file name: the base name without
// extension, lower-cased, with whitespace runs replaced by underscores.
func ReportID(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(stem)), "_")
}

// DetectReportPeriod returns the first "Month YYYY" found on the first pages.
func DetectReportPeriod(pages []models.PageFlow) string {
	for i, p := range pages {
		if i >= periodScanPages {
			break
		}
		if m := reportPeriodRe.FindString(p.Text()); m != "" {
			return m
		}
	}
	return ""
}

// SourceMeta is what the assembler stamps onto a document for traceability.
type SourceMeta struct {
	PDFFilename string
	SourceHash  string
	ExtractedAt time.Time
}

// SeriesAccumulator folds series pages into the series index.
type SeriesAccumulator struct {
	entries map[string]*models.SeriesEntry
	seen    map[string]map[string]bool
	pages   map[string]map[int]bool
	sums    map[string]map[string]bool
}

func NewSeriesAccumulator() *SeriesAccumulator {
	return &SeriesAccumulator{
		entries: map[string]*models.SeriesEntry{},
		seen:    map[string]map[string]bool{},
		pages:   map[string]map[int]bool{},
		sums:    map[string]map[string]bool{},
	}
}

// Add merges a page into the entry of its series. Pages without a series are ignored.
func (a *SeriesAccumulator) Add(page models.PageFlow) {
	name := page.SeriesName
	if name == "" {
		return
	}
	e, ok := a.entries[name]
	if !ok {
		e = &models.SeriesEntry{Sector: page.Sector, Insights: []string{}, SourcePages: []int{}}
		a.entries[name] = e
		a.seen[name] = map[string]bool{}
		a.pages[name] = map[int]bool{}
		a.sums[name] = map[string]bool{}
	}
	if e.Sector == "" {
		e.Sector = page.Sector
	}
	for _, in := range page.KeyInsights {
		if !a.seen[name][in] {
			a.seen[name][in] = true
			e.Insights = append(e.Insights, in)
		}
	}
	if !a.pages[name][page.PageNumber] {
		a.pages[name][page.PageNumber] = true
		e.SourcePages = append(e.SourcePages, page.PageNumber)
		sort.Ints(e.SourcePages)
	}
	if s := strings.TrimSpace(page.PageSummary); s != "" && !a.sums[name][s] {
		a.sums[name][s] = true
		if e.Summary == "" {
			e.Summary = s
		} else {
			e.Summary += "\n\n" + s
		}
	}
}

// Index returns the folded series index.
func (a *SeriesAccumulator) Index() map[string]models.SeriesEntry {
	out := make(map[string]models.SeriesEntry, len(a.entries))
	for name, e := range a.entries {
		out[name] = *e
	}
	return out
}

// Assemble orders pages, verifies block ordering, builds the series index and
// stamps document metadata.
func Assemble(pages []models.PageFlow, meta SourceMeta) (*models.FlowDocument, error) {
	ordered := make([]models.PageFlow, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PageNumber < ordered[j].PageNumber })

	for i, p := range ordered {
		if p.PageNumber < 1 {
			return nil, fmt.Errorf("%w: page number %d", ErrAssembly, p.PageNumber)
		}
		if i > 0 && ordered[i-1].PageNumber == p.PageNumber {
			return nil, fmt.Errorf("%w: duplicate page %d", ErrAssembly, p.PageNumber)
		}
		for j := 1; j < len(p.Blocks); j++ {
			if p.Blocks[j].SequenceNumber <= p.Blocks[j-1].SequenceNumber {
				return nil, fmt.Errorf("%w: page %d block sequence not increasing at %d", ErrAssembly, p.PageNumber, p.Blocks[j].SequenceNumber)
			}
		}
	}

	acc := NewSeriesAccumulator()
	md := models.DocumentMetadata{TotalPages: len(ordered), SectorsCovered: []models.Sector{}}
	covered := map[models.Sector]bool{}
	for _, p := range ordered {
		acc.Add(p)
		if p.PageType == models.PageSeries {
			md.SeriesPagesCount++
		}
		if p.Sector != "" {
			covered[p.Sector] = true
		}
		for _, b := range p.Blocks {
			if b.BlockType == models.BlockChart {
				md.TotalCharts++
				if b.Interpretation != nil {
					md.InterpretedCharts++
				}
			}
		}
	}
	for _, s := range models.Sectors {
		if covered[s] {
			md.SectorsCovered = append(md.SectorsCovered, s)
		}
	}

	period := DetectReportPeriod(ordered)
	doc := &models.FlowDocument{
		ReportID:            ReportID(meta.PDFFilename),
		PDFFilename:         filepath.Base(meta.PDFFilename),
		ReportPeriod:        period,
		ExtractionTimestamp: meta.ExtractedAt,
		Source: models.SourceStamp{
			PDFFilename:         filepath.Base(meta.PDFFilename),
			ReportPeriod:        period,
			ExtractionTimestamp: meta.ExtractedAt,
			SourceHash:          meta.SourceHash,
		},
		Metadata:     md,
		DocumentFlow: ordered,
		SeriesIndex:  acc.Index(),
	}
	return doc, nil
}
