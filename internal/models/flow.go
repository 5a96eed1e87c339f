package models

import (
	"errors"
	"strings"
	"time"
)

// BlockType is the semantic type assigned to a content unit of a page.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockText      BlockType = "text"
	BlockChart     BlockType = "chart"
	BlockTable     BlockType = "table"
)

// PageType is the structural role of a page inside a report.
type PageType string

const (
	PageAtAGlance        PageType = "at_a_glance"
	PageTableOfContents  PageType = "table_of_contents"
	PageExecutiveSummary PageType = "executive_summary"
	PageSeries           PageType = "series"
	PageOther            PageType = "other"
)

// Sector is one of the four economic sectors a series belongs to.
type Sector string

const (
	SectorCore          Sector = "core"
	SectorFinancial     Sector = "financial"
	SectorConstruction  Sector = "construction"
	SectorManufacturing Sector = "manufacturing"
)

// Sectors lists every sector in reporting order.
var Sectors = []Sector{SectorCore, SectorFinancial, SectorConstruction, SectorManufacturing}

// ParseSector reports whether s names a known sector.
func ParseSector(s string) (Sector, bool) {
	for _, sec := range Sectors {
		if string(sec) == s {
			return sec, true
		}
	}
	return "", false
}

// ErrInterpretationAttached is returned when a chart block already carries an interpretation.
var ErrInterpretationAttached = errors.New("interpretation already attached to block")

// Position is the bounding box of a block in top-down page coordinates.
type Position struct {
	X0 float64 `firestore:"x0" json:"x0"`
	Y0 float64 `firestore:"y0" json:"y0"`
	X1 float64 `firestore:"x1" json:"x1"`
	Y1 float64 `firestore:"y1" json:"y1"`
}

// BlockMetadata carries the typographic hints the classifier used.
type BlockMetadata struct {
	FontSize       float64 `firestore:"font_size,omitempty" json:"font_size,omitempty"`
	Bold           bool    `firestore:"bold,omitempty" json:"bold,omitempty"`
	SectionHeading bool    `firestore:"section_heading,omitempty" json:"section_heading,omitempty"`
	Unpositioned   bool    `firestore:"unpositioned,omitempty" json:"unpositioned,omitempty"`
}

// ChartContent describes a chart image found on the page.
type ChartContent struct {
	ChartType string `firestore:"chart_type" json:"chart_type"`
	ImageName string `firestore:"image_name,omitempty" json:"image_name,omitempty"`
	ImageURI  string `firestore:"image_uri,omitempty" json:"image_uri,omitempty"`
	Width     int    `firestore:"width" json:"width"`
	Height    int    `firestore:"height" json:"height"`
	// Image holds the raw bytes while the page is being built; it is never persisted.
	Image    []byte `firestore:"-" json:"-"`
	MIMEType string `firestore:"mime_type,omitempty" json:"mime_type,omitempty"`
}

// TableRow is one row of a table. Rows wrap their cells because Firestore
// cannot store nested arrays.
type TableRow struct {
	Cells []string `firestore:"cells" json:"cells"`
}

// TableContent is a table as rows of cells.
type TableContent struct {
	Rows []TableRow `firestore:"rows" json:"rows"`
}

// ContentBlock is a single typed unit of a page, in reading order.
type ContentBlock struct {
	BlockType      BlockType       `firestore:"block_type" json:"block_type"`
	Content        string          `firestore:"content" json:"content"`
	Items          []string        `firestore:"items,omitempty" json:"items,omitempty"`
	Chart          *ChartContent   `firestore:"chart,omitempty" json:"chart,omitempty"`
	Table          *TableContent   `firestore:"table,omitempty" json:"table,omitempty"`
	SequenceNumber int             `firestore:"sequence_number" json:"sequence_number"`
	Position       *Position       `firestore:"position,omitempty" json:"position,omitempty"`
	Metadata       BlockMetadata   `firestore:"metadata" json:"metadata"`
	Interpretation *Interpretation `firestore:"interpretation,omitempty" json:"interpretation,omitempty"`
}

// AttachInterpretation sets the block's interpretation. A block is interpreted at most once.
func (b *ContentBlock) AttachInterpretation(in Interpretation) error {
	if b.Interpretation != nil {
		return ErrInterpretationAttached
	}
	b.Interpretation = &in
	return nil
}

// SavedAnalysis is user-authored analysis pinned to a page. It survives re-extraction.
type SavedAnalysis struct {
	ID        string    `firestore:"id" json:"id"`
	Title     string    `firestore:"title" json:"title"`
	Content   string    `firestore:"content" json:"content"`
	Author    string    `firestore:"author,omitempty" json:"author,omitempty"`
	CreatedAt time.Time `firestore:"created_at" json:"created_at"`
}

// PageFlow is the reconstructed, ordered content of one page.
type PageFlow struct {
	PageNumber     int             `firestore:"page_number" json:"page_number"`
	SeriesName     string          `firestore:"series_name,omitempty" json:"series_name,omitempty"`
	Sector         Sector          `firestore:"sector,omitempty" json:"sector,omitempty"`
	PageType       PageType        `firestore:"page_type" json:"page_type"`
	Blocks         []ContentBlock  `firestore:"blocks" json:"blocks"`
	PageSummary    string          `firestore:"page_summary,omitempty" json:"page_summary,omitempty"`
	KeyInsights    []string        `firestore:"key_insights" json:"key_insights"`
	CustomAnalysis []SavedAnalysis `firestore:"custom_analysis" json:"custom_analysis"`
	// RawText is not stored in Firestore; Text rebuilds it from the blocks.
	RawText        string          `firestore:"-" json:"raw_text,omitempty"`
	QualityNotes   []string        `firestore:"quality_notes,omitempty" json:"quality_notes,omitempty"`
}

// Text returns the page text, rebuilt from the blocks when RawText was not loaded.
func (p *PageFlow) Text() string {
	if p.RawText != "" {
		return p.RawText
	}
	return BlocksText(p.Blocks)
}

// BlocksText joins the text content of blocks, skipping charts.
func BlocksText(blocks []ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Content != "" && b.BlockType != BlockChart {
			parts = append(parts, b.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Charts returns pointers to the page's chart blocks in sequence order.
func (p *PageFlow) Charts() []*ContentBlock {
	var charts []*ContentBlock
	for i := range p.Blocks {
		if p.Blocks[i].BlockType == BlockChart {
			charts = append(charts, &p.Blocks[i])
		}
	}
	return charts
}

// SeriesEntry aggregates every page that reports on the same series.
type SeriesEntry struct {
	Sector      Sector   `firestore:"sector,omitempty" json:"sector,omitempty"`
	Summary     string   `firestore:"summary" json:"summary"`
	Insights    []string `firestore:"insights" json:"insights"`
	SourcePages []int    `firestore:"source_pages" json:"source_pages"`
}

// SourceStamp traces a flow back to the file and extraction run that produced it.
type SourceStamp struct {
	PDFFilename         string    `firestore:"pdf_filename" json:"pdf_filename"`
	ReportPeriod        string    `firestore:"report_period,omitempty" json:"report_period,omitempty"`
	ExtractionTimestamp time.Time `firestore:"extraction_timestamp" json:"extraction_timestamp"`
	SourceHash          string    `firestore:"source_hash,omitempty" json:"source_hash,omitempty"`
}

// DocumentMetadata holds document-level totals.
type DocumentMetadata struct {
	TotalPages        int      `firestore:"total_pages" json:"total_pages"`
	SeriesPagesCount  int      `firestore:"series_pages_count" json:"series_pages_count"`
	TotalCharts       int      `firestore:"total_charts" json:"total_charts"`
	InterpretedCharts int      `firestore:"interpreted_charts" json:"interpreted_charts"`
	SectorsCovered    []Sector `firestore:"sectors_covered" json:"sectors_covered"`
}

// FlowDocument is the persisted unit keyed by ReportID.
type FlowDocument struct {
	ReportID            string                 `firestore:"report_id" json:"report_id"`
	PDFFilename         string                 `firestore:"pdf_filename" json:"pdf_filename"`
	ReportPeriod        string                 `firestore:"report_period,omitempty" json:"report_period,omitempty"`
	ExtractionTimestamp time.Time              `firestore:"extraction_timestamp" json:"extraction_timestamp"`
	Source              SourceStamp            `firestore:"source" json:"source"`
	Metadata            DocumentMetadata       `firestore:"metadata" json:"metadata"`
	DocumentFlow        []PageFlow             `firestore:"document_flow" json:"document_flow"`
	SeriesIndex         map[string]SeriesEntry `firestore:"series_index" json:"series_index"`
	OverallAnalysis     *OverallAnalysis       `firestore:"overall_analysis,omitempty" json:"overall_analysis,omitempty"`
	// Sector analyses are stored apart from the flow, keyed by (report_id, sector).
	SectorAnalyses   map[Sector]SectorAnalysis `firestore:"-" json:"sector_analyses,omitempty"`
	AnalysisMetadata *AnalysisMetadata         `firestore:"analysis_metadata,omitempty" json:"analysis_metadata,omitempty"`
	// OrphanedCustomAnalysis keeps user analysis whose page vanished on re-extraction.
	OrphanedCustomAnalysis []SavedAnalysis `firestore:"orphaned_custom_analysis,omitempty" json:"orphaned_custom_analysis,omitempty"`
}

// Page returns the page with the given number, or nil.
func (d *FlowDocument) Page(number int) *PageFlow {
	for i := range d.DocumentFlow {
		if d.DocumentFlow[i].PageNumber == number {
			return &d.DocumentFlow[i]
		}
	}
	return nil
}

// AnalysisVersion returns the stored analysis version, or 0 when none exists.
func (d *FlowDocument) AnalysisVersion() int {
	if d == nil || d.AnalysisMetadata == nil {
		return 0
	}
	return d.AnalysisMetadata.Version
}
