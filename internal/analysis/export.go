package analysis

import "github.com/Lllllllleong/reportflow/internal/models"

// Export is the analysis of a report in the shape handed to downstream consumers.
type Export struct {
	ReportID         string                                  `json:"report_id"`
	PDFFilename      string                                  `json:"pdf_filename"`
	ReportPeriod     string                                  `json:"report_period,omitempty"`
	OverallAnalysis  *models.OverallAnalysis                 `json:"overall_analysis"`
	SectorAnalyses   map[models.Sector]models.SectorAnalysis `json:"sector_analyses"`
	AnalysisMetadata *models.AnalysisMetadata                `json:"analysis_metadata"`
}

// ExportAnalysis copies the analysis fields of doc into the export shape.
func ExportAnalysis(doc *models.FlowDocument) Export {
	sectors := doc.SectorAnalyses
	if sectors == nil {
		sectors = map[models.Sector]models.SectorAnalysis{}
	}
	return Export{
		ReportID:         doc.ReportID,
		PDFFilename:      doc.PDFFilename,
		ReportPeriod:     doc.ReportPeriod,
		OverallAnalysis:  doc.OverallAnalysis,
		SectorAnalyses:   sectors,
		AnalysisMetadata: doc.AnalysisMetadata,
	}
}

// Apply sets the analysis fields of doc from a generation result.
func (res *Result) Apply(doc *models.FlowDocument) {
	doc.OverallAnalysis = res.Overall
	doc.SectorAnalyses = res.Sectors
	doc.AnalysisMetadata = res.Metadata
}
