package flow

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Lllllllleong/reportflow/internal/models"
)

func seriesPage(number int, name string, sector models.Sector, insights ...string) models.PageFlow {
	return models.PageFlow{
		PageNumber:  number,
		SeriesName:  name,
		Sector:      sector,
		PageType:    models.PageSeries,
		Blocks:      []models.ContentBlock{heading(1, name)},
		KeyInsights: insights,
		PageSummary: name + " summary for page",
	}
}

func TestReportID(t *testing.T) {
	cases := map[string]string{
		"/tmp/ITR Trends Report  March 2025.pdf": "itr_trends_report_march_2025",
		"report.PDF":                             "report",
		"Already_lower.pdf":                      "already_lower",
	}
	for in, want := range cases {
		if got := ReportID(in); got != want {
			t.Errorf("ReportID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAssembleMergesSeriesAcrossPages(t *testing.T) {
	pages := []models.PageFlow{
		seriesPage(47, "US Industrial Production", models.SectorCore, "Phase B expected", "Utilization rising"),
		{PageNumber: 1, PageType: models.PageOther, RawText: "Trends Report March 2025"},
		seriesPage(3, "US Industrial Production", models.SectorCore, "Phase B expected", "Output up 2%"),
	}
	doc, err := Assemble(pages, SourceMeta{PDFFilename: "Trends Report.pdf", ExtractedAt: time.Unix(0, 0)})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(doc.SeriesIndex) != 1 {
		t.Fatalf("expected one series entry, got %d", len(doc.SeriesIndex))
	}
	entry := doc.SeriesIndex["US Industrial Production"]
	if !reflect.DeepEqual(entry.SourcePages, []int{3, 47}) {
		t.Fatalf("unexpected source pages %v", entry.SourcePages)
	}
	wantInsights := []string{"Phase B expected", "Output up 2%", "Utilization rising"}
	if !reflect.DeepEqual(entry.Insights, wantInsights) {
		t.Fatalf("unexpected insights %v", entry.Insights)
	}
	if doc.DocumentFlow[0].PageNumber != 1 || doc.DocumentFlow[2].PageNumber != 47 {
		t.Fatalf("pages not ordered: %d, %d", doc.DocumentFlow[0].PageNumber, doc.DocumentFlow[2].PageNumber)
	}
	if doc.ReportID != "trends_report" || doc.ReportPeriod != "March 2025" {
		t.Fatalf("unexpected id %q period %q", doc.ReportID, doc.ReportPeriod)
	}
	if doc.Metadata.SeriesPagesCount != 2 || !reflect.DeepEqual(doc.Metadata.SectorsCovered, []models.Sector{models.SectorCore}) {
		t.Fatalf("unexpected metadata %+v", doc.Metadata)
	}
}

func TestAssembleWithoutSeries(t *testing.T) {
	doc, err := Assemble([]models.PageFlow{{PageNumber: 1, PageType: models.PageOther}}, SourceMeta{PDFFilename: "x.pdf"})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if doc.SeriesIndex == nil || len(doc.SeriesIndex) != 0 {
		t.Fatalf("expected empty, non-nil series index, got %v", doc.SeriesIndex)
	}
}

func TestAssembleRejectsInvalidPages(t *testing.T) {
	_, err := Assemble([]models.PageFlow{{PageNumber: 2}, {PageNumber: 2}}, SourceMeta{PDFFilename: "x.pdf"})
	if !errors.Is(err, ErrAssembly) {
		t.Fatalf("expected ErrAssembly for duplicate pages, got %v", err)
	}
	bad := models.PageFlow{PageNumber: 1, Blocks: []models.ContentBlock{heading(2, "a"), heading(2, "b")}}
	if _, err := Assemble([]models.PageFlow{bad}, SourceMeta{PDFFilename: "x.pdf"}); !errors.Is(err, ErrAssembly) {
		t.Fatalf("expected ErrAssembly for sequence, got %v", err)
	}
}
