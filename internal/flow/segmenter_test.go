package flow

import (
	"testing"

	"github.com/Lllllllleong/reportflow/internal/models"
)

func heading(seq int, text string) models.ContentBlock {
	return models.ContentBlock{BlockType: models.BlockHeading, Content: text, SequenceNumber: seq}
}

func para(seq int, text string) models.ContentBlock {
	return models.ContentBlock{BlockType: models.BlockParagraph, Content: text, SequenceNumber: seq}
}

func TestSeriesTableMatch(t *testing.T) {
	cases := []struct {
		text   string
		name   string
		sector models.Sector
		ok     bool
	}{
		{"US Industrial Production - Annual Data", "US Industrial Production", models.SectorCore, true},
		{"S&P 500 closed higher", "US Stock Prices", models.SectorFinancial, true},
		{"Compared with US ISM PMI, US Industrial Production lags", "US ISM PMI", models.SectorCore, true},
		{"US Public Water and Sewer Construction", "US Public Water & Sewer Construction", models.SectorConstruction, true},
		{"ITR Retail Sales Leading Indicator", "ITR Retail Sales Leading Indicator", models.SectorCore, true},
		{"Nothing relevant here", "", "", false},
	}
	for _, tc := range cases {
		m, ok := DefaultSeriesTable.Match(tc.text)
		if ok != tc.ok || m.Name != tc.name || m.Sector != tc.sector {
			t.Errorf("Match(%q) = %+v, %v", tc.text, m, ok)
		}
	}
}

func TestSegmentEarliestBlockWins(t *testing.T) {
	blocks := []models.ContentBlock{
		heading(1, "US Private Sector Employment"),
		para(2, "Compare with US Industrial Production which is rising."),
	}
	page := NewSegmenter(nil).Segment(12, blocks)
	if page.PageType != models.PageSeries || page.SeriesName != "US Private Sector Employment" || page.Sector != models.SectorCore {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestSegmentPageTypes(t *testing.T) {
	cases := []struct {
		name   string
		blocks []models.ContentBlock
		want   models.PageType
	}{
		{"at a glance", []models.ContentBlock{heading(1, "Economic At-a-Glance"), para(2, "US Industrial Production B")}, models.PageAtAGlance},
		{"phase key", []models.ContentBlock{para(1, "PHASE KEY A Recovery B Accelerating Growth")}, models.PageAtAGlance},
		{"toc heading", []models.ContentBlock{heading(1, "Table of Contents")}, models.PageTableOfContents},
		{"toc lines", []models.ContentBlock{para(1, "Executive Summary ..... 3\nCore Economy ..... 5\nConstruction ..... 21")}, models.PageTableOfContents},
		{"byline", []models.ContentBlock{para(1, "By Alan Beaulieu\nThe economy is slowing into 2025.")}, models.PageExecutiveSummary},
		{"series", []models.ContentBlock{heading(1, "US Single-Unit Housing Starts")}, models.PageSeries},
		{"other", []models.ContentBlock{para(1, "About ITR Economics and its forecasting record.")}, models.PageOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := NewSegmenter(nil).Segment(1, tc.blocks)
			if page.PageType != tc.want {
				t.Fatalf("got %s, want %s", page.PageType, tc.want)
			}
			if tc.want != models.PageSeries && page.SeriesName != "" {
				t.Fatalf("series name %q kept on %s page", page.SeriesName, page.PageType)
			}
		})
	}
}

func TestSegmentEmptyPage(t *testing.T) {
	page := NewSegmenter(nil).Segment(9, nil)
	if page.PageNumber != 9 || page.PageType != models.PageOther || page.Blocks == nil {
		t.Fatalf("unexpected empty page %+v", page)
	}
	if len(page.QualityNotes) != 1 {
		t.Fatalf("expected degraded note, got %v", page.QualityNotes)
	}
}

func TestKeyInsights(t *testing.T) {
	blocks := []models.ContentBlock{
		heading(1, "HIGHLIGHTS"),
		para(2, "Production will rise through 2025."),
		{BlockType: models.BlockParagraph, SequenceNumber: 3, Items: []string{"Orders are accelerating.", "Orders are accelerating.", "Inventories remain lean."}},
	}
	got := KeyInsights(blocks)
	want := []string{"Orders are accelerating.", "Inventories remain lean.", "Production will rise through 2025."}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
