package analysis

import (
	"sort"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// chartSignal is one interpreted chart with where it came from.
type chartSignal struct {
	Page     int
	Sequence int
	Series   string
	Sector   models.Sector
	Interp   models.Interpretation
}

// sectorInputs is everything the aggregator knows about one sector.
type sectorInputs struct {
	Sector    models.Sector
	Series    []string
	Pages     []int
	Summaries []string
	Insights  []string
	Charts    []chartSignal
}

// collect groups series, pages and interpreted charts by sector. Series without
// a sector are left out.
func collect(doc *models.FlowDocument) map[models.Sector]*sectorInputs {
	out := map[models.Sector]*sectorInputs{}
	get := func(s models.Sector) *sectorInputs {
		in, ok := out[s]
		if !ok {
			in = &sectorInputs{Sector: s}
			out[s] = in
		}
		return in
	}

	names := make([]string, 0, len(doc.SeriesIndex))
	for name := range doc.SeriesIndex {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := doc.SeriesIndex[names[i]], doc.SeriesIndex[names[j]]
		if firstPage(a) != firstPage(b) {
			return firstPage(a) < firstPage(b)
		}
		return names[i] < names[j]
	})

	seenInsight := map[models.Sector]map[string]bool{}
	for _, name := range names {
		entry := doc.SeriesIndex[name]
		if entry.Sector == "" {
			continue
		}
		in := get(entry.Sector)
		in.Series = append(in.Series, name)
		if seenInsight[entry.Sector] == nil {
			seenInsight[entry.Sector] = map[string]bool{}
		}
		for _, insight := range entry.Insights {
			if !seenInsight[entry.Sector][insight] {
				seenInsight[entry.Sector][insight] = true
				in.Insights = append(in.Insights, insight)
			}
		}
	}

	for _, page := range doc.DocumentFlow {
		if page.Sector == "" || page.SeriesName == "" {
			continue
		}
		in, ok := out[page.Sector]
		if !ok {
			continue
		}
		in.Pages = append(in.Pages, page.PageNumber)
		if page.PageSummary != "" {
			in.Summaries = append(in.Summaries, page.PageSummary)
		}
		for _, b := range page.Blocks {
			if b.BlockType == models.BlockChart && b.Interpretation != nil {
				in.Charts = append(in.Charts, chartSignal{
					Page:     page.PageNumber,
					Sequence: b.SequenceNumber,
					Series:   page.SeriesName,
					Sector:   page.Sector,
					Interp:   *b.Interpretation,
				})
			}
		}
	}

	for _, in := range out {
		sort.Ints(in.Pages)
		sort.SliceStable(in.Charts, func(i, j int) bool {
			if in.Charts[i].Page != in.Charts[j].Page {
				return in.Charts[i].Page < in.Charts[j].Page
			}
			return in.Charts[i].Sequence < in.Charts[j].Sequence
		})
	}
	return out
}

func firstPage(e models.SeriesEntry) int {
	if len(e.SourcePages) == 0 {
		return 0
	}
	return e.SourcePages[0]
}

// presentSectors lists sectors that have at least one series, in reporting order.
func presentSectors(inputs map[models.Sector]*sectorInputs) []models.Sector {
	var out []models.Sector
	for _, s := range models.Sectors {
		if in, ok := inputs[s]; ok && len(in.Series) > 0 {
			out = append(out, s)
		}
	}
	return out
}
