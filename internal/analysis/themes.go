package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/models"
)

type rawTheme struct {
	ThemeName            string   `json:"theme_name"`
	SignificanceScore    float64  `json:"significance_score"`
	Frequency            int      `json:"frequency"`
	Description          string   `json:"description"`
	AffectedSectors      []string `json:"affected_sectors"`
	BusinessImplications string   `json:"business_implications"`
}

// parseThemes accepts a bare array or an object wrapping it under "themes".
func parseThemes(text string) ([]rawTheme, error) {
	var list []rawTheme
	if err := llm.DecodeJSON(text, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Themes []rawTheme `json:"themes"`
	}
	if err := llm.DecodeJSON(text, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Themes == nil {
		return nil, fmt.Errorf("no themes array in response")
	}
	return wrapped.Themes, nil
}

// themes returns 5-10 themes. The second result reports whether the structural
// fallback set had to be used.
func (r *run) themes(ctx context.Context) ([]models.Theme, bool) {
	text, ok := r.generate(ctx, llm.TaskThemes, llm.FormatJSON, themesPrompt(r.inputs, r.doc))
	if !ok {
		return r.structuralThemes(), true
	}
	raw, err := parseThemes(text)
	if err != nil {
		r.llmFailures++
		r.note("themes response could not be parsed: %v", err)
		return r.structuralThemes(), true
	}

	themes := r.cleanThemes(raw)
	if len(themes) > models.ThemesMax {
		sort.SliceStable(themes, func(i, j int) bool {
			return themes[i].SignificanceScore > themes[j].SignificanceScore
		})
		r.note("%d themes returned, kept the %d most significant", len(themes), models.ThemesMax)
		themes = themes[:models.ThemesMax]
	}
	if len(themes) < models.ThemesMin {
		r.note("data quality: %d usable themes returned, fewer than %d; structural themes used", len(themes), models.ThemesMin)
		return r.structuralThemes(), true
	}
	return themes, false
}

// cleanThemes drops unnamed and duplicate themes, clamps scores and computes
// source pages from the affected sectors.
func (r *run) cleanThemes(raw []rawTheme) []models.Theme {
	seen := map[string]bool{}
	var out []models.Theme
	for _, rt := range raw {
		name := strings.TrimSpace(rt.ThemeName)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true

		var sectors []models.Sector
		for _, s := range rt.AffectedSectors {
			if sec, ok := models.ParseSector(strings.ToLower(strings.TrimSpace(s))); ok && !containsSector(sectors, sec) {
				sectors = append(sectors, sec)
			}
		}
		pages := r.themePages(name, sectors)

		sig := rt.SignificanceScore
		if math.IsNaN(sig) || sig < 1 || sig > 10 {
			r.note("theme %q significance %.1f clamped to [1,10]", name, sig)
			if math.IsNaN(sig) {
				sig = 1
			}
			sig = math.Max(1, math.Min(10, sig))
		}
		freq := rt.Frequency
		if freq < 1 {
			freq = len(pages)
		}
		if freq < 1 {
			freq = 1
		}
		out = append(out, models.Theme{
			ThemeName:            truncateText(name, 120),
			SignificanceScore:    sig,
			Frequency:            freq,
			Description:          strings.TrimSpace(rt.Description),
			AffectedSectors:      nonNilSectors(sectors),
			SourcePages:          pages,
			BusinessImplications: strings.TrimSpace(rt.BusinessImplications),
		})
	}
	return out
}

// themePages is the union of the affected sectors' pages, or the pages whose
// summary mentions the theme when no sector applies.
func (r *run) themePages(name string, sectors []models.Sector) []int {
	set := map[int]bool{}
	for _, s := range sectors {
		if in, ok := r.inputs[s]; ok {
			for _, p := range in.Pages {
				set[p] = true
			}
		}
	}
	if len(set) == 0 {
		needle := strings.ToLower(name)
		for _, p := range r.doc.DocumentFlow {
			if strings.Contains(strings.ToLower(p.PageSummary), needle) {
				set[p.PageNumber] = true
			}
		}
	}
	pages := make([]int, 0, len(set))
	for p := range set {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// structuralThemes derives between five and nine themes from counts alone. Their
// descriptions carry the fallback prefix.
func (r *run) structuralThemes() []models.Theme {
	var themes []models.Theme
	var growth, decline []models.Sector
	for _, s := range presentSectors(r.inputs) {
		in := r.inputs[s]
		ps := summarizePhases(in.Charts)
		switch ps.direction() {
		case 1:
			growth = append(growth, s)
		case -1:
			decline = append(decline, s)
		}
		themes = append(themes, models.Theme{
			ThemeName:         fmt.Sprintf("%s sector %s", title(string(s)), ps.Dominant),
			SignificanceScore: math.Max(1, math.Min(10, float64(len(in.Series))+2)),
			Frequency:         max(1, len(in.Pages)),
			Description: models.FallbackPrefix + fmt.Sprintf("%d %s series with phase mix A:%d B:%d C:%d D:%d.",
				len(in.Series), s, ps.Distribution[models.PhaseA], ps.Distribution[models.PhaseB], ps.Distribution[models.PhaseC], ps.Distribution[models.PhaseD]),
			AffectedSectors:      []models.Sector{s},
			SourcePages:          append([]int{}, in.Pages...),
			BusinessImplications: models.FallbackPrefix + fmt.Sprintf("Plan %s exposure around a %s trend.", s, ps.Dominant),
		})
	}
	present := presentSectors(r.inputs)

	generic := []models.Theme{
		{
			ThemeName:            "Business cycle growth",
			Description:          models.FallbackPrefix + fmt.Sprintf("Sectors leaning to growth phases: %s.", sectorList(growth)),
			AffectedSectors:      nonNilSectors(growth),
			BusinessImplications: models.FallbackPrefix + "Growth sectors support expansion and inventory build.",
		},
		{
			ThemeName:            "Business cycle decline",
			Description:          models.FallbackPrefix + fmt.Sprintf("Sectors leaning to decline phases: %s.", sectorList(decline)),
			AffectedSectors:      nonNilSectors(decline),
			BusinessImplications: models.FallbackPrefix + "Declining sectors call for cost discipline and cash preservation.",
		},
		{
			ThemeName:            "Cross-sector correlations",
			Description:          models.FallbackPrefix + "Financial conditions lead core activity, which in turn leads manufacturing.",
			AffectedSectors:      nonNilSectors(present),
			BusinessImplications: models.FallbackPrefix + "Watch leading sectors for early signs of turning points.",
		},
		{
			ThemeName:            "Leading indicator signals",
			Description:          models.FallbackPrefix + "Leading indicators anticipate the direction of the broader economy by several months.",
			AffectedSectors:      nonNilSectors(present),
			BusinessImplications: models.FallbackPrefix + "Use leading indicators to time capital spending.",
		},
		{
			ThemeName:            "Report coverage",
			Description:          models.FallbackPrefix + fmt.Sprintf("%d pages covering %d series across %d sectors.", len(r.doc.DocumentFlow), len(r.doc.SeriesIndex), len(present)),
			AffectedSectors:      nonNilSectors(present),
			BusinessImplications: models.FallbackPrefix + "Review the underlying series pages for detail.",
		},
	}
	for i := range generic {
		generic[i].SignificanceScore = 5
		generic[i].SourcePages = pagesOf(r.inputs, generic[i].AffectedSectors)
		generic[i].Frequency = max(1, len(generic[i].SourcePages))
	}
	themes = append(themes, generic...)
	if len(themes) > models.ThemesMax {
		themes = themes[:models.ThemesMax]
	}
	return themes
}

func pagesOf(inputs map[models.Sector]*sectorInputs, sectors []models.Sector) []int {
	set := map[int]bool{}
	for _, s := range sectors {
		if in, ok := inputs[s]; ok {
			for _, p := range in.Pages {
				set[p] = true
			}
		}
	}
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func containsSector(list []models.Sector, s models.Sector) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func nonNilSectors(s []models.Sector) []models.Sector {
	if s == nil {
		return []models.Sector{}
	}
	return append([]models.Sector{}, s...)
}
