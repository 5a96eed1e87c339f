package store

import "github.com/Lllllllleong/reportflow/internal/models"

// MergeFlow combines an incoming flow with the stored one. The incoming flow
// replaces pages, series index and metadata; custom analysis on every page is
// carried forward, merged by id, unless the page is listed for replacement.
// Custom analysis on pages that no longer exist moves to the orphan list.
// Stored analysis fields are kept when the incoming document has none.
func MergeFlow(existing, incoming *models.FlowDocument, opts SaveOptions) *models.FlowDocument {
	merged := *incoming
	merged.DocumentFlow = make([]models.PageFlow, len(incoming.DocumentFlow))
	copy(merged.DocumentFlow, incoming.DocumentFlow)
	if existing == nil {
		return &merged
	}

	replace := map[int]bool{}
	for _, p := range opts.ReplaceCustomAnalysisPages {
		replace[p] = true
	}
	present := map[int]bool{}
	for i := range merged.DocumentFlow {
		page := &merged.DocumentFlow[i]
		present[page.PageNumber] = true
		if replace[page.PageNumber] {
			continue
		}
		if old := existing.Page(page.PageNumber); old != nil {
			page.CustomAnalysis = unionAnalyses(old.CustomAnalysis, page.CustomAnalysis)
		}
	}

	var orphans []models.SavedAnalysis
	orphans = append(orphans, existing.OrphanedCustomAnalysis...)
	for _, old := range existing.DocumentFlow {
		if !present[old.PageNumber] {
			orphans = append(orphans, old.CustomAnalysis...)
		}
	}
	merged.OrphanedCustomAnalysis = unionAnalyses(orphans, incoming.OrphanedCustomAnalysis)
	if len(merged.OrphanedCustomAnalysis) == 0 {
		merged.OrphanedCustomAnalysis = nil
	}

	if incoming.AnalysisMetadata == nil {
		merged.OverallAnalysis = existing.OverallAnalysis
		merged.SectorAnalyses = existing.SectorAnalyses
		merged.AnalysisMetadata = existing.AnalysisMetadata
	}
	return &merged
}

// unionAnalyses keeps the order of base; entries of extra with a known id
// replace the base entry, new ids are appended.
func unionAnalyses(base, extra []models.SavedAnalysis) []models.SavedAnalysis {
	out := make([]models.SavedAnalysis, 0, len(base)+len(extra))
	index := map[string]int{}
	for _, a := range base {
		if i, ok := index[a.ID]; ok && a.ID != "" {
			out[i] = a
			continue
		}
		index[a.ID] = len(out)
		out = append(out, a)
	}
	for _, a := range extra {
		if i, ok := index[a.ID]; ok && a.ID != "" {
			out[i] = a
			continue
		}
		index[a.ID] = len(out)
		out = append(out, a)
	}
	return out
}
