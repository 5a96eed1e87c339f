package analysis

import "github.com/Lllllllleong/reportflow/internal/models"

// knownLeadingIndicators are the series that lead each sector, best first.
var knownLeadingIndicators = map[models.Sector][]string{
	models.SectorCore:          {"ITR Leading Indicator", "US ISM PMI", "US OECD Leading Indicator"},
	models.SectorFinancial:     {"US Stock Prices", "US Government Bond Yields"},
	models.SectorConstruction:  {"US Single-Unit Housing Starts", "US Multi-Unit Housing Starts"},
	models.SectorManufacturing: {"US Metalworking Machinery New Orders", "US Machinery New Orders"},
}

// knownCorrelations are the published relationships between sectors.
var knownCorrelations = map[models.Sector][]models.Correlation{
	models.SectorCore: {{
		RelatedSector: models.SectorManufacturing,
		Relationship:  "leads",
		LagMonths:     3,
		Strength:      "strong",
		Description:   "Core economic indicators typically lead manufacturing activity by about 3 months.",
	}},
	models.SectorFinancial: {{
		RelatedSector: models.SectorCore,
		Relationship:  "leads",
		LagMonths:     6,
		Strength:      "moderate",
		Description:   "Financial markets often anticipate core economic changes by about 6 months.",
	}},
	models.SectorConstruction: {{
		RelatedSector: models.SectorFinancial,
		Relationship:  "lags",
		LagMonths:     9,
		Strength:      "moderate",
		Description:   "Construction responds to interest rate and financing conditions with a lag of about 9 months.",
	}},
	models.SectorManufacturing: {{
		RelatedSector: models.SectorCore,
		Relationship:  "lags",
		LagMonths:     3,
		Strength:      "strong",
		Description:   "Manufacturing follows core economic trends with a lag of about 3 months.",
	}},
}

// leadingIndicators picks up to three leading series present in the sector,
// falling back to the sector's first series.
func leadingIndicators(sector models.Sector, series []string) []string {
	present := map[string]bool{}
	for _, s := range series {
		present[s] = true
	}
	out := []string{}
	for _, name := range knownLeadingIndicators[sector] {
		if present[name] && len(out) < models.LeadingIndicatorMax {
			out = append(out, name)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, s := range series {
		if len(out) == models.LeadingIndicatorMax {
			break
		}
		out = append(out, s)
	}
	return out
}

func correlationsFor(sector models.Sector) []models.Correlation {
	out := make([]models.Correlation, len(knownCorrelations[sector]))
	copy(out, knownCorrelations[sector])
	return out
}
