package flow

import (
	"fmt"
	"regexp"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// SeriesPattern maps a regular expression over page text to a canonical series name.
type SeriesPattern struct {
	Name    string
	Sector  models.Sector
	Pattern *regexp.Regexp
}

// SeriesMatch is the result of matching text against a SeriesTable.
type SeriesMatch struct {
	Name   string
	Sector models.Sector
	Offset int
}

// SeriesTable is an ordered list of series patterns. Lookups are pure.
type SeriesTable []SeriesPattern

func series(sector models.Sector, name, pattern string) SeriesPattern {
	return SeriesPattern{Name: name, Sector: sector, Pattern: regexp.MustCompile(`(?i)` + pattern)}
}

// DefaultSeriesTable covers the series published in ITR trends reports.
var DefaultSeriesTable = SeriesTable{
	series(models.SectorCore, "US Industrial Production", `US Industrial Production`),
	series(models.SectorCore, "US Nondefense Capital Goods New Orders", `US Nondefense Capital Goods New Orders`),
	series(models.SectorCore, "US Private Sector Employment", `US Private Sector Employment`),
	series(models.SectorCore, "US Total Retail Sales", `US Total Retail Sales`),
	series(models.SectorCore, "US Wholesale Trade", `US Wholesale Trade`),
	series(models.SectorCore, "ITR Retail Sales Leading Indicator", `ITR Retail Sales Leading Indicator`),
	series(models.SectorCore, "ITR Leading Indicator", `ITR Leading Indicator`),
	series(models.SectorCore, "US Total Industry Capacity Utilization", `US Total Industry Capacity Utilization`),
	series(models.SectorCore, "US OECD Leading Indicator", `US OECD Leading Indicator`),
	series(models.SectorCore, "US ISM PMI", `US ISM PMI`),

	series(models.SectorFinancial, "US Stock Prices", `US Stock Prices|S&P 500`),
	series(models.SectorFinancial, "US Government Bond Yields", `US Government.{0,40}Bond Yields`),
	series(models.SectorFinancial, "US Natural Gas Spot Prices", `US Natural Gas Spot Prices`),
	series(models.SectorFinancial, "US Crude Oil Spot Prices", `US Crude Oil Spot Prices`),
	series(models.SectorFinancial, "US Steel Scrap Producer Price Index", `US Steel Scrap Producer Price`),
	series(models.SectorFinancial, "US Consumer Price Index", `US Consumer Price Index`),
	series(models.SectorFinancial, "US Producer Price Index", `US Producer Price Index`),

	series(models.SectorConstruction, "US Single-Unit Housing Starts", `US Single-Unit Housing Starts`),
	series(models.SectorConstruction, "US Multi-Unit Housing Starts", `US Multi-Unit Housing Starts`),
	series(models.SectorConstruction, "US Private Office Construction", `US Private Office Construction`),
	series(models.SectorConstruction, "US Total Education Construction", `US Total Education Construction`),
	series(models.SectorConstruction, "US Total Hospital Construction", `US Total Hospital Construction`),
	series(models.SectorConstruction, "US Private Manufacturing Construction", `US Private Manufacturing Construction`),
	series(models.SectorConstruction, "US Private Retail Construction", `US Private.{0,40}Retail Construction`),
	series(models.SectorConstruction, "US Private Warehouse Construction", `US Private Warehouse Construction`),
	series(models.SectorConstruction, "US Public Water & Sewer Construction", `US Public Water.{0,20}Sewer.{0,20}Construction`),

	series(models.SectorManufacturing, "US Metalworking Machinery New Orders", `US Metalworking Machinery`),
	series(models.SectorManufacturing, "US Machinery New Orders", `US Machinery New Orders`),
	series(models.SectorManufacturing, "US Construction Machinery New Orders", `US Construction Machinery`),
	series(models.SectorManufacturing, "US Electrical Equipment New Orders", `US Electrical Equipment`),
	series(models.SectorManufacturing, "US Computers & Electronics New Orders", `US Computers.{0,20}Electronics`),
	series(models.SectorManufacturing, "US Defense Capital Goods New Orders", `US Defense Capital Goods`),
	series(models.SectorManufacturing, "North America Light Vehicle Production", `North America Light Vehicle Production`),
	series(models.SectorManufacturing, "US Oil & Gas Extraction Production", `US Oil.{0,20}Gas Extraction`),
	series(models.SectorManufacturing, "US Mining Production", `US Mining Production`),
	series(models.SectorManufacturing, "US Chemicals & Chemical Products Production", `US Chemicals.{0,20}Chemical Products`),
	series(models.SectorManufacturing, "US Civilian Aircraft New Orders", `US Civilian Aircraft`),
	series(models.SectorManufacturing, "US Medical Equipment & Supplies Production", `US Medical Equipment`),
	series(models.SectorManufacturing, "US Heavy-Duty Truck Production", `US Heavy-Duty Truck`),
	series(models.SectorManufacturing, "US Food Production", `US Food Production`),
}

// Match returns the series whose match starts earliest in text. When two patterns
// match at the same offset the longer match wins, then table order.
func (t SeriesTable) Match(text string) (SeriesMatch, bool) {
	best := SeriesMatch{Offset: -1}
	bestLen := 0
	for _, p := range t {
		loc := p.Pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		length := loc[1] - loc[0]
		if best.Offset < 0 || loc[0] < best.Offset || loc[0] == best.Offset && length > bestLen {
			best = SeriesMatch{Name: p.Name, Sector: p.Sector, Offset: loc[0]}
			bestLen = length
		}
	}
	return best, best.Offset >= 0
}

// Sector returns the sector of a canonical series name.
func (t SeriesTable) Sector(name string) (models.Sector, bool) {
	for _, p := range t {
		if p.Name == name {
			return p.Sector, true
		}
	}
	return "", false
}

// With returns a copy of t with extra patterns appended after the built-in ones.
func (t SeriesTable) With(extra ...SeriesPattern) SeriesTable {
	out := make(SeriesTable, 0, len(t)+len(extra))
	out = append(out, t...)
	return append(out, extra...)
}

// CompileSeries builds a pattern from configuration values.
func CompileSeries(name, sector, pattern string) (SeriesPattern, error) {
	sec, ok := models.ParseSector(sector)
	if !ok {
		return SeriesPattern{}, fmt.Errorf("series %q: unknown sector %q", name, sector)
	}
	re, err := regexp.Compile(`(?i)` + pattern)
	if err != nil {
		return SeriesPattern{}, fmt.Errorf("series %q: invalid pattern: %w", name, err)
	}
	return SeriesPattern{Name: name, Sector: sec, Pattern: re}, nil
}
