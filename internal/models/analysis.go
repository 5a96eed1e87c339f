package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SchemaVersion identifies the persisted field layout. Renaming any persisted
// field requires bumping it.
const SchemaVersion = "1.0"

// FallbackPrefix marks narrative text produced without the language model.
const FallbackPrefix = "[fallback] "

// Sentiment labels in score order.
const (
	LabelStronglyBearish = "Strongly Bearish"
	LabelBearish         = "Bearish"
	LabelNeutral         = "Neutral"
	LabelBullish         = "Bullish"
	LabelStronglyBullish = "Strongly Bullish"
)

var sentimentLabels = [...]string{LabelStronglyBearish, LabelBearish, LabelNeutral, LabelBullish, LabelStronglyBullish}

// SentimentLabel returns the canonical label for a 1-5 score, or "" if out of range.
func SentimentLabel(score int) string {
	if score < 1 || score > 5 {
		return ""
	}
	return sentimentLabels[score-1]
}

// Field length bounds.
const (
	ExecutiveSummaryMin = 100
	ExecutiveSummaryMax = 2000
	SectorSummaryMin    = 200
	SectorSummaryMax    = 1000
	ThemesMin           = 5
	ThemesMax           = 10
	RecommendationsMin  = 3
	RecommendationsMax  = 5
	SectorInsightsMin   = 3
	SectorInsightsMax   = 5
	LeadingIndicatorMax = 3
)

type ContributingFactor struct {
	FactorName  string  `firestore:"factor_name" json:"factor_name"`
	Impact      string  `firestore:"impact" json:"impact"`
	Weight      float64 `firestore:"weight" json:"weight"`
	Description string  `firestore:"description" json:"description"`
}

type IndicatorSignal struct {
	IndicatorName string         `firestore:"indicator_name" json:"indicator_name"`
	Sector        Sector         `firestore:"sector" json:"sector"`
	Direction     TrendDirection `firestore:"direction" json:"direction"`
	Phase         Phase          `firestore:"phase,omitempty" json:"phase,omitempty"`
	SourcePage    int            `firestore:"source_page" json:"source_page"`
}

// SentimentScore is the document-level market sentiment.
type SentimentScore struct {
	Score               int                  `firestore:"score" json:"score"`
	Label               string               `firestore:"label" json:"label"`
	Confidence          Confidence           `firestore:"confidence" json:"confidence"`
	ContributingFactors []ContributingFactor `firestore:"contributing_factors" json:"contributing_factors"`
	SectorWeights       map[Sector]float64   `firestore:"sector_weights" json:"sector_weights"`
	IndicatorSignals    []IndicatorSignal    `firestore:"indicator_signals" json:"indicator_signals"`
	Rationale           string               `firestore:"rationale" json:"rationale"`
}

// Validate checks score bounds, label mapping and weight normalization.
func (s *SentimentScore) Validate() error {
	v := &ValidationError{Subject: "sentiment_score"}
	if s.Score < 1 || s.Score > 5 {
		v.Addf("score %d outside [1,5]", s.Score)
	} else if s.Label != SentimentLabel(s.Score) {
		v.Addf("label %q does not match score %d", s.Label, s.Score)
	}
	if len(s.SectorWeights) > 0 {
		var sum float64
		for _, w := range s.SectorWeights {
			sum += w
		}
		if math.Abs(sum-1) > 0.01 {
			v.Addf("sector weights sum to %.4f", sum)
		}
	}
	return v.OrNil()
}

// Theme is a recurring topic across the report.
type Theme struct {
	ThemeName            string   `firestore:"theme_name" json:"theme_name"`
	SignificanceScore    float64  `firestore:"significance_score" json:"significance_score"`
	Frequency            int      `firestore:"frequency" json:"frequency"`
	Description          string   `firestore:"description" json:"description"`
	AffectedSectors      []Sector `firestore:"affected_sectors" json:"affected_sectors"`
	SourcePages          []int    `firestore:"source_pages" json:"source_pages"`
	BusinessImplications string   `firestore:"business_implications" json:"business_implications"`
}

func (t *Theme) Validate() error {
	v := &ValidationError{Subject: fmt.Sprintf("theme %q", t.ThemeName)}
	if strings.TrimSpace(t.ThemeName) == "" {
		v.Addf("empty theme name")
	}
	if t.SignificanceScore < 1 || t.SignificanceScore > 10 {
		v.Addf("significance %.1f outside [1,10]", t.SignificanceScore)
	}
	if t.Frequency < 1 {
		v.Addf("frequency %d below 1", t.Frequency)
	}
	return v.OrNil()
}

type Correlation struct {
	RelatedSector Sector `firestore:"related_sector" json:"related_sector"`
	Relationship  string `firestore:"relationship" json:"relationship"`
	LagMonths     int    `firestore:"lag_months,omitempty" json:"lag_months,omitempty"`
	Strength      string `firestore:"strength" json:"strength"`
	Description   string `firestore:"description" json:"description"`
}

type CrossSectorTrends struct {
	OverallDirection   string        `firestore:"overall_direction" json:"overall_direction"`
	SectorsInGrowth    []Sector      `firestore:"sectors_in_growth" json:"sectors_in_growth"`
	SectorsInDecline   []Sector      `firestore:"sectors_in_decline" json:"sectors_in_decline"`
	SectorCorrelations []Correlation `firestore:"sector_correlations" json:"sector_correlations"`
	TrendSummary       string        `firestore:"trend_summary" json:"trend_summary"`
}

// OverallAnalysis is the document-level synthesis.
type OverallAnalysis struct {
	ExecutiveSummary  string            `firestore:"executive_summary" json:"executive_summary"`
	KeyThemes         []Theme           `firestore:"key_themes" json:"key_themes"`
	CrossSectorTrends CrossSectorTrends `firestore:"cross_sector_trends" json:"cross_sector_trends"`
	Recommendations   []string          `firestore:"recommendations" json:"recommendations"`
	SentimentScore    SentimentScore    `firestore:"sentiment_score" json:"sentiment_score"`
	QualityNotes      []string          `firestore:"quality_notes,omitempty" json:"quality_notes,omitempty"`
}

func (o *OverallAnalysis) Validate() error {
	v := &ValidationError{Subject: "overall_analysis"}
	if n := len(o.ExecutiveSummary); n < ExecutiveSummaryMin || n > ExecutiveSummaryMax {
		v.Addf("executive summary length %d outside [%d,%d]", n, ExecutiveSummaryMin, ExecutiveSummaryMax)
	}
	if n := len(o.KeyThemes); n < ThemesMin || n > ThemesMax {
		v.Addf("%d key themes outside [%d,%d]", n, ThemesMin, ThemesMax)
	}
	for i := range o.KeyThemes {
		v.Merge(o.KeyThemes[i].Validate())
	}
	if n := len(o.Recommendations); n < RecommendationsMin || n > RecommendationsMax {
		v.Addf("%d recommendations outside [%d,%d]", n, RecommendationsMin, RecommendationsMax)
	}
	v.Merge(o.SentimentScore.Validate())
	return v.OrNil()
}

// SectorAnalysis is the analysis of one sector's series.
type SectorAnalysis struct {
	SectorName        Sector        `firestore:"sector_name" json:"sector_name"`
	Summary           string        `firestore:"summary" json:"summary"`
	SeriesCount       int           `firestore:"series_count" json:"series_count"`
	PhaseDistribution map[Phase]int `firestore:"phase_distribution" json:"phase_distribution"`
	DominantTrend     string        `firestore:"dominant_trend" json:"dominant_trend"`
	LeadingIndicators []string      `firestore:"leading_indicators" json:"leading_indicators"`
	BusinessPhase     Phase         `firestore:"business_phase,omitempty" json:"business_phase,omitempty"`
	Correlations      []Correlation `firestore:"correlations" json:"correlations"`
	KeyInsights       []string      `firestore:"key_insights" json:"key_insights"`
	SourcePages       []int         `firestore:"source_pages" json:"source_pages"`
	Confidence        Confidence    `firestore:"confidence" json:"confidence"`
}

func (s *SectorAnalysis) Validate() error {
	v := &ValidationError{Subject: fmt.Sprintf("sector_analysis %s", s.SectorName)}
	if n := len(s.Summary); n < SectorSummaryMin || n > SectorSummaryMax {
		v.Addf("summary length %d outside [%d,%d]", n, SectorSummaryMin, SectorSummaryMax)
	}
	if len(s.LeadingIndicators) > LeadingIndicatorMax {
		v.Addf("%d leading indicators above %d", len(s.LeadingIndicators), LeadingIndicatorMax)
	}
	if n := len(s.KeyInsights); n < SectorInsightsMin || n > SectorInsightsMax {
		v.Addf("%d key insights outside [%d,%d]", n, SectorInsightsMin, SectorInsightsMax)
	}
	if s.BusinessPhase != "" && !s.BusinessPhase.Valid() {
		v.Addf("business phase %q not in A-D", s.BusinessPhase)
	}
	return v.OrNil()
}

// AnalysisMetadata describes one generation of the analysis fields.
type AnalysisMetadata struct {
	Version                int       `firestore:"version" json:"version"`
	SchemaVersion          string    `firestore:"schema_version" json:"schema_version"`
	GeneratedAt            time.Time `firestore:"generated_at" json:"generated_at"`
	GeneratorVersion       string    `firestore:"generator_version" json:"generator_version"`
	LLMModel               string    `firestore:"llm_model" json:"llm_model"`
	RunID                  string    `firestore:"run_id" json:"run_id"`
	RegeneratedFromVersion int       `firestore:"regenerated_from_version,omitempty" json:"regenerated_from_version,omitempty"`
	ProcessingTimeSeconds  float64   `firestore:"processing_time_seconds" json:"processing_time_seconds"`
	LLMFailures            int       `firestore:"llm_failures" json:"llm_failures"`
	Partial                bool      `firestore:"partial" json:"partial"`
	QualityNotes           []string  `firestore:"quality_notes,omitempty" json:"quality_notes,omitempty"`
}
