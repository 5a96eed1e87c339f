package interpret

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// RawInterpretation is the answer shape requested from the vision model. Field
// types are loose because models do not always follow the schema.
type RawInterpretation struct {
	Description          string          `json:"description"`
	TrendDirection       string          `json:"trend_direction"`
	CurrentPhase         string          `json:"current_phase"`
	Confidence           string          `json:"confidence"`
	BusinessImplications string          `json:"business_implications"`
	KeyPatterns          json.RawMessage `json:"key_patterns"`
}

var trendVocabulary = map[string]models.TrendDirection{
	"rising":        models.TrendRising,
	"rise":          models.TrendRising,
	"up":            models.TrendRising,
	"upward":        models.TrendRising,
	"increasing":    models.TrendRising,
	"growing":       models.TrendRising,
	"growth":        models.TrendRising,
	"accelerating":  models.TrendRising,
	"expanding":     models.TrendRising,
	"improving":     models.TrendRising,
	"recovering":    models.TrendRising,
	"positive":      models.TrendRising,
	"falling":       models.TrendFalling,
	"fall":          models.TrendFalling,
	"down":          models.TrendFalling,
	"downward":      models.TrendFalling,
	"decreasing":    models.TrendFalling,
	"declining":     models.TrendFalling,
	"decline":       models.TrendFalling,
	"decelerating":  models.TrendFalling,
	"slowing":       models.TrendFalling,
	"contracting":   models.TrendFalling,
	"deteriorating": models.TrendFalling,
	"negative":      models.TrendFalling,
	"stable":        models.TrendStable,
	"flat":          models.TrendStable,
	"steady":        models.TrendStable,
	"sideways":      models.TrendStable,
	"unchanged":     models.TrendStable,
	"plateauing":    models.TrendStable,
}

var (
	phaseRe = regexp.MustCompile(`(?i)^\s*(?:phase\s*)?([abcd])\b`)
	// A second phase letter after the first ("A/B", "B or C", "C-D") makes the phase unclear.
	phaseAltRe = regexp.MustCompile(`(?i)^\s*(?:phase\s*)?[abcd]\s*(?:/|-|–|&|\bor\b|\bto\b)\s*(?:phase\s*)?[abcd]\b`)
)

// NormalizeTrend maps free-form trend wording onto the closed vocabulary. The
// second result is false when the wording was not recognized.
func NormalizeTrend(s string) (models.TrendDirection, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.Trim(key, ".!")
	if t, ok := trendVocabulary[key]; ok {
		return t, true
	}
	return models.TrendStable, false
}

// NormalizePhase accepts "B", "phase b" or "B (Recovery)" and rejects anything
// that is not a single letter A-D.
func NormalizePhase(s string) models.Phase {
	m := phaseRe.FindStringSubmatch(s)
	if m == nil || phaseAltRe.MatchString(s) {
		return ""
	}
	return models.Phase(strings.ToUpper(m[1]))
}

// NormalizeConfidence maps confidence wording to high, medium or low.
func NormalizeConfidence(s string) models.Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "very high", "strong":
		return models.ConfidenceHigh
	case "medium", "moderate", "mid":
		return models.ConfidenceMedium
	}
	return models.ConfidenceLow
}

// Normalize turns a raw model answer into an Interpretation. Unrecognized trend
// wording becomes stable with low confidence; an invalid phase is dropped.
func Normalize(raw RawInterpretation) models.Interpretation {
	trend, known := NormalizeTrend(raw.TrendDirection)
	in := models.Interpretation{
		Description:          strings.TrimSpace(raw.Description),
		TrendDirection:       trend,
		CurrentPhase:         NormalizePhase(raw.CurrentPhase),
		Confidence:           NormalizeConfidence(raw.Confidence),
		BusinessImplications: strings.TrimSpace(raw.BusinessImplications),
		KeyPatterns:          keyPatterns(raw.KeyPatterns),
	}
	if !known {
		in.Confidence = models.ConfidenceLow
	}
	return in
}

func keyPatterns(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := list[:0]
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
		return []string{strings.TrimSpace(single)}
	}
	return nil
}
