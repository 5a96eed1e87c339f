package models

// TrendDirection is the normalized direction of a chart's trend.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// Phase is an ITR business-cycle phase letter.
type Phase string

const (
	PhaseA Phase = "A"
	PhaseB Phase = "B"
	PhaseC Phase = "C"
	PhaseD Phase = "D"
)

// Phases lists the phases in cycle order.
var Phases = []Phase{PhaseA, PhaseB, PhaseC, PhaseD}

// Valid reports whether p is one of A-D.
func (p Phase) Valid() bool {
	switch p {
	case PhaseA, PhaseB, PhaseC, PhaseD:
		return true
	}
	return false
}

// Confidence is a three-level confidence rating.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Level maps a confidence to 2 (high), 1 (medium) or 0 (low and unknown).
func (c Confidence) Level() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	}
	return 0
}

// Interpretation is the normalized reading of a chart image.
type Interpretation struct {
	Description          string         `firestore:"description" json:"description"`
	TrendDirection       TrendDirection `firestore:"trend_direction" json:"trend_direction"`
	CurrentPhase         Phase          `firestore:"current_phase,omitempty" json:"current_phase,omitempty"`
	Confidence           Confidence     `firestore:"confidence" json:"confidence"`
	BusinessImplications string         `firestore:"business_implications,omitempty" json:"business_implications,omitempty"`
	KeyPatterns          []string       `firestore:"key_patterns,omitempty" json:"key_patterns,omitempty"`
}
