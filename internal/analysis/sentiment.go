package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/models"
)

// NormalizeWeights restricts weights to the given sectors and rescales them to sum
// to 1. Without usable weights every listed sector gets an equal share; with no
// sectors the full weight table is normalized.
func NormalizeWeights(weights map[models.Sector]float64, sectors []models.Sector) map[models.Sector]float64 {
	if len(sectors) == 0 {
		sectors = models.Sectors
	}
	out := make(map[models.Sector]float64, len(sectors))
	var sum float64
	for _, s := range sectors {
		if w := weights[s]; w > 0 && !math.IsInf(w, 0) {
			out[s] = w
			sum += w
		}
	}
	if sum == 0 {
		for _, s := range sectors {
			out[s] = 1 / float64(len(sectors))
		}
		return out
	}
	for s := range out {
		out[s] /= sum
	}
	return out
}

// StructuralConfidence maps the share of sectors agreeing on growth versus
// decline to a confidence level.
func StructuralConfidence(agreement float64) models.Confidence {
	switch {
	case agreement > 0.8:
		return models.ConfidenceHigh
	case agreement >= 0.5:
		return models.ConfidenceMedium
	}
	return models.ConfidenceLow
}

// structuralSentiment is the first stage of the sentiment score.
type structuralSentiment struct {
	Weights    map[models.Sector]float64
	Leans      map[models.Sector]float64
	Phases     map[models.Sector]phaseSummary
	Raw        float64
	Score      int
	Agreement  float64
	Confidence models.Confidence
}

func (r *run) structuralSentiment() structuralSentiment {
	present := presentSectors(r.inputs)
	st := structuralSentiment{
		Weights: NormalizeWeights(r.a.cfg.SectorWeights, present),
		Leans:   map[models.Sector]float64{},
		Phases:  map[models.Sector]phaseSummary{},
		Raw:     3,
	}
	if len(present) > 0 {
		st.Raw = 0
		growth, decline := 0, 0
		for _, s := range present {
			ps := summarizePhases(r.inputs[s].Charts)
			st.Phases[s] = ps
			st.Leans[s] = ps.lean()
			st.Raw += st.Weights[s] * st.Leans[s]
			switch ps.direction() {
			case 1:
				growth++
			case -1:
				decline++
			}
		}
		st.Agreement = float64(max(growth, decline)) / float64(len(present))
	}
	st.Score = clampScore(int(math.Round(st.Raw)))
	st.Confidence = StructuralConfidence(st.Agreement)
	return st
}

func clampScore(n int) int {
	return max(1, min(5, n))
}

type llmSentiment struct {
	Score      float64 `json:"score"`
	Label      string  `json:"label"`
	Confidence string  `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// sentiment runs both stages. The model may move the score and its confidence,
// within the checks below; every correction becomes a quality note.
func (r *run) sentiment(ctx context.Context, sectors map[models.Sector]models.SectorAnalysis) models.SentimentScore {
	st := r.structuralSentiment()
	out := models.SentimentScore{
		Score:               st.Score,
		Label:               models.SentimentLabel(st.Score),
		Confidence:          st.Confidence,
		ContributingFactors: contributingFactors(st),
		SectorWeights:       st.Weights,
		IndicatorSignals:    r.indicatorSignals(),
	}

	text, ok := r.generate(ctx, llm.TaskSentiment, llm.FormatJSON, sentimentPrompt(st, sectors))
	if !ok {
		out.Confidence = models.ConfidenceLow
		out.Rationale = models.FallbackPrefix + structuralRationale(st)
		return out
	}
	var resp llmSentiment
	if err := llm.DecodeJSON(text, &resp); err != nil {
		r.llmFailures++
		r.note("sentiment response could not be parsed: %v", err)
		out.Confidence = models.ConfidenceLow
		out.Rationale = models.FallbackPrefix + structuralRationale(st)
		return out
	}

	score := int(math.Round(resp.Score))
	if score < 1 || score > 5 {
		r.note("model sentiment score %v outside [1,5] rejected; structural score %d kept", resp.Score, st.Score)
	} else {
		if float64(score) != resp.Score {
			r.note("model sentiment score %v rounded to %d", resp.Score, score)
		}
		out.Score = score
	}
	out.Label = models.SentimentLabel(out.Score)
	if resp.Label != "" && !strings.EqualFold(strings.TrimSpace(resp.Label), out.Label) {
		r.note("model sentiment label %q corrected to %q for score %d", resp.Label, out.Label, out.Score)
	}

	claimed := models.Confidence(strings.ToLower(strings.TrimSpace(resp.Confidence)))
	switch {
	case claimed != models.ConfidenceHigh && claimed != models.ConfidenceMedium && claimed != models.ConfidenceLow:
		r.note("model sentiment confidence %q not recognized; structural %s used", resp.Confidence, st.Confidence)
	case abs(claimed.Level()-st.Confidence.Level()) > 1:
		r.note("model sentiment confidence %s overridden by structural %s", claimed, st.Confidence)
	default:
		out.Confidence = claimed
	}

	if rationale := strings.TrimSpace(resp.Rationale); rationale != "" {
		out.Rationale = rationale
	} else {
		out.Rationale = models.FallbackPrefix + structuralRationale(st)
	}
	return out
}

func structuralRationale(st structuralSentiment) string {
	var parts []string
	for _, s := range models.Sectors {
		if w, ok := st.Weights[s]; ok {
			if lean, ok := st.Leans[s]; ok {
				parts = append(parts, fmt.Sprintf("%s %.2f at weight %.2f", s, lean, w))
			}
		}
	}
	if len(parts) == 0 {
		return "No sector phase data is available; the score defaults to neutral."
	}
	return fmt.Sprintf("Weighted sector phase lean of %.2f (%s) rounds to %d; %.0f%% of sectors agree on direction.",
		st.Raw, strings.Join(parts, ", "), st.Score, st.Agreement*100)
}

func contributingFactors(st structuralSentiment) []models.ContributingFactor {
	out := []models.ContributingFactor{}
	for _, s := range models.Sectors {
		lean, ok := st.Leans[s]
		if !ok {
			continue
		}
		impact := "neutral"
		switch {
		case lean > 3:
			impact = "positive"
		case lean < 3:
			impact = "negative"
		}
		ps := st.Phases[s]
		desc := fmt.Sprintf("%s sector is %s with a phase lean of %.2f.", title(string(s)), ps.Dominant, lean)
		if ps.Phased == 0 {
			desc = fmt.Sprintf("%s sector has no phase data and is treated as neutral.", title(string(s)))
		}
		out = append(out, models.ContributingFactor{
			FactorName:  fmt.Sprintf("%s sector phase", s),
			Impact:      impact,
			Weight:      st.Weights[s],
			Description: desc,
		})
	}
	return out
}

// indicatorSignals lists phased chart readings across sectors in page order.
func (r *run) indicatorSignals() []models.IndicatorSignal {
	out := []models.IndicatorSignal{}
	seen := map[string]bool{}
	for _, s := range presentSectors(r.inputs) {
		for _, c := range r.inputs[s].Charts {
			if len(out) == r.a.cfg.MaxSignals {
				return out
			}
			if c.Interp.CurrentPhase == "" || seen[c.Series] {
				continue
			}
			seen[c.Series] = true
			out = append(out, models.IndicatorSignal{
				IndicatorName: c.Series,
				Sector:        c.Sector,
				Direction:     c.Interp.TrendDirection,
				Phase:         c.Interp.CurrentPhase,
				SourcePage:    c.Page,
			})
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
