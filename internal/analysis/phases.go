package analysis

import "github.com/Lllllllleong/reportflow/internal/models"

// Dominant trend vocabulary.
const (
	TrendRecovering   = "recovering"
	TrendAccelerating = "accelerating"
	TrendStable       = "stable"
	TrendSlowing      = "slowing"
	TrendDeclining    = "declining"
	TrendNoData       = "no_data"
)

var trendScores = map[string]float64{
	TrendRecovering:   4,
	TrendAccelerating: 5,
	TrendStable:       3,
	TrendSlowing:      2,
	TrendDeclining:    1,
}

// phaseScores is the sentiment lean of each business-cycle phase.
var phaseScores = map[models.Phase]float64{
	models.PhaseA: 4,
	models.PhaseB: 5,
	models.PhaseC: 2,
	models.PhaseD: 1,
}

// dominantTrends maps plurality phase and trajectory to the sector's dominant trend.
var dominantTrends = map[models.Phase]map[models.TrendDirection]string{
	models.PhaseA: {models.TrendRising: TrendRecovering, models.TrendStable: TrendRecovering, models.TrendFalling: TrendStable},
	models.PhaseB: {models.TrendRising: TrendAccelerating, models.TrendStable: TrendAccelerating, models.TrendFalling: TrendSlowing},
	models.PhaseC: {models.TrendRising: TrendStable, models.TrendStable: TrendSlowing, models.TrendFalling: TrendSlowing},
	models.PhaseD: {models.TrendRising: TrendRecovering, models.TrendStable: TrendDeclining, models.TrendFalling: TrendDeclining},
}

// phaseSummary condenses the interpreted charts of a sector.
type phaseSummary struct {
	Distribution map[models.Phase]int
	Plurality    models.Phase
	Trajectory   models.TrendDirection
	Dominant     string
	Phased       int
	Growth       int
	Decline      int
}

// summarizePhases counts phases and directions over charts in page order. Ties in
// the plurality phase go to the phase seen latest; ties in direction go to the
// latest non-stable chart.
func summarizePhases(charts []chartSignal) phaseSummary {
	ps := phaseSummary{Distribution: map[models.Phase]int{}, Trajectory: models.TrendStable, Dominant: TrendStable}
	for _, p := range models.Phases {
		ps.Distribution[p] = 0
	}

	lastSeen := map[models.Phase]int{}
	rising, falling := 0, 0
	for i, c := range charts {
		if p := c.Interp.CurrentPhase; p.Valid() {
			ps.Distribution[p]++
			lastSeen[p] = i
			ps.Phased++
		}
		switch c.Interp.TrendDirection {
		case models.TrendRising:
			rising++
		case models.TrendFalling:
			falling++
		}
	}

	best := -1
	for _, p := range models.Phases {
		n := ps.Distribution[p]
		if n == 0 {
			continue
		}
		if n > best || n == best && lastSeen[p] > lastSeen[ps.Plurality] {
			best = n
			ps.Plurality = p
		}
	}

	switch {
	case rising > falling:
		ps.Trajectory = models.TrendRising
	case falling > rising:
		ps.Trajectory = models.TrendFalling
	default:
		for i := len(charts) - 1; i >= 0; i-- {
			if d := charts[i].Interp.TrendDirection; d != models.TrendStable && d != "" {
				ps.Trajectory = d
				break
			}
		}
	}

	if ps.Plurality != "" {
		ps.Dominant = dominantTrends[ps.Plurality][ps.Trajectory]
	}
	ps.Growth = ps.Distribution[models.PhaseA] + ps.Distribution[models.PhaseB]
	ps.Decline = ps.Distribution[models.PhaseC] + ps.Distribution[models.PhaseD]
	return ps
}

// lean is the sentiment lean of a sector on the 1-5 scale; 3 without phase data.
func (ps phaseSummary) lean() float64 {
	if ps.Phased == 0 {
		return 3
	}
	var sum float64
	for p, n := range ps.Distribution {
		sum += phaseScores[p] * float64(n)
	}
	return sum / float64(ps.Phased)
}

// direction is +1 for growth, -1 for decline, 0 when undecided.
func (ps phaseSummary) direction() int {
	switch {
	case ps.Growth > ps.Decline:
		return 1
	case ps.Decline > ps.Growth:
		return -1
	}
	return 0
}
