package progress

import (
	"fmt"

	"fieldrun/internal/unit"
)

// baseWeights is the relative cost of each phase when all three run. The
// estimator renormalizes over whichever subset is actually scheduled this
// session, so a lone phase always carries weight 1.
var baseWeights = map[unit.Phase]float64{
	unit.PhaseSetup:   0.3,
	unit.PhaseRun:     0.6,
	unit.PhaseExtract: 0.1,
}

// Estimator computes weighted overall progress across the phases scheduled
// for one session and serves per-subtask duration estimates for animations.
// Subtask estimates are independent of phase weights.
type Estimator struct {
	scheduled []unit.Phase
	weights   map[unit.Phase]float64
	history   *History
}

// NewEstimator plans a session over the given phases, in execution order.
// Phases skipped by the cache are simply absent. history may be nil when no
// persisted estimates exist yet.
func NewEstimator(scheduled []unit.Phase, history *History) (*Estimator, error) {
	if len(scheduled) == 0 {
		return nil, fmt.Errorf("progress: no phases scheduled")
	}
	var total float64
	for _, p := range scheduled {
		w, ok := baseWeights[p]
		if !ok {
			return nil, fmt.Errorf("progress: no weight for phase %q", p)
		}
		total += w
	}
	weights := make(map[unit.Phase]float64, len(scheduled))
	for _, p := range scheduled {
		weights[p] = baseWeights[p] / total
	}
	if history == nil {
		history = NewHistory()
	}
	return &Estimator{
		scheduled: append([]unit.Phase(nil), scheduled...),
		weights:   weights,
		history:   history,
	}, nil
}

// Weight returns the normalized weight of a scheduled phase.
func (e *Estimator) Weight(p unit.Phase) float64 {
	return e.weights[p]
}

// Scheduled returns the session's phases in order.
func (e *Estimator) Scheduled() []unit.Phase {
	return append([]unit.Phase(nil), e.scheduled...)
}

// WeightedProgress reports overall completion as a fraction in [0,1]: the
// full weights of every scheduled phase before current, plus current's weight
// scaled by fraction. At fraction 0 of a newly started phase this equals the
// sum of completed-phase weights exactly.
func (e *Estimator) WeightedProgress(current unit.Phase, fraction float64) float64 {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	var done float64
	for _, p := range e.scheduled {
		if p == current {
			return done + e.weights[p]*fraction
		}
		done += e.weights[p]
	}
	// Unknown phase: report only what is already complete.
	return done
}

// Estimate returns the historical mean duration in seconds for a named
// subtask, with fallback when no history exists.
func (e *Estimator) Estimate(name string, fallback float64) float64 {
	if mean, ok := e.history.Mean(name); ok {
		return mean
	}
	return fallback
}

// Record folds an observed duration into the subtask's running average.
func (e *Estimator) Record(name string, seconds float64) {
	e.history.Record(name, seconds)
}

// History exposes the backing estimate history for persistence at session end.
func (e *Estimator) History() *History {
	return e.history
}
