package progress

import (
	"math"
	"testing"

	"fieldrun/internal/unit"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestWeightedProgressAllPhases(t *testing.T) {
	e, err := NewEstimator(unit.Phases(), nil)
	if err != nil {
		t.Fatalf("new estimator: %v", err)
	}
	cases := []struct {
		phase    unit.Phase
		fraction float64
		want     float64
	}{
		{unit.PhaseSetup, 0, 0},
		{unit.PhaseSetup, 1, 0.3},
		{unit.PhaseRun, 0, 0.3},
		{unit.PhaseRun, 0.5, 0.6},
		{unit.PhaseRun, 1, 0.9},
		{unit.PhaseExtract, 0, 0.9},
		{unit.PhaseExtract, 1, 1},
	}
	for _, tc := range cases {
		got := e.WeightedProgress(tc.phase, tc.fraction)
		if !almostEqual(got, tc.want) {
			t.Errorf("WeightedProgress(%s, %v) = %v, want %v", tc.phase, tc.fraction, got, tc.want)
		}
	}
}

func TestWeightedProgressRenormalizesSubset(t *testing.T) {
	e, err := NewEstimator([]unit.Phase{unit.PhaseRun}, nil)
	if err != nil {
		t.Fatalf("new estimator: %v", err)
	}
	if got := e.WeightedProgress(unit.PhaseRun, 0.25); !almostEqual(got, 0.25) {
		t.Fatalf("single scheduled phase should carry full weight, got %v", got)
	}
	e, err = NewEstimator([]unit.Phase{unit.PhaseRun, unit.PhaseExtract}, nil)
	if err != nil {
		t.Fatalf("new estimator: %v", err)
	}
	if got := e.Weight(unit.PhaseRun); !almostEqual(got, 0.6/0.7) {
		t.Fatalf("run weight over {run, extract} = %v, want %v", got, 0.6/0.7)
	}
	if got := e.WeightedProgress(unit.PhaseExtract, 0); !almostEqual(got, 0.6/0.7) {
		t.Fatalf("extract at fraction 0 should equal completed run weight, got %v", got)
	}
}

func TestWeightedProgressMonotonic(t *testing.T) {
	e, err := NewEstimator(unit.Phases(), nil)
	if err != nil {
		t.Fatalf("new estimator: %v", err)
	}
	prev := -1.0
	for _, p := range e.Scheduled() {
		for _, f := range []float64{0, 0.25, 0.5, 0.75, 1} {
			got := e.WeightedProgress(p, f)
			if got < prev {
				t.Fatalf("progress regressed at %s fraction %v: %v < %v", p, f, got, prev)
			}
			prev = got
		}
	}
	if !almostEqual(prev, 1) {
		t.Fatalf("final progress = %v, want 1", prev)
	}
}

func TestWeightedProgressClampsFraction(t *testing.T) {
	e, err := NewEstimator(unit.Phases(), nil)
	if err != nil {
		t.Fatalf("new estimator: %v", err)
	}
	if got := e.WeightedProgress(unit.PhaseSetup, -0.5); !almostEqual(got, 0) {
		t.Fatalf("negative fraction should clamp to 0, got %v", got)
	}
	if got := e.WeightedProgress(unit.PhaseSetup, 3); !almostEqual(got, 0.3) {
		t.Fatalf("fraction above 1 should clamp to 1, got %v", got)
	}
}

func TestNewEstimatorRejectsEmptySchedule(t *testing.T) {
	if _, err := NewEstimator(nil, nil); err == nil {
		t.Fatal("expected error for empty schedule")
	}
}

func TestEstimateFallsBackWithoutHistory(t *testing.T) {
	e, err := NewEstimator(unit.Phases(), nil)
	if err != nil {
		t.Fatalf("new estimator: %v", err)
	}
	if got := e.Estimate("mesh_setup", 30); !almostEqual(got, 30) {
		t.Fatalf("Estimate without history = %v, want fallback 30", got)
	}
	e.Record("mesh_setup", 12)
	if got := e.Estimate("mesh_setup", 30); !almostEqual(got, 12) {
		t.Fatalf("Estimate after one observation = %v, want 12", got)
	}
}

func TestRecordRunningAverage(t *testing.T) {
	h := NewHistory()
	h.Record("extract", 10)
	h.Record("extract", 20)
	h.Record("extract", 30)
	mean, ok := h.Mean("extract")
	if !ok {
		t.Fatal("mean missing after three observations")
	}
	if !almostEqual(mean, 20) {
		t.Fatalf("running average = %v, want 20", mean)
	}
}
