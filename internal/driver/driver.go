// Package driver walks a WorkUnit through its phases: ask the cache what may
// be skipped, run what remains, re-validate deliverables, commit, and feed
// observed durations back into the estimate history. It runs inside the
// worker process and reports through the progress channel.
package driver

import (
	"errors"
	"fmt"
	"time"

	"fieldrun/internal/cache"
	"fieldrun/internal/config"
	"fieldrun/internal/logbook"
	"fieldrun/internal/progress"
	"fieldrun/internal/solver"
	"fieldrun/internal/unit"
)

// ErrCancelled reports that a stop request ended the unit early. It is a
// distinguished outcome, not a failure.
var ErrCancelled = errors.New("driver: cancelled")

// overallScale is the denominator for overall_progress events.
const overallScale = 1000

// Fallback animation estimates (seconds) for the first ever run of a phase,
// before any history exists.
const (
	fallbackSetupEstimate   = 30
	fallbackExtractEstimate = 10
)

// Executor abstracts the supervisor so tests can inject outcomes.
type Executor interface {
	Execute(cmd solver.Command, emit solver.EmitFunc) (solver.Outcome, error)
}

// Hooks are the external collaborators around the solve: scene and input
// construction (setup) and report extraction (extract). The solve itself goes
// through the Executor.
type Hooks struct {
	// Setup must produce the unit's container and input artifact.
	Setup func(u unit.WorkUnit, params cache.Params) error
	// InputArtifact returns the generated input path the solver consumes.
	InputArtifact func(u unit.WorkUnit) (string, error)
	// Extract must produce the unit's summary from the run output.
	Extract func(u unit.WorkUnit) error
}

// Runner executes units.
type Runner struct {
	cfg     *config.Config
	cache   *cache.Cache
	exec    Executor
	hooks   Hooks
	history *progress.History
	log     *logbook.Logbook
	emit    solver.EmitFunc
	cancel  *solver.CancelFlag
	clock   func() time.Time
}

// NewRunner wires a Runner. emit may be nil in tests.
func NewRunner(
	cfg *config.Config,
	c *cache.Cache,
	exec Executor,
	hooks Hooks,
	history *progress.History,
	log *logbook.Logbook,
	emit solver.EmitFunc,
	cancel *solver.CancelFlag,
) *Runner {
	if emit == nil {
		emit = func(progress.Event) {}
	}
	if cancel == nil {
		cancel = &solver.CancelFlag{}
	}
	if history == nil {
		history = progress.NewHistory()
	}
	return &Runner{
		cfg:     cfg,
		cache:   c,
		exec:    exec,
		hooks:   hooks,
		history: history,
		log:     log,
		emit:    emit,
		cancel:  cancel,
		clock:   time.Now,
	}
}

// RunUnit executes every phase of u that the cache cannot vouch for. force
// bypasses the cache entirely. The finished event is emitted in every exit
// path so the consumer always unblocks.
func (r *Runner) RunUnit(u unit.WorkUnit, params cache.Params, force bool) (err error) {
	defer func() {
		if errors.Is(err, ErrCancelled) {
			r.emit(progress.StopRequested())
		}
		r.emit(progress.Finished())
	}()

	if force {
		r.log.Infof("driver: override requested for %s, discarding container and record", u.ID)
		if err := r.cache.Override(u); err != nil {
			return err
		}
	}
	status, err := r.cache.Check(u, params)
	if err != nil {
		return err
	}
	var scheduled []unit.Phase
	for _, phase := range unit.Phases() {
		if !status.Done(phase) {
			scheduled = append(scheduled, phase)
		}
	}
	if len(scheduled) == 0 {
		r.log.Infof("driver: %s fully cached, nothing to do", u.ID)
		r.emit(progress.Status(u.ID + " is up to date"))
		r.emit(progress.Overall(overallScale, overallScale))
		return nil
	}

	estimator, err := progress.NewEstimator(scheduled, r.history)
	if err != nil {
		return err
	}
	r.log.Infof("driver: %s needs %d of %d phases", u.ID, len(scheduled), len(unit.Phases()))

	for _, phase := range scheduled {
		if r.cancel.Requested() {
			r.log.Infof("driver: stop observed before %s of %s", phase, u.ID)
			return ErrCancelled
		}
		r.emit(progress.Status(fmt.Sprintf("%s: %s", u.ID, phase)))
		r.emitOverall(estimator.WeightedProgress(phase, 0))

		started := r.clock()
		if err := r.runPhase(u, params, phase, estimator); err != nil {
			return err
		}
		if err := r.cache.Verify(u, phase); err != nil {
			return fmt.Errorf("driver: %s %s finished but deliverables failed verification: %w", u.ID, phase, err)
		}
		if err := r.cache.Commit(u, phase, params); err != nil {
			return err
		}
		elapsed := r.clock().Sub(started).Seconds()
		estimator.Record(string(phase), elapsed)
		r.emitOverall(estimator.WeightedProgress(phase, 1))
		r.log.Infof("driver: %s %s done in %.1fs", u.ID, phase, elapsed)
	}
	r.emit(progress.Status(u.ID + " complete"))
	return nil
}

func (r *Runner) runPhase(u unit.WorkUnit, params cache.Params, phase unit.Phase, estimator *progress.Estimator) error {
	switch phase {
	case unit.PhaseSetup:
		return r.animated(estimator, string(phase), fallbackSetupEstimate, func() error {
			return r.hooks.Setup(u, params)
		})
	case unit.PhaseRun:
		return r.runSolve(u, estimator)
	case unit.PhaseExtract:
		return r.animated(estimator, string(phase), fallbackExtractEstimate, func() error {
			return r.hooks.Extract(u)
		})
	}
	return fmt.Errorf("driver: unknown phase %q", phase)
}

// animated wraps a phase with no incremental feedback in a start/end
// animation pair parameterized by the phase's historical duration.
func (r *Runner) animated(estimator *progress.Estimator, name string, fallback float64, fn func() error) error {
	r.emit(progress.StartAnimation(estimator.Estimate(name, fallback), 1))
	err := fn()
	r.emit(progress.EndAnimation())
	return err
}

// runSolve hands the unit to the supervisor. Stage milestones from the
// solver also move the weighted overall bar.
func (r *Runner) runSolve(u unit.WorkUnit, estimator *progress.Estimator) error {
	input, err := r.hooks.InputArtifact(u)
	if err != nil {
		return err
	}
	cmd := solver.Command{
		Path: r.cfg.Solver.Path,
		Args: append(append([]string{}, r.cfg.Solver.Args...), input),
		Dir:  u.Dir,
	}
	emit := func(e progress.Event) {
		r.emit(e)
		if e.Kind == progress.KindStage {
			r.emitOverall(estimator.WeightedProgress(unit.PhaseRun, e.Fraction()))
		}
	}
	outcome, err := r.exec.Execute(cmd, emit)
	if err != nil {
		// Fatal environment failure: no retry can help, end the unit now.
		return err
	}
	switch outcome.Kind {
	case solver.OutcomeCancelled:
		r.log.Infof("driver: solve of %s cancelled after %d attempts", u.ID, outcome.Attempts)
		return ErrCancelled
	case solver.OutcomeSuccess:
		if outcome.Attempts > 1 {
			r.log.Warnf("driver: solve of %s needed %d attempts; %d errors recorded", u.ID, outcome.Attempts, len(outcome.Errors))
		}
		return nil
	}
	// Unreachable while retries are unbounded; kept for a future retry cap.
	return fmt.Errorf("driver: solve of %s failed after %d attempts", u.ID, outcome.Attempts)
}

func (r *Runner) emitOverall(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	r.emit(progress.Overall(int(fraction*overallScale), overallScale))
}
