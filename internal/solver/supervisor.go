// Package solver owns the external solver process's lifecycle: spawn,
// monitor, retry, cleanup, cancellation. The solver is opaque; the supervisor
// only sees its exit code and two output streams, which the parser turns into
// typed progress events and error summaries.
//
// The solver grows its footprint across repeated invocations within one host
// session, so the supervisor never reuses or pools processes: every attempt
// gets a fresh process that is fully torn down and reaped before the next one
// spawns, with a deliberate pause in between so the OS reclaims resources
// ahead of the next large allocation.
package solver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"fieldrun/internal/logbook"
	"fieldrun/internal/progress"
)

// State enumerates the supervisor's lifecycle for one attempt.
type State string

const (
	StateIdle       State = "idle"
	StateSpawned    State = "spawned"
	StateMonitoring State = "monitoring"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
	StateCleaned    State = "cleaned"
)

// ErrSolverMissing marks the fatal environment failure: the solver executable
// cannot be found at all. No retry can fix that.
var ErrSolverMissing = errors.New("solver executable not found")

// Command describes one solver invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
}

// OutcomeKind distinguishes the three terminal results of Execute.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeFailure   OutcomeKind = "failure"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// AttemptError is one attempt's error summary. Attempts are never deduped
// against each other: ten identical failures are ten entries.
type AttemptError struct {
	Attempt int
	Detail  string
}

// Outcome is the terminal result of Execute.
type Outcome struct {
	Kind     OutcomeKind
	Attempts int
	Errors   []AttemptError
}

// Config tunes polling, retry and teardown behavior.
type Config struct {
	// PollInterval is the liveness/cancellation polling cadence.
	PollInterval time.Duration
	// RespawnPause runs after cleanup, before the next attempt, so the OS
	// reclaims the dead solver's memory before the next large allocation.
	RespawnPause time.Duration
	// RetryStopGrace bounds the graceful wait when sweeping an attempt's
	// remnants on the retry path; FinalStopGrace bounds the wait when
	// stopping a live solver on cancellation. Kept separate on purpose.
	RetryStopGrace time.Duration
	FinalStopGrace time.Duration
	// WarnEvery surfaces a retry-count warning every N failed attempts so
	// unattended runs stay noticeable.
	WarnEvery int
}

// EmitFunc receives progress events as the supervisor observes them.
type EmitFunc func(progress.Event)

// Supervisor executes solver commands with indefinite retry.
type Supervisor struct {
	cfg      Config
	registry *Registry
	log      *logbook.Logbook
	cancel   *CancelFlag
	wake     *Waker
	sleep    func(time.Duration)
	state    State
}

// SupervisorOption customizes construction.
type SupervisorOption func(*Supervisor)

// WithSleep injects the inter-attempt sleep (tests use a recorder).
func WithSleep(sleep func(time.Duration)) SupervisorOption {
	return func(s *Supervisor) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithWaker overrides the keep-awake helper.
func WithWaker(w *Waker) SupervisorOption {
	return func(s *Supervisor) {
		if w != nil {
			s.wake = w
		}
	}
}

// New builds a Supervisor. registry and cancel are owned by the caller: the
// worker shares one registry across supervisors and wires cancel to its
// signal handler.
func New(cfg Config, registry *Registry, log *logbook.Logbook, cancel *CancelFlag, opts ...SupervisorOption) *Supervisor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.WarnEvery <= 0 {
		cfg.WarnEvery = 10
	}
	if cancel == nil {
		cancel = &CancelFlag{}
	}
	s := &Supervisor{
		cfg:      cfg,
		registry: registry,
		log:      log,
		cancel:   cancel,
		wake:     NewWaker(nil, log),
		sleep:    time.Sleep,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the most recent lifecycle state, for observability and tests.
func (s *Supervisor) State() State {
	return s.state
}

func (s *Supervisor) transition(to State) {
	s.state = to
}

// Execute runs cmd until it succeeds, is cancelled, or fails fatally.
// Non-zero exits retry indefinitely: each failed attempt is fully cleaned up,
// its error summaries accumulate on the outcome, and a fixed pause separates
// attempts. Only cancellation or a fatal environment failure breaks the loop.
func (s *Supervisor) Execute(cmd Command, emit EmitFunc) (Outcome, error) {
	if emit == nil {
		emit = func(progress.Event) {}
	}
	if _, err := exec.LookPath(cmd.Path); err != nil {
		return Outcome{Kind: OutcomeFailure}, fmt.Errorf("solver: %w: %s", ErrSolverMissing, cmd.Path)
	}
	s.wake.Invoke("before first attempt")

	var attemptErrors []AttemptError
	for attempt := 1; ; attempt++ {
		if s.cancel.Requested() {
			s.transition(StateCancelled)
			return Outcome{Kind: OutcomeCancelled, Attempts: attempt - 1, Errors: attemptErrors}, nil
		}
		res := s.runAttempt(attempt, cmd, emit)
		switch {
		case res.cancelled:
			s.transition(StateCancelled)
			return Outcome{Kind: OutcomeCancelled, Attempts: attempt, Errors: attemptErrors}, nil
		case res.exitErr == nil:
			s.transition(StateCompleted)
			return Outcome{Kind: OutcomeSuccess, Attempts: attempt, Errors: attemptErrors}, nil
		}
		for _, detail := range res.errorSummaries {
			attemptErrors = append(attemptErrors, AttemptError{Attempt: attempt, Detail: detail})
		}
		s.log.Warnf("solver: attempt %d failed: %v", attempt, res.exitErr)
		emit(progress.Status(fmt.Sprintf("solver attempt %d failed, retrying", attempt)))
		if attempt%s.cfg.WarnEvery == 0 {
			s.log.Errorf("solver: still failing after %d attempts", attempt)
			emit(progress.Status(fmt.Sprintf("warning: solver has failed %d attempts in a row", attempt)))
		}
		// Cleanup already happened inside runAttempt; the pause lets the OS
		// reclaim the dead solver's memory before we allocate again.
		s.sleep(s.cfg.RespawnPause)
	}
}

type attemptResult struct {
	cancelled      bool
	exitErr        error
	errorSummaries []string
}

type streamLine struct {
	source Stream
	text   string
}

func (s *Supervisor) runAttempt(attempt int, cmd Command, emit EmitFunc) attemptResult {
	parser := NewParser()
	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	configureSysProc(c)

	stdout, err := c.StdoutPipe()
	if err != nil {
		return attemptResult{exitErr: fmt.Errorf("solver: stdout pipe: %w", err)}
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return attemptResult{exitErr: fmt.Errorf("solver: stderr pipe: %w", err)}
	}

	if err := c.Start(); err != nil {
		return attemptResult{exitErr: fmt.Errorf("solver: spawn: %w", err)}
	}
	s.transition(StateSpawned)
	s.registry.Register(c.Process)
	s.log.Infof("solver: attempt %d spawned pid %d", attempt, c.Process.Pid)

	// One reader per stream; they block only on input and unblock when the
	// solver closes its handles.
	lines := make(chan streamLine, 256)
	var readers sync.WaitGroup
	readers.Add(2)
	go readStream(StreamStdout, stdout, lines, &readers)
	go readStream(StreamStderr, stderr, lines, &readers)
	go func() {
		readers.Wait()
		close(lines)
	}()

	// Wait only after both pipes hit EOF; Wait closes them.
	waitCh := make(chan error, 1)
	go func() {
		readers.Wait()
		waitCh <- c.Wait()
	}()

	var errsByStream [2][]string
	wakeRetried := attempt == 1
	handle := func(line streamLine) {
		classified := parser.Classify(line.source, line.text)
		switch classified.Class {
		case ClassMilestone:
			if !wakeRetried {
				wakeRetried = true
				s.wake.Invoke(fmt.Sprintf("first progress of attempt %d", attempt))
			}
			if classified.Total > 0 {
				emit(progress.Stage(classified.Stage, classified.Current, classified.Total))
			} else {
				emit(progress.Status(classified.Text))
			}
		case ClassError:
			errsByStream[classified.Source] = append(errsByStream[classified.Source], classified.Text)
			if parser.FirstSighting(classified) {
				s.log.Errorf("solver: %s", classified.Text)
				emit(progress.Status("solver error: " + classified.Text))
			}
		}
	}

	s.transition(StateMonitoring)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var exitErr error
	cancelled := false
monitor:
	for {
		select {
		case err := <-waitCh:
			exitErr = err
			break monitor
		case <-ticker.C:
			drainPending(lines, handle)
			if s.cancel.Requested() {
				cancelled = true
				exitErr = s.stop(c, waitCh, lines, handle, s.cfg.FinalStopGrace)
				break monitor
			}
		}
	}

	// Drain and classify whatever both streams still buffered.
	for line := range lines {
		handle(line)
	}

	// The process itself is reaped, but a failed solver can leave forked
	// children in its group. Give them the shorter retry-path grace, then
	// kill the group outright before the handle is discarded.
	if exitErr != nil && !cancelled {
		signalGracefully(c.Process)
		s.sleep(s.cfg.RetryStopGrace)
	}
	killHard(c.Process)
	s.registry.Unregister(c.Process.Pid)
	s.transition(StateCleaned)
	s.log.Infof("solver: attempt %d cleaned up (pid %d)", attempt, c.Process.Pid)

	if cancelled {
		return attemptResult{cancelled: true, exitErr: exitErr}
	}
	if exitErr == nil {
		return attemptResult{}
	}
	// Primary stream errors explain the failure; stderr is the fallback
	// diagnostic when stdout stayed clean.
	summaries := errsByStream[StreamStdout]
	if len(summaries) == 0 {
		summaries = errsByStream[StreamStderr]
	}
	if len(summaries) == 0 {
		summaries = []string{exitErr.Error()}
	}
	return attemptResult{exitErr: exitErr, errorSummaries: summaries}
}

// stop tears the attempt down: graceful signal, bounded wait, escalate to a
// hard kill of the process group, then wait for confirmed reaping. Stream
// lines keep draining throughout so blocked readers cannot stall the reap.
// The returned error is the exit error from Wait.
func (s *Supervisor) stop(c *exec.Cmd, waitCh <-chan error, lines <-chan streamLine, handle func(streamLine), grace time.Duration) error {
	signalGracefully(c.Process)
	timer := time.NewTimer(grace)
	defer timer.Stop()
	for {
		select {
		case err := <-waitCh:
			return err
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			handle(line)
		case <-timer.C:
			s.log.Warnf("solver: pid %d ignored graceful stop after %s, killing", c.Process.Pid, grace)
			killHard(c.Process)
		}
	}
}

func readStream(source Stream, r io.Reader, out chan<- streamLine, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- streamLine{source: source, text: scanner.Text()}
	}
}

func drainPending(lines <-chan streamLine, handle func(streamLine)) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			handle(line)
		default:
			return
		}
	}
}
