// Package cache decides whether a WorkUnit's phases may be skipped. The
// decision is grounded in two things: a fingerprint over the surgical
// parameter subset, and the actual deliverable files on disk. Stored flags
// are never trusted on their own — a phase counts as done only when its
// deliverables exist and are no older than the recorded setup completion.
package cache

import (
	"fmt"
	"os"
	"time"

	"fieldrun/internal/unit"
)

// PhaseStatus reports which phases of a WorkUnit may be skipped.
type PhaseStatus struct {
	SetupDone   bool
	RunDone     bool
	ExtractDone bool
}

// Done reports the flag for a named phase.
func (s PhaseStatus) Done(p unit.Phase) bool {
	switch p {
	case unit.PhaseSetup:
		return s.SetupDone
	case unit.PhaseRun:
		return s.RunDone
	case unit.PhaseExtract:
		return s.ExtractDone
	}
	return false
}

// Cache validates and updates per-unit phase state.
type Cache struct {
	clock func() time.Time
}

// Option customizes Cache construction.
type Option func(*Cache)

// WithClock injects a deterministic clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New constructs a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{clock: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check reports which phases of u are already done for the given surgical
// parameters. It is read-only and fail-safe: any ambiguity — unreadable
// record, missing file, corrupt or locked container — reports the affected
// phases as not done so they recompute. A fingerprint mismatch invalidates
// every phase regardless of what files are present.
func (c *Cache) Check(u unit.WorkUnit, params Params) (PhaseStatus, error) {
	if err := u.Validate(); err != nil {
		return PhaseStatus{}, err
	}
	fp, err := Fingerprint(params)
	if err != nil {
		return PhaseStatus{}, err
	}
	rec, err := loadRecord(u.RecordPath())
	if err != nil {
		// Unreadable metadata: recompute everything.
		return PhaseStatus{}, nil
	}
	if rec.Fingerprint == "" || rec.Fingerprint != fp {
		return PhaseStatus{}, nil
	}
	if !rec.SetupDone || rec.SetupAt.IsZero() {
		return PhaseStatus{}, nil
	}
	if err := verifyContainer(u.ContainerPath()); err != nil {
		return PhaseStatus{}, nil
	}
	status := PhaseStatus{SetupDone: true}
	if rec.RunDone && deliverablesFresh(deliverableGlobs(u, unit.PhaseRun), rec.SetupAt) {
		status.RunDone = true
	}
	// Extract depends on run output; without a valid run it is stale too.
	if status.RunDone && rec.ExtractDone && deliverablesFresh(deliverableGlobs(u, unit.PhaseExtract), rec.SetupAt) {
		status.ExtractDone = true
	}
	return status, nil
}

// Commit records that a phase of u completed for the given parameters. The
// caller verifies the phase's own deliverables before calling. Setup stamps
// the fingerprint and completion time and clears downstream flags; run and
// extract only flip their booleans. The write is atomic.
func (c *Cache) Commit(u unit.WorkUnit, phase unit.Phase, params Params) error {
	if !phase.Valid() {
		return fmt.Errorf("cache: unknown phase %q", phase)
	}
	rec, err := loadRecord(u.RecordPath())
	if err != nil {
		rec = Record{}
	}
	if phase == unit.PhaseSetup {
		fp, err := Fingerprint(params)
		if err != nil {
			return err
		}
		rec = Record{Fingerprint: fp}
	}
	rec.markDone(phase, c.clock())
	return saveRecord(u.RecordPath(), rec)
}

// Verify confirms a phase's own deliverables actually exist on disk, for the
// driver's post-phase re-validation before Commit. Setup is judged by the
// container; run and extract by their deliverable sets, no older than the
// recorded setup completion when one exists.
func (c *Cache) Verify(u unit.WorkUnit, phase unit.Phase) error {
	switch phase {
	case unit.PhaseSetup:
		return verifyContainer(u.ContainerPath())
	case unit.PhaseRun, unit.PhaseExtract:
		rec, err := loadRecord(u.RecordPath())
		if err != nil {
			return err
		}
		if !deliverablesFresh(deliverableGlobs(u, phase), rec.SetupAt) {
			return fmt.Errorf("cache: %s deliverables missing or stale for %s", phase, u.ID)
		}
		return nil
	}
	return fmt.Errorf("cache: unknown phase %q", phase)
}

// Override bypasses the cache entirely: it deletes the container and the
// metadata record so every phase runs clean.
func (c *Cache) Override(u unit.WorkUnit) error {
	if err := os.Remove(u.ContainerPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: remove container: %w", err)
	}
	if err := os.Remove(u.RecordPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: remove record: %w", err)
	}
	return nil
}
