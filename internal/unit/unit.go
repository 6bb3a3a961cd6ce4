// Package unit models the irreducible pieces of work a bench run is made of.
//
// A WorkUnit is one independently cacheable solve: a subject, the parameter
// set that applies to it, and a variant label. Everything the solver produces
// for a unit lives under the unit's artifact directory; the metadata record
// the cache maintains lives beside that directory so wiping the directory
// wipes the artifacts but keeps the record inspectable.
package unit

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Phase is one of the sequential stages applied to a WorkUnit.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhaseRun     Phase = "run"
	PhaseExtract Phase = "extract"
)

// Phases returns the stages in execution order.
func Phases() []Phase {
	return []Phase{PhaseSetup, PhaseRun, PhaseExtract}
}

// Valid reports whether p names a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseSetup, PhaseRun, PhaseExtract:
		return true
	}
	return false
}

// WorkUnit identifies one solve and where its artifacts live.
type WorkUnit struct {
	// ID is the stable identifier, unique within a bench.
	ID string
	// Subject names what is being solved.
	Subject string
	// Variant distinguishes parameterizations of the same subject.
	Variant string
	// Dir is the artifact directory for this unit.
	Dir string
}

// New derives a WorkUnit with its canonical ID and directory under benchDir.
func New(benchDir, subject, variant string) WorkUnit {
	id := subject
	if variant != "" {
		id = subject + "-" + variant
	}
	return WorkUnit{
		ID:      id,
		Subject: subject,
		Variant: variant,
		Dir:     filepath.Join(benchDir, id),
	}
}

// Validate checks the unit is usable.
func (u WorkUnit) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("unit: id is required")
	}
	if strings.TrimSpace(u.Dir) == "" {
		return fmt.Errorf("unit %s: artifact dir is required", u.ID)
	}
	return nil
}

// RecordPath is where the unit's metadata record lives: a sibling of the
// artifact directory, so it survives an artifact wipe and stays visible in
// directory listings next to the unit it describes.
func (u WorkUnit) RecordPath() string {
	return u.Dir + ".meta.yaml"
}

// ContainerPath is the persisted solver container for this unit.
func (u WorkUnit) ContainerPath() string {
	return filepath.Join(u.Dir, u.ID+".sproj")
}

// ResultsDir holds extracted summaries.
func (u WorkUnit) ResultsDir() string {
	return filepath.Join(u.Dir, "results")
}

// SummaryPath is the extract phase's deliverable.
func (u WorkUnit) SummaryPath() string {
	return filepath.Join(u.ResultsDir(), u.ID+"_summary.yaml")
}

// InputGlob and OutputGlob match the solver's run deliverables. The solver
// prefixes archives with an identifier we cannot predict, so the cache matches
// on the suffix alone.
func (u WorkUnit) InputGlob() string {
	return filepath.Join(u.Dir, "*_Input.h5")
}

func (u WorkUnit) OutputGlob() string {
	return filepath.Join(u.Dir, "*_Output.h5")
}
