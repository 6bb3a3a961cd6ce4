package cache

import (
	"os"
	"path/filepath"
	"time"

	"fieldrun/internal/unit"
)

// deliverableGlobs lists the files that prove a phase actually completed.
// Setup proves itself through the container (validated separately), so only
// run and extract carry globs here.
func deliverableGlobs(u unit.WorkUnit, phase unit.Phase) []string {
	switch phase {
	case unit.PhaseRun:
		return []string{u.InputGlob(), u.OutputGlob()}
	case unit.PhaseExtract:
		return []string{u.SummaryPath()}
	}
	return nil
}

// deliverablesFresh reports whether every glob matches at least one file and
// no matched file predates notBefore. Any stat or glob failure counts as
// stale: the cache never reuses what it cannot verify.
func deliverablesFresh(globs []string, notBefore time.Time) bool {
	for _, pattern := range globs {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			return false
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				return false
			}
			if info.ModTime().Before(notBefore) {
				return false
			}
		}
	}
	return true
}
