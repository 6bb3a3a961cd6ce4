package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"fieldrun/internal/unit"
)

// Record is the metadata persisted beside a WorkUnit's artifacts: the
// fingerprint at last successful setup, per-phase completion flags, and the
// setup-completion timestamp. It is YAML so an operator can read and, if
// need be, delete it by hand.
type Record struct {
	Fingerprint string    `yaml:"fingerprint"`
	SetupDone   bool      `yaml:"setup_done"`
	RunDone     bool      `yaml:"run_done"`
	ExtractDone bool      `yaml:"extract_done"`
	SetupAt     time.Time `yaml:"setup_completed_at"`
}

// PhaseDone reports the stored flag for a phase.
func (r Record) PhaseDone(p unit.Phase) bool {
	switch p {
	case unit.PhaseSetup:
		return r.SetupDone
	case unit.PhaseRun:
		return r.RunDone
	case unit.PhaseExtract:
		return r.ExtractDone
	}
	return false
}

func (r *Record) markDone(p unit.Phase, now time.Time) {
	switch p {
	case unit.PhaseSetup:
		r.SetupDone = true
		r.SetupAt = now
	case unit.PhaseRun:
		r.RunDone = true
	case unit.PhaseExtract:
		r.ExtractDone = true
	}
}

// loadRecord reads the record at path. A missing file yields a zero record;
// an unreadable or unparsable file is an error the caller treats as "nothing
// is done".
func loadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("cache: read record: %w", err)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("cache: parse record: %w", err)
	}
	return rec, nil
}

// saveRecord writes the record atomically: serialize to a temp file in the
// same directory, then rename into place. A crash mid-write leaves either the
// previous record or none, never a half-written one.
func saveRecord(path string, rec Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: marshal record: %w", err)
	}
	return writeFileAtomic(path, data, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: ensure record dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
