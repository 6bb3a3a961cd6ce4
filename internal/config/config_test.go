package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeBench(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalBench = `
solver:
  path: /opt/emsolve/bin/emsolve
units:
  - subject: phantom
    variant: coarse
    params:
      frequency_hz: 2.45e9
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeBench(t, minimalBench))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Supervision.PollInterval.Std() != 100*time.Millisecond {
		t.Errorf("poll interval = %s", cfg.Supervision.PollInterval.Std())
	}
	if cfg.Supervision.RespawnPause.Std() != 2*time.Second {
		t.Errorf("respawn pause = %s", cfg.Supervision.RespawnPause.Std())
	}
	if cfg.Supervision.RetryStopGrace.Std() != 3*time.Second {
		t.Errorf("retry stop grace = %s", cfg.Supervision.RetryStopGrace.Std())
	}
	if cfg.Supervision.FinalStopGrace.Std() != 10*time.Second {
		t.Errorf("final stop grace = %s", cfg.Supervision.FinalStopGrace.Std())
	}
	if cfg.Supervision.WarnEvery != 10 {
		t.Errorf("warn every = %d", cfg.Supervision.WarnEvery)
	}
}

func TestLoadParsesSupervisionOverrides(t *testing.T) {
	cfg, err := Load(writeBench(t, `
solver:
  path: emsolve
  args: ["--threads", "8"]
  keep_awake: ["caffeinate", "-u", "-t", "1"]
supervision:
  poll_interval: 250ms
  respawn_pause: 5s
  retry_stop_grace: 1s
  final_stop_grace: 30s
  warn_every: 3
units:
  - subject: phantom
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Supervision.PollInterval.Std() != 250*time.Millisecond {
		t.Errorf("poll interval = %s", cfg.Supervision.PollInterval.Std())
	}
	if cfg.Supervision.RespawnPause.Std() != 5*time.Second {
		t.Errorf("respawn pause = %s", cfg.Supervision.RespawnPause.Std())
	}
	if cfg.Supervision.WarnEvery != 3 {
		t.Errorf("warn every = %d", cfg.Supervision.WarnEvery)
	}
	if len(cfg.Solver.Args) != 2 || cfg.Solver.Args[0] != "--threads" {
		t.Errorf("solver args = %v", cfg.Solver.Args)
	}
	if len(cfg.Solver.KeepAwake) != 4 {
		t.Errorf("keep awake = %v", cfg.Solver.KeepAwake)
	}
}

func TestLoadRejectsMissingSolverPath(t *testing.T) {
	_, err := Load(writeBench(t, `
units:
  - subject: phantom
`))
	if err == nil || !strings.Contains(err.Error(), "solver.path") {
		t.Fatalf("err = %v, want solver.path complaint", err)
	}
}

func TestLoadRejectsNoUnits(t *testing.T) {
	_, err := Load(writeBench(t, `
solver:
  path: emsolve
`))
	if err == nil || !strings.Contains(err.Error(), "unit") {
		t.Fatalf("err = %v, want unit complaint", err)
	}
}

func TestLoadRejectsDuplicateUnits(t *testing.T) {
	_, err := Load(writeBench(t, `
solver:
  path: emsolve
units:
  - subject: phantom
    variant: coarse
  - subject: phantom
    variant: coarse
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("err = %v, want duplicate complaint", err)
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	_, err := Load(writeBench(t, `
solver:
  path: emsolve
supervision:
  poll_interval: quickly
units:
  - subject: phantom
`))
	if err == nil || !strings.Contains(err.Error(), "duration") {
		t.Fatalf("err = %v, want duration complaint", err)
	}
}

func TestWorkUnitsAndParams(t *testing.T) {
	cfg, err := Load(writeBench(t, `
solver:
  path: emsolve
units:
  - subject: phantom
    variant: coarse
    params:
      frequency_hz: 2.45e9
  - subject: antenna
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	units := cfg.WorkUnits()
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if units[0].ID != "phantom-coarse" || units[1].ID != "antenna" {
		t.Fatalf("unit IDs = %s, %s", units[0].ID, units[1].ID)
	}
	if units[0].Dir != filepath.Join(cfg.BenchDir, "phantom-coarse") {
		t.Fatalf("unit dir = %s", units[0].Dir)
	}

	params, ok := cfg.UnitParams("phantom-coarse")
	if !ok || params["frequency_hz"] == nil {
		t.Fatalf("params for phantom-coarse = %v (ok=%v)", params, ok)
	}
	if _, ok := cfg.UnitParams("missing"); ok {
		t.Fatal("unknown unit should not resolve")
	}
}

func TestStatePaths(t *testing.T) {
	cfg, err := Load(writeBench(t, minimalBench))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir() != filepath.Join(cfg.BenchDir, StateDirName) {
		t.Fatalf("state dir = %s", cfg.StateDir())
	}
	if err := cfg.InitStateDir(); err != nil {
		t.Fatalf("init state dir: %v", err)
	}
	for _, path := range []string{
		filepath.Dir(cfg.LogPath()),
		filepath.Dir(cfg.HistoryPath()),
	} {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Errorf("state subdir %s missing: %v", path, err)
		}
	}
}
