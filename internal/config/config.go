// internal/config/config.go
//
// This package handles the bench configuration file and the .fieldrun
// directory structure. Every bench directory gets a .fieldrun/ folder holding
// logs and persisted state (estimate history, metadata lives per unit).

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fieldrun/internal/unit"
)

const (
	// StateDirName is the directory created inside each bench dir.
	StateDirName = ".fieldrun"

	defaultPollInterval   = 100 * time.Millisecond
	defaultRespawnPause   = 2 * time.Second
	defaultRetryStopGrace = 3 * time.Second
	defaultFinalStopGrace = 10 * time.Second
	defaultWarnEvery      = 10
)

// Duration wraps time.Duration with YAML string parsing ("100ms", "3s").
type Duration time.Duration

// UnmarshalYAML parses Go duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders Go duration syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std converts to time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SolverConfig locates the external solver and its helpers.
type SolverConfig struct {
	// Path is the solver executable.
	Path string `yaml:"path"`
	// Args are fixed arguments placed before the generated input artifact.
	Args []string `yaml:"args,omitempty"`
	// KeepAwake optionally overrides the keep-system-awake helper command.
	KeepAwake []string `yaml:"keep_awake,omitempty"`
}

// SupervisionConfig tunes the supervisor's polling, retry and teardown
// behavior. RetryStopGrace and FinalStopGrace are deliberately separate: the
// retry path sweeps remnants of an already-dead attempt, final cleanup may
// have to stop a live solver.
type SupervisionConfig struct {
	PollInterval   Duration `yaml:"poll_interval"`
	RespawnPause   Duration `yaml:"respawn_pause"`
	RetryStopGrace Duration `yaml:"retry_stop_grace"`
	FinalStopGrace Duration `yaml:"final_stop_grace"`
	// WarnEvery emits a visible retry warning every N failed attempts.
	WarnEvery int `yaml:"warn_every"`
}

// UnitConfig declares one WorkUnit of the bench.
type UnitConfig struct {
	Subject string         `yaml:"subject"`
	Variant string         `yaml:"variant,omitempty"`
	Params  map[string]any `yaml:"params,omitempty"`
}

// Config is the parsed bench file plus derived paths.
type Config struct {
	Solver      SolverConfig      `yaml:"solver"`
	Supervision SupervisionConfig `yaml:"supervision"`
	Units       []UnitConfig      `yaml:"units"`

	// BenchDir is the directory holding unit artifacts and .fieldrun state.
	BenchDir string `yaml:"-"`
}

// Load reads and validates the bench file at path. Unit artifacts live under
// the bench file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read bench file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse bench file: %w", err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config: resolve bench dir: %w", err)
	}
	cfg.BenchDir = abs
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Supervision.PollInterval <= 0 {
		c.Supervision.PollInterval = Duration(defaultPollInterval)
	}
	if c.Supervision.RespawnPause <= 0 {
		c.Supervision.RespawnPause = Duration(defaultRespawnPause)
	}
	if c.Supervision.RetryStopGrace <= 0 {
		c.Supervision.RetryStopGrace = Duration(defaultRetryStopGrace)
	}
	if c.Supervision.FinalStopGrace <= 0 {
		c.Supervision.FinalStopGrace = Duration(defaultFinalStopGrace)
	}
	if c.Supervision.WarnEvery <= 0 {
		c.Supervision.WarnEvery = defaultWarnEvery
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Solver.Path) == "" {
		return fmt.Errorf("config: solver.path is required")
	}
	if len(c.Units) == 0 {
		return fmt.Errorf("config: at least one unit is required")
	}
	seen := map[string]struct{}{}
	for i, u := range c.Units {
		if strings.TrimSpace(u.Subject) == "" {
			return fmt.Errorf("config: units[%d]: subject is required", i)
		}
		wu := unit.New(c.BenchDir, u.Subject, u.Variant)
		if _, dup := seen[wu.ID]; dup {
			return fmt.Errorf("config: duplicate unit %q", wu.ID)
		}
		seen[wu.ID] = struct{}{}
	}
	return nil
}

// WorkUnits materializes the configured units with their directories.
func (c *Config) WorkUnits() []unit.WorkUnit {
	units := make([]unit.WorkUnit, 0, len(c.Units))
	for _, u := range c.Units {
		units = append(units, unit.New(c.BenchDir, u.Subject, u.Variant))
	}
	return units
}

// UnitParams returns the surgical parameter subset for a unit ID.
func (c *Config) UnitParams(id string) (map[string]any, bool) {
	for _, u := range c.Units {
		if unit.New(c.BenchDir, u.Subject, u.Variant).ID == id {
			return u.Params, true
		}
	}
	return nil, false
}

// StateDir is BenchDir/.fieldrun.
func (c *Config) StateDir() string {
	return filepath.Join(c.BenchDir, StateDirName)
}

// LogPath is the logbook location.
func (c *Config) LogPath() string {
	return filepath.Join(c.StateDir(), "logs", "fieldrun.log")
}

// HistoryPath is the persisted estimate history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StateDir(), "state", "estimates.yaml")
}

// InitStateDir creates the .fieldrun directory structure:
//
//	.fieldrun/
//	├── logs/   <- logbook
//	└── state/  <- estimate history
func (c *Config) InitStateDir() error {
	dirs := []string{
		filepath.Join(c.StateDir(), "logs"),
		filepath.Join(c.StateDir(), "state"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create state dir: %w", err)
		}
	}
	return nil
}
