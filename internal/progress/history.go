package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// SubtaskEstimate is one persisted running average.
type SubtaskEstimate struct {
	MeanSeconds float64 `yaml:"mean_seconds"`
	Samples     int     `yaml:"samples"`
}

// History holds per-subtask duration averages, read at startup and rewritten
// at session end.
type History struct {
	mu        sync.Mutex
	estimates map[string]SubtaskEstimate
}

// NewHistory constructs an empty history.
func NewHistory() *History {
	return &History{estimates: map[string]SubtaskEstimate{}}
}

// LoadHistory reads the estimate file. A missing file yields an empty
// history; a corrupt one is an error so the caller can decide to start fresh
// loudly rather than silently.
func LoadHistory(path string) (*History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewHistory(), nil
		}
		return nil, fmt.Errorf("progress: read estimate history: %w", err)
	}
	estimates := map[string]SubtaskEstimate{}
	if err := yaml.Unmarshal(data, &estimates); err != nil {
		return nil, fmt.Errorf("progress: parse estimate history: %w", err)
	}
	return &History{estimates: estimates}, nil
}

// Save rewrites the estimate file.
func (h *History) Save(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, err := yaml.Marshal(h.estimates)
	if err != nil {
		return fmt.Errorf("progress: marshal estimate history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("progress: ensure state dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("progress: write estimate history: %w", err)
	}
	return nil
}

// Mean returns the stored average for a subtask.
func (h *History) Mean(name string) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	est, ok := h.estimates[name]
	if !ok || est.Samples <= 0 {
		return 0, false
	}
	return est.MeanSeconds, true
}

// Record folds one observation into the running average.
func (h *History) Record(name string, seconds float64) {
	if seconds < 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	est := h.estimates[name]
	n := float64(est.Samples)
	est.MeanSeconds = (est.MeanSeconds*n + seconds) / (n + 1)
	est.Samples++
	h.estimates[name] = est
}
