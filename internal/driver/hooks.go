package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"fieldrun/internal/cache"
	"fieldrun/internal/unit"
)

// DefaultHooks are the built-in collaborators. Setup materializes the unit's
// container from the surgical parameters (scene and grid construction proper
// is the external engine's job; what must land on disk here is the container
// the solver consumes). Extract writes the summary from whatever archives the
// solver exported. The run archives themselves (`*_Input.h5`, `*_Output.h5`)
// are solver products; nothing here fabricates them.
func DefaultHooks() Hooks {
	return Hooks{
		Setup:         setupUnit,
		InputArtifact: containerArtifact,
		Extract:       extractSummary,
	}
}

type containerDoc struct {
	SceneID string         `yaml:"scene_id"`
	Unit    string         `yaml:"unit"`
	Params  map[string]any `yaml:"params"`
	BuiltAt time.Time      `yaml:"built_at"`
}

// setupUnit (re)creates the container. A corrupt or locked leftover is
// discarded and rebuilt, never repaired in place.
func setupUnit(u unit.WorkUnit, params cache.Params) error {
	if err := os.MkdirAll(u.ResultsDir(), 0o755); err != nil {
		return fmt.Errorf("driver: create unit dirs: %w", err)
	}
	if err := os.Remove(u.ContainerPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("driver: discard stale container: %w", err)
	}
	doc := containerDoc{
		SceneID: uuid.NewString(),
		Unit:    u.ID,
		Params:  params,
		BuiltAt: time.Now().UTC(),
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("driver: marshal container: %w", err)
	}
	if err := os.WriteFile(u.ContainerPath(), data, 0o644); err != nil {
		return fmt.Errorf("driver: write container: %w", err)
	}
	return nil
}

func containerArtifact(u unit.WorkUnit) (string, error) {
	if _, err := os.Stat(u.ContainerPath()); err != nil {
		return "", fmt.Errorf("driver: container missing for %s: %w", u.ID, err)
	}
	return u.ContainerPath(), nil
}

type summaryDoc struct {
	Unit        string         `yaml:"unit"`
	Outputs     []summaryEntry `yaml:"outputs"`
	ExtractedAt time.Time      `yaml:"extracted_at"`
}

type summaryEntry struct {
	Path     string    `yaml:"path"`
	Bytes    int64     `yaml:"bytes"`
	Modified time.Time `yaml:"modified"`
}

// extractSummary records the solver's exported archives in the unit summary.
func extractSummary(u unit.WorkUnit) error {
	matches, err := filepath.Glob(u.OutputGlob())
	if err != nil {
		return fmt.Errorf("driver: scan outputs: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("driver: no output archives to extract for %s", u.ID)
	}
	doc := summaryDoc{Unit: u.ID, ExtractedAt: time.Now().UTC()}
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("driver: stat output: %w", err)
		}
		doc.Outputs = append(doc.Outputs, summaryEntry{
			Path:     filepath.Base(path),
			Bytes:    info.Size(),
			Modified: info.ModTime().UTC(),
		})
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("driver: marshal summary: %w", err)
	}
	if err := os.MkdirAll(u.ResultsDir(), 0o755); err != nil {
		return fmt.Errorf("driver: create results dir: %w", err)
	}
	if err := os.WriteFile(u.SummaryPath(), data, 0o644); err != nil {
		return fmt.Errorf("driver: write summary: %w", err)
	}
	return nil
}
