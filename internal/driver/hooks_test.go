package driver

import (
	"os"
	"strings"
	"testing"

	"fieldrun/internal/cache"
	"fieldrun/internal/unit"
)

func TestSetupUnitBuildsContainer(t *testing.T) {
	u := unit.New(t.TempDir(), "phantom", "coarse")
	params := cache.Params{"frequency_hz": 2.45e9}
	if err := setupUnit(u, params); err != nil {
		t.Fatalf("setup: %v", err)
	}
	data, err := os.ReadFile(u.ContainerPath())
	if err != nil {
		t.Fatalf("container missing: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "scene_id:") || !strings.Contains(text, "phantom-coarse") {
		t.Fatalf("container content unexpected:\n%s", text)
	}
	if _, err := os.Stat(u.ResultsDir()); err != nil {
		t.Fatalf("results dir missing: %v", err)
	}
}

func TestSetupUnitReplacesStaleContainer(t *testing.T) {
	u := unit.New(t.TempDir(), "phantom", "")
	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(u.ContainerPath(), []byte("corrupt leftovers"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := setupUnit(u, cache.Params{}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	data, err := os.ReadFile(u.ContainerPath())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "corrupt leftovers") {
		t.Fatal("stale container was not replaced")
	}
}

func TestSetupUnitFreshSceneIDEachBuild(t *testing.T) {
	u := unit.New(t.TempDir(), "phantom", "")
	if err := setupUnit(u, cache.Params{}); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(u.ContainerPath())
	if err := setupUnit(u, cache.Params{}); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(u.ContainerPath())
	if string(first) == string(second) {
		t.Fatal("rebuilt container should carry a fresh scene id")
	}
}

func TestContainerArtifactRequiresContainer(t *testing.T) {
	u := unit.New(t.TempDir(), "phantom", "")
	if _, err := containerArtifact(u); err == nil {
		t.Fatal("expected error for missing container")
	}
	if err := setupUnit(u, cache.Params{}); err != nil {
		t.Fatal(err)
	}
	path, err := containerArtifact(u)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if path != u.ContainerPath() {
		t.Fatalf("artifact path = %s", path)
	}
}

func TestExtractSummaryRequiresOutputs(t *testing.T) {
	u := unit.New(t.TempDir(), "phantom", "")
	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := extractSummary(u); err == nil {
		t.Fatal("expected error with no output archives")
	}

	if err := os.WriteFile(u.Dir+"/cafe_Output.h5", []byte("h5"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := extractSummary(u); err != nil {
		t.Fatalf("extract: %v", err)
	}
	data, err := os.ReadFile(u.SummaryPath())
	if err != nil {
		t.Fatalf("summary missing: %v", err)
	}
	if !strings.Contains(string(data), "cafe_Output.h5") {
		t.Fatalf("summary does not list the archive:\n%s", string(data))
	}
}
