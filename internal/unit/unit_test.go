package unit

import (
	"path/filepath"
	"testing"
)

func TestNewDerivesIDAndDir(t *testing.T) {
	u := New("/bench", "phantom", "coarse")
	if u.ID != "phantom-coarse" {
		t.Fatalf("ID = %s", u.ID)
	}
	if u.Dir != filepath.Join("/bench", "phantom-coarse") {
		t.Fatalf("Dir = %s", u.Dir)
	}

	bare := New("/bench", "antenna", "")
	if bare.ID != "antenna" {
		t.Fatalf("ID without variant = %s", bare.ID)
	}
}

func TestPathsHangOffDir(t *testing.T) {
	u := New("/bench", "phantom", "coarse")
	if u.RecordPath() != filepath.Join("/bench", "phantom-coarse")+".meta.yaml" {
		t.Errorf("record path = %s", u.RecordPath())
	}
	if u.ContainerPath() != filepath.Join(u.Dir, "phantom-coarse.sproj") {
		t.Errorf("container path = %s", u.ContainerPath())
	}
	if u.SummaryPath() != filepath.Join(u.Dir, "results", "phantom-coarse_summary.yaml") {
		t.Errorf("summary path = %s", u.SummaryPath())
	}
}

func TestValidate(t *testing.T) {
	if err := New("/bench", "phantom", "").Validate(); err != nil {
		t.Fatalf("valid unit rejected: %v", err)
	}
	if err := (WorkUnit{}).Validate(); err == nil {
		t.Fatal("empty unit accepted")
	}
}

func TestPhaseValid(t *testing.T) {
	for _, p := range Phases() {
		if !p.Valid() {
			t.Errorf("%s reported invalid", p)
		}
	}
	if Phase("teardown").Valid() {
		t.Error("unknown phase reported valid")
	}
}
