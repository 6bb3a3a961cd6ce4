package logbook

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestTailReturnsRecentLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldrun.log")
	book, err := Open(path)
	if err != nil {
		t.Fatalf("open logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Infof("entry-%d", i)
	}
	lines := book.Tail(3)
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestLevelsAppearInEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldrun.log")
	book, err := Open(path)
	if err != nil {
		t.Fatalf("open logbook: %v", err)
	}
	book.Warnf("solver attempt %d failed", 2)
	book.Errorf("container corrupt")
	lines := book.Tail(10)
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "WARN") {
		t.Fatalf("first line missing WARN: %q", lines[0])
	}
	if !strings.Contains(lines[1], "ERROR") {
		t.Fatalf("second line missing ERROR: %q", lines[1])
	}
}

func TestNilLogbookIsInert(t *testing.T) {
	var book *Logbook
	book.Infof("nothing happens")
	if got := book.Tail(5); got != nil {
		t.Fatalf("expected nil tail, got %v", got)
	}
}
