package progress

import "testing"

func TestQueuePreservesEmissionOrder(t *testing.T) {
	q := NewQueue()
	q.Emit(Status("meshing"))
	q.Emit(Stage("time steps", 3, 10))
	q.Emit(Overall(450, 1000))

	events := q.Drain()
	if len(events) != 3 {
		t.Fatalf("drained %d events, want 3", len(events))
	}
	wantKinds := []Kind{KindStatus, KindStage, KindOverall}
	for i, e := range events {
		if e.Kind != wantKinds[i] {
			t.Errorf("event %d kind = %s, want %s", i, e.Kind, wantKinds[i])
		}
		if e.Seq != int64(i+1) {
			t.Errorf("event %d seq = %d, want %d", i, e.Seq, i+1)
		}
	}
}

func TestQueueDrainEmpties(t *testing.T) {
	q := NewQueue()
	q.Emit(Status("one"))
	if got := q.Drain(); len(got) != 1 {
		t.Fatalf("first drain returned %d events, want 1", len(got))
	}
	if got := q.Drain(); got != nil {
		t.Fatalf("second drain returned %d events, want none", len(got))
	}
	if q.Pending() != 0 {
		t.Fatalf("pending = %d after drain, want 0", q.Pending())
	}
}

func TestQueueSequenceSurvivesDrains(t *testing.T) {
	q := NewQueue()
	q.Emit(Status("a"))
	q.Drain()
	q.Emit(Status("b"))
	events := q.Drain()
	if len(events) != 1 || events[0].Seq != 2 {
		t.Fatalf("sequence should keep counting across drains, got %+v", events)
	}
}

func TestQueueClosedDropsEmits(t *testing.T) {
	q := NewQueue()
	q.Emit(Status("before"))
	q.Close()
	q.Emit(Status("after"))
	events := q.Drain()
	if len(events) != 1 || events[0].Message != "before" {
		t.Fatalf("close should drop later emits but keep pending, got %+v", events)
	}
}
