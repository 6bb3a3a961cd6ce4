// Package progress carries typed progress events from the worker process to
// the presentation layer and owns the duration bookkeeping behind them: phase
// weights, weighted overall progress, and the persisted estimate history that
// seeds animations for phases with no incremental feedback.
package progress

import (
	"fmt"
)

// Kind discriminates the closed set of event variants. The consumer matches
// exhaustively; decode rejects kinds outside this set.
type Kind string

const (
	KindStatus         Kind = "status"
	KindOverall        Kind = "overall_progress"
	KindStage          Kind = "stage_progress"
	KindStartAnimation Kind = "start_animation"
	KindEndAnimation   Kind = "end_animation"
	KindStop           Kind = "stop"
	KindFinished       Kind = "finished"
)

// knownKinds is the closed variant set.
var knownKinds = map[Kind]struct{}{
	KindStatus:         {},
	KindOverall:        {},
	KindStage:          {},
	KindStartAnimation: {},
	KindEndAnimation:   {},
	KindStop:           {},
	KindFinished:       {},
}

// Event is one immutable message on the channel. Which fields are meaningful
// depends on Kind; construct events through the per-kind constructors so
// unused fields stay zero.
type Event struct {
	Kind    Kind   `json:"kind"`
	Seq     int64  `json:"seq,omitempty"`
	Message string `json:"message,omitempty"`
	Name    string `json:"name,omitempty"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
	// EstimateSeconds and EndValue parameterize start_animation.
	EstimateSeconds float64 `json:"estimate,omitempty"`
	EndValue        float64 `json:"end_value,omitempty"`
}

// Status reports a human-readable status line.
func Status(message string) Event {
	return Event{Kind: KindStatus, Message: message}
}

// Overall reports authoritative overall progress.
func Overall(current, total int) Event {
	return Event{Kind: KindOverall, Current: current, Total: total}
}

// Stage reports progress within a named stage.
func Stage(name string, current, total int) Event {
	return Event{Kind: KindStage, Name: name, Current: current, Total: total}
}

// StartAnimation asks the consumer to extrapolate stage progress locally from
// zero to endValue over the estimated duration.
func StartAnimation(estimateSeconds, endValue float64) Event {
	return Event{Kind: KindStartAnimation, EstimateSeconds: estimateSeconds, EndValue: endValue}
}

// EndAnimation snaps any running animation to its true final value.
func EndAnimation() Event {
	return Event{Kind: KindEndAnimation}
}

// StopRequested tells the consumer the worker observed a cancellation.
func StopRequested() Event {
	return Event{Kind: KindStop}
}

// Finished marks the end of the event stream for a unit.
func Finished() Event {
	return Event{Kind: KindFinished}
}

// Validate enforces the closed variant set and per-kind field requirements.
func (e Event) Validate() error {
	if _, ok := knownKinds[e.Kind]; !ok {
		return fmt.Errorf("progress: unknown event kind %q", e.Kind)
	}
	switch e.Kind {
	case KindOverall, KindStage:
		if e.Total <= 0 {
			return fmt.Errorf("progress: %s requires total > 0", e.Kind)
		}
	case KindStartAnimation:
		if e.EstimateSeconds <= 0 {
			return fmt.Errorf("progress: start_animation requires a positive estimate")
		}
	}
	return nil
}

// Fraction converts a current/total pair to a clamped fraction.
func (e Event) Fraction() float64 {
	if e.Total <= 0 {
		return 0
	}
	f := float64(e.Current) / float64(e.Total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
