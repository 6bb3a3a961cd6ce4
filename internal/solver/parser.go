package solver

import (
	"regexp"
	"strconv"
	"strings"
)

// LineClass is the classification of one solver output line.
type LineClass int

const (
	ClassNoise LineClass = iota
	ClassMilestone
	ClassError
)

// Stream identifies which of the solver's two output streams a line came from.
type Stream int

const (
	StreamStdout Stream = iota
	StreamStderr
)

// Classified is the parser's verdict on one line. Milestones may carry a
// stage name and a current/total pair when the line exposes one.
type Classified struct {
	Class   LineClass
	Source  Stream
	Stage   string
	Current int
	Total   int
	Text    string
}

var (
	timestepPattern = regexp.MustCompile(`(?i)\btime\s*step[:\s]+(\d+)\s*(?:/|of)\s*(\d+)`)
	errorPattern    = regexp.MustCompile(`(?i)\b(error|fatal|exception|aborted|failed)\b`)
	noErrorPattern  = regexp.MustCompile(`(?i)\b(?:0|no)\s+errors?\b`)
)

// milestoneMarkers map line prefixes to stage names. Lines matching a marker
// are progress hints, not errors, even when they mention scary words.
var milestoneMarkers = []struct {
	prefix string
	stage  string
}{
	{"Creating mesh", "mesh"},
	{"Building operator", "operator"},
	{"Starting solver", "solve"},
	{"Running simulation", "solve"},
	{"Excitation", "excite"},
	{"Writing field dumps", "dump"},
	{"Simulation finished", "solve"},
}

// Parser classifies solver output lines and deduplicates error logging for
// one attempt. The seen-set spans the live monitoring phase and the
// post-exit drain, so an error flushed twice still logs once. Each attempt
// gets a fresh parser: retries never dedupe against each other.
type Parser struct {
	seenErrors map[string]struct{}
}

// NewParser constructs a parser for one attempt.
func NewParser() *Parser {
	return &Parser{seenErrors: map[string]struct{}{}}
}

// Classify maps one line to milestone, error, or noise.
func (p *Parser) Classify(source Stream, line string) Classified {
	text := strings.TrimSpace(line)
	if text == "" {
		return Classified{Class: ClassNoise, Source: source}
	}
	if m := timestepPattern.FindStringSubmatch(text); m != nil {
		current, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		return Classified{
			Class:   ClassMilestone,
			Source:  source,
			Stage:   "timestep",
			Current: current,
			Total:   total,
			Text:    text,
		}
	}
	for _, marker := range milestoneMarkers {
		if strings.HasPrefix(text, marker.prefix) {
			return Classified{Class: ClassMilestone, Source: source, Stage: marker.stage, Text: text}
		}
	}
	if errorPattern.MatchString(text) && !noErrorPattern.MatchString(text) {
		return Classified{Class: ClassError, Source: source, Text: text}
	}
	return Classified{Class: ClassNoise, Source: source, Text: text}
}

// FirstSighting reports whether this error text has not been seen before in
// this attempt, recording it. Only first sightings are logged.
func (p *Parser) FirstSighting(c Classified) bool {
	if c.Class != ClassError {
		return false
	}
	key := strings.ToLower(c.Text)
	if _, ok := p.seenErrors[key]; ok {
		return false
	}
	p.seenErrors[key] = struct{}{}
	return true
}
