package progress

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Encoder writes events as newline-delimited JSON. This is the cross-process
// leg of the channel: the worker encodes onto its stdout and the driver pumps
// the other end into a Queue.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode validates and writes one event. Emission order is the write order.
func (e *Encoder) Encode(event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(event); err != nil {
		return fmt.Errorf("progress: encode event: %w", err)
	}
	return nil
}

// Pump reads newline-delimited events from r into q until EOF. Blank lines
// are skipped; a malformed line or unknown kind ends the pump with an error,
// since the producer is ours and anything else means the stream is broken.
func Pump(r io.Reader, q *Queue) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return fmt.Errorf("progress: decode event: %w", err)
		}
		if err := event.Validate(); err != nil {
			return err
		}
		q.Emit(event)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("progress: read event stream: %w", err)
	}
	return nil
}
