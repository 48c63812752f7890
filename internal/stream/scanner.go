package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Scanner decodes SSE frames produced by Writer back into Events. It is
// the wire-parsing half of the client consumer: read events one at a
// time until a terminal event or io.EOF.
type Scanner struct {
	s *bufio.Scanner
}

// NewScanner wraps r, typically an http.Response body.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	// Single deltas stay small, but tool inputs carry whole captions.
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Scanner{s: s}
}

// Next reads one SSE frame and returns its event. Returns io.EOF when
// the stream ends cleanly between frames.
func (sc *Scanner) Next() (Event, error) {
	var (
		sawField bool
		dataRows []string
	)

	for sc.s.Scan() {
		line := sc.s.Text()

		switch {
		case line == "":
			if !sawField {
				continue // leading keep-alive blank line
			}
			return decodeFrame(dataRows)
		case strings.HasPrefix(line, "data:"):
			sawField = true
			dataRows = append(dataRows, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"):
			// Event name is redundant with the type field inside data.
			sawField = true
		case strings.HasPrefix(line, ":"):
			// comment / heartbeat
		}
	}

	if err := sc.s.Err(); err != nil {
		return Event{}, fmt.Errorf("reading stream: %w", err)
	}
	if sawField {
		// Stream ended mid-frame; decode what we have.
		return decodeFrame(dataRows)
	}
	return Event{}, io.EOF
}

func decodeFrame(dataRows []string) (Event, error) {
	payload := strings.Join(dataRows, "\n")
	if payload == "" {
		return Event{}, fmt.Errorf("event frame without data")
	}

	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decoding event data: %w", err)
	}
	return ev, nil
}
