package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Writer frames Events onto an http.ResponseWriter as Server-Sent
// Events. Each event is flushed immediately so the caller sees deltas
// without added buffering latency.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w for SSE streaming and sets the response headers.
// Fails if the writer does not support flushing.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// Write sends one event frame: "event: <type>\ndata: <json>\n\n".
// The data field is the JSON encoding of the whole event, so consumers
// that ignore the event name can still dispatch on the type field.
func (w *Writer) Write(ctx context.Context, ev Event) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled: %w", ctx.Err())
	default:
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.flusher.Flush()
	return nil
}
