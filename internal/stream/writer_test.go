package stream

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewWriter_SetsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	if _, err := NewWriter(rec); err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	want := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache, no-transform",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
}

func TestWriter_Write_FramesEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	if err := w.Write(context.Background(), ContentDelta("Hello ")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: content-delta\n") {
		t.Errorf("frame missing event line: %q", body)
	}
	if !strings.Contains(body, `"delta":"Hello "`) {
		t.Errorf("frame missing delta payload: %q", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Errorf("frame missing terminator: %q", body)
	}
}

func TestWriter_Write_CanceledContext(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Write(ctx, Done()); err == nil {
		t.Fatal("Write() with canceled context should fail")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("nothing should be written after cancel, got %q", rec.Body.String())
	}
}

func TestWriter_RoundTripThroughScanner(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	toolEv, err := ToolInput(ToolSuggestImages, map[string]any{"query": "cat", "limit": 2})
	if err != nil {
		t.Fatalf("ToolInput() error = %v", err)
	}

	sent := []Event{
		ContentDelta("Hello "),
		ThinkingDelta("considering images"),
		toolEv,
		ContentDelta("world"),
		Done(),
	}
	ctx := context.Background()
	for _, ev := range sent {
		if err := w.Write(ctx, ev); err != nil {
			t.Fatalf("Write(%v) error = %v", ev.Type, err)
		}
	}

	sc := NewScanner(strings.NewReader(rec.Body.String()))
	var got []Event
	for {
		ev, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got = append(got, ev)
	}

	if len(got) != len(sent) {
		t.Fatalf("scanned %d events, want %d", len(got), len(sent))
	}
	for i := range sent {
		if got[i].Type != sent[i].Type {
			t.Errorf("event %d type = %q, want %q", i, got[i].Type, sent[i].Type)
		}
		if got[i].Delta != sent[i].Delta {
			t.Errorf("event %d delta = %q, want %q", i, got[i].Delta, sent[i].Delta)
		}
	}

	call, err := ParseToolCall(got[2])
	if err != nil {
		t.Fatalf("ParseToolCall(round-tripped) error = %v", err)
	}
	if si := call.(SuggestImagesCall); si.Query != "cat" || si.Limit != 2 {
		t.Errorf("round-tripped call = %+v", si)
	}
}
