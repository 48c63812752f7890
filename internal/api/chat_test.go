package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/project-o/assist/internal/exchange"
	"github.com/project-o/assist/internal/log"
	"github.com/project-o/assist/internal/orchestrator"
	"github.com/project-o/assist/internal/stream"
)

// stubTurns replays canned events; returns err without emitting when set.
type stubTurns struct {
	events []stream.Event
	err    error
	chatID string
}

func (s *stubTurns) StreamTurn(ctx context.Context, chatID string, messages []orchestrator.Message, emit func(context.Context, stream.Event) error) error {
	s.chatID = chatID
	if s.err != nil {
		return s.err
	}
	for _, ev := range s.events {
		if err := emit(ctx, ev); err != nil {
			return nil
		}
	}
	return nil
}

type stubTranscripts struct {
	exchanges []*exchange.Exchange
	err       error
}

func (s *stubTranscripts) FindByChatID(ctx context.Context, chatID string) ([]*exchange.Exchange, error) {
	return s.exchanges, s.err
}

func (s *stubTranscripts) Images(ctx context.Context, chatID string) ([]exchange.ImageRef, error) {
	if s.err != nil {
		return nil, s.err
	}
	var images []exchange.ImageRef
	for _, e := range s.exchanges {
		images = append(images, e.Images...)
	}
	return images, nil
}

func (s *stubTranscripts) ResolveImages(ctx context.Context, chatID string, ids []string) ([]exchange.ImageRef, error) {
	if s.err != nil {
		return nil, s.err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var matched []exchange.ImageRef
	for _, e := range s.exchanges {
		for _, img := range e.Images {
			if wanted[img.ImageID] {
				matched = append(matched, img)
			}
		}
	}
	return matched, nil
}

func newTestServer(t *testing.T, turns TurnStreamer, store TranscriptStore) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger: log.NewNop(),
		Turns:  turns,
		Store:  store,
		IsDev:  true,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv.Handler()
}

func TestStream(t *testing.T) {
	turns := &stubTurns{events: []stream.Event{
		stream.ContentDelta("hello"),
		stream.Done(),
	}}
	handler := newTestServer(t, turns, &stubTranscripts{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream",
		strings.NewReader(`{"chatId":"c1","messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: content-delta") {
		t.Errorf("body missing content-delta frame: %q", body)
	}
	if !strings.Contains(body, "event: done") {
		t.Errorf("body missing done frame: %q", body)
	}
	if turns.chatID != "c1" {
		t.Errorf("chat id = %q", turns.chatID)
	}
}

func TestStream_Validation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid json", `{`, "invalid_request"},
		{"missing chat id", `{"messages":[{"role":"user","content":"x"}]}`, "missing_chat_id"},
		{"missing messages", `{"chatId":"c1"}`, "missing_messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(t, &stubTurns{}, &stubTranscripts{})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantCode) {
				t.Errorf("body = %q, want code %q", rec.Body.String(), tt.wantCode)
			}
		})
	}
}

func TestStream_NoUserMessages(t *testing.T) {
	turns := &stubTurns{err: orchestrator.ErrNoUserMessages}
	handler := newTestServer(t, turns, &stubTranscripts{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream",
		strings.NewReader(`{"chatId":"c1","messages":[{"role":"assistant","content":"x"}]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Headers already committed to SSE, so the rejection arrives on-stream.
	body := rec.Body.String()
	if !strings.Contains(body, "event: error") || !strings.Contains(body, "no_user_messages") {
		t.Errorf("body = %q, want on-stream error with code no_user_messages", body)
	}
}

func TestHistory(t *testing.T) {
	store := &stubTranscripts{exchanges: []*exchange.Exchange{
		{ChatID: "c1", Prompt: "show beaches", Output: "Here you go.",
			Images: []exchange.ImageRef{{ImageID: "b1", URL: "https://img/b1"}}},
		{ChatID: "c1", Prompt: "thanks", Output: ""},
	}}
	handler := newTestServer(t, &stubTurns{}, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history/c1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"role":"user"`, `"role":"assistant"`, "show beaches", "b1"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
	// The second exchange has no output and no images: no assistant entry.
	if strings.Count(body, `"role":"assistant"`) != 1 {
		t.Errorf("want exactly one assistant message, body: %s", body)
	}
}

func TestHistory_StoreError(t *testing.T) {
	store := &stubTranscripts{err: context.DeadlineExceeded}
	handler := newTestServer(t, &stubTurns{}, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history/c1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestImages_Empty(t *testing.T) {
	handler := newTestServer(t, &stubTurns{}, &stubTranscripts{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/images/c1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"images":[]`) {
		t.Errorf("want empty array, not null: %s", rec.Body.String())
	}
}

func TestResolveImages(t *testing.T) {
	store := &stubTranscripts{exchanges: []*exchange.Exchange{
		{Images: []exchange.ImageRef{
			{ImageID: "a", URL: "https://img/a"},
			{ImageID: "b", URL: "https://img/b"},
		}},
	}}
	handler := newTestServer(t, &stubTurns{}, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/images/resolve",
		strings.NewReader(`{"chatId":"c1","imageIds":["b","nope"]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"imageId":"b"`) || strings.Contains(body, `"imageId":"a"`) {
		t.Errorf("unexpected resolution result: %s", body)
	}
}

func TestResolveImages_EmptyIDs(t *testing.T) {
	handler := newTestServer(t, &stubTurns{}, &stubTranscripts{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/images/resolve",
		strings.NewReader(`{"chatId":"c1","imageIds":[]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing_image_ids") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
