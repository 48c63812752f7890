package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/project-o/assist/internal/exchange"
	"github.com/project-o/assist/internal/log"
	"github.com/project-o/assist/internal/orchestrator"
	"github.com/project-o/assist/internal/stream"
)

const maxRequestBytes = 1 << 20

// TurnStreamer runs one chat turn, emitting events as they happen.
type TurnStreamer interface {
	StreamTurn(ctx context.Context, chatID string, messages []orchestrator.Message, emit func(context.Context, stream.Event) error) error
}

// TranscriptStore replays persisted chat history and images.
type TranscriptStore interface {
	FindByChatID(ctx context.Context, chatID string) ([]*exchange.Exchange, error)
	Images(ctx context.Context, chatID string) ([]exchange.ImageRef, error)
	ResolveImages(ctx context.Context, chatID string, ids []string) ([]exchange.ImageRef, error)
}

// chatHandler serves the chat endpoints.
type chatHandler struct {
	turns  TurnStreamer
	store  TranscriptStore
	logger log.Logger
}

// streamRequest is the body of POST /api/v1/chat/stream.
type streamRequest struct {
	ChatID   string                 `json:"chatId"`
	Messages []orchestrator.Message `json:"messages"`
}

// stream runs one turn and delivers it as Server-Sent Events.
//
// Validation happens before the response switches to text/event-stream,
// so malformed requests get plain HTTP status codes. Once streaming
// starts, failures are reported as error events on the stream itself.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.ChatID == "" {
		WriteError(w, http.StatusBadRequest, "missing_chat_id", "chatId is required", h.logger)
		return
	}
	if len(req.Messages) == 0 {
		WriteError(w, http.StatusBadRequest, "missing_messages", "messages are required", h.logger)
		return
	}

	sw, err := stream.NewWriter(w)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	h.logger.Debug("stream started", "chat_id", req.ChatID,
		"request_id", requestIDFromContext(r.Context()))

	err = h.turns.StreamTurn(r.Context(), req.ChatID, req.Messages, func(ctx context.Context, ev stream.Event) error {
		return sw.Write(ctx, ev)
	})
	if err != nil {
		// The turn failed before the first event: the headers carry the
		// SSE content type already, so report on-stream.
		code := "turn_failed"
		if errors.Is(err, orchestrator.ErrNoUserMessages) {
			code = "no_user_messages"
		}
		h.logger.Warn("turn rejected", "chat_id", req.ChatID, "error", err)
		if writeErr := sw.Write(r.Context(), stream.Error(code, err.Error())); writeErr != nil {
			h.logger.Debug("writing rejection event", "error", writeErr)
		}
		return
	}

	h.logger.Debug("stream completed", "chat_id", req.ChatID)
}

// historyMessage is one entry of the replayed transcript.
type historyMessage struct {
	Role    string              `json:"role"`
	Content string              `json:"content,omitempty"`
	Images  []exchange.ImageRef `json:"images,omitempty"`
}

// history replays the persisted transcript for a chat as the
// alternating user/assistant message list clients render directly.
func (h *chatHandler) history(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatId")
	if chatID == "" {
		WriteError(w, http.StatusBadRequest, "missing_chat_id", "chatId is required", h.logger)
		return
	}

	exchanges, err := h.store.FindByChatID(r.Context(), chatID)
	if err != nil {
		h.logger.Error("loading history", "chat_id", chatID, "error", err)
		WriteError(w, http.StatusInternalServerError, "history_failed", "could not load history", h.logger)
		return
	}

	messages := make([]historyMessage, 0, len(exchanges)*2)
	for _, e := range exchanges {
		if e.Prompt != "" {
			messages = append(messages, historyMessage{Role: "user", Content: e.Prompt})
		}
		if e.Output != "" || len(e.Images) > 0 {
			messages = append(messages, historyMessage{
				Role:    "assistant",
				Content: e.Output,
				Images:  e.Images,
			})
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"chatId":   chatID,
		"messages": messages,
	}, h.logger)
}

// images returns every image suggested in a chat so far, in the order
// the turns produced them.
func (h *chatHandler) images(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatId")
	if chatID == "" {
		WriteError(w, http.StatusBadRequest, "missing_chat_id", "chatId is required", h.logger)
		return
	}

	images, err := h.store.Images(r.Context(), chatID)
	if err != nil {
		h.logger.Error("loading images", "chat_id", chatID, "error", err)
		WriteError(w, http.StatusInternalServerError, "images_failed", "could not load images", h.logger)
		return
	}
	if images == nil {
		images = []exchange.ImageRef{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"chatId": chatID,
		"images": images,
	}, h.logger)
}

// resolveRequest is the body of POST /api/v1/chat/images/resolve.
type resolveRequest struct {
	ChatID   string   `json:"chatId"`
	ImageIDs []string `json:"imageIds"`
}

// resolveImages maps previously suggested image ids back to their full
// refs. Unknown ids are silently absent from the result; an empty id
// list is rejected.
func (h *chatHandler) resolveImages(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.ChatID == "" {
		WriteError(w, http.StatusBadRequest, "missing_chat_id", "chatId is required", h.logger)
		return
	}
	if len(req.ImageIDs) == 0 {
		WriteError(w, http.StatusBadRequest, "missing_image_ids", "imageIds are required", h.logger)
		return
	}

	images, err := h.store.ResolveImages(r.Context(), req.ChatID, req.ImageIDs)
	if err != nil {
		h.logger.Error("resolving images", "chat_id", req.ChatID, "error", err)
		WriteError(w, http.StatusInternalServerError, "resolve_failed", "could not resolve images", h.logger)
		return
	}
	if images == nil {
		images = []exchange.ImageRef{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"chatId": req.ChatID,
		"images": images,
	}, h.logger)
}
