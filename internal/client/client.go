// Package client consumes the assistant's HTTP API: it opens turn
// streams, tracks the UI phase of a turn, assembles streamed text, and
// carries post proposals through user review.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/project-o/assist/internal/exchange"
	"github.com/project-o/assist/internal/log"
	"github.com/project-o/assist/internal/stream"
)

// Message is one conversation entry sent with a turn request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryMessage is one entry of a replayed transcript.
type HistoryMessage struct {
	Role    string              `json:"role"`
	Content string              `json:"content,omitempty"`
	Images  []exchange.ImageRef `json:"images,omitempty"`
}

// Config contains parameters for New.
type Config struct {
	BaseURL string
	HTTP    *http.Client // Optional: defaults to http.DefaultClient (no timeout, streams are long-lived)
	Logger  log.Logger
}

// Client talks to the assistant API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// TurnStream is an open SSE stream for one chat turn. Callers must
// Close it when done.
type TurnStream struct {
	scanner *stream.Scanner
	body    io.ReadCloser
}

// Next returns the next event. io.EOF signals a cleanly closed stream.
func (s *TurnStream) Next() (stream.Event, error) {
	return s.scanner.Next()
}

// Close releases the underlying connection.
func (s *TurnStream) Close() error {
	return s.body.Close()
}

// OpenTurn starts a chat turn and returns the event stream.
func (c *Client) OpenTurn(ctx context.Context, chatID string, messages []Message) (*TurnStream, error) {
	payload, err := json.Marshal(map[string]any{
		"chatId":   chatID,
		"messages": messages,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding turn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/chat/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("starting turn: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.decodeError(resp)
	}

	return &TurnStream{
		scanner: stream.NewScanner(resp.Body),
		body:    resp.Body,
	}, nil
}

// History fetches the replayed transcript for a chat.
func (c *Client) History(ctx context.Context, chatID string) ([]HistoryMessage, error) {
	var out struct {
		Messages []HistoryMessage `json:"messages"`
	}
	if err := c.getJSON(ctx, "/api/v1/chat/history/"+chatID, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Images fetches every image suggested in a chat so far.
func (c *Client) Images(ctx context.Context, chatID string) ([]exchange.ImageRef, error) {
	var out struct {
		Images []exchange.ImageRef `json:"images"`
	}
	if err := c.getJSON(ctx, "/api/v1/chat/images/"+chatID, &out); err != nil {
		return nil, err
	}
	return out.Images, nil
}

// ResolveImages maps image ids to their stored refs.
func (c *Client) ResolveImages(ctx context.Context, chatID string, ids []string) ([]exchange.ImageRef, error) {
	payload, err := json.Marshal(map[string]any{
		"chatId":   chatID,
		"imageIds": ids,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding resolve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/chat/images/resolve", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building resolve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolving images: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var out struct {
		Images []exchange.ImageRef `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding resolve response: %w", err)
	}
	return out.Images, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeError extracts the structured error body, falling back to the
// bare status code.
func (c *Client) decodeError(resp *http.Response) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error.Code != "" {
		return fmt.Errorf("server returned %d: %s (%s)", resp.StatusCode, body.Error.Message, body.Error.Code)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
