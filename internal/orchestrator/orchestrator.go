// Package orchestrator coordinates one chat turn end to end: it streams
// model events to the caller while capturing them, executes image
// search calls after the stream completes, and persists the
// reconstructed exchange without blocking the response.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/project-o/assist/internal/exchange"
	"github.com/project-o/assist/internal/log"
	"github.com/project-o/assist/internal/provider"
	"github.com/project-o/assist/internal/stream"
	"github.com/project-o/assist/internal/unsplash"
)

// defaultPersistTimeout bounds the detached persistence write.
const defaultPersistTimeout = 10 * time.Second

var (
	// ErrNoUserMessages indicates a turn request without a single
	// user-role message to derive the prompt from.
	ErrNoUserMessages = errors.New("no user messages in request")
)

// Message is one entry of the conversation sent by the client. Only
// user-role messages go upstream; assistant replies and tool outputs
// are never fed back into the prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelStreamer produces the model event stream for one turn.
type ModelStreamer interface {
	Stream(ctx context.Context, history []*ai.Message, prompt string, cb provider.Callback) (*provider.Result, error)
}

// ImageSearcher finds candidate images for a suggest_post_images call.
type ImageSearcher interface {
	Search(ctx context.Context, query string, limit int, excluded []string) ([]unsplash.Image, error)
}

// ExchangeStore persists chat transcripts and serves the image ids
// already associated with a chat.
type ExchangeStore interface {
	Create(ctx context.Context, e *exchange.Exchange) error
	ImageIDs(ctx context.Context, chatID string) ([]string, error)
}

// Config contains the dependencies for New.
type Config struct {
	Model  ModelStreamer
	Images ImageSearcher
	Store  ExchangeStore
	Logger log.Logger

	// BGCtx and WG govern detached persistence: writes run on BGCtx so
	// they outlive the HTTP response, and WG tracks them for graceful
	// shutdown.
	BGCtx context.Context
	WG    *sync.WaitGroup

	// PersistTimeout bounds each detached write. Zero means the default.
	PersistTimeout time.Duration
}

func (c Config) validate() error {
	if c.Model == nil {
		return fmt.Errorf("model streamer is required")
	}
	if c.Images == nil {
		return fmt.Errorf("image searcher is required")
	}
	if c.Store == nil {
		return fmt.Errorf("exchange store is required")
	}
	if c.BGCtx == nil {
		return fmt.Errorf("background context is required")
	}
	if c.WG == nil {
		return fmt.Errorf("wait group is required")
	}
	return nil
}

// Orchestrator runs chat turns. Safe for concurrent use.
type Orchestrator struct {
	model          ModelStreamer
	images         ImageSearcher
	store          ExchangeStore
	logger         log.Logger
	bgCtx          context.Context
	wg             *sync.WaitGroup
	persistTimeout time.Duration
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("orchestrator config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	return &Orchestrator{
		model:          cfg.Model,
		images:         cfg.Images,
		store:          cfg.Store,
		logger:         cfg.Logger,
		bgCtx:          cfg.BGCtx,
		wg:             cfg.WG,
		persistTimeout: cfg.PersistTimeout,
	}, nil
}

// StreamTurn executes one chat turn for chatID, emitting every event
// through emit in arrival order. The sequence always ends with a
// terminal event: done on success (after post-stream tool execution),
// error if the model stream fails.
//
// Persistence of the reconstructed exchange is detached: it runs on the
// background context after the terminal event, so a caller disconnecting
// right after done cannot lose the transcript. A caller aborting
// mid-stream cancels the turn and nothing is persisted.
//
// ErrNoUserMessages is returned before any event is emitted, letting the
// HTTP handler reject the request with a plain status code.
func (o *Orchestrator) StreamTurn(ctx context.Context, chatID string, messages []Message, emit func(context.Context, stream.Event) error) error {
	history, prompt := promptHistory(messages)
	if prompt == "" {
		return ErrNoUserMessages
	}

	capture := stream.NewCapture()
	tee := func(ctx context.Context, ev stream.Event) error {
		capture.Add(ev)
		return emit(ctx, ev)
	}

	result, err := o.model.Stream(ctx, history, prompt, tee)
	if err != nil {
		if ctx.Err() != nil {
			// Caller went away; nobody is listening for an error event.
			o.logger.Info("turn aborted by caller", "chat_id", chatID, "error", err)
			return nil
		}
		o.logger.Error("model stream failed", "chat_id", chatID, "error", err)
		errEv := stream.Error("model_error", "the model stream failed")
		capture.Add(errEv)
		if emitErr := emit(ctx, errEv); emitErr != nil {
			o.logger.Debug("emitting error event", "error", emitErr)
		}
		return nil
	}

	images := o.executeTools(ctx, chatID, result.ToolRequests, func(ctx context.Context, ev stream.Event) {
		capture.Add(ev)
		if err := emit(ctx, ev); err != nil {
			o.logger.Debug("emitting tool output", "error", err)
		}
	})

	doneEv := stream.Done()
	capture.Add(doneEv)
	if err := emit(ctx, doneEv); err != nil {
		o.logger.Debug("emitting done event", "error", err)
	}

	o.finishTurn(chatID, prompt, len(messages), capture, images)
	return nil
}

// promptHistory splits the request conversation into upstream history
// and the prompt. The prompt is the last user-role message; earlier
// user messages become the history. Messages of any other role carry
// assistant or tool text and never go upstream.
func promptHistory(messages []Message) ([]*ai.Message, string) {
	last := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = i
			break
		}
	}
	if last < 0 || messages[last].Content == "" {
		return nil, ""
	}

	var history []*ai.Message
	for _, m := range messages[:last] {
		if m.Role == "user" && m.Content != "" {
			history = append(history, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return history, messages[last].Content
}

// executeTools runs the recognized tool calls collected from the model
// stream. suggest_post_images calls hit the image searcher with an
// exclusion set seeded from the chat's persisted image ids so repeated
// searches never resurface an image already shown. create_post is never
// executed here; the client renders it as an editable proposal.
//
// Failures are isolated per call: a search error is logged and the
// remaining calls still run.
func (o *Orchestrator) executeTools(ctx context.Context, chatID string, requests []*ai.ToolRequest, emit func(context.Context, stream.Event)) []exchange.ImageRef {
	if len(requests) == 0 {
		return nil
	}

	var (
		collected []exchange.ImageRef
		seen      map[string]bool
	)

	for _, tr := range requests {
		ev, err := stream.ToolInput(tr.Name, tr.Input)
		if err != nil {
			o.logger.Warn("encoding tool input", "tool", tr.Name, "error", err)
			continue
		}
		call, err := stream.ParseToolCall(ev)
		if err != nil {
			o.logger.Warn("skipping tool call", "tool", tr.Name, "error", err)
			continue
		}

		switch c := call.(type) {
		case stream.SuggestImagesCall:
			if seen == nil {
				seen = o.seedExclusions(ctx, chatID)
			}

			excluded := make([]string, 0, len(seen))
			for id := range seen {
				excluded = append(excluded, id)
			}

			found, err := o.images.Search(ctx, c.Query, c.Limit, excluded)
			if err != nil {
				o.logger.Warn("image search failed", "chat_id", chatID, "query", c.Query, "error", err)
				continue
			}

			// The searcher already excludes, but its candidate pool can
			// still overlap when the provider paginates oddly. Filter a
			// second time against everything seen this turn.
			fresh := make([]exchange.ImageRef, 0, len(found))
			for _, img := range found {
				if seen[img.ImageID] {
					continue
				}
				seen[img.ImageID] = true
				fresh = append(fresh, exchange.ImageRef{
					ImageID: img.ImageID,
					URL:     img.URL,
					Source:  img.Source,
					Author:  img.Author,
					License: img.License,
				})
			}
			collected = append(collected, fresh...)

			outEv, err := stream.ToolOutput(c.Tool(), fresh)
			if err != nil {
				o.logger.Warn("encoding tool output", "tool", c.Tool(), "error", err)
				continue
			}
			emit(ctx, outEv)

		case stream.CreatePostCall:
			// Surfaced to the client via its tool-input event only. The
			// draft is confirmed and published by the user, never here.
			o.logger.Debug("post proposal surfaced",
				"chat_id", chatID, "images", len(c.ImageIDs), "visibility", c.Visibility)
		}
	}

	return collected
}

// seedExclusions loads the persisted image ids for a chat into a set. A
// load failure degrades to an empty set: suggesting a duplicate beats
// failing the whole turn.
func (o *Orchestrator) seedExclusions(ctx context.Context, chatID string) map[string]bool {
	seen := make(map[string]bool)
	ids, err := o.store.ImageIDs(ctx, chatID)
	if err != nil {
		o.logger.Warn("loading persisted image ids", "chat_id", chatID, "error", err)
		return seen
	}
	for _, id := range ids {
		seen[id] = true
	}
	return seen
}

// finishTurn persists the reconstructed exchange on the background
// context so it survives the HTTP response ending.
func (o *Orchestrator) finishTurn(chatID, prompt string, messageCount int, capture *stream.Capture, images []exchange.ImageRef) {
	output := Reconstruct(capture.Events())

	if len(images) == 0 && output == "" && messageCount == 0 {
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ctx, cancel := context.WithTimeout(o.bgCtx, o.persistTimeout)
		defer cancel()

		e := &exchange.Exchange{
			ChatID: chatID,
			Prompt: prompt,
			Output: output,
			Images: images,
		}
		if err := o.store.Create(ctx, e); err != nil {
			o.logger.Error("persisting exchange", "chat_id", chatID, "error", err)
			return
		}
		o.logger.Debug("persisted exchange",
			"chat_id", chatID, "exchange_id", e.ID, "images", len(images))
	}()
}

// Reconstruct assembles the assistant transcript from a captured event
// sequence: content deltas concatenated in arrival order. Thinking
// deltas and tool events carry no transcript text.
func Reconstruct(events []stream.Event) string {
	var out []byte
	for _, ev := range events {
		if ev.Type == stream.TypeContentDelta {
			out = append(out, ev.Delta...)
		}
	}
	return string(out)
}
