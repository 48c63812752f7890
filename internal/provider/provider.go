// Package provider adapts the Genkit model layer to the streaming
// event pipeline. It owns model initialization, tool registration, and
// the conversion of model response chunks into wire events.
//
// Tool calls are returned to the caller instead of being executed by
// the model loop. Image search runs after the stream completes, and
// post creation is never executed server side; the client renders it
// as an editable proposal.
package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/project-o/assist/internal/config"
	"github.com/project-o/assist/internal/log"
	"github.com/project-o/assist/internal/stream"
)

// systemPrompt frames the assistant role and the two tools it may call.
const systemPrompt = `You are a helpful assistant for a social media application.
You help users brainstorm, draft, and illustrate posts.

You have two tools available:
- suggest_post_images: search for candidate images matching a description.
  Call it when the user asks for images or visual suggestions.
- create_post: propose a post draft with selected images, caption text,
  tags, and visibility. Call it when the user asks you to create a post.

When the user references selected images, their ids appear at the start
of the message in the form ["id1,id2"]. Use those ids in create_post.
Keep answers concise and conversational.`

// Provider drives streaming generation against the configured model.
type Provider struct {
	g         *genkit.Genkit
	modelName string
	maxTurns  int
	toolRefs  []ai.ToolRef
	logger    log.Logger
}

// New initializes Genkit with the plugin for the configured provider
// and registers the tool schemas. The provider API key is checked here
// so a misconfigured deployment fails at startup.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Provider, error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	var g *genkit.Genkit
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", config.ErrMissingAPIKey)
		}
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
	case config.ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", config.ErrMissingAPIKey)
		}
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}

	toolRefs := registerTools(g)

	logger.Info("model provider initialized",
		"provider", cfg.Provider,
		"model", cfg.FullModelName(),
	)

	return &Provider{
		g:         g,
		modelName: cfg.FullModelName(),
		maxTurns:  cfg.MaxTurns,
		toolRefs:  toolRefs,
		logger:    logger,
	}, nil
}

// Result carries what remains after the stream has been fully consumed.
type Result struct {
	// Text is the concatenated assistant text of the final response.
	Text string

	// ToolRequests are the calls the model asked for, in request order.
	ToolRequests []*ai.ToolRequest
}

// Callback receives each event as the model produces it.
type Callback func(ctx context.Context, ev stream.Event) error

// Stream generates a response for prompt on top of history, invoking cb
// for every content delta, thinking delta, and tool request as they
// arrive. Tool requests are not executed; they are surfaced as events
// and collected into the Result.
//
// A tool request that only appears in the final response (some models
// do not stream tool call chunks) is still delivered through cb exactly
// once, deduplicated by its ref.
func (p *Provider) Stream(ctx context.Context, history []*ai.Message, prompt string, cb Callback) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	messages := append(deepCopyMessages(history), ai.NewUserMessage(ai.NewTextPart(prompt)))

	seenRefs := make(map[string]bool)

	opts := []ai.GenerateOption{
		ai.WithSystem(systemPrompt),
		ai.WithModelName(p.modelName),
		ai.WithMessages(messages...),
		ai.WithTools(p.toolRefs...),
		ai.WithMaxTurns(p.maxTurns),
		ai.WithReturnToolRequests(true),
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return p.forwardChunk(ctx, chunk, seenRefs, cb)
		}))
	}

	resp, err := genkit.Generate(ctx, p.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	toolRequests := resp.ToolRequests()

	// Deliver tool requests that never came through the chunk stream.
	if cb != nil {
		for _, tr := range toolRequests {
			if tr.Ref != "" && seenRefs[tr.Ref] {
				continue
			}
			ev, err := stream.ToolInput(tr.Name, tr.Input)
			if err != nil {
				p.logger.Warn("skipping unencodable tool input", "tool", tr.Name, "error", err)
				continue
			}
			if err := cb(ctx, ev); err != nil {
				return nil, err
			}
		}
	}

	return &Result{
		Text:         resp.Text(),
		ToolRequests: toolRequests,
	}, nil
}

// forwardChunk converts one model chunk into zero or more events.
func (p *Provider) forwardChunk(ctx context.Context, chunk *ai.ModelResponseChunk, seenRefs map[string]bool, cb Callback) error {
	if chunk == nil {
		return nil
	}
	for _, part := range chunk.Content {
		if part == nil {
			continue
		}
		switch {
		case part.ToolRequest != nil:
			if part.ToolRequest.Ref != "" {
				seenRefs[part.ToolRequest.Ref] = true
			}
			ev, err := stream.ToolInput(part.ToolRequest.Name, part.ToolRequest.Input)
			if err != nil {
				p.logger.Warn("skipping unencodable tool input", "tool", part.ToolRequest.Name, "error", err)
				continue
			}
			if err := cb(ctx, ev); err != nil {
				return err
			}
		case part.Kind == ai.PartReasoning:
			if part.Text == "" {
				continue
			}
			if err := cb(ctx, stream.ThinkingDelta(part.Text)); err != nil {
				return err
			}
		case part.Text != "":
			if err := cb(ctx, stream.ContentDelta(part.Text)); err != nil {
				return err
			}
		}
	}
	return nil
}

// deepCopyMessages copies history so Genkit's in-place message
// rendering cannot race with a concurrent request sharing the slice.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
