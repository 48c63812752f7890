package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/project-o/assist/internal/exchange"
	"github.com/project-o/assist/internal/stream"
)

// imageFetchDelay is how long the consumer waits after the done event
// before fetching the chat's images. The server persists the exchange
// detached from the response, so an immediate fetch can race the write.
const imageFetchDelay = 500 * time.Millisecond

// TurnHooks receive progress while RunTurn consumes the stream. All
// hooks are optional and are invoked from the calling goroutine.
type TurnHooks struct {
	OnPhase    func(Phase)
	OnContent  func(text string)   // assembled, display-ready text after each delta
	OnThinking func(text string)   // assembled reasoning text after each delta
	OnImages   func([]exchange.ImageRef) // each suggest_post_images result batch
	OnProposal func(*Proposal)
}

// TurnResult is the settled outcome of one turn.
type TurnResult struct {
	Text     string
	Thinking string
	Images   []exchange.ImageRef // all images of the chat after this turn
	Proposal *Proposal
}

// TurnError is a terminal error event delivered on the stream.
type TurnError struct {
	Code    string
	Message string
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed: %s (%s)", e.Message, e.Code)
}

// RunTurn executes one chat turn end to end: it opens the stream,
// assembles text, and surfaces image batches and post proposals. The
// phase machine advances only when the model requests an image search;
// after the terminal event of such a turn the chat's images are
// fetched. A turn without an image search leaves the machine idle and
// fetches nothing.
//
// A stream-delivered failure is returned as *TurnError; transport and
// decode failures are returned as ordinary errors.
func (c *Client) RunTurn(ctx context.Context, chatID string, messages []Message, hooks TurnHooks) (*TurnResult, error) {
	sm := NewStateMachine(hooks.OnPhase)

	ts, err := c.OpenTurn(ctx, chatID, messages)
	if err != nil {
		sm.Fail()
		return nil, err
	}
	defer ts.Close()

	var (
		asm      Assembler
		result   TurnResult
		turnErr  *TurnError
		finished bool
	)

	for !finished {
		ev, err := ts.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			sm.Fail()
			return nil, fmt.Errorf("reading stream: %w", err)
		}

		switch ev.Type {
		case stream.TypeContentDelta:
			asm.AddContent(ev.Delta)
			if hooks.OnContent != nil {
				hooks.OnContent(asm.Text())
			}

		case stream.TypeThinkingDelta:
			asm.AddThinking(ev.Delta)
			if hooks.OnThinking != nil {
				hooks.OnThinking(asm.Thinking())
			}

		case stream.TypeToolInput:
			c.handleToolInput(ctx, chatID, ev, sm, &result, hooks)

		case stream.TypeToolOutput:
			if ev.ToolName != stream.ToolSuggestImages {
				break
			}
			var batch []exchange.ImageRef
			if err := json.Unmarshal(ev.Output, &batch); err != nil {
				c.logger.Warn("decoding image batch", "error", err)
				break
			}
			if hooks.OnImages != nil {
				hooks.OnImages(batch)
			}

		case stream.TypeError:
			turnErr = &TurnError{Code: ev.Code, Message: ev.Message}
			finished = true

		case stream.TypeDone:
			finished = true
		}
	}

	if turnErr != nil {
		sm.Fail()
		return nil, turnErr
	}

	result.Text = asm.Text()
	result.Thinking = asm.Thinking()

	// The image tail only runs when the stream carried a search tool
	// call; a plain text turn settles here with the machine still idle.
	if sm.Phase() != PhaseTriggered {
		return &result, nil
	}

	sm.Searching()

	// Let the detached persistence settle before reading it back.
	select {
	case <-time.After(imageFetchDelay):
	case <-ctx.Done():
		sm.Fail()
		return nil, fmt.Errorf("waiting for images: %w", ctx.Err())
	}

	sm.Fetching()
	images, err := c.Images(ctx, chatID)

	sm.Processing()
	if err != nil {
		c.logger.Warn("fetching chat images", "chat_id", chatID, "error", err)
	} else {
		result.Images = images
	}

	sm.Complete()
	return &result, nil
}

// handleToolInput reacts to a tool invocation surfaced on the stream.
func (c *Client) handleToolInput(ctx context.Context, chatID string, ev stream.Event, sm *StateMachine, result *TurnResult, hooks TurnHooks) {
	switch ev.ToolName {
	case stream.ToolSuggestImages:
		sm.Trigger()

	case stream.ToolCreatePost:
		proposal, err := ProposalFromEvent(ev)
		if err != nil {
			c.logger.Warn("decoding post proposal", "error", err)
			return
		}
		if len(proposal.ImageIDs) > 0 {
			resolved, err := c.ResolveImages(ctx, chatID, proposal.ImageIDs)
			if err != nil {
				c.logger.Warn("resolving proposal images", "error", err)
			} else {
				proposal.Images = resolved
			}
		}
		result.Proposal = proposal
		if hooks.OnProposal != nil {
			hooks.OnProposal(proposal)
		}

	default:
		c.logger.Debug("ignoring unknown tool input", "tool", ev.ToolName)
	}
}
