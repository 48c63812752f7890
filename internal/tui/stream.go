package tui

import (
	"context"
	"fmt"
	"log/slog"

	tea "charm.land/bubbletea/v2"

	"github.com/project-o/assist/internal/client"
	"github.com/project-o/assist/internal/exchange"
)

// turnBufferSize absorbs delta bursts during UI render delays while
// keeping memory bounded.
const turnBufferSize = 100

// turnEvent is a discriminated union for all turn progress events.
// Using a single channel with union type simplifies select logic
// and eliminates complex multi-channel closure handling.
type turnEvent struct {
	// Exactly one of these groups is set per event
	content  string // Assembled display text so far (when hasContent)
	thinking string // Assembled reasoning text so far (when hasThinking)
	phase    client.Phase
	images   []exchange.ImageRef // Image suggestion batch (when non-nil)
	proposal *client.Proposal    // Post draft surfaced by the model (when non-nil)
	result   *client.TurnResult  // Settled turn (when non-nil)
	err      error               // Error (when non-nil)

	hasContent  bool
	hasThinking bool
	hasPhase    bool
}

// Turn message types for Bubble Tea
type turnStartedMsg struct {
	eventCh <-chan turnEvent
	cancel  context.CancelFunc
}

type turnContentMsg struct {
	text string
}

type turnThinkingMsg struct {
	text string
}

type turnPhaseMsg struct {
	phase client.Phase
}

type turnImagesMsg struct {
	images []exchange.ImageRef
}

type turnProposalMsg struct {
	proposal *client.Proposal
}

type turnDoneMsg struct {
	result *client.TurnResult
}

type turnErrorMsg struct {
	err error
}

type historyLoadedMsg struct {
	messages []client.HistoryMessage
}

type postCreatedMsg struct {
	err error
}

// submitProposal publishes an accepted draft through the registered
// PostCreator.
func (m *Model) submitProposal(p *client.Proposal) tea.Cmd {
	fn, ctx := m.createPost, m.ctx
	return func() tea.Msg {
		return postCreatedMsg{err: fn(ctx, p)}
	}
}

// startTurn creates a command that runs one chat turn.
//
// Goroutine lifecycle: the spawned goroutine exits when RunTurn
// returns, which happens on completion, error, or context
// cancellation. Channel closure signals completion - no WaitGroup
// needed.
func (m *Model) startTurn(query string) tea.Cmd {
	c, chatID := m.client, m.chatID
	return func() tea.Msg {
		eventCh := make(chan turnEvent, turnBufferSize)

		// Create context with timeout to prevent indefinite hangs
		ctx, cancel := context.WithTimeout(m.ctx, turnTimeout)

		send := func(ev turnEvent) {
			select {
			case eventCh <- ev:
			case <-ctx.Done():
			}
		}

		go func() {
			// Ensure timer resources are released on all exit paths
			defer cancel()
			// Channel closure signals goroutine completion
			defer close(eventCh)

			// Panic recovery to prevent TUI lockup
			defer func() {
				if r := recover(); r != nil {
					slog.Error("turn panic recovered", "panic", r)
					select {
					case eventCh <- turnEvent{err: fmt.Errorf("turn panic: %v", r)}:
					default:
					}
				}
			}()

			hooks := client.TurnHooks{
				OnPhase: func(p client.Phase) {
					send(turnEvent{phase: p, hasPhase: true})
				},
				OnContent: func(text string) {
					send(turnEvent{content: text, hasContent: true})
				},
				OnThinking: func(text string) {
					send(turnEvent{thinking: text, hasThinking: true})
				},
				OnImages: func(batch []exchange.ImageRef) {
					send(turnEvent{images: batch})
				},
				OnProposal: func(p *client.Proposal) {
					send(turnEvent{proposal: p})
				},
			}

			result, err := c.RunTurn(ctx, chatID, []client.Message{
				{Role: "user", Content: query},
			}, hooks)
			if err != nil {
				select {
				case eventCh <- turnEvent{err: err}:
				default:
				}
				return
			}

			select {
			case eventCh <- turnEvent{result: result}:
			default:
			}
		}()

		return turnStartedMsg{
			eventCh: eventCh,
			cancel:  cancel,
		}
	}
}

// listenForTurn creates a command to wait for the next turn event.
// Uses single union channel - no complex multi-channel select needed.
// Empty events (all fields zero) are skipped via loop instead of
// recursion to prevent stack overflow under pathological conditions.
func listenForTurn(eventCh <-chan turnEvent) tea.Cmd {
	return func() tea.Msg {
		if eventCh == nil {
			return nil
		}

		for {
			event, ok := <-eventCh
			if !ok {
				// Channel closed - turn ended
				return turnErrorMsg{err: fmt.Errorf("turn ended without completion signal")}
			}

			// Discriminated union dispatch
			switch {
			case event.err != nil:
				return turnErrorMsg{err: event.err}
			case event.result != nil:
				return turnDoneMsg{result: event.result}
			case event.proposal != nil:
				return turnProposalMsg{proposal: event.proposal}
			case event.images != nil:
				return turnImagesMsg{images: event.images}
			case event.hasPhase:
				return turnPhaseMsg{phase: event.phase}
			case event.hasThinking:
				return turnThinkingMsg{text: event.thinking}
			case event.hasContent:
				return turnContentMsg{text: event.content}
			default:
				// Empty event - loop instead of recursing
				continue
			}
		}
	}
}

// loadHistory fetches previously persisted messages for this chat so a
// resumed session starts with its transcript visible.
func (m *Model) loadHistory() tea.Cmd {
	c, chatID := m.client, m.chatID
	ctx := m.ctx
	return func() tea.Msg {
		msgs, err := c.History(ctx, chatID)
		if err != nil {
			// A fresh chat has no transcript yet; start empty.
			slog.Debug("loading chat history", "chat_id", chatID, "error", err)
			return nil
		}
		return historyLoadedMsg{messages: msgs}
	}
}
