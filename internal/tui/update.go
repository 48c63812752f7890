package tui

import (
	"context"
	"errors"
	"fmt"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/project-o/assist/internal/client"
)

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo // Bubble Tea Update requires type switch on all message types
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Calculate viewport height: total - input - separators - help
		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		m.help.SetWidth(msg.Width)
		m.markdown.UpdateWidth(msg.Width)

		// Rebuild viewport content with new dimensions
		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		// Forward mouse wheel to viewport for scrolling
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		// Rebuild viewport to update spinner animation while a turn runs
		if m.state == StateStreaming && m.phaseStatus != "" {
			m.rebuildViewportContent()
		}
		return m, cmd

	case historyLoadedMsg:
		for _, hm := range msg.messages {
			role := roleAssistant
			if hm.Role == "user" {
				role = roleUser
			}
			text := hm.Content
			if role == roleUser {
				text = client.StripSelection(text)
			}
			m.addMessage(Message{Role: role, Text: text})
			if len(hm.Images) > 0 {
				m.gallery = hm.Images
			}
		}
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, nil

	case postCreatedMsg:
		if msg.err != nil {
			m.addMessage(Message{Role: roleError, Text: "Publishing post failed: " + msg.err.Error()})
		} else {
			m.addMessage(Message{Role: roleSystem, Text: "Post published."})
		}
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, nil

	case turnStartedMsg:
		m.turnCancel = msg.cancel
		m.turnEventCh = msg.eventCh
		m.state = StateStreaming
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(msg.eventCh)

	case turnPhaseMsg:
		m.phaseStatus = phaseStatus(msg.phase)
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(m.turnEventCh)

	case turnContentMsg:
		m.output = msg.text
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(m.turnEventCh)

	case turnThinkingMsg:
		m.thinking = msg.text
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(m.turnEventCh)

	case turnImagesMsg:
		m.gallery = append(m.gallery, msg.images...)
		m.addMessage(Message{
			Role: roleSystem,
			Text: fmt.Sprintf("Found %d image suggestion(s). Use /images to list, /select to attach.", len(msg.images)),
		})
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(m.turnEventCh)

	case turnProposalMsg:
		m.proposal = msg.proposal
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(m.turnEventCh)

	case turnDoneMsg:
		m.state = StateInput
		m.phaseStatus = ""
		m.thinking = ""

		// Cancel context to release timer resources
		if m.turnCancel != nil {
			m.turnCancel()
			m.turnCancel = nil
		}
		m.turnEventCh = nil

		if msg.result != nil {
			if msg.result.Text != "" {
				m.addMessage(Message{Role: roleAssistant, Text: msg.result.Text})
			}
			// The settled result carries the chat's full image set,
			// including images from earlier turns.
			if len(msg.result.Images) > 0 {
				m.gallery = msg.result.Images
			}
		}
		m.output = ""
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		// Re-focus textarea after the turn completes
		return m, m.input.Focus()

	case turnErrorMsg:
		m.state = StateInput
		m.phaseStatus = ""
		m.thinking = ""

		// Cancel context to release timer resources
		if m.turnCancel != nil {
			m.turnCancel()
			m.turnCancel = nil
		}
		m.turnEventCh = nil

		var turnErr *client.TurnError
		switch {
		case errors.Is(msg.err, context.Canceled):
			m.addMessage(Message{Role: roleSystem, Text: "(Canceled)"})
		case errors.Is(msg.err, context.DeadlineExceeded):
			m.addMessage(Message{Role: roleError, Text: "Turn timeout (>5 min). Try a simpler request."})
		case errors.As(msg.err, &turnErr):
			m.addMessage(Message{Role: roleError, Text: turnErr.Message})
		default:
			m.addMessage(Message{Role: roleError, Text: msg.err.Error()})
		}
		m.output = ""
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		// Re-focus textarea after error
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// phaseStatus maps a consumer phase to the progress line shown next to
// the spinner. Settled phases clear the line.
func phaseStatus(p client.Phase) string {
	switch p {
	case client.PhaseTriggered:
		return "Image search requested..."
	case client.PhaseSearching:
		return "Searching images..."
	case client.PhaseFetching:
		return "Fetching images..."
	case client.PhaseProcessing:
		return "Processing..."
	default:
		return ""
	}
}
