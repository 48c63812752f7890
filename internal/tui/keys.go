package tui

import (
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/project-o/assist/internal/client"
)

// Slash command constants.
const (
	cmdHelp       = "/help"
	cmdClear      = "/clear"
	cmdImages     = "/images"
	cmdSelect     = "/select"
	cmdAccept     = "/accept"
	cmdDiscard    = "/discard"
	cmdVisibility = "/visibility"
	cmdExit       = "/exit"
	cmdQuit       = "/quit"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	History    key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	EscCancel  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:    key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("s+enter", "newline")),
		History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		EscCancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

//nolint:gocyclo // Keyboard handler requires branching for all key combinations
func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	// Check for Ctrl modifier
	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return m.handleCtrlC()
		case 'd':
			cmd := m.cleanup()
			return m, cmd
		}
	}

	// Check special keys
	switch k.Code {
	case tea.KeyEnter:
		if m.state == StateInput {
			// Enter without Shift = submit
			// Shift+Enter = newline (pass through to textarea)
			if k.Mod&tea.ModShift == 0 {
				return m.handleSubmit()
			}
		}

	case tea.KeyUp:
		// Up at first line navigates history, otherwise pass to textarea
		if m.state == StateInput && m.input.Line() == 0 {
			return m.navigateHistory(-1)
		}

	case tea.KeyDown:
		// Down at last line navigates history, otherwise pass to textarea
		if m.state == StateInput && m.input.Line() == m.input.LineCount()-1 {
			return m.navigateHistory(1)
		}

	case tea.KeyEscape:
		if m.state == StateStreaming {
			m.cancelTurn()
			m.state = StateInput
			m.output = ""
			m.thinking = ""
			m.phaseStatus = ""
			return m, nil
		}

	case tea.KeyPgUp:
		m.viewport.PageUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.PageDown()
		return m, nil
	}

	// Pass keys to textarea for typing - ALWAYS allow typing even during streaming
	// Better UX: users can prepare the next message while the model responds
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit
	if now.Sub(m.lastCtrlC) < time.Second {
		cmd := m.cleanup()
		return m, cmd
	}
	m.lastCtrlC = now

	switch m.state {
	case StateInput:
		m.input.Reset()
		return m, nil

	case StateStreaming:
		m.cancelTurn()
		m.state = StateInput
		m.output = ""
		m.thinking = ""
		m.phaseStatus = ""
		m.addMessage(Message{Role: roleSystem, Text: "(Canceled)"})
		m.rebuildViewportContent()
		return m, nil
	}

	return m, nil
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return m, nil
	}

	// Handle slash commands
	if strings.HasPrefix(query, "/") {
		return m.handleSlashCommand(query)
	}

	// Add to history (enforce maxHistory cap)
	m.history = append(m.history, query)
	if len(m.history) > maxHistory {
		// Remove oldest entries to stay within bounds
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.historyIdx = len(m.history)

	// Add user message (selection markers stay out of the display)
	m.addMessage(Message{Role: roleUser, Text: query})

	// Attach any selected images in the bracketed id convention
	if len(m.selected) > 0 {
		query = client.FormatSelection(m.selected, query)
		m.selected = nil
	}

	// Clear input
	m.input.Reset()

	// Start the turn
	m.state = StateStreaming
	m.rebuildViewportContent()

	return m, tea.Batch(
		m.spinner.Tick,
		m.startTurn(query),
	)
}

//nolint:gocyclo // One case per slash command
func (m *Model) handleSlashCommand(cmd string) (tea.Model, tea.Cmd) {
	name, args, _ := strings.Cut(cmd, " ")

	switch name {
	case cmdHelp:
		m.addMessage(Message{
			Role: roleSystem,
			Text: "Commands: " + strings.Join([]string{
				cmdHelp, cmdClear, cmdImages, cmdSelect + " <numbers>",
				cmdAccept, cmdDiscard, cmdVisibility, cmdExit,
			}, ", ") + "\nShortcuts:\n  Enter: send message\n  Shift+Enter: new line\n  Ctrl+C: cancel/clear\n  Ctrl+D: exit\n  Up/Down: history\n  PgUp/PgDn: scroll",
		})

	case cmdClear:
		m.messages = nil

	case cmdImages:
		m.addMessage(Message{Role: roleSystem, Text: m.renderGallery()})

	case cmdSelect:
		m.handleSelect(args)

	case cmdAccept:
		if m.proposal == nil {
			m.addMessage(Message{Role: roleError, Text: "No pending post draft."})
			break
		}
		accepted := m.proposal
		m.proposal = nil
		if m.createPost != nil {
			m.addMessage(Message{Role: roleSystem, Text: "Publishing post draft..."})
			m.input.Reset()
			m.rebuildViewportContent()
			m.viewport.GotoBottom()
			return m, m.submitProposal(accepted)
		}
		m.addMessage(Message{
			Role: roleSystem,
			Text: "Post draft confirmed: " + accepted.Content + " (" + accepted.Visibility + ")",
		})

	case cmdDiscard:
		if m.proposal == nil {
			m.addMessage(Message{Role: roleError, Text: "No pending post draft."})
			break
		}
		m.proposal = nil
		m.addMessage(Message{Role: roleSystem, Text: "Post draft discarded."})

	case cmdVisibility:
		if m.proposal == nil {
			m.addMessage(Message{Role: roleError, Text: "No pending post draft."})
			break
		}
		m.proposal.ToggleVisibility()
		m.addMessage(Message{Role: roleSystem, Text: "Visibility: " + m.proposal.Visibility})

	case cmdExit, cmdQuit:
		cleanupCmd := m.cleanup()
		return m, cleanupCmd

	default:
		m.addMessage(Message{
			Role: roleError,
			Text: "Unknown command: " + name,
		})
	}
	m.input.Reset()
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, nil
}

// handleSelect resolves 1-based gallery numbers into image ids for the
// next message.
func (m *Model) handleSelect(args string) {
	if strings.TrimSpace(args) == "" {
		m.selected = nil
		m.addMessage(Message{Role: roleSystem, Text: "Selection cleared."})
		return
	}

	var ids []string
	for _, tok := range strings.FieldsFunc(args, func(r rune) bool { return r == ',' || r == ' ' }) {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 1 || n > len(m.gallery) {
			m.addMessage(Message{Role: roleError, Text: "Invalid image number: " + tok})
			return
		}
		ids = append(ids, m.gallery[n-1].ImageID)
	}

	m.selected = ids
	m.addMessage(Message{
		Role: roleSystem,
		Text: "Selected " + strconv.Itoa(len(ids)) + " image(s) for the next message.",
	})
}

func (m *Model) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(m.history) == 0 {
		return m, nil
	}

	m.historyIdx += delta

	if m.historyIdx < 0 {
		m.historyIdx = 0
	}
	if m.historyIdx > len(m.history) {
		m.historyIdx = len(m.history)
	}

	if m.historyIdx == len(m.history) {
		m.input.SetValue("")
	} else {
		m.input.SetValue(m.history[m.historyIdx])
		// Move cursor to end of text
		m.input.CursorEnd()
	}

	return m, nil
}

func (m *Model) cancelTurn() {
	if m.turnCancel != nil {
		m.turnCancel()
		m.turnCancel = nil
	}
}

// cleanup cancels any active turn and returns the quit command.
func (m *Model) cleanup() tea.Cmd {
	// Cancel main context first - this stops all goroutines using m.ctx
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	// Then cancel turn-specific context (may already be canceled via parent)
	m.cancelTurn()
	m.turnEventCh = nil

	return tea.Quit
}
