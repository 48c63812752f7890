package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
)

// View implements tea.Model.
// Uses AltScreen with viewport for scrollable message history.
func (m *Model) View() tea.View {
	m.viewBuf.Reset()

	// Viewport (scrollable message area)
	_, _ = m.viewBuf.WriteString(m.viewport.View())
	_, _ = m.viewBuf.WriteString("\n")

	// Separator line above input
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// Input prompt - always show and always accept input
	// Users can type while the model is streaming (better UX)
	_, _ = m.viewBuf.WriteString(m.styles.Prompt.Render("> "))
	_, _ = m.viewBuf.WriteString(m.input.View())
	_, _ = m.viewBuf.WriteString("\n")

	// Separator line below input
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// Help bar (keyboard shortcuts)
	_, _ = m.viewBuf.WriteString(m.renderStatusBar())

	v := tea.NewView(m.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the viewport content from messages and state.
// Called when messages, streaming output, or state changes.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder

	// Banner (ASCII art) and tips
	_, _ = b.WriteString(m.styles.RenderBanner())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.styles.RenderWelcomeTips())
	_, _ = b.WriteString("\n")

	// Messages (already bounded by addMessage)
	for _, msg := range m.messages {
		switch msg.Role {
		case roleUser:
			_, _ = b.WriteString(m.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Text)
		case roleAssistant:
			_, _ = b.WriteString(m.styles.Assistant.Render("Assist> "))
			_, _ = b.WriteString(m.markdown.Render(msg.Text))
		case roleSystem:
			_, _ = b.WriteString(m.styles.System.Render(msg.Text))
		case roleError:
			_, _ = b.WriteString(m.styles.Error.Render("Error: " + msg.Text))
		}
		_, _ = b.WriteString("\n\n")
	}

	// Reasoning of the in-flight turn, shown dim above the answer
	if m.state == StateStreaming && m.thinking != "" {
		_, _ = b.WriteString(m.styles.System.Render(m.thinking))
		_, _ = b.WriteString("\n\n")
	}

	// Current streaming output
	if m.state == StateStreaming && m.output != "" {
		_, _ = b.WriteString(m.styles.Assistant.Render("Assist> "))
		_, _ = b.WriteString(m.output)
		_, _ = b.WriteString("\n\n")
	}

	// Phase indicator (shown while a turn progresses through
	// searching, fetching, and processing)
	if m.state == StateStreaming && m.phaseStatus != "" {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" ")
		_, _ = b.WriteString(m.styles.System.Render(m.phaseStatus))
		_, _ = b.WriteString("\n\n")
	}

	// Pending post draft awaiting /accept or /discard
	if m.proposal != nil {
		_, _ = b.WriteString(m.renderProposal())
		_, _ = b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
}

// renderProposal renders the pending create_post draft with its
// images, tags, and visibility.
func (m *Model) renderProposal() string {
	p := m.proposal

	var b strings.Builder
	_, _ = b.WriteString(m.styles.Header.Render("Post draft"))
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(p.Content)
	_, _ = b.WriteString("\n")
	if len(p.Tags) > 0 {
		_, _ = b.WriteString(m.styles.System.Render("Tags: " + strings.Join(p.Tags, ", ")))
		_, _ = b.WriteString("\n")
	}
	_, _ = b.WriteString(m.styles.System.Render("Visibility: " + p.Visibility))
	_, _ = b.WriteString("\n")
	if len(p.Images) > 0 {
		for _, img := range p.Images {
			_, _ = b.WriteString(m.styles.System.Render("  " + img.ImageID + "  " + img.URL))
			_, _ = b.WriteString("\n")
		}
	} else if len(p.ImageIDs) > 0 {
		_, _ = b.WriteString(m.styles.System.Render("Images: " + strings.Join(p.ImageIDs, ", ")))
		_, _ = b.WriteString("\n")
	}
	_, _ = b.WriteString(m.styles.Tips.Render("/accept to confirm, /discard to drop, /visibility to toggle"))
	_, _ = b.WriteString("\n")
	return m.styles.ProposalBox.Render(b.String())
}

// renderGallery returns the numbered image list for /images.
func (m *Model) renderGallery() string {
	if len(m.gallery) == 0 {
		return "No image suggestions yet."
	}
	var b strings.Builder
	_, _ = b.WriteString("Image suggestions:\n")
	for i, img := range m.gallery {
		_, _ = b.WriteString(fmt.Sprintf("  %d. %s", i+1, img.ImageID))
		if img.Author != "" {
			_, _ = b.WriteString(" by " + img.Author)
		}
		_, _ = b.WriteString("\n     " + img.URL + "\n")
	}
	_, _ = b.WriteString("Attach with /select <numbers>, e.g. /select 1,3")
	return b.String()
}

// renderSeparator returns a horizontal line separator.
func (m *Model) renderSeparator() string {
	width := m.width
	if width <= 0 {
		width = 80 // Default width
	}
	return m.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns state-appropriate keyboard shortcut help.
func (m *Model) renderStatusBar() string {
	var bindings []key.Binding
	switch m.state {
	case StateInput:
		bindings = []key.Binding{
			m.keys.Submit, m.keys.NewLine, m.keys.History,
			m.keys.Cancel, m.keys.Quit, m.keys.ScrollUp,
		}
	case StateStreaming:
		bindings = []key.Binding{
			m.keys.EscCancel, m.keys.Cancel,
			m.keys.ScrollUp, m.keys.ScrollDown,
		}
	}
	return m.help.ShortHelpView(bindings)
}
