// Package tui provides the Bubble Tea terminal interface for Assist.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/project-o/assist/internal/client"
	"github.com/project-o/assist/internal/exchange"
)

// State represents TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput     State = iota // Awaiting user input
	StateStreaming              // Consuming a turn stream
)

// Memory bounds to prevent unbounded growth.
const (
	maxMessages = 100 // Maximum messages stored
	maxHistory  = 100 // Maximum command history entries
)

// turnTimeout bounds a single turn including the post-stream image fetch.
const turnTimeout = 5 * time.Minute

// Message role constants for consistent display.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
	roleError     = "error"
)

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Two separator lines (above and below input)
	helpLines      = 1 // Help bar height
	promptLines    = 1 // Prompt prefix line
	minViewport    = 3 // Minimum viewport height
)

// Message represents a conversation message for display.
type Message struct {
	Role string // "user", "assistant", "system", "error"
	Text string
}

// Model is the Bubble Tea model for the Assist terminal interface.
type Model struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	lastCtrlC time.Time

	// Output
	spinner  spinner.Model
	output   string // Assembled text of the in-flight turn
	thinking string // Assembled reasoning of the in-flight turn
	viewBuf  strings.Builder
	messages []Message

	// Image suggestions surfaced by the current chat, numbered for
	// /select. Replaced with the chat's full image set after each turn.
	gallery  []exchange.ImageRef
	selected []string // Image ids to prepend to the next message

	// Pending create_post proposal awaiting /accept or /discard.
	proposal *client.Proposal

	// Optional callback that publishes an accepted draft. Nil means
	// /accept only confirms locally.
	createPost client.PostCreator

	// Scrollable message viewport
	viewport viewport.Model

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	// Turn management
	// Note: No sync.WaitGroup - Bubble Tea's event loop provides synchronization.
	// Single union channel with discriminated events simplifies select logic.
	turnCancel  context.CancelFunc
	turnEventCh <-chan turnEvent
	phaseStatus string // Human-readable progress line, empty when idle

	// Dependencies (direct, no interface)
	client *client.Client
	chatID string
	ctx    context.Context
	cancel context.CancelFunc // For canceling all operations on exit

	// Dimensions
	width  int
	height int

	// Styles
	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// addMessage appends a message and enforces maxMessages bound.
func (m *Model) addMessage(msg Message) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxMessages {
		// Remove oldest messages to stay within bounds
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// New creates a Model for chat interaction.
// Returns error if required dependencies are nil.
//
// IMPORTANT: ctx MUST be the same context passed to tea.WithContext()
// to ensure consistent cancellation behavior.
func New(ctx context.Context, c *client.Client, chatID string) (*Model, error) {
	if c == nil {
		return nil, errors.New("tui.New: client is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}
	if chatID == "" {
		return nil, errors.New("tui.New: chat ID is required")
	}

	// Create cancellable context for cleanup on exit
	ctx, cancel := context.WithCancel(ctx)

	// Create textarea for multi-line input
	// Enter submits, Shift+Enter adds newline (default behavior)
	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.SetHeight(1)  // Single line by default
	ta.SetWidth(120) // Wide enough for long text, updated on WindowSizeMsg
	ta.MaxWidth = 0  // No max width limit
	ta.ShowLineNumbers = false

	// Clean, minimal styling, no background colors
	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")), // Gray placeholder
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{
		Focused: cleanStyle,
		Blurred: cleanStyle,
	})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Create viewport for scrollable message history.
	// Disable built-in keyboard handling; keys are routed explicitly
	// in handleKey to avoid conflicts with textarea/history navigation.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{} // Disable default key bindings

	h := help.New()

	return &Model{
		client:   c,
		chatID:   chatID,
		ctx:      ctx,
		cancel:   cancel,
		input:    ta,
		spinner:  sp,
		viewport: vp,
		help:     h,
		keys:     newKeyMap(),
		styles:   DefaultStyles(),
		history:  make([]string, 0, maxHistory),
		markdown: newMarkdownRenderer(80),
		width:    80, // Default width until WindowSizeMsg arrives
	}, nil
}

// SetPostCreator registers the callback invoked when the user accepts
// a post draft with /accept.
func (m *Model) SetPostCreator(fn client.PostCreator) {
	m.createPost = fn
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.input.Focus(), // Ensure textarea is focused on startup
		m.loadHistory(),
	)
}
