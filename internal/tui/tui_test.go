package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	"go.uber.org/goleak"

	"github.com/project-o/assist/internal/client"
	"github.com/project-o/assist/internal/exchange"
)

// goleakOptions returns standard goleak options for all TUI tests.
// Filters out persistent goroutines that are expected to exist.
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
	}
}

// newTestModel creates a Model with properly initialized textarea for testing.
func newTestModel() *Model {
	ta := textarea.New()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	return &Model{
		state:    StateInput,
		input:    ta,
		history:  make([]string, 0),
		styles:   DefaultStyles(),
		markdown: newMarkdownRenderer(80),
		ctx:      context.Background(),
	}
}

func TestNew_ErrorOnNilClient(t *testing.T) {
	_, err := New(context.Background(), nil, "chat-1")
	if err == nil {
		t.Error("Expected error for nil client")
	}
}

func TestNew_ErrorOnNilContext(t *testing.T) {
	var c *client.Client
	//lint:ignore SA1012 intentionally testing nil context handling
	_, err := New(nil, c, "chat-1") //nolint:staticcheck
	if err == nil {
		t.Error("Expected error for nil context")
	}
}

func TestNew_ErrorOnEmptyChatID(t *testing.T) {
	_, err := New(context.Background(), nil, "")
	if err == nil {
		t.Error("Expected error for empty chat ID")
	}
}

func TestModel_HandleSlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tests := []struct {
		name     string
		cmd      string
		wantExit bool
		wantMsgs int // number of messages added
	}{
		{"help", "/help", false, 1},
		{"clear", "/clear", false, 0}, // clears messages
		{"images empty", "/images", false, 1},
		{"accept without draft", "/accept", false, 1},
		{"discard without draft", "/discard", false, 1},
		{"exit", "/exit", true, 0},
		{"quit", "/quit", true, 0},
		{"unknown", "/unknown", false, 1}, // error message
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel()

			// Pre-populate with a message for /clear test
			m.messages = []Message{{Role: roleUser, Text: "hello"}}

			model, cmd := m.handleSlashCommand(tt.cmd)
			result := model.(*Model)

			if tt.wantExit {
				if cmd == nil {
					t.Error("Expected quit command for exit")
				}
				return
			}
			if tt.cmd == "/clear" {
				if len(result.messages) != 0 {
					t.Error("/clear should clear messages")
				}
				return
			}
			if len(result.messages) != 1+tt.wantMsgs {
				t.Errorf("Expected %d messages, got %d", 1+tt.wantMsgs, len(result.messages))
			}
		})
	}
}

func TestModel_SelectImages(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.gallery = []exchange.ImageRef{
		{ImageID: "img-a", URL: "https://img/a"},
		{ImageID: "img-b", URL: "https://img/b"},
		{ImageID: "img-c", URL: "https://img/c"},
	}

	m.handleSelect("1,3")
	if len(m.selected) != 2 || m.selected[0] != "img-a" || m.selected[1] != "img-c" {
		t.Errorf("selected = %v", m.selected)
	}

	m.handleSelect("")
	if m.selected != nil {
		t.Errorf("selection not cleared: %v", m.selected)
	}

	m.handleSelect("9")
	if m.selected != nil {
		t.Errorf("out-of-range selection should not stick: %v", m.selected)
	}
	last := m.messages[len(m.messages)-1]
	if last.Role != roleError {
		t.Errorf("expected error message for bad index, got %+v", last)
	}
}

func TestModel_ProposalCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.proposal = &client.Proposal{Content: "Beach day!", Visibility: "public"}

	model, _ := m.handleSlashCommand(cmdVisibility)
	m = model.(*Model)
	if m.proposal.Visibility != "private" {
		t.Errorf("visibility = %q, want private", m.proposal.Visibility)
	}

	model, _ = m.handleSlashCommand(cmdAccept)
	m = model.(*Model)
	if m.proposal != nil {
		t.Error("/accept should clear the pending draft")
	}

	m.proposal = &client.Proposal{Content: "x"}
	model, _ = m.handleSlashCommand(cmdDiscard)
	m = model.(*Model)
	if m.proposal != nil {
		t.Error("/discard should clear the pending draft")
	}
}

func TestModel_AcceptWithPostCreator(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	var published *client.Proposal
	m.SetPostCreator(func(_ context.Context, p *client.Proposal) error {
		published = p
		return nil
	})
	m.proposal = &client.Proposal{Content: "Beach day!", Visibility: "public"}

	model, cmd := m.handleSlashCommand(cmdAccept)
	m = model.(*Model)
	if cmd == nil {
		t.Fatal("accept with a registered creator should return a command")
	}

	msg := cmd()
	created, ok := msg.(postCreatedMsg)
	if !ok {
		t.Fatalf("msg = %T, want postCreatedMsg", msg)
	}
	if created.err != nil {
		t.Errorf("err = %v", created.err)
	}
	if published == nil || published.Content != "Beach day!" {
		t.Errorf("published = %+v", published)
	}

	model, _ = m.Update(created)
	m = model.(*Model)
	last := m.messages[len(m.messages)-1]
	if last.Role != roleSystem {
		t.Errorf("last message = %+v", last)
	}
}

func TestModel_HistoryNavigation(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.history = []string{"first", "second", "third"}
	m.historyIdx = 3

	tests := []struct {
		delta    int
		expected string
	}{
		{-1, "third"},
		{-1, "second"},
		{-1, "first"},
		{-1, "first"}, // Should stay at first
		{1, "second"},
		{1, "third"},
		{1, ""}, // Past end = empty
		{1, ""}, // Should stay empty
	}

	for i, tt := range tests {
		model, _ := m.navigateHistory(tt.delta)
		m = model.(*Model)
		if m.input.Value() != tt.expected {
			t.Errorf("Step %d: got %q, want %q", i, m.input.Value(), tt.expected)
		}
	}
}

func TestModel_CtrlC_ClearsInput(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.input.SetValue("some input")

	model, _ := m.handleCtrlC()
	result := model.(*Model)

	if result.input.Value() != "" {
		t.Error("First Ctrl+C should clear input")
	}
}

func TestModel_DoubleCtrlC_Exits(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.lastCtrlC = time.Now()

	_, cmd := m.handleCtrlC()

	if cmd == nil {
		t.Error("Double Ctrl+C should return quit command")
	}
}

func TestModel_Update_KeyPress(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.input.SetValue("test")

	// Simulate Ctrl+C (should clear input)
	key := tea.Key{Code: 'c', Mod: tea.ModCtrl}
	msg := tea.KeyPressMsg(key)

	model, _ := m.Update(msg)
	result := model.(*Model)

	if result.input.Value() != "" {
		t.Error("Ctrl+C should clear input")
	}
}

func TestModel_View_NotEmpty(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()

	view := m.View()
	if view.Content == nil {
		t.Error("View content should not be nil")
	}
}

func TestModel_TurnMessageTypes(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("turnContentMsg", func(t *testing.T) {
		eventCh := make(chan turnEvent, 1)

		m := newTestModel()
		m.state = StateStreaming
		m.turnEventCh = eventCh

		model, _ := m.Update(turnContentMsg{text: "Hello"})
		result := model.(*Model)

		if result.output != "Hello" {
			t.Errorf("Expected 'Hello', got %q", result.output)
		}
	})

	t.Run("turnPhaseMsg", func(t *testing.T) {
		eventCh := make(chan turnEvent, 1)

		m := newTestModel()
		m.state = StateStreaming
		m.turnEventCh = eventCh

		model, _ := m.Update(turnPhaseMsg{phase: client.PhaseSearching})
		result := model.(*Model)

		if result.phaseStatus == "" {
			t.Error("Searching phase should set a status line")
		}
	})

	t.Run("turnImagesMsg", func(t *testing.T) {
		eventCh := make(chan turnEvent, 1)

		m := newTestModel()
		m.state = StateStreaming
		m.turnEventCh = eventCh

		batch := []exchange.ImageRef{{ImageID: "s1"}, {ImageID: "s2"}}
		model, _ := m.Update(turnImagesMsg{images: batch})
		result := model.(*Model)

		if len(result.gallery) != 2 {
			t.Errorf("gallery = %d entries, want 2", len(result.gallery))
		}
	})

	t.Run("turnDoneMsg", func(t *testing.T) {
		m := newTestModel()
		m.state = StateStreaming
		m.output = "Hello World"

		model, _ := m.Update(turnDoneMsg{result: &client.TurnResult{
			Text:   "Hello World",
			Images: []exchange.ImageRef{{ImageID: "s1"}},
		}})
		result := model.(*Model)

		if result.state != StateInput {
			t.Error("Should return to StateInput after the turn settles")
		}
		if len(result.messages) != 1 {
			t.Error("Should add assistant message")
		}
		if result.output != "" {
			t.Error("Streaming output should be reset")
		}
		if len(result.gallery) != 1 {
			t.Error("Gallery should be replaced with the settled image set")
		}
	})

	t.Run("turnErrorMsg cancellation", func(t *testing.T) {
		m := newTestModel()
		m.state = StateStreaming

		model, _ := m.Update(turnErrorMsg{err: context.Canceled})
		result := model.(*Model)

		if result.state != StateInput {
			t.Error("Should return to StateInput after error")
		}
		if len(result.messages) != 1 {
			t.Error("Should add system message for cancellation")
		}
		if result.messages[0].Role != roleSystem {
			t.Error("Should be system message for cancellation")
		}
	})

	t.Run("turnErrorMsg stream failure", func(t *testing.T) {
		m := newTestModel()
		m.state = StateStreaming

		model, _ := m.Update(turnErrorMsg{err: &client.TurnError{Code: "model_error", Message: "model stream failed"}})
		result := model.(*Model)

		if result.messages[0].Role != roleError {
			t.Errorf("role = %q, want error", result.messages[0].Role)
		}
		if result.messages[0].Text != "model stream failed" {
			t.Errorf("text = %q", result.messages[0].Text)
		}
	})
}

func TestListenForTurn_UnionChannel(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("content event", func(t *testing.T) {
		eventCh := make(chan turnEvent, 1)
		eventCh <- turnEvent{content: "hello", hasContent: true}

		cmd := listenForTurn(eventCh)
		msg := cmd()

		if m, ok := msg.(turnContentMsg); !ok {
			t.Errorf("Expected turnContentMsg, got %T", msg)
		} else if m.text != "hello" {
			t.Errorf("Expected text 'hello', got %q", m.text)
		}
	})

	t.Run("done event", func(t *testing.T) {
		eventCh := make(chan turnEvent, 1)
		eventCh <- turnEvent{result: &client.TurnResult{Text: "done"}}

		cmd := listenForTurn(eventCh)
		msg := cmd()

		if m, ok := msg.(turnDoneMsg); !ok {
			t.Errorf("Expected turnDoneMsg, got %T", msg)
		} else if m.result.Text != "done" {
			t.Errorf("Expected text 'done', got %q", m.result.Text)
		}
	})

	t.Run("proposal event", func(t *testing.T) {
		eventCh := make(chan turnEvent, 1)
		eventCh <- turnEvent{proposal: &client.Proposal{Content: "draft"}}

		cmd := listenForTurn(eventCh)
		msg := cmd()

		if m, ok := msg.(turnProposalMsg); !ok {
			t.Errorf("Expected turnProposalMsg, got %T", msg)
		} else if m.proposal.Content != "draft" {
			t.Errorf("proposal = %+v", m.proposal)
		}
	})

	t.Run("error event", func(t *testing.T) {
		eventCh := make(chan turnEvent, 1)
		eventCh <- turnEvent{err: context.Canceled}

		cmd := listenForTurn(eventCh)
		msg := cmd()

		if _, ok := msg.(turnErrorMsg); !ok {
			t.Errorf("Expected turnErrorMsg, got %T", msg)
		}
	})

	t.Run("channel closed", func(t *testing.T) {
		eventCh := make(chan turnEvent)
		close(eventCh)

		cmd := listenForTurn(eventCh)
		msg := cmd()

		if _, ok := msg.(turnErrorMsg); !ok {
			t.Errorf("Expected turnErrorMsg on channel close, got %T", msg)
		}
	})

	t.Run("nil channel returns nil", func(t *testing.T) {
		cmd := listenForTurn(nil)
		msg := cmd()

		if msg != nil {
			t.Errorf("Expected nil for nil channel, got %T", msg)
		}
	})
}

func TestModel_AddMessage_BoundsEnforcement(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()

	// Add more than maxMessages
	for i := 0; i < maxMessages+50; i++ {
		m.addMessage(Message{Role: roleUser, Text: "test"})
	}

	if len(m.messages) != maxMessages {
		t.Errorf("Expected exactly %d messages, got %d", maxMessages, len(m.messages))
	}
}

func TestModel_RenderGallery(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	if got := m.renderGallery(); got != "No image suggestions yet." {
		t.Errorf("empty gallery = %q", got)
	}

	m.gallery = []exchange.ImageRef{{ImageID: "img-a", URL: "https://img/a", Author: "Ada"}}
	got := m.renderGallery()
	if !strings.Contains(got, "1. img-a") || !strings.Contains(got, "by Ada") {
		t.Errorf("gallery render = %q", got)
	}
}

func TestPhaseStatus(t *testing.T) {
	if phaseStatus(client.PhaseSearching) == "" {
		t.Error("searching should have a status line")
	}
	if phaseStatus(client.PhaseCompleted) != "" {
		t.Error("completed should clear the status line")
	}
	if phaseStatus(client.PhaseIdle) != "" {
		t.Error("idle should have no status line")
	}
}

func TestModel_HistoryLoaded(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	model, _ := m.Update(historyLoadedMsg{messages: []client.HistoryMessage{
		{Role: "user", Content: `["a"] show me sunsets`},
		{Role: "assistant", Content: "Here you go.", Images: []exchange.ImageRef{{ImageID: "a"}}},
	}})
	result := model.(*Model)

	if len(result.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(result.messages))
	}
	if result.messages[0].Text != "show me sunsets" {
		t.Errorf("user text = %q, selection marker should be stripped", result.messages[0].Text)
	}
	if len(result.gallery) != 1 {
		t.Errorf("gallery = %d entries, want 1", len(result.gallery))
	}
}
