package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"

	"github.com/project-o/assist/internal/client"
	"github.com/project-o/assist/internal/log"
	"github.com/project-o/assist/internal/tui"
)

// defaultServerURL is where chat mode looks for a running serve
// instance when ASSIST_SERVER_URL is unset.
const defaultServerURL = "http://127.0.0.1:3600"

// runChat starts the interactive Bubble Tea chat against a running
// API server.
func runChat() error {
	serverURL, chatID, err := parseChatArgs()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := client.New(client.Config{BaseURL: serverURL, Logger: loggerForChat()})
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	model, err := tui.New(ctx, c, chatID)
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}
	program := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}

// parseChatArgs reads the chat flags: --server overrides the target
// URL and --chat resumes an existing chat id. A fresh id is generated
// when none is given.
func parseChatArgs() (serverURL, chatID string, err error) {
	chatFlags := flag.NewFlagSet("chat", flag.ContinueOnError)
	chatFlags.SetOutput(os.Stderr)

	defaultURL := os.Getenv("ASSIST_SERVER_URL")
	if defaultURL == "" {
		defaultURL = defaultServerURL
	}

	server := chatFlags.String("server", defaultURL, "API server URL")
	chat := chatFlags.String("chat", "", "Chat ID to resume (default: new chat)")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	if err := chatFlags.Parse(args); err != nil {
		return "", "", fmt.Errorf("parsing chat flags: %w", err)
	}

	id := *chat
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return "", "", fmt.Errorf("invalid chat id %q: %w", id, err)
	}

	return *server, id, nil
}

// loggerForChat keeps TUI noise out of the terminal by discarding
// client logs unless DEBUG is set.
func loggerForChat() log.Logger {
	if os.Getenv("DEBUG") != "" {
		return log.New(log.Config{})
	}
	return log.NewNop()
}
