// Package cmd provides CLI commands for Assist.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - chat: Interactive terminal chat with Bubble Tea TUI
//
// Signal handling and graceful shutdown are implemented
// for all commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the Assist CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "chat":
		return runChat()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Assist - AI chat with image suggestions and post drafting")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  assist serve [addr]  Start HTTP API server (default: 127.0.0.1:3600)")
	fmt.Println("  assist chat          Start interactive chat against a running server")
	fmt.Println("  assist --version     Show version information")
	fmt.Println("  assist --help        Show this help")
	fmt.Println()
	fmt.Println("Chat commands (in interactive mode):")
	fmt.Println("  /help                Show available commands")
	fmt.Println("  /images              List image suggestions")
	fmt.Println("  /select <numbers>    Attach images to the next message")
	fmt.Println("  /accept, /discard    Resolve a pending post draft")
	fmt.Println("  /exit, /quit         Exit")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  OPENAI_API_KEY       API key for the openai provider")
	fmt.Println("  GEMINI_API_KEY       API key for the googleai provider")
	fmt.Println("  UNSPLASH_ACCESS_KEY  Required for image suggestions")
	fmt.Println("  ASSIST_SERVER_URL    Server URL for chat mode (default: http://127.0.0.1:3600)")
	fmt.Println("  DEBUG                Optional: Enable debug logging")
}
