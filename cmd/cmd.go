// Package cmd provides the CLI commands for riverchat.
//
// Commands:
//   - cli: interactive terminal chat
//   - serve: HTTP API server with SSE streaming
//   - convert: knowledge-base JSON to plain text for index ingestion
//
// Signal handling and graceful shutdown are implemented for the
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rivertownball/riverchat/internal/log"
)

// Execute is the main entry point for the riverchat CLI.
func Execute() error {
	logger := log.New(log.Config{Level: logLevel()})

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "cli":
		return runCLI(logger)
	case "serve":
		return runServe(logger)
	case "convert":
		return runConvert()
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

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("riverchat - Rivertown Ball Company conversational front-end")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  riverchat cli                  Start interactive chat mode")
	fmt.Println("  riverchat serve [addr]         Start HTTP API server (default: 127.0.0.1:3500)")
	fmt.Println("  riverchat convert <input.json> Convert knowledge base to plain text on stdout")
	fmt.Println("  riverchat --version            Show version information")
	fmt.Println("  riverchat --help               Show this help")
	fmt.Println()
	fmt.Println("CLI Commands (in interactive mode):")
	fmt.Println("  /reset             Clear the conversation and start over")
	fmt.Println("  /exit, /quit       Leave the chat")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  AWS_REGION                   AWS region for Bedrock and DynamoDB")
	fmt.Println("  RIVERCHAT_KNOWLEDGE_BASE_ID  Required: Bedrock knowledge base ID")
	fmt.Println("  RIVERCHAT_VOICE_API_KEY      Required: voice platform API key")
	fmt.Println("  DEBUG                        Optional: enable debug logging")
}
