package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rivertownball/riverchat/internal/app"
	"github.com/rivertownball/riverchat/internal/config"
	"github.com/rivertownball/riverchat/internal/log"
)

const greeting = "Welcome to the Rivertown Ball Company! How can I help you today?\n" +
	"(/reset starts over, /exit leaves the chat)"

// runCLI starts the interactive terminal chat.
func runCLI(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	sess := a.Sessions.Create()
	fmt.Println(greeting)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nyou> ")
		if !scanner.Scan() {
			// Ctrl+D or closed stdin.
			fmt.Println()
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/exit", line == "/quit":
			fmt.Println("Goodbye!")
			return nil
		case line == "/reset":
			a.Router.Reset(sess)
			fmt.Println("Conversation cleared.")
			continue
		}

		fmt.Print("rivertown> ")
		reply := a.Router.Route(ctx, line, sess)
		if reply.Streaming() {
			for fragment := range reply.Stream {
				fmt.Print(fragment)
			}
			fmt.Println()
		} else {
			fmt.Println(reply.Text)
		}
	}
}
