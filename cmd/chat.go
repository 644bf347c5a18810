package cmd

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quizforge/quizforge/internal/engine"
)

// runChat answers a one-shot question against indexed material.
func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	subject := fs.String("subject", "", "restrict retrieval to one subject")
	session := fs.String("session", "", "session identifier passed through to the response")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return fmt.Errorf("chat: a question is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	e, err := a.engine()
	if err != nil {
		return err
	}

	res, err := e.GenerateChat(ctx, engine.ChatRequest{
		Query:     query,
		Subject:   *subject,
		SessionID: *session,
	})
	if err != nil {
		return err
	}

	fmt.Println(res.Response)
	if len(res.Sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(res.Sources, ", "))
	}
	return nil
}
