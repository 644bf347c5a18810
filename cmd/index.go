package cmd

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/quizforge/quizforge/internal/index"
)

// runIndex builds or refreshes subject collections.
func runIndex(args []string) error {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	subject := fs.String("subject", "", "subject to index (default: all discovered subjects)")
	force := fs.Bool("force", false, "rebuild the collection from scratch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	builder, err := a.builder()
	if err != nil {
		return err
	}

	if *subject != "" {
		res, err := builder.IndexSubject(ctx, *subject, *force)
		if err != nil {
			return err
		}
		printIndexResult(res)
		return nil
	}

	results, err := builder.IndexAll(ctx, *force)
	if err != nil {
		return err
	}
	for _, res := range results {
		printIndexResult(res)
	}
	return nil
}

func printIndexResult(res *index.Result) {
	if res.Skipped {
		fmt.Printf("%-20s up to date\n", res.Subject)
		return
	}
	fmt.Printf("%-20s %d chunks from %d files", res.Subject, res.ChunksIndexed, len(res.ProcessedFiles))
	if len(res.FailedFiles) > 0 {
		fmt.Printf(" (%d failed)", len(res.FailedFiles))
	}
	fmt.Println()
}
