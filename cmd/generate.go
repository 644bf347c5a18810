package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizforge/quizforge/internal/engine"
	"github.com/quizforge/quizforge/internal/generation"
)

// runGenerate produces multiple-choice questions. Requests larger than one
// batch run through the chunked coordinator so the first slice prints
// immediately while the rest generates in the background.
func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	subject := fs.String("subject", "", "subject to generate questions for (required)")
	count := fs.Int("count", 5, "number of questions")
	difficulty := fs.String("difficulty", "medium", "easy, medium or hard")
	batch := fs.Int("batch", 0, "batch size for chunked generation (default: config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("generate: -subject is required")
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

	batchSize := *batch
	if batchSize <= 0 {
		batchSize = a.cfg.BatchSize
	}

	if *count <= batchSize {
		res, err := e.GenerateMCQ(ctx, engine.MCQRequest{
			Subject:      *subject,
			NumQuestions: *count,
			Difficulty:   *difficulty,
		})
		if err != nil {
			return err
		}
		return printQuestions(res.Questions, res.SourcesUsed)
	}

	coord := a.coordinator(e)
	defer coord.Close()

	start, err := coord.Start(ctx, generation.StartRequest{
		Subject:     *subject,
		Difficulty:  *difficulty,
		TotalNeeded: *count,
		BatchSize:   batchSize,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "generated %d of %d questions, continuing...\n", len(start.InitialQuestions), *count)

	for {
		progress, err := coord.GetProgress(start.GenerationID)
		if err != nil {
			return err
		}
		switch progress.Status {
		case generation.StatusCompleted:
			questions, err := coord.Questions(start.GenerationID)
			if err != nil {
				return err
			}
			return printQuestions(questions, nil)
		case generation.StatusFailed:
			return fmt.Errorf("generation failed after %d questions: %s", progress.GeneratedCount, progress.Error)
		case generation.StatusCancelled:
			return fmt.Errorf("generation cancelled after %d questions", progress.GeneratedCount)
		}

		select {
		case <-ctx.Done():
			_ = coord.Cancel(start.GenerationID)
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func printQuestions(questions []engine.Question, sources []string) error {
	out := struct {
		Questions []engine.Question `json:"questions"`
		Sources   []string          `json:"sources,omitempty"`
	}{Questions: questions, Sources: sources}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
