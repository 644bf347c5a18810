package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/quizforge/quizforge/internal/resource"
)

// runStatus reports dependency health and index statistics.
func runStatus() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	status := a.manager.HealthCheck(ctx)
	fmt.Printf("State: %s\n\n", status.State)
	for _, c := range []resource.Component{resource.ComponentEmbedder, resource.ComponentLLM, resource.ComponentVectorStore} {
		cs := status.Components[c]
		if cs.Ready {
			fmt.Printf("  %-13s ok\n", c)
		} else {
			fmt.Printf("  %-13s down (%s)\n", c, cs.Error)
		}
	}

	records, err := a.meta.Records(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("\nNo subjects indexed yet. Run `quizforge index` first.")
		return nil
	}

	fmt.Println("\nSubjects:")
	for _, rec := range records {
		fmt.Printf("  %-20s %6d chunks  indexed %s\n",
			rec.Subject, rec.ChunkCount, rec.LastIndexedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
