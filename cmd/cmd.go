// Package cmd provides the quizforge CLI commands.
//
// Commands:
//   - index: build or refresh subject vector collections
//   - generate: produce multiple-choice questions for a subject
//   - chat: answer a one-shot question against indexed material
//   - status: report dependency health and index statistics
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/quizforge/quizforge/internal/log"
)

// Execute is the main entry point for the quizforge CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "index":
		return runIndex(os.Args[2:])
	case "generate":
		return runGenerate(os.Args[2:])
	case "chat":
		return runChat(os.Args[2:])
	case "status":
		return runStatus()
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

func runHelp() {
	fmt.Println("quizforge - retrieval-augmented quiz generation")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  quizforge index [-subject NAME] [-force]      Index subject documents")
	fmt.Println("  quizforge generate -subject NAME [-count N]   Generate multiple-choice questions")
	fmt.Println("                     [-difficulty easy|medium|hard] [-batch N]")
	fmt.Println("  quizforge chat -subject NAME QUESTION...      Answer a question from indexed material")
	fmt.Println("  quizforge status                              Show dependency health and index stats")
	fmt.Println("  quizforge version                             Show version information")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  QUIZFORGE_PROVIDER       ollama (default) or googleai")
	fmt.Println("  QUIZFORGE_DOCUMENTS_DIR  Root directory of subject document folders")
	fmt.Println("  GEMINI_API_KEY           Required for the googleai provider")
	fmt.Println("  DEBUG                    Enable debug logging")
}
