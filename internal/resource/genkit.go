package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/quizforge/quizforge/internal/config"
	"github.com/quizforge/quizforge/internal/log"
)

// initGenkit initializes Genkit with the configured provider plugin. Ollama
// requires explicit model and embedder registration; Google AI registers on
// lookup.
func initGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, ai.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with ollama provider")
		}
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, ollama.Embedder(g, cfg.OllamaHost), nil

	case config.ProviderGoogleAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized genkit with googleai provider", "model", cfg.ModelName)
		return g, googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel), nil

	default:
		return nil, nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// qualifiedModelName prefixes the model name with its provider namespace the
// way Genkit expects ("ollama/llama3.3", "googleai/gemini-2.5-flash").
func qualifiedModelName(provider, model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	return provider + "/" + model
}

// genkitEmbedder adapts an ai.Embedder to single-text embedding.
type genkitEmbedder struct {
	embedder ai.Embedder
}

func (e *genkitEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("embedder returned no embedding")
	}
	return resp.Embeddings[0].Embedding, nil
}

// genkitGenerator adapts genkit.Generate to the prompt-in, text-out contract.
type genkitGenerator struct {
	g           *genkit.Genkit
	modelName   string
	temperature float64
}

func (t *genkitGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := genkit.Generate(ctx, t.g,
		ai.WithModelName(t.modelName),
		ai.WithPrompt(prompt),
		ai.WithConfig(&ai.GenerationCommonConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     t.temperature,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}
	return resp.Text(), nil
}
