// Package engine answers queries against indexed subject collections. It
// embeds incoming queries, retrieves similar chunks, builds prompts, invokes
// the language model, and parses/validates the structured output. Successful
// question batches are cached with a TTL so repeated requests skip the model
// entirely.
package engine

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/quizforge/quizforge/internal/index"
	"github.com/quizforge/quizforge/internal/log"
	"github.com/quizforge/quizforge/internal/vectorstore"
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// TextGenerator produces free-form text from a prompt. maxTokens caps the
// output length; implementations may ignore it when the backend has no such
// knob.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// SearchStore is the similarity-search slice of the vector store.
type SearchStore interface {
	Search(ctx context.Context, collection string, vector []float32, k int, minScore float32) ([]vectorstore.Hit, error)
}

// SubjectResolver maps subjects onto their active collections. The index
// metadata store satisfies this.
type SubjectResolver interface {
	ActiveCollection(ctx context.Context, subject string) (string, error)
	Subjects(ctx context.Context) ([]string, error)
	Records(ctx context.Context) ([]index.SubjectRecord, error)
}

// Question is one validated multiple-choice question.
type Question struct {
	Question      string `json:"question"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer"`
	// Explanation is accepted when the model provides one, never required.
	Explanation string `json:"explanation,omitempty"`
}

// options returns the four answer options in order.
func (q Question) options() [4]string {
	return [4]string{q.OptionA, q.OptionB, q.OptionC, q.OptionD}
}

// MCQRequest asks for a batch of questions on one subject.
type MCQRequest struct {
	Subject      string `validate:"required"`
	NumQuestions int    `validate:"min=1"`
	Difficulty   string `validate:"oneof=easy medium hard"`
}

// MCQResult is a successful generation outcome. Questions may number fewer
// than requested; a partial yield is a success, not an error.
type MCQResult struct {
	Questions      []Question
	SourcesUsed    []string
	ModelUsed      string
	GenerationTime time.Duration
	FromCache      bool
}

// ChatRequest asks for a free-text answer.
type ChatRequest struct {
	Query     string `validate:"required"`
	Subject   string
	SessionID string
}

// ChatResult is a chat answer with its supporting sources.
type ChatResult struct {
	Response  string
	Sources   []string
	ModelUsed string
	SessionID string
	Elapsed   time.Duration
}

// Options tunes retrieval and generation behavior.
type Options struct {
	ModelName           string
	SimilarityThreshold float32
	SearchTopK          int
	ChatTopK            int
	MaxQuestions        int
	TokensPerQuestion   int
	TokenOverhead       int
	MaxOutputTokens     int
	GenerationTimeout   time.Duration
	ChatTimeout         time.Duration
	CacheSize           int
	CacheTTL            time.Duration
	RateLimitRPS        float64
	Retry               RetryConfig
}

func (o *Options) applyDefaults() {
	if o.SearchTopK <= 0 {
		o.SearchTopK = 5
	}
	if o.ChatTopK <= 0 {
		o.ChatTopK = 3
	}
	if o.MaxQuestions <= 0 {
		o.MaxQuestions = 50
	}
	if o.TokensPerQuestion <= 0 {
		o.TokensPerQuestion = 150
	}
	if o.TokenOverhead <= 0 {
		o.TokenOverhead = 200
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = 4096
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = 60 * time.Second
	}
	if o.ChatTimeout <= 0 {
		o.ChatTimeout = 20 * time.Second
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 128
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Hour
	}
	if o.Retry.MaxRetries == 0 && o.Retry.InitialInterval == 0 {
		o.Retry = DefaultRetryConfig()
	}
}

// Engine is the query-time retrieval and generation service.
// Safe for concurrent use.
type Engine struct {
	embedder Embedder
	gen      TextGenerator
	store    SearchStore
	subjects SubjectResolver
	cache    *responseCache
	limiter  *rate.Limiter
	validate *validator.Validate
	opts     Options
	logger   log.Logger
}

// New wires an Engine from its collaborators. All dependencies are required
// except the logger, which falls back to a no-op.
func New(embedder Embedder, gen TextGenerator, store SearchStore, subjects SubjectResolver, opts Options, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	opts.applyDefaults()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	return &Engine{
		embedder: embedder,
		gen:      gen,
		store:    store,
		subjects: subjects,
		cache:    newResponseCache(opts.CacheSize, opts.CacheTTL),
		limiter:  limiter,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
		logger:   logger,
	}
}
