package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizforge/quizforge/internal/vectorstore"
)

const fiveQuestionArray = `[
	{"question": "What does F equal in Newton's second law?", "option_a": "ma", "option_b": "mv", "option_c": "mg", "option_d": "m/a", "correct_answer": "ma"},
	{"question": "Force is measured in?", "option_a": "joules", "option_b": "newtons", "option_c": "watts", "option_d": "pascals", "correct_answer": "newtons"},
	{"question": "Doubling mass at constant force does what to acceleration?", "option_a": "doubles it", "option_b": "halves it", "option_c": "squares it", "option_d": "nothing", "correct_answer": "halves it"},
	{"question": "Acceleration is proportional to?", "option_a": "net force", "option_b": "color", "option_c": "temperature", "option_d": "volume", "correct_answer": "net force"},
	{"question": "Which law is F=ma?", "option_a": "first", "option_b": "second", "option_c": "third", "option_d": "zeroth", "correct_answer": "second"}
]`

func physicsFixtures() (*fakeStore, *fakeResolver) {
	store := &fakeStore{hits: map[string][]vectorstore.Hit{
		"physics__1": {
			hit("Newton's second law states F=ma, relating force, mass and acceleration.", "newton.txt", 0.91),
			hit("Force is measured in newtons.", "units.txt", 0.72),
		},
	}}
	resolver := &fakeResolver{collections: map[string]string{"physics": "physics__1"}}
	return store, resolver
}

func TestSearchSubject(t *testing.T) {
	store, resolver := physicsFixtures()
	e := newTestEngine(t, &scriptedGenerator{}, store, resolver)

	hits, err := e.Search(context.Background(), "newton force", "physics", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.GreaterOrEqual(t, hits[0].Similarity, hits[1].Similarity, "sorted descending")
}

func TestSearchUnknownSubject(t *testing.T) {
	store, resolver := physicsFixtures()
	e := newTestEngine(t, &scriptedGenerator{}, store, resolver)

	_, err := e.Search(context.Background(), "anything", "astrology", 5)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestSearchFanOutMergesSubjects(t *testing.T) {
	store := &fakeStore{hits: map[string][]vectorstore.Hit{
		"physics__1": {hit("F=ma", "newton.txt", 0.9)},
		"biology__1": {hit("Cells divide by mitosis.", "cells.txt", 0.95)},
	}}
	resolver := &fakeResolver{collections: map[string]string{
		"physics": "physics__1",
		"biology": "biology__1",
	}}
	e := newTestEngine(t, &scriptedGenerator{}, store, resolver)

	hits, err := e.Search(context.Background(), "science", "", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Cells divide by mitosis.", hits[0].Content, "merged results sorted by similarity")

	hits, err = e.Search(context.Background(), "science", "", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1, "k bounds the merged result")
}

func TestGenerateMCQSuccess(t *testing.T) {
	store, resolver := physicsFixtures()
	gen := &scriptedGenerator{responses: []string{fiveQuestionArray}}
	e := newTestEngine(t, gen, store, resolver)

	res, err := e.GenerateMCQ(context.Background(), MCQRequest{Subject: "physics", NumQuestions: 5, Difficulty: "medium"})
	require.NoError(t, err)

	assert.Len(t, res.Questions, 5)
	assert.False(t, res.FromCache)
	assert.Equal(t, "test-model", res.ModelUsed)
	assert.Equal(t, []string{"newton.txt", "units.txt"}, res.SourcesUsed)
	for _, q := range res.Questions {
		matched := 0
		for _, opt := range q.options() {
			if opt == q.CorrectAnswer {
				matched++
			}
		}
		assert.Equal(t, 1, matched, "correct answer must match exactly one option: %q", q.Question)
	}
}

func TestGenerateMCQCachedSecondCall(t *testing.T) {
	store, resolver := physicsFixtures()
	gen := &scriptedGenerator{responses: []string{fiveQuestionArray}}
	e := newTestEngine(t, gen, store, resolver)

	req := MCQRequest{Subject: "physics", NumQuestions: 5, Difficulty: "medium"}
	first, err := e.GenerateMCQ(context.Background(), req)
	require.NoError(t, err)

	second, err := e.GenerateMCQ(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Equal(t, first.Questions, second.Questions, "cached payload is identical")
	assert.Equal(t, 1, gen.callCount(), "no second model invocation within TTL")
}

func TestGenerateMCQPartialYield(t *testing.T) {
	// Model returns four well-formed questions when five were requested.
	partial := `[
		{"question": "Q1", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "a"},
		{"question": "Q2", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "b"},
		{"question": "Q3", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "c"},
		{"question": "Q4", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "d"}
	]`
	store, resolver := physicsFixtures()
	e := newTestEngine(t, &scriptedGenerator{responses: []string{partial}}, store, resolver)

	res, err := e.GenerateMCQ(context.Background(), MCQRequest{Subject: "physics", NumQuestions: 5, Difficulty: "easy"})
	require.NoError(t, err, "partial yield is a success, not an error")
	assert.Len(t, res.Questions, 4)
}

func TestGenerateMCQDiscardsInvalidIndividually(t *testing.T) {
	mixed := `[
		{"question": "Good", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "a"},
		{"question": "Bad answer", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "e"},
		{"question": "", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "a"}
	]`
	store, resolver := physicsFixtures()
	e := newTestEngine(t, &scriptedGenerator{responses: []string{mixed}}, store, resolver)

	res, err := e.GenerateMCQ(context.Background(), MCQRequest{Subject: "physics", NumQuestions: 3, Difficulty: "easy"})
	require.NoError(t, err)
	require.Len(t, res.Questions, 1)
	assert.Equal(t, "Good", res.Questions[0].Question)
}

func TestGenerateMCQValidationFailure(t *testing.T) {
	allBad := `[{"question": "Q", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "nope"}]`
	store, resolver := physicsFixtures()
	e := newTestEngine(t, &scriptedGenerator{responses: []string{allBad}}, store, resolver)

	_, err := e.GenerateMCQ(context.Background(), MCQRequest{Subject: "physics", NumQuestions: 1, Difficulty: "easy"})
	require.ErrorIs(t, err, ErrValidationFailure)
}

func TestGenerateMCQParseFailure(t *testing.T) {
	store, resolver := physicsFixtures()
	e := newTestEngine(t, &scriptedGenerator{responses: []string{"I cannot do that"}}, store, resolver)

	_, err := e.GenerateMCQ(context.Background(), MCQRequest{Subject: "physics", NumQuestions: 2, Difficulty: "hard"})
	require.ErrorIs(t, err, ErrParseFailure)
}

func TestGenerateMCQNoContent(t *testing.T) {
	store := &fakeStore{hits: map[string][]vectorstore.Hit{"physics__1": nil}}
	resolver := &fakeResolver{collections: map[string]string{"physics": "physics__1"}}
	gen := &scriptedGenerator{responses: []string{fiveQuestionArray}}
	e := newTestEngine(t, gen, store, resolver)

	_, err := e.GenerateMCQ(context.Background(), MCQRequest{Subject: "physics", NumQuestions: 5, Difficulty: "medium"})
	require.ErrorIs(t, err, ErrNoContent)
	assert.Zero(t, gen.callCount(), "no model call without retrieved content")
}

func TestGenerateMCQRejectsBadRequest(t *testing.T) {
	store, resolver := physicsFixtures()
	e := newTestEngine(t, &scriptedGenerator{}, store, resolver)
	ctx := context.Background()

	_, err := e.GenerateMCQ(ctx, MCQRequest{Subject: "", NumQuestions: 5, Difficulty: "easy"})
	require.Error(t, err)

	_, err = e.GenerateMCQ(ctx, MCQRequest{Subject: "physics", NumQuestions: 0, Difficulty: "easy"})
	require.Error(t, err)

	_, err = e.GenerateMCQ(ctx, MCQRequest{Subject: "physics", NumQuestions: 5, Difficulty: "impossible"})
	require.Error(t, err)

	_, err = e.GenerateMCQ(ctx, MCQRequest{Subject: "physics", NumQuestions: 999, Difficulty: "easy"})
	require.Error(t, err)
}

func TestGenerateMCQTimeout(t *testing.T) {
	store, resolver := physicsFixtures()
	gen := &scriptedGenerator{
		responses: []string{fiveQuestionArray},
		block:     150 * time.Millisecond,
		released:  make(chan struct{}),
	}
	e := New(&fakeEmbedder{}, gen, store, resolver, Options{
		ModelName:         "test-model",
		GenerationTimeout: 20 * time.Millisecond,
		Retry:             RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}, nil)

	_, err := e.GenerateMCQ(context.Background(), MCQRequest{Subject: "physics", NumQuestions: 2, Difficulty: "easy"})
	require.ErrorIs(t, err, ErrGenerationTimeout)

	// Wait out the abandoned model call so the goroutine check stays clean.
	<-gen.released
}

func TestGenerateChat(t *testing.T) {
	store, resolver := physicsFixtures()
	gen := &scriptedGenerator{responses: []string{"Force equals mass times acceleration."}}
	e := newTestEngine(t, gen, store, resolver)

	res, err := e.GenerateChat(context.Background(), ChatRequest{
		Query:     "What is Newton's second law?",
		Subject:   "physics",
		SessionID: "sess-42",
	})
	require.NoError(t, err)

	assert.Equal(t, "Force equals mass times acceleration.", res.Response)
	assert.Equal(t, "sess-42", res.SessionID)
	assert.Equal(t, "test-model", res.ModelUsed)
	assert.Equal(t, []string{"newton.txt", "units.txt"}, res.Sources)
}

func TestGenerateChatCannedWhenNothingIndexed(t *testing.T) {
	resolver := &fakeResolver{collections: map[string]string{}}
	gen := &scriptedGenerator{responses: []string{"should not be called"}}
	e := newTestEngine(t, gen, &fakeStore{}, resolver)

	res, err := e.GenerateChat(context.Background(), ChatRequest{Query: "Explain Newton's second law"})
	require.NoError(t, err)

	assert.Contains(t, res.Response, "F = ma")
	assert.Equal(t, "canned", res.ModelUsed)
	assert.Zero(t, gen.callCount())
}

func TestGenerateChatNoContentNoCannedMatch(t *testing.T) {
	resolver := &fakeResolver{collections: map[string]string{}}
	e := newTestEngine(t, &scriptedGenerator{}, &fakeStore{}, resolver)

	_, err := e.GenerateChat(context.Background(), ChatRequest{Query: "Describe the Treaty of Westphalia"})
	require.ErrorIs(t, err, ErrNoContent)
}

func TestCheckQuestion(t *testing.T) {
	good := Question{Question: "Q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "c"}
	assert.Empty(t, checkQuestion(good))

	cases := []struct {
		name   string
		mutate func(*Question)
	}{
		{"empty question", func(q *Question) { q.Question = "" }},
		{"empty option", func(q *Question) { q.OptionB = "" }},
		{"empty correct answer", func(q *Question) { q.CorrectAnswer = "" }},
		{"answer matches nothing", func(q *Question) { q.CorrectAnswer = "zzz" }},
		{"answer matches two options", func(q *Question) { q.OptionA = "c" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := good
			tc.mutate(&q)
			assert.NotEmpty(t, checkQuestion(q))
		})
	}
}

func TestStats(t *testing.T) {
	store, resolver := physicsFixtures()
	gen := &scriptedGenerator{responses: []string{fiveQuestionArray}}
	e := newTestEngine(t, gen, store, resolver)

	_, err := e.GenerateMCQ(context.Background(), MCQRequest{Subject: "physics", NumQuestions: 5, Difficulty: "medium"})
	require.NoError(t, err)

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats.Subjects, 1)
	assert.Equal(t, "physics", stats.Subjects[0].Subject)
	assert.Equal(t, 1, stats.Cache.Entries)
}
