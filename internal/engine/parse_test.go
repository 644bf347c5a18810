package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormedArray = `[
	{"question": "What does F equal?", "option_a": "ma", "option_b": "mv", "option_c": "mg", "option_d": "mc2", "correct_answer": "ma"},
	{"question": "Unit of force?", "option_a": "joule", "option_b": "newton", "option_c": "watt", "option_d": "pascal", "correct_answer": "newton"}
]`

func TestParseStrictArray(t *testing.T) {
	qs, err := parseQuestions(wellFormedArray)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "ma", qs[0].CorrectAnswer)
}

func TestParseFencedArray(t *testing.T) {
	raw := "```json\n" + wellFormedArray + "\n```"
	qs, err := parseQuestions(raw)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestParseProseWrappedArray(t *testing.T) {
	raw := "Sure! Here are your questions:\n" + wellFormedArray + "\nLet me know if you need more."
	qs, err := parseQuestions(raw)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestParseQuestionsEnvelope(t *testing.T) {
	raw := `{"questions": ` + wellFormedArray + `}`
	qs, err := parseQuestions(raw)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestParseSingleObjectWrapped(t *testing.T) {
	raw := `{"question": "What does F equal?", "option_a": "ma", "option_b": "mv", "option_c": "mg", "option_d": "mc2", "correct_answer": "ma"}`
	qs, err := parseQuestions(raw)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "What does F equal?", qs[0].Question)
}

func TestParseExplanationOptional(t *testing.T) {
	raw := `[{"question": "Q", "option_a": "a", "option_b": "b", "option_c": "c", "option_d": "d", "correct_answer": "a", "explanation": "because"}]`
	qs, err := parseQuestions(raw)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "because", qs[0].Explanation)
}

func TestParseFailureEmpty(t *testing.T) {
	_, err := parseQuestions("   ")
	require.ErrorIs(t, err, ErrParseFailure)
}

func TestParseFailureCarriesExcerpt(t *testing.T) {
	_, err := parseQuestions("the model refused to answer in JSON today")
	require.ErrorIs(t, err, ErrParseFailure)
	assert.Contains(t, err.Error(), "the model refused")
}

func TestParseMalformedIsDeterministic(t *testing.T) {
	// Trailing comma before the closing bracket defeats every strategy for
	// a multi-element array; the outcome must not vary between runs.
	malformed := strings.TrimSuffix(wellFormedArray, "\n]") + ",\n]"

	for range 3 {
		_, err := parseQuestions(malformed)
		require.ErrorIs(t, err, ErrParseFailure)
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `[1]`, stripCodeFences("```json\n[1]\n```"))
	assert.Equal(t, `[1]`, stripCodeFences("```\n[1]\n```"))
	assert.Equal(t, `[1]`, stripCodeFences("[1]"))
}

func TestExcerptBoundsLength(t *testing.T) {
	long := strings.Repeat("é", 500)
	got := excerpt(long)
	assert.Equal(t, excerptLimit+3, len([]rune(got)), "excerpt plus ellipsis")
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Equal(t, "short", excerpt("  short  "))
}
