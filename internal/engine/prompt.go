package engine

import (
	"fmt"
	"strings"

	"github.com/quizforge/quizforge/internal/vectorstore"
)

const mcqPromptTemplate = `You are an exam author. Using ONLY the study material below, write exactly %d multiple-choice questions at %s difficulty.

Study material:
%s

Requirements:
- Respond with a single JSON array and nothing else. No prose, no markdown fences.
- Each element must be an object with exactly these keys: "question", "option_a", "option_b", "option_c", "option_d", "correct_answer".
- "correct_answer" must be the full text of one option, copied verbatim.
- The four options must be distinct and plausible.
- Every question must be answerable from the study material alone.

JSON array:`

const chatPromptTemplate = `Answer the question using the reference material below. Be concise and direct; two or three sentences is usually enough. If the material does not cover the question, say so briefly.

Reference material:
%s

Question: %s

Answer:`

// buildMCQPrompt assembles the single-call question generation prompt.
func buildMCQPrompt(hits []vectorstore.Hit, numQuestions int, difficulty string) string {
	return fmt.Sprintf(mcqPromptTemplate, numQuestions, difficulty, contextBlock(hits))
}

// buildChatPrompt assembles the short context+question chat prompt.
func buildChatPrompt(hits []vectorstore.Hit, query string) string {
	return fmt.Sprintf(chatPromptTemplate, contextBlock(hits), query)
}

// contextBlock renders retrieved chunks as numbered passages with their
// source filenames.
func contextBlock(hits []vectorstore.Hit) string {
	var sb strings.Builder
	for i, h := range hits {
		source := "unknown"
		if name, ok := h.Metadata["source_file"].(string); ok && name != "" {
			source = name
		}
		fmt.Fprintf(&sb, "[%d] (%s)\n%s\n\n", i+1, source, strings.TrimSpace(h.Content))
	}
	return strings.TrimSpace(sb.String())
}
