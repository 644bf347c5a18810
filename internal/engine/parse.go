package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// excerptLimit caps how much raw model output a parse failure carries.
const excerptLimit = 200

// parseQuestions extracts question candidates from raw model output. Models
// rarely return the requested bare JSON array, so parsing walks a fixed
// ladder of strategies:
//
//  1. strict parse of the (fence-stripped) text as an array
//  2. the outermost [...] slice of the text
//  3. a {"questions": [...]} envelope
//  4. a single bare object, wrapped as a one-element array
//
// The ladder is pure and ordered, so a given input always parses (or fails)
// the same way. Failures wrap ErrParseFailure with a truncated excerpt.
func parseQuestions(raw string) ([]Question, error) {
	text := stripCodeFences(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrParseFailure)
	}

	if qs, ok := tryParseArray(text); ok {
		return qs, nil
	}

	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		if qs, ok := tryParseArray(text[start : end+1]); ok {
			return qs, nil
		}
	}

	var envelope struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && len(envelope.Questions) > 0 {
		return envelope.Questions, nil
	}

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		var q Question
		if err := json.Unmarshal([]byte(text[start:end+1]), &q); err == nil && q.Question != "" {
			return []Question{q}, nil
		}
	}

	return nil, fmt.Errorf("%w (raw: %q)", ErrParseFailure, excerpt(raw))
}

func tryParseArray(text string) ([]Question, bool) {
	var qs []Question
	if err := json.Unmarshal([]byte(text), &qs); err != nil || len(qs) == 0 {
		return nil, false
	}
	return qs, true
}

// stripCodeFences removes ```json ... ``` wrapping from model output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// excerpt shortens raw output to a rune-bounded snippet for error messages.
func excerpt(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= excerptLimit {
		return string(runes)
	}
	return string(runes[:excerptLimit]) + "..."
}
