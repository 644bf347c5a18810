package engine

import "errors"

// Failure taxonomy returned by the engine. Callers branch on these with
// errors.Is; wrapped messages carry the diagnostic detail.
var (
	// ErrNoContent means the subject has no indexed chunks to retrieve from.
	ErrNoContent = errors.New("no indexed content found")

	// ErrGenerationTimeout means the model did not answer within the
	// configured wall-clock deadline.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrParseFailure means the model output could not be parsed as
	// structured questions by any strategy.
	ErrParseFailure = errors.New("unparseable model output")

	// ErrValidationFailure means every parsed candidate was rejected.
	ErrValidationFailure = errors.New("no generated question passed validation")
)
