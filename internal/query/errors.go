package query

import "errors"

// ErrGenerationFailed marks an upstream generation failure that must be
// surfaced to the user through the channel the request arrived on. It is the
// only error Answer can return; everything else degrades to a deterministic
// AnswerResult.
var ErrGenerationFailed = errors.New("generation backend failed")

const (
	// User-visible deterministic messages for success-path "nothing found"
	// outcomes.
	msgInsufficientEvidence = "I couldn't find enough relevant information in your documents to answer that confidently."
	msgGenerationFailure    = "Something went wrong while generating your answer. Please try again."
)
