package query

import (
	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/internal/prompt"
)

// Request is one user question. Immutable once received.
type Request struct {
	Query          string        `json:"query"`
	UserID         string        `json:"user_id"`
	ConversationID string        `json:"conversation_id"`
	Scope          []string      `json:"scope,omitempty"`
	AnswerLength   prompt.Length `json:"answer_length,omitempty"`
}

// Source is one attributed evidence chunk in the final answer.
type Source struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkID      string  `json:"chunk_id"`
	Location     string  `json:"location,omitempty"`
	Similarity   float64 `json:"similarity"`
}

type AnswerResult struct {
	Answer     string          `json:"answer"`
	Sources    []Source        `json:"sources"`
	ContextID  string          `json:"context_id"`
	Domain     classify.Domain `json:"domain"`
	Confidence float64         `json:"confidence"`
	Cached     bool            `json:"cached"`
	LatencyMS  int             `json:"latency_ms"`
}
