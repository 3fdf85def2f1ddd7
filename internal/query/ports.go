package query

import (
	"context"

	"github.com/docmind/backend/internal/prompt"
	"github.com/docmind/backend/internal/storage/models"
)

// Generator is the generative backend contract. Both calls honor ctx
// cancellation and carry their own hard timeout.
type Generator interface {
	Generate(ctx context.Context, spec prompt.Spec) (string, error)
	GenerateStream(ctx context.Context, spec prompt.Spec, onChunk func(string) error) (string, error)
}

// DocumentStore serves the router's structured lookups, which bypass
// retrieval entirely.
type DocumentStore interface {
	LookupFileLocation(ctx context.Context, userID, name string) (*models.FileLocation, error)
	ListFiles(ctx context.Context, userID string, filters models.ListFilters) ([]models.FileInfo, error)
	SearchMentions(ctx context.Context, userID, phrase string) ([]models.Mention, error)
}

// ConversationStore supplies the bounded conversation window. The engine
// only reads turns; persisting them is the API layer's job.
type ConversationStore interface {
	RecentTurns(ctx context.Context, conversationID string, n int) ([]models.ConversationTurn, error)
}

// HistoryRecorder persists per-query records for the history endpoint.
type HistoryRecorder interface {
	InsertQueryRecord(ctx context.Context, record *models.QueryRecord) error
}
