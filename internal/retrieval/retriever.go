package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/pkg/logger"
)

// Chunk is a fragment of a source document returned by the vector index,
// read-only to the rest of the pipeline.
type Chunk struct {
	ChunkID      string
	DocumentID   string
	DocumentName string
	Content      string
	Similarity   float64
	Location     string
	Metadata     map[string]string
}

// Embedder turns text into a vector. Implementations are opaque remote
// services.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns the topK chunks most similar to the given vector within
// the user's collection, optionally restricted to a document scope.
type Searcher interface {
	SearchSimilar(ctx context.Context, vector []float32, userID string, scope []string, topK int, minSimilarity float64) ([]Chunk, error)
}

type Config struct {
	Threshold     float64
	ListThreshold float64
	TopK          int
	ScopedTopK    int
	MaxSources    int
}

func DefaultConfig() Config {
	return Config{
		Threshold:     0.5,
		ListThreshold: 0.35,
		TopK:          5,
		ScopedTopK:    10,
		MaxSources:    5,
	}
}

type Retriever struct {
	embedder Embedder
	searcher Searcher
	cfg      Config
}

func NewRetriever(embedder Embedder, searcher Searcher, cfg Config) *Retriever {
	if cfg.Threshold == 0 {
		cfg = DefaultConfig()
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		cfg:      cfg,
	}
}

// ThresholdFor returns the active similarity threshold. List-style intents
// only need filenames, not high-precision content matches, so the bar is
// lower for them.
func (r *Retriever) ThresholdFor(style classify.Style) float64 {
	if style == classify.StyleControl {
		return r.cfg.ListThreshold
	}
	return r.cfg.Threshold
}

// topKFor gives a single-document scope more headroom since the search
// space is smaller.
func (r *Retriever) topKFor(scope []string) int {
	if len(scope) == 1 {
		return r.cfg.ScopedTopK
	}
	return r.cfg.TopK
}

// Retrieve embeds the query, searches the index, and applies the confidence
// gate. An empty return with a nil error means insufficient evidence; the
// caller must not invoke the generator in that case.
func (r *Retriever) Retrieve(ctx context.Context, query, userID string, scope []string, style classify.Style) ([]Chunk, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	threshold := r.ThresholdFor(style)
	topK := r.topKFor(scope)

	candidates, err := r.searcher.SearchSimilar(ctx, vector, userID, scope, topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	accepted := make([]Chunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= threshold {
			accepted = append(accepted, c)
		}
	}

	logger.Debug("Retrieval completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(accepted)),
		zap.Float64("threshold", threshold),
		zap.Int("top_k", topK),
	)

	return accepted, nil
}

// MaxSources is the cap applied by the source aggregator.
func (r *Retriever) MaxSources() int {
	return r.cfg.MaxSources
}
