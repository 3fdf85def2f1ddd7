package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/docmind/backend/internal/classify"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) SearchSimilar(ctx context.Context, vector []float32, userID string, scope []string, topK int, minSimilarity float64) ([]Chunk, error) {
	args := m.Called(ctx, vector, userID, scope, topK, minSimilarity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Chunk), args.Error(1)
}

func TestThresholdPolicy(t *testing.T) {
	r := NewRetriever(nil, nil, DefaultConfig())

	assert.Equal(t, 0.35, r.ThresholdFor(classify.StyleControl))
	assert.Equal(t, 0.5, r.ThresholdFor(classify.StyleFastAnswer))
	assert.Equal(t, 0.5, r.ThresholdFor(classify.StyleMastery))
	assert.Equal(t, 0.5, r.ThresholdFor(classify.StyleClarity))
	assert.Equal(t, 0.5, r.ThresholdFor(classify.StyleInsight))
}

func TestGateBoundary(t *testing.T) {
	// A 0.4-similarity candidate clears the gate only under the list intent.
	candidate := chunk("c1", "doc-a", 0.4)

	for _, tc := range []struct {
		style    classify.Style
		accepted bool
	}{
		{classify.StyleControl, true},
		{classify.StyleFastAnswer, false},
	} {
		embedder := new(MockEmbedder)
		searcher := new(MockSearcher)
		embedder.On("Embed", mock.Anything, "q").Return([]float32{0.1}, nil)
		searcher.On("SearchSimilar", mock.Anything, mock.Anything, "u1", mock.Anything, mock.Anything, mock.Anything).
			Return([]Chunk{candidate}, nil)

		r := NewRetriever(embedder, searcher, DefaultConfig())
		accepted, err := r.Retrieve(context.Background(), "q", "u1", nil, tc.style)
		require.NoError(t, err)

		if tc.accepted {
			assert.Len(t, accepted, 1, "style %s", tc.style)
		} else {
			assert.Empty(t, accepted, "style %s", tc.style)
		}
	}
}

func TestScopedTopK(t *testing.T) {
	embedder := new(MockEmbedder)
	searcher := new(MockSearcher)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)

	r := NewRetriever(embedder, searcher, DefaultConfig())

	// Single-document scope gets the larger topK.
	searcher.On("SearchSimilar", mock.Anything, mock.Anything, "u1", []string{"doc-1"}, 10, 0.5).
		Return([]Chunk{}, nil).Once()
	_, err := r.Retrieve(context.Background(), "q", "u1", []string{"doc-1"}, classify.StyleFastAnswer)
	require.NoError(t, err)

	// Unscoped search uses the smaller default.
	searcher.On("SearchSimilar", mock.Anything, mock.Anything, "u1", []string(nil), 5, 0.5).
		Return([]Chunk{}, nil).Once()
	_, err = r.Retrieve(context.Background(), "q", "u1", nil, classify.StyleFastAnswer)
	require.NoError(t, err)

	searcher.AssertExpectations(t)
}

func TestRetrieveFiltersBelowThreshold(t *testing.T) {
	embedder := new(MockEmbedder)
	searcher := new(MockSearcher)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	searcher.On("SearchSimilar", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]Chunk{
			chunk("c1", "doc-a", 0.9),
			chunk("c2", "doc-b", 0.42),
			chunk("c3", "doc-c", 0.61),
		}, nil)

	r := NewRetriever(embedder, searcher, DefaultConfig())
	accepted, err := r.Retrieve(context.Background(), "q", "u1", nil, classify.StyleFastAnswer)
	require.NoError(t, err)

	assert.Len(t, accepted, 2)
	for _, c := range accepted {
		assert.GreaterOrEqual(t, c.Similarity, 0.5)
	}
}
