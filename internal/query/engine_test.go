package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmind/backend/internal/cache"
	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/internal/prompt"
	"github.com/docmind/backend/internal/retrieval"
	"github.com/docmind/backend/internal/storage/models"
)

type stubEmbedder struct {
	calls int32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&s.calls, 1)
	return []float32{0.1, 0.2}, nil
}

type stubSearcher struct {
	chunks []retrieval.Chunk
	calls  int32
}

func (s *stubSearcher) SearchSimilar(ctx context.Context, vector []float32, userID string, scope []string, topK int, minSimilarity float64) ([]retrieval.Chunk, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.chunks, nil
}

type stubGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	delay    time.Duration
	calls    int32
	chunks   []string
}

func (s *stubGenerator) Generate(ctx context.Context, spec prompt.Spec) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) GenerateStream(ctx context.Context, spec prompt.Spec, onChunk func(string) error) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return "", s.err
	}
	var full strings.Builder
	for _, c := range s.chunks {
		full.WriteString(c)
		if err := onChunk(c); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

type stubDocStore struct {
	locations map[string]*models.FileLocation
	files     []models.FileInfo
	mentions  []models.Mention
}

func (s *stubDocStore) LookupFileLocation(ctx context.Context, userID, name string) (*models.FileLocation, error) {
	return s.locations[name], nil
}

func (s *stubDocStore) ListFiles(ctx context.Context, userID string, filters models.ListFilters) ([]models.FileInfo, error) {
	return s.files, nil
}

func (s *stubDocStore) SearchMentions(ctx context.Context, userID, phrase string) ([]models.Mention, error) {
	return s.mentions, nil
}

type testEnv struct {
	engine    *Engine
	embedder  *stubEmbedder
	searcher  *stubSearcher
	generator *stubGenerator
	docs      *stubDocStore
}

func setupEngine(t *testing.T, chunks []retrieval.Chunk) *testEnv {
	t.Helper()

	embedder := &stubEmbedder{}
	searcher := &stubSearcher{chunks: chunks}
	generator := &stubGenerator{response: "generated answer"}
	docs := &stubDocStore{locations: map[string]*models.FileLocation{}}

	engine := NewEngine(
		classify.New(nil, 0),
		retrieval.NewRetriever(embedder, searcher, retrieval.DefaultConfig()),
		generator,
		docs,
		nil,
		nil,
		cache.New[AnswerResult](nil, 64, time.Hour),
	)

	return &testEnv{engine: engine, embedder: embedder, searcher: searcher, generator: generator, docs: docs}
}

func contentChunk(docID string, sim float64) retrieval.Chunk {
	return retrieval.Chunk{
		ChunkID:      "chunk-" + docID,
		DocumentID:   docID,
		DocumentName: docID + ".pdf",
		Content:      "chunk content",
		Similarity:   sim,
	}
}

func TestGreetingSkipsRetrieval(t *testing.T) {
	env := setupEngine(t, nil)

	result, err := env.engine.Answer(context.Background(), Request{Query: "hello", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, classify.DomainGreeting, result.Domain)
	assert.Empty(t, result.Sources)
	assert.Zero(t, atomic.LoadInt32(&env.embedder.calls), "greeting must not touch the embedder")
	assert.Zero(t, atomic.LoadInt32(&env.searcher.calls), "greeting must not touch the vector index")
	assert.Zero(t, atomic.LoadInt32(&env.generator.calls))
}

func TestNavigationFoundAndNotFound(t *testing.T) {
	env := setupEngine(t, nil)
	env.docs.locations["passport"] = &models.FileLocation{
		DocumentID: "d1", Name: "passport.pdf", FolderName: "Travel",
	}

	result, err := env.engine.Answer(context.Background(), Request{Query: "where is passport.pdf", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, classify.DomainNavigation, result.Domain)
	assert.Contains(t, result.Answer, "Travel")

	result, err = env.engine.Answer(context.Background(), Request{Query: "where is missing.pdf", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, classify.DomainNavigation, result.Domain)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.Sources)
	assert.Zero(t, atomic.LoadInt32(&env.generator.calls), "navigation never generates")
}

func TestConfidenceGateRejectsWeakEvidence(t *testing.T) {
	env := setupEngine(t, []retrieval.Chunk{contentChunk("d1", 0.42)})

	result, err := env.engine.Answer(context.Background(), Request{Query: "what is the Q1 revenue?", UserID: "u1"})
	require.NoError(t, err)

	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.Sources)
	assert.Zero(t, atomic.LoadInt32(&env.generator.calls), "generator must not run on gated-out evidence")
}

func TestConfidenceGateAcceptsStrongEvidence(t *testing.T) {
	env := setupEngine(t, []retrieval.Chunk{contentChunk("d1", 0.6)})

	result, err := env.engine.Answer(context.Background(), Request{Query: "what is the Q1 revenue?", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "generated answer", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	assert.Equal(t, int32(1), atomic.LoadInt32(&env.generator.calls))
}

func TestSourcesDedupedAndSorted(t *testing.T) {
	env := setupEngine(t, []retrieval.Chunk{
		contentChunk("d1", 0.55),
		{ChunkID: "chunk-d1-b", DocumentID: "d1", DocumentName: "d1.pdf", Similarity: 0.8},
		contentChunk("d2", 0.7),
	})

	result, err := env.engine.Answer(context.Background(), Request{Query: "what changed in the contract terms", UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, result.Sources, 2, "one source per document")
	assert.Equal(t, "chunk-d1-b", result.Sources[0].ChunkID)
	for i := 1; i < len(result.Sources); i++ {
		assert.GreaterOrEqual(t, result.Sources[i-1].Similarity, result.Sources[i].Similarity)
	}
}

func TestAnswerCached(t *testing.T) {
	env := setupEngine(t, []retrieval.Chunk{contentChunk("d1", 0.8)})
	req := Request{Query: "how much rent does the lease specify", UserID: "u1"}

	first, err := env.engine.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := env.engine.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, int32(1), atomic.LoadInt32(&env.generator.calls))
}

func TestInsufficientEvidenceNotCached(t *testing.T) {
	env := setupEngine(t, nil)
	req := Request{Query: "how much rent does the lease specify", UserID: "u1"}

	first, err := env.engine.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, first.Confidence)

	// Evidence appears later; the earlier empty result must not mask it.
	env.searcher.chunks = []retrieval.Chunk{contentChunk("d1", 0.9)}
	second, err := env.engine.Answer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.Equal(t, "generated answer", second.Answer)
}

func TestConcurrentIdenticalRequestsSingleFlight(t *testing.T) {
	env := setupEngine(t, []retrieval.Chunk{contentChunk("d1", 0.8)})
	env.generator.delay = 30 * time.Millisecond
	req := Request{Query: "how much rent does the lease specify", UserID: "u1"}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.Answer(context.Background(), req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&env.generator.calls), "exactly one generation per key")
}

func TestGenerationFailureSurfaced(t *testing.T) {
	env := setupEngine(t, []retrieval.Chunk{contentChunk("d1", 0.8)})
	env.generator.err = errors.New("backend unavailable")

	_, err := env.engine.Answer(context.Background(), Request{Query: "how much rent does the lease specify", UserID: "u1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestMalformedNavigationReroutesToContent(t *testing.T) {
	env := setupEngine(t, []retrieval.Chunk{contentChunk("d1", 0.8)})

	cls := classify.Classification{
		Domain:     classify.DomainNavigation,
		Style:      classify.StyleFastAnswer,
		Confidence: 0.9,
		Entities:   map[string]string{},
	}

	result, err := env.engine.answerNavigation(context.Background(), Request{Query: "where is", UserID: "u1"}, cls, nil)
	require.NoError(t, err)
	assert.Equal(t, "generated answer", result.Answer, "missing slot falls through to the content pipeline")
}

func TestGeneralKnowledgeSkipsRetrieval(t *testing.T) {
	env := setupEngine(t, nil)

	result, err := env.engine.Answer(context.Background(), Request{Query: "what is a balance sheet", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, classify.DomainGeneralKnowledge, result.Domain)
	assert.Empty(t, result.Sources)
	assert.Zero(t, atomic.LoadInt32(&env.searcher.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&env.generator.calls))
}

func TestMentionsEnumeration(t *testing.T) {
	env := setupEngine(t, nil)
	env.docs.mentions = []models.Mention{
		{DocumentID: "d1", DocumentName: "minutes.pdf", Snippet: "…Acme Corp agreed…", Location: "page 2"},
		{DocumentID: "d2", DocumentName: "contract.pdf", Snippet: "…with Acme Corp…", Location: "page 7"},
	}

	result, err := env.engine.Answer(context.Background(), Request{Query: "find all mentions of Acme Corp", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, classify.DomainMentionsSearch, result.Domain)
	assert.Contains(t, result.Answer, "minutes.pdf")
	assert.Contains(t, result.Answer, "contract.pdf")
	assert.Len(t, result.Sources, 2)
	assert.Zero(t, atomic.LoadInt32(&env.generator.calls), "literal enumeration bypasses the generator")
}
