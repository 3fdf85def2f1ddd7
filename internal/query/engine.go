package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/cache"
	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/internal/metrics"
	"github.com/docmind/backend/internal/prompt"
	"github.com/docmind/backend/internal/retrieval"
	"github.com/docmind/backend/internal/storage/models"
	"github.com/docmind/backend/pkg/logger"
)

const historyWindow = 10

// Engine routes a classified query to the handler for its domain and runs
// the full retrieval-gated pipeline for content questions. The answer cache
// wraps the content path only.
type Engine struct {
	classifier *classify.Classifier
	retriever  *retrieval.Retriever
	generator  Generator
	docs       DocumentStore
	turns      ConversationStore
	recorder   HistoryRecorder
	answers    *cache.Cache[AnswerResult]
}

func NewEngine(
	classifier *classify.Classifier,
	retriever *retrieval.Retriever,
	generator Generator,
	docs DocumentStore,
	turns ConversationStore,
	recorder HistoryRecorder,
	answers *cache.Cache[AnswerResult],
) *Engine {
	return &Engine{
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		docs:       docs,
		turns:      turns,
		recorder:   recorder,
		answers:    answers,
	}
}

// Answer processes one blocking query. The only error it returns is
// ErrGenerationFailed; every other failure degrades to a deterministic
// AnswerResult.
func (e *Engine) Answer(ctx context.Context, req Request) (*AnswerResult, error) {
	start := time.Now()

	history := e.loadHistory(ctx, req.ConversationID)
	cls := e.classifier.Classify(ctx, req.Query, history)

	logger.Info("Query classified",
		zap.String("domain", string(cls.Domain)),
		zap.String("style", string(cls.Style)),
		zap.Float64("confidence", cls.Confidence),
		zap.String("reasoning", cls.Reasoning),
	)

	result, err := e.route(ctx, req, cls, history)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(string(cls.Domain), "error").Inc()
		return nil, err
	}

	result.LatencyMS = int(time.Since(start).Milliseconds())

	metrics.QueriesTotal.WithLabelValues(string(cls.Domain), "ok").Inc()
	metrics.QueryDuration.WithLabelValues(string(cls.Domain)).Observe(time.Since(start).Seconds())
	metrics.AnswerConfidence.Observe(result.Confidence)

	e.record(ctx, req, result)

	return result, nil
}

func (e *Engine) route(ctx context.Context, req Request, cls classify.Classification, history []classify.Turn) (*AnswerResult, error) {
	switch cls.Domain {
	case classify.DomainGreeting:
		return e.answerGreeting(cls), nil
	case classify.DomainNavigation:
		return e.answerNavigation(ctx, req, cls, history)
	case classify.DomainMentionsSearch:
		return e.answerMentions(ctx, req, cls, history)
	case classify.DomainListMetadata:
		return e.answerList(ctx, req, cls)
	case classify.DomainGeneralKnowledge:
		return e.answerGeneral(ctx, req, cls, history)
	default:
		return e.answerContent(ctx, req, cls, history)
	}
}

// answerContent wraps the full pipeline in the cache with a single-flight
// guard: concurrent identical requests share one computation.
func (e *Engine) answerContent(ctx context.Context, req Request, cls classify.Classification, history []classify.Turn) (*AnswerResult, error) {
	key := cache.Key(req.Query, req.Scope, string(req.AnswerLength))

	result, hit, err := e.answers.Do(ctx, key, func() (AnswerResult, bool, error) {
		r, err := e.computeContent(ctx, req, cls, history)
		if err != nil {
			return AnswerResult{}, false, err
		}
		// Insufficient-evidence results are not cached; a transient gap in
		// the index must not poison future queries.
		return *r, r.Confidence > 0, nil
	})
	if err != nil {
		return nil, err
	}

	if hit {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}

	result.Cached = hit
	return &result, nil
}

func (e *Engine) computeContent(ctx context.Context, req Request, cls classify.Classification, history []classify.Turn) (*AnswerResult, error) {
	prep, short := e.prepareContent(ctx, req, cls, history)
	if short != nil {
		return short, nil
	}

	text, err := e.generator.Generate(ctx, prep.spec)
	if err != nil {
		metrics.GenerationFailures.Inc()
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return e.buildContentResult(text, prep.sources, cls), nil
}

type preparedContent struct {
	spec    prompt.Spec
	sources retrieval.SourceSet
}

// prepareContent runs retrieval and the confidence gate. A non-nil short
// result means the pipeline short-circuits without touching the generator.
func (e *Engine) prepareContent(ctx context.Context, req Request, cls classify.Classification, history []classify.Turn) (*preparedContent, *AnswerResult) {
	candidates, err := e.retriever.Retrieve(ctx, req.Query, req.UserID, req.Scope, cls.Style)
	if err != nil {
		logger.Warn("Retrieval failed, degrading to insufficient evidence", zap.Error(err))
		metrics.GateRejections.Inc()
		return nil, e.insufficientEvidence(cls)
	}
	if len(candidates) == 0 {
		metrics.GateRejections.Inc()
		return nil, e.insufficientEvidence(cls)
	}
	metrics.RetrievedChunks.Observe(float64(len(candidates)))

	sources := retrieval.Aggregate(candidates, e.retriever.MaxSources())
	spec := prompt.Compose(req.Query, sources, cls.Style, req.AnswerLength, history)

	return &preparedContent{spec: spec, sources: sources}, nil
}

func (e *Engine) buildContentResult(text string, sources retrieval.SourceSet, cls classify.Classification) *AnswerResult {
	refs := make([]Source, 0, len(sources.Chunks))
	for _, c := range sources.Chunks {
		refs = append(refs, Source{
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			ChunkID:      c.ChunkID,
			Location:     c.Location,
			Similarity:   c.Similarity,
		})
	}

	return &AnswerResult{
		Answer:     text,
		Sources:    refs,
		ContextID:  uuid.New().String(),
		Domain:     cls.Domain,
		Confidence: sources.Confidence,
	}
}

func (e *Engine) answerGeneral(ctx context.Context, req Request, cls classify.Classification, history []classify.Turn) (*AnswerResult, error) {
	spec := prompt.ComposeGeneral(req.Query, cls.Style, req.AnswerLength, history)

	text, err := e.generator.Generate(ctx, spec)
	if err != nil {
		metrics.GenerationFailures.Inc()
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return &AnswerResult{
		Answer:     text,
		Sources:    []Source{},
		ContextID:  uuid.New().String(),
		Domain:     cls.Domain,
		Confidence: cls.Confidence,
	}, nil
}

func (e *Engine) insufficientEvidence(cls classify.Classification) *AnswerResult {
	return &AnswerResult{
		Answer:     msgInsufficientEvidence,
		Sources:    []Source{},
		ContextID:  uuid.New().String(),
		Domain:     cls.Domain,
		Confidence: 0,
	}
}

// loadHistory fetches the bounded conversation window. History is best
// effort; a store failure costs context, not the answer.
func (e *Engine) loadHistory(ctx context.Context, conversationID string) []classify.Turn {
	if e.turns == nil || conversationID == "" {
		return nil
	}

	stored, err := e.turns.RecentTurns(ctx, conversationID, historyWindow)
	if err != nil {
		logger.Warn("Failed to load conversation history", zap.Error(err))
		return nil
	}

	history := make([]classify.Turn, 0, len(stored))
	for _, t := range stored {
		history = append(history, classify.Turn{
			Role:      t.Role,
			Text:      t.Text,
			Timestamp: t.CreatedAt,
		})
	}
	return history
}

func (e *Engine) record(ctx context.Context, req Request, result *AnswerResult) {
	if e.recorder == nil {
		return
	}

	err := e.recorder.InsertQueryRecord(ctx, &models.QueryRecord{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		QueryText:      req.Query,
		Domain:         string(result.Domain),
		Answer:         result.Answer,
		Confidence:     result.Confidence,
		SourceCount:    len(result.Sources),
		Cached:         result.Cached,
		LatencyMS:      result.LatencyMS,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record query", zap.Error(err))
	}
}
