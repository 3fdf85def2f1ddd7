package query

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/cache"
	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/internal/metrics"
	"github.com/docmind/backend/internal/prompt"
	"github.com/docmind/backend/internal/stream"
	"github.com/docmind/backend/pkg/logger"
)

// AnswerStream processes one query and delivers the answer progressively
// through the session. Failures surface as a single error event on the same
// channel; the method itself only reports transport-level problems. The
// returned result is nil whenever no terminal done event was delivered.
func (e *Engine) AnswerStream(ctx context.Context, req Request, sess *stream.Session) (*AnswerResult, error) {
	start := time.Now()

	if err := sess.Start(); err != nil {
		return nil, err
	}

	history := e.loadHistory(ctx, req.ConversationID)
	cls := e.classifier.Classify(ctx, req.Query, history)

	logger.Info("Streaming query classified",
		zap.String("domain", string(cls.Domain)),
		zap.String("style", string(cls.Style)),
	)

	switch cls.Domain {
	case classify.DomainContentQA:
		return e.streamContent(ctx, req, cls, history, sess, start)
	case classify.DomainGeneralKnowledge:
		return e.streamGeneral(ctx, req, cls, history, sess, start)
	default:
		// Short-path domains produce their answer atomically; deliver it as
		// word chunks so the client sees a uniform protocol.
		result, err := e.route(ctx, req, cls, history)
		if err != nil {
			metrics.QueriesTotal.WithLabelValues(string(cls.Domain), "error").Inc()
			return nil, sess.Fail(msgGenerationFailure)
		}
		return e.finishStream(ctx, req, cls, result, sess, start, true)
	}
}

func (e *Engine) streamContent(ctx context.Context, req Request, cls classify.Classification, history []classify.Turn, sess *stream.Session, start time.Time) (*AnswerResult, error) {
	key := cache.Key(req.Query, req.Scope, string(req.AnswerLength))

	if cached, ok := e.answers.Get(ctx, key); ok {
		metrics.CacheHits.Inc()
		cached.Cached = true
		return e.finishStream(ctx, req, cls, &cached, sess, start, true)
	}
	metrics.CacheMisses.Inc()

	prep, short := e.prepareContent(ctx, req, cls, history)
	if short != nil {
		return e.finishStream(ctx, req, cls, short, sess, start, true)
	}

	text, err := e.generator.GenerateStream(ctx, prep.spec, func(delta string) error {
		return sess.SendContent(delta)
	})
	if err != nil {
		metrics.GenerationFailures.Inc()
		logger.Error("Streaming generation failed", zap.Error(err))
		return nil, sess.Fail(msgGenerationFailure)
	}

	result := e.buildContentResult(text, prep.sources, cls)
	e.answers.Set(ctx, key, *result)

	return e.finishStream(ctx, req, cls, result, sess, start, false)
}

func (e *Engine) streamGeneral(ctx context.Context, req Request, cls classify.Classification, history []classify.Turn, sess *stream.Session, start time.Time) (*AnswerResult, error) {
	spec := prompt.ComposeGeneral(req.Query, cls.Style, req.AnswerLength, history)

	text, err := e.generator.GenerateStream(ctx, spec, func(delta string) error {
		return sess.SendContent(delta)
	})
	if err != nil {
		metrics.GenerationFailures.Inc()
		logger.Error("Streaming generation failed", zap.Error(err))
		return nil, sess.Fail(msgGenerationFailure)
	}

	result := &AnswerResult{
		Answer:     text,
		Sources:    []Source{},
		ContextID:  uuid.New().String(),
		Domain:     cls.Domain,
		Confidence: cls.Confidence,
	}

	return e.finishStream(ctx, req, cls, result, sess, start, false)
}

// finishStream sends the terminal summary event. When the answer was not
// produced incrementally (cache hits, short paths), it is replayed first as
// word chunks so clients render progressively either way.
func (e *Engine) finishStream(ctx context.Context, req Request, cls classify.Classification, result *AnswerResult, sess *stream.Session, start time.Time, replay bool) (*AnswerResult, error) {
	if replay {
		for _, chunk := range splitIntoChunks(result.Answer) {
			if err := sess.SendContent(chunk); err != nil {
				return nil, err
			}
		}
	}

	result.LatencyMS = int(time.Since(start).Milliseconds())

	metrics.QueriesTotal.WithLabelValues(string(cls.Domain), "ok").Inc()
	metrics.QueryDuration.WithLabelValues(string(cls.Domain)).Observe(time.Since(start).Seconds())
	metrics.AnswerConfidence.Observe(result.Confidence)

	e.record(ctx, req, result)

	return result, sess.Done(result)
}

// splitIntoChunks breaks a finished answer into word-sized fragments for
// replay over a stream.
func splitIntoChunks(text string) []string {
	words := strings.Fields(text)
	chunks := make([]string, 0, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			w += " "
		}
		chunks = append(chunks, w)
	}
	return chunks
}
