package query

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmind/backend/internal/retrieval"
	"github.com/docmind/backend/internal/stream"
)

type captureConn struct {
	mu     sync.Mutex
	events []stream.Event
}

func (c *captureConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, v.(stream.Event))
	return nil
}

func (c *captureConn) byType(t stream.EventType) []stream.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []stream.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func TestAnswerStreamContent(t *testing.T) {
	env := setupEngine(t, []retrieval.Chunk{contentChunk("d1", 0.7)})
	env.generator.chunks = []string{"The ", "rent ", "is ", "$1200."}

	conn := &captureConn{}
	sess := stream.NewSession(conn, time.Minute)

	result, err := env.engine.AnswerStream(context.Background(), Request{
		Query:  "how much rent does the lease specify",
		UserID: "u1",
	}, sess)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "The rent is $1200.", result.Answer)

	content := conn.byType(stream.EventContent)
	require.Len(t, content, 4)
	var joined strings.Builder
	for _, ev := range content {
		joined.WriteString(ev.Content)
	}
	assert.Equal(t, "The rent is $1200.", joined.String())

	done := conn.byType(stream.EventDone)
	require.Len(t, done, 1)
	assert.NotNil(t, done[0].Result)

	// Strictly increasing sequence numbers end to end.
	for i := 1; i < len(conn.events); i++ {
		assert.Greater(t, conn.events[i].Seq, conn.events[i-1].Seq)
	}
	assert.Equal(t, stream.EventConnected, conn.events[0].Type)
}

func TestAnswerStreamReplaysCachedAnswer(t *testing.T) {
	env := setupEngine(t, []retrieval.Chunk{contentChunk("d1", 0.7)})
	env.generator.chunks = []string{"cached answer text"}
	req := Request{Query: "how much rent does the lease specify", UserID: "u1"}

	first := stream.NewSession(&captureConn{}, time.Minute)
	_, err := env.engine.AnswerStream(context.Background(), req, first)
	require.NoError(t, err)

	conn := &captureConn{}
	second := stream.NewSession(conn, time.Minute)
	result, err := env.engine.AnswerStream(context.Background(), req, second)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Cached)
	assert.NotEmpty(t, conn.byType(stream.EventContent), "cached answers replay as chunks")
	assert.Len(t, conn.byType(stream.EventDone), 1)
}

func TestAnswerStreamShortPathDomain(t *testing.T) {
	env := setupEngine(t, nil)

	conn := &captureConn{}
	sess := stream.NewSession(conn, time.Minute)

	result, err := env.engine.AnswerStream(context.Background(), Request{Query: "hello", UserID: "u1"}, sess)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, conn.byType(stream.EventContent))
	assert.Len(t, conn.byType(stream.EventDone), 1)
	assert.Zero(t, env.searcher.calls)
}

func TestAnswerStreamInsufficientEvidence(t *testing.T) {
	env := setupEngine(t, nil)

	conn := &captureConn{}
	sess := stream.NewSession(conn, time.Minute)

	result, err := env.engine.AnswerStream(context.Background(), Request{
		Query:  "how much rent does the lease specify",
		UserID: "u1",
	}, sess)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Zero(t, result.Confidence)
	assert.Len(t, conn.byType(stream.EventDone), 1)
	assert.Empty(t, conn.byType(stream.EventError), "insufficient evidence is a success outcome")
}

func TestAnswerStreamGenerationFailure(t *testing.T) {
	env := setupEngine(t, []retrieval.Chunk{contentChunk("d1", 0.7)})
	env.generator.err = assert.AnError

	conn := &captureConn{}
	sess := stream.NewSession(conn, time.Minute)

	result, err := env.engine.AnswerStream(context.Background(), Request{
		Query:  "how much rent does the lease specify",
		UserID: "u1",
	}, sess)
	require.NoError(t, err)
	assert.Nil(t, result)

	errs := conn.byType(stream.EventError)
	require.Len(t, errs, 1)
	assert.NotEmpty(t, errs[0].Error)
	assert.Empty(t, conn.byType(stream.EventDone))
	assert.False(t, sess.Active())
}
