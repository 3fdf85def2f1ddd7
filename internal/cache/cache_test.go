package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNormalization(t *testing.T) {
	a := Key("  What is the Q1 revenue? ", []string{"doc-b", "doc-a"}, "short")
	b := Key("what is the q1 revenue?", []string{"doc-a", "doc-b"}, "short")
	assert.Equal(t, a, b, "case, whitespace, and scope order must not matter")
}

func TestKeyDiscriminates(t *testing.T) {
	base := Key("query", []string{"doc-a"}, "short")

	assert.NotEqual(t, base, Key("other query", []string{"doc-a"}, "short"))
	assert.NotEqual(t, base, Key("query", []string{"doc-b"}, "short"))
	assert.NotEqual(t, base, Key("query", []string{"doc-a"}, "long"))
	assert.NotEqual(t, base, Key("query", nil, "short"))
}

func TestCacheRoundTrip(t *testing.T) {
	c := New[string](nil, 16, time.Hour)
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	require.False(t, ok)

	c.Set(ctx, "k", "answer")
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "answer", v)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := New[string](nil, 16, 50*time.Millisecond)
	ctx := context.Background()

	c.Set(ctx, "k", "answer")
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(120 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "entry must expire after TTL")
}

func TestDoSingleFlight(t *testing.T) {
	c := New[string](nil, 16, time.Hour)
	ctx := context.Background()

	var calls int32
	gate := make(chan struct{})

	compute := func() (string, bool, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return "expensive", true, nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.Do(ctx, "same-key", compute)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent identical requests share one computation")
	for _, r := range results {
		assert.Equal(t, "expensive", r)
	}
}

func TestDoDoesNotCacheFailures(t *testing.T) {
	c := New[string](nil, 16, time.Hour)
	ctx := context.Background()

	_, _, err := c.Do(ctx, "k", func() (string, bool, error) {
		return "", false, errors.New("upstream failure")
	})
	require.Error(t, err)

	var calls int
	v, cached, err := c.Do(ctx, "k", func() (string, bool, error) {
		calls++
		return "recovered", true, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, 1, calls, "a failed computation must not poison the key")
}

func TestDoDoesNotCacheNonCacheableResults(t *testing.T) {
	c := New[string](nil, 16, time.Hour)
	ctx := context.Background()

	v, _, err := c.Do(ctx, "k", func() (string, bool, error) {
		return "insufficient evidence", false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "insufficient evidence", v)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestDoReportsCacheHit(t *testing.T) {
	c := New[string](nil, 16, time.Hour)
	ctx := context.Background()

	_, cached, err := c.Do(ctx, "k", func() (string, bool, error) {
		return "v", true, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)

	v, cached, err := c.Do(ctx, "k", func() (string, bool, error) {
		t.Fatal("compute must not run on a hit")
		return "", false, nil
	})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "v", v)
}

type flakyStore struct {
	err error
}

func (s *flakyStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return false, s.err
}

func (s *flakyStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return s.err
}

type invalidatingStore struct {
	flakyStore
	invalidations int
}

func (s *invalidatingStore) Invalidate(ctx context.Context) error {
	s.invalidations++
	return nil
}

func TestPurgeDropsBothTiers(t *testing.T) {
	store := &invalidatingStore{}
	c := New[string](store, 16, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "k", "stale answer")
	c.Purge(ctx)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "memory tier must be emptied")
	assert.Equal(t, 1, store.invalidations, "shared tier must be swept")
}

func TestPurgeWithoutStore(t *testing.T) {
	c := New[string](nil, 16, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "k", "answer")
	c.Purge(ctx)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestStoreFailureDegradesToMiss(t *testing.T) {
	c := New[string](&flakyStore{err: errors.New("connection refused")}, 16, time.Hour)
	ctx := context.Background()

	// Writes and reads must both survive a dead store.
	c.Set(ctx, "k", "answer")
	v, ok := c.Get(ctx, "k")
	assert.True(t, ok, "memory tier still serves the value")
	assert.Equal(t, "answer", v)
}
