package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func chunk(id, docID string, sim float64) Chunk {
	return Chunk{ChunkID: id, DocumentID: docID, Similarity: sim}
}

func TestAggregateDedupByDocument(t *testing.T) {
	set := Aggregate([]Chunk{
		chunk("c1", "doc-a", 0.6),
		chunk("c2", "doc-a", 0.9),
		chunk("c3", "doc-b", 0.7),
	}, 5)

	assert.Len(t, set.Chunks, 2)
	assert.Equal(t, "c2", set.Chunks[0].ChunkID, "best chunk per document wins")
	assert.Equal(t, "c3", set.Chunks[1].ChunkID)
}

func TestAggregateSortedDescending(t *testing.T) {
	set := Aggregate([]Chunk{
		chunk("c1", "doc-a", 0.51),
		chunk("c2", "doc-b", 0.93),
		chunk("c3", "doc-c", 0.77),
	}, 5)

	for i := 1; i < len(set.Chunks); i++ {
		assert.GreaterOrEqual(t, set.Chunks[i-1].Similarity, set.Chunks[i].Similarity)
	}
}

func TestAggregateCap(t *testing.T) {
	candidates := []Chunk{
		chunk("c1", "doc-1", 0.9),
		chunk("c2", "doc-2", 0.8),
		chunk("c3", "doc-3", 0.7),
		chunk("c4", "doc-4", 0.6),
	}

	set := Aggregate(candidates, 2)
	assert.Len(t, set.Chunks, 2)
	assert.Equal(t, "c1", set.Chunks[0].ChunkID)
	assert.Equal(t, "c2", set.Chunks[1].ChunkID)
}

func TestAggregateMeanConfidence(t *testing.T) {
	set := Aggregate([]Chunk{
		chunk("c1", "doc-a", 0.8),
		chunk("c2", "doc-b", 0.6),
	}, 5)

	assert.InDelta(t, 0.7, set.Confidence, 1e-9)
}

func TestAggregateEmpty(t *testing.T) {
	set := Aggregate(nil, 5)
	assert.True(t, set.Empty())
	assert.Zero(t, set.Confidence)
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	candidates := []Chunk{
		chunk("c1", "doc-a", 0.2),
		chunk("c2", "doc-b", 0.9),
	}

	Aggregate(candidates, 5)
	assert.Equal(t, "c1", candidates[0].ChunkID)
}
