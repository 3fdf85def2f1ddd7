package retrieval

import "sort"

// SourceSet is the final evidence handed to the prompt composer: at most one
// chunk per document, sorted by descending similarity, capped in size.
type SourceSet struct {
	Chunks     []Chunk
	Confidence float64
}

func (s SourceSet) Empty() bool {
	return len(s.Chunks) == 0
}

// Aggregate deduplicates candidates by document keeping the best match per
// document, caps the result to maxSources, and computes the aggregate
// confidence as the mean similarity of the kept chunks. Pure function.
func Aggregate(candidates []Chunk, maxSources int) SourceSet {
	if maxSources <= 0 {
		maxSources = 5
	}

	sorted := make([]Chunk, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Similarity > sorted[j].Similarity
	})

	seen := make(map[string]bool, len(sorted))
	kept := make([]Chunk, 0, maxSources)
	for _, c := range sorted {
		if seen[c.DocumentID] {
			continue
		}
		seen[c.DocumentID] = true
		kept = append(kept, c)
		if len(kept) == maxSources {
			break
		}
	}

	var sum float64
	for _, c := range kept {
		sum += c.Similarity
	}

	set := SourceSet{Chunks: kept}
	if len(kept) > 0 {
		set.Confidence = sum / float64(len(kept))
	}
	return set
}
