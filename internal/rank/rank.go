// Package rank implements in-memory cosine-distance ranking over stored
// summary embeddings. It is the full-scan equivalent of the store's pgvector
// ordering: identical results, different performance profile.
package rank

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrDimensionMismatch indicates the query vector and a candidate vector have
// different lengths. This is a configuration error (wrong embedding model),
// never something to silently truncate or pad around.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Candidate is one stored summary vector under consideration.
type Candidate struct {
	ExecutionID string
	ScoutID     string
	Summary     string
	Vector      []float32
	CompletedAt time.Time
}

// Hit is a ranked candidate with its cosine distance to the query.
type Hit struct {
	ExecutionID string
	ScoutID     string
	Summary     string
	Distance    float64
	CompletedAt time.Time
}

// CosineDistance returns 1 - cosine similarity of a and b. Distance of
// identical non-zero vectors is exactly 0 (similarity exactly 1).
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("vectors must not be empty")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("zero-magnitude vector")
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Guard float drift so distance(v, v) is exactly 0.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim, nil
}

// TopK ranks candidates by ascending cosine distance to the query vector and
// returns the best k. Ties break by most recent CompletedAt. A dimension
// mismatch on any candidate aborts the whole query.
func TopK(query []float32, candidates []Candidate, k int) ([]Hit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query vector must not be empty")
	}
	if k <= 0 {
		k = 5
	}
	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		d, err := CosineDistance(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.ExecutionID, err)
		}
		hits = append(hits, Hit{
			ExecutionID: c.ExecutionID,
			ScoutID:     c.ScoutID,
			Summary:     c.Summary,
			Distance:    d,
			CompletedAt: c.CompletedAt,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].CompletedAt.After(hits[j].CompletedAt)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
