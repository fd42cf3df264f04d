package rank

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestCosineDistanceIdentical(t *testing.T) {
	v := []float32{0.3, 0.5, 0.1}
	d, err := CosineDistance(v, v)
	if err != nil {
		t.Fatalf("CosineDistance: %v", err)
	}
	if d != 0 {
		t.Errorf("distance of a vector to itself = %v, want exactly 0", d)
	}
}

func TestCosineDistanceOrthogonal(t *testing.T) {
	d, err := CosineDistance([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatalf("CosineDistance: %v", err)
	}
	if math.Abs(d-1) > 1e-9 {
		t.Errorf("orthogonal distance = %v, want 1", d)
	}
}

func TestCosineDistanceDimensionMismatch(t *testing.T) {
	_, err := CosineDistance([]float32{1, 0}, []float32{1, 0, 0})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestTopKOrdering(t *testing.T) {
	// Query along the x axis; candidates at increasing angles so their
	// distances land near 0.1, 0.4, and 0.2. Best-first means a, c, b.
	query := []float32{1, 0}
	mk := func(dist float64) []float32 {
		angle := math.Acos(1 - dist)
		return []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
	}
	now := time.Now()
	candidates := []Candidate{
		{ExecutionID: "a", Vector: mk(0.1), CompletedAt: now},
		{ExecutionID: "b", Vector: mk(0.4), CompletedAt: now},
		{ExecutionID: "c", Vector: mk(0.2), CompletedAt: now},
	}

	hits, err := TopK(query, candidates, 3)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	want := []string{"a", "c", "b"}
	for i, id := range want {
		if hits[i].ExecutionID != id {
			t.Errorf("hit[%d] = %s (distance %v), want %s", i, hits[i].ExecutionID, hits[i].Distance, id)
		}
	}
	if hits[0].Distance >= hits[1].Distance || hits[1].Distance >= hits[2].Distance {
		t.Errorf("distances not ascending: %v %v %v", hits[0].Distance, hits[1].Distance, hits[2].Distance)
	}
}

func TestTopKTieBreakRecency(t *testing.T) {
	query := []float32{1, 0}
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)
	candidates := []Candidate{
		{ExecutionID: "old", Vector: []float32{1, 0}, CompletedAt: old},
		{ExecutionID: "recent", Vector: []float32{1, 0}, CompletedAt: recent},
	}
	hits, err := TopK(query, candidates, 2)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if hits[0].ExecutionID != "recent" {
		t.Errorf("equal distances should order most recent first, got %s", hits[0].ExecutionID)
	}
}

func TestTopKTruncatesToK(t *testing.T) {
	query := []float32{1, 0}
	var candidates []Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, Candidate{ExecutionID: string(rune('a' + i)), Vector: []float32{1, float32(i) / 10}})
	}
	hits, err := TopK(query, candidates, 3)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("len(hits) = %d, want 3", len(hits))
	}
}

func TestTopKMismatchAborts(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ExecutionID: "good", Vector: []float32{1, 0}},
		{ExecutionID: "bad", Vector: []float32{1, 0, 0}},
	}
	if _, err := TopK(query, candidates, 5); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}
