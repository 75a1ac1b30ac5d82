package embedding

import (
	"context"
	"math"
	"testing"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocal(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"Our support hours are 9 to 5."})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(ctx, []string{"Our support hours are 9 to 5."})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("component %d differs: %v vs %v", i, a[0][i], b[0][i])
		}
	}
}

func TestLocalEmbedderNormalized(t *testing.T) {
	e := NewLocal(128)
	vecs, err := e.Embed(context.Background(), []string{"refund policy and shipping times"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-5 {
		t.Fatalf("norm: want=1 got=%v", math.Sqrt(norm))
	}
}

func TestLocalEmbedderDimensionAndEmptyText(t *testing.T) {
	e := NewLocal(0)
	if e.Dimension() != DefaultLocalDimension {
		t.Fatalf("dimension: want=%d got=%d", DefaultLocalDimension, e.Dimension())
	}
	vecs, err := e.Embed(context.Background(), []string{""})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs[0]) != DefaultLocalDimension {
		t.Fatalf("vector length: want=%d got=%d", DefaultLocalDimension, len(vecs[0]))
	}
	for _, x := range vecs[0] {
		if x != 0 {
			t.Fatalf("empty text vector should be zero, got component %v", x)
		}
	}
}

func TestLocalEmbedderSimilarTextCloserThanUnrelated(t *testing.T) {
	e := NewLocal(256)
	ctx := context.Background()
	vecs, err := e.Embed(ctx, []string{
		"What are your support hours?",
		"Our support hours are 9 to 5.",
		"The mitochondria is the powerhouse of the cell.",
	})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	simRelated := dot(vecs[0], vecs[1])
	simUnrelated := dot(vecs[0], vecs[2])
	if simRelated <= simUnrelated {
		t.Fatalf("similarity ordering: related=%v unrelated=%v", simRelated, simUnrelated)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
