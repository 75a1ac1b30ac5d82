package vectorindex

import (
	"container/heap"
	"fmt"
	"math"
	"sync"

	"github.com/inktime/support-backend/internal/platform/logger"
)

// Entry is one indexed chunk: the text handed back to retrieval plus enough
// metadata to name where it came from.
type Entry struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Position int    `json:"position"`
}

// Match pairs an entry with its cosine distance from the query. Lower means
// more similar; 0 is an exact directional match. Every score produced by
// this package uses that one convention.
type Match struct {
	Entry    Entry
	Distance float64
}

// Index is a flat exact-nearest-neighbor index. Vectors are normalized on
// insert so distance reduces to 1 - dot(query, row). Search is brute force;
// at knowledge-base scale (thousands of chunks) that is exact and fast.
//
// Mutation is single-writer by contract: the ingestion pipeline serializes
// Add/ReplaceSource/Persist behind its own lock. The RWMutex here only keeps
// concurrent searches consistent with an in-flight write.
type Index struct {
	log *logger.Logger

	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	entries []Entry
}

func New(log *logger.Logger, dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	return &Index{
		log: log.With("service", "VectorIndex"),
		dim: dim,
	}, nil
}

func (ix *Index) Dimension() int { return ix.dim }

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Add appends vectors and their entries. It validates everything before
// touching index state, so a failed Add leaves the index exactly as it was
// and the caller is free to fall back to a full rebuild.
func (ix *Index) Add(vectors [][]float32, entries []Entry) error {
	if len(vectors) != len(entries) {
		return fmt.Errorf("vector/entry count mismatch: %d != %d", len(vectors), len(entries))
	}
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector %d dimension mismatch: expected=%d got=%d", i, ix.dim, len(v))
		}
		normalized[i] = normalizeCopy(v)
	}

	ix.mu.Lock()
	ix.vectors = append(ix.vectors, normalized...)
	ix.entries = append(ix.entries, entries...)
	ix.mu.Unlock()
	return nil
}

// ReplaceSource rebuilds the index without any rows from the given source,
// then appends the new rows. Re-ingesting an edited document therefore never
// leaves stale duplicate chunks behind.
func (ix *Index) ReplaceSource(source string, vectors [][]float32, entries []Entry) error {
	if len(vectors) != len(entries) {
		return fmt.Errorf("vector/entry count mismatch: %d != %d", len(vectors), len(entries))
	}
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector %d dimension mismatch: expected=%d got=%d", i, ix.dim, len(v))
		}
		normalized[i] = normalizeCopy(v)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	keptVectors := make([][]float32, 0, len(ix.vectors))
	keptEntries := make([]Entry, 0, len(ix.entries))
	for i, e := range ix.entries {
		if e.Source == source {
			continue
		}
		keptVectors = append(keptVectors, ix.vectors[i])
		keptEntries = append(keptEntries, e)
	}
	ix.vectors = append(keptVectors, normalized...)
	ix.entries = append(keptEntries, entries...)
	return nil
}

// Reset drops all rows. Used when a partial append has to give way to a full
// rebuild from the new chunk set.
func (ix *Index) Reset() {
	ix.mu.Lock()
	ix.vectors = nil
	ix.entries = nil
	ix.mu.Unlock()
}

// Search returns the k nearest entries by cosine distance, closest first.
// An empty index returns no matches.
func (ix *Index) Search(query []float32, k int) ([]Match, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query vector dimension mismatch: expected=%d got=%d", ix.dim, len(query))
	}
	if k <= 0 {
		k = 5
	}
	q := normalizeCopy(query)

	ix.mu.RLock()
	h := &matchHeap{}
	heap.Init(h)
	for i, row := range ix.vectors {
		dist := 1 - dot(q, row)
		if h.Len() < k {
			heap.Push(h, Match{Entry: ix.entries[i], Distance: dist})
		} else if dist < (*h)[0].Distance {
			(*h)[0] = Match{Entry: ix.entries[i], Distance: dist}
			heap.Fix(h, 0)
		}
	}
	ix.mu.RUnlock()

	out := make([]Match, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Match)
	}
	return out, nil
}

// matchHeap keeps the current worst of the top-k at the root.
type matchHeap []Match

func (h matchHeap) Len() int            { return len(h) }
func (h matchHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h matchHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x any)         { *h = append(*h, x.(Match)) }
func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func normalizeCopy(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
