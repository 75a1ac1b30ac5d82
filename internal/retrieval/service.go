package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inktime/support-backend/internal/embedding"
	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/vectorindex"
)

// ErrNoRelevantContent is returned when nothing in the index scores under
// the distance threshold. Callers must answer without fabricating content.
var ErrNoRelevantContent = errors.New("no relevant content found")

const (
	DefaultTopK = 5
	// DefaultMaxDistance is the cosine-distance cutoff; hits at or above it
	// are dropped as low relevance.
	DefaultMaxDistance = 0.8
)

// Service turns a user query into the context block an answer generator is
// allowed to treat as ground truth.
type Service struct {
	log         *logger.Logger
	embedder    embedding.Provider
	index       *vectorindex.Index
	maxDistance float64
}

func NewService(log *logger.Logger, embedder embedding.Provider, index *vectorindex.Index, maxDistance float64) *Service {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &Service{
		log:         log.With("service", "RetrievalService"),
		embedder:    embedder,
		index:       index,
		maxDistance: maxDistance,
	}
}

// Retrieve embeds the query, searches the index for the top k chunks, drops
// low-relevance hits, and concatenates the survivors into a labeled excerpt
// block in rank order.
func (s *Service) Retrieve(ctx context.Context, query string, k int) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("empty query")
	}
	if k <= 0 {
		k = DefaultTopK
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.index.Search(vecs[0], k)
	if err != nil {
		return "", fmt.Errorf("search index: %w", err)
	}

	var kept []vectorindex.Match
	for _, m := range matches {
		if m.Distance < s.maxDistance {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		s.log.Info("No chunks under relevance threshold",
			"candidates", len(matches), "max_distance", s.maxDistance)
		return "", ErrNoRelevantContent
	}

	blocks := make([]string, len(kept))
	for i, m := range kept {
		blocks[i] = fmt.Sprintf("--- DOCUMENT EXCERPT %d ---\n%s", i+1, m.Entry.Text)
	}
	s.log.Debug("Retrieved context", "excerpts", len(kept), "top_distance", kept[0].Distance)
	return strings.Join(blocks, "\n\n"), nil
}
