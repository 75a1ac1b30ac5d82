package embedding

import (
	"context"
	"fmt"

	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/platform/openrouter"
)

// RemoteEmbedder calls an OpenAI-compatible embeddings endpoint. The
// dimension is declared up front because the vector index sizes its rows
// before the first call.
type RemoteEmbedder struct {
	log    *logger.Logger
	client *openrouter.Client
	model  string
	dim    int
}

func NewRemote(log *logger.Logger, client *openrouter.Client, model string, dim int) (*RemoteEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("provider client required")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive")
	}
	return &RemoteEmbedder{
		log:    log.With("service", "RemoteEmbedder"),
		client: client,
		model:  model,
		dim:    dim,
	}, nil
}

func (e *RemoteEmbedder) Dimension() int { return e.dim }

func (e *RemoteEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.client.Embeddings(ctx, e.model, texts)
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		if len(v) != e.dim {
			return nil, fmt.Errorf("embedding %d dimension mismatch: expected=%d got=%d", i, e.dim, len(v))
		}
	}
	return vecs, nil
}
