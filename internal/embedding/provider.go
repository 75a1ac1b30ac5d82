package embedding

import "context"

// Provider turns text into fixed-dimension vectors. Implementations must be
// deterministic per input within a process lifetime so re-ingesting a
// document reproduces its vectors.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
