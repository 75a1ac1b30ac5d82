package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// LocalEmbedder is a feature-hashing bag-of-words embedder. It needs no
// model download and no network, which keeps ingestion self-contained: each
// token (and each adjacent-token bigram, for a little word order) is hashed
// into a fixed number of buckets with a sign bit, and the resulting vector
// is L2-normalized. Identical text always maps to the identical vector, so
// exact-match queries score a cosine distance of zero.
type LocalEmbedder struct {
	dim          int
	tokenPattern *regexp.Regexp
}

const DefaultLocalDimension = 256

func NewLocal(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = DefaultLocalDimension
	}
	return &LocalEmbedder{
		dim:          dim,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
	}
}

func (e *LocalEmbedder) Dimension() int { return e.dim }

func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dim)
	tokens := e.tokenize(text)
	for i, tok := range tokens {
		e.addFeature(vec, tok)
		if i+1 < len(tokens) {
			e.addFeature(vec, tok+" "+tokens[i+1])
		}
	}
	normalize(vec)
	return vec
}

func (e *LocalEmbedder) addFeature(vec []float32, feature string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dim))
	// Top bit decides the sign so colliding features tend to cancel rather
	// than pile up.
	if sum&(1<<63) != 0 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}

func (e *LocalEmbedder) tokenize(text string) []string {
	return e.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func normalize(vec []float32) {
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i, x := range vec {
		vec[i] = float32(float64(x) / norm)
	}
}
