package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const probesPerToken = 4

// Hash is a dependency-free feature-hashing embedder. Each lower-cased token
// is spread over a few signed buckets seeded by its FNV hash, so texts that
// share words land close together.
type Hash struct {
	dims int
}

// NewHash builds a hash embedder.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Hash{dims: dims}
}

// Embed returns a unit-length vector for text.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(token))
		seed := hasher.Sum64()
		for i := 0; i < probesPerToken; i++ {
			seed = seed*6364136223846793005 + 1442695040888963407
			idx := int(seed>>33) % h.dims
			if (seed>>32)&1 == 0 {
				vec[idx]++
			} else {
				vec[idx]--
			}
		}
	}
	return normalize(vec), nil
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
