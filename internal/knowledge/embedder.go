package knowledge

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder maps character n-grams into a fixed number of buckets. It needs
// no network and is stable across processes, which makes it the embedder for
// offline runs and tests. Chinese text has no word boundaries, so n-grams are
// taken over runes.
type HashEmbedder struct {
	dims int
	n    int
}

// NewHashEmbedder creates an embedder with dims buckets over rune bigrams.
// dims <= 0 defaults to 256.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims, n: 2}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	runes := normalizeRunes(text)
	vec := make([]float32, h.dims)
	if len(runes) == 0 {
		return vec, nil
	}

	add := func(gram []rune) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(string(gram)))
		vec[f.Sum32()%uint32(h.dims)]++
	}
	for _, r := range runes {
		add([]rune{r})
	}
	for i := 0; i+h.n <= len(runes); i++ {
		add(runes[i : i+h.n])
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (h *HashEmbedder) Dimensions() int { return h.dims }

func (h *HashEmbedder) Name() string { return fmt.Sprintf("hash:%d", h.dims) }

func normalizeRunes(text string) []rune {
	out := make([]rune, 0, len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}
