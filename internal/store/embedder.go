package store

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/philippgille/chromem-go"
)

// embeddingDims is the fixed width of the hashed bag-of-tokens vector.
const embeddingDims = 256

// tokenize splits source text into lowercase identifier-ish tokens.
// CamelCase and snake_case identifiers contribute both the full token
// and their parts so "ParseConfig" is findable via "parse" or "config".
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	tokens := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		tokens = append(tokens, strings.ToLower(f))
		for _, part := range splitIdentifier(f) {
			if part != "" && !strings.EqualFold(part, f) {
				tokens = append(tokens, strings.ToLower(part))
			}
		}
	}
	return tokens
}

func splitIdentifier(s string) []string {
	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_':
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]))):
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return parts
}

// hashEmbedding maps text onto a fixed-dimension vector by hashing each
// token into a bucket and L2-normalizing the counts. The projection is
// deterministic, so equal text always embeds identically and overlapping
// token sets land close under cosine similarity. It trades semantic
// nuance for zero model weight, which keeps indexing fully offline.
func hashEmbedding(text string) []float32 {
	vec := make([]float32, embeddingDims)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		bucket := sum % embeddingDims
		// Sign bit from a higher byte decorrelates colliding tokens.
		if sum&(1<<16) != 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// newEmbeddingFunc adapts hashEmbedding to chromem's interface.
func newEmbeddingFunc() chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		return hashEmbedding(text), nil
	}
}
