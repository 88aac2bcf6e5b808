package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	// fallbackDefaultDim is used when no dimension is configured.
	fallbackDefaultDim = 256

	// wordSignalWeight balances the hashed word-frequency signal against
	// the character sinusoid before normalization.
	wordSignalWeight = 2.0
)

// FallbackProvider derives a fixed-dimension vector purely from the input,
// with no network calls. It combines a character-code sinusoidal signal
// with a hashed-bucket word-frequency signal and L2-normalizes the result.
//
// The output is not semantically competitive with a trained model; it
// exists so that writes and search keep functioning during a provider
// outage. Availability over accuracy.
type FallbackProvider struct {
	dim int
}

// NewFallbackProvider creates a fallback embedder producing vectors of the
// given dimension. A non-positive dimension selects the default.
func NewFallbackProvider(dim int) *FallbackProvider {
	if dim <= 0 {
		dim = fallbackDefaultDim
	}
	return &FallbackProvider{dim: dim}
}

// Embed never fails; identical text always yields the identical vector.
func (p *FallbackProvider) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, p.dim)

	// Character-code sinusoid. Shifted into [0, 1] so that any two texts
	// share a positive baseline and cosine similarity stays usefully
	// above zero even without word overlap.
	runes := []rune(text)
	for i := 0; i < p.dim; i++ {
		var sum float64
		for j, r := range runes {
			sum += 0.5 * (1 + math.Sin(float64(r)*float64(i+1)*0.01+float64(j)*0.001))
		}
		if len(runes) > 0 {
			vec[i] = sum / float64(len(runes))
		}
	}

	// Hashed-bucket word frequencies layered on top.
	for _, word := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		bucket := int(h.Sum32()) % p.dim
		if bucket < 0 {
			bucket += p.dim
		}
		vec[bucket] += wordSignalWeight
	}

	l2Normalize(vec)
	return vec, nil
}

// EmbedImage derives a vector from raw bytes using the same two-signal
// scheme, with fixed-size byte chunks standing in for words.
func (p *FallbackProvider) EmbedImage(_ context.Context, data []byte) ([]float64, error) {
	vec := make([]float64, p.dim)

	for i := 0; i < p.dim; i++ {
		var sum float64
		for j, b := range data {
			sum += 0.5 * (1 + math.Sin(float64(b)*float64(i+1)*0.01+float64(j)*0.001))
			if j >= 4096 {
				break
			}
		}
		if len(data) > 0 {
			n := len(data)
			if n > 4097 {
				n = 4097
			}
			vec[i] = sum / float64(n)
		}
	}

	const chunk = 16
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		h := fnv.New32a()
		h.Write(data[off:end])
		bucket := int(h.Sum32()) % p.dim
		if bucket < 0 {
			bucket += p.dim
		}
		vec[bucket] += wordSignalWeight
	}

	l2Normalize(vec)
	return vec, nil
}

func (p *FallbackProvider) Dimension() int { return p.dim }

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// l2Normalize scales vec to unit length in place. Zero vectors stay zero.
func l2Normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
}
