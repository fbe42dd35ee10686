package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain"
	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/vector"
	"github.com/abckeishi-spec/keishi9-sub000/internal/metrics"
	"github.com/abckeishi-spec/keishi9-sub000/internal/text/tokenize"
	"github.com/abckeishi-spec/keishi9-sub000/internal/text/vocabulary"
)

// Synthesizer builds TF-IDF vectors over the current vocabulary.
// It is the local embedder: deterministic, offline, and always available
// once a vocabulary can be obtained.
type Synthesizer struct {
	vocab      VocabularySource
	dimensions int
}

// NewSynthesizer creates a synthesizer producing vectors of the given length.
func NewSynthesizer(vocab VocabularySource, dimensions int) *Synthesizer {
	if dimensions <= 0 {
		dimensions = domain.DefaultDimensions
	}
	return &Synthesizer{vocab: vocab, dimensions: dimensions}
}

// Dimensions returns the output vector length.
func (s *Synthesizer) Dimensions() int { return s.dimensions }

// Embed tokenizes text and weights each in-vocabulary token by tf*idf.
// Empty or fully out-of-vocabulary text yields a zero vector.
func (s *Synthesizer) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vocab, err := s.vocab.Vocabulary(ctx)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("load vocabulary: %w", err)
	}
	metrics.LocalEmbeddingsTotal.Inc()
	return domain.EmbeddingResult{
		Embedding:         Synthesize(vocab, tokenize.Tokenize(text), s.dimensions),
		Source:            domain.SourceLocal,
		VocabularyVersion: vocab.Version(),
	}, nil
}

// Synthesize computes the L2-normalized TF-IDF vector of tokens.
func Synthesize(vocab *vocabulary.Vocabulary, tokens []string, dimensions int) []float32 {
	out := make([]float32, dimensions)
	if len(tokens) == 0 {
		return out
	}

	counts := make(map[int]int, len(tokens))
	for _, tok := range tokens {
		if i, ok := vocab.Index(tok); ok && i < dimensions {
			counts[i]++
		}
	}

	total := float64(len(tokens))
	n := vocab.TotalDocs()
	for i, c := range counts {
		out[i] = float32(float64(c) / total * idf(n, vocab.DocFreq(i)))
	}
	vector.NormalizeL2(out)
	return out
}

// idf is log(N/df). A term absent from the sample gets log(N); with one
// document or none every term weighs 1.
func idf(n, df int) float64 {
	if n <= 1 {
		return 1
	}
	if df <= 0 {
		return math.Log(float64(n))
	}
	return math.Log(float64(n) / float64(df))
}
