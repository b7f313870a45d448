package adapter

import "context"

var (
	_ Embedding   = (*OpenAI)(nil)
	_ Embedding   = (*Ollama)(nil)
	_ Embedding   = (*Gemini)(nil)
	_ ModelSetter = (*OpenAI)(nil)
	_ ModelSetter = (*Ollama)(nil)
	_ ModelSetter = (*Gemini)(nil)
)

// BatchEmbedder is the narrower interface used by components that only
// need raw vectors, such as the indexer.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// Values strips the Dimension field from a slice of vectors.
func Values(vecs []Vector) [][]float32 {
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = v.Values
	}
	return out
}
