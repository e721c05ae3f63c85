package model

import "context"

// Embedder converts text into fixed-length vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds all texts in a single call and preserves input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer generates a natural-language answer for a question grounded in
// the given context.
type Completer interface {
	Complete(ctx context.Context, question, context string, opts Options) (string, error)
}

type Options struct {
	Temperature float32
	MaxTokens   int
}

func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		MaxTokens:   500,
	}
}
