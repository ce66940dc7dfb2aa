package llm

import (
	"context"
	"errors"
)

// Prompt is one text or structured-output request.
// When Schema is non-nil the model is asked for JSON matching it.
type Prompt struct {
	System string
	User   string
	Schema map[string]any
}

// TextModel answers text and structured prompts.
type TextModel interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// VisionModel answers a prompt about a single image.
type VisionModel interface {
	Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Embedder turns texts into fixed-length vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryEmbedder is implemented by embedders that use a distinct task type for search queries.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ErrRateLimited is returned (wrapped) by clients when the provider answered 429.
var ErrRateLimited = errors.New("llm: rate limited")

// TextModelFunc adapts a function to TextModel.
type TextModelFunc func(ctx context.Context, p Prompt) (string, error)

func (f TextModelFunc) Generate(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }

// VisionModelFunc adapts a function to VisionModel.
type VisionModelFunc func(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)

func (f VisionModelFunc) Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return f(ctx, prompt, image, mimeType)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}
