package video

import "context"

// GenerateRequest describes one long-form video call seeded by a still frame.
type GenerateRequest struct {
	Prompt      string
	DurationSec int
	SeedImage   []byte
	SeedMIME    string
	RequestID   string
}

type Asset struct {
	URL    string
	Format string
	Data   []byte
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Asset, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (Asset, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (Asset, error) {
	return f(ctx, req)
}
