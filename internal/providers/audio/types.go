package audio

import "context"

// Asset is a complete audio file ready to be written to disk.
type Asset struct {
	Format string
	Data   []byte
}

// Generator turns narration text into speech.
type Generator interface {
	Generate(ctx context.Context, text string) (Asset, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, text string) (Asset, error)

func (f GeneratorFunc) Generate(ctx context.Context, text string) (Asset, error) {
	return f(ctx, text)
}
