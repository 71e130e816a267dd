package image

import "context"

// Reference is an inline conditioning image, e.g. the character anchor.
type Reference struct {
	MIME string
	Data []byte
}

// GenerateRequest describes one image generation call.
type GenerateRequest struct {
	Prompt     string
	References []Reference
	Width      int
	Height     int
	RequestID  string
}

// Asset represents a generated image as returned by the provider, before any
// validation or resizing.
type Asset struct {
	Format string
	Data   []byte
}

// Generator is the contract implemented by image providers. Failures are
// reported as *domain.ProviderError so callers can switch on the kind.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Asset, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (Asset, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (Asset, error) {
	return f(ctx, req)
}
