package image

import (
	"context"

	"assetgen/internal/providers/genai"
)

type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(client *genai.Client, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (Asset, error) {
	refs := make([]genai.Reference, 0, len(req.References))
	for _, ref := range req.References {
		refs = append(refs, genai.Reference{Data: ref.Data, MIMEType: ref.MIME})
	}
	asset, err := g.client.GenerateImage(ctx, genai.ImageRequest{
		Model:      g.model,
		Prompt:     req.Prompt,
		References: refs,
		Width:      req.Width,
		Height:     req.Height,
		RequestID:  req.RequestID,
	})
	if err != nil {
		return Asset{}, err
	}
	return Asset{Format: asset.Format, Data: asset.Data}, nil
}

// Model reports the configured model identifier.
func (g *GeminiGenerator) Model() string {
	return g.model
}

var _ Generator = (*GeminiGenerator)(nil)
