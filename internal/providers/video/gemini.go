package video

import (
	"context"
	"time"

	"assetgen/internal/providers/genai"
)

// GeminiOptions tunes the long-running operation polling.
type GeminiOptions struct {
	Model        string
	AspectRatio  string
	PollInterval time.Duration
	MaxPolls     int
}

type GeminiGenerator struct {
	client *genai.Client
	opts   GeminiOptions
}

func NewGeminiGenerator(client *genai.Client, opts GeminiOptions) *GeminiGenerator {
	return &GeminiGenerator{client: client, opts: opts}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (Asset, error) {
	vreq := genai.VideoRequest{
		Model:        g.opts.Model,
		Prompt:       req.Prompt,
		DurationSec:  req.DurationSec,
		AspectRatio:  g.opts.AspectRatio,
		PollInterval: g.opts.PollInterval,
		MaxPolls:     g.opts.MaxPolls,
		RequestID:    req.RequestID,
	}
	if len(req.SeedImage) > 0 {
		vreq.SeedImage = &genai.Reference{Data: req.SeedImage, MIMEType: req.SeedMIME}
	}
	asset, err := g.client.GenerateVideo(ctx, vreq)
	if err != nil {
		return Asset{}, err
	}
	return Asset{URL: asset.URL, Format: asset.Format, Data: asset.Data}, nil
}

// Model reports the configured model identifier.
func (g *GeminiGenerator) Model() string {
	return g.opts.Model
}

var _ Generator = (*GeminiGenerator)(nil)
