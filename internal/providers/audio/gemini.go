package audio

import (
	"context"
	"strings"

	"assetgen/internal/providers/genai"
)

type GeminiGenerator struct {
	client *genai.Client
	model  string
	voice  string
}

func NewGeminiGenerator(client *genai.Client, model, voice string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model, voice: voice}
}

// Generate returns a WAV file. Raw PCM from the provider is wrapped in a
// RIFF header; already-encoded WAV payloads pass through.
func (g *GeminiGenerator) Generate(ctx context.Context, text string) (Asset, error) {
	asset, err := g.client.GenerateSpeech(ctx, genai.SpeechRequest{
		Model: g.model,
		Text:  text,
		Voice: g.voice,
	})
	if err != nil {
		return Asset{}, err
	}
	if strings.Contains(asset.Format, "wav") {
		return Asset{Format: "audio/wav", Data: asset.Data}, nil
	}
	rate := asset.SampleRate
	if rate <= 0 {
		rate = 24000
	}
	return Asset{Format: "audio/wav", Data: EncodeWAV(asset.Data, rate, 1)}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
