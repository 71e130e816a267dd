package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gsdk "google.golang.org/genai"

	"assetgen/internal/domain"
	"assetgen/internal/infra"
	"assetgen/internal/infra/metrics"
)

// Options controls how the Gemini client is configured. With neither an API
// key nor a GCP project the client runs in synthetic mode.
type Options struct {
	APIKey     string
	BaseURL    string
	Project    string
	Location   string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the Gemini SDK so providers can focus on
// translating domain requests. Without credentials it renders deterministic
// synthetic assets, which keeps the pipeline runnable in local and CI
// environments.
type Client struct {
	sdk        *gsdk.Client
	apiKey     string
	backend    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Reference is an inline image passed alongside a prompt.
type Reference struct {
	Data     []byte
	MIMEType string
}

// ImageRequest represents the information required to generate one image.
type ImageRequest struct {
	Model      string
	Prompt     string
	References []Reference
	Width      int
	Height     int
	RequestID  string
}

// TextRequest asks for a text completion, usually JSON.
type TextRequest struct {
	Model       string
	Prompt      string
	Temperature float32
	JSON        bool
	Search      bool
	RequestID   string
}

// VideoRequest represents the information required to generate a video.
type VideoRequest struct {
	Model        string
	Prompt       string
	DurationSec  int
	AspectRatio  string
	SeedImage    *Reference
	PollInterval time.Duration
	MaxPolls     int
	RequestID    string
}

// SpeechRequest asks for narration audio.
type SpeechRequest struct {
	Model     string
	Text      string
	Voice     string
	RequestID string
}

// ImageAsset is the normalized representation returned by the client.
type ImageAsset struct {
	Format string
	Data   []byte
}

// VideoAsset is the normalized representation of a generated video.
type VideoAsset struct {
	Format string
	URL    string
	Data   []byte
}

// AudioAsset carries raw PCM or encoded audio bytes.
type AudioAsset struct {
	Format     string
	SampleRate int
	Data       []byte
}

// NewClient constructs a Gemini client. Vertex AI is used when a project is
// configured, the Gemini API when only a key is present.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	c := &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: httpClient,
		logger:     logger,
	}

	var cfg *gsdk.ClientConfig
	switch {
	case strings.TrimSpace(opts.Project) != "":
		cfg = &gsdk.ClientConfig{
			Project:    opts.Project,
			Location:   opts.Location,
			Backend:    gsdk.BackendVertexAI,
			HTTPClient: httpClient,
		}
		c.backend = "vertex"
	case c.apiKey != "":
		cfg = &gsdk.ClientConfig{
			APIKey:     c.apiKey,
			Backend:    gsdk.BackendGeminiAPI,
			HTTPClient: httpClient,
		}
		c.backend = "gemini"
	default:
		c.backend = "synthetic"
		logger.Warn().Msg("genai: no credentials configured; serving synthetic assets")
		return c, nil
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = gsdk.HTTPOptions{BaseURL: base}
	}

	sdk, err := gsdk.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	c.sdk = sdk
	return c, nil
}

// Synthetic reports whether the client renders placeholder assets.
func (c *Client) Synthetic() bool {
	return c == nil || c.sdk == nil
}

// Backend names the active backend: vertex, gemini or synthetic.
func (c *Client) Backend() string {
	return c.backend
}

// GenerateImage asks an image model for exactly one picture.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (ImageAsset, error) {
	if err := ctx.Err(); err != nil {
		return ImageAsset{}, err
	}
	if c.Synthetic() {
		seed := deterministicSeed(req.RequestID, req.Prompt, len(req.References))
		return ImageAsset{Format: "image/png", Data: renderSyntheticImage(req.Width, req.Height, seed)}, nil
	}

	parts := make([]*gsdk.Part, 0, len(req.References)+1)
	for _, ref := range req.References {
		if len(ref.Data) == 0 {
			continue
		}
		parts = append(parts, &gsdk.Part{InlineData: &gsdk.Blob{Data: ref.Data, MIMEType: firstNonEmpty(ref.MIMEType, "image/png")}})
	}
	parts = append(parts, &gsdk.Part{Text: req.Prompt})

	start := time.Now()
	resp, err := c.sdk.Models.GenerateContent(ctx, req.Model,
		[]*gsdk.Content{{Role: gsdk.RoleUser, Parts: parts}},
		&gsdk.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	)
	metrics.ObserveProviderCall(c.backend, "image", time.Since(start), err == nil)
	if err != nil {
		return ImageAsset{}, Classify("genai.image", err)
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return ImageAsset{Format: firstNonEmpty(part.InlineData.MIMEType, "image/png"), Data: part.InlineData.Data}, nil
			}
		}
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", req.Model).
		Msg("genai: image response carried no inline data")
	return ImageAsset{}, domain.Permanent("genai.image", errors.New("response carried no image data"))
}

// GenerateText returns the concatenated text parts of a completion.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Synthetic() {
		return "", domain.Permanent("genai.text", errors.New("no credentials configured"))
	}

	cfg := &gsdk.GenerateContentConfig{Temperature: gsdk.Ptr[float32](req.Temperature)}
	if req.Search {
		// The search tool cannot be combined with a JSON response MIME type.
		cfg.Tools = []*gsdk.Tool{{GoogleSearch: &gsdk.GoogleSearch{}}}
	} else if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := c.sdk.Models.GenerateContent(ctx, req.Model,
		[]*gsdk.Content{{Role: gsdk.RoleUser, Parts: []*gsdk.Part{{Text: req.Prompt}}}},
		cfg,
	)
	metrics.ObserveProviderCall(c.backend, "text", time.Since(start), err == nil)
	if err != nil {
		return "", Classify("genai.text", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", domain.Permanent("genai.text", errors.New("empty completion"))
	}
	return b.String(), nil
}

// GenerateVideo starts a long-running video operation and polls it until the
// video is ready, the poll budget is spent, or ctx ends.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (VideoAsset, error) {
	if err := ctx.Err(); err != nil {
		return VideoAsset{}, err
	}
	if c.Synthetic() {
		seed := deterministicSeed(req.RequestID, req.Prompt, req.DurationSec)
		return VideoAsset{Format: "video/mp4", Data: renderSyntheticVideo(seed, req.Prompt)}, nil
	}

	cfg := &gsdk.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    firstNonEmpty(req.AspectRatio, "16:9"),
	}
	if req.DurationSec > 0 {
		cfg.DurationSeconds = gsdk.Ptr[int32](int32(req.DurationSec))
	}
	var seed *gsdk.Image
	if req.SeedImage != nil && len(req.SeedImage.Data) > 0 {
		seed = &gsdk.Image{ImageBytes: req.SeedImage.Data, MIMEType: firstNonEmpty(req.SeedImage.MIMEType, "image/png")}
	}

	start := time.Now()
	op, err := c.sdk.Models.GenerateVideos(ctx, req.Model, req.Prompt, seed, cfg)
	if err != nil {
		metrics.ObserveProviderCall(c.backend, "video", time.Since(start), false)
		return VideoAsset{}, Classify("genai.video", err)
	}

	interval := req.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	maxPolls := req.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 45
	}
	for poll := 0; !op.Done; poll++ {
		if poll >= maxPolls {
			metrics.ObserveProviderCall(c.backend, "video", time.Since(start), false)
			return VideoAsset{}, domain.Transient("genai.video", fmt.Errorf("operation %s not done after %d polls", op.Name, maxPolls))
		}
		select {
		case <-ctx.Done():
			return VideoAsset{}, ctx.Err()
		case <-time.After(interval):
		}
		op, err = c.sdk.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			metrics.ObserveProviderCall(c.backend, "video", time.Since(start), false)
			return VideoAsset{}, Classify("genai.video", err)
		}
	}
	metrics.ObserveProviderCall(c.backend, "video", time.Since(start), true)

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return VideoAsset{}, domain.Permanent("genai.video", errors.New("operation finished without a video"))
	}
	video := op.Response.GeneratedVideos[0].Video
	if len(video.VideoBytes) > 0 {
		return VideoAsset{Format: firstNonEmpty(video.MIMEType, "video/mp4"), URL: video.URI, Data: video.VideoBytes}, nil
	}
	if video.URI == "" {
		return VideoAsset{}, domain.Permanent("genai.video", errors.New("video carried neither bytes nor uri"))
	}
	data, mime, err := c.downloadFile(ctx, video.URI)
	if err != nil {
		return VideoAsset{}, domain.Transient("genai.video", err)
	}
	return VideoAsset{Format: firstNonEmpty(video.MIMEType, mime, "video/mp4"), URL: video.URI, Data: data}, nil
}

// GenerateSpeech synthesizes narration. Gemini TTS returns 24kHz mono PCM.
func (c *Client) GenerateSpeech(ctx context.Context, req SpeechRequest) (AudioAsset, error) {
	if err := ctx.Err(); err != nil {
		return AudioAsset{}, err
	}
	if c.Synthetic() {
		// One second of silence.
		return AudioAsset{Format: "audio/L16", SampleRate: 24000, Data: make([]byte, 24000*2)}, nil
	}

	cfg := &gsdk.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &gsdk.SpeechConfig{
			VoiceConfig: &gsdk.VoiceConfig{
				PrebuiltVoiceConfig: &gsdk.PrebuiltVoiceConfig{VoiceName: firstNonEmpty(req.Voice, "Kore")},
			},
		},
	}
	start := time.Now()
	resp, err := c.sdk.Models.GenerateContent(ctx, req.Model,
		[]*gsdk.Content{{Role: gsdk.RoleUser, Parts: []*gsdk.Part{{Text: req.Text}}}},
		cfg,
	)
	metrics.ObserveProviderCall(c.backend, "speech", time.Since(start), err == nil)
	if err != nil {
		return AudioAsset{}, Classify("genai.speech", err)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return AudioAsset{Format: part.InlineData.MIMEType, SampleRate: 24000, Data: part.InlineData.Data}, nil
			}
		}
	}
	return AudioAsset{}, domain.Permanent("genai.speech", errors.New("response carried no audio data"))
}

// Classify maps SDK failures onto domain error kinds: rate limiting, resource
// exhaustion and unavailability are transient, everything else permanent.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	var apiErr gsdk.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code == http.StatusServiceUnavailable,
			strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED"),
			strings.EqualFold(apiErr.Status, "UNAVAILABLE"):
			return domain.Transient(op, err)
		default:
			return domain.Permanent(op, err)
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "rate limit") {
		return domain.Transient(op, err)
	}
	return domain.Permanent(op, err)
}

func (c *Client) downloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("download file status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
