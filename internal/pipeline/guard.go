package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"assetgen/internal/domain"
	"assetgen/internal/infra"
	"assetgen/internal/infra/metrics"
	imageprov "assetgen/internal/providers/image"
	"assetgen/internal/providers/ocr"
	"assetgen/internal/storage"
)

// RetryPolicy bounds the guarded image loop.
type RetryPolicy struct {
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	BackoffFloor    time.Duration
	RequestInterval time.Duration
	MinBytes        int
	Width           int
	Height          int
}

// PolicyFromConfig maps pipeline tuning onto a RetryPolicy.
func PolicyFromConfig(cfg infra.PipelineConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     cfg.MaxImageAttempts,
		BackoffBase:     cfg.BackoffBase,
		BackoffMax:      cfg.BackoffMax,
		BackoffFloor:    cfg.BackoffFloor,
		RequestInterval: cfg.RequestInterval,
		MinBytes:        cfg.MinImageBytes,
		Width:           cfg.OutputWidth,
		Height:          cfg.OutputHeight,
	}
}

// Backoff is the sleep that follows a rate-limited failure of the given
// 0-based attempt: BackoffBase * 2^attempt clamped into [BackoffFloor, BackoffMax].
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.BackoffBase) * math.Pow(2, float64(attempt))
	if limit := float64(p.BackoffMax); p.BackoffMax > 0 && d > limit {
		d = limit
	}
	out := time.Duration(d)
	if out < p.BackoffFloor {
		out = p.BackoffFloor
	}
	return out
}

// GuardRequest asks for one acceptable image stored at OutputKey.
type GuardRequest struct {
	// ID names the artifact in traces and in the blocked list, e.g. "frame_03".
	ID        string
	Prompt    string
	OutputKey string
	// MaxChars is the on-screen text budget enforced by the quality gate.
	MaxChars    int
	NoTextGuard bool
	References  []imageprov.Reference
}

// GuardOutcome describes the accepted artifact.
type GuardOutcome struct {
	Key        string
	PublicPath string
	PNG        []byte
	Attempts   int
	TextChars  int
}

// GuardedImageGenerator retries one image call against rate limiting,
// provider failures and the on-screen text gate.
type GuardedImageGenerator struct {
	images imageprov.Generator
	files  *storage.FileStore
	ocr    ocr.Detector
	policy RetryPolicy
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewGuardedImageGenerator(images imageprov.Generator, files *storage.FileStore, detector ocr.Detector, policy RetryPolicy, logger *infra.Logger) *GuardedImageGenerator {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if detector == nil {
		detector = ocr.NoopDetector{}
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &GuardedImageGenerator{
		images: images,
		files:  files,
		ocr:    detector,
		policy: policy,
		logger: l,
		sleep:  sleepContext,
	}
}

// Generate runs the attempt loop. Every provider call is counted on trace.
// Exhausting the attempts blocks req.ID on trace and returns an error
// wrapping domain.ErrAttemptsExhausted and the last cause.
func (g *GuardedImageGenerator) Generate(ctx context.Context, trace *Trace, req GuardRequest) (GuardOutcome, error) {
	maxAttempts := g.policy.MaxAttempts
	gate := g.ocr.Enabled() && !req.NoTextGuard

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return GuardOutcome{}, err
		}
		log := g.logger.With().Str("artifact", req.ID).Int("attempt", attempt).Logger()

		trace.imageCall()
		asset, err := g.images.Generate(ctx, imageprov.GenerateRequest{
			Prompt:     RetryPrompt(req.Prompt, attempt),
			References: req.References,
			Width:      g.policy.Width,
			Height:     g.policy.Height,
			RequestID:  fmt.Sprintf("%s-%d", req.ID, attempt),
		})
		var data []byte
		if err == nil {
			data, err = g.normalize(asset.Data)
		}
		chars := 0
		if err == nil && gate {
			n, ocrErr := g.ocr.CountChars(ctx, data)
			switch {
			case ocrErr != nil:
				// A detector outage must not block generation.
				log.Warn().Err(ocrErr).Msg("text detection failed, accepting image")
			case n > req.MaxChars:
				trace.charCount(req.ID, n)
				err = &domain.ProviderError{
					Kind: domain.KindQuality,
					Op:   "text_guard",
					Err:  fmt.Errorf("%d text chars exceeds limit %d", n, req.MaxChars),
				}
			default:
				trace.charCount(req.ID, n)
				chars = n
			}
		}

		if err == nil {
			key, werr := g.files.Write(ctx, req.OutputKey, data)
			if werr != nil {
				return GuardOutcome{}, fmt.Errorf("store %s: %w", req.ID, werr)
			}
			if serr := g.sleep(ctx, g.policy.RequestInterval); serr != nil {
				return GuardOutcome{}, serr
			}
			return GuardOutcome{
				Key:        key,
				PublicPath: g.files.PublicPath(key),
				PNG:        data,
				Attempts:   attempt + 1,
				TextChars:  chars,
			}, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return GuardOutcome{}, err
		}
		lastErr = err
		kind := domain.KindOf(err)
		log.Warn().Err(err).Str("kind", kind.String()).Msg("image attempt failed")
		if attempt == maxAttempts-1 {
			break
		}

		switch kind {
		case domain.KindTransient:
			trace.retry(retryBackoff)
			metrics.IncImageRetry(retryBackoff)
			if serr := g.sleep(ctx, g.policy.Backoff(attempt)); serr != nil {
				return GuardOutcome{}, serr
			}
		case domain.KindQuality:
			trace.retry(retryTextGuard)
			metrics.IncImageRetry(retryTextGuard)
		default:
			trace.retry(retryProvider)
			metrics.IncImageRetry(retryProvider)
		}
	}

	trace.block(req.ID)
	metrics.IncBlockedFrame()
	return GuardOutcome{}, fmt.Errorf("%s: %w after %d attempts: %w", req.ID, domain.ErrAttemptsExhausted, maxAttempts, lastErr)
}

// normalize checks the payload floor, decodes it and re-encodes it as PNG at
// the canonical resolution.
func (g *GuardedImageGenerator) normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, domain.Permanent("image", errors.New("empty image payload"))
	}
	if len(data) < g.policy.MinBytes {
		return nil, domain.Permanent("image", fmt.Errorf("image payload too small: %d bytes", len(data)))
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.Permanent("image", fmt.Errorf("decode image: %w", err))
	}
	w, h := g.policy.Width, g.policy.Height
	if w <= 0 || h <= 0 {
		w, h = src.Bounds().Dx(), src.Bounds().Dy()
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
