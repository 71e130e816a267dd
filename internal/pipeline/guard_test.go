package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"assetgen/internal/domain"
	imageprov "assetgen/internal/providers/image"
	"assetgen/internal/providers/ocr"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		BackoffBase:     4 * time.Second,
		BackoffMax:      30 * time.Second,
		BackoffFloor:    500 * time.Millisecond,
		RequestInterval: 1200 * time.Millisecond,
		MinBytes:        1024,
		Width:           64,
		Height:          36,
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := testPolicy()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 4 * time.Second},
		{0, 4 * time.Second},
		{1, 8 * time.Second},
		{2, 16 * time.Second},
		{3, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := p.Backoff(tc.attempt); got != tc.want {
			t.Fatalf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}

	p.BackoffBase = 100 * time.Millisecond
	if got := p.Backoff(0); got != 500*time.Millisecond {
		t.Fatalf("floor not applied: %v", got)
	}
}

func TestRetryPromptTiers(t *testing.T) {
	if got := RetryPrompt("base", 0); got != "base" {
		t.Fatalf("attempt 0 must be verbatim, got %q", got)
	}
	if got := RetryPrompt("base", 1); !strings.HasSuffix(got, retryDirective1) {
		t.Fatalf("attempt 1 missing tier one directive: %q", got)
	}
	for _, attempt := range []int{2, 3, 9} {
		got := RetryPrompt("base", attempt)
		if !strings.HasSuffix(got, retryDirective2) || strings.Contains(got, retryDirective1) {
			t.Fatalf("attempt %d: unexpected prompt %q", attempt, got)
		}
	}
}

func TestGuardBacksOffOnTransientErrors(t *testing.T) {
	files := newTestFiles(t)
	good := testPNG(t, 64, 36)
	calls := 0
	images := imageprov.GeneratorFunc(func(ctx context.Context, req imageprov.GenerateRequest) (imageprov.Asset, error) {
		calls++
		if calls <= 3 {
			return imageprov.Asset{}, domain.Transient("image", errors.New("429 RESOURCE_EXHAUSTED"))
		}
		return imageprov.Asset{Format: "png", Data: good}, nil
	})
	g := NewGuardedImageGenerator(images, files, ocr.NoopDetector{}, testPolicy(), nil)
	rec := &sleepRecorder{}
	g.sleep = rec.sleep
	trace := NewTrace()

	out, err := g.Generate(context.Background(), trace, GuardRequest{ID: "thumbnail", Prompt: "p", OutputKey: "job/thumbnail.png", MaxChars: 12})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", out.Attempts)
	}
	want := []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second, 1200 * time.Millisecond}
	if len(rec.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", rec.sleeps, want)
	}
	for i := range want {
		if rec.sleeps[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, rec.sleeps[i], want[i])
		}
	}
	snap := trace.Snapshot()
	if snap.ImageCalls != 4 || snap.BackoffRetries != 3 || snap.TextGuardRetries != 0 || snap.ProviderRetries != 0 {
		t.Fatalf("unexpected trace %+v", snap)
	}
	if len(snap.BlockedFrames) != 0 {
		t.Fatalf("nothing should be blocked: %v", snap.BlockedFrames)
	}

	stored, err := files.ReadFile(out.Key)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(stored))
	if err != nil || format != "png" {
		t.Fatalf("stored artifact is not a png: %v %s", err, format)
	}
	if cfg.Width != 64 || cfg.Height != 36 {
		t.Fatalf("artifact size changed: %dx%d", cfg.Width, cfg.Height)
	}
	if out.PublicPath != "/generated/job/thumbnail.png" {
		t.Fatalf("unexpected public path %s", out.PublicPath)
	}
}

func TestGuardNormalizesToCanonicalSize(t *testing.T) {
	files := newTestFiles(t)
	small := testPNG(t, 64, 36)
	images := imageprov.GeneratorFunc(func(ctx context.Context, req imageprov.GenerateRequest) (imageprov.Asset, error) {
		return imageprov.Asset{Format: "png", Data: small}, nil
	})
	policy := testPolicy()
	policy.Width, policy.Height = 128, 72
	g := NewGuardedImageGenerator(images, files, ocr.NoopDetector{}, policy, nil)
	g.sleep = (&sleepRecorder{}).sleep

	out, err := g.Generate(context.Background(), NewTrace(), GuardRequest{ID: "anchor", Prompt: "p", OutputKey: "job/anchor.png"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	stored, err := files.ReadFile(out.Key)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(stored))
	if err != nil || format != "png" {
		t.Fatalf("stored artifact is not a png: %v %s", err, format)
	}
	if cfg.Width != 128 || cfg.Height != 72 {
		t.Fatalf("artifact not resized: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestGuardQualityGateExhaustsAndBlocksOnce(t *testing.T) {
	files := newTestFiles(t)
	good := testPNG(t, 64, 36)
	var mu sync.Mutex
	var prompts []string
	images := imageprov.GeneratorFunc(func(ctx context.Context, req imageprov.GenerateRequest) (imageprov.Asset, error) {
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		return imageprov.Asset{Format: "png", Data: good}, nil
	})
	detector := &fakeDetector{enabled: true, count: func(int) int { return 40 }}
	g := NewGuardedImageGenerator(images, files, detector, testPolicy(), nil)
	rec := &sleepRecorder{}
	g.sleep = rec.sleep
	trace := NewTrace()

	_, err := g.Generate(context.Background(), trace, GuardRequest{ID: "frame_03", Prompt: "base", OutputKey: "job/frames/frame_03.png", MaxChars: 12})
	if !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
	if domain.KindOf(err) != domain.KindQuality {
		t.Fatalf("expected last cause to be a quality failure, got %v", domain.KindOf(err))
	}
	if len(prompts) != 5 {
		t.Fatalf("expected 5 provider calls, got %d", len(prompts))
	}
	if prompts[0] != "base" || !strings.HasSuffix(prompts[1], retryDirective1) || !strings.HasSuffix(prompts[4], retryDirective2) {
		t.Fatalf("prompt escalation not applied: %q", prompts)
	}
	if len(rec.sleeps) != 0 {
		t.Fatalf("quality retries must not back off: %v", rec.sleeps)
	}
	snap := trace.Snapshot()
	if snap.TextGuardRetries != 4 || snap.BackoffRetries != 0 {
		t.Fatalf("unexpected retry tallies %+v", snap)
	}
	if len(snap.BlockedFrames) != 1 || snap.BlockedFrames[0] != "frame_03" {
		t.Fatalf("expected frame_03 blocked once, got %v", snap.BlockedFrames)
	}
	if files.Exists("job/frames/frame_03.png") {
		t.Fatal("rejected artifact must not be stored")
	}

	// Blocking the same id again stays idempotent.
	trace.block("frame_03")
	if got := trace.Blocked(); len(got) != 1 {
		t.Fatalf("blocked list grew: %v", got)
	}
	summary := trace.TextGuard(true, "", 12, 12)
	if summary.CharCounts["frame_03"] != 40 || summary.Retries != 4 {
		t.Fatalf("unexpected text guard summary %+v", summary)
	}
}

func TestGuardPermanentErrorsRetryWithoutBackoff(t *testing.T) {
	files := newTestFiles(t)
	calls := 0
	images := imageprov.GeneratorFunc(func(ctx context.Context, req imageprov.GenerateRequest) (imageprov.Asset, error) {
		calls++
		return imageprov.Asset{}, domain.Permanent("image", errors.New("bad request"))
	})
	policy := testPolicy()
	policy.MaxAttempts = 3
	g := NewGuardedImageGenerator(images, files, nil, policy, nil)
	rec := &sleepRecorder{}
	g.sleep = rec.sleep
	trace := NewTrace()

	_, err := g.Generate(context.Background(), trace, GuardRequest{ID: "character_anchor", Prompt: "p", OutputKey: "job/a.png"})
	if !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("retried calls must not exceed max attempts: %d", calls)
	}
	if len(rec.sleeps) != 0 {
		t.Fatalf("unexpected sleeps %v", rec.sleeps)
	}
	if snap := trace.Snapshot(); snap.ProviderRetries != 2 {
		t.Fatalf("expected 2 provider retries, got %+v", snap)
	}
}

func TestGuardRejectsPayloadBelowFloor(t *testing.T) {
	files := newTestFiles(t)
	images := imageprov.GeneratorFunc(func(ctx context.Context, req imageprov.GenerateRequest) (imageprov.Asset, error) {
		return imageprov.Asset{Data: []byte("tiny")}, nil
	})
	policy := testPolicy()
	policy.MaxAttempts = 2
	g := NewGuardedImageGenerator(images, files, nil, policy, nil)
	g.sleep = (&sleepRecorder{}).sleep

	_, err := g.Generate(context.Background(), NewTrace(), GuardRequest{ID: "thumbnail", Prompt: "p", OutputKey: "job/t.png"})
	if !errors.Is(err, domain.ErrAttemptsExhausted) || !strings.Contains(err.Error(), "too small") {
		t.Fatalf("expected size floor failure, got %v", err)
	}
}

func TestGuardSkipsTextGateWhenRequested(t *testing.T) {
	files := newTestFiles(t)
	good := testPNG(t, 64, 36)
	images := imageprov.GeneratorFunc(func(ctx context.Context, req imageprov.GenerateRequest) (imageprov.Asset, error) {
		return imageprov.Asset{Data: good}, nil
	})
	detector := &fakeDetector{enabled: true, count: func(int) int { return 999 }}
	g := NewGuardedImageGenerator(images, files, detector, testPolicy(), nil)
	g.sleep = (&sleepRecorder{}).sleep

	out, err := g.Generate(context.Background(), NewTrace(), GuardRequest{ID: "frame_01", Prompt: "p", OutputKey: "job/f.png", NoTextGuard: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Attempts != 1 || detector.calls != 0 {
		t.Fatalf("gate should be skipped: attempts=%d detector calls=%d", out.Attempts, detector.calls)
	}
}

func TestGuardStopsOnCancelledContext(t *testing.T) {
	files := newTestFiles(t)
	images := imageprov.GeneratorFunc(func(ctx context.Context, req imageprov.GenerateRequest) (imageprov.Asset, error) {
		return imageprov.Asset{}, domain.Transient("image", errors.New("429"))
	})
	g := NewGuardedImageGenerator(images, files, nil, testPolicy(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	g.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	_, err := g.Generate(ctx, NewTrace(), GuardRequest{ID: "x", Prompt: "p", OutputKey: "job/x.png"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
