package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/storage"
)

// testPNG renders a noisy image so the encoded size clears the byte floor.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(int64(w * h)))
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Intn(256))
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestFiles(t *testing.T) *storage.FileStore {
	t.Helper()
	fs, err := storage.NewFileStore(t.TempDir(), "/generated")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return fs
}

type fakeDetector struct {
	enabled bool
	count   func(call int) int
	mu      sync.Mutex
	calls   int
}

func (d *fakeDetector) Enabled() bool             { return d.enabled }
func (d *fakeDetector) UnavailableReason() string { return "fake disabled" }

func (d *fakeDetector) CountChars(context.Context, []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.count(d.calls)
	d.calls++
	return n, nil
}

// sleepRecorder replaces real sleeps and records the requested durations.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

// fakeFFmpeg writes a small file at the output path, which is the last arg.
func fakeFFmpeg(calls *[][]string, mu *sync.Mutex) Runner {
	return RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if mu != nil {
			mu.Lock()
			*calls = append(*calls, append([]string{name}, args...))
			mu.Unlock()
		}
		return nil, os.WriteFile(args[len(args)-1], []byte("fake mp4"), 0o644)
	})
}

func testBrief() jsoncfg.Brief {
	b := jsoncfg.Brief{
		Meta: jsoncfg.Meta{SourceSignalID: "sig-42", Title: "물가 이야기"},
		Rationale: jsoncfg.Rationale{
			Logic: jsoncfg.Logic{Conclusion: "장바구니 물가가 체감 경기를 좌우한다"},
		},
		Script: jsoncfg.Script{
			Title:   "왜 장보기가 무서워졌나",
			Hook:    "만원으로 살 수 있는 게 줄었다",
			Body:    []jsoncfg.BodyLine{{Line: "채소 가격이 올랐다"}, {Line: "외식비도 따라 올랐다"}, {Line: "임금은 제자리다"}},
			Closing: "여러분의 장바구니는 어떤가요",
		},
		Assets: jsoncfg.Assets{OnScreenBullets: []string{"채소", "외식", "임금"}},
	}
	b.Normalize()
	return b
}
