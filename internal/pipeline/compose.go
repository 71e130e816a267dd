package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ComposerOptions fixes the output encoding of every composed video.
type ComposerOptions struct {
	FFmpegPath string
	FPS        int
	Width      int
	Height     int
	Bitrate    string
}

// AudioMix overlays narration and background music on a slideshow.
type AudioMix struct {
	Voice       string
	BGM         string
	VoiceVolume float64
	BGMVolume   float64
}

// Composer turns ordered still frames into a video file.
type Composer interface {
	Compose(ctx context.Context, frames []string, outPath string, totalSec float64) error
	ComposeWithAudio(ctx context.Context, frames []string, outPath string, totalSec float64, mix AudioMix) error
}

// SlideshowComposer renders frames with ffmpeg's concat demuxer. Each frame
// is shown for totalSec/len(frames). There is no retry: composition is local
// and deterministic.
type SlideshowComposer struct {
	opts   ComposerOptions
	runner Runner
}

// NewSlideshowComposer uses exec when runner is nil.
func NewSlideshowComposer(opts ComposerOptions, runner Runner) *SlideshowComposer {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FPS <= 0 {
		opts.FPS = 10
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 640, 360
	}
	if opts.Bitrate == "" {
		opts.Bitrate = "550k"
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &SlideshowComposer{opts: opts, runner: runner}
}

func (c *SlideshowComposer) Compose(ctx context.Context, frames []string, outPath string, totalSec float64) error {
	return c.compose(ctx, frames, outPath, totalSec, nil)
}

func (c *SlideshowComposer) ComposeWithAudio(ctx context.Context, frames []string, outPath string, totalSec float64, mix AudioMix) error {
	if mix.Voice == "" || mix.BGM == "" {
		return errors.New("compose: voice and bgm tracks are required")
	}
	return c.compose(ctx, frames, outPath, totalSec, &mix)
}

func (c *SlideshowComposer) compose(ctx context.Context, frames []string, outPath string, totalSec float64, mix *AudioMix) error {
	if len(frames) == 0 {
		return errors.New("compose: at least one frame is required")
	}
	if totalSec <= 0 {
		return fmt.Errorf("compose: duration must be positive, got %v", totalSec)
	}
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("compose: ensure output dir: %w", err)
	}
	listPath := filepath.Join(dir, ".concat-"+uuid.NewString()+".txt")
	if err := os.WriteFile(listPath, []byte(concatList(frames, totalSec/float64(len(frames)))), 0o644); err != nil {
		return fmt.Errorf("compose: write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := c.args(listPath, outPath, totalSec, mix)
	if out, err := c.runner.Run(ctx, c.opts.FFmpegPath, args...); err != nil {
		return fmt.Errorf("compose: ffmpeg: %w: %s", err, tail(out, 512))
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("compose: output missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("compose: output %s is empty", outPath)
	}
	return nil
}

func (c *SlideshowComposer) args(listPath, outPath string, totalSec float64, mix *AudioMix) []string {
	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", listPath}
	if mix != nil {
		args = append(args, "-i", mix.Voice, "-i", mix.BGM,
			"-filter_complex", fmt.Sprintf(
				"[1:a]volume=%s[a1];[2:a]volume=%s[a2];[a1][a2]amix=inputs=2:duration=longest[aout]",
				formatFloat(mix.VoiceVolume), formatFloat(mix.BGMVolume)),
			"-map", "0:v", "-map", "[aout]", "-c:a", "aac")
	}
	args = append(args,
		"-r", strconv.Itoa(c.opts.FPS),
		"-s", fmt.Sprintf("%dx%d", c.opts.Width, c.opts.Height),
		"-c:v", "libx264",
		"-b:v", c.opts.Bitrate,
		"-pix_fmt", "yuv420p",
		"-t", formatFloat(totalSec),
	)
	if mix == nil {
		args = append(args, "-an")
	}
	return append(args, outPath)
}

// concatList renders an ffconcat script. The concat demuxer ignores the
// duration of the final entry, so the last frame is listed twice.
func concatList(frames []string, perFrame float64) string {
	var b strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&b, "file '%s'\nduration %s\n", quoteConcat(f), formatFloat(perFrame))
	}
	fmt.Fprintf(&b, "file '%s'\n", quoteConcat(frames[len(frames)-1]))
	return b.String()
}

func quoteConcat(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return strings.ReplaceAll(filepath.ToSlash(path), "'", `'\''`)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func tail(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

var _ Composer = (*SlideshowComposer)(nil)
