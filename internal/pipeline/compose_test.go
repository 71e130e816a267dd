package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
)

func TestConcatListSplitsDurationEvenly(t *testing.T) {
	dir := t.TempDir()
	frames := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "it's.png")}
	got := concatList(frames, 2.5)
	want := "file '" + filepath.ToSlash(frames[0]) + "'\nduration 2.5\n" +
		"file '" + strings.ReplaceAll(filepath.ToSlash(frames[1]), "'", `'\''`) + "'\nduration 2.5\n" +
		"file '" + strings.ReplaceAll(filepath.ToSlash(frames[1]), "'", `'\''`) + "'\n"
	if got != want {
		t.Fatalf("concat list mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestComposeBuildsSilentCommand(t *testing.T) {
	dir := t.TempDir()
	var calls [][]string
	var mu sync.Mutex
	var list string
	runner := RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		raw, err := os.ReadFile(args[slices.Index(args, "-i")+1])
		if err != nil {
			t.Fatalf("concat list not readable during run: %v", err)
		}
		list = string(raw)
		return fakeFFmpeg(&calls, &mu).Run(ctx, name, args...)
	})
	c := NewSlideshowComposer(ComposerOptions{FFmpegPath: "/usr/bin/ffmpeg", FPS: 10, Width: 640, Height: 360, Bitrate: "550k"}, runner)
	out := filepath.Join(dir, "storyboard_v1.mp4")
	frames := []string{"f1.png", "f2.png", "f3.png", "f4.png", "f5.png"}

	if err := c.Compose(context.Background(), frames, out, 5); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", len(calls))
	}
	args := calls[0]
	if args[0] != "/usr/bin/ffmpeg" || args[len(args)-1] != out {
		t.Fatalf("unexpected command %v", args)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"-f concat", "-r 10", "-s 640x360", "-b:v 550k", "-pix_fmt yuv420p", "-t 5", "-an"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %s", want, joined)
		}
	}
	if strings.Count(list, "duration 1\n") != 5 {
		t.Fatalf("expected five one-second entries:\n%s", list)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".concat-*"))
	if len(leftovers) != 0 {
		t.Fatalf("concat list not cleaned up: %v", leftovers)
	}
}

func TestComposeWithAudioMixesTracks(t *testing.T) {
	dir := t.TempDir()
	var calls [][]string
	var mu sync.Mutex
	c := NewSlideshowComposer(ComposerOptions{}, fakeFFmpeg(&calls, &mu))
	mix := AudioMix{Voice: "voice.wav", BGM: "bgm.wav", VoiceVolume: 1, BGMVolume: 0.2}

	if err := c.ComposeWithAudio(context.Background(), []string{"a.png"}, filepath.Join(dir, "out.mp4"), 5, mix); err != nil {
		t.Fatalf("ComposeWithAudio: %v", err)
	}
	joined := strings.Join(calls[0], " ")
	if !strings.Contains(joined, "-i voice.wav -i bgm.wav") || !strings.Contains(joined, "volume=0.2") {
		t.Fatalf("audio inputs missing: %s", joined)
	}
	if slices.Contains(calls[0], "-an") {
		t.Fatalf("audio mix must not disable audio: %s", joined)
	}
}

func TestComposeErrors(t *testing.T) {
	dir := t.TempDir()
	failing := RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Invalid data found"), errors.New("exit status 1")
	})
	silent := RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, nil
	})
	cases := []struct {
		name   string
		runner Runner
		frames []string
		secs   float64
		want   string
	}{
		{"no frames", silent, nil, 5, "at least one frame"},
		{"zero duration", silent, []string{"a.png"}, 0, "duration must be positive"},
		{"ffmpeg failure", failing, []string{"a.png"}, 5, "Invalid data found"},
		{"missing output", silent, []string{"a.png"}, 5, "output missing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewSlideshowComposer(ComposerOptions{}, tc.runner)
			err := c.Compose(context.Background(), tc.frames, filepath.Join(dir, tc.name+".mp4"), tc.secs)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
