package domain

import (
	"errors"
	"testing"
	"time"
)

func TestJobPatchApplyProgressNeverRegresses(t *testing.T) {
	rec := JobRecord{JobID: "j", Status: JobStatusRunning, Progress: 40}
	JobPatch{Progress: Ptr(15), Stage: Ptr(StageThumbnail)}.Apply(&rec, time.Now())
	if rec.Progress != 40 {
		t.Fatalf("Progress = %d, want 40", rec.Progress)
	}
	if rec.Stage != StageThumbnail {
		t.Fatalf("Stage = %q, want %q", rec.Stage, StageThumbnail)
	}
	JobPatch{Progress: Ptr(250)}.Apply(&rec, time.Now())
	if rec.Progress != 100 {
		t.Fatalf("Progress clamp = %d, want 100", rec.Progress)
	}
}

func TestJobPatchApplyTerminalIsNotReopened(t *testing.T) {
	rec := JobRecord{JobID: "j", Status: JobStatusFailed}
	JobPatch{Status: Ptr(JobStatusRunning)}.Apply(&rec, time.Now())
	if rec.Status != JobStatusFailed {
		t.Fatalf("Status = %q, want failed", rec.Status)
	}
}

func TestJobRecordCloneDoesNotAlias(t *testing.T) {
	rec := JobRecord{VideoPath: Ptr("/a.mp4")}
	clone := rec.Clone()
	*clone.VideoPath = "/b.mp4"
	if *rec.VideoPath != "/a.mp4" {
		t.Fatalf("clone aliases original: %q", *rec.VideoPath)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeStoryboard},
		{in: " Storyboard ", want: ModeStoryboard},
		{in: "storyboard_to_video", want: ModeStoryboardToVideo},
		{in: "image_voice_music", want: ModeImageVoiceMusic},
		{in: "video", want: ModeVideo},
		{in: "unknown", wantErr: true},
		{in: "gif", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMode(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidBrief) {
					t.Fatalf("ParseMode(%q) error = %v, want ErrInvalidBrief", tc.in, err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("ParseMode(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(Transient("image", errors.New("429"))) != KindTransient {
		t.Fatal("expected transient kind")
	}
	if KindOf(errors.New("plain")) != KindPermanent {
		t.Fatal("plain errors should be permanent")
	}
	if !errors.Is(Permanent("image", errors.New("bad")), ErrProviderFailure) {
		t.Fatal("provider errors should match ErrProviderFailure")
	}
}
