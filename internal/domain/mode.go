package domain

import (
	"fmt"
	"strings"
)

// Mode selects which stage sequence a job runs.
type Mode string

const (
	ModeStoryboard        Mode = "storyboard"
	ModeStoryboardToVideo Mode = "storyboard_to_video"

	// Legacy modes from the first generation of the service.
	ModeVideo           Mode = "video"
	ModeImageVoiceMusic Mode = "image_voice_music"

	// ModeUnknown is only reported as the output mode of a failed job.
	ModeUnknown Mode = "unknown"
)

// ParseMode maps free-form input onto a supported mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeStoryboard:
		return ModeStoryboard, nil
	case ModeStoryboardToVideo:
		return ModeStoryboardToVideo, nil
	case ModeVideo:
		return ModeVideo, nil
	case ModeImageVoiceMusic:
		return ModeImageVoiceMusic, nil
	default:
		return "", fmt.Errorf("%w: unsupported mode %q", ErrInvalidBrief, raw)
	}
}

// Valid reports whether m names a runnable mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeStoryboard, ModeStoryboardToVideo, ModeVideo, ModeImageVoiceMusic:
		return true
	default:
		return false
	}
}

// Legacy reports whether m belongs to the first-generation workflow that has
// no scene planning stage.
func (m Mode) Legacy() bool {
	return m == ModeVideo || m == ModeImageVoiceMusic
}

// WantsLongFormVideo reports whether the storyboard is followed by a video
// generation call whose failure is fatal to the job.
func (m Mode) WantsLongFormVideo() bool {
	return m == ModeStoryboardToVideo
}
