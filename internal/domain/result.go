package domain

import "fmt"

// PromptVersion identifies the prompt set used for storyboard generation.
const PromptVersion = "storyboard_dynamic_scene_v1_ko_realistic_v2"

// Result is the terminal, persisted document of a job. It is written before
// the job record turns terminal, on success and on failure alike.
type Result struct {
	JobID          string             `json:"job_id"`
	Status         JobStatus          `json:"status"`
	PipelineMode   Mode               `json:"pipeline_mode"`
	OutputMode     Mode               `json:"output_mode"`
	QualityScores  map[string]float64 `json:"quality_scores"`
	Files          map[string]string  `json:"files"`
	Attempts       Attempts           `json:"attempts"`
	FallbackReason *string            `json:"fallback_reason"`
	ProviderTrace  ProviderTrace      `json:"provider_trace"`

	PromptVersion          string            `json:"prompt_version"`
	FrameCount             int               `json:"frame_count"`
	StyleBibleApplied      bool              `json:"style_bible_applied"`
	ScriptGroundingApplied bool              `json:"script_grounding_applied"`
	SceneSources           []string          `json:"scene_sources"`
	StoryboardScenePlan    []SceneSummary    `json:"storyboard_scene_plan"`
	ImageModel             string            `json:"image_model"`
	ScenePlannerModel      string            `json:"scene_planner_model"`
	CharacterBible         *CharacterBible   `json:"character_bible,omitempty"`
	CreatorReference       *CreatorReference `json:"creator_reference,omitempty"`
	ScenePlanPath          string            `json:"scene_plan_path"`
	CharacterAnchorPath    string            `json:"character_anchor_path"`
	TextGuardEnabled       bool              `json:"text_guard_enabled"`
	TextGuardSummary       TextGuardSummary  `json:"text_guard_summary"`
	VeoTrace               VeoTrace          `json:"veo_trace"`
	PartialResult          bool              `json:"partial_result"`
	ErrorMessage           *string           `json:"error_message"`
}

// Attempts counts generic retry activity per job.
type Attempts struct {
	ImageAttempts int  `json:"image_attempts"`
	VideoAttempts int  `json:"video_attempts"`
	FallbackUsed  bool `json:"fallback_used"`
}

// ProviderTrace records every call made to external collaborators.
type ProviderTrace struct {
	ImageCalls             int      `json:"image_calls"`
	VideoCalled            bool     `json:"video_called"`
	TTSCalled              bool     `json:"tts_called"`
	ScenePlannerCalled     bool     `json:"scene_planner_called"`
	CreatorReferenceCalled bool     `json:"creator_reference_called"`
	CreatorReferenceError  string   `json:"creator_reference_error,omitempty"`
	BackoffRetries         int      `json:"backoff_retries"`
	TextGuardRetries       int      `json:"text_guard_retries"`
	ProviderRetries        int      `json:"provider_retries"`
	BlockedFrames          []string `json:"blocked_frames"`
}

// TextGuardSummary reports the on-screen text quality gate activity.
type TextGuardSummary struct {
	Enabled           bool           `json:"enabled"`
	UnavailableReason string         `json:"unavailable_reason,omitempty"`
	MaxCharsFrame     int            `json:"max_chars_frame"`
	MaxCharsThumbnail int            `json:"max_chars_thumbnail"`
	Retries           int            `json:"retries"`
	CharCounts        map[string]int `json:"char_counts"`
	Blocked           []string       `json:"blocked"`
}

// VeoTrace reports the long-form video stage.
type VeoTrace struct {
	Called      bool   `json:"called"`
	Success     bool   `json:"success"`
	Attempts    int    `json:"attempts"`
	Model       string `json:"model,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
	SeedFrame   string `json:"seed_frame,omitempty"`
	Error       string `json:"error,omitempty"`
}

// File keys used in Result.Files.
const (
	FileThumbnail       = "thumbnail_path"
	FileCharacterAnchor = "character_anchor_path"
	FileStoryboardVideo = "storyboard_video_path"
	FileVideo           = "video_path"
	FileVeoVideo        = "veo_video_path"
	FileResult          = "result_path"
	FileScenePlan       = "scene_plan_path"
	FileStrategyPacket  = "strategy_packet_path"
	FileProductionNotes = "production_notes_path"
	FileVoiceover       = "voiceover_path"
	FileBGM             = "bgm_path"
)

// FramePathKey is the Files key of the storyboard frame at 1-based index i.
func FramePathKey(i int) string {
	return fmt.Sprintf("frame_%02d_path", i)
}
