package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Stage labels are advisory and only used for observability.
const (
	StageQueued     = "queued"
	StagePlanning   = "planning"
	StageThumbnail  = "thumbnail"
	StageAnchor     = "anchor"
	StageStoryboard = "storyboard"
	StageVideo      = "video_generation"
	StageVeo        = "veo"
	StageVoice      = "voice"
	StageFinalize   = "finalize"
	StageDone       = "done"
	StageFailed     = "failed"
)

// JobRecord is the mutable status of one submitted brief.
type JobRecord struct {
	JobID        string    `json:"job_id"`
	Status       JobStatus `json:"status"`
	Stage        string    `json:"stage"`
	Progress     int       `json:"progress"`
	PipelineMode Mode      `json:"pipeline_mode"`
	OutputMode   Mode      `json:"output_mode"`
	VideoPath    *string   `json:"video_path,omitempty"`
	AltVideoPath *string   `json:"alt_video_path,omitempty"`
	ResultPath   string    `json:"result_path"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never alias pointer fields.
func (r JobRecord) Clone() JobRecord {
	out := r
	out.VideoPath = cloneString(r.VideoPath)
	out.AltVideoPath = cloneString(r.AltVideoPath)
	out.ErrorMessage = cloneString(r.ErrorMessage)
	return out
}

// JobPatch is a partial update. Nil fields are left untouched.
type JobPatch struct {
	Status       *JobStatus
	Stage        *string
	Progress     *int
	PipelineMode *Mode
	OutputMode   *Mode
	VideoPath    *string
	AltVideoPath *string
	ErrorMessage *string
}

// Apply mutates r with the non-nil fields of p. Progress never regresses and a
// terminal status is never reopened.
func (p JobPatch) Apply(r *JobRecord, now time.Time) {
	if p.Status != nil && !r.Status.IsTerminal() {
		r.Status = *p.Status
	}
	if p.Stage != nil {
		r.Stage = *p.Stage
	}
	if p.Progress != nil {
		progress := clampProgress(*p.Progress)
		if progress > r.Progress {
			r.Progress = progress
		}
	}
	if p.PipelineMode != nil {
		r.PipelineMode = *p.PipelineMode
	}
	if p.OutputMode != nil {
		r.OutputMode = *p.OutputMode
	}
	if p.VideoPath != nil {
		r.VideoPath = cloneString(p.VideoPath)
	}
	if p.AltVideoPath != nil {
		r.AltVideoPath = cloneString(p.AltVideoPath)
	}
	if p.ErrorMessage != nil {
		r.ErrorMessage = cloneString(p.ErrorMessage)
	}
	r.UpdatedAt = now
}

func clampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
