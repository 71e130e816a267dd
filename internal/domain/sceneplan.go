package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FrameCount is the fixed number of storyboard scenes per job.
const FrameCount = 5

// SceneSources is the source-span order every scene plan follows.
var SceneSources = []string{"hook", "body_0", "body_1", "body_2_or_conclusion", "closing+conclusion"}

// CharacterBible is the stable visual identity enforced across frames.
type CharacterBible struct {
	Identity              string   `json:"identity"`
	AgeRange              string   `json:"age_range"`
	FaceShape             string   `json:"face_shape"`
	HairStyle             string   `json:"hair_style"`
	Outfit                string   `json:"outfit"`
	OutfitColors          []string `json:"outfit_colors"`
	ExpressionRange       string   `json:"expression_range"`
	ReferenceCreatorStyle string   `json:"reference_creator_style"`
	ForbiddenChanges      []string `json:"forbidden_changes"`
}

// ThumbnailPlan describes the thumbnail composition.
type ThumbnailPlan struct {
	Intent       string   `json:"intent"`
	Subject      string   `json:"subject"`
	Action       string   `json:"action"`
	LeftProps    []string `json:"left_props"`
	CameraShot   string   `json:"camera_shot"`
	CameraAngle  string   `json:"camera_angle"`
	TensionPoint string   `json:"tension_point"`
}

// Scene is one storyboard frame description.
type Scene struct {
	SceneNo         int      `json:"scene_no"`
	SourceSpan      string   `json:"source_span"`
	Intent          string   `json:"intent"`
	Subject         string   `json:"subject"`
	Action          string   `json:"action"`
	LocationContext string   `json:"location_context"`
	LeftProps       []string `json:"left_props"`
	CameraShot      string   `json:"camera_shot"`
	CameraAngle     string   `json:"camera_angle"`
	DepthLayout     string   `json:"foreground_midground_background"`
}

// ScenePlan is the validated storyboard produced by the scene planner.
type ScenePlan struct {
	CharacterBible   CharacterBible `json:"character_bible"`
	ConsistencyRules []string       `json:"consistency_rules"`
	ThumbnailPlan    ThumbnailPlan  `json:"thumbnail_plan"`
	Scenes           []Scene        `json:"scene_plan"`
}

// maxLeftProps caps the number of symbolic props per scene.
const maxLeftProps = 3

// Validate enforces the fixed cardinality and normalizes scene numbering and
// prop counts. It must pass before any frame generation begins.
func (p *ScenePlan) Validate(n int) error {
	if p == nil {
		return fmt.Errorf("%w: plan is nil", ErrInvalidScenePlan)
	}
	if len(p.Scenes) != n {
		return fmt.Errorf("%w: scene_plan must have exactly %d scenes, got %d", ErrInvalidScenePlan, n, len(p.Scenes))
	}
	for i := range p.Scenes {
		s := &p.Scenes[i]
		if s.SceneNo <= 0 {
			s.SceneNo = i + 1
		}
		if len(s.LeftProps) > maxLeftProps {
			s.LeftProps = s.LeftProps[:maxLeftProps]
		}
		if strings.TrimSpace(s.Intent) == "" && strings.TrimSpace(s.Action) == "" {
			return fmt.Errorf("%w: scene %d has neither intent nor action", ErrInvalidScenePlan, s.SceneNo)
		}
	}
	if len(p.ThumbnailPlan.LeftProps) > maxLeftProps {
		p.ThumbnailPlan.LeftProps = p.ThumbnailPlan.LeftProps[:maxLeftProps]
	}
	return nil
}

// Sources returns the source span of every scene in order.
func (p ScenePlan) Sources() []string {
	out := make([]string, 0, len(p.Scenes))
	for _, s := range p.Scenes {
		out = append(out, s.SourceSpan)
	}
	return out
}

// Intents returns the intent of every scene in order.
func (p ScenePlan) Intents() []string {
	out := make([]string, 0, len(p.Scenes))
	for _, s := range p.Scenes {
		out = append(out, s.Intent)
	}
	return out
}

// Summary is the compact per-scene view persisted in the result document.
func (p ScenePlan) Summary() []SceneSummary {
	out := make([]SceneSummary, 0, len(p.Scenes))
	for _, s := range p.Scenes {
		out = append(out, SceneSummary{
			SceneNo:    strconv.Itoa(s.SceneNo),
			SourceSpan: s.SourceSpan,
			Intent:     s.Intent,
			Action:     s.Action,
			CameraShot: s.CameraShot,
			LeftProps:  append([]string(nil), s.LeftProps...),
		})
	}
	return out
}

// SceneSummary is a serialized scene in the result document.
type SceneSummary struct {
	SceneNo    string   `json:"scene_no"`
	SourceSpan string   `json:"source_span"`
	Intent     string   `json:"intent"`
	Action     string   `json:"action"`
	CameraShot string   `json:"camera_shot"`
	LeftProps  []string `json:"left_props"`
}

// CreatorReference biases visual style toward a similar public creator.
// A zero value is the degraded reference used when resolution fails.
type CreatorReference struct {
	CreatorName           string           `json:"creator_name"`
	Confidence            float64          `json:"confidence"`
	ReferenceCreatorStyle string           `json:"reference_creator_style"`
	VisualTraits          []string         `json:"visual_traits"`
	StylingNotes          []string         `json:"styling_notes"`
	SearchEvidence        []SearchEvidence `json:"search_evidence"`
	SearchUsed            bool             `json:"search_used"`
}

// SearchEvidence is one citation backing a creator reference.
type SearchEvidence struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Note  string `json:"note"`
}

// Empty reports whether the reference carries no usable signal.
func (c CreatorReference) Empty() bool {
	return strings.TrimSpace(c.CreatorName) == "" && strings.TrimSpace(c.ReferenceCreatorStyle) == "" && len(c.VisualTraits) == 0
}
