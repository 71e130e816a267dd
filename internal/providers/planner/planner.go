// Package planner turns a brief into a validated storyboard scene plan and
// resolves an optional creator style reference.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/infra"
	"assetgen/internal/providers/genai"
)

// TextModel is the slice of the genai client the planners need.
type TextModel interface {
	GenerateText(ctx context.Context, req genai.TextRequest) (string, error)
}

// ScenePlanner produces exactly domain.FrameCount scenes for a brief.
type ScenePlanner interface {
	Plan(ctx context.Context, brief jsoncfg.Brief, ref domain.CreatorReference) (domain.ScenePlan, error)
}

// GeminiOptions configures GeminiPlanner.
type GeminiOptions struct {
	Model       string
	MaxAttempts int
	Logger      *infra.Logger
}

// GeminiPlanner asks a text model for a JSON scene plan and validates it.
type GeminiPlanner struct {
	text   TextModel
	opts   GeminiOptions
	logger *infra.Logger
}

func NewGeminiPlanner(text TextModel, opts GeminiOptions) *GeminiPlanner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &GeminiPlanner{text: text, opts: opts, logger: opts.Logger}
}

// Model reports the configured model identifier.
func (p *GeminiPlanner) Model() string {
	return p.opts.Model
}

func (p *GeminiPlanner) Plan(ctx context.Context, brief jsoncfg.Brief, ref domain.CreatorReference) (domain.ScenePlan, error) {
	prompt := buildScenePlanPrompt(brief, ref)
	var lastErr error
	for attempt := 0; attempt < p.opts.MaxAttempts; attempt++ {
		temperature := float32(0.5)
		if attempt > 0 {
			temperature = 0.2
		}
		raw, err := p.text.GenerateText(ctx, genai.TextRequest{
			Model:       p.opts.Model,
			Prompt:      prompt,
			Temperature: temperature,
			JSON:        true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return domain.ScenePlan{}, ctx.Err()
			}
			lastErr = err
			p.logAttempt(attempt, err)
			continue
		}
		plan, err := parseModelPayload[domain.ScenePlan](raw)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", domain.ErrInvalidScenePlan, err)
			p.logAttempt(attempt, lastErr)
			continue
		}
		if err := plan.Validate(domain.FrameCount); err != nil {
			lastErr = err
			p.logAttempt(attempt, err)
			continue
		}
		return plan, nil
	}
	return domain.ScenePlan{}, fmt.Errorf("scene planner failed: %w", lastErr)
}

func (p *GeminiPlanner) logAttempt(attempt int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Warn().Err(err).Int("attempt", attempt+1).Str("model", p.opts.Model).Msg("scene plan attempt failed")
}

type plannerInput struct {
	Meta struct {
		Title          string `json:"title"`
		Language       string `json:"language"`
		TargetAudience string `json:"target_audience"`
		Description    string `json:"description"`
	} `json:"meta"`
	Rationale struct {
		Observations []string `json:"observations"`
		Inference    []string `json:"inference"`
		Conclusion   string   `json:"conclusion"`
	} `json:"rationale"`
	Script struct {
		Hook    string              `json:"hook_0_15s"`
		Body    []map[string]string `json:"body_15_150s"`
		Closing string              `json:"closing_150_180s"`
	} `json:"script"`
	Assets struct {
		OnScreenBullets []string `json:"on_screen_bullets"`
	} `json:"assets"`
	SceneSources     []string                 `json:"scene_sources"`
	CreatorReference *domain.CreatorReference `json:"creator_reference"`
}

func buildScenePlanPrompt(brief jsoncfg.Brief, ref domain.CreatorReference) string {
	var in plannerInput
	in.Meta.Title = brief.Script.Title
	in.Meta.Language = brief.Meta.Language
	in.Meta.TargetAudience = brief.Meta.TargetAudience
	in.Meta.Description = brief.Meta.Description
	in.Rationale.Observations = brief.Rationale.Logic.Observations
	in.Rationale.Inference = brief.Rationale.Logic.Inference
	in.Rationale.Conclusion = brief.Rationale.Logic.Conclusion
	in.Script.Hook = brief.Script.Hook
	for _, line := range brief.Script.Body {
		in.Script.Body = append(in.Script.Body, map[string]string{"t": line.T, "line": line.Line})
	}
	in.Script.Closing = brief.Script.Closing
	in.Assets.OnScreenBullets = brief.Assets.OnScreenBullets
	in.SceneSources = domain.SceneSources
	if !ref.Empty() {
		in.CreatorReference = &ref
	}
	payload, _ := json.MarshalIndent(in, "", "  ")

	sb := &strings.Builder{}
	sb.WriteString("너는 영상 스토리보드 씬 플래너다. 반드시 한국어로 응답한다.\n")
	sb.WriteString("설명문 없이 JSON 객체만 출력한다.\n")
	fmt.Fprintf(sb, "아래 입력 대본을 바탕으로 %d개 장면을 동적으로 설계하라.\n", domain.FrameCount)
	sb.WriteString("중요 규칙:\n")
	fmt.Fprintf(sb, "1) scene_plan은 정확히 %d개.\n", domain.FrameCount)
	fmt.Fprintf(sb, "2) source_span은 순서대로 %s.\n", strings.Join(domain.SceneSources, ", "))
	sb.WriteString("3) 모든 장면은 동일 인물 1명을 유지할 수 있도록 character_bible을 구체화.\n")
	sb.WriteString("4) 프레임은 상황 재연 중심(주체/행동/배경/소품/카메라)으로 작성.\n")
	sb.WriteString("5) left_props는 실사형 사물 상징 2~3개.\n")
	sb.WriteString("6) 캐릭터는 실사풍으로 설계하고, 대본 주제와 관련된 유튜버 인상/분위기를 반영.\n")
	sb.WriteString("7) 텍스트는 소량 허용: 장면당 한국어 1~3단어, 최대 12자 수준. 영문 장문 금지.\n")
	sb.WriteString("JSON 스키마:\n")
	sb.WriteString(`{"character_bible":{"identity":"...","age_range":"...","face_shape":"...","hair_style":"...","outfit":"...","outfit_colors":["..."],"expression_range":"...","reference_creator_style":"...","forbidden_changes":["..."]},`)
	sb.WriteString(`"consistency_rules":["..."],`)
	sb.WriteString(`"thumbnail_plan":{"intent":"...","subject":"...","action":"...","left_props":["..."],"camera_shot":"...","camera_angle":"...","tension_point":"..."},`)
	sb.WriteString(`"scene_plan":[{"scene_no":1,"source_span":"hook","intent":"...","subject":"...","action":"...","location_context":"...","left_props":["..."],"camera_shot":"...","camera_angle":"...","foreground_midground_background":"..."}]}`)
	sb.WriteString("\n입력:\n")
	sb.Write(payload)
	return sb.String()
}
