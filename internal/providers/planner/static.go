package planner

import (
	"context"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
)

// StaticPlanner derives a deterministic plan straight from the script. It is
// used when no text model is configured.
type StaticPlanner struct{}

func (StaticPlanner) Model() string { return "static" }

func (StaticPlanner) Plan(ctx context.Context, brief jsoncfg.Brief, ref domain.CreatorReference) (domain.ScenePlan, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScenePlan{}, err
	}
	body := func(i int) string {
		if i < len(brief.Script.Body) {
			return brief.Script.Body[i].Line
		}
		return ""
	}
	conclusion := brief.Rationale.Logic.Conclusion
	lines := []string{
		brief.Script.Hook,
		body(0),
		body(1),
		coalesce(body(2), conclusion),
		coalesce(brief.Script.Closing+" "+conclusion, conclusion),
	}
	shots := []string{"미디엄 샷", "클로즈업", "와이드 샷", "오버 더 숄더", "미디엄 클로즈업"}
	angles := []string{"아이 레벨", "약간 하이 앵글", "아이 레벨", "로우 앵글", "아이 레벨"}
	bullets := brief.Assets.OnScreenBullets

	plan := domain.ScenePlan{
		CharacterBible: domain.CharacterBible{
			Identity:              "30대 한국인 해설자",
			AgeRange:              "30-39",
			FaceShape:             "갸름한 계란형",
			HairStyle:             "단정한 짧은 머리",
			Outfit:                "네이비 재킷과 흰 셔츠",
			OutfitColors:          []string{"navy", "white"},
			ExpressionRange:       "차분함에서 진지함까지",
			ReferenceCreatorStyle: coalesce(ref.ReferenceCreatorStyle, "뉴스룸 해설형"),
			ForbiddenChanges:      []string{"헤어스타일 변경 금지", "의상 변경 금지"},
		},
		ConsistencyRules: []string{"동일 인물 1명 유지", "의상과 헤어 고정", "실사 질감 유지"},
		ThumbnailPlan: domain.ThumbnailPlan{
			Intent:       brief.Script.Title,
			Subject:      "해설자",
			Action:       "정면을 응시하며 핵심을 제시",
			LeftProps:    propsFor(bullets, 0),
			CameraShot:   "미디엄 클로즈업",
			CameraAngle:  "아이 레벨",
			TensionPoint: brief.Script.Hook,
		},
	}
	for i := 0; i < domain.FrameCount; i++ {
		plan.Scenes = append(plan.Scenes, domain.Scene{
			SceneNo:         i + 1,
			SourceSpan:      domain.SceneSources[i],
			Intent:          coalesce(lines[i], brief.Script.Title),
			Subject:         "해설자",
			Action:          "대본 내용을 상황으로 재연",
			LocationContext: "현대적인 스튜디오",
			LeftProps:       propsFor(bullets, i),
			CameraShot:      shots[i],
			CameraAngle:     angles[i],
			DepthLayout:     "전경 소품 / 중경 인물 / 배경 스튜디오",
		})
	}
	if err := plan.Validate(domain.FrameCount); err != nil {
		return domain.ScenePlan{}, err
	}
	return plan, nil
}

func propsFor(bullets []string, i int) []string {
	if len(bullets) == 0 {
		return []string{"노트북", "서류"}
	}
	return []string{bullets[i%len(bullets)], "노트북"}
}

var _ ScenePlanner = StaticPlanner{}
var _ ScenePlanner = (*GeminiPlanner)(nil)
