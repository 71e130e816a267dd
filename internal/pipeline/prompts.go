package pipeline

import (
	"fmt"
	"strings"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
)

const styleBible = `[시리즈 스타일 바이블]
5장 이미지가 동일한 아트 디렉션을 유지한다.
실사 기반 시네마틱 스타일, 인물 피부/의복/배경 질감이 사진처럼 자연스럽게 보이도록 구성.
배경 그래픽도 평면 일러스트가 아니라 실사형 3D 오브젝트/실제 공간 조명처럼 표현.
현대 뉴스룸/다큐 톤, 차분하지만 진지하고 긴장감 있는 분위기.
16:9 (640x360), 우측 메인 주체 + 좌측 보조 상징 구성 고정.
딥 네이비 + 쿨 그레이 + 뮤트 틸 + 소량의 웜 앰버.
은은한 림라이트, 부드러운 그림자, 또렷한 엣지.
금지: 국기/국장/군표식/실제지도/랜드마크/로고/워터마크.`

const (
	retryDirective1 = "재시도규칙1: 장면 핵심행동과 인물 유사도를 더 명확히, 텍스트는 1~3단어 한국어 라벨만 최소 허용."
	retryDirective2 = "재시도규칙2: 소품 수를 2개 이하로 축소하고 카메라를 단순화해 이탈을 줄인다."
)

// ProductionNotes is the checklist stored next to every job's artifacts.
const ProductionNotes = "제작 체크리스트\n" +
	"1) 5개 장면이 source_span 순서를 따르는지 확인\n" +
	"2) 캐릭터 외형(헤어/의상/얼굴형)이 프레임 간 동일한지 확인\n" +
	"3) 텍스트/로고/국기/지도/랜드마크 금지 준수 확인\n" +
	"4) 썸네일 CTR 톤(긴장감/명암대비/시선유도) 확인\n"

// StyleBible returns the art direction block appended to every storyboard prompt.
func StyleBible() string { return styleBible }

// RetryPrompt escalates base for the given 0-based attempt. There are three
// fixed tiers: verbatim, sharpen fidelity, simplify framing.
func RetryPrompt(base string, attempt int) string {
	switch {
	case attempt <= 0:
		return base
	case attempt == 1:
		return base + "\n" + retryDirective1
	default:
		return base + "\n" + retryDirective2
	}
}

func characterBlock(cb domain.CharacterBible) string {
	lines := []string{
		"[캐릭터 바이블]",
		"정체성: " + or(cb.Identity, "동일 인물 1인 진행자"),
		"연령대: " + or(cb.AgeRange, "20대 후반~30대"),
		"얼굴형: " + or(cb.FaceShape, "중간형 얼굴"),
		"헤어: " + or(cb.HairStyle, "짧고 단정한 헤어"),
		"의상: " + or(cb.Outfit, "단색 재킷 + 무지 상의"),
		"의상색: " + or(strings.Join(cb.OutfitColors, ", "), "네이비, 그레이"),
		"표정범위: " + or(cb.ExpressionRange, "침착-긴장"),
		"참조 유튜버 스타일: " + or(cb.ReferenceCreatorStyle, "대본 주제와 관련된 유튜버의 분위기/인상/실루엣을 참고하되 동일 복제는 피함"),
		"변경금지: " + or(strings.Join(cb.ForbiddenChanges, ", "), "헤어/의상/얼굴형/연령대 변경 금지"),
		"규칙: 모든 프레임에서 동일 인물 외형을 절대 변경하지 않는다.",
		"규칙: 관련 유튜버와 유사한 분위기/체형/스타일을 유지하되 초상은 과도하게 복제하지 않는다.",
	}
	return strings.Join(lines, "\n")
}

// AnchorPrompt builds the prompt of the reference image every frame is
// conditioned on.
func AnchorPrompt(plan domain.ScenePlan) string {
	return strings.Join([]string{
		"캐릭터 앵커 이미지 생성.",
		"목표: 이후 모든 프레임에서 참조할 기준 인물 1명을 정면 기준으로 선명하게 생성.",
		characterBlock(plan.CharacterBible),
		"구도: 인물은 우측 중앙, 좌측에는 텍스트 없는 추상 상징 2개.",
		"카메라: 미디엄 클로즈업, 아이레벨.",
		"텍스트규칙: 필요한 경우에만 1~3단어의 짧은 한국어 라벨을 아주 작게 허용.",
		"텍스트규칙: 긴 문장/영문 문장/큰 타이포 렌더링 금지.",
		styleBible,
	}, "\n")
}

// ScenePrompt grounds one storyboard frame on its planned scene.
func ScenePrompt(scene domain.Scene, plan domain.ScenePlan) string {
	return strings.Join([]string{
		fmt.Sprintf("장면번호: %d", scene.SceneNo),
		"소스구간: " + scene.SourceSpan,
		"장면목표: " + scene.Intent,
		"주체: " + scene.Subject,
		"핵심행동: " + scene.Action,
		"배경맥락: " + scene.LocationContext,
		"좌측소품: " + strings.Join(firstN(scene.LeftProps, 3), ", "),
		fmt.Sprintf("카메라지시: 샷=%s, 앵글=%s", scene.CameraShot, scene.CameraAngle),
		"전중후경: " + scene.DepthLayout,
		characterBlock(plan.CharacterBible),
		"[일관성 규칙] " + strings.Join(plan.ConsistencyRules, ", "),
		"프레임 생성 규칙: 설명문이 아니라 실제 상황을 한 컷으로 재연한다.",
		"텍스트규칙: 설명을 위해 아주 짧은 한국어 텍스트(최대 1~3단어, 한 장면 최대 12자 내)를 소량 허용.",
		"텍스트규칙: 영문 문장/긴 문장/큰 자막/과도한 타이포는 금지.",
		"금지규칙: 국기/국장/군표식/실지도/랜드마크/브랜드 로고/워터마크 금지.",
		"이탈금지: 장면목표 외 사건/인물/사물 추가 금지.",
		styleBible,
	}, "\n")
}

// ThumbnailPrompt builds the CTR-oriented thumbnail prompt.
func ThumbnailPrompt(brief jsoncfg.Brief, plan domain.ScenePlan) string {
	tp := plan.ThumbnailPlan
	return strings.Join([]string{
		"썸네일 생성 지시",
		"주제: " + brief.Script.Title,
		"장면목표: " + or(tp.Intent, brief.Rationale.Logic.Conclusion),
		"주체: " + or(tp.Subject, "진행자 1인"),
		"핵심행동: " + or(tp.Action, "결정 직전의 강한 포즈"),
		"긴장포인트: " + or(tp.TensionPoint, "충돌 직전 분위기"),
		"좌측소품: " + strings.Join(firstN(tp.LeftProps, 3), ", "),
		fmt.Sprintf("카메라: 샷=%s, 앵글=%s", or(tp.CameraShot, "클로즈업"), or(tp.CameraAngle, "아이레벨")),
		characterBlock(plan.CharacterBible),
		"목표: CTR 중심의 고대비/강한 시선 유도/긴장감.",
		"텍스트규칙: 설명용 짧은 한국어 텍스트 1줄(최대 3단어, 최대 12자)만 허용.",
		"텍스트규칙: 영문/긴 문장/과도한 텍스트 노출 금지.",
		"금지규칙: 로고/워터마크/국기/국장/군표식/실지도/랜드마크 금지.",
		styleBible,
	}, "\n")
}

// VeoPrompt summarizes the storyboard for the long-form video call.
func VeoPrompt(brief jsoncfg.Brief, plan domain.ScenePlan) string {
	return fmt.Sprintf(
		"한국어 다큐/뉴스룸 스타일 5초 영상. 주제: %s. 핵심 흐름: %s. "+
			"동일 인물 유지, 텍스트 오버레이 없음, 하이 콘트라스트, 차분하지만 긴장감 있는 톤.",
		brief.Script.Title, strings.Join(firstN(plan.Intents(), domain.FrameCount), " / "),
	)
}

func legacyThumbnailPrompt(brief jsoncfg.Brief) string {
	return fmt.Sprintf("YouTube thumbnail for topic: %s. Use bold readable Korean text region with tone: %s.",
		brief.Script.Title, brief.Meta.Style)
}

func legacyVideoPrompt(brief jsoncfg.Brief) string {
	return fmt.Sprintf("Create a %d-second trailer style video in Korean context. Hook: %s Core: %s "+
		"High clarity, editorial explainer style, no text artifacts.",
		brief.Options.MaxVideoSeconds, brief.Script.Hook, brief.Rationale.Logic.Conclusion)
}

// legacyFramePrompts cycles the on-screen bullets over n editorial frames.
func legacyFramePrompts(brief jsoncfg.Brief, n int) []string {
	bullets := brief.Assets.OnScreenBullets
	out := make([]string, n)
	for i := range out {
		bullet := brief.Rationale.Logic.Conclusion
		if len(bullets) > 0 {
			bullet = bullets[i%len(bullets)]
		}
		out[i] = fmt.Sprintf("Editorial frame %d for %s. Bullet: %s", i+1, brief.Script.Title, bullet)
	}
	return out
}

func or(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
