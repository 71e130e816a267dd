package planner

import (
	"context"
	"fmt"
	"strings"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/providers/genai"
)

// CreatorResolver finds a public creator whose look can bias the character
// design. Resolution is best effort: an empty reference is a valid answer.
type CreatorResolver interface {
	Resolve(ctx context.Context, brief jsoncfg.Brief) (domain.CreatorReference, error)
}

// GeminiCreatorResolver queries a text model, grounded with Google Search
// when enabled, and retries once without the tool.
type GeminiCreatorResolver struct {
	text   TextModel
	model  string
	search bool
}

func NewGeminiCreatorResolver(text TextModel, model string, search bool) *GeminiCreatorResolver {
	return &GeminiCreatorResolver{text: text, model: model, search: search}
}

func (r *GeminiCreatorResolver) Resolve(ctx context.Context, brief jsoncfg.Brief) (domain.CreatorReference, error) {
	prompt := buildCreatorPrompt(brief)
	if r.search {
		raw, err := r.text.GenerateText(ctx, genai.TextRequest{Model: r.model, Prompt: prompt, Temperature: 0.2, Search: true})
		if err == nil {
			if ref, perr := parseModelPayload[domain.CreatorReference](raw); perr == nil && !ref.Empty() {
				ref.SearchUsed = true
				return ref, nil
			}
		} else if ctx.Err() != nil {
			return domain.CreatorReference{}, ctx.Err()
		}
	}

	raw, err := r.text.GenerateText(ctx, genai.TextRequest{Model: r.model, Prompt: prompt, Temperature: 0.2, JSON: true})
	if err != nil {
		return domain.CreatorReference{}, fmt.Errorf("creator reference: %w", err)
	}
	ref, err := parseModelPayload[domain.CreatorReference](raw)
	if err != nil {
		return domain.CreatorReference{}, nil
	}
	ref.SearchUsed = false
	return ref, nil
}

func buildCreatorPrompt(brief jsoncfg.Brief) string {
	firstBody := ""
	if len(brief.Script.Body) > 0 {
		firstBody = brief.Script.Body[0].Line
	}
	sb := &strings.Builder{}
	sb.WriteString("너는 유튜브 콘텐츠 레퍼런스 리서처다. 한국어 JSON만 출력한다.\n")
	sb.WriteString("목표: 입력 문맥과 가장 관련 깊은 유튜버/크리에이터 1명을 추정하고,\n")
	sb.WriteString("그 인물의 외형/분위기 참고사항을 이미지 생성용으로 요약한다.\n")
	sb.WriteString("가능하면 검색 기반 근거를 사용한다.\n")
	sb.WriteString("중요: 인물의 완전한 복제나 딥페이크 유도 대신, 분위기/스타일 유사도 참고 수준으로 작성.\n")
	sb.WriteString("스키마:\n")
	sb.WriteString(`{"creator_name":"string","confidence":0.0,"reference_creator_style":"string","visual_traits":["string"],"styling_notes":["string"],"search_evidence":[{"title":"string","url":"string","note":"string"}],"search_used":true}`)
	sb.WriteString("\n입력:\n")
	fmt.Fprintf(sb, "제목: %s\n설명: %s\n후킹: %s\n본문1: %s\n결론: %s\n",
		brief.Script.Title, brief.Meta.Description, brief.Script.Hook, firstBody, brief.Rationale.Logic.Conclusion)
	return sb.String()
}

// NoCreatorResolver always returns the empty reference.
type NoCreatorResolver struct{}

func (NoCreatorResolver) Resolve(context.Context, jsoncfg.Brief) (domain.CreatorReference, error) {
	return domain.CreatorReference{}, nil
}

var _ CreatorResolver = (*GeminiCreatorResolver)(nil)
var _ CreatorResolver = NoCreatorResolver{}
