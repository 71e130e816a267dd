package planner

import (
	"context"
	"errors"
	"testing"

	"assetgen/internal/domain"
	"assetgen/internal/providers/genai"
)

func TestCreatorResolverSearchFirst(t *testing.T) {
	text := &fakeText{generate: func(int, genai.TextRequest) (string, error) {
		return `근거 요약: {"creator_name":"슈카월드","confidence":0.7,"reference_creator_style":"경제 토크","visual_traits":["안경"]}`, nil
	}}
	ref, err := NewGeminiCreatorResolver(text, "m", true).Resolve(context.Background(), sampleBrief())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ref.CreatorName != "슈카월드" || !ref.SearchUsed {
		t.Fatalf("unexpected reference: %+v", ref)
	}
	if len(text.calls) != 1 || !text.calls[0].Search {
		t.Fatalf("expected single search call, got %+v", text.calls)
	}
}

func TestCreatorResolverFallsBackWithoutSearch(t *testing.T) {
	text := &fakeText{generate: func(n int, req genai.TextRequest) (string, error) {
		if req.Search {
			return "", domain.Transient("genai.text", errors.New("429"))
		}
		return `{"creator_name":"","reference_creator_style":"차분한 해설"}`, nil
	}}
	ref, err := NewGeminiCreatorResolver(text, "m", true).Resolve(context.Background(), sampleBrief())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ref.SearchUsed || ref.ReferenceCreatorStyle != "차분한 해설" {
		t.Fatalf("unexpected reference: %+v", ref)
	}
	if len(text.calls) != 2 || !text.calls[1].JSON {
		t.Fatalf("expected JSON retry without search, got %+v", text.calls)
	}
}

func TestCreatorResolverUnparsableIsEmpty(t *testing.T) {
	text := &fakeText{generate: func(int, genai.TextRequest) (string, error) {
		return "모르겠습니다", nil
	}}
	ref, err := NewGeminiCreatorResolver(text, "m", false).Resolve(context.Background(), sampleBrief())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ref.Empty() {
		t.Fatalf("expected empty reference, got %+v", ref)
	}
}

func TestCreatorResolverProviderFailure(t *testing.T) {
	text := &fakeText{generate: func(int, genai.TextRequest) (string, error) {
		return "", domain.Permanent("genai.text", errors.New("bad request"))
	}}
	_, err := NewGeminiCreatorResolver(text, "m", false).Resolve(context.Background(), sampleBrief())
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
}
