package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"

	"assetgen/internal/domain"
)

const (
	DefaultLanguage        = "ko"
	DefaultStyle           = "informative"
	DefaultTargetLengthSec = 180
	DefaultMaxVideoSeconds = 5
	MinMaxVideoSeconds     = 3
	MaxMaxVideoSeconds     = 5
	DefaultQualityMode     = "balanced"
	DefaultSourceSignalID  = "unknown_signal"
	DefaultTitle           = "제목 미지정"
	DefaultBodyLine        = "핵심 요약"
)

// Meta carries targeting metadata of a brief.
type Meta struct {
	SourceSignalID  string `json:"source_signal_id"`
	TargetLengthSec int    `json:"target_length_sec"`
	Language        string `json:"language"`
	Style           string `json:"style"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	TargetAudience  string `json:"target_audience"`
}

// EvidenceItem is a quoted audience signal.
type EvidenceItem struct {
	Quote     string `json:"quote"`
	LikeCount *int   `json:"like_count,omitempty"`
	VideoID   string `json:"video_id,omitempty"`
}

// Logic is the observation → inference → conclusion chain.
type Logic struct {
	Observations []string `json:"observations"`
	Inference    []string `json:"inference"`
	Conclusion   string   `json:"conclusion"`
}

// ExcludedItem records a signal deliberately left out.
type ExcludedItem struct {
	Example string `json:"example"`
	Reason  string `json:"reason"`
}

// Rationale explains why the script exists.
type Rationale struct {
	Title           string         `json:"title"`
	EvidenceSummary []EvidenceItem `json:"evidence_summary"`
	Logic           Logic          `json:"logic"`
	WhatWeExcluded  []ExcludedItem `json:"what_we_excluded"`
}

// BodyLine is a timed script line.
type BodyLine struct {
	T    string `json:"t"`
	Line string `json:"line"`

	// Alternate producer fields, folded into T/Line by Normalize.
	Dialogue         string   `json:"dialogue,omitempty"`
	StartTimeSeconds *float64 `json:"start_time_seconds,omitempty"`
	EndTimeSeconds   *float64 `json:"end_time_seconds,omitempty"`
}

// CTA closes the script.
type CTA struct {
	Type string `json:"type"`
	Line string `json:"line"`
}

// Script is the spoken content of the brief.
type Script struct {
	Title   string     `json:"title"`
	Hook    string     `json:"hook_0_15s"`
	Body    []BodyLine `json:"body_15_150s"`
	Closing string     `json:"closing_150_180s"`
	CTA     CTA        `json:"cta"`
}

// ChartItem is a label/value row.
type ChartItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Assets lists on-screen material.
type Assets struct {
	OnScreenBullets    []string    `json:"on_screen_bullets"`
	SimpleChartOrTable []ChartItem `json:"simple_chart_or_table"`
	Disclaimer         string      `json:"disclaimer"`
}

// Options tunes generation.
type Options struct {
	MaxVideoSeconds int    `json:"max_video_seconds"`
	FallbackMode    string `json:"fallback_mode"`
	QualityMode     string `json:"quality_mode"`
}

// Brief is the structured content brief accepted by the orchestrator.
type Brief struct {
	Meta      Meta      `json:"meta"`
	Rationale Rationale `json:"rationale_block"`
	Script    Script    `json:"script"`
	Assets    Assets    `json:"assets"`
	Options   Options   `json:"options"`
}

// DecodeBrief parses, normalizes and validates raw brief JSON.
func DecodeBrief(raw []byte) (Brief, error) {
	var b Brief
	if err := json.Unmarshal(raw, &b); err != nil {
		return Brief{}, fmt.Errorf("%w: decode brief: %v", domain.ErrInvalidBrief, err)
	}
	b.Normalize()
	if err := b.Validate(); err != nil {
		return Brief{}, err
	}
	return b, nil
}

// Normalize fills defaults and folds alternate producer fields so downstream
// prompt construction never sees empty mandatory text.
func (b *Brief) Normalize() {
	b.Meta.SourceSignalID = coalesce(b.Meta.SourceSignalID, DefaultSourceSignalID)
	if b.Meta.TargetLengthSec <= 0 {
		b.Meta.TargetLengthSec = DefaultTargetLengthSec
	}
	b.Meta.Language = coalesce(b.Meta.Language, DefaultLanguage)
	b.Meta.Style = coalesce(b.Meta.Style, DefaultStyle)

	conclusion := strings.TrimSpace(b.Rationale.Logic.Conclusion)
	b.Script.Title = coalesce(b.Script.Title, b.Meta.Title, DefaultTitle)

	body := make([]BodyLine, 0, len(b.Script.Body))
	for _, line := range b.Script.Body {
		text := coalesce(line.Line, line.Dialogue)
		if text == "" {
			continue
		}
		body = append(body, BodyLine{T: timeWindow(line), Line: text})
	}
	if len(body) == 0 {
		body = []BodyLine{{Line: coalesce(conclusion, b.Script.Hook, DefaultBodyLine)}}
	}
	b.Script.Body = body
	b.Script.Hook = coalesce(b.Script.Hook, conclusion)
	b.Script.Closing = coalesce(b.Script.Closing, conclusion)
	if b.Script.CTA.Type == "" {
		b.Script.CTA.Type = "comment_prompt"
	}

	bullets := make([]string, 0, len(b.Assets.OnScreenBullets))
	for _, item := range b.Assets.OnScreenBullets {
		if item = strings.TrimSpace(item); item != "" {
			bullets = append(bullets, item)
		}
	}
	b.Assets.OnScreenBullets = bullets

	if b.Options.MaxVideoSeconds == 0 {
		b.Options.MaxVideoSeconds = DefaultMaxVideoSeconds
	}
	if b.Options.FallbackMode == "" {
		b.Options.FallbackMode = "storyboard"
	}
	if b.Options.QualityMode == "" {
		b.Options.QualityMode = DefaultQualityMode
	}
}

// Validate ensures the brief satisfies the contract required by the pipeline.
func (b Brief) Validate() error {
	if strings.TrimSpace(b.Meta.SourceSignalID) == "" {
		return invalid("meta.source_signal_id is required")
	}
	if strings.TrimSpace(b.Script.Title) == "" {
		return invalid("script.title is required")
	}
	if strings.TrimSpace(b.Script.Hook) == "" {
		return invalid("script.hook_0_15s is required")
	}
	if len(b.Script.Body) == 0 {
		return invalid("script.body_15_150s requires at least one line")
	}
	if b.Options.MaxVideoSeconds < MinMaxVideoSeconds || b.Options.MaxVideoSeconds > MaxMaxVideoSeconds {
		return invalid("options.max_video_seconds must be between %d and %d", MinMaxVideoSeconds, MaxMaxVideoSeconds)
	}
	switch b.Options.QualityMode {
	case "balanced", "high":
	default:
		return invalid("options.quality_mode must be balanced or high")
	}
	if b.Meta.TargetLengthSec < 30 || b.Meta.TargetLengthSec > 600 {
		return invalid("meta.target_length_sec must be between 30 and 600")
	}
	return nil
}

// SummaryText is the narration summary used for TTS and video prompts.
func (b Brief) SummaryText(maxChars int) string {
	parts := []string{b.Script.Hook}
	for i, line := range b.Script.Body {
		if i >= 2 {
			break
		}
		parts = append(parts, line.Line)
	}
	parts = append(parts, b.Script.Closing)
	text := strings.TrimSpace(strings.Join(parts, " "))
	runes := []rune(text)
	if maxChars > 0 && len(runes) > maxChars {
		return string(runes[:maxChars])
	}
	return text
}

// KeyMessages returns up to n on-screen bullets.
func (b Brief) KeyMessages(n int) []string {
	if len(b.Assets.OnScreenBullets) <= n {
		return append([]string(nil), b.Assets.OnScreenBullets...)
	}
	return append([]string(nil), b.Assets.OnScreenBullets[:n]...)
}

func timeWindow(line BodyLine) string {
	if t := strings.TrimSpace(line.T); t != "" {
		return t
	}
	if line.StartTimeSeconds == nil && line.EndTimeSeconds == nil {
		return ""
	}
	return fmt.Sprintf("%s-%ss", formatSeconds(line.StartTimeSeconds), formatSeconds(line.EndTimeSeconds))
}

func formatSeconds(v *float64) string {
	if v == nil {
		return "None"
	}
	return fmt.Sprintf("%g", *v)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidBrief, fmt.Sprintf(format, args...))
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
