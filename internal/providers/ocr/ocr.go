// Package ocr counts on-screen text in generated images.
package ocr

import (
	"context"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Detector reports how many text characters are visible in an image.
type Detector interface {
	// Enabled reports whether counts are meaningful. A disabled detector
	// turns the text quality gate off.
	Enabled() bool
	// UnavailableReason explains why the detector is disabled.
	UnavailableReason() string
	CountChars(ctx context.Context, image []byte) (int, error)
}

// NoopDetector is used when no OCR backend could be constructed.
type NoopDetector struct {
	Reason string
}

func (NoopDetector) Enabled() bool { return false }

func (d NoopDetector) UnavailableReason() string {
	if d.Reason == "" {
		return "ocr disabled"
	}
	return d.Reason
}

func (NoopDetector) CountChars(context.Context, []byte) (int, error) { return 0, nil }

// CountTextChars counts letters and digits after NFC normalization, so a
// precomposed Hangul syllable and its decomposed jamo count the same.
func CountTextChars(text string) int {
	n := 0
	for _, r := range norm.NFC.String(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

var _ Detector = NoopDetector{}
