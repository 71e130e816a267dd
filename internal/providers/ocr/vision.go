package ocr

import (
	"context"
	"fmt"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"assetgen/internal/infra"
)

// VisionDetector uses Cloud Vision TEXT_DETECTION.
type VisionDetector struct {
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
}

// NewVisionDetector dials Cloud Vision with application default credentials.
func NewVisionDetector(ctx context.Context, opts ...option.ClientOption) (*VisionDetector, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionDetector{client: client, timeout: 30 * time.Second}, nil
}

func (d *VisionDetector) Enabled() bool { return true }

func (d *VisionDetector) UnavailableReason() string { return "" }

func (d *VisionDetector) CountChars(ctx context.Context, img []byte) (int, error) {
	if len(img) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{Requests: []*visionpb.AnnotateImageRequest{{
		Image:    &visionpb.Image{Content: img},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION}},
	}}}
	resp, err := d.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return 0, nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return 0, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}
	if r0.FullTextAnnotation != nil {
		return CountTextChars(r0.FullTextAnnotation.Text), nil
	}
	// The first text annotation holds the whole detected block.
	if len(r0.TextAnnotations) > 0 && r0.TextAnnotations[0] != nil {
		return CountTextChars(r0.TextAnnotations[0].Description), nil
	}
	return 0, nil
}

func (d *VisionDetector) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

// New returns a Vision detector when enabled and constructible, otherwise a
// NoopDetector carrying the reason. It never fails.
func New(ctx context.Context, enabled bool, logger *infra.Logger) Detector {
	if !enabled {
		return NoopDetector{Reason: "ocr disabled by configuration"}
	}
	d, err := NewVisionDetector(ctx)
	if err != nil {
		if logger != nil {
			logger.Warn().Err(err).Msg("ocr: vision unavailable; text guard disabled")
		}
		return NoopDetector{Reason: err.Error()}
	}
	return d
}

var _ Detector = (*VisionDetector)(nil)
