// Package bootstrap assembles the orchestrator and its collaborators from
// configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"assetgen/internal/infra"
	"assetgen/internal/jobstore"
	"assetgen/internal/pipeline"
	"assetgen/internal/providers/audio"
	"assetgen/internal/providers/genai"
	imageprov "assetgen/internal/providers/image"
	"assetgen/internal/providers/ocr"
	"assetgen/internal/providers/planner"
	"assetgen/internal/providers/video"
	"assetgen/internal/storage"
)

// Service bundles the orchestrator with the resources it owns.
type Service struct {
	Orchestrator *pipeline.Orchestrator
	Files        *storage.FileStore

	closers []func()
}

// Close releases database and OCR clients. Call it after the orchestrator
// has drained.
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Build wires every collaborator. Missing credentials degrade to the
// synthetic genai backend and a static planner instead of failing.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Service, error) {
	svc := &Service{}

	files, err := storage.NewFileStore(cfg.GeneratedDir, cfg.PublicPrefix)
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	svc.Files = files

	var archive jobstore.Archive = jobstore.NopArchive{}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		svc.closers = append(svc.closers, pool.Close)
		pg, err := jobstore.NewPGArchive(ctx, pool)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("job archive: %w", err)
		}
		archive = pg
		logger.Info().Msg("job archive enabled")
	}

	client, err := genai.NewClient(ctx, genai.Options{
		APIKey:   cfg.GeminiAPIKey,
		BaseURL:  cfg.GeminiBaseURL,
		Project:  cfg.GCPProjectID,
		Location: cfg.GCPLocation,
		Logger:   logger,
	})
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("genai client: %w", err)
	}

	var scenes planner.ScenePlanner
	var creator planner.CreatorResolver
	if client.Synthetic() {
		scenes = planner.StaticPlanner{}
		creator = planner.NoCreatorResolver{}
		logger.Warn().Msg("no gemini credentials; using synthetic providers and the static scene planner")
	} else {
		scenes = planner.NewGeminiPlanner(client, planner.GeminiOptions{
			Model:       cfg.Models.ScenePlanner,
			MaxAttempts: cfg.Pipeline.MaxScenePlanAttempts,
			Logger:      logger,
		})
		creator = planner.NewGeminiCreatorResolver(client, cfg.Models.CreatorReference, cfg.Models.CreatorSearch)
	}

	detector := ocr.New(ctx, cfg.OCREnabled, logger)
	if c, ok := detector.(io.Closer); ok {
		svc.closers = append(svc.closers, func() { _ = c.Close() })
	}

	composer := pipeline.NewSlideshowComposer(pipeline.ComposerOptions{
		FFmpegPath: cfg.FFmpegPath,
		FPS:        cfg.Pipeline.PreviewFPS,
		Width:      cfg.Pipeline.OutputWidth,
		Height:     cfg.Pipeline.OutputHeight,
		Bitrate:    cfg.Pipeline.PreviewBitrate,
	}, nil)

	orch, err := pipeline.NewOrchestrator(pipeline.Deps{
		Store:  jobstore.New(),
		Files:  files,
		Images: imageprov.NewGeminiGenerator(client, cfg.Models.Image),
		Videos: video.NewGeminiGenerator(client, video.GeminiOptions{
			Model:        cfg.Models.Video,
			AspectRatio:  "16:9",
			PollInterval: cfg.Pipeline.VideoPollInterval,
			MaxPolls:     cfg.Pipeline.VideoMaxPolls,
		}),
		Audio:        audio.NewGeminiGenerator(client, cfg.Models.Audio, cfg.Models.Voice),
		Planner:      scenes,
		Creator:      creator,
		OCR:          detector,
		Composer:     composer,
		Archive:      archive,
		Logger:       logger,
		Config:       cfg.Pipeline,
		StatusPrefix: cfg.StatusPrefix,
	})
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Orchestrator = orch

	logger.Info().
		Str("backend", client.Backend()).
		Bool("ocr", detector.Enabled()).
		Int("workers", cfg.Pipeline.MaxWorkerJobs).
		Str("generated_dir", cfg.GeneratedDir).
		Msg("pipeline ready")
	return svc, nil
}
