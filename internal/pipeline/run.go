package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/infra/metrics"
	imageprov "assetgen/internal/providers/image"
	"assetgen/internal/providers/video"
)

// Artifact names inside a job directory.
const (
	thumbnailFile       = "thumbnail.png"
	anchorFile          = "character_anchor.png"
	framesDir           = "frames"
	storyboardVideoFile = "storyboard_v1.mp4"
	veoVideoFile        = "veo_v1.mp4"
	previewVideoFile    = "preview_v1.mp4"
	scenePlanFile       = "scene_plan.json"
	strategyPacketFile  = "strategy_packet.json"
	productionNotesFile = "production_notes.md"
	voiceoverFile       = "voiceover.wav"
	bgmFile             = "bgm.wav"
)

// StrategyPacket is the editorial summary stored with every job.
type StrategyPacket struct {
	SourceSignalID string   `json:"source_signal_id"`
	Title          string   `json:"title"`
	Hook           string   `json:"hook"`
	KeyMessages    []string `json:"key_messages"`
	Conclusion     string   `json:"conclusion"`
}

// jobRun is the per-job state of one execution. It is confined to the
// worker goroutine running the job.
type jobRun struct {
	o     *Orchestrator
	id    string
	brief jsoncfg.Brief
	mode  domain.Mode
	trace *Trace
	log   zerolog.Logger

	res        domain.Result
	plan       *domain.ScenePlan
	anchor     []byte
	firstFrame []byte
	// artifacts counts media files produced so far; a failed job with any
	// of them is reported as a partial result.
	artifacts  int
	outputMode domain.Mode
}

func (o *Orchestrator) newRun(id string, brief jsoncfg.Brief, mode domain.Mode) *jobRun {
	j := &jobRun{
		o:     o,
		id:    id,
		brief: brief,
		mode:  mode,
		trace: NewTrace(),
		log:   o.logger.With().Str("job_id", id).Str("mode", string(mode)).Logger(),
	}
	j.res = domain.Result{
		JobID:               id,
		PipelineMode:        mode,
		QualityScores:       map[string]float64{},
		Files:               map[string]string{domain.FileResult: o.files.PublicPath(resultKey(id))},
		SceneSources:        []string{},
		StoryboardScenePlan: []domain.SceneSummary{},
		ImageModel:          modelName(o.images),
		TextGuardEnabled:    o.ocr.Enabled(),
	}
	if !mode.Legacy() {
		j.res.PromptVersion = domain.PromptVersion
		j.res.FrameCount = domain.FrameCount
		j.res.StyleBibleApplied = true
		j.res.ScriptGroundingApplied = true
		j.res.ScenePlannerModel = modelName(o.planner)
	}
	return j
}

func (j *jobRun) key(parts ...string) string {
	return path.Join(append([]string{j.id}, parts...)...)
}

func (j *jobRun) addFile(name, key string) string {
	public := j.o.files.PublicPath(key)
	j.res.Files[name] = public
	return public
}

func (j *jobRun) patch(p domain.JobPatch) {
	if _, err := j.o.store.Update(j.id, p); err != nil {
		j.log.Error().Err(err).Msg("update job record")
	}
}

// execute dispatches on the mode. A panic in a collaborator fails the job
// instead of the process.
func (j *jobRun) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	switch j.mode {
	case domain.ModeStoryboard, domain.ModeStoryboardToVideo:
		return j.runStoryboard(ctx)
	case domain.ModeVideo:
		return j.runLegacyVideo(ctx)
	case domain.ModeImageVoiceMusic:
		return j.runImageVoiceMusic(ctx)
	default:
		return fmt.Errorf("%w: unsupported mode %q", domain.ErrInvalidBrief, j.mode)
	}
}

// stage publishes the stage transition before fn starts, so status readers
// always see the most recently entered stage.
func (j *jobRun) stage(ctx context.Context, name string, progress int, fn func(ctx context.Context) error) error {
	if _, err := j.o.store.Update(j.id, domain.JobPatch{
		Status:   domain.Ptr(domain.JobStatusRunning),
		Stage:    domain.Ptr(name),
		Progress: domain.Ptr(progress),
	}); err != nil {
		return err
	}
	ctx, span := j.o.tracer.Start(ctx, "pipeline.stage."+name,
		oteltrace.WithAttributes(attribute.String("job_id", j.id)))
	defer span.End()

	j.log.Debug().Str("stage", name).Int("progress", progress).Msg("stage started")
	start := time.Now()
	err := fn(ctx)
	metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (j *jobRun) runStoryboard(ctx context.Context) error {
	if err := j.stage(ctx, domain.StagePlanning, progressPlanning, j.planScenes); err != nil {
		return err
	}
	if err := j.stage(ctx, domain.StageThumbnail, progressThumbnail, j.storyboardThumbnail); err != nil {
		return err
	}
	if err := j.stage(ctx, domain.StageAnchor, progressAnchor, j.characterAnchor); err != nil {
		return err
	}
	if err := j.stage(ctx, domain.StageStoryboard, progressStoryboard, j.storyboardFrames); err != nil {
		return err
	}
	if j.mode.WantsLongFormVideo() {
		if err := j.stage(ctx, domain.StageVeo, progressVeo, j.longFormVideo); err != nil {
			return err
		}
	}
	j.outputMode = j.mode
	return nil
}

func (j *jobRun) planScenes(ctx context.Context) error {
	ref, err := j.o.creator.Resolve(ctx, j.brief)
	j.trace.markCreator(err)
	if err != nil {
		j.log.Warn().Err(err).Msg("creator reference unavailable, continuing without it")
		ref = domain.CreatorReference{}
	}
	if !ref.Empty() {
		j.res.CreatorReference = &ref
	}

	j.trace.markPlanner()
	plan, err := j.o.planner.Plan(ctx, j.brief, ref)
	if err != nil {
		return fmt.Errorf("scene planning: %w", err)
	}
	if err := plan.Validate(domain.FrameCount); err != nil {
		return err
	}
	j.plan = &plan
	j.res.CharacterBible = &plan.CharacterBible
	j.res.SceneSources = plan.Sources()
	j.res.StoryboardScenePlan = plan.Summary()

	key, err := j.o.files.WriteJSON(ctx, j.key(scenePlanFile), plan)
	if err != nil {
		return fmt.Errorf("write scene plan: %w", err)
	}
	j.res.ScenePlanPath = j.addFile(domain.FileScenePlan, key)
	return j.writeStrategy(ctx)
}

func (j *jobRun) writeStrategy(ctx context.Context) error {
	packet := StrategyPacket{
		SourceSignalID: j.brief.Meta.SourceSignalID,
		Title:          j.brief.Script.Title,
		Hook:           j.brief.Script.Hook,
		KeyMessages:    j.brief.KeyMessages(3),
		Conclusion:     j.brief.Rationale.Logic.Conclusion,
	}
	key, err := j.o.files.WriteJSON(ctx, j.key(strategyPacketFile), packet)
	if err != nil {
		return fmt.Errorf("write strategy packet: %w", err)
	}
	j.addFile(domain.FileStrategyPacket, key)

	key, err = j.o.files.Write(ctx, j.key(productionNotesFile), []byte(ProductionNotes))
	if err != nil {
		return fmt.Errorf("write production notes: %w", err)
	}
	j.addFile(domain.FileProductionNotes, key)
	return nil
}

func (j *jobRun) storyboardThumbnail(ctx context.Context) error {
	out, err := j.o.guard.Generate(ctx, j.trace, GuardRequest{
		ID:        "thumbnail",
		Prompt:    ThumbnailPrompt(j.brief, *j.plan),
		OutputKey: j.key(thumbnailFile),
		MaxChars:  j.o.cfg.MaxCharsThumbnail,
	})
	if err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	j.artifacts++
	j.addFile(domain.FileThumbnail, out.Key)
	return nil
}

func (j *jobRun) characterAnchor(ctx context.Context) error {
	out, err := j.o.guard.Generate(ctx, j.trace, GuardRequest{
		ID:        "character_anchor",
		Prompt:    AnchorPrompt(*j.plan),
		OutputKey: j.key(anchorFile),
		MaxChars:  j.o.cfg.MaxCharsFrame,
	})
	if err != nil {
		return fmt.Errorf("character anchor: %w", err)
	}
	j.artifacts++
	j.anchor = out.PNG
	j.res.CharacterAnchorPath = j.addFile(domain.FileCharacterAnchor, out.Key)
	return nil
}

// storyboardFrames generates the frames one at a time in scene order, each
// conditioned on the anchor, then composes them into the silent storyboard.
func (j *jobRun) storyboardFrames(ctx context.Context) error {
	refs := []imageprov.Reference{{MIME: "image/png", Data: j.anchor}}
	paths := make([]string, 0, len(j.plan.Scenes))
	for i, scene := range j.plan.Scenes {
		name := fmt.Sprintf("frame_%02d", i+1)
		out, err := j.o.guard.Generate(ctx, j.trace, GuardRequest{
			ID:         name,
			Prompt:     ScenePrompt(scene, *j.plan),
			OutputKey:  j.key(framesDir, name+".png"),
			MaxChars:   j.o.cfg.MaxCharsFrame,
			References: refs,
		})
		if err != nil {
			return fmt.Errorf("storyboard %s: %w", name, err)
		}
		j.artifacts++
		j.addFile(domain.FramePathKey(i+1), out.Key)
		if i == 0 {
			j.firstFrame = out.PNG
		}
		p, err := j.o.files.Path(out.Key)
		if err != nil {
			return err
		}
		paths = append(paths, p)
	}

	public, err := j.composeSilent(ctx, paths, storyboardVideoFile)
	if err != nil {
		return fmt.Errorf("compose storyboard: %w", err)
	}
	j.res.Files[domain.FileStoryboardVideo] = public
	j.res.QualityScores["storyboard_frame_ratio"] = float64(len(paths)) / float64(domain.FrameCount)

	if j.mode.WantsLongFormVideo() {
		j.patch(domain.JobPatch{AltVideoPath: domain.Ptr(public)})
		return nil
	}
	j.res.Files[domain.FileVideo] = public
	j.patch(domain.JobPatch{VideoPath: domain.Ptr(public), OutputMode: domain.Ptr(j.mode)})
	return nil
}

func (j *jobRun) composeSilent(ctx context.Context, frames []string, name string) (string, error) {
	key := j.key(name)
	out, err := j.o.files.Path(key)
	if err != nil {
		return "", err
	}
	if err := j.o.composer.Compose(ctx, frames, out, float64(j.brief.Options.MaxVideoSeconds)); err != nil {
		return "", err
	}
	j.artifacts++
	return j.o.files.PublicPath(key), nil
}

// longFormVideo seeds the video provider with the first storyboard frame.
// Its failure fails the job even though the storyboard already exists.
func (j *jobRun) longFormVideo(ctx context.Context) error {
	vt := &j.res.VeoTrace
	vt.Called = true
	vt.Attempts = 1
	vt.DurationSec = j.brief.Options.MaxVideoSeconds
	vt.SeedFrame = j.res.Files[domain.FramePathKey(1)]
	j.res.Attempts.VideoAttempts = 1
	j.trace.markVideo()

	if j.o.videos == nil {
		vt.Error = "video provider not configured"
		return errors.New("veo generation: video provider not configured")
	}
	vt.Model = modelName(j.o.videos)
	asset, err := j.o.videos.Generate(ctx, video.GenerateRequest{
		Prompt:      VeoPrompt(j.brief, *j.plan),
		DurationSec: j.brief.Options.MaxVideoSeconds,
		SeedImage:   j.firstFrame,
		SeedMIME:    "image/png",
		RequestID:   j.id + "-veo",
	})
	if err == nil && len(asset.Data) == 0 {
		err = domain.Permanent("video", errors.New("empty video payload"))
	}
	if err != nil {
		vt.Error = err.Error()
		return fmt.Errorf("veo generation: %w", err)
	}
	key, err := j.o.files.Write(ctx, j.key(veoVideoFile), asset.Data)
	if err != nil {
		vt.Error = err.Error()
		return fmt.Errorf("store veo video: %w", err)
	}
	j.artifacts++
	vt.Success = true
	public := j.addFile(domain.FileVeoVideo, key)
	j.res.Files[domain.FileVideo] = public
	j.res.QualityScores["video_quality_score"] = videoQuality(len(asset.Data))
	j.patch(domain.JobPatch{VideoPath: domain.Ptr(public), OutputMode: domain.Ptr(j.mode)})
	return nil
}

// finish writes the terminal document and only then flips the record to its
// terminal status, so result_path is readable as soon as status is terminal.
func (j *jobRun) finish(ctx context.Context, runErr error) {
	if runErr == nil {
		j.patch(domain.JobPatch{Stage: domain.Ptr(domain.StageFinalize), Progress: domain.Ptr(progressFinalize)})
	}
	j.res.ProviderTrace = j.trace.Snapshot()
	j.res.Attempts.ImageAttempts = j.trace.ImageAttempts()
	j.res.TextGuardSummary = j.trace.TextGuard(j.o.ocr.Enabled(), j.o.ocr.UnavailableReason(),
		j.o.cfg.MaxCharsFrame, j.o.cfg.MaxCharsThumbnail)

	if runErr == nil {
		j.res.Status = domain.JobStatusSucceeded
		j.res.OutputMode = j.outputMode
		if _, err := j.o.files.WriteJSON(ctx, resultKey(j.id), j.res); err != nil {
			runErr = fmt.Errorf("write result: %w", err)
		}
	}

	patch := domain.JobPatch{Progress: domain.Ptr(progressDone)}
	if runErr == nil {
		patch.Status = domain.Ptr(domain.JobStatusSucceeded)
		patch.Stage = domain.Ptr(domain.StageDone)
		patch.OutputMode = domain.Ptr(j.outputMode)
	} else {
		msg := runErr.Error()
		j.res.Status = domain.JobStatusFailed
		j.res.OutputMode = domain.ModeUnknown
		j.res.ErrorMessage = &msg
		j.res.PartialResult = j.artifacts > 0
		if _, err := j.o.files.WriteJSON(ctx, resultKey(j.id), j.res); err != nil {
			j.log.Error().Err(err).Msg("write failure result")
		}
		patch.Status = domain.Ptr(domain.JobStatusFailed)
		patch.Stage = domain.Ptr(domain.StageFailed)
		patch.OutputMode = domain.Ptr(domain.ModeUnknown)
		patch.ErrorMessage = &msg
	}

	rec, err := j.o.store.Update(j.id, patch)
	if err != nil {
		j.log.Error().Err(err).Msg("terminal update")
		return
	}
	metrics.IncJobFinished(string(j.mode), string(rec.Status))
	if runErr != nil {
		j.log.Error().Err(runErr).Bool("partial_result", j.res.PartialResult).Msg("job failed")
	} else {
		j.log.Info().Str("output_mode", string(j.outputMode)).Msg("job succeeded")
	}

	if err := j.o.archive.Save(ctx, rec, &j.res); err != nil {
		j.log.Warn().Err(err).Msg("archive terminal job")
	}
}

// videoQuality is a size heuristic: 2MB and above scores 1.
func videoQuality(size int) float64 {
	return min(1.0, float64(size)/2_000_000)
}

func modelName(v any) string {
	if m, ok := v.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}
