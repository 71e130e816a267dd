// Package pipeline turns a content brief into a bundle of generated assets.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/infra"
	"assetgen/internal/infra/metrics"
	"assetgen/internal/jobstore"
	imageprov "assetgen/internal/providers/image"
	"assetgen/internal/providers/audio"
	"assetgen/internal/providers/ocr"
	"assetgen/internal/providers/planner"
	"assetgen/internal/providers/video"
	"assetgen/internal/storage"
)

// Progress checkpoints.
const (
	progressPlanning   = 5
	progressThumbnail  = 15
	progressAnchor     = 25
	progressStoryboard = 40
	progressVeo        = 80
	progressFinalize   = 95
	progressDone       = 100
)

const defaultStatusPrefix = "/api/assets/jobs"

// Deps are the collaborators of an Orchestrator. Store, Files, Images,
// Planner and Composer are required.
type Deps struct {
	Store    *jobstore.Store
	Files    *storage.FileStore
	Images   imageprov.Generator
	Videos   video.Generator
	Audio    audio.Generator
	Planner  planner.ScenePlanner
	Creator  planner.CreatorResolver
	OCR      ocr.Detector
	Composer Composer
	Archive  jobstore.Archive
	Logger   *infra.Logger
	Config   infra.PipelineConfig
	// StatusPrefix is the route under which job status is served.
	StatusPrefix string
}

// CreateResponse is returned as soon as a job is queued.
type CreateResponse struct {
	JobID        string           `json:"job_id"`
	Status       domain.JobStatus `json:"status"`
	StatusPath   string           `json:"status_path"`
	ResultPath   string           `json:"result_path"`
	PipelineMode domain.Mode      `json:"pipeline_mode"`
}

// Orchestrator owns the job lifecycle: it allocates jobs, runs them on a
// bounded pool and persists their terminal documents.
type Orchestrator struct {
	store    *jobstore.Store
	files    *storage.FileStore
	images   imageprov.Generator
	videos   video.Generator
	audio    audio.Generator
	planner  planner.ScenePlanner
	creator  planner.CreatorResolver
	ocr      ocr.Detector
	composer Composer
	archive  jobstore.Archive
	guard    *GuardedImageGenerator
	pool     *Pool
	cfg      infra.PipelineConfig
	logger   zerolog.Logger
	tracer   oteltrace.Tracer

	statusPrefix string
	newID        func() string
	// wait sleeps between status polls in Wait.
	wait func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(d Deps) (*Orchestrator, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("pipeline: job store is required")
	case d.Files == nil:
		return nil, errors.New("pipeline: file store is required")
	case d.Images == nil:
		return nil, errors.New("pipeline: image generator is required")
	case d.Planner == nil:
		return nil, errors.New("pipeline: scene planner is required")
	case d.Composer == nil:
		return nil, errors.New("pipeline: composer is required")
	}
	if d.Creator == nil {
		d.Creator = planner.NoCreatorResolver{}
	}
	if d.OCR == nil {
		d.OCR = ocr.NoopDetector{}
	}
	if d.Archive == nil {
		d.Archive = jobstore.NopArchive{}
	}
	logger := zerolog.Nop()
	if d.Logger != nil {
		logger = *d.Logger
	}
	prefix := d.StatusPrefix
	if prefix == "" {
		prefix = defaultStatusPrefix
	}
	return &Orchestrator{
		store:        d.Store,
		files:        d.Files,
		images:       d.Images,
		videos:       d.Videos,
		audio:        d.Audio,
		planner:      d.Planner,
		creator:      d.Creator,
		ocr:          d.OCR,
		composer:     d.Composer,
		archive:      d.Archive,
		guard:        NewGuardedImageGenerator(d.Images, d.Files, d.OCR, PolicyFromConfig(d.Config), d.Logger),
		pool:         NewPool(d.Config.MaxWorkerJobs),
		cfg:          d.Config,
		logger:       logger.With().Str("component", "pipeline").Logger(),
		tracer:       otel.Tracer("assetgen/pipeline"),
		statusPrefix: prefix,
		newID:        uuid.NewString,
		wait:         sleepContext,
	}, nil
}

func resultKey(jobID string) string { return path.Join(jobID, "result.json") }

// Create queues brief for asynchronous execution. It never waits on a
// provider and only fails once the pool has been closed.
func (o *Orchestrator) Create(ctx context.Context, brief jsoncfg.Brief, mode domain.Mode) (CreateResponse, error) {
	if !mode.Valid() {
		return CreateResponse{}, fmt.Errorf("%w: unsupported mode %q", domain.ErrInvalidBrief, mode)
	}
	if err := ctx.Err(); err != nil {
		return CreateResponse{}, err
	}
	id := o.newID()
	rec := domain.JobRecord{
		JobID:        id,
		Status:       domain.JobStatusQueued,
		Stage:        domain.StageQueued,
		Progress:     0,
		PipelineMode: mode,
		ResultPath:   o.files.PublicPath(resultKey(id)),
	}
	o.store.Put(rec)

	if err := o.pool.Submit(func() { o.run(id, brief, mode) }); err != nil {
		// Nothing will ever run this job; close it out so it is not left queued.
		j := o.newRun(id, brief, mode)
		j.finish(context.Background(), fmt.Errorf("schedule job: %w", err))
		return CreateResponse{}, err
	}
	metrics.IncJobSubmitted(string(mode))
	o.logger.Info().Str("job_id", id).Str("mode", string(mode)).Msg("job queued")

	return CreateResponse{
		JobID:        id,
		Status:       domain.JobStatusQueued,
		StatusPath:   o.statusPrefix + "/" + id,
		ResultPath:   rec.ResultPath,
		PipelineMode: mode,
	}, nil
}

// Status returns a snapshot of the job record.
func (o *Orchestrator) Status(id string) (domain.JobRecord, error) {
	return o.store.Get(id)
}

// Result reads the persisted terminal document. A known job without a
// document yet fails with domain.ErrResultNotReady.
func (o *Orchestrator) Result(ctx context.Context, id string) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	if _, err := o.store.Get(id); err != nil {
		return domain.Result{}, err
	}
	raw, err := o.files.ReadFile(resultKey(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Result{}, fmt.Errorf("job %s: %w", id, domain.ErrResultNotReady)
		}
		return domain.Result{}, fmt.Errorf("read result %s: %w", id, err)
	}
	var res domain.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.Result{}, fmt.Errorf("decode result %s: %w", id, err)
	}
	return res, nil
}

// LegacySuccess is the synchronous success body.
type LegacySuccess struct {
	RequestID     string `json:"request_id"`
	ThumbnailPath string `json:"thumbnail_path"`
	VideoPath     string `json:"video_path"`
	ResultPath    string `json:"result_path"`
}

// LegacyAccepted is returned when Wait times out before the job finishes.
type LegacyAccepted struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	StatusPath string `json:"status_path"`
	ResultPath string `json:"result_path"`
}

// LegacyError is the synchronous failure body.
type LegacyError struct {
	Detail string `json:"detail"`
}

// Wait creates a job and polls its status until it is terminal or timeout
// elapses. The job keeps running after a timeout.
func (o *Orchestrator) Wait(ctx context.Context, brief jsoncfg.Brief, mode domain.Mode, timeout time.Duration) (int, any) {
	created, err := o.Create(ctx, brief, mode)
	if err != nil {
		return http.StatusInternalServerError, LegacyError{Detail: err.Error()}
	}
	deadline := time.Now().Add(timeout)
	last := created.Status
	for {
		rec, err := o.store.Get(created.JobID)
		if err != nil {
			return http.StatusInternalServerError, LegacyError{Detail: err.Error()}
		}
		last = rec.Status
		switch rec.Status {
		case domain.JobStatusSucceeded:
			videoPath := o.files.PublicPath(path.Join(rec.JobID, previewVideoFile))
			if rec.VideoPath != nil {
				videoPath = *rec.VideoPath
			}
			return http.StatusOK, LegacySuccess{
				RequestID:     rec.JobID,
				ThumbnailPath: o.files.PublicPath(path.Join(rec.JobID, thumbnailFile)),
				VideoPath:     videoPath,
				ResultPath:    rec.ResultPath,
			}
		case domain.JobStatusFailed:
			detail := "Job failed."
			if rec.ErrorMessage != nil && *rec.ErrorMessage != "" {
				detail = *rec.ErrorMessage
			}
			return http.StatusInternalServerError, LegacyError{Detail: detail}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := o.wait(ctx, min(o.cfg.WaitPollInterval, remaining)); err != nil {
			break
		}
	}
	return http.StatusAccepted, LegacyAccepted{
		JobID:      created.JobID,
		Status:     string(last),
		StatusPath: created.StatusPath,
		ResultPath: created.ResultPath,
	}
}

// Close stops accepting jobs and waits for in-flight runs to finish.
func (o *Orchestrator) Close(ctx context.Context) error {
	return o.pool.Close(ctx)
}

// run executes one job end to end on a pool worker. Runs are not cancelled:
// they own a background context until they reach a terminal state.
func (o *Orchestrator) run(id string, brief jsoncfg.Brief, mode domain.Mode) {
	release := metrics.JobStarted()
	defer release()

	ctx, span := o.tracer.Start(context.Background(), "pipeline.job",
		oteltrace.WithAttributes(attribute.String("job_id", id), attribute.String("mode", string(mode))))
	defer span.End()

	j := o.newRun(id, brief, mode)
	err := j.execute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	j.finish(ctx, err)
}
