package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const createAssetJobsTable = `
CREATE TABLE IF NOT EXISTS asset_jobs (
    job_id        TEXT PRIMARY KEY,
    status        TEXT NOT NULL,
    stage         TEXT NOT NULL,
    progress      INTEGER NOT NULL,
    pipeline_mode TEXT NOT NULL,
    output_mode   TEXT NOT NULL,
    video_path    TEXT,
    result_path   TEXT NOT NULL,
    error_message TEXT,
    result        JSONB,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
)`

func (q *Queries) EnsureAssetJobs(ctx context.Context) error {
	_, err := q.db.Exec(ctx, createAssetJobsTable)
	return err
}

type UpsertAssetJobParams struct {
	JobID        string
	Status       string
	Stage        string
	Progress     int32
	PipelineMode string
	OutputMode   string
	VideoPath    *string
	ResultPath   string
	ErrorMessage *string
	Result       []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (q *Queries) UpsertAssetJob(ctx context.Context, arg UpsertAssetJobParams) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO asset_jobs (job_id, status, stage, progress, pipeline_mode, output_mode, video_path, result_path, error_message, result, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (job_id) DO UPDATE
SET status = EXCLUDED.status,
    stage = EXCLUDED.stage,
    progress = EXCLUDED.progress,
    output_mode = EXCLUDED.output_mode,
    video_path = EXCLUDED.video_path,
    error_message = EXCLUDED.error_message,
    result = COALESCE(EXCLUDED.result, asset_jobs.result),
    updated_at = EXCLUDED.updated_at
`, arg.JobID, arg.Status, arg.Stage, arg.Progress, arg.PipelineMode, arg.OutputMode,
		arg.VideoPath, arg.ResultPath, arg.ErrorMessage, nullableBytes(arg.Result), arg.CreatedAt, arg.UpdatedAt)
	return err
}

type AssetJob struct {
	JobID        string
	Status       string
	Stage        string
	Progress     int32
	PipelineMode string
	OutputMode   string
	VideoPath    *string
	ResultPath   string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (q *Queries) GetAssetJob(ctx context.Context, jobID string) (AssetJob, error) {
	row := q.db.QueryRow(ctx, `
SELECT job_id, status, stage, progress, pipeline_mode, output_mode, video_path, result_path, error_message, created_at, updated_at
FROM asset_jobs
WHERE job_id = $1
`, jobID)
	var job AssetJob
	err := row.Scan(
		&job.JobID,
		&job.Status,
		&job.Stage,
		&job.Progress,
		&job.PipelineMode,
		&job.OutputMode,
		&job.VideoPath,
		&job.ResultPath,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	return job, err
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
