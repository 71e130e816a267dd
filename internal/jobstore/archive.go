package jobstore

import (
	"context"
	"encoding/json"
	"fmt"

	"assetgen/internal/db"
	"assetgen/internal/domain"
)

// Archive receives the terminal snapshot of every job. Implementations must
// be safe for concurrent use.
type Archive interface {
	Save(ctx context.Context, rec domain.JobRecord, result *domain.Result) error
}

// NopArchive discards snapshots.
type NopArchive struct{}

func (NopArchive) Save(context.Context, domain.JobRecord, *domain.Result) error { return nil }

// PGArchive upserts terminal jobs into the asset_jobs table.
type PGArchive struct {
	q *db.Queries
}

// NewPGArchive wraps a pgx pool (or transaction) and ensures the table exists.
func NewPGArchive(ctx context.Context, conn db.DBTX) (*PGArchive, error) {
	q := db.New(conn)
	if err := q.EnsureAssetJobs(ctx); err != nil {
		return nil, fmt.Errorf("ensure asset_jobs: %w", err)
	}
	return &PGArchive{q: q}, nil
}

func (a *PGArchive) Save(ctx context.Context, rec domain.JobRecord, result *domain.Result) error {
	var payload []byte
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		payload = raw
	}
	err := a.q.UpsertAssetJob(ctx, db.UpsertAssetJobParams{
		JobID:        rec.JobID,
		Status:       string(rec.Status),
		Stage:        rec.Stage,
		Progress:     int32(rec.Progress),
		PipelineMode: string(rec.PipelineMode),
		OutputMode:   string(rec.OutputMode),
		VideoPath:    rec.VideoPath,
		ResultPath:   rec.ResultPath,
		ErrorMessage: rec.ErrorMessage,
		Result:       payload,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("upsert asset job %s: %w", rec.JobID, err)
	}
	return nil
}
