package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/infra"
	"assetgen/internal/pipeline"

	"github.com/rs/zerolog"
)

// Jobs is the slice of the orchestrator the request layer drives.
type Jobs interface {
	Create(ctx context.Context, brief jsoncfg.Brief, mode domain.Mode) (pipeline.CreateResponse, error)
	Status(id string) (domain.JobRecord, error)
	Result(ctx context.Context, id string) (domain.Result, error)
	Bundle(ctx context.Context, id string) ([]byte, error)
	Wait(ctx context.Context, brief jsoncfg.Brief, mode domain.Mode, timeout time.Duration) (int, any)
}

type App struct {
	Jobs        Jobs
	Logger      zerolog.Logger
	WaitTimeout time.Duration
}

func NewApp(jobs Jobs, logger *infra.Logger, waitTimeout time.Duration) *App {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}
	return &App{Jobs: jobs, Logger: l, WaitTimeout: waitTimeout}
}

// errorBody is the shape of every non-2xx response produced here.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, codeStr, msg string) {
	a.json(w, code, errorBody{Error: codeStr, Detail: msg})
}
