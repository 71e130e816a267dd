package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"

	"github.com/go-chi/chi/v5"
)

const maxBriefBytes = 1 << 20

// CreateStoryboardJob handles both the default create route and the explicit
// storyboard route. Neither calls a video provider.
func (a *App) CreateStoryboardJob(w http.ResponseWriter, r *http.Request) {
	a.create(w, r, domain.ModeStoryboard)
}

func (a *App) CreateVideoJob(w http.ResponseWriter, r *http.Request) {
	a.create(w, r, domain.ModeStoryboardToVideo)
}

// CreateLegacyJob runs one of the first-generation modes named in the path.
func (a *App) CreateLegacyJob(w http.ResponseWriter, r *http.Request) {
	mode, err := domain.ParseMode(chi.URLParam(r, "mode"))
	if err != nil || !mode.Legacy() {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unsupported legacy mode %q", chi.URLParam(r, "mode")))
		return
	}
	a.create(w, r, mode)
}

func (a *App) create(w http.ResponseWriter, r *http.Request, mode domain.Mode) {
	brief, ok := a.decodeBrief(w, r)
	if !ok {
		return
	}
	resp, err := a.Jobs.Create(r.Context(), brief, mode)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidBrief):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, domain.ErrPoolClosed):
			a.error(w, http.StatusServiceUnavailable, "unavailable", "Job creation failed: "+err.Error())
		default:
			a.Logger.Error().Err(err).Str("mode", string(mode)).Msg("create job")
			a.error(w, http.StatusInternalServerError, "internal", "Job creation failed: "+err.Error())
		}
		return
	}
	a.json(w, http.StatusAccepted, resp)
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	rec, err := a.Jobs.Status(jobID)
	if err != nil {
		a.lookupError(w, jobID, err, "Status lookup failed")
		return
	}
	a.json(w, http.StatusOK, rec)
}

func (a *App) JobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	res, err := a.Jobs.Result(r.Context(), jobID)
	if err != nil {
		a.lookupError(w, jobID, err, "Result lookup failed")
		return
	}
	a.json(w, http.StatusOK, res)
}

// JobBundle streams a zip of every artifact of a finished job.
func (a *App) JobBundle(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	data, err := a.Jobs.Bundle(r.Context(), jobID)
	if err != nil {
		a.lookupError(w, jobID, err, "Bundle failed")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, jobID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GenerateAssets is the blocking legacy endpoint. It defaults to the
// narrated slideshow mode and accepts ?mode= to pick another one.
func (a *App) GenerateAssets(w http.ResponseWriter, r *http.Request) {
	mode := domain.ModeImageVoiceMusic
	if raw := r.URL.Query().Get("mode"); raw != "" {
		m, err := domain.ParseMode(raw)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		mode = m
	}
	brief, ok := a.decodeBrief(w, r)
	if !ok {
		return
	}
	code, body := a.Jobs.Wait(r.Context(), brief, mode, a.WaitTimeout)
	a.json(w, code, body)
}

func (a *App) decodeBrief(w http.ResponseWriter, r *http.Request) (jsoncfg.Brief, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBriefBytes))
	if err != nil {
		a.error(w, http.StatusRequestEntityTooLarge, "bad_request", "brief exceeds size limit")
		return jsoncfg.Brief{}, false
	}
	brief, err := jsoncfg.DecodeBrief(raw)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return jsoncfg.Brief{}, false
	}
	return brief, true
}

func (a *App) lookupError(w http.ResponseWriter, jobID string, err error, prefix string) {
	switch {
	case errors.Is(err, domain.ErrResultNotReady):
		a.error(w, http.StatusNotFound, "not_ready", "Result not ready: "+jobID)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "Job not found: "+jobID)
	default:
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg(prefix)
		a.error(w, http.StatusInternalServerError, "internal", prefix+": "+err.Error())
	}
}
