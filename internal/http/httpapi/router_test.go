package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/http/handlers"
	"assetgen/internal/pipeline"

	"github.com/rs/zerolog"
)

const validBrief = `{"meta":{"source_signal_id":"sig"},"script":{"title":"t","hook_0_15s":"h","body_15_150s":[{"t":"0","line":"l"}]}}`

type fakeJobs struct {
	create func(ctx context.Context, brief jsoncfg.Brief, mode domain.Mode) (pipeline.CreateResponse, error)
	status func(id string) (domain.JobRecord, error)
	result func(ctx context.Context, id string) (domain.Result, error)
	bundle func(ctx context.Context, id string) ([]byte, error)
	wait   func(ctx context.Context, brief jsoncfg.Brief, mode domain.Mode, timeout time.Duration) (int, any)
}

func (f *fakeJobs) Create(ctx context.Context, brief jsoncfg.Brief, mode domain.Mode) (pipeline.CreateResponse, error) {
	if f.create == nil {
		return pipeline.CreateResponse{}, errors.New("unexpected create")
	}
	return f.create(ctx, brief, mode)
}

func (f *fakeJobs) Status(id string) (domain.JobRecord, error) {
	if f.status == nil {
		return domain.JobRecord{}, errors.New("unexpected status")
	}
	return f.status(id)
}

func (f *fakeJobs) Result(ctx context.Context, id string) (domain.Result, error) {
	if f.result == nil {
		return domain.Result{}, errors.New("unexpected result")
	}
	return f.result(ctx, id)
}

func (f *fakeJobs) Bundle(ctx context.Context, id string) ([]byte, error) {
	if f.bundle == nil {
		return nil, errors.New("unexpected bundle")
	}
	return f.bundle(ctx, id)
}

func (f *fakeJobs) Wait(ctx context.Context, brief jsoncfg.Brief, mode domain.Mode, timeout time.Duration) (int, any) {
	if f.wait == nil {
		return http.StatusInternalServerError, pipeline.LegacyError{Detail: "unexpected wait"}
	}
	return f.wait(ctx, brief, mode, timeout)
}

func newTestRouter(t *testing.T, jobs *fakeJobs, generatedDir string) http.Handler {
	t.Helper()
	app := handlers.NewApp(jobs, nil, 3*time.Second)
	return NewRouter(app, Options{Logger: zerolog.Nop(), GeneratedDir: generatedDir, PublicPrefix: "/generated"})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreateRoutesSelectMode(t *testing.T) {
	tests := []struct {
		path string
		want domain.Mode
	}{
		{"/api/assets/jobs", domain.ModeStoryboard},
		{"/api/assets/jobs/storyboard", domain.ModeStoryboard},
		{"/api/assets/jobs/video", domain.ModeStoryboardToVideo},
		{"/api/assets/jobs/legacy/video", domain.ModeVideo},
		{"/api/assets/jobs/legacy/image_voice_music", domain.ModeImageVoiceMusic},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var got domain.Mode
			jobs := &fakeJobs{create: func(_ context.Context, b jsoncfg.Brief, mode domain.Mode) (pipeline.CreateResponse, error) {
				got = mode
				if b.Meta.SourceSignalID != "sig" || b.Options.MaxVideoSeconds != jsoncfg.DefaultMaxVideoSeconds {
					t.Fatalf("brief not decoded and normalized: %+v", b)
				}
				return pipeline.CreateResponse{JobID: "job-1", Status: domain.JobStatusQueued, StatusPath: "/api/assets/jobs/job-1", ResultPath: "/generated/job-1/result.json", PipelineMode: mode}, nil
			}}
			rec := do(t, newTestRouter(t, jobs, ""), http.MethodPost, tt.path, validBrief)

			if rec.Code != http.StatusAccepted {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
			}
			if got != tt.want {
				t.Fatalf("mode = %s, want %s", got, tt.want)
			}
			body := decode[map[string]string](t, rec)
			if body["job_id"] != "job-1" || body["status"] != "queued" || body["pipeline_mode"] != string(tt.want) {
				t.Fatalf("unexpected create body %v", body)
			}
		})
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	jobs := &fakeJobs{}
	h := newTestRouter(t, jobs, "")
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"malformed json", "/api/assets/jobs", `{`, http.StatusBadRequest},
		{"missing hook", "/api/assets/jobs", `{"meta":{"source_signal_id":"s"},"script":{"title":"t","body_15_150s":[{"line":"l"}]}}`, http.StatusBadRequest},
		{"storyboard is not a legacy mode", "/api/assets/jobs/legacy/storyboard", validBrief, http.StatusBadRequest},
		{"unknown legacy mode", "/api/assets/jobs/legacy/podcast", validBrief, http.StatusBadRequest},
		{"oversized body", "/api/assets/jobs", `{"meta":{"title":"` + strings.Repeat("x", 2<<20) + `"}}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tt.want, rec.Body.String())
			}
			if body := decode[map[string]string](t, rec); body["detail"] == "" {
				t.Fatalf("error body missing detail: %v", body)
			}
		})
	}
}

func TestCreateMapsOrchestratorErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("schedule job: %w", domain.ErrPoolClosed), http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		jobs := &fakeJobs{create: func(context.Context, jsoncfg.Brief, domain.Mode) (pipeline.CreateResponse, error) {
			return pipeline.CreateResponse{}, tt.err
		}}
		rec := do(t, newTestRouter(t, jobs, ""), http.MethodPost, "/api/assets/jobs", validBrief)
		if rec.Code != tt.want {
			t.Fatalf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestStatusAndResultLookups(t *testing.T) {
	video := "/generated/job-1/storyboard_v1.mp4"
	jobs := &fakeJobs{
		status: func(id string) (domain.JobRecord, error) {
			if id != "job-1" {
				return domain.JobRecord{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
			}
			return domain.JobRecord{JobID: id, Status: domain.JobStatusRunning, Stage: domain.StageStoryboard, Progress: 40, PipelineMode: domain.ModeStoryboard, VideoPath: &video}, nil
		},
		result: func(_ context.Context, id string) (domain.Result, error) {
			switch id {
			case "job-1":
				return domain.Result{}, fmt.Errorf("job %s: %w", id, domain.ErrResultNotReady)
			case "job-2":
				return domain.Result{JobID: id, Status: domain.JobStatusSucceeded}, nil
			case "job-3":
				return domain.Result{}, errors.New("decode result: unexpected EOF")
			default:
				return domain.Result{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
			}
		},
	}
	h := newTestRouter(t, jobs, "")

	rec := do(t, h, http.MethodGet, "/api/assets/jobs/job-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status lookup = %d", rec.Code)
	}
	st := decode[map[string]any](t, rec)
	if st["stage"] != domain.StageStoryboard || st["progress"] != float64(40) || st["video_path"] != video {
		t.Fatalf("unexpected status body %v", st)
	}

	tests := []struct {
		path       string
		wantCode   int
		wantDetail string
	}{
		{"/api/assets/jobs/missing", http.StatusNotFound, "Job not found: missing"},
		{"/api/assets/jobs/job-1/result", http.StatusNotFound, "Result not ready: job-1"},
		{"/api/assets/jobs/job-2/result", http.StatusOK, ""},
		{"/api/assets/jobs/job-3/result", http.StatusInternalServerError, "Result lookup failed: decode result: unexpected EOF"},
		{"/api/assets/jobs/nope/result", http.StatusNotFound, "Job not found: nope"},
	}
	for _, tt := range tests {
		rec := do(t, h, http.MethodGet, tt.path, "")
		if rec.Code != tt.wantCode {
			t.Fatalf("%s: status = %d, want %d", tt.path, rec.Code, tt.wantCode)
		}
		if tt.wantDetail != "" {
			if body := decode[map[string]string](t, rec); body["detail"] != tt.wantDetail {
				t.Fatalf("%s: detail = %q, want %q", tt.path, body["detail"], tt.wantDetail)
			}
		}
	}
}

func TestBundleDownload(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create("job-1/result.json")
	_, _ = f.Write([]byte(`{}`))
	_ = zw.Close()

	jobs := &fakeJobs{bundle: func(_ context.Context, id string) ([]byte, error) {
		if id == "job-1" {
			return buf.Bytes(), nil
		}
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrResultNotReady)
	}}
	h := newTestRouter(t, jobs, "")

	rec := do(t, h, http.MethodGet, "/api/assets/jobs/job-1/bundle.zip", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("bundle = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), `filename="job-1.zip"`) {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if _, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len())); err != nil {
		t.Fatalf("body is not a zip: %v", err)
	}

	if rec := do(t, h, http.MethodGet, "/api/assets/jobs/job-9/bundle.zip", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("bundle of running job = %d, want 404", rec.Code)
	}
}

func TestGenerateWaitsWithConfiguredTimeout(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		code     int
		body     any
		wantMode domain.Mode
	}{
		{"success", "", http.StatusOK, pipeline.LegacySuccess{RequestID: "job-1", ThumbnailPath: "/generated/job-1/thumbnail.png"}, domain.ModeImageVoiceMusic},
		{"still running", "?mode=video", http.StatusAccepted, pipeline.LegacyAccepted{JobID: "job-1", Status: "running"}, domain.ModeVideo},
		{"failed", "?mode=storyboard", http.StatusInternalServerError, pipeline.LegacyError{Detail: "scene plan: invalid"}, domain.ModeStoryboard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{wait: func(_ context.Context, _ jsoncfg.Brief, mode domain.Mode, timeout time.Duration) (int, any) {
				if mode != tt.wantMode {
					t.Fatalf("mode = %s, want %s", mode, tt.wantMode)
				}
				if timeout != 3*time.Second {
					t.Fatalf("timeout = %v", timeout)
				}
				return tt.code, tt.body
			}}
			rec := do(t, newTestRouter(t, jobs, ""), http.MethodPost, "/api/assets/generate"+tt.query, validBrief)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			want, _ := json.Marshal(tt.body)
			if strings.TrimSpace(rec.Body.String()) != string(want) {
				t.Fatalf("body = %s, want %s", rec.Body.String(), want)
			}
		})
	}

	rec := do(t, newTestRouter(t, &fakeJobs{}, ""), http.MethodPost, "/api/assets/generate?mode=podcast", validBrief)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown mode = %d, want 400", rec.Code)
	}
}

func TestRouterAmbientRoutes(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "job-1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "job-1", "thumbnail.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := newTestRouter(t, &fakeJobs{}, dir)

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/v1/healthz", http.StatusOK, `"ok"`},
		{"/v1/openapi.json", http.StatusOK, "/api/assets/jobs/{job_id}/result"},
		{"/v1/docs", http.StatusOK, "redoc"},
		{"/metrics", http.StatusOK, "go_goroutines"},
		{"/generated/job-1/thumbnail.png", http.StatusOK, "png-bytes"},
		{"/generated/job-1/missing.png", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rec := do(t, h, http.MethodGet, tt.path, "")
		if rec.Code != tt.wantCode {
			t.Fatalf("%s: status = %d, want %d", tt.path, rec.Code, tt.wantCode)
		}
		if !strings.Contains(rec.Body.String(), tt.contains) {
			t.Fatalf("%s: body missing %q", tt.path, tt.contains)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: request id header missing", tt.path)
		}
	}
}
