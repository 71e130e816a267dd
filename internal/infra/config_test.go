package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GENERATED_DIR", "")
	t.Setenv("MAX_WORKER_JOBS", "")
	t.Setenv("PIPELINE_CONFIG_FILE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GeneratedDir != "./generated" {
		t.Fatalf("GeneratedDir mismatch: got %q", cfg.GeneratedDir)
	}
	if cfg.Pipeline.MaxWorkerJobs != 1 {
		t.Fatalf("MaxWorkerJobs mismatch: got %d want 1", cfg.Pipeline.MaxWorkerJobs)
	}
	if cfg.Pipeline.BackoffBase != 4*time.Second || cfg.Pipeline.BackoffMax != 30*time.Second {
		t.Fatalf("backoff mismatch: %v/%v", cfg.Pipeline.BackoffBase, cfg.Pipeline.BackoffMax)
	}
	if cfg.PublicPrefix != "/generated" {
		t.Fatalf("PublicPrefix mismatch: got %q", cfg.PublicPrefix)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PIPELINE_CONFIG_FILE", "")
	t.Setenv("MAX_WORKER_JOBS", "3")
	t.Setenv("IMAGE_RETRY_BACKOFF_BASE_SEC", "0.5")
	t.Setenv("IMAGE_RETRY_BACKOFF_MAX_SEC", "2")
	t.Setenv("OCR_ENABLED", "false")
	t.Setenv("GENERATED_PUBLIC_PREFIX", "/static/generated/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Pipeline.MaxWorkerJobs != 3 {
		t.Fatalf("MaxWorkerJobs = %d, want 3", cfg.Pipeline.MaxWorkerJobs)
	}
	if cfg.Pipeline.BackoffBase != 500*time.Millisecond {
		t.Fatalf("BackoffBase = %v, want 500ms", cfg.Pipeline.BackoffBase)
	}
	if cfg.OCREnabled {
		t.Fatal("OCREnabled should be false")
	}
	if cfg.PublicPrefix != "/static/generated" {
		t.Fatalf("PublicPrefix = %q", cfg.PublicPrefix)
	}
}

func TestLoadConfigYAMLOverlayThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	body := "max_worker_jobs: 4\nimage_retry_backoff_base: 1s\nimage_retry_backoff_max: 8s\npreview_video_fps: 24\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("PIPELINE_CONFIG_FILE", path)
	t.Setenv("MAX_WORKER_JOBS", "2")
	t.Setenv("IMAGE_RETRY_BACKOFF_BASE_SEC", "")
	t.Setenv("IMAGE_RETRY_BACKOFF_MAX_SEC", "")
	t.Setenv("PREVIEW_VIDEO_FPS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Pipeline.MaxWorkerJobs != 2 {
		t.Fatalf("env should win over yaml: got %d", cfg.Pipeline.MaxWorkerJobs)
	}
	if cfg.Pipeline.BackoffBase != time.Second || cfg.Pipeline.BackoffMax != 8*time.Second {
		t.Fatalf("yaml backoff not applied: %v/%v", cfg.Pipeline.BackoffBase, cfg.Pipeline.BackoffMax)
	}
	if cfg.Pipeline.PreviewFPS != 24 {
		t.Fatalf("PreviewFPS = %d, want 24", cfg.Pipeline.PreviewFPS)
	}
	if cfg.Pipeline.MaxImageAttempts != 5 {
		t.Fatalf("untouched keys keep defaults: got %d", cfg.Pipeline.MaxImageAttempts)
	}
}

func TestLoadConfigRejectsZeroWorkers(t *testing.T) {
	t.Setenv("PIPELINE_CONFIG_FILE", "")
	t.Setenv("MAX_WORKER_JOBS", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for MAX_WORKER_JOBS=0")
	}
}

func TestLoadConfigCORSOrigins(t *testing.T) {
	t.Setenv("PIPELINE_CONFIG_FILE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://studio.example ,, http://localhost:3000 ")
	t.Setenv("TTS_VOICE_NAME", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://studio.example" || cfg.CORSOrigins[1] != "http://localhost:3000" {
		t.Fatalf("CORSOrigins = %#v", cfg.CORSOrigins)
	}
	if cfg.Models.Voice != "Kore" {
		t.Fatalf("Voice = %q, want Kore", cfg.Models.Voice)
	}
}
