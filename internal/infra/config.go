package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	GeneratedDir      string
	PublicPrefix      string
	StatusPrefix      string
	GCPProjectID      string
	GCPLocation       string
	GeminiAPIKey      string
	GeminiBaseURL     string
	FFmpegPath        string
	OCREnabled        bool
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	LegacyWaitTimeout time.Duration
	CORSOrigins       []string

	Models   ModelConfig
	Pipeline PipelineConfig
}

// ModelConfig names the provider models used by each collaborator.
type ModelConfig struct {
	Image            string
	Video            string
	Audio            string
	Voice            string
	ScenePlanner     string
	CreatorReference string
	CreatorSearch    bool
}

// PipelineConfig tunes the orchestrator. It may be overlaid from YAML.
type PipelineConfig struct {
	MaxWorkerJobs          int           `yaml:"max_worker_jobs"`
	MaxScenePlanAttempts   int           `yaml:"max_scene_plan_attempts"`
	MaxImageAttempts       int           `yaml:"max_image_generation_attempts"`
	BackoffBase            time.Duration `yaml:"image_retry_backoff_base"`
	BackoffMax             time.Duration `yaml:"image_retry_backoff_max"`
	BackoffFloor           time.Duration `yaml:"image_retry_backoff_floor"`
	RequestInterval        time.Duration `yaml:"image_request_interval"`
	MinImageBytes          int           `yaml:"min_image_bytes"`
	MaxCharsFrame          int           `yaml:"max_allowed_text_chars_frame"`
	MaxCharsThumbnail      int           `yaml:"max_allowed_text_chars_thumbnail"`
	OutputWidth            int           `yaml:"output_image_width"`
	OutputHeight           int           `yaml:"output_image_height"`
	PreviewFPS             int           `yaml:"preview_video_fps"`
	PreviewBitrate         string        `yaml:"preview_video_bitrate"`
	VideoQualityThreshold  float64       `yaml:"video_quality_threshold"`
	MaxVideoAttempts       int           `yaml:"max_video_attempts"`
	VideoPollInterval      time.Duration `yaml:"video_poll_interval"`
	VideoMaxPolls          int           `yaml:"video_max_polls"`
	WaitPollInterval       time.Duration `yaml:"wait_poll_interval"`
	DefaultMaxVideoSeconds int           `yaml:"default_max_video_seconds"`
}

// DefaultPipelineConfig mirrors the production defaults of the service.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxWorkerJobs:          1,
		MaxScenePlanAttempts:   1,
		MaxImageAttempts:       5,
		BackoffBase:            4 * time.Second,
		BackoffMax:             30 * time.Second,
		BackoffFloor:           500 * time.Millisecond,
		RequestInterval:        1200 * time.Millisecond,
		MinImageBytes:          1024,
		MaxCharsFrame:          12,
		MaxCharsThumbnail:      12,
		OutputWidth:            640,
		OutputHeight:           360,
		PreviewFPS:             10,
		PreviewBitrate:         "550k",
		VideoQualityThreshold:  0.55,
		MaxVideoAttempts:       2,
		VideoPollInterval:      10 * time.Second,
		VideoMaxPolls:          45,
		WaitPollInterval:       1500 * time.Millisecond,
		DefaultMaxVideoSeconds: 5,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		GeneratedDir:      getEnv("GENERATED_DIR", "./generated"),
		PublicPrefix:      strings.TrimRight(getEnv("GENERATED_PUBLIC_PREFIX", "/generated"), "/"),
		StatusPrefix:      strings.TrimRight(getEnv("JOB_STATUS_PREFIX", "/api/assets/jobs"), "/"),
		GCPProjectID:      os.Getenv("GCP_PROJECT_ID"),
		GCPLocation:       getEnv("GCP_LOCATION", "global"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:     os.Getenv("GEMINI_BASE_URL"),
		FFmpegPath:        getEnv("FFMPEG_PATH", "ffmpeg"),
		OCREnabled:        getEnvBool("OCR_ENABLED", true),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		LegacyWaitTimeout: time.Second * time.Duration(getEnvInt("LEGACY_WAIT_TIMEOUT_SECONDS", 90)),
		CORSOrigins:       getEnvList("CORS_ALLOWED_ORIGINS"),
		Models: ModelConfig{
			Image:            getEnv("GCP_VERTEX_IMAGE_MODEL", "gemini-3-pro-image-preview"),
			Video:            getEnv("GCP_VERTEX_VIDEO_MODEL", "veo-3.1-generate-preview"),
			Audio:            getEnv("GCP_VERTEX_AUDIO_MODEL", "gemini-2.5-flash-preview-tts"),
			Voice:            getEnv("TTS_VOICE_NAME", "Kore"),
			ScenePlanner:     getEnv("SCENE_PLANNER_MODEL", "gemini-2.5-pro"),
			CreatorReference: getEnv("CREATOR_REFERENCE_MODEL", "gemini-2.5-pro"),
			CreatorSearch:    getEnvBool("CREATOR_REFERENCE_SEARCH_ENABLED", true),
		},
	}

	pipeline := DefaultPipelineConfig()
	if path := strings.TrimSpace(os.Getenv("PIPELINE_CONFIG_FILE")); path != "" {
		if err := overlayPipelineFile(path, &pipeline); err != nil {
			return nil, err
		}
	}
	applyPipelineEnv(&pipeline)
	cfg.Pipeline = pipeline

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlayPipelineFile(path string, p *PipelineConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("parse pipeline config: %w", err)
	}
	return nil
}

func applyPipelineEnv(p *PipelineConfig) {
	p.MaxWorkerJobs = getEnvInt("MAX_WORKER_JOBS", p.MaxWorkerJobs)
	p.MaxScenePlanAttempts = getEnvInt("MAX_SCENE_PLAN_ATTEMPTS", p.MaxScenePlanAttempts)
	p.MaxImageAttempts = getEnvInt("MAX_IMAGE_GENERATION_ATTEMPTS", p.MaxImageAttempts)
	p.BackoffBase = getEnvSeconds("IMAGE_RETRY_BACKOFF_BASE_SEC", p.BackoffBase)
	p.BackoffMax = getEnvSeconds("IMAGE_RETRY_BACKOFF_MAX_SEC", p.BackoffMax)
	p.RequestInterval = getEnvSeconds("IMAGE_REQUEST_INTERVAL_SEC", p.RequestInterval)
	p.MaxCharsFrame = getEnvInt("MAX_ALLOWED_TEXT_CHARS_FRAME", p.MaxCharsFrame)
	p.MaxCharsThumbnail = getEnvInt("MAX_ALLOWED_TEXT_CHARS_THUMBNAIL", p.MaxCharsThumbnail)
	p.OutputWidth = getEnvInt("OUTPUT_IMAGE_WIDTH", p.OutputWidth)
	p.OutputHeight = getEnvInt("OUTPUT_IMAGE_HEIGHT", p.OutputHeight)
	p.PreviewFPS = getEnvInt("PREVIEW_VIDEO_FPS", p.PreviewFPS)
	p.PreviewBitrate = getEnv("PREVIEW_VIDEO_BITRATE", p.PreviewBitrate)
	p.VideoQualityThreshold = getEnvFloat("VIDEO_QUALITY_THRESHOLD", p.VideoQualityThreshold)
	p.MaxVideoAttempts = getEnvInt("MAX_VIDEO_ATTEMPTS", p.MaxVideoAttempts)
	p.DefaultMaxVideoSeconds = getEnvInt("DEFAULT_MAX_VIDEO_SECONDS", p.DefaultMaxVideoSeconds)
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.GeneratedDir) == "" {
		return fmt.Errorf("GENERATED_DIR is required")
	}
	p := c.Pipeline
	if p.MaxWorkerJobs < 1 {
		return fmt.Errorf("MAX_WORKER_JOBS must be at least 1")
	}
	if p.MaxImageAttempts < 1 {
		return fmt.Errorf("MAX_IMAGE_GENERATION_ATTEMPTS must be at least 1")
	}
	if p.MaxScenePlanAttempts < 1 {
		return fmt.Errorf("MAX_SCENE_PLAN_ATTEMPTS must be at least 1")
	}
	if p.BackoffMax < p.BackoffBase {
		return fmt.Errorf("IMAGE_RETRY_BACKOFF_MAX_SEC must not be below IMAGE_RETRY_BACKOFF_BASE_SEC")
	}
	if p.OutputWidth <= 0 || p.OutputHeight <= 0 {
		return fmt.Errorf("output image resolution must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvSeconds reads a fractional number of seconds.
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
