package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"assetgen/internal/bootstrap"
	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/infra"
	"assetgen/internal/infra/metrics"
)

// worker runs one brief through the pipeline in-process and prints the
// blocking response body. It exits 0 on success, 2 when the job is still
// running at the timeout and 1 otherwise.
func main() {
	os.Exit(run())
}

func run() int {
	var (
		briefFlag   string
		modeFlag    string
		timeoutFlag time.Duration
	)
	flag.StringVar(&briefFlag, "brief", "", "path to a brief JSON file (- reads stdin)")
	flag.StringVar(&modeFlag, "mode", string(domain.ModeStoryboard), "pipeline mode (storyboard, storyboard_to_video, video, image_voice_music)")
	flag.DurationVar(&timeoutFlag, "timeout", 30*time.Minute, "how long to wait for the job before giving up")
	flag.Parse()

	_ = godotenv.Load()

	if strings.TrimSpace(briefFlag) == "" {
		fmt.Fprintln(os.Stderr, "-brief is required")
		return 1
	}
	mode, err := domain.ParseMode(modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	raw, err := readBrief(briefFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read brief: %v\n", err)
		return 1
	}
	brief, err := jsoncfg.DecodeBrief(raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	logger := infra.NewLogger(cfg.AppEnv)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := infra.InitTracing(ctx, logger, cfg.AppEnv)
	defer func() { _ = shutdownTracing(context.Background()) }()

	svc, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("worker: failed to build pipeline")
		return 1
	}

	code, body := svc.Orchestrator.Wait(ctx, brief, mode, timeoutFlag)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)

	// An interrupted or timed out run is abandoned; the job record is only
	// held in memory by this process.
	if code != http.StatusAccepted {
		drainCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		_ = svc.Orchestrator.Close(drainCtx)
		cancel()
	}
	svc.Close()

	switch code {
	case http.StatusOK:
		return 0
	case http.StatusAccepted:
		return 2
	default:
		return 1
	}
}

func readBrief(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
