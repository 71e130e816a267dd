package httpapi

import (
	"net/http"
	"strings"

	"assetgen/internal/http/handlers"
	"assetgen/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options configures the outer surface around the job handlers.
type Options struct {
	Logger       zerolog.Logger
	CORSOrigins  []string
	GeneratedDir string
	PublicPrefix string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/assets", func(r chi.Router) {
		r.Post("/generate", app.GenerateAssets)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", app.CreateStoryboardJob)
			r.Post("/storyboard", app.CreateStoryboardJob)
			r.Post("/video", app.CreateVideoJob)
			r.Post("/legacy/{mode}", app.CreateLegacyJob)
			r.Get("/{job_id}", app.JobStatus)
			r.Get("/{job_id}/result", app.JobResult)
			r.Get("/{job_id}/bundle.zip", app.JobBundle)
		})
	})

	// Artifacts are served read-only from the generated directory so the
	// paths in status and result documents resolve.
	if opts.GeneratedDir != "" {
		prefix := "/" + strings.Trim(opts.PublicPrefix, "/")
		if prefix == "/" {
			prefix = "/generated"
		}
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(opts.GeneratedDir)))
		r.Get(prefix+"/*", files.ServeHTTP)
	}

	return otelhttp.NewHandler(r, "http.server")
}
