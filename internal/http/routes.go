package httpx

import (
	"log/slog"
	"net/http"

	"github.com/openscale/jobforge/config"
	"github.com/openscale/jobforge/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Queue      *service.QueueService
	Reporter   *service.ReporterService
	Controller ProcessorController
	Auth       config.AuthConfig
	// Compression settings for API responses.
	CompressionEnabled bool
	CompressionLevel   int
	Logger             *slog.Logger // Logger for request and middleware errors (optional)
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	registerJobRoutes(mux, &JobHandlers{Queue: services.Queue})
	registerQueueRoutes(mux, &QueueHandlers{Reporter: services.Reporter})
	if services.Controller != nil {
		registerProcessorRoutes(mux, &ProcessorHandlers{Controller: services.Controller})
	}
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var handler http.Handler = mux
	handler = WithPrincipal(services.Auth)(handler)
	if services.CompressionEnabled {
		handler = Compression(CompressionConfig{
			Level:  services.CompressionLevel,
			Logger: logger,
		})(handler)
	}
	handler = Logging(logger)(handler)
	return Recover(logger)(handler)
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /api/jobs", h.SubmitJob)
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", h.CancelJob)
}

func registerQueueRoutes(mux *http.ServeMux, h *QueueHandlers) {
	mux.HandleFunc("GET /api/queue/stats", h.GetStats)
	mux.HandleFunc("GET /api/queue/health", h.GetHealth)
}

func registerProcessorRoutes(mux *http.ServeMux, h *ProcessorHandlers) {
	operator := RequireOperator()
	mux.Handle("POST /api/processor/start", operator(http.HandlerFunc(h.Start)))
	mux.Handle("POST /api/processor/stop", operator(http.HandlerFunc(h.Stop)))
	mux.Handle("GET /api/processor/status", operator(http.HandlerFunc(h.Status)))
}
