package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/packhub/boxflow/internal/api/handler"
	apimw "github.com/packhub/boxflow/internal/api/middleware"
	"github.com/packhub/boxflow/internal/dispatcher"
	"github.com/packhub/boxflow/internal/repository"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	repo repository.QueueRepository,
	d *dispatcher.Dispatcher,
	reg prometheus.Gatherer,
	logger *zap.Logger,
	onIngest func(),
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	ih := handler.NewIngestHandler(repo, logger, onIngest)
	qh := handler.NewQueueHandler(repo, logger)
	dh := handler.NewDispatchHandler(d, logger)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Warehouse webhook. chi answers non-POST methods with 405.
	r.Post("/webhooks/order-allocated", ih.Ingest)

	r.Route("/api/v1", func(r chi.Router) {
		// Queue inspection — /stats must be registered before /{id}
		// so chi does not treat the literal string "stats" as an ID.
		r.Get("/queue/stats", qh.Stats)
		r.Get("/queue", qh.List)
		r.Get("/queue/{id}", qh.GetByID)

		// On-demand dispatch entry point
		r.Post("/dispatch/run", dh.Run)
	})

	return r
}
