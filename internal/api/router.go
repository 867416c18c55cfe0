package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/medscribe/notequeue/internal/api/handler"
	apimw "github.com/medscribe/notequeue/internal/api/middleware"
	"github.com/medscribe/notequeue/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route.
func NewRouter(
	svc *service.QueueService,
	db handler.Pinger,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	qh := handler.NewQueueHandler(svc, logger)
	mh := handler.NewMetricsHandler(svc)
	hh := handler.NewHealthHandler(db)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/metrics", mh.GetMetrics)

		r.Group(func(r chi.Router) {
			r.Use(apimw.OwnerID)

			r.Route("/notes/{kind}/{noteID}", func(r chi.Router) {
				r.Post("/queue", qh.Enqueue)
				r.Delete("/queue", qh.DeleteForNote)
				r.Post("/regenerate", qh.Regenerate)
				r.Get("/status", qh.Status)
			})

			r.Get("/queue", qh.List)
			r.Delete("/queue/{entryID}", qh.DeleteEntry)
		})
	})

	return r
}
