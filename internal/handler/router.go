package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lifecraft/profiler/backend/internal/handler/module"
	"github.com/lifecraft/profiler/backend/internal/handler/session"
	"github.com/lifecraft/profiler/backend/internal/handler/stream"
	"github.com/lifecraft/profiler/backend/internal/handler/suggest"
	"github.com/lifecraft/profiler/backend/internal/handler/ws"
	middlewarePkg "github.com/lifecraft/profiler/backend/internal/middleware"
	moduleModel "github.com/lifecraft/profiler/backend/internal/model/module"
	"github.com/lifecraft/profiler/backend/internal/service/profiling"
	suggestService "github.com/lifecraft/profiler/backend/internal/service/suggest"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(modules moduleModel.Store, engine *profiling.Engine, suggestSvc *suggestService.Service, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		module.New(modules).RegisterRoutes(api)
		session.New(engine, logger).RegisterRoutes(api)
		stream.New(engine, logger).RegisterRoutes(api)
		ws.New(engine, logger).RegisterRoutes(api)
		suggest.New(suggestSvc, logger).RegisterRoutes(api)
	})

	return r
}
