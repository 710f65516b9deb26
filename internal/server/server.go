package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecommerce-analytics/internal/handlers"
	"ecommerce-analytics/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	if templateHandlers != nil && templateHandlers.Dashboard != nil {
		s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	}
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// REST API
	s.mux.HandleFunc("GET /api/monthly-kpi", s.apiHandlers.HandleMonthlyKPI)
	s.mux.HandleFunc("GET /api/yearly-kpi", s.apiHandlers.HandleYearlyKPI)
	s.mux.HandleFunc("GET /api/seasonality", s.apiHandlers.HandleSeasonality)
	s.mux.HandleFunc("GET /api/rfm", s.apiHandlers.HandleRFM)
	s.mux.HandleFunc("GET /api/segments", s.apiHandlers.HandleSegments)
	s.mux.HandleFunc("GET /api/top-categories", s.apiHandlers.HandleTopCategories)
	s.mux.HandleFunc("GET /api/top-states", s.apiHandlers.HandleTopStates)
	s.mux.HandleFunc("GET /charts/{file}", s.apiHandlers.HandleChart)

	// Datastar SSE
	s.mux.HandleFunc("GET /sse/monthly-kpi", s.sseHandlers.HandleMonthlyKPI)
	s.mux.HandleFunc("GET /sse/seasonality", s.sseHandlers.HandleSeasonality)
	s.mux.HandleFunc("GET /sse/segments", s.sseHandlers.HandleSegments)
	s.mux.HandleFunc("GET /sse/delivery", s.sseHandlers.HandleDelivery)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
