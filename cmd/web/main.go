package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ecommerce-analytics/internal/config"
	"ecommerce-analytics/internal/loader"
	"ecommerce-analytics/internal/metrics"
	"ecommerce-analytics/internal/middleware"
	"ecommerce-analytics/internal/observability"
	"ecommerce-analytics/internal/server"
	"ecommerce-analytics/internal/services"
	"ecommerce-analytics/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// newHandler wires routes and the middleware chain.
func newHandler(cfg *config.Config, analytics *services.Analytics, logger *slog.Logger) http.Handler {
	srv := server.NewServer(analytics, logger, &server.TemplateHandlers{
		Dashboard: handleDashboard,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.Metrics(),
	)
	return chain(srv)
}

func newAnalytics(cfg *config.Config, logger *slog.Logger) (*services.Analytics, error) {
	settings, err := services.SettingsFromConfig(cfg.Analysis)
	if err != nil {
		return nil, err
	}
	opts := []services.Option{services.WithLogger(logger)}
	if cfg.Cache.Enabled {
		opts = append(opts, services.WithCacheDir(cfg.Cache.Dir))
	}
	return services.NewAnalytics(settings, opts...), nil
}

// loadReport computes the report while the server is already answering; API
// routes return 503 until it completes.
func loadReport(ctx context.Context, analytics *services.Analytics, src loader.Source, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := analytics.Load(ctx, src); err != nil {
		logger.Error("failed to compute report", "source", src.Describe(), "error", err)
		return err
	}
	logger.Info("report ready", "source", src.Describe(), "duration", time.Since(start))
	return nil
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	logger.Info("starting application",
		"version", version,
		"source", cfg.Source.Kind,
		"addr", cfg.Address(),
	)

	analytics, err := newAnalytics(cfg, logger)
	if err != nil {
		logger.Error("invalid analysis settings", "error", err)
		os.Exit(1)
	}

	openCtx, cancelOpen := context.WithTimeout(context.Background(), cfg.Server.LoadTimeout)
	src, err := loader.Open(openCtx, cfg.Source.Kind, cfg.Source.Dir, cfg.Source.DSN, loader.DefaultTables())
	cancelOpen()
	if err != nil {
		logger.Error("failed to open data source", "error", err)
		os.Exit(1)
	}

	loadCtx, cancelLoad := context.WithCancel(context.Background())
	defer cancelLoad()
	go func() {
		_ = loadReport(loadCtx, analytics, src, cfg.Server.LoadTimeout, logger)
	}()

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook("report-load", func(ctx context.Context) error {
		cancelLoad()
		return nil
	})
	gracefulServer.RegisterShutdownHook("source", func(ctx context.Context) error {
		logger.Info("closing data source", "source", src.Describe())
		return src.Close()
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
