// Package main provides the gateway server implementation.
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/agentflow/api/handlers"
	"github.com/BaSui01/agentflow/config"
	"github.com/BaSui01/agentflow/internal/database"
	"github.com/BaSui01/agentflow/internal/metrics"
	"github.com/BaSui01/agentflow/internal/server"
	"github.com/BaSui01/agentflow/internal/telemetry"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// healthCheckInterval is how often the background sweep re-checks every
// registered provider and records the result as a metric.
const healthCheckInterval = 30 * time.Second

// Server is the gateway's main process: HTTP + metrics listeners, the
// provider registry, and the background health-check sweep.
type Server struct {
	cfg    *config.Settings
	logger *zap.Logger

	registry *llm.ProviderRegistry
	router   *router.Router
	otel     *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager
	poolManager    *database.PoolManager

	chatHandler   *handlers.ChatHandler
	modelsHandler *handlers.ModelsHandler
	healthHandler *handlers.HealthHandler

	metricsCollector *metrics.Collector

	stopHealthSweep context.CancelFunc
	wg              sync.WaitGroup
}

// NewServer creates a new gateway server instance.
func NewServer(cfg *config.Settings, logger *zap.Logger, registry *llm.ProviderRegistry, rtr *router.Router, db *gorm.DB, otel *telemetry.Providers) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		router:   rtr,
		otel:     otel,
	}

	if db != nil {
		if pm, err := database.NewPoolManager(db, database.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger); err != nil {
			logger.Warn("failed to init connection pool manager", zap.Error(err))
		} else {
			s.poolManager = pm
		}
	}

	return s
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start initializes handlers and the background health sweep, then brings up
// the HTTP and metrics listeners.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("gateway", s.logger)

	s.initHandlers()
	s.startHealthSweep()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.Port),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

func (s *Server) initHandlers() {
	s.chatHandler = handlers.NewChatHandler(s.router, s.logger)
	s.modelsHandler = handlers.NewModelsHandler(s.router, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.registry, s.logger)

	s.logger.Info("Handlers initialized")
}

// startHealthSweep runs a periodic HealthCheckAll across the registry and
// records each provider's result via the metrics collector, so
// "llm_provider_healthy" reflects reality between requests rather than only
// on demand from GET /health.
func (s *Server) startHealthSweep() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopHealthSweep = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(healthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				statuses := s.registry.HealthCheckAll(ctx)
				for id, status := range statuses {
					s.metricsCollector.RecordProviderHealth(id, status.Healthy)
				}
			}
		}
	}()
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/", s.healthHandler.HandleRoot)
	mux.HandleFunc("/v1/chat/completions", s.chatHandler.HandleCompletion)
	mux.HandleFunc("/v1/models", s.modelsHandler.HandleList)

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(context.Background(), s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.String("addr", serverConfig.Addr))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown blocks on the HTTP manager's signal handling, then runs
// the shutdown sequence.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops the health sweep, the HTTP server and the metrics server,
// then destroys every registered provider and closes the database pool and
// telemetry, in that order.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.stopHealthSweep != nil {
		s.stopHealthSweep()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.registry != nil {
		s.registry.Clear()
	}

	if s.poolManager != nil {
		if err := s.poolManager.Close(); err != nil {
			s.logger.Error("Database pool shutdown error", zap.Error(err))
		}
	}

	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
