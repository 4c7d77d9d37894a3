package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/config"
	"github.com/Wirlhawk/skillswap-sub000/internal/api/handlers"
	"github.com/Wirlhawk/skillswap-sub000/internal/api/middleware"
	"github.com/Wirlhawk/skillswap-sub000/internal/services"
	"github.com/Wirlhawk/skillswap-sub000/internal/session"
	"github.com/Wirlhawk/skillswap-sub000/internal/tracing"
)

// Options holds what the server routes requests to
type Options struct {
	Orders     *services.OrderService
	Milestones *services.MilestoneService
	Deliveries *services.DeliveryService
	Reviews    *services.ReviewService
	Sessions   session.Provider
	// Search is nil when Elasticsearch is not configured
	Search       handlers.OrderSearcher
	HealthChecks map[string]handlers.HealthCheck
	Tracer       tracing.Tracer
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	options    Options
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, opts Options) *Server {
	if opts.Tracer == nil {
		opts.Tracer = tracing.NewNoopTracer()
	}

	server := &Server{
		config:  cfg,
		options: opts,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	return server
}

// Handler returns the router, for use in tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = s.config.Server.MaxUploadBytes
	if router.MaxMultipartMemory <= 0 {
		router.MaxMultipartMemory = handlers.DefaultMaxUploadBytes
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Tracing(s.options.Tracer)...)
	if s.config.Server.CorsEnabled {
		router.Use(middleware.CORS(s.config.Server.CorsOrigins))
	}
	if s.config.Server.MetricsEnabled {
		router.Use(middleware.Metrics())
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	handlers.NewHealthHandler(s.options.HealthChecks).RegisterRoutes(router)

	if dir := s.config.Storage.RootDir; dir != "" {
		router.Static("/files", dir)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Session(s.options.Sessions))

	handlers.NewOrderHandler(s.options.Orders, s.options.Search, s.options.Tracer, s.config.Server.GlobalStatsEnabled).RegisterRoutes(v1)
	handlers.NewMilestoneHandler(s.options.Milestones, s.options.Orders, s.options.Tracer).RegisterRoutes(v1)
	handlers.NewDeliveryHandler(s.options.Deliveries, s.options.Tracer, s.config.Server.MaxUploadBytes).RegisterRoutes(v1)
	handlers.NewReviewHandler(s.options.Reviews, s.options.Orders).RegisterRoutes(v1)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	// Create a timeout context for shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
