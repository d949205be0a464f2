package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzzdr/vol-analytics-engine/internal/stream"
	"github.com/rzzdr/vol-analytics-engine/pkg/metrics"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// Config holds the configuration for the API server
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	Environment    string
	// MetricsEnabled exposes /metrics on the server when set
	MetricsEnabled bool
}

// Server represents the API server
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	hub        *stream.Hub
	recorder   *metrics.Recorder
	log        *logger.Logger
}

// NewServer creates a new API server
func NewServer(config Config, handlers *Handlers, hub *stream.Hub, recorder *metrics.Recorder) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.RateLimitRPS <= 0 {
		config.RateLimitRPS = 50
	}
	if config.RateLimitBurst <= 0 {
		config.RateLimitBurst = 100
	}

	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: handlers,
		hub:      hub,
		recorder: recorder,
		log:      logger.GetLogger("api.server"),
	}

	server.setupRoutes()

	return server
}

// Start starts the API server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Infof("Starting API server on %s", addr)

	return s.httpServer.ListenAndServe()
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		s.log.Info("Stopping API server")
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware())
	s.router.Use(MetricsMiddleware(s.recorder))
	s.router.Use(ErrorMiddleware())
	s.router.Use(CORSMiddleware())

	s.router.GET("/health", s.handlers.HealthCheckHandler)
	if s.config.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	if s.hub != nil {
		s.router.GET("/ws", func(c *gin.Context) {
			s.hub.HandleWebSocket(c.Writer, c.Request)
		})
	}

	api := s.router.Group("/api/v1")
	api.Use(RateLimitMiddleware(s.config.RateLimitRPS, s.config.RateLimitBurst))

	analytics := api.Group("/analytics")
	analytics.POST("/price", s.handlers.PriceHandler)
	analytics.POST("/simulate", s.handlers.SimulateHandler)
	analytics.POST("/simulate/paths", s.handlers.SimulatePathsHandler)
	analytics.POST("/hv", s.handlers.HistoricalVolHandler)
	analytics.POST("/signal", s.handlers.SignalHandler)
	analytics.POST("/smile", s.handlers.SmileHandler)
	analytics.POST("/chain", s.handlers.ChainHandler)

	api.GET("/history/:symbol", s.handlers.GetHistoryHandler)
	api.GET("/symbols", s.handlers.GetSymbolsHandler)
}
