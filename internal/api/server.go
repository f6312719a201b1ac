package api

import (
	"context"
	"net/http"
	"time"

	"example.com/autoparts/backoffice/config"
	"example.com/autoparts/backoffice/internal/api/handlers"
	"example.com/autoparts/backoffice/internal/metrics"
	"example.com/autoparts/backoffice/internal/services"
	"example.com/autoparts/backoffice/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP server
type Server struct {
	config         config.Config
	router         *gin.Engine
	httpServer     *http.Server
	orderService   *services.OrderService
	paymentService *services.PaymentService
	partService    *services.PartService
	metrics        *metrics.Metrics
	tracer         tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	orderService *services.OrderService,
	paymentService *services.PaymentService,
	partService *services.PartService,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
) *Server {
	server := &Server{
		config:         cfg,
		orderService:   orderService,
		paymentService: paymentService,
		partService:    partService,
		metrics:        collector,
		tracer:         tracer,
	}

	router := server.setupRouter()
	server.router = router

	httpServer := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  cfg.ServerTimeout,
		WriteTimeout: cfg.ServerTimeout,
	}
	server.httpServer = httpServer

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(gin.Recovery())

	ordersHandler := handlers.NewOrdersHandler(s.orderService, s.tracer)
	ordersHandler.RegisterRoutes(router)

	paymentsHandler := handlers.NewPaymentsHandler(s.paymentService, s.tracer)
	paymentsHandler.RegisterRoutes(router)

	partsHandler := handlers.NewPartsHandler(s.partService)
	partsHandler.RegisterRoutes(router)

	metricsHandler := handlers.NewMetricsHandler(s.metrics, s.tracer)
	metricsHandler.RegisterRoutes(router)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

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

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
