package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/autoparts/backoffice/config"
	"example.com/autoparts/backoffice/internal/api"
	"example.com/autoparts/backoffice/internal/cache"
	"example.com/autoparts/backoffice/internal/database"
	"example.com/autoparts/backoffice/internal/metrics"
	"example.com/autoparts/backoffice/internal/repositories"
	"example.com/autoparts/backoffice/internal/search"
	"example.com/autoparts/backoffice/internal/services"
	"example.com/autoparts/backoffice/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for delivery notes, payments and the parts listing`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connections
	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = nil
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		elasticClient = nil
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize store and services
	store := repositories.NewStore(db, readOnlyDB)
	orderService := services.NewOrderService(store, redisCache, elasticClient, metricsCollector, tracer)
	paymentService := services.NewPaymentService(store, metricsCollector, tracer)
	partService := services.NewPartService(store, redisCache)

	// Initialize and start the server
	server := api.NewServer(cfg, orderService, paymentService, partService, metricsCollector, tracer)

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			log.Error().Err(err).Msg("Redis shutdown error")
		}
	}
	tracer.Close()

	log.Info().Msg("Shutting down API server")
	return nil
}
