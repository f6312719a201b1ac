package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/autoparts/backoffice/config"
	"example.com/autoparts/backoffice/internal/database"
	"example.com/autoparts/backoffice/internal/metrics"
	"example.com/autoparts/backoffice/internal/repositories"
	"example.com/autoparts/backoffice/internal/services"
	"example.com/autoparts/backoffice/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that flags pending payments awaiting a decision`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connections
	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize store and the payment service
	store := repositories.NewStore(db, readOnlyDB)
	paymentService := services.NewPaymentService(store, metricsCollector, tracer)

	// Start the stale payment sweep cron job
	g.Go(func() error {
		log.Info().
			Dur("interval", cfg.Payments.SweepInterval).
			Dur("stale_after", cfg.Payments.StaleAfter).
			Msg("Starting stale payment sweep")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Payments.SweepInterval),
			gocron.NewTask(func() {
				count, err := paymentService.FlagStalePayments(ctx, cfg.Payments.StaleAfter)
				if err != nil {
					log.Error().Err(err).Msg("Stale payment sweep failed")
					return
				}
				if count > 0 {
					log.Info().Int("count", count).Msg("Stale payment sweep finished")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
