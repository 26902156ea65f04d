package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backoffice/services/complaints/config"
	"example.com/backoffice/services/complaints/internal/cache"
	"example.com/backoffice/services/complaints/internal/database"
	"example.com/backoffice/services/complaints/internal/geoip"
	"example.com/backoffice/services/complaints/internal/messaging"
	"example.com/backoffice/services/complaints/internal/metrics"
	"example.com/backoffice/services/complaints/internal/repository"
	"example.com/backoffice/services/complaints/internal/search"
	"example.com/backoffice/services/complaints/internal/services"
	"example.com/backoffice/services/complaints/internal/tracing"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to ingest complaint submissions from Azure Service Bus and refresh volume gauges`,
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

	// Initialize database connection
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = &tracing.NewRelicTracer{}
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without indexing")
	}

	// Initialize the complaint event publisher
	publisher, err := messaging.NewPublisher(cfg.Azure)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Service Bus publisher, continuing without events")
		publisher = nil
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize services
	complaintRepo := repository.NewComplaintRepository(db)
	resolver := geoip.NewResolver(cfg.GeoIP, redisCache)
	complaintService := services.NewComplaintService(
		complaintRepo, resolver, redisCache, elasticClient, publisher, metricsCollector, tracer)

	// Initialize the queued-submission consumer
	consumer, err := messaging.NewSubmissionConsumer(cfg.Azure)
	if err != nil {
		return err
	}

	// Start the submission consumer
	g.Go(func() error {
		log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting complaint submission consumer")
		return consumer.ProcessMessages(ctx, complaintService.ProcessSubmissionMessage)
	})

	// Start the complaint volume snapshot cron job
	g.Go(func() error {
		log.Info().Msg("Starting complaint volume snapshot job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(5*time.Minute),
			gocron.NewTask(func() {
				if err := complaintService.SnapshotVolume(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to snapshot complaint volume")
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

	if err := consumer.Close(); err != nil {
		log.Error().Err(err).Msg("Consumer shutdown error")
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
