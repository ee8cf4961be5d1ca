package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	ddbRepo "notification-worker/internal/infra/adapter/persistence/dynamodb"
	pgRepo "notification-worker/internal/infra/adapter/persistence/postgres"
	"notification-worker/internal/infra/db"
	"notification-worker/internal/infra/notifier"
	"notification-worker/internal/infra/queue"
	workerPkg "notification-worker/internal/infra/worker"
	"notification-worker/internal/observability/logging"
	"notification-worker/internal/repository"
	"notification-worker/internal/resilience/circuitbreaker"
	"notification-worker/internal/usecase/dispatch"
	"notification-worker/internal/usecase/notify"
	"notification-worker/internal/usecase/poll"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", slog.Any("error", err))
	}

	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("queue_url", workerConfig.QueueURL),
		slog.Bool("dead_letter_queue", workerConfig.DeadLetterQueueURL != ""),
		slog.Int("pool_size", workerConfig.PoolSize),
		slog.Int("max_delivery_attempts", workerConfig.MaxDeliveryAttempts),
		slog.String("ledger_backend", workerConfig.LedgerBackend),
		slog.String("provider_mode", workerConfig.ProviderMode),
		slog.Int("health_port", workerConfig.HealthPort),
		slog.Int("metrics_port", workerConfig.MetricsPort))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(workerConfig.AWSRegion))
	if err != nil {
		logger.Error("failed to load AWS configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ddbClient := awsddb.NewFromConfig(awsCfg)
	ledger, database, err := initLedger(ctx, logger, ddbClient, workerConfig)
	if err != nil {
		logger.Error("failed to initialize delivery ledger", slog.Any("error", err))
		os.Exit(1)
	}
	if database != nil {
		defer func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", slog.Any("error", err))
			}
		}()
	}

	registry, err := initChannels(logger, awsCfg, workerConfig, initApplications(logger, ddbClient, workerConfig))
	if err != nil {
		logger.Error("failed to initialize notification channels", slog.Any("error", err))
		os.Exit(1)
	}

	queueClient := queue.NewClient(sqs.NewFromConfig(awsCfg), workerConfig.QueueURL, workerConfig.DeadLetterQueueURL, logger)
	dispatcher := dispatch.New(ledger, registry, dispatchConfig(workerConfig))

	// Stats need the poller's in-flight count, the poller needs stats as observer.
	var poller *poll.Poller
	stats := workerPkg.NewStats(func() int { return poller.InFlight() })
	poller = poll.New(queueClient, dispatcher, pollConfig(workerConfig), logger, poll.WithObserver(stats))

	// Servers stop on their own once ctx is cancelled.
	serverCtx, stopServers := context.WithCancel(context.Background())
	defer stopServers()

	startMetricsServer(serverCtx, logger, workerConfig.MetricsPort, registry)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, stats, logger)
	go func() {
		if err := healthServer.Start(serverCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	var dbStats workerPkg.DBStatser
	if database != nil {
		dbStats = database
	}
	reporter := workerPkg.NewStatsReporter(stats, workerMetrics, dbStats, logger)
	loc, err := time.LoadLocation(workerConfig.Timezone)
	if err != nil {
		logger.Warn("failed to load timezone, using UTC", slog.String("timezone", workerConfig.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	if err := reporter.Start(workerConfig.StatsSchedule, loc); err != nil {
		logger.Error("failed to schedule stats job", slog.Any("error", err))
		os.Exit(1)
	}

	healthServer.SetReady(true)
	logger.Info("worker started")

	runErr := poller.Run(ctx)

	healthServer.SetReady(false)
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	reporter.Stop(stopCtx)
	cancel()
	reporter.Report()
	stopServers()

	if runErr != nil {
		logger.Error("worker stopped with error", slog.Any("error", runErr))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// initLogger creates the JSON logger (LOG_LEVEL) and installs it as default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initLedger opens the configured delivery ledger. The returned *sql.DB is
// nil for the DynamoDB backend.
func initLedger(ctx context.Context, logger *slog.Logger, ddbClient *awsddb.Client, cfg *workerPkg.Config) (repository.DeliveryRepository, *sql.DB, error) {
	switch cfg.LedgerBackend {
	case workerPkg.LedgerPostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.MigrateUp(ctx, database); err != nil {
			_ = database.Close()
			return nil, nil, fmt.Errorf("migrate ledger schema: %w", err)
		}
		logger.Info("postgres delivery ledger initialized")
		return pgRepo.NewDeliveryRepo(circuitbreaker.NewDBCircuitBreaker(database)), database, nil
	default:
		logger.Info("dynamodb delivery ledger initialized", slog.String("table", cfg.RequestLogTable))
		return ddbRepo.NewDeliveryRepo(ddbClient, cfg.RequestLogTable), nil, nil
	}
}

// initApplications returns the application table reader, or nil when
// APPLICATIONS_TABLE is unset.
func initApplications(logger *slog.Logger, ddbClient *awsddb.Client, cfg *workerPkg.Config) repository.ApplicationConfigRepository {
	if cfg.ApplicationsTable == "" {
		logger.Info("no application table configured, using worker-wide SES and SNS settings")
		return nil
	}
	logger.Info("per-application settings enabled", slog.String("table", cfg.ApplicationsTable))
	return ddbRepo.NewApplicationRepo(ddbClient, cfg.ApplicationsTable)
}

// initChannels builds the channel registry on SES/SNS, or on the logging
// sender when PROVIDER_MODE=log.
func initChannels(logger *slog.Logger, awsCfg aws.Config, cfg *workerPkg.Config, apps repository.ApplicationConfigRepository) (*notify.Registry, error) {
	var (
		email notifier.EmailSender
		sms   notifier.SMSSender
		push  notifier.PushSender
	)

	switch cfg.ProviderMode {
	case workerPkg.ProviderLog:
		sender := notifier.NewLogSender(logger)
		email, sms, push = sender, sender, sender
		logger.Warn("provider mode 'log': notifications are logged, not sent")
	default:
		snsClient := sns.NewFromConfig(awsCfg)
		email = notifier.NewSESSender(ses.NewFromConfig(awsCfg), cfg.SESSender, cfg.SESSourceARN,
			notifier.NewRateLimiter(cfg.EmailRatePerSec, burst(cfg.EmailRatePerSec)), logger)
		sms = notifier.NewSNSSMSSender(snsClient,
			notifier.NewRateLimiter(cfg.SMSRatePerSec, burst(cfg.SMSRatePerSec)), logger)
		push = notifier.NewSNSPushSender(snsClient, cfg.SNSPlatformApplicationARN, cfg.SNSPushTopicARN,
			notifier.NewRateLimiter(cfg.PushRatePerSec, burst(cfg.PushRatePerSec)), logger)
	}

	var opts []notify.ChannelOption
	if apps != nil {
		opts = append(opts, notify.WithApplications(apps))
	}
	registry, err := notify.NewRegistry([]notify.Channel{
		notify.NewEmailChannel(email, opts...),
		notify.NewSMSChannel(sms, opts...),
		notify.NewPushChannel(push, opts...),
	})
	if err != nil {
		return nil, err
	}

	for _, status := range registry.GetChannelHealth() {
		logger.Info("notification channel registered",
			slog.String("channel", status.Name),
			slog.String("output_type", status.OutputType),
			slog.Bool("enabled", status.Enabled))
	}
	return registry, nil
}

// burst allows one second worth of requests, at least one.
func burst(ratePerSec float64) int {
	return max(1, int(ratePerSec))
}

func pollConfig(cfg *workerPkg.Config) poll.Config {
	return poll.Config{
		PoolSize:                    cfg.PoolSize,
		BatchSize:                   cfg.PollBatchSize,
		WaitTime:                    cfg.PollWaitTime,
		VisibilityTimeout:           cfg.VisibilityTimeout,
		VisibilityExtensionInterval: cfg.VisibilityExtensionInterval,
		HandlerTimeout:              cfg.HandlerTimeout,
		ShutdownGracePeriod:         cfg.ShutdownGracePeriod,
	}
}

func dispatchConfig(cfg *workerPkg.Config) dispatch.Config {
	return dispatch.Config{
		MaxAttempts:    cfg.MaxDeliveryAttempts,
		BackoffBase:    cfg.BackoffBase,
		BackoffCeiling: cfg.BackoffCeiling,
	}
}
