package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"notification-worker/internal/pkg/config"
)

// Ledger backends.
const (
	LedgerDynamoDB = "dynamodb"
	LedgerPostgres = "postgres"
)

// Provider modes. ProviderLog replaces SES/SNS with a sender that only logs.
const (
	ProviderAWS = "aws"
	ProviderLog = "log"
)

// ErrMissingQueueURL is returned when SQS_QUEUE_URL is unset or malformed.
var ErrMissingQueueURL = errors.New("SQS_QUEUE_URL is required")

// ErrMissingDatabaseURL is returned when the postgres ledger has no DATABASE_URL.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres ledger")

// Config holds the worker's runtime configuration.
//
// Every tunable has a default and a valid range; LoadConfigFromEnv replaces
// out-of-range values with the default and reports the fallback instead of
// refusing to start. Only the queue URL (and the database URL for the
// postgres ledger) are mandatory.
type Config struct {
	// Queue
	AWSRegion          string
	QueueURL           string
	DeadLetterQueueURL string // optional; empty leaves poison messages to the redrive policy
	PollWaitTime       time.Duration
	PollBatchSize      int

	// Pool and retry policy. MaxDeliveryAttempts should stay below the
	// queue redrive policy's maxReceiveCount.
	PoolSize                    int
	MaxDeliveryAttempts         int
	BackoffBase                 time.Duration
	BackoffCeiling              time.Duration
	VisibilityTimeout           time.Duration
	VisibilityExtensionInterval time.Duration
	HandlerTimeout              time.Duration
	ShutdownGracePeriod         time.Duration

	// Servers and periodic stats
	HealthPort    int
	MetricsPort   int
	StatsSchedule string
	Timezone      string

	// Ledger
	LedgerBackend   string
	RequestLogTable string
	DatabaseURL     string

	// Providers. ApplicationsTable enables per-application SES identity and
	// SNS topic overrides; empty skips the lookup.
	ApplicationsTable         string
	ProviderMode              string
	SESSender                 string
	SESSourceARN              string
	SNSPlatformApplicationARN string
	SNSPushTopicARN           string
	EmailRatePerSec           float64
	SMSRatePerSec             float64
	PushRatePerSec            float64
}

// DefaultConfig returns the configuration used for every unset variable.
func DefaultConfig() Config {
	return Config{
		AWSRegion:                   "us-east-1",
		PollWaitTime:                10 * time.Second,
		PollBatchSize:               5,
		PoolSize:                    10,
		MaxDeliveryAttempts:         3,
		BackoffBase:                 5 * time.Second,
		BackoffCeiling:              5 * time.Minute,
		VisibilityTimeout:           30 * time.Second,
		VisibilityExtensionInterval: 20 * time.Second,
		HandlerTimeout:              60 * time.Second,
		ShutdownGracePeriod:         30 * time.Second,
		HealthPort:                  9091,
		MetricsPort:                 9090,
		StatsSchedule:               "*/5 * * * *",
		Timezone:                    "UTC",
		LedgerBackend:               LedgerDynamoDB,
		RequestLogTable:             "RequestLog",
		ProviderMode:                ProviderAWS,
		EmailRatePerSec:             14,
		SMSRatePerSec:               20,
		PushRatePerSec:              50,
	}
}

// Validate checks cross-field and mandatory constraints, returning every
// violation at once.
func (c *Config) Validate() error {
	var errs []error

	if err := config.ValidateHTTPURL(c.QueueURL); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrMissingQueueURL, err))
	}
	if c.DeadLetterQueueURL != "" {
		if err := config.ValidateHTTPURL(c.DeadLetterQueueURL); err != nil {
			errs = append(errs, fmt.Errorf("dead-letter queue url: %w", err))
		}
	}
	if err := config.ValidateDuration(c.PollWaitTime, 0, 20*time.Second); err != nil {
		errs = append(errs, fmt.Errorf("poll wait time: %w", err))
	}
	if err := config.ValidateIntRange(c.PollBatchSize, 1, 10); err != nil {
		errs = append(errs, fmt.Errorf("poll batch size: %w", err))
	}
	if err := config.ValidateIntRange(c.PoolSize, 1, 100); err != nil {
		errs = append(errs, fmt.Errorf("pool size: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxDeliveryAttempts, 1, 20); err != nil {
		errs = append(errs, fmt.Errorf("max delivery attempts: %w", err))
	}
	if c.BackoffBase > c.BackoffCeiling {
		errs = append(errs, fmt.Errorf("backoff base %v exceeds ceiling %v", c.BackoffBase, c.BackoffCeiling))
	}
	if c.VisibilityExtensionInterval >= c.VisibilityTimeout {
		errs = append(errs, fmt.Errorf("visibility extension interval %v must be below visibility timeout %v",
			c.VisibilityExtensionInterval, c.VisibilityTimeout))
	}
	if err := config.ValidatePositiveDuration(c.HandlerTimeout); err != nil {
		errs = append(errs, fmt.Errorf("handler timeout: %w", err))
	}
	if c.HealthPort == c.MetricsPort {
		errs = append(errs, fmt.Errorf("health port and metrics port must differ (%d)", c.HealthPort))
	}
	if err := config.ValidateCronSchedule(c.StatsSchedule); err != nil {
		errs = append(errs, fmt.Errorf("stats schedule: %w", err))
	}
	if c.LedgerBackend == LedgerPostgres && c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// fieldLoader records fallbacks while LoadConfigFromEnv walks the fields.
type fieldLoader struct {
	logger   *slog.Logger
	metrics  *WorkerMetrics
	fallback bool
}

func track[T any](l *fieldLoader, field string, result config.ConfigLoadResult[T]) T {
	if result.FallbackApplied {
		l.fallback = true
		l.metrics.RecordValidationError(field)
		l.metrics.RecordFallback(field)
		for _, warning := range result.Warnings {
			l.logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}
	return result.Value
}

// LoadConfigFromEnv builds a Config from the environment.
//
// Environment variables:
//   - AWS_REGION (default us-east-1)
//   - SQS_QUEUE_URL (required), SQS_DLQ_URL
//   - POLL_WAIT_TIME 0s..20s (10s), POLL_BATCH_SIZE 1..10 (5)
//   - WORKER_POOL_SIZE 1..100 (10), MAX_DELIVERY_ATTEMPTS 1..20 (3)
//   - BACKOFF_BASE (5s), BACKOFF_CEILING (5m)
//   - VISIBILITY_TIMEOUT (30s), VISIBILITY_EXTENSION_INTERVAL (20s, below the timeout)
//   - HANDLER_TIMEOUT (60s), SHUTDOWN_GRACE_PERIOD (30s)
//   - WORKER_HEALTH_PORT (9091), METRICS_PORT (9090)
//   - STATS_SCHEDULE cron (*/5 * * * *), WORKER_TIMEZONE (UTC)
//   - LEDGER_BACKEND dynamodb|postgres, REQUEST_LOG_TABLE, DATABASE_URL
//   - APPLICATIONS_TABLE (unset: no per-application settings)
//   - PROVIDER_MODE aws|log, SES_SENDER, SES_SOURCE_ARN,
//     SNS_PLATFORM_APPLICATION_ARN, SNS_PUSH_TOPIC_ARN
//   - EMAIL_RATE_PER_SEC, SMS_RATE_PER_SEC, PUSH_RATE_PER_SEC
//
// Invalid values fall back to defaults with a warning and a metric. The
// returned error is non-nil only when a mandatory value is missing; the
// config is returned in either case.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*Config, error) {
	cfg := DefaultConfig()
	l := &fieldLoader{logger: logger, metrics: metrics}

	cfg.AWSRegion = config.LoadEnvString("AWS_REGION", cfg.AWSRegion)
	cfg.QueueURL = config.LoadEnvString("SQS_QUEUE_URL", "")
	cfg.DeadLetterQueueURL = track(l, "sqs_dlq_url",
		config.LoadEnvWithFallback("SQS_DLQ_URL", "", config.ValidateHTTPURL))

	cfg.PollWaitTime = track(l, "poll_wait_time",
		config.LoadEnvDuration("POLL_WAIT_TIME", cfg.PollWaitTime, func(d time.Duration) error {
			return config.ValidateDuration(d, 0, 20*time.Second)
		}))
	cfg.PollBatchSize = track(l, "poll_batch_size",
		config.LoadEnvInt("POLL_BATCH_SIZE", cfg.PollBatchSize, intRange(1, 10)))
	cfg.PoolSize = track(l, "worker_pool_size",
		config.LoadEnvInt("WORKER_POOL_SIZE", cfg.PoolSize, intRange(1, 100)))
	cfg.MaxDeliveryAttempts = track(l, "max_delivery_attempts",
		config.LoadEnvInt("MAX_DELIVERY_ATTEMPTS", cfg.MaxDeliveryAttempts, intRange(1, 20)))

	cfg.BackoffBase = track(l, "backoff_base",
		config.LoadEnvDuration("BACKOFF_BASE", cfg.BackoffBase, durationRange(time.Second, time.Hour)))
	cfg.BackoffCeiling = track(l, "backoff_ceiling",
		config.LoadEnvDuration("BACKOFF_CEILING", cfg.BackoffCeiling, durationRange(time.Second, 12*time.Hour)))
	if cfg.BackoffBase > cfg.BackoffCeiling {
		track(l, "backoff_ceiling", pairFallback("BACKOFF_BASE", "BACKOFF_CEILING"))
		defaults := DefaultConfig()
		cfg.BackoffBase, cfg.BackoffCeiling = defaults.BackoffBase, defaults.BackoffCeiling
	}

	cfg.VisibilityTimeout = track(l, "visibility_timeout",
		config.LoadEnvDuration("VISIBILITY_TIMEOUT", cfg.VisibilityTimeout, durationRange(time.Second, 12*time.Hour)))
	cfg.VisibilityExtensionInterval = track(l, "visibility_extension_interval",
		config.LoadEnvDuration("VISIBILITY_EXTENSION_INTERVAL", cfg.VisibilityExtensionInterval, config.ValidatePositiveDuration))
	if cfg.VisibilityExtensionInterval >= cfg.VisibilityTimeout {
		track(l, "visibility_extension_interval", pairFallback("VISIBILITY_EXTENSION_INTERVAL", "VISIBILITY_TIMEOUT"))
		defaults := DefaultConfig()
		cfg.VisibilityTimeout, cfg.VisibilityExtensionInterval = defaults.VisibilityTimeout, defaults.VisibilityExtensionInterval
	}

	cfg.HandlerTimeout = track(l, "handler_timeout",
		config.LoadEnvDuration("HANDLER_TIMEOUT", cfg.HandlerTimeout, durationRange(time.Second, 15*time.Minute)))
	cfg.ShutdownGracePeriod = track(l, "shutdown_grace_period",
		config.LoadEnvDuration("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod, durationRange(time.Second, 10*time.Minute)))

	cfg.HealthPort = track(l, "health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, intRange(1024, 65535)))
	cfg.MetricsPort = track(l, "metrics_port",
		config.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, intRange(1024, 65535)))
	cfg.StatsSchedule = track(l, "stats_schedule",
		config.LoadEnvWithFallback("STATS_SCHEDULE", cfg.StatsSchedule, config.ValidateCronSchedule))
	cfg.Timezone = track(l, "timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone))

	cfg.LedgerBackend = track(l, "ledger_backend",
		config.LoadEnvOneOf("LEDGER_BACKEND", cfg.LedgerBackend, LedgerDynamoDB, LedgerPostgres))
	cfg.RequestLogTable = config.LoadEnvString("REQUEST_LOG_TABLE", cfg.RequestLogTable)
	cfg.DatabaseURL = config.LoadEnvString("DATABASE_URL", "")

	cfg.ApplicationsTable = config.LoadEnvString("APPLICATIONS_TABLE", "")
	cfg.ProviderMode = track(l, "provider_mode",
		config.LoadEnvOneOf("PROVIDER_MODE", cfg.ProviderMode, ProviderAWS, ProviderLog))
	cfg.SESSender = config.LoadEnvString("SES_SENDER", "")
	cfg.SESSourceARN = track(l, "ses_source_arn",
		config.LoadEnvWithFallback("SES_SOURCE_ARN", "", arnOf("ses")))
	cfg.SNSPlatformApplicationARN = track(l, "sns_platform_application_arn",
		config.LoadEnvWithFallback("SNS_PLATFORM_APPLICATION_ARN", "", arnOf("sns")))
	cfg.SNSPushTopicARN = track(l, "sns_push_topic_arn",
		config.LoadEnvWithFallback("SNS_PUSH_TOPIC_ARN", "", arnOf("sns")))
	cfg.EmailRatePerSec = track(l, "email_rate_per_sec",
		config.LoadEnvFloat("EMAIL_RATE_PER_SEC", cfg.EmailRatePerSec, floatRange(0.1, 10000)))
	cfg.SMSRatePerSec = track(l, "sms_rate_per_sec",
		config.LoadEnvFloat("SMS_RATE_PER_SEC", cfg.SMSRatePerSec, floatRange(0.1, 10000)))
	cfg.PushRatePerSec = track(l, "push_rate_per_sec",
		config.LoadEnvFloat("PUSH_RATE_PER_SEC", cfg.PushRatePerSec, floatRange(0.1, 10000)))

	metrics.SetFallbackActive(l.fallback)
	metrics.RecordLoadTimestamp()
	metrics.RecordConfig(&cfg)

	if err := cfg.Validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

func intRange(min, max int) func(int) error {
	return func(v int) error { return config.ValidateIntRange(v, min, max) }
}

func durationRange(min, max time.Duration) func(time.Duration) error {
	return func(d time.Duration) error { return config.ValidateDuration(d, min, max) }
}

func floatRange(min, max float64) func(float64) error {
	return func(v float64) error { return config.ValidateFloatRange(v, min, max) }
}

func arnOf(service string) func(string) error {
	return func(s string) error { return config.ValidateARN(s, service) }
}

// pairFallback reports two individually valid values that contradict each other.
func pairFallback(lowKey, highKey string) config.ConfigLoadResult[struct{}] {
	return config.ConfigLoadResult[struct{}]{
		FallbackApplied: true,
		Warnings: []string{fmt.Sprintf("%s must be below %s, falling back to defaults for both",
			lowKey, highKey)},
	}
}
