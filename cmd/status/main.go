// Package main provides a CLI command that prints the delivery ledger entry
// of one notification.
// Usage: notification-status <notification-id> [--backend dynamodb|postgres] [--output json]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"notification-worker/internal/domain/entity"
	ddbRepo "notification-worker/internal/infra/adapter/persistence/dynamodb"
	pgRepo "notification-worker/internal/infra/adapter/persistence/postgres"
	"notification-worker/internal/infra/db"
	"notification-worker/internal/observability/logging"
	"notification-worker/internal/pkg/config"
	"notification-worker/internal/repository"
)

// StatusOutput represents the JSON output format of a ledger entry.
type StatusOutput struct {
	NotificationID string     `json:"notification_id"`
	Status         string     `json:"status"`
	Terminal       bool       `json:"terminal"`
	OutputType     string     `json:"output_type,omitempty"`
	ApplicationID  string     `json:"application_id,omitempty"`
	AttemptCount   int        `json:"attempt_count"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

func main() {
	_ = godotenv.Load()

	var (
		backend      string
		outputFormat string
	)
	flag.StringVar(&backend, "backend", "", "Ledger backend: dynamodb or postgres (default LEDGER_BACKEND)")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: notification id is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: notification-status <notification-id> [--backend dynamodb|postgres] [--output json]")
		os.Exit(2)
	}
	notificationID := args[0]

	logger := logging.NewLoggerWithWriter(os.Stderr, os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)

	if backend == "" {
		backend = config.LoadEnvOneOf("LEDGER_BACKEND", "dynamodb", "dynamodb", "postgres").Value
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ledger, closeLedger, err := openLedger(ctx, backend)
	if err != nil {
		logger.Error("failed to open delivery ledger", slog.String("backend", backend), slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLedger()

	record, err := ledger.Get(ctx, notificationID)
	if errors.Is(err, entity.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "No ledger entry for notification %q\n", notificationID)
		os.Exit(3)
	}
	if err != nil {
		logger.Error("ledger lookup failed", slog.String("notification_id", notificationID), slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if outputFormat == "json" {
		err = outputJSON(os.Stdout, record)
	} else {
		err = outputText(os.Stdout, record)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openLedger connects to backend and returns a release function.
func openLedger(ctx context.Context, backend string) (repository.DeliveryRepository, func(), error) {
	switch backend {
	case "postgres":
		database, err := db.Open(ctx, config.LoadEnvString("DATABASE_URL", ""))
		if err != nil {
			return nil, nil, err
		}
		return pgRepo.NewDeliveryRepo(database), func() { _ = database.Close() }, nil
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.LoadEnvString("AWS_REGION", "us-east-1")))
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS configuration: %w", err)
		}
		table := config.LoadEnvString("REQUEST_LOG_TABLE", "RequestLog")
		return ddbRepo.NewDeliveryRepo(awsddb.NewFromConfig(awsCfg), table), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}

func toOutput(r *entity.DeliveryRecord) StatusOutput {
	return StatusOutput{
		NotificationID: r.NotificationID,
		Status:         r.Status.String(),
		Terminal:       r.Status.IsTerminal(),
		OutputType:     string(r.OutputType),
		ApplicationID:  r.ApplicationID,
		AttemptCount:   r.AttemptCount,
		LastError:      r.LastError,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		DeliveredAt:    r.DeliveredAt,
	}
}

// outputText prints the record in human-readable format.
func outputText(w io.Writer, r *entity.DeliveryRecord) error {
	out := toOutput(r)
	terminal := ""
	if out.Terminal {
		terminal = " (terminal)"
	}
	lines := []string{
		fmt.Sprintf("Notification: %s", out.NotificationID),
		fmt.Sprintf("Status:       %s%s", out.Status, terminal),
		fmt.Sprintf("Output type:  %s", out.OutputType),
		fmt.Sprintf("Attempts:     %d", out.AttemptCount),
		fmt.Sprintf("Created:      %s", out.CreatedAt.Format(time.RFC3339)),
		fmt.Sprintf("Updated:      %s", out.UpdatedAt.Format(time.RFC3339)),
	}
	if out.ApplicationID != "" {
		lines = append(lines, fmt.Sprintf("Application:  %s", out.ApplicationID))
	}
	if out.DeliveredAt != nil {
		lines = append(lines, fmt.Sprintf("Delivered:    %s", out.DeliveredAt.Format(time.RFC3339)))
	}
	if out.LastError != "" {
		lines = append(lines, fmt.Sprintf("Last error:   %s", out.LastError))
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// outputJSON prints the record as indented JSON.
func outputJSON(w io.Writer, r *entity.DeliveryRecord) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(toOutput(r)); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
