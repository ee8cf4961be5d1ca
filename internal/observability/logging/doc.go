// Package logging provides structured logging utilities with context propagation.
//
// Every worker log line is JSON. Per-message loggers carry correlation_id,
// message_id, notification_id and output_type so one delivery can be traced
// across receive, dispatch and acknowledgement.
//
// Example usage:
//
//	logger := logging.NewLogger()
//	ctx, logger = logging.WithCorrelationID(ctx, logger, "")
//	logger.Info("message received", slog.String("message_id", msg.ID))
package logging
