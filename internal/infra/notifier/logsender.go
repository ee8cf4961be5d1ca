package notifier

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogSender implements every sender by logging the message instead of calling
// a provider. It backs PROVIDER_MODE=log for local runs.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) receipt() Receipt {
	return Receipt{Provider: "log", MessageID: uuid.NewString()}
}

func (l *LogSender) SendEmail(ctx context.Context, msg EmailMessage) (Receipt, error) {
	r := l.receipt()
	l.logger.InfoContext(ctx, "email (log provider)",
		slog.Any("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("body_length", len(msg.Body)),
		slog.String("provider_message_id", r.MessageID))
	return r, nil
}

func (l *LogSender) SendSMS(ctx context.Context, msg SMSMessage) (Receipt, error) {
	r := l.receipt()
	l.logger.InfoContext(ctx, "sms (log provider)",
		slog.String("phone_number", msg.PhoneNumber),
		slog.Int("body_length", len(msg.Body)),
		slog.String("provider_message_id", r.MessageID))
	return r, nil
}

func (l *LogSender) SendPush(ctx context.Context, msg PushMessage) (Receipt, error) {
	r := l.receipt()
	l.logger.InfoContext(ctx, "push (log provider)",
		slog.String("title", msg.Title),
		slog.Int("body_length", len(msg.Body)),
		slog.Int("data_keys", len(msg.Data)),
		slog.String("provider_message_id", r.MessageID))
	return r, nil
}
