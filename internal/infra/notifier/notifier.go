// Package notifier contains the delivery-provider adapters used by the
// notification channels: Amazon SES for email, Amazon SNS for SMS and mobile
// push, and a log-only sender for local runs.
//
// Every adapter applies its own rate limiter and reports failures as
// *ProviderError so callers can tell transient from permanent failures
// without knowing provider error codes.
package notifier

import "context"

// Receipt identifies an accepted provider request.
type Receipt struct {
	Provider  string
	MessageID string
}

// EmailMessage is one outbound email.
type EmailMessage struct {
	To      []string
	Subject string
	Body    string

	SourceARN string // per-application identity; empty uses the sender's default
}

// SMSMessage is one outbound text message.
type SMSMessage struct {
	PhoneNumber string
	Body        string
}

// PushMessage is one outbound mobile push.
type PushMessage struct {
	Token string // raw device token or SNS endpoint ARN
	Title string
	Body  string
	Data  map[string]string

	TopicARN string // per-application fallback topic; empty uses the sender's default
}

// EmailSender delivers email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) (Receipt, error)
}

// SMSSender delivers text messages.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) (Receipt, error)
}

// PushSender delivers mobile push notifications.
type PushSender interface {
	SendPush(ctx context.Context, msg PushMessage) (Receipt, error)
}
