package notify

import (
	"context"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/infra/notifier"
)

// EmailChannel delivers EMAIL notifications through an EmailSender (SES in
// production). A comma separated recipient becomes one multi-address send.
type EmailChannel struct {
	sender notifier.EmailSender
	opts   channelOptions
}

// NewEmailChannel creates the EMAIL channel. A nil sender leaves the channel
// disabled.
func NewEmailChannel(sender notifier.EmailSender, opts ...ChannelOption) *EmailChannel {
	return &EmailChannel{sender: sender, opts: newChannelOptions(opts)}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) OutputType() entity.OutputType { return entity.OutputEmail }

func (c *EmailChannel) IsEnabled() bool { return c.sender != nil }

// Deliver validates the recipients and payload, then sends one email from the
// application's SES identity when it has one.
func (c *EmailChannel) Deliver(ctx context.Context, n *entity.Notification) Outcome {
	if n == nil {
		return permanent("notification is nil")
	}
	if err := validateFor(c, n); err != nil {
		return invalid(err)
	}

	app, err := c.opts.application(ctx, n)
	if err != nil {
		return unresolved(n.ApplicationID, err)
	}

	r, err := c.sender.SendEmail(ctx, notifier.EmailMessage{
		To:        n.Recipients(),
		Subject:   n.Payload.Subject,
		Body:      n.Payload.Body,
		SourceARN: app.SESIdentityARN,
	})
	return outcomeOf("ses", r, err)
}
