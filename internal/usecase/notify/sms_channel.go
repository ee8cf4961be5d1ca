package notify

import (
	"context"
	"strings"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/infra/notifier"
)

// SMSChannel delivers SMS notifications to an E.164 phone number.
// SMS is published straight to the number, so only the application's
// registration is checked; its topic is not used.
type SMSChannel struct {
	sender notifier.SMSSender
	opts   channelOptions
}

// NewSMSChannel creates the SMS channel. A nil sender leaves the channel
// disabled.
func NewSMSChannel(sender notifier.SMSSender, opts ...ChannelOption) *SMSChannel {
	return &SMSChannel{sender: sender, opts: newChannelOptions(opts)}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) OutputType() entity.OutputType { return entity.OutputSMS }

func (c *SMSChannel) IsEnabled() bool { return c.sender != nil }

func (c *SMSChannel) Deliver(ctx context.Context, n *entity.Notification) Outcome {
	if n == nil {
		return permanent("notification is nil")
	}
	if err := validateFor(c, n); err != nil {
		return invalid(err)
	}
	phone := strings.TrimSpace(n.Recipient)

	if _, err := c.opts.application(ctx, n); err != nil {
		return unresolved(n.ApplicationID, err)
	}

	r, err := c.sender.SendSMS(ctx, notifier.SMSMessage{
		PhoneNumber: phone,
		Body:        n.Payload.Body,
	})
	return outcomeOf("sns", r, err)
}
