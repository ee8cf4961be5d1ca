package notify

import (
	"context"
	"strings"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/infra/notifier"
)

// PushChannel delivers PUSH notifications to a device token or an SNS
// platform endpoint ARN.
type PushChannel struct {
	sender notifier.PushSender
	opts   channelOptions
}

// NewPushChannel creates the PUSH channel. A nil sender leaves the channel
// disabled.
func NewPushChannel(sender notifier.PushSender, opts ...ChannelOption) *PushChannel {
	return &PushChannel{sender: sender, opts: newChannelOptions(opts)}
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) OutputType() entity.OutputType { return entity.OutputPush }

func (c *PushChannel) IsEnabled() bool { return c.sender != nil }

func (c *PushChannel) Deliver(ctx context.Context, n *entity.Notification) Outcome {
	if n == nil {
		return permanent("notification is nil")
	}
	if err := validateFor(c, n); err != nil {
		return invalid(err)
	}
	token := strings.TrimSpace(n.Recipient)

	app, err := c.opts.application(ctx, n)
	if err != nil {
		return unresolved(n.ApplicationID, err)
	}

	r, err := c.sender.SendPush(ctx, notifier.PushMessage{
		Token:    token,
		Title:    n.Payload.Title,
		Body:     n.Payload.Body,
		Data:     n.Payload.Data,
		TopicARN: app.SNSTopicARN,
	})
	return outcomeOf("sns", r, err)
}
