package notifier

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client used by the SMS and push senders.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
}

// SNSSMSSender publishes transactional SMS directly to phone numbers.
type SNSSMSSender struct {
	api     SNSAPI
	limiter *RateLimiter
	logger  *slog.Logger
}

func NewSNSSMSSender(api SNSAPI, limiter *RateLimiter, logger *slog.Logger) *SNSSMSSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SNSSMSSender{api: api, limiter: limiter, logger: logger}
}

func (s *SNSSMSSender) SendSMS(ctx context.Context, msg SMSMessage) (Receipt, error) {
	if err := s.limiter.Allow(ctx); err != nil {
		return Receipt{}, Classify("sns", err)
	}

	out, err := s.api.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(msg.PhoneNumber),
		Message:     aws.String(msg.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	})
	if err != nil {
		return Receipt{}, Classify("sns", err)
	}

	s.logger.Debug("sms accepted by SNS", slog.String("sns_message_id", aws.ToString(out.MessageId)))
	return Receipt{Provider: "sns", MessageID: aws.ToString(out.MessageId)}, nil
}

// SNSPushSender delivers mobile push through SNS.
//
// Tokens that are already endpoint ARNs are published to directly. Raw device
// tokens are registered with the platform application first when one is
// configured; otherwise the message goes to the fallback topic, which the
// message's own TopicARN overrides.
type SNSPushSender struct {
	api            SNSAPI
	platformAppARN string
	topicARN       string
	limiter        *RateLimiter
	logger         *slog.Logger
}

func NewSNSPushSender(api SNSAPI, platformAppARN, topicARN string, limiter *RateLimiter, logger *slog.Logger) *SNSPushSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SNSPushSender{api: api, platformAppARN: platformAppARN, topicARN: topicARN, limiter: limiter, logger: logger}
}

func (s *SNSPushSender) SendPush(ctx context.Context, msg PushMessage) (Receipt, error) {
	if err := s.limiter.Allow(ctx); err != nil {
		return Receipt{}, Classify("sns", err)
	}

	payload, err := pushPayload(msg)
	if err != nil {
		return Receipt{}, Permanent("sns", "InvalidPayload", err.Error())
	}
	input := &sns.PublishInput{
		Message:          aws.String(payload),
		MessageStructure: aws.String("json"),
	}

	switch {
	case strings.HasPrefix(msg.Token, "arn:"):
		input.TargetArn = aws.String(msg.Token)
	case s.platformAppARN != "":
		ep, err := s.api.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
			PlatformApplicationArn: aws.String(s.platformAppARN),
			Token:                  aws.String(msg.Token),
		})
		if err != nil {
			return Receipt{}, Classify("sns", err)
		}
		input.TargetArn = ep.EndpointArn
	case cmp.Or(msg.TopicARN, s.topicARN) != "":
		input.TopicArn = aws.String(cmp.Or(msg.TopicARN, s.topicARN))
	default:
		return Receipt{}, Permanent("sns", "NoPushTarget", "no platform application or push topic configured")
	}

	out, err := s.api.Publish(ctx, input)
	if err != nil {
		return Receipt{}, Classify("sns", err)
	}

	s.logger.Debug("push accepted by SNS",
		slog.String("sns_message_id", aws.ToString(out.MessageId)),
		slog.String("target", aws.ToString(input.TargetArn)+aws.ToString(input.TopicArn)))
	return Receipt{Provider: "sns", MessageID: aws.ToString(out.MessageId)}, nil
}

// pushPayload renders the per-platform JSON message structure SNS expects.
func pushPayload(msg PushMessage) (string, error) {
	gcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": msg.Title, "body": msg.Body},
		"data":         msg.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal GCM payload: %w", err)
	}
	aps := map[string]interface{}{"alert": map[string]string{"title": msg.Title, "body": msg.Body}}
	apnsBody := map[string]interface{}{"aps": aps}
	for k, v := range msg.Data {
		if k != "aps" {
			apnsBody[k] = v
		}
	}
	apns, err := json.Marshal(apnsBody)
	if err != nil {
		return "", fmt.Errorf("marshal APNS payload: %w", err)
	}

	out, err := json.Marshal(map[string]string{
		"default":      msg.Body,
		"GCM":          string(gcm),
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
	})
	if err != nil {
		return "", fmt.Errorf("marshal push payload: %w", err)
	}
	return string(out), nil
}
