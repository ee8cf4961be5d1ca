package notifier

import (
	"cmp"
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charsetUTF8 = "UTF-8"

// SESAPI is the subset of the SES client used by SESSender.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends plain-text email through Amazon SES.
type SESSender struct {
	api       SESAPI
	source    string
	sourceARN string
	limiter   *RateLimiter
	logger    *slog.Logger
}

// NewSESSender creates an SESSender. source is the From address; sourceARN
// is the verified identity ARN used for sending authorization and may be empty.
func NewSESSender(api SESAPI, source, sourceARN string, limiter *RateLimiter, logger *slog.Logger) *SESSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SESSender{api: api, source: source, sourceARN: sourceARN, limiter: limiter, logger: logger}
}

// SendEmail sends msg to every address in msg.To as a single SES request.
func (s *SESSender) SendEmail(ctx context.Context, msg EmailMessage) (Receipt, error) {
	if len(msg.To) == 0 {
		return Receipt{}, Permanent("ses", "NoRecipients", "no destination addresses")
	}
	if err := s.limiter.Allow(ctx); err != nil {
		return Receipt{}, Classify("ses", err)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.source),
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charsetUTF8)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String(charsetUTF8)},
			},
		},
	}
	if arn := cmp.Or(msg.SourceARN, s.sourceARN); arn != "" {
		input.SourceArn = aws.String(arn)
	}

	out, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return Receipt{}, Classify("ses", err)
	}

	s.logger.Debug("email accepted by SES",
		slog.String("ses_message_id", aws.ToString(out.MessageId)),
		slog.Int("recipients", len(msg.To)))
	return Receipt{Provider: "ses", MessageID: aws.ToString(out.MessageId)}, nil
}
