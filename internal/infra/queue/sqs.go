// Package queue wraps Amazon SQS as the worker's at-least-once message source.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

// SQS limits.
const (
	MaxBatchSize         = 10
	MaxWaitTime          = 20 * time.Second
	MaxVisibilityTimeout = 12 * time.Hour
)

var (
	// ErrQueueUnavailable wraps connectivity or service failures while receiving.
	ErrQueueUnavailable = errors.New("queue unavailable")

	// ErrReceiptHandleExpired reports a delete/visibility change against a
	// handle that is no longer valid. The message will be redelivered; the
	// caller logs and moves on.
	ErrReceiptHandleExpired = errors.New("receipt handle expired")
)

// Message is one received queue message. ReceiptHandle is valid only for
// this receive and is owned by the goroutine processing the message.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
	ReceiveCount  int
	SentAt        time.Time
}

// API is the subset of the SQS client used by Client.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Client is the queue adapter used by the polling loop.
type Client struct {
	api      API
	queueURL string
	dlqURL   string
	logger   *slog.Logger
}

// NewClient returns a Client for queueURL. dlqURL may be empty, in which case
// SendToDeadLetter is a no-op and the queue's redrive policy handles poison
// messages.
func NewClient(api API, queueURL, dlqURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, queueURL: queueURL, dlqURL: dlqURL, logger: logger}
}

func clampBatch(n int) int32 {
	if n < 1 {
		return 1
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return int32(n)
}

func clampWait(d time.Duration) int32 {
	if d < 0 {
		return 0
	}
	if d > MaxWaitTime {
		d = MaxWaitTime
	}
	return int32(d / time.Second)
}

func clampVisibility(d time.Duration) int32 {
	if d < 0 {
		return 0
	}
	if d > MaxVisibilityTimeout {
		d = MaxVisibilityTimeout
	}
	return int32(d / time.Second)
}

// Receive long-polls for up to maxMessages messages. An empty slice with a
// nil error means the wait elapsed with nothing to deliver.
func (c *Client) Receive(ctx context.Context, maxMessages int, waitTime time.Duration) ([]Message, error) {
	start := time.Now()
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: clampBatch(maxMessages),
		WaitTimeSeconds:     clampWait(waitTime),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
			types.MessageSystemAttributeNameSentTimestamp,
		},
		MessageAttributeNames: []string{"All"},
	})
	recordQueueOp("receive", start, err)
	if err != nil {
		return nil, fmt.Errorf("receive: %w: %w", ErrQueueUnavailable, err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, toMessage(m))
	}
	messagesReceived.Add(float64(len(msgs)))
	return msgs, nil
}

func toMessage(m types.Message) Message {
	msg := Message{
		ID:            aws.ToString(m.MessageId),
		Body:          aws.ToString(m.Body),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		ReceiveCount:  1,
	}
	if v, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			msg.ReceiveCount = n
		}
	}
	if v, ok := m.Attributes[string(types.MessageSystemAttributeNameSentTimestamp)]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			msg.SentAt = time.UnixMilli(ms).UTC()
		}
	}
	return msg
}

// Delete removes a processed message. Deleting an already-deleted message
// succeeds; an expired handle is reported as ErrReceiptHandleExpired.
func (c *Client) Delete(ctx context.Context, receiptHandle string) error {
	start := time.Now()
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	recordQueueOp("delete", start, err)
	if err != nil {
		if isReceiptHandleError(err) {
			return fmt.Errorf("delete: %w: %w", ErrReceiptHandleExpired, err)
		}
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// ExtendVisibility sets the message's remaining invisibility to d. It serves
// both as the processing heartbeat and as the explicit retry delay.
func (c *Client) ExtendVisibility(ctx context.Context, receiptHandle string, d time.Duration) error {
	start := time.Now()
	_, err := c.api.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: clampVisibility(d),
	})
	recordQueueOp("change_visibility", start, err)
	if err != nil {
		if isReceiptHandleError(err) {
			return fmt.Errorf("extend visibility: %w: %w", ErrReceiptHandleExpired, err)
		}
		return fmt.Errorf("extend visibility: %w", err)
	}
	return nil
}

// SendToDeadLetter copies msg to the dead-letter queue with the failure reason
// attached. The caller deletes the original afterwards.
func (c *Client) SendToDeadLetter(ctx context.Context, msg Message, notificationID, reason string) error {
	if c.dlqURL == "" {
		c.logger.Debug("no dead-letter queue configured, dropping message",
			slog.String("message_id", msg.ID),
			slog.String("reason", reason))
		return nil
	}

	attrs := map[string]types.MessageAttributeValue{
		"failure_reason": {DataType: aws.String("String"), StringValue: aws.String(truncate(reason, 256))},
		"receive_count":  {DataType: aws.String("Number"), StringValue: aws.String(strconv.Itoa(msg.ReceiveCount))},
		"source_message": {DataType: aws.String("String"), StringValue: aws.String(msg.ID)},
	}
	if notificationID != "" {
		attrs["notification_id"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(notificationID)}
	}

	start := time.Now()
	_, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(c.dlqURL),
		MessageBody:       aws.String(msg.Body),
		MessageAttributes: attrs,
	})
	recordQueueOp("send_dead_letter", start, err)
	if err != nil {
		return fmt.Errorf("send to dead letter: %w", err)
	}
	return nil
}

func isReceiptHandleError(err error) bool {
	var invalid *types.ReceiptHandleIsInvalid
	if errors.As(err, &invalid) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ReceiptHandleIsInvalid", "InvalidParameterValue", "AWS.SimpleQueueService.NonExistentMessage":
			return true
		}
	}
	return false
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
