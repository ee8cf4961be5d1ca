package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/infra/queue"
)

func msgWith(body string) queue.Message {
	return queue.Message{
		ID:            "sqs-msg-1",
		Body:          body,
		ReceiptHandle: "rh-1",
		ReceiveCount:  1,
		SentAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestParse_Canonical(t *testing.T) {
	n, err := Parse(msgWith(`{
		"id": "n-42",
		"output_type": "email",
		"recipient": "ops@example.com",
		"application_id": "billing",
		"payload": {"subject": "Invoice", "body": "Attached"}
	}`))
	require.NoError(t, err)

	want := &entity.Notification{
		ID:            "n-42",
		OutputType:    entity.OutputEmail,
		Recipient:     "ops@example.com",
		ApplicationID: "billing",
		Payload:       entity.Payload{Subject: "Invoice", Body: "Attached"},
		ReceivedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, n); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_CanonicalErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID string
		reason string
	}{
		{"not json", `{{`, "", "not a JSON object"},
		{"json array", `[1,2]`, "", "not a JSON object"},
		{"unknown shape", `{"hello":"world"}`, "", "unrecognized message shape"},
		{"missing id", `{"output_type":"SMS","recipient":"+14155550123","payload":{"body":"x"}}`, "", "id is required"},
		{"unsupported type", `{"id":"n-1","output_type":"FAX","recipient":"x","payload":{"body":"x"}}`, "n-1", "unsupported output_type"},
		{"missing recipient", `{"id":"n-2","output_type":"SMS","payload":{"body":"x"}}`, "n-2", "recipient is required"},
		{"missing payload", `{"id":"n-3","output_type":"SMS","recipient":"+14155550123"}`, "n-3", "payload is required"},
		{"non-string data value", `{"id":"X1","output_type":"PUSH","recipient":"tok","payload":{"body":"hi","data":{"n":1}}}`, "X1", "malformed canonical message"},
		{"numeric recipient", `{"id":" n-4 ","output_type":"SMS","recipient":14155550123,"payload":{"body":"x"}}`, "n-4", "malformed canonical message"},
		{"numeric id", `{"id":7,"output_type":"SMS","recipient":"+14155550123","payload":{"body":"x"}}`, "", "malformed canonical message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(msgWith(tt.body))
			require.Error(t, err)

			var pe *entity.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantID, pe.NotificationID)
			assert.Contains(t, err.Error(), tt.reason)
			assert.ErrorIs(t, err, entity.ErrInvalidInput)
		})
	}
}

func TestParse_Legacy(t *testing.T) {
	tests := []struct {
		name string
		body string
		want entity.Notification
	}{
		{
			name: "email list with empty entries",
			body: `{"Application":"crm","OutputType":"EMAIL","Subject":"Hi","Message":"Body","EmailAddresses":["a@example.com",null,"","b@example.com"]}`,
			want: entity.Notification{
				OutputType:    entity.OutputEmail,
				Recipient:     "a@example.com,b@example.com",
				ApplicationID: "crm",
				Payload:       entity.Payload{Subject: "Hi", Body: "Body"},
			},
		},
		{
			name: "email as single string",
			body: `{"OutputType":"Email","Subject":"Hi","Message":"Body","EmailAddresses":"solo@example.com"}`,
			want: entity.Notification{
				OutputType: entity.OutputEmail,
				Recipient:  "solo@example.com",
				Payload:    entity.Payload{Subject: "Hi", Body: "Body"},
			},
		},
		{
			name: "email falls back to Recipient",
			body: `{"OutputType":"EMAIL","Subject":"Hi","Message":"Body","EmailAddresses":null,"Recipient":"fallback@example.com"}`,
			want: entity.Notification{
				OutputType: entity.OutputEmail,
				Recipient:  "fallback@example.com",
				Payload:    entity.Payload{Subject: "Hi", Body: "Body"},
			},
		},
		{
			name: "sms phone number",
			body: `{"OutputType":"SMS","Message":"Code 1234","PhoneNumber":"+14155550123","Recipient":"+19999999999"}`,
			want: entity.Notification{
				OutputType: entity.OutputSMS,
				Recipient:  "+14155550123",
				Payload:    entity.Payload{Body: "Code 1234"},
			},
		},
		{
			name: "push token with title",
			body: `{"OutputType":"PUSH","Subject":"Shipped","Message":"On its way","PushToken":"device-token-abcdef"}`,
			want: entity.Notification{
				OutputType: entity.OutputPush,
				Recipient:  "device-token-abcdef",
				Payload:    entity.Payload{Title: "Shipped", Body: "On its way"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := msgWith(tt.body)
			n, err := Parse(msg)
			require.NoError(t, err)

			tt.want.ID = msg.ID
			tt.want.ReceivedAt = msg.SentAt
			if diff := cmp.Diff(&tt.want, n); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_LegacyErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"missing message", `{"OutputType":"SMS","PhoneNumber":"+14155550123"}`, "Message is required"},
		{"email without subject", `{"OutputType":"EMAIL","Message":"x","Recipient":"a@example.com"}`, "Subject is required"},
		{"email addresses wrong type", `{"OutputType":"EMAIL","Subject":"s","Message":"x","EmailAddresses":42}`, "EmailAddresses"},
		{"no recipient", `{"OutputType":"PUSH","Message":"x"}`, "no recipient"},
		{"unsupported type", `{"OutputType":"FAX","Message":"x"}`, "unsupported output_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(msgWith(tt.body))
			require.Error(t, err)

			var pe *entity.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "sqs-msg-1", pe.NotificationID)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestParse_ReceivedAtDefaultsToNow(t *testing.T) {
	msg := msgWith(`{"id":"n-1","output_type":"SMS","recipient":"+14155550123","payload":{"body":"x"}}`)
	msg.SentAt = time.Time{}

	before := time.Now().UTC()
	n, err := Parse(msg)
	require.NoError(t, err)

	assert.False(t, n.ReceivedAt.Before(before))
}
