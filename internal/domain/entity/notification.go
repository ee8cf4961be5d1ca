package entity

import (
	"fmt"
	"strings"
	"time"
)

// OutputType identifies the delivery channel a notification is routed to.
type OutputType string

const (
	OutputEmail OutputType = "EMAIL"
	OutputSMS   OutputType = "SMS"
	OutputPush  OutputType = "PUSH"
)

// OutputTypes lists every supported channel. The channel registry must
// provide exactly one handler for each entry.
var OutputTypes = []OutputType{OutputEmail, OutputSMS, OutputPush}

// ParseOutputType normalizes s (case-insensitive) into an OutputType.
func ParseOutputType(s string) (OutputType, error) {
	t := OutputType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unsupported output_type %q", ErrInvalidInput, s)
	}
	return t, nil
}

// Valid reports whether t is one of the supported channels.
func (t OutputType) Valid() bool {
	switch t {
	case OutputEmail, OutputSMS, OutputPush:
		return true
	}
	return false
}

func (t OutputType) String() string { return string(t) }

// Payload carries channel-specific content. Only the fields relevant to the
// notification's OutputType are populated.
type Payload struct {
	Subject string            `json:"subject,omitempty"` // EMAIL
	Body    string            `json:"body"`
	Title   string            `json:"title,omitempty"` // PUSH
	Data    map[string]string `json:"data,omitempty"`  // PUSH
}

// Notification is a single delivery request pulled off the queue.
//
// ID is the idempotency key; it is stable across redeliveries of the same
// queue message. AttemptCount only ever grows.
type Notification struct {
	ID            string
	OutputType    OutputType
	Recipient     string
	Payload       Payload
	ApplicationID string
	ReceivedAt    time.Time
	AttemptCount  int
}

// Recipients splits a comma separated recipient list, dropping empty entries.
// EMAIL notifications may address several mailboxes at once.
func (n *Notification) Recipients() []string {
	parts := strings.Split(n.Recipient, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
