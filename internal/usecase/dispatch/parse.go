package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/infra/queue"
)

// canonicalMessage is the queue body written by current requestors.
type canonicalMessage struct {
	ID            string          `json:"id"`
	OutputType    string          `json:"output_type"`
	Recipient     string          `json:"recipient"`
	Payload       *entity.Payload `json:"payload"`
	ApplicationID string          `json:"application_id"`
}

// legacyMessage is the flat body written by older requestors. It carries no
// id of its own.
type legacyMessage struct {
	Application    string          `json:"Application"`
	OutputType     string          `json:"OutputType"`
	Recipient      string          `json:"Recipient"`
	Subject        string          `json:"Subject"`
	Message        string          `json:"Message"`
	EmailAddresses json.RawMessage `json:"EmailAddresses"`
	PhoneNumber    string          `json:"PhoneNumber"`
	PushToken      string          `json:"PushToken"`
}

// Parse turns a queue message into a Notification. Both the canonical and
// the legacy body shapes are accepted; legacy bodies use the queue message
// id as the notification id. Every failure is a *entity.ParseError carrying
// the notification id when one was recovered.
func Parse(msg queue.Message) (*entity.Notification, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(msg.Body), &fields); err != nil {
		return nil, &entity.ParseError{Reason: "body is not a JSON object", Err: err}
	}

	var (
		n   *entity.Notification
		err error
	)
	switch {
	case isCanonical(fields):
		n, err = parseCanonical(msg.Body, rawID(fields["id"]))
	case isLegacy(fields):
		n, err = parseLegacy(msg.Body, msg.ID)
	default:
		return nil, &entity.ParseError{Reason: "unrecognized message shape"}
	}
	if err != nil {
		return nil, err
	}

	n.ReceivedAt = msg.SentAt
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = time.Now().UTC()
	}
	return n, nil
}

func isCanonical(fields map[string]json.RawMessage) bool {
	for _, k := range []string{"id", "output_type", "payload"} {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

func isLegacy(fields map[string]json.RawMessage) bool {
	for _, k := range []string{"OutputType", "Application", "Message"} {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

// rawID extracts the id on its own so that a type error elsewhere in the
// body still yields a ParseError that names the notification.
func rawID(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}

func parseCanonical(body, id string) (*entity.Notification, error) {
	var m canonicalMessage
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, &entity.ParseError{NotificationID: id, Reason: "malformed canonical message", Err: err}
	}
	if id == "" {
		return nil, &entity.ParseError{Reason: "id is required"}
	}
	t, err := entity.ParseOutputType(m.OutputType)
	if err != nil {
		return nil, &entity.ParseError{NotificationID: id, Reason: err.Error(), Err: err}
	}
	if strings.TrimSpace(m.Recipient) == "" {
		return nil, &entity.ParseError{NotificationID: id, Reason: "recipient is required"}
	}
	if m.Payload == nil {
		return nil, &entity.ParseError{NotificationID: id, Reason: "payload is required"}
	}

	return &entity.Notification{
		ID:            id,
		OutputType:    t,
		Recipient:     strings.TrimSpace(m.Recipient),
		Payload:       *m.Payload,
		ApplicationID: m.ApplicationID,
	}, nil
}

func parseLegacy(body, messageID string) (*entity.Notification, error) {
	var m legacyMessage
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, &entity.ParseError{NotificationID: messageID, Reason: "malformed legacy message", Err: err}
	}
	if messageID == "" {
		return nil, &entity.ParseError{Reason: "legacy message without queue message id"}
	}

	t, err := entity.ParseOutputType(m.OutputType)
	if err != nil {
		return nil, &entity.ParseError{NotificationID: messageID, Reason: err.Error(), Err: err}
	}
	if strings.TrimSpace(m.Message) == "" {
		return nil, &entity.ParseError{NotificationID: messageID, Reason: "Message is required"}
	}

	n := &entity.Notification{
		ID:            messageID,
		OutputType:    t,
		ApplicationID: m.Application,
		Payload:       entity.Payload{Body: m.Message},
	}

	switch t {
	case entity.OutputEmail:
		if strings.TrimSpace(m.Subject) == "" {
			return nil, &entity.ParseError{NotificationID: messageID, Reason: "Subject is required for EMAIL"}
		}
		n.Payload.Subject = m.Subject
		addrs, err := emailAddresses(m.EmailAddresses)
		if err != nil {
			return nil, &entity.ParseError{NotificationID: messageID, Reason: "EmailAddresses must be a string or a list of strings", Err: err}
		}
		if len(addrs) == 0 {
			addrs = nonEmpty([]string{m.Recipient})
		}
		n.Recipient = strings.Join(addrs, ",")
	case entity.OutputSMS:
		n.Recipient = firstNonEmpty(m.PhoneNumber, m.Recipient)
	case entity.OutputPush:
		n.Recipient = firstNonEmpty(m.PushToken, m.Recipient)
		n.Payload.Title = m.Subject
	}

	if n.Recipient == "" {
		return nil, &entity.ParseError{NotificationID: messageID, Reason: fmt.Sprintf("no recipient for %s", t)}
	}
	return n, nil
}

// emailAddresses accepts null, a single string, or a list whose entries may
// be null or empty.
func emailAddresses(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return nonEmpty([]string{one}), nil
	}
	var many []*string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(many))
	for _, s := range many {
		if s != nil {
			out = append(out, *s)
		}
	}
	return nonEmpty(out), nil
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
