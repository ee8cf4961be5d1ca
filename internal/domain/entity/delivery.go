package entity

import "time"

// DeliveryStatus is the lifecycle state of a notification in the ledger.
type DeliveryStatus string

const (
	StatusReceived   DeliveryStatus = "RECEIVED"
	StatusProcessing DeliveryStatus = "PROCESSING"
	StatusSuccess    DeliveryStatus = "SUCCESS"
	StatusRetrying   DeliveryStatus = "RETRYING"
	StatusFailed     DeliveryStatus = "FAILED"
	StatusDeadLetter DeliveryStatus = "DEAD_LETTER"
)

// IsTerminal reports whether s ends the delivery lifecycle.
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusDeadLetter:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusReceived, StatusProcessing, StatusSuccess, StatusRetrying, StatusFailed, StatusDeadLetter:
		return true
	}
	return false
}

func (s DeliveryStatus) String() string { return string(s) }

// Statuses lists every known status in lifecycle order.
var Statuses = []DeliveryStatus{
	StatusReceived, StatusProcessing, StatusRetrying,
	StatusSuccess, StatusFailed, StatusDeadLetter,
}

// CanTransition reports whether a record stored with status s may be
// overwritten with next. The empty status stands for an absent record and
// accepts anything.
//
//	RECEIVED                      <- (absent)
//	PROCESSING                    <- RECEIVED | PROCESSING | RETRYING
//	RETRYING                      <- PROCESSING | RETRYING
//	SUCCESS | FAILED | DEAD_LETTER <- any non-terminal status
//
// Terminal statuses allow nothing.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == "" {
		return true
	}
	if s.IsTerminal() || !s.Valid() {
		return false
	}
	switch next {
	case StatusReceived:
		return false
	case StatusRetrying:
		return s == StatusProcessing || s == StatusRetrying
	}
	return true
}

// SourcesOf returns the stored statuses from which next may be written, in
// lifecycle order. The ledger adapters turn it into their write condition.
func SourcesOf(next DeliveryStatus) []DeliveryStatus {
	var out []DeliveryStatus
	for _, s := range Statuses {
		if s.CanTransition(next) {
			out = append(out, s)
		}
	}
	return out
}

// DeliveryRecord is the auditable ledger entry for one notification id.
type DeliveryRecord struct {
	NotificationID string
	Status         DeliveryStatus
	OutputType     OutputType
	ApplicationID  string
	LastError      string
	AttemptCount   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeliveredAt    *time.Time
}

// DeliveryUpdate describes a conditional ledger write. It is applied only
// when the stored record is absent or its status can transition to Status.
type DeliveryUpdate struct {
	NotificationID string
	Status         DeliveryStatus
	OutputType     OutputType
	ApplicationID  string
	LastError      string
	AttemptCount   int
	DeliveredAt    *time.Time
	At             time.Time
}
