package repository

import (
	"context"
	"errors"

	"notification-worker/internal/domain/entity"
)

// ErrLedgerUnavailable is returned (wrapped) when the ledger backend cannot
// be reached or rejects the request for reasons other than the status
// transition condition. Callers keep the message for redelivery.
var ErrLedgerUnavailable = errors.New("delivery ledger unavailable")

// UpsertResult is the outcome of a conditional ledger write.
//
// When Applied is false the stored status may not move to the requested one
// (see entity.CanTransition) and Record holds the current state unchanged.
type UpsertResult struct {
	Applied bool
	Record  entity.DeliveryRecord
}

// DeliveryRepository is the Delivery Ledger: one record per notification id,
// written only through conditional upserts that follow the status state
// machine and never decrease attempt_count.
type DeliveryRepository interface {
	UpsertIfNotTerminal(ctx context.Context, update entity.DeliveryUpdate) (UpsertResult, error)
	Get(ctx context.Context, notificationID string) (*entity.DeliveryRecord, error)
}
