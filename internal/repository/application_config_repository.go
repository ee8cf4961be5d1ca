package repository

import (
	"context"
	"errors"

	"notification-worker/internal/domain/entity"
)

// ErrApplicationsUnavailable is returned (wrapped) when the application table
// cannot be read.
var ErrApplicationsUnavailable = errors.New("application config store unavailable")

// ApplicationConfigRepository reads per-application provider settings.
// Get returns an error wrapping entity.ErrNotFound when the application is
// not registered and ErrApplicationsUnavailable when the store cannot be reached.
type ApplicationConfigRepository interface {
	Get(ctx context.Context, applicationID string) (*entity.ApplicationConfig, error)
}
