package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/repository"
)

// Queryer is satisfied by *sql.DB and by circuitbreaker.DBCircuitBreaker.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

type DeliveryRepo struct{ db Queryer }

func NewDeliveryRepo(db Queryer) repository.DeliveryRepository {
	return &DeliveryRepo{db: db}
}

const deliveryColumns = `notification_id, status, output_type, application_id, last_error,
       attempt_count, created_at, updated_at, delivered_at`

const upsertDeliveryQuery = `
INSERT INTO deliveries (notification_id, status, output_type, application_id, last_error,
                        attempt_count, created_at, updated_at, delivered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)
ON CONFLICT (notification_id) DO UPDATE SET
       status         = EXCLUDED.status,
       output_type    = COALESCE(NULLIF(EXCLUDED.output_type, ''), deliveries.output_type),
       application_id = COALESCE(NULLIF(EXCLUDED.application_id, ''), deliveries.application_id),
       last_error     = EXCLUDED.last_error,
       attempt_count  = GREATEST(deliveries.attempt_count, EXCLUDED.attempt_count),
       updated_at     = EXCLUDED.updated_at,
       delivered_at   = COALESCE(EXCLUDED.delivered_at, deliveries.delivered_at)
WHERE %s
RETURNING ` + deliveryColumns

// upsertQueries holds one upsert per target status. The WHERE clause on the
// conflict branch matches only stored statuses that may move to the target,
// so a disallowed or terminal row returns nothing and the write is rejected.
var upsertQueries = func() map[entity.DeliveryStatus]string {
	out := make(map[entity.DeliveryStatus]string, len(entity.Statuses))
	for _, next := range entity.Statuses {
		sources := entity.SourcesOf(next)
		if len(sources) == 0 {
			out[next] = fmt.Sprintf(upsertDeliveryQuery, "FALSE")
			continue
		}
		quoted := make([]string, len(sources))
		for i, s := range sources {
			quoted[i] = "'" + string(s) + "'"
		}
		out[next] = fmt.Sprintf(upsertDeliveryQuery, "deliveries.status IN ("+strings.Join(quoted, ", ")+")")
	}
	return out
}()

const getDeliveryQuery = `
SELECT ` + deliveryColumns + `
FROM deliveries
WHERE notification_id = $1
LIMIT 1`

func scanDelivery(rows *sql.Rows) (*entity.DeliveryRecord, error) {
	var rec entity.DeliveryRecord
	var status, outputType string
	if err := rows.Scan(
		&rec.NotificationID, &status, &outputType, &rec.ApplicationID, &rec.LastError,
		&rec.AttemptCount, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeliveredAt,
	); err != nil {
		return nil, err
	}
	rec.Status = entity.DeliveryStatus(status)
	rec.OutputType = entity.OutputType(outputType)
	return &rec, nil
}

// queryOne runs query and scans at most one row. A nil record with a nil
// error means no row matched.
func (repo *DeliveryRepo) queryOne(ctx context.Context, query string, args ...interface{}) (*entity.DeliveryRecord, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rec, err := scanDelivery(rows)
	if err != nil {
		return nil, err
	}
	return rec, rows.Err()
}

func (repo *DeliveryRepo) UpsertIfNotTerminal(ctx context.Context, u entity.DeliveryUpdate) (repository.UpsertResult, error) {
	query, ok := upsertQueries[u.Status]
	if !ok {
		return repository.UpsertResult{}, fmt.Errorf("UpsertIfNotTerminal: unknown status %q", u.Status)
	}
	rec, err := repo.queryOne(ctx, query,
		u.NotificationID, string(u.Status), string(u.OutputType), u.ApplicationID, u.LastError,
		u.AttemptCount, u.At, u.DeliveredAt,
	)
	if err != nil {
		return repository.UpsertResult{}, fmt.Errorf("UpsertIfNotTerminal: %w: %w", repository.ErrLedgerUnavailable, err)
	}
	if rec != nil {
		return repository.UpsertResult{Applied: true, Record: *rec}, nil
	}

	// Conflict branch filtered out: the row exists and may not move to u.Status.
	current, err := repo.queryOne(ctx, getDeliveryQuery, u.NotificationID)
	if err != nil {
		return repository.UpsertResult{}, fmt.Errorf("UpsertIfNotTerminal: %w: %w", repository.ErrLedgerUnavailable, err)
	}
	if current == nil {
		return repository.UpsertResult{}, fmt.Errorf("UpsertIfNotTerminal: %w: record %s vanished after conflict",
			repository.ErrLedgerUnavailable, u.NotificationID)
	}
	return repository.UpsertResult{Applied: false, Record: *current}, nil
}

func (repo *DeliveryRepo) Get(ctx context.Context, notificationID string) (*entity.DeliveryRecord, error) {
	rec, err := repo.queryOne(ctx, getDeliveryQuery, notificationID)
	if err != nil {
		return nil, fmt.Errorf("Get: %w: %w", repository.ErrLedgerUnavailable, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("Get: %s: %w", notificationID, entity.ErrNotFound)
	}
	return rec, nil
}
