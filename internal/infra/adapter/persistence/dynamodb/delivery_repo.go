// Package dynamodb implements the Delivery Ledger on an Amazon DynamoDB table
// keyed by notification_id.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/repository"
)

// API is the subset of the DynamoDB client the ledger uses.
type API interface {
	UpdateItem(ctx context.Context, params *awsddb.UpdateItemInput, optFns ...func(*awsddb.Options)) (*awsddb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *awsddb.GetItemInput, optFns ...func(*awsddb.Options)) (*awsddb.GetItemOutput, error)
}

// deliveryItem is the stored shape of a DeliveryRecord.
type deliveryItem struct {
	NotificationID string     `dynamodbav:"notification_id"`
	Status         string     `dynamodbav:"status"`
	OutputType     string     `dynamodbav:"output_type,omitempty"`
	ApplicationID  string     `dynamodbav:"application_id,omitempty"`
	LastError      string     `dynamodbav:"last_error,omitempty"`
	AttemptCount   int        `dynamodbav:"attempt_count"`
	CreatedAt      time.Time  `dynamodbav:"created_at"`
	UpdatedAt      time.Time  `dynamodbav:"updated_at"`
	DeliveredAt    *time.Time `dynamodbav:"delivered_at,omitempty"`
}

func (it deliveryItem) record() entity.DeliveryRecord {
	return entity.DeliveryRecord{
		NotificationID: it.NotificationID,
		Status:         entity.DeliveryStatus(it.Status),
		OutputType:     entity.OutputType(it.OutputType),
		ApplicationID:  it.ApplicationID,
		LastError:      it.LastError,
		AttemptCount:   it.AttemptCount,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
		DeliveredAt:    it.DeliveredAt,
	}
}

type DeliveryRepo struct {
	client API
	table  string
}

func NewDeliveryRepo(client API, table string) *DeliveryRepo {
	return &DeliveryRepo{client: client, table: table}
}

var _ repository.DeliveryRepository = (*DeliveryRepo)(nil)

// UpsertIfNotTerminal writes u when the stored record is absent or its status
// can move to u.Status. Terminal records, and records the state machine does
// not allow to move to u.Status, are returned unchanged with Applied false.
//
// DynamoDB has no max() in update expressions, so attempt_count is written
// only when it does not decrease; when the stored count is higher the write
// is retried without touching attempt_count.
func (repo *DeliveryRepo) UpsertIfNotTerminal(ctx context.Context, u entity.DeliveryUpdate) (repository.UpsertResult, error) {
	out, old, err := repo.update(ctx, u, true)
	if err == nil {
		return repo.applied(out)
	}
	if old == nil {
		return repository.UpsertResult{}, err
	}
	if !entity.DeliveryStatus(old.Status).CanTransition(u.Status) {
		return repository.UpsertResult{Applied: false, Record: old.record()}, nil
	}

	// Stored attempt_count is ahead of ours: keep it.
	out, old, err = repo.update(ctx, u, false)
	if err == nil {
		return repo.applied(out)
	}
	if old != nil && !entity.DeliveryStatus(old.Status).CanTransition(u.Status) {
		return repository.UpsertResult{Applied: false, Record: old.record()}, nil
	}
	return repository.UpsertResult{}, err
}

func (repo *DeliveryRepo) applied(out *awsddb.UpdateItemOutput) (repository.UpsertResult, error) {
	var it deliveryItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return repository.UpsertResult{}, fmt.Errorf("UpsertIfNotTerminal: unmarshal: %w: %w", repository.ErrLedgerUnavailable, err)
	}
	return repository.UpsertResult{Applied: true, Record: it.record()}, nil
}

// update issues one conditional UpdateItem. On a failed condition it returns
// the stored item (old) alongside the error.
func (repo *DeliveryRepo) update(ctx context.Context, u entity.DeliveryUpdate, withAttempt bool) (*awsddb.UpdateItemOutput, *deliveryItem, error) {
	input, err := repo.buildUpdate(u, withAttempt)
	if err != nil {
		return nil, nil, fmt.Errorf("UpsertIfNotTerminal: %w", err)
	}

	out, err := repo.client.UpdateItem(ctx, input)
	if err == nil {
		return out, nil, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) && len(ccf.Item) > 0 {
		var old deliveryItem
		if uerr := attributevalue.UnmarshalMap(ccf.Item, &old); uerr != nil {
			return nil, nil, fmt.Errorf("UpsertIfNotTerminal: unmarshal current: %w: %w", repository.ErrLedgerUnavailable, uerr)
		}
		return nil, &old, fmt.Errorf("UpsertIfNotTerminal: condition failed: %w: %w", repository.ErrLedgerUnavailable, err)
	}
	return nil, nil, fmt.Errorf("UpsertIfNotTerminal: %w: %w", repository.ErrLedgerUnavailable, err)
}

func (repo *DeliveryRepo) buildUpdate(u entity.DeliveryUpdate, withAttempt bool) (*awsddb.UpdateItemInput, error) {
	at, err := attributevalue.Marshal(u.At)
	if err != nil {
		return nil, err
	}

	sets := []string{
		"#status = :status",
		"last_error = :last_error",
		"updated_at = :at",
		"created_at = if_not_exists(created_at, :at)",
	}
	values := map[string]types.AttributeValue{
		":status":     &types.AttributeValueMemberS{Value: string(u.Status)},
		":last_error": &types.AttributeValueMemberS{Value: u.LastError},
		":at":         at,
	}
	cond := transitionCondition(u.Status, values)

	if withAttempt {
		sets = append(sets, "attempt_count = :attempt")
		values[":attempt"] = &types.AttributeValueMemberN{Value: fmt.Sprint(u.AttemptCount)}
		cond += " AND (attribute_not_exists(attempt_count) OR attempt_count <= :attempt)"
	} else {
		sets = append(sets, "attempt_count = if_not_exists(attempt_count, :zero)")
		values[":zero"] = &types.AttributeValueMemberN{Value: "0"}
	}
	if u.OutputType != "" {
		sets = append(sets, "output_type = :output_type")
		values[":output_type"] = &types.AttributeValueMemberS{Value: string(u.OutputType)}
	}
	if u.ApplicationID != "" {
		sets = append(sets, "application_id = :application_id")
		values[":application_id"] = &types.AttributeValueMemberS{Value: u.ApplicationID}
	}
	if u.DeliveredAt != nil {
		delivered, err := attributevalue.Marshal(*u.DeliveredAt)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "delivered_at = :delivered_at")
		values[":delivered_at"] = delivered
	}

	return &awsddb.UpdateItemInput{
		TableName: aws.String(repo.table),
		Key: map[string]types.AttributeValue{
			"notification_id": &types.AttributeValueMemberS{Value: u.NotificationID},
		},
		UpdateExpression:                    aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:                 aws.String(cond),
		ExpressionAttributeNames:            map[string]string{"#status": "status"},
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}, nil
}

// transitionCondition allows the write on a missing item or on one whose
// status is a valid source for next. The sources are bound as :from<i>.
func transitionCondition(next entity.DeliveryStatus, values map[string]types.AttributeValue) string {
	sources := entity.SourcesOf(next)
	if len(sources) == 0 {
		return "(attribute_not_exists(notification_id))"
	}
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = fmt.Sprintf(":from%d", i)
		values[names[i]] = &types.AttributeValueMemberS{Value: string(s)}
	}
	return "(attribute_not_exists(notification_id) OR #status IN (" + strings.Join(names, ", ") + "))"
}

func (repo *DeliveryRepo) Get(ctx context.Context, notificationID string) (*entity.DeliveryRecord, error) {
	out, err := repo.client.GetItem(ctx, &awsddb.GetItemInput{
		TableName: aws.String(repo.table),
		Key: map[string]types.AttributeValue{
			"notification_id": &types.AttributeValueMemberS{Value: notificationID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("Get: %w: %w", repository.ErrLedgerUnavailable, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("Get: %s: %w", notificationID, entity.ErrNotFound)
	}

	var it deliveryItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("Get: unmarshal: %w", err)
	}
	rec := it.record()
	return &rec, nil
}
