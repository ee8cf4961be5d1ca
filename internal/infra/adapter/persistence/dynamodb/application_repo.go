package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/repository"
)

// ItemGetter is the subset of the DynamoDB client the application table uses.
type ItemGetter interface {
	GetItem(ctx context.Context, params *awsddb.GetItemInput, optFns ...func(*awsddb.Options)) (*awsddb.GetItemOutput, error)
}

// applicationItem is the stored shape of an application registration.
type applicationItem struct {
	Application    string `dynamodbav:"Application"`
	SESIdentityARN string `dynamodbav:"SES-Domain-ARN"`
	SNSTopicARN    string `dynamodbav:"SNS-Topic-ARN"`
}

// ApplicationRepo reads application registrations keyed by "Application".
type ApplicationRepo struct {
	client ItemGetter
	table  string
}

func NewApplicationRepo(client ItemGetter, table string) *ApplicationRepo {
	return &ApplicationRepo{client: client, table: table}
}

var _ repository.ApplicationConfigRepository = (*ApplicationRepo)(nil)

func (repo *ApplicationRepo) Get(ctx context.Context, applicationID string) (*entity.ApplicationConfig, error) {
	out, err := repo.client.GetItem(ctx, &awsddb.GetItemInput{
		TableName: aws.String(repo.table),
		Key: map[string]types.AttributeValue{
			"Application": &types.AttributeValueMemberS{Value: applicationID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Get application: %w: %w", repository.ErrApplicationsUnavailable, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("Get application %s: %w", applicationID, entity.ErrNotFound)
	}

	var it applicationItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("Get application: unmarshal: %w", err)
	}
	return &entity.ApplicationConfig{
		ApplicationID:  applicationID,
		SESIdentityARN: it.SESIdentityARN,
		SNSTopicARN:    it.SNSTopicARN,
	}, nil
}
