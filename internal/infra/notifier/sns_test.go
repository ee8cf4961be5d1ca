package notifier

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	publishIn   []*sns.PublishInput
	publishErr  error
	endpointIn  *sns.CreatePlatformEndpointInput
	endpointErr error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.publishIn = append(f.publishIn, in)
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func (f *fakeSNS) CreatePlatformEndpoint(_ context.Context, in *sns.CreatePlatformEndpointInput, _ ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error) {
	f.endpointIn = in
	if f.endpointErr != nil {
		return nil, f.endpointErr
	}
	return &sns.CreatePlatformEndpointOutput{EndpointArn: aws.String("arn:aws:sns:us-east-1:123456789012:endpoint/GCM/app/ep-1")}, nil
}

const platformApp = "arn:aws:sns:us-east-1:123456789012:app/GCM/app"

func TestSNSSMSSender_SendSMS(t *testing.T) {
	api := &fakeSNS{}
	s := NewSNSSMSSender(api, nil, nil)

	r, err := s.SendSMS(context.Background(), SMSMessage{PhoneNumber: "+15555550100", Body: "code 1234"})
	require.NoError(t, err)
	assert.Equal(t, "sns-1", r.MessageID)

	require.Len(t, api.publishIn, 1)
	in := api.publishIn[0]
	assert.Equal(t, "+15555550100", aws.ToString(in.PhoneNumber))
	assert.Equal(t, "code 1234", aws.ToString(in.Message))
	assert.Equal(t, "Transactional", aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
}

func TestSNSSMSSender_SendSMS_OptedOut(t *testing.T) {
	api := &fakeSNS{publishErr: &smithy.GenericAPIError{Code: "OptedOut", Message: "phone number opted out"}}
	s := NewSNSSMSSender(api, nil, nil)

	_, err := s.SendSMS(context.Background(), SMSMessage{PhoneNumber: "+15555550100", Body: "x"})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.False(t, pe.Transient)
}

func TestSNSPushSender_SendPush(t *testing.T) {
	t.Run("raw token registers endpoint", func(t *testing.T) {
		api := &fakeSNS{}
		s := NewSNSPushSender(api, platformApp, "", nil, nil)

		_, err := s.SendPush(context.Background(), PushMessage{Token: "device-token-123", Title: "Hi", Body: "ping", Data: map[string]string{"order": "42"}})
		require.NoError(t, err)

		require.NotNil(t, api.endpointIn)
		assert.Equal(t, "device-token-123", aws.ToString(api.endpointIn.Token))
		require.Len(t, api.publishIn, 1)
		assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:endpoint/GCM/app/ep-1", aws.ToString(api.publishIn[0].TargetArn))
		assert.Equal(t, "json", aws.ToString(api.publishIn[0].MessageStructure))

		var body map[string]string
		require.NoError(t, json.Unmarshal([]byte(aws.ToString(api.publishIn[0].Message)), &body))
		assert.Equal(t, "ping", body["default"])
		assert.Contains(t, body["GCM"], `"order":"42"`)
		assert.Contains(t, body["APNS"], `"aps"`)
	})

	t.Run("endpoint arn publishes directly", func(t *testing.T) {
		api := &fakeSNS{}
		s := NewSNSPushSender(api, platformApp, "", nil, nil)
		arn := "arn:aws:sns:us-east-1:123456789012:endpoint/APNS/app/ep-9"

		_, err := s.SendPush(context.Background(), PushMessage{Token: arn, Body: "ping"})
		require.NoError(t, err)
		assert.Nil(t, api.endpointIn)
		assert.Equal(t, arn, aws.ToString(api.publishIn[0].TargetArn))
	})

	t.Run("topic fallback", func(t *testing.T) {
		api := &fakeSNS{}
		topic := "arn:aws:sns:us-east-1:123456789012:push"
		s := NewSNSPushSender(api, "", topic, nil, nil)

		_, err := s.SendPush(context.Background(), PushMessage{Token: "device-token-123", Body: "ping"})
		require.NoError(t, err)
		assert.Equal(t, topic, aws.ToString(api.publishIn[0].TopicArn))
	})

	t.Run("message topic overrides fallback", func(t *testing.T) {
		api := &fakeSNS{}
		appTopic := "arn:aws:sns:us-east-1:123456789012:billing-push"
		s := NewSNSPushSender(api, "", "arn:aws:sns:us-east-1:123456789012:push", nil, nil)

		_, err := s.SendPush(context.Background(), PushMessage{Token: "device-token-123", Body: "ping", TopicARN: appTopic})
		require.NoError(t, err)
		assert.Equal(t, appTopic, aws.ToString(api.publishIn[0].TopicArn))
	})

	t.Run("message topic without default", func(t *testing.T) {
		api := &fakeSNS{}
		appTopic := "arn:aws:sns:us-east-1:123456789012:billing-push"
		s := NewSNSPushSender(api, "", "", nil, nil)

		_, err := s.SendPush(context.Background(), PushMessage{Token: "device-token-123", Body: "ping", TopicARN: appTopic})
		require.NoError(t, err)
		assert.Equal(t, appTopic, aws.ToString(api.publishIn[0].TopicArn))
	})

	t.Run("no target configured", func(t *testing.T) {
		s := NewSNSPushSender(&fakeSNS{}, "", "", nil, nil)
		_, err := s.SendPush(context.Background(), PushMessage{Token: "device-token-123", Body: "ping"})

		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.False(t, pe.Transient)
	})

	t.Run("disabled endpoint is permanent", func(t *testing.T) {
		api := &fakeSNS{publishErr: &smithy.GenericAPIError{Code: "EndpointDisabled"}}
		s := NewSNSPushSender(api, platformApp, "", nil, nil)
		_, err := s.SendPush(context.Background(), PushMessage{Token: "device-token-123", Body: "ping"})

		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.False(t, pe.Transient)
	})
}
