package aws

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

type mockSES struct{ mock.Mock }

func (m *mockSES) SendEmail(ctx context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*ses.SendEmailOutput)
	return out, args.Error(1)
}

func TestPublishAlert(t *testing.T) {
	api := new(mockSNS)
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return awssdk.ToString(in.TopicArn) == "arn:topic" &&
			awssdk.ToString(in.Subject) == "sync failed" &&
			awssdk.ToString(in.MessageAttributes["code"].StringValue) == "UPSTREAM_FETCH_FAILED"
	})).Return(&sns.PublishOutput{MessageId: awssdk.String("m-1")}, nil)

	id, err := NewSNSClientWithAPI(api).PublishAlert(context.Background(), "arn:topic", "sync failed", "body",
		map[string]string{"code": "UPSTREAM_FETCH_FAILED"})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	api.AssertExpectations(t)
}

func TestPublishAlert_Error(t *testing.T) {
	api := new(mockSNS)
	api.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewSNSClientWithAPI(api).PublishAlert(context.Background(), "arn:topic", "s", "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestSendHTMLEmail(t *testing.T) {
	api := new(mockSES)
	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return awssdk.ToString(in.Source) == "from@example.com" &&
			len(in.Destination.ToAddresses) == 2 &&
			awssdk.ToString(in.Message.Body.Html.Data) == "<p>hi</p>"
	})).Return(&ses.SendEmailOutput{MessageId: awssdk.String("e-1")}, nil)

	id, err := NewSESClientWithAPI(api).SendHTMLEmail(context.Background(), "from@example.com",
		[]string{"a@example.com", "b@example.com"}, "digest", "<p>hi</p>", "hi")
	require.NoError(t, err)
	assert.Equal(t, "e-1", id)
	api.AssertExpectations(t)
}
