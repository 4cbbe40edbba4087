package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSQSAPI is a mock implementation of SQSAPI
type MockSQSAPI struct {
	mock.Mock
}

func (m *MockSQSAPI) ReceiveMessage(
	ctx context.Context,
	params *sqs.ReceiveMessageInput,
	optFns ...func(*sqs.Options),
) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *MockSQSAPI) DeleteMessageBatch(
	ctx context.Context,
	params *sqs.DeleteMessageBatchInput,
	optFns ...func(*sqs.Options),
) (*sqs.DeleteMessageBatchOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.DeleteMessageBatchOutput), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSQSConsumer_Receive(t *testing.T) {
	client := &MockSQSAPI{}
	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{
			{
				MessageId:     aws.String("msg-1"),
				ReceiptHandle: aws.String("rh-1"),
				Body:          aws.String(`{"hello":"world"}`),
				Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
				MessageAttributes: map[string]types.MessageAttributeValue{
					"trace_id": {DataType: aws.String("String"), StringValue: aws.String("abc")},
				},
			},
		},
	}, nil)

	consumer := NewSQSConsumer(client, "https://sqs/queue", "us-east-1", 20, testLogger())
	messages, err := consumer.Receive(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "msg-1", messages[0].MessageID)
	assert.Equal(t, "rh-1", messages[0].ReceiptHandle)
	assert.Equal(t, `{"hello":"world"}`, messages[0].Body)
	assert.Equal(t, "1", messages[0].Attributes["ApproximateReceiveCount"])
	assert.Equal(t, "abc", messages[0].MessageAttributes["trace_id"].StringValue)
	assert.Equal(t, "https://sqs/queue", messages[0].SourceARN)
	assert.Equal(t, "us-east-1", messages[0].Region)
}

func TestSQSConsumer_Receive_Error(t *testing.T) {
	client := &MockSQSAPI{}
	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	consumer := NewSQSConsumer(client, "https://sqs/queue", "us-east-1", 20, testLogger())
	messages, err := consumer.Receive(context.Background(), 10)

	assert.Error(t, err)
	assert.Nil(t, messages)
}

func TestSQSConsumer_Acknowledge_DeletesOnlySuccesses(t *testing.T) {
	client := &MockSQSAPI{}
	client.On("DeleteMessageBatch", mock.Anything, mock.MatchedBy(func(in *sqs.DeleteMessageBatchInput) bool {
		if len(in.Entries) != 2 {
			return false
		}
		return aws.ToString(in.Entries[0].Id) == "msg-1" && aws.ToString(in.Entries[1].Id) == "msg-3"
	})).Return(&sqs.DeleteMessageBatchOutput{}, nil)

	consumer := NewSQSConsumer(client, "https://sqs/queue", "us-east-1", 20, testLogger())

	messages := []Message{
		{MessageID: "msg-1", ReceiptHandle: "rh-1"},
		{MessageID: "msg-2", ReceiptHandle: "rh-2"},
		{MessageID: "msg-3", ReceiptHandle: "rh-3"},
	}
	result := BatchResult{BatchItemFailures: []BatchItemFailure{{ItemIdentifier: "msg-2"}}}

	err := consumer.Acknowledge(context.Background(), messages, result)
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSQSConsumer_Acknowledge_AllFailed(t *testing.T) {
	client := &MockSQSAPI{}

	consumer := NewSQSConsumer(client, "https://sqs/queue", "us-east-1", 20, testLogger())

	messages := []Message{{MessageID: "msg-1", ReceiptHandle: "rh-1"}}
	result := BatchResult{BatchItemFailures: []BatchItemFailure{{ItemIdentifier: "msg-1"}}}

	err := consumer.Acknowledge(context.Background(), messages, result)
	require.NoError(t, err)

	// Nothing to delete, no SQS call expected.
	client.AssertNotCalled(t, "DeleteMessageBatch", mock.Anything, mock.Anything)
}

func TestSQSConsumer_Acknowledge_ChunksDeletes(t *testing.T) {
	client := &MockSQSAPI{}
	client.On("DeleteMessageBatch", mock.Anything, mock.Anything).Return(&sqs.DeleteMessageBatchOutput{}, nil).Twice()

	consumer := NewSQSConsumer(client, "https://sqs/queue", "us-east-1", 20, testLogger())

	var messages []Message
	for i := 0; i < 15; i++ {
		messages = append(messages, Message{MessageID: string(rune('a' + i)), ReceiptHandle: "rh"})
	}

	err := consumer.Acknowledge(context.Background(), messages, BatchResult{})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestBatchResult_Failed(t *testing.T) {
	result := BatchResult{BatchItemFailures: []BatchItemFailure{{ItemIdentifier: "msg-2"}}}

	assert.True(t, result.Failed("msg-2"))
	assert.False(t, result.Failed("msg-1"))
	assert.False(t, BatchResult{}.Failed("msg-1"))
}
