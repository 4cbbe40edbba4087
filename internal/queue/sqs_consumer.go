package queue

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	apperrors "github.com/allisson/eventflow/internal/errors"
)

// sqsDeleteBatchLimit is the SQS hard limit on entries per DeleteMessageBatch call.
const sqsDeleteBatchLimit = 10

// SQSAPI is the subset of the SQS client used by the consumer.
type SQSAPI interface {
	ReceiveMessage(
		ctx context.Context,
		params *sqs.ReceiveMessageInput,
		optFns ...func(*sqs.Options),
	) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(
		ctx context.Context,
		params *sqs.DeleteMessageBatchInput,
		optFns ...func(*sqs.Options),
	) (*sqs.DeleteMessageBatchOutput, error)
}

// SQSConsumer receives message batches from a single SQS queue and
// acknowledges them according to the partial-failure result: only messages
// absent from the failure list are deleted, so failed messages become visible
// again after the queue's visibility timeout.
type SQSConsumer struct {
	client   SQSAPI
	queueURL string
	region   string
	waitTime int32
	logger   *slog.Logger
}

// NewSQSConsumer creates a new SQSConsumer for the given queue URL.
func NewSQSConsumer(client SQSAPI, queueURL, region string, waitTimeSeconds int32, logger *slog.Logger) *SQSConsumer {
	return &SQSConsumer{
		client:   client,
		queueURL: queueURL,
		region:   region,
		waitTime: waitTimeSeconds,
		logger:   logger,
	}
}

// Receive long-polls the queue for up to maxMessages messages. An empty slice
// means no messages were available within the wait time.
func (c *SQSConsumer) Receive(ctx context.Context, maxMessages int32) ([]Message, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(c.queueURL),
		MaxNumberOfMessages:         maxMessages,
		WaitTimeSeconds:             c.waitTime,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameAll},
		MessageAttributeNames:       []string{"All"},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to receive messages")
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			MessageID:     aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			Attributes:    m.Attributes,
			SourceARN:     c.queueURL,
			Region:        c.region,
		}
		if len(m.MessageAttributes) > 0 {
			msg.MessageAttributes = make(map[string]MessageAttribute, len(m.MessageAttributes))
			for name, attr := range m.MessageAttributes {
				msg.MessageAttributes[name] = MessageAttribute{
					DataType:    aws.ToString(attr.DataType),
					StringValue: aws.ToString(attr.StringValue),
					BinaryValue: attr.BinaryValue,
				}
			}
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Acknowledge deletes every message whose identifier is absent from the
// partial-failure result. Messages listed as failures are left on the queue
// for redelivery.
func (c *SQSConsumer) Acknowledge(ctx context.Context, messages []Message, result BatchResult) error {
	var entries []types.DeleteMessageBatchRequestEntry
	for _, msg := range messages {
		if result.Failed(msg.MessageID) {
			continue
		}
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(msg.MessageID),
			ReceiptHandle: aws.String(msg.ReceiptHandle),
		})
	}

	for start := 0; start < len(entries); start += sqsDeleteBatchLimit {
		end := min(start+sqsDeleteBatchLimit, len(entries))

		out, err := c.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(c.queueURL),
			Entries:  entries[start:end],
		})
		if err != nil {
			return apperrors.Wrap(err, "failed to delete messages")
		}

		// A delete failure is not fatal: the message is redelivered and the
		// idempotency guard absorbs the duplicate.
		for _, failed := range out.Failed {
			c.logger.Warn("failed to delete message",
				slog.String("message_id", aws.ToString(failed.Id)),
				slog.String("code", aws.ToString(failed.Code)),
			)
		}
	}

	return nil
}
