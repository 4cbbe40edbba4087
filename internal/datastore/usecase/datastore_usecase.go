// Package usecase implements the generic write handler: a thin pass-through
// that applies WRITE, UPDATE and DELETE requests against a DynamoDB table.
package usecase

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	validation "github.com/jellydator/validation"

	"github.com/allisson/eventflow/internal/queue"

	apperrors "github.com/allisson/eventflow/internal/errors"
	appvalidation "github.com/allisson/eventflow/internal/validation"
)

// Actions accepted by the generic write handler.
const (
	ActionWrite  = "WRITE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// WriteRequestData carries the table-level arguments of one request.
type WriteRequestData struct {
	Table                     string            `json:"table"`
	Item                      map[string]any    `json:"item,omitempty"`
	Key                       map[string]any    `json:"key,omitempty"`
	UpdateExpression          string            `json:"updateExpression,omitempty"`
	ExpressionAttributeValues map[string]any    `json:"expressionAttributeValues,omitempty"`
	ExpressionAttributeNames  map[string]string `json:"expressionAttributeNames,omitempty"`
}

// WriteRequest is the generic write envelope delivered by the queue.
type WriteRequest struct {
	Action string           `json:"action"`
	Data   WriteRequestData `json:"data"`
}

// DynamoAPI is the subset of the DynamoDB client used by this handler.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DatastoreUseCase handles generic write requests delivered from the write queue.
// Unlike the signup and restaurant handlers it applies no idempotency check:
// requests are keyed writes and redelivery reapplies the same state.
type DatastoreUseCase struct {
	client DynamoAPI
	logger *slog.Logger
}

// NewDatastoreUseCase creates a new DatastoreUseCase
func NewDatastoreUseCase(client DynamoAPI, logger *slog.Logger) *DatastoreUseCase {
	return &DatastoreUseCase{
		client: client,
		logger: logger,
	}
}

// Handle dispatches one write request to the corresponding store primitive.
func (uc *DatastoreUseCase) Handle(ctx context.Context, msg queue.Message) error {
	var request WriteRequest
	if err := json.Unmarshal([]byte(msg.Body), &request); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "failed to parse write request: "+err.Error())
	}

	if err := validateRequest(request); err != nil {
		return err
	}

	switch request.Action {
	case ActionWrite:
		return uc.put(ctx, request.Data)
	case ActionUpdate:
		return uc.update(ctx, request.Data)
	case ActionDelete:
		return uc.delete(ctx, request.Data)
	default:
		return apperrors.Wrap(apperrors.ErrInvalidInput, "unknown action: "+request.Action)
	}
}

func validateRequest(request WriteRequest) error {
	err := validation.ValidateStruct(&request,
		validation.Field(&request.Action,
			validation.Required.Error("action is required"),
			validation.In(ActionWrite, ActionUpdate, ActionDelete).Error("unsupported action"),
		),
	)
	if err != nil {
		return appvalidation.WrapValidationError(err)
	}

	data := request.Data
	rules := []*validation.FieldRules{
		validation.Field(&data.Table, validation.Required.Error("table is required"), appvalidation.NotBlank),
	}

	switch request.Action {
	case ActionWrite:
		rules = append(rules,
			validation.Field(&data.Item, validation.Required.Error("item is required")),
		)
	case ActionUpdate:
		rules = append(rules,
			validation.Field(&data.Key, validation.Required.Error("key is required")),
			validation.Field(&data.UpdateExpression, validation.Required.Error("updateExpression is required")),
		)
	case ActionDelete:
		rules = append(rules,
			validation.Field(&data.Key, validation.Required.Error("key is required")),
		)
	}

	if err := validation.ValidateStruct(&data, rules...); err != nil {
		return appvalidation.WrapValidationError(err)
	}
	return nil
}

func (uc *DatastoreUseCase) put(ctx context.Context, data WriteRequestData) error {
	item, err := attributevalue.MarshalMap(data.Item)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "failed to marshal item: "+err.Error())
	}

	_, err = uc.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(data.Table),
		Item:      item,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to put item")
	}

	uc.logger.Info("item written", slog.String("table", data.Table))
	return nil
}

func (uc *DatastoreUseCase) update(ctx context.Context, data WriteRequestData) error {
	key, err := attributevalue.MarshalMap(data.Key)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "failed to marshal key: "+err.Error())
	}

	input := &dynamodb.UpdateItemInput{
		TableName:        aws.String(data.Table),
		Key:              key,
		UpdateExpression: aws.String(data.UpdateExpression),
	}

	if len(data.ExpressionAttributeValues) > 0 {
		values, err := attributevalue.MarshalMap(data.ExpressionAttributeValues)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInvalidInput, "failed to marshal expression values: "+err.Error())
		}
		input.ExpressionAttributeValues = values
	}
	if len(data.ExpressionAttributeNames) > 0 {
		input.ExpressionAttributeNames = data.ExpressionAttributeNames
	}

	_, err = uc.client.UpdateItem(ctx, input)
	if err != nil {
		return apperrors.Wrap(err, "failed to update item")
	}

	uc.logger.Info("item updated", slog.String("table", data.Table))
	return nil
}

func (uc *DatastoreUseCase) delete(ctx context.Context, data WriteRequestData) error {
	key, err := attributevalue.MarshalMap(data.Key)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "failed to marshal key: "+err.Error())
	}

	_, err = uc.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(data.Table),
		Key:       key,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to delete item")
	}

	uc.logger.Info("item deleted", slog.String("table", data.Table))
	return nil
}
