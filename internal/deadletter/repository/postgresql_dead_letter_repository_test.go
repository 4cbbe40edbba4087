package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/eventflow/internal/deadletter/domain"

	apperrors "github.com/allisson/eventflow/internal/errors"
)

func newDeadLetter() *domain.DeadLetter {
	errorMessage := "boom"
	errorCode := "INTERNAL"
	return &domain.DeadLetter{
		ID:                uuid.New(),
		Source:            "signup-service",
		Type:              "UserSignedUp",
		Payload:           `{"id":"user-1"}`,
		ErrorMessage:      &errorMessage,
		ErrorCode:         &errorCode,
		RetryCount:        1,
		OriginalMessageID: "msg-1",
		Timestamp:         time.Now(),
	}
}

func TestPostgreSQLDeadLetterRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	mock.ExpectExec("INSERT INTO dead_letters").
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPostgreSQLDeadLetterRepository(db)
	err = repo.Create(context.Background(), newDeadLetter())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLDeadLetterRepository_Create_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	mock.ExpectExec("INSERT INTO dead_letters").
		WillReturnError(errors.New("connection refused"))

	repo := NewPostgreSQLDeadLetterRepository(db)
	err = repo.Create(context.Background(), newDeadLetter())

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestPostgreSQLDeadLetterRepository_ListBySource(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "source", "type", "payload", "error_message", "error_code", "error_stack",
		"retry_count", "original_message_id", "timestamp", "created_at",
	}).
		AddRow(uuid.New(), "signup-service", "UserSignedUp", `{"id":"user-2"}`, nil, nil, nil, 2, "msg-2", now, now).
		AddRow(uuid.New(), "signup-service", "UserSignedUp", `{"id":"user-1"}`, "boom", "INTERNAL", nil, 1, "msg-1", now, now)

	mock.ExpectQuery("SELECT (.+) FROM dead_letters").
		WithArgs("signup-service", 10).
		WillReturnRows(rows)

	repo := NewPostgreSQLDeadLetterRepository(db)
	records, err := repo.ListBySource(context.Background(), "signup-service", 10)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "msg-2", records[0].OriginalMessageID)
	assert.Nil(t, records[0].ErrorMessage)
	require.NotNil(t, records[1].ErrorMessage)
	assert.Equal(t, "boom", *records[1].ErrorMessage)
}

func TestPostgreSQLDeadLetterRepository_ListBySource_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	mock.ExpectQuery("SELECT (.+) FROM dead_letters").
		WithArgs("unknown", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewPostgreSQLDeadLetterRepository(db)
	records, err := repo.ListBySource(context.Background(), "unknown", 10)

	assert.NoError(t, err)
	assert.Empty(t, records)
}
