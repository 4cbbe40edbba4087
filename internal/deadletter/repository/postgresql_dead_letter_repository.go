// Package repository provides data persistence implementations for dead-letter records.
package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/eventflow/internal/database"
	"github.com/allisson/eventflow/internal/deadletter/domain"

	apperrors "github.com/allisson/eventflow/internal/errors"
)

// PostgreSQLDeadLetterRepository handles dead-letter persistence for PostgreSQL
type PostgreSQLDeadLetterRepository struct {
	db *sql.DB
}

// NewPostgreSQLDeadLetterRepository creates a new PostgreSQLDeadLetterRepository
func NewPostgreSQLDeadLetterRepository(db *sql.DB) *PostgreSQLDeadLetterRepository {
	return &PostgreSQLDeadLetterRepository{
		db: db,
	}
}

// Create inserts a new dead-letter record
func (r *PostgreSQLDeadLetterRepository) Create(ctx context.Context, record *domain.DeadLetter) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO dead_letters (id, source, type, payload, error_message, error_code, error_stack,
			  retry_count, original_message_id, timestamp, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`

	_, err := querier.ExecContext(ctx, query, record.ID, record.Source, record.Type, record.Payload,
		record.ErrorMessage, record.ErrorCode, record.ErrorStack, record.RetryCount,
		record.OriginalMessageID, record.Timestamp)
	if err != nil {
		return apperrors.Wrap(err, "failed to create dead letter record")
	}
	return nil
}

// ListBySource retrieves the most recent dead-letter records for a source,
// newest first, for inspection tooling.
func (r *PostgreSQLDeadLetterRepository) ListBySource(
	ctx context.Context,
	source string,
	limit int,
) ([]*domain.DeadLetter, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, source, type, payload, error_message, error_code, error_stack,
			  retry_count, original_message_id, timestamp, created_at
			  FROM dead_letters WHERE source = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, source, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list dead letter records")
	}
	defer rows.Close() //nolint:errcheck

	var records []*domain.DeadLetter
	for rows.Next() {
		var record domain.DeadLetter

		err := rows.Scan(&record.ID, &record.Source, &record.Type, &record.Payload,
			&record.ErrorMessage, &record.ErrorCode, &record.ErrorStack, &record.RetryCount,
			&record.OriginalMessageID, &record.Timestamp, &record.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan dead letter record")
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate dead letter records")
	}

	return records, nil
}
