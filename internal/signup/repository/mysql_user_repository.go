package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/allisson/eventflow/internal/database"
	"github.com/allisson/eventflow/internal/signup/domain"

	apperrors "github.com/allisson/eventflow/internal/errors"
)

// MySQLUserRepository handles user persistence for MySQL
type MySQLUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new MySQLUserRepository
func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{
		db: db,
	}
}

// Create inserts a new user
func (r *MySQLUserRepository) Create(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO users (id, external_id, email, username, nickname, display_name, phone_number,
			  picture, bio, status, email_verified, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query, user.ID, user.ExternalID, user.Email, user.Username,
		user.Nickname, user.DisplayName, user.PhoneNumber, user.Picture, user.Bio, user.Status,
		user.EmailVerified)
	if err != nil {
		if isMySQLDuplicateEntry(err) {
			return domain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

// ExistsByIDOrExternalID reports whether a user exists under either the
// primary key or the alternate identity key.
func (r *MySQLUserRepository) ExistsByIDOrExternalID(ctx context.Context, id, externalID string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = ? OR external_id = ?)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, id, externalID).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check user existence")
	}
	return exists, nil
}

// GetByID retrieves a user by ID
func (r *MySQLUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, external_id, email, username, nickname, display_name, phone_number,
			  picture, bio, status, email_verified, created_at, updated_at
			  FROM users WHERE id = ?`

	err := querier.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.ExternalID, &user.Email, &user.Username, &user.Nickname, &user.DisplayName,
		&user.PhoneNumber, &user.Picture, &user.Bio, &user.Status, &user.EmailVerified,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user by id")
	}

	return &user, nil
}

// isMySQLDuplicateEntry checks if the error is a MySQL duplicate entry error (1062)
func isMySQLDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate entry") || strings.Contains(errMsg, "error 1062")
}
