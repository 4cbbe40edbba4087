// Package repository provides data persistence implementations for restaurant entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/allisson/eventflow/internal/database"
	"github.com/allisson/eventflow/internal/restaurant/domain"

	apperrors "github.com/allisson/eventflow/internal/errors"
)

// PostgreSQLRestaurantRepository handles restaurant persistence for PostgreSQL
type PostgreSQLRestaurantRepository struct {
	db *sql.DB
}

// NewPostgreSQLRestaurantRepository creates a new PostgreSQLRestaurantRepository
func NewPostgreSQLRestaurantRepository(db *sql.DB) *PostgreSQLRestaurantRepository {
	return &PostgreSQLRestaurantRepository{
		db: db,
	}
}

// Create inserts a new restaurant
func (r *PostgreSQLRestaurantRepository) Create(ctx context.Context, restaurant *domain.Restaurant) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO restaurants (id, name, address, city, state, postal_code, country, country_code,
			  normalized_address, latitude, longitude, phone, website, email, cuisine_type, price_range,
			  created_by, created_at, updated_by, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), $18, NULL)`

	_, err := querier.ExecContext(ctx, query, restaurant.ID, restaurant.Name, restaurant.Address,
		restaurant.City, restaurant.State, restaurant.PostalCode, restaurant.Country,
		restaurant.CountryCode, restaurant.NormalizedAddress, restaurant.Latitude, restaurant.Longitude,
		restaurant.Phone, restaurant.Website, restaurant.Email, restaurant.CuisineType,
		restaurant.PriceRange, restaurant.CreatedBy, restaurant.UpdatedBy)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return domain.ErrRestaurantAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create restaurant")
	}
	return nil
}

// GetByID retrieves a restaurant by ID
func (r *PostgreSQLRestaurantRepository) GetByID(ctx context.Context, id string) (*domain.Restaurant, error) {
	var restaurant domain.Restaurant
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, name, address, city, state, postal_code, country, country_code,
			  normalized_address, latitude, longitude, phone, website, email, cuisine_type, price_range,
			  created_by, created_at, updated_by, updated_at
			  FROM restaurants WHERE id = $1`

	err := querier.QueryRowContext(ctx, query, id).Scan(
		&restaurant.ID, &restaurant.Name, &restaurant.Address, &restaurant.City, &restaurant.State,
		&restaurant.PostalCode, &restaurant.Country, &restaurant.CountryCode,
		&restaurant.NormalizedAddress, &restaurant.Latitude, &restaurant.Longitude, &restaurant.Phone,
		&restaurant.Website, &restaurant.Email, &restaurant.CuisineType, &restaurant.PriceRange,
		&restaurant.CreatedBy, &restaurant.CreatedAt, &restaurant.UpdatedBy, &restaurant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRestaurantNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get restaurant by id")
	}

	return &restaurant, nil
}

// Update replaces the stored restaurant with the merged record
func (r *PostgreSQLRestaurantRepository) Update(ctx context.Context, restaurant *domain.Restaurant) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE restaurants
			  SET name = $1, address = $2, city = $3, state = $4, postal_code = $5, country = $6,
			      country_code = $7, normalized_address = $8, latitude = $9, longitude = $10, phone = $11,
			      website = $12, email = $13, cuisine_type = $14, price_range = $15, updated_by = $16,
			      updated_at = NOW()
			  WHERE id = $17`

	result, err := querier.ExecContext(ctx, query, restaurant.Name, restaurant.Address, restaurant.City,
		restaurant.State, restaurant.PostalCode, restaurant.Country, restaurant.CountryCode,
		restaurant.NormalizedAddress, restaurant.Latitude, restaurant.Longitude, restaurant.Phone,
		restaurant.Website, restaurant.Email, restaurant.CuisineType, restaurant.PriceRange,
		restaurant.UpdatedBy, restaurant.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update restaurant")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read update result")
	}
	if rows == 0 {
		return domain.ErrRestaurantNotFound
	}
	return nil
}

// isPostgreSQLUniqueViolation checks if the error is a PostgreSQL unique constraint violation
func isPostgreSQLUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "unique constraint")
}
