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

// MySQLRestaurantRepository handles restaurant persistence for MySQL
type MySQLRestaurantRepository struct {
	db *sql.DB
}

// NewMySQLRestaurantRepository creates a new MySQLRestaurantRepository
func NewMySQLRestaurantRepository(db *sql.DB) *MySQLRestaurantRepository {
	return &MySQLRestaurantRepository{
		db: db,
	}
}

// Create inserts a new restaurant
func (r *MySQLRestaurantRepository) Create(ctx context.Context, restaurant *domain.Restaurant) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO restaurants (id, name, address, city, state, postal_code, country, country_code,
			  normalized_address, latitude, longitude, phone, website, email, cuisine_type, price_range,
			  created_by, created_at, updated_by, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), ?, NULL)`

	_, err := querier.ExecContext(ctx, query, restaurant.ID, restaurant.Name, restaurant.Address,
		restaurant.City, restaurant.State, restaurant.PostalCode, restaurant.Country,
		restaurant.CountryCode, restaurant.NormalizedAddress, restaurant.Latitude, restaurant.Longitude,
		restaurant.Phone, restaurant.Website, restaurant.Email, restaurant.CuisineType,
		restaurant.PriceRange, restaurant.CreatedBy, restaurant.UpdatedBy)
	if err != nil {
		if isMySQLDuplicateEntry(err) {
			return domain.ErrRestaurantAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create restaurant")
	}
	return nil
}

// GetByID retrieves a restaurant by ID
func (r *MySQLRestaurantRepository) GetByID(ctx context.Context, id string) (*domain.Restaurant, error) {
	var restaurant domain.Restaurant
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, name, address, city, state, postal_code, country, country_code,
			  normalized_address, latitude, longitude, phone, website, email, cuisine_type, price_range,
			  created_by, created_at, updated_by, updated_at
			  FROM restaurants WHERE id = ?`

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
func (r *MySQLRestaurantRepository) Update(ctx context.Context, restaurant *domain.Restaurant) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE restaurants
			  SET name = ?, address = ?, city = ?, state = ?, postal_code = ?, country = ?,
			      country_code = ?, normalized_address = ?, latitude = ?, longitude = ?, phone = ?,
			      website = ?, email = ?, cuisine_type = ?, price_range = ?, updated_by = ?,
			      updated_at = NOW()
			  WHERE id = ?`

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

// isMySQLDuplicateEntry checks if the error is a MySQL duplicate entry error (1062)
func isMySQLDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate entry") || strings.Contains(errMsg, "error 1062")
}
